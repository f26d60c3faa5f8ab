package users

// Optional is a tri-state field used to distinguish:
// - unspecified (omitted)
// - specified as null
// - specified with a value
type Optional[T any] struct {
	specified bool
	isNull    bool
	value     T
}

func Unspecified[T any]() Optional[T] { return Optional[T]{} }
func Null[T any]() Optional[T]        { return Optional[T]{specified: true, isNull: true} }
func Some[T any](v T) Optional[T]     { return Optional[T]{specified: true, value: v} }

func (o Optional[T]) IsSpecified() bool { return o.specified }
func (o Optional[T]) IsNull() bool      { return o.specified && o.isNull }
func (o Optional[T]) Value() T          { return o.value }

type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

// UpdateUserInput patches a user. Name, Email and Password cannot be null; the other
// fields reset to their defaults when null.
type UpdateUserInput struct {
	Name     Optional[string]
	Email    Optional[string]
	Password Optional[string]

	NotificationPreferences Optional[bool]
	Theme                   Optional[string]
	OtherSetting            Optional[string]

	Avatar Optional[string]
	Bio    Optional[string]
}
