package users

// Error is an application-layer error that can be mapped to an HTTP response.
type Error struct {
	Status  int
	Code    string
	Message string
	Details map[string]any
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Message != "" {
		return e.Message
	}
	return e.Code
}

func invalidReference(field string) *Error {
	return &Error{
		Status:  400,
		Code:    "INVALID_REFERENCE",
		Message: "invalid id format",
		Details: map[string]any{field: "must be a well-formed id"},
	}
}

func userNotFound() *Error {
	return &Error{Status: 404, Code: "USER_NOT_FOUND", Message: "user not found"}
}

func validationError(field, problem string) *Error {
	return &Error{
		Status:  400,
		Code:    "VALIDATION_ERROR",
		Message: "invalid " + field,
		Details: map[string]any{field: problem},
	}
}
