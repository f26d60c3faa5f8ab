package rides

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

func rideNotFound() *Error {
	return &Error{Status: 404, Code: "RIDE_NOT_FOUND", Message: "ride not found"}
}
