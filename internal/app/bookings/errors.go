package bookings

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

var (
	errUserNotFound  = &Error{Status: 404, Code: "USER_NOT_FOUND", Message: "user not found"}
	errRideNotFound  = &Error{Status: 404, Code: "RIDE_NOT_FOUND", Message: "ride not found"}
	errNoSeats       = &Error{Status: 400, Code: "NO_SEATS_AVAILABLE", Message: "no seats available"}
	errAlreadyBooked = &Error{Status: 400, Code: "ALREADY_BOOKED", Message: "ride already booked by this user"}
	errCannotBookOwn = &Error{Status: 400, Code: "CANNOT_BOOK_OWN_RIDE", Message: "cannot book your own ride"}
	errNotRideOwner  = &Error{Status: 403, Code: "NOT_RIDE_OWNER", Message: "only the ride owner can cancel this offer"}
)
