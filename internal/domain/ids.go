package domain

import (
	"errors"
	"strings"

	"github.com/google/uuid"
)

// UserID is an internal identifier for a user record.
type UserID string

// RideID is an internal identifier for a ride record.
type RideID string

// ErrMalformedID is returned when a reference does not parse as a record identifier.
var ErrMalformedID = errors.New("malformed identifier")

func NewUserID() UserID { return UserID(uuid.NewString()) }

func NewRideID() RideID { return RideID(uuid.NewString()) }

// ParseUserID validates that s is a well-formed user reference and returns it in canonical form.
func ParseUserID(s string) (UserID, error) {
	id, err := parseID(s)
	if err != nil {
		return "", err
	}
	return UserID(id), nil
}

// ParseRideID validates that s is a well-formed ride reference and returns it in canonical form.
func ParseRideID(s string) (RideID, error) {
	id, err := parseID(s)
	if err != nil {
		return "", err
	}
	return RideID(id), nil
}

func parseID(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", ErrMalformedID
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return "", ErrMalformedID
	}
	return u.String(), nil
}
