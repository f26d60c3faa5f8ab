package riderepo

import "errors"

var (
	ErrNotFound      = errors.New("ride not found")
	ErrAlreadyExists = errors.New("ride already exists")

	// Reservation failures. ReserveSeat reports these when its re-check fails.
	ErrNoSeats          = errors.New("no seats available")
	ErrAlreadyPassenger = errors.New("user already booked on ride")
	ErrOwnRide          = errors.New("user owns ride")
)
