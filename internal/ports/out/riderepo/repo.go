package riderepo

import (
	"context"

	"github.com/rideshare-marketplace/rides-api/internal/domain"
)

// Release reports what ReleaseSeat did.
type Release struct {
	// WasPassenger is true when the user was removed from the passenger list.
	WasPassenger bool
	// SeatReturned is true when Seats was incremented.
	SeatReturned bool
}

// Repository provides access to persisted rides.
//
// Result ordering expectations:
// - List returns rides in creation order.
type Repository interface {
	Create(ctx context.Context, r domain.Ride) error

	GetByID(ctx context.Context, id domain.RideID) (domain.Ride, error)
	// GetMany returns the rides that exist among ids, keyed by ID. Missing ids are not an error.
	GetMany(ctx context.Context, ids []domain.RideID) (map[domain.RideID]domain.Ride, error)

	// List returns all rides, or only rides owned by owner when owner is non-empty.
	List(ctx context.Context, owner domain.UserID) ([]domain.Ride, error)

	// ReserveSeat atomically checks that seats remain, the user is not already a passenger
	// and the user is not the owner, then decrements Seats and appends the user.
	// Check order matches ErrNoSeats, ErrAlreadyPassenger, ErrOwnRide.
	ReserveSeat(ctx context.Context, id domain.RideID, user domain.UserID) (domain.Ride, error)

	// ReleaseSeat removes user from Passengers. When unconditional is true Seats is incremented
	// whether or not the user was a passenger; otherwise only when the user was removed.
	ReleaseSeat(ctx context.Context, id domain.RideID, user domain.UserID, unconditional bool) (domain.Ride, Release, error)

	Delete(ctx context.Context, id domain.RideID) error
	DeleteAll(ctx context.Context) error
}
