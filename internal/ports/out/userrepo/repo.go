package userrepo

import (
	"context"

	"github.com/rideshare-marketplace/rides-api/internal/domain"
)

// Repository provides access to persisted users.
//
// Reference lists (BookedRides, OfferedRides) keep insertion order and set semantics.
// They are not foreign keys: a reference may outlive the ride it points to.
type Repository interface {
	Create(ctx context.Context, u domain.User) error
	// Update replaces the scalar fields of u. Reference lists are left untouched;
	// use the Add*/Remove* methods for those.
	Update(ctx context.Context, u domain.User) error

	GetByID(ctx context.Context, id domain.UserID) (domain.User, error)
	// GetByEmail matches case-insensitively.
	GetByEmail(ctx context.Context, email string) (domain.User, error)

	// List returns all users in creation order.
	List(ctx context.Context) ([]domain.User, error)

	AddBookedRide(ctx context.Context, id domain.UserID, rideID domain.RideID) error
	RemoveBookedRide(ctx context.Context, id domain.UserID, rideID domain.RideID) error
	AddOfferedRide(ctx context.Context, id domain.UserID, rideID domain.RideID) error
	RemoveOfferedRide(ctx context.Context, id domain.UserID, rideID domain.RideID) error

	// RemoveBookedRideFromAll removes rideID from every user's BookedRides.
	RemoveBookedRideFromAll(ctx context.Context, rideID domain.RideID) error
	// ClearAllBookedRides empties BookedRides for every user.
	ClearAllBookedRides(ctx context.Context) error
	// DeleteAll removes every user.
	DeleteAll(ctx context.Context) error
}
