package events

import (
	"context"
	"time"

	"github.com/rideshare-marketplace/rides-api/internal/domain"
)

type Type string

const (
	TypeRideCreated          Type = "ride.created"
	TypeRideBooked           Type = "ride.booked"
	TypeRideBookingCancelled Type = "ride.booking_cancelled"
	TypeRideOfferCancelled   Type = "ride.offer_cancelled"
)

// Event is an append-only record of a marketplace state change.
type Event struct {
	Type       Type          `json:"type"`
	RideID     domain.RideID `json:"rideId"`
	UserID     domain.UserID `json:"userId"`
	Seats      int           `json:"seats"`
	OccurredAt time.Time     `json:"occurredAt"`
}

// Publisher emits domain events. Delivery is best effort; callers log failures.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
