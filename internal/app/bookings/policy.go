package bookings

import "fmt"

// SeatReleasePolicy controls how CancelBooking returns a seat.
type SeatReleasePolicy string

const (
	// SeatReleaseStrict returns a seat only when the user was a passenger.
	SeatReleaseStrict SeatReleasePolicy = "strict"
	// SeatReleaseLegacy always increments seats, even past capacity.
	SeatReleaseLegacy SeatReleasePolicy = "legacy"
)

// OfferCancelPolicy controls who may cancel an offered ride.
type OfferCancelPolicy string

const (
	OfferCancelOwner OfferCancelPolicy = "owner"
	// OfferCancelAny lets any existing user cancel any ride.
	OfferCancelAny OfferCancelPolicy = "any"
)

type Policy struct {
	SeatRelease SeatReleasePolicy
	OfferCancel OfferCancelPolicy
	// CascadeOfferCancel removes a cancelled ride from every passenger's booked rides.
	CascadeOfferCancel bool
}

func DefaultPolicy() Policy {
	return Policy{
		SeatRelease: SeatReleaseStrict,
		OfferCancel: OfferCancelOwner,
	}
}

func ParseSeatReleasePolicy(s string) (SeatReleasePolicy, error) {
	switch p := SeatReleasePolicy(s); p {
	case SeatReleaseStrict, SeatReleaseLegacy:
		return p, nil
	default:
		return "", fmt.Errorf("unknown seat release policy %q (want strict or legacy)", s)
	}
}

func ParseOfferCancelPolicy(s string) (OfferCancelPolicy, error) {
	switch p := OfferCancelPolicy(s); p {
	case OfferCancelOwner, OfferCancelAny:
		return p, nil
	default:
		return "", fmt.Errorf("unknown offer cancel policy %q (want owner or any)", s)
	}
}
