package bookings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/rideshare-marketplace/rides-api/internal/app/users"
	"github.com/rideshare-marketplace/rides-api/internal/domain"
	"github.com/rideshare-marketplace/rides-api/internal/platform/observability"
	clockport "github.com/rideshare-marketplace/rides-api/internal/ports/out/clock"
	"github.com/rideshare-marketplace/rides-api/internal/ports/out/events"
	"github.com/rideshare-marketplace/rides-api/internal/ports/out/riderepo"
	"github.com/rideshare-marketplace/rides-api/internal/ports/out/userrepo"
)

// Service books and releases seats, keeping ride passenger lists and user reference lists
// in step.
type Service struct {
	users  userrepo.Repository
	rides  riderepo.Repository
	clk    clockport.Clock
	policy Policy

	events events.Publisher
	log    *slog.Logger
}

func NewService(users userrepo.Repository, rides riderepo.Repository, clk clockport.Clock, policy Policy) *Service {
	if policy.SeatRelease == "" {
		policy.SeatRelease = SeatReleaseStrict
	}
	if policy.OfferCancel == "" {
		policy.OfferCancel = OfferCancelOwner
	}
	return &Service{
		users:  users,
		rides:  rides,
		clk:    clk,
		policy: policy,
		events: events.Nop{},
		log:    slog.Default(),
	}
}

// WithEvents sets the publisher for booking events. Publish failures are logged to log.
func (s *Service) WithEvents(pub events.Publisher, log *slog.Logger) *Service {
	if pub != nil {
		s.events = pub
	}
	if log != nil {
		s.log = log
	}
	return s
}

// BookRide reserves one seat on rideID for userID.
//
// Checks run in order and the first failure wins: id format, user exists, ride exists,
// seats remain, not already booked, not the owner. The reservation re-checks the last three
// atomically, so a request that loses a race gets the same error codes.
func (s *Service) BookRide(ctx context.Context, userID, rideID string) (res domain.ResolvedUser, err error) {
	defer func() { record(observability.OpBook, err) }()

	uid, rid, err := parseRefs(userID, rideID)
	if err != nil {
		return domain.ResolvedUser{}, err
	}
	if _, err := s.loadUser(ctx, uid); err != nil {
		return domain.ResolvedUser{}, err
	}
	ride, err := s.loadRide(ctx, rid)
	if err != nil {
		return domain.ResolvedUser{}, err
	}

	switch {
	case ride.Seats <= 0:
		return domain.ResolvedUser{}, errNoSeats
	case ride.HasPassenger(uid):
		return domain.ResolvedUser{}, errAlreadyBooked
	case ride.Owner == uid:
		return domain.ResolvedUser{}, errCannotBookOwn
	}

	booked, err := s.rides.ReserveSeat(ctx, rid, uid)
	if err != nil {
		switch {
		case errors.Is(err, riderepo.ErrNoSeats):
			return domain.ResolvedUser{}, errNoSeats
		case errors.Is(err, riderepo.ErrAlreadyPassenger):
			return domain.ResolvedUser{}, errAlreadyBooked
		case errors.Is(err, riderepo.ErrOwnRide):
			return domain.ResolvedUser{}, errCannotBookOwn
		case errors.Is(err, riderepo.ErrNotFound):
			return domain.ResolvedUser{}, errRideNotFound
		}
		return domain.ResolvedUser{}, fmt.Errorf("reserve seat: %w", err)
	}

	if err := s.users.AddBookedRide(ctx, uid, rid); err != nil {
		s.compensate(ctx, rid, uid, err)
		if errors.Is(err, userrepo.ErrNotFound) {
			return domain.ResolvedUser{}, errUserNotFound
		}
		return domain.ResolvedUser{}, fmt.Errorf("link booked ride: %w", err)
	}

	s.publish(ctx, events.Event{
		Type:       events.TypeRideBooked,
		RideID:     rid,
		UserID:     uid,
		Seats:      booked.Seats,
		OccurredAt: s.clk.Now(),
	})
	return s.resolve(ctx, uid)
}

// CancelBooking releases userID's seat on rideID and unlinks the ride from the user.
// Under SeatReleaseLegacy the seat count is incremented even if the user held no seat.
func (s *Service) CancelBooking(ctx context.Context, userID, rideID string) (res domain.ResolvedUser, err error) {
	defer func() { record(observability.OpCancel, err) }()

	uid, rid, err := parseRefs(userID, rideID)
	if err != nil {
		return domain.ResolvedUser{}, err
	}
	if _, err := s.loadUser(ctx, uid); err != nil {
		return domain.ResolvedUser{}, err
	}
	if _, err := s.loadRide(ctx, rid); err != nil {
		return domain.ResolvedUser{}, err
	}

	unconditional := s.policy.SeatRelease == SeatReleaseLegacy
	released, rel, err := s.rides.ReleaseSeat(ctx, rid, uid, unconditional)
	if err != nil {
		if errors.Is(err, riderepo.ErrNotFound) {
			return domain.ResolvedUser{}, errRideNotFound
		}
		return domain.ResolvedUser{}, fmt.Errorf("release seat: %w", err)
	}
	if rel.SeatReturned && released.Seats > released.Capacity {
		s.log.WarnContext(ctx, "seat count exceeds capacity",
			"rideId", rid, "userId", uid, "seats", released.Seats, "capacity", released.Capacity)
	}

	if err := s.users.RemoveBookedRide(ctx, uid, rid); err != nil {
		if errors.Is(err, userrepo.ErrNotFound) {
			return domain.ResolvedUser{}, errUserNotFound
		}
		return domain.ResolvedUser{}, fmt.Errorf("unlink booked ride: %w", err)
	}

	s.publish(ctx, events.Event{
		Type:       events.TypeRideBookingCancelled,
		RideID:     rid,
		UserID:     uid,
		Seats:      released.Seats,
		OccurredAt: s.clk.Now(),
	})
	return s.resolve(ctx, uid)
}

// CancelOfferedRide withdraws rideID: it is unlinked from userID's offered rides and deleted.
// Passengers keep their references unless Policy.CascadeOfferCancel is set.
func (s *Service) CancelOfferedRide(ctx context.Context, userID, rideID string) (res domain.ResolvedUser, err error) {
	defer func() { record(observability.OpCancelOffer, err) }()

	uid, rid, err := parseRefs(userID, rideID)
	if err != nil {
		return domain.ResolvedUser{}, err
	}
	if _, err := s.loadUser(ctx, uid); err != nil {
		return domain.ResolvedUser{}, err
	}
	ride, err := s.loadRide(ctx, rid)
	if err != nil {
		return domain.ResolvedUser{}, err
	}
	if s.policy.OfferCancel == OfferCancelOwner && ride.Owner != uid {
		return domain.ResolvedUser{}, errNotRideOwner
	}

	if err := s.users.RemoveOfferedRide(ctx, uid, rid); err != nil {
		if errors.Is(err, userrepo.ErrNotFound) {
			return domain.ResolvedUser{}, errUserNotFound
		}
		return domain.ResolvedUser{}, fmt.Errorf("unlink offered ride: %w", err)
	}
	if err := s.rides.Delete(ctx, rid); err != nil {
		if errors.Is(err, riderepo.ErrNotFound) {
			return domain.ResolvedUser{}, errRideNotFound
		}
		return domain.ResolvedUser{}, fmt.Errorf("delete ride: %w", err)
	}
	if s.policy.CascadeOfferCancel {
		if err := s.users.RemoveBookedRideFromAll(ctx, rid); err != nil {
			return domain.ResolvedUser{}, fmt.Errorf("unlink passengers: %w", err)
		}
	}

	s.publish(ctx, events.Event{
		Type:       events.TypeRideOfferCancelled,
		RideID:     rid,
		UserID:     uid,
		Seats:      ride.Seats,
		OccurredAt: s.clk.Now(),
	})
	return s.resolve(ctx, uid)
}

func parseRefs(userID, rideID string) (domain.UserID, domain.RideID, error) {
	uid, err := domain.ParseUserID(userID)
	if err != nil {
		return "", "", invalidReference("userId")
	}
	rid, err := domain.ParseRideID(rideID)
	if err != nil {
		return "", "", invalidReference("rideId")
	}
	return uid, rid, nil
}

func (s *Service) loadUser(ctx context.Context, id domain.UserID) (domain.User, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, userrepo.ErrNotFound) {
			return domain.User{}, errUserNotFound
		}
		return domain.User{}, err
	}
	return u, nil
}

func (s *Service) loadRide(ctx context.Context, id domain.RideID) (domain.Ride, error) {
	r, err := s.rides.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, riderepo.ErrNotFound) {
			return domain.Ride{}, errRideNotFound
		}
		return domain.Ride{}, err
	}
	return r, nil
}

func (s *Service) resolve(ctx context.Context, id domain.UserID) (domain.ResolvedUser, error) {
	u, err := s.loadUser(ctx, id)
	if err != nil {
		return domain.ResolvedUser{}, err
	}
	return users.Resolve(ctx, s.rides, u)
}

// compensate gives back a seat reserved for a booking whose user update failed.
func (s *Service) compensate(ctx context.Context, rid domain.RideID, uid domain.UserID, cause error) {
	observability.SeatCompensationsTotal.Inc()
	if _, _, err := s.rides.ReleaseSeat(ctx, rid, uid, false); err != nil {
		s.log.ErrorContext(ctx, "seat compensation failed",
			"rideId", rid, "userId", uid, "cause", cause, "err", err)
		return
	}
	s.log.WarnContext(ctx, "released seat after failed booking", "rideId", rid, "userId", uid, "cause", cause)
}

func (s *Service) publish(ctx context.Context, e events.Event) {
	if err := s.events.Publish(ctx, e); err != nil {
		observability.EventPublishFailuresTotal.WithLabelValues(string(e.Type)).Inc()
		s.log.WarnContext(ctx, "publish event failed", "type", e.Type, "rideId", e.RideID, "err", err)
	}
}

func record(op string, err error) {
	if err == nil {
		observability.BookingOperationsTotal.WithLabelValues(op, observability.OutcomeOK, "").Inc()
		return
	}
	ae := (*Error)(nil)
	if errors.As(err, &ae) {
		observability.BookingOperationsTotal.WithLabelValues(op, observability.OutcomeReject, ae.Code).Inc()
		return
	}
	observability.BookingOperationsTotal.WithLabelValues(op, observability.OutcomeFailure, "").Inc()
}
