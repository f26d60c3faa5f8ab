package rides

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/rideshare-marketplace/rides-api/internal/domain"
	"github.com/rideshare-marketplace/rides-api/internal/platform/observability"
	clockport "github.com/rideshare-marketplace/rides-api/internal/ports/out/clock"
	"github.com/rideshare-marketplace/rides-api/internal/ports/out/events"
	"github.com/rideshare-marketplace/rides-api/internal/ports/out/riderepo"
	"github.com/rideshare-marketplace/rides-api/internal/ports/out/userrepo"
)

// MemberSinceLayout formats User.CreatedAt for DriverSnapshot.MemberSince.
const MemberSinceLayout = "January 2006"

type Service struct {
	rides riderepo.Repository
	users userrepo.Repository
	clk   clockport.Clock

	events events.Publisher
	log    *slog.Logger

	newRideID func() domain.RideID
}

func NewService(rides riderepo.Repository, users userrepo.Repository, clk clockport.Clock) *Service {
	return &Service{
		rides:     rides,
		users:     users,
		clk:       clk,
		events:    events.Nop{},
		log:       slog.Default(),
		newRideID: domain.NewRideID,
	}
}

// WithEvents sets the publisher for ride.created. Publish failures are logged to log.
func (s *Service) WithEvents(pub events.Publisher, log *slog.Logger) *Service {
	if pub != nil {
		s.events = pub
	}
	if log != nil {
		s.log = log
	}
	return s
}

// SetNewRideIDForTest overrides ride ID generation for deterministic tests.
// It should not be used in production code.
func (s *Service) SetNewRideIDForTest(fn func() domain.RideID) {
	if fn != nil {
		s.newRideID = fn
	}
}

// Create stores a new ride offered by in.UserID and links it into the owner's offered rides.
func (s *Service) Create(ctx context.Context, in CreateRideInput) (domain.Ride, error) {
	missing := map[string]any{}
	required := map[string]string{
		"userId":    in.UserID,
		"from":      in.From,
		"to":        in.To,
		"date":      in.Date,
		"departure": in.Departure,
	}
	for field, v := range required {
		if strings.TrimSpace(v) == "" {
			missing[field] = "is required"
		}
	}
	if in.Price == nil {
		missing["price"] = "is required"
	}
	if in.Seats == nil {
		missing["seats"] = "is required"
	}
	if len(missing) > 0 {
		return domain.Ride{}, &Error{
			Status:  400,
			Code:    "VALIDATION_ERROR",
			Message: "missing required ride fields",
			Details: missing,
		}
	}
	if *in.Price < 0 {
		return domain.Ride{}, &Error{
			Status:  400,
			Code:    "VALIDATION_ERROR",
			Message: "invalid price",
			Details: map[string]any{"price": "must be >= 0"},
		}
	}
	if *in.Seats < 1 {
		return domain.Ride{}, &Error{
			Status:  400,
			Code:    "VALIDATION_ERROR",
			Message: "invalid seats",
			Details: map[string]any{"seats": "must be >= 1"},
		}
	}

	ownerID, err := domain.ParseUserID(in.UserID)
	if err != nil {
		return domain.Ride{}, invalidReference("userId")
	}
	owner, err := s.users.GetByID(ctx, ownerID)
	if err != nil {
		if errors.Is(err, userrepo.ErrNotFound) {
			return domain.Ride{}, &Error{
				Status:  400,
				Code:    "VALIDATION_ERROR",
				Message: "ride owner does not exist",
				Details: map[string]any{"userId": "must reference an existing user"},
			}
		}
		return domain.Ride{}, err
	}

	now := s.clk.Now()
	ride := domain.Ride{
		ID:        s.newRideID(),
		Owner:     owner.ID,
		Driver:    driverSnapshot(owner, in.Driver),
		From:      strings.TrimSpace(in.From),
		To:        strings.TrimSpace(in.To),
		Date:      strings.TrimSpace(in.Date),
		Departure: strings.TrimSpace(in.Departure),
		Price:     *in.Price,
		Seats:     *in.Seats,
		Capacity:  *in.Seats,
		Duration:  in.Duration,
		Distance:  in.Distance,
		Route:     append([]domain.LatLng(nil), in.Route...),
		RouteDetails: domain.RouteDetails{
			Stops:       append([]string(nil), in.RouteDetails.Stops...),
			Description: in.RouteDetails.Description,
		},
		Car:         in.Car,
		Description: in.Description,
		Rules:       append([]string(nil), in.Rules...),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	ride.Car.Features = append([]string(nil), in.Car.Features...)

	if err := s.rides.Create(ctx, ride); err != nil {
		return domain.Ride{}, fmt.Errorf("create ride: %w", err)
	}
	if err := s.users.AddOfferedRide(ctx, owner.ID, ride.ID); err != nil {
		// Unlinked rides must not stay listed or bookable.
		if derr := s.rides.Delete(ctx, ride.ID); derr != nil {
			s.log.ErrorContext(ctx, "remove unlinked ride failed", "rideId", ride.ID, "userId", owner.ID, "err", derr)
		}
		return domain.Ride{}, fmt.Errorf("link offered ride: %w", err)
	}

	observability.RidesCreatedTotal.Inc()
	if err := s.events.Publish(ctx, events.Event{
		Type:       events.TypeRideCreated,
		RideID:     ride.ID,
		UserID:     owner.ID,
		Seats:      ride.Seats,
		OccurredAt: now,
	}); err != nil {
		observability.EventPublishFailuresTotal.WithLabelValues(string(events.TypeRideCreated)).Inc()
		s.log.WarnContext(ctx, "publish event failed", "type", events.TypeRideCreated, "rideId", ride.ID, "err", err)
	}
	return ride, nil
}

// List returns rides in storage order. ownerFilter, when non-empty, must be a well-formed user id.
func (s *Service) List(ctx context.Context, ownerFilter string) ([]domain.Ride, error) {
	var owner domain.UserID
	if strings.TrimSpace(ownerFilter) != "" {
		id, err := domain.ParseUserID(ownerFilter)
		if err != nil {
			return nil, invalidReference("userId")
		}
		owner = id
	}
	return s.rides.List(ctx, owner)
}

func (s *Service) Get(ctx context.Context, id string) (domain.Ride, error) {
	rid, err := domain.ParseRideID(id)
	if err != nil {
		return domain.Ride{}, invalidReference("id")
	}
	ride, err := s.rides.GetByID(ctx, rid)
	if err != nil {
		if errors.Is(err, riderepo.ErrNotFound) {
			return domain.Ride{}, rideNotFound()
		}
		return domain.Ride{}, err
	}
	return ride, nil
}

// LiveDriver returns the owner's current reputation, as opposed to the snapshot frozen on the ride.
func (s *Service) LiveDriver(ctx context.Context, id string) (domain.DriverSnapshot, error) {
	ride, err := s.Get(ctx, id)
	if err != nil {
		return domain.DriverSnapshot{}, err
	}
	owner, err := s.users.GetByID(ctx, ride.Owner)
	if err != nil {
		if errors.Is(err, userrepo.ErrNotFound) {
			return domain.DriverSnapshot{}, &Error{Status: 404, Code: "USER_NOT_FOUND", Message: "ride owner not found"}
		}
		return domain.DriverSnapshot{}, err
	}
	return driverSnapshot(owner, nil), nil
}

// DeleteAll removes every ride. User reference lists are not touched.
func (s *Service) DeleteAll(ctx context.Context) error {
	return s.rides.DeleteAll(ctx)
}

func driverSnapshot(owner domain.User, override *domain.DriverSnapshot) domain.DriverSnapshot {
	d := domain.DriverSnapshot{
		Name:        owner.Name,
		Rating:      owner.Profile.Rating,
		TrustTier:   owner.Profile.TrustTier,
		Avatar:      owner.Profile.Avatar,
		Trips:       len(owner.OfferedRides),
		MemberSince: owner.CreatedAt.Format(MemberSinceLayout),
		Verified:    owner.Profile.Verified,
		Bio:         owner.Profile.Bio,
	}
	if !d.TrustTier.Valid() {
		d.TrustTier = domain.TrustTierMedium
	}
	if override == nil {
		return d
	}

	if n := domain.NormalizeHumanName(override.Name); n != "" {
		d.Name = n
	}
	if override.Rating > 0 {
		d.Rating = override.Rating
	}
	if override.TrustTier.Valid() {
		d.TrustTier = override.TrustTier
	}
	if override.Avatar != "" {
		d.Avatar = override.Avatar
	}
	if override.Trips > 0 {
		d.Trips = override.Trips
	}
	if override.MemberSince != "" {
		d.MemberSince = override.MemberSince
	}
	d.Verified = d.Verified || override.Verified
	if override.Bio != "" {
		d.Bio = override.Bio
	}
	return d
}
