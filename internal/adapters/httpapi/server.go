package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/nullable"
	"github.com/oapi-codegen/runtime"
	openapi_types "github.com/oapi-codegen/runtime/types"

	"github.com/rideshare-marketplace/rides-api/internal/app/bookings"
	"github.com/rideshare-marketplace/rides-api/internal/app/rides"
	"github.com/rideshare-marketplace/rides-api/internal/app/users"
	"github.com/rideshare-marketplace/rides-api/internal/domain"
	"github.com/rideshare-marketplace/rides-api/internal/ports/out/idempotency"
)

const maxBodyBytes = 1 << 20

// Server implements the REST handlers on top of the application services.
type Server struct {
	Users    *users.Service
	Rides    *rides.Service
	Bookings *bookings.Service
	Idem     idempotency.Store
	Log      *slog.Logger
}

func NewServer(usersSvc *users.Service, ridesSvc *rides.Service, bookingsSvc *bookings.Service, idem idempotency.Store, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		Users:    usersSvc,
		Rides:    ridesSvc,
		Bookings: bookingsSvc,
		Idem:     idem,
		Log:      log,
	}
}

func (s *Server) Register(w http.ResponseWriter, r *http.Request) {
	var body RegisterRequest
	if !decodeBody(w, r, &body) {
		return
	}
	u, err := s.Users.Register(r.Context(), users.RegisterInput{
		Name:     body.Name,
		Email:    body.Email,
		Password: body.Password,
	})
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, UserResponse{Message: "User registered successfully", User: userFromDomain(u)})
}

func (s *Server) Login(w http.ResponseWriter, r *http.Request) {
	var body LoginRequest
	if !decodeBody(w, r, &body) {
		return
	}
	u, err := s.Users.Login(r.Context(), body.Email, body.Password)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, UserResponse{Message: "Login successful", User: userFromDomain(u)})
}

func (s *Server) GetUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathParam(w, r, "id")
	if !ok {
		return
	}
	u, err := s.Users.GetResolved(r.Context(), id)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, UserResponse{User: userFromDomain(u)})
}

func (s *Server) UpdateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathParam(w, r, "id")
	if !ok {
		return
	}
	var body UpdateUserRequest
	if !decodeBody(w, r, &body) {
		return
	}
	u, err := s.Users.Update(r.Context(), id, updateUserInputFromRequest(body))
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, UserResponse{Message: "User updated successfully", User: userFromDomain(u)})
}

// BookRide honours an optional Idempotency-Key header:
// - replay the stored response for the same user, key and body
// - reject the same user and key with a different body (409)
func (s *Server) BookRide(w http.ResponseWriter, r *http.Request) {
	id, ok := pathParam(w, r, "id")
	if !ok {
		return
	}
	var body RideRefRequest
	if !decodeBody(w, r, &body) {
		return
	}

	key := idempotency.Key(strings.TrimSpace(r.Header.Get("Idempotency-Key")))
	var replay *replayer
	// Malformed ids skip the key lookup and fail with INVALID_REFERENCE below.
	if actor, err := domain.ParseUserID(id); err == nil && key != "" && s.Idem != nil {
		var done bool
		replay, done = s.beginIdempotent(w, r, key, actor, bookRideRoute, hashRideRef(body))
		if done {
			return
		}
	}

	u, err := s.Bookings.BookRide(r.Context(), id, body.RideId)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	resp := UserResponse{Message: "Ride booked successfully", User: userFromDomain(u)}
	if replay != nil {
		replay.store(r.Context(), http.StatusOK, resp)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) CancelRide(w http.ResponseWriter, r *http.Request) {
	id, ok := pathParam(w, r, "id")
	if !ok {
		return
	}
	rideID, ok := pathParam(w, r, "rideId")
	if !ok {
		return
	}
	u, err := s.Bookings.CancelBooking(r.Context(), id, rideID)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, UserResponse{Message: "Ride cancelled successfully", User: userFromDomain(u)})
}

func (s *Server) OfferRide(w http.ResponseWriter, r *http.Request) {
	id, ok := pathParam(w, r, "id")
	if !ok {
		return
	}
	var body RideRefRequest
	if !decodeBody(w, r, &body) {
		return
	}
	u, err := s.Users.LinkOfferedRide(r.Context(), id, body.RideId)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, UserResponse{Message: "Ride offered successfully", User: userFromDomain(u)})
}

func (s *Server) CancelOfferedRide(w http.ResponseWriter, r *http.Request) {
	id, ok := pathParam(w, r, "id")
	if !ok {
		return
	}
	rideID, ok := pathParam(w, r, "rideId")
	if !ok {
		return
	}
	u, err := s.Bookings.CancelOfferedRide(r.Context(), id, rideID)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, UserResponse{Message: "Offered ride cancelled successfully", User: userFromDomain(u)})
}

func (s *Server) ClearBookedRides(w http.ResponseWriter, r *http.Request) {
	if err := s.Users.ClearAllBookedRides(r.Context()); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "All booked rides cleared for all users"})
}

func (s *Server) CreateRide(w http.ResponseWriter, r *http.Request) {
	var body CreateRideRequest
	if !decodeBody(w, r, &body) {
		return
	}
	ride, err := s.Rides.Create(r.Context(), createRideInputFromRequest(body))
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, RideResponse{Message: "Ride created successfully", Ride: rideFromDomain(ride)})
}

func (s *Server) ListRides(w http.ResponseWriter, r *http.Request) {
	var owner *string
	if err := runtime.BindQueryParameter("form", true, false, "userId", r.URL.Query(), &owner); err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_REFERENCE", "invalid userId parameter", map[string]any{"userId": err.Error()})
		return
	}
	filter := ""
	if owner != nil {
		filter = *owner
	}
	list, err := s.Rides.List(r.Context(), filter)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	out := make([]Ride, 0, len(list))
	for _, ride := range list {
		out = append(out, rideFromDomain(ride))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) GetRide(w http.ResponseWriter, r *http.Request) {
	id, ok := pathParam(w, r, "id")
	if !ok {
		return
	}
	ride, err := s.Rides.Get(r.Context(), id)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rideFromDomain(ride))
}

func (s *Server) GetRideDriver(w http.ResponseWriter, r *http.Request) {
	id, ok := pathParam(w, r, "id")
	if !ok {
		return
	}
	d, err := s.Rides.LiveDriver(r.Context(), id)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, DriverResponse{Driver: driverFromDomain(d)})
}

func (s *Server) DeleteAllRides(w http.ResponseWriter, r *http.Request) {
	if err := s.Rides.DeleteAll(r.Context()); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "All rides deleted successfully"})
}

func pathParam(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	var v string
	if err := runtime.BindStyledParameterWithLocation("simple", false, name, runtime.ParamLocationPath, chi.URLParam(r, name), &v); err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_REFERENCE", "invalid "+name+" parameter", map[string]any{name: err.Error()})
		return "", false
	}
	return v, true
}

// decodeBody writes a 400 and returns false when the body is not a single JSON document.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		details := map[string]any{"body": err.Error()}
		if errors.Is(err, io.EOF) {
			details["body"] = "is required"
		}
		if errors.Is(err, openapi_types.ErrValidationEmail) {
			details = map[string]any{"email": "must be a valid email address"}
		}
		writeError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request body", details)
		return false
	}
	return true
}

func updateUserInputFromRequest(b UpdateUserRequest) users.UpdateUserInput {
	in := users.UpdateUserInput{
		Name:                    optionalFromNullable(b.Name),
		Password:                optionalFromNullable(b.Password),
		NotificationPreferences: optionalFromNullable(b.NotificationPreferences),
		Theme:                   optionalFromNullable(b.Theme),
		OtherSetting:            optionalFromNullable(b.OtherSetting),
		Avatar:                  optionalFromNullable(b.Avatar),
		Bio:                     optionalFromNullable(b.Bio),
	}
	switch {
	case !b.Email.IsSpecified():
		in.Email = users.Unspecified[string]()
	case b.Email.IsNull():
		in.Email = users.Null[string]()
	default:
		if v, err := b.Email.Get(); err == nil {
			in.Email = users.Some(string(v))
		}
	}
	return in
}

func optionalFromNullable[T any](n nullable.Nullable[T]) users.Optional[T] {
	if !n.IsSpecified() {
		return users.Unspecified[T]()
	}
	if n.IsNull() {
		return users.Null[T]()
	}
	v, err := n.Get()
	if err != nil {
		return users.Unspecified[T]()
	}
	return users.Some(v)
}

func createRideInputFromRequest(b CreateRideRequest) rides.CreateRideInput {
	in := rides.CreateRideInput{
		UserID:      b.UserId,
		From:        b.From,
		To:          b.To,
		Date:        b.Date,
		Departure:   b.Departure,
		Price:       b.Price,
		Seats:       b.Seats,
		Duration:    b.Duration,
		Distance:    b.Distance,
		Description: b.Description,
		Rules:       b.Rules,
	}
	if b.Driver != nil {
		in.Driver = &domain.DriverSnapshot{
			Name:        b.Driver.Name,
			Rating:      b.Driver.Rating,
			TrustTier:   domain.TrustTier(b.Driver.TrustScore),
			Avatar:      b.Driver.Avatar,
			Trips:       b.Driver.Trips,
			MemberSince: b.Driver.MemberSince,
			Verified:    b.Driver.Verified,
			Bio:         b.Driver.Bio,
		}
	}
	for _, pt := range b.Route {
		in.Route = append(in.Route, domain.LatLng(pt))
	}
	if b.RouteDetails != nil {
		in.RouteDetails = domain.RouteDetails{Stops: b.RouteDetails.Stops, Description: b.RouteDetails.Description}
	}
	if b.Car != nil {
		in.Car = domain.Car{Model: b.Car.Model, Year: b.Car.Year, Color: b.Car.Color, Features: b.Car.Features}
	}
	return in
}
