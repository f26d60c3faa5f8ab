package httpapi

import (
	"time"

	"github.com/oapi-codegen/nullable"
	openapi_types "github.com/oapi-codegen/runtime/types"

	"github.com/rideshare-marketplace/rides-api/internal/domain"
)

// Wire names follow the browser client: documents are keyed by "_id" and the trust tier is
// exposed as "trustScore".

type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

type ErrorBody struct {
	Code      string                            `json:"code"`
	Message   string                            `json:"message"`
	Details   nullable.Nullable[map[string]any] `json:"details,omitempty"`
	RequestId nullable.Nullable[string]         `json:"requestId,omitempty"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UpdateUserRequest distinguishes omitted fields from explicit nulls.
type UpdateUserRequest struct {
	Name                    nullable.Nullable[string]              `json:"name,omitempty"`
	Email                   nullable.Nullable[openapi_types.Email] `json:"email,omitempty"`
	Password                nullable.Nullable[string]              `json:"password,omitempty"`
	NotificationPreferences nullable.Nullable[bool]                `json:"notificationPreferences,omitempty"`
	Theme                   nullable.Nullable[string]              `json:"theme,omitempty"`
	OtherSetting            nullable.Nullable[string]              `json:"otherSetting,omitempty"`
	Avatar                  nullable.Nullable[string]              `json:"avatar,omitempty"`
	Bio                     nullable.Nullable[string]              `json:"bio,omitempty"`
}

type RideRefRequest struct {
	RideId string `json:"rideId"`
}

type CreateRideRequest struct {
	UserId       string        `json:"userId"`
	Driver       *Driver       `json:"driver,omitempty"`
	From         string        `json:"from"`
	To           string        `json:"to"`
	Date         string        `json:"date"`
	Departure    string        `json:"departure"`
	Price        *float64      `json:"price"`
	Seats        *int          `json:"seats"`
	Duration     string        `json:"duration,omitempty"`
	Distance     string        `json:"distance,omitempty"`
	Route        [][2]float64  `json:"route,omitempty"`
	RouteDetails *RouteDetails `json:"routeDetails,omitempty"`
	Car          *Car          `json:"car,omitempty"`
	Description  string        `json:"description,omitempty"`
	Rules        []string      `json:"rules,omitempty"`
}

type RideSummary struct {
	Id        string `json:"_id"`
	From      string `json:"from"`
	To        string `json:"to"`
	Date      string `json:"date"`
	Departure string `json:"departure"`
}

type User struct {
	Id                      string        `json:"_id"`
	Name                    string        `json:"name"`
	Email                   string        `json:"email"`
	NotificationPreferences bool          `json:"notificationPreferences"`
	Theme                   string        `json:"theme"`
	OtherSetting            string        `json:"otherSetting"`
	Avatar                  string        `json:"avatar"`
	Bio                     string        `json:"bio"`
	Rating                  float64       `json:"rating"`
	TrustScore              string        `json:"trustScore"`
	Verified                bool          `json:"verified"`
	BookedRides             []RideSummary `json:"bookedRides"`
	OfferedRides            []RideSummary `json:"offeredRides"`
	CreatedAt               time.Time     `json:"createdAt"`
	UpdatedAt               time.Time     `json:"updatedAt"`
}

type UserResponse struct {
	Message string `json:"message,omitempty"`
	User    User   `json:"user"`
}

type Driver struct {
	Name        string  `json:"name"`
	Rating      float64 `json:"rating"`
	TrustScore  string  `json:"trustScore"`
	Avatar      string  `json:"avatar"`
	Trips       int     `json:"trips"`
	MemberSince string  `json:"memberSince"`
	Verified    bool    `json:"verified"`
	Bio         string  `json:"bio"`
}

type RouteDetails struct {
	Stops       []string `json:"stops"`
	Description string   `json:"description"`
}

type Car struct {
	Model    string   `json:"model"`
	Year     int      `json:"year"`
	Color    string   `json:"color"`
	Features []string `json:"features"`
}

type Ride struct {
	Id           string       `json:"_id"`
	UserId       string       `json:"userId"`
	Driver       Driver       `json:"driver"`
	From         string       `json:"from"`
	To           string       `json:"to"`
	Date         string       `json:"date"`
	Departure    string       `json:"departure"`
	Price        float64      `json:"price"`
	Seats        int          `json:"seats"`
	Capacity     int          `json:"capacity"`
	Passengers   []string     `json:"passengers"`
	Duration     string       `json:"duration"`
	Distance     string       `json:"distance"`
	Route        [][2]float64 `json:"route"`
	RouteDetails RouteDetails `json:"routeDetails"`
	Car          Car          `json:"car"`
	Description  string       `json:"description"`
	Rules        []string     `json:"rules"`
	CreatedAt    time.Time    `json:"createdAt"`
	UpdatedAt    time.Time    `json:"updatedAt"`
}

type RideResponse struct {
	Message string `json:"message"`
	Ride    Ride   `json:"ride"`
}

type DriverResponse struct {
	Driver Driver `json:"driver"`
}

func userFromDomain(u domain.ResolvedUser) User {
	return User{
		Id:                      string(u.ID),
		Name:                    u.Name,
		Email:                   u.Email,
		NotificationPreferences: u.Settings.NotificationPreferences,
		Theme:                   u.Settings.Theme,
		OtherSetting:            u.Settings.OtherSetting,
		Avatar:                  u.Profile.Avatar,
		Bio:                     u.Profile.Bio,
		Rating:                  u.Profile.Rating,
		TrustScore:              string(u.Profile.TrustTier),
		Verified:                u.Profile.Verified,
		BookedRides:             summariesFromDomain(u.BookedRideSummaries),
		OfferedRides:            summariesFromDomain(u.OfferedRideSummaries),
		CreatedAt:               u.CreatedAt,
		UpdatedAt:               u.UpdatedAt,
	}
}

func summariesFromDomain(in []domain.RideSummary) []RideSummary {
	out := make([]RideSummary, 0, len(in))
	for _, s := range in {
		out = append(out, RideSummary{
			Id:        string(s.ID),
			From:      s.From,
			To:        s.To,
			Date:      s.Date,
			Departure: s.Departure,
		})
	}
	return out
}

func driverFromDomain(d domain.DriverSnapshot) Driver {
	return Driver{
		Name:        d.Name,
		Rating:      d.Rating,
		TrustScore:  string(d.TrustTier),
		Avatar:      d.Avatar,
		Trips:       d.Trips,
		MemberSince: d.MemberSince,
		Verified:    d.Verified,
		Bio:         d.Bio,
	}
}

func rideFromDomain(r domain.Ride) Ride {
	out := Ride{
		Id:         string(r.ID),
		UserId:     string(r.Owner),
		Driver:     driverFromDomain(r.Driver),
		From:       r.From,
		To:         r.To,
		Date:       r.Date,
		Departure:  r.Departure,
		Price:      r.Price,
		Seats:      r.Seats,
		Capacity:   r.Capacity,
		Passengers: make([]string, 0, len(r.Passengers)),
		Duration:   r.Duration,
		Distance:   r.Distance,
		Route:      make([][2]float64, 0, len(r.Route)),
		RouteDetails: RouteDetails{
			Stops:       nonNilStrings(r.RouteDetails.Stops),
			Description: r.RouteDetails.Description,
		},
		Car: Car{
			Model:    r.Car.Model,
			Year:     r.Car.Year,
			Color:    r.Car.Color,
			Features: nonNilStrings(r.Car.Features),
		},
		Description: r.Description,
		Rules:       nonNilStrings(r.Rules),
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
	for _, p := range r.Passengers {
		out.Passengers = append(out.Passengers, string(p))
	}
	for _, pt := range r.Route {
		out.Route = append(out.Route, [2]float64(pt))
	}
	return out
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
