package domain

import "time"

// DriverSnapshot is a denormalized copy of the offering user's display attributes,
// captured when the ride is created. It is a value type: copying a Ride copies it.
type DriverSnapshot struct {
	Name        string
	Rating      float64
	TrustTier   TrustTier
	Avatar      string
	Trips       int
	MemberSince string
	Verified    bool
	Bio         string
}

// LatLng is a single route point.
type LatLng [2]float64

type RouteDetails struct {
	Stops       []string
	Description string
}

type Car struct {
	Model    string
	Year     int
	Color    string
	Features []string
}

// Ride is an offered trip with a fixed seat capacity.
//
// Invariants maintained by the booking use cases:
//   - Seats + len(Passengers) == Capacity (unless the legacy seat release policy is in use)
//   - Owner never appears in Passengers
//   - Passengers contains no duplicates
type Ride struct {
	ID    RideID
	Owner UserID

	Driver DriverSnapshot

	From      string
	To        string
	Date      string
	Departure string
	Price     float64

	// Seats is the number of seats still available.
	Seats int
	// Capacity is the seat count at creation.
	Capacity   int
	Passengers []UserID

	Duration     string
	Distance     string
	Route        []LatLng
	RouteDetails RouteDetails
	Car          Car
	Description  string
	Rules        []string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// RideSummary is the projection used when resolving a user's reference lists.
type RideSummary struct {
	ID        RideID
	From      string
	To        string
	Date      string
	Departure string
}

func (r Ride) Summary() RideSummary {
	return RideSummary{
		ID:        r.ID,
		From:      r.From,
		To:        r.To,
		Date:      r.Date,
		Departure: r.Departure,
	}
}

// HasPassenger reports whether id is booked on the ride.
func (r Ride) HasPassenger(id UserID) bool {
	for _, p := range r.Passengers {
		if p == id {
			return true
		}
	}
	return false
}

// WithoutPassenger returns passengers with id filtered out.
func WithoutPassenger(passengers []UserID, id UserID) []UserID {
	out := make([]UserID, 0, len(passengers))
	for _, p := range passengers {
		if p != id {
			out = append(out, p)
		}
	}
	return out
}

// CloneRide returns a deep copy of r.
func CloneRide(r Ride) Ride {
	cp := r
	cp.Passengers = append([]UserID(nil), r.Passengers...)
	cp.Route = append([]LatLng(nil), r.Route...)
	cp.RouteDetails.Stops = append([]string(nil), r.RouteDetails.Stops...)
	cp.Car.Features = append([]string(nil), r.Car.Features...)
	cp.Rules = append([]string(nil), r.Rules...)
	return cp
}

// CloneUser returns a deep copy of u.
func CloneUser(u User) User {
	cp := u
	cp.BookedRides = append([]RideID(nil), u.BookedRides...)
	cp.OfferedRides = append([]RideID(nil), u.OfferedRides...)
	return cp
}
