package rides

import "github.com/rideshare-marketplace/rides-api/internal/domain"

// CreateRideInput carries the fields of a new ride offer. Price and Seats are pointers so
// that a missing value can be told apart from zero.
type CreateRideInput struct {
	UserID    string
	From      string
	To        string
	Date      string
	Departure string
	Price     *float64
	Seats     *int

	// Driver overrides the snapshot taken from the owner's profile. Empty fields fall back
	// to the profile values.
	Driver *domain.DriverSnapshot

	Duration     string
	Distance     string
	Route        []domain.LatLng
	RouteDetails domain.RouteDetails
	Car          domain.Car
	Description  string
	Rules        []string
}
