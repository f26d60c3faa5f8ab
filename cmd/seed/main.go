// Command seed resets the configured store and loads demo users and rides.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/rideshare-marketplace/rides-api/internal/app/rides"
	"github.com/rideshare-marketplace/rides-api/internal/app/users"
	"github.com/rideshare-marketplace/rides-api/internal/domain"
	"github.com/rideshare-marketplace/rides-api/internal/platform/backend"
	platformclock "github.com/rideshare-marketplace/rides-api/internal/platform/clock"
	"github.com/rideshare-marketplace/rides-api/internal/platform/config"
	"github.com/rideshare-marketplace/rides-api/internal/platform/logging"
)

type demoRide struct {
	driver       domain.DriverSnapshot
	from, to     string
	date, dep    string
	price        float64
	seats        int
	duration     string
	distance     string
	route        []domain.LatLng
	routeDetails domain.RouteDetails
	car          domain.Car
	description  string
	rules        []string
}

var demoRides = []demoRide{
	{
		driver: domain.DriverSnapshot{
			Name: "Max Mustermann", Rating: 4.8, TrustTier: domain.TrustTierHigh, Trips: 127,
			MemberSince: "März 2022", Verified: true,
			Avatar: "https://images.unsplash.com/photo-1507003211169-0a1dd7228f2d?w=150&h=150&fit=crop&crop=face",
			Bio:    "Ich fahre regelmäßig zwischen Rothenburg und Würzburg für die Arbeit.",
		},
		from: "Rothenburg ob der Tauber", to: "Würzburg", date: "2024-07-03", dep: "08:00",
		price: 12.50, seats: 2, duration: "45 min", distance: "65 km",
		route: []domain.LatLng{{49.378, 10.179}, {49.791, 9.938}},
		routeDetails: domain.RouteDetails{
			Stops:       []string{"Rothenburg ob der Tauber Bahnhof", "Creglingen", "Würzburg Hauptbahnhof"},
			Description: "Fahre über die A7, kann bei Bedarf kleine Umwege machen.",
		},
		car:         domain.Car{Model: "VW Golf", Year: 2020, Color: "Blau", Features: []string{"Klimaanlage", "Nichtraucher", "Musik erlaubt"}},
		description: "Entspannte Fahrt zur Arbeit. Pünktlichkeit ist mir wichtig!",
		rules:       []string{"Pünktlichkeit", "Nichtraucher", "Keine Haustiere"},
	},
	{
		driver: domain.DriverSnapshot{
			Name: "Erika Mustermann", Rating: 4.9, TrustTier: domain.TrustTierHigh, Trips: 84,
			MemberSince: "Januar 2023", Verified: true,
			Avatar: "https://images.unsplash.com/photo-1494790108377-be9c29b29330?w=150&h=150&fit=crop&crop=face",
			Bio:    "Studentin, die am Wochenende nach Hause fährt.",
		},
		from: "Nürnberg", to: "Frankfurt", date: "2024-07-05", dep: "09:30",
		price: 25.00, seats: 3, duration: "2h 15min", distance: "220 km",
		route: []domain.LatLng{{49.452, 11.076}, {50.110, 8.682}},
		routeDetails: domain.RouteDetails{
			Stops:       []string{"Nürnberg Hbf", "Würzburg Hbf", "Frankfurt Flughafen"},
			Description: "Direkte Fahrt auf der A3.",
		},
		car:         domain.Car{Model: "Opel Corsa", Year: 2021, Color: "Rot", Features: []string{"Klimaanlage", "USB-Ladeanschluss"}},
		description: "Gepäckraum ist begrenzt, bitte nur ein Handgepäckstück mitnehmen.",
		rules:       []string{"Keine großen Koffer", "Musik nach Absprache"},
	},
	{
		driver: domain.DriverSnapshot{
			Name: "Klaus Weber", Rating: 4.7, TrustTier: domain.TrustTierMedium, Trips: 42,
			MemberSince: "Oktober 2023",
			Avatar:      "https://images.unsplash.com/photo-1568602471122-7832951cc4c5?w=150&h=150&fit=crop&crop=face",
			Bio:         "Gelegentliche Fahrten für Ausflüge.",
		},
		from: "Bamberg", to: "Munich", date: "2024-07-06", dep: "07:15",
		price: 30.00, seats: 1, duration: "2h 45min", distance: "230 km",
		route: []domain.LatLng{{49.898, 10.922}, {48.135, 11.582}},
		routeDetails: domain.RouteDetails{
			Stops:       []string{"Bamberg", "Nürnberg", "Ingolstadt", "München"},
			Description: "Fahrt über die A9. Kann Leute entlang der Strecke absetzen.",
		},
		car:   domain.Car{Model: "Audi A4", Year: 2019, Color: "Schwarz", Features: []string{"Ledersitze", "Gutes Soundsystem"}},
		rules: []string{"Nichtraucher"},
	},
}

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}
	log := logging.NewLogger(cfg.LogLevel)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("seed failed", "err", err)
		os.Exit(1)
	}
	log.Info("seed complete", "storage", cfg.Storage, "rides", len(demoRides))
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	be, err := backend.Open(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer be.Close()

	if err := be.Rides.DeleteAll(ctx); err != nil {
		return fmt.Errorf("clear rides: %w", err)
	}
	if err := be.Users.DeleteAll(ctx); err != nil {
		return fmt.Errorf("clear users: %w", err)
	}

	clk := platformclock.NewSystemClock()
	userSvc := users.NewService(be.Users, be.Rides, clk)
	rideSvc := rides.NewService(be.Rides, be.Users, clk)

	var owners []domain.UserID
	for _, u := range []users.RegisterInput{
		{Name: "Alice", Email: "alice@example.com", Password: "password"},
		{Name: "Bob", Email: "bob@example.com", Password: "password"},
	} {
		created, err := userSvc.Register(ctx, u)
		if err != nil {
			return fmt.Errorf("register %s: %w", u.Email, err)
		}
		owners = append(owners, created.ID)
	}

	for i, r := range demoRides {
		driver := r.driver
		price, seats := r.price, r.seats
		ride, err := rideSvc.Create(ctx, rides.CreateRideInput{
			UserID:       string(owners[i%len(owners)]),
			From:         r.from,
			To:           r.to,
			Date:         r.date,
			Departure:    r.dep,
			Price:        &price,
			Seats:        &seats,
			Driver:       &driver,
			Duration:     r.duration,
			Distance:     r.distance,
			Route:        r.route,
			RouteDetails: r.routeDetails,
			Car:          r.car,
			Description:  r.description,
			Rules:        r.rules,
		})
		if err != nil {
			return fmt.Errorf("create ride %s-%s: %w", r.from, r.to, err)
		}
		log.Info("ride seeded", "rideId", ride.ID, "from", ride.From, "to", ride.To, "owner", ride.Owner)
	}
	return nil
}
