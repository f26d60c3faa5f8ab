package riderepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	mongoadapter "github.com/rideshare-marketplace/rides-api/internal/adapters/mongo"
	"github.com/rideshare-marketplace/rides-api/internal/domain"
	"github.com/rideshare-marketplace/rides-api/internal/ports/out/riderepo"
)

const maxReserveAttempts = 3

// ErrReservationContended is returned when the ride kept changing under ReserveSeat.
var ErrReservationContended = errors.New("seat reservation contended")

type driverDoc struct {
	Name        string  `bson:"name"`
	Rating      float64 `bson:"rating"`
	TrustScore  string  `bson:"trustScore"`
	Avatar      string  `bson:"avatar"`
	Trips       int     `bson:"trips"`
	MemberSince string  `bson:"memberSince"`
	Verified    bool    `bson:"verified"`
	Bio         string  `bson:"bio"`
}

type routeDetailsDoc struct {
	Stops       []string `bson:"stops"`
	Description string   `bson:"description"`
}

type carDoc struct {
	Model    string   `bson:"model"`
	Year     int      `bson:"year"`
	Color    string   `bson:"color"`
	Features []string `bson:"features"`
}

type rideDoc struct {
	ID           string          `bson:"_id"`
	Seq          int64           `bson:"seq"`
	OwnerID      string          `bson:"ownerId"`
	Driver       driverDoc       `bson:"driver"`
	From         string          `bson:"from"`
	To           string          `bson:"to"`
	Date         string          `bson:"date"`
	Departure    string          `bson:"departure"`
	Price        float64         `bson:"price"`
	Seats        int             `bson:"seats"`
	Capacity     int             `bson:"capacity"`
	Passengers   []string        `bson:"passengers"`
	Duration     string          `bson:"duration"`
	Distance     string          `bson:"distance"`
	Route        [][]float64     `bson:"route"`
	RouteDetails routeDetailsDoc `bson:"routeDetails"`
	Car          carDoc          `bson:"car"`
	Description  string          `bson:"description"`
	Rules        []string        `bson:"rules"`
	CreatedAt    time.Time       `bson:"createdAt"`
	UpdatedAt    time.Time       `bson:"updatedAt"`
}

// Repo is a MongoDB implementation of riderepo.Repository.
// Seat reservation is a single filtered FindOneAndUpdate, so the check and the write are
// one atomic document update.
type Repo struct {
	db   *mongo.Database
	coll *mongo.Collection
}

func NewRepo(db *mongo.Database) *Repo {
	return &Repo{db: db, coll: db.Collection(mongoadapter.RidesCollection)}
}

func (r *Repo) Create(ctx context.Context, ride domain.Ride) error {
	if ride.ID == "" {
		return errors.New("empty ride id")
	}
	seq, err := mongoadapter.NextSeq(ctx, r.db, mongoadapter.RidesCollection)
	if err != nil {
		return err
	}
	doc := toDoc(ride)
	doc.Seq = seq
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return riderepo.ErrAlreadyExists
		}
		return err
	}
	return nil
}

func (r *Repo) GetByID(ctx context.Context, id domain.RideID) (domain.Ride, error) {
	var doc rideDoc
	if err := r.coll.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.Ride{}, riderepo.ErrNotFound
		}
		return domain.Ride{}, err
	}
	return fromDoc(doc), nil
}

func (r *Repo) GetMany(ctx context.Context, ids []domain.RideID) (map[domain.RideID]domain.Ride, error) {
	out := make(map[domain.RideID]domain.Ride, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, string(id))
	}
	rides, err := r.find(ctx, bson.M{"_id": bson.M{"$in": keys}})
	if err != nil {
		return nil, err
	}
	for _, ride := range rides {
		out[ride.ID] = ride
	}
	return out, nil
}

func (r *Repo) List(ctx context.Context, owner domain.UserID) ([]domain.Ride, error) {
	filter := bson.M{}
	if owner != "" {
		filter["ownerId"] = string(owner)
	}
	return r.find(ctx, filter)
}

func (r *Repo) ReserveSeat(ctx context.Context, id domain.RideID, user domain.UserID) (domain.Ride, error) {
	uid := string(user)
	for attempt := 0; attempt < maxReserveAttempts; attempt++ {
		var doc rideDoc
		err := r.coll.FindOneAndUpdate(ctx,
			bson.M{
				"_id":        string(id),
				"seats":      bson.M{"$gt": 0},
				"passengers": bson.M{"$ne": uid},
				"ownerId":    bson.M{"$ne": uid},
			},
			bson.M{
				"$inc":  bson.M{"seats": -1},
				"$push": bson.M{"passengers": uid},
			},
			options.FindOneAndUpdate().SetReturnDocument(options.After),
		).Decode(&doc)
		if err == nil {
			return fromDoc(doc), nil
		}
		if !errors.Is(err, mongo.ErrNoDocuments) {
			return domain.Ride{}, err
		}

		// The filter did not match: read the ride back to report which check failed.
		current, err := r.GetByID(ctx, id)
		if err != nil {
			return domain.Ride{}, err
		}
		if err := reservationMiss(current, user); err != nil {
			return domain.Ride{}, err
		}
		// The seat state changed between the update and the read; try again.
	}
	return domain.Ride{}, fmt.Errorf("reserve seat on ride %s: %w", id, ErrReservationContended)
}

// reservationMiss explains why the reservation filter did not match current. A nil result
// means current would now pass the filter.
func reservationMiss(current domain.Ride, user domain.UserID) error {
	switch {
	case current.Seats <= 0:
		return riderepo.ErrNoSeats
	case current.HasPassenger(user):
		return riderepo.ErrAlreadyPassenger
	case current.Owner == user:
		return riderepo.ErrOwnRide
	}
	return nil
}

func (r *Repo) ReleaseSeat(ctx context.Context, id domain.RideID, user domain.UserID, unconditional bool) (domain.Ride, riderepo.Release, error) {
	uid := string(user)
	filter := bson.M{"_id": string(id)}
	if !unconditional {
		filter["passengers"] = uid
	}
	var before rideDoc
	err := r.coll.FindOneAndUpdate(ctx,
		filter,
		bson.M{
			"$inc":  bson.M{"seats": 1},
			"$pull": bson.M{"passengers": uid},
		},
		options.FindOneAndUpdate().SetReturnDocument(options.Before),
	).Decode(&before)
	switch {
	case err == nil:
		ride, err := r.GetByID(ctx, id)
		if err != nil {
			return domain.Ride{}, riderepo.Release{}, err
		}
		rel := riderepo.Release{
			WasPassenger: fromDoc(before).HasPassenger(user),
			SeatReturned: true,
		}
		return ride, rel, nil
	case errors.Is(err, mongo.ErrNoDocuments):
		// Either the ride is gone or, under strict release, the user was not a passenger.
		ride, err := r.GetByID(ctx, id)
		if err != nil {
			return domain.Ride{}, riderepo.Release{}, err
		}
		return ride, riderepo.Release{}, nil
	default:
		return domain.Ride{}, riderepo.Release{}, err
	}
}

func (r *Repo) Delete(ctx context.Context, id domain.RideID) error {
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": string(id)})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return riderepo.ErrNotFound
	}
	return nil
}

func (r *Repo) DeleteAll(ctx context.Context) error {
	_, err := r.coll.DeleteMany(ctx, bson.M{})
	return err
}

func (r *Repo) find(ctx context.Context, filter bson.M) ([]domain.Ride, error) {
	cur, err := r.coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "seq", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var docs []rideDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]domain.Ride, 0, len(docs))
	for _, d := range docs {
		out = append(out, fromDoc(d))
	}
	return out, nil
}

func toDoc(ride domain.Ride) rideDoc {
	doc := rideDoc{
		ID:      string(ride.ID),
		OwnerID: string(ride.Owner),
		Driver: driverDoc{
			Name:        ride.Driver.Name,
			Rating:      ride.Driver.Rating,
			TrustScore:  string(ride.Driver.TrustTier),
			Avatar:      ride.Driver.Avatar,
			Trips:       ride.Driver.Trips,
			MemberSince: ride.Driver.MemberSince,
			Verified:    ride.Driver.Verified,
			Bio:         ride.Driver.Bio,
		},
		From:       ride.From,
		To:         ride.To,
		Date:       ride.Date,
		Departure:  ride.Departure,
		Price:      ride.Price,
		Seats:      ride.Seats,
		Capacity:   ride.Capacity,
		Passengers: make([]string, 0, len(ride.Passengers)),
		Duration:   ride.Duration,
		Distance:   ride.Distance,
		Route:      make([][]float64, 0, len(ride.Route)),
		RouteDetails: routeDetailsDoc{
			Stops:       nonNil(ride.RouteDetails.Stops),
			Description: ride.RouteDetails.Description,
		},
		Car: carDoc{
			Model:    ride.Car.Model,
			Year:     ride.Car.Year,
			Color:    ride.Car.Color,
			Features: nonNil(ride.Car.Features),
		},
		Description: ride.Description,
		Rules:       nonNil(ride.Rules),
		CreatedAt:   ride.CreatedAt.UTC(),
		UpdatedAt:   ride.UpdatedAt.UTC(),
	}
	for _, p := range ride.Passengers {
		doc.Passengers = append(doc.Passengers, string(p))
	}
	for _, pt := range ride.Route {
		doc.Route = append(doc.Route, []float64{pt[0], pt[1]})
	}
	return doc
}

func fromDoc(d rideDoc) domain.Ride {
	ride := domain.Ride{
		ID:    domain.RideID(d.ID),
		Owner: domain.UserID(d.OwnerID),
		Driver: domain.DriverSnapshot{
			Name:        d.Driver.Name,
			Rating:      d.Driver.Rating,
			TrustTier:   domain.TrustTier(d.Driver.TrustScore),
			Avatar:      d.Driver.Avatar,
			Trips:       d.Driver.Trips,
			MemberSince: d.Driver.MemberSince,
			Verified:    d.Driver.Verified,
			Bio:         d.Driver.Bio,
		},
		From:      d.From,
		To:        d.To,
		Date:      d.Date,
		Departure: d.Departure,
		Price:     d.Price,
		Seats:     d.Seats,
		Capacity:  d.Capacity,
		Duration:  d.Duration,
		Distance:  d.Distance,
		RouteDetails: domain.RouteDetails{
			Stops:       d.RouteDetails.Stops,
			Description: d.RouteDetails.Description,
		},
		Car: domain.Car{
			Model:    d.Car.Model,
			Year:     d.Car.Year,
			Color:    d.Car.Color,
			Features: d.Car.Features,
		},
		Description: d.Description,
		Rules:       d.Rules,
		CreatedAt:   d.CreatedAt.UTC(),
		UpdatedAt:   d.UpdatedAt.UTC(),
	}
	for _, p := range d.Passengers {
		ride.Passengers = append(ride.Passengers, domain.UserID(p))
	}
	for _, pt := range d.Route {
		if len(pt) == 2 {
			ride.Route = append(ride.Route, domain.LatLng{pt[0], pt[1]})
		}
	}
	return ride
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
