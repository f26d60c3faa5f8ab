package riderepo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/rideshare-marketplace/rides-api/internal/adapters/postgres"
	"github.com/rideshare-marketplace/rides-api/internal/domain"
	"github.com/rideshare-marketplace/rides-api/internal/ports/out/riderepo"
)

const selectRideColumns = `
	id::text,
	owner_id::text,
	driver,
	from_place,
	to_place,
	ride_date,
	departure,
	price,
	seats,
	capacity,
	duration,
	distance,
	route,
	route_details,
	car,
	description,
	rules,
	created_at,
	updated_at
`

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repo is a Postgres implementation of riderepo.Repository.
// Seat reservation locks the ride row (SELECT ... FOR UPDATE) for the length of one transaction.
type Repo struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

type driverJSON struct {
	Name        string  `json:"name"`
	Rating      float64 `json:"rating"`
	TrustTier   string  `json:"trustScore"`
	Avatar      string  `json:"avatar"`
	Trips       int     `json:"trips"`
	MemberSince string  `json:"memberSince"`
	Verified    bool    `json:"verified"`
	Bio         string  `json:"bio"`
}

type routeDetailsJSON struct {
	Stops       []string `json:"stops"`
	Description string   `json:"description"`
}

type carJSON struct {
	Model    string   `json:"model"`
	Year     int      `json:"year"`
	Color    string   `json:"color"`
	Features []string `json:"features"`
}

func (r *Repo) Create(ctx context.Context, ride domain.Ride) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	id, err := uuid.Parse(string(ride.ID))
	if err != nil {
		return fmt.Errorf("invalid ride id: %w", err)
	}
	owner, err := uuid.Parse(string(ride.Owner))
	if err != nil {
		return fmt.Errorf("invalid owner id: %w", err)
	}

	driver, err := json.Marshal(driverJSON{
		Name:        ride.Driver.Name,
		Rating:      ride.Driver.Rating,
		TrustTier:   string(ride.Driver.TrustTier),
		Avatar:      ride.Driver.Avatar,
		Trips:       ride.Driver.Trips,
		MemberSince: ride.Driver.MemberSince,
		Verified:    ride.Driver.Verified,
		Bio:         ride.Driver.Bio,
	})
	if err != nil {
		return err
	}
	route := ride.Route
	if route == nil {
		route = []domain.LatLng{}
	}
	routeJSON, err := json.Marshal(route)
	if err != nil {
		return err
	}
	details, err := json.Marshal(routeDetailsJSON{Stops: ride.RouteDetails.Stops, Description: ride.RouteDetails.Description})
	if err != nil {
		return err
	}
	car, err := json.Marshal(carJSON{Model: ride.Car.Model, Year: ride.Car.Year, Color: ride.Car.Color, Features: ride.Car.Features})
	if err != nil {
		return err
	}
	rules := ride.Rules
	if rules == nil {
		rules = []string{}
	}

	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO rides (
				id,
				owner_id,
				driver,
				from_place,
				to_place,
				ride_date,
				departure,
				price,
				seats,
				capacity,
				duration,
				distance,
				route,
				route_details,
				car,
				description,
				rules,
				created_at,
				updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		`,
			id,
			owner,
			driver,
			ride.From,
			ride.To,
			ride.Date,
			ride.Departure,
			ride.Price,
			ride.Seats,
			ride.Capacity,
			ride.Duration,
			ride.Distance,
			routeJSON,
			details,
			car,
			ride.Description,
			rules,
			ride.CreatedAt.UTC(),
			ride.UpdatedAt.UTC(),
		)
		if err != nil {
			if pe, ok := postgres.AsPgError(err); ok && pe.Code == postgres.UniqueViolationCode && pe.ConstraintName == postgres.RidesPKey {
				return riderepo.ErrAlreadyExists
			}
			return err
		}
		for _, p := range ride.Passengers {
			if _, err := tx.Exec(ctx, `
				INSERT INTO ride_passengers (ride_id, user_id) VALUES ($1, $2)
				ON CONFLICT DO NOTHING
			`, id, string(p)); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *Repo) GetByID(ctx context.Context, id domain.RideID) (domain.Ride, error) {
	if r.pool == nil {
		return domain.Ride{}, errors.New("nil postgres pool")
	}
	rid, err := uuid.Parse(string(id))
	if err != nil {
		return domain.Ride{}, riderepo.ErrNotFound
	}
	return getRide(ctx, r.pool, rid)
}

func (r *Repo) GetMany(ctx context.Context, ids []domain.RideID) (map[domain.RideID]domain.Ride, error) {
	if r.pool == nil {
		return nil, errors.New("nil postgres pool")
	}
	params := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, err := uuid.Parse(string(id)); err == nil {
			params = append(params, string(id))
		}
	}
	out := make(map[domain.RideID]domain.Ride, len(params))
	if len(params) == 0 {
		return out, nil
	}
	rides, err := queryRides(ctx, r.pool, `WHERE id = ANY($1::uuid[])`, params)
	if err != nil {
		return nil, err
	}
	for _, ride := range rides {
		out[ride.ID] = ride
	}
	return out, nil
}

func (r *Repo) List(ctx context.Context, owner domain.UserID) ([]domain.Ride, error) {
	if r.pool == nil {
		return nil, errors.New("nil postgres pool")
	}
	if owner == "" {
		return queryRides(ctx, r.pool, ``)
	}
	oid, err := uuid.Parse(string(owner))
	if err != nil {
		return []domain.Ride{}, nil
	}
	return queryRides(ctx, r.pool, `WHERE owner_id = $1`, oid)
}

func (r *Repo) ReserveSeat(ctx context.Context, id domain.RideID, user domain.UserID) (domain.Ride, error) {
	if r.pool == nil {
		return domain.Ride{}, errors.New("nil postgres pool")
	}
	rid, err := uuid.Parse(string(id))
	if err != nil {
		return domain.Ride{}, riderepo.ErrNotFound
	}
	uid, err := uuid.Parse(string(user))
	if err != nil {
		return domain.Ride{}, fmt.Errorf("invalid user id: %w", err)
	}

	var out domain.Ride
	err = pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var (
			seats int
			owner string
		)
		if err := tx.QueryRow(ctx, `SELECT seats, owner_id::text FROM rides WHERE id = $1 FOR UPDATE`, rid).Scan(&seats, &owner); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return riderepo.ErrNotFound
			}
			return err
		}
		if seats <= 0 {
			return riderepo.ErrNoSeats
		}
		var booked bool
		if err := tx.QueryRow(ctx, `
			SELECT EXISTS (SELECT 1 FROM ride_passengers WHERE ride_id = $1 AND user_id = $2)
		`, rid, uid).Scan(&booked); err != nil {
			return err
		}
		if booked {
			return riderepo.ErrAlreadyPassenger
		}
		if owner == uid.String() {
			return riderepo.ErrOwnRide
		}

		if _, err := tx.Exec(ctx, `UPDATE rides SET seats = seats - 1 WHERE id = $1`, rid); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `INSERT INTO ride_passengers (ride_id, user_id) VALUES ($1, $2)`, rid, uid); err != nil {
			return err
		}
		ride, err := getRide(ctx, tx, rid)
		if err != nil {
			return err
		}
		out = ride
		return nil
	})
	if err != nil {
		return domain.Ride{}, err
	}
	return out, nil
}

func (r *Repo) ReleaseSeat(ctx context.Context, id domain.RideID, user domain.UserID, unconditional bool) (domain.Ride, riderepo.Release, error) {
	if r.pool == nil {
		return domain.Ride{}, riderepo.Release{}, errors.New("nil postgres pool")
	}
	rid, err := uuid.Parse(string(id))
	if err != nil {
		return domain.Ride{}, riderepo.Release{}, riderepo.ErrNotFound
	}
	uid, err := uuid.Parse(string(user))
	if err != nil {
		return domain.Ride{}, riderepo.Release{}, fmt.Errorf("invalid user id: %w", err)
	}

	var (
		out domain.Ride
		rel riderepo.Release
	)
	err = pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var seats int
		if err := tx.QueryRow(ctx, `SELECT seats FROM rides WHERE id = $1 FOR UPDATE`, rid).Scan(&seats); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return riderepo.ErrNotFound
			}
			return err
		}
		ct, err := tx.Exec(ctx, `DELETE FROM ride_passengers WHERE ride_id = $1 AND user_id = $2`, rid, uid)
		if err != nil {
			return err
		}
		rel.WasPassenger = ct.RowsAffected() > 0
		if unconditional || rel.WasPassenger {
			if _, err := tx.Exec(ctx, `UPDATE rides SET seats = seats + 1 WHERE id = $1`, rid); err != nil {
				return err
			}
			rel.SeatReturned = true
		}
		ride, err := getRide(ctx, tx, rid)
		if err != nil {
			return err
		}
		out = ride
		return nil
	})
	if err != nil {
		return domain.Ride{}, riderepo.Release{}, err
	}
	return out, rel, nil
}

func (r *Repo) Delete(ctx context.Context, id domain.RideID) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	rid, err := uuid.Parse(string(id))
	if err != nil {
		return riderepo.ErrNotFound
	}
	ct, err := r.pool.Exec(ctx, `DELETE FROM rides WHERE id = $1`, rid)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return riderepo.ErrNotFound
	}
	return nil
}

func (r *Repo) DeleteAll(ctx context.Context) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	_, err := r.pool.Exec(ctx, `DELETE FROM rides`)
	return err
}

func getRide(ctx context.Context, q querier, id uuid.UUID) (domain.Ride, error) {
	rides, err := queryRides(ctx, q, `WHERE id = $1`, id)
	if err != nil {
		return domain.Ride{}, err
	}
	if len(rides) == 0 {
		return domain.Ride{}, riderepo.ErrNotFound
	}
	return rides[0], nil
}

// queryRides loads rides matching where (in creation order) together with their passengers.
func queryRides(ctx context.Context, q querier, where string, args ...any) ([]domain.Ride, error) {
	rows, err := q.Query(ctx, `SELECT `+selectRideColumns+` FROM rides `+where+` ORDER BY seq ASC`, args...)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Ride, 0)
	idx := make(map[domain.RideID]int)
	ids := make([]string, 0)
	for rows.Next() {
		ride, err := scanRide(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		idx[ride.ID] = len(out)
		ids = append(ids, string(ride.ID))
		out = append(out, ride)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return out, nil
	}

	prows, err := q.Query(ctx, `
		SELECT ride_id::text, user_id::text
		FROM ride_passengers
		WHERE ride_id = ANY($1::uuid[])
		ORDER BY position ASC
	`, ids)
	if err != nil {
		return nil, err
	}
	defer prows.Close()
	for prows.Next() {
		var rideID, userID string
		if err := prows.Scan(&rideID, &userID); err != nil {
			return nil, err
		}
		if i, ok := idx[domain.RideID(rideID)]; ok {
			out[i].Passengers = append(out[i].Passengers, domain.UserID(userID))
		}
	}
	return out, prows.Err()
}

func scanRide(row interface{ Scan(dest ...any) error }) (domain.Ride, error) {
	var (
		ride                                    domain.Ride
		id, owner                               string
		driverRaw, routeRaw, detailsRaw, carRaw []byte
	)
	if err := row.Scan(
		&id,
		&owner,
		&driverRaw,
		&ride.From,
		&ride.To,
		&ride.Date,
		&ride.Departure,
		&ride.Price,
		&ride.Seats,
		&ride.Capacity,
		&ride.Duration,
		&ride.Distance,
		&routeRaw,
		&detailsRaw,
		&carRaw,
		&ride.Description,
		&ride.Rules,
		&ride.CreatedAt,
		&ride.UpdatedAt,
	); err != nil {
		return domain.Ride{}, err
	}
	ride.ID = domain.RideID(id)
	ride.Owner = domain.UserID(owner)
	ride.CreatedAt = ride.CreatedAt.UTC()
	ride.UpdatedAt = ride.UpdatedAt.UTC()

	var d driverJSON
	if err := json.Unmarshal(driverRaw, &d); err != nil {
		return domain.Ride{}, fmt.Errorf("decode driver: %w", err)
	}
	ride.Driver = domain.DriverSnapshot{
		Name:        d.Name,
		Rating:      d.Rating,
		TrustTier:   domain.TrustTier(d.TrustTier),
		Avatar:      d.Avatar,
		Trips:       d.Trips,
		MemberSince: d.MemberSince,
		Verified:    d.Verified,
		Bio:         d.Bio,
	}
	if err := json.Unmarshal(routeRaw, &ride.Route); err != nil {
		return domain.Ride{}, fmt.Errorf("decode route: %w", err)
	}
	var details routeDetailsJSON
	if err := json.Unmarshal(detailsRaw, &details); err != nil {
		return domain.Ride{}, fmt.Errorf("decode route details: %w", err)
	}
	ride.RouteDetails = domain.RouteDetails{Stops: details.Stops, Description: details.Description}
	var car carJSON
	if err := json.Unmarshal(carRaw, &car); err != nil {
		return domain.Ride{}, fmt.Errorf("decode car: %w", err)
	}
	ride.Car = domain.Car{Model: car.Model, Year: car.Year, Color: car.Color, Features: car.Features}
	return ride, nil
}
