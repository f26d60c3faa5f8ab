package userrepo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/rideshare-marketplace/rides-api/internal/adapters/postgres"
	"github.com/rideshare-marketplace/rides-api/internal/domain"
	"github.com/rideshare-marketplace/rides-api/internal/ports/out/userrepo"
)

const (
	kindBooked  = "booked"
	kindOffered = "offered"
)

const selectUserColumns = `
	id::text,
	name,
	email,
	password,
	notification_preferences,
	theme,
	other_setting,
	avatar,
	bio,
	rating,
	trust_tier,
	verified,
	created_at,
	updated_at
`

// Repo is a Postgres implementation of userrepo.Repository.
type Repo struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

func (r *Repo) Create(ctx context.Context, u domain.User) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	id, err := uuid.Parse(string(u.ID))
	if err != nil {
		return fmt.Errorf("invalid user id: %w", err)
	}

	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO users (
				id,
				name,
				email,
				password,
				notification_preferences,
				theme,
				other_setting,
				avatar,
				bio,
				rating,
				trust_tier,
				verified,
				created_at,
				updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		`,
			id,
			u.Name,
			u.Email,
			u.Password,
			u.Settings.NotificationPreferences,
			u.Settings.Theme,
			u.Settings.OtherSetting,
			u.Profile.Avatar,
			u.Profile.Bio,
			u.Profile.Rating,
			string(u.Profile.TrustTier),
			u.Profile.Verified,
			u.CreatedAt.UTC(),
			u.UpdatedAt.UTC(),
		)
		if err != nil {
			return mapUniqueViolation(err)
		}

		for _, rid := range u.BookedRides {
			if err := insertRef(ctx, tx, id, rid, kindBooked); err != nil {
				return err
			}
		}
		for _, rid := range u.OfferedRides {
			if err := insertRef(ctx, tx, id, rid, kindOffered); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *Repo) Update(ctx context.Context, u domain.User) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	id, err := uuid.Parse(string(u.ID))
	if err != nil {
		return fmt.Errorf("invalid user id: %w", err)
	}

	ct, err := r.pool.Exec(ctx, `
		UPDATE users
		SET name = $2,
		    email = $3,
		    password = $4,
		    notification_preferences = $5,
		    theme = $6,
		    other_setting = $7,
		    avatar = $8,
		    bio = $9,
		    rating = $10,
		    trust_tier = $11,
		    verified = $12,
		    updated_at = $13
		WHERE id = $1
	`,
		id,
		u.Name,
		u.Email,
		u.Password,
		u.Settings.NotificationPreferences,
		u.Settings.Theme,
		u.Settings.OtherSetting,
		u.Profile.Avatar,
		u.Profile.Bio,
		u.Profile.Rating,
		string(u.Profile.TrustTier),
		u.Profile.Verified,
		u.UpdatedAt.UTC(),
	)
	if err != nil {
		return mapUniqueViolation(err)
	}
	if ct.RowsAffected() == 0 {
		return userrepo.ErrNotFound
	}
	return nil
}

func (r *Repo) GetByID(ctx context.Context, id domain.UserID) (domain.User, error) {
	if r.pool == nil {
		return domain.User{}, errors.New("nil postgres pool")
	}
	uid, err := uuid.Parse(string(id))
	if err != nil {
		return domain.User{}, userrepo.ErrNotFound
	}
	row := r.pool.QueryRow(ctx, `SELECT `+selectUserColumns+` FROM users WHERE id = $1`, uid)
	return r.scanWithRefs(ctx, row)
}

func (r *Repo) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	if r.pool == nil {
		return domain.User{}, errors.New("nil postgres pool")
	}
	row := r.pool.QueryRow(ctx, `SELECT `+selectUserColumns+` FROM users WHERE lower(email) = lower($1)`, email)
	return r.scanWithRefs(ctx, row)
}

func (r *Repo) List(ctx context.Context) ([]domain.User, error) {
	if r.pool == nil {
		return nil, errors.New("nil postgres pool")
	}
	rows, err := r.pool.Query(ctx, `SELECT `+selectUserColumns+` FROM users ORDER BY seq ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.User, 0)
	idx := make(map[domain.UserID]int)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		idx[u.ID] = len(out)
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	refRows, err := r.pool.Query(ctx, `
		SELECT user_id::text, ride_id::text, kind
		FROM user_ride_refs
		ORDER BY position ASC
	`)
	if err != nil {
		return nil, err
	}
	defer refRows.Close()
	for refRows.Next() {
		var userID, rideID, kind string
		if err := refRows.Scan(&userID, &rideID, &kind); err != nil {
			return nil, err
		}
		i, ok := idx[domain.UserID(userID)]
		if !ok {
			continue
		}
		appendRef(&out[i], domain.RideID(rideID), kind)
	}
	return out, refRows.Err()
}

func (r *Repo) AddBookedRide(ctx context.Context, id domain.UserID, rideID domain.RideID) error {
	return r.addRef(ctx, id, rideID, kindBooked)
}

func (r *Repo) RemoveBookedRide(ctx context.Context, id domain.UserID, rideID domain.RideID) error {
	return r.removeRef(ctx, id, rideID, kindBooked)
}

func (r *Repo) AddOfferedRide(ctx context.Context, id domain.UserID, rideID domain.RideID) error {
	return r.addRef(ctx, id, rideID, kindOffered)
}

func (r *Repo) RemoveOfferedRide(ctx context.Context, id domain.UserID, rideID domain.RideID) error {
	return r.removeRef(ctx, id, rideID, kindOffered)
}

func (r *Repo) RemoveBookedRideFromAll(ctx context.Context, rideID domain.RideID) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	rid, err := uuid.Parse(string(rideID))
	if err != nil {
		return fmt.Errorf("invalid ride id: %w", err)
	}
	_, err = r.pool.Exec(ctx, `DELETE FROM user_ride_refs WHERE ride_id = $1 AND kind = $2`, rid, kindBooked)
	return err
}

func (r *Repo) ClearAllBookedRides(ctx context.Context) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	_, err := r.pool.Exec(ctx, `DELETE FROM user_ride_refs WHERE kind = $1`, kindBooked)
	return err
}

func (r *Repo) DeleteAll(ctx context.Context) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	_, err := r.pool.Exec(ctx, `DELETE FROM users`)
	return err
}

func (r *Repo) addRef(ctx context.Context, id domain.UserID, rideID domain.RideID, kind string) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	uid, err := uuid.Parse(string(id))
	if err != nil {
		return userrepo.ErrNotFound
	}
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		return insertRef(ctx, tx, uid, rideID, kind)
	})
}

func (r *Repo) removeRef(ctx context.Context, id domain.UserID, rideID domain.RideID, kind string) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	uid, err := uuid.Parse(string(id))
	if err != nil {
		return userrepo.ErrNotFound
	}
	rid, err := uuid.Parse(string(rideID))
	if err != nil {
		return fmt.Errorf("invalid ride id: %w", err)
	}
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, uid).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return userrepo.ErrNotFound
		}
		_, err := tx.Exec(ctx, `
			DELETE FROM user_ride_refs
			WHERE user_id = $1 AND ride_id = $2 AND kind = $3
		`, uid, rid, kind)
		return err
	})
}

func insertRef(ctx context.Context, tx pgx.Tx, uid uuid.UUID, rideID domain.RideID, kind string) error {
	rid, err := uuid.Parse(string(rideID))
	if err != nil {
		return fmt.Errorf("invalid ride id: %w", err)
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO user_ride_refs (user_id, ride_id, kind)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, kind, ride_id) DO NOTHING
	`, uid, rid, kind)
	if err != nil {
		if pe, ok := postgres.AsPgError(err); ok && pe.Code == postgres.ForeignKeyViolationCode {
			return userrepo.ErrNotFound
		}
		return err
	}
	return nil
}

func (r *Repo) scanWithRefs(ctx context.Context, row pgx.Row) (domain.User, error) {
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, userrepo.ErrNotFound
		}
		return domain.User{}, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT ride_id::text, kind
		FROM user_ride_refs
		WHERE user_id = $1
		ORDER BY position ASC
	`, string(u.ID))
	if err != nil {
		return domain.User{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var rideID, kind string
		if err := rows.Scan(&rideID, &kind); err != nil {
			return domain.User{}, err
		}
		appendRef(&u, domain.RideID(rideID), kind)
	}
	return u, rows.Err()
}

func appendRef(u *domain.User, rideID domain.RideID, kind string) {
	switch kind {
	case kindBooked:
		u.BookedRides = append(u.BookedRides, rideID)
	case kindOffered:
		u.OfferedRides = append(u.OfferedRides, rideID)
	}
}

func scanUser(row interface{ Scan(dest ...any) error }) (domain.User, error) {
	var (
		u         domain.User
		id        string
		trustTier string
	)
	if err := row.Scan(
		&id,
		&u.Name,
		&u.Email,
		&u.Password,
		&u.Settings.NotificationPreferences,
		&u.Settings.Theme,
		&u.Settings.OtherSetting,
		&u.Profile.Avatar,
		&u.Profile.Bio,
		&u.Profile.Rating,
		&trustTier,
		&u.Profile.Verified,
		&u.CreatedAt,
		&u.UpdatedAt,
	); err != nil {
		return domain.User{}, err
	}
	u.ID = domain.UserID(id)
	u.Profile.TrustTier = domain.TrustTier(trustTier)
	u.CreatedAt = u.CreatedAt.UTC()
	u.UpdatedAt = u.UpdatedAt.UTC()
	return u, nil
}

func mapUniqueViolation(err error) error {
	pe, ok := postgres.AsPgError(err)
	if !ok || pe.Code != postgres.UniqueViolationCode {
		return err
	}
	switch pe.ConstraintName {
	case postgres.UsersPKey:
		return userrepo.ErrAlreadyExists
	case postgres.UsersEmailUniqueIndex:
		return userrepo.ErrEmailTaken
	default:
		return err
	}
}
