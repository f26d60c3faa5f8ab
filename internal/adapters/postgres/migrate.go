package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Constraint and index names referenced by the repositories.
const (
	UsersPKey             = "users_pkey"
	UsersEmailUniqueIndex = "users_email_lower_unique"
	RidesPKey             = "rides_pkey"
)

// Tables lists every table owned by the service, children first.
var Tables = []string{"idempotency_keys", "ride_passengers", "rides", "user_ride_refs", "users"}

// Migrate applies the schema. Statements are idempotent.
//
// Reference lists (user_ride_refs) and passenger lists (ride_passengers.user_id) carry no
// foreign key to the referenced record, so a deleted ride can leave dangling references.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id UUID NOT NULL,
			seq BIGSERIAL NOT NULL,
			name TEXT NOT NULL,
			email TEXT NOT NULL,
			password TEXT NOT NULL,
			notification_preferences BOOLEAN NOT NULL DEFAULT FALSE,
			theme TEXT NOT NULL DEFAULT 'light',
			other_setting TEXT NOT NULL DEFAULT '',
			avatar TEXT NOT NULL DEFAULT '',
			bio TEXT NOT NULL DEFAULT '',
			rating DOUBLE PRECISION NOT NULL DEFAULT 0,
			trust_tier TEXT NOT NULL DEFAULT 'medium',
			verified BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL,
			CONSTRAINT users_pkey PRIMARY KEY (id)
		);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS users_email_lower_unique ON users (lower(email));`,
		`CREATE TABLE IF NOT EXISTS user_ride_refs (
			user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			ride_id UUID NOT NULL,
			kind TEXT NOT NULL CHECK (kind IN ('booked', 'offered')),
			position BIGSERIAL NOT NULL,
			PRIMARY KEY (user_id, kind, ride_id)
		);`,
		`CREATE INDEX IF NOT EXISTS user_ride_refs_ride_idx ON user_ride_refs (ride_id);`,
		`CREATE TABLE IF NOT EXISTS rides (
			id UUID NOT NULL,
			seq BIGSERIAL NOT NULL,
			owner_id UUID NOT NULL,
			driver JSONB NOT NULL DEFAULT '{}'::jsonb,
			from_place TEXT NOT NULL,
			to_place TEXT NOT NULL,
			ride_date TEXT NOT NULL,
			departure TEXT NOT NULL,
			price DOUBLE PRECISION NOT NULL CHECK (price >= 0),
			seats INTEGER NOT NULL,
			capacity INTEGER NOT NULL,
			duration TEXT NOT NULL DEFAULT '',
			distance TEXT NOT NULL DEFAULT '',
			route JSONB NOT NULL DEFAULT '[]'::jsonb,
			route_details JSONB NOT NULL DEFAULT '{}'::jsonb,
			car JSONB NOT NULL DEFAULT '{}'::jsonb,
			description TEXT NOT NULL DEFAULT '',
			rules TEXT[] NOT NULL DEFAULT '{}',
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL,
			CONSTRAINT rides_pkey PRIMARY KEY (id)
		);`,
		`CREATE INDEX IF NOT EXISTS rides_owner_idx ON rides (owner_id, seq);`,
		`CREATE TABLE IF NOT EXISTS ride_passengers (
			ride_id UUID NOT NULL REFERENCES rides(id) ON DELETE CASCADE,
			user_id UUID NOT NULL,
			position BIGSERIAL NOT NULL,
			PRIMARY KEY (ride_id, user_id)
		);`,
		`CREATE TABLE IF NOT EXISTS idempotency_keys (
			idempotency_key TEXT NOT NULL,
			actor_id TEXT NOT NULL,
			method TEXT NOT NULL,
			route TEXT NOT NULL,
			body_hash TEXT NOT NULL,
			status_code INTEGER NOT NULL,
			content_type TEXT NOT NULL,
			body BYTEA NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (idempotency_key, actor_id, method, route, body_hash)
		);`,
	}
	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply migrations: %w", err)
		}
	}
	return nil
}
