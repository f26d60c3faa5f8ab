package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rideshare-marketplace/rides-api/internal/ports/out/idempotency"
)

const DefaultKeyPrefix = "rides-api:idem:"

// Store is a Redis implementation of idempotency.Store.
// Each record is one JSON string value; ttl <= 0 keeps records until evicted.
type Store struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

type recordJSON struct {
	StatusCode  int       `json:"statusCode"`
	ContentType string    `json:"contentType"`
	Body        []byte    `json:"body"`
	CreatedAt   time.Time `json:"createdAt"`
}

// NewClient builds a go-redis client for addr.
func NewClient(addr, password string) *redis.Client {
	return redis.NewClient(&redis.Options{Addr: addr, Password: password})
}

func NewStore(client *redis.Client, prefix string, ttl time.Duration) *Store {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &Store{client: client, prefix: prefix, ttl: ttl}
}

func (s *Store) Get(ctx context.Context, fp idempotency.Fingerprint) (idempotency.Record, bool, error) {
	if s.client == nil {
		return idempotency.Record{}, false, errors.New("nil redis client")
	}
	raw, err := s.client.Get(ctx, s.key(fp)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return idempotency.Record{}, false, nil
		}
		return idempotency.Record{}, false, err
	}
	var rj recordJSON
	if err := json.Unmarshal(raw, &rj); err != nil {
		return idempotency.Record{}, false, err
	}
	return idempotency.Record{
		StatusCode:  rj.StatusCode,
		ContentType: rj.ContentType,
		Body:        rj.Body,
		CreatedAt:   rj.CreatedAt.UTC(),
	}, true, nil
}

func (s *Store) Put(ctx context.Context, fp idempotency.Fingerprint, rec idempotency.Record) error {
	if s.client == nil {
		return errors.New("nil redis client")
	}
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	b, err := json.Marshal(recordJSON{
		StatusCode:  rec.StatusCode,
		ContentType: rec.ContentType,
		Body:        rec.Body,
		CreatedAt:   createdAt.UTC(),
	})
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key(fp), b, s.ttl).Err()
}

func (s *Store) key(fp idempotency.Fingerprint) string {
	return s.prefix + strings.Join([]string{
		string(fp.Actor),
		fp.Method,
		fp.Route,
		string(fp.Key),
		fp.BodyHash,
	}, "|")
}
