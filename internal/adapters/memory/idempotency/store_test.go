package idempotency

import (
	"context"
	"testing"
	"time"

	"github.com/rideshare-marketplace/rides-api/internal/domain"
	"github.com/rideshare-marketplace/rides-api/internal/ports/out/idempotency"
)

func TestStore_PutThenGet(t *testing.T) {
	t.Parallel()

	s := NewStore()
	fp := idempotency.Fingerprint{
		Key:      "k1",
		Actor:    domain.UserID("u-1"),
		Method:   "POST",
		Route:    "/api/users/{id}/book-ride",
		BodyHash: "abc123",
	}
	rec := idempotency.Record{
		StatusCode:  200,
		ContentType: "application/json",
		Body:        []byte(`{"ok":true}`),
		CreatedAt:   time.Unix(123, 0).UTC(),
	}

	if err := s.Put(context.Background(), fp, rec); err != nil {
		t.Fatalf("Put() err=%v", err)
	}

	got, ok, err := s.Get(context.Background(), fp)
	if err != nil {
		t.Fatalf("Get() err=%v", err)
	}
	if !ok {
		t.Fatalf("Get() ok=false, want true")
	}
	if got.StatusCode != rec.StatusCode || got.ContentType != rec.ContentType || string(got.Body) != string(rec.Body) {
		t.Fatalf("Get()=%+v, want %+v", got, rec)
	}
}

func TestStore_BodyIsCopied(t *testing.T) {
	t.Parallel()

	s := NewStore()
	fp := idempotency.Fingerprint{Key: "k1", Actor: "u-1", Method: "POST", Route: "/r"}
	body := []byte("abc")
	_ = s.Put(context.Background(), fp, idempotency.Record{Body: body})
	body[0] = 'x'

	got, _, _ := s.Get(context.Background(), fp)
	if string(got.Body) != "abc" {
		t.Fatalf("Get().Body=%q, want %q", got.Body, "abc")
	}
}
