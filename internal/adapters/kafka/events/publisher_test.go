package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/rideshare-marketplace/rides-api/internal/domain"
	"github.com/rideshare-marketplace/rides-api/internal/ports/out/events"
)

type fakeWriter struct {
	msgs     []kafka.Message
	err      error
	closed   bool
	deadline bool
}

func (f *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	_, f.deadline = ctx.Deadline()
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func TestPublisher_WritesKeyedJSON(t *testing.T) {
	t.Parallel()

	w := &fakeWriter{}
	p := &Publisher{writer: w, timeout: time.Second}
	at := time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC)
	e := events.Event{
		Type:       events.TypeRideBooked,
		RideID:     domain.RideID("r1"),
		UserID:     domain.UserID("u1"),
		Seats:      1,
		OccurredAt: at,
	}
	if err := p.Publish(context.Background(), e); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if len(w.msgs) != 1 {
		t.Fatalf("messages=%d, want 1", len(w.msgs))
	}
	msg := w.msgs[0]
	if string(msg.Key) != "r1" {
		t.Fatalf("key=%q, want r1", msg.Key)
	}
	if len(msg.Headers) != 1 || string(msg.Headers[0].Value) != "ride.booked" {
		t.Fatalf("headers=%v", msg.Headers)
	}
	if !w.deadline {
		t.Fatalf("expected a write deadline")
	}
	var got map[string]any
	if err := json.Unmarshal(msg.Value, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got["type"] != "ride.booked" || got["rideId"] != "r1" || got["userId"] != "u1" || got["seats"] != float64(1) {
		t.Fatalf("payload=%v", got)
	}

	if err := p.Close(); err != nil || !w.closed {
		t.Fatalf("Close: err=%v closed=%v", err, w.closed)
	}
}

func TestPublisher_ReturnsWriteError(t *testing.T) {
	t.Parallel()

	boom := errors.New("broker down")
	p := &Publisher{writer: &fakeWriter{err: boom}}
	if err := p.Publish(context.Background(), events.Event{Type: events.TypeRideCreated}); !errors.Is(err, boom) {
		t.Fatalf("err=%v, want %v", err, boom)
	}
}
