package events

import (
	"context"
	"sync"

	"github.com/rideshare-marketplace/rides-api/internal/ports/out/events"
)

// Recorder is an in-memory events.Publisher that keeps every published event.
// It is safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func NewRecorder() *Recorder { return &Recorder{} }

// FailWith makes Publish return err (the event is not recorded). Pass nil to reset.
func (r *Recorder) FailWith(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

func (r *Recorder) Publish(ctx context.Context, e events.Event) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, e)
	return nil
}

// Events returns a copy of the recorded events in publish order.
func (r *Recorder) Events() []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]events.Event(nil), r.events...)
}

// Types returns the recorded event types in publish order.
func (r *Recorder) Types() []events.Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.Type, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}
