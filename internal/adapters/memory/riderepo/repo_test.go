package riderepo

import (
	"context"
	"testing"

	"github.com/rideshare-marketplace/rides-api/internal/domain"
)

func TestRepo_GetReturnsCopy(t *testing.T) {
	t.Parallel()

	r := NewRepo()
	ride := domain.Ride{ID: "r1", Owner: "u1", Seats: 2, Capacity: 2, Rules: []string{"No pets"}}
	if err := r.Create(context.Background(), ride); err != nil {
		t.Fatalf("Create() err=%v", err)
	}
	ride.Rules[0] = "changed"

	got, _ := r.GetByID(context.Background(), "r1")
	if got.Rules[0] != "No pets" {
		t.Fatalf("stored Rules aliased caller slice: %v", got.Rules)
	}
	got.Rules[0] = "changed"
	again, _ := r.GetByID(context.Background(), "r1")
	if again.Rules[0] != "No pets" {
		t.Fatalf("stored Rules mutated through returned value: %v", again.Rules)
	}
}

func TestRepo_DeleteKeepsOrderOfRemaining(t *testing.T) {
	t.Parallel()

	r := NewRepo()
	for _, id := range []domain.RideID{"r1", "r2", "r3"} {
		_ = r.Create(context.Background(), domain.Ride{ID: id, Owner: "u1", Seats: 1, Capacity: 1})
	}
	if err := r.Delete(context.Background(), "r2"); err != nil {
		t.Fatalf("Delete() err=%v", err)
	}
	got, _ := r.List(context.Background(), "")
	if len(got) != 2 || got[0].ID != "r1" || got[1].ID != "r3" {
		t.Fatalf("List()=%v, want [r1 r3]", got)
	}
}
