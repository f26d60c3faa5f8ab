package riderepo

import (
	"context"
	"sync"

	"github.com/rideshare-marketplace/rides-api/internal/domain"
	"github.com/rideshare-marketplace/rides-api/internal/ports/out/riderepo"
)

// Repo is an in-memory implementation of riderepo.Repository.
// It is safe for concurrent use; seat reservation runs under the write lock.
type Repo struct {
	mu    sync.RWMutex
	byID  map[domain.RideID]domain.Ride
	order []domain.RideID
}

func NewRepo() *Repo {
	return &Repo{
		byID: make(map[domain.RideID]domain.Ride),
	}
}

func (r *Repo) Create(ctx context.Context, ride domain.Ride) error {
	_ = ctx
	if ride.ID == "" {
		return riderepo.ErrAlreadyExists // treat empty ID as invalid for now
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[ride.ID]; ok {
		return riderepo.ErrAlreadyExists
	}
	r.byID[ride.ID] = domain.CloneRide(ride)
	r.order = append(r.order, ride.ID)
	return nil
}

func (r *Repo) GetByID(ctx context.Context, id domain.RideID) (domain.Ride, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	ride, ok := r.byID[id]
	if !ok {
		return domain.Ride{}, riderepo.ErrNotFound
	}
	return domain.CloneRide(ride), nil
}

func (r *Repo) GetMany(ctx context.Context, ids []domain.RideID) (map[domain.RideID]domain.Ride, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[domain.RideID]domain.Ride, len(ids))
	for _, id := range ids {
		if ride, ok := r.byID[id]; ok {
			out[id] = domain.CloneRide(ride)
		}
	}
	return out, nil
}

func (r *Repo) List(ctx context.Context, owner domain.UserID) ([]domain.Ride, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Ride, 0, len(r.order))
	for _, id := range r.order {
		ride := r.byID[id]
		if owner != "" && ride.Owner != owner {
			continue
		}
		out = append(out, domain.CloneRide(ride))
	}
	return out, nil
}

func (r *Repo) ReserveSeat(ctx context.Context, id domain.RideID, user domain.UserID) (domain.Ride, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	ride, ok := r.byID[id]
	if !ok {
		return domain.Ride{}, riderepo.ErrNotFound
	}
	switch {
	case ride.Seats <= 0:
		return domain.Ride{}, riderepo.ErrNoSeats
	case ride.HasPassenger(user):
		return domain.Ride{}, riderepo.ErrAlreadyPassenger
	case ride.Owner == user:
		return domain.Ride{}, riderepo.ErrOwnRide
	}
	ride = domain.CloneRide(ride)
	ride.Seats--
	ride.Passengers = append(ride.Passengers, user)
	r.byID[id] = ride
	return domain.CloneRide(ride), nil
}

func (r *Repo) ReleaseSeat(ctx context.Context, id domain.RideID, user domain.UserID, unconditional bool) (domain.Ride, riderepo.Release, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	ride, ok := r.byID[id]
	if !ok {
		return domain.Ride{}, riderepo.Release{}, riderepo.ErrNotFound
	}
	ride = domain.CloneRide(ride)
	var rel riderepo.Release
	if ride.HasPassenger(user) {
		rel.WasPassenger = true
		ride.Passengers = domain.WithoutPassenger(ride.Passengers, user)
	}
	if unconditional || rel.WasPassenger {
		rel.SeatReturned = true
		ride.Seats++
	}
	r.byID[id] = ride
	return domain.CloneRide(ride), rel, nil
}

func (r *Repo) Delete(ctx context.Context, id domain.RideID) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[id]; !ok {
		return riderepo.ErrNotFound
	}
	delete(r.byID, id)
	for i, v := range r.order {
		if v == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

func (r *Repo) DeleteAll(ctx context.Context) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID = make(map[domain.RideID]domain.Ride)
	r.order = nil
	return nil
}
