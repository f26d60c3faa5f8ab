package userrepo

import (
	"context"
	"strings"
	"sync"

	"github.com/rideshare-marketplace/rides-api/internal/domain"
	"github.com/rideshare-marketplace/rides-api/internal/ports/out/userrepo"
)

// Repo is an in-memory implementation of userrepo.Repository.
// It is safe for concurrent use.
type Repo struct {
	mu sync.RWMutex

	byID      map[domain.UserID]domain.User
	idByEmail map[string]domain.UserID
	// order keeps creation order for List.
	order []domain.UserID

	// failAddBooked, when set, makes AddBookedRide fail. Used by tests that exercise compensation.
	failAddBooked error
}

func NewRepo() *Repo {
	return &Repo{
		byID:      make(map[domain.UserID]domain.User),
		idByEmail: make(map[string]domain.UserID),
	}
}

// FailAddBookedRideForTest makes every subsequent AddBookedRide return err. Pass nil to reset.
func (r *Repo) FailAddBookedRideForTest(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failAddBooked = err
}

func emailKey(email string) string { return strings.ToLower(strings.TrimSpace(email)) }

func (r *Repo) Create(ctx context.Context, u domain.User) error {
	_ = ctx
	if u.ID == "" {
		return userrepo.ErrAlreadyExists // treat empty ID as invalid; app validates before calling
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[u.ID]; ok {
		return userrepo.ErrAlreadyExists
	}
	if _, ok := r.idByEmail[emailKey(u.Email)]; ok {
		return userrepo.ErrEmailTaken
	}

	r.byID[u.ID] = domain.CloneUser(u)
	r.idByEmail[emailKey(u.Email)] = u.ID
	r.order = append(r.order, u.ID)
	return nil
}

func (r *Repo) Update(ctx context.Context, u domain.User) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.byID[u.ID]
	if !ok {
		return userrepo.ErrNotFound
	}
	oldKey, newKey := emailKey(existing.Email), emailKey(u.Email)
	if oldKey != newKey {
		if _, taken := r.idByEmail[newKey]; taken {
			return userrepo.ErrEmailTaken
		}
		delete(r.idByEmail, oldKey)
		r.idByEmail[newKey] = u.ID
	}

	next := domain.CloneUser(u)
	next.BookedRides = existing.BookedRides
	next.OfferedRides = existing.OfferedRides
	next.CreatedAt = existing.CreatedAt
	r.byID[u.ID] = next
	return nil
}

func (r *Repo) GetByID(ctx context.Context, id domain.UserID) (domain.User, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.byID[id]
	if !ok {
		return domain.User{}, userrepo.ErrNotFound
	}
	return domain.CloneUser(u), nil
}

func (r *Repo) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.idByEmail[emailKey(email)]
	if !ok {
		return domain.User{}, userrepo.ErrNotFound
	}
	return domain.CloneUser(r.byID[id]), nil
}

func (r *Repo) List(ctx context.Context) ([]domain.User, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.User, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, domain.CloneUser(r.byID[id]))
	}
	return out, nil
}

func (r *Repo) AddBookedRide(ctx context.Context, id domain.UserID, rideID domain.RideID) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failAddBooked != nil {
		return r.failAddBooked
	}
	return r.mutate(id, func(u *domain.User) {
		if !domain.HasRideID(u.BookedRides, rideID) {
			u.BookedRides = append(u.BookedRides, rideID)
		}
	})
}

func (r *Repo) RemoveBookedRide(ctx context.Context, id domain.UserID, rideID domain.RideID) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mutate(id, func(u *domain.User) {
		u.BookedRides = domain.WithoutRideID(u.BookedRides, rideID)
	})
}

func (r *Repo) AddOfferedRide(ctx context.Context, id domain.UserID, rideID domain.RideID) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mutate(id, func(u *domain.User) {
		if !domain.HasRideID(u.OfferedRides, rideID) {
			u.OfferedRides = append(u.OfferedRides, rideID)
		}
	})
}

func (r *Repo) RemoveOfferedRide(ctx context.Context, id domain.UserID, rideID domain.RideID) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mutate(id, func(u *domain.User) {
		u.OfferedRides = domain.WithoutRideID(u.OfferedRides, rideID)
	})
}

func (r *Repo) RemoveBookedRideFromAll(ctx context.Context, rideID domain.RideID) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, u := range r.byID {
		if domain.HasRideID(u.BookedRides, rideID) {
			u.BookedRides = domain.WithoutRideID(u.BookedRides, rideID)
			r.byID[id] = u
		}
	}
	return nil
}

func (r *Repo) ClearAllBookedRides(ctx context.Context) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, u := range r.byID {
		u.BookedRides = nil
		r.byID[id] = u
	}
	return nil
}

func (r *Repo) DeleteAll(ctx context.Context) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID = make(map[domain.UserID]domain.User)
	r.idByEmail = make(map[string]domain.UserID)
	r.order = nil
	return nil
}

// mutate applies fn to the stored user. Caller holds the write lock.
func (r *Repo) mutate(id domain.UserID, fn func(u *domain.User)) error {
	u, ok := r.byID[id]
	if !ok {
		return userrepo.ErrNotFound
	}
	u = domain.CloneUser(u)
	fn(&u)
	r.byID[id] = u
	return nil
}
