package contracttest

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/rideshare-marketplace/rides-api/internal/domain"
	idempotencyport "github.com/rideshare-marketplace/rides-api/internal/ports/out/idempotency"
	riderepoport "github.com/rideshare-marketplace/rides-api/internal/ports/out/riderepo"
	userrepoport "github.com/rideshare-marketplace/rides-api/internal/ports/out/userrepo"
)

type CleanupFunc = func()

type UserRepoFactory func(t *testing.T) (userrepoport.Repository, CleanupFunc)
type RideRepoFactory func(t *testing.T) (riderepoport.Repository, CleanupFunc)
type IdemStoreFactory func(t *testing.T) (idempotencyport.Store, CleanupFunc)

func RunIdempotencyStore(t *testing.T, newStore IdemStoreFactory) {
	t.Helper()
	ctx := context.Background()

	store, cleanup := newStore(t)
	if cleanup != nil {
		t.Cleanup(cleanup)
	}

	fp := idempotencyport.Fingerprint{
		Key:      idempotencyport.Key("k-" + uuid.NewString()),
		Actor:    domain.NewUserID(),
		Method:   "POST",
		Route:    "/api/users/{id}/book-ride",
		BodyHash: "",
	}
	if _, ok, err := store.Get(ctx, fp); err != nil || ok {
		t.Fatalf("Get before Put: ok=%v err=%v", ok, err)
	}
	rec := idempotencyport.Record{
		StatusCode:  0,
		ContentType: "text/plain",
		Body:        []byte("hash-abc"),
		CreatedAt:   time.Unix(123, 0).UTC(),
	}
	if err := store.Put(ctx, fp, rec); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, ok, err := store.Get(ctx, fp)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok {
		t.Fatalf("expected ok=true")
	}
	if string(got.Body) != "hash-abc" || got.ContentType != "text/plain" || got.StatusCode != 0 {
		t.Fatalf("unexpected record: %+v", got)
	}

	// Overwrite semantics.
	rec2 := rec
	rec2.Body = []byte("hash-def")
	if err := store.Put(ctx, fp, rec2); err != nil {
		t.Fatalf("Put overwrite: %v", err)
	}
	got, ok, err = store.Get(ctx, fp)
	if err != nil || !ok || string(got.Body) != "hash-def" {
		t.Fatalf("expected overwritten record, got ok=%v err=%v body=%q", ok, err, string(got.Body))
	}

	// Different actor does not see the record.
	other := fp
	other.Actor = domain.NewUserID()
	if _, ok, err := store.Get(ctx, other); err != nil || ok {
		t.Fatalf("Get other actor: ok=%v err=%v", ok, err)
	}
}

func newUser(name string, now time.Time) domain.User {
	suffix := uuid.NewString()[:8]
	return domain.User{
		ID:       domain.NewUserID(),
		Name:     name,
		Email:    strings.ToLower(name) + "-" + suffix + "@example.com",
		Password: "password",
		Settings: domain.Settings{Theme: domain.DefaultTheme},
		Profile: domain.Profile{
			Rating:    4.5,
			TrustTier: domain.TrustTierMedium,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func RunUserRepo(t *testing.T, newRepo UserRepoFactory) {
	t.Helper()
	ctx := context.Background()

	repo, cleanup := newRepo(t)
	if cleanup != nil {
		t.Cleanup(cleanup)
	}

	now := time.Unix(1000, 0).UTC()
	alice := newUser("Alice", now)
	alice.Settings.NotificationPreferences = true
	alice.Profile.Bio = "Loves road trips"
	if err := repo.Create(ctx, alice); err != nil {
		t.Fatalf("Create alice: %v", err)
	}
	got, err := repo.GetByID(ctx, alice.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Name != "Alice" || got.Email != alice.Email || got.Password != "password" ||
		!got.Settings.NotificationPreferences || got.Settings.Theme != "light" ||
		got.Profile.Bio != "Loves road trips" || got.Profile.TrustTier != domain.TrustTierMedium {
		t.Fatalf("unexpected user: %#v", got)
	}
	if len(got.BookedRides) != 0 || len(got.OfferedRides) != 0 {
		t.Fatalf("expected empty reference lists, got %#v", got)
	}

	if _, err := repo.GetByID(ctx, domain.NewUserID()); !errors.Is(err, userrepoport.ErrNotFound) {
		t.Fatalf("GetByID missing: err=%v, want ErrNotFound", err)
	}

	// Email lookup and uniqueness are case-insensitive.
	byEmail, err := repo.GetByEmail(ctx, strings.ToUpper(alice.Email))
	if err != nil || byEmail.ID != alice.ID {
		t.Fatalf("GetByEmail upper: id=%q err=%v", byEmail.ID, err)
	}
	dup := newUser("Alice2", now)
	dup.Email = strings.ToUpper(alice.Email)
	if err := repo.Create(ctx, dup); !errors.Is(err, userrepoport.ErrEmailTaken) {
		t.Fatalf("Create duplicate email: err=%v, want ErrEmailTaken", err)
	}
	sameID := newUser("Clone", now)
	sameID.ID = alice.ID
	if err := repo.Create(ctx, sameID); !errors.Is(err, userrepoport.ErrAlreadyExists) {
		t.Fatalf("Create duplicate id: err=%v, want ErrAlreadyExists", err)
	}

	// Reference lists: ordered, set semantics on insert.
	r1, r2 := domain.NewRideID(), domain.NewRideID()
	for _, rid := range []domain.RideID{r1, r2, r1} {
		if err := repo.AddBookedRide(ctx, alice.ID, rid); err != nil {
			t.Fatalf("AddBookedRide: %v", err)
		}
	}
	if err := repo.AddOfferedRide(ctx, alice.ID, r2); err != nil {
		t.Fatalf("AddOfferedRide: %v", err)
	}
	if err := repo.AddOfferedRide(ctx, alice.ID, r2); err != nil {
		t.Fatalf("AddOfferedRide again: %v", err)
	}
	got, _ = repo.GetByID(ctx, alice.ID)
	if len(got.BookedRides) != 2 || got.BookedRides[0] != r1 || got.BookedRides[1] != r2 {
		t.Fatalf("BookedRides=%v, want [%s %s]", got.BookedRides, r1, r2)
	}
	if len(got.OfferedRides) != 1 || got.OfferedRides[0] != r2 {
		t.Fatalf("OfferedRides=%v, want [%s]", got.OfferedRides, r2)
	}
	if err := repo.AddBookedRide(ctx, domain.NewUserID(), r1); !errors.Is(err, userrepoport.ErrNotFound) {
		t.Fatalf("AddBookedRide missing user: err=%v, want ErrNotFound", err)
	}

	// Update replaces scalars, leaves references.
	got.Name = "Alice Cooper"
	got.Settings.Theme = "dark"
	got.Profile.Verified = true
	got.BookedRides = nil
	got.UpdatedAt = now.Add(time.Minute)
	if err := repo.Update(ctx, got); err != nil {
		t.Fatalf("Update: %v", err)
	}
	got, _ = repo.GetByID(ctx, alice.ID)
	if got.Name != "Alice Cooper" || got.Settings.Theme != "dark" || !got.Profile.Verified {
		t.Fatalf("Update not applied: %#v", got)
	}
	if len(got.BookedRides) != 2 {
		t.Fatalf("Update must not touch BookedRides, got %v", got.BookedRides)
	}
	if err := repo.Update(ctx, newUser("Ghost", now)); !errors.Is(err, userrepoport.ErrNotFound) {
		t.Fatalf("Update missing: err=%v, want ErrNotFound", err)
	}

	bob := newUser("Bob", now.Add(time.Second))
	if err := repo.Create(ctx, bob); err != nil {
		t.Fatalf("Create bob: %v", err)
	}
	taken := bob
	taken.Email = strings.ToUpper(alice.Email)
	if err := repo.Update(ctx, taken); !errors.Is(err, userrepoport.ErrEmailTaken) {
		t.Fatalf("Update to taken email: err=%v, want ErrEmailTaken", err)
	}

	// Removal is idempotent.
	if err := repo.RemoveBookedRide(ctx, alice.ID, r1); err != nil {
		t.Fatalf("RemoveBookedRide: %v", err)
	}
	if err := repo.RemoveBookedRide(ctx, alice.ID, r1); err != nil {
		t.Fatalf("RemoveBookedRide again: %v", err)
	}
	if err := repo.RemoveOfferedRide(ctx, alice.ID, r2); err != nil {
		t.Fatalf("RemoveOfferedRide: %v", err)
	}
	got, _ = repo.GetByID(ctx, alice.ID)
	if len(got.BookedRides) != 1 || got.BookedRides[0] != r2 || len(got.OfferedRides) != 0 {
		t.Fatalf("after removal: booked=%v offered=%v", got.BookedRides, got.OfferedRides)
	}

	// Cascade removal across users.
	if err := repo.AddBookedRide(ctx, bob.ID, r2); err != nil {
		t.Fatalf("AddBookedRide bob: %v", err)
	}
	if err := repo.RemoveBookedRideFromAll(ctx, r2); err != nil {
		t.Fatalf("RemoveBookedRideFromAll: %v", err)
	}
	for _, id := range []domain.UserID{alice.ID, bob.ID} {
		u, _ := repo.GetByID(ctx, id)
		if domain.HasRideID(u.BookedRides, r2) {
			t.Fatalf("user %s still references %s", id, r2)
		}
	}

	list, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	ai, bi := -1, -1
	for i, u := range list {
		switch u.ID {
		case alice.ID:
			ai = i
		case bob.ID:
			bi = i
		}
	}
	if ai < 0 || bi < 0 || ai > bi {
		t.Fatalf("List must contain alice before bob: ai=%d bi=%d", ai, bi)
	}

	// Maintenance.
	if err := repo.AddBookedRide(ctx, bob.ID, r1); err != nil {
		t.Fatalf("AddBookedRide bob: %v", err)
	}
	if err := repo.ClearAllBookedRides(ctx); err != nil {
		t.Fatalf("ClearAllBookedRides: %v", err)
	}
	u, _ := repo.GetByID(ctx, bob.ID)
	if len(u.BookedRides) != 0 {
		t.Fatalf("ClearAllBookedRides left %v", u.BookedRides)
	}
}

func newRide(owner domain.UserID, seats int, now time.Time) domain.Ride {
	return domain.Ride{
		ID:    domain.NewRideID(),
		Owner: owner,
		Driver: domain.DriverSnapshot{
			Name:        "Alice",
			Rating:      4.8,
			TrustTier:   domain.TrustTierHigh,
			Trips:       12,
			MemberSince: "January 2024",
			Verified:    true,
		},
		From:      "Nürnberg",
		To:        "Frankfurt",
		Date:      "2025-07-02",
		Departure: "09:30",
		Price:     25,
		Seats:     seats,
		Capacity:  seats,
		Duration:  "2h 30m",
		Distance:  "225 km",
		Route:     []domain.LatLng{{49.4521, 11.0767}, {50.1109, 8.6821}},
		RouteDetails: domain.RouteDetails{
			Stops:       []string{"Würzburg"},
			Description: "A3 motorway",
		},
		Car: domain.Car{
			Model:    "VW Golf",
			Year:     2020,
			Color:    "blue",
			Features: []string{"AC"},
		},
		Description: "Direct ride",
		Rules:       []string{"No smoking"},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func RunRideRepo(t *testing.T, newRepo RideRepoFactory) {
	t.Helper()
	ctx := context.Background()

	repo, cleanup := newRepo(t)
	if cleanup != nil {
		t.Cleanup(cleanup)
	}

	now := time.Unix(2000, 0).UTC()
	owner := domain.NewUserID()
	ride := newRide(owner, 2, now)
	if err := repo.Create(ctx, ride); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := repo.Create(ctx, ride); !errors.Is(err, riderepoport.ErrAlreadyExists) {
		t.Fatalf("Create duplicate: err=%v, want ErrAlreadyExists", err)
	}
	got, err := repo.GetByID(ctx, ride.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Owner != owner || got.Driver.Name != "Alice" || got.Driver.TrustTier != domain.TrustTierHigh ||
		got.Seats != 2 || got.Capacity != 2 || got.Price != 25 || len(got.Route) != 2 ||
		got.Route[1][1] != 8.6821 || got.Car.Year != 2020 || len(got.RouteDetails.Stops) != 1 ||
		len(got.Rules) != 1 || !got.CreatedAt.Equal(now) {
		t.Fatalf("unexpected ride: %#v", got)
	}
	if _, err := repo.GetByID(ctx, domain.NewRideID()); !errors.Is(err, riderepoport.ErrNotFound) {
		t.Fatalf("GetByID missing: err=%v, want ErrNotFound", err)
	}

	second := newRide(owner, 1, now.Add(time.Second))
	if err := repo.Create(ctx, second); err != nil {
		t.Fatalf("Create second: %v", err)
	}
	other := newRide(domain.NewUserID(), 3, now.Add(2*time.Second))
	if err := repo.Create(ctx, other); err != nil {
		t.Fatalf("Create other: %v", err)
	}

	owned, err := repo.List(ctx, owner)
	if err != nil {
		t.Fatalf("List owner: %v", err)
	}
	if len(owned) != 2 || owned[0].ID != ride.ID || owned[1].ID != second.ID {
		t.Fatalf("List owner=%v, want [%s %s] in creation order", rideIDs(owned), ride.ID, second.ID)
	}
	all, err := repo.List(ctx, "")
	if err != nil {
		t.Fatalf("List all: %v", err)
	}
	if len(all) < 3 {
		t.Fatalf("List all len=%d, want >= 3", len(all))
	}

	many, err := repo.GetMany(ctx, []domain.RideID{ride.ID, domain.NewRideID(), other.ID})
	if err != nil {
		t.Fatalf("GetMany: %v", err)
	}
	if len(many) != 2 || many[ride.ID].ID != ride.ID || many[other.ID].ID != other.ID {
		t.Fatalf("GetMany=%v", many)
	}

	// Reservation rules.
	p1, p2 := domain.NewUserID(), domain.NewUserID()
	if _, err := repo.ReserveSeat(ctx, ride.ID, owner); !errors.Is(err, riderepoport.ErrOwnRide) {
		t.Fatalf("ReserveSeat owner: err=%v, want ErrOwnRide", err)
	}
	after, err := repo.ReserveSeat(ctx, ride.ID, p1)
	if err != nil {
		t.Fatalf("ReserveSeat p1: %v", err)
	}
	if after.Seats != 1 || len(after.Passengers) != 1 || after.Passengers[0] != p1 {
		t.Fatalf("after p1: seats=%d passengers=%v", after.Seats, after.Passengers)
	}
	if _, err := repo.ReserveSeat(ctx, ride.ID, p1); !errors.Is(err, riderepoport.ErrAlreadyPassenger) {
		t.Fatalf("ReserveSeat p1 again: err=%v, want ErrAlreadyPassenger", err)
	}
	if _, err := repo.ReserveSeat(ctx, ride.ID, p2); err != nil {
		t.Fatalf("ReserveSeat p2: %v", err)
	}
	if _, err := repo.ReserveSeat(ctx, ride.ID, domain.NewUserID()); !errors.Is(err, riderepoport.ErrNoSeats) {
		t.Fatalf("ReserveSeat full: err=%v, want ErrNoSeats", err)
	}
	if _, err := repo.ReserveSeat(ctx, domain.NewRideID(), p1); !errors.Is(err, riderepoport.ErrNotFound) {
		t.Fatalf("ReserveSeat missing: err=%v, want ErrNotFound", err)
	}
	got, _ = repo.GetByID(ctx, ride.ID)
	if got.Seats != 0 || len(got.Passengers) != 2 || got.Passengers[0] != p1 || got.Passengers[1] != p2 {
		t.Fatalf("full ride: seats=%d passengers=%v", got.Seats, got.Passengers)
	}

	// Strict release only returns a seat for a passenger.
	after, rel, err := repo.ReleaseSeat(ctx, ride.ID, domain.NewUserID(), false)
	if err != nil {
		t.Fatalf("ReleaseSeat stranger: %v", err)
	}
	if rel.WasPassenger || rel.SeatReturned || after.Seats != 0 {
		t.Fatalf("strict stranger release: %+v seats=%d", rel, after.Seats)
	}
	after, rel, err = repo.ReleaseSeat(ctx, ride.ID, p1, false)
	if err != nil {
		t.Fatalf("ReleaseSeat p1: %v", err)
	}
	if !rel.WasPassenger || !rel.SeatReturned || after.Seats != 1 || after.HasPassenger(p1) {
		t.Fatalf("strict p1 release: %+v seats=%d passengers=%v", rel, after.Seats, after.Passengers)
	}

	// Unconditional release increments even for a non-passenger.
	after, rel, err = repo.ReleaseSeat(ctx, ride.ID, p1, true)
	if err != nil {
		t.Fatalf("ReleaseSeat unconditional: %v", err)
	}
	if rel.WasPassenger || !rel.SeatReturned || after.Seats != 2 {
		t.Fatalf("unconditional release: %+v seats=%d", rel, after.Seats)
	}
	if _, _, err := repo.ReleaseSeat(ctx, domain.NewRideID(), p1, false); !errors.Is(err, riderepoport.ErrNotFound) {
		t.Fatalf("ReleaseSeat missing: err=%v, want ErrNotFound", err)
	}

	// Concurrent reservations on a single seat: exactly one wins.
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		wins    int
		noSeats int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.ReserveSeat(ctx, second.ID, domain.NewUserID())
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, riderepoport.ErrNoSeats):
				noSeats++
			default:
				t.Errorf("ReserveSeat concurrent: %v", err)
			}
		}()
	}
	wg.Wait()
	if wins != 1 || noSeats != 7 {
		t.Fatalf("concurrent reservations: wins=%d noSeats=%d, want 1/7", wins, noSeats)
	}
	got, _ = repo.GetByID(ctx, second.ID)
	if got.Seats != 0 || len(got.Passengers) != 1 {
		t.Fatalf("second ride after race: seats=%d passengers=%v", got.Seats, got.Passengers)
	}

	if err := repo.Delete(ctx, other.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := repo.GetByID(ctx, other.ID); !errors.Is(err, riderepoport.ErrNotFound) {
		t.Fatalf("GetByID after Delete: err=%v, want ErrNotFound", err)
	}
	if err := repo.Delete(ctx, other.ID); !errors.Is(err, riderepoport.ErrNotFound) {
		t.Fatalf("Delete again: err=%v, want ErrNotFound", err)
	}

	if err := repo.DeleteAll(ctx); err != nil {
		t.Fatalf("DeleteAll: %v", err)
	}
	all, err = repo.List(ctx, "")
	if err != nil || len(all) != 0 {
		t.Fatalf("List after DeleteAll: len=%d err=%v", len(all), err)
	}
}

func rideIDs(rs []domain.Ride) []domain.RideID {
	out := make([]domain.RideID, 0, len(rs))
	for _, r := range rs {
		out = append(out, r.ID)
	}
	return out
}
