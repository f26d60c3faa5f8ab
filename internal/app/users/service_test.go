package users

import (
	"context"
	"errors"
	"testing"
	"time"

	memclock "github.com/rideshare-marketplace/rides-api/internal/adapters/memory/clock"
	memriderepo "github.com/rideshare-marketplace/rides-api/internal/adapters/memory/riderepo"
	memuserrepo "github.com/rideshare-marketplace/rides-api/internal/adapters/memory/userrepo"
	"github.com/rideshare-marketplace/rides-api/internal/domain"
)

type fixture struct {
	svc   *Service
	users *memuserrepo.Repo
	rides *memriderepo.Repo
	clk   *memclock.ManualClock
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	users := memuserrepo.NewRepo()
	rides := memriderepo.NewRepo()
	clk := memclock.NewManualClock(time.Unix(100, 0).UTC())
	return fixture{svc: NewService(users, rides, clk), users: users, rides: rides, clk: clk}
}

func wantAppError(t *testing.T, err error, status int, code string) {
	t.Helper()
	ae := (*Error)(nil)
	if !errors.As(err, &ae) || ae.Status != status || ae.Code != code {
		t.Fatalf("err=%v (type=%T), want %s %d", err, err, code, status)
	}
}

func TestService_RegisterThenLogin(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	created, err := f.svc.Register(context.Background(), RegisterInput{
		Name:     "  Alice   Smith ",
		Email:    " alice@example.com ",
		Password: "password",
	})
	if err != nil {
		t.Fatalf("Register err=%v", err)
	}
	if created.Name != "Alice Smith" || created.Email != "alice@example.com" {
		t.Fatalf("created=%+v", created.User)
	}
	if created.Settings.Theme != "light" || created.Profile.TrustTier != domain.TrustTierMedium {
		t.Fatalf("defaults not applied: %+v", created.User)
	}
	if created.BookedRideSummaries == nil || created.OfferedRideSummaries == nil {
		t.Fatalf("resolved lists should be empty, not nil")
	}

	got, err := f.svc.Login(context.Background(), "ALICE@example.com", "password")
	if err != nil {
		t.Fatalf("Login err=%v", err)
	}
	if got.ID != created.ID {
		t.Fatalf("Login id=%q, want %q", got.ID, created.ID)
	}
}

func TestService_Register_Validation(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   RegisterInput
	}{
		{"missing name", RegisterInput{Name: " ", Email: "a@example.com", Password: "p"}},
		{"missing email", RegisterInput{Name: "A", Email: "", Password: "p"}},
		{"display-name email", RegisterInput{Name: "A", Email: "A <a@example.com>", Password: "p"}},
		{"missing password", RegisterInput{Name: "A", Email: "a@example.com"}},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t)
			_, err := f.svc.Register(context.Background(), tc.in)
			wantAppError(t, err, 400, "VALIDATION_ERROR")
		})
	}
}

func TestService_Register_DuplicateEmail(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	if _, err := f.svc.Register(context.Background(), RegisterInput{Name: "A", Email: "a@example.com", Password: "p"}); err != nil {
		t.Fatalf("Register err=%v", err)
	}
	_, err := f.svc.Register(context.Background(), RegisterInput{Name: "B", Email: "A@Example.com", Password: "p"})
	wantAppError(t, err, 400, "EMAIL_ALREADY_IN_USE")
}

func TestService_Login_Mismatch(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	if _, err := f.svc.Register(context.Background(), RegisterInput{Name: "A", Email: "a@example.com", Password: "p"}); err != nil {
		t.Fatalf("Register err=%v", err)
	}
	_, err := f.svc.Login(context.Background(), "a@example.com", "wrong")
	wantAppError(t, err, 400, "INVALID_CREDENTIALS")

	_, err = f.svc.Login(context.Background(), "nobody@example.com", "p")
	wantAppError(t, err, 400, "INVALID_CREDENTIALS")
}

func TestService_GetResolved_Errors(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	_, err := f.svc.GetResolved(context.Background(), "not-an-id")
	wantAppError(t, err, 400, "INVALID_REFERENCE")

	_, err = f.svc.GetResolved(context.Background(), string(domain.NewUserID()))
	wantAppError(t, err, 404, "USER_NOT_FOUND")
}

func TestService_GetResolved_SkipsDanglingReferences(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	u, err := f.svc.Register(ctx, RegisterInput{Name: "A", Email: "a@example.com", Password: "p"})
	if err != nil {
		t.Fatalf("Register err=%v", err)
	}
	live := domain.Ride{ID: domain.NewRideID(), Owner: domain.NewUserID(), From: "Bamberg", To: "Munich", Date: "2025-07-03", Departure: "08:00", Seats: 1, Capacity: 1}
	if err := f.rides.Create(ctx, live); err != nil {
		t.Fatalf("Create ride err=%v", err)
	}
	gone := domain.NewRideID()
	_ = f.users.AddBookedRide(ctx, u.ID, gone)
	_ = f.users.AddBookedRide(ctx, u.ID, live.ID)

	got, err := f.svc.GetResolved(ctx, string(u.ID))
	if err != nil {
		t.Fatalf("GetResolved err=%v", err)
	}
	if len(got.BookedRides) != 2 {
		t.Fatalf("stored references=%v, want both kept", got.BookedRides)
	}
	if len(got.BookedRideSummaries) != 1 || got.BookedRideSummaries[0].ID != live.ID || got.BookedRideSummaries[0].To != "Munich" {
		t.Fatalf("BookedRideSummaries=%+v", got.BookedRideSummaries)
	}
}

func TestService_Update_PatchesFields(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	u, err := f.svc.Register(ctx, RegisterInput{Name: "Alice", Email: "alice@example.com", Password: "p"})
	if err != nil {
		t.Fatalf("Register err=%v", err)
	}
	f.clk.Advance(time.Minute)

	updated, err := f.svc.Update(ctx, string(u.ID), UpdateUserInput{
		Name:                    Some("  Alice   Cooper "),
		NotificationPreferences: Some(true),
		Theme:                   Some("dark"),
		Bio:                     Some("Driver since 2010"),
	})
	if err != nil {
		t.Fatalf("Update err=%v", err)
	}
	if updated.Name != "Alice Cooper" || !updated.Settings.NotificationPreferences ||
		updated.Settings.Theme != "dark" || updated.Profile.Bio != "Driver since 2010" {
		t.Fatalf("updated=%+v", updated.User)
	}
	if updated.Email != "alice@example.com" || updated.Password != "p" {
		t.Fatalf("unspecified fields changed: %+v", updated.User)
	}
	if !updated.UpdatedAt.Equal(time.Unix(160, 0).UTC()) {
		t.Fatalf("UpdatedAt=%v", updated.UpdatedAt)
	}

	reset, err := f.svc.Update(ctx, string(u.ID), UpdateUserInput{Theme: Null[string](), Bio: Null[string]()})
	if err != nil {
		t.Fatalf("Update reset err=%v", err)
	}
	if reset.Settings.Theme != "light" || reset.Profile.Bio != "" {
		t.Fatalf("reset=%+v", reset.User)
	}
}

func TestService_Update_Validation(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	a, _ := f.svc.Register(ctx, RegisterInput{Name: "A", Email: "a@example.com", Password: "p"})
	if _, err := f.svc.Register(ctx, RegisterInput{Name: "B", Email: "b@example.com", Password: "p"}); err != nil {
		t.Fatalf("Register err=%v", err)
	}

	_, err := f.svc.Update(ctx, string(a.ID), UpdateUserInput{Name: Null[string]()})
	wantAppError(t, err, 400, "VALIDATION_ERROR")

	_, err = f.svc.Update(ctx, string(a.ID), UpdateUserInput{Password: Some("")})
	wantAppError(t, err, 400, "VALIDATION_ERROR")

	_, err = f.svc.Update(ctx, string(a.ID), UpdateUserInput{Email: Some("B@example.com")})
	wantAppError(t, err, 400, "EMAIL_ALREADY_IN_USE")

	_, err = f.svc.Update(ctx, string(domain.NewUserID()), UpdateUserInput{Name: Some("X")})
	wantAppError(t, err, 404, "USER_NOT_FOUND")
}

func TestService_LinkOfferedRide(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	u, _ := f.svc.Register(ctx, RegisterInput{Name: "A", Email: "a@example.com", Password: "p"})
	ride := domain.Ride{ID: domain.NewRideID(), Owner: u.ID, From: "Rothenburg", To: "Würzburg", Seats: 2, Capacity: 2}
	if err := f.rides.Create(ctx, ride); err != nil {
		t.Fatalf("Create ride err=%v", err)
	}

	for i := 0; i < 2; i++ {
		got, err := f.svc.LinkOfferedRide(ctx, string(u.ID), string(ride.ID))
		if err != nil {
			t.Fatalf("LinkOfferedRide err=%v", err)
		}
		if len(got.OfferedRides) != 1 || len(got.OfferedRideSummaries) != 1 {
			t.Fatalf("OfferedRides=%v summaries=%v", got.OfferedRides, got.OfferedRideSummaries)
		}
	}

	_, err := f.svc.LinkOfferedRide(ctx, string(u.ID), "nope")
	wantAppError(t, err, 400, "INVALID_REFERENCE")
	_, err = f.svc.LinkOfferedRide(ctx, string(u.ID), string(domain.NewRideID()))
	wantAppError(t, err, 404, "RIDE_NOT_FOUND")
}

func TestService_ClearAllBookedRides(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	u, _ := f.svc.Register(ctx, RegisterInput{Name: "A", Email: "a@example.com", Password: "p"})
	_ = f.users.AddBookedRide(ctx, u.ID, domain.NewRideID())

	if err := f.svc.ClearAllBookedRides(ctx); err != nil {
		t.Fatalf("ClearAllBookedRides err=%v", err)
	}
	got, _ := f.svc.GetResolved(ctx, string(u.ID))
	if len(got.BookedRides) != 0 {
		t.Fatalf("BookedRides=%v, want empty", got.BookedRides)
	}
}
