package users

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/rideshare-marketplace/rides-api/internal/domain"
	clockport "github.com/rideshare-marketplace/rides-api/internal/ports/out/clock"
	"github.com/rideshare-marketplace/rides-api/internal/ports/out/riderepo"
	"github.com/rideshare-marketplace/rides-api/internal/ports/out/userrepo"
)

type Service struct {
	users userrepo.Repository
	rides riderepo.Repository
	clk   clockport.Clock

	newUserID func() domain.UserID
}

func NewService(users userrepo.Repository, rides riderepo.Repository, clk clockport.Clock) *Service {
	return &Service{
		users:     users,
		rides:     rides,
		clk:       clk,
		newUserID: domain.NewUserID,
	}
}

// SetNewUserIDForTest overrides user ID generation for deterministic tests.
// It should not be used in production code.
func (s *Service) SetNewUserIDForTest(fn func() domain.UserID) {
	if fn != nil {
		s.newUserID = fn
	}
}

func (s *Service) Register(ctx context.Context, in RegisterInput) (domain.ResolvedUser, error) {
	name := domain.NormalizeHumanName(in.Name)
	if name == "" {
		return domain.ResolvedUser{}, validationError("name", "must be non-empty")
	}
	email := domain.NormalizeEmail(in.Email)
	if err := validateEmail(email); err != nil {
		return domain.ResolvedUser{}, validationError("email", err.Error())
	}
	if in.Password == "" {
		return domain.ResolvedUser{}, validationError("password", "must be non-empty")
	}

	now := s.clk.Now()
	u := domain.User{
		ID:       s.newUserID(),
		Name:     name,
		Email:    email,
		Password: in.Password,
		Settings: domain.Settings{Theme: domain.DefaultTheme},
		Profile: domain.Profile{
			TrustTier: domain.TrustTierMedium,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, userrepo.ErrEmailTaken) {
			return domain.ResolvedUser{}, emailInUse()
		}
		return domain.ResolvedUser{}, fmt.Errorf("create user: %w", err)
	}
	return domain.ResolvedUser{
		User:                 u,
		BookedRideSummaries:  []domain.RideSummary{},
		OfferedRideSummaries: []domain.RideSummary{},
	}, nil
}

// Login matches email case-insensitively and password verbatim. Unknown email and wrong
// password are reported identically.
func (s *Service) Login(ctx context.Context, email, password string) (domain.ResolvedUser, error) {
	u, err := s.users.GetByEmail(ctx, domain.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, userrepo.ErrNotFound) {
			return domain.ResolvedUser{}, invalidCredentials()
		}
		return domain.ResolvedUser{}, err
	}
	if u.Password != password {
		return domain.ResolvedUser{}, invalidCredentials()
	}
	return Resolve(ctx, s.rides, u)
}

func (s *Service) GetResolved(ctx context.Context, id string) (domain.ResolvedUser, error) {
	u, err := s.load(ctx, id)
	if err != nil {
		return domain.ResolvedUser{}, err
	}
	return Resolve(ctx, s.rides, u)
}

func (s *Service) Update(ctx context.Context, id string, in UpdateUserInput) (domain.ResolvedUser, error) {
	u, err := s.load(ctx, id)
	if err != nil {
		return domain.ResolvedUser{}, err
	}

	if in.Name.IsSpecified() {
		if in.Name.IsNull() {
			return domain.ResolvedUser{}, validationError("name", "cannot be null")
		}
		name := domain.NormalizeHumanName(in.Name.Value())
		if name == "" {
			return domain.ResolvedUser{}, validationError("name", "must be non-empty")
		}
		u.Name = name
	}

	if in.Email.IsSpecified() {
		if in.Email.IsNull() {
			return domain.ResolvedUser{}, validationError("email", "cannot be null")
		}
		email := domain.NormalizeEmail(in.Email.Value())
		if err := validateEmail(email); err != nil {
			return domain.ResolvedUser{}, validationError("email", err.Error())
		}
		u.Email = email
	}

	if in.Password.IsSpecified() {
		if in.Password.IsNull() || in.Password.Value() == "" {
			return domain.ResolvedUser{}, validationError("password", "must be non-empty")
		}
		u.Password = in.Password.Value()
	}

	if in.NotificationPreferences.IsSpecified() {
		u.Settings.NotificationPreferences = !in.NotificationPreferences.IsNull() && in.NotificationPreferences.Value()
	}
	if in.Theme.IsSpecified() {
		if in.Theme.IsNull() || strings.TrimSpace(in.Theme.Value()) == "" {
			u.Settings.Theme = domain.DefaultTheme
		} else {
			u.Settings.Theme = strings.TrimSpace(in.Theme.Value())
		}
	}
	applyString(&u.Settings.OtherSetting, in.OtherSetting)
	applyString(&u.Profile.Avatar, in.Avatar)
	applyString(&u.Profile.Bio, in.Bio)

	u.UpdatedAt = s.clk.Now()
	if err := s.users.Update(ctx, u); err != nil {
		switch {
		case errors.Is(err, userrepo.ErrEmailTaken):
			return domain.ResolvedUser{}, emailInUse()
		case errors.Is(err, userrepo.ErrNotFound):
			return domain.ResolvedUser{}, userNotFound()
		}
		return domain.ResolvedUser{}, fmt.Errorf("update user: %w", err)
	}
	return Resolve(ctx, s.rides, u)
}

// LinkOfferedRide adds rideID to the user's offered rides (set semantics).
func (s *Service) LinkOfferedRide(ctx context.Context, id, rideID string) (domain.ResolvedUser, error) {
	uid, err := domain.ParseUserID(id)
	if err != nil {
		return domain.ResolvedUser{}, invalidReference("id")
	}
	rid, err := domain.ParseRideID(rideID)
	if err != nil {
		return domain.ResolvedUser{}, invalidReference("rideId")
	}
	if _, err := s.users.GetByID(ctx, uid); err != nil {
		if errors.Is(err, userrepo.ErrNotFound) {
			return domain.ResolvedUser{}, userNotFound()
		}
		return domain.ResolvedUser{}, err
	}
	if _, err := s.rides.GetByID(ctx, rid); err != nil {
		if errors.Is(err, riderepo.ErrNotFound) {
			return domain.ResolvedUser{}, &Error{Status: 404, Code: "RIDE_NOT_FOUND", Message: "ride not found"}
		}
		return domain.ResolvedUser{}, err
	}
	if err := s.users.AddOfferedRide(ctx, uid, rid); err != nil {
		return domain.ResolvedUser{}, fmt.Errorf("link offered ride: %w", err)
	}
	return s.GetResolved(ctx, string(uid))
}

// ClearAllBookedRides empties every user's booked rides. Ride passenger lists are untouched.
func (s *Service) ClearAllBookedRides(ctx context.Context) error {
	return s.users.ClearAllBookedRides(ctx)
}

func (s *Service) load(ctx context.Context, id string) (domain.User, error) {
	uid, err := domain.ParseUserID(id)
	if err != nil {
		return domain.User{}, invalidReference("id")
	}
	u, err := s.users.GetByID(ctx, uid)
	if err != nil {
		if errors.Is(err, userrepo.ErrNotFound) {
			return domain.User{}, userNotFound()
		}
		return domain.User{}, err
	}
	return u, nil
}

func applyString(dst *string, o Optional[string]) {
	if !o.IsSpecified() {
		return
	}
	if o.IsNull() {
		*dst = ""
		return
	}
	*dst = strings.TrimSpace(o.Value())
}

func validateEmail(email string) error {
	if email == "" {
		return errors.New("must be non-empty")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil {
		return err
	}
	// Ensure no "Name <email@x>" format sneaks in.
	if addr.Address != email {
		return errors.New("must be a bare email address")
	}
	return nil
}

func emailInUse() *Error {
	return &Error{
		Status:  400,
		Code:    "EMAIL_ALREADY_IN_USE",
		Message: "email address is already in use",
	}
}

func invalidCredentials() *Error {
	return &Error{Status: 400, Code: "INVALID_CREDENTIALS", Message: "invalid email or password"}
}
