package domain

import "time"

type TrustTier string

const (
	TrustTierLow    TrustTier = "low"
	TrustTierMedium TrustTier = "medium"
	TrustTierHigh   TrustTier = "high"
)

// Valid reports whether t is one of the known tiers.
func (t TrustTier) Valid() bool {
	switch t {
	case TrustTierLow, TrustTierMedium, TrustTierHigh:
		return true
	default:
		return false
	}
}

const DefaultTheme = "light"

// Settings are user-controlled client preferences.
type Settings struct {
	NotificationPreferences bool
	Theme                   string
	OtherSetting            string
}

// Profile is the user's live public reputation. Rides copy it into a DriverSnapshot at
// creation time; later edits do not propagate to existing rides.
type Profile struct {
	Avatar    string
	Bio       string
	Rating    float64
	TrustTier TrustTier
	Verified  bool
}

// User is the domain representation of an account.
type User struct {
	ID    UserID
	Name  string
	Email string
	// Password is stored verbatim. It is never serialized in API responses.
	Password string

	Settings Settings
	Profile  Profile

	BookedRides  []RideID
	OfferedRides []RideID

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ResolvedUser is a user whose reference lists have been resolved to ride summaries.
// References to rides that no longer exist are omitted.
type ResolvedUser struct {
	User

	BookedRideSummaries  []RideSummary
	OfferedRideSummaries []RideSummary
}

// HasRideID reports whether id is present in ids.
func HasRideID(ids []RideID, id RideID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// WithoutRideID returns ids with every occurrence of id removed.
func WithoutRideID(ids []RideID, id RideID) []RideID {
	out := make([]RideID, 0, len(ids))
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
