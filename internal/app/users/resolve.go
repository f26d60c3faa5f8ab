package users

import (
	"context"

	"github.com/rideshare-marketplace/rides-api/internal/domain"
	"github.com/rideshare-marketplace/rides-api/internal/ports/out/riderepo"
)

// Resolve expands u's reference lists into ride summaries, keeping stored order.
// References to rides that no longer exist are skipped.
func Resolve(ctx context.Context, rides riderepo.Repository, u domain.User) (domain.ResolvedUser, error) {
	ids := make([]domain.RideID, 0, len(u.BookedRides)+len(u.OfferedRides))
	ids = append(ids, u.BookedRides...)
	ids = append(ids, u.OfferedRides...)

	found := map[domain.RideID]domain.Ride{}
	if len(ids) > 0 {
		var err error
		found, err = rides.GetMany(ctx, ids)
		if err != nil {
			return domain.ResolvedUser{}, err
		}
	}

	return domain.ResolvedUser{
		User:                 u,
		BookedRideSummaries:  summaries(u.BookedRides, found),
		OfferedRideSummaries: summaries(u.OfferedRides, found),
	}, nil
}

func summaries(ids []domain.RideID, found map[domain.RideID]domain.Ride) []domain.RideSummary {
	out := make([]domain.RideSummary, 0, len(ids))
	for _, id := range ids {
		if r, ok := found[id]; ok {
			out = append(out, r.Summary())
		}
	}
	return out
}
