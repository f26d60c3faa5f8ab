package userrepo

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	mongoadapter "github.com/rideshare-marketplace/rides-api/internal/adapters/mongo"
	"github.com/rideshare-marketplace/rides-api/internal/domain"
	"github.com/rideshare-marketplace/rides-api/internal/ports/out/userrepo"
)

type settingsDoc struct {
	NotificationPreferences bool   `bson:"notificationPreferences"`
	Theme                   string `bson:"theme"`
	OtherSetting            string `bson:"otherSetting"`
}

type profileDoc struct {
	Avatar     string  `bson:"avatar"`
	Bio        string  `bson:"bio"`
	Rating     float64 `bson:"rating"`
	TrustScore string  `bson:"trustScore"`
	Verified   bool    `bson:"verified"`
}

type userDoc struct {
	ID           string      `bson:"_id"`
	Seq          int64       `bson:"seq"`
	Name         string      `bson:"name"`
	Email        string      `bson:"email"`
	EmailLower   string      `bson:"emailLower"`
	Password     string      `bson:"password"`
	Settings     settingsDoc `bson:"settings"`
	Profile      profileDoc  `bson:"profile"`
	BookedRides  []string    `bson:"bookedRides"`
	OfferedRides []string    `bson:"offeredRides"`
	CreatedAt    time.Time   `bson:"createdAt"`
	UpdatedAt    time.Time   `bson:"updatedAt"`
}

// Repo is a MongoDB implementation of userrepo.Repository.
// Reference lists are embedded arrays maintained with $addToSet and $pull.
type Repo struct {
	db   *mongo.Database
	coll *mongo.Collection
}

func NewRepo(db *mongo.Database) *Repo {
	return &Repo{db: db, coll: db.Collection(mongoadapter.UsersCollection)}
}

func (r *Repo) Create(ctx context.Context, u domain.User) error {
	if u.ID == "" {
		return errors.New("empty user id")
	}
	seq, err := mongoadapter.NextSeq(ctx, r.db, mongoadapter.UsersCollection)
	if err != nil {
		return err
	}
	doc := toDoc(u)
	doc.Seq = seq
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return mapDuplicate(err)
	}
	return nil
}

func (r *Repo) Update(ctx context.Context, u domain.User) error {
	doc := toDoc(u)
	res, err := r.coll.UpdateByID(ctx, string(u.ID), bson.M{"$set": bson.M{
		"name":       doc.Name,
		"email":      doc.Email,
		"emailLower": doc.EmailLower,
		"password":   doc.Password,
		"settings":   doc.Settings,
		"profile":    doc.Profile,
		"updatedAt":  doc.UpdatedAt,
	}})
	if err != nil {
		return mapDuplicate(err)
	}
	if res.MatchedCount == 0 {
		return userrepo.ErrNotFound
	}
	return nil
}

func (r *Repo) GetByID(ctx context.Context, id domain.UserID) (domain.User, error) {
	return r.findOne(ctx, bson.M{"_id": string(id)})
}

func (r *Repo) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	return r.findOne(ctx, bson.M{"emailLower": strings.ToLower(email)})
}

func (r *Repo) List(ctx context.Context) ([]domain.User, error) {
	cur, err := r.coll.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "seq", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var docs []userDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]domain.User, 0, len(docs))
	for _, d := range docs {
		out = append(out, fromDoc(d))
	}
	return out, nil
}

func (r *Repo) AddBookedRide(ctx context.Context, id domain.UserID, rideID domain.RideID) error {
	return r.updateRefs(ctx, id, bson.M{"$addToSet": bson.M{"bookedRides": string(rideID)}})
}

func (r *Repo) RemoveBookedRide(ctx context.Context, id domain.UserID, rideID domain.RideID) error {
	return r.updateRefs(ctx, id, bson.M{"$pull": bson.M{"bookedRides": string(rideID)}})
}

func (r *Repo) AddOfferedRide(ctx context.Context, id domain.UserID, rideID domain.RideID) error {
	return r.updateRefs(ctx, id, bson.M{"$addToSet": bson.M{"offeredRides": string(rideID)}})
}

func (r *Repo) RemoveOfferedRide(ctx context.Context, id domain.UserID, rideID domain.RideID) error {
	return r.updateRefs(ctx, id, bson.M{"$pull": bson.M{"offeredRides": string(rideID)}})
}

func (r *Repo) RemoveBookedRideFromAll(ctx context.Context, rideID domain.RideID) error {
	_, err := r.coll.UpdateMany(ctx,
		bson.M{"bookedRides": string(rideID)},
		bson.M{"$pull": bson.M{"bookedRides": string(rideID)}},
	)
	return err
}

func (r *Repo) ClearAllBookedRides(ctx context.Context) error {
	_, err := r.coll.UpdateMany(ctx, bson.M{}, bson.M{"$set": bson.M{"bookedRides": bson.A{}}})
	return err
}

func (r *Repo) DeleteAll(ctx context.Context) error {
	_, err := r.coll.DeleteMany(ctx, bson.M{})
	return err
}

func (r *Repo) updateRefs(ctx context.Context, id domain.UserID, update bson.M) error {
	res, err := r.coll.UpdateByID(ctx, string(id), update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return userrepo.ErrNotFound
	}
	return nil
}

func (r *Repo) findOne(ctx context.Context, filter bson.M) (domain.User, error) {
	var doc userDoc
	if err := r.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.User{}, userrepo.ErrNotFound
		}
		return domain.User{}, err
	}
	return fromDoc(doc), nil
}

func mapDuplicate(err error) error {
	switch {
	case mongoadapter.IsDuplicateKeyOn(err, mongoadapter.UsersEmailUniqueIndex):
		return userrepo.ErrEmailTaken
	case mongo.IsDuplicateKeyError(err):
		return userrepo.ErrAlreadyExists
	default:
		return err
	}
}

func toDoc(u domain.User) userDoc {
	return userDoc{
		ID:         string(u.ID),
		Name:       u.Name,
		Email:      u.Email,
		EmailLower: strings.ToLower(u.Email),
		Password:   u.Password,
		Settings: settingsDoc{
			NotificationPreferences: u.Settings.NotificationPreferences,
			Theme:                   u.Settings.Theme,
			OtherSetting:            u.Settings.OtherSetting,
		},
		Profile: profileDoc{
			Avatar:     u.Profile.Avatar,
			Bio:        u.Profile.Bio,
			Rating:     u.Profile.Rating,
			TrustScore: string(u.Profile.TrustTier),
			Verified:   u.Profile.Verified,
		},
		BookedRides:  rideIDsToStrings(u.BookedRides),
		OfferedRides: rideIDsToStrings(u.OfferedRides),
		CreatedAt:    u.CreatedAt.UTC(),
		UpdatedAt:    u.UpdatedAt.UTC(),
	}
}

func fromDoc(d userDoc) domain.User {
	u := domain.User{
		ID:       domain.UserID(d.ID),
		Name:     d.Name,
		Email:    d.Email,
		Password: d.Password,
		Settings: domain.Settings{
			NotificationPreferences: d.Settings.NotificationPreferences,
			Theme:                   d.Settings.Theme,
			OtherSetting:            d.Settings.OtherSetting,
		},
		Profile: domain.Profile{
			Avatar:    d.Profile.Avatar,
			Bio:       d.Profile.Bio,
			Rating:    d.Profile.Rating,
			TrustTier: domain.TrustTier(d.Profile.TrustScore),
			Verified:  d.Profile.Verified,
		},
		CreatedAt: d.CreatedAt.UTC(),
		UpdatedAt: d.UpdatedAt.UTC(),
	}
	for _, id := range d.BookedRides {
		u.BookedRides = append(u.BookedRides, domain.RideID(id))
	}
	for _, id := range d.OfferedRides {
		u.OfferedRides = append(u.OfferedRides, domain.RideID(id))
	}
	return u
}

func rideIDsToStrings(ids []domain.RideID) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[domain.RideID]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, string(id))
	}
	return out
}
