package mongo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	UsersCollection    = "users"
	RidesCollection    = "rides"
	CountersCollection = "counters"

	// UsersEmailUniqueIndex backs case-insensitive email uniqueness.
	UsersEmailUniqueIndex = "users_email_lower_unique"
)

// Collections lists every collection owned by this service.
var Collections = []string{UsersCollection, RidesCollection, CountersCollection}

type ClientOptions struct {
	ConnectTimeout time.Duration
	// EnsureIndexes creates the required indexes after connecting.
	EnsureIndexes bool
}

// Connect opens a client, pings the primary and returns the named database.
func Connect(ctx context.Context, uri, database string, opts ClientOptions) (*mongo.Client, *mongo.Database, error) {
	if strings.TrimSpace(uri) == "" {
		return nil, nil, errors.New("empty mongodb uri")
	}
	if strings.TrimSpace(database) == "" {
		return nil, nil, errors.New("empty mongodb database")
	}

	co := options.Client().ApplyURI(uri)
	if opts.ConnectTimeout > 0 {
		co.SetConnectTimeout(opts.ConnectTimeout)
	}
	client, err := mongo.Connect(ctx, co)
	if err != nil {
		return nil, nil, fmt.Errorf("connect mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("ping mongodb: %w", err)
	}

	db := client.Database(database)
	if opts.EnsureIndexes {
		if err := EnsureIndexes(ctx, db); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, nil, err
		}
	}
	return client, db, nil
}

// EnsureIndexes is idempotent.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	if db == nil {
		return errors.New("nil mongodb database")
	}
	_, err := db.Collection(UsersCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "emailLower", Value: 1}},
			Options: options.Index().SetUnique(true).SetName(UsersEmailUniqueIndex),
		},
		{
			Keys:    bson.D{{Key: "seq", Value: 1}},
			Options: options.Index().SetName("users_seq"),
		},
		{
			Keys:    bson.D{{Key: "bookedRides", Value: 1}},
			Options: options.Index().SetName("users_booked_rides"),
		},
	})
	if err != nil {
		return fmt.Errorf("create user indexes: %w", err)
	}
	_, err = db.Collection(RidesCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "ownerId", Value: 1}, {Key: "seq", Value: 1}},
			Options: options.Index().SetName("rides_owner_seq"),
		},
		{
			Keys:    bson.D{{Key: "seq", Value: 1}},
			Options: options.Index().SetName("rides_seq"),
		},
	})
	if err != nil {
		return fmt.Errorf("create ride indexes: %w", err)
	}
	return nil
}

// NextSeq returns a monotonically increasing sequence number for name.
// Documents sort by it to keep creation order.
func NextSeq(ctx context.Context, db *mongo.Database, name string) (int64, error) {
	var out struct {
		Seq int64 `bson:"seq"`
	}
	err := db.Collection(CountersCollection).FindOneAndUpdate(
		ctx,
		bson.M{"_id": name},
		bson.M{"$inc": bson.M{"seq": int64(1)}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&out)
	if err != nil {
		return 0, fmt.Errorf("next %s seq: %w", name, err)
	}
	return out.Seq, nil
}

// IsDuplicateKeyOn reports whether err is a duplicate key error raised by the named index.
func IsDuplicateKeyOn(err error, index string) bool {
	if !mongo.IsDuplicateKeyError(err) {
		return false
	}
	return strings.Contains(err.Error(), index)
}
