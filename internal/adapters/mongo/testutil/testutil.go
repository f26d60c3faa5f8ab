package testutil

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/mongo"

	mongoadapter "github.com/rideshare-marketplace/rides-api/internal/adapters/mongo"
)

// EnvMongoURI names the variable that enables MongoDB-backed tests.
const EnvMongoURI = "TEST_MONGODB_URI"

// OpenDatabase connects to TEST_MONGODB_URI and returns a fresh, indexed database that is
// dropped when the test ends. The test is skipped when the variable is unset.
func OpenDatabase(t *testing.T) *mongo.Database {
	t.Helper()

	uri := strings.TrimSpace(os.Getenv(EnvMongoURI))
	if uri == "" {
		t.Skipf("%s not set; skipping mongodb tests", EnvMongoURI)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	name := "rides_test_" + strings.ReplaceAll(uuid.NewString()[:8], "-", "")
	client, db, err := mongoadapter.Connect(ctx, uri, name, mongoadapter.ClientOptions{EnsureIndexes: true})
	if err != nil {
		t.Fatalf("open mongodb: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = db.Drop(ctx)
		_ = client.Disconnect(ctx)
	})
	return db
}
