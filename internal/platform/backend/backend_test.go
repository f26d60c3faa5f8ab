package backend

import (
	"context"
	"testing"

	kafkaevents "github.com/rideshare-marketplace/rides-api/internal/adapters/kafka/events"
	memidempotency "github.com/rideshare-marketplace/rides-api/internal/adapters/memory/idempotency"
	memriderepo "github.com/rideshare-marketplace/rides-api/internal/adapters/memory/riderepo"
	memuserrepo "github.com/rideshare-marketplace/rides-api/internal/adapters/memory/userrepo"
	redisidempotency "github.com/rideshare-marketplace/rides-api/internal/adapters/redis/idempotency"
	"github.com/rideshare-marketplace/rides-api/internal/platform/config"
	"github.com/rideshare-marketplace/rides-api/internal/platform/logging"
	"github.com/rideshare-marketplace/rides-api/internal/ports/out/events"
)

func TestOpen_MemoryDefaults(t *testing.T) {
	t.Parallel()

	b, err := Open(context.Background(), config.Config{Storage: config.StorageMemory}, logging.Discard())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = b.Close() })

	if _, ok := b.Users.(*memuserrepo.Repo); !ok {
		t.Fatalf("Users=%T, want memory repo", b.Users)
	}
	if _, ok := b.Rides.(*memriderepo.Repo); !ok {
		t.Fatalf("Rides=%T, want memory repo", b.Rides)
	}
	if _, ok := b.Idem.(*memidempotency.Store); !ok {
		t.Fatalf("Idem=%T, want memory store", b.Idem)
	}
	if _, ok := b.Events.(events.Nop); !ok {
		t.Fatalf("Events=%T, want Nop", b.Events)
	}
}

func TestOpen_RedisAndKafkaAreLazy(t *testing.T) {
	t.Parallel()

	cfg := config.Config{
		Storage:      config.StorageMemory,
		RedisAddr:    "127.0.0.1:0",
		KafkaBrokers: []string{"127.0.0.1:0"},
		KafkaTopic:   "ride-events",
	}
	b, err := Open(context.Background(), cfg, logging.Discard())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, ok := b.Idem.(*redisidempotency.Store); !ok {
		t.Fatalf("Idem=%T, want redis store", b.Idem)
	}
	if _, ok := b.Events.(*kafkaevents.Publisher); !ok {
		t.Fatalf("Events=%T, want kafka publisher", b.Events)
	}
	if err := b.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestOpen_PostgresRequiresReachableDatabase(t *testing.T) {
	t.Parallel()

	cfg := config.Config{Storage: config.StoragePostgres}
	if _, err := Open(context.Background(), cfg, logging.Discard()); err == nil {
		t.Fatalf("expected error for empty DATABASE_URL")
	}
}
