package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	kafkaevents "github.com/rideshare-marketplace/rides-api/internal/adapters/kafka/events"
	memidempotency "github.com/rideshare-marketplace/rides-api/internal/adapters/memory/idempotency"
	memriderepo "github.com/rideshare-marketplace/rides-api/internal/adapters/memory/riderepo"
	memuserrepo "github.com/rideshare-marketplace/rides-api/internal/adapters/memory/userrepo"
	mongoadapter "github.com/rideshare-marketplace/rides-api/internal/adapters/mongo"
	mongoriderepo "github.com/rideshare-marketplace/rides-api/internal/adapters/mongo/riderepo"
	mongouserrepo "github.com/rideshare-marketplace/rides-api/internal/adapters/mongo/userrepo"
	postgres "github.com/rideshare-marketplace/rides-api/internal/adapters/postgres"
	pgidempotency "github.com/rideshare-marketplace/rides-api/internal/adapters/postgres/idempotency"
	pgriderepo "github.com/rideshare-marketplace/rides-api/internal/adapters/postgres/riderepo"
	pguserrepo "github.com/rideshare-marketplace/rides-api/internal/adapters/postgres/userrepo"
	redisidempotency "github.com/rideshare-marketplace/rides-api/internal/adapters/redis/idempotency"
	"github.com/rideshare-marketplace/rides-api/internal/platform/config"
	"github.com/rideshare-marketplace/rides-api/internal/ports/out/events"
	"github.com/rideshare-marketplace/rides-api/internal/ports/out/idempotency"
	"github.com/rideshare-marketplace/rides-api/internal/ports/out/riderepo"
	"github.com/rideshare-marketplace/rides-api/internal/ports/out/userrepo"
)

const connectTimeout = 15 * time.Second

// Backend holds the adapters selected by configuration.
type Backend struct {
	Users  userrepo.Repository
	Rides  riderepo.Repository
	Idem   idempotency.Store
	Events events.Publisher

	closers []func() error
}

// Open connects the storage backend named by cfg.Storage. Redis replaces the default
// idempotency store when REDIS_ADDR is set; Kafka receives events when KAFKA_BROKERS is set.
func Open(ctx context.Context, cfg config.Config, log *slog.Logger) (*Backend, error) {
	if log == nil {
		log = slog.Default()
	}
	b := &Backend{Events: events.Nop{}}

	switch cfg.Storage {
	case config.StoragePostgres:
		cctx, cancel := context.WithTimeout(ctx, connectTimeout)
		defer cancel()
		pool, err := postgres.NewPool(cctx, cfg.DatabaseURL, postgres.PoolOptions{
			MaxConns: int32(cfg.DBMaxConns),
			Migrate:  cfg.RunMigrations,
		})
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		b.closers = append(b.closers, func() error { pool.Close(); return nil })
		b.Users = pguserrepo.NewRepo(pool)
		b.Rides = pgriderepo.NewRepo(pool)
		b.Idem = pgidempotency.NewStore(pool, cfg.IdempotencyTTL)
		log.Info("storage backend ready", "backend", cfg.Storage, "migrate", cfg.RunMigrations)

	case config.StorageMongo:
		cctx, cancel := context.WithTimeout(ctx, connectTimeout)
		defer cancel()
		client, db, err := mongoadapter.Connect(cctx, cfg.MongoURI, cfg.MongoDatabase, mongoadapter.ClientOptions{
			ConnectTimeout: connectTimeout,
			EnsureIndexes:  cfg.RunMigrations,
		})
		if err != nil {
			return nil, fmt.Errorf("open mongodb: %w", err)
		}
		b.closers = append(b.closers, func() error {
			dctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return client.Disconnect(dctx)
		})
		b.Users = mongouserrepo.NewRepo(db)
		b.Rides = mongoriderepo.NewRepo(db)
		b.Idem = memidempotency.NewStore()
		log.Info("storage backend ready", "backend", cfg.Storage, "database", cfg.MongoDatabase)

	default:
		b.Users = memuserrepo.NewRepo()
		b.Rides = memriderepo.NewRepo()
		b.Idem = memidempotency.NewStore()
		log.Info("storage backend ready", "backend", config.StorageMemory)
	}

	if cfg.RedisAddr != "" {
		client := redisidempotency.NewClient(cfg.RedisAddr, cfg.RedisPassword)
		b.closers = append(b.closers, client.Close)
		b.Idem = redisidempotency.NewStore(client, redisidempotency.DefaultKeyPrefix, cfg.IdempotencyTTL)
		log.Info("idempotency store ready", "store", "redis", "addr", cfg.RedisAddr, "ttl", cfg.IdempotencyTTL.String())
	}

	if len(cfg.KafkaBrokers) > 0 {
		pub := kafkaevents.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		b.closers = append(b.closers, pub.Close)
		b.Events = pub
		log.Info("event publisher ready", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}

	return b, nil
}

// Close releases connections in reverse order of opening.
func (b *Backend) Close() error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	b.closers = nil
	return errors.Join(errs...)
}
