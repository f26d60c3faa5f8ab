package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rideshare-marketplace/rides-api/internal/app/bookings"
)

type StorageBackend string

const (
	StorageMemory   StorageBackend = "memory"
	StoragePostgres StorageBackend = "postgres"
	StorageMongo    StorageBackend = "mongo"
)

// Config captures the tunable parameters of the API process.
// Values come from environment variables with defaults that run locally without setup.
type Config struct {
	Port     string
	LogLevel string

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	Storage StorageBackend

	DatabaseURL     string
	DBMaxConns      int
	RunMigrations   bool
	MongoURI        string
	MongoDatabase   string
	RedisAddr       string
	RedisPassword   string
	IdempotencyTTL  time.Duration
	KafkaBrokers    []string
	KafkaTopic      string
	CORSOrigins     []string
	Policy          bookings.Policy
	MaintenanceAPIs bool
}

func defaultConfig() Config {
	return Config{
		Port:            "8080",
		LogLevel:        "info",
		ReadTimeout:     10 * time.Second,
		WriteTimeout:    10 * time.Second,
		IdleTimeout:     120 * time.Second,
		ShutdownTimeout: 15 * time.Second,
		Storage:         StorageMemory,
		RunMigrations:   true,
		MongoDatabase:   "rides",
		IdempotencyTTL:  24 * time.Hour,
		KafkaTopic:      "ride-events",
		CORSOrigins:     []string{"*"},
		Policy:          bookings.DefaultPolicy(),
		MaintenanceAPIs: true,
	}
}

// Load reads configuration from the environment. All problems are reported together.
func Load() (Config, error) {
	cfg := defaultConfig()
	var errs []error

	setStringFromEnv(&cfg.Port, "PORT")
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(strings.TrimSpace(v))
	}
	setDurationFromEnv(&cfg.ReadTimeout, "HTTP_READ_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.WriteTimeout, "HTTP_WRITE_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.IdleTimeout, "HTTP_IDLE_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.ShutdownTimeout, "HTTP_SHUTDOWN_TIMEOUT", &errs)

	if v := strings.TrimSpace(os.Getenv("STORAGE_BACKEND")); v != "" {
		switch b := StorageBackend(strings.ToLower(v)); b {
		case StorageMemory, StoragePostgres, StorageMongo:
			cfg.Storage = b
		default:
			errs = append(errs, fmt.Errorf("invalid STORAGE_BACKEND %q (want memory, postgres or mongo)", v))
		}
	}

	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	setIntFromEnv(&cfg.DBMaxConns, "DB_MAX_CONNS", &errs)
	setBoolFromEnv(&cfg.RunMigrations, "MIGRATE", &errs)
	cfg.MongoURI = strings.TrimSpace(os.Getenv("MONGODB_URI"))
	setStringFromEnv(&cfg.MongoDatabase, "MONGODB_DATABASE")

	cfg.RedisAddr = strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	setDurationFromEnv(&cfg.IdempotencyTTL, "IDEMPOTENCY_TTL", &errs)

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = splitAndTrim(brokers)
	}
	setStringFromEnv(&cfg.KafkaTopic, "KAFKA_TOPIC")

	if origins := splitAndTrim(os.Getenv("CORS_ALLOWED_ORIGINS")); len(origins) > 0 {
		cfg.CORSOrigins = origins
	}

	if v := strings.TrimSpace(os.Getenv("SEAT_RELEASE_POLICY")); v != "" {
		p, err := bookings.ParseSeatReleasePolicy(strings.ToLower(v))
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid SEAT_RELEASE_POLICY: %w", err))
		} else {
			cfg.Policy.SeatRelease = p
		}
	}
	if v := strings.TrimSpace(os.Getenv("OFFER_CANCEL_POLICY")); v != "" {
		p, err := bookings.ParseOfferCancelPolicy(strings.ToLower(v))
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid OFFER_CANCEL_POLICY: %w", err))
		} else {
			cfg.Policy.OfferCancel = p
		}
	}
	setBoolFromEnv(&cfg.Policy.CascadeOfferCancel, "CASCADE_OFFER_CANCEL", &errs)
	setBoolFromEnv(&cfg.MaintenanceAPIs, "MAINTENANCE_ENDPOINTS", &errs)

	switch cfg.Storage {
	case StoragePostgres:
		if cfg.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required when STORAGE_BACKEND=postgres"))
		}
	case StorageMongo:
		if cfg.MongoURI == "" {
			errs = append(errs, errors.New("MONGODB_URI is required when STORAGE_BACKEND=mongo"))
		}
	}
	if cfg.DBMaxConns < 0 {
		errs = append(errs, fmt.Errorf("DB_MAX_CONNS must be >= 0"))
	}
	if cfg.IdempotencyTTL < 0 {
		errs = append(errs, fmt.Errorf("IDEMPOTENCY_TTL must be >= 0"))
	}

	return cfg, errors.Join(errs...)
}

// HTTPAddress returns the host:port pair for the HTTP server to bind to.
func (c Config) HTTPAddress() string {
	return ":" + c.Port
}

func setDurationFromEnv(target *time.Duration, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = d
	}
}

func setIntFromEnv(target *int, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = i
	}
}

func setBoolFromEnv(target *bool, key string, errs *[]error) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = b
	}
}

func setStringFromEnv(target *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*target = v
	}
}

func splitAndTrim(v string) []string {
	raw := strings.Split(v, ",")
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		out = append(out, r)
	}
	return out
}
