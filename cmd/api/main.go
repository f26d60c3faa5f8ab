package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/rideshare-marketplace/rides-api/internal/adapters/httpapi"
	"github.com/rideshare-marketplace/rides-api/internal/app/bookings"
	"github.com/rideshare-marketplace/rides-api/internal/app/rides"
	"github.com/rideshare-marketplace/rides-api/internal/app/users"
	"github.com/rideshare-marketplace/rides-api/internal/platform/backend"
	platformclock "github.com/rideshare-marketplace/rides-api/internal/platform/clock"
	"github.com/rideshare-marketplace/rides-api/internal/platform/config"
	"github.com/rideshare-marketplace/rides-api/internal/platform/logging"
)

func main() {
	// .env is optional; real environment variables win.
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}
	log := logging.NewLogger(cfg.LogLevel)
	slog.SetDefault(log)
	if envErr != nil {
		log.Debug("no .env file loaded", "err", envErr)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	be, err := backend.Open(ctx, cfg, log)
	if err != nil {
		log.Error("open backend", "err", err)
		os.Exit(1)
	}
	defer func() {
		if err := be.Close(); err != nil {
			log.Warn("close backend", "err", err)
		}
	}()

	clk := platformclock.NewSystemClock()
	userSvc := users.NewService(be.Users, be.Rides, clk)
	rideSvc := rides.NewService(be.Rides, be.Users, clk).WithEvents(be.Events, log)
	bookingSvc := bookings.NewService(be.Users, be.Rides, clk, cfg.Policy).WithEvents(be.Events, log)

	api := httpapi.NewServer(userSvc, rideSvc, bookingSvc, be.Idem, log)
	handler := httpapi.NewRouter(api, httpapi.RouterOptions{
		CORSOrigins: cfg.CORSOrigins,
		Maintenance: cfg.MaintenanceAPIs,
		Logger:      log,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddress(),
		Handler:           handler,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("api listening",
			"addr", srv.Addr,
			"storage", cfg.Storage,
			"seat_release", cfg.Policy.SeatRelease,
			"offer_cancel", cfg.Policy.OfferCancel,
			"maintenance", cfg.MaintenanceAPIs,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			log.Error("listen", "err", err)
		}
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("graceful shutdown", "err", err)
	}
}
