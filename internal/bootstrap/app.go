// Package bootstrap handles application initialization and lifecycle management
// for the locum-bookings service.
package bootstrap

import (
	"context"
	"fmt"

	infralogger "github.com/krekz/maulocum-sub000/internal/infra/logger"
	"github.com/krekz/maulocum-sub000/internal/infra/profiling"
)

// ServiceName identifies the service in logs, health checks and profiles.
const ServiceName = "locum-bookings"

// Version is overridden at build time with -ldflags.
var Version = "dev"

// Serve runs the HTTP API, the notification dispatcher and the optional
// completion sweeper until ctx is cancelled or a signal arrives.
func Serve(ctx context.Context, configPath string) error {
	// Phase 1: Load config and create logger
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return err
	}

	log, err := CreateLogger(cfg, Version)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	// Phase 2: Profiling (env-gated)
	profiling.StartPprofServer(log)
	profiler, err := profiling.StartPyroscope(ServiceName, Version, log)
	if err != nil {
		log.Warn("Continuous profiling unavailable", infralogger.Error(err))
	}
	defer func() { _ = profiler.Stop() }()

	// Phase 3: Database
	db, err := SetupDatabase(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeDatabase(db, log)

	// Phase 4: Domain services
	m := SetupMetrics(cfg)
	svc, err := SetupBookingService(cfg, db, log, m)
	if err != nil {
		return err
	}

	// Phase 5: Notification delivery (optional)
	notifications, err := SetupNotifications(ctx, cfg, db, log, m)
	if err != nil {
		return err
	}
	defer notifications.Close()

	// Phase 6: Completion sweeper (optional)
	sweeper, err := SetupSweeper(cfg, svc, log)
	if err != nil {
		return err
	}
	if sweeper != nil {
		if startErr := sweeper.Start(); startErr != nil {
			return fmt.Errorf("start sweeper: %w", startErr)
		}
		defer sweeper.Stop()
	}

	// Phase 7: HTTP server
	server := SetupHTTPServer(cfg, db, svc, notifications, m, log)
	if runErr := server.RunWithGracefulShutdown(ctx); runErr != nil {
		log.Error("Server error", infralogger.Error(runErr))
		return fmt.Errorf("server error: %w", runErr)
	}

	log.Info("Server exited")
	return nil
}

// Sweep runs one global completion sweep and reports how many bookings
// moved to COMPLETED.
func Sweep(ctx context.Context, configPath string) (int, error) {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return 0, err
	}

	log, err := CreateLogger(cfg, Version)
	if err != nil {
		return 0, err
	}
	defer func() { _ = log.Sync() }()

	db, err := SetupDatabase(ctx, cfg, log)
	if err != nil {
		return 0, err
	}
	defer closeDatabase(db, log)

	svc, err := SetupBookingService(cfg, db, log, nil)
	if err != nil {
		return 0, err
	}

	n, err := svc.SweepAll(ctx, "manual")
	if err != nil {
		return 0, fmt.Errorf("sweep: %w", err)
	}
	return n, nil
}
