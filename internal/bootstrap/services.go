package bootstrap

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/krekz/maulocum-sub000/internal/config"
	"github.com/krekz/maulocum-sub000/internal/database"
	infralogger "github.com/krekz/maulocum-sub000/internal/infra/logger"
	"github.com/krekz/maulocum-sub000/internal/metrics"
	"github.com/krekz/maulocum-sub000/internal/scheduler"
	"github.com/krekz/maulocum-sub000/internal/service"
	"github.com/krekz/maulocum-sub000/internal/tokens"
)

// txStore adapts database.Store to the service's transaction port.
type txStore struct {
	*database.Store
}

func (s txStore) WithinTx(ctx context.Context, fn func(service.Tx) error) error {
	return s.InTx(ctx, func(tx *database.Tx) error { return fn(tx) })
}

// SetupMetrics registers the service metrics when enabled. It returns nil
// otherwise.
func SetupMetrics(cfg *config.Config) *metrics.Metrics {
	if !cfg.Metrics.Enabled {
		return nil
	}
	return metrics.New(prometheus.DefaultRegisterer)
}

// SetupBookingService wires the booking service over db. m may be nil.
func SetupBookingService(
	cfg *config.Config,
	db *sqlx.DB,
	log infralogger.Logger,
	m *metrics.Metrics,
) (*service.BookingService, error) {
	issuer, err := tokens.NewIssuer(cfg.Tokens.Secret, cfg.Tokens.TTL)
	if err != nil {
		return nil, fmt.Errorf("create token issuer: %w", err)
	}

	// A nil *Metrics must not become a non-nil interface.
	var recorder service.Recorder
	if m != nil {
		recorder = m
	}

	return service.NewBookingService(
		txStore{database.NewStore(db)},
		issuer,
		log,
		recorder,
		service.Options{
			PublicBaseURL:          cfg.Server.PublicBaseURL,
			CancelReasonMin:        cfg.Cancellation.MinReasonLength,
			CancelReasonMax:        cfg.Cancellation.MaxReasonLength,
			NotificationMaxRetries: cfg.Outbox.MaxRetries,
		},
	), nil
}

// SetupSweeper builds the cron completion sweeper, or nil when disabled.
func SetupSweeper(cfg *config.Config, svc *service.BookingService, log infralogger.Logger) (*scheduler.Sweeper, error) {
	if !cfg.Sweeper.Enabled {
		log.Info("Completion sweeper disabled; relying on lazy sweep")
		return nil, nil //nolint:nilnil // disabled is not an error
	}

	sweeper, err := scheduler.NewSweeper(log, cfg.Sweeper.Schedule, svc.SweepAll)
	if err != nil {
		return nil, fmt.Errorf("create sweeper: %w", err)
	}
	return sweeper, nil
}
