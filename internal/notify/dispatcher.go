package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/krekz/maulocum-sub000/internal/domain"
	infralogger "github.com/krekz/maulocum-sub000/internal/infra/logger"
)

const (
	defaultPollInterval   = 5 * time.Second
	defaultBatchSize      = 50
	defaultPublishTimeout = 10 * time.Second
	defaultStaleAge       = 5 * time.Minute
	defaultRetention      = 7 * 24 * time.Hour // Keep delivered notifications for 7 days
	recoveryInterval      = time.Minute
	cleanupInterval       = time.Hour
	retryBatchDivisor     = 2 // Retry batch = batchSize / divisor
)

// Repository is the outbox storage the dispatcher drives.
type Repository interface {
	FetchPending(ctx context.Context, limit int) ([]domain.Notification, error)
	FetchRetryable(ctx context.Context, limit int) ([]domain.Notification, error)
	MarkPublished(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id, errorMsg string) error
	ResetToPending(ctx context.Context, olderThan time.Duration) (int64, error)
	CleanupPublished(ctx context.Context, olderThan time.Duration) (int64, error)
	GetStats(ctx context.Context) (*domain.NotificationStats, error)
}

// Recorder receives delivery metrics.
type Recorder interface {
	RecordNotification(event, status string, took time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) RecordNotification(string, string, time.Duration) {}

// Config holds dispatcher options
type Config struct {
	PollInterval   time.Duration
	BatchSize      int
	PublishTimeout time.Duration
	StaleAge       time.Duration
	Retention      time.Duration
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		PollInterval:   defaultPollInterval,
		BatchSize:      defaultBatchSize,
		PublishTimeout: defaultPublishTimeout,
		StaleAge:       defaultStaleAge,
		Retention:      defaultRetention,
	}
}

func (c *Config) setDefaults() {
	d := DefaultConfig()
	if c.PollInterval <= 0 {
		c.PollInterval = d.PollInterval
	}
	if c.BatchSize <= 0 {
		c.BatchSize = d.BatchSize
	}
	if c.PublishTimeout <= 0 {
		c.PublishTimeout = d.PublishTimeout
	}
	if c.StaleAge <= 0 {
		c.StaleAge = d.StaleAge
	}
	if c.Retention <= 0 {
		c.Retention = d.Retention
	}
}

// Dispatcher polls the outbox and hands notifications to a sink. A failed
// delivery is marked for retry with backoff and never affects the booking
// transition that produced it.
type Dispatcher struct {
	repo    Repository
	sink    Sink
	logger  infralogger.Logger
	metrics Recorder
	tracer  trace.Tracer
	cfg     Config

	stopChan chan struct{}
	wg       sync.WaitGroup
	started  bool
	mu       sync.Mutex
}

// NewDispatcher creates a dispatcher. metrics may be nil.
func NewDispatcher(repo Repository, sink Sink, cfg Config, logger infralogger.Logger, metrics Recorder) *Dispatcher {
	cfg.setDefaults()
	if metrics == nil {
		metrics = nopRecorder{}
	}
	return &Dispatcher{
		repo:     repo,
		sink:     sink,
		logger:   logger,
		metrics:  metrics,
		tracer:   otel.Tracer("notification-dispatcher"),
		cfg:      cfg,
		stopChan: make(chan struct{}),
	}
}

// Start begins the polling, recovery and cleanup loops
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	if d.started {
		d.mu.Unlock()
		return
	}
	d.started = true
	d.mu.Unlock()

	d.wg.Add(1)
	go d.run(ctx)

	d.wg.Add(1)
	go d.every(ctx, recoveryInterval, d.resetStale)

	d.wg.Add(1)
	go d.every(ctx, cleanupInterval, d.cleanup)

	d.logger.Info("Notification dispatcher started",
		infralogger.String("sink", d.sink.Name()),
		infralogger.Duration("poll_interval", d.cfg.PollInterval),
		infralogger.Int("batch_size", d.cfg.BatchSize))
}

// Stop gracefully stops the dispatcher
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.started {
		d.mu.Unlock()
		return
	}
	d.started = false
	d.mu.Unlock()

	close(d.stopChan)
	d.wg.Wait()
	d.logger.Info("Notification dispatcher stopped")
}

// IsRunning returns whether the dispatcher is currently running
func (d *Dispatcher) IsRunning() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.started
}

func (d *Dispatcher) run(ctx context.Context) {
	defer d.wg.Done()

	ticker := time.NewTicker(d.cfg.PollInterval)
	defer ticker.Stop()

	d.ProcessOnce(ctx)

	for {
		select {
		case <-ticker.C:
			d.ProcessOnce(ctx)
		case <-d.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (d *Dispatcher) every(ctx context.Context, interval time.Duration, fn func(context.Context)) {
	defer d.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			fn(ctx)
		case <-d.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

// ProcessOnce delivers one batch of pending and one of retryable notifications.
// It returns how many were delivered.
func (d *Dispatcher) ProcessOnce(ctx context.Context) int {
	delivered := 0

	pending, err := d.repo.FetchPending(ctx, d.cfg.BatchSize)
	if err != nil {
		d.logger.Error("Failed to fetch pending notifications", infralogger.Error(err))
	} else {
		delivered += d.publishBatch(ctx, pending)
	}

	// Retries get a smaller batch so new notifications go out first
	retryable, err := d.repo.FetchRetryable(ctx, max(d.cfg.BatchSize/retryBatchDivisor, 1))
	if err != nil {
		d.logger.Error("Failed to fetch retryable notifications", infralogger.Error(err))
	} else {
		delivered += d.publishBatch(ctx, retryable)
	}

	return delivered
}

func (d *Dispatcher) publishBatch(ctx context.Context, entries []domain.Notification) int {
	delivered := 0
	for i := range entries {
		if d.publishOne(ctx, &entries[i]) {
			delivered++
		}
	}
	return delivered
}

func (d *Dispatcher) publishOne(ctx context.Context, n *domain.Notification) bool {
	ctx, span := d.tracer.Start(ctx, "notification.publish",
		trace.WithAttributes(
			attribute.String("notification_id", n.ID),
			attribute.String("event", string(n.EventType)),
			attribute.String("sink", d.sink.Name()),
			attribute.Int("retry_count", n.RetryCount),
		))
	defer span.End()

	start := time.Now()

	msg, err := Render(n)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "render")
		d.handlePublishError(ctx, n, err, start)
		return false
	}

	pubCtx, cancel := context.WithTimeout(ctx, d.cfg.PublishTimeout)
	defer cancel()

	if err = d.sink.Publish(pubCtx, msg); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "publish")
		d.handlePublishError(ctx, n, fmt.Errorf("%s: %w", d.sink.Name(), err), start)
		return false
	}

	// The message is out; a failed status update only means a possible duplicate later.
	if markErr := d.repo.MarkPublished(ctx, n.ID); markErr != nil {
		d.logger.Error("Failed to mark notification as published",
			infralogger.String("notification_id", n.ID),
			infralogger.Error(markErr))
	}

	d.metrics.RecordNotification(string(n.EventType), string(domain.NotificationPublished), time.Since(start))
	d.logger.Debug("Notification delivered",
		infralogger.String("notification_id", n.ID),
		infralogger.String("event", string(n.EventType)),
		infralogger.Int("retry_count", n.RetryCount))
	return true
}

func (d *Dispatcher) handlePublishError(ctx context.Context, n *domain.Notification, err error, start time.Time) {
	d.metrics.RecordNotification(string(n.EventType), string(domain.NotificationFailed), time.Since(start))

	fields := []infralogger.Field{
		infralogger.String("notification_id", n.ID),
		infralogger.String("event", string(n.EventType)),
		infralogger.String("application_id", n.ApplicationID),
		infralogger.Int("retry_count", n.RetryCount),
		infralogger.Error(err),
	}
	if n.RetryCount+1 >= n.MaxRetries {
		d.logger.Error("Notification delivery failed, retries exhausted", fields...)
	} else {
		d.logger.Warn("Notification delivery failed", fields...)
	}

	if markErr := d.repo.MarkFailed(ctx, n.ID, err.Error()); markErr != nil {
		d.logger.Error("Failed to mark notification as failed",
			infralogger.String("notification_id", n.ID),
			infralogger.Error(markErr))
	}
}

// resetStale resets stale "publishing" rows left by a dispatcher that died mid-batch.
func (d *Dispatcher) resetStale(ctx context.Context) {
	reset, err := d.repo.ResetToPending(ctx, d.cfg.StaleAge)
	if err != nil {
		d.logger.Error("Notification recovery failed", infralogger.Error(err))
	} else if reset > 0 {
		d.logger.Warn("Recovered stale notifications", infralogger.Int64("reset", reset))
	}
}

func (d *Dispatcher) cleanup(ctx context.Context) {
	deleted, err := d.repo.CleanupPublished(ctx, d.cfg.Retention)
	if err != nil {
		d.logger.Error("Notification cleanup failed", infralogger.Error(err))
	} else if deleted > 0 {
		d.logger.Info("Cleaned up delivered notifications", infralogger.Int64("deleted", deleted))
	}
}

// Stats returns outbox counts for the admin endpoint.
func (d *Dispatcher) Stats(ctx context.Context) (*domain.NotificationStats, error) {
	return d.repo.GetStats(ctx)
}
