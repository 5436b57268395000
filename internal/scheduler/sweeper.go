// Package scheduler runs the periodic completion sweep. The lazy sweep on
// list-mine stays authoritative; this only keeps COMPLETED from lagging for
// doctors who never open their list.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	infralogger "github.com/krekz/maulocum-sub000/internal/infra/logger"
)

// DefaultSchedule runs the sweep at minute 5 of every hour.
const DefaultSchedule = "5 * * * *"

const sweepTimeout = 2 * time.Minute

// ErrAlreadyStarted is returned by Start on a running sweeper.
var ErrAlreadyStarted = errors.New("sweeper already started")

// SweepFunc completes ended bookings and reports how many changed.
type SweepFunc func(ctx context.Context, trigger string) (int, error)

// Sweeper runs a SweepFunc on a cron schedule.
type Sweeper struct {
	logger   infralogger.Logger
	sweep    SweepFunc
	schedule string
	cron     *cron.Cron
	ctx      context.Context
	cancel   context.CancelFunc

	mu      sync.Mutex
	started bool
	running sync.Mutex
}

// NewSweeper validates schedule (standard 5-field cron) and builds a Sweeper.
func NewSweeper(log infralogger.Logger, schedule string, sweep SweepFunc) (*Sweeper, error) {
	if schedule == "" {
		schedule = DefaultSchedule
	}
	// Use standard 5-field cron parser (minute hour day month weekday)
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	if _, err := parser.Parse(schedule); err != nil {
		return nil, fmt.Errorf("parse sweep schedule %q: %w", schedule, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Sweeper{
		logger:   log,
		sweep:    sweep,
		schedule: schedule,
		cron:     cron.New(cron.WithParser(parser), cron.WithChain(cron.Recover(cron.DefaultLogger))),
		ctx:      ctx,
		cancel:   cancel,
	}
	return s, nil
}

// Start registers the sweep and starts the cron loop.
func (s *Sweeper) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return ErrAlreadyStarted
	}

	if _, err := s.cron.AddFunc(s.schedule, func() { s.RunOnce(s.ctx) }); err != nil {
		return fmt.Errorf("schedule sweep: %w", err)
	}
	s.cron.Start()
	s.started = true

	s.logger.Info("Completion sweeper started", infralogger.String("schedule", s.schedule))
	return nil
}

// Stop cancels any running sweep and waits for the cron loop to finish.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return
	}

	s.cancel()
	<-s.cron.Stop().Done()
	s.started = false
	s.logger.Info("Completion sweeper stopped")
}

// RunOnce performs one sweep. Overlapping runs are skipped.
func (s *Sweeper) RunOnce(ctx context.Context) {
	if !s.running.TryLock() {
		s.logger.Warn("Previous completion sweep still running, skipping")
		return
	}
	defer s.running.Unlock()

	ctx, cancel := context.WithTimeout(ctx, sweepTimeout)
	defer cancel()

	start := time.Now()
	n, err := s.sweep(ctx, "cron")
	if err != nil {
		s.logger.Error("Completion sweep failed", infralogger.Error(err))
		return
	}
	s.logger.Info("Completion sweep finished",
		infralogger.Int("completed", n),
		infralogger.Duration("took", time.Since(start)),
	)
}
