package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/krekz/maulocum-sub000/internal/domain"
	infralogger "github.com/krekz/maulocum-sub000/internal/infra/logger"
)

// CapacityCoordinator reconciles a job's doctorsNeeded against its roster.
//
// The caller must hold the job row lock (Tx.LockJob) for the whole
// transaction so the roster snapshot cannot change underneath the eviction.
type CapacityCoordinator struct {
	logger        infralogger.Logger
	metrics       Recorder
	now           func() time.Time
	notifyEvicted func(ctx context.Context, tx Tx, app *domain.Application, job *domain.Job) error
}

// Reconcile evicts the most recently accepted doctors until the roster fits,
// then recomputes the job status and persists it if it moved. CLOSED is never
// changed. Running it on a consistent job is a no-op.
func (c *CapacityCoordinator) Reconcile(ctx context.Context, tx Tx, job *domain.Job) (domain.CapacityChange, error) {
	change := domain.CapacityChange{PreviousStatus: job.Status, Evicted: []string{}}

	size, err := tx.CountRoster(ctx, job.ID)
	if err != nil {
		return change, fmt.Errorf("count roster: %w", err)
	}

	if excess := size - job.DoctorsNeeded; excess > 0 {
		evicted, evictErr := c.evict(ctx, tx, job, excess)
		if evictErr != nil {
			return change, evictErr
		}
		change.Evicted = evicted
		size -= len(evicted)
	}

	change.RosterSize = size
	change.Status = job.StatusForRoster(size)

	if err = c.apply(ctx, tx, job, &change); err != nil {
		return change, err
	}
	return change, nil
}

// Release runs after a doctor gives up a seat or a pending application. A
// FILLED job with a free seat goes back to OPEN. Release never fills a job,
// so an OPEN job stays OPEN even when its roster is at capacity after an
// operator reopen.
func (c *CapacityCoordinator) Release(ctx context.Context, tx Tx, job *domain.Job) (domain.CapacityChange, error) {
	change := domain.CapacityChange{PreviousStatus: job.Status, Status: job.Status, Evicted: []string{}}

	size, err := tx.CountRoster(ctx, job.ID)
	if err != nil {
		return change, fmt.Errorf("count roster: %w", err)
	}
	change.RosterSize = size

	if job.Status == domain.JobStatusFilled && size < job.DoctorsNeeded {
		change.Status = domain.JobStatusOpen
	}
	if err = c.apply(ctx, tx, job, &change); err != nil {
		return change, err
	}
	return change, nil
}

// apply persists change.Status when it moved and logs any change.
func (c *CapacityCoordinator) apply(ctx context.Context, tx Tx, job *domain.Job, change *domain.CapacityChange) error {
	if change.Status != job.Status {
		job.Status = change.Status
		job.UpdatedAt = c.now()
		if err := tx.UpdateJob(ctx, job); err != nil {
			return fmt.Errorf("update job status: %w", err)
		}
	}

	if change.Changed() {
		c.logger.Info("Job capacity reconciled",
			infralogger.String("job_id", job.ID),
			infralogger.String("previous_status", string(change.PreviousStatus)),
			infralogger.String("status", string(change.Status)),
			infralogger.Int("roster_size", change.RosterSize),
			infralogger.Int("doctors_needed", job.DoctorsNeeded),
			infralogger.Int("evicted", len(change.Evicted)),
		)
	}
	return nil
}

// evict removes the excess newest roster entries (accepted_at DESC, id DESC).
// Confirmed applications are cancelled with the system reason and their
// doctors notified. An entry whose application already completed only frees
// the seat.
func (c *CapacityCoordinator) evict(ctx context.Context, tx Tx, job *domain.Job, excess int) ([]string, error) {
	entries, err := tx.ListRosterNewestFirst(ctx, job.ID, excess)
	if err != nil {
		return nil, fmt.Errorf("list roster: %w", err)
	}

	now := c.now()
	evicted := make([]string, 0, len(entries))
	for i := range entries {
		entry := &entries[i]

		app, lockErr := tx.LockApplication(ctx, entry.ApplicationID)
		if lockErr != nil && !errors.Is(lockErr, domain.ErrNotFound) {
			return nil, fmt.Errorf("lock evicted application %s: %w", entry.ApplicationID, lockErr)
		}

		if delErr := tx.DeleteRosterEntry(ctx, entry.ApplicationID); delErr != nil {
			return nil, fmt.Errorf("delete roster entry %s: %w", entry.ApplicationID, delErr)
		}
		evicted = append(evicted, entry.ApplicationID)

		if app == nil || app.Status != domain.StatusDoctorConfirmed {
			c.logger.Warn("Evicted roster seat without a confirmed application",
				infralogger.String("job_id", job.ID),
				infralogger.String("application_id", entry.ApplicationID),
			)
			continue
		}

		if err = app.Cancel(domain.EvictionReason, now); err != nil {
			return nil, err
		}
		if err = tx.UpdateApplication(ctx, app); err != nil {
			return nil, fmt.Errorf("cancel evicted application %s: %w", app.ID, err)
		}
		if c.notifyEvicted != nil {
			if err = c.notifyEvicted(ctx, tx, app, job); err != nil {
				return nil, fmt.Errorf("notify evicted doctor: %w", err)
			}
		}
	}

	c.metrics.RecordEvictions(len(evicted))
	return evicted, nil
}
