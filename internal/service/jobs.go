package service

import (
	"context"
	"fmt"
	"time"

	"github.com/krekz/maulocum-sub000/internal/domain"
	infralogger "github.com/krekz/maulocum-sub000/internal/infra/logger"
)

// JobInput is an employer's new posting.
type JobInput struct {
	Title         string    `json:"title"`
	DoctorsNeeded int       `json:"doctorsNeeded"`
	StartDate     time.Time `json:"startDate"`
	EndDate       time.Time `json:"endDate"`
}

// JobUpdateResult is the edited job plus what capacity reconciliation did.
type JobUpdateResult struct {
	Job      domain.Job            `json:"job"`
	Capacity domain.CapacityChange `json:"capacity"`
}

// lockOwnedJob locks a job and hides it from facilities that do not own it.
func lockOwnedJob(ctx context.Context, tx Tx, facilityID, jobID string) (*domain.Job, error) {
	job, err := tx.LockJob(ctx, jobID)
	if err != nil {
		return nil, notFound(err, msgJobNotFound)
	}
	if job.FacilityID != facilityID {
		return nil, domain.NotFound(msgJobNotFound)
	}
	return job, nil
}

// CreateJob posts a new OPEN job for facilityID.
func (s *BookingService) CreateJob(ctx context.Context, facilityID string, in JobInput) (*domain.Job, error) {
	var job *domain.Job

	err := s.run(ctx, "create job", func(tx Tx) error {
		if _, err := tx.GetFacility(ctx, facilityID); err != nil {
			return notFound(err, "facility profile not found")
		}
		var err error
		job, err = domain.NewJob(s.opts.NewID(), facilityID, in.Title, in.DoctorsNeeded, in.StartDate, in.EndDate, s.opts.Now())
		if err != nil {
			return err
		}
		if err = tx.InsertJob(ctx, job); err != nil {
			return fmt.Errorf("insert job: %w", err)
		}
		return nil
	}, infralogger.String("facility_id", facilityID))
	if err != nil {
		return nil, err
	}
	return job, nil
}

// GetJob returns a facility's job with its roster size.
func (s *BookingService) GetJob(ctx context.Context, facilityID, jobID string) (*domain.JobDetail, error) {
	var detail domain.JobDetail

	err := s.run(ctx, "get job", func(tx Tx) error {
		job, err := tx.GetJob(ctx, jobID)
		if err != nil {
			return notFound(err, msgJobNotFound)
		}
		if job.FacilityID != facilityID {
			return domain.NotFound(msgJobNotFound)
		}
		size, err := tx.CountRoster(ctx, jobID)
		if err != nil {
			return fmt.Errorf("count roster: %w", err)
		}
		detail = domain.JobDetail{Job: *job, RosterSize: size}
		return nil
	}, infralogger.String("job_id", jobID))
	if err != nil {
		return nil, err
	}
	return &detail, nil
}

// ListJobApplications returns every application to a facility's job.
func (s *BookingService) ListJobApplications(ctx context.Context, facilityID, jobID string) ([]domain.Application, error) {
	var apps []domain.Application

	err := s.run(ctx, "list job applications", func(tx Tx) error {
		job, err := tx.GetJob(ctx, jobID)
		if err != nil {
			return notFound(err, msgJobNotFound)
		}
		if job.FacilityID != facilityID {
			return domain.NotFound(msgJobNotFound)
		}
		apps, err = tx.ListApplicationsByJob(ctx, jobID)
		if err != nil {
			return fmt.Errorf("list applications: %w", err)
		}
		return nil
	}, infralogger.String("job_id", jobID))
	if err != nil {
		return nil, err
	}
	return apps, nil
}

// UpdateJob applies an employer edit. Capacity is reconciled in the same
// transaction only when doctorsNeeded changes; lowering it below the roster
// evicts the newest accepted doctors. Other edits leave the status alone.
func (s *BookingService) UpdateJob(ctx context.Context, facilityID, jobID string, patch domain.JobPatch) (*JobUpdateResult, error) {
	var result JobUpdateResult

	err := s.run(ctx, "update job", func(tx Tx) error {
		job, err := lockOwnedJob(ctx, tx, facilityID, jobID)
		if err != nil {
			return err
		}
		previousNeeded := job.DoctorsNeeded
		if err = patch.Apply(job, s.opts.Now()); err != nil {
			return err
		}
		if err = tx.UpdateJob(ctx, job); err != nil {
			return fmt.Errorf("update job: %w", err)
		}

		change := domain.CapacityChange{PreviousStatus: job.Status, Status: job.Status, Evicted: []string{}}
		if job.DoctorsNeeded != previousNeeded {
			if change, err = s.capacity.Reconcile(ctx, tx, job); err != nil {
				return fmt.Errorf("reconcile job: %w", err)
			}
		} else if change.RosterSize, err = tx.CountRoster(ctx, job.ID); err != nil {
			return fmt.Errorf("count roster: %w", err)
		}
		result = JobUpdateResult{Job: *job, Capacity: change}
		return nil
	}, infralogger.String("job_id", jobID), infralogger.String("facility_id", facilityID))
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// CloseJob moves a job to CLOSED. Applications and roster are untouched.
func (s *BookingService) CloseJob(ctx context.Context, facilityID, jobID string) (*domain.Job, error) {
	return s.jobTransition(ctx, "close job", facilityID, jobID, func(_ Tx, job *domain.Job) error {
		return job.Close(s.opts.Now())
	})
}

// ReopenJob forces a CLOSED or FILLED job back to OPEN.
func (s *BookingService) ReopenJob(ctx context.Context, facilityID, jobID string) (*domain.Job, error) {
	return s.jobTransition(ctx, "reopen job", facilityID, jobID, func(_ Tx, job *domain.Job) error {
		return job.Reopen(s.opts.Now())
	})
}

// CompleteJob marks every DOCTOR_CONFIRMED application COMPLETED and sets the
// job FILLED.
func (s *BookingService) CompleteJob(ctx context.Context, facilityID, jobID string) (*domain.Job, error) {
	return s.jobTransition(ctx, "complete job", facilityID, jobID, func(tx Tx, job *domain.Job) error {
		apps, err := tx.LockConfirmedForJob(ctx, job.ID)
		if err != nil {
			return fmt.Errorf("lock confirmed applications: %w", err)
		}
		if len(apps) == 0 {
			return domain.NothingToComplete("job has no confirmed bookings to complete")
		}

		now := s.opts.Now()
		for i := range apps {
			if err = apps[i].Complete(now); err != nil {
				return err
			}
			if err = tx.UpdateApplication(ctx, &apps[i]); err != nil {
				return fmt.Errorf("complete application %s: %w", apps[i].ID, err)
			}
		}
		job.MarkCompleted(now)

		s.log(ctx).Info("Job completed",
			infralogger.String("job_id", job.ID),
			infralogger.Int("completed", len(apps)),
		)
		return nil
	})
}

func (s *BookingService) jobTransition(
	ctx context.Context,
	op, facilityID, jobID string,
	mutate func(Tx, *domain.Job) error,
) (*domain.Job, error) {
	var job *domain.Job

	err := s.run(ctx, op, func(tx Tx) error {
		var err error
		job, err = lockOwnedJob(ctx, tx, facilityID, jobID)
		if err != nil {
			return err
		}
		if err = mutate(tx, job); err != nil {
			return err
		}
		if err = tx.UpdateJob(ctx, job); err != nil {
			return fmt.Errorf("update job: %w", err)
		}
		return nil
	}, infralogger.String("job_id", jobID), infralogger.String("facility_id", facilityID))
	if err != nil {
		return nil, err
	}
	return job, nil
}
