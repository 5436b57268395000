package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/krekz/maulocum-sub000/internal/domain"
	infralogger "github.com/krekz/maulocum-sub000/internal/infra/logger"
)

const (
	msgJobNotFound         = "job not found"
	msgApplicationNotFound = "application not found"
)

// CancelResult reports the outcome of a doctor cancellation.
type CancelResult struct {
	Success          bool                     `json:"success"`
	NotifiedEmployer bool                     `json:"notifiedEmployer"`
	Status           domain.ApplicationStatus `json:"status"`
	Deleted          bool                     `json:"deleted"`
}

// Apply creates a PENDING application from doctorID to an OPEN job.
func (s *BookingService) Apply(ctx context.Context, doctorID, jobID, coverLetter string) (*domain.Application, error) {
	var app *domain.Application

	err := s.run(ctx, "apply", func(tx Tx) error {
		job, err := tx.LockJob(ctx, jobID)
		if err != nil {
			return notFound(err, msgJobNotFound)
		}
		if job.Status != domain.JobStatusOpen {
			return domain.InvalidState("job is not accepting applications")
		}
		if _, err = tx.GetDoctor(ctx, doctorID); err != nil {
			return notFound(err, "doctor profile not found")
		}

		app, err = domain.NewApplication(s.opts.NewID(), job.ID, doctorID, coverLetter, s.opts.Now())
		if err != nil {
			return err
		}
		if err = tx.InsertApplication(ctx, app); err != nil {
			if errors.Is(err, domain.ErrDuplicate) {
				return domain.Conflict("you have already applied to this job")
			}
			return fmt.Errorf("insert application: %w", err)
		}

		_, err = s.notifyFacility(ctx, tx, domain.EventApplicationSubmitted, app, job, "")
		return err
	}, infralogger.String("job_id", jobID), infralogger.String("doctor_id", doctorID))
	if err != nil {
		return nil, err
	}

	s.log(ctx).Info("Application submitted",
		infralogger.String("application_id", app.ID),
		infralogger.String("job_id", jobID),
		infralogger.String("doctor_id", doctorID),
	)
	return app, nil
}

// ListMine returns the doctor's applications after completing any confirmed
// bookings whose job has ended. An empty list is NotFound.
func (s *BookingService) ListMine(ctx context.Context, doctorID string) ([]domain.ApplicationView, error) {
	var views []domain.ApplicationView
	var completed []string

	err := s.run(ctx, "list applications", func(tx Tx) error {
		var err error
		completed, err = tx.CompleteEnded(ctx, doctorID, s.opts.Now())
		if err != nil {
			return fmt.Errorf("complete ended applications: %w", err)
		}
		views, err = tx.ListApplicationsByDoctor(ctx, doctorID)
		if err != nil {
			return fmt.Errorf("list applications: %w", err)
		}
		if len(views) == 0 {
			return domain.NotFound("no applications found")
		}
		return nil
	}, infralogger.String("doctor_id", doctorID))
	if err != nil {
		return nil, err
	}

	if len(completed) > 0 {
		s.metrics.RecordSweepCompletions("lazy", len(completed))
		s.log(ctx).Info("Completed ended bookings",
			infralogger.String("doctor_id", doctorID),
			infralogger.Int("count", len(completed)),
		)
	}
	return views, nil
}

// lockOwnedApplication locks the application's job then the application, in
// that order, and hides applications the doctor does not own.
func lockOwnedApplication(ctx context.Context, tx Tx, doctorID, applicationID string) (*domain.Application, *domain.Job, error) {
	peek, err := tx.GetApplication(ctx, applicationID)
	if err != nil {
		return nil, nil, notFound(err, msgApplicationNotFound)
	}
	if peek.DoctorID != doctorID {
		return nil, nil, domain.NotFound(msgApplicationNotFound)
	}

	job, err := tx.LockJob(ctx, peek.JobID)
	if err != nil {
		return nil, nil, notFound(err, msgJobNotFound)
	}
	app, err := tx.LockApplication(ctx, applicationID)
	if err != nil {
		return nil, nil, notFound(err, msgApplicationNotFound)
	}
	return app, job, nil
}

// Withdraw deletes a PENDING application.
func (s *BookingService) Withdraw(ctx context.Context, doctorID, applicationID string) error {
	return s.run(ctx, "withdraw application", func(tx Tx) error {
		app, job, err := lockOwnedApplication(ctx, tx, doctorID, applicationID)
		if err != nil {
			return err
		}
		if app.Status != domain.StatusPending {
			return domain.InvalidState(fmt.Sprintf("only PENDING applications can be withdrawn (current: %s)", app.Status))
		}
		return s.withdrawLocked(ctx, tx, app, job)
	}, infralogger.String("application_id", applicationID))
}

func (s *BookingService) withdrawLocked(ctx context.Context, tx Tx, app *domain.Application, job *domain.Job) error {
	if err := tx.DeleteApplication(ctx, app.ID); err != nil {
		return fmt.Errorf("delete application: %w", err)
	}
	if _, err := s.capacity.Release(ctx, tx, job); err != nil {
		return fmt.Errorf("release job capacity: %w", err)
	}
	return nil
}

// Cancel ends a doctor's application. PENDING behaves like Withdraw. A
// DOCTOR_CONFIRMED booking needs a reason, gives up its roster seat, reopens
// the job and notifies the facility.
func (s *BookingService) Cancel(ctx context.Context, doctorID, applicationID, reason string) (*CancelResult, error) {
	result := &CancelResult{}

	err := s.run(ctx, "cancel application", func(tx Tx) error {
		app, job, err := lockOwnedApplication(ctx, tx, doctorID, applicationID)
		if err != nil {
			return err
		}

		switch app.Status {
		case domain.StatusPending:
			if err = s.withdrawLocked(ctx, tx, app, job); err != nil {
				return err
			}
			result.Deleted = true
			return nil

		case domain.StatusDoctorConfirmed:
			reason, err = domain.ValidateCancellationReason(reason, s.opts.CancelReasonMin, s.opts.CancelReasonMax)
			if err != nil {
				return err
			}
			if err = tx.DeleteRosterEntry(ctx, app.ID); err != nil && !errors.Is(err, domain.ErrNotFound) {
				return fmt.Errorf("delete roster entry: %w", err)
			}
			if err = app.Cancel(reason, s.opts.Now()); err != nil {
				return err
			}
			if err = tx.UpdateApplication(ctx, app); err != nil {
				return fmt.Errorf("update application: %w", err)
			}
			if _, err = s.capacity.Release(ctx, tx, job); err != nil {
				return fmt.Errorf("release job capacity: %w", err)
			}
			result.Status = app.Status
			result.NotifiedEmployer, err = s.notifyFacility(ctx, tx, domain.EventBookingCancelled, app, job, reason)
			return err

		default:
			if app.Status.IsTerminal() {
				return domain.InvalidState(fmt.Sprintf("application is already %s", app.Status))
			}
			return domain.InvalidState(fmt.Sprintf("applications in %s cannot be cancelled", app.Status))
		}
	}, infralogger.String("application_id", applicationID), infralogger.String("doctor_id", doctorID))
	if err != nil {
		return nil, err
	}

	result.Success = true
	s.log(ctx).Info("Application cancelled",
		infralogger.String("application_id", applicationID),
		infralogger.Bool("deleted", result.Deleted),
		infralogger.Bool("notified_employer", result.NotifiedEmployer),
	)
	return result, nil
}
