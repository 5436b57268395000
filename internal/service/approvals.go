package service

import (
	"context"
	"fmt"

	"github.com/krekz/maulocum-sub000/internal/domain"
	infralogger "github.com/krekz/maulocum-sub000/internal/infra/logger"
)

// lockFacilityApplication locks the application's job then the application and
// hides applications on jobs the facility does not own.
func lockFacilityApplication(ctx context.Context, tx Tx, facilityID, applicationID string) (*domain.Application, *domain.Job, error) {
	peek, err := tx.GetApplication(ctx, applicationID)
	if err != nil {
		return nil, nil, notFound(err, msgApplicationNotFound)
	}
	job, err := tx.LockJob(ctx, peek.JobID)
	if err != nil {
		return nil, nil, notFound(err, msgJobNotFound)
	}
	if job.FacilityID != facilityID {
		return nil, nil, domain.NotFound(msgApplicationNotFound)
	}
	app, err := tx.LockApplication(ctx, applicationID)
	if err != nil {
		return nil, nil, notFound(err, msgApplicationNotFound)
	}
	return app, job, nil
}

// Approve moves a PENDING application to EMPLOYER_APPROVED, issues a
// confirmation token and queues the doctor's confirmation link.
func (s *BookingService) Approve(ctx context.Context, facilityID, applicationID string) (*domain.Application, error) {
	var app *domain.Application

	err := s.run(ctx, "approve application", func(tx Tx) error {
		var job *domain.Job
		var err error
		app, job, err = lockFacilityApplication(ctx, tx, facilityID, applicationID)
		if err != nil {
			return err
		}
		if app.Status != domain.StatusPending {
			return domain.InvalidState(fmt.Sprintf("only PENDING applications can be approved (current: %s)", app.Status))
		}

		now := s.opts.Now()
		issued, err := s.tokens.Issue(now)
		if err != nil {
			return fmt.Errorf("issue confirmation token: %w", err)
		}
		if err = app.Approve(issued.Digest, issued.ExpiresAt, now); err != nil {
			return err
		}
		if err = tx.UpdateApplication(ctx, app); err != nil {
			return fmt.Errorf("update application: %w", err)
		}

		validHours := int(s.tokens.TTL().Hours())
		_, err = s.notifyDoctor(ctx, tx, domain.EventApplicationApproved, app, job, func(p *domain.NotificationPayload) {
			p.ConfirmURL = s.ConfirmURL(issued.Raw)
			p.ExpiresAt = &issued.ExpiresAt
			p.ValidHours = validHours
		})
		return err
	}, infralogger.String("application_id", applicationID), infralogger.String("facility_id", facilityID))
	if err != nil {
		return nil, err
	}

	s.log(ctx).Info("Application approved",
		infralogger.String("application_id", app.ID),
		infralogger.String("job_id", app.JobID),
	)
	return app, nil
}

// Reject moves a PENDING application to EMPLOYER_REJECTED. reason may be empty.
func (s *BookingService) Reject(ctx context.Context, facilityID, applicationID, reason string) (*domain.Application, error) {
	var app *domain.Application

	err := s.run(ctx, "reject application", func(tx Tx) error {
		var job *domain.Job
		var err error
		app, job, err = lockFacilityApplication(ctx, tx, facilityID, applicationID)
		if err != nil {
			return err
		}
		if err = app.Reject(reason, s.opts.Now()); err != nil {
			return err
		}
		if err = tx.UpdateApplication(ctx, app); err != nil {
			return fmt.Errorf("update application: %w", err)
		}

		_, err = s.notifyDoctor(ctx, tx, domain.EventApplicationRejected, app, job, func(p *domain.NotificationPayload) {
			if app.RejectionReason != nil {
				p.Reason = *app.RejectionReason
			}
		})
		return err
	}, infralogger.String("application_id", applicationID), infralogger.String("facility_id", facilityID))
	if err != nil {
		return nil, err
	}
	return app, nil
}
