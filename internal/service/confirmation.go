package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/krekz/maulocum-sub000/internal/domain"
	infralogger "github.com/krekz/maulocum-sub000/internal/infra/logger"
	"github.com/krekz/maulocum-sub000/internal/tokens"
)

const msgInvalidToken = "invalid confirmation link"

// findByToken resolves a raw token to the application holding it. A digest
// that was already spent is AlreadyUsed; anything else unknown is NotFound.
func (s *BookingService) findByToken(ctx context.Context, tx Tx, raw string) (*domain.Application, string, error) {
	if !tokens.WellFormed(raw) {
		return nil, "", domain.NotFound(msgInvalidToken)
	}
	digest := s.tokens.Digest(raw)

	app, err := tx.FindApplicationByToken(ctx, digest)
	if err == nil {
		return app, digest, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, "", fmt.Errorf("find application by token: %w", err)
	}
	return nil, "", s.spentOrUnknown(ctx, tx, digest)
}

func (s *BookingService) spentOrUnknown(ctx context.Context, tx Tx, digest string) error {
	_, err := tx.GetConsumedToken(ctx, digest)
	switch {
	case err == nil:
		return domain.AlreadyUsed("this confirmation link has already been used")
	case errors.Is(err, domain.ErrNotFound):
		return domain.NotFound(msgInvalidToken)
	default:
		return fmt.Errorf("get consumed token: %w", err)
	}
}

// lockByToken resolves the token, then takes the job and application locks and
// re-checks that the token is still live. A concurrent confirm that committed
// first leaves the token cleared, which surfaces as AlreadyUsed.
func (s *BookingService) lockByToken(ctx context.Context, tx Tx, raw string) (*domain.Application, *domain.Job, string, error) {
	peek, digest, err := s.findByToken(ctx, tx, raw)
	if err != nil {
		return nil, nil, "", err
	}
	job, err := tx.LockJob(ctx, peek.JobID)
	if err != nil {
		return nil, nil, "", notFound(err, msgJobNotFound)
	}
	app, err := tx.LockApplication(ctx, peek.ID)
	if err != nil {
		return nil, nil, "", notFound(err, msgInvalidToken)
	}
	if !app.HasTokenDigest(digest) {
		return nil, nil, "", s.spentOrUnknown(ctx, tx, digest)
	}
	return app, job, digest, nil
}

// PreviewConfirmation shows the job behind a confirmation link and how long
// the link stays valid.
func (s *BookingService) PreviewConfirmation(ctx context.Context, raw string) (*domain.ConfirmationPreview, error) {
	var preview domain.ConfirmationPreview

	err := s.run(ctx, "preview confirmation", func(tx Tx) error {
		app, _, err := s.findByToken(ctx, tx, raw)
		if err != nil {
			return err
		}
		now := s.opts.Now()
		if app.TokenExpired(now) {
			return domain.Expired("this confirmation link has expired")
		}
		job, err := tx.GetJob(ctx, app.JobID)
		if err != nil {
			return notFound(err, msgJobNotFound)
		}
		facility, err := tx.GetFacility(ctx, job.FacilityID)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("get facility: %w", err)
		}
		preview = domain.NewConfirmationPreview(app, job, facility, now)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &preview, nil
}

// Confirm spends the token: the application becomes DOCTOR_CONFIRMED, the
// doctor takes a roster seat and the job status is recomputed.
func (s *BookingService) Confirm(ctx context.Context, raw string) (*domain.Application, error) {
	var app *domain.Application
	var change domain.CapacityChange

	err := s.run(ctx, "confirm booking", func(tx Tx) error {
		var job *domain.Job
		var digest string
		var err error
		app, job, digest, err = s.lockByToken(ctx, tx, raw)
		if err != nil {
			return err
		}

		now := s.opts.Now()
		if app.TokenExpired(now) {
			return domain.Expired("this confirmation link has expired")
		}
		if job.Status == domain.JobStatusClosed {
			return domain.InvalidState("job is closed")
		}
		size, err := tx.CountRoster(ctx, job.ID)
		if err != nil {
			return fmt.Errorf("count roster: %w", err)
		}
		if size >= job.DoctorsNeeded {
			return domain.Conflict("all positions for this job have been filled")
		}

		if err = app.Confirm(now); err != nil {
			return err
		}
		if err = tx.UpdateApplication(ctx, app); err != nil {
			return fmt.Errorf("update application: %w", err)
		}
		if err = tx.InsertRosterEntry(ctx, domain.NewRosterEntry(app, now)); err != nil {
			return fmt.Errorf("insert roster entry: %w", err)
		}
		if err = tx.RecordConsumedToken(ctx, &domain.ConsumedToken{
			Digest: digest, ApplicationID: app.ID, Outcome: domain.TokenConfirmed, ConsumedAt: now,
		}); err != nil {
			return fmt.Errorf("record consumed token: %w", err)
		}
		if change, err = s.capacity.Reconcile(ctx, tx, job); err != nil {
			return fmt.Errorf("reconcile job: %w", err)
		}

		_, err = s.notifyFacility(ctx, tx, domain.EventBookingConfirmed, app, job, "")
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log(ctx).Info("Booking confirmed",
		infralogger.String("application_id", app.ID),
		infralogger.String("job_id", app.JobID),
		infralogger.Int("roster_size", change.RosterSize),
		infralogger.String("job_status", string(change.Status)),
	)
	return app, nil
}

// Decline spends the token on a refusal: the application becomes
// DOCTOR_REJECTED. An expired link may still be declined.
func (s *BookingService) Decline(ctx context.Context, raw string) (*domain.Application, error) {
	var app *domain.Application

	err := s.run(ctx, "decline booking", func(tx Tx) error {
		var job *domain.Job
		var digest string
		var err error
		app, job, digest, err = s.lockByToken(ctx, tx, raw)
		if err != nil {
			return err
		}

		now := s.opts.Now()
		if err = app.Decline(now); err != nil {
			return err
		}
		if err = tx.UpdateApplication(ctx, app); err != nil {
			return fmt.Errorf("update application: %w", err)
		}
		if err = tx.RecordConsumedToken(ctx, &domain.ConsumedToken{
			Digest: digest, ApplicationID: app.ID, Outcome: domain.TokenDeclined, ConsumedAt: now,
		}); err != nil {
			return fmt.Errorf("record consumed token: %w", err)
		}

		_, err = s.notifyFacility(ctx, tx, domain.EventApplicationDeclined, app, job, "")
		return err
	})
	if err != nil {
		return nil, err
	}
	return app, nil
}
