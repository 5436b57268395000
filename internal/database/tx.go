package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/krekz/maulocum-sub000/internal/domain"
)

const jobColumns = `id, facility_id, title, doctors_needed, status, start_date, end_date, created_at, updated_at`

const applicationColumns = `id, job_id, doctor_id, status, cover_letter, applied_at,
	employer_approved_at, confirmation_token, confirmation_expires_at, confirmed_at,
	rejected_at, rejection_reason, cancelled_at, cancellation_reason, completed_at, updated_at`

// Tx is one open transaction. Methods named Lock* take a row lock held until
// the transaction ends; callers lock the job before any of its applications.
type Tx struct {
	tx *sqlx.Tx
}

// NewTx wraps an already open transaction.
func NewTx(tx *sqlx.Tx) *Tx { return &Tx{tx: tx} }

func (t *Tx) get(ctx context.Context, dest any, op, query string, args ...any) error {
	if err := t.tx.GetContext(ctx, dest, query, args...); err != nil {
		mapped := mapError(err)
		if errors.Is(mapped, domain.ErrNotFound) {
			return mapped
		}
		return fmt.Errorf("%s: %w", op, mapped)
	}
	return nil
}

func (t *Tx) exec(ctx context.Context, op, query string, args ...any) error {
	if _, err := t.tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("%s: %w", op, mapError(err))
	}
	return nil
}

// execOne is exec that reports domain.ErrNotFound when no row was affected.
func (t *Tx) execOne(ctx context.Context, op, query string, args ...any) error {
	res, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, mapError(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: get affected rows: %w", op, err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ====================
// Jobs
// ====================

func (t *Tx) GetJob(ctx context.Context, id string) (*domain.Job, error) {
	var j domain.Job
	if err := t.get(ctx, &j, "get job", `SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &j, nil
}

// LockJob reads a job with FOR UPDATE, serializing capacity changes on it.
func (t *Tx) LockJob(ctx context.Context, id string) (*domain.Job, error) {
	var j domain.Job
	if err := t.get(ctx, &j, "lock job", `SELECT `+jobColumns+` FROM jobs WHERE id = $1 FOR UPDATE`, id); err != nil {
		return nil, err
	}
	return &j, nil
}

func (t *Tx) InsertJob(ctx context.Context, j *domain.Job) error {
	return t.exec(ctx, "insert job", `
		INSERT INTO jobs (`+jobColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		j.ID, j.FacilityID, j.Title, j.DoctorsNeeded, j.Status, j.StartDate, j.EndDate, j.CreatedAt, j.UpdatedAt)
}

func (t *Tx) UpdateJob(ctx context.Context, j *domain.Job) error {
	return t.execOne(ctx, "update job", `
		UPDATE jobs
		SET title = $2, doctors_needed = $3, status = $4, start_date = $5, end_date = $6, updated_at = $7
		WHERE id = $1`,
		j.ID, j.Title, j.DoctorsNeeded, j.Status, j.StartDate, j.EndDate, j.UpdatedAt)
}

// ====================
// Applications
// ====================

func (t *Tx) InsertApplication(ctx context.Context, a *domain.Application) error {
	return t.exec(ctx, "insert application", `
		INSERT INTO job_applications (id, job_id, doctor_id, status, cover_letter, applied_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		a.ID, a.JobID, a.DoctorID, a.Status, a.CoverLetter, a.AppliedAt, a.UpdatedAt)
}

func (t *Tx) GetApplication(ctx context.Context, id string) (*domain.Application, error) {
	var a domain.Application
	err := t.get(ctx, &a, "get application",
		`SELECT `+applicationColumns+` FROM job_applications WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// LockApplication reads an application with FOR UPDATE.
func (t *Tx) LockApplication(ctx context.Context, id string) (*domain.Application, error) {
	var a domain.Application
	err := t.get(ctx, &a, "lock application",
		`SELECT `+applicationColumns+` FROM job_applications WHERE id = $1 FOR UPDATE`, id)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// FindApplicationByToken looks up the application holding a live token digest.
func (t *Tx) FindApplicationByToken(ctx context.Context, digest string) (*domain.Application, error) {
	var a domain.Application
	err := t.get(ctx, &a, "find application by token",
		`SELECT `+applicationColumns+` FROM job_applications WHERE confirmation_token = $1`, digest)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (t *Tx) UpdateApplication(ctx context.Context, a *domain.Application) error {
	return t.execOne(ctx, "update application", `
		UPDATE job_applications
		SET status = $2,
		    employer_approved_at = $3,
		    confirmation_token = $4,
		    confirmation_expires_at = $5,
		    confirmed_at = $6,
		    rejected_at = $7,
		    rejection_reason = $8,
		    cancelled_at = $9,
		    cancellation_reason = $10,
		    completed_at = $11,
		    updated_at = $12
		WHERE id = $1`,
		a.ID, a.Status, a.EmployerApprovedAt, a.ConfirmationToken, a.ConfirmationExpiresAt, a.ConfirmedAt,
		a.RejectedAt, a.RejectionReason, a.CancelledAt, a.CancellationReason, a.CompletedAt, a.UpdatedAt)
}

func (t *Tx) DeleteApplication(ctx context.Context, id string) error {
	return t.execOne(ctx, "delete application", `DELETE FROM job_applications WHERE id = $1`, id)
}

// ListApplicationsByDoctor returns a doctor's applications, newest first, with job context.
func (t *Tx) ListApplicationsByDoctor(ctx context.Context, doctorID string) ([]domain.ApplicationView, error) {
	views := []domain.ApplicationView{}
	err := t.tx.SelectContext(ctx, &views, `
		SELECT a.id, a.job_id, a.doctor_id, a.status, a.cover_letter, a.applied_at,
		       a.employer_approved_at, a.confirmation_token, a.confirmation_expires_at, a.confirmed_at,
		       a.rejected_at, a.rejection_reason, a.cancelled_at, a.cancellation_reason, a.completed_at, a.updated_at,
		       j.title AS job_title, j.status AS job_status, j.start_date AS job_start_date,
		       j.end_date AS job_end_date, f.name AS facility_name
		FROM job_applications a
		JOIN jobs j ON j.id = a.job_id
		JOIN facilities f ON f.id = j.facility_id
		WHERE a.doctor_id = $1
		ORDER BY a.applied_at DESC, a.id`, doctorID)
	if err != nil {
		return nil, fmt.Errorf("list applications by doctor: %w", err)
	}
	return views, nil
}

// ListApplicationsByJob returns a job's applications, oldest first.
func (t *Tx) ListApplicationsByJob(ctx context.Context, jobID string) ([]domain.Application, error) {
	apps := []domain.Application{}
	err := t.tx.SelectContext(ctx, &apps,
		`SELECT `+applicationColumns+` FROM job_applications WHERE job_id = $1 ORDER BY applied_at, id`, jobID)
	if err != nil {
		return nil, fmt.Errorf("list applications by job: %w", err)
	}
	return apps, nil
}

// LockConfirmedForJob returns the job's DOCTOR_CONFIRMED applications, locked.
func (t *Tx) LockConfirmedForJob(ctx context.Context, jobID string) ([]domain.Application, error) {
	apps := []domain.Application{}
	err := t.tx.SelectContext(ctx, &apps, `
		SELECT `+applicationColumns+`
		FROM job_applications
		WHERE job_id = $1 AND status = 'DOCTOR_CONFIRMED'
		ORDER BY confirmed_at, id
		FOR UPDATE`, jobID)
	if err != nil {
		return nil, fmt.Errorf("lock confirmed applications: %w", err)
	}
	return apps, nil
}

// CompleteEnded moves DOCTOR_CONFIRMED applications whose job ended before now
// to COMPLETED. An empty doctorID sweeps every doctor. Rows locked by another
// transaction are skipped and picked up by a later sweep.
func (t *Tx) CompleteEnded(ctx context.Context, doctorID string, now time.Time) ([]string, error) {
	ids := []string{}
	err := t.tx.SelectContext(ctx, &ids, `
		UPDATE job_applications
		SET status = 'COMPLETED', completed_at = $1, updated_at = $1
		WHERE id IN (
			SELECT a.id
			FROM job_applications a
			JOIN jobs j ON j.id = a.job_id
			WHERE a.status = 'DOCTOR_CONFIRMED'
			  AND j.end_date < $1
			  AND ($2::text = '' OR a.doctor_id = $2)
			FOR UPDATE OF a SKIP LOCKED
		)
		RETURNING id`, now, doctorID)
	if err != nil {
		return nil, fmt.Errorf("complete ended applications: %w", err)
	}
	return ids, nil
}

// ====================
// Roster
// ====================

func (t *Tx) CountRoster(ctx context.Context, jobID string) (int, error) {
	var n int
	if err := t.get(ctx, &n, "count roster", `SELECT COUNT(*) FROM accepted_doctors WHERE job_id = $1`, jobID); err != nil {
		return 0, err
	}
	return n, nil
}

func (t *Tx) InsertRosterEntry(ctx context.Context, e *domain.RosterEntry) error {
	err := t.tx.QueryRowxContext(ctx, `
		INSERT INTO accepted_doctors (application_id, job_id, doctor_id, accepted_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id`,
		e.ApplicationID, e.JobID, e.DoctorID, e.AcceptedAt).Scan(&e.ID)
	if err != nil {
		return fmt.Errorf("insert roster entry: %w", mapError(err))
	}
	return nil
}

// DeleteRosterEntry removes the seat held by applicationID. A missing entry is
// domain.ErrNotFound.
func (t *Tx) DeleteRosterEntry(ctx context.Context, applicationID string) error {
	return t.execOne(ctx, "delete roster entry",
		`DELETE FROM accepted_doctors WHERE application_id = $1`, applicationID)
}

// ListRosterNewestFirst returns up to limit entries in eviction order.
func (t *Tx) ListRosterNewestFirst(ctx context.Context, jobID string, limit int) ([]domain.RosterEntry, error) {
	entries := []domain.RosterEntry{}
	err := t.tx.SelectContext(ctx, &entries, `
		SELECT id, application_id, job_id, doctor_id, accepted_at
		FROM accepted_doctors
		WHERE job_id = $1
		ORDER BY accepted_at DESC, id DESC
		LIMIT $2`, jobID, limit)
	if err != nil {
		return nil, fmt.Errorf("list roster: %w", err)
	}
	return entries, nil
}

// ====================
// Tokens
// ====================

func (t *Tx) RecordConsumedToken(ctx context.Context, c *domain.ConsumedToken) error {
	return t.exec(ctx, "record consumed token", `
		INSERT INTO consumed_confirmation_tokens (token_digest, application_id, outcome, consumed_at)
		VALUES ($1, $2, $3, $4)`,
		c.Digest, c.ApplicationID, c.Outcome, c.ConsumedAt)
}

func (t *Tx) GetConsumedToken(ctx context.Context, digest string) (*domain.ConsumedToken, error) {
	var c domain.ConsumedToken
	err := t.get(ctx, &c, "get consumed token", `
		SELECT token_digest, application_id, outcome, consumed_at
		FROM consumed_confirmation_tokens
		WHERE token_digest = $1`, digest)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ====================
// Parties
// ====================

func (t *Tx) GetDoctor(ctx context.Context, id string) (*domain.Doctor, error) {
	var d domain.Doctor
	if err := t.get(ctx, &d, "get doctor",
		`SELECT id, full_name, email, phone FROM doctors WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &d, nil
}

func (t *Tx) GetFacility(ctx context.Context, id string) (*domain.Facility, error) {
	var f domain.Facility
	if err := t.get(ctx, &f, "get facility",
		`SELECT id, name, contact_email, contact_phone FROM facilities WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &f, nil
}

// ====================
// Outbox
// ====================

// EnqueueNotification writes an outbox row in the caller's transaction.
func (t *Tx) EnqueueNotification(ctx context.Context, n *domain.Notification) error {
	return t.exec(ctx, "enqueue notification", `
		INSERT INTO notification_outbox
			(id, event_type, recipient_kind, recipient_id, application_id, payload,
			 status, retry_count, max_retries, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7, $8, $9, $10, $11)`,
		n.ID, n.EventType, n.RecipientKind, n.RecipientID, n.ApplicationID, string(n.Payload),
		n.Status, n.RetryCount, n.MaxRetries, n.CreatedAt, n.UpdatedAt)
}
