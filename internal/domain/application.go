package domain

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	MaxCoverLetterLength        = 1000
	MaxRejectionReasonLength    = 500
	MinCancellationReasonLength = 10
	MaxCancellationReasonLength = 500
)

// Application is one doctor's application to one job.
//
// ConfirmationToken holds the digest of the doctor's confirmation token. It is
// set only while Status is EMPLOYER_APPROVED; every transition out of that
// state clears it together with ConfirmationExpiresAt.
type Application struct {
	ID                    string            `db:"id"                      json:"id"`
	JobID                 string            `db:"job_id"                  json:"jobId"`
	DoctorID              string            `db:"doctor_id"               json:"doctorId"`
	Status                ApplicationStatus `db:"status"                  json:"status"`
	CoverLetter           *string           `db:"cover_letter"            json:"coverLetter,omitempty"`
	AppliedAt             time.Time         `db:"applied_at"              json:"appliedAt"`
	EmployerApprovedAt    *time.Time        `db:"employer_approved_at"    json:"employerApprovedAt,omitempty"`
	ConfirmationToken     *string           `db:"confirmation_token"      json:"-"`
	ConfirmationExpiresAt *time.Time        `db:"confirmation_expires_at" json:"confirmationExpiresAt,omitempty"`
	ConfirmedAt           *time.Time        `db:"confirmed_at"            json:"confirmedAt,omitempty"`
	RejectedAt            *time.Time        `db:"rejected_at"             json:"rejectedAt,omitempty"`
	RejectionReason       *string           `db:"rejection_reason"        json:"rejectionReason,omitempty"`
	CancelledAt           *time.Time        `db:"cancelled_at"            json:"cancelledAt,omitempty"`
	CancellationReason    *string           `db:"cancellation_reason"     json:"cancellationReason,omitempty"`
	CompletedAt           *time.Time        `db:"completed_at"            json:"completedAt,omitempty"`
	UpdatedAt             time.Time         `db:"updated_at"              json:"updatedAt"`
}

// NewApplication builds a PENDING application. An empty cover letter is stored as NULL.
func NewApplication(id, jobID, doctorID, coverLetter string, now time.Time) (*Application, error) {
	a := &Application{
		ID:        id,
		JobID:     jobID,
		DoctorID:  doctorID,
		Status:    StatusPending,
		AppliedAt: now,
		UpdatedAt: now,
	}

	coverLetter = strings.TrimSpace(coverLetter)
	if utf8.RuneCountInString(coverLetter) > MaxCoverLetterLength {
		return nil, InvalidInput(fmt.Sprintf("coverLetter must be at most %d characters", MaxCoverLetterLength))
	}
	if coverLetter != "" {
		a.CoverLetter = &coverLetter
	}
	return a, nil
}

func (a *Application) transition(to ApplicationStatus, now time.Time) error {
	if err := ValidateTransition(a.Status, to); err != nil {
		return err
	}
	if a.Status == StatusEmployerApproved {
		a.ConfirmationToken = nil
		a.ConfirmationExpiresAt = nil
	}
	a.Status = to
	a.UpdatedAt = now
	return nil
}

// Approve moves PENDING to EMPLOYER_APPROVED and attaches the token digest.
func (a *Application) Approve(tokenDigest string, expiresAt, now time.Time) error {
	if a.Status != StatusPending {
		return InvalidState(fmt.Sprintf("only PENDING applications can be approved (current: %s)", a.Status))
	}
	if err := a.transition(StatusEmployerApproved, now); err != nil {
		return err
	}
	a.EmployerApprovedAt = &now
	a.ConfirmationToken = &tokenDigest
	a.ConfirmationExpiresAt = &expiresAt
	return nil
}

// Reject moves PENDING to EMPLOYER_REJECTED. The reason is optional.
func (a *Application) Reject(reason string, now time.Time) error {
	if a.Status != StatusPending {
		return InvalidState(fmt.Sprintf("only PENDING applications can be rejected (current: %s)", a.Status))
	}
	reason = strings.TrimSpace(reason)
	if utf8.RuneCountInString(reason) > MaxRejectionReasonLength {
		return InvalidInput(fmt.Sprintf("reason must be at most %d characters", MaxRejectionReasonLength))
	}
	if err := a.transition(StatusEmployerRejected, now); err != nil {
		return err
	}
	a.RejectedAt = &now
	if reason != "" {
		a.RejectionReason = &reason
	}
	return nil
}

// Confirm moves EMPLOYER_APPROVED to DOCTOR_CONFIRMED, consuming the token.
func (a *Application) Confirm(now time.Time) error {
	if err := a.transition(StatusDoctorConfirmed, now); err != nil {
		return err
	}
	a.ConfirmedAt = &now
	return nil
}

// Decline moves EMPLOYER_APPROVED to DOCTOR_REJECTED, consuming the token.
func (a *Application) Decline(now time.Time) error {
	if err := a.transition(StatusDoctorRejected, now); err != nil {
		return err
	}
	a.RejectedAt = &now
	return nil
}

// Cancel moves DOCTOR_CONFIRMED to CANCELLED. Callers validate reason length
// for doctor cancellations; evictions pass the system reason.
func (a *Application) Cancel(reason string, now time.Time) error {
	if err := a.transition(StatusCancelled, now); err != nil {
		return err
	}
	a.CancelledAt = &now
	a.CancellationReason = &reason
	return nil
}

// Complete moves DOCTOR_CONFIRMED to COMPLETED.
func (a *Application) Complete(now time.Time) error {
	if err := a.transition(StatusCompleted, now); err != nil {
		return err
	}
	a.CompletedAt = &now
	return nil
}

// HasTokenDigest reports whether digest is the live confirmation token.
func (a *Application) HasTokenDigest(digest string) bool {
	return a.Status == StatusEmployerApproved && a.ConfirmationToken != nil && *a.ConfirmationToken == digest
}

// TokenExpired reports whether the confirmation window has closed at now.
// An application without an expiry never expires.
func (a *Application) TokenExpired(now time.Time) bool {
	return a.ConfirmationExpiresAt != nil && !now.Before(*a.ConfirmationExpiresAt)
}

// ValidateCancellationReason checks a doctor-supplied reason against [minLen, maxLen].
func ValidateCancellationReason(reason string, minLen, maxLen int) (string, error) {
	reason = strings.TrimSpace(reason)
	n := utf8.RuneCountInString(reason)
	if n < minLen || n > maxLen {
		return "", InvalidInput(fmt.Sprintf("cancellation reason must be between %d and %d characters", minLen, maxLen))
	}
	return reason, nil
}
