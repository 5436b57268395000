package domain

import "time"

// TokenOutcome records how a confirmation token was spent.
type TokenOutcome string

const (
	TokenConfirmed TokenOutcome = "confirmed"
	TokenDeclined  TokenOutcome = "declined"
)

// ConsumedToken remembers a spent token digest so replays can be told apart
// from unknown tokens.
type ConsumedToken struct {
	Digest        string       `db:"token_digest"`
	ApplicationID string       `db:"application_id"`
	Outcome       TokenOutcome `db:"outcome"`
	ConsumedAt    time.Time    `db:"consumed_at"`
}

// ConfirmationPreview is what a doctor sees before confirming.
type ConfirmationPreview struct {
	ApplicationID    string    `json:"applicationId"`
	Job              Job       `json:"job"`
	FacilityName     string    `json:"facilityName"`
	ExpiresAt        time.Time `json:"expiresAt"`
	RemainingSeconds int64     `json:"remainingSeconds"`
	Remaining        string    `json:"remaining"`
}

// NewConfirmationPreview computes the remaining window at now.
func NewConfirmationPreview(app *Application, job *Job, facility *Facility, now time.Time) ConfirmationPreview {
	p := ConfirmationPreview{ApplicationID: app.ID, Job: *job}
	if facility != nil {
		p.FacilityName = facility.Name
	}
	if app.ConfirmationExpiresAt != nil {
		p.ExpiresAt = *app.ConfirmationExpiresAt
		remaining := max(app.ConfirmationExpiresAt.Sub(now), 0).Truncate(time.Second)
		p.RemainingSeconds = int64(remaining / time.Second)
		p.Remaining = remaining.String()
	}
	return p
}
