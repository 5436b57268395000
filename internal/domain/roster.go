package domain

import "time"

// EvictionReason is recorded on applications cancelled by a capacity decrease.
const EvictionReason = "Job position count reduced by employer"

// RosterEntry is one accepted doctor occupying a seat on a job.
type RosterEntry struct {
	ID            int64     `db:"id"             json:"id"`
	ApplicationID string    `db:"application_id" json:"applicationId"`
	JobID         string    `db:"job_id"         json:"jobId"`
	DoctorID      string    `db:"doctor_id"      json:"doctorId"`
	AcceptedAt    time.Time `db:"accepted_at"    json:"acceptedAt"`
}

// NewRosterEntry records app taking a seat at now.
func NewRosterEntry(app *Application, now time.Time) *RosterEntry {
	return &RosterEntry{
		ApplicationID: app.ID,
		JobID:         app.JobID,
		DoctorID:      app.DoctorID,
		AcceptedAt:    now,
	}
}
