package domain

import (
	"strings"
	"time"
	"unicode/utf8"
)

// JobStatus is the posting's availability.
//
// FILLED has two producers: the capacity coordinator (roster reached
// doctorsNeeded) and an explicit Complete (operations finished). Both store
// the same value.
type JobStatus string

const (
	JobStatusOpen   JobStatus = "OPEN"
	JobStatusFilled JobStatus = "FILLED"
	JobStatusClosed JobStatus = "CLOSED"
)

const (
	DefaultDoctorsNeeded = 1
	MaxJobTitleLength    = 200
)

// Job is a shift posting with a bounded number of seats.
type Job struct {
	ID            string    `db:"id"             json:"id"`
	FacilityID    string    `db:"facility_id"    json:"facilityId"`
	Title         string    `db:"title"          json:"title"`
	DoctorsNeeded int       `db:"doctors_needed" json:"doctorsNeeded"`
	Status        JobStatus `db:"status"         json:"status"`
	StartDate     time.Time `db:"start_date"     json:"startDate"`
	EndDate       time.Time `db:"end_date"       json:"endDate"`
	CreatedAt     time.Time `db:"created_at"     json:"createdAt"`
	UpdatedAt     time.Time `db:"updated_at"     json:"updatedAt"`
}

// NewJob validates and builds an OPEN job. doctorsNeeded of 0 means the default.
func NewJob(id, facilityID, title string, doctorsNeeded int, start, end, now time.Time) (*Job, error) {
	if doctorsNeeded == 0 {
		doctorsNeeded = DefaultDoctorsNeeded
	}
	j := &Job{
		ID:            id,
		FacilityID:    facilityID,
		Title:         strings.TrimSpace(title),
		DoctorsNeeded: doctorsNeeded,
		Status:        JobStatusOpen,
		StartDate:     start,
		EndDate:       end,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := j.Validate(); err != nil {
		return nil, err
	}
	return j, nil
}

// Validate checks the invariants that do not depend on the roster.
func (j *Job) Validate() error {
	switch {
	case j.Title == "":
		return InvalidInput("title is required")
	case utf8.RuneCountInString(j.Title) > MaxJobTitleLength:
		return InvalidInput("title must be at most 200 characters")
	case j.DoctorsNeeded < 1:
		return InvalidInput("doctorsNeeded must be a positive integer")
	case j.StartDate.IsZero() || j.EndDate.IsZero():
		return InvalidInput("startDate and endDate are required")
	case j.EndDate.Before(j.StartDate):
		return InvalidInput("endDate must not be before startDate")
	}
	return nil
}

// StatusForRoster is the status the job should have with rosterSize accepted
// doctors. CLOSED is never changed here.
func (j *Job) StatusForRoster(rosterSize int) JobStatus {
	switch {
	case j.Status == JobStatusClosed:
		return JobStatusClosed
	case rosterSize >= j.DoctorsNeeded:
		return JobStatusFilled
	default:
		return JobStatusOpen
	}
}

// Close moves any non-CLOSED job to CLOSED.
func (j *Job) Close(now time.Time) error {
	if j.Status == JobStatusClosed {
		return AlreadyClosed("job is already closed")
	}
	j.Status = JobStatusClosed
	j.UpdatedAt = now
	return nil
}

// Reopen forces OPEN from CLOSED or FILLED, regardless of roster size.
func (j *Job) Reopen(now time.Time) error {
	if j.Status == JobStatusOpen {
		return InvalidState("job is already open")
	}
	j.Status = JobStatusOpen
	j.UpdatedAt = now
	return nil
}

// MarkCompleted sets the operations-finished FILLED marker.
func (j *Job) MarkCompleted(now time.Time) {
	j.Status = JobStatusFilled
	j.UpdatedAt = now
}

// JobPatch is an employer edit. Nil fields are left unchanged.
type JobPatch struct {
	Title         *string    `json:"title"`
	DoctorsNeeded *int       `json:"doctorsNeeded"`
	StartDate     *time.Time `json:"startDate"`
	EndDate       *time.Time `json:"endDate"`
}

// IsEmpty reports whether the patch changes nothing.
func (p JobPatch) IsEmpty() bool {
	return p.Title == nil && p.DoctorsNeeded == nil && p.StartDate == nil && p.EndDate == nil
}

// Apply mutates j and validates the result.
func (p JobPatch) Apply(j *Job, now time.Time) error {
	if p.Title != nil {
		j.Title = strings.TrimSpace(*p.Title)
	}
	if p.DoctorsNeeded != nil {
		j.DoctorsNeeded = *p.DoctorsNeeded
	}
	if p.StartDate != nil {
		j.StartDate = *p.StartDate
	}
	if p.EndDate != nil {
		j.EndDate = *p.EndDate
	}
	j.UpdatedAt = now
	return j.Validate()
}
