package domain

import "time"

// ApplicationView is an application joined with the job fields a doctor's
// list needs.
type ApplicationView struct {
	Application
	JobTitle     string    `db:"job_title"     json:"jobTitle"`
	JobStatus    JobStatus `db:"job_status"    json:"jobStatus"`
	JobStartDate time.Time `db:"job_start_date" json:"jobStartDate"`
	JobEndDate   time.Time `db:"job_end_date"  json:"jobEndDate"`
	FacilityName string    `db:"facility_name" json:"facilityName"`
}

// JobDetail is a job with its current roster size.
type JobDetail struct {
	Job
	RosterSize int `json:"rosterSize"`
}

// CapacityChange summarises one capacity reconciliation.
type CapacityChange struct {
	PreviousStatus JobStatus `json:"previousStatus"`
	Status         JobStatus `json:"status"`
	RosterSize     int       `json:"rosterSize"`
	Evicted        []string  `json:"evictedApplicationIds"`
}

// Changed reports whether reconciliation evicted anyone or moved the status.
func (c CapacityChange) Changed() bool {
	return len(c.Evicted) > 0 || c.PreviousStatus != c.Status
}
