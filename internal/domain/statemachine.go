package domain

import "fmt"

// ApplicationStatus is a JobApplication's position in the booking lifecycle.
type ApplicationStatus string

const (
	StatusPending          ApplicationStatus = "PENDING"
	StatusEmployerApproved ApplicationStatus = "EMPLOYER_APPROVED"
	StatusEmployerRejected ApplicationStatus = "EMPLOYER_REJECTED"
	StatusDoctorConfirmed  ApplicationStatus = "DOCTOR_CONFIRMED"
	StatusDoctorRejected   ApplicationStatus = "DOCTOR_REJECTED"
	StatusCancelled        ApplicationStatus = "CANCELLED"
	StatusCompleted        ApplicationStatus = "COMPLETED"
)

// validTransitions is the complete transition table. Withdrawal is a row
// deletion and therefore not listed.
var validTransitions = map[ApplicationStatus][]ApplicationStatus{
	StatusPending:          {StatusEmployerApproved, StatusEmployerRejected},
	StatusEmployerApproved: {StatusDoctorConfirmed, StatusDoctorRejected},
	StatusDoctorConfirmed:  {StatusCompleted, StatusCancelled},
	StatusEmployerRejected: {},
	StatusDoctorRejected:   {},
	StatusCancelled:        {},
	StatusCompleted:        {},
}

// IsValid reports whether s is a known status.
func (s ApplicationStatus) IsValid() bool {
	_, ok := validTransitions[s]
	return ok
}

// IsTerminal reports whether no transition leaves s.
func (s ApplicationStatus) IsTerminal() bool {
	return len(validTransitions[s]) == 0
}

// CanTransitionTo reports whether from -> to is in the table.
func (s ApplicationStatus) CanTransitionTo(to ApplicationStatus) bool {
	for _, allowed := range validTransitions[s] {
		if allowed == to {
			return true
		}
	}
	return false
}

// ValidateTransition returns an InvalidState error unless from -> to is allowed.
func ValidateTransition(from, to ApplicationStatus) error {
	if !from.IsValid() {
		return InvalidState(fmt.Sprintf("unknown application status %q", from))
	}
	if !from.CanTransitionTo(to) {
		return InvalidState(fmt.Sprintf("invalid application transition from %s to %s", from, to))
	}
	return nil
}
