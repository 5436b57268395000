package notify_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krekz/maulocum-sub000/internal/domain"
	"github.com/krekz/maulocum-sub000/internal/notify"
)

var testNow = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func newNotification(t *testing.T, event domain.EventType, kind domain.RecipientKind, p domain.NotificationPayload) *domain.Notification {
	t.Helper()
	p.ApplicationID = "app-1"
	p.JobID = "job-1"
	p.JobTitle = "Weekend ER locum"
	p.StartDate = testNow
	p.EndDate = testNow.Add(48 * time.Hour)
	n, err := domain.NewNotification("n-1", event, kind, "recipient-1", p, testNow)
	require.NoError(t, err)
	return n
}

func TestRender(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		event    domain.EventType
		kind     domain.RecipientKind
		payload  domain.NotificationPayload
		contains []string
	}{
		{
			name:     "approval carries link and validity",
			event:    domain.EventApplicationApproved,
			kind:     domain.RecipientDoctor,
			payload:  domain.NotificationPayload{FacilityName: "Klinik Sejahtera", ConfirmURL: "https://app.test/confirm/abc", ValidHours: 24},
			contains: []string{"Klinik Sejahtera", "https://app.test/confirm/abc", "24 hours"},
		},
		{
			name:     "cancellation names doctor, job and reason",
			event:    domain.EventBookingCancelled,
			kind:     domain.RecipientFacility,
			payload:  domain.NotificationPayload{DoctorName: "Dr. Aisyah", Reason: "Family emergency"},
			contains: []string{"Dr. Aisyah", "Weekend ER locum", "Family emergency", "1 Mar 2026"},
		},
		{
			name:     "eviction carries system reason",
			event:    domain.EventBookingEvicted,
			kind:     domain.RecipientDoctor,
			payload:  domain.NotificationPayload{Reason: domain.EvictionReason},
			contains: []string{"The facility", domain.EvictionReason},
		},
		{
			name:     "submitted without doctor name",
			event:    domain.EventApplicationSubmitted,
			kind:     domain.RecipientFacility,
			contains: []string{"A doctor applied"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			msg, err := notify.Render(newNotification(t, tt.event, tt.kind, tt.payload))
			require.NoError(t, err)
			assert.Equal(t, tt.event, msg.Event)
			assert.Equal(t, 1, msg.Attempt)
			assert.NotEmpty(t, msg.Subject)
			for _, want := range tt.contains {
				assert.Contains(t, msg.Body, want)
			}
		})
	}
}

func TestRender_UnknownEvent(t *testing.T) {
	t.Parallel()

	n := newNotification(t, "job.exploded", domain.RecipientDoctor, domain.NotificationPayload{})
	_, err := notify.Render(n)
	require.Error(t, err)
}

func TestSubject(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "notifications.booking.cancelled", notify.Subject("", "booking.cancelled"))
	assert.Equal(t, "locum.booking.confirmed", notify.Subject("locum.", "booking.confirmed"))
}
