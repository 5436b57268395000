package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// NotificationStatus is the delivery state of an outbox notification.
type NotificationStatus string

const (
	NotificationPending    NotificationStatus = "pending"
	NotificationPublishing NotificationStatus = "publishing"
	NotificationPublished  NotificationStatus = "published"
	NotificationFailed     NotificationStatus = "failed"
)

// EventType names a lifecycle event that produces a notification.
type EventType string

const (
	EventApplicationSubmitted EventType = "application.submitted"
	EventApplicationApproved  EventType = "application.approved"
	EventApplicationRejected  EventType = "application.rejected"
	EventApplicationDeclined  EventType = "application.declined"
	EventBookingConfirmed     EventType = "booking.confirmed"
	EventBookingCancelled     EventType = "booking.cancelled"
	EventBookingEvicted       EventType = "booking.evicted"
)

// RecipientKind says which party a notification is addressed to.
type RecipientKind string

const (
	RecipientDoctor   RecipientKind = "doctor"
	RecipientFacility RecipientKind = "facility"
)

const defaultNotificationMaxRetries = 5

// Notification is an outbox row written in the same transaction as the state
// change it announces and delivered later by the dispatcher.
type Notification struct {
	ID            string             `db:"id"             json:"id"`
	EventType     EventType          `db:"event_type"     json:"eventType"`
	RecipientKind RecipientKind      `db:"recipient_kind" json:"recipientKind"`
	RecipientID   string             `db:"recipient_id"   json:"recipientId"`
	ApplicationID string             `db:"application_id" json:"applicationId"`
	Payload       json.RawMessage    `db:"payload"        json:"payload"`
	Status        NotificationStatus `db:"status"         json:"status"`
	RetryCount    int                `db:"retry_count"    json:"retryCount"`
	MaxRetries    int                `db:"max_retries"    json:"maxRetries"`
	ErrorMessage  *string            `db:"error_message"  json:"errorMessage,omitempty"`
	CreatedAt     time.Time          `db:"created_at"     json:"createdAt"`
	UpdatedAt     time.Time          `db:"updated_at"     json:"updatedAt"`
	PublishedAt   *time.Time         `db:"published_at"   json:"publishedAt,omitempty"`
	NextRetryAt   *time.Time         `db:"next_retry_at"  json:"nextRetryAt,omitempty"`
}

// Contact is a delivery address for one party.
type Contact struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// NotificationPayload is the event body. Fields not relevant to an event are omitted.
type NotificationPayload struct {
	ApplicationID string     `json:"applicationId"`
	JobID         string     `json:"jobId"`
	JobTitle      string     `json:"jobTitle"`
	FacilityName  string     `json:"facilityName,omitempty"`
	DoctorName    string     `json:"doctorName,omitempty"`
	Recipient     Contact    `json:"recipient"`
	Reason        string     `json:"reason,omitempty"`
	ConfirmURL    string     `json:"confirmUrl,omitempty"`
	ExpiresAt     *time.Time `json:"expiresAt,omitempty"`
	ValidHours    int        `json:"validHours,omitempty"`
	StartDate     time.Time  `json:"startDate"`
	EndDate       time.Time  `json:"endDate"`
}

// NewNotification builds a pending outbox row.
func NewNotification(
	id string,
	event EventType,
	kind RecipientKind,
	recipientID string,
	payload NotificationPayload,
	now time.Time,
) (*Notification, error) {
	if recipientID == "" {
		return nil, fmt.Errorf("notification %s: recipient is required", event)
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", event, err)
	}
	return &Notification{
		ID:            id,
		EventType:     event,
		RecipientKind: kind,
		RecipientID:   recipientID,
		ApplicationID: payload.ApplicationID,
		Payload:       body,
		Status:        NotificationPending,
		MaxRetries:    defaultNotificationMaxRetries,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// DecodePayload unmarshals the stored payload.
func (n *Notification) DecodePayload() (NotificationPayload, error) {
	var p NotificationPayload
	if err := json.Unmarshal(n.Payload, &p); err != nil {
		return p, fmt.Errorf("decode notification %s payload: %w", n.ID, err)
	}
	return p, nil
}

// ShouldRetry returns true if the notification can be retried
func (n *Notification) ShouldRetry() bool {
	return n.RetryCount < n.MaxRetries
}

// NotificationStats holds outbox statistics for monitoring
type NotificationStats struct {
	Pending              int64   `db:"pending"                 json:"pending"`
	Publishing           int64   `db:"publishing"              json:"publishing"`
	Published            int64   `db:"published"               json:"published"`
	FailedRetryable      int64   `db:"failed_retryable"        json:"failedRetryable"`
	FailedExhausted      int64   `db:"failed_exhausted"        json:"failedExhausted"`
	AvgPublishLagSeconds float64 `db:"avg_publish_lag_seconds" json:"avgPublishLagSeconds"`
}
