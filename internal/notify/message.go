// Package notify delivers outbox notifications to doctors and facilities.
// The dispatcher claims rows from the outbox, renders them into messages and
// hands them to a Sink (Redis stream, NATS or the log).
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/krekz/maulocum-sub000/internal/domain"
)

// Message is what a sink transports. Downstream senders (email, WhatsApp)
// consume it and only need Recipient, Subject and Body.
type Message struct {
	ID            string               `json:"id"`
	Event         domain.EventType     `json:"event"`
	RecipientKind domain.RecipientKind `json:"recipientKind"`
	RecipientID   string               `json:"recipientId"`
	Recipient     domain.Contact       `json:"recipient"`
	Subject       string               `json:"subject"`
	Body          string               `json:"body"`
	Payload       json.RawMessage      `json:"payload"`
	Attempt       int                  `json:"attempt"`
	CreatedAt     time.Time            `json:"createdAt"`
}

// Sink publishes one message. Implementations must be safe for concurrent use.
type Sink interface {
	Name() string
	Publish(ctx context.Context, msg Message) error
	Close() error
}

const dateLayout = "2 Jan 2006"

// Render turns an outbox row into a message.
func Render(n *domain.Notification) (Message, error) {
	p, err := n.DecodePayload()
	if err != nil {
		return Message{}, err
	}

	msg := Message{
		ID:            n.ID,
		Event:         n.EventType,
		RecipientKind: n.RecipientKind,
		RecipientID:   n.RecipientID,
		Recipient:     p.Recipient,
		Payload:       n.Payload,
		Attempt:       n.RetryCount + 1,
		CreatedAt:     n.CreatedAt,
	}

	dates := fmt.Sprintf("%s to %s", p.StartDate.Format(dateLayout), p.EndDate.Format(dateLayout))

	switch n.EventType {
	case domain.EventApplicationSubmitted:
		msg.Subject = "New application for " + p.JobTitle
		msg.Body = fmt.Sprintf("%s applied for %s (%s).", orSomeone(p.DoctorName), p.JobTitle, dates)
	case domain.EventApplicationApproved:
		msg.Subject = "Your application was approved"
		var b strings.Builder
		fmt.Fprintf(&b, "%s approved your application for %s (%s). ", orFacility(p.FacilityName), p.JobTitle, dates)
		fmt.Fprintf(&b, "Confirm your booking here: %s", p.ConfirmURL)
		if p.ValidHours > 0 {
			fmt.Fprintf(&b, " (link valid for %d hours)", p.ValidHours)
		}
		msg.Body = b.String()
	case domain.EventApplicationRejected:
		msg.Subject = "Update on your application"
		msg.Body = fmt.Sprintf("%s did not accept your application for %s.", orFacility(p.FacilityName), p.JobTitle)
		if p.Reason != "" {
			msg.Body += " Reason: " + p.Reason
		}
	case domain.EventBookingConfirmed:
		msg.Subject = "Booking confirmed: " + p.JobTitle
		msg.Body = fmt.Sprintf("%s confirmed the booking for %s (%s).", orSomeone(p.DoctorName), p.JobTitle, dates)
	case domain.EventApplicationDeclined:
		msg.Subject = "Booking declined: " + p.JobTitle
		msg.Body = fmt.Sprintf("%s declined the booking for %s.", orSomeone(p.DoctorName), p.JobTitle)
	case domain.EventBookingCancelled:
		msg.Subject = "Booking cancelled: " + p.JobTitle
		msg.Body = fmt.Sprintf("%s cancelled the confirmed booking for %s (%s). Reason: %s",
			orSomeone(p.DoctorName), p.JobTitle, dates, p.Reason)
	case domain.EventBookingEvicted:
		msg.Subject = "Booking cancelled: " + p.JobTitle
		msg.Body = fmt.Sprintf("Your booking for %s at %s (%s) was cancelled. Reason: %s",
			p.JobTitle, orFacility(p.FacilityName), dates, p.Reason)
	default:
		return Message{}, fmt.Errorf("render notification %s: unknown event %q", n.ID, n.EventType)
	}
	return msg, nil
}

func orSomeone(name string) string {
	if name == "" {
		return "A doctor"
	}
	return name
}

func orFacility(name string) string {
	if name == "" {
		return "The facility"
	}
	return name
}
