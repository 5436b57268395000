package notify

import (
	"context"

	infralogger "github.com/krekz/maulocum-sub000/internal/infra/logger"
)

// LogSink writes messages to the log. It is used when no transport is enabled.
type LogSink struct {
	log infralogger.Logger
}

// NewLogSink creates a LogSink.
func NewLogSink(log infralogger.Logger) *LogSink {
	return &LogSink{log: log}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Publish(_ context.Context, msg Message) error {
	s.log.Info("Notification",
		infralogger.String("notification_id", msg.ID),
		infralogger.String("event", string(msg.Event)),
		infralogger.String("recipient_kind", string(msg.RecipientKind)),
		infralogger.String("recipient_id", msg.RecipientID),
		infralogger.String("subject", msg.Subject),
	)
	return nil
}

func (s *LogSink) Close() error { return nil }
