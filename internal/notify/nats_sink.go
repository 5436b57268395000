package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
)

// DefaultSubjectPrefix prefixes every notification subject.
const DefaultSubjectPrefix = "notifications"

// NATSConfig configures the NATS sink.
type NATSConfig struct {
	URL           string
	SubjectPrefix string
	ConnTimeout   time.Duration
}

// NATSSink publishes each message on "<prefix>.<event>".
type NATSSink struct {
	conn   *nats.Conn
	prefix string
}

// NewNATSSink connects to NATS with unlimited reconnects.
func NewNATSSink(cfg NATSConfig) (*NATSSink, error) {
	if cfg.ConnTimeout <= 0 {
		cfg.ConnTimeout = 5 * time.Second
	}
	conn, err := nats.Connect(cfg.URL,
		nats.Name("locum-bookings"),
		nats.Timeout(cfg.ConnTimeout),
		nats.ReconnectWait(time.Second),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	return &NATSSink{conn: conn, prefix: subjectPrefix(cfg.SubjectPrefix)}, nil
}

func subjectPrefix(prefix string) string {
	prefix = strings.Trim(prefix, ".")
	if prefix == "" {
		return DefaultSubjectPrefix
	}
	return prefix
}

// Subject returns the subject a message for event is published on.
func Subject(prefix, event string) string {
	return subjectPrefix(prefix) + "." + event
}

func (s *NATSSink) Name() string { return "nats:" + s.prefix }

// Publish sends the message and flushes so failures surface to the dispatcher.
func (s *NATSSink) Publish(ctx context.Context, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	natsMsg := nats.NewMsg(Subject(s.prefix, string(msg.Event)))
	natsMsg.Data = data
	natsMsg.Header.Set(nats.MsgIdHdr, msg.ID)

	if err = s.conn.PublishMsg(natsMsg); err != nil {
		return fmt.Errorf("publish to nats: %w", err)
	}
	if err = s.conn.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("flush nats: %w", err)
	}
	return nil
}

// Close drains the connection.
func (s *NATSSink) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Drain()
}
