package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	infralogger "github.com/krekz/maulocum-sub000/internal/infra/logger"
)

// DefaultStream is the Redis stream booking notifications are appended to.
const DefaultStream = "booking-notifications"

// defaultStreamMaxLen caps the stream; XADD trims approximately past it.
const defaultStreamMaxLen = 100_000

// RedisStreamSink appends messages to a Redis stream.
type RedisStreamSink struct {
	client *redis.Client
	stream string
	log    infralogger.Logger
}

// NewRedisStreamSink creates a sink on stream. An empty stream means DefaultStream.
func NewRedisStreamSink(client *redis.Client, stream string, log infralogger.Logger) *RedisStreamSink {
	if stream == "" {
		stream = DefaultStream
	}
	return &RedisStreamSink{client: client, stream: stream, log: log}
}

func (s *RedisStreamSink) Name() string { return "redis:" + s.stream }

// Publish sends the message as one stream entry.
func (s *RedisStreamSink) Publish(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	result := s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: s.stream,
		MaxLen: defaultStreamMaxLen,
		Approx: true,
		Values: map[string]any{
			"event":        string(msg.Event),
			"recipient_id": msg.RecipientID,
			"message":      string(payload),
		},
	})
	if publishErr := result.Err(); publishErr != nil {
		return fmt.Errorf("publish to stream: %w", publishErr)
	}

	s.log.Debug("Published notification",
		infralogger.String("notification_id", msg.ID),
		infralogger.String("event", string(msg.Event)),
		infralogger.String("stream_id", result.Val()),
	)
	return nil
}

// Close is a no-op; the client is owned by the caller.
func (s *RedisStreamSink) Close() error { return nil }
