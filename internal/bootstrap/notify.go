package bootstrap

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/krekz/maulocum-sub000/internal/config"
	"github.com/krekz/maulocum-sub000/internal/database"
	infralogger "github.com/krekz/maulocum-sub000/internal/infra/logger"
	infraredis "github.com/krekz/maulocum-sub000/internal/infra/redis"
	"github.com/krekz/maulocum-sub000/internal/metrics"
	"github.com/krekz/maulocum-sub000/internal/notify"
)

// Notifications owns the outbox dispatcher and its transport.
type Notifications struct {
	Dispatcher *notify.Dispatcher
	Redis      *redis.Client

	sink notify.Sink
	log  infralogger.Logger
}

// Close stops the dispatcher, then releases the sink and the redis client.
// It is safe on a nil receiver and on a disabled outbox.
func (n *Notifications) Close() {
	if n == nil {
		return
	}
	if n.Dispatcher != nil {
		n.Dispatcher.Stop()
	}
	if n.sink != nil {
		if err := n.sink.Close(); err != nil {
			n.log.Warn("Failed to close notification sink", infralogger.Error(err))
		}
	}
	if n.Redis != nil {
		if err := n.Redis.Close(); err != nil {
			n.log.Warn("Failed to close redis client", infralogger.Error(err))
		}
	}
}

// SetupNotifications connects the configured sink and starts the dispatcher
// when outbox delivery is enabled. Entries are still written to the outbox
// when it is disabled, so another instance can deliver them.
func SetupNotifications(
	ctx context.Context,
	cfg *config.Config,
	db *sqlx.DB,
	log infralogger.Logger,
	m *metrics.Metrics,
) (*Notifications, error) {
	n := &Notifications{log: log}

	if cfg.Redis.Enabled {
		client, err := infraredis.NewClient(ctx, infraredis.Config{
			Address:  cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		n.Redis = client
	}

	if !cfg.Outbox.Enabled {
		log.Info("Notification dispatcher disabled")
		return n, nil
	}

	sink, err := newSink(cfg, n.Redis, log)
	if err != nil {
		n.Close()
		return nil, err
	}
	n.sink = sink

	var recorder notify.Recorder
	if m != nil {
		recorder = m
	}

	n.Dispatcher = notify.NewDispatcher(
		database.NewOutboxRepository(db),
		sink,
		notify.Config{
			PollInterval:   cfg.Outbox.PollInterval,
			BatchSize:      cfg.Outbox.BatchSize,
			PublishTimeout: cfg.Outbox.PublishTimeout,
		},
		log,
		recorder,
	)
	n.Dispatcher.Start(ctx)
	return n, nil
}

func newSink(cfg *config.Config, client *redis.Client, log infralogger.Logger) (notify.Sink, error) {
	switch cfg.Notifications.Sink {
	case config.SinkRedis:
		return notify.NewRedisStreamSink(client, cfg.Redis.Stream, log), nil
	case config.SinkNATS:
		sink, err := notify.NewNATSSink(notify.NATSConfig{
			URL:           cfg.NATS.URL,
			SubjectPrefix: cfg.NATS.SubjectPrefix,
			ConnTimeout:   cfg.NATS.ConnTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("connect to nats: %w", err)
		}
		return sink, nil
	default:
		return notify.NewLogSink(log), nil
	}
}
