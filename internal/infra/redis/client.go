// Package redis opens the go-redis client shared by the notification stream
// sink and the health endpoint.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds connection settings.
type Config struct {
	Address  string
	Password string
	DB       int
	// DialTimeout bounds the initial ping. Zero means 5s.
	DialTimeout time.Duration
}

// ErrEmptyAddress is returned when no address is configured.
var ErrEmptyAddress = errors.New("redis address is required")

const (
	defaultDialTimeout = 5 * time.Second
	healthTimeout      = 2 * time.Second
)

// NewClient opens a client and refuses to return it until a ping succeeds
// within ctx and cfg.DialTimeout.
func NewClient(ctx context.Context, cfg Config) (*redis.Client, error) {
	if cfg.Address == "" {
		return nil, ErrEmptyAddress
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = defaultDialTimeout
	}

	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Address,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: cfg.DialTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", cfg.Address, err)
	}
	return client, nil
}

// HealthCheck adapts client to the gin health check signature.
func HealthCheck(client *redis.Client) func() error {
	return func() error {
		ctx, cancel := context.WithTimeout(context.Background(), healthTimeout)
		defer cancel()
		return client.Ping(ctx).Err()
	}
}
