package logger_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krekz/maulocum-sub000/internal/infra/logger"
)

func TestFromContext_ReturnsStoredLogger(t *testing.T) {
	t.Parallel()

	def := logger.NewNop()
	l := newTestLogger(t).With(logger.String("request_id", "req-1"))
	ctx := logger.WithContext(context.Background(), l)

	assert.Same(t, l, logger.FromContext(ctx, def))
}

func TestFromContext_UsesDefaultWhenMissing(t *testing.T) {
	t.Parallel()

	def := newTestLogger(t)
	assert.Same(t, def, logger.FromContext(context.Background(), def))
}

func TestForService_AttachesFields(t *testing.T) {
	t.Parallel()

	l, err := logger.ForService(logger.Config{Level: "debug", OutputPaths: []string{"stderr"}}, "locum-bookings", "test")
	require.NoError(t, err)
	l.Debug("constructed")
	_ = l.Sync()
}

func TestNop_DiscardsEverything(t *testing.T) {
	t.Parallel()

	n := logger.NewNop()
	n.Error("nothing happens", logger.Error(context.Canceled))
	assert.Equal(t, n, n.With(logger.String("k", "v")))
	assert.NoError(t, n.Sync())
}

func newTestLogger(t *testing.T) logger.Logger {
	t.Helper()

	l, err := logger.New(logger.Config{Level: "warn", OutputPaths: []string{"stderr"}})
	require.NoError(t, err)
	return l
}
