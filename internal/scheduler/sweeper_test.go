package scheduler_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	infralogger "github.com/krekz/maulocum-sub000/internal/infra/logger"
	"github.com/krekz/maulocum-sub000/internal/scheduler"
)

func TestNewSweeper_Schedule(t *testing.T) {
	t.Parallel()

	noop := func(context.Context, string) (int, error) { return 0, nil }

	_, err := scheduler.NewSweeper(infralogger.NewNop(), "not a schedule", noop)
	require.Error(t, err)

	_, err = scheduler.NewSweeper(infralogger.NewNop(), "", noop)
	require.NoError(t, err)

	_, err = scheduler.NewSweeper(infralogger.NewNop(), "@hourly", noop)
	require.NoError(t, err)
}

func TestSweeper_RunOnce(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	var trigger atomic.Value
	s, err := scheduler.NewSweeper(infralogger.NewNop(), "*/5 * * * *", func(_ context.Context, tr string) (int, error) {
		calls.Add(1)
		trigger.Store(tr)
		if calls.Load() > 1 {
			return 0, errors.New("db down")
		}
		return 3, nil
	})
	require.NoError(t, err)

	s.RunOnce(t.Context())
	s.RunOnce(t.Context())

	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, "cron", trigger.Load())
}

func TestSweeper_StartStop(t *testing.T) {
	t.Parallel()

	s, err := scheduler.NewSweeper(infralogger.NewNop(), "", func(context.Context, string) (int, error) { return 0, nil })
	require.NoError(t, err)

	require.NoError(t, s.Start())
	require.ErrorIs(t, s.Start(), scheduler.ErrAlreadyStarted)
	s.Stop()
	s.Stop()
}
