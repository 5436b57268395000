package service

import (
	"context"
	"fmt"
)

// SweepAll completes every doctor's confirmed bookings whose job has ended.
// It backs the sweep command and the optional cron schedule.
func (s *BookingService) SweepAll(ctx context.Context, trigger string) (int, error) {
	var completed []string

	err := s.run(ctx, "sweep completions", func(tx Tx) error {
		var err error
		completed, err = tx.CompleteEnded(ctx, "", s.opts.Now())
		if err != nil {
			return fmt.Errorf("complete ended applications: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.metrics.RecordSweepCompletions(trigger, len(completed))
	return len(completed), nil
}
