package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
)

// orphanAge is how long past due a stored reminder may sit before
// maintenance sweeps it. Live retries exhaust their budget well inside
// this window, so anything older is a leftover from a crash mid-flight.
const orphanAge = 24 * time.Hour

// startMaintenance registers the periodic housekeeping schedules:
// an hourly pending-count stat line and a daily orphan sweep.
func (s *Service) startMaintenance() {
	s.cron = cron.New()

	_, _ = s.cron.AddFunc("@hourly", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		n, err := s.jobs.CountPending(ctx)
		if err != nil {
			s.log.Warn().Err(err).Msg("pending count failed")
			return
		}
		s.log.Info().Int64("pending", n).Msg("scheduler stats")
	})

	_, _ = s.cron.AddFunc("@daily", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		n, err := s.jobs.PruneOlderThan(ctx, s.now().Add(-orphanAge))
		if err != nil {
			s.log.Warn().Err(err).Msg("orphan prune failed")
			return
		}
		if n > 0 {
			s.log.Info().Int64("pruned", n).Msg("swept orphaned reminders")
		}
	})

	s.cron.Start()
}
