package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
)

// Scheduler runs collect-then-process cycles on a cron schedule. A tick that
// fires while the previous cycle is still running is dropped, never queued:
// overlapping cycles would contend for the same browser ports.
type Scheduler struct {
	coordinator *Coordinator
	schedule    string
	workers     int
	cron        *cron.Cron
	running     sync.Mutex
	logger      arbor.ILogger
}

// NewScheduler creates a scheduler over the coordinator.
// schedule is a six-field cron expression with a seconds column.
func NewScheduler(coordinator *Coordinator, schedule string, workers int, logger arbor.ILogger) *Scheduler {
	return &Scheduler{
		coordinator: coordinator,
		schedule:    schedule,
		workers:     workers,
		cron:        cron.New(cron.WithSeconds()),
		logger:      logger,
	}
}

// Start registers the cycle job and blocks until ctx is cancelled
func (s *Scheduler) Start(ctx context.Context) error {
	if s.schedule == "" {
		return fmt.Errorf("watch mode requires a collect schedule")
	}

	_, err := s.cron.AddFunc(s.schedule, func() {
		if !s.running.TryLock() {
			s.logger.Warn().Str("schedule", s.schedule).Msg("Previous cycle still running, tick skipped")
			return
		}
		defer s.running.Unlock()
		s.runCycle(ctx)
	})
	if err != nil {
		return fmt.Errorf("invalid schedule %q: %w", s.schedule, err)
	}

	s.logger.Info().Str("schedule", s.schedule).Msg("Watch mode started")
	s.cron.Start()

	<-ctx.Done()

	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	s.running.Lock() // wait for an in-flight cycle to finish
	s.running.Unlock()

	s.logger.Info().Msg("Watch mode stopped")
	return nil
}

// runCycle performs one collect followed by one process run
func (s *Scheduler) runCycle(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	report, err := s.coordinator.Run(ctx, ModeCollect, 1)
	if err != nil {
		s.logger.Error().Err(err).Msg("Scheduled collection failed, skipping processing")
		return
	}
	s.logger.Info().Int("new", report.Collected).Msg("Scheduled collection complete")

	if ctx.Err() != nil {
		return
	}

	report, err = s.coordinator.Run(ctx, ModeProcess, s.workers)
	if err != nil {
		s.logger.Error().Err(err).Msg("Scheduled processing failed")
		return
	}
	s.logger.Info().
		Int("succeeded", report.Succeeded).
		Int("failed", report.Failed).
		Msg("Scheduled processing complete")
}
