package syncerimpl

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// Start joins over every collaborator's readiness gate in the background
// and schedules the recurring tick once all of them have opened. A
// collaborator that never becomes ready keeps the syncer in Initializing
// for good; that stall is logged, not fatal.
func (s *SyncerImpl) Start(ctx context.Context) error {
	go func() {
		s.logger.Info("Initializing: waiting for source readiness")
		if err := s.source.WaitReady(ctx); err != nil {
			s.logger.Error("Gave up waiting for source readiness", "error", err)
			return
		}
		for _, target := range s.publishers {
			s.logger.Info("Initializing: waiting for publisher readiness", "target", target.Name())
			if err := target.WaitReady(ctx); err != nil {
				s.logger.Error("Gave up waiting for publisher readiness", "target", target.Name(), "error", err)
				return
			}
		}

		s.logger.Info("All collaborators ready, scheduling sync",
			"interval_ms", s.config.Sync.IntervalMs,
			"cutoff", s.cutoff,
			"targets", len(s.publishers),
		)
		if err := s.schedule(ctx); err != nil {
			s.logger.Error("Could not schedule sync ticks", "error", err)
		}
	}()
	return nil
}

func (s *SyncerImpl) schedule(ctx context.Context) error {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}

	interval := time.Duration(s.config.Sync.IntervalMs) * time.Millisecond

	// Singleton mode with reschedule keeps ticks from overlapping: an
	// overrunning tick defers the next one instead of running beside it.
	_, err = scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			if ctx.Err() != nil {
				s.logger.Info("Context cancelled, skipping sync tick")
				return
			}
			if err := s.SyncOnce(ctx); err != nil {
				s.logger.Error("Sync tick failed", "error", err)
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule sync tick: %w", err)
	}

	scheduler.Start()

	go func() {
		<-ctx.Done()
		s.logger.Info("Stopping sync scheduler")
		if err := scheduler.Shutdown(); err != nil {
			s.logger.Error("Failed to shut down sync scheduler", "error", err)
		}
	}()

	return nil
}
