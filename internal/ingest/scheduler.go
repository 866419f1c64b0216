package ingest

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/PruthvirajGire18/scholarlink-backend/internal/config"
	"github.com/PruthvirajGire18/scholarlink-backend/internal/db"
	"github.com/PruthvirajGire18/scholarlink-backend/internal/globaltime"
)

// Scheduler fires one ingestion run per day at a fixed UTC hour, plus an
// optional run at process start. A fired run that is rejected by the run
// lock simply waits for the next slot.
type Scheduler struct {
	svc    *Service
	cfg    *config.Config
	logger zerolog.Logger

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

func NewScheduler(cfg *config.Config, svc *Service, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		svc:    svc,
		cfg:    cfg,
		logger: logger,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Start launches the schedule loop. It is a no-op when the scheduler is
// disabled by configuration or the environment looks serverless.
func (s *Scheduler) Start(ctx context.Context) {
	if !s.cfg.SchedulerActive() {
		s.logger.Info().Msg("ingestion scheduler disabled")
		close(s.done)
		return
	}

	go s.loop(ctx)
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)

	if s.cfg.RunOnBoot {
		s.fire(ctx, db.TriggerStartup)
	}

	for {
		delay := nextRunDelay(globaltime.UTC(), s.cfg.DailyHourUTC)
		s.logger.Info().Dur("next_run_in", delay).Int("hour_utc", s.cfg.DailyHourUTC).Msg("ingestion scheduled")

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
			s.fire(ctx, db.TriggerScheduled)
		case <-s.stop:
			timer.Stop()
			return
		case <-ctx.Done():
			timer.Stop()
			return
		}
	}
}

func (s *Scheduler) fire(ctx context.Context, trigger string) {
	result, err := s.svc.Run(ctx, trigger, "scheduler")
	if err != nil {
		s.logger.Error().Err(err).Str("trigger", trigger).Msg("scheduled ingestion failed")
		return
	}
	if !result.Accepted {
		s.logger.Warn().Str("trigger", trigger).Msg("scheduled ingestion skipped, run already active")
	}
}

// Stop halts the loop and waits for it to exit.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
	<-s.done
}

// nextRunDelay computes the wait until the next occurrence of hourUTC. A
// slot already passed today rolls to tomorrow.
func nextRunDelay(now time.Time, hourUTC int) time.Duration {
	u := now.UTC()
	next := time.Date(u.Year(), u.Month(), u.Day(), hourUTC, 0, 0, 0, time.UTC)
	if !next.After(u) {
		next = next.AddDate(0, 0, 1)
	}
	return next.Sub(u)
}
