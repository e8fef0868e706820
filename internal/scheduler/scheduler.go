package scheduler

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"

	"github.com/heatwatch/heatwatch/internal/alert"
	"github.com/heatwatch/heatwatch/internal/quality"
	"github.com/heatwatch/heatwatch/internal/store"
)

// Scheduler periodically runs the enrichment and alert passes. Each
// tick passes an explicit `now` into the core so a single invocation
// is deterministic.
type Scheduler struct {
	scheduler *gocron.Scheduler
	readings  store.ReadingStore
	enricher  *quality.Enricher
	worker    *alert.Worker
	logger    *zap.Logger

	enrichInterval time.Duration
	alertInterval  time.Duration
	throttleDelay  time.Duration
}

// New creates a Scheduler.
func New(
	readings store.ReadingStore,
	enricher *quality.Enricher,
	worker *alert.Worker,
	enrichInterval, alertInterval, throttleDelay time.Duration,
	logger *zap.Logger,
) *Scheduler {
	return &Scheduler{
		scheduler:      gocron.NewScheduler(time.UTC),
		readings:       readings,
		enricher:       enricher,
		worker:         worker,
		logger:         logger,
		enrichInterval: enrichInterval,
		alertInterval:  alertInterval,
		throttleDelay:  throttleDelay,
	}
}

// Start schedules both periodic jobs and starts the underlying
// scheduler asynchronously.
func (s *Scheduler) Start() error {
	if _, err := s.scheduler.Every(s.enrichInterval).Do(s.runEnrichPass); err != nil {
		return err
	}
	if _, err := s.scheduler.Every(s.alertInterval).Do(s.runAlertPass); err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}

func (s *Scheduler) runEnrichPass() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	readings, err := s.readings.ReadingsMissingOutdoorTemp(ctx)
	if err != nil {
		s.logger.Error("enrichment pass failed to load readings", zap.Error(err))
		return
	}
	if len(readings) == 0 {
		return
	}

	updated, failed := s.enricher.UpdateOutdoorTemps(ctx, readings, s.throttleDelay, quality.Silent)
	s.logger.Info("enrichment pass completed",
		zap.Int("pending", len(readings)),
		zap.Int("updated", updated),
		zap.Int("failed", failed),
	)
}

func (s *Scheduler) runAlertPass() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if err := s.worker.Perform(ctx, time.Now().UTC()); err != nil {
		s.logger.Error("alert pass failed", zap.Error(err))
	}
}
