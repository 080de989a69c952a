package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/helpgrid/helpgrid/internal/store"
)

// SchedulerStore is the persistence surface of the cadence scheduler.
// *store.Store satisfies it.
type SchedulerStore interface {
	ListDueSyncs(ctx context.Context) ([]store.DueSync, error)
	EnqueueJob(ctx context.Context, kind store.SyncKind, syncID int64) (*store.SyncJob, error)
}

// Scheduler periodically enqueues a job for every sync config whose
// cadence has elapsed. Configs with a queued or running job are skipped
// by the store query, so a slow sync never stacks up duplicates.
type Scheduler struct {
	store     SchedulerStore
	scheduler *gocron.Scheduler
	interval  time.Duration
	logger    *slog.Logger
}

// NewScheduler creates a Scheduler checking for due syncs at the given
// interval.
func NewScheduler(st SchedulerStore, interval time.Duration, logger *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		store:     st,
		scheduler: gocron.NewScheduler(time.UTC),
		interval:  interval,
		logger:    logger,
	}
}

// Start begins the periodic check in the background.
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.scheduler.Every(s.interval).Do(func() {
		s.EnqueueDue(ctx)
	})
	if err != nil {
		return err
	}
	s.scheduler.StartAsync()
	s.logger.Info("cadence scheduler started", "interval", s.interval)
	return nil
}

// Stop halts the periodic check.
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
	s.logger.Info("cadence scheduler stopped")
}

// EnqueueDue enqueues one job per due sync config. Enqueue failures are
// logged and skipped; one broken config must not starve the rest.
func (s *Scheduler) EnqueueDue(ctx context.Context) int {
	due, err := s.store.ListDueSyncs(ctx)
	if err != nil {
		s.logger.Error("listing due syncs", "error", err)
		return 0
	}

	enqueued := 0
	for _, d := range due {
		if _, err := s.store.EnqueueJob(ctx, d.Kind, d.SyncID); err != nil {
			s.logger.Error("enqueueing due sync",
				"kind", d.Kind, "sync_id", d.SyncID, "error", err)
			continue
		}
		enqueued++
	}
	if enqueued > 0 {
		s.logger.Info("enqueued due syncs", "count", enqueued)
	}
	return enqueued
}
