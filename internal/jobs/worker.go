package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/helpgrid/helpgrid/internal/store"
)

// JobStore is the queue surface the worker needs. *store.Store
// satisfies it.
type JobStore interface {
	DequeueJob(ctx context.Context) (*store.SyncJob, error)
	CompleteJob(ctx context.Context, jobID uuid.UUID, status store.JobStatus, message string) error
	SyncStatusInfo(ctx context.Context, kind store.SyncKind, syncID int64) (store.SyncStatus, string, error)
}

// TaskRunner executes one sync under a job's fence. *Tasks satisfies it.
type TaskRunner interface {
	RunSync(ctx context.Context, kind store.SyncKind, syncID int64, jobID uuid.UUID) (items, documents int, err error)
}

// Worker drains the sync job queue. One worker loop per process;
// concurrent deployments stay correct because dequeue uses
// FOR UPDATE SKIP LOCKED and status writes are fenced.
type Worker struct {
	store  JobStore
	tasks  TaskRunner
	poll   time.Duration
	logger *slog.Logger
}

// NewWorker creates a Worker polling at the given interval.
func NewWorker(st JobStore, tasks TaskRunner, poll time.Duration, logger *slog.Logger) *Worker {
	if poll <= 0 {
		poll = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{store: st, tasks: tasks, poll: poll, logger: logger}
}

// Run polls until the context is canceled, draining every queued job
// before sleeping again.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("worker started", "poll_interval", w.poll)
	ticker := time.NewTicker(w.poll)
	defer ticker.Stop()

	for {
		for {
			processed, err := w.RunOnce(ctx)
			if err != nil {
				w.logger.Error("processing job", "error", err)
				break
			}
			if !processed {
				break
			}
		}

		select {
		case <-ctx.Done():
			w.logger.Info("worker stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunOnce claims and executes at most one job. It reports false when
// the queue was empty. Job execution errors are terminal for the job,
// not for the worker: they are recorded on the job row and RunOnce
// still returns nil.
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	job, err := w.store.DequeueJob(ctx)
	if errors.Is(err, store.ErrNoJob) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	w.logger.Info("processing sync job",
		"job_id", job.ID, "kind", job.JobType, "sync_id", job.SyncID)

	items, documents, runErr := w.tasks.RunSync(ctx, job.JobType, job.SyncID, job.ID)
	if runErr != nil {
		message := w.failureDetail(ctx, job, runErr)
		if err := w.store.CompleteJob(ctx, job.ID, store.JobStatusFailed, message); err != nil {
			return true, fmt.Errorf("recording job failure: %w", err)
		}
		return true, nil
	}

	noun := syncNames[job.JobType].noun
	message := fmt.Sprintf("Processed %d %s (%d documents ingested).", items, noun, documents)
	if err := w.store.CompleteJob(ctx, job.ID, store.JobStatusSucceeded, message); err != nil {
		return true, fmt.Errorf("recording job success: %w", err)
	}
	return true, nil
}

// failureDetail prefers the sync config's own failure message, which the
// task wrote with more context than the bare error string.
func (w *Worker) failureDetail(ctx context.Context, job *store.SyncJob, runErr error) string {
	status, message, err := w.store.SyncStatusInfo(ctx, job.JobType, job.SyncID)
	if err == nil && status == store.SyncStatusFailed && message != "" {
		return message
	}
	return runErr.Error()
}
