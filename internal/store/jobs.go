package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const jobColumns = `id, job_type, sync_id, status, status_message, enqueued_at, started_at, finished_at`

func scanJob(row pgx.Row) (*SyncJob, error) {
	var j SyncJob
	err := row.Scan(&j.ID, &j.JobType, &j.SyncID, &j.Status, &j.StatusMessage,
		&j.EnqueuedAt, &j.StartedAt, &j.FinishedAt)
	if err != nil {
		return nil, err
	}
	return &j, nil
}

// EnqueueJob creates a queued sync job. Enqueue does no deduplication;
// concurrent jobs for the same sync are legal and resolved by fencing.
func (s *Store) EnqueueJob(ctx context.Context, kind SyncKind, syncID int64) (*SyncJob, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSyncKind, kind)
	}

	q := fmt.Sprintf(`
		INSERT INTO sync_jobs (job_type, sync_id)
		VALUES ($1, $2)
		RETURNING %s`, jobColumns)

	job, err := scanJob(s.pool.QueryRow(ctx, q, kind, syncID))
	if err != nil {
		return nil, fmt.Errorf("enqueueing %s sync %d: %w", kind, syncID, err)
	}
	s.logger.Info("enqueued sync job", "job_id", job.ID, "kind", kind, "sync_id", syncID)
	return job, nil
}

// DequeueJob atomically claims the oldest queued job and marks it
// running. FOR UPDATE SKIP LOCKED lets concurrent workers pass over a
// row another worker is claiming instead of blocking on it.
// Returns ErrNoJob when the queue is empty.
func (s *Store) DequeueJob(ctx context.Context) (*SyncJob, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning dequeue transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	const selectQ = `
		SELECT id FROM sync_jobs
		WHERE status = 'queued'
		ORDER BY enqueued_at
		LIMIT 1
		FOR UPDATE SKIP LOCKED`

	var jobID uuid.UUID
	err = tx.QueryRow(ctx, selectQ).Scan(&jobID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNoJob
	}
	if err != nil {
		return nil, fmt.Errorf("selecting queued job: %w", err)
	}

	updateQ := fmt.Sprintf(`
		UPDATE sync_jobs
		SET status = 'running', status_message = 'Processing sync job.', started_at = now()
		WHERE id = $1
		RETURNING %s`, jobColumns)

	job, err := scanJob(tx.QueryRow(ctx, updateQ, jobID))
	if err != nil {
		return nil, fmt.Errorf("claiming job %s: %w", jobID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing dequeue: %w", err)
	}
	return job, nil
}

// CompleteJob records a terminal state. Every terminal job carries a
// non-empty message.
func (s *Store) CompleteJob(ctx context.Context, jobID uuid.UUID, status JobStatus, message string) error {
	if message == "" {
		message = "Sync completed."
	}

	const q = `
		UPDATE sync_jobs
		SET status = $1, status_message = $2, finished_at = now()
		WHERE id = $3`

	tag, err := s.pool.Exec(ctx, q, status, message, jobID)
	if err != nil {
		return fmt.Errorf("completing job %s: %w", jobID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: job %s", ErrNotFound, jobID)
	}
	return nil
}

// GetJob loads a job by id.
func (s *Store) GetJob(ctx context.Context, jobID uuid.UUID) (*SyncJob, error) {
	q := fmt.Sprintf(`SELECT %s FROM sync_jobs WHERE id = $1`, jobColumns)

	job, err := scanJob(s.pool.QueryRow(ctx, q, jobID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: job %s", ErrNotFound, jobID)
	}
	if err != nil {
		return nil, fmt.Errorf("loading job %s: %w", jobID, err)
	}
	return job, nil
}
