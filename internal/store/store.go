// Package store implements the PostgreSQL persistence layer: tenants,
// credentials, sync configs, source-native caches, the durable job
// queue, and the vector-indexed document table.
//
// Higher layers consume small interfaces they define themselves
// (knowledge.DocumentQuerier, jobs.JobStore, ...); Store satisfies all
// of them.
package store

import (
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound indicates the requested row does not exist within the
	// caller's tenant scope. A row owned by another company reports the
	// same error as a missing one.
	ErrNotFound = errors.New("not found")

	// ErrNoJob indicates the queue holds no dequeueable job.
	ErrNoJob = errors.New("no queued job")

	// ErrUnknownSyncKind indicates a job or request referenced a sync
	// kind outside jira/confluence/github.
	ErrUnknownSyncKind = errors.New("unknown sync kind")
)

// SyncKind identifies which external system a sync config targets.
type SyncKind string

const (
	SyncKindJira       SyncKind = "jira"
	SyncKindConfluence SyncKind = "confluence"
	SyncKindGitHub     SyncKind = "github"
)

// Valid reports whether the kind is one of the three known sources.
func (k SyncKind) Valid() bool {
	switch k {
	case SyncKindJira, SyncKindConfluence, SyncKindGitHub:
		return true
	}
	return false
}

// SyncStatus is the loose status mirror carried on a sync config.
type SyncStatus string

const (
	SyncStatusIdle      SyncStatus = "idle"
	SyncStatusRunning   SyncStatus = "running"
	SyncStatusSucceeded SyncStatus = "succeeded"
	SyncStatusFailed    SyncStatus = "failed"
)

// JobStatus is the strict job state machine: queued → running →
// {succeeded, failed}, terminal states final.
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
)

// Credential is a stored company secret; the ciphertext is opaque here
// and decrypted by secrets.FromCiphertext.
type Credential struct {
	ID               int64
	CompanyID        int64
	Name             string
	Email            string
	SecretCiphertext []byte
	CreatedAt        time.Time
}

// SyncJob is one queue entry. Jobs are never deleted.
type SyncJob struct {
	ID            uuid.UUID
	JobType       SyncKind
	SyncID        int64
	Status        JobStatus
	StatusMessage string
	EnqueuedAt    time.Time
	StartedAt     *time.Time
	FinishedAt    *time.Time
}

// Store is the concrete repository over a pgx connection pool.
// It is safe for concurrent use.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// New creates a Store.
func New(pool *pgxpool.Pool, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{pool: pool, logger: logger}
}
