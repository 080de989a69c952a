package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/helpgrid/helpgrid/internal/tenant"
)

// SyncConfig is the unified view of a jira/confluence/github sync config.
// Kind-specific fields are zero for the other kinds.
type SyncConfig struct {
	ID           int64
	Kind         SyncKind
	Scope        tenant.Scope
	CredentialID int64

	// Jira
	BoardURL string

	// Confluence
	SpaceURL string

	// GitHub
	RepoFullName string
	Branch       string
	IncludeGlobs string

	CadenceMinutes int
	Status         SyncStatus
	StatusMessage  string
	LastSyncTime   *time.Time
	CurrentJobID   *uuid.UUID
}

func syncTable(kind SyncKind) (string, error) {
	switch kind {
	case SyncKindJira:
		return "jira_syncs", nil
	case SyncKindConfluence:
		return "confluence_syncs", nil
	case SyncKindGitHub:
		return "git_repo_syncs", nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownSyncKind, kind)
}

// kindColumns returns the select expressions for the kind-specific
// columns, padded so every kind scans into the same struct layout:
// board_url, space_url, repo_full_name, branch, include_globs.
func kindColumns(kind SyncKind) string {
	switch kind {
	case SyncKindJira:
		return "s.board_url, '', '', '', ''"
	case SyncKindConfluence:
		return "'', s.space_url, '', '', ''"
	default:
		return "'', '', s.repo_full_name, s.branch, s.include_globs"
	}
}

// GetSyncConfig loads a sync config with its tenant scope resolved
// through the owning chatbot.
func (s *Store) GetSyncConfig(ctx context.Context, kind SyncKind, syncID int64) (*SyncConfig, error) {
	table, err := syncTable(kind)
	if err != nil {
		return nil, err
	}

	q := fmt.Sprintf(`
		SELECT s.id, s.chatbot_id, b.company_id, s.credential_id, %s,
		       s.cadence_minutes, s.status, s.status_message,
		       s.last_sync_time, s.current_job_id
		FROM %s s
		JOIN chatbots b ON b.id = s.chatbot_id
		WHERE s.id = $1`, kindColumns(kind), table)

	cfg := SyncConfig{Kind: kind}
	err = s.pool.QueryRow(ctx, q, syncID).Scan(
		&cfg.ID, &cfg.Scope.ChatbotID, &cfg.Scope.CompanyID, &cfg.CredentialID,
		&cfg.BoardURL, &cfg.SpaceURL, &cfg.RepoFullName, &cfg.Branch, &cfg.IncludeGlobs,
		&cfg.CadenceMinutes, &cfg.Status, &cfg.StatusMessage,
		&cfg.LastSyncTime, &cfg.CurrentJobID,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s sync %d", ErrNotFound, kind, syncID)
	}
	if err != nil {
		return nil, fmt.Errorf("loading %s sync %d: %w", kind, syncID, err)
	}
	return &cfg, nil
}

// BeginSyncRun marks the config running and installs jobID as the
// fencing token. This write is unconditional: the newest job to start
// owns the right to report status from here on.
func (s *Store) BeginSyncRun(ctx context.Context, kind SyncKind, syncID int64, jobID uuid.UUID, message string) error {
	table, err := syncTable(kind)
	if err != nil {
		return err
	}

	q := fmt.Sprintf(`
		UPDATE %s
		SET status = $1, status_message = $2, current_job_id = $3
		WHERE id = $4`, table)

	tag, err := s.pool.Exec(ctx, q, SyncStatusRunning, message, jobID, syncID)
	if err != nil {
		return fmt.Errorf("starting %s sync %d: %w", kind, syncID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s sync %d", ErrNotFound, kind, syncID)
	}
	return nil
}

// UpdateSyncStatus writes a status conditioned on the fencing token:
// when jobID no longer matches current_job_id the write is silently
// dropped, because a newer job's result is authoritative.
func (s *Store) UpdateSyncStatus(ctx context.Context, kind SyncKind, syncID int64, jobID uuid.UUID, status SyncStatus, message string, touchLastSync bool) error {
	table, err := syncTable(kind)
	if err != nil {
		return err
	}

	var q string
	if touchLastSync {
		q = fmt.Sprintf(`
			UPDATE %s
			SET status = $1, status_message = $2, last_sync_time = now()
			WHERE id = $3 AND current_job_id = $4`, table)
	} else {
		q = fmt.Sprintf(`
			UPDATE %s
			SET status = $1, status_message = $2
			WHERE id = $3 AND current_job_id = $4`, table)
	}

	tag, err := s.pool.Exec(ctx, q, status, message, syncID, jobID)
	if err != nil {
		return fmt.Errorf("updating %s sync %d status: %w", kind, syncID, err)
	}
	if tag.RowsAffected() == 0 {
		s.logger.Debug("dropped stale sync status write",
			"kind", kind, "sync_id", syncID, "job_id", jobID, "status", status)
	}
	return nil
}

// SyncStatusInfo returns the config's own status and message, used by
// the worker to surface a more specific failure cause and by the status
// API.
func (s *Store) SyncStatusInfo(ctx context.Context, kind SyncKind, syncID int64) (SyncStatus, string, error) {
	table, err := syncTable(kind)
	if err != nil {
		return "", "", err
	}

	q := fmt.Sprintf(`SELECT status, status_message FROM %s WHERE id = $1`, table)

	var status SyncStatus
	var message string
	err = s.pool.QueryRow(ctx, q, syncID).Scan(&status, &message)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", "", fmt.Errorf("%w: %s sync %d", ErrNotFound, kind, syncID)
	}
	if err != nil {
		return "", "", fmt.Errorf("reading %s sync %d status: %w", kind, syncID, err)
	}
	return status, message, nil
}

// DueSync identifies a sync config whose cadence has elapsed.
type DueSync struct {
	Kind   SyncKind
	SyncID int64
}

// ListDueSyncs returns configs whose cadence has elapsed since their
// last sync (or that never synced), skipping any with a queued or
// running job. Used by the cadence scheduler.
func (s *Store) ListDueSyncs(ctx context.Context) ([]DueSync, error) {
	const q = `
		SELECT kind, id FROM (
			SELECT 'jira'::text AS kind, id, last_sync_time, cadence_minutes FROM jira_syncs
			UNION ALL
			SELECT 'confluence', id, last_sync_time, cadence_minutes FROM confluence_syncs
			UNION ALL
			SELECT 'github', id, last_sync_time, cadence_minutes FROM git_repo_syncs
		) s
		WHERE (s.last_sync_time IS NULL
		       OR s.last_sync_time + make_interval(mins => s.cadence_minutes) <= now())
		  AND NOT EXISTS (
			SELECT 1 FROM sync_jobs j
			WHERE j.job_type = s.kind
			  AND j.sync_id = s.id
			  AND j.status IN ('queued', 'running')
		  )
		ORDER BY s.kind, s.id`

	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("listing due syncs: %w", err)
	}
	defer rows.Close()

	var due []DueSync
	for rows.Next() {
		var d DueSync
		if err := rows.Scan(&d.Kind, &d.SyncID); err != nil {
			return nil, fmt.Errorf("scanning due sync: %w", err)
		}
		due = append(due, d)
	}
	return due, rows.Err()
}
