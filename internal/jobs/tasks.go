// Package jobs runs sync jobs: task execution with fenced status
// reporting, the worker loop draining the queue, and the cadence
// scheduler that enqueues periodic re-syncs.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"

	"github.com/google/uuid"

	"github.com/helpgrid/helpgrid/internal/httpx"
	"github.com/helpgrid/helpgrid/internal/secrets"
	"github.com/helpgrid/helpgrid/internal/store"
)

// SyncStore is the persistence surface a task needs. *store.Store
// satisfies it.
type SyncStore interface {
	GetSyncConfig(ctx context.Context, kind store.SyncKind, syncID int64) (*store.SyncConfig, error)
	GetCredential(ctx context.Context, companyID, credentialID int64) (*store.Credential, error)
	BeginSyncRun(ctx context.Context, kind store.SyncKind, syncID int64, jobID uuid.UUID, message string) error
	UpdateSyncStatus(ctx context.Context, kind store.SyncKind, syncID int64, jobID uuid.UUID, status store.SyncStatus, message string, touchLastSync bool) error
}

// Runner is one source fetcher pipeline; the jira, confluence, and
// github fetchers satisfy it.
type Runner interface {
	Run(ctx context.Context, cfg *store.SyncConfig, cred secrets.Credential) (items, documents int, err error)
}

// syncName maps a kind to its human-facing API name and item noun for
// status messages.
type syncName struct {
	api  string
	noun string
}

var syncNames = map[store.SyncKind]syncName{
	store.SyncKindJira:       {api: "Jira", noun: "issues"},
	store.SyncKindConfluence: {api: "Confluence", noun: "pages"},
	store.SyncKindGitHub:     {api: "GitHub", noun: "files"},
}

// Tasks executes sync jobs against their configured source.
type Tasks struct {
	store   SyncStore
	cipher  *secrets.Cipher
	runners map[store.SyncKind]Runner
	logger  *slog.Logger
}

// NewTasks creates a Tasks dispatching to the given per-kind runners.
func NewTasks(st SyncStore, cipher *secrets.Cipher, jira, confluence, github Runner, logger *slog.Logger) *Tasks {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tasks{
		store:  st,
		cipher: cipher,
		runners: map[store.SyncKind]Runner{
			store.SyncKindJira:       jira,
			store.SyncKindConfluence: confluence,
			store.SyncKindGitHub:     github,
		},
		logger: logger,
	}
}

// RunSync executes one sync under the given job's fence. The config is
// marked running first; every later status write carries the job id and
// is dropped by the store if a newer job has taken over. The returned
// counts feed the job's own completion message.
func (t *Tasks) RunSync(ctx context.Context, kind store.SyncKind, syncID int64, jobID uuid.UUID) (items, documents int, err error) {
	runner, ok := t.runners[kind]
	if !ok || runner == nil {
		return 0, 0, fmt.Errorf("%w: %q", store.ErrUnknownSyncKind, kind)
	}
	name := syncNames[kind]

	cfg, err := t.store.GetSyncConfig(ctx, kind, syncID)
	if err != nil {
		return 0, 0, err
	}
	if err := t.store.BeginSyncRun(ctx, kind, syncID, jobID, "Sync in progress."); err != nil {
		return 0, 0, err
	}

	items, documents, err = t.run(ctx, runner, cfg)
	if err != nil {
		message := failureMessage(name.api, err)
		t.logger.Error("sync failed",
			"kind", kind, "sync_id", syncID, "job_id", jobID, "error", err)
		if statusErr := t.store.UpdateSyncStatus(ctx, kind, syncID, jobID, store.SyncStatusFailed, message, false); statusErr != nil {
			t.logger.Error("recording sync failure", "kind", kind, "sync_id", syncID, "error", statusErr)
		}
		return items, documents, err
	}

	message := fmt.Sprintf("Processed %d %s and ingested %d documents.", items, name.noun, documents)
	err = t.store.UpdateSyncStatus(ctx, kind, syncID, jobID, store.SyncStatusSucceeded, message, items > 0)
	if err != nil {
		return items, documents, err
	}

	t.logger.Info("sync succeeded",
		"kind", kind, "sync_id", syncID, "job_id", jobID,
		"items", items, "documents", documents)
	return items, documents, nil
}

// run resolves the credential and hands off to the fetcher.
func (t *Tasks) run(ctx context.Context, runner Runner, cfg *store.SyncConfig) (int, int, error) {
	row, err := t.store.GetCredential(ctx, cfg.Scope.CompanyID, cfg.CredentialID)
	if err != nil {
		return 0, 0, err
	}
	cred, err := secrets.FromCiphertext(t.cipher, row.Email, row.SecretCiphertext)
	if err != nil {
		return 0, 0, err
	}
	return runner.Run(ctx, cfg, cred)
}

// failureMessage translates an execution error into the config's
// status message: timeouts and network failures get specific wording,
// anything else a generic one that leaks no internals.
func failureMessage(apiName string, err error) string {
	if isTimeout(err) {
		return fmt.Sprintf("%s sync timed out while contacting the %s API.", apiName, apiName)
	}
	if isNetwork(err) {
		return fmt.Sprintf("%s sync failed due to a network error: %v", apiName, err)
	}
	return fmt.Sprintf("Failed to sync %s.", apiName)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func isNetwork(err error) bool {
	var statusErr *httpx.StatusError
	if errors.As(err, &statusErr) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}
