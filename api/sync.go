package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/helpgrid/helpgrid/internal/store"
)

// SyncService is the store surface the sync endpoints need.
// *store.Store satisfies it.
type SyncService interface {
	GetSyncConfig(ctx context.Context, kind store.SyncKind, syncID int64) (*store.SyncConfig, error)
	EnqueueJob(ctx context.Context, kind store.SyncKind, syncID int64) (*store.SyncJob, error)
	GetJob(ctx context.Context, jobID uuid.UUID) (*store.SyncJob, error)
	SyncStatusInfo(ctx context.Context, kind store.SyncKind, syncID int64) (store.SyncStatus, string, error)
}

// SyncHandler serves sync-now and job status.
type SyncHandler struct {
	syncs  SyncService
	logger *slog.Logger
}

// EnqueueResponse is the sync-now response body.
type EnqueueResponse struct {
	JobID    uuid.UUID       `json:"job_id"`
	JobType  store.SyncKind  `json:"job_type"`
	SyncID   int64           `json:"sync_id"`
	Status   store.JobStatus `json:"status"`
	Enqueued time.Time       `json:"enqueued_at"`
}

// syncNow enqueues a sync job for a config owned by the caller's
// company and chatbot. Cross-tenant sync ids come back as 404.
func (h *SyncHandler) syncNow(w http.ResponseWriter, r *http.Request) {
	scope, ok := requestScope(r, chi.URLParam(r, "chatbotID"))
	if !ok {
		writeError(w, http.StatusBadRequest, "bad_request", "missing or invalid X-Company-ID or chatbot id")
		return
	}

	kind := store.SyncKind(chi.URLParam(r, "kind"))
	if !kind.Valid() {
		writeError(w, http.StatusBadRequest, "bad_request", "unknown sync kind "+strconv.Quote(string(kind)))
		return
	}
	syncID, err := strconv.ParseInt(chi.URLParam(r, "syncID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid sync id")
		return
	}

	cfg, err := h.syncs.GetSyncConfig(r.Context(), kind, syncID)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found", "sync not found")
		return
	}
	if err != nil {
		h.logger.Error("loading sync config", "kind", kind, "sync_id", syncID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal", "")
		return
	}
	if cfg.Scope != scope {
		writeError(w, http.StatusNotFound, "not_found", "sync not found")
		return
	}

	job, err := h.syncs.EnqueueJob(r.Context(), kind, syncID)
	if err != nil {
		h.logger.Error("enqueueing sync job", "kind", kind, "sync_id", syncID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal", "")
		return
	}

	writeJSON(w, http.StatusAccepted, EnqueueResponse{
		JobID:    job.ID,
		JobType:  job.JobType,
		SyncID:   job.SyncID,
		Status:   job.Status,
		Enqueued: job.EnqueuedAt,
	})
}

// JobStatusResponse combines the job's own lifecycle with the sync
// config's last reported status.
type JobStatusResponse struct {
	JobID         uuid.UUID        `json:"job_id"`
	JobType       store.SyncKind   `json:"job_type"`
	SyncID        int64            `json:"sync_id"`
	JobStatus     store.JobStatus  `json:"job_status"`
	JobMessage    string           `json:"job_message"`
	SourceStatus  store.SyncStatus `json:"source_status"`
	SourceMessage string           `json:"source_message"`
	EnqueuedAt    time.Time        `json:"enqueued_at"`
	StartedAt     *time.Time       `json:"started_at,omitempty"`
	FinishedAt    *time.Time       `json:"finished_at,omitempty"`
}

// jobStatus reports a job. The owning sync config's tenant must match
// the caller's company; jobs of other companies come back as 404.
func (h *SyncHandler) jobStatus(w http.ResponseWriter, r *http.Request) {
	companyID, err := strconv.ParseInt(r.Header.Get(companyHeader), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "missing or invalid X-Company-ID")
		return
	}
	jobID, err := uuid.Parse(chi.URLParam(r, "jobID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid job id")
		return
	}

	job, err := h.syncs.GetJob(r.Context(), jobID)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found", "job not found")
		return
	}
	if err != nil {
		h.logger.Error("loading job", "job_id", jobID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal", "")
		return
	}

	cfg, err := h.syncs.GetSyncConfig(r.Context(), job.JobType, job.SyncID)
	if err != nil || cfg.Scope.CompanyID != companyID {
		writeError(w, http.StatusNotFound, "not_found", "job not found")
		return
	}

	sourceStatus, sourceMessage, err := h.syncs.SyncStatusInfo(r.Context(), job.JobType, job.SyncID)
	if err != nil {
		h.logger.Error("loading sync status", "kind", job.JobType, "sync_id", job.SyncID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal", "")
		return
	}

	writeJSON(w, http.StatusOK, JobStatusResponse{
		JobID:         job.ID,
		JobType:       job.JobType,
		SyncID:        job.SyncID,
		JobStatus:     job.Status,
		JobMessage:    job.StatusMessage,
		SourceStatus:  sourceStatus,
		SourceMessage: sourceMessage,
		EnqueuedAt:    job.EnqueuedAt,
		StartedAt:     job.StartedAt,
		FinishedAt:    job.FinishedAt,
	})
}
