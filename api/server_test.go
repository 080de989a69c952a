package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helpgrid/helpgrid/internal/ai"
	"github.com/helpgrid/helpgrid/internal/knowledge"
	"github.com/helpgrid/helpgrid/internal/log"
	"github.com/helpgrid/helpgrid/internal/rag"
	"github.com/helpgrid/helpgrid/internal/store"
	"github.com/helpgrid/helpgrid/internal/tenant"
)

type fakeSyncService struct {
	cfg      *store.SyncConfig
	job      *store.SyncJob
	enqueued []int64
}

func (f *fakeSyncService) GetSyncConfig(_ context.Context, kind store.SyncKind, syncID int64) (*store.SyncConfig, error) {
	if f.cfg == nil || f.cfg.ID != syncID || f.cfg.Kind != kind {
		return nil, store.ErrNotFound
	}
	return f.cfg, nil
}

func (f *fakeSyncService) EnqueueJob(_ context.Context, kind store.SyncKind, syncID int64) (*store.SyncJob, error) {
	f.enqueued = append(f.enqueued, syncID)
	return &store.SyncJob{
		ID:         uuid.New(),
		JobType:    kind,
		SyncID:     syncID,
		Status:     store.JobStatusQueued,
		EnqueuedAt: time.Now(),
	}, nil
}

func (f *fakeSyncService) GetJob(_ context.Context, jobID uuid.UUID) (*store.SyncJob, error) {
	if f.job == nil || f.job.ID != jobID {
		return nil, store.ErrNotFound
	}
	return f.job, nil
}

func (f *fakeSyncService) SyncStatusInfo(context.Context, store.SyncKind, int64) (store.SyncStatus, string, error) {
	if f.cfg == nil {
		return "", "", store.ErrNotFound
	}
	return f.cfg.Status, f.cfg.StatusMessage, nil
}

type fakeQueryService struct {
	results []knowledge.Result
	count   int64
	err     error

	gotScope tenant.Scope
	gotTopK  int
}

func (f *fakeQueryService) Search(_ context.Context, scope tenant.Scope, _ string, topK int) ([]knowledge.Result, error) {
	f.gotScope = scope
	f.gotTopK = topK
	return f.results, f.err
}

func (f *fakeQueryService) Count(_ context.Context, scope tenant.Scope) (int64, error) {
	f.gotScope = scope
	return f.count, f.err
}

type fakeAnswerService struct {
	answer *rag.Answer
	err    error
}

func (f *fakeAnswerService) Generate(context.Context, tenant.Scope, string, int) (*rag.Answer, error) {
	return f.answer, f.err
}

func testServer(syncs *fakeSyncService, queries *fakeQueryService, answers *fakeAnswerService) *httptest.Server {
	if syncs == nil {
		syncs = &fakeSyncService{}
	}
	if queries == nil {
		queries = &fakeQueryService{}
	}
	if answers == nil {
		answers = &fakeAnswerService{}
	}
	srv := NewServer(syncs, queries, answers, nil, log.NewNop())
	return httptest.NewServer(srv.Handler())
}

func doJSON(t *testing.T, method, url, companyID, body string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	if companyID != "" {
		req.Header.Set("X-Company-ID", companyID)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	var decoded map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&decoded)
	return resp, decoded
}

func jiraSyncConfig() *store.SyncConfig {
	return &store.SyncConfig{
		ID:            7,
		Kind:          store.SyncKindJira,
		Scope:         tenant.Scope{CompanyID: 1, ChatbotID: 2},
		Status:        store.SyncStatusIdle,
		StatusMessage: "",
	}
}

func TestSyncNowEnqueues(t *testing.T) {
	syncs := &fakeSyncService{cfg: jiraSyncConfig()}
	ts := testServer(syncs, nil, nil)
	defer ts.Close()

	resp, body := doJSON(t, http.MethodPost, ts.URL+"/api/chatbots/2/syncs/jira/7/sync-now", "1", "")
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, "queued", body["status"])
	assert.Equal(t, "jira", body["job_type"])
	assert.Equal(t, []int64{7}, syncs.enqueued)
}

func TestSyncNowCrossTenantIsNotFound(t *testing.T) {
	syncs := &fakeSyncService{cfg: jiraSyncConfig()}
	ts := testServer(syncs, nil, nil)
	defer ts.Close()

	// Wrong company.
	resp, _ := doJSON(t, http.MethodPost, ts.URL+"/api/chatbots/2/syncs/jira/7/sync-now", "99", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// Wrong chatbot.
	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/api/chatbots/42/syncs/jira/7/sync-now", "1", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	assert.Empty(t, syncs.enqueued)
}

func TestSyncNowValidation(t *testing.T) {
	ts := testServer(nil, nil, nil)
	defer ts.Close()

	resp, _ := doJSON(t, http.MethodPost, ts.URL+"/api/chatbots/2/syncs/jira/7/sync-now", "", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/api/chatbots/2/syncs/svn/7/sync-now", "1", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestJobStatusIncludesSourceStatus(t *testing.T) {
	cfg := jiraSyncConfig()
	cfg.Status = store.SyncStatusFailed
	cfg.StatusMessage = "Jira sync timed out while contacting the Jira API."
	started := time.Now()
	job := &store.SyncJob{
		ID:            uuid.New(),
		JobType:       store.SyncKindJira,
		SyncID:        7,
		Status:        store.JobStatusFailed,
		StatusMessage: "Jira sync timed out while contacting the Jira API.",
		EnqueuedAt:    time.Now(),
		StartedAt:     &started,
	}
	ts := testServer(&fakeSyncService{cfg: cfg, job: job}, nil, nil)
	defer ts.Close()

	resp, body := doJSON(t, http.MethodGet, ts.URL+"/api/jobs/"+job.ID.String(), "1", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "failed", body["job_status"])
	assert.Equal(t, "failed", body["source_status"])
	assert.Equal(t, "Jira sync timed out while contacting the Jira API.", body["source_message"])
}

func TestJobStatusUnknownJob(t *testing.T) {
	ts := testServer(&fakeSyncService{cfg: jiraSyncConfig()}, nil, nil)
	defer ts.Close()

	resp, _ := doJSON(t, http.MethodGet, ts.URL+"/api/jobs/"+uuid.NewString(), "1", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestQuerySearchMode(t *testing.T) {
	queries := &fakeQueryService{results: []knowledge.Result{
		{ID: 1, Source: "jira_issue", SourceID: "PROJ-1", Content: "Issue: login broken", Similarity: 0.92},
	}}
	ts := testServer(nil, queries, nil)
	defer ts.Close()

	resp, body := doJSON(t, http.MethodPost, ts.URL+"/api/chatbots/2/query", "1",
		`{"question": "why is login broken?", "top_k": 3}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, tenant.Scope{CompanyID: 1, ChatbotID: 2}, queries.gotScope)
	assert.Equal(t, 3, queries.gotTopK)

	results := body["results"].([]any)
	require.Len(t, results, 1)
	hit := results[0].(map[string]any)
	assert.Equal(t, "jira_issue", hit["source"])
	assert.Equal(t, "PROJ-1", hit["source_id"])
}

func TestQueryAnswerMode(t *testing.T) {
	answers := &fakeAnswerService{answer: &rag.Answer{
		Answer:  "Restart the auth pod [jira_issue:PROJ-1].",
		Sources: []rag.Source{{Source: "jira_issue", SourceID: "PROJ-1", Similarity: 0.92}},
	}}
	ts := testServer(nil, nil, answers)
	defer ts.Close()

	resp, body := doJSON(t, http.MethodPost, ts.URL+"/api/chatbots/2/query", "1",
		`{"question": "why is login broken?", "answer": true}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	answer := body["answer"].(map[string]any)
	assert.Equal(t, "Restart the auth pod [jira_issue:PROJ-1].", answer["answer"])
}

func TestQueryProviderErrors(t *testing.T) {
	ts := testServer(nil, &fakeQueryService{err: ai.ErrRateLimited}, nil)
	defer ts.Close()

	resp, _ := doJSON(t, http.MethodPost, ts.URL+"/api/chatbots/2/query", "1", `{"question": "q"}`)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)

	ts2 := testServer(nil, &fakeQueryService{err: ai.ErrUnavailable}, nil)
	defer ts2.Close()
	resp, _ = doJSON(t, http.MethodPost, ts2.URL+"/api/chatbots/2/query", "1", `{"question": "q"}`)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestQueryValidation(t *testing.T) {
	ts := testServer(nil, nil, nil)
	defer ts.Close()

	resp, _ := doJSON(t, http.MethodPost, ts.URL+"/api/chatbots/2/query", "1", `{"question": ""}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/api/chatbots/2/query", "1", `not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDocumentCount(t *testing.T) {
	queries := &fakeQueryService{count: 42}
	ts := testServer(nil, queries, nil)
	defer ts.Close()

	resp, body := doJSON(t, http.MethodGet, ts.URL+"/api/chatbots/2/documents/count", "1", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(42), body["count"])
	assert.Equal(t, tenant.Scope{CompanyID: 1, ChatbotID: 2}, queries.gotScope)
}

func TestHealthProbes(t *testing.T) {
	ts := testServer(nil, nil, nil)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// No database pool configured: not ready.
	resp, err = http.Get(ts.URL + "/ready")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
