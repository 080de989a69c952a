package jira

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helpgrid/helpgrid/internal/httpx"
	"github.com/helpgrid/helpgrid/internal/knowledge"
	"github.com/helpgrid/helpgrid/internal/log"
	"github.com/helpgrid/helpgrid/internal/secrets"
	"github.com/helpgrid/helpgrid/internal/store"
	"github.com/helpgrid/helpgrid/internal/tenant"
)

type fakeCache struct {
	issues   []store.JiraIssueRow
	comments map[int64][]store.JiraCommentRow
}

func newFakeCache() *fakeCache {
	return &fakeCache{comments: make(map[int64][]store.JiraCommentRow)}
}

func (c *fakeCache) UpsertJiraIssue(_ context.Context, _ int64, issue store.JiraIssueRow) (int64, error) {
	c.issues = append(c.issues, issue)
	return int64(len(c.issues)), nil
}

func (c *fakeCache) UpsertJiraComment(_ context.Context, issueID int64, comment store.JiraCommentRow) (int64, error) {
	c.comments[issueID] = append(c.comments[issueID], comment)
	return int64(100 + len(c.comments[issueID])), nil
}

type savedDoc struct {
	scope    tenant.Scope
	source   string
	sourceID string
	content  string
}

type fakeSaver struct {
	saved []savedDoc
}

func (s *fakeSaver) SaveDocument(_ context.Context, scope tenant.Scope, source, sourceID, content string) ([]knowledge.Document, error) {
	s.saved = append(s.saved, savedDoc{scope, source, sourceID, content})
	return []knowledge.Document{{Source: source, SourceID: sourceID, Content: content}}, nil
}

func adfText(text string) map[string]any {
	return map[string]any{
		"type": "doc",
		"content": []any{
			map[string]any{
				"type":    "paragraph",
				"content": []any{map[string]any{"type": "text", "text": text}},
			},
		},
	}
}

func issueJSON(key, summary, description string) map[string]any {
	return map[string]any{
		"key": key,
		"fields": map[string]any{
			"summary":     summary,
			"description": adfText(description),
			"status":      map[string]any{"name": "To Do"},
			"created":     "2024-03-05T09:41:12.000+0100",
			"updated":     "2024-03-06T10:00:00.000+0100",
		},
	}
}

// jiraServer serves three issues across two search pages; PROJ-1 has one
// comment, the rest none.
func jiraServer(t *testing.T) (*httptest.Server, *[]string) {
	t.Helper()
	var requests []string

	mux := http.NewServeMux()
	mux.HandleFunc("/rest/api/3/search", func(w http.ResponseWriter, r *http.Request) {
		requests = append(requests, r.URL.RequestURI())
		assert.NotEmpty(t, r.Header.Get("Authorization"))

		startAt, _ := strconv.Atoi(r.URL.Query().Get("startAt"))
		var issues []any
		if startAt == 0 {
			issues = []any{
				issueJSON("PROJ-1", "Login broken", "Users cannot log in"),
				issueJSON("PROJ-2", "Slow search", "Search takes 10s"),
			}
		} else {
			issues = []any{
				issueJSON("PROJ-3", "Dark mode", "Feature request"),
			}
		}
		isLast := startAt > 0
		json.NewEncoder(w).Encode(map[string]any{
			"startAt":    startAt,
			"maxResults": 2,
			"total":      3,
			"isLast":     isLast,
			"issues":     issues,
		})
	})
	mux.HandleFunc("/rest/api/3/issue/", func(w http.ResponseWriter, r *http.Request) {
		requests = append(requests, r.URL.RequestURI())
		var comments []any
		if r.URL.Path == "/rest/api/3/issue/PROJ-1/comment" {
			comments = []any{map[string]any{
				"id":      "9001",
				"author":  map[string]any{"displayName": "Dana"},
				"created": "2024-03-05T12:00:00.000+0100",
				"body":    adfText("Reproduced on staging"),
			}}
		}
		json.NewEncoder(w).Encode(map[string]any{
			"startAt": 0, "maxResults": 50, "total": len(comments),
			"comments": comments,
		})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &requests
}

func TestFetcherRunPaginatesAndIngests(t *testing.T) {
	srv, requests := jiraServer(t)
	cache := newFakeCache()
	saver := &fakeSaver{}
	fetcher := NewFetcher(httpx.New(httpx.Config{}, log.NewNop()), cache, saver, log.NewNop())

	cfg := &store.SyncConfig{
		ID:       7,
		Kind:     store.SyncKindJira,
		Scope:    tenant.Scope{CompanyID: 1, ChatbotID: 2},
		BoardURL: srv.URL + "/jira/software/c/projects/PROJ/boards/1",
	}

	items, documents, err := fetcher.Run(context.Background(), cfg, secrets.FromPlaintext("dev@example.com", "token"))
	require.NoError(t, err)
	assert.Equal(t, 3, items)
	assert.Equal(t, 4, documents) // 3 issues + 1 comment

	// Two search pages were walked.
	var searches int
	for _, uri := range *requests {
		if strings.HasPrefix(uri, "/rest/api/3/search") {
			searches++
		}
	}
	assert.Equal(t, 2, searches)

	require.Len(t, cache.issues, 3)
	assert.Equal(t, "PROJ-1", cache.issues[0].IssueKey)
	assert.Equal(t, "Users cannot log in", cache.issues[0].Description)
	require.NotNil(t, cache.issues[0].CreatedAt)

	require.Len(t, saver.saved, 4)
	assert.Equal(t, SourceIssue, saver.saved[0].source)
	assert.Equal(t, "PROJ-1", saver.saved[0].sourceID)
	assert.Equal(t, "Issue: Login broken\n\nDescription: Users cannot log in", saver.saved[0].content)

	comment := saver.saved[1]
	assert.Equal(t, SourceComment, comment.source)
	assert.Equal(t, "PROJ-1_comment_101", comment.sourceID)
	assert.Equal(t, "Comment by Dana on 2024-03-05T12:00:00.000+0100:\nReproduced on staging", comment.content)
}

func TestFetcherRunFailsFastOnBadBoardURL(t *testing.T) {
	fetcher := NewFetcher(httpx.New(httpx.Config{}, log.NewNop()), newFakeCache(), &fakeSaver{}, log.NewNop())

	cfg := &store.SyncConfig{
		ID:       7,
		Scope:    tenant.Scope{CompanyID: 1, ChatbotID: 2},
		BoardURL: "https://acme.atlassian.net/jira/dashboards",
	}
	_, _, err := fetcher.Run(context.Background(), cfg, secrets.FromPlaintext("dev@example.com", "token"))
	require.ErrorIs(t, err, ErrNoProjectKey)
}

func TestFetcherRunCommentWithoutTextGetsPlaceholder(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/rest/api/3/search", func(w http.ResponseWriter, r *http.Request) {
		isLast := true
		json.NewEncoder(w).Encode(map[string]any{
			"total": 1, "isLast": isLast,
			"issues": []any{issueJSON("PROJ-1", "Title", "Body")},
		})
	})
	mux.HandleFunc("/rest/api/3/issue/", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"total": 1,
			"comments": []any{map[string]any{
				"id":      "42",
				"author":  map[string]any{"displayName": "Sam"},
				"created": "2024-03-05T12:00:00.000+0100",
				"body":    map[string]any{"type": "doc", "content": []any{}},
			}},
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	cache := newFakeCache()
	saver := &fakeSaver{}
	fetcher := NewFetcher(httpx.New(httpx.Config{}, log.NewNop()), cache, saver, log.NewNop())
	cfg := &store.SyncConfig{
		ID:       1,
		Scope:    tenant.Scope{CompanyID: 1, ChatbotID: 1},
		BoardURL: srv.URL + "/projects/PROJ/boards/1",
	}

	items, documents, err := fetcher.Run(context.Background(), cfg, secrets.FromPlaintext("dev@example.com", "token"))
	require.NoError(t, err)
	assert.Equal(t, 1, items)
	assert.Equal(t, 2, documents)

	require.Len(t, cache.comments[1], 1)
	assert.Equal(t, "Unknown content", cache.comments[1][0].Content)
	assert.Equal(t, fmt.Sprintf("Comment by Sam on 2024-03-05T12:00:00.000+0100:\n%s", "Unknown content"),
		saver.saved[1].content)
}
