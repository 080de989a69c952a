package rag

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helpgrid/helpgrid/internal/ai/mock"
	"github.com/helpgrid/helpgrid/internal/knowledge"
	"github.com/helpgrid/helpgrid/internal/log"
	"github.com/helpgrid/helpgrid/internal/tenant"
)

type stubSearcher struct {
	results []knowledge.Result
	err     error

	gotScope tenant.Scope
	gotQuery string
	gotTopK  int
}

func (s *stubSearcher) Search(_ context.Context, scope tenant.Scope, query string, topK int) ([]knowledge.Result, error) {
	s.gotScope = scope
	s.gotQuery = query
	s.gotTopK = topK
	return s.results, s.err
}

func TestGeneratePromptLayout(t *testing.T) {
	searcher := &stubSearcher{results: []knowledge.Result{
		{Source: "jira", SourceID: "PROJ-123", Content: "Issue: login broken", Similarity: 0.91},
		{Source: "confluence", SourceID: "456", Content: "Runbook for login outages", Similarity: 0.84},
	}}
	completer := &mock.Completer{Answer: "Restart the auth pod [jira:PROJ-123]."}
	gen := NewGenerator(searcher, completer, log.NewNop())
	scope := tenant.Scope{CompanyID: 1, ChatbotID: 2}

	answer, err := gen.Generate(context.Background(), scope, "why is login broken?", 5)
	require.NoError(t, err)

	assert.Equal(t, scope, searcher.gotScope)
	assert.Equal(t, "why is login broken?", searcher.gotQuery)
	assert.Equal(t, 5, searcher.gotTopK)

	require.Len(t, completer.UserPrompts, 1)
	assert.Equal(t,
		"Context:\n[jira:PROJ-123]\nIssue: login broken\n\n[confluence:456]\nRunbook for login outages\n\nQuestion: why is login broken?",
		completer.UserPrompts[0])
	require.Len(t, completer.SystemPrompts, 1)
	assert.Contains(t, completer.SystemPrompts[0], "using only the provided company documents")
	assert.Contains(t, completer.SystemPrompts[0], "Never make up information")

	assert.Equal(t, "Restart the auth pod [jira:PROJ-123].", answer.Answer)
	require.Len(t, answer.Sources, 2)
	assert.Equal(t, Source{Source: "jira", SourceID: "PROJ-123", Similarity: 0.91}, answer.Sources[0])
}

func TestGenerateNoHitsStillCompletes(t *testing.T) {
	searcher := &stubSearcher{}
	completer := &mock.Completer{Answer: "I do not know."}
	gen := NewGenerator(searcher, completer, log.NewNop())

	answer, err := gen.Generate(context.Background(), tenant.Scope{CompanyID: 1, ChatbotID: 1}, "anything?", 3)
	require.NoError(t, err)
	assert.Equal(t, "I do not know.", answer.Answer)
	assert.Empty(t, answer.Sources)

	require.Len(t, completer.UserPrompts, 1)
	assert.Equal(t, "Context:\n\n\nQuestion: anything?", completer.UserPrompts[0])
}

func TestGenerateSearchError(t *testing.T) {
	wantErr := errors.New("store down")
	gen := NewGenerator(&stubSearcher{err: wantErr}, &mock.Completer{}, log.NewNop())

	_, err := gen.Generate(context.Background(), tenant.Scope{CompanyID: 1, ChatbotID: 1}, "q", 3)
	require.ErrorIs(t, err, wantErr)
}

func TestGenerateCompleterError(t *testing.T) {
	wantErr := errors.New("model unavailable")
	gen := NewGenerator(&stubSearcher{}, &mock.Completer{Err: wantErr}, log.NewNop())

	_, err := gen.Generate(context.Background(), tenant.Scope{CompanyID: 1, ChatbotID: 1}, "q", 3)
	require.ErrorIs(t, err, wantErr)
}
