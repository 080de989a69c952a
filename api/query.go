package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/helpgrid/helpgrid/internal/ai"
	"github.com/helpgrid/helpgrid/internal/knowledge"
	"github.com/helpgrid/helpgrid/internal/rag"
	"github.com/helpgrid/helpgrid/internal/tenant"
)

// QueryService is the retrieval surface. *knowledge.Store satisfies it.
type QueryService interface {
	Search(ctx context.Context, scope tenant.Scope, query string, topK int) ([]knowledge.Result, error)
	Count(ctx context.Context, scope tenant.Scope) (int64, error)
}

// AnswerService generates grounded answers. *rag.Generator satisfies it.
type AnswerService interface {
	Generate(ctx context.Context, scope tenant.Scope, question string, topK int) (*rag.Answer, error)
}

// QueryHandler serves retrieval and counting.
type QueryHandler struct {
	queries QueryService
	answers AnswerService
	logger  *slog.Logger
}

// QueryRequest is the query endpoint body. Answer selects between raw
// retrieval (false) and a grounded answer (true).
type QueryRequest struct {
	Question string `json:"question"`
	TopK     int    `json:"top_k"`
	Answer   bool   `json:"answer"`
}

// SearchResult is one retrieval hit in a search response.
type SearchResult struct {
	Source     string  `json:"source"`
	SourceID   string  `json:"source_id"`
	Content    string  `json:"content"`
	Similarity float64 `json:"similarity"`
}

// QueryResponse carries either Results or Answer, by request mode.
type QueryResponse struct {
	Results []SearchResult `json:"results,omitempty"`
	Answer  *rag.Answer    `json:"answer,omitempty"`
}

func (h *QueryHandler) query(w http.ResponseWriter, r *http.Request) {
	scope, ok := requestScope(r, chi.URLParam(r, "chatbotID"))
	if !ok {
		writeError(w, http.StatusBadRequest, "bad_request", "missing or invalid X-Company-ID or chatbot id")
		return
	}

	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}
	if req.Question == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "question is required")
		return
	}

	if req.Answer {
		answer, err := h.answers.Generate(r.Context(), scope, req.Question, req.TopK)
		if err != nil {
			h.writeQueryError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, QueryResponse{Answer: answer})
		return
	}

	results, err := h.queries.Search(r.Context(), scope, req.Question, req.TopK)
	if err != nil {
		h.writeQueryError(w, err)
		return
	}
	out := make([]SearchResult, 0, len(results))
	for _, res := range results {
		out = append(out, SearchResult{
			Source:     res.Source,
			SourceID:   res.SourceID,
			Content:    res.Content,
			Similarity: res.Similarity,
		})
	}
	writeJSON(w, http.StatusOK, QueryResponse{Results: out})
}

// writeQueryError maps provider failures to meaningful statuses instead
// of a blanket 500.
func (h *QueryHandler) writeQueryError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ai.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, "rate_limited", "model provider rate limit reached")
	case errors.Is(err, ai.ErrUnavailable):
		writeError(w, http.StatusServiceUnavailable, "unavailable", "model provider unavailable")
	default:
		h.logger.Error("query failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal", "")
	}
}

// CountResponse is the document count body.
type CountResponse struct {
	Count int64 `json:"count"`
}

func (h *QueryHandler) documentCount(w http.ResponseWriter, r *http.Request) {
	scope, ok := requestScope(r, chi.URLParam(r, "chatbotID"))
	if !ok {
		writeError(w, http.StatusBadRequest, "bad_request", "missing or invalid X-Company-ID or chatbot id")
		return
	}

	count, err := h.queries.Count(r.Context(), scope)
	if err != nil {
		h.logger.Error("counting documents", "scope", scope, "error", err)
		writeError(w, http.StatusInternalServerError, "internal", "")
		return
	}
	writeJSON(w, http.StatusOK, CountResponse{Count: count})
}
