// Package rag turns retrieval hits into grounded answers: it formats
// the retrieved chunks into a context block and asks the completion
// model to answer strictly from them.
package rag

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/helpgrid/helpgrid/internal/ai"
	"github.com/helpgrid/helpgrid/internal/knowledge"
	"github.com/helpgrid/helpgrid/internal/tenant"
)

const systemPrompt = "You are a helpful assistant that answers questions using only the provided company documents " +
	"(Jira, Confluence, GitHub). Always cite the source IDs (e.g., [jira:PROJ-123], [confluence:456]) in your answer. " +
	"Do not make any assumptions. If the context does not contain enough information, ask the user for clarification " +
	"or say you do not know. Never make up information or hallucinate answers."

// Searcher is the retrieval dependency: *knowledge.Store satisfies it.
type Searcher interface {
	Search(ctx context.Context, scope tenant.Scope, query string, topK int) ([]knowledge.Result, error)
}

// Source identifies one chunk an answer was grounded on.
type Source struct {
	Source     string  `json:"source"`
	SourceID   string  `json:"source_id"`
	Similarity float64 `json:"similarity"`
}

// Answer is a grounded answer with the chunks it drew on.
type Answer struct {
	Answer  string   `json:"answer"`
	Sources []Source `json:"sources"`
}

// Generator retrieves context for a question and completes an answer
// over it.
type Generator struct {
	searcher  Searcher
	completer ai.Completer
	logger    *slog.Logger
}

// NewGenerator creates a Generator.
func NewGenerator(searcher Searcher, completer ai.Completer, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{searcher: searcher, completer: completer, logger: logger}
}

// contextBlock renders retrieval hits as the prompt context, one block
// per chunk headed by its citation tag.
func contextBlock(results []knowledge.Result) string {
	blocks := make([]string, 0, len(results))
	for _, r := range results {
		blocks = append(blocks, fmt.Sprintf("[%s:%s]\n%s", r.Source, r.SourceID, r.Content))
	}
	return strings.Join(blocks, "\n\n")
}

// Generate retrieves the tenant's top-K chunks for the question and
// asks the model to answer from them alone. With no hits at all the
// model still runs, so it can say it does not know.
func (g *Generator) Generate(ctx context.Context, scope tenant.Scope, question string, topK int) (*Answer, error) {
	results, err := g.searcher.Search(ctx, scope, question, topK)
	if err != nil {
		return nil, fmt.Errorf("retrieving context: %w", err)
	}

	userPrompt := fmt.Sprintf("Context:\n%s\n\nQuestion: %s", contextBlock(results), question)
	text, err := g.completer.Complete(ctx, systemPrompt, userPrompt)
	if err != nil {
		return nil, fmt.Errorf("generating answer: %w", err)
	}

	sources := make([]Source, 0, len(results))
	for _, r := range results {
		sources = append(sources, Source{Source: r.Source, SourceID: r.SourceID, Similarity: r.Similarity})
	}

	g.logger.Debug("generated answer",
		"scope", scope, "context_chunks", len(results), "answer_length", len(text))
	return &Answer{Answer: text, Sources: sources}, nil
}
