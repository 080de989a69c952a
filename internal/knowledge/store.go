// Package knowledge implements the document store: chunking source
// content, embedding each chunk, and upserting the result into the
// tenant-scoped vector table, plus similarity search over it.
package knowledge

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pgvector/pgvector-go"

	"github.com/helpgrid/helpgrid/internal/ai"
	"github.com/helpgrid/helpgrid/internal/store"
	"github.com/helpgrid/helpgrid/internal/tenant"
)

// Chunk budget: a fixed character budget approximating a 1000-token
// window at ~4 chars per token. Splitting is positional, not semantic.
const (
	chunkTokenBudget = 1000
	chunkMaxChars    = chunkTokenBudget * 4
)

// DefaultTopK is the search result count when the caller passes none.
const DefaultTopK = 5

// DocumentQuerier is the storage dependency of Store. *store.Store
// satisfies it; memquery.go holds an exact-scan in-memory
// implementation used in tests.
type DocumentQuerier interface {
	UpsertDocument(ctx context.Context, arg store.UpsertDocumentParams) error
	SearchDocuments(ctx context.Context, arg store.SearchDocumentsParams) ([]store.SearchDocumentsRow, error)
	DeleteStaleChunks(ctx context.Context, scope tenant.Scope, source, sourceID string, keep int) error
	CountDocuments(ctx context.Context, scope tenant.Scope) (int64, error)
}

// Document is one stored chunk as reported back to the caller.
type Document struct {
	Source   string
	SourceID string
	Content  string
}

// Result is one ranked search hit.
type Result struct {
	ID         int64
	Source     string
	SourceID   string
	Content    string
	Similarity float64
}

// Store chunks, embeds, and persists documents and answers similarity
// queries over them. Safe for concurrent use.
type Store struct {
	queries  DocumentQuerier
	embedder ai.Embedder
	logger   *slog.Logger
}

// New creates a Store.
func New(queries DocumentQuerier, embedder ai.Embedder, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{queries: queries, embedder: embedder, logger: logger}
}

// chunkText splits content into fixed-size character chunks. The budget
// counts runes, not bytes, so multi-byte text never splits mid-rune.
// Empty content yields no chunks.
func chunkText(content string) []string {
	if content == "" {
		return nil
	}
	runes := []rune(content)
	if len(runes) <= chunkMaxChars {
		return []string{content}
	}
	chunks := make([]string, 0, len(runes)/chunkMaxChars+1)
	for start := 0; start < len(runes); start += chunkMaxChars {
		end := start + chunkMaxChars
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}

// chunkID derives the storage key for chunk idx of n: the bare source
// id when the document fits in one chunk, <sourceID>_part_<idx>
// otherwise.
func chunkID(sourceID string, idx, n int) string {
	if n == 1 {
		return sourceID
	}
	return fmt.Sprintf("%s_part_%d", sourceID, idx)
}

// SaveDocument chunks content, embeds every chunk in one batch, and
// upserts one row per chunk. Re-ingesting the same logical unit
// overwrites the same keys; chunks beyond the new count are pruned so
// shrinking content leaves no stale text behind. Empty content stores
// nothing and removes whatever a previous ingest stored for the same
// key; the embedding provider rejects empty input.
func (s *Store) SaveDocument(ctx context.Context, scope tenant.Scope, source, sourceID, content string) ([]Document, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}

	chunks := chunkText(content)
	if len(chunks) == 0 {
		if err := s.queries.DeleteStaleChunks(ctx, scope, source, sourceID, 0); err != nil {
			return nil, err
		}
		s.logger.Debug("skipped empty document", "source", source, "source_id", sourceID)
		return nil, nil
	}
	vectors, err := s.embedder.EmbedTexts(ctx, chunks)
	if err != nil {
		return nil, fmt.Errorf("embedding %s/%s: %w", source, sourceID, err)
	}
	if len(vectors) != len(chunks) {
		return nil, fmt.Errorf("embedding %s/%s: got %d vectors for %d chunks", source, sourceID, len(vectors), len(chunks))
	}

	docs := make([]Document, 0, len(chunks))
	for idx, chunk := range chunks {
		id := chunkID(sourceID, idx, len(chunks))
		err := s.queries.UpsertDocument(ctx, store.UpsertDocumentParams{
			Scope:    scope,
			Source:   source,
			SourceID: id,
			Content:  chunk,
			Vector:   pgvector.NewVector(vectors[idx]),
		})
		if err != nil {
			return nil, err
		}
		docs = append(docs, Document{Source: source, SourceID: id, Content: chunk})
	}

	if err := s.queries.DeleteStaleChunks(ctx, scope, source, sourceID, len(chunks)); err != nil {
		return nil, err
	}

	s.logger.Debug("saved document",
		"source", source,
		"source_id", sourceID,
		"chunks", len(chunks),
		"content_length", len(content))
	return docs, nil
}

// Search embeds the query once and returns the tenant's top-K chunks
// by descending cosine similarity.
func (s *Store) Search(ctx context.Context, scope tenant.Scope, query string, topK int) ([]Result, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	if topK <= 0 {
		topK = DefaultTopK
	}

	vector, err := s.embedder.EmbedText(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	rows, err := s.queries.SearchDocuments(ctx, store.SearchDocumentsParams{
		Scope:  scope,
		Vector: pgvector.NewVector(vector),
		Limit:  int32(topK),
	})
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(rows))
	for _, row := range rows {
		results = append(results, Result{
			ID:         row.ID,
			Source:     row.Source,
			SourceID:   row.SourceID,
			Content:    row.Content,
			Similarity: row.Similarity,
		})
	}
	return results, nil
}

// Count returns the number of chunk rows stored for a tenant.
func (s *Store) Count(ctx context.Context, scope tenant.Scope) (int64, error) {
	if err := scope.Validate(); err != nil {
		return 0, err
	}
	return s.queries.CountDocuments(ctx, scope)
}
