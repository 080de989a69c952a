package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/pgvector/pgvector-go"

	"github.com/helpgrid/helpgrid/internal/tenant"
)

// UpsertDocumentParams carries one chunk upsert. The (scope, source,
// source_id) key is the idempotence contract: re-ingesting the same
// logical unit overwrites in place.
type UpsertDocumentParams struct {
	Scope    tenant.Scope
	Source   string
	SourceID string
	Content  string
	Vector   pgvector.Vector
}

// UpsertDocument inserts or overwrites one document chunk.
func (s *Store) UpsertDocument(ctx context.Context, arg UpsertDocumentParams) error {
	if err := arg.Scope.Validate(); err != nil {
		return err
	}

	const q = `
		INSERT INTO documents (company_id, chatbot_id, source, source_id, content, embedding)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (company_id, chatbot_id, source, source_id) DO UPDATE SET
			content = EXCLUDED.content,
			embedding = EXCLUDED.embedding,
			updated_at = now()`

	_, err := s.pool.Exec(ctx, q, arg.Scope.CompanyID, arg.Scope.ChatbotID,
		arg.Source, arg.SourceID, arg.Content, arg.Vector)
	if err != nil {
		return fmt.Errorf("upserting document %s/%s: %w", arg.Source, arg.SourceID, err)
	}
	return nil
}

// SearchDocumentsParams carries one vector search.
type SearchDocumentsParams struct {
	Scope  tenant.Scope
	Vector pgvector.Vector
	Limit  int32
}

// SearchDocumentsRow is one ranked search hit.
type SearchDocumentsRow struct {
	ID         int64
	Source     string
	SourceID   string
	Content    string
	Similarity float64
}

// SearchDocuments ranks the tenant's documents by cosine similarity
// using the pgvector <=> operator. The company and chatbot filters are
// part of the SQL, so a cross-tenant row can never appear, even
// transiently.
func (s *Store) SearchDocuments(ctx context.Context, arg SearchDocumentsParams) ([]SearchDocumentsRow, error) {
	if err := arg.Scope.Validate(); err != nil {
		return nil, err
	}

	const q = `
		SELECT id, source, source_id, content,
		       1 - (embedding <=> $1) AS similarity
		FROM documents
		WHERE company_id = $2 AND chatbot_id = $3
		ORDER BY embedding <=> $1
		LIMIT $4`

	rows, err := s.pool.Query(ctx, q, arg.Vector, arg.Scope.CompanyID, arg.Scope.ChatbotID, arg.Limit)
	if err != nil {
		return nil, fmt.Errorf("searching documents: %w", err)
	}
	defer rows.Close()

	var results []SearchDocumentsRow
	for rows.Next() {
		var r SearchDocumentsRow
		if err := rows.Scan(&r.ID, &r.Source, &r.SourceID, &r.Content, &r.Similarity); err != nil {
			return nil, fmt.Errorf("scanning search row: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// escapeLike escapes LIKE metacharacters in a literal so underscores or
// percent signs inside a source id (common in file paths) cannot act as
// wildcards and match sibling documents.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `_`, `\_`, `%`, `\%`)
	return r.Replace(s)
}

// DeleteStaleChunks prunes chunk rows left behind when a re-ingested
// item produced fewer chunks than before. keep is the new chunk count:
// keep == 0 removes every row for the item including the bare one,
// keep == 1 removes every _part_N row, keep > 1 removes the bare row
// plus any _part_N with N >= keep.
func (s *Store) DeleteStaleChunks(ctx context.Context, scope tenant.Scope, source, sourceID string, keep int) error {
	if err := scope.Validate(); err != nil {
		return err
	}
	pattern := escapeLike(sourceID) + `\_part\_%`

	switch {
	case keep <= 0:
		const q = `
			DELETE FROM documents
			WHERE company_id = $1 AND chatbot_id = $2 AND source = $3
			  AND (source_id = $4 OR source_id LIKE $5)`
		if _, err := s.pool.Exec(ctx, q, scope.CompanyID, scope.ChatbotID, source, sourceID, pattern); err != nil {
			return fmt.Errorf("pruning chunks of %s/%s: %w", source, sourceID, err)
		}
	case keep == 1:
		const q = `
			DELETE FROM documents
			WHERE company_id = $1 AND chatbot_id = $2 AND source = $3
			  AND source_id LIKE $4`
		if _, err := s.pool.Exec(ctx, q, scope.CompanyID, scope.ChatbotID, source, pattern); err != nil {
			return fmt.Errorf("pruning chunks of %s/%s: %w", source, sourceID, err)
		}
	default:
		const q = `
			DELETE FROM documents
			WHERE company_id = $1 AND chatbot_id = $2 AND source = $3
			  AND (source_id = $4
			       OR (source_id LIKE $5
			           AND split_part(source_id, '_part_', 2) ~ '^[0-9]+$'
			           AND split_part(source_id, '_part_', 2)::int >= $6))`
		if _, err := s.pool.Exec(ctx, q, scope.CompanyID, scope.ChatbotID, source, sourceID, pattern, keep); err != nil {
			return fmt.Errorf("pruning chunks of %s/%s: %w", source, sourceID, err)
		}
	}
	return nil
}

// CountDocuments returns the number of documents ingested for a tenant.
func (s *Store) CountDocuments(ctx context.Context, scope tenant.Scope) (int64, error) {
	if err := scope.Validate(); err != nil {
		return 0, err
	}

	const q = `SELECT count(*) FROM documents WHERE company_id = $1 AND chatbot_id = $2`

	var count int64
	if err := s.pool.QueryRow(ctx, q, scope.CompanyID, scope.ChatbotID).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting documents: %w", err)
	}
	return count, nil
}
