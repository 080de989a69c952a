package knowledge

import (
	"context"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/helpgrid/helpgrid/internal/store"
	"github.com/helpgrid/helpgrid/internal/tenant"
)

type memKey struct {
	companyID int64
	chatbotID int64
	source    string
	sourceID  string
}

type memRow struct {
	id      int64
	content string
	vector  []float32
}

// MemQuerier is an in-memory DocumentQuerier with an exact cosine scan.
// It mirrors the SQL store's keying and pruning behavior and backs the
// package tests.
type MemQuerier struct {
	mu     sync.Mutex
	nextID int64
	rows   map[memKey]*memRow
}

// NewMemQuerier creates an empty in-memory document store.
func NewMemQuerier() *MemQuerier {
	return &MemQuerier{rows: make(map[memKey]*memRow)}
}

func (m *MemQuerier) UpsertDocument(_ context.Context, arg store.UpsertDocumentParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := memKey{arg.Scope.CompanyID, arg.Scope.ChatbotID, arg.Source, arg.SourceID}
	vec := arg.Vector.Slice()
	if row, ok := m.rows[key]; ok {
		row.content = arg.Content
		row.vector = vec
		return nil
	}
	m.nextID++
	m.rows[key] = &memRow{id: m.nextID, content: arg.Content, vector: vec}
	return nil
}

func (m *MemQuerier) SearchDocuments(_ context.Context, arg store.SearchDocumentsParams) ([]store.SearchDocumentsRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	query := arg.Vector.Slice()
	var results []store.SearchDocumentsRow
	for key, row := range m.rows {
		if key.companyID != arg.Scope.CompanyID || key.chatbotID != arg.Scope.ChatbotID {
			continue
		}
		results = append(results, store.SearchDocumentsRow{
			ID:         row.id,
			Source:     key.source,
			SourceID:   key.sourceID,
			Content:    row.content,
			Similarity: cosineSimilarity(query, row.vector),
		})
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})
	if arg.Limit > 0 && len(results) > int(arg.Limit) {
		results = results[:arg.Limit]
	}
	return results, nil
}

func (m *MemQuerier) DeleteStaleChunks(_ context.Context, scope tenant.Scope, source, sourceID string, keep int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	prefix := sourceID + "_part_"
	for key := range m.rows {
		if key.companyID != scope.CompanyID || key.chatbotID != scope.ChatbotID || key.source != source {
			continue
		}
		// keep == 1 means the bare row is the freshly written chunk;
		// any other count means the bare key must go.
		if keep != 1 && key.sourceID == sourceID {
			delete(m.rows, key)
			continue
		}
		suffix, ok := strings.CutPrefix(key.sourceID, prefix)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(suffix)
		if err != nil {
			continue
		}
		if keep <= 1 || n >= keep {
			delete(m.rows, key)
		}
	}
	return nil
}

func (m *MemQuerier) CountDocuments(_ context.Context, scope tenant.Scope) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var count int64
	for key := range m.rows {
		if key.companyID == scope.CompanyID && key.chatbotID == scope.ChatbotID {
			count++
		}
	}
	return count, nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
