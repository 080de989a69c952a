// Package mock provides in-memory ai.Embedder and ai.Completer doubles
// for tests. The embedder produces deterministic vectors so similarity
// assertions are stable across runs.
package mock

import (
	"context"
	"hash/fnv"
	"sync"
)

// Embedder is a deterministic test embedder. If Vectors is set, texts are
// looked up there first; unknown texts get a hash-derived vector.
type Embedder struct {
	// Dimension of produced vectors. Default 8.
	Dimension int

	// Vectors maps exact text to a canned embedding.
	Vectors map[string][]float32

	// Err, when set, is returned from every call.
	Err error

	mu    sync.Mutex
	calls []string
}

// Calls returns the texts embedded so far, in order.
func (e *Embedder) Calls() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.calls...)
}

func (e *Embedder) dimension() int {
	if e.Dimension > 0 {
		return e.Dimension
	}
	return 8
}

func (e *Embedder) embed(text string) []float32 {
	if v, ok := e.Vectors[text]; ok {
		return v
	}
	// Hash-seeded pseudo-vector: deterministic, text-dependent.
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	seed := h.Sum64()
	vec := make([]float32, e.dimension())
	for i := range vec {
		seed = seed*6364136223846793005 + 1442695040888963407
		vec[i] = float32(int64(seed>>33)%1000) / 1000
	}
	return vec
}

// EmbedText implements ai.Embedder.
func (e *Embedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedTexts implements ai.Embedder.
func (e *Embedder) EmbedTexts(_ context.Context, texts []string) ([][]float32, error) {
	if e.Err != nil {
		return nil, e.Err
	}
	e.mu.Lock()
	e.calls = append(e.calls, texts...)
	e.mu.Unlock()

	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = e.embed(text)
	}
	return out, nil
}

// Completer is a canned test completer recording the prompts it receives.
type Completer struct {
	// Answer is returned from every call. Default "mock answer".
	Answer string

	// Err, when set, is returned from every call.
	Err error

	mu            sync.Mutex
	SystemPrompts []string
	UserPrompts   []string
}

// Complete implements ai.Completer.
func (c *Completer) Complete(_ context.Context, systemPrompt, userPrompt string) (string, error) {
	c.mu.Lock()
	c.SystemPrompts = append(c.SystemPrompts, systemPrompt)
	c.UserPrompts = append(c.UserPrompts, userPrompt)
	c.mu.Unlock()

	if c.Err != nil {
		return "", c.Err
	}
	if c.Answer == "" {
		return "mock answer", nil
	}
	return c.Answer, nil
}
