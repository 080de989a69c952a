// Package ai defines the embedding and completion capabilities consumed
// by the ingestion and retrieval pipelines, plus the uniform error kinds
// the rest of the system is allowed to see.
package ai

import "context"

// Embedder generates vector embeddings from text for similarity search.
// Implementations must be safe for concurrent use.
type Embedder interface {
	// EmbedText generates a fixed-length embedding for a single text.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates embeddings for multiple texts in one batch,
	// returned in input order.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// Completer issues a single chat completion request.
// Implementations must be safe for concurrent use.
type Completer interface {
	// Complete sends one system+user prompt pair and returns the raw
	// answer text.
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Provider aggregates the AI services for initialization and lifecycle
// management so callers configure one thing at startup.
type Provider interface {
	Embedder() Embedder
	Completer() Completer
}
