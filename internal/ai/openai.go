package ai

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// completionTemperature keeps answers close to the retrieved context.
const completionTemperature = 0.2

// Config holds provider configuration for the OpenAI-backed services.
type Config struct {
	APIKey          string
	EmbeddingModel  string
	CompletionModel string
}

// OpenAIProvider implements Provider on top of the OpenAI API.
type OpenAIProvider struct {
	embedder  *openAIEmbedder
	completer *openAICompleter
}

// NewOpenAIProvider builds the embedder and completer from one config.
func NewOpenAIProvider(cfg Config, logger *slog.Logger) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	embedClient, err := openai.New(
		openai.WithToken(cfg.APIKey),
		openai.WithEmbeddingModel(cfg.EmbeddingModel),
	)
	if err != nil {
		return nil, fmt.Errorf("creating embedding client: %w", err)
	}
	embedder, err := embeddings.NewEmbedder(embedClient, embeddings.WithStripNewLines(true))
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}

	completeClient, err := openai.New(
		openai.WithToken(cfg.APIKey),
		openai.WithModel(cfg.CompletionModel),
	)
	if err != nil {
		return nil, fmt.Errorf("creating completion client: %w", err)
	}

	return &OpenAIProvider{
		embedder: &openAIEmbedder{
			embedder: embedder,
			logger:   logger.With("component", "openai-embedder"),
		},
		completer: &openAICompleter{
			llm:    completeClient,
			logger: logger.With("component", "openai-completer"),
		},
	}, nil
}

// Embedder returns the text embedding service.
func (p *OpenAIProvider) Embedder() Embedder { return p.embedder }

// Completer returns the chat completion service.
func (p *OpenAIProvider) Completer() Completer { return p.completer }

type openAIEmbedder struct {
	embedder embeddings.Embedder
	logger   *slog.Logger
}

func (e *openAIEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("embedding: provider returned no vectors")
	}
	return vectors[0], nil
}

func (e *openAIEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	e.logger.Debug("generating embeddings", "count", len(texts))

	vectors, err := e.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, classify("embedding", err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("embedding: got %d vectors for %d texts", len(vectors), len(texts))
	}
	return vectors, nil
}

type openAICompleter struct {
	llm    llms.Model
	logger *slog.Logger
}

func (c *openAICompleter) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	c.logger.Debug("requesting completion",
		"system_len", len(systemPrompt),
		"user_len", len(userPrompt))

	resp, err := c.llm.GenerateContent(ctx,
		[]llms.MessageContent{
			llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt),
			llms.TextParts(llms.ChatMessageTypeHuman, userPrompt),
		},
		llms.WithTemperature(completionTemperature),
	)
	if err != nil {
		return "", classify("completion", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("completion: provider returned no choices")
	}
	return resp.Choices[0].Content, nil
}
