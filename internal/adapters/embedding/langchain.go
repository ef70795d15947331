package embedding

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"

	"github.com/0xcro3dile/docqa-go/internal/domain/ports"
)

var _ ports.EmbeddingService = (*LangChainAdapter)(nil)

// LangChainAdapter embeds text with a langchaingo embedder.
type LangChainAdapter struct {
	embedder embeddings.Embedder
	model    string
}

// NewLangChainOllama builds a langchaingo embedder backed by an Ollama server.
func NewLangChainOllama(baseURL, model string) (*LangChainAdapter, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if model == "" {
		model = DefaultModel
	}

	llm, err := ollama.New(
		ollama.WithServerURL(baseURL),
		ollama.WithModel(model),
	)
	if err != nil {
		return nil, fmt.Errorf("creating ollama client: %w", err)
	}
	embedder, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}
	return NewLangChainAdapter(embedder, model), nil
}

// NewLangChainAdapter wraps an existing langchaingo embedder.
func NewLangChainAdapter(embedder embeddings.Embedder, model string) *LangChainAdapter {
	return &LangChainAdapter{embedder: embedder, model: model}
}

// EmbedBatch embeds all texts in one EmbedDocuments call.
func (a *LangChainAdapter) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	vectors, err := a.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embedding documents: %w", err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(vectors), len(texts))
	}
	log.Debug().Str("model", a.model).Int("texts", len(texts)).Msg("embedded batch via langchaingo")
	return vectors, nil
}
