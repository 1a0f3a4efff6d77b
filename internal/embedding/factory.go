package embedding

import (
	"context"
	"fmt"
	"strings"

	"github.com/hyperjump/hondana/internal/config"
)

// Provider names accepted by New.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
	ProviderMock   = "mock"
)

// New builds the embedder described by cfg, wrapped in an LRU cache when
// cfg.CacheSize is positive.
func New(ctx context.Context, cfg config.EmbeddingConfig) (Embedder, error) {
	opts := []Option{
		WithModel(cfg.Model),
		WithDimension(cfg.Dimensions),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, WithBaseURL(cfg.BaseURL))
	}

	var (
		e   Embedder
		err error
	)
	switch p := strings.ToLower(strings.TrimSpace(cfg.Provider)); p {
	case "", ProviderGemini:
		e, err = NewGemini(ctx, cfg.APIKey, opts...)
	case ProviderOpenAI:
		e, err = NewOpenAI(cfg.APIKey, opts...)
	case ProviderMock:
		e = NewMockEmbedder(cfg.Dimensions)
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("embedding provider %s: %w", cfg.Provider, err)
	}
	if cfg.CacheSize > 0 {
		e = NewCachedEmbedder(e, cfg.CacheSize)
	}
	return e, nil
}
