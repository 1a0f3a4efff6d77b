// Package embedding provides the text embedding collaborator: hosted providers, a
// deterministic mock, and an LRU cache.
package embedding

import (
	"context"
	"errors"
)

// Embedder produces vector embeddings for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}

var (
	// ErrEmptyInput is returned when there is no text to embed.
	ErrEmptyInput = errors.New("embedding: empty input")
	// ErrMissingAPIKey is returned when a hosted provider has no API key.
	ErrMissingAPIKey = errors.New("embedding: missing api key")
)
