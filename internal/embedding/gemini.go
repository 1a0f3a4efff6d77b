package embedding

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

const (
	// GeminiDefaultModel is used when no model is configured.
	GeminiDefaultModel = "text-embedding-004"

	geminiDefaultDim = 768
	geminiMaxBatch   = 100
)

// Gemini embeds text with the Google Gemini API.
type Gemini struct {
	client  *genai.Client
	model   string
	dim     int
	sendDim bool
}

var _ Embedder = (*Gemini)(nil)

// NewGemini creates a Gemini embedder.
func NewGemini(ctx context.Context, apiKey string, opts ...Option) (*Gemini, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	o := options{model: GeminiDefaultModel, dim: geminiDefaultDim}
	for _, opt := range opts {
		opt(&o)
	}

	cc := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if o.httpClient != nil {
		cc.HTTPClient = o.httpClient
	}
	if o.baseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: o.baseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &Gemini{client: client, model: o.model, dim: o.dim, sendDim: o.dimSet}, nil
}

// Embed returns the embedding for a single text.
func (e *Gemini) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyInput
	}
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds texts in requests of at most 100 contents.
func (e *Gemini) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, ErrEmptyInput
	}
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += geminiMaxBatch {
		end := min(start+geminiMaxBatch, len(texts))
		vecs, err := e.request(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("gemini embed [%d:%d]: %w", start, end, err)
		}
		out = append(out, vecs...)
	}
	return out, nil
}

// Dimensions returns the expected output dimension.
func (e *Gemini) Dimensions() int {
	return e.dim
}

// Close is a no-op; the client holds no resources.
func (e *Gemini) Close() error {
	return nil
}

func (e *Gemini) request(ctx context.Context, texts []string) ([][]float32, error) {
	contents := make([]*genai.Content, len(texts))
	for i, t := range texts {
		contents[i] = &genai.Content{Role: "user", Parts: []*genai.Part{{Text: t}}}
	}
	var cfg *genai.EmbedContentConfig
	if e.sendDim {
		d := int32(e.dim)
		cfg = &genai.EmbedContentConfig{OutputDimensionality: &d}
	}

	res, err := e.client.Models.EmbedContent(ctx, e.model, contents, cfg)
	if err != nil {
		return nil, err
	}
	if len(res.Embeddings) != len(texts) {
		return nil, fmt.Errorf("got %d embeddings for %d inputs", len(res.Embeddings), len(texts))
	}
	vecs := make([][]float32, len(texts))
	for i, emb := range res.Embeddings {
		if emb == nil || len(emb.Values) == 0 {
			return nil, fmt.Errorf("no embedding returned for input %d", i)
		}
		vecs[i] = emb.Values
	}
	return vecs, nil
}
