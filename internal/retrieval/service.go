// Package retrieval embeds the book catalogue and answers free-text searches against the vector store.
package retrieval

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/hyperjump/hondana/internal/embedding"
	"github.com/hyperjump/hondana/internal/store"
	"github.com/hyperjump/hondana/internal/vector"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrEmptyCatalogue is returned when the seed file holds no indexable books.
	ErrEmptyCatalogue = errors.New("retrieval: no books to index")
	// ErrEmptyQuery is returned when a search has no text.
	ErrEmptyQuery = errors.New("retrieval: query is required")
)

// bookNamespace scopes generated book ids.
var bookNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://hondana.hyperjump.tech/books"))

// VectorStore is the subset of the store used by the service.
type VectorStore interface {
	Replace(ctx context.Context, records []vector.Record) (store.UpsertResult, error)
	Query(ctx context.Context, req store.QueryRequest) ([]vector.Hit, error)
}

// ReindexResult reports the outcome of a reindex.
type ReindexResult struct {
	Indexed int `json:"indexed"`
	Skipped int `json:"skipped"`
}

// Service indexes books and runs semantic searches.
type Service struct {
	store       VectorStore
	embedder    embedding.Embedder
	logger      *zap.Logger
	batchSize   int
	concurrency int
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithBatchSize sets how many texts are sent per embedding request.
func WithBatchSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// WithConcurrency sets how many embedding requests run at once.
func WithConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// NewService creates a retrieval service.
func NewService(st VectorStore, e embedding.Embedder, opts ...Option) *Service {
	s := &Service{
		store:       st,
		embedder:    e,
		logger:      zap.NewNop(),
		batchSize:   32,
		concurrency: 4,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Reindex replaces the collection with the books in the JSON array at seedPath.
// The existing collection is kept unless every book is embedded and stored.
func (s *Service) Reindex(ctx context.Context, seedPath string) (ReindexResult, error) {
	data, err := os.ReadFile(seedPath)
	if err != nil {
		return ReindexResult{}, fmt.Errorf("failed to read seed catalogue: %w", err)
	}
	var books []map[string]any
	if len(strings.TrimSpace(string(data))) > 0 {
		if err := json.Unmarshal(data, &books); err != nil {
			return ReindexResult{}, fmt.Errorf("failed to parse seed catalogue %s: %w", seedPath, err)
		}
	}
	return s.IndexBooks(ctx, books)
}

// IndexBooks embeds books and replaces the collection with them. Books without any
// text are skipped.
func (s *Service) IndexBooks(ctx context.Context, books []map[string]any) (ReindexResult, error) {
	var (
		texts   []string
		records []vector.Record
	)
	for _, b := range books {
		text := BookText(b)
		if text == "" {
			continue
		}
		texts = append(texts, text)
		records = append(records, vector.Record{ID: bookID(b, text), Metadata: b})
	}
	skipped := len(books) - len(records)
	if len(records) == 0 {
		return ReindexResult{Skipped: skipped}, ErrEmptyCatalogue
	}

	vecs, err := s.embedAll(ctx, texts)
	if err != nil {
		return ReindexResult{}, err
	}
	for i := range records {
		records[i].Vector = vecs[i]
	}

	res, err := s.store.Replace(ctx, records)
	if err != nil {
		return ReindexResult{}, fmt.Errorf("failed to replace collection: %w", err)
	}
	result := ReindexResult{Indexed: res.Upserted, Skipped: skipped}
	s.logger.Info("catalogue reindexed", zap.Int("indexed", result.Indexed), zap.Int("skipped", result.Skipped))
	return result, nil
}

func (s *Service) embedAll(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for start := 0; start < len(texts); start += s.batchSize {
		start, end := start, min(start+s.batchSize, len(texts))
		g.Go(func() error {
			vecs, err := s.embedder.EmbedBatch(ctx, texts[start:end])
			if err != nil {
				return fmt.Errorf("embed books [%d:%d]: %w", start, end, err)
			}
			if len(vecs) != end-start {
				return fmt.Errorf("embed books [%d:%d]: got %d vectors", start, end, len(vecs))
			}
			copy(out[start:end], vecs)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Search embeds text and returns the closest books.
func (s *Service) Search(ctx context.Context, text string, topK int, filter vector.Filter) ([]vector.Hit, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyQuery
	}
	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	return s.store.Query(ctx, store.QueryRequest{Vector: vec, TopK: topK, Filter: filter})
}

// BookText returns the text embedded for a book: its "text" field when present,
// otherwise "<title> by <author>. <genre>. <summary>" built from the fields it has.
func BookText(b map[string]any) string {
	if t := field(b, "text"); t != "" {
		return t
	}
	title, author := field(b, "title"), field(b, "author")
	genre, summary := field(b, "genre"), field(b, "summary")
	if title == "" && summary == "" {
		return ""
	}
	var sb strings.Builder
	sb.WriteString(title)
	if author != "" {
		sb.WriteString(" by ")
		sb.WriteString(author)
	}
	sb.WriteString(".")
	if genre != "" {
		sb.WriteString(" ")
		sb.WriteString(genre)
		sb.WriteString(".")
	}
	if summary != "" {
		sb.WriteString(" ")
		sb.WriteString(summary)
	}
	return strings.TrimSpace(sb.String())
}

func bookID(b map[string]any, text string) string {
	switch v := b["id"].(type) {
	case string:
		if v != "" {
			return v
		}
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return uuid.NewSHA1(bookNamespace, []byte(text)).String()
}

func field(b map[string]any, key string) string {
	s, _ := b[key].(string)
	return strings.TrimSpace(s)
}
