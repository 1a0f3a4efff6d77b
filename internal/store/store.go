// Package store is the vector store facade used by the rest of the application. It
// picks the local or Pinecone backend once at Init and keeps it until the next Init.
package store

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hyperjump/hondana/internal/config"
	"github.com/hyperjump/hondana/internal/embedding"
	"github.com/hyperjump/hondana/internal/vector"
	"go.uber.org/zap"
)

const (
	// DefaultTopK is used when a query asks for zero or fewer results.
	DefaultTopK = 5
	// DefaultMaxTopK caps a query when the configuration does not.
	DefaultMaxTopK = 50

	probeText = "dimension probe"
)

// ErrNotInitialized is returned by every operation called before Init.
var ErrNotInitialized = errors.New("store: not initialized")

// Dialer opens a remote index.
type Dialer func(ctx context.Context, opts vector.PineconeOptions) (*vector.RemoteIndex, error)

// UpsertResult reports how many records were written.
type UpsertResult struct {
	Upserted int `json:"upserted"`
}

// DeleteResult reports how many records were removed.
type DeleteResult struct {
	Deleted int `json:"deleted"`
}

// QueryRequest is a similarity query against the active backend.
type QueryRequest struct {
	Vector []float32
	TopK   int
	Filter vector.Filter
}

// Status describes the active backend.
type Status struct {
	Driver             string `json:"driver"`
	Namespace          string `json:"namespace"`
	Dimension          int    `json:"dimension"`
	EmbeddingDimension int    `json:"embedding_dimension,omitempty"`
	Normalizing        bool   `json:"normalizing"`
	Count              int    `json:"count"`
	SnapshotPath       string `json:"snapshot_path,omitempty"`
	SnapshotBytes      int64  `json:"snapshot_bytes,omitempty"`
	FellBack           bool   `json:"fell_back"`
}

// Store is the vector store facade.
type Store struct {
	cfg      config.VectorDBConfig
	logger   *zap.Logger
	embedder embedding.Embedder
	dial     Dialer

	mu       sync.RWMutex
	backend  backend
	fellBack bool
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger for the store.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithEmbedder sets the embedder used to probe the embedding length at Init.
func WithEmbedder(e embedding.Embedder) Option {
	return func(s *Store) { s.embedder = e }
}

// WithDialer replaces the function used to connect to Pinecone.
func WithDialer(d Dialer) Option {
	return func(s *Store) {
		if d != nil {
			s.dial = d
		}
	}
}

// New creates an uninitialized Store. Call Init before use.
func New(cfg config.VectorDBConfig, opts ...Option) *Store {
	s := &Store{
		cfg:    cfg,
		logger: zap.NewNop(),
		dial:   vector.DialPinecone,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Init selects the backend. A Pinecone driver that cannot be configured, reached or
// authorized is logged and replaced by the local backend. A local snapshot that
// cannot be decoded is returned as an error. Calling Init again re-runs selection.
func (s *Store) Init(ctx context.Context) error {
	driver, err := vector.ParseDriver(s.cfg.Driver)
	if err != nil {
		s.logger.Error("invalid vector driver, using local store", zap.Error(err))
		driver = vector.DriverLocal
	}

	var b backend
	fellBack := false
	if driver == vector.DriverPinecone {
		rb, err := s.initRemote(ctx)
		if err != nil {
			s.logger.Error("pinecone unavailable, falling back to local store", zap.Error(err))
			fellBack = true
		} else {
			b = rb
		}
	}
	if b == nil {
		// vector_db.dimension describes the Pinecone index when that driver was
		// asked for, so a fallback store takes its length from the data instead.
		lb, err := s.initLocal(!fellBack)
		if err != nil {
			return err
		}
		b = lb
	}

	s.mu.Lock()
	old := s.backend
	s.backend = b
	s.fellBack = fellBack
	s.mu.Unlock()

	if old != nil {
		if err := old.close(); err != nil {
			s.logger.Warn("failed to close previous backend", zap.Error(err))
		}
	}
	s.logger.Info("vector store ready",
		zap.String("driver", string(b.driver())),
		zap.String("namespace", s.cfg.Namespace),
		zap.Bool("fell_back", fellBack),
	)
	return nil
}

func (s *Store) initLocal(pinDimension bool) (*localBackend, error) {
	var opts []vector.LocalOption
	if pinDimension && s.cfg.Dimension > 0 {
		opts = append(opts, vector.WithDimension(s.cfg.Dimension))
	}
	idx := vector.NewLocalIndex(s.cfg.LocalPath, opts...)
	if err := idx.Load(); err != nil {
		return nil, fmt.Errorf("load local vector store: %w", err)
	}
	if skipped := idx.LoadSkipped(); skipped > 0 {
		s.logger.Warn("dropped snapshot records without an id or with a mismatched length",
			zap.String("path", idx.Path()),
			zap.Int("skipped", skipped),
			zap.Int("dimension", idx.Dimension()),
		)
	}
	s.logger.Debug("local snapshot loaded", zap.String("path", idx.Path()), zap.Int("count", idx.Len()))
	return &localBackend{idx: idx}, nil
}

func (s *Store) initRemote(ctx context.Context) (*remoteBackend, error) {
	pc := s.cfg.Pinecone
	if pc.APIKey == "" {
		return nil, &ConfigError{Field: "vector_db.pinecone.api_key", Err: vector.ErrMissingCredentials}
	}
	if pc.Index == "" && pc.Host == "" {
		return nil, &ConfigError{Field: "vector_db.pinecone.index", Err: errors.New("index name or host is required")}
	}

	idx, err := s.dial(ctx, vector.PineconeOptions{
		APIKey:    pc.APIKey,
		Index:     pc.Index,
		Host:      pc.Host,
		Namespace: s.cfg.Namespace,
	})
	if err != nil {
		return nil, err
	}
	if err := idx.Ping(ctx); err != nil {
		_ = idx.Close()
		return nil, err
	}

	rb := &remoteBackend{idx: idx}
	rb.remoteDim = s.cfg.Dimension
	if rb.remoteDim <= 0 {
		dim, err := idx.Dimension(ctx)
		if err != nil {
			s.logger.Warn("could not determine pinecone index dimension", zap.Error(err))
		}
		rb.remoteDim = dim
	}
	if s.embedder != nil {
		vec, err := s.embedder.Embed(ctx, probeText)
		if err != nil {
			s.logger.Warn("could not determine embedding dimension", zap.Error(err))
		} else {
			rb.embedDim = len(vec)
		}
	}
	if rb.remoteDim > 0 && rb.embedDim > 0 && rb.remoteDim != rb.embedDim {
		rb.fit = true
		s.logger.Warn("embedding dimension differs from index dimension, vectors will be resized",
			zap.Int("embedding_dimension", rb.embedDim),
			zap.Int("index_dimension", rb.remoteDim),
		)
	}
	return rb, nil
}

func (s *Store) active() (backend, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.backend == nil {
		return nil, ErrNotInitialized
	}
	return s.backend, nil
}

// Driver returns the active driver, or "" before Init.
func (s *Store) Driver() vector.Driver {
	b, err := s.active()
	if err != nil {
		return ""
	}
	return b.driver()
}

// UpsertMany writes records to the active backend and returns how many were applied.
func (s *Store) UpsertMany(ctx context.Context, records []vector.Record) (UpsertResult, error) {
	b, err := s.active()
	if err != nil {
		return UpsertResult{}, err
	}
	if len(records) == 0 {
		return UpsertResult{}, nil
	}
	n, err := b.upsert(ctx, records)
	if err != nil {
		return UpsertResult{Upserted: n}, err
	}
	if skipped := len(records) - n; skipped > 0 {
		s.logger.Warn("skipped malformed records", zap.Int("skipped", skipped), zap.Int("upserted", n))
	}
	return UpsertResult{Upserted: n}, nil
}

// Replace makes records the whole collection. Every record must be storable:
// otherwise nothing is changed and an error wrapping vector.ErrRecordRejected is
// returned. The local backend swaps and saves once; Pinecone is cleared only
// after the records pass validation.
func (s *Store) Replace(ctx context.Context, records []vector.Record) (UpsertResult, error) {
	b, err := s.active()
	if err != nil {
		return UpsertResult{}, err
	}
	n, err := b.replace(ctx, records)
	return UpsertResult{Upserted: n}, err
}

// Query returns the records most similar to req.Vector. TopK <= 0 means DefaultTopK;
// larger values are capped at the configured maximum.
func (s *Store) Query(ctx context.Context, req QueryRequest) ([]vector.Hit, error) {
	b, err := s.active()
	if err != nil {
		return nil, err
	}
	if err := req.Filter.Validate(); err != nil {
		return nil, fmt.Errorf("invalid filter: %w", err)
	}
	return b.query(ctx, req.Vector, s.clampTopK(req.TopK), req.Filter)
}

func (s *Store) clampTopK(k int) int {
	if k <= 0 {
		k = DefaultTopK
	}
	limit := s.cfg.MaxTopK
	if limit <= 0 {
		limit = DefaultMaxTopK
	}
	return min(k, limit)
}

// DeleteByIDs removes the given ids. An empty list returns without touching the backend.
func (s *Store) DeleteByIDs(ctx context.Context, ids []string) (DeleteResult, error) {
	b, err := s.active()
	if err != nil {
		return DeleteResult{}, err
	}
	if len(ids) == 0 {
		return DeleteResult{}, nil
	}
	n, err := b.delete(ctx, ids)
	return DeleteResult{Deleted: n}, err
}

// Clear removes every record from the collection.
func (s *Store) Clear(ctx context.Context) error {
	b, err := s.active()
	if err != nil {
		return err
	}
	return b.clear(ctx)
}

// Reload re-reads the local snapshot from disk. It is a no-op for Pinecone.
func (s *Store) Reload(ctx context.Context) error {
	b, err := s.active()
	if err != nil {
		return err
	}
	return b.reload(ctx)
}

// Status describes the active backend.
func (s *Store) Status(ctx context.Context) (Status, error) {
	s.mu.RLock()
	b, fellBack := s.backend, s.fellBack
	s.mu.RUnlock()
	if b == nil {
		return Status{}, ErrNotInitialized
	}
	st, err := b.status(ctx)
	st.Driver = string(b.driver())
	st.Namespace = s.cfg.Namespace
	st.FellBack = fellBack
	return st, err
}

// Close releases the active backend. The store must be re-initialized before reuse.
func (s *Store) Close() error {
	s.mu.Lock()
	b := s.backend
	s.backend = nil
	s.mu.Unlock()
	if b == nil {
		return nil
	}
	return b.close()
}
