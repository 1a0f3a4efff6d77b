// Package server provides the HTTP API for Hondana.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hyperjump/hondana/internal/config"
	"github.com/hyperjump/hondana/internal/retrieval"
	"github.com/hyperjump/hondana/internal/store"
	"github.com/hyperjump/hondana/internal/vector"
	"go.uber.org/zap"
)

const serviceName = "hondana"

// Retriever indexes and searches books by text.
type Retriever interface {
	Reindex(ctx context.Context, seedPath string) (retrieval.ReindexResult, error)
	Search(ctx context.Context, text string, topK int, filter vector.Filter) ([]vector.Hit, error)
}

// VectorStore is the raw vector surface exposed over HTTP.
type VectorStore interface {
	UpsertMany(ctx context.Context, records []vector.Record) (store.UpsertResult, error)
	Query(ctx context.Context, req store.QueryRequest) ([]vector.Hit, error)
	DeleteByIDs(ctx context.Context, ids []string) (store.DeleteResult, error)
	Status(ctx context.Context) (store.Status, error)
}

// Server is the HTTP server for the Hondana API.
type Server struct {
	retriever Retriever
	store     VectorStore
	config    *config.ServerConfig
	seedPath  string
	logger    *zap.Logger
	limiter   *RateLimiter
	server    *http.Server
}

// NewServer creates a server with the given dependencies. seedPath is the catalogue
// used by reindex requests that do not name one.
func NewServer(retriever Retriever, st VectorStore, cfg *config.ServerConfig, seedPath string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		retriever: retriever,
		store:     st,
		config:    cfg,
		seedPath:  seedPath,
		logger:    logger,
		limiter:   NewRateLimiter(cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.Burst),
	}
}

// Handler returns the router with all middleware and routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(s.limiter.Middleware(s.respondError))

	r.Get("/health", s.handleHealth)
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/search", s.handleSearch)
		r.Post("/reindex", s.handleReindex)
		r.Get("/status", s.handleStatus)
		r.Post("/vectors", s.handleUpsert)
		r.Post("/vectors/query", s.handleQuery)
		r.Post("/vectors/delete", s.handleDelete)
	})
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
