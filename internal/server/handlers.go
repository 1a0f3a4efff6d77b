package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/hyperjump/hondana/internal/models"
	"github.com/hyperjump/hondana/internal/retrieval"
	"github.com/hyperjump/hondana/internal/store"
	"go.uber.org/zap"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, models.HealthResponse{OK: true, Service: serviceName, Time: time.Now().UTC()})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req models.SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.logger.Debug("search request", zap.String("query", req.Query), zap.Int("top_k", req.TopK))
	hits, err := s.retriever.Search(r.Context(), req.Query, req.TopK, req.Filter)
	if err != nil {
		s.logger.Error("search failed", zap.Error(err))
		s.respondStoreError(w, err, "failed to search")
		return
	}
	s.respondJSON(w, http.StatusOK, models.SearchResponse{OK: true, Results: hits})
}

func (s *Server) handleReindex(w http.ResponseWriter, r *http.Request) {
	var req models.ReindexRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	seed := req.SeedPath
	if seed == "" {
		seed = s.seedPath
	}
	s.logger.Debug("reindex request", zap.String("seed_path", seed))
	res, err := s.retriever.Reindex(r.Context(), seed)
	if err != nil {
		if errors.Is(err, retrieval.ErrEmptyCatalogue) {
			s.respondError(w, http.StatusBadRequest, "no books to index")
			return
		}
		s.logger.Error("reindex failed", zap.Error(err))
		s.respondStoreError(w, err, "failed to reindex")
		return
	}
	s.respondJSON(w, http.StatusOK, models.ReindexResponse{OK: true, Indexed: res.Indexed, Skipped: res.Skipped})
}

func (s *Server) handleUpsert(w http.ResponseWriter, r *http.Request) {
	var req models.UpsertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := s.store.UpsertMany(r.Context(), req.Vectors)
	if err != nil {
		s.logger.Error("upsert failed", zap.Error(err))
		s.respondStoreError(w, err, "failed to upsert vectors")
		return
	}
	s.respondJSON(w, http.StatusOK, models.UpsertResponse{Upserted: res.Upserted})
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req models.QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	hits, err := s.store.Query(r.Context(), store.QueryRequest{Vector: req.Vector, TopK: req.TopK, Filter: req.Filter})
	if err != nil {
		s.logger.Error("query failed", zap.Error(err))
		s.respondStoreError(w, err, "failed to query vectors")
		return
	}
	s.respondJSON(w, http.StatusOK, models.QueryResponse{Results: hits})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	var req models.DeleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	res, err := s.store.DeleteByIDs(r.Context(), req.IDs)
	if err != nil {
		s.logger.Error("delete failed", zap.Error(err))
		s.respondStoreError(w, err, "failed to delete vectors")
		return
	}
	s.respondJSON(w, http.StatusOK, models.DeleteResponse{Deleted: res.Deleted})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.store.Status(r.Context())
	if err != nil {
		s.logger.Error("status failed", zap.Error(err))
		s.respondStoreError(w, err, "failed to read status")
		return
	}
	s.respondJSON(w, http.StatusOK, st)
}

func (s *Server) respondStoreError(w http.ResponseWriter, err error, message string) {
	switch {
	case errors.Is(err, store.ErrNotInitialized):
		s.respondError(w, http.StatusServiceUnavailable, "vector store not initialized")
	case errors.Is(err, retrieval.ErrEmptyQuery):
		s.respondError(w, http.StatusBadRequest, "query (string) is required")
	default:
		s.respondError(w, http.StatusInternalServerError, message)
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
