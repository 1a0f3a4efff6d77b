package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/hyperjump/hondana/internal/config"
	"github.com/hyperjump/hondana/internal/embedding"
	"github.com/hyperjump/hondana/internal/retrieval"
	"github.com/hyperjump/hondana/internal/store"
	"github.com/hyperjump/hondana/internal/vector"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const seedJSON = `[
  {"id": "earthsea", "title": "A Wizard of Earthsea", "author": "Ursula K. Le Guin", "genre": "fantasy", "summary": "A young mage confronts his shadow."},
  {"id": "neuromancer", "title": "Neuromancer", "author": "William Gibson", "genre": "sci-fi", "summary": "A hacker takes one last job."}
]`

func newTestServer(t *testing.T, rl config.RateLimitConfig) (*Server, string) {
	t.Helper()
	dir := t.TempDir()
	seed := filepath.Join(dir, "seed_books.json")
	require.NoError(t, os.WriteFile(seed, []byte(seedJSON), 0644))

	st := store.New(config.VectorDBConfig{Driver: "local", Namespace: "books", LocalPath: filepath.Join(dir, "books_vectors.json")})
	require.NoError(t, st.Init(context.Background()))
	svc := retrieval.NewService(st, embedding.NewMockEmbedder(16))
	return NewServer(svc, st, &config.ServerConfig{Host: "localhost", Port: 5000, RateLimit: rl}, seed, nil), seed
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, path, nil)
	} else {
		r = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		r.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(w.Body).Decode(v))
}

func TestHandleHealth(t *testing.T) {
	srv, _ := newTestServer(t, config.RateLimitConfig{})
	w := do(t, srv.Handler(), http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)
	var out map[string]any
	decode(t, w, &out)
	assert.Equal(t, true, out["ok"])
	assert.Equal(t, "hondana", out["service"])
	assert.NotEmpty(t, out["time"])
}

func TestReindexAndSearch(t *testing.T) {
	srv, _ := newTestServer(t, config.RateLimitConfig{})
	h := srv.Handler()

	w := do(t, h, http.MethodPost, "/api/v1/reindex", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var re struct {
		OK      bool `json:"ok"`
		Indexed int  `json:"indexed"`
	}
	decode(t, w, &re)
	assert.True(t, re.OK)
	assert.Equal(t, 2, re.Indexed)

	query := retrieval.BookText(map[string]any{"title": "Neuromancer", "author": "William Gibson", "genre": "sci-fi", "summary": "A hacker takes one last job."})
	body, _ := json.Marshal(map[string]any{"query": query, "top_k": 1})
	w = do(t, h, http.MethodPost, "/api/v1/search", string(body))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var out struct {
		OK      bool         `json:"ok"`
		Results []vector.Hit `json:"results"`
	}
	decode(t, w, &out)
	require.Len(t, out.Results, 1)
	assert.Equal(t, "neuromancer", out.Results[0].ID)
	assert.Equal(t, "William Gibson", out.Results[0].Metadata["author"])

	w = do(t, h, http.MethodGet, "/api/v1/status", "")
	require.Equal(t, http.StatusOK, w.Code)
	var st store.Status
	decode(t, w, &st)
	assert.Equal(t, "local", st.Driver)
	assert.Equal(t, 2, st.Count)
	assert.Equal(t, 16, st.Dimension)
}

func TestReindex_SeedOverrideAndEmpty(t *testing.T) {
	srv, seed := newTestServer(t, config.RateLimitConfig{})
	empty := filepath.Join(filepath.Dir(seed), "empty.json")
	require.NoError(t, os.WriteFile(empty, []byte("[]"), 0644))

	body, _ := json.Marshal(map[string]string{"seed_path": empty})
	w := do(t, srv.Handler(), http.MethodPost, "/api/v1/reindex", string(body))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, srv.Handler(), http.MethodPost, "/api/v1/reindex", "{bad")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestVectorEndpoints(t *testing.T) {
	srv, _ := newTestServer(t, config.RateLimitConfig{})
	h := srv.Handler()

	w := do(t, h, http.MethodPost, "/api/v1/vectors", `{"vectors": [
		{"id": "a", "vector": [1, 0, 0], "metadata": {"genre": "fantasy"}},
		{"id": "b", "vector": [0, 1, 0], "metadata": {"genre": "sci-fi"}},
		{"id": "c", "vector": [1, 1, 0], "metadata": {"genre": "sci-fi"}},
		{"id": "", "vector": [1, 1, 1]}
	]}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var up map[string]int
	decode(t, w, &up)
	assert.Equal(t, 3, up["upserted"])

	w = do(t, h, http.MethodPost, "/api/v1/vectors/query", `{"vector": [0.9, 0.1, 0], "top_k": 2}`)
	require.Equal(t, http.StatusOK, w.Code)
	var q struct {
		Results []vector.Hit `json:"results"`
	}
	decode(t, w, &q)
	require.Len(t, q.Results, 2)
	assert.Equal(t, "a", q.Results[0].ID)
	assert.Equal(t, "c", q.Results[1].ID)

	w = do(t, h, http.MethodPost, "/api/v1/vectors/query", `{"vector": [0.9, 0.1, 0], "filter": {"genre": "sci-fi"}}`)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &q)
	require.Len(t, q.Results, 2)
	assert.Equal(t, "c", q.Results[0].ID)

	w = do(t, h, http.MethodPost, "/api/v1/vectors/delete", `{"ids": ["a", "zzz"]}`)
	require.Equal(t, http.StatusOK, w.Code)
	var del map[string]int
	decode(t, w, &del)
	assert.Equal(t, 1, del["deleted"])
}

func TestBadRequests(t *testing.T) {
	srv, _ := newTestServer(t, config.RateLimitConfig{})
	h := srv.Handler()
	tests := []struct {
		path string
		body string
	}{
		{"/api/v1/search", `not json`},
		{"/api/v1/search", `{"query": "  "}`},
		{"/api/v1/search", `{"query": "x", "filter": {"genre": {"$like": "s"}}}`},
		{"/api/v1/vectors", `{"vectors": []}`},
		{"/api/v1/vectors/query", `{"vector": []}`},
		{"/api/v1/vectors/query", `{"vector": [1], "top_k": -1}`},
		{"/api/v1/vectors/delete", `{"ids": "a"}`},
	}
	for _, tt := range tests {
		w := do(t, h, http.MethodPost, tt.path, tt.body)
		if w.Code != http.StatusBadRequest {
			t.Errorf("POST %s %s: status %d, want 400", tt.path, tt.body, w.Code)
			continue
		}
		var out map[string]string
		decode(t, w, &out)
		assert.NotEmpty(t, out["error"])
	}
}

type failingStore struct {
	err error
}

func (f failingStore) UpsertMany(context.Context, []vector.Record) (store.UpsertResult, error) {
	return store.UpsertResult{}, f.err
}

func (f failingStore) Query(context.Context, store.QueryRequest) ([]vector.Hit, error) {
	return nil, f.err
}

func (f failingStore) DeleteByIDs(context.Context, []string) (store.DeleteResult, error) {
	return store.DeleteResult{}, f.err
}

func (f failingStore) Status(context.Context) (store.Status, error) {
	return store.Status{}, f.err
}

func TestStoreFailuresAreNotEmptySuccess(t *testing.T) {
	qe := &store.QueryError{Op: "query", Err: errors.New("503 service unavailable")}
	svc := retrieval.NewService(nil, embedding.NewMockEmbedder(4))
	srv := NewServer(svc, failingStore{err: qe}, &config.ServerConfig{}, "", nil)
	h := srv.Handler()

	w := do(t, h, http.MethodPost, "/api/v1/vectors/query", `{"vector": [1, 0]}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	var out map[string]any
	decode(t, w, &out)
	assert.NotContains(t, out, "results")

	w = do(t, h, http.MethodGet, "/api/v1/status", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	srv = NewServer(svc, failingStore{err: store.ErrNotInitialized}, &config.ServerConfig{}, "", nil)
	w = do(t, srv.Handler(), http.MethodPost, "/api/v1/vectors/delete", `{"ids": ["a"]}`)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestRateLimit(t *testing.T) {
	srv, _ := newTestServer(t, config.RateLimitConfig{RequestsPerMinute: 1, Burst: 3})
	h := srv.Handler()
	for i := 0; i < 3; i++ {
		w := do(t, h, http.MethodGet, "/health", "")
		require.Equal(t, http.StatusOK, w.Code, "request %d", i)
	}
	w := do(t, h, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	var out map[string]string
	decode(t, w, &out)
	assert.Equal(t, "too many requests", out["error"])

	// Another client has its own budget.
	r := httptest.NewRequest(http.MethodGet, "/health", nil)
	r.Header.Set("X-Real-IP", "10.0.0.9")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	assert.Equal(t, http.StatusOK, rec.Code)
}
