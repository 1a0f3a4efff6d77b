package store_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/hyperjump/hondana/internal/config"
	"github.com/hyperjump/hondana/internal/embedding"
	"github.com/hyperjump/hondana/internal/store"
	"github.com/hyperjump/hondana/internal/vector"
	"github.com/hyperjump/hondana/internal/vector/vectortest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func localConfig(t *testing.T) config.VectorDBConfig {
	t.Helper()
	return config.VectorDBConfig{
		Driver:    "local",
		Namespace: "books",
		LocalPath: filepath.Join(t.TempDir(), "books_vectors.json"),
	}
}

func pineconeConfig(t *testing.T) config.VectorDBConfig {
	t.Helper()
	cfg := localConfig(t)
	cfg.Driver = "pinecone"
	cfg.Pinecone = config.PineconeConfig{APIKey: "pk-test", Index: "hunter-books"}
	return cfg
}

func fakeDialer(conn *vectortest.FakeConn) store.Dialer {
	return func(_ context.Context, opts vector.PineconeOptions) (*vector.RemoteIndex, error) {
		conn.Namespace = opts.Namespace
		return vector.NewRemoteIndex(conn, vector.WithNamespace(opts.Namespace)), nil
	}
}

func ones(n int) []float32 {
	v := make([]float32, n)
	for i := range v {
		v[i] = 1
	}
	return v
}

func TestStore_NotInitialized(t *testing.T) {
	ctx := context.Background()
	s := store.New(localConfig(t))

	_, err := s.UpsertMany(ctx, []vector.Record{{ID: "a", Vector: []float32{1}}})
	assert.ErrorIs(t, err, store.ErrNotInitialized)
	_, err = s.Query(ctx, store.QueryRequest{Vector: []float32{1}})
	assert.ErrorIs(t, err, store.ErrNotInitialized)
	_, err = s.DeleteByIDs(ctx, []string{"a"})
	assert.ErrorIs(t, err, store.ErrNotInitialized)
	assert.ErrorIs(t, s.Clear(ctx), store.ErrNotInitialized)
	assert.ErrorIs(t, s.Reload(ctx), store.ErrNotInitialized)
	_, err = s.Status(ctx)
	assert.ErrorIs(t, err, store.ErrNotInitialized)
	assert.Equal(t, vector.Driver(""), s.Driver())
	assert.NoError(t, s.Close())
}

func TestStore_LocalRoundTrip(t *testing.T) {
	ctx := context.Background()
	cfg := localConfig(t)
	s := store.New(cfg)
	require.NoError(t, s.Init(ctx))
	assert.Equal(t, vector.DriverLocal, s.Driver())

	res, err := s.UpsertMany(ctx, []vector.Record{
		{ID: "a", Vector: []float32{1, 0, 0}, Metadata: map[string]any{"title": "A"}},
		{ID: "b", Vector: []float32{0, 1, 0}, Metadata: map[string]any{"title": "B"}},
		{ID: "c", Vector: []float32{1, 1, 0}, Metadata: map[string]any{"title": "C"}},
		{ID: "", Vector: []float32{1, 1, 1}},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Upserted)
	assert.FileExists(t, cfg.LocalPath)

	hits, err := s.Query(ctx, store.QueryRequest{Vector: []float32{0.9, 0.1, 0}, TopK: 2})
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "a", hits[0].ID)
	assert.InDelta(t, 0.9939, hits[0].Score, 1e-3)
	assert.Equal(t, "c", hits[1].ID)
	assert.InDelta(t, 0.7809, hits[1].Score, 1e-3)

	// A second store over the same snapshot sees the persisted records.
	s2 := store.New(cfg)
	require.NoError(t, s2.Init(ctx))
	st, err := s2.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, st.Count)
	assert.Equal(t, 3, st.Dimension)
	assert.Equal(t, cfg.LocalPath, st.SnapshotPath)
	assert.Positive(t, st.SnapshotBytes)
	assert.False(t, st.FellBack)

	del, err := s2.DeleteByIDs(ctx, []string{"a", "missing"})
	require.NoError(t, err)
	assert.Equal(t, 1, del.Deleted)

	require.NoError(t, s.Reload(ctx))
	hits, err = s.Query(ctx, store.QueryRequest{Vector: []float32{1, 0, 0}})
	require.NoError(t, err)
	for _, h := range hits {
		assert.NotEqual(t, "a", h.ID)
	}
}

func TestStore_QueryFilter(t *testing.T) {
	ctx := context.Background()
	s := store.New(localConfig(t))
	require.NoError(t, s.Init(ctx))
	_, err := s.UpsertMany(ctx, []vector.Record{
		{ID: "a", Vector: []float32{1, 0}, Metadata: map[string]any{"genre": "fantasy"}},
		{ID: "b", Vector: []float32{1, 0.2}, Metadata: map[string]any{"genre": "sci-fi"}},
	})
	require.NoError(t, err)

	hits, err := s.Query(ctx, store.QueryRequest{Vector: []float32{1, 0}, Filter: vector.Filter{"genre": "sci-fi"}})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "b", hits[0].ID)

	_, err = s.Query(ctx, store.QueryRequest{Vector: []float32{1, 0}, Filter: vector.Filter{"genre": map[string]any{"$regex": "sci"}}})
	assert.Error(t, err)
}

func TestStore_TopKDefaultsAndClamp(t *testing.T) {
	ctx := context.Background()
	cfg := localConfig(t)
	cfg.MaxTopK = 8
	s := store.New(cfg)
	require.NoError(t, s.Init(ctx))

	records := make([]vector.Record, 20)
	for i := range records {
		records[i] = vector.Record{ID: fmt.Sprintf("r%02d", i), Vector: []float32{1, float32(i)}}
	}
	_, err := s.UpsertMany(ctx, records)
	require.NoError(t, err)

	hits, err := s.Query(ctx, store.QueryRequest{Vector: []float32{1, 0}})
	require.NoError(t, err)
	assert.Len(t, hits, store.DefaultTopK)

	hits, err = s.Query(ctx, store.QueryRequest{Vector: []float32{1, 0}, TopK: 100})
	require.NoError(t, err)
	assert.Len(t, hits, 8)
	for i := 1; i < len(hits); i++ {
		assert.GreaterOrEqual(t, hits[i-1].Score, hits[i].Score)
	}
}

func TestStore_EmptyDeleteTouchesNothing(t *testing.T) {
	ctx := context.Background()
	cfg := localConfig(t)
	s := store.New(cfg)
	require.NoError(t, s.Init(ctx))
	res, err := s.DeleteByIDs(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Deleted)
	assert.NoFileExists(t, cfg.LocalPath)

	conn := vectortest.NewFakeConn(2)
	rs := store.New(pineconeConfig(t), store.WithDialer(fakeDialer(conn)))
	require.NoError(t, rs.Init(ctx))
	res, err = rs.DeleteByIDs(ctx, []string{})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Deleted)
	assert.Empty(t, conn.Deletes)
}

func TestStore_MalformedSnapshotFailsInit(t *testing.T) {
	cfg := localConfig(t)
	require.NoError(t, os.WriteFile(cfg.LocalPath, []byte(`{"vectors": [`), 0644))
	s := store.New(cfg)
	err := s.Init(context.Background())
	assert.Error(t, err)
	assert.Equal(t, vector.Driver(""), s.Driver())

	data, readErr := os.ReadFile(cfg.LocalPath)
	require.NoError(t, readErr)
	assert.Equal(t, `{"vectors": [`, string(data), "snapshot must not be overwritten")
}

func TestStore_Clear(t *testing.T) {
	ctx := context.Background()
	cfg := localConfig(t)
	s := store.New(cfg)
	require.NoError(t, s.Init(ctx))
	_, err := s.UpsertMany(ctx, []vector.Record{{ID: "a", Vector: []float32{1}}})
	require.NoError(t, err)
	require.NoError(t, s.Clear(ctx))

	s2 := store.New(cfg)
	require.NoError(t, s2.Init(ctx))
	st, err := s2.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, st.Count)
}

func TestStore_PineconeWithoutCredentialsFallsBack(t *testing.T) {
	ctx := context.Background()
	core, logs := observer.New(zapcore.ErrorLevel)
	cfg := pineconeConfig(t)
	cfg.Pinecone.APIKey = ""
	dialed := false
	s := store.New(cfg, store.WithLogger(zap.New(core)), store.WithDialer(func(context.Context, vector.PineconeOptions) (*vector.RemoteIndex, error) {
		dialed = true
		return nil, errors.New("unexpected dial")
	}))

	require.NoError(t, s.Init(ctx))
	assert.False(t, dialed)
	assert.Equal(t, vector.DriverLocal, s.Driver())
	assert.Equal(t, 1, logs.FilterMessage("pinecone unavailable, falling back to local store").Len())

	res, err := s.UpsertMany(ctx, []vector.Record{{ID: "x", Vector: []float32{1, 2}}})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Upserted)
	assert.FileExists(t, cfg.LocalPath)

	st, err := s.Status(ctx)
	require.NoError(t, err)
	assert.True(t, st.FellBack)
	assert.Equal(t, "local", st.Driver)
}

func TestStore_PineconeUnreachableFallsBack(t *testing.T) {
	ctx := context.Background()

	s := store.New(pineconeConfig(t), store.WithDialer(func(context.Context, vector.PineconeOptions) (*vector.RemoteIndex, error) {
		return nil, errors.New("dial tcp: connection refused")
	}))
	require.NoError(t, s.Init(ctx))
	assert.Equal(t, vector.DriverLocal, s.Driver())

	conn := vectortest.NewFakeConn(2)
	conn.StatsErr = errors.New("401 unauthorized")
	s = store.New(pineconeConfig(t), store.WithDialer(fakeDialer(conn)))
	require.NoError(t, s.Init(ctx))
	assert.Equal(t, vector.DriverLocal, s.Driver())
	assert.True(t, conn.Closed)
}

func TestStore_UnknownDriverUsesLocal(t *testing.T) {
	cfg := localConfig(t)
	cfg.Driver = "qdrant"
	s := store.New(cfg)
	require.NoError(t, s.Init(context.Background()))
	assert.Equal(t, vector.DriverLocal, s.Driver())
}

func TestStore_DimensionMismatchResizes(t *testing.T) {
	ctx := context.Background()
	core, logs := observer.New(zapcore.WarnLevel)
	conn := vectortest.NewFakeConn(512)
	conn.StatsDimension = true
	s := store.New(pineconeConfig(t),
		store.WithLogger(zap.New(core)),
		store.WithEmbedder(embedding.NewMockEmbedder(768)),
		store.WithDialer(fakeDialer(conn)),
	)
	require.NoError(t, s.Init(ctx))
	assert.Equal(t, vector.DriverPinecone, s.Driver())

	res, err := s.UpsertMany(ctx, []vector.Record{
		{ID: "a", Vector: ones(768), Metadata: map[string]any{"title": "A"}},
		{ID: "b", Vector: ones(300)},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Upserted)
	require.Len(t, conn.Upserts, 1)
	for _, v := range conn.Upserts[0] {
		assert.Len(t, *v.Values, 512)
	}
	assert.Equal(t, float32(0), (*conn.Upserts[0][1].Values)[300], "short vectors are zero padded")

	hits, err := s.Query(ctx, store.QueryRequest{Vector: ones(768), TopK: 1})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "a", hits[0].ID)
	assert.Len(t, conn.Queries[len(conn.Queries)-1].Vector, 512)

	assert.Equal(t, 1, logs.FilterMessage("embedding dimension differs from index dimension, vectors will be resized").Len())

	st, err := s.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 512, st.Dimension)
	assert.Equal(t, 768, st.EmbeddingDimension)
	assert.True(t, st.Normalizing)
	assert.Equal(t, 2, st.Count)
}

func TestStore_MatchingDimensionsPassThrough(t *testing.T) {
	ctx := context.Background()
	conn := vectortest.NewFakeConn(4)
	cfg := pineconeConfig(t)
	cfg.Dimension = 4
	s := store.New(cfg, store.WithEmbedder(embedding.NewMockEmbedder(4)), store.WithDialer(fakeDialer(conn)))
	require.NoError(t, s.Init(ctx))
	assert.Empty(t, conn.Queries, "explicit dimension needs no probe")

	_, err := s.UpsertMany(ctx, []vector.Record{{ID: "a", Vector: ones(3)}})
	assert.Error(t, err, "vectors are sent unchanged when lengths agree")

	st, err := s.Status(ctx)
	require.NoError(t, err)
	assert.False(t, st.Normalizing)
}

func TestStore_RemoteQueryErrorPropagates(t *testing.T) {
	ctx := context.Background()
	conn := vectortest.NewFakeConn(2)
	s := store.New(pineconeConfig(t), store.WithDialer(fakeDialer(conn)))
	require.NoError(t, s.Init(ctx))

	native := errors.New("503 service unavailable")
	conn.QueryErr = native
	hits, err := s.Query(ctx, store.QueryRequest{Vector: []float32{1, 0}})
	assert.Nil(t, hits)
	require.Error(t, err)
	assert.ErrorIs(t, err, native)
	var qe *store.QueryError
	require.ErrorAs(t, err, &qe)
	assert.Equal(t, "query", qe.Op)
	assert.Equal(t, vector.DriverPinecone, s.Driver(), "query failures never switch backends")
}

func TestStore_ReinitClosesPreviousBackend(t *testing.T) {
	ctx := context.Background()
	var conns []*vectortest.FakeConn
	dial := func(_ context.Context, opts vector.PineconeOptions) (*vector.RemoteIndex, error) {
		c := vectortest.NewFakeConn(2)
		conns = append(conns, c)
		return vector.NewRemoteIndex(c), nil
	}
	s := store.New(pineconeConfig(t), store.WithDialer(dial))
	require.NoError(t, s.Init(ctx))
	require.NoError(t, s.Init(ctx))
	require.Len(t, conns, 2)
	assert.True(t, conns[0].Closed)
	assert.False(t, conns[1].Closed)

	require.NoError(t, s.Close())
	assert.True(t, conns[1].Closed)
	_, err := s.Query(ctx, store.QueryRequest{Vector: []float32{1, 0}})
	assert.ErrorIs(t, err, store.ErrNotInitialized)
}

func TestConfigError(t *testing.T) {
	err := error(&store.ConfigError{Field: "vector_db.pinecone.api_key", Err: vector.ErrMissingCredentials})
	assert.ErrorIs(t, err, vector.ErrMissingCredentials)
	assert.Contains(t, err.Error(), "vector_db.pinecone.api_key")
}

func TestStore_FallbackIgnoresRemoteDimension(t *testing.T) {
	ctx := context.Background()
	cfg := pineconeConfig(t)
	cfg.Pinecone.APIKey = ""
	cfg.Dimension = 512

	s := store.New(cfg, store.WithEmbedder(embedding.NewMockEmbedder(768)))
	require.NoError(t, s.Init(ctx))
	require.Equal(t, vector.DriverLocal, s.Driver())

	res, err := s.UpsertMany(ctx, []vector.Record{{ID: "a", Vector: ones(768)}})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Upserted)

	st, err := s.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 768, st.Dimension)
	assert.True(t, st.FellBack)
}

func TestStore_LocalPinsConfiguredDimension(t *testing.T) {
	ctx := context.Background()
	cfg := localConfig(t)
	cfg.Dimension = 3
	s := store.New(cfg)
	require.NoError(t, s.Init(ctx))

	res, err := s.UpsertMany(ctx, []vector.Record{{ID: "a", Vector: ones(4)}, {ID: "b", Vector: ones(3)}})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Upserted)
}

func TestStore_LoadDropsMismatchedRecords(t *testing.T) {
	cfg := localConfig(t)
	snap := `{"vectors": [{"id": "a", "vector": [1, 0]}, {"id": "b", "vector": [1, 0, 0]}]}`
	require.NoError(t, os.WriteFile(cfg.LocalPath, []byte(snap), 0600))

	core, logs := observer.New(zapcore.WarnLevel)
	s := store.New(cfg, store.WithLogger(zap.New(core)))
	require.NoError(t, s.Init(context.Background()))

	st, err := s.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, st.Count)
	entries := logs.FilterMessage("dropped snapshot records without an id or with a mismatched length").All()
	require.Len(t, entries, 1)
	assert.EqualValues(t, 1, entries[0].ContextMap()["skipped"])
}

func TestStore_ConcurrentUpsertsPersistEverything(t *testing.T) {
	ctx := context.Background()
	cfg := localConfig(t)
	s := store.New(cfg)
	require.NoError(t, s.Init(ctx))

	const writers = 16
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.UpsertMany(ctx, []vector.Record{{ID: fmt.Sprintf("w%02d", i), Vector: []float32{1, float32(i)}}})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	reopened := store.New(cfg)
	require.NoError(t, reopened.Init(ctx))
	st, err := reopened.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, writers, st.Count)
}

func TestStore_ReplaceLocal(t *testing.T) {
	ctx := context.Background()
	cfg := localConfig(t)
	cfg.Dimension = 2
	s := store.New(cfg)
	require.NoError(t, s.Init(ctx))
	_, err := s.UpsertMany(ctx, []vector.Record{{ID: "old", Vector: []float32{1, 0}}})
	require.NoError(t, err)
	before, err := os.ReadFile(cfg.LocalPath)
	require.NoError(t, err)

	_, err = s.Replace(ctx, []vector.Record{{ID: "x", Vector: []float32{1, 0, 0}}})
	require.ErrorIs(t, err, vector.ErrRecordRejected)
	after, err := os.ReadFile(cfg.LocalPath)
	require.NoError(t, err)
	assert.Equal(t, string(before), string(after), "a rejected replace must not touch the snapshot")

	res, err := s.Replace(ctx, []vector.Record{
		{ID: "x", Vector: []float32{1, 0}},
		{ID: "y", Vector: []float32{0, 1}},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Upserted)

	reopened := store.New(cfg)
	require.NoError(t, reopened.Init(ctx))
	hits, err := reopened.Query(ctx, store.QueryRequest{Vector: []float32{1, 0}, TopK: 10})
	require.NoError(t, err)
	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.ID
	}
	assert.ElementsMatch(t, []string{"x", "y"}, ids)
}

func TestStore_ReplaceRemote(t *testing.T) {
	ctx := context.Background()
	conn := vectortest.NewFakeConn(2)
	cfg := pineconeConfig(t)
	cfg.Dimension = 2
	s := store.New(cfg, store.WithDialer(fakeDialer(conn)))
	require.NoError(t, s.Init(ctx))
	_, err := s.UpsertMany(ctx, []vector.Record{{ID: "old", Vector: []float32{1, 0}}})
	require.NoError(t, err)

	_, err = s.Replace(ctx, []vector.Record{{ID: "x", Vector: []float32{1, 0, 0}}})
	require.ErrorIs(t, err, vector.ErrRecordRejected)
	assert.Equal(t, 0, conn.Cleared, "validation happens before the namespace is cleared")
	assert.Equal(t, 1, conn.Len())

	res, err := s.Replace(ctx, []vector.Record{{ID: "x", Vector: []float32{1, 0}}, {ID: "y", Vector: []float32{0, 1}}})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Upserted)
	assert.Equal(t, 1, conn.Cleared)
	assert.Equal(t, 2, conn.Len())
}
