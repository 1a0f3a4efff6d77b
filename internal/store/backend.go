package store

import (
	"context"
	"fmt"

	"github.com/hyperjump/hondana/internal/storage"
	"github.com/hyperjump/hondana/internal/vector"
)

type backend interface {
	driver() vector.Driver
	upsert(ctx context.Context, records []vector.Record) (int, error)
	replace(ctx context.Context, records []vector.Record) (int, error)
	query(ctx context.Context, vec []float32, topK int, filter vector.Filter) ([]vector.Hit, error)
	delete(ctx context.Context, ids []string) (int, error)
	clear(ctx context.Context) error
	reload(ctx context.Context) error
	status(ctx context.Context) (Status, error)
	close() error
}

// localBackend persists the whole snapshot after each mutation.
type localBackend struct {
	idx *vector.LocalIndex
}

func (b *localBackend) driver() vector.Driver { return vector.DriverLocal }

func (b *localBackend) upsert(_ context.Context, records []vector.Record) (int, error) {
	n := b.idx.UpsertMany(records)
	if n == 0 {
		return 0, nil
	}
	if err := b.idx.Save(); err != nil {
		return n, fmt.Errorf("persist local vector store: %w", err)
	}
	return n, nil
}

func (b *localBackend) replace(_ context.Context, records []vector.Record) (int, error) {
	n, err := b.idx.Replace(records)
	if err != nil {
		return 0, err
	}
	if err := b.idx.Save(); err != nil {
		return n, fmt.Errorf("persist local vector store: %w", err)
	}
	return n, nil
}

func (b *localBackend) query(_ context.Context, vec []float32, topK int, filter vector.Filter) ([]vector.Hit, error) {
	return b.idx.Search(vec, topK, filter.Predicate()), nil
}

func (b *localBackend) delete(_ context.Context, ids []string) (int, error) {
	n := b.idx.DeleteByIDs(ids)
	if n == 0 {
		return 0, nil
	}
	if err := b.idx.Save(); err != nil {
		return n, fmt.Errorf("persist local vector store: %w", err)
	}
	return n, nil
}

func (b *localBackend) clear(_ context.Context) error {
	b.idx.Clear()
	if err := b.idx.Save(); err != nil {
		return fmt.Errorf("persist local vector store: %w", err)
	}
	return nil
}

func (b *localBackend) reload(_ context.Context) error {
	if err := b.idx.Load(); err != nil {
		return fmt.Errorf("reload local vector store: %w", err)
	}
	return nil
}

func (b *localBackend) status(_ context.Context) (Status, error) {
	size, err := storage.SnapshotBytes(b.idx.Path())
	if err != nil {
		return Status{}, fmt.Errorf("stat local snapshot: %w", err)
	}
	return Status{
		Dimension:     b.idx.Dimension(),
		Count:         b.idx.Len(),
		SnapshotPath:  b.idx.Path(),
		SnapshotBytes: size,
	}, nil
}

func (b *localBackend) close() error { return nil }

// remoteBackend resizes vectors to remoteDim when fit is set.
type remoteBackend struct {
	idx       *vector.RemoteIndex
	remoteDim int
	embedDim  int
	fit       bool
}

func (b *remoteBackend) driver() vector.Driver { return vector.DriverPinecone }

func (b *remoteBackend) resize(v []float32) []float32 {
	if !b.fit {
		return v
	}
	return vector.Fit(v, b.remoteDim)
}

func (b *remoteBackend) upsert(ctx context.Context, records []vector.Record) (int, error) {
	if b.fit {
		resized := make([]vector.Record, len(records))
		for i, rec := range records {
			resized[i] = vector.Record{ID: rec.ID, Vector: b.resize(rec.Vector), Metadata: rec.Metadata}
		}
		records = resized
	}
	n, err := b.idx.UpsertMany(ctx, records)
	if err != nil {
		return 0, &QueryError{Op: "upsert", Err: err}
	}
	return n, nil
}

func (b *remoteBackend) replace(ctx context.Context, records []vector.Record) (int, error) {
	for i, rec := range records {
		switch {
		case rec.ID == "" || len(rec.Vector) == 0:
			return 0, fmt.Errorf("%w: record %d has no id or vector", vector.ErrRecordRejected, i)
		case !b.fit && b.remoteDim > 0 && len(rec.Vector) != b.remoteDim:
			return 0, fmt.Errorf("%w: %s has %d values, index expects %d",
				vector.ErrRecordRejected, rec.ID, len(rec.Vector), b.remoteDim)
		}
	}
	if err := b.clear(ctx); err != nil {
		return 0, err
	}
	n, err := b.upsert(ctx, records)
	if err != nil {
		return n, err
	}
	if n < len(records) {
		return n, &QueryError{Op: "replace", Err: fmt.Errorf("upserted %d of %d records", n, len(records))}
	}
	return n, nil
}

func (b *remoteBackend) query(ctx context.Context, vec []float32, topK int, filter vector.Filter) ([]vector.Hit, error) {
	hits, err := b.idx.Search(ctx, b.resize(vec), topK, filter)
	if err != nil {
		return nil, &QueryError{Op: "query", Err: err}
	}
	return hits, nil
}

func (b *remoteBackend) delete(ctx context.Context, ids []string) (int, error) {
	n, err := b.idx.DeleteByIDs(ctx, ids)
	if err != nil {
		return 0, &QueryError{Op: "delete", Err: err}
	}
	return n, nil
}

func (b *remoteBackend) clear(ctx context.Context) error {
	if err := b.idx.Clear(ctx); err != nil {
		return &QueryError{Op: "clear", Err: err}
	}
	return nil
}

func (b *remoteBackend) reload(context.Context) error { return nil }

func (b *remoteBackend) status(ctx context.Context) (Status, error) {
	st := Status{
		Dimension:          b.remoteDim,
		EmbeddingDimension: b.embedDim,
		Normalizing:        b.fit,
	}
	n, err := b.idx.Count(ctx)
	if err != nil {
		return st, &QueryError{Op: "status", Err: err}
	}
	st.Count = n
	return st, nil
}

func (b *remoteBackend) close() error { return b.idx.Close() }
