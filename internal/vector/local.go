package vector

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// snapshot is the on-disk layout of a local collection.
type snapshot struct {
	Vectors []Record `json:"vectors"`
}

// LocalIndex is a file-backed collection searched by brute-force cosine similarity.
// It is meant for small collections; every search scores every record.
type LocalIndex struct {
	path        string
	fixedDim    int
	dimension   int
	records     []Record
	positions   map[string]int
	loadSkipped int
	mu          sync.RWMutex
	// saveMu serializes Save from encode through rename so the last rename
	// always carries the newest state.
	saveMu sync.Mutex
}

// LocalOption configures a LocalIndex.
type LocalOption func(*LocalIndex)

// WithDimension pins the collection dimension instead of taking it from the first record.
func WithDimension(dim int) LocalOption {
	return func(l *LocalIndex) {
		if dim > 0 {
			l.fixedDim = dim
			l.dimension = dim
		}
	}
}

// NewLocalIndex creates an empty index persisted at path. Call Load to read an existing snapshot.
func NewLocalIndex(path string, opts ...LocalOption) *LocalIndex {
	l := &LocalIndex{
		path:      path,
		positions: make(map[string]int),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Path returns the snapshot path.
func (l *LocalIndex) Path() string {
	return l.path
}

// Type returns the driver identifier.
func (l *LocalIndex) Type() string {
	return string(DriverLocal)
}

// Load replaces the in-memory collection with the snapshot on disk.
// A missing or empty file yields an empty collection. Records without an id or
// whose length differs from the collection dimension are dropped and counted in
// LoadSkipped.
func (l *LocalIndex) Load() error {
	data, err := os.ReadFile(l.path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("read snapshot: %w", err)
	}
	var snap snapshot
	if len(data) > 0 {
		if err := json.Unmarshal(data, &snap); err != nil {
			return fmt.Errorf("decode snapshot %s: %w", l.path, err)
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.reset()
	l.loadSkipped = 0
	for _, rec := range snap.Vectors {
		if !l.admit(rec) {
			l.loadSkipped++
			continue
		}
		l.put(rec)
	}
	return nil
}

// LoadSkipped returns how many records the last Load dropped.
func (l *LocalIndex) LoadSkipped() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.loadSkipped
}

// admit reports whether rec fits the collection, fixing the dimension on the
// first accepted record. Callers hold mu.
func (l *LocalIndex) admit(rec Record) bool {
	if rec.ID == "" || len(rec.Vector) == 0 {
		return false
	}
	if l.dimension == 0 {
		l.dimension = len(rec.Vector)
	}
	return len(rec.Vector) == l.dimension
}

// put inserts or replaces rec by id, keeping the position of a replaced record.
// Callers hold mu.
func (l *LocalIndex) put(rec Record) {
	if pos, ok := l.positions[rec.ID]; ok {
		l.records[pos] = rec
		return
	}
	l.positions[rec.ID] = len(l.records)
	l.records = append(l.records, rec)
}

// Save writes the whole collection to a temp file next to the snapshot and renames it
// into place, so readers never observe a partial snapshot.
func (l *LocalIndex) Save() error {
	l.saveMu.Lock()
	defer l.saveMu.Unlock()

	l.mu.RLock()
	snap := snapshot{Vectors: l.records}
	if snap.Vectors == nil {
		snap.Vectors = []Record{}
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	l.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	dir := filepath.Dir(l.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(l.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("sync snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close snapshot: %w", err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		cleanup()
		return fmt.Errorf("chmod snapshot: %w", err)
	}
	if err := os.Rename(tmpName, l.path); err != nil {
		cleanup()
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}

// Clear empties the in-memory collection. The snapshot is untouched until Save.
func (l *LocalIndex) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.reset()
}

func (l *LocalIndex) reset() {
	l.records = nil
	l.positions = make(map[string]int)
	l.dimension = l.fixedDim
}

// UpsertMany inserts records or replaces those sharing an id, keeping the original
// position of replaced records. Records without an id, without a vector, or whose
// length differs from the collection dimension are skipped. Returns the count applied.
func (l *LocalIndex) UpsertMany(records []Record) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	applied := 0
	for _, rec := range records {
		if !l.admit(rec) {
			continue
		}
		l.put(copyRecord(rec))
		applied++
	}
	return applied
}

// Replace swaps the whole collection for records in one step. When any record
// would be skipped the collection is left untouched and ErrRecordRejected is
// returned. A pinned dimension still applies; otherwise the first record sets it.
func (l *LocalIndex) Replace(records []Record) (int, error) {
	next := &LocalIndex{
		fixedDim:  l.fixedDim,
		dimension: l.fixedDim,
		positions: make(map[string]int, len(records)),
	}
	for i, rec := range records {
		if !next.admit(rec) {
			if rec.ID == "" || len(rec.Vector) == 0 {
				return 0, fmt.Errorf("%w: record %d has no id or vector", ErrRecordRejected, i)
			}
			return 0, fmt.Errorf("%w: %s has %d values, collection expects %d",
				ErrRecordRejected, rec.ID, len(rec.Vector), next.dimension)
		}
		next.put(copyRecord(rec))
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = next.records
	l.positions = next.positions
	l.dimension = next.dimension
	return len(next.records), nil
}

func copyRecord(rec Record) Record {
	vec := make([]float32, len(rec.Vector))
	copy(vec, rec.Vector)
	return Record{ID: rec.ID, Vector: vec, Metadata: rec.Metadata}
}

// Search returns up to topK records ordered by descending cosine similarity to query.
// Equal scores keep insertion order. pred, when non-nil, filters records before ranking.
func (l *LocalIndex) Search(query []float32, topK int, pred Predicate) []Hit {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if topK <= 0 || len(l.records) == 0 {
		return []Hit{}
	}
	hits := make([]Hit, 0, len(l.records))
	for _, rec := range l.records {
		if pred != nil && !pred(rec) {
			continue
		}
		hits = append(hits, Hit{
			ID:       rec.ID,
			Score:    CosineSimilarity(query, rec.Vector),
			Metadata: rec.Metadata,
		})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits
}

// DeleteByIDs removes every record whose id is listed and returns how many were removed.
func (l *LocalIndex) DeleteByIDs(ids []string) int {
	if len(ids) == 0 {
		return 0
	}
	remove := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		remove[id] = struct{}{}
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	kept := make([]Record, 0, len(l.records))
	positions := make(map[string]int, len(l.records))
	for _, rec := range l.records {
		if _, ok := remove[rec.ID]; ok {
			continue
		}
		positions[rec.ID] = len(kept)
		kept = append(kept, rec)
	}
	removed := len(l.records) - len(kept)
	l.records = kept
	l.positions = positions
	return removed
}

// Len returns the number of records.
func (l *LocalIndex) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.records)
}

// Dimension returns the collection dimension, or 0 while it is still unset.
func (l *LocalIndex) Dimension() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.dimension
}

// Records returns a copy of the stored records in insertion order.
func (l *LocalIndex) Records() []Record {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Record, len(l.records))
	copy(out, l.records)
	return out
}
