// Package vectortest provides an in-memory stand-in for a Pinecone index connection.
package vectortest

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/hyperjump/hondana/internal/vector"
	"github.com/pinecone-io/go-pinecone/v3/pinecone"
)

// FakeConn implements vector.RemoteConn in memory. When Dim is set it rejects vectors
// of another length with the same message shape the real service uses.
type FakeConn struct {
	Dim            int
	StatsDimension bool
	Namespace      string

	UpsertErr error
	QueryErr  error
	StatsErr  error

	Upserts [][]*pinecone.Vector
	Queries []*pinecone.QueryByVectorValuesRequest
	Deletes [][]string
	Cleared int
	Closed  bool

	mu      sync.Mutex
	order   []string
	vectors map[string]*pinecone.Vector
}

var _ vector.RemoteConn = (*FakeConn)(nil)

// NewFakeConn returns a fake index expecting vectors of length dim (0 = any).
func NewFakeConn(dim int) *FakeConn {
	return &FakeConn{Dim: dim, vectors: make(map[string]*pinecone.Vector)}
}

func (f *FakeConn) checkDim(n int) error {
	if f.Dim > 0 && n != f.Dim {
		return fmt.Errorf("rpc error: code = InvalidArgument desc = Vector dimension %d does not match the dimension of the index %d", n, f.Dim)
	}
	return nil
}

func (f *FakeConn) UpsertVectors(ctx context.Context, in []*pinecone.Vector) (uint32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.UpsertErr != nil {
		return 0, f.UpsertErr
	}
	for _, v := range in {
		if v.Values == nil {
			return 0, fmt.Errorf("vector %s has no values", v.Id)
		}
		if err := f.checkDim(len(*v.Values)); err != nil {
			return 0, err
		}
	}
	f.Upserts = append(f.Upserts, in)
	for _, v := range in {
		if _, ok := f.vectors[v.Id]; !ok {
			f.order = append(f.order, v.Id)
		}
		f.vectors[v.Id] = v
	}
	return uint32(len(in)), nil
}

func (f *FakeConn) QueryByVectorValues(ctx context.Context, in *pinecone.QueryByVectorValuesRequest) (*pinecone.QueryVectorsResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Queries = append(f.Queries, in)
	if f.QueryErr != nil {
		return nil, f.QueryErr
	}
	if err := f.checkDim(len(in.Vector)); err != nil {
		return nil, err
	}
	var filter vector.Filter
	if in.MetadataFilter != nil {
		filter = in.MetadataFilter.AsMap()
	}
	matches := make([]*pinecone.ScoredVector, 0, len(f.order))
	for _, id := range f.order {
		v := f.vectors[id]
		var md map[string]any
		if v.Metadata != nil {
			md = v.Metadata.AsMap()
		}
		if len(filter) > 0 && !filter.Match(md) {
			continue
		}
		out := &pinecone.Vector{Id: v.Id}
		if in.IncludeMetadata {
			out.Metadata = v.Metadata
		}
		matches = append(matches, &pinecone.ScoredVector{
			Vector: out,
			Score:  float32(vector.CosineSimilarity(in.Vector, *v.Values)),
		})
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if len(matches) > int(in.TopK) {
		matches = matches[:in.TopK]
	}
	return &pinecone.QueryVectorsResponse{Matches: matches, Namespace: f.Namespace}, nil
}

func (f *FakeConn) DeleteVectorsById(ctx context.Context, ids []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Deletes = append(f.Deletes, ids)
	for _, id := range ids {
		delete(f.vectors, id)
	}
	f.rebuildOrder()
	return nil
}

func (f *FakeConn) DeleteAllVectorsInNamespace(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Cleared++
	f.vectors = make(map[string]*pinecone.Vector)
	f.order = nil
	return nil
}

func (f *FakeConn) DescribeIndexStats(ctx context.Context) (*pinecone.DescribeIndexStatsResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.StatsErr != nil {
		return nil, f.StatsErr
	}
	res := &pinecone.DescribeIndexStatsResponse{
		TotalVectorCount: uint32(len(f.vectors)),
		Namespaces: map[string]*pinecone.NamespaceSummary{
			f.Namespace: {VectorCount: uint32(len(f.vectors))},
		},
	}
	if f.StatsDimension && f.Dim > 0 {
		d := uint32(f.Dim)
		res.Dimension = &d
	}
	return res, nil
}

func (f *FakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}

// Len returns the number of stored vectors.
func (f *FakeConn) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.vectors)
}

func (f *FakeConn) rebuildOrder() {
	kept := f.order[:0]
	for _, id := range f.order {
		if _, ok := f.vectors[id]; ok {
			kept = append(kept, id)
		}
	}
	f.order = kept
}
