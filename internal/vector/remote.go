package vector

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"

	"github.com/pinecone-io/go-pinecone/v3/pinecone"
	"google.golang.org/protobuf/types/known/structpb"
)

// RemoteConn is the subset of a Pinecone index connection used by RemoteIndex.
// *pinecone.IndexConnection satisfies it.
type RemoteConn interface {
	UpsertVectors(ctx context.Context, in []*pinecone.Vector) (uint32, error)
	QueryByVectorValues(ctx context.Context, in *pinecone.QueryByVectorValuesRequest) (*pinecone.QueryVectorsResponse, error)
	DeleteVectorsById(ctx context.Context, ids []string) error
	DeleteAllVectorsInNamespace(ctx context.Context) error
	DescribeIndexStats(ctx context.Context) (*pinecone.DescribeIndexStatsResponse, error)
	Close() error
}

// DimensionFunc reports the dimension of a remote index from its control-plane description.
type DimensionFunc func(ctx context.Context) (int, error)

// RemoteIndex adapts the local record shape onto a Pinecone index namespace.
type RemoteIndex struct {
	conn      RemoteConn
	namespace string
	describe  DimensionFunc
}

// RemoteOption configures a RemoteIndex.
type RemoteOption func(*RemoteIndex)

// WithNamespace records the namespace the connection is scoped to.
func WithNamespace(ns string) RemoteOption {
	return func(r *RemoteIndex) { r.namespace = ns }
}

// WithDescriber sets the explicit dimension lookup tried before any probing.
func WithDescriber(fn DimensionFunc) RemoteOption {
	return func(r *RemoteIndex) { r.describe = fn }
}

// NewRemoteIndex wraps an index connection.
func NewRemoteIndex(conn RemoteConn, opts ...RemoteOption) *RemoteIndex {
	r := &RemoteIndex{conn: conn}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Type returns the driver identifier.
func (r *RemoteIndex) Type() string {
	return string(DriverPinecone)
}

// Namespace returns the namespace the index is scoped to.
func (r *RemoteIndex) Namespace() string {
	return r.namespace
}

// Ping checks connectivity and authorization with a describe-index-stats call.
func (r *RemoteIndex) Ping(ctx context.Context) error {
	if _, err := r.conn.DescribeIndexStats(ctx); err != nil {
		return fmt.Errorf("pinecone describe index stats: %w", err)
	}
	return nil
}

// UpsertMany writes records in one request. Records without an id are skipped.
func (r *RemoteIndex) UpsertMany(ctx context.Context, records []Record) (int, error) {
	vectors := make([]*pinecone.Vector, 0, len(records))
	for _, rec := range records {
		if rec.ID == "" || len(rec.Vector) == 0 {
			continue
		}
		v, err := toPineconeVector(rec)
		if err != nil {
			return 0, err
		}
		vectors = append(vectors, v)
	}
	if len(vectors) == 0 {
		return 0, nil
	}
	n, err := r.conn.UpsertVectors(ctx, vectors)
	if err != nil {
		return 0, fmt.Errorf("pinecone upsert: %w", err)
	}
	return int(n), nil
}

// Search queries the namespace and returns hits in the order the service ranked them.
func (r *RemoteIndex) Search(ctx context.Context, query []float32, topK int, filter Filter) ([]Hit, error) {
	if topK <= 0 {
		return []Hit{}, nil
	}
	req := &pinecone.QueryByVectorValuesRequest{
		Vector:          query,
		TopK:            uint32(topK),
		IncludeMetadata: true,
	}
	if len(filter) > 0 {
		mf, err := structpb.NewStruct(filter)
		if err != nil {
			return nil, fmt.Errorf("encode metadata filter: %w", err)
		}
		req.MetadataFilter = mf
	}
	res, err := r.conn.QueryByVectorValues(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("pinecone query: %w", err)
	}
	hits := make([]Hit, 0, len(res.Matches))
	for _, m := range res.Matches {
		if m == nil || m.Vector == nil {
			continue
		}
		hit := Hit{ID: m.Vector.Id, Score: float64(m.Score)}
		if m.Vector.Metadata != nil {
			hit.Metadata = m.Vector.Metadata.AsMap()
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

// DeleteByIDs removes the given ids. Pinecone does not report how many existed,
// so the count is the number of ids sent.
func (r *RemoteIndex) DeleteByIDs(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	if err := r.conn.DeleteVectorsById(ctx, ids); err != nil {
		return 0, fmt.Errorf("pinecone delete: %w", err)
	}
	return len(ids), nil
}

// Clear deletes every vector in the namespace.
func (r *RemoteIndex) Clear(ctx context.Context) error {
	if err := r.conn.DeleteAllVectorsInNamespace(ctx); err != nil {
		return fmt.Errorf("pinecone delete all: %w", err)
	}
	return nil
}

// Count returns the number of vectors stored in the namespace.
func (r *RemoteIndex) Count(ctx context.Context) (int, error) {
	stats, err := r.conn.DescribeIndexStats(ctx)
	if err != nil {
		return 0, fmt.Errorf("pinecone describe index stats: %w", err)
	}
	if ns, ok := stats.Namespaces[r.namespace]; ok && ns != nil {
		return int(ns.VectorCount), nil
	}
	if r.namespace == "" {
		return int(stats.TotalVectorCount), nil
	}
	return 0, nil
}

// Dimension discovers the vector length the index expects. The control-plane
// description is tried first, then index stats, and finally a throwaway query whose
// rejection message usually names the expected length. ErrDimensionUnknown is
// returned when none of them names it.
func (r *RemoteIndex) Dimension(ctx context.Context) (int, error) {
	if r.describe != nil {
		if dim, err := r.describe(ctx); err == nil && dim > 0 {
			return dim, nil
		}
	}
	if stats, err := r.conn.DescribeIndexStats(ctx); err == nil && stats != nil && stats.Dimension != nil && *stats.Dimension > 0 {
		return int(*stats.Dimension), nil
	}
	return r.probeDimension(ctx)
}

func (r *RemoteIndex) probeDimension(ctx context.Context) (int, error) {
	_, err := r.conn.QueryByVectorValues(ctx, &pinecone.QueryByVectorValuesRequest{Vector: []float32{1}, TopK: 1})
	if err == nil {
		// An accepted query says nothing about the expected length.
		return 0, ErrDimensionUnknown
	}
	if dim, ok := DimensionFromError(err); ok {
		return dim, nil
	}
	return 0, errors.Join(ErrDimensionUnknown, err)
}

// Close releases the connection.
func (r *RemoteIndex) Close() error {
	return r.conn.Close()
}

var dimensionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)dimension of the index\s*(?:is\s*)?\(?(\d+)\)?`),
	regexp.MustCompile(`(?i)expected\s+(?:vector\s+)?(?:dimension|length)\s*(?:of\s*)?(\d+)`),
	regexp.MustCompile(`(?i)index dimension\s*(?:is\s*|=\s*|:\s*)?(\d+)`),
}

// DimensionFromError extracts the index dimension from a dimension-mismatch error message.
func DimensionFromError(err error) (int, bool) {
	if err == nil {
		return 0, false
	}
	msg := err.Error()
	for _, re := range dimensionPatterns {
		m := re.FindStringSubmatch(msg)
		if len(m) < 2 {
			continue
		}
		if dim, convErr := strconv.Atoi(m[1]); convErr == nil && dim > 0 {
			return dim, true
		}
	}
	return 0, false
}

func toPineconeVector(rec Record) (*pinecone.Vector, error) {
	values := make([]float32, len(rec.Vector))
	copy(values, rec.Vector)
	v := &pinecone.Vector{Id: rec.ID, Values: &values}
	if len(rec.Metadata) > 0 {
		md, err := structpb.NewStruct(rec.Metadata)
		if err != nil {
			return nil, fmt.Errorf("encode metadata for %s: %w", rec.ID, err)
		}
		v.Metadata = md
	}
	return v, nil
}
