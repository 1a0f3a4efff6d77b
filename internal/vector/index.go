// Package vector provides the local and remote vector indices behind the store.
package vector

import "errors"

// Record is a single stored embedding with its caller-supplied metadata.
type Record struct {
	ID       string         `json:"id"`
	Vector   []float32      `json:"vector"`
	Metadata map[string]any `json:"metadata"`
}

// Hit is a single similarity search result.
type Hit struct {
	ID       string         `json:"id"`
	Score    float64        `json:"score"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Predicate reports whether a record may appear in search results.
type Predicate func(Record) bool

var (
	// ErrMissingCredentials is returned when a remote driver has no API key.
	ErrMissingCredentials = errors.New("vector: missing remote credentials")
	// ErrDimensionUnknown is returned when the remote index does not reveal its dimension.
	ErrDimensionUnknown = errors.New("vector: remote dimension unknown")
	// ErrRecordRejected is returned when a whole-collection replace holds a record
	// the collection cannot store.
	ErrRecordRejected = errors.New("vector: record rejected")
)
