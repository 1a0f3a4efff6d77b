// Package models defines the request and response bodies of the HTTP API.
package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/hyperjump/hondana/internal/vector"
)

// SearchRequest is a free-text search over the book collection.
type SearchRequest struct {
	Query  string        `json:"query"`
	TopK   int           `json:"top_k,omitempty"`
	Filter vector.Filter `json:"filter,omitempty"`
}

// Validate trims the query and checks the filter.
func (q *SearchRequest) Validate() error {
	q.Query = strings.TrimSpace(q.Query)
	if q.Query == "" {
		return fmt.Errorf("query (string) is required")
	}
	if q.TopK < 0 {
		return fmt.Errorf("top_k must not be negative")
	}
	return q.Filter.Validate()
}

// SearchResponse carries the ranked hits of a search.
type SearchResponse struct {
	OK      bool         `json:"ok"`
	Results []vector.Hit `json:"results"`
}

// ReindexRequest optionally points the reindex at another seed file.
type ReindexRequest struct {
	SeedPath string `json:"seed_path,omitempty"`
}

// ReindexResponse reports how many books were indexed.
type ReindexResponse struct {
	OK      bool `json:"ok"`
	Indexed int  `json:"indexed"`
	Skipped int  `json:"skipped"`
}

// HealthResponse is returned by the health check.
type HealthResponse struct {
	OK      bool      `json:"ok"`
	Service string    `json:"service"`
	Time    time.Time `json:"time"`
}
