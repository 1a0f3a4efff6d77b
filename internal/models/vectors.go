package models

import (
	"fmt"

	"github.com/hyperjump/hondana/internal/vector"
)

// UpsertRequest writes raw vectors to the store.
type UpsertRequest struct {
	Vectors []vector.Record `json:"vectors"`
}

// Validate requires at least one vector.
func (r *UpsertRequest) Validate() error {
	if len(r.Vectors) == 0 {
		return fmt.Errorf("vectors must not be empty")
	}
	return nil
}

// UpsertResponse reports how many vectors were written.
type UpsertResponse struct {
	Upserted int `json:"upserted"`
}

// QueryRequest is a raw vector similarity query.
type QueryRequest struct {
	Vector []float32     `json:"vector"`
	TopK   int           `json:"top_k,omitempty"`
	Filter vector.Filter `json:"filter,omitempty"`
}

// Validate requires a query vector and a well-formed filter.
func (r *QueryRequest) Validate() error {
	if len(r.Vector) == 0 {
		return fmt.Errorf("vector must not be empty")
	}
	if r.TopK < 0 {
		return fmt.Errorf("top_k must not be negative")
	}
	return r.Filter.Validate()
}

// QueryResponse carries the hits of a raw query.
type QueryResponse struct {
	Results []vector.Hit `json:"results"`
}

// DeleteRequest removes vectors by id.
type DeleteRequest struct {
	IDs []string `json:"ids"`
}

// DeleteResponse reports how many vectors were removed.
type DeleteResponse struct {
	Deleted int `json:"deleted"`
}
