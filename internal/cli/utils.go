// Package cli provides output helpers for the Hondana CLI.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/hyperjump/hondana/internal/store"
	"github.com/hyperjump/hondana/internal/vector"
	"github.com/hyperjump/hondana/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// WriteHits writes search hits to w in the given format.
func WriteHits(w io.Writer, query string, hits []vector.Hit, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, map[string]any{"query": query, "results": hits})
	}
	fmt.Fprintf(w, "\nFound %d results for %q\n\n", len(hits), query)
	for i, h := range hits {
		fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
		fmt.Fprintf(w, "Rank: %d | Score: %.4f\n", i+1, h.Score)
		fmt.Fprintf(w, "ID: %s\n", h.ID)
		if title := metaString(h.Metadata, "title"); title != "" {
			if author := metaString(h.Metadata, "author"); author != "" {
				title += " by " + author
			}
			fmt.Fprintf(w, "Title: %s\n", title)
		}
		if summary := metaString(h.Metadata, "summary"); summary != "" {
			fmt.Fprintf(w, "\n%s\n", utils.Truncate(summary, 200))
		} else if extra := otherFields(h.Metadata); extra != "" {
			fmt.Fprintf(w, "%s\n", extra)
		}
		fmt.Fprintln(w)
	}
	return nil
}

// WriteStatus writes the store status to w in the given format.
func WriteStatus(w io.Writer, st store.Status, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, st)
	}
	fmt.Fprintf(w, "Driver:      %s\n", st.Driver)
	if st.FellBack {
		fmt.Fprintf(w, "             (pinecone unavailable, using local)\n")
	}
	fmt.Fprintf(w, "Namespace:   %s\n", st.Namespace)
	fmt.Fprintf(w, "Vectors:     %d\n", st.Count)
	fmt.Fprintf(w, "Dimension:   %d\n", st.Dimension)
	if st.EmbeddingDimension > 0 {
		fmt.Fprintf(w, "Embedding:   %d (resizing: %v)\n", st.EmbeddingDimension, st.Normalizing)
	}
	if st.SnapshotPath != "" {
		fmt.Fprintf(w, "Snapshot:    %s (%d bytes)\n", st.SnapshotPath, st.SnapshotBytes)
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func metaString(md map[string]any, key string) string {
	s, _ := md[key].(string)
	return strings.TrimSpace(s)
}

// otherFields renders scalar metadata as "k=v" pairs in key order.
func otherFields(md map[string]any) string {
	keys := make([]string, 0, len(md))
	for k, v := range md {
		switch v.(type) {
		case string, float64, bool:
			if k != "title" && k != "author" {
				keys = append(keys, k)
			}
		}
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%v", k, md[k])
	}
	return utils.Truncate(strings.Join(parts, " "), 200)
}
