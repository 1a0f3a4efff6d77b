package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/hyperjump/hondana/internal/cli"
	"github.com/hyperjump/hondana/internal/models"
	"github.com/hyperjump/hondana/internal/vector"
	"github.com/spf13/cobra"
)

func NewSearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <query...>",
		Short: "Search books by meaning",
		Long: `Search books by meaning. The query is all arguments joined by spaces, so
multi-word queries work with or without quotes.

Examples:
  hondana search space opera with political intrigue
  hondana search -n 3 --json "coming of age wizard"
  hondana search --filter '{"genre": {"$in": ["fantasy", "sci-fi"]}}' dragons`,
		Args: cobra.MinimumNArgs(1),
		RunE: runSearch,
	}
	cmd.Flags().IntP("number", "n", 5, "maximum results")
	cmd.Flags().Bool("json", false, "output JSON")
	cmd.Flags().String("filter", "", "metadata filter as JSON")
	cmd.Flags().String("server", "", "query a running server at this URL instead of opening the store")
	return cmd
}

func runSearch(cmd *cobra.Command, args []string) error {
	query := buildSearchQuery(args)
	if query == "" {
		return fmt.Errorf("query is required")
	}
	limit, _ := cmd.Flags().GetInt("number")
	asJSON, _ := cmd.Flags().GetBool("json")
	rawFilter, _ := cmd.Flags().GetString("filter")
	serverURL, _ := cmd.Flags().GetString("server")

	req := models.SearchRequest{Query: query, TopK: limit}
	if rawFilter != "" {
		if err := json.Unmarshal([]byte(rawFilter), &req.Filter); err != nil {
			return fmt.Errorf("invalid --filter: %w", err)
		}
	}
	if err := req.Validate(); err != nil {
		return err
	}

	format := cli.OutputText
	if asJSON {
		format = cli.OutputJSON
	}

	var hits []vector.Hit
	if serverURL != "" {
		resp, err := searchViaHTTP(cmd.Context(), serverURL, &req)
		if err != nil {
			return fmt.Errorf("search failed: %w", err)
		}
		hits = resp.Results
	} else {
		a, err := newApp(cmd, true)
		if err != nil {
			return err
		}
		defer a.Close()
		hits, err = a.retriever.Search(cmd.Context(), req.Query, req.TopK, req.Filter)
		if err != nil {
			return fmt.Errorf("search failed: %w", err)
		}
	}
	return cli.WriteHits(cmd.OutOrStdout(), query, hits, format)
}

// buildSearchQuery joins all positional args with spaces so multi-word queries
// work the same with or without shell quoting.
func buildSearchQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

func searchViaHTTP(ctx context.Context, serverURL string, query *models.SearchRequest) (*models.SearchResponse, error) {
	body, err := json.Marshal(query)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(serverURL, "/")+"/api/v1/search", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	var response models.SearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &response, nil
}
