package search

import (
	"context"
	"errors"
	"fmt"
)

var ErrEmptyQuery = errors.New("empty search query")

type SearchResult struct {
	URL         string            `json:"url"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

type SearchRequest struct {
	Query      string            `json:"query"`
	MaxResults int               `json:"max_results,omitempty"`
	MaxPages   int               `json:"max_pages,omitempty"`
	Options    map[string]string `json:"options,omitempty"`
}

type SearchEngine interface {
	Search(ctx context.Context, req *SearchRequest) ([]SearchResult, error)
	Name() string
}

// APIError is a non-200 answer from a search provider.
type APIError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s search API error: %d - %s", e.Provider, e.StatusCode, e.Body)
}

// Dedupe drops results whose URL was already seen, keeping order.
func Dedupe(results []SearchResult) []SearchResult {
	seen := make(map[string]struct{}, len(results))
	out := make([]SearchResult, 0, len(results))
	for _, r := range results {
		if r.URL == "" {
			continue
		}
		if _, ok := seen[r.URL]; ok {
			continue
		}
		seen[r.URL] = struct{}{}
		out = append(out, r)
	}
	return out
}
