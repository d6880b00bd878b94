package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"ghostwriter/pkg/breaker"
	"ghostwriter/pkg/metrics"
)

const (
	GoogleSearchURL = "https://www.googleapis.com/customsearch/v1"

	// Custom Search returns at most 10 items per call and 100 per query.
	googlePageSize   = 10
	googleMaxResults = 100
)

type GoogleSearchEngine struct {
	client   *http.Client
	baseURL  string
	apiKey   string
	engineID string
	breaker  *breaker.Breaker
	metrics  *metrics.Collector
}

type googleResponse struct {
	Items []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
	} `json:"items"`
	SearchInformation struct {
		TotalResults string `json:"totalResults"`
	} `json:"searchInformation"`
}

func NewGoogleSearchEngine(apiKey, engineID string, b *breaker.Breaker, m *metrics.Collector) *GoogleSearchEngine {
	return &GoogleSearchEngine{
		client:   &http.Client{Timeout: 30 * time.Second},
		baseURL:  GoogleSearchURL,
		apiKey:   apiKey,
		engineID: engineID,
		breaker:  b,
		metrics:  m,
	}
}

// WithBaseURL points the engine at another endpoint.
func (g *GoogleSearchEngine) WithBaseURL(baseURL string) *GoogleSearchEngine {
	g.baseURL = baseURL
	return g
}

func (g *GoogleSearchEngine) Name() string { return "google" }

func (g *GoogleSearchEngine) Search(ctx context.Context, req *SearchRequest) ([]SearchResult, error) {
	if req.Query == "" {
		return nil, ErrEmptyQuery
	}

	maxResults := req.MaxResults
	if maxResults <= 0 {
		maxResults = googlePageSize
	}
	maxResults = min(maxResults, googleMaxResults)

	var allResults []SearchResult
	for start := 1; len(allResults) < maxResults; start += googlePageSize {
		num := min(googlePageSize, maxResults-len(allResults))

		page, err := breaker.Do(g.breaker, func() ([]SearchResult, error) {
			return g.fetchPage(ctx, req.Query, start, num)
		})
		g.metrics.ObserveUpstream("google_search", err)
		if err != nil {
			return nil, err
		}

		allResults = append(allResults, page...)
		if len(page) < num {
			break
		}
	}

	return allResults, nil
}

func (g *GoogleSearchEngine) fetchPage(ctx context.Context, query string, start, num int) ([]SearchResult, error) {
	params := url.Values{}
	params.Set("key", g.apiKey)
	params.Set("cx", g.engineID)
	params.Set("q", query)
	params.Set("num", strconv.Itoa(num))
	params.Set("start", strconv.Itoa(start))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &APIError{Provider: g.Name(), StatusCode: resp.StatusCode, Body: string(body)}
	}

	var searchResp googleResponse
	if err := json.NewDecoder(resp.Body).Decode(&searchResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	results := make([]SearchResult, 0, len(searchResp.Items))
	for i, item := range searchResp.Items {
		results = append(results, SearchResult{
			URL:         item.Link,
			Title:       item.Title,
			Description: item.Snippet,
			Metadata: map[string]string{
				"position": strconv.Itoa(start + i),
				"query":    query,
				"provider": g.Name(),
			},
		})
	}
	return results, nil
}
