package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"ghostwriter/pkg/breaker"
	"ghostwriter/pkg/metrics"
)

const SerpApiURL = "https://serpapi.com/search"

type SerpApiSearchEngine struct {
	client  *http.Client
	baseURL string
	apiKey  string
	breaker *breaker.Breaker
	metrics *metrics.Collector
}

type serpApiResponse struct {
	OrganicResults []struct {
		Position int    `json:"position"`
		Title    string `json:"title"`
		Link     string `json:"link"`
		Snippet  string `json:"snippet"`
	} `json:"organic_results"`
	SearchMetadata struct {
		Status string `json:"status"`
	} `json:"search_metadata"`
	Error string `json:"error"`
}

func NewSerpApiSearchEngine(apiKey string, b *breaker.Breaker, m *metrics.Collector) *SerpApiSearchEngine {
	return &SerpApiSearchEngine{
		client:  &http.Client{Timeout: 30 * time.Second},
		baseURL: SerpApiURL,
		apiKey:  apiKey,
		breaker: b,
		metrics: m,
	}
}

func (s *SerpApiSearchEngine) WithBaseURL(baseURL string) *SerpApiSearchEngine {
	s.baseURL = baseURL
	return s
}

func (s *SerpApiSearchEngine) Name() string { return "serpapi" }

func (s *SerpApiSearchEngine) Search(ctx context.Context, req *SearchRequest) ([]SearchResult, error) {
	if req.Query == "" {
		return nil, ErrEmptyQuery
	}

	maxPages := req.MaxPages
	if maxPages == 0 {
		maxPages = 1
	}

	var allResults []SearchResult
	for i := range maxPages {
		page, err := breaker.Do(s.breaker, func() ([]SearchResult, error) {
			return s.fetchPage(ctx, req.Query, i)
		})
		s.metrics.ObserveUpstream("serpapi_search", err)
		if err != nil {
			return nil, err
		}
		if len(page) == 0 {
			break
		}
		allResults = append(allResults, page...)
		if req.MaxResults > 0 && len(allResults) >= req.MaxResults {
			allResults = allResults[:req.MaxResults]
			break
		}
	}

	return allResults, nil
}

func (s *SerpApiSearchEngine) fetchPage(ctx context.Context, query string, page int) ([]SearchResult, error) {
	params := url.Values{}
	params.Set("engine", "google")
	params.Set("q", query)
	params.Set("api_key", s.apiKey)
	params.Set("start", strconv.Itoa(page*10))
	params.Set("num", "10")

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &APIError{Provider: s.Name(), StatusCode: resp.StatusCode, Body: string(body)}
	}

	var searchResp serpApiResponse
	if err := json.NewDecoder(resp.Body).Decode(&searchResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if searchResp.Error != "" {
		if strings.Contains(searchResp.Error, "hasn't returned any results") {
			return nil, nil
		}
		return nil, &APIError{Provider: s.Name(), StatusCode: resp.StatusCode, Body: searchResp.Error}
	}

	results := make([]SearchResult, 0, len(searchResp.OrganicResults))
	for _, item := range searchResp.OrganicResults {
		results = append(results, SearchResult{
			URL:         item.Link,
			Title:       item.Title,
			Description: item.Snippet,
			Metadata: map[string]string{
				"page":     strconv.Itoa(page + 1),
				"position": strconv.Itoa(item.Position),
				"query":    query,
				"provider": s.Name(),
			},
		})
	}
	return results, nil
}
