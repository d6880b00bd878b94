package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	ProviderGoogle  = "google"
	ProviderSerpApi = "serpapi"

	ModeSimilarity = "similarity"
	ModeResults    = "results"

	QueryPhrase   = "phrase"
	QueryKeywords = "keywords"
)

var ErrMissingCredentials = errors.New("missing credentials")

type Config struct {
	AppPort             int           `yaml:"app_port"`
	GoogleAPIKey        string        `yaml:"google_api_key"`
	GoogleSearchEngine  string        `yaml:"google_search_engine_id"`
	SearchProvider      string        `yaml:"search_provider"`
	SerpApiKey          string        `yaml:"serpapi_key"`
	GeminiModel         string        `yaml:"gemini_model"`
	SimilarityThreshold float64       `yaml:"similarity_threshold"`
	SemanticThreshold   float64       `yaml:"semantic_threshold"`
	CheckMode           string        `yaml:"check_mode"`
	QueryMode           string        `yaml:"query_mode"`
	MaxResults          int           `yaml:"max_results"`
	MaxPassages         int           `yaml:"max_passages"`
	SearchCachePath     string        `yaml:"search_cache_path"`
	SearchCacheTTL      time.Duration `yaml:"search_cache_ttl"`
	RedisURL            string        `yaml:"redis_url"`
	ReportTTL           time.Duration `yaml:"report_ttl"`
	EmbeddingURL        string        `yaml:"embedding_url"`
	QdrantURL           string        `yaml:"qdrant_url"`
	QdrantAPIKey        string        `yaml:"qdrant_api_key"`
	FetchPages          bool          `yaml:"fetch_pages"`
	FetchProxyURL       string        `yaml:"fetch_proxy_url"`
	MaxUploadBytes      int64         `yaml:"max_upload_bytes"`
	LogDevelopment      bool          `yaml:"log_development"`
}

func Default() *Config {
	return &Config{
		AppPort:             8080,
		SearchProvider:      ProviderGoogle,
		GeminiModel:         "gemini-1.5-flash",
		SimilarityThreshold: 0.5,
		SemanticThreshold:   0.85,
		CheckMode:           ModeSimilarity,
		QueryMode:           QueryPhrase,
		MaxResults:          5,
		MaxPassages:         3,
		SearchCachePath:     "data/search_cache.db",
		SearchCacheTTL:      24 * time.Hour,
		ReportTTL:           24 * time.Hour,
		MaxUploadBytes:      10 << 20,
	}
}

// Load builds the configuration from defaults, the optional YAML file named
// by CONFIG_FILE, and finally the environment.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.loadEnv(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) loadEnv() error {
	var err error

	setString(&c.GoogleAPIKey, "GOOGLE_API_KEY")
	setString(&c.GoogleSearchEngine, "GOOGLE_SEARCH_ENGINE_ID")
	setString(&c.SearchProvider, "SEARCH_PROVIDER")
	setString(&c.SerpApiKey, "SERPAPI_KEY")
	setString(&c.GeminiModel, "GEMINI_MODEL")
	setString(&c.CheckMode, "CHECK_MODE")
	setString(&c.QueryMode, "QUERY_MODE")
	setString(&c.SearchCachePath, "SEARCH_CACHE_PATH")
	setString(&c.RedisURL, "REDIS_URL")
	setString(&c.EmbeddingURL, "EMBEDDING_URL")
	setString(&c.QdrantURL, "QDRANT_URL")
	setString(&c.QdrantAPIKey, "QDRANT_API_KEY")
	setString(&c.FetchProxyURL, "FETCH_PROXY_URL")

	if err = setInt(&c.AppPort, "APP_PORT"); err != nil {
		return err
	}
	if err = setInt(&c.MaxResults, "MAX_RESULTS"); err != nil {
		return err
	}
	if err = setInt(&c.MaxPassages, "MAX_PASSAGES"); err != nil {
		return err
	}
	if err = setFloat(&c.SimilarityThreshold, "SIMILARITY_THRESHOLD"); err != nil {
		return err
	}
	if err = setFloat(&c.SemanticThreshold, "SEMANTIC_THRESHOLD"); err != nil {
		return err
	}
	if err = setDuration(&c.SearchCacheTTL, "SEARCH_CACHE_TTL"); err != nil {
		return err
	}
	if err = setDuration(&c.ReportTTL, "REPORT_TTL"); err != nil {
		return err
	}
	if err = setBool(&c.FetchPages, "FETCH_PAGES"); err != nil {
		return err
	}
	if err = setBool(&c.LogDevelopment, "LOG_DEVELOPMENT"); err != nil {
		return err
	}
	if v := os.Getenv("MAX_UPLOAD_BYTES"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid MAX_UPLOAD_BYTES %q: %w", v, err)
		}
		c.MaxUploadBytes = n
	}

	c.SearchProvider = strings.ToLower(strings.TrimSpace(c.SearchProvider))
	c.CheckMode = strings.ToLower(strings.TrimSpace(c.CheckMode))
	c.QueryMode = strings.ToLower(strings.TrimSpace(c.QueryMode))
	return nil
}

// Validate checks the settings needed to generate text and run searches.
func (c *Config) Validate() error {
	if c.AppPort <= 0 || c.AppPort > 65535 {
		return fmt.Errorf("invalid app port %d", c.AppPort)
	}
	if c.MaxResults <= 0 {
		return fmt.Errorf("max results must be positive, got %d", c.MaxResults)
	}
	if c.MaxPassages <= 0 {
		return fmt.Errorf("max passages must be positive, got %d", c.MaxPassages)
	}
	if c.SimilarityThreshold < 0 || c.SimilarityThreshold > 1 {
		return fmt.Errorf("similarity threshold must be within [0, 1], got %v", c.SimilarityThreshold)
	}
	if c.SemanticThreshold < 0 || c.SemanticThreshold > 1 {
		return fmt.Errorf("semantic threshold must be within [0, 1], got %v", c.SemanticThreshold)
	}
	switch c.CheckMode {
	case ModeSimilarity, ModeResults:
	default:
		return fmt.Errorf("unknown check mode %q", c.CheckMode)
	}
	switch c.QueryMode {
	case QueryPhrase, QueryKeywords:
	default:
		return fmt.Errorf("unknown query mode %q", c.QueryMode)
	}

	switch c.SearchProvider {
	case ProviderGoogle:
		if c.GoogleAPIKey == "" || c.GoogleSearchEngine == "" {
			return fmt.Errorf("%w: GOOGLE_API_KEY and GOOGLE_SEARCH_ENGINE_ID are required", ErrMissingCredentials)
		}
	case ProviderSerpApi:
		if c.SerpApiKey == "" {
			return fmt.Errorf("%w: SERPAPI_KEY is required", ErrMissingCredentials)
		}
	default:
		return fmt.Errorf("unknown search provider %q", c.SearchProvider)
	}
	return nil
}

// ValidateGenerator checks the settings needed only by the Gemini client.
func (c *Config) ValidateGenerator() error {
	if c.GoogleAPIKey == "" {
		return fmt.Errorf("%w: GOOGLE_API_KEY is required", ErrMissingCredentials)
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	*dst = n
	return nil
}

func setFloat(dst *float64, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	*dst = f
	return nil
}

func setDuration(dst *time.Duration, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	*dst = d
	return nil
}

func setBool(dst *bool, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	*dst = b
	return nil
}
