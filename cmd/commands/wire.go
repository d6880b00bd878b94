package commands

import (
	"context"
	"fmt"
	"time"

	"ghostwriter/checker"
	"ghostwriter/config"
	"ghostwriter/crawler"
	"ghostwriter/embedding"
	"ghostwriter/generate"
	"ghostwriter/pkg/breaker"
	"ghostwriter/pkg/chunking"
	"ghostwriter/pkg/metrics"
	"ghostwriter/pkg/ocr"
	"ghostwriter/pkg/qdrantdb"
	"ghostwriter/pkg/redisdb"
	processor "ghostwriter/process"
	"ghostwriter/relevance"
	"ghostwriter/repository"
	"ghostwriter/search"

	"go.uber.org/zap"
)

const (
	generatorRetries   = 3
	generatorBaseDelay = 200 * time.Millisecond
	embeddingMaxTokens = 512
)

type app struct {
	metrics   *metrics.Collector
	extractor *processor.Core
	cache     *search.CachedSearchEngine
	service   *checker.Service
	closers   []func() error
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			logger.Warn("failed to close resource", zap.Error(err))
		}
	}
}

func newExtractor(cfg *config.Config) *processor.Core {
	return processor.NewCore(ocr.NewTesseract("eng", logger), cfg.MaxUploadBytes, logger)
}

// buildApp wires every component the configuration enables. Optional
// backends (redis, embeddings, qdrant, page fetching) are skipped when unset.
func buildApp(ctx context.Context, cfg *config.Config) (*app, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	a := &app{
		metrics:   metrics.NewCollector("ghostwriter"),
		extractor: newExtractor(cfg),
	}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	engine, err := a.searchEngine(cfg)
	if err != nil {
		return nil, err
	}

	reports, err := a.reportRepo(ctx, cfg)
	if err != nil {
		return nil, err
	}

	opts := checker.DefaultOptions()
	opts.Mode = cfg.CheckMode
	opts.Threshold = cfg.SimilarityThreshold
	opts.SemanticThreshold = cfg.SemanticThreshold
	opts.MaxResults = cfg.MaxResults
	opts.MaxPassages = cfg.MaxPassages
	opts.QueryMode = cfg.QueryMode

	options := []checker.Option{
		checker.WithChunker(newChunker()),
		checker.WithExtractor(a.extractor),
		checker.WithMetrics(a.metrics),
	}

	if cfg.GoogleAPIKey != "" {
		gen, err := generate.NewGeminiGenerator(ctx, cfg.GoogleAPIKey, cfg.GeminiModel, logger,
			generate.WithBreaker(breaker.New(breaker.DefaultConfig("gemini"), logger)),
			generate.WithMetrics(a.metrics))
		if err != nil {
			return nil, err
		}
		options = append(options, checker.WithGenerator(
			generate.NewRetryingGenerator(gen, generatorRetries, generatorBaseDelay, logger)))
	}

	if cfg.EmbeddingURL != "" {
		semantic := relevance.NewSemanticScorer(embedding.NewTEIClient(cfg.EmbeddingURL), embeddingMaxTokens)
		options = append(options, checker.WithSemanticScorer(semantic))

		if cfg.QdrantURL != "" {
			client, err := qdrantdb.NewClient(cfg.QdrantURL, cfg.QdrantAPIKey)
			if err != nil {
				return nil, err
			}
			a.closers = append(a.closers, client.Close)
			options = append(options, checker.WithArchive(qdrantdb.NewTextArchive(client)))
		}
	} else if cfg.QdrantURL != "" {
		logger.Warn("QDRANT_URL is set without EMBEDDING_URL, archive disabled")
	}

	if cfg.FetchPages {
		fetcherCfg := crawler.DefaultConfig()
		fetcherCfg.ProxyURL = cfg.FetchProxyURL
		fetcher, err := crawler.NewPageFetcher(fetcherCfg, logger)
		if err != nil {
			return nil, err
		}
		options = append(options, checker.WithFetcher(fetcher))
	}

	a.service, err = checker.NewService(engine, reports, opts, logger, options...)
	if err != nil {
		return nil, err
	}

	ok = true
	return a, nil
}

func (a *app) searchEngine(cfg *config.Config) (search.SearchEngine, error) {
	var engine search.SearchEngine
	switch cfg.SearchProvider {
	case config.ProviderGoogle:
		engine = search.NewGoogleSearchEngine(cfg.GoogleAPIKey, cfg.GoogleSearchEngine,
			breaker.New(breaker.DefaultConfig("google-search"), logger), a.metrics)
	case config.ProviderSerpApi:
		engine = search.NewSerpApiSearchEngine(cfg.SerpApiKey,
			breaker.New(breaker.DefaultConfig("serpapi-search"), logger), a.metrics)
	default:
		return nil, fmt.Errorf("unknown search provider %q", cfg.SearchProvider)
	}

	if cfg.SearchCachePath == "" || cfg.SearchCacheTTL <= 0 {
		return engine, nil
	}
	cache, err := search.NewCachedSearchEngine(engine, cfg.SearchCachePath, cfg.SearchCacheTTL, logger, a.metrics)
	if err != nil {
		return nil, err
	}
	a.cache = cache
	a.closers = append(a.closers, cache.Close)
	return cache, nil
}

func (a *app) reportRepo(ctx context.Context, cfg *config.Config) (repository.ReportRepo, error) {
	if cfg.RedisURL == "" {
		return repository.NewMemoryReportRepo(), nil
	}
	client, err := redisdb.NewClient(ctx, cfg.RedisURL)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, client.Close)
	return redisdb.NewReportRepo(client, cfg.ReportTTL, logger), nil
}

// newChunker counts tokens with tiktoken when its encoding can be loaded and
// falls back to a character splitter when sentence data is unavailable.
func newChunker() chunking.Chunker {
	var counter chunking.TokenCounter = chunking.ApproxCounter{}
	if tk, err := chunking.NewTiktokenCounter(); err != nil {
		logger.Warn("tiktoken unavailable, approximating token counts", zap.Error(err))
	} else {
		counter = tk
	}

	chunker, err := chunking.NewSentenceChunker(checker.PassageTokens, counter)
	if err != nil {
		logger.Warn("sentence tokenizer unavailable, splitting by characters", zap.Error(err))
		return chunking.NewRecursiveCharacterChunker(checker.PassageTokens*4, 0)
	}
	return chunker
}
