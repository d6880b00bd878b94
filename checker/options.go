package checker

import (
	"context"
	"io"

	"ghostwriter/crawler"
	"ghostwriter/generate"
	"ghostwriter/pkg/chunking"
	"ghostwriter/pkg/metrics"
	processor "ghostwriter/process"
	"ghostwriter/relevance"
	"ghostwriter/repository"
)

const (
	ModeSimilarity = "similarity"
	ModeResults    = "results"

	DefaultThreshold         = 0.5
	DefaultSemanticThreshold = 0.85
	DefaultMaxResults        = 5
	DefaultMaxPassages       = 3

	// PassageTokens keeps a passage near the 32 words a query can carry.
	PassageTokens = 48
)

type Options struct {
	Mode        string
	Threshold   float64
	MaxResults  int
	MaxPassages int
	QueryMode   string

	// SemanticThreshold is the embedding cosine a result needs to count as
	// similar on meaning alone.
	SemanticThreshold float64

	// ArchiveMinScore is the embedding cosine an archived text needs to be
	// reported at all.
	ArchiveMinScore float32
	ArchiveLimit    int
}

func DefaultOptions() Options {
	return Options{
		Mode:              ModeSimilarity,
		Threshold:         DefaultThreshold,
		SemanticThreshold: DefaultSemanticThreshold,
		MaxResults:        DefaultMaxResults,
		MaxPassages:       DefaultMaxPassages,
		QueryMode:         "phrase",
		ArchiveMinScore:   0.85,
		ArchiveLimit:      3,
	}
}

// PageFetcher downloads full result pages for deeper comparison.
type PageFetcher interface {
	Fetch(ctx context.Context, urls []string) map[string]*crawler.Page
}

// Extractor turns uploaded files into text.
type Extractor interface {
	Extract(ctx context.Context, filename string, r io.Reader) (*processor.ExtractionResult, error)
}

type Option func(*Service)

func WithChunker(c chunking.Chunker) Option {
	return func(s *Service) { s.chunker = c }
}

func WithSemanticScorer(sc *relevance.SemanticScorer) Option {
	return func(s *Service) { s.semantic = sc }
}

func WithFetcher(f PageFetcher) Option {
	return func(s *Service) { s.fetcher = f }
}

func WithArchive(a repository.ArchiveRepo) Option {
	return func(s *Service) { s.archive = a }
}

func WithGenerator(g generate.Generator) Option {
	return func(s *Service) { s.generator = g }
}

func WithExtractor(e Extractor) Option {
	return func(s *Service) { s.extractor = e }
}

func WithMetrics(m *metrics.Collector) Option {
	return func(s *Service) { s.metrics = m }
}
