package checker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"ghostwriter/crawler"
	"ghostwriter/generate"
	"ghostwriter/pkg/chunking"
	"ghostwriter/pkg/metrics"
	"ghostwriter/relevance"
	"ghostwriter/repository"
	"ghostwriter/search"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrEmptyText             = errors.New("Please enter a valid prompt.")
	ErrInvalidMode           = errors.New("invalid check mode")
	ErrInvalidThreshold      = errors.New("threshold must be within [0, 1]")
	ErrGenerationUnavailable = errors.New("text generation is not configured")
	ErrExtractionUnavailable = errors.New("file extraction is not configured")
	ErrSearchFailed          = errors.New("search failed")
	ErrGenerationFailed      = errors.New("generation failed")
)

type CheckRequest struct {
	Text      string
	Source    string
	Mode      string
	Threshold *float64
	FileName  string
}

type GenerateRequest struct {
	Prompt    string
	Mode      string
	Threshold *float64
}

// Service runs originality checks: it searches the web for the text and
// scores every result against it.
type Service struct {
	opts Options

	engine  search.SearchEngine
	queries *search.QueryBuilder
	lexical relevance.Scorer
	reports repository.ReportRepo

	chunker   chunking.Chunker
	semantic  *relevance.SemanticScorer
	fetcher   PageFetcher
	archive   repository.ArchiveRepo
	generator generate.Generator
	extractor Extractor
	metrics   *metrics.Collector
	logger    *zap.Logger

	now   func() time.Time
	newID func() string
}

func NewService(engine search.SearchEngine, reports repository.ReportRepo, opts Options, logger *zap.Logger, options ...Option) (*Service, error) {
	defaults := DefaultOptions()
	if opts.Mode == "" {
		opts.Mode = defaults.Mode
	}
	if opts.MaxResults <= 0 {
		opts.MaxResults = defaults.MaxResults
	}
	if opts.MaxPassages <= 0 {
		opts.MaxPassages = defaults.MaxPassages
	}
	if opts.QueryMode == "" {
		opts.QueryMode = defaults.QueryMode
	}
	if opts.ArchiveLimit <= 0 {
		opts.ArchiveLimit = defaults.ArchiveLimit
	}
	if opts.ArchiveMinScore <= 0 {
		opts.ArchiveMinScore = defaults.ArchiveMinScore
	}
	if opts.SemanticThreshold <= 0 {
		opts.SemanticThreshold = defaults.SemanticThreshold
	}
	if err := validateMode(opts.Mode); err != nil {
		return nil, err
	}
	if opts.Threshold < 0 || opts.Threshold > 1 || opts.SemanticThreshold > 1 {
		return nil, ErrInvalidThreshold
	}

	s := &Service{
		opts:    opts,
		engine:  engine,
		queries: search.NewQueryBuilder(opts.QueryMode, search.NewRAKEExtractor()),
		lexical: relevance.NewLexicalScorer(),
		reports: reports,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
		newID:   uuid.NewString,
	}
	for _, o := range options {
		o(s)
	}

	if s.chunker == nil {
		chunker, err := chunking.NewSentenceChunker(PassageTokens, chunking.ApproxCounter{})
		if err != nil {
			return nil, err
		}
		s.chunker = chunker
	}
	return s, nil
}

// Check searches the web for the text and records a report.
func (s *Service) Check(ctx context.Context, req CheckRequest) (*repository.Report, error) {
	return s.check(ctx, req, "")
}

// Generate asks the model for text and checks what it wrote.
func (s *Service) Generate(ctx context.Context, req GenerateRequest) (*repository.Report, error) {
	if s.generator == nil {
		return nil, ErrGenerationUnavailable
	}
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return nil, ErrEmptyText
	}
	// reject bad options before spending a model call
	if _, err := s.resolveMode(req.Mode); err != nil {
		return nil, err
	}
	if _, err := s.resolveThreshold(req.Threshold); err != nil {
		return nil, err
	}

	text, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGenerationFailed, err)
	}
	s.logger.Info("generated text",
		zap.Int("prompt_chars", len(prompt)),
		zap.Int("text_chars", len(text)))

	return s.check(ctx, CheckRequest{
		Text:      text,
		Source:    repository.SourceGenerated,
		Mode:      req.Mode,
		Threshold: req.Threshold,
	}, prompt)
}

// CheckFile extracts the text of an uploaded file and checks it.
func (s *Service) CheckFile(ctx context.Context, filename string, r io.Reader, mode string, threshold *float64) (*repository.Report, error) {
	if s.extractor == nil {
		return nil, ErrExtractionUnavailable
	}
	extracted, err := s.extractor.Extract(ctx, filename, r)
	if err != nil {
		return nil, err
	}
	return s.check(ctx, CheckRequest{
		Text:      extracted.Text,
		Source:    repository.SourceUpload,
		Mode:      mode,
		Threshold: threshold,
		FileName:  filename,
	}, "")
}

func (s *Service) Report(ctx context.Context, id string) (*repository.Report, error) {
	return s.reports.Get(ctx, id)
}

func (s *Service) Reports(ctx context.Context, limit int) ([]*repository.Report, error) {
	return s.reports.List(ctx, limit)
}

func (s *Service) check(ctx context.Context, req CheckRequest, prompt string) (*repository.Report, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, ErrEmptyText
	}
	mode, err := s.resolveMode(req.Mode)
	if err != nil {
		return nil, err
	}
	threshold, err := s.resolveThreshold(req.Threshold)
	if err != nil {
		return nil, err
	}
	source := req.Source
	if source == "" {
		source = repository.SourceTyped
	}

	start := time.Now()
	queries := s.buildQueries(text)

	results, err := s.searchAll(ctx, queries)
	if err != nil {
		return nil, err
	}

	matches, err := s.score(ctx, text, results, mode, threshold)
	if err != nil {
		return nil, err
	}

	report := &repository.Report{
		ID:        s.newID(),
		CreatedAt: s.now(),
		Source:    source,
		Mode:      mode,
		Prompt:    prompt,
		FileName:  req.FileName,
		Text:      text,
		Queries:   queries,
		Threshold: threshold,
	}

	vector := s.embed(ctx, text)
	matches = append(matches, s.archiveMatches(ctx, text, vector, mode, threshold)...)
	report.Matches = matches

	report.Verdict = repository.VerdictOriginal
	for _, m := range matches {
		if m.Similar {
			report.Verdict = repository.VerdictSimilar
			break
		}
	}

	report.Archived = s.store(ctx, report, vector)

	if err := s.reports.Save(ctx, report); err != nil {
		return nil, fmt.Errorf("failed to save report: %w", err)
	}

	s.metrics.ObserveCheck(source, report.Verdict)
	s.logger.Info("check completed",
		zap.String("report_id", report.ID),
		zap.String("source", source),
		zap.String("mode", mode),
		zap.Int("queries", len(queries)),
		zap.Int("results", len(results)),
		zap.Int("similar", report.SimilarCount()),
		zap.String("verdict", report.Verdict),
		zap.Duration("elapsed", time.Since(start)))

	return report, nil
}

func (s *Service) resolveMode(mode string) (string, error) {
	mode = strings.ToLower(strings.TrimSpace(mode))
	if mode == "" {
		return s.opts.Mode, nil
	}
	return mode, validateMode(mode)
}

func (s *Service) resolveThreshold(threshold *float64) (float64, error) {
	if threshold == nil {
		return s.opts.Threshold, nil
	}
	if *threshold < 0 || *threshold > 1 {
		return 0, ErrInvalidThreshold
	}
	return *threshold, nil
}

func validateMode(mode string) error {
	switch mode {
	case ModeSimilarity, ModeResults:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidMode, mode)
	}
}

// buildQueries returns one query per passage, at most MaxPassages.
func (s *Service) buildQueries(text string) []string {
	passages, err := s.chunker.Split(text)
	if err != nil || len(passages) == 0 {
		if err != nil {
			s.logger.Warn("failed to split text, searching it whole", zap.Error(err))
		}
		passages = []string{text}
	}

	seen := make(map[string]struct{}, len(passages))
	queries := make([]string, 0, s.opts.MaxPassages)
	for _, p := range passages {
		if len(queries) == s.opts.MaxPassages {
			break
		}
		q := s.queries.Build(p)
		if q == "" {
			continue
		}
		if _, ok := seen[q]; ok {
			continue
		}
		seen[q] = struct{}{}
		queries = append(queries, q)
	}
	return queries
}

func (s *Service) searchAll(ctx context.Context, queries []string) ([]search.SearchResult, error) {
	var all []search.SearchResult
	for _, q := range queries {
		results, err := s.engine.Search(ctx, &search.SearchRequest{
			Query:      q,
			MaxResults: s.opts.MaxResults,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrSearchFailed, err)
		}
		all = append(all, results...)
	}

	all = search.Dedupe(all)
	if len(all) > s.opts.MaxResults {
		all = all[:s.opts.MaxResults]
	}
	return all, nil
}

func (s *Service) score(ctx context.Context, text string, results []search.SearchResult, mode string, threshold float64) ([]repository.Match, error) {
	matches := make([]repository.Match, 0, len(results))
	if len(results) == 0 {
		return matches, nil
	}

	pages := s.fetchPages(ctx, results)

	candidates := make([]string, len(results))
	for i, r := range results {
		candidates[i] = strings.TrimSpace(r.Title + " " + r.Description)
		if page, ok := pages[r.URL]; ok && !page.IsBoilerplate && page.Text != "" {
			candidates[i] += " " + page.Text
		}
	}

	lexical, err := s.lexical.Score(ctx, text, candidates)
	if err != nil {
		return nil, fmt.Errorf("failed to score results: %w", err)
	}

	var semantic []float64
	if s.semantic != nil {
		semantic, err = s.semantic.Score(ctx, text, candidates)
		if err != nil {
			s.logger.Warn("semantic scoring failed, using lexical scores only", zap.Error(err))
			semantic = nil
		}
	}

	phrases := relevance.NewPhraseMatcher(text, relevance.DefaultShingleSize)

	for i, r := range results {
		overlap := phrases.Match(candidates[i])
		m := repository.Match{
			Title:         r.Title,
			URL:           r.URL,
			Snippet:       r.Description,
			LexicalScore:  lexical[i],
			Score:         lexical[i],
			SharedPhrases: overlap.Phrases,
			PhraseOverlap: overlap.Fraction,
		}
		if page, ok := pages[r.URL]; ok && !page.IsBoilerplate {
			m.PageFetched = true
		}
		if semantic != nil {
			m.SemanticScore = semantic[i]
			if semantic[i] > m.Score {
				m.Score = semantic[i]
			}
		}
		m.Similar = s.isSimilar(mode, threshold, m.LexicalScore, m.SemanticScore)
		matches = append(matches, m)
	}
	return matches, nil
}

// isSimilar holds TF-IDF to the check threshold and embedding cosine to the
// larger of that and SemanticThreshold.
func (s *Service) isSimilar(mode string, threshold, lexical, semantic float64) bool {
	if mode == ModeResults {
		return true
	}
	return lexical >= threshold || semantic >= max(threshold, s.opts.SemanticThreshold)
}

func (s *Service) fetchPages(ctx context.Context, results []search.SearchResult) map[string]*crawler.Page {
	if s.fetcher == nil {
		return nil
	}
	urls := make([]string, len(results))
	for i, r := range results {
		urls[i] = r.URL
	}
	return s.fetcher.Fetch(ctx, urls)
}

// embed returns nil when semantic scoring is not configured or fails.
func (s *Service) embed(ctx context.Context, text string) []float32 {
	if s.semantic == nil || s.archive == nil {
		return nil
	}
	vector, err := s.semantic.Embed(ctx, text)
	if err != nil {
		s.logger.Warn("failed to embed text for archive", zap.Error(err))
		return nil
	}
	return vector
}

// archiveMatches reports earlier submissions close to the text. The text's
// own archive entry, left by checking it before, is not a match.
func (s *Service) archiveMatches(ctx context.Context, text string, vector []float32, mode string, threshold float64) []repository.Match {
	if vector == nil {
		return nil
	}
	// One extra hit covers the text's own entry.
	hits, err := s.archive.Similar(ctx, vector, s.opts.ArchiveMinScore, s.opts.ArchiveLimit+1)
	if err != nil {
		s.logger.Warn("archive lookup failed", zap.Error(err))
		return nil
	}

	self := repository.ArchiveID(text)
	matches := make([]repository.Match, 0, len(hits))
	for _, h := range hits {
		if h.ID == self {
			continue
		}
		if len(matches) == s.opts.ArchiveLimit {
			break
		}
		score := float64(h.Score)
		matches = append(matches, repository.Match{
			Title:         "Previously checked text (report " + h.ReportID + ")",
			URL:           "archive://" + h.ID,
			Snippet:       snippet(h.Text, 300),
			Score:         score,
			SemanticScore: score,
			Similar:       s.isSimilar(mode, threshold, 0, score),
		})
	}
	return matches
}

func (s *Service) store(ctx context.Context, report *repository.Report, vector []float32) bool {
	if vector == nil {
		return false
	}
	_, err := s.archive.Store(ctx, &repository.ArchivedText{
		ReportID:   report.ID,
		Text:       report.Text,
		Source:     report.Source,
		Embedding:  vector,
		ArchivedAt: report.CreatedAt,
	})
	if err != nil {
		s.logger.Warn("failed to archive text", zap.String("report_id", report.ID), zap.Error(err))
		return false
	}
	return true
}

func snippet(text string, max int) string {
	runes := []rune(strings.TrimSpace(text))
	if len(runes) <= max {
		return string(runes)
	}
	return string(runes[:max]) + "…"
}
