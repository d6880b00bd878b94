package checker

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"ghostwriter/crawler"
	processor "ghostwriter/process"
	"ghostwriter/relevance"
	"ghostwriter/repository"
	"ghostwriter/search"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const sampleText = "Solar panels convert sunlight into electricity using photovoltaic cells made of silicon."

type fakeEngine struct {
	results  map[string][]search.SearchResult
	fallback []search.SearchResult
	err      error
	queries  []string
}

func (f *fakeEngine) Name() string { return "fake" }

func (f *fakeEngine) Search(_ context.Context, req *search.SearchRequest) ([]search.SearchResult, error) {
	f.queries = append(f.queries, req.Query)
	if f.err != nil {
		return nil, f.err
	}
	if r, ok := f.results[req.Query]; ok {
		return r, nil
	}
	return f.fallback, nil
}

type fakeChunker struct{ passages []string }

func (f fakeChunker) Split(string) ([]string, error) { return f.passages, nil }

type fakeGenerator struct {
	text   string
	err    error
	prompt string
}

func (f *fakeGenerator) Generate(_ context.Context, prompt string) (string, error) {
	f.prompt = prompt
	return f.text, f.err
}

type fakeFetcher struct{ pages map[string]*crawler.Page }

func (f fakeFetcher) Fetch(context.Context, []string) map[string]*crawler.Page { return f.pages }

type constEmbedder struct{}

func (constEmbedder) GetEmbeddings(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0}
	}
	return out, nil
}

// topicEmbedder maps sampleText to one axis and every other text to other.
type topicEmbedder struct{ other []float32 }

func (e topicEmbedder) GetEmbeddings(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = e.other
		if text == sampleText {
			out[i] = []float32{1, 0}
		}
	}
	return out, nil
}

// memoryArchive keys texts by repository.ArchiveID like the qdrant archive
// and returns every stored text as a perfect hit.
type memoryArchive struct {
	docs map[string]*repository.ArchivedText
}

func (m *memoryArchive) Store(_ context.Context, doc *repository.ArchivedText) (string, error) {
	if m.docs == nil {
		m.docs = make(map[string]*repository.ArchivedText)
	}
	id := repository.ArchiveID(doc.Text)
	m.docs[id] = doc
	return id, nil
}

func (m *memoryArchive) Similar(_ context.Context, _ []float32, _ float32, limit int) ([]repository.ArchivedMatch, error) {
	var hits []repository.ArchivedMatch
	for id, doc := range m.docs {
		if len(hits) == limit {
			break
		}
		hits = append(hits, repository.ArchivedMatch{ID: id, ReportID: doc.ReportID, Text: doc.Text, Score: 1})
	}
	return hits, nil
}

type fakeArchive struct {
	hits   []repository.ArchivedMatch
	stored []*repository.ArchivedText
}

func (f *fakeArchive) Store(_ context.Context, doc *repository.ArchivedText) (string, error) {
	f.stored = append(f.stored, doc)
	return "point-1", nil
}

func (f *fakeArchive) Similar(context.Context, []float32, float32, int) ([]repository.ArchivedMatch, error) {
	return f.hits, nil
}

type fakeExtractor struct{ text string }

func (f fakeExtractor) Extract(_ context.Context, filename string, r io.Reader) (*processor.ExtractionResult, error) {
	if !strings.HasSuffix(filename, ".txt") {
		return nil, processor.ErrUnsupportedFile
	}
	return &processor.ExtractionResult{Text: f.text, FileName: filename, Kind: processor.KindText}, nil
}

func newTestService(t *testing.T, engine search.SearchEngine, opts Options, options ...Option) (*Service, *repository.MemoryReportRepo) {
	t.Helper()
	repo := repository.NewMemoryReportRepo()
	svc, err := NewService(engine, repo, opts, zap.NewNop(), options...)
	require.NoError(t, err)
	return svc, repo
}

func sampleResults() []search.SearchResult {
	return []search.SearchResult{
		{URL: "https://example.com/solar", Title: "Solar basics", Description: sampleText},
		{URL: "https://example.com/cake", Title: "Chocolate cake", Description: "Bake a chocolate cake with butter, flour and sugar."},
	}
}

func TestCheck_EmptyText(t *testing.T) {
	svc, _ := newTestService(t, &fakeEngine{}, DefaultOptions())

	_, err := svc.Check(context.Background(), CheckRequest{Text: "  \n\t "})
	assert.ErrorIs(t, err, ErrEmptyText)
	assert.Equal(t, "Please enter a valid prompt.", err.Error())
}

func TestCheck_SimilarityMode(t *testing.T) {
	engine := &fakeEngine{fallback: sampleResults()}
	svc, repo := newTestService(t, engine, DefaultOptions())

	report, err := svc.Check(context.Background(), CheckRequest{Text: "  " + sampleText + "  "})
	require.NoError(t, err)

	assert.Equal(t, sampleText, report.Text)
	assert.Equal(t, repository.SourceTyped, report.Source)
	assert.Equal(t, ModeSimilarity, report.Mode)
	assert.Equal(t, repository.VerdictSimilar, report.Verdict)
	require.Len(t, report.Matches, 2)

	solar, cake := report.Matches[0], report.Matches[1]
	assert.True(t, solar.Similar)
	assert.Greater(t, solar.Score, 0.8)
	assert.NotEmpty(t, solar.SharedPhrases)
	assert.False(t, cake.Similar)
	assert.InDelta(t, 0, cake.Score, 1e-9)

	stored, err := repo.Get(context.Background(), report.ID)
	require.NoError(t, err)
	assert.Equal(t, report, stored)
}

func TestCheck_ThresholdOverride(t *testing.T) {
	engine := &fakeEngine{fallback: sampleResults()}
	svc, _ := newTestService(t, engine, DefaultOptions())

	strict := 1.0
	report, err := svc.Check(context.Background(), CheckRequest{
		Text:      "Photovoltaic cells made of silicon power homes across sunny regions.",
		Threshold: &strict,
	})
	require.NoError(t, err)
	assert.Equal(t, 1.0, report.Threshold)
	assert.Equal(t, repository.VerdictOriginal, report.Verdict)
}

func TestCheck_ResultsMode(t *testing.T) {
	engine := &fakeEngine{fallback: sampleResults()[1:]}
	svc, _ := newTestService(t, engine, DefaultOptions())

	report, err := svc.Check(context.Background(), CheckRequest{Text: sampleText, Mode: "Results"})
	require.NoError(t, err)

	assert.Equal(t, ModeResults, report.Mode)
	require.Len(t, report.Matches, 1)
	assert.True(t, report.Matches[0].Similar)
	assert.Equal(t, repository.VerdictSimilar, report.Verdict)
}

func TestCheck_NoResults(t *testing.T) {
	svc, _ := newTestService(t, &fakeEngine{}, DefaultOptions())

	report, err := svc.Check(context.Background(), CheckRequest{Text: sampleText, Mode: ModeResults})
	require.NoError(t, err)
	assert.Equal(t, repository.VerdictOriginal, report.Verdict)
	assert.NotNil(t, report.Matches)
	assert.Empty(t, report.Matches)
}

func TestCheck_SearchError(t *testing.T) {
	apiErr := &search.APIError{Provider: "google", StatusCode: 403, Body: "quota"}
	svc, repo := newTestService(t, &fakeEngine{err: apiErr}, DefaultOptions())

	_, err := svc.Check(context.Background(), CheckRequest{Text: sampleText})
	require.Error(t, err)

	var target *search.APIError
	assert.True(t, errors.As(err, &target))
	assert.ErrorIs(t, err, ErrSearchFailed)
	assert.Contains(t, err.Error(), "403 - quota")

	reports, err := repo.List(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, reports)
}

func TestCheck_InvalidOptions(t *testing.T) {
	svc, _ := newTestService(t, &fakeEngine{}, DefaultOptions())

	_, err := svc.Check(context.Background(), CheckRequest{Text: sampleText, Mode: "fuzzy"})
	assert.ErrorIs(t, err, ErrInvalidMode)

	bad := 1.5
	_, err = svc.Check(context.Background(), CheckRequest{Text: sampleText, Threshold: &bad})
	assert.ErrorIs(t, err, ErrInvalidThreshold)

	_, err = NewService(&fakeEngine{}, repository.NewMemoryReportRepo(), Options{Mode: "fuzzy"}, zap.NewNop())
	assert.ErrorIs(t, err, ErrInvalidMode)
}

func TestCheck_PassagesAndMerging(t *testing.T) {
	passages := []string{"first passage", "second passage", "first passage", "third passage", "fourth passage"}
	engine := &fakeEngine{results: map[string][]search.SearchResult{
		"first passage": {
			{URL: "https://a.example", Title: "A"},
			{URL: "https://b.example", Title: "B"},
		},
		"second passage": {
			{URL: "https://b.example", Title: "B again"},
			{URL: "https://c.example", Title: "C"},
		},
		"third passage": {
			{URL: "https://d.example", Title: "D"},
		},
	}}
	opts := DefaultOptions()
	opts.MaxResults = 3
	svc, _ := newTestService(t, engine, opts, WithChunker(fakeChunker{passages: passages}))

	report, err := svc.Check(context.Background(), CheckRequest{Text: "first passage second passage"})
	require.NoError(t, err)

	assert.Equal(t, []string{"first passage", "second passage", "third passage"}, engine.queries)
	assert.Equal(t, engine.queries, report.Queries)

	var urls []string
	for _, m := range report.Matches {
		urls = append(urls, m.URL)
	}
	assert.Equal(t, []string{"https://a.example", "https://b.example", "https://c.example"}, urls)
	assert.Equal(t, "B", report.Matches[1].Title)
}

func TestCheck_DefaultChunkerQueriesLeadingWords(t *testing.T) {
	words := make([]string, 40)
	for i := range words {
		words[i] = "word"
	}
	engine := &fakeEngine{}
	svc, _ := newTestService(t, engine, DefaultOptions())

	_, err := svc.Check(context.Background(), CheckRequest{Text: strings.Join(words, " ") + "."})
	require.NoError(t, err)
	require.Len(t, engine.queries, 1)
	assert.Len(t, strings.Fields(engine.queries[0]), search.MaxQueryWords)
}

func TestCheck_FetchedPages(t *testing.T) {
	results := []search.SearchResult{
		{URL: "https://full.example", Title: "Page", Description: "Click here for more"},
		{URL: "https://junk.example", Title: "Page", Description: "Click here for more"},
	}
	fetcher := fakeFetcher{pages: map[string]*crawler.Page{
		"https://full.example": {URL: "https://full.example", Text: sampleText},
		"https://junk.example": {URL: "https://junk.example", Text: sampleText, IsBoilerplate: true},
	}}
	svc, _ := newTestService(t, &fakeEngine{fallback: results}, DefaultOptions(), WithFetcher(fetcher))

	report, err := svc.Check(context.Background(), CheckRequest{Text: sampleText})
	require.NoError(t, err)
	require.Len(t, report.Matches, 2)

	assert.True(t, report.Matches[0].PageFetched)
	assert.True(t, report.Matches[0].Similar)
	assert.False(t, report.Matches[1].PageFetched)
	assert.False(t, report.Matches[1].Similar)
}

func TestCheck_SemanticAndArchive(t *testing.T) {
	archive := &fakeArchive{hits: []repository.ArchivedMatch{
		{ID: "abc", ReportID: "old-report", Text: sampleText, Score: 0.97},
	}}
	engine := &fakeEngine{fallback: sampleResults()[1:]}
	svc, _ := newTestService(t, engine, DefaultOptions(),
		WithSemanticScorer(relevance.NewSemanticScorer(constEmbedder{}, 0)),
		WithArchive(archive))
	svc.newID = func() string { return "new-report" }

	report, err := svc.Check(context.Background(), CheckRequest{Text: sampleText})
	require.NoError(t, err)
	require.Len(t, report.Matches, 2)

	web := report.Matches[0]
	assert.InDelta(t, 1, web.SemanticScore, 1e-6)
	assert.InDelta(t, 1, web.Score, 1e-6)
	assert.True(t, web.Similar)

	prior := report.Matches[1]
	assert.Equal(t, "archive://abc", prior.URL)
	assert.Contains(t, prior.Title, "old-report")
	assert.True(t, prior.Similar)

	assert.True(t, report.Archived)
	require.Len(t, archive.stored, 1)
	assert.Equal(t, "new-report", archive.stored[0].ReportID)
	assert.Equal(t, sampleText, archive.stored[0].Text)
}

func TestCheck_RecheckIgnoresOwnArchiveEntry(t *testing.T) {
	archive := &memoryArchive{}
	svc, _ := newTestService(t, &fakeEngine{}, DefaultOptions(),
		WithSemanticScorer(relevance.NewSemanticScorer(constEmbedder{}, 0)),
		WithArchive(archive))

	first, err := svc.Check(context.Background(), CheckRequest{Text: sampleText})
	require.NoError(t, err)
	assert.Equal(t, repository.VerdictOriginal, first.Verdict)
	assert.True(t, first.Archived)

	second, err := svc.Check(context.Background(), CheckRequest{Text: "\n" + sampleText + "  "})
	require.NoError(t, err)
	assert.Empty(t, second.Matches)
	assert.Equal(t, repository.VerdictOriginal, second.Verdict)
	assert.Len(t, archive.docs, 1)

	other, err := svc.Check(context.Background(), CheckRequest{Text: "Wind turbines turn moving air into electricity."})
	require.NoError(t, err)
	require.Len(t, other.Matches, 1)
	assert.Equal(t, "archive://"+repository.ArchiveID(sampleText), other.Matches[0].URL)
	assert.Equal(t, repository.VerdictSimilar, other.Verdict)
}

func TestCheck_SemanticThreshold(t *testing.T) {
	tests := []struct {
		name    string
		other   []float32
		similar bool
	}{
		{"related topic", []float32{0.8, 0.6}, false},
		{"same meaning", []float32{0.96, 0.28}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := &fakeEngine{fallback: sampleResults()[1:]}
			svc, _ := newTestService(t, engine, DefaultOptions(),
				WithSemanticScorer(relevance.NewSemanticScorer(topicEmbedder{other: tt.other}, 0)))

			report, err := svc.Check(context.Background(), CheckRequest{Text: sampleText})
			require.NoError(t, err)
			require.Len(t, report.Matches, 1)

			m := report.Matches[0]
			assert.InDelta(t, 0, m.LexicalScore, 1e-9)
			assert.Greater(t, m.SemanticScore, DefaultThreshold)
			assert.Equal(t, m.SemanticScore, m.Score)
			assert.Equal(t, tt.similar, m.Similar)
		})
	}
}

func TestGenerate(t *testing.T) {
	gen := &fakeGenerator{text: "  " + sampleText + "\n"}
	svc, _ := newTestService(t, &fakeEngine{fallback: sampleResults()}, DefaultOptions(), WithGenerator(gen))

	report, err := svc.Generate(context.Background(), GenerateRequest{Prompt: " Write about solar panels "})
	require.NoError(t, err)

	assert.Equal(t, "Write about solar panels", gen.prompt)
	assert.Equal(t, "Write about solar panels", report.Prompt)
	assert.Equal(t, sampleText, report.Text)
	assert.Equal(t, repository.SourceGenerated, report.Source)
	assert.Equal(t, repository.VerdictSimilar, report.Verdict)
}

func TestGenerate_Errors(t *testing.T) {
	svc, _ := newTestService(t, &fakeEngine{}, DefaultOptions())
	_, err := svc.Generate(context.Background(), GenerateRequest{Prompt: "hi"})
	assert.ErrorIs(t, err, ErrGenerationUnavailable)

	boom := errors.New("model down")
	gen := &fakeGenerator{err: boom}
	svc, _ = newTestService(t, &fakeEngine{}, DefaultOptions(), WithGenerator(gen))

	_, err = svc.Generate(context.Background(), GenerateRequest{Prompt: ""})
	assert.ErrorIs(t, err, ErrEmptyText)
	assert.Empty(t, gen.prompt)

	_, err = svc.Generate(context.Background(), GenerateRequest{Prompt: "hi", Mode: "fuzzy"})
	assert.ErrorIs(t, err, ErrInvalidMode)

	_, err = svc.Generate(context.Background(), GenerateRequest{Prompt: "hi"})
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, err, ErrGenerationFailed)
}

func TestCheckFile(t *testing.T) {
	svc, _ := newTestService(t, &fakeEngine{fallback: sampleResults()}, DefaultOptions(),
		WithExtractor(fakeExtractor{text: sampleText}))

	report, err := svc.CheckFile(context.Background(), "essay.txt", strings.NewReader("ignored"), "", nil)
	require.NoError(t, err)
	assert.Equal(t, repository.SourceUpload, report.Source)
	assert.Equal(t, "essay.txt", report.FileName)

	_, err = svc.CheckFile(context.Background(), "essay.exe", strings.NewReader(""), "", nil)
	assert.ErrorIs(t, err, processor.ErrUnsupportedFile)
}

func TestReports(t *testing.T) {
	svc, _ := newTestService(t, &fakeEngine{}, DefaultOptions())

	report, err := svc.Check(context.Background(), CheckRequest{Text: sampleText})
	require.NoError(t, err)

	got, err := svc.Report(context.Background(), report.ID)
	require.NoError(t, err)
	assert.Equal(t, report.ID, got.ID)

	_, err = svc.Report(context.Background(), "nope")
	assert.ErrorIs(t, err, repository.ErrReportNotFound)

	list, err := svc.Reports(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
