package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"ghostwriter/checker"
	"ghostwriter/pkg/metrics"
	processor "ghostwriter/process"
	"ghostwriter/repository"
	"ghostwriter/search"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeService struct {
	checkReq    checker.CheckRequest
	generateReq checker.GenerateRequest
	uploadName  string
	uploadBody  string
	uploadMode  string
	err         error
	reports     map[string]*repository.Report
}

func newFakeService() *fakeService {
	return &fakeService{reports: map[string]*repository.Report{
		"r-1": {
			ID:        "r-1",
			CreatedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
			Source:    repository.SourceTyped,
			Mode:      checker.ModeSimilarity,
			Text:      "Some checked text.",
			Verdict:   repository.VerdictOriginal,
			Matches:   []repository.Match{},
		},
	}}
}

func (f *fakeService) result(text, source string) (*repository.Report, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &repository.Report{ID: "new", Text: text, Source: source, Verdict: repository.VerdictOriginal}, nil
}

func (f *fakeService) Check(_ context.Context, req checker.CheckRequest) (*repository.Report, error) {
	f.checkReq = req
	return f.result(req.Text, req.Source)
}

func (f *fakeService) Generate(_ context.Context, req checker.GenerateRequest) (*repository.Report, error) {
	f.generateReq = req
	return f.result("generated text", repository.SourceGenerated)
}

func (f *fakeService) CheckFile(_ context.Context, filename string, r io.Reader, mode string, _ *float64) (*repository.Report, error) {
	f.uploadName = filename
	f.uploadMode = mode
	data, _ := io.ReadAll(r)
	f.uploadBody = string(data)
	return f.result(string(data), repository.SourceUpload)
}

func (f *fakeService) Report(_ context.Context, id string) (*repository.Report, error) {
	if r, ok := f.reports[id]; ok {
		return r, nil
	}
	return nil, repository.ErrReportNotFound
}

func (f *fakeService) Reports(context.Context, int) ([]*repository.Report, error) {
	return []*repository.Report{f.reports["r-1"]}, nil
}

type fakeExtractor struct{}

func (fakeExtractor) Extract(_ context.Context, filename string, r io.Reader) (*processor.ExtractionResult, error) {
	if !strings.HasSuffix(filename, ".txt") {
		return nil, processor.ErrUnsupportedFile
	}
	data, _ := io.ReadAll(r)
	return &processor.ExtractionResult{Text: string(data), FileName: filename, Kind: processor.KindText}, nil
}

func newTestServer(svc *fakeService, maxUpload int64) http.Handler {
	return NewServer(svc, fakeExtractor{}, metrics.NewCollector("test"), zap.NewNop(), 0, maxUpload).Handler()
}

func doJSON(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func multipartRequest(t *testing.T, path, filename, content string, fields map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp.Error
}

func TestHealth(t *testing.T) {
	rec := doJSON(t, newTestServer(newFakeService(), 0), http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestCheckHandler(t *testing.T) {
	svc := newFakeService()
	h := newTestServer(svc, 0)

	rec := doJSON(t, h, http.MethodPost, "/api/check", `{"text":"hello world","mode":"results","threshold":0.7}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var report repository.Report
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&report))
	assert.Equal(t, "hello world", report.Text)
	assert.Equal(t, repository.SourceTyped, svc.checkReq.Source)
	assert.Equal(t, "results", svc.checkReq.Mode)
	require.NotNil(t, svc.checkReq.Threshold)
	assert.Equal(t, 0.7, *svc.checkReq.Threshold)
}

func TestHandlers_ModeIsCaseInsensitive(t *testing.T) {
	svc := newFakeService()
	h := newTestServer(svc, 0)

	rec := doJSON(t, h, http.MethodPost, "/api/check", `{"text":"hello","mode":" Results "}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, checker.ModeResults, svc.checkReq.Mode)

	rec = doJSON(t, h, http.MethodPost, "/api/generate", `{"prompt":"bees","mode":"SIMILARITY"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, checker.ModeSimilarity, svc.generateReq.Mode)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, multipartRequest(t, "/api/check/upload", "essay.txt", "essay body", map[string]string{"mode": "Results"}))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, checker.ModeResults, svc.uploadMode)
}

func TestCheckHandler_Validation(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"missing text", `{}`, "text is required"},
		{"bad mode", `{"text":"x","mode":"fuzzy"}`, "mode must be one of"},
		{"bad threshold", `{"text":"x","threshold":2}`, "threshold must be within"},
		{"bad json", `{"text":`, "invalid request body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, newTestServer(newFakeService(), 0), http.MethodPost, "/api/check", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, decodeError(t, rec), tt.wantErr)
		})
	}
}

func TestCheckHandler_ServiceErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"empty text", checker.ErrEmptyText, http.StatusBadRequest},
		{"search api", fmt.Errorf("%w: %w", checker.ErrSearchFailed, &search.APIError{Provider: "google", StatusCode: 429, Body: "rate"}), http.StatusBadGateway},
		{"generation off", checker.ErrGenerationUnavailable, http.StatusServiceUnavailable},
		{"timeout", context.DeadlineExceeded, http.StatusGatewayTimeout},
		{"other", errors.New("disk full"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newFakeService()
			svc.err = tt.err
			rec := doJSON(t, newTestServer(svc, 0), http.MethodPost, "/api/check", `{"text":"x"}`)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.err.Error(), decodeError(t, rec))
		})
	}
}

func TestGenerateHandler(t *testing.T) {
	svc := newFakeService()
	rec := doJSON(t, newTestServer(svc, 0), http.MethodPost, "/api/generate", `{"prompt":"write about bees"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "write about bees", svc.generateReq.Prompt)

	rec = doJSON(t, newTestServer(svc, 0), http.MethodPost, "/api/generate", `{"prompt":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "prompt is required", decodeError(t, rec))
}

func TestUploadHandler(t *testing.T) {
	svc := newFakeService()
	h := newTestServer(svc, 0)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, multipartRequest(t, "/api/check/upload", "essay.txt", "essay body", map[string]string{"mode": "similarity"}))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "essay.txt", svc.uploadName)
	assert.Equal(t, "essay body", svc.uploadBody)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, multipartRequest(t, "/api/check/upload", "essay.txt", "x", map[string]string{"mode": "fuzzy"}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, multipartRequest(t, "/api/check/upload", "essay.txt", "x", map[string]string{"threshold": "high"}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadHandler_TooLarge(t *testing.T) {
	h := newTestServer(newFakeService(), 16)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, multipartRequest(t, "/api/check/upload", "essay.txt", strings.Repeat("a", 64), nil))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestUploadHandler_MissingFile(t *testing.T) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("mode", "results"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/check/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	newTestServer(newFakeService(), 0).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "missing file field", decodeError(t, rec))
}

func TestExtractHandler(t *testing.T) {
	h := newTestServer(newFakeService(), 0)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, multipartRequest(t, "/api/extract", "notes.txt", "plain notes", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var result processor.ExtractionResult
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&result))
	assert.Equal(t, "plain notes", result.Text)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, multipartRequest(t, "/api/extract", "tool.exe", "MZ", nil))
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestReportHandlers(t *testing.T) {
	h := newTestServer(newFakeService(), 0)

	rec := doJSON(t, h, http.MethodGet, "/api/reports/r-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var report repository.Report
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&report))
	assert.Equal(t, "r-1", report.ID)

	rec = doJSON(t, h, http.MethodGet, "/api/reports/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/api/reports?limit=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list ReportList
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&list))
	assert.Len(t, list.Reports, 1)

	rec = doJSON(t, h, http.MethodGet, "/api/reports?limit=-1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReportDocxHandler(t *testing.T) {
	h := newTestServer(newFakeService(), 0)

	rec := doJSON(t, h, http.MethodGet, "/api/reports/r-1/docx", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, docxContentType, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "report-r-1.docx")
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")))

	rec = doJSON(t, h, http.MethodGet, "/api/reports/missing/docx", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	h := newTestServer(newFakeService(), 0)
	doJSON(t, h, http.MethodGet, "/health", "")

	rec := doJSON(t, h, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `test_http_requests_total{method="GET",route="/health",status="200"} 1`)
}
