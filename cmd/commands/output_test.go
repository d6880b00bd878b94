package commands

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"ghostwriter/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleReport() *repository.Report {
	return &repository.Report{
		ID:        "r-42",
		Mode:      "similarity",
		Prompt:    "write about tides",
		Text:      "Tides follow the moon.",
		Threshold: 0.5,
		Verdict:   repository.VerdictSimilar,
		Matches: []repository.Match{
			{Title: "Tides", URL: "https://example.com/tides", Score: 0.91, Similar: true, SharedPhrases: []string{"tides follow the moon"}},
			{Title: "Boats", URL: "https://example.com/boats", Score: 0.12},
		},
	}
}

func TestWriteReport_Text(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeReport(&buf, sampleReport(), &reportFlags{}))

	out := buf.String()
	assert.Contains(t, out, "Generated text:\nTides follow the moon.")
	assert.Contains(t, out, "Similar content found (1 of 2 results")
	assert.Contains(t, out, "* 1. Tides")
	assert.Contains(t, out, "  2. Boats")
	assert.Contains(t, out, "1 shared phrase(s)")
	assert.Contains(t, out, "Report r-42")
}

func TestWriteReport_NoMatches(t *testing.T) {
	report := &repository.Report{ID: "r-1", Verdict: repository.VerdictOriginal}

	var buf bytes.Buffer
	require.NoError(t, writeReport(&buf, report, &reportFlags{}))
	assert.Contains(t, buf.String(), "No similar content found.")
}

func TestWriteReport_JSONAndDocx(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.docx")

	var buf bytes.Buffer
	require.NoError(t, writeReport(&buf, sampleReport(), &reportFlags{json: true, docx: path}))

	var decoded repository.Report
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "r-42", decoded.ID)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestThresholdPtr(t *testing.T) {
	f := &reportFlags{threshold: 0.8}
	assert.Nil(t, f.thresholdPtr(false))
	require.NotNil(t, f.thresholdPtr(true))
	assert.Equal(t, 0.8, *f.thresholdPtr(true))
}
