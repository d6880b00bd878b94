package repository

import (
	"context"
	"errors"
	"time"
)

const (
	SourceTyped     = "typed"
	SourceGenerated = "generated"
	SourceUpload    = "upload"

	VerdictSimilar  = "similar_content_found"
	VerdictOriginal = "original"
)

var ErrReportNotFound = errors.New("report not found")

type ReportRepo interface {
	Save(ctx context.Context, report *Report) error
	Get(ctx context.Context, id string) (*Report, error)
	// List returns the most recent reports first.
	List(ctx context.Context, limit int) ([]*Report, error)
}

type Report struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Source    string    `json:"source"`
	Mode      string    `json:"mode"`
	Prompt    string    `json:"prompt,omitempty"`
	FileName  string    `json:"file_name,omitempty"`
	Text      string    `json:"text"`
	Queries   []string  `json:"queries"`
	Threshold float64   `json:"threshold"`
	Matches   []Match   `json:"matches"`
	Verdict   string    `json:"verdict"`
	Archived  bool      `json:"archived"`
}

type Match struct {
	Title         string   `json:"title"`
	URL           string   `json:"url"`
	Snippet       string   `json:"snippet"`
	Score         float64  `json:"score"`
	LexicalScore  float64  `json:"lexical_score"`
	SemanticScore float64  `json:"semantic_score,omitempty"`
	SharedPhrases []string `json:"shared_phrases,omitempty"`
	PhraseOverlap float64  `json:"phrase_overlap"`
	PageFetched   bool     `json:"page_fetched,omitempty"`
	Similar       bool     `json:"similar"`
}

// SimilarCount returns how many matches crossed the similarity bar.
func (r *Report) SimilarCount() int {
	n := 0
	for _, m := range r.Matches {
		if m.Similar {
			n++
		}
	}
	return n
}
