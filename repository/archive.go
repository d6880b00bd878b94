package repository

import (
	"context"
	"crypto/sha256"
	"strings"
	"time"

	"github.com/google/uuid"
)

var archiveNamespace = uuid.MustParse("6f1c8a52-3d0e-4b7a-9c1e-2a5d4f8b7e10")

type ArchiveRepo interface {
	Store(ctx context.Context, doc *ArchivedText) (string, error)
	Similar(ctx context.Context, vector []float32, minScore float32, limit int) ([]ArchivedMatch, error)
}

type ArchivedText struct {
	ReportID   string    `json:"report_id"`
	Text       string    `json:"text"`
	Source     string    `json:"source"`
	Embedding  []float32 `json:"-"`
	ArchivedAt time.Time `json:"archived_at"`
}

type ArchivedMatch struct {
	ID       string  `json:"id"`
	ReportID string  `json:"report_id"`
	Text     string  `json:"text"`
	Score    float32 `json:"score"`
}

// ArchiveID is the content-derived ID an archived text is stored under.
// Surrounding whitespace does not change it.
func ArchiveID(text string) string {
	hash := sha256.Sum256([]byte(strings.TrimSpace(text)))
	return uuid.NewSHA1(archiveNamespace, hash[:16]).String()
}
