package processor

import (
	"context"
	"errors"
)

var (
	ErrUnsupportedFile = errors.New("unsupported file type")
	ErrNoText          = errors.New("no text found in file")
	ErrTooLarge        = errors.New("file too large")
	ErrOCRUnavailable  = errors.New("ocr is not configured")
)

const (
	KindText  = "text"
	KindHTML  = "html"
	KindPDF   = "pdf"
	KindImage = "image"
	KindEPUB  = "epub"
)

type ExtractionResult struct {
	Text     string `json:"text"`
	FileName string `json:"file_name"`
	Kind     string `json:"kind"`
	Pages    int    `json:"pages,omitempty"`
	OCR      bool   `json:"ocr,omitempty"`
}

type TextExtractor interface {
	ExtractText(ctx context.Context, data []byte) (*ExtractionResult, error)
}

// OCR reads text out of raster content.
type OCR interface {
	ImageText(ctx context.Context, data []byte) (string, error)
	// PDFText renders every page and returns the joined text and page count.
	PDFText(ctx context.Context, data []byte) (string, int, error)
}
