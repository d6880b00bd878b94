package processor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"
)

const (
	maxPageTreeDepth = 64
	maxPageTreeNodes = 100_000
)

var errPageTree = errors.New("malformed page tree")

// PDFExtractor reads the text layer with ledongthuc/pdf and falls back to
// OCR for scanned documents.
type PDFExtractor struct {
	ocr    OCR
	logger *zap.Logger
}

func NewPDFExtractor(ocr OCR, logger *zap.Logger) *PDFExtractor {
	return &PDFExtractor{ocr: ocr, logger: logger}
}

func (e *PDFExtractor) ExtractText(ctx context.Context, data []byte) (*ExtractionResult, error) {
	text, pages, err := e.readTextLayer(ctx, data)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if err != nil {
		e.logger.Warn("failed to read pdf text layer", zap.Error(err))
	}
	if strings.TrimSpace(text) != "" {
		return &ExtractionResult{Text: text, Kind: KindPDF, Pages: pages}, nil
	}

	if e.ocr == nil {
		if err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: pdf has no text layer", ErrOCRUnavailable)
	}

	e.logger.Info("pdf has no text layer, running ocr", zap.Int("pages", pages))
	text, pages, err = e.ocr.PDFText(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("failed to ocr pdf: %w", err)
	}
	return &ExtractionResult{Text: text, Kind: KindPDF, Pages: pages, OCR: true}, nil
}

type textLayerResult struct {
	text  string
	pages int
	err   error
}

// readTextLayer parses on its own goroutine and gives up when ctx ends.
func (e *PDFExtractor) readTextLayer(ctx context.Context, data []byte) (string, int, error) {
	done := make(chan textLayerResult, 1)
	go func() {
		text, pages, err := textLayer(data)
		done <- textLayerResult{text: text, pages: pages, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", 0, ctx.Err()
	case res := <-done:
		return res.text, res.pages, res.err
	}
}

// textLayer turns the parser's panics on corrupt input into ErrUnsupportedFile.
func textLayer(data []byte) (text string, pages int, err error) {
	defer func() {
		if r := recover(); r != nil {
			text, pages = "", 0
			err = fmt.Errorf("%w: corrupt pdf: %v", ErrUnsupportedFile, r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", 0, fmt.Errorf("%w: failed to open PDF: %w", ErrUnsupportedFile, err)
	}

	leaves, err := countPages(r.Trailer().Key("Root").Key("Pages"))
	if err != nil {
		return "", 0, fmt.Errorf("%w: %w", ErrUnsupportedFile, err)
	}
	if r.NumPage() > leaves {
		return "", 0, fmt.Errorf("%w: %w: declares %d pages, has %d", ErrUnsupportedFile, errPageTree, r.NumPage(), leaves)
	}

	reader, err := r.GetPlainText()
	if err != nil {
		return "", r.NumPage(), fmt.Errorf("failed to extract plain text: %w", err)
	}

	content, err := io.ReadAll(reader)
	if err != nil {
		return "", r.NumPage(), fmt.Errorf("failed to read plain text: %w", err)
	}

	return strings.TrimSpace(string(content)), r.NumPage(), nil
}

// countPages walks /Kids from the root /Pages node and returns the number of
// leaf pages. A tree that nests too deep or has too many nodes is rejected,
// which also catches nodes that list an ancestor (or themselves) as a kid.
func countPages(root pdf.Value) (int, error) {
	var nodes, leaves int
	var walk func(node pdf.Value, depth int) error
	walk = func(node pdf.Value, depth int) error {
		nodes++
		if depth > maxPageTreeDepth || nodes > maxPageTreeNodes {
			return errPageTree
		}
		switch node.Key("Type").Name() {
		case "Pages":
			kids := node.Key("Kids")
			for i := 0; i < kids.Len(); i++ {
				if err := walk(kids.Index(i), depth+1); err != nil {
					return err
				}
			}
		case "Page":
			leaves++
		}
		return nil
	}
	if err := walk(root, 0); err != nil {
		return 0, err
	}
	return leaves, nil
}
