package processor

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// Core picks a TextExtractor by file extension.
type Core struct {
	extractors map[string]TextExtractor
	maxBytes   int64
	logger     *zap.Logger
}

// NewCore registers the text, html, pdf and epub extractors, plus images when ocr
// is not nil.
func NewCore(ocr OCR, maxBytes int64, logger *zap.Logger) *Core {
	c := &Core{
		extractors: make(map[string]TextExtractor),
		maxBytes:   maxBytes,
		logger:     logger,
	}

	plain := NewPlainTextExtractor()
	c.Register(plain, ".txt", ".md", ".markdown", ".text")
	c.Register(NewHTMLExtractor(logger), ".html", ".htm")
	c.Register(NewPDFExtractor(ocr, logger), ".pdf")
	c.Register(NewEPUBExtractor(maxBytes, logger), ".epub")
	if ocr != nil {
		c.Register(NewImageExtractor(ocr), ".png", ".jpg", ".jpeg", ".tif", ".tiff", ".bmp", ".gif", ".webp")
	}
	return c
}

func (c *Core) Register(extractor TextExtractor, extensions ...string) {
	for _, ext := range extensions {
		c.extractors[strings.ToLower(ext)] = extractor
	}
}

// Supported lists the registered extensions in sorted order.
func (c *Core) Supported() []string {
	exts := make([]string, 0, len(c.extractors))
	for ext := range c.extractors {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

func (c *Core) Extract(ctx context.Context, filename string, r io.Reader) (*ExtractionResult, error) {
	extension := strings.ToLower(filepath.Ext(filename))
	extractor, ok := c.extractors[extension]
	if !ok {
		return nil, fmt.Errorf("%w: %q (supported: %s)", ErrUnsupportedFile, extension, strings.Join(c.Supported(), ", "))
	}

	data, err := c.readAll(r)
	if err != nil {
		return nil, err
	}

	c.logger.Info("extracting text",
		zap.String("file", filename),
		zap.Int("size", len(data)),
		zap.String("extension", extension))

	result, err := extractor.ExtractText(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("failed to extract %s: %w", filename, err)
	}

	result.Text = strings.TrimSpace(result.Text)
	if result.Text == "" {
		return nil, fmt.Errorf("%w: %s", ErrNoText, filename)
	}
	result.FileName = filepath.Base(filename)
	return result, nil
}

func (c *Core) readAll(r io.Reader) ([]byte, error) {
	if c.maxBytes <= 0 {
		return io.ReadAll(r)
	}
	data, err := io.ReadAll(io.LimitReader(r, c.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	if int64(len(data)) > c.maxBytes {
		return nil, fmt.Errorf("%w: limit is %d bytes", ErrTooLarge, c.maxBytes)
	}
	return data, nil
}
