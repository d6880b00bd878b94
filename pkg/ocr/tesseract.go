package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"strings"
	"sync"

	"github.com/gen2brain/go-fitz"
	"github.com/otiai10/gosseract/v2"
	"go.uber.org/zap"
)

const pdfDPI = 300

// Tesseract runs OCR on images and rendered PDF pages. A single tesseract
// client is not safe for concurrent use, so calls are serialized.
type Tesseract struct {
	mu       sync.Mutex
	language string
	logger   *zap.Logger
}

func NewTesseract(language string, logger *zap.Logger) *Tesseract {
	if language == "" {
		language = "eng"
	}
	return &Tesseract{language: language, logger: logger}
}

func (t *Tesseract) newClient() (*gosseract.Client, error) {
	client := gosseract.NewClient()
	if err := client.SetLanguage(t.language); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to set ocr language: %w", err)
	}
	client.SetVariable("tessedit_pageseg_mode", "3")     // Fully automatic page segmentation
	client.SetVariable("preserve_interword_spaces", "1") // Preserve spacing
	return client, nil
}

func (t *Tesseract) ImageText(ctx context.Context, data []byte) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	client, err := t.newClient()
	if err != nil {
		return "", err
	}
	defer client.Close()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := client.SetImageFromBytes(data); err != nil {
		return "", fmt.Errorf("failed to set image for ocr: %w", err)
	}
	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("failed to extract text via ocr: %w", err)
	}
	return strings.TrimSpace(text), nil
}

func (t *Tesseract) PDFText(ctx context.Context, data []byte) (string, int, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return "", 0, fmt.Errorf("failed to open pdf for ocr: %w", err)
	}
	defer doc.Close()

	t.mu.Lock()
	defer t.mu.Unlock()

	client, err := t.newClient()
	if err != nil {
		return "", 0, err
	}
	defer client.Close()

	var pages []string
	for pageNum := 0; pageNum < doc.NumPage(); pageNum++ {
		if err := ctx.Err(); err != nil {
			return "", 0, err
		}

		img, err := doc.ImageDPI(pageNum, pdfDPI)
		if err != nil {
			t.logger.Warn("failed to render pdf page", zap.Int("page", pageNum+1), zap.Error(err))
			continue
		}

		var buf bytes.Buffer
		encoder := png.Encoder{CompressionLevel: png.NoCompression}
		if err := encoder.Encode(&buf, img); err != nil {
			t.logger.Warn("failed to encode png", zap.Int("page", pageNum+1), zap.Error(err))
			continue
		}

		if err := client.SetImageFromBytes(buf.Bytes()); err != nil {
			t.logger.Warn("failed to set image for ocr", zap.Int("page", pageNum+1), zap.Error(err))
			continue
		}

		text, err := client.Text()
		if err != nil {
			t.logger.Warn("failed to extract text via ocr", zap.Int("page", pageNum+1), zap.Error(err))
			continue
		}
		if text = strings.TrimSpace(text); text != "" {
			pages = append(pages, text)
		}
	}

	return strings.Join(pages, "\n\n"), doc.NumPage(), nil
}
