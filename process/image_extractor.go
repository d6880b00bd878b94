package processor

import (
	"context"
	"fmt"
)

type ImageExtractor struct {
	ocr OCR
}

func NewImageExtractor(ocr OCR) *ImageExtractor {
	return &ImageExtractor{ocr: ocr}
}

func (e *ImageExtractor) ExtractText(ctx context.Context, data []byte) (*ExtractionResult, error) {
	text, err := e.ocr.ImageText(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("failed to ocr image: %w", err)
	}
	return &ExtractionResult{Text: text, Kind: KindImage, OCR: true}, nil
}
