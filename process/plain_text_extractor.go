package processor

import (
	"bytes"
	"context"
	"strings"
	"unicode/utf8"
)

type PlainTextExtractor struct{}

func NewPlainTextExtractor() *PlainTextExtractor {
	return &PlainTextExtractor{}
}

func (e *PlainTextExtractor) ExtractText(_ context.Context, data []byte) (*ExtractionResult, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	text := string(data)
	if !utf8.ValidString(text) {
		text = strings.ToValidUTF8(text, "")
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")

	return &ExtractionResult{Text: text, Kind: KindText}, nil
}
