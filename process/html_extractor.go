package processor

import (
	"bytes"
	"context"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"
	"github.com/markusmobius/go-trafilatura"
	"go.uber.org/zap"
)

var uploadURL, _ = url.Parse("http://localhost/upload.html")

type HTMLExtractor struct {
	logger *zap.Logger
}

func NewHTMLExtractor(logger *zap.Logger) *HTMLExtractor {
	return &HTMLExtractor{logger: logger}
}

// ExtractText prefers the readability article body, then trafilatura's main
// content, and finally the visible body text.
func (e *HTMLExtractor) ExtractText(_ context.Context, data []byte) (*ExtractionResult, error) {
	article, err := readability.FromReader(bytes.NewReader(data), uploadURL)
	if err == nil && strings.TrimSpace(article.TextContent) != "" {
		return &ExtractionResult{Text: collapseSpaces(article.TextContent), Kind: KindHTML}, nil
	}
	if err != nil {
		e.logger.Debug("readability extraction failed, trying trafilatura", zap.Error(err))
	}

	if text := e.mainContent(data); text != "" {
		return &ExtractionResult{Text: text, Kind: KindHTML}, nil
	}

	text, err := BodyText(data)
	if err != nil {
		return nil, err
	}
	return &ExtractionResult{Text: text, Kind: KindHTML}, nil
}

func (e *HTMLExtractor) mainContent(data []byte) string {
	result, err := trafilatura.Extract(bytes.NewReader(data), trafilatura.Options{
		OriginalURL: uploadURL,
	})
	if err != nil {
		e.logger.Debug("trafilatura extraction failed, using body text", zap.Error(err))
		return ""
	}
	return collapseSpaces(result.ContentText)
}

// BodyText returns the text of <body> without scripts and styles.
func BodyText(data []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	doc.Find("script, style, noscript, nav, footer").Remove()
	return collapseSpaces(doc.Find("body").Text()), nil
}

func collapseSpaces(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
