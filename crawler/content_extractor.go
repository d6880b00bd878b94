package crawler

import (
	"net/url"
	"regexp"
	"strings"
	"unicode"

	processor "ghostwriter/process"

	"github.com/go-shiori/go-readability"
)

var placeholderURL = &url.URL{Scheme: "http", Host: "localhost", Path: "/"}

type ContentExtractor struct {
	MinWordCount int
	JunkPatterns []*regexp.Regexp
	sentenceEnd  *regexp.Regexp
}

type ExtractionResult struct {
	Title         string
	Text          string
	IsBoilerplate bool
	Reason        string
	WordCount     int
}

func NewContentExtractor() *ContentExtractor {
	patterns := []string{
		`\b(home|about|contact|menu|navigation|subscribe|login|register|sign up)\b`,
		`\b(next page|previous|see more|load more|read more|continue reading)\b`,
		`\b(published on|author:|tags:|category:|share this|follow us)\b`,
		`\b(privacy policy|terms of service|copyright|all rights reserved)\b`,
		`\b(add to cart|purchase|buy now|checkout|payment|try free)\b`,
	}
	compiled := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		compiled[i] = regexp.MustCompile(p)
	}

	return &ContentExtractor{
		MinWordCount: 80,
		JunkPatterns: compiled,
		sentenceEnd:  regexp.MustCompile(`[.!?]+`),
	}
}

// ExtractText pulls the readable article out of a page, falling back to the
// plain body text when readability cannot find one.
func (ce *ContentExtractor) ExtractText(htmlContent string, pageURL *url.URL) (*ExtractionResult, error) {
	result := &ExtractionResult{}
	if pageURL == nil {
		pageURL = placeholderURL
	}

	article, err := readability.FromReader(strings.NewReader(htmlContent), pageURL)
	if err == nil && strings.TrimSpace(article.TextContent) != "" {
		result.Title = strings.TrimSpace(article.Title)
		result.Text = strings.TrimSpace(article.TextContent)
	} else {
		text, bodyErr := processor.BodyText([]byte(htmlContent))
		if bodyErr != nil {
			return nil, bodyErr
		}
		result.Text = text
	}

	result.WordCount = ce.countWords(result.Text)
	if reason := ce.detectBoilerplate(strings.ToLower(result.Text)); reason != "" {
		result.IsBoilerplate = true
		result.Reason = reason
	}
	return result, nil
}

func (ce *ContentExtractor) detectBoilerplate(text string) string {
	if ce.countWords(text) < ce.MinWordCount {
		return "too few words"
	}

	if ce.countSentences(text) < 3 {
		return "too few sentences"
	}

	matchCount := 0
	for _, pattern := range ce.JunkPatterns {
		if pattern.MatchString(text) {
			matchCount++
		}
	}
	if matchCount >= 3 {
		return "matches junk patterns"
	}

	return ""
}

func (ce *ContentExtractor) countWords(text string) int {
	return len(strings.FieldsFunc(text, func(c rune) bool {
		return !unicode.IsLetter(c) && !unicode.IsNumber(c)
	}))
}

func (ce *ContentExtractor) countSentences(text string) int {
	count := 0
	for _, sentence := range ce.sentenceEnd.Split(text, -1) {
		if len(strings.TrimSpace(sentence)) > 10 {
			count++
		}
	}
	return count
}
