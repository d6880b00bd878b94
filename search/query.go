package search

import (
	"strings"
)

const (
	QueryPhrase   = "phrase"
	QueryKeywords = "keywords"

	// Google ignores query words past the 32nd.
	MaxQueryWords = 32

	keywordPhrases = 5
)

// QueryBuilder turns a passage into a search query.
type QueryBuilder struct {
	mode      string
	extractor KeywordExtractor
}

func NewQueryBuilder(mode string, extractor KeywordExtractor) *QueryBuilder {
	if extractor == nil {
		extractor = NewRAKEExtractor()
	}
	return &QueryBuilder{mode: mode, extractor: extractor}
}

// Build returns the leading words of the passage in phrase mode, or its top
// keyword phrases in keywords mode. Keywords mode falls back to phrase mode
// when no phrase survives extraction.
func (b *QueryBuilder) Build(text string) string {
	if b.mode == QueryKeywords {
		if kws := b.extractor.ExtractKeywords(text, keywordPhrases); len(kws) > 0 {
			return truncateWords(strings.Join(kws, " "), MaxQueryWords)
		}
	}
	return truncateWords(text, MaxQueryWords)
}

func truncateWords(text string, n int) string {
	words := strings.Fields(text)
	if len(words) > n {
		words = words[:n]
	}
	return strings.Join(words, " ")
}
