package search

// KeywordExtractor picks the phrases of a text that make a good search query.
type KeywordExtractor interface {
	ExtractKeywords(text string, topK int) []string
}
