package search

import (
	"regexp"
	"sort"
	"strings"
)

type KeywordScore struct {
	Keyword string
	Score   float64
}

// RAKEExtractor ranks candidate phrases split on stop words by the sum of
// their word degree/frequency ratios.
type RAKEExtractor struct {
	stopWords     map[string]bool
	punctuation   *regexp.Regexp
	wordSeparator *regexp.Regexp
}

func NewRAKEExtractor() *RAKEExtractor {
	stopWords := map[string]bool{
		"a": true, "an": true, "and": true, "are": true, "as": true, "at": true,
		"be": true, "been": true, "by": true, "for": true, "from": true, "has": true,
		"he": true, "in": true, "is": true, "it": true, "its": true, "of": true,
		"on": true, "that": true, "the": true, "to": true, "was": true, "will": true,
		"with": true, "would": true, "could": true, "should": true, "may": true,
		"might": true, "can": true, "must": true, "shall": true, "this": true,
		"these": true, "they": true, "them": true, "their": true, "there": true,
		"then": true, "than": true, "or": true, "but": true, "not": true, "no": true,
		"nor": true, "so": true, "yet": true, "however": true, "therefore": true,
		"thus": true, "hence": true, "because": true, "since": true, "although": true,
		"though": true, "unless": true, "until": true, "while": true, "where": true,
		"when": true, "who": true, "whom": true, "whose": true, "which": true,
		"what": true, "why": true, "how": true, "if": true, "do": true, "does": true,
		"did": true, "have": true, "had": true, "having": true, "we": true,
		"you": true, "your": true, "our": true, "us": true, "i": true, "me": true,
		"my": true, "she": true, "her": true, "his": true, "also": true,
		"more": true, "most": true, "very": true, "into": true, "about": true,
	}

	return &RAKEExtractor{
		stopWords:     stopWords,
		punctuation:   regexp.MustCompile(`[^\w\s]`),
		wordSeparator: regexp.MustCompile(`\s+`),
	}
}

func (r *RAKEExtractor) extractCandidatePhrases(text string) []string {
	text = strings.ToLower(text)
	text = r.punctuation.ReplaceAllString(text, " | ")
	text = r.wordSeparator.ReplaceAllString(text, " ")

	var phrases []string
	var currentPhrase []string

	flush := func() {
		if len(currentPhrase) > 0 {
			phrases = append(phrases, strings.Join(currentPhrase, " "))
			currentPhrase = nil
		}
	}

	for _, word := range strings.Fields(text) {
		if word == "|" || r.stopWords[word] {
			flush()
			continue
		}
		if len(word) >= 2 {
			currentPhrase = append(currentPhrase, word)
		}
	}
	flush()

	return phrases
}

func (r *RAKEExtractor) calculateWordScores(phrases []string) map[string]float64 {
	wordFreq := make(map[string]int)
	wordDegree := make(map[string]int)

	for _, phrase := range phrases {
		words := strings.Fields(phrase)
		for _, word := range words {
			wordFreq[word]++
			wordDegree[word] += len(words) - 1
		}
	}

	wordScores := make(map[string]float64, len(wordFreq))
	for word, freq := range wordFreq {
		wordScores[word] = float64(wordDegree[word]+freq) / float64(freq)
	}
	return wordScores
}

func (r *RAKEExtractor) scoreKeywordPhrases(phrases []string, wordScores map[string]float64) []KeywordScore {
	seen := make(map[string]bool)
	var keywordScores []KeywordScore

	for _, phrase := range phrases {
		if seen[phrase] {
			continue
		}
		seen[phrase] = true

		var phraseScore float64
		for _, word := range strings.Fields(phrase) {
			phraseScore += wordScores[word]
		}
		if phraseScore > 0 {
			keywordScores = append(keywordScores, KeywordScore{Keyword: phrase, Score: phraseScore})
		}
	}

	sort.SliceStable(keywordScores, func(i, j int) bool {
		return keywordScores[i].Score > keywordScores[j].Score
	})
	return keywordScores
}

func (r *RAKEExtractor) ExtractKeywords(text string, topK int) []string {
	phrases := r.extractCandidatePhrases(text)
	if len(phrases) == 0 {
		return nil
	}

	keywordScores := r.scoreKeywordPhrases(phrases, r.calculateWordScores(phrases))
	limit := min(topK, len(keywordScores))

	keywords := make([]string, 0, limit)
	for i := 0; i < limit; i++ {
		keywords = append(keywords, keywordScores[i].Keyword)
	}
	return keywords
}

var _ KeywordExtractor = (*RAKEExtractor)(nil)
