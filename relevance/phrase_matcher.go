package relevance

import (
	"strings"
	"unicode"

	"github.com/cloudflare/ahocorasick"
)

const DefaultShingleSize = 5

// PhraseOverlap lists the passages of the input found verbatim in a candidate.
type PhraseOverlap struct {
	Phrases  []string `json:"phrases,omitempty"`
	Fraction float64  `json:"fraction"`
}

// PhraseMatcher finds word n-grams of an input inside candidate texts.
type PhraseMatcher struct {
	words    []string
	shingles []string
	// positions[k] holds every shingle index spelling patterns[k].
	patterns  []string
	positions [][]int
	matcher   *ahocorasick.Matcher
	size      int
}

func NewPhraseMatcher(text string, size int) *PhraseMatcher {
	if size <= 0 {
		size = DefaultShingleSize
	}
	words := normalizeWords(text)

	var shingles []string
	switch {
	case len(words) == 0:
	case len(words) < size:
		shingles = []string{" " + strings.Join(words, " ") + " "}
	default:
		shingles = make([]string, 0, len(words)-size+1)
		for i := 0; i+size <= len(words); i++ {
			shingles = append(shingles, " "+strings.Join(words[i:i+size], " ")+" ")
		}
	}

	index := make(map[string]int, len(shingles))
	var patterns []string
	var positions [][]int
	for i, sh := range shingles {
		k, ok := index[sh]
		if !ok {
			k = len(patterns)
			index[sh] = k
			patterns = append(patterns, sh)
			positions = append(positions, nil)
		}
		positions[k] = append(positions[k], i)
	}

	return &PhraseMatcher{
		words:     words,
		shingles:  shingles,
		patterns:  patterns,
		positions: positions,
		matcher:   ahocorasick.NewStringMatcher(patterns),
		size:      size,
	}
}

// Match reports the overlapping phrases, merging adjacent n-grams.
func (p *PhraseMatcher) Match(candidate string) PhraseOverlap {
	if len(p.shingles) == 0 {
		return PhraseOverlap{}
	}
	content := " " + strings.Join(normalizeWords(candidate), " ") + " "

	hits := p.matcher.Match([]byte(content))
	if len(hits) == 0 {
		return PhraseOverlap{}
	}

	matched := make([]bool, len(p.shingles))
	for _, k := range hits {
		for _, idx := range p.positions[k] {
			matched[idx] = true
		}
	}

	var phrases []string
	count := 0
	for i := 0; i < len(matched); i++ {
		if !matched[i] {
			continue
		}
		j := i
		for j+1 < len(matched) && matched[j+1] {
			j++
		}
		count += j - i + 1
		end := min(j+p.size, len(p.words))
		phrases = append(phrases, strings.Join(p.words[i:end], " "))
		i = j
	}

	return PhraseOverlap{
		Phrases:  phrases,
		Fraction: float64(count) / float64(len(p.shingles)),
	}
}

func normalizeWords(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}
