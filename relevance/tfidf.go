package relevance

import (
	"context"
	"math"
	"strings"
	"unicode"

	"github.com/kljensen/snowball"
)

// Vector is a sparse term-weight vector.
type Vector map[string]float64

// TFIDFVectorizer mirrors the common smooth-idf, l2-normalized TF-IDF.
// Fit must be called before Transform.
type TFIDFVectorizer struct {
	idf      map[string]float64
	defaultW float64
	stem     bool
}

func NewTFIDFVectorizer() *TFIDFVectorizer {
	return &TFIDFVectorizer{stem: true}
}

// Tokenize lowercases text, splits it on anything that is not a letter or
// digit, drops stop words and stems the rest. A text made only of stop words
// keeps all of its words.
func (v *TFIDFVectorizer) Tokenize(text string) []string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})

	tokens := make([]string, 0, len(words))
	for _, w := range words {
		if stopWords[w] || len([]rune(w)) < 2 {
			continue
		}
		if v.stem {
			if stemmed, err := snowball.Stem(w, "english", false); err == nil && stemmed != "" {
				w = stemmed
			}
		}
		tokens = append(tokens, w)
	}
	if len(tokens) == 0 {
		return words
	}
	return tokens
}

// Fit learns document frequencies: idf(t) = ln((1+n)/(1+df(t))) + 1.
func (v *TFIDFVectorizer) Fit(docs []string) {
	n := float64(len(docs))
	df := make(map[string]int)
	for _, doc := range docs {
		seen := make(map[string]bool)
		for _, tok := range v.Tokenize(doc) {
			if !seen[tok] {
				seen[tok] = true
				df[tok]++
			}
		}
	}

	v.idf = make(map[string]float64, len(df))
	for term, count := range df {
		v.idf[term] = math.Log((1+n)/(1+float64(count))) + 1
	}
	// unseen terms behave like df = 0
	v.defaultW = math.Log(1+n) + 1
}

func (v *TFIDFVectorizer) Transform(doc string) Vector {
	tf := make(map[string]float64)
	for _, tok := range v.Tokenize(doc) {
		tf[tok]++
	}

	vec := make(Vector, len(tf))
	var norm float64
	for term, count := range tf {
		idf, ok := v.idf[term]
		if !ok {
			idf = v.defaultW
		}
		w := count * idf
		vec[term] = w
		norm += w * w
	}

	if norm == 0 {
		return vec
	}
	norm = math.Sqrt(norm)
	for term := range vec {
		vec[term] /= norm
	}
	return vec
}

func (v *TFIDFVectorizer) FitTransform(docs []string) []Vector {
	v.Fit(docs)
	vecs := make([]Vector, len(docs))
	for i, doc := range docs {
		vecs[i] = v.Transform(doc)
	}
	return vecs
}

// CosineSimilarity of two sparse vectors; 0 when either is empty.
func CosineSimilarity(a, b Vector) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	if len(b) < len(a) {
		a, b = b, a
	}

	var dot, normA, normB float64
	for term, wa := range a {
		dot += wa * b[term]
	}
	for _, w := range a {
		normA += w * w
	}
	for _, w := range b {
		normB += w * w
	}
	if normA == 0 || normB == 0 {
		return 0
	}

	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	return math.Min(1, math.Max(0, sim))
}

// LexicalScorer fits TF-IDF on the text and its candidates together and
// scores each candidate against the text.
type LexicalScorer struct{}

func NewLexicalScorer() *LexicalScorer {
	return &LexicalScorer{}
}

func (s *LexicalScorer) Score(_ context.Context, text string, candidates []string) ([]float64, error) {
	scores := make([]float64, len(candidates))
	if strings.TrimSpace(text) == "" || len(candidates) == 0 {
		return scores, nil
	}

	docs := make([]string, 0, len(candidates)+1)
	docs = append(docs, text)
	docs = append(docs, candidates...)

	vecs := NewTFIDFVectorizer().FitTransform(docs)
	for i := range candidates {
		scores[i] = CosineSimilarity(vecs[0], vecs[i+1])
	}
	return scores, nil
}

var _ Scorer = (*LexicalScorer)(nil)
