package chunking

import (
	"fmt"
	"strings"

	"github.com/neurosnap/sentences"
	"github.com/neurosnap/sentences/english"
)

// SentenceChunker packs whole sentences into passages of at most maxTokens.
// A single sentence longer than the budget becomes its own passage.
type SentenceChunker struct {
	sentenceTokenizer *sentences.DefaultSentenceTokenizer
	counter           TokenCounter
	maxTokens         int
}

func NewSentenceChunker(maxTokens int, counter TokenCounter) (*SentenceChunker, error) {
	sentenceTokenizer, err := english.NewSentenceTokenizer(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load sentence tokenizer: %w", err)
	}
	if counter == nil {
		counter = ApproxCounter{}
	}

	return &SentenceChunker{
		sentenceTokenizer: sentenceTokenizer,
		counter:           counter,
		maxTokens:         maxTokens,
	}, nil
}

func (sc *SentenceChunker) Split(text string) ([]string, error) {
	var chunks []string
	var current []string
	currentTokens := 0

	for _, sentenceObj := range sc.sentenceTokenizer.Tokenize(text) {
		sentence := strings.Join(strings.Fields(sentenceObj.Text), " ")
		if sentence == "" {
			continue
		}
		tokens := sc.counter.Count(sentence)

		if currentTokens+tokens > sc.maxTokens && len(current) > 0 {
			chunks = append(chunks, strings.Join(current, " "))
			current = nil
			currentTokens = 0
		}
		current = append(current, sentence)
		currentTokens += tokens
	}

	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, " "))
	}
	return chunks, nil
}

var _ Chunker = (*SentenceChunker)(nil)
