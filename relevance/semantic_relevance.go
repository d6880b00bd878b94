package relevance

import (
	"context"
	"fmt"

	"ghostwriter/embedding"
)

// SemanticScorer compares texts through an embedding model.
type SemanticScorer struct {
	embeddingClient embedding.Client
	maxTokens       int
}

func NewSemanticScorer(embeddingClient embedding.Client, maxTokens int) *SemanticScorer {
	if maxTokens <= 0 {
		maxTokens = 512
	}
	return &SemanticScorer{
		embeddingClient: embeddingClient,
		maxTokens:       maxTokens,
	}
}

func (s *SemanticScorer) Score(ctx context.Context, text string, candidates []string) ([]float64, error) {
	scores := make([]float64, len(candidates))
	if text == "" || len(candidates) == 0 {
		return scores, nil
	}

	inputs := make([]string, 0, len(candidates)+1)
	inputs = append(inputs, truncateText(text, s.maxTokens))
	for _, c := range candidates {
		inputs = append(inputs, truncateText(c, s.maxTokens))
	}

	embeddings, err := s.embeddingClient.GetEmbeddings(ctx, inputs)
	if err != nil {
		return nil, fmt.Errorf("failed to get embeddings: %w", err)
	}
	if len(embeddings) != len(inputs) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(inputs), len(embeddings))
	}

	for i := range candidates {
		sim := float64(embedding.CosineSimilarity(embeddings[0], embeddings[i+1]))
		scores[i] = max(0, min(1, sim))
	}
	return scores, nil
}

// Embed returns the embedding of a single text.
func (s *SemanticScorer) Embed(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := s.embeddingClient.GetEmbeddings(ctx, []string{truncateText(text, s.maxTokens)})
	if err != nil {
		return nil, fmt.Errorf("failed to get embedding: %w", err)
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("embedding service returned no vectors")
	}
	return embeddings[0], nil
}

// truncateText approximates token length by character count (~4 chars per
// token for English).
func truncateText(text string, maxTokens int) string {
	maxChars := maxTokens * 4
	if len(text) <= maxChars {
		return text
	}
	runes := []rune(text)
	if len(runes) <= maxChars {
		return text
	}
	return string(runes[:maxChars])
}

var _ Scorer = (*SemanticScorer)(nil)
