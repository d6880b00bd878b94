package relevance

import "context"

// Scorer rates how close each candidate is to text, in [0, 1].
type Scorer interface {
	Score(ctx context.Context, text string, candidates []string) ([]float64, error)
}
