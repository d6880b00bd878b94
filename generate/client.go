package generate

import (
	"context"
	"errors"
)

var (
	ErrEmptyPrompt     = errors.New("empty prompt")
	ErrEmptyCompletion = errors.New("model returned no text")
)

type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}
