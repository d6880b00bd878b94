package generate

import (
	"context"
	"fmt"
	"strings"

	"ghostwriter/pkg/breaker"
	"ghostwriter/pkg/metrics"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
	"go.uber.org/zap"
)

const DefaultModel = "gemini-1.5-flash"

type GeminiGenerator struct {
	model   llms.Model
	name    string
	breaker *breaker.Breaker
	metrics *metrics.Collector
	logger  *zap.Logger
}

type GeminiOption func(*GeminiGenerator)

func WithBreaker(b *breaker.Breaker) GeminiOption {
	return func(g *GeminiGenerator) { g.breaker = b }
}

func WithMetrics(m *metrics.Collector) GeminiOption {
	return func(g *GeminiGenerator) { g.metrics = m }
}

// NewGeminiGenerator connects to the Gemini API with the given key.
func NewGeminiGenerator(ctx context.Context, apiKey, model string, logger *zap.Logger, opts ...GeminiOption) (*GeminiGenerator, error) {
	if model == "" {
		model = DefaultModel
	}
	llm, err := googleai.New(ctx,
		googleai.WithAPIKey(apiKey),
		googleai.WithDefaultModel(model),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return NewModelGenerator(llm, model, logger, opts...), nil
}

// NewModelGenerator wraps any langchaingo model.
func NewModelGenerator(model llms.Model, name string, logger *zap.Logger, opts ...GeminiOption) *GeminiGenerator {
	g := &GeminiGenerator{
		model:  model,
		name:   name,
		logger: logger,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *GeminiGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", ErrEmptyPrompt
	}

	completion, err := breaker.Do(g.breaker, func() (string, error) {
		return llms.GenerateFromSinglePrompt(ctx, g.model, prompt)
	})
	g.metrics.ObserveUpstream("gemini", err)
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}

	text := strings.TrimSpace(completion)
	if text == "" {
		return "", ErrEmptyCompletion
	}

	g.logger.Info("generated content",
		zap.String("model", g.name),
		zap.Int("prompt_chars", len(prompt)),
		zap.Int("completion_chars", len(text)))
	return text, nil
}
