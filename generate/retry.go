package generate

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"time"

	"ghostwriter/pkg/breaker"

	"go.uber.org/zap"
)

type RetryingGenerator struct {
	next       Generator
	maxRetries int
	baseDelay  time.Duration
	logger     *zap.Logger
}

func NewRetryingGenerator(next Generator, maxRetries int, baseDelay time.Duration, logger *zap.Logger) *RetryingGenerator {
	return &RetryingGenerator{
		next:       next,
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
		logger:     logger,
	}
}

func (r *RetryingGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	var lastErr error

	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		text, err := r.next.Generate(ctx, prompt)
		if err == nil {
			return text, nil
		}
		if !retryable(err) {
			return "", err
		}

		lastErr = err
		if attempt == r.maxRetries {
			break
		}

		delay := r.backoff(attempt)
		r.logger.Warn("generation failed, retrying",
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(err))

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(delay):
		}
	}

	return "", lastErr
}

// backoff is baseDelay * 2^attempt with up to 25% jitter.
func (r *RetryingGenerator) backoff(attempt int) time.Duration {
	delay := float64(r.baseDelay) * math.Pow(2, float64(attempt))
	jitter := delay * 0.25 * (rand.Float64() - 0.5)
	return time.Duration(delay + jitter)
}

func retryable(err error) bool {
	switch {
	case errors.Is(err, ErrEmptyPrompt),
		errors.Is(err, breaker.ErrUnavailable),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return false
	}
	return true
}
