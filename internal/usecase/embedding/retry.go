// Package embedding provides decorators over the raw embedding provider.
package embedding

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/nemovito/rankd/internal/domain"
)

// Retry defaults. Backoff doubles after each failed attempt.
const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = 200 * time.Millisecond
)

// RetryingEmbedder retries transient provider failures with exponential
// backoff. Context cancellation aborts both the call and the backoff sleep.
type RetryingEmbedder struct {
	inner       domain.Embedder
	maxAttempts int
	baseDelay   time.Duration
	logger      *zap.Logger
}

// NewRetrying wraps an embedder with bounded retries.
func NewRetrying(inner domain.Embedder, maxAttempts int, baseDelay time.Duration, logger *zap.Logger) *RetryingEmbedder {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if baseDelay <= 0 {
		baseDelay = DefaultBaseDelay
	}
	return &RetryingEmbedder{
		inner:       inner,
		maxAttempts: maxAttempts,
		baseDelay:   baseDelay,
		logger:      logger,
	}
}

// Embed implements domain.Embedder.
func (r *RetryingEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	var lastErr error

	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		result, err := r.inner.Embed(ctx, text)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if attempt == r.maxAttempts {
			break
		}

		delay := r.baseDelay << (attempt - 1)
		r.logger.Warn("Embedding attempt failed, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err))

		if err := sleep(ctx, delay); err != nil {
			return domain.EmbeddingResult{}, fmt.Errorf("retry aborted: %w", err)
		}
	}

	return domain.EmbeddingResult{}, fmt.Errorf("embed after %d attempts: %w", r.maxAttempts, lastErr)
}

// BatchEmbed implements domain.BatchEmbedder when the inner embedder supports
// batching, falling back to one call per text otherwise.
func (r *RetryingEmbedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	batcher, ok := r.inner.(domain.BatchEmbedder)
	if !ok {
		return domain.BatchFallback(ctx, r, texts)
	}

	var lastErr error

	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		result, err := batcher.BatchEmbed(ctx, texts)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if attempt == r.maxAttempts {
			break
		}

		delay := r.baseDelay << (attempt - 1)
		r.logger.Warn("Batch embedding attempt failed, retrying",
			zap.Int("attempt", attempt),
			zap.Int("texts", len(texts)),
			zap.Duration("delay", delay),
			zap.Error(err))

		if err := sleep(ctx, delay); err != nil {
			return domain.BatchEmbeddingResult{}, fmt.Errorf("retry aborted: %w", err)
		}
	}

	return domain.BatchEmbeddingResult{}, fmt.Errorf("batch embed after %d attempts: %w", r.maxAttempts, lastErr)
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err() //nolint:wrapcheck // context error is the signal itself
	case <-timer.C:
		return nil
	}
}
