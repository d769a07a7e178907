package embedding

import (
	"context"
	"time"

	"go.uber.org/zap"

	"docsearch/internal/domain"
	"docsearch/internal/metrics"
	"docsearch/internal/port"
)

// MaxRetries is the most retries a provider call ever gets.
const MaxRetries = 1

// RetryConfig configures retry behavior for embedding calls.
type RetryConfig struct {
	MaxRetries int           // retries after the first attempt; 0 disables, capped at MaxRetries
	RetryDelay time.Duration // delay before each retry
}

// DefaultRetryConfig allows one best-effort retry.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: MaxRetries,
		RetryDelay: 500 * time.Millisecond,
	}
}

// RetryProvider retries transient provider failures. Permanent failures
// and cancellation are returned immediately.
type RetryProvider struct {
	inner  port.EmbeddingProvider
	config RetryConfig
	logger *zap.Logger
}

func NewRetryProvider(inner port.EmbeddingProvider, config RetryConfig, logger *zap.Logger) *RetryProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	config.MaxRetries = min(max(config.MaxRetries, 0), MaxRetries)
	return &RetryProvider{inner: inner, config: config, logger: logger}
}

func (r *RetryProvider) EmbedBatch(ctx context.Context, texts []string) ([]domain.Embedding, error) {
	var out []domain.Embedding
	err := r.do(ctx, "embed_batch", func() error {
		var err error
		out, err = r.inner.EmbedBatch(ctx, texts)
		return err
	})
	return out, err
}

func (r *RetryProvider) EmbedQuery(ctx context.Context, text string) (domain.Embedding, error) {
	var out domain.Embedding
	err := r.do(ctx, "embed_query", func() error {
		var err error
		out, err = r.inner.EmbedQuery(ctx, text)
		return err
	})
	return out, err
}

func (r *RetryProvider) Dimension() int { return r.inner.Dimension() }

func (r *RetryProvider) ModelName() string { return r.inner.ModelName() }

func (r *RetryProvider) do(ctx context.Context, op string, call func() error) error {
	var lastErr error
	for attempt := 0; attempt <= r.config.MaxRetries; attempt++ {
		if attempt > 0 {
			r.logger.Warn("Retrying embedding call",
				zap.String("op", op),
				zap.Int("attempt", attempt),
				zap.Error(lastErr),
			)
			metrics.EmbeddingRetriesTotal.WithLabelValues(r.inner.ModelName()).Inc()
			select {
			case <-ctx.Done():
				return lastErr
			case <-time.After(r.config.RetryDelay):
			}
		}

		lastErr = call()
		if lastErr == nil {
			return nil
		}
		if !domain.IsTransient(lastErr) || ctx.Err() != nil {
			return lastErr
		}
	}
	return lastErr
}
