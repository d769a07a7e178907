package embedding

import (
	"context"
	"time"

	"go.uber.org/zap"

	"docsearch/internal/domain"
	"docsearch/internal/metrics"
	"docsearch/internal/port"
)

// InstrumentedProvider logs and records metrics for every provider call.
// Only sizes and durations are logged, never the texts themselves.
type InstrumentedProvider struct {
	inner    port.EmbeddingProvider
	provider string
	logger   *zap.Logger
}

func NewInstrumentedProvider(inner port.EmbeddingProvider, provider string, logger *zap.Logger) *InstrumentedProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InstrumentedProvider{inner: inner, provider: provider, logger: logger}
}

func (p *InstrumentedProvider) EmbedBatch(ctx context.Context, texts []string) ([]domain.Embedding, error) {
	start := time.Now()
	out, err := p.inner.EmbedBatch(ctx, texts)
	p.record("embed_batch", len(texts), time.Since(start), err)
	return out, err
}

func (p *InstrumentedProvider) EmbedQuery(ctx context.Context, text string) (domain.Embedding, error) {
	start := time.Now()
	out, err := p.inner.EmbedQuery(ctx, text)
	p.record("embed_query", 1, time.Since(start), err)
	return out, err
}

func (p *InstrumentedProvider) Dimension() int { return p.inner.Dimension() }

func (p *InstrumentedProvider) ModelName() string { return p.inner.ModelName() }

func (p *InstrumentedProvider) record(op string, n int, duration time.Duration, err error) {
	model := p.inner.ModelName()
	metrics.EmbeddingRequestDuration.WithLabelValues(p.provider, model, op).Observe(duration.Seconds())

	if err != nil {
		metrics.EmbeddingRequestsTotal.WithLabelValues(p.provider, model, op, "error").Inc()
		p.logger.Error("Embedding request failed",
			zap.String("provider", p.provider),
			zap.String("model", model),
			zap.String("op", op),
			zap.Int("texts", n),
			zap.Duration("duration", duration),
			zap.Bool("transient", domain.IsTransient(err)),
			zap.Error(err),
		)
		return
	}

	metrics.EmbeddingRequestsTotal.WithLabelValues(p.provider, model, op, "success").Inc()
	p.logger.Debug("Embedding request completed",
		zap.String("provider", p.provider),
		zap.String("model", model),
		zap.String("op", op),
		zap.Int("texts", n),
		zap.Duration("duration", duration),
	)
}
