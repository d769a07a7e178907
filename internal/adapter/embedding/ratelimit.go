package embedding

import (
	"context"

	"golang.org/x/time/rate"

	"docsearch/internal/domain"
	"docsearch/internal/port"
)

// RateLimitConfig holds the client-side request budget for a provider.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate limit.
	RequestsPerSecond float64
	// BurstSize is the maximum burst size.
	BurstSize int
}

// RateLimitedProvider spaces out provider calls with a token bucket. A
// cancelled wait surfaces as a non-transient EmbeddingUnavailableError.
type RateLimitedProvider struct {
	inner   port.EmbeddingProvider
	limiter *rate.Limiter
}

func NewRateLimitedProvider(inner port.EmbeddingProvider, cfg RateLimitConfig) *RateLimitedProvider {
	burst := cfg.BurstSize
	if burst <= 0 {
		burst = 1
	}
	return &RateLimitedProvider{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst),
	}
}

func (p *RateLimitedProvider) EmbedBatch(ctx context.Context, texts []string) ([]domain.Embedding, error) {
	if err := p.wait(ctx); err != nil {
		return nil, err
	}
	return p.inner.EmbedBatch(ctx, texts)
}

func (p *RateLimitedProvider) EmbedQuery(ctx context.Context, text string) (domain.Embedding, error) {
	if err := p.wait(ctx); err != nil {
		return nil, err
	}
	return p.inner.EmbedQuery(ctx, text)
}

func (p *RateLimitedProvider) Dimension() int { return p.inner.Dimension() }

func (p *RateLimitedProvider) ModelName() string { return p.inner.ModelName() }

func (p *RateLimitedProvider) wait(ctx context.Context) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return &domain.EmbeddingUnavailableError{Reason: "rate limit wait aborted", Err: err}
	}
	return nil
}
