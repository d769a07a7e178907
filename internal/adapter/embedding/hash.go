package embedding

import (
	"context"
	"fmt"
	"hash/fnv"

	"docsearch/internal/adapter/analyzer"
	"docsearch/internal/adapter/similarity"
	"docsearch/internal/domain"
)

const DefaultHashModel = "feature-hash-v1"

// HashProvider is a deterministic offline provider. Each token and bigram
// is hashed into one of Dimension buckets with a hash-derived sign, and the
// result is L2-normalized. Texts sharing vocabulary score higher.
type HashProvider struct {
	dimension int
	model     string
	tokenizer *analyzer.Tokenizer
}

func NewHashProvider(dimension int, model string) (*HashProvider, error) {
	if dimension <= 0 {
		return nil, &domain.ConfigurationError{
			Field:  "embedding.dimension",
			Reason: fmt.Sprintf("hash provider needs a positive dimension, got %d", dimension),
		}
	}
	if model == "" {
		model = DefaultHashModel
	}
	return &HashProvider{
		dimension: dimension,
		model:     model,
		tokenizer: analyzer.NewTokenizer(true),
	}, nil
}

func (p *HashProvider) EmbedBatch(ctx context.Context, texts []string) ([]domain.Embedding, error) {
	embeddings := make([]domain.Embedding, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, &domain.EmbeddingUnavailableError{Reason: "cancelled", Err: err}
		}
		embeddings[i] = p.vector(text)
	}
	return embeddings, nil
}

func (p *HashProvider) EmbedQuery(ctx context.Context, text string) (domain.Embedding, error) {
	if err := ctx.Err(); err != nil {
		return nil, &domain.EmbeddingUnavailableError{Reason: "cancelled", Err: err}
	}
	return p.vector(text), nil
}

func (p *HashProvider) Dimension() int { return p.dimension }

func (p *HashProvider) ModelName() string { return p.model }

func (p *HashProvider) vector(text string) domain.Embedding {
	v := make([]float32, p.dimension)
	for _, feature := range p.tokenizer.Features(text) {
		h := fnv.New64a()
		_, _ = h.Write([]byte(feature))
		sum := h.Sum64()

		bucket := sum % uint64(p.dimension)
		if sum>>63 == 1 {
			v[bucket]--
		} else {
			v[bucket]++
		}
	}
	return similarity.Normalize(v)
}
