package port

import (
	"context"

	"docsearch/internal/domain"
)

// EmbeddingProvider maps text to fixed-length vectors.
// Failures are reported as *domain.EmbeddingUnavailableError.
type EmbeddingProvider interface {
	// EmbedBatch returns one embedding per input text, in input order.
	EmbedBatch(ctx context.Context, texts []string) ([]domain.Embedding, error)

	// EmbedQuery embeds a single query text.
	EmbedQuery(ctx context.Context, text string) (domain.Embedding, error)

	// Dimension returns the vector length, or 0 if it is only known after the first call.
	Dimension() int

	// ModelName returns the name of the embedding model.
	ModelName() string
}
