package usecase

import (
	"context"
	"fmt"

	"docsearch/internal/domain"
	"docsearch/internal/port"
)

// CatalogUseCase answers questions about what has been ingested.
type CatalogUseCase struct {
	index    port.VectorIndex
	registry port.DocumentRegistry
}

func NewCatalogUseCase(index port.VectorIndex, registry port.DocumentRegistry) *CatalogUseCase {
	return &CatalogUseCase{index: index, registry: registry}
}

func (u *CatalogUseCase) List(ctx context.Context) ([]domain.DocumentRecord, error) {
	return u.registry.List(ctx)
}

// Get returns domain.ErrDocumentNotFound for unknown IDs.
func (u *CatalogUseCase) Get(ctx context.Context, id string) (domain.DocumentRecord, error) {
	return u.registry.Get(ctx, id)
}

func (u *CatalogUseCase) Stats(ctx context.Context) (domain.IndexStats, error) {
	docs, err := u.registry.List(ctx)
	if err != nil {
		return domain.IndexStats{}, fmt.Errorf("failed to list documents: %w", err)
	}
	chunks, err := u.index.Count(ctx)
	if err != nil {
		return domain.IndexStats{}, fmt.Errorf("failed to count entries: %w", err)
	}
	return domain.IndexStats{
		Documents: len(docs),
		Chunks:    chunks,
		Schema:    u.index.Schema(),
		Status:    "healthy",
	}, nil
}
