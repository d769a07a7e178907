package usecase

import (
	"context"
	"errors"
	"testing"

	"docsearch/internal/adapter/chunker"
	"docsearch/internal/adapter/embedding"
	"docsearch/internal/adapter/memstore"
	"docsearch/internal/domain"
	"docsearch/internal/port"
)

// failingProvider delegates to a real provider until fail is set.
type failingProvider struct {
	port.EmbeddingProvider
	fail     error
	short    bool
	batches  int
	queries  int
	lastText string
}

func (p *failingProvider) EmbedBatch(ctx context.Context, texts []string) ([]domain.Embedding, error) {
	p.batches++
	if p.fail != nil {
		return nil, p.fail
	}
	out, err := p.EmbeddingProvider.EmbedBatch(ctx, texts)
	if p.short && len(out) > 0 {
		return out[:len(out)-1], err
	}
	return out, err
}

func (p *failingProvider) EmbedQuery(ctx context.Context, text string) (domain.Embedding, error) {
	p.queries++
	p.lastText = text
	if p.fail != nil {
		return nil, p.fail
	}
	return p.EmbeddingProvider.EmbedQuery(ctx, text)
}

// failingIndex rejects inserts while leaving the other operations intact.
type failingIndex struct {
	*memstore.Index
	insertErr error
}

func (x *failingIndex) Insert(ctx context.Context, entries []domain.IndexEntry) error {
	if x.insertErr != nil {
		return x.insertErr
	}
	return x.Index.Insert(ctx, entries)
}

var errIndexDown = errors.New("index down")

type fixture struct {
	provider *failingProvider
	index    *failingIndex
	registry *memstore.Registry
	ingest   *IngestUseCase
	retrieve *RetrieveUseCase
	catalog  *CatalogUseCase
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	hash, err := embedding.NewHashProvider(256, embedding.DefaultHashModel)
	if err != nil {
		t.Fatal(err)
	}
	provider := &failingProvider{EmbeddingProvider: hash}
	index := &failingIndex{Index: memstore.NewIndex(domain.IndexSchema{Version: 1, Model: hash.ModelName()})}
	registry := memstore.NewRegistry()

	return &fixture{
		provider: provider,
		index:    index,
		registry: registry,
		ingest: NewIngestUseCase(chunker.NewCharChunker(), provider, index, registry,
			domain.ChunkConfig{MaxChars: 40, OverlapChars: 8}, nil),
		retrieve: NewRetrieveUseCase(provider, index, 3, nil, nil),
		catalog:  NewCatalogUseCase(index, registry),
	}
}

func (f *fixture) count(t *testing.T) int {
	t.Helper()
	n, err := f.index.Count(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	return n
}
