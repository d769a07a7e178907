package memstore

import (
	"context"
	"sync"

	"docsearch/internal/adapter/similarity"
	"docsearch/internal/domain"
)

// Index is a VectorIndex held entirely in memory.
type Index struct {
	mu     sync.RWMutex
	table  *similarity.Table
	schema domain.IndexSchema
}

// NewIndex creates an empty index bound to schema. A zero Dimension is
// established by the first insert.
func NewIndex(schema domain.IndexSchema) *Index {
	return &Index{
		table:  similarity.NewTable(schema.Dimension),
		schema: schema,
	}
}

func (x *Index) Insert(ctx context.Context, entries []domain.IndexEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	dim, err := x.table.Validate(entries)
	if err != nil {
		return err
	}

	for _, docID := range documentIDs(entries) {
		x.table.DeleteDoc(docID)
	}
	for _, e := range entries {
		x.table.Put(x.table.NextSeq(), e)
	}
	x.schema.Dimension = dim
	return nil
}

func (x *Index) DeleteByDocument(ctx context.Context, documentID string) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.table.DeleteDoc(documentID)
	return nil
}

func (x *Index) Query(ctx context.Context, vector domain.Embedding, k int, scoreThreshold *float64) ([]domain.SearchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.table.Query(vector, k, scoreThreshold)
}

func (x *Index) Count(ctx context.Context) (int, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.table.Len(), nil
}

func (x *Index) Schema() domain.IndexSchema {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.schema
}

// documentIDs returns the distinct document IDs of a batch in first-seen order.
func documentIDs(entries []domain.IndexEntry) []string {
	seen := make(map[string]struct{})
	var ids []string
	for _, e := range entries {
		id := e.Chunk.DocumentID
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}
