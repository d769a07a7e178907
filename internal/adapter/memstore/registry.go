package memstore

import (
	"context"
	"sync"

	"docsearch/internal/domain"
)

type Registry struct {
	mu   sync.RWMutex
	docs map[string]domain.DocumentRecord
}

func NewRegistry() *Registry {
	return &Registry{docs: make(map[string]domain.DocumentRecord)}
}

func (r *Registry) Put(ctx context.Context, rec domain.DocumentRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.docs[rec.ID] = rec
	return nil
}

func (r *Registry) Get(ctx context.Context, id string) (domain.DocumentRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.docs[id]
	if !ok {
		return domain.DocumentRecord{}, domain.ErrDocumentNotFound
	}
	return rec, nil
}

func (r *Registry) List(ctx context.Context) ([]domain.DocumentRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	recs := make([]domain.DocumentRecord, 0, len(r.docs))
	for _, rec := range r.docs {
		recs = append(recs, rec)
	}
	domain.SortNewestFirst(recs)
	return recs, nil
}

func (r *Registry) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.docs, id)
	return nil
}
