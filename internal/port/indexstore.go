package port

import (
	"context"

	"docsearch/internal/domain"
)

// VectorIndex stores (vector, chunk, metadata) entries and ranks them by
// cosine similarity.
type VectorIndex interface {
	// Insert adds entries atomically. Existing entries of any document in
	// the batch are replaced in the same step.
	Insert(ctx context.Context, entries []domain.IndexEntry) error

	// DeleteByDocument removes every entry of the document. Unknown IDs are a no-op.
	DeleteByDocument(ctx context.Context, documentID string) error

	// Query returns at most k results in descending score order. Results
	// scoring below scoreThreshold, when set, are dropped.
	Query(ctx context.Context, vector domain.Embedding, k int, scoreThreshold *float64) ([]domain.SearchResult, error)

	// Count returns the number of stored entries.
	Count(ctx context.Context) (int, error)

	// Schema returns the model and dimension the index is bound to.
	Schema() domain.IndexSchema
}

// DocumentRegistry keeps a catalogue record per ingested document.
type DocumentRegistry interface {
	Put(ctx context.Context, rec domain.DocumentRecord) error

	// Get returns domain.ErrDocumentNotFound for unknown IDs.
	Get(ctx context.Context, id string) (domain.DocumentRecord, error)

	// List returns records newest first.
	List(ctx context.Context) ([]domain.DocumentRecord, error)

	Delete(ctx context.Context, id string) error
}
