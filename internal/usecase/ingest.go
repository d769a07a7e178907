package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"docsearch/internal/domain"
	"docsearch/internal/logger"
	"docsearch/internal/metrics"
	"docsearch/internal/port"
)

// IngestUseCase turns documents into index entries: chunk, embed, insert.
type IngestUseCase struct {
	chunker  port.Chunker
	provider port.EmbeddingProvider
	index    port.VectorIndex
	registry port.DocumentRegistry
	defaults domain.ChunkConfig
	logger   *zap.Logger
	locks    docLocks
}

// docLocks serializes ingest and delete per document ID, so one call's
// rollback cannot remove entries another call has just inserted.
type docLocks struct {
	mu   sync.Mutex
	held map[string]*docLock
}

type docLock struct {
	mu   sync.Mutex
	refs int
}

func (l *docLocks) lock(id string) func() {
	l.mu.Lock()
	if l.held == nil {
		l.held = make(map[string]*docLock)
	}
	dl, ok := l.held[id]
	if !ok {
		dl = &docLock{}
		l.held[id] = dl
	}
	dl.refs++
	l.mu.Unlock()

	dl.mu.Lock()
	return func() {
		dl.mu.Unlock()
		l.mu.Lock()
		dl.refs--
		if dl.refs == 0 {
			delete(l.held, id)
		}
		l.mu.Unlock()
	}
}

// NewIngestUseCase creates a new ingest use case. defaults is used when
// Ingest is called with a nil ChunkConfig.
func NewIngestUseCase(
	chunker port.Chunker,
	provider port.EmbeddingProvider,
	index port.VectorIndex,
	registry port.DocumentRegistry,
	defaults domain.ChunkConfig,
	logger *zap.Logger,
) *IngestUseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IngestUseCase{
		chunker:  chunker,
		provider: provider,
		index:    index,
		registry: registry,
		defaults: defaults,
		logger:   logger,
	}
}

// Ingest indexes doc and returns the number of chunks created. It either
// fully succeeds or fails with *domain.IngestionFailedError, in which case
// the document is absent from the index. A nil cfg selects the defaults;
// an explicit cfg is validated as given.
func (u *IngestUseCase) Ingest(ctx context.Context, doc domain.Document, chunkCfg *domain.ChunkConfig) (int, error) {
	if doc.ID == "" {
		return 0, &domain.IngestionFailedError{Reason: "document id is required"}
	}
	unlock := u.locks.lock(doc.ID)
	defer unlock()

	cfg := u.defaults
	if chunkCfg != nil {
		cfg = *chunkCfg
	}
	log := logger.FromContext(ctx, u.logger).With(zap.String("document_id", doc.ID))

	chunks, err := u.chunker.Chunk(doc, cfg)
	if err != nil {
		return u.fail(ctx, log, doc.ID, "chunking", err)
	}

	// Vectors are computed before the index write path is entered.
	if len(chunks) > 0 {
		texts := make([]string, len(chunks))
		for i, c := range chunks {
			texts[i] = c.Text
		}

		embeddings, err := u.provider.EmbedBatch(ctx, texts)
		if err != nil {
			return u.fail(ctx, log, doc.ID, "embedding", err)
		}
		if len(embeddings) != len(chunks) {
			return u.fail(ctx, log, doc.ID, "embedding", &domain.EmbeddingUnavailableError{
				Reason: fmt.Sprintf("provider returned %d embeddings for %d chunks", len(embeddings), len(chunks)),
			})
		}

		entries := make([]domain.IndexEntry, len(chunks))
		for i, c := range chunks {
			entries[i] = domain.IndexEntry{
				Chunk:     c,
				Embedding: embeddings[i],
				Metadata: domain.EntryMetadata{
					DocumentID: doc.ID,
					Filename:   doc.Filename,
					Position:   c.Position,
				},
			}
		}
		if err := u.index.Insert(ctx, entries); err != nil {
			return u.fail(ctx, log, doc.ID, "index", err)
		}
	} else if err := u.index.DeleteByDocument(ctx, doc.ID); err != nil {
		return u.fail(ctx, log, doc.ID, "index", err)
	}

	if err := ctx.Err(); err != nil {
		return u.fail(ctx, log, doc.ID, "cancelled", err)
	}

	rec := domain.DocumentRecord{
		ID:         doc.ID,
		Filename:   doc.Filename,
		UploadedAt: doc.UploadedAt,
		ChunkCount: len(chunks),
		SizeBytes:  doc.SizeBytes,
	}
	if rec.UploadedAt.IsZero() {
		rec.UploadedAt = time.Now().UTC()
	}
	if rec.SizeBytes == 0 {
		rec.SizeBytes = len(doc.Text)
	}
	if err := u.registry.Put(ctx, rec); err != nil {
		return u.fail(ctx, log, doc.ID, "registry", err)
	}

	metrics.IngestionsTotal.WithLabelValues("success").Inc()
	metrics.ChunksIngestedTotal.Add(float64(len(chunks)))
	u.updateGauge(ctx)

	log.Info("Document ingested",
		zap.String("filename", doc.Filename),
		zap.Int("chunks", len(chunks)),
		zap.Int("max_chars", cfg.MaxChars),
		zap.Int("overlap_chars", cfg.OverlapChars),
	)
	return len(chunks), nil
}

// Delete removes a document's entries and its registry record.
// Unknown IDs are a no-op.
func (u *IngestUseCase) Delete(ctx context.Context, documentID string) error {
	unlock := u.locks.lock(documentID)
	defer unlock()

	if err := u.index.DeleteByDocument(ctx, documentID); err != nil {
		return fmt.Errorf("failed to delete document %s: %w", documentID, err)
	}
	if err := u.registry.Delete(ctx, documentID); err != nil {
		return fmt.Errorf("failed to delete document record %s: %w", documentID, err)
	}
	u.updateGauge(ctx)
	logger.FromContext(ctx, u.logger).Info("Document deleted", zap.String("document_id", documentID))
	return nil
}

// fail rolls the document back and wraps err. The rollback runs even when
// ctx is already cancelled.
func (u *IngestUseCase) fail(ctx context.Context, log *zap.Logger, documentID, reason string, err error) (int, error) {
	rollbackCtx := context.WithoutCancel(ctx)
	if derr := u.index.DeleteByDocument(rollbackCtx, documentID); derr != nil {
		log.Error("Rollback of index entries failed", zap.Error(derr))
	}
	if derr := u.registry.Delete(rollbackCtx, documentID); derr != nil {
		log.Error("Rollback of document record failed", zap.Error(derr))
	}

	metrics.IngestionsTotal.WithLabelValues("failure").Inc()
	u.updateGauge(rollbackCtx)
	log.Warn("Ingestion failed", zap.String("reason", reason), zap.Error(err))
	return 0, &domain.IngestionFailedError{DocumentID: documentID, Reason: reason, Err: err}
}

func (u *IngestUseCase) updateGauge(ctx context.Context) {
	if n, err := u.index.Count(ctx); err == nil {
		metrics.IndexEntries.Set(float64(n))
	}
}
