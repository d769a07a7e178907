package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"docsearch/internal/domain"
)

func TestCatalog_ListGetStats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	older := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := older.Add(time.Hour)

	if _, err := f.ingest.Ingest(ctx, domain.Document{ID: "a", Text: sampleText, UploadedAt: older}, nil); err != nil {
		t.Fatal(err)
	}
	if _, err := f.ingest.Ingest(ctx, domain.Document{ID: "b", Text: "tiny", UploadedAt: newer}, nil); err != nil {
		t.Fatal(err)
	}

	docs, err := f.catalog.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 2 || docs[0].ID != "b" {
		t.Fatalf("expected newest first, got %+v", docs)
	}

	if _, err := f.catalog.Get(ctx, "missing"); !errors.Is(err, domain.ErrDocumentNotFound) {
		t.Errorf("expected ErrDocumentNotFound, got %v", err)
	}

	stats, err := f.catalog.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Documents != 2 || stats.Chunks != f.count(t) {
		t.Errorf("unexpected stats: %+v", stats)
	}
	if stats.Schema.Dimension != 256 || stats.Status != "healthy" {
		t.Errorf("unexpected schema or status: %+v", stats)
	}
}
