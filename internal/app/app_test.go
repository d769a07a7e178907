package app

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"docsearch/config"
	"docsearch/internal/domain"
)

func TestOpen_BoltPersistsAcrossRuns(t *testing.T) {
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Embedding.Dimension = 32
	ctx := context.Background()

	a, err := Open(cfg, dir, nil)
	if err != nil {
		t.Fatal(err)
	}
	n, err := a.Ingest.Ingest(ctx, domain.Document{ID: "d1", Filename: "a.txt", Text: "persistent vectors in bolt"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := a.Close(); err != nil {
		t.Fatal(err)
	}

	a, err = Open(cfg, dir, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()

	stats, err := a.Catalog.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Documents != 1 || stats.Chunks != n {
		t.Errorf("unexpected stats after reopen: %+v", stats)
	}
	results, err := a.Retrieve.Search(ctx, "bolt vectors", 0, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) == 0 || results[0].Metadata.DocumentID != "d1" {
		t.Errorf("unexpected results: %+v", results)
	}
}

func TestOpen_SchemaMismatch(t *testing.T) {
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Embedding.Dimension = 32

	a, err := Open(cfg, dir, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := a.Ingest.Ingest(context.Background(), domain.Document{ID: "d1", Text: "some text"}, nil); err != nil {
		t.Fatal(err)
	}
	a.Close()

	cfg.Embedding.Dimension = 64
	_, err = Open(cfg, dir, nil)
	if !errors.Is(err, domain.ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
	var sm *domain.SchemaMismatchError
	if !errors.As(err, &sm) || sm.Stored.Dimension != 32 {
		t.Errorf("expected stored dimension 32, got %+v", sm)
	}
}

func TestOpen_MemoryBackend(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Index.Backend = "memory"

	a, err := Open(cfg, t.TempDir(), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()
	if a.Index.Schema().Dimension != cfg.Embedding.Dimension {
		t.Errorf("expected dimension %d, got %d", cfg.Embedding.Dimension, a.Index.Schema().Dimension)
	}
}

func TestBuildProvider(t *testing.T) {
	t.Setenv("DOCSEARCH_TEST_KEY", "")

	cfg := config.DefaultConfig().Embedding
	p, err := BuildProvider(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	if p.Dimension() != 384 || p.ModelName() != "feature-hash-v1" {
		t.Errorf("unexpected provider: %d %s", p.Dimension(), p.ModelName())
	}

	cfg.Provider = "openai"
	cfg.APIKeyEnv = "DOCSEARCH_TEST_KEY"
	if _, err := BuildProvider(cfg, nil); !errors.Is(err, domain.ErrConfiguration) {
		t.Errorf("expected ErrConfiguration for missing key, got %v", err)
	}

	cfg.Provider = "ollama"
	cfg.Model = "nomic-embed-text"
	cfg.Dimension = 0
	p, err = BuildProvider(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	if p.Dimension() != 768 {
		t.Errorf("expected known dimension 768, got %d", p.Dimension())
	}

	cfg.RequestsPerSecond = 5
	cfg.Burst = 2
	p, err = BuildProvider(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	if p.ModelName() != "nomic-embed-text" {
		t.Errorf("expected the rate limited chain to keep the model name, got %s", p.ModelName())
	}

	cfg.Provider = "voyage"
	if _, err := BuildProvider(cfg, nil); !errors.Is(err, domain.ErrConfiguration) {
		t.Errorf("expected ErrConfiguration for unknown provider, got %v", err)
	}
}

func TestDocumentID(t *testing.T) {
	dir := filepath.Join("/", "project")
	a := DocumentID(dir, filepath.Join(dir, "notes", "a.txt"))
	b := DocumentID(dir, filepath.Join(dir, "notes", "b.txt"))
	if a == b {
		t.Error("expected distinct IDs")
	}
	if a != DocumentID(dir, filepath.Join(dir, "notes", "a.txt")) {
		t.Error("expected stable ID")
	}
	if len(a) != 16 {
		t.Errorf("expected 16 hex chars, got %d", len(a))
	}
}
