package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"go.etcd.io/bbolt"

	"docsearch/internal/domain"
)

func openTestStore(t *testing.T, path string) *BoltStore {
	t.Helper()
	s, err := Open(path)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	return s
}

func docEntries(docID string, n int, vec ...float32) []domain.IndexEntry {
	entries := make([]domain.IndexEntry, n)
	for i := range entries {
		id := fmt.Sprintf("%s-%d", docID, i)
		entries[i] = domain.IndexEntry{
			Chunk:     domain.Chunk{ID: id, DocumentID: docID, Position: i, Text: "chunk " + id, Start: i * 10, End: i*10 + 10},
			Embedding: vec,
			Metadata:  domain.EntryMetadata{DocumentID: docID, Filename: docID + ".txt", Position: i},
		}
	}
	return entries
}

func TestBoltIndex_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "index.db")
	schema := domain.IndexSchema{Model: "hash-v1"}

	s := openTestStore(t, path)
	idx, err := NewBoltIndex(s, schema)
	if err != nil {
		t.Fatal(err)
	}
	if err := idx.Insert(ctx, docEntries("d1", 2, 1, 0, 0)); err != nil {
		t.Fatal(err)
	}
	if err := idx.Insert(ctx, docEntries("d2", 1, 0, 1, 0)); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	s = openTestStore(t, path)
	defer s.Close()
	idx, err = NewBoltIndex(s, schema)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}

	count, _ := idx.Count(ctx)
	if count != 3 {
		t.Errorf("expected 3 entries after reopen, got %d", count)
	}
	if got := idx.Schema(); got.Dimension != 3 || got.Model != "hash-v1" || got.Version != CurrentSchemaVersion {
		t.Errorf("unexpected schema after reopen: %+v", got)
	}

	results, err := idx.Query(ctx, []float32{1, 0, 0}, 5, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	top := results[0]
	if top.ChunkID != "d1-0" || top.Score != 1.0 || top.Metadata.Filename != "d1.txt" || top.End != 10 {
		t.Errorf("unexpected top result after reopen: %+v", top)
	}
	if results[1].ChunkID != "d1-1" {
		t.Errorf("expected tie broken by insertion order, got %s", results[1].ChunkID)
	}

	// New inserts must not reuse sequences loaded from disk.
	if err := idx.Insert(ctx, docEntries("d3", 1, 1, 0, 0)); err != nil {
		t.Fatal(err)
	}
	count, _ = idx.Count(ctx)
	if count != 4 {
		t.Errorf("expected 4 entries, got %d", count)
	}
}

func TestBoltIndex_ReplaceAndDeletePersist(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "index.db")

	s := openTestStore(t, path)
	idx, err := NewBoltIndex(s, domain.IndexSchema{Model: "m"})
	if err != nil {
		t.Fatal(err)
	}
	_ = idx.Insert(ctx, docEntries("d1", 5, 1, 0))
	_ = idx.Insert(ctx, docEntries("d1", 2, 0, 1))
	_ = idx.Insert(ctx, docEntries("d2", 3, 1, 1))
	if err := idx.DeleteByDocument(ctx, "d2"); err != nil {
		t.Fatal(err)
	}
	if err := idx.DeleteByDocument(ctx, "d2"); err != nil {
		t.Fatalf("repeat delete should be a no-op: %v", err)
	}
	s.Close()

	s = openTestStore(t, path)
	defer s.Close()
	idx, err = NewBoltIndex(s, domain.IndexSchema{Model: "m"})
	if err != nil {
		t.Fatal(err)
	}
	count, _ := idx.Count(ctx)
	if count != 2 {
		t.Errorf("expected only the replacement entries of d1, got %d", count)
	}
}

func TestBoltIndex_ReadersNeverSeePartialDocument(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "index.db")
	s := openTestStore(t, path)
	idx, err := NewBoltIndex(s, domain.IndexSchema{Model: "hash-v1"})
	if err != nil {
		t.Fatal(err)
	}
	const chunks = 5
	if err := idx.Insert(ctx, docEntries("other", 1, 0, 1)); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	stop := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			if i%2 == 0 {
				_ = idx.Insert(ctx, docEntries("d", chunks, 1, 0))
			} else {
				_ = idx.DeleteByDocument(ctx, "d")
			}
		}
	}()

	deadline := time.Now().Add(200 * time.Millisecond)
	for time.Now().Before(deadline) {
		results, err := idx.Query(ctx, []float32{1, 0}, 100, nil)
		if err != nil {
			t.Fatal(err)
		}
		n := 0
		for _, r := range results {
			if r.Metadata.DocumentID == "d" {
				n++
			}
		}
		if n != 0 && n != chunks {
			t.Fatalf("observed partial document: %d of %d entries", n, chunks)
		}
	}

	close(stop)
	wg.Wait()

	// The file holds either the whole document or none of it.
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	s = openTestStore(t, path)
	defer s.Close()
	idx, err = NewBoltIndex(s, domain.IndexSchema{Model: "hash-v1"})
	if err != nil {
		t.Fatal(err)
	}
	count, err := idx.Count(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 && count != 1+chunks {
		t.Errorf("expected 1 or %d persisted entries, got %d", 1+chunks, count)
	}
}

func TestBoltIndex_SchemaMismatchFailsFast(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "index.db")

	s := openTestStore(t, path)
	idx, err := NewBoltIndex(s, domain.IndexSchema{Model: "model-a"})
	if err != nil {
		t.Fatal(err)
	}
	_ = idx.Insert(ctx, docEntries("d1", 1, 1, 0, 0))
	s.Close()

	tests := []struct {
		name   string
		schema domain.IndexSchema
	}{
		{"different model", domain.IndexSchema{Model: "model-b"}},
		{"different dimension", domain.IndexSchema{Model: "model-a", Dimension: 4}},
		{"different version", domain.IndexSchema{Version: CurrentSchemaVersion + 1, Model: "model-a"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := openTestStore(t, path)
			defer s.Close()
			_, err := NewBoltIndex(s, tt.schema)
			var sm *domain.SchemaMismatchError
			if !errors.As(err, &sm) {
				t.Fatalf("expected SchemaMismatchError, got %v", err)
			}
			if !errors.Is(err, domain.ErrDimensionMismatch) {
				t.Error("expected mismatch to match ErrDimensionMismatch")
			}
		})
	}
}

func TestBoltIndex_ConfiguredDimensionEnforced(t *testing.T) {
	s := openTestStore(t, filepath.Join(t.TempDir(), "index.db"))
	defer s.Close()

	idx, err := NewBoltIndex(s, domain.IndexSchema{Model: "m", Dimension: 3})
	if err != nil {
		t.Fatal(err)
	}
	err = idx.Insert(context.Background(), docEntries("d1", 1, 1, 0))
	if !errors.Is(err, domain.ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
	count, _ := idx.Count(context.Background())
	if count != 0 {
		t.Errorf("expected no entries, got %d", count)
	}
}

func TestBoltIndex_CorruptEntryFailsOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	s := openTestStore(t, path)
	err := s.DB().Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketEntries).Put(seqKey(0), []byte("{not json"))
	})
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	if _, err := NewBoltIndex(s, domain.IndexSchema{Model: "m"}); err == nil {
		t.Fatal("expected corrupt entry to fail the open")
	}
}

func TestBoltIndex_CancelledContext(t *testing.T) {
	s := openTestStore(t, filepath.Join(t.TempDir(), "index.db"))
	defer s.Close()
	idx, err := NewBoltIndex(s, domain.IndexSchema{Model: "m"})
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := idx.Insert(ctx, docEntries("d1", 1, 1, 0)); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	count, _ := idx.Count(context.Background())
	if count != 0 {
		t.Errorf("expected no entries, got %d", count)
	}
}

func TestBoltStore_Reset(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "index.db")

	s := openTestStore(t, path)
	idx, _ := NewBoltIndex(s, domain.IndexSchema{Model: "old"})
	_ = idx.Insert(ctx, docEntries("d1", 2, 1, 0))
	_ = NewBoltRegistry(s).Put(ctx, domain.DocumentRecord{ID: "d1", UploadedAt: time.Now()})

	if err := s.Reset(); err != nil {
		t.Fatal(err)
	}
	schema, err := s.ReadSchema()
	if err != nil || schema != nil {
		t.Fatalf("expected schema tag cleared, got %+v, %v", schema, err)
	}

	idx, err = NewBoltIndex(s, domain.IndexSchema{Model: "new", Dimension: 4})
	if err != nil {
		t.Fatalf("expected reopen with a new model after reset, got %v", err)
	}
	count, _ := idx.Count(ctx)
	if count != 0 {
		t.Errorf("expected empty index after reset, got %d", count)
	}
	recs, _ := NewBoltRegistry(s).List(ctx)
	if len(recs) != 0 {
		t.Errorf("expected empty registry after reset, got %d", len(recs))
	}
	s.Close()
}

func TestVectorEncoding(t *testing.T) {
	v := []float32{0, 1.5, -2.25, 3.4028235e38}
	got := decodeVector(encodeVector(v))
	for i := range v {
		if got[i] != v[i] {
			t.Errorf("component %d: expected %v, got %v", i, v[i], got[i])
		}
	}
}
