package embedding

import (
	"context"
	"errors"
	"testing"
	"time"

	"docsearch/internal/domain"
)

func TestQueryCache_HitsSkipProvider(t *testing.T) {
	inner := &scriptedProvider{vector: domain.Embedding{0.6, 0.8}}
	c := NewQueryCache(inner, 10, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := c.EmbedQuery(ctx, "same query"); err != nil {
			t.Fatal(err)
		}
	}
	if inner.calls != 1 {
		t.Errorf("expected 1 provider call, got %d", inner.calls)
	}
	if c.Size() != 1 {
		t.Errorf("expected cache size 1, got %d", c.Size())
	}
}

func TestQueryCache_EvictsLeastRecentlyUsed(t *testing.T) {
	inner := &scriptedProvider{vector: domain.Embedding{1}}
	c := NewQueryCache(inner, 2, time.Minute)
	ctx := context.Background()

	_, _ = c.EmbedQuery(ctx, "a")
	_, _ = c.EmbedQuery(ctx, "b")
	_, _ = c.EmbedQuery(ctx, "a") // refresh a
	_, _ = c.EmbedQuery(ctx, "c") // evicts b
	calls := inner.calls

	_, _ = c.EmbedQuery(ctx, "a")
	if inner.calls != calls {
		t.Error("expected a to still be cached")
	}
	_, _ = c.EmbedQuery(ctx, "b")
	if inner.calls != calls+1 {
		t.Error("expected b to have been evicted")
	}
}

func TestQueryCache_ErrorsNotCached(t *testing.T) {
	inner := &scriptedProvider{
		errs:   []error{&domain.EmbeddingUnavailableError{Reason: "down"}},
		vector: domain.Embedding{1},
	}
	c := NewQueryCache(inner, 10, time.Minute)
	ctx := context.Background()

	if _, err := c.EmbedQuery(ctx, "q"); !errors.Is(err, domain.ErrEmbeddingUnavailable) {
		t.Fatalf("expected provider error, got %v", err)
	}
	if _, err := c.EmbedQuery(ctx, "q"); err != nil {
		t.Fatalf("expected second call to reach provider, got %v", err)
	}
	if inner.calls != 2 {
		t.Errorf("expected 2 calls, got %d", inner.calls)
	}
}

func TestQueryCache_BatchBypassesCache(t *testing.T) {
	inner := &scriptedProvider{vector: domain.Embedding{1}}
	c := NewQueryCache(inner, 10, time.Minute)

	_, _ = c.EmbedBatch(context.Background(), []string{"a", "b"})
	_, _ = c.EmbedBatch(context.Background(), []string{"a", "b"})
	if inner.calls != 2 || c.Size() != 0 {
		t.Errorf("expected batches to bypass cache, calls=%d size=%d", inner.calls, c.Size())
	}
}
