package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"docsearch/internal/domain"
	"docsearch/internal/metrics"
	"docsearch/internal/port"
)

// QueryCache is an LRU cache of query embeddings in front of a provider.
// Batch calls from ingestion pass through uncached.
type QueryCache struct {
	inner port.EmbeddingProvider

	mu      sync.Mutex
	entries map[string]*cacheEntry
	order   []string
	maxSize int
	ttl     time.Duration
}

type cacheEntry struct {
	vector    domain.Embedding
	timestamp time.Time
}

func NewQueryCache(inner port.EmbeddingProvider, maxSize int, ttl time.Duration) *QueryCache {
	if maxSize <= 0 {
		maxSize = 256
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &QueryCache{
		inner:   inner,
		entries: make(map[string]*cacheEntry),
		order:   make([]string, 0, maxSize),
		maxSize: maxSize,
		ttl:     ttl,
	}
}

func (c *QueryCache) EmbedBatch(ctx context.Context, texts []string) ([]domain.Embedding, error) {
	return c.inner.EmbedBatch(ctx, texts)
}

func (c *QueryCache) EmbedQuery(ctx context.Context, text string) (domain.Embedding, error) {
	key := c.cacheKey(text)
	if v, ok := c.get(key); ok {
		metrics.EmbeddingCacheTotal.WithLabelValues("hit").Inc()
		return v, nil
	}
	metrics.EmbeddingCacheTotal.WithLabelValues("miss").Inc()

	v, err := c.inner.EmbedQuery(ctx, text)
	if err != nil {
		return nil, err
	}
	c.put(key, v)
	return v, nil
}

func (c *QueryCache) Dimension() int { return c.inner.Dimension() }

func (c *QueryCache) ModelName() string { return c.inner.ModelName() }

func (c *QueryCache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *QueryCache) cacheKey(text string) string {
	hash := sha256.Sum256([]byte(c.inner.ModelName() + "\x00" + text))
	return hex.EncodeToString(hash[:16])
}

func (c *QueryCache) get(key string) (domain.Embedding, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, exists := c.entries[key]
	if !exists {
		return nil, false
	}
	if time.Since(entry.timestamp) > c.ttl {
		delete(c.entries, key)
		c.removeFromOrder(key)
		return nil, false
	}
	c.moveToEnd(key)
	return entry.vector, true
}

func (c *QueryCache) put(key string, v domain.Embedding) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; exists {
		c.entries[key] = &cacheEntry{vector: v, timestamp: time.Now()}
		c.moveToEnd(key)
		return
	}

	if len(c.entries) >= c.maxSize {
		c.evictOldest()
	}
	c.entries[key] = &cacheEntry{vector: v, timestamp: time.Now()}
	c.order = append(c.order, key)
}

func (c *QueryCache) evictOldest() {
	if len(c.order) == 0 {
		return
	}
	oldest := c.order[0]
	c.order = c.order[1:]
	delete(c.entries, oldest)
}

func (c *QueryCache) moveToEnd(key string) {
	c.removeFromOrder(key)
	c.order = append(c.order, key)
}

func (c *QueryCache) removeFromOrder(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}
