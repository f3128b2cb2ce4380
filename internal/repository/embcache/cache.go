// Package embcache caches query embeddings in memory to avoid repeated
// provider calls for the same text. Only query embeddings go through this
// decorator; bulk indexing embeds once per reindex and bypasses it.
package embcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/nemovito/rankd/internal/domain"
)

// Defaults per the engine contract.
const (
	DefaultMaxSize = 1000
	DefaultTTL     = time.Hour
)

type entry struct {
	vector    []float32
	createdAt time.Time
	hits      int
}

// Stats is a point-in-time snapshot of cache effectiveness.
type Stats struct {
	Size    int     `json:"size"`
	MaxSize int     `json:"max_size"`
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	HitRate float64 `json:"hit_rate"`
}

// CachedEmbedder decorates an Embedder with an LRU+TTL cache.
// The key is a stable hash of the raw text, not its meaning.
type CachedEmbedder struct {
	inner      domain.Embedder
	cache      *lru.Cache[string, *entry]
	ttl        time.Duration
	now        func() time.Time
	cacheTotal *prometheus.CounterVec
	logger     *zap.Logger

	mu      sync.Mutex // guards counters and per-entry hit mutation
	hits    int64
	misses  int64
	maxSize int
}

// New creates a caching decorator. cacheTotal is a counter vec with label
// "result" ("hit"/"miss") and may be nil.
func New(
	inner domain.Embedder,
	maxSize int,
	ttl time.Duration,
	cacheTotal *prometheus.CounterVec,
	logger *zap.Logger,
) (*CachedEmbedder, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	cache, err := lru.New[string, *entry](maxSize)
	if err != nil {
		return nil, fmt.Errorf("create lru cache: %w", err)
	}

	return &CachedEmbedder{
		inner:      inner,
		cache:      cache,
		ttl:        ttl,
		now:        time.Now,
		cacheTotal: cacheTotal,
		logger:     logger,
		maxSize:    maxSize,
	}, nil
}

// WithClock replaces the time source. Tests use this to simulate TTL expiry.
func (c *CachedEmbedder) WithClock(now func() time.Time) *CachedEmbedder {
	c.now = now
	return c
}

// Embed returns a cached vector or calls the inner embedder.
// A cache hit moves the entry to the most-recently-used position and
// reports zero token usage (no real tokens were consumed).
func (c *CachedEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	key := cacheKey(text)

	if e, ok := c.cache.Get(key); ok {
		if c.now().Sub(e.createdAt) <= c.ttl {
			c.record("hit")
			c.mu.Lock()
			e.hits++
			c.mu.Unlock()
			return domain.EmbeddingResult{Embedding: e.vector}, nil
		}
		// Expired regardless of recency position.
		c.cache.Remove(key)
	}

	c.record("miss")

	result, err := c.inner.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed text: %w", err)
	}

	c.cache.Add(key, &entry{vector: result.Embedding, createdAt: c.now()})
	return result, nil
}

// Purge drops every cached entry. Counters are kept.
func (c *CachedEmbedder) Purge() {
	c.cache.Purge()
	c.logger.Info("Embedding cache cleared")
}

// Stats returns cache effectiveness counters.
func (c *CachedEmbedder) Stats() Stats {
	c.mu.Lock()
	hits, misses := c.hits, c.misses
	c.mu.Unlock()

	s := Stats{
		Size:    c.cache.Len(),
		MaxSize: c.maxSize,
		Hits:    hits,
		Misses:  misses,
	}
	if total := hits + misses; total > 0 {
		s.HitRate = float64(hits) / float64(total)
	}
	return s
}

func (c *CachedEmbedder) record(result string) {
	c.mu.Lock()
	if result == "hit" {
		c.hits++
	} else {
		c.misses++
	}
	c.mu.Unlock()

	if c.cacheTotal != nil {
		c.cacheTotal.WithLabelValues(result).Inc()
	}
}

func cacheKey(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}
