package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"sync"
	"time"

	"autorouter/internal/domain"
	"autorouter/internal/port"
)

// SelectionCache is a size-bounded LRU of selection results with a TTL.
// Invalidate drops everything and bumps a generation counter so entries
// written by an in-flight lookup from before the reset are never served.
type SelectionCache struct {
	mu       sync.RWMutex
	entries  map[string]*cacheEntry
	order    []string
	maxSize  int
	ttl      time.Duration
	indexGen uint64
	now      func() time.Time
}

type cacheEntry struct {
	results   []domain.SearchResult
	timestamp time.Time
	indexGen  uint64
}

func NewSelectionCache(maxSize int, ttl time.Duration) *SelectionCache {
	if maxSize <= 0 {
		maxSize = 100
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &SelectionCache{
		entries: make(map[string]*cacheEntry),
		order:   make([]string, 0, maxSize),
		maxSize: maxSize,
		ttl:     ttl,
		now:     time.Now,
	}
}

func cacheKey(query string, opts domain.SearchOptions) string {
	data := []byte(query)
	data = append(data, 0)
	data = strconv.AppendInt(data, int64(opts.EffectiveLimit()), 10)
	data = append(data, 0)
	data = append(data, opts.License()...)
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:16])
}

func (c *SelectionCache) Get(query string, opts domain.SearchOptions) ([]domain.SearchResult, bool) {
	key := cacheKey(query, opts)

	c.mu.RLock()
	entry, exists := c.entries[key]
	currentGen := c.indexGen
	c.mu.RUnlock()

	if !exists {
		return nil, false
	}

	if c.now().Sub(entry.timestamp) > c.ttl || entry.indexGen != currentGen {
		c.mu.Lock()
		delete(c.entries, key)
		c.removeFromOrder(key)
		c.mu.Unlock()
		return nil, false
	}

	c.mu.Lock()
	c.moveToEnd(key)
	c.mu.Unlock()

	return copyResults(entry.results), true
}

func (c *SelectionCache) Put(query string, opts domain.SearchOptions, results []domain.SearchResult) {
	c.putGen(query, opts, results, c.generation())
}

func (c *SelectionCache) putGen(query string, opts domain.SearchOptions, results []domain.SearchResult, gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.indexGen {
		return
	}

	key := cacheKey(query, opts)
	entry := &cacheEntry{
		results:   copyResults(results),
		timestamp: c.now(),
		indexGen:  gen,
	}

	if _, exists := c.entries[key]; exists {
		c.entries[key] = entry
		c.moveToEnd(key)
		return
	}

	if len(c.entries) >= c.maxSize {
		c.evictOldest()
	}

	c.entries[key] = entry
	c.order = append(c.order, key)
}

func (c *SelectionCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*cacheEntry)
	c.order = c.order[:0]
	c.indexGen++
}

func (c *SelectionCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *SelectionCache) generation() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.indexGen
}

func (c *SelectionCache) evictOldest() {
	if len(c.order) == 0 {
		return
	}
	oldest := c.order[0]
	c.order = c.order[1:]
	delete(c.entries, oldest)
}

func (c *SelectionCache) moveToEnd(key string) {
	c.removeFromOrder(key)
	c.order = append(c.order, key)
}

func (c *SelectionCache) removeFromOrder(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}

func copyResults(results []domain.SearchResult) []domain.SearchResult {
	if results == nil {
		return nil
	}
	out := make([]domain.SearchResult, len(results))
	copy(out, results)
	return out
}

// CachedSelector serves repeated selections from a SelectionCache. Errors
// are never cached.
type CachedSelector struct {
	selector port.Selector
	cache    *SelectionCache
}

func NewCachedSelector(selector port.Selector, cache *SelectionCache) *CachedSelector {
	return &CachedSelector{
		selector: selector,
		cache:    cache,
	}
}

func (s *CachedSelector) SelectModel(ctx context.Context, query string, opts domain.SearchOptions) ([]domain.SearchResult, error) {
	if results, hit := s.cache.Get(query, opts); hit {
		return results, nil
	}

	gen := s.cache.generation()
	results, err := s.selector.SelectModel(ctx, query, opts)
	if err != nil {
		return nil, err
	}

	s.cache.putGen(query, opts, results, gen)

	return results, nil
}

// Invalidate clears the underlying cache, typically after a re-index.
func (s *CachedSelector) Invalidate() {
	s.cache.Invalidate()
}
