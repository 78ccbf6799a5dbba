package search

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/MrWong99/cadenza/internal/catalog"
)

// DefaultCacheTTL is how long a cached search result stays fresh.
const DefaultCacheTTL = 5 * time.Minute

// cacheKey identifies one logical search. The term is lowercased and the
// types are sorted so that equivalent queries share an entry regardless of
// casing or type order.
type cacheKey struct {
	term   string
	types  string
	limit  int
	offset int
}

func newCacheKey(term string, types []string, limit, offset int) cacheKey {
	sorted := make([]string, len(types))
	copy(sorted, types)
	sort.Strings(sorted)
	return cacheKey{
		term:   strings.ToLower(term),
		types:  strings.Join(sorted, ","),
		limit:  limit,
		offset: offset,
	}
}

type cacheEntry struct {
	resp     *catalog.SearchResponse
	storedAt time.Time
}

// Cache memoizes catalog search responses for a bounded time. Entries are
// never evicted, only overwritten; the working set of distinct queries in
// one session stays small enough that this is fine for the process
// lifetime.
type Cache struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.RWMutex
	entries map[cacheKey]cacheEntry
}

// CacheOption configures a [Cache].
type CacheOption func(*Cache)

// WithTTL overrides the freshness window.
func WithTTL(ttl time.Duration) CacheOption {
	return func(c *Cache) {
		c.ttl = ttl
	}
}

// WithClock replaces the cache's time source. Intended for tests.
func WithClock(now func() time.Time) CacheOption {
	return func(c *Cache) {
		c.now = now
	}
}

// NewCache creates an empty search cache with [DefaultCacheTTL].
func NewCache(opts ...CacheOption) *Cache {
	c := &Cache{
		ttl:     DefaultCacheTTL,
		now:     time.Now,
		entries: make(map[cacheKey]cacheEntry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the cached response for the query, or nil when absent or
// stale. Stale entries are left in place for the next Put to overwrite.
func (c *Cache) Get(term string, types []string, limit, offset int) *catalog.SearchResponse {
	key := newCacheKey(term, types, limit, offset)

	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok || c.now().Sub(entry.storedAt) >= c.ttl {
		return nil
	}
	return entry.resp
}

// Put stores a response for the query, stamped with the current time.
func (c *Cache) Put(term string, types []string, limit, offset int, resp *catalog.SearchResponse) {
	key := newCacheKey(term, types, limit, offset)

	c.mu.Lock()
	c.entries[key] = cacheEntry{resp: resp, storedAt: c.now()}
	c.mu.Unlock()
}

// Len reports the number of stored entries, fresh or stale.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
