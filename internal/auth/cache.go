package auth

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/MrWong99/cadenza/internal/config"
	"github.com/MrWong99/cadenza/internal/observe"
)

// Default token lifetime policy: tokens live 20 minutes and are replaced
// once they come within a minute of expiry.
const (
	DefaultTokenTTL      = 20 * time.Minute
	DefaultRefreshLeeway = time.Minute
)

// cacheKey is the composite identity of a cached token. Configuration can
// vary between calls, so every identity field participates.
type cacheKey struct {
	teamID  string
	keyID   string
	keyPath string
}

// cacheEntry is one live token. Entries are replaced, never mutated.
type cacheEntry struct {
	token     string
	expiresAt time.Time
}

// Cache is a process-wide, thread-safe store of minted developer tokens.
//
// The mutex covers only entry reads and writes — minting (key file I/O and
// signing) happens outside the critical section so that one key's slow mint
// never blocks token lookups for other keys. Two callers racing to mint the
// same key both succeed and the last writer wins; both tokens are
// individually valid until their own expiry, so no extra serialisation is
// added.
type Cache struct {
	minter  *Minter
	metrics *observe.Metrics

	mu      sync.Mutex
	entries map[cacheKey]cacheEntry

	// now is the clock, injectable for tests.
	now func() time.Time
}

// CacheOption is a functional option for configuring a [Cache].
type CacheOption func(*Cache)

// WithCacheMetrics wires mint/hit counters into the cache.
func WithCacheMetrics(m *observe.Metrics) CacheOption {
	return func(c *Cache) {
		c.metrics = m
	}
}

// WithCacheClock replaces the cache's clock. Intended for tests.
func WithCacheClock(now func() time.Time) CacheOption {
	return func(c *Cache) {
		c.now = now
	}
}

// NewCache returns an empty token cache backed by minter.
func NewCache(minter *Minter, opts ...CacheOption) *Cache {
	c := &Cache{
		minter:  minter,
		entries: make(map[cacheKey]cacheEntry),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Token returns a bearer token for cfg under the default TTL and refresh
// leeway.
func (c *Cache) Token(ctx context.Context, cfg config.MusicKitConfig) (string, error) {
	return c.TokenWithTTL(ctx, cfg, DefaultTokenTTL, DefaultRefreshLeeway)
}

// TokenWithTTL returns a cached token for cfg while it stays clear of
// expiry by at least leeway, and mints a replacement otherwise. The
// returned token is never within leeway of its expiry at return time.
func (c *Cache) TokenWithTTL(ctx context.Context, cfg config.MusicKitConfig, ttl, leeway time.Duration) (string, error) {
	key := cacheKey{teamID: cfg.TeamID, keyID: cfg.KeyID, keyPath: cfg.PrivateKeyPath}

	c.mu.Lock()
	if entry, ok := c.entries[key]; ok && entry.expiresAt.Add(-leeway).After(c.now()) {
		c.mu.Unlock()
		if c.metrics != nil {
			c.metrics.TokenCacheHits.Add(ctx, 1)
		}
		return entry.token, nil
	}
	c.mu.Unlock()

	token, expiresAt, err := c.minter.Mint(cfg, ttl)
	if c.metrics != nil {
		status := "success"
		if err != nil {
			status = "error"
		}
		c.metrics.TokenMints.Add(ctx, 1, metric.WithAttributes(observe.Attr("status", status)))
	}
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	c.entries[key] = cacheEntry{token: token, expiresAt: expiresAt}
	c.mu.Unlock()
	return token, nil
}
