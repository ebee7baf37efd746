// Package cache memoises completion responses for a bounded time window.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"golang.org/x/text/unicode/norm"
)

// DefaultTTL is how long a response stays valid.
const DefaultTTL = time.Hour

// Entry is a stored response.
type Entry struct {
	Value     string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Store persists cache entries. Get returns (nil, nil) for a missing key.
// Expiry is checked by Cache, not by the store.
type Store interface {
	Get(ctx context.Context, key string) (*Entry, error)
	Set(ctx context.Context, key string, e Entry) error
	Delete(ctx context.Context, key string) error
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
	Close() error
}

// Stats counts cache lookups.
type Stats struct {
	Hits   int64
	Misses int64
}

// Cache is a TTL response cache. Failures are never stored, and concurrent
// callers computing the same key share one computation.
type Cache struct {
	store Store
	ttl   time.Duration
	now   func() time.Time
	group singleflight.Group

	hits   atomic.Int64
	misses atomic.Int64
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock replaces time.Now for expiry decisions.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// New creates a Cache backed by store. A non-positive ttl uses DefaultTTL.
func New(store Store, ttl time.Duration, opts ...Option) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := &Cache{store: store, ttl: ttl, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Do returns the cached value for key, or runs compute and stores its
// result. A compute error is returned as-is and nothing is stored. Store
// errors are logged and treated as misses.
func (c *Cache) Do(ctx context.Context, key string, compute func(ctx context.Context) (string, error)) (string, error) {
	if v, ok := c.lookup(ctx, key); ok {
		return v, nil
	}

	v, err, shared := c.group.Do(key, func() (any, error) {
		// Another caller may have filled the entry while we waited.
		if v, ok := c.lookup(ctx, key); ok {
			return v, nil
		}
		c.misses.Add(1)

		v, err := compute(ctx)
		if err != nil {
			return "", err
		}

		now := c.now()
		if serr := c.store.Set(ctx, key, Entry{Value: v, CreatedAt: now, ExpiresAt: now.Add(c.ttl)}); serr != nil {
			zap.L().Warn("cache: store set failed", zap.String("key", shortKey(key)), zap.Error(serr))
		}
		return v, nil
	})
	if err != nil {
		return "", err
	}
	if shared {
		zap.L().Debug("cache: shared in-flight computation", zap.String("key", shortKey(key)))
	}
	return v.(string), nil
}

func (c *Cache) lookup(ctx context.Context, key string) (string, bool) {
	e, err := c.store.Get(ctx, key)
	if err != nil {
		zap.L().Warn("cache: store get failed", zap.String("key", shortKey(key)), zap.Error(err))
		return "", false
	}
	if e == nil {
		return "", false
	}
	if !c.now().Before(e.ExpiresAt) {
		if err := c.store.Delete(ctx, key); err != nil {
			zap.L().Warn("cache: delete expired entry failed", zap.String("key", shortKey(key)), zap.Error(err))
		}
		return "", false
	}
	c.hits.Add(1)
	zap.L().Debug("cache: hit", zap.String("key", shortKey(key)))
	return e.Value, true
}

// Purge removes expired entries from the store.
func (c *Cache) Purge(ctx context.Context) (int, error) {
	return c.store.DeleteExpired(ctx, c.now())
}

// Stats returns lookup counters.
func (c *Cache) Stats() Stats {
	return Stats{Hits: c.hits.Load(), Misses: c.misses.Load()}
}

// Close closes the underlying store.
func (c *Cache) Close() error {
	return c.store.Close()
}

// Key derives a deterministic cache key from the model, system instruction,
// and prompt. Text is NFC-normalised, line endings folded to \n, and outer
// whitespace trimmed before hashing.
func Key(model, system, prompt string) string {
	h := sha256.New()
	for _, part := range []string{model, system, prompt} {
		h.Write([]byte(normalize(part)))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

func normalize(s string) string {
	s = norm.NFC.String(s)
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	return strings.TrimSpace(s)
}

func shortKey(key string) string {
	if len(key) > 12 {
		return key[:12]
	}
	return key
}
