package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/report-analyst/internal/config"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func counting(calls *atomic.Int32, value string) func(context.Context) (string, error) {
	return func(context.Context) (string, error) {
		calls.Add(1)
		return value, nil
	}
}

func TestCache_HitWithinWindow(t *testing.T) {
	clock := newFakeClock()
	c := New(NewMemoryStore(), time.Hour, WithClock(clock.Now))
	ctx := context.Background()
	key := Key("gpt-4o", "system", "prompt")

	var calls atomic.Int32
	v, err := c.Do(ctx, key, counting(&calls, "first"))
	require.NoError(t, err)
	assert.Equal(t, "first", v)

	clock.Advance(59 * time.Minute)
	v, err = c.Do(ctx, key, counting(&calls, "second"))
	require.NoError(t, err)
	assert.Equal(t, "first", v)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, Stats{Hits: 1, Misses: 1}, c.Stats())
}

func TestCache_ExpiresAfterTTL(t *testing.T) {
	clock := newFakeClock()
	store := NewMemoryStore()
	c := New(store, time.Hour, WithClock(clock.Now))
	ctx := context.Background()

	var calls atomic.Int32
	_, err := c.Do(ctx, "k", counting(&calls, "old"))
	require.NoError(t, err)

	clock.Advance(time.Hour)
	v, err := c.Do(ctx, "k", counting(&calls, "new"))
	require.NoError(t, err)
	assert.Equal(t, "new", v)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, 1, store.Len())
}

func TestCache_FailuresNotCached(t *testing.T) {
	c := New(NewMemoryStore(), time.Hour)
	ctx := context.Background()
	boom := errors.New("service unavailable")

	var calls atomic.Int32
	_, err := c.Do(ctx, "k", func(context.Context) (string, error) {
		calls.Add(1)
		return "", boom
	})
	require.ErrorIs(t, err, boom)

	v, err := c.Do(ctx, "k", counting(&calls, "recovered"))
	require.NoError(t, err)
	assert.Equal(t, "recovered", v)
	assert.Equal(t, int32(2), calls.Load())
}

func TestCache_ConcurrentCallsShareComputation(t *testing.T) {
	c := New(NewMemoryStore(), time.Hour)
	ctx := context.Background()

	var calls atomic.Int32
	release := make(chan struct{})
	compute := func(context.Context) (string, error) {
		calls.Add(1)
		<-release
		return "value", nil
	}

	var wg sync.WaitGroup
	results := make([]string, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := c.Do(ctx, "same", compute)
			assert.NoError(t, err)
			results[i] = v
		}(i)
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, r := range results {
		assert.Equal(t, "value", r)
	}
}

func TestCache_Purge(t *testing.T) {
	clock := newFakeClock()
	store := NewMemoryStore()
	c := New(store, time.Minute, WithClock(clock.Now))
	ctx := context.Background()

	_, _ = c.Do(ctx, "a", func(context.Context) (string, error) { return "1", nil })
	clock.Advance(30 * time.Second)
	_, _ = c.Do(ctx, "b", func(context.Context) (string, error) { return "2", nil })
	clock.Advance(45 * time.Second)

	n, err := c.Purge(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, store.Len())
}

func TestNew_DefaultTTL(t *testing.T) {
	c := New(NewMemoryStore(), 0)
	assert.Equal(t, DefaultTTL, c.ttl)
}

func TestKey(t *testing.T) {
	base := Key("gpt-4o", "sys", "Clicks rose")

	assert.Len(t, base, 64)
	assert.Equal(t, base, Key("gpt-4o", "sys", "  Clicks rose\n"), "outer whitespace is ignored")
	assert.Equal(t, Key("m", "s", "a\nb"), Key("m", "s", "a\r\nb"), "line endings are folded")
	// Precomposed é vs e + combining acute.
	assert.Equal(t, Key("m", "s", "caf\u00e9"), Key("m", "s", "cafe\u0301"), "text is NFC normalised")

	assert.NotEqual(t, base, Key("claude-sonnet-4-5-20250929", "sys", "Clicks rose"))
	assert.NotEqual(t, base, Key("gpt-4o", "other", "Clicks rose"))
	assert.NotEqual(t, base, Key("gpt-4o", "sys", "Clicks fell"))
	assert.NotEqual(t, Key("ab", "c", "p"), Key("a", "bc", "p"), "parts are delimited")
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	c, err := Open(ctx, config.CacheConfig{Driver: "memory", TTLMinutes: 5})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, c.store)
	assert.Equal(t, 5*time.Minute, c.ttl)

	c, err = Open(ctx, config.CacheConfig{Driver: "sqlite"})
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() }) //nolint:errcheck
	assert.IsType(t, &SQLiteStore{}, c.store)
	assert.Equal(t, DefaultTTL, c.ttl)

	_, err = Open(ctx, config.CacheConfig{Driver: "redis"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown driver "redis"`)
}
