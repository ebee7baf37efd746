package llm

import (
	"context"

	"github.com/sells-group/report-analyst/internal/cache"
)

// CachedCompleter serves identical requests from a response cache. The key
// covers model, system instruction, and prompt.
type CachedCompleter struct {
	next  Completer
	cache *cache.Cache
}

// NewCachedCompleter wraps next with c.
func NewCachedCompleter(next Completer, c *cache.Cache) *CachedCompleter {
	return &CachedCompleter{next: next, cache: c}
}

// Complete implements Completer.
func (c *CachedCompleter) Complete(ctx context.Context, req Request) (string, error) {
	key := cache.Key(req.Model, req.System, req.Prompt)
	return c.cache.Do(ctx, key, func(ctx context.Context) (string, error) {
		return c.next.Complete(ctx, req)
	})
}
