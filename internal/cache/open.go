package cache

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/report-analyst/internal/config"
)

// Open creates a Cache from configuration. Driver "memory" (default) or "sqlite".
func Open(ctx context.Context, cfg config.CacheConfig, opts ...Option) (*Cache, error) {
	ttl := time.Duration(cfg.TTLMinutes) * time.Minute

	switch cfg.Driver {
	case "memory", "":
		return New(NewMemoryStore(), ttl, opts...), nil
	case "sqlite":
		dsn := cfg.DSN
		if dsn == "" {
			dsn = ":memory:"
		}
		st, err := NewSQLiteStore(ctx, dsn)
		if err != nil {
			return nil, eris.Wrap(err, "cache: open sqlite")
		}
		return New(st, ttl, opts...), nil
	default:
		return nil, eris.Errorf("cache: unknown driver %q", cfg.Driver)
	}
}
