package cache

import (
	"context"
	"database/sql"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS completion_cache (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	expires_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_completion_cache_expires_at ON completion_cache(expires_at);
`

// NewSQLiteStore opens a SQLite database at dsn and creates the cache table.
// An in-memory DSN keeps the cache scoped to the process.
func NewSQLiteStore(ctx context.Context, dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	// One connection keeps in-memory databases shared across calls.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	if _, err := db.ExecContext(ctx, sqliteMigration); err != nil {
		db.Close() //nolint:errcheck
		return nil, eris.Wrap(err, "sqlite: migrate cache")
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Get(ctx context.Context, key string) (*Entry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT value, created_at, expires_at FROM completion_cache WHERE key = ?`, key)

	var e Entry
	var created, expires int64
	err := row.Scan(&e.Value, &created, &expires)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get cache entry")
	}
	e.CreatedAt = time.Unix(0, created)
	e.ExpiresAt = time.Unix(0, expires)
	return &e, nil
}

func (s *SQLiteStore) Set(ctx context.Context, key string, e Entry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO completion_cache (key, value, created_at, expires_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value,
		   created_at = excluded.created_at, expires_at = excluded.expires_at`,
		key, e.Value, e.CreatedAt.UnixNano(), e.ExpiresAt.UnixNano(),
	)
	return eris.Wrap(err, "sqlite: set cache entry")
}

func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM completion_cache WHERE key = ?`, key)
	return eris.Wrap(err, "sqlite: delete cache entry")
}

func (s *SQLiteStore) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM completion_cache WHERE expires_at <= ?`, now.UnixNano())
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: delete expired cache entries")
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "sqlite: rows affected")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
