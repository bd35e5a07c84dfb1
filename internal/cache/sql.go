package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// SQLCache stores entries in a cache_entries table on the application's own
// database, sharing its connection pool. Expiry is lazy: reads filter on
// expires_at and stale rows are overwritten by the next Put on the same key.
type SQLCache struct {
	db     *sqlx.DB
	driver string
}

// NewSQLCache builds a database-backed cache on an existing pool and creates
// the cache table if needed.
func NewSQLCache(db *sqlx.DB) (*SQLCache, error) {
	c := &SQLCache{db: db, driver: db.DriverName()}

	var schema string
	if c.driver == "mysql" {
		schema = `CREATE TABLE IF NOT EXISTS cache_entries (
			cache_key VARCHAR(255) PRIMARY KEY,
			cache_value TEXT NOT NULL,
			expires_at DATETIME(6) NOT NULL
		)`
	} else {
		schema = `CREATE TABLE IF NOT EXISTS cache_entries (
			cache_key TEXT PRIMARY KEY,
			cache_value TEXT NOT NULL,
			expires_at TIMESTAMPTZ NOT NULL
		)`
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("create cache table: %w", err)
	}
	return c, nil
}

func (c *SQLCache) rebind(query string) string {
	return sqlx.Rebind(sqlx.BindType(c.driver), query)
}

func (c *SQLCache) Get(ctx context.Context, key string) (string, bool, error) {
	query := c.rebind(`SELECT cache_value FROM cache_entries WHERE cache_key = ? AND expires_at > ?`)
	var value string
	err := c.db.GetContext(ctx, &value, query, key, time.Now().UTC())
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("cache get: %w", err)
	}
	return value, true, nil
}

func (c *SQLCache) Has(ctx context.Context, key string) (bool, error) {
	_, ok, err := c.Get(ctx, key)
	return ok, err
}

func (c *SQLCache) Put(ctx context.Context, key, value string, ttl time.Duration) error {
	expiresAt := time.Now().UTC().Add(ttl)

	var query string
	if c.driver == "mysql" {
		query = `INSERT INTO cache_entries (cache_key, cache_value, expires_at) VALUES (?, ?, ?)
			ON DUPLICATE KEY UPDATE cache_value = VALUES(cache_value), expires_at = VALUES(expires_at)`
	} else {
		query = `INSERT INTO cache_entries (cache_key, cache_value, expires_at) VALUES (?, ?, ?)
			ON CONFLICT (cache_key) DO UPDATE SET cache_value = EXCLUDED.cache_value, expires_at = EXCLUDED.expires_at`
	}
	if _, err := c.db.ExecContext(ctx, c.rebind(query), key, value, expiresAt); err != nil {
		return fmt.Errorf("cache put: %w", err)
	}
	return nil
}

func (c *SQLCache) Forget(ctx context.Context, key string) error {
	query := c.rebind(`DELETE FROM cache_entries WHERE cache_key = ?`)
	if _, err := c.db.ExecContext(ctx, query, key); err != nil {
		return fmt.Errorf("cache forget: %w", err)
	}
	return nil
}

func (c *SQLCache) ForgetMany(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	query, args, err := sqlx.In(`DELETE FROM cache_entries WHERE cache_key IN (?)`, keys)
	if err != nil {
		return fmt.Errorf("cache forget many: %w", err)
	}
	if _, err := c.db.ExecContext(ctx, c.rebind(query), args...); err != nil {
		return fmt.Errorf("cache forget many: %w", err)
	}
	return nil
}

// Close is a no-op; the pool belongs to the database store.
func (c *SQLCache) Close() error {
	return nil
}
