package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver
	"github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
)

// DefaultTable is the table SQL backends store entries in.
const DefaultTable = "apinni_cache"

// SQLCache stores entries in one table of a SQL database.
type SQLCache struct {
	db     *sql.DB
	table  string
	config CacheConfig
}

// OpenSQLCache opens dsn with the named driver and prepares the cache table.
func OpenSQLCache(ctx context.Context, driver, dsn string, config CacheConfig) (*SQLCache, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	c, err := NewSQLCache(ctx, db, driver, config)
	if err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

// NewSQLCache creates the cache table on db if it does not exist.
func NewSQLCache(ctx context.Context, db *sql.DB, driver string, config CacheConfig) (*SQLCache, error) {
	c := &SQLCache{db: db, table: pq.QuoteIdentifier(DefaultTable), config: config}

	blob := "BYTEA"
	if driver == DriverSQLite {
		blob = "BLOB"
	}
	query := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		cache_key VARCHAR(512) PRIMARY KEY,
		value %s NOT NULL,
		expires_at BIGINT NOT NULL DEFAULT 0
	)`, c.table, blob)

	if _, err := db.ExecContext(ctx, query); err != nil {
		return nil, fmt.Errorf("failed to create cache table: %w", err)
	}
	return c, nil
}

func (c *SQLCache) lookup(ctx context.Context, key string) ([]byte, int64, error) {
	query := fmt.Sprintf(`SELECT value, expires_at FROM %s WHERE cache_key = $1`, c.table)

	var value []byte
	var expires int64
	err := c.db.QueryRowContext(ctx, query, c.config.Prefix+key).Scan(&value, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, 0, ErrCacheMiss{Key: key}
	}
	if err != nil {
		return nil, 0, fmt.Errorf("cache query error: %w", err)
	}
	if expires != 0 && time.Now().UnixNano() > expires {
		return nil, 0, ErrCacheMiss{Key: key}
	}
	return value, expires, nil
}

// Get retrieves a value from the cache
func (c *SQLCache) Get(ctx context.Context, key string) ([]byte, error) {
	value, _, err := c.lookup(ctx, key)
	return value, err
}

// Set stores a value in the cache with a TTL
func (c *SQLCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl == 0 {
		ttl = c.config.DefaultTTL
	}
	var expires int64
	if ttl > 0 {
		expires = time.Now().Add(ttl).UnixNano()
	}

	query := fmt.Sprintf(`INSERT INTO %s (cache_key, value, expires_at) VALUES ($1, $2, $3)
		ON CONFLICT (cache_key) DO UPDATE SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at`, c.table)

	if _, err := c.db.ExecContext(ctx, query, c.config.Prefix+key, value, expires); err != nil {
		return fmt.Errorf("cache insert error: %w", err)
	}
	return nil
}

// Delete removes a value from the cache
func (c *SQLCache) Delete(ctx context.Context, key string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE cache_key = $1`, c.table)
	_, err := c.db.ExecContext(ctx, query, c.config.Prefix+key)
	return err
}

// Clear removes every entry under the cache prefix.
func (c *SQLCache) Clear(ctx context.Context) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE cache_key LIKE $1`, c.table)
	_, err := c.db.ExecContext(ctx, query, c.config.Prefix+"%")
	return err
}

// Exists checks if a key exists in the cache
func (c *SQLCache) Exists(ctx context.Context, key string) (bool, error) {
	_, _, err := c.lookup(ctx, key)
	if IsCacheMiss(err) {
		return false, nil
	}
	return err == nil, err
}

// Close closes the database.
func (c *SQLCache) Close() error {
	return c.db.Close()
}
