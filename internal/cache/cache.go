// Package cache stores rendered generation outputs keyed by a fingerprint
// of their inputs.
package cache

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Cache defines the interface for all cache backends
type Cache interface {
	// Get retrieves a value from the cache
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value in the cache with a TTL
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value from the cache
	Delete(ctx context.Context, key string) error

	// Clear removes all values from the cache
	Clear(ctx context.Context) error

	// Exists checks if a key exists in the cache
	Exists(ctx context.Context, key string) (bool, error)
}

// Supported drivers.
const (
	DriverNone     = "none"
	DriverMemory   = "memory"
	DriverFS       = "fs"
	DriverRedis    = "redis"
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
	DriverPgx      = "pgx"
)

// Drivers lists the accepted driver names.
var Drivers = []string{DriverNone, DriverMemory, DriverFS, DriverRedis, DriverSQLite, DriverPostgres, DriverPgx}

// CacheConfig holds common configuration for cache backends
type CacheConfig struct {
	// DefaultTTL is the default time-to-live for cached items
	DefaultTTL time.Duration
	// Prefix is prepended to all cache keys
	Prefix string
}

// DefaultCacheConfig returns a default cache configuration
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		DefaultTTL: 24 * time.Hour,
		Prefix:     "apinni:",
	}
}

// Options selects and configures a backend.
type Options struct {
	Driver string
	// Dir is the directory of the fs backend, or of the default sqlite file.
	Dir string
	// URL is the redis URL or SQL data source name.
	URL string
	TTL time.Duration
}

// ErrCacheMiss is returned when a key is not found in the cache
type ErrCacheMiss struct {
	Key string
}

func (e ErrCacheMiss) Error() string {
	return "cache miss: " + e.Key
}

// IsCacheMiss checks if an error is a cache miss
func IsCacheMiss(err error) bool {
	_, ok := err.(ErrCacheMiss)
	return ok
}

// Open creates the backend selected by opts. The none driver returns a nil
// cache.
func Open(opts Options, logger *zap.Logger) (Cache, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	config := DefaultCacheConfig()
	if opts.TTL > 0 {
		config.DefaultTTL = opts.TTL
	}

	var (
		c   Cache
		err error
	)
	switch opts.Driver {
	case DriverNone:
		return nil, nil
	case "", DriverMemory:
		c = NewMemoryCacheWithConfig(config)
	case DriverFS:
		c, err = NewFSCache(opts.Dir, config)
	case DriverRedis:
		var ro *redis.Options
		ro, err = redis.ParseURL(opts.URL)
		if err == nil {
			c = NewRedisCacheWithClient(redis.NewClient(ro), config)
		}
	case DriverSQLite, DriverPostgres, DriverPgx:
		dsn := opts.URL
		if dsn == "" && opts.Driver == DriverSQLite {
			dsn = filepath.Join(opts.Dir, "cache.db")
		}
		c, err = OpenSQLCache(context.Background(), opts.Driver, dsn, config)
	default:
		return nil, fmt.Errorf("unknown cache driver %q", opts.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s cache: %w", opts.Driver, err)
	}

	logger.Debug("cache opened", zap.String("driver", opts.Driver))
	return c, nil
}
