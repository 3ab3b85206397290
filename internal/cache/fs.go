package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// DefaultDir is the fs backend directory, relative to the working directory.
const DefaultDir = ".apinni/cache"

const entrySuffix = ".json"

// FSCache stores one JSON file per entry.
type FSCache struct {
	dir    string
	config CacheConfig
}

type fsEntry struct {
	Key     string `json:"key"`
	Expires int64  `json:"expires,omitempty"`
	Value   []byte `json:"value"`
}

// NewFSCache creates dir if needed and returns a cache stored in it.
func NewFSCache(dir string, config CacheConfig) (*FSCache, error) {
	if dir == "" {
		dir = DefaultDir
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &FSCache{dir: dir, config: config}, nil
}

// Dir returns the directory entries are stored in.
func (c *FSCache) Dir() string {
	return c.dir
}

func (c *FSCache) file(key string) string {
	sum := sha256.Sum256([]byte(c.config.Prefix + key))
	return filepath.Join(c.dir, hex.EncodeToString(sum[:])+entrySuffix)
}

func (c *FSCache) read(key string) (*fsEntry, error) {
	data, err := os.ReadFile(c.file(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrCacheMiss{Key: key}
	}
	if err != nil {
		return nil, err
	}

	var e fsEntry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("corrupt cache entry %s: %w", key, err)
	}
	if e.Expires != 0 && time.Now().UnixNano() > e.Expires {
		_ = os.Remove(c.file(key))
		return nil, ErrCacheMiss{Key: key}
	}
	return &e, nil
}

// Get retrieves a value from the cache
func (c *FSCache) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e, err := c.read(key)
	if err != nil {
		return nil, err
	}
	return e.Value, nil
}

// Set writes the entry to a temporary file and renames it into place.
func (c *FSCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if ttl == 0 {
		ttl = c.config.DefaultTTL
	}

	e := fsEntry{Key: key, Value: value}
	if ttl > 0 {
		e.Expires = time.Now().Add(ttl).UnixNano()
	}
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(c.dir, "entry-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), c.file(key))
}

// Delete removes a value from the cache
func (c *FSCache) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := os.Remove(c.file(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// Clear removes every entry file of the directory.
func (c *FSCache) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), entrySuffix) {
			continue
		}
		if err := os.Remove(filepath.Join(c.dir, entry.Name())); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return nil
}

// Exists checks if a key exists in the cache
func (c *FSCache) Exists(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	_, err := c.read(key)
	if IsCacheMiss(err) {
		return false, nil
	}
	return err == nil, err
}
