// Package cache memoizes namespace declarations extracted from native source
// files.
//
// Keys are built from the file path, size and modification time, so a hit
// needs only a stat. In watch mode an unchanged plugin source is neither read
// nor scanned again while planning a rebuild; an edited file gets a new key.
package cache

import (
	"errors"
	"fmt"
	"io/fs"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

// DefaultMaxEntries bounds the cache when no size is configured
const DefaultMaxEntries = 4096

const minEntries = 16

var (
	// ErrCacheMiss is returned when a key has no entry
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidCacheKey is returned for an empty key
	ErrInvalidCacheKey = errors.New("invalid cache key")
)

// Config configures a NamespaceCache
type Config struct {
	MaxEntries int           // Smaller values are raised to a floor of 16
	TTL        time.Duration // Zero keeps entries until evicted
}

// Stats is a snapshot of cache counters
type Stats struct {
	Hits    int64
	Misses  int64
	Entries int
}

// HitRate returns hits over lookups, zero before the first lookup
func (s Stats) HitRate() float64 {
	if total := s.Hits + s.Misses; total > 0 {
		return float64(s.Hits) / float64(total)
	}
	return 0
}

// FileKey returns the cache key for the source file at path
func FileKey(path string, info fs.FileInfo) string {
	return fmt.Sprintf("%s|%d|%d", path, info.Size(), info.ModTime().UnixNano())
}

// NamespaceCache maps file keys to namespaces. An empty namespace is
// cached too, so files without a declaration are scanned once.
type NamespaceCache struct {
	entries *lru.LRU[string, string]
	hits    atomic.Int64
	misses  atomic.Int64
}

// NewNamespaceCache creates a cache sized by config, or DefaultMaxEntries
// when config is nil
func NewNamespaceCache(config *Config) *NamespaceCache {
	size, ttl := DefaultMaxEntries, time.Duration(0)
	if config != nil {
		size, ttl = config.MaxEntries, config.TTL
	}
	if size < minEntries {
		size = minEntries
	}

	return &NamespaceCache{
		entries: lru.NewLRU[string, string](size, nil, ttl),
	}
}

// Get retrieves a cached namespace
func (c *NamespaceCache) Get(key string) (string, error) {
	if key == "" {
		return "", ErrInvalidCacheKey
	}

	ns, ok := c.entries.Get(key)
	if !ok {
		c.misses.Add(1)
		return "", ErrCacheMiss
	}
	c.hits.Add(1)
	return ns, nil
}

// Set stores a namespace
func (c *NamespaceCache) Set(key, namespace string) error {
	if key == "" {
		return ErrInvalidCacheKey
	}
	c.entries.Add(key, namespace)
	return nil
}

// GetOrCompute returns the cached namespace for key, computing and storing it
// on a miss. Compute errors are returned and not cached.
func (c *NamespaceCache) GetOrCompute(key string, compute func() (string, error)) (string, error) {
	if ns, err := c.Get(key); err == nil || errors.Is(err, ErrInvalidCacheKey) {
		return ns, err
	}

	ns, err := compute()
	if err != nil {
		return "", err
	}
	c.entries.Add(key, ns)
	return ns, nil
}

// Stats returns the current counters
func (c *NamespaceCache) Stats() Stats {
	return Stats{
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Entries: c.entries.Len(),
	}
}

// Purge drops every entry. Counters are kept.
func (c *NamespaceCache) Purge() {
	c.entries.Purge()
}
