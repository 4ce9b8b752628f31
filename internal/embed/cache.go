package embed

import (
	"sync"
	"time"
)

// DefaultTTL is how long a cached vector stays valid.
const DefaultTTL = 300 * time.Second

type cacheEntry struct {
	value     []float64
	expiresAt time.Time
}

// Cache is a TTL cache for query embeddings. Expired entries are purged
// lazily on access; Sweep removes them in bulk and is meant to run on a
// cron schedule.
type Cache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	ttl     time.Duration

	hits   int64
	misses int64
}

// NewCache creates a cache with the given TTL; ttl <= 0 uses DefaultTTL.
func NewCache(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{entries: make(map[string]cacheEntry), ttl: ttl}
}

// Get returns the cached vector for key if present and unexpired.
func (c *Cache) Get(key string) ([]float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		c.misses++
		return nil, false
	}
	if time.Now().After(e.expiresAt) {
		delete(c.entries, key)
		c.misses++
		return nil, false
	}
	c.hits++
	return e.value, true
}

// Put stores a vector under key with the cache TTL.
func (c *Cache) Put(key string, value []float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{value: value, expiresAt: time.Now().Add(c.ttl)}
}

// Sweep removes every expired entry and returns how many were purged.
func (c *Cache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	purged := 0
	for k, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, k)
			purged++
		}
	}
	return purged
}

// Stats reports entry count, hits and misses since creation.
func (c *Cache) Stats() (entries int, hits, misses int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries), c.hits, c.misses
}
