package fetch

import (
	"sync"
	"time"
)

// Cache is an in-memory byte cache with a TTL and a bound on entries. When
// full, the entry closest to expiry is evicted.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]entry
	ttl     time.Duration
	max     int
	now     func() time.Time
}

type entry struct {
	data    []byte
	expires time.Time
}

// NewCache creates a Cache. max <= 0 means unbounded.
func NewCache(ttl time.Duration, max int) *Cache {
	return &Cache{entries: make(map[string]entry), ttl: ttl, max: max, now: time.Now}
}

// Get returns a live entry.
func (c *Cache) Get(key string) ([]byte, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || !c.now().Before(e.expires) {
		return nil, false
	}
	return e.data, true
}

// Set stores data under key.
func (c *Cache) Set(key string, data []byte) {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[key]; !ok && c.max > 0 && len(c.entries) >= c.max {
		c.evict(now)
	}
	c.entries[key] = entry{data: data, expires: now.Add(c.ttl)}
}

// Invalidate drops every entry.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.entries = make(map[string]entry)
	c.mu.Unlock()
}

// Len reports the number of stored entries, live or not.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// evict drops expired entries, or the oldest one when none has expired.
// Callers hold the write lock.
func (c *Cache) evict(now time.Time) {
	var oldest string
	var oldestAt time.Time
	dropped := false
	for k, e := range c.entries {
		if !now.Before(e.expires) {
			delete(c.entries, k)
			dropped = true
			continue
		}
		if oldest == "" || e.expires.Before(oldestAt) {
			oldest, oldestAt = k, e.expires
		}
	}
	if !dropped && oldest != "" {
		delete(c.entries, oldest)
	}
}
