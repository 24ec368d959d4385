// Package store holds process-local state shared across lookups.
package store

import (
	"encoding/json"
	"sort"
	"sync"
	"time"
)

// Entry is one cached upstream response, keyed by its exact request URL.
type Entry struct {
	StoredAt     time.Time
	LastAccessed time.Time
	FetchedAt    time.Time
	Status       int
	Payload      json.RawMessage
}

// Age returns how long ago the entry was stored.
func (e Entry) Age(now time.Time) time.Duration {
	return now.Sub(e.StoredAt)
}

// MemoryCache is a bounded TTL/LRU cache. TTL and capacity are supplied per
// call so that callers with different policies can share one instance.
// There is no background sweep; expired entries are dropped on Get and Prune.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]*Entry
}

// NewMemoryCache returns an empty cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]*Entry)}
}

// Get returns the entry for key when it is younger than ttl. A hit refreshes
// LastAccessed. Expired entries are removed and read as absent.
func (c *MemoryCache) Get(key string, now time.Time, ttl time.Duration) (Entry, bool) {
	if c == nil || ttl <= 0 {
		return Entry{}, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return Entry{}, false
	}
	if entry.Age(now) >= ttl {
		delete(c.entries, key)
		return Entry{}, false
	}

	entry.LastAccessed = now
	return *entry, true
}

// Put inserts or overwrites the entry for key.
func (c *MemoryCache) Put(key string, entry Entry) {
	if c == nil {
		return
	}
	if entry.LastAccessed.IsZero() {
		entry.LastAccessed = entry.StoredAt
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.entries == nil {
		c.entries = make(map[string]*Entry)
	}
	c.entries[key] = &entry
}

// Prune removes every entry at least ttl old (when ttl > 0), then evicts the
// least recently accessed entries until at most maxEntries remain. It
// returns the number of entries removed.
func (c *MemoryCache) Prune(now time.Time, ttl time.Duration, maxEntries int) int {
	if c == nil {
		return 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	if ttl > 0 {
		for key, entry := range c.entries {
			if entry.Age(now) >= ttl {
				delete(c.entries, key)
				removed++
			}
		}
	}

	if maxEntries < 0 {
		maxEntries = 0
	}
	overflow := len(c.entries) - maxEntries
	if overflow <= 0 {
		return removed
	}

	keys := make([]string, 0, len(c.entries))
	for key := range c.entries {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		return c.entries[keys[i]].LastAccessed.Before(c.entries[keys[j]].LastAccessed)
	})
	for _, key := range keys[:overflow] {
		delete(c.entries, key)
		removed++
	}

	return removed
}

// Len returns the number of stored entries, expired or not.
func (c *MemoryCache) Len() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Reset drops every entry.
func (c *MemoryCache) Reset() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.entries = make(map[string]*Entry)
	c.mu.Unlock()
}
