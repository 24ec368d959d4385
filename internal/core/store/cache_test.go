package store

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entryAt(at time.Time, body string) Entry {
	return Entry{StoredAt: at, FetchedAt: at, Status: 200, Payload: json.RawMessage(body)}
}

func TestMemoryCache(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	ttl := 30 * time.Second

	t.Run("HitWithinTTL", func(t *testing.T) {
		cache := NewMemoryCache()
		cache.Put("https://a", entryAt(base, `{"x":1}`))

		entry, ok := cache.Get("https://a", base.Add(29*time.Second), ttl)
		require.True(t, ok)
		require.JSONEq(t, `{"x":1}`, string(entry.Payload))
		require.Equal(t, 29*time.Second, entry.Age(base.Add(29*time.Second)))
		require.Equal(t, base.Add(29*time.Second), entry.LastAccessed)
	})

	t.Run("ExpiredAtTTL", func(t *testing.T) {
		cache := NewMemoryCache()
		cache.Put("https://a", entryAt(base, `{}`))

		_, ok := cache.Get("https://a", base.Add(ttl), ttl)
		require.False(t, ok)
		require.Equal(t, 0, cache.Len())
	})

	t.Run("DisabledTTL", func(t *testing.T) {
		cache := NewMemoryCache()
		cache.Put("https://a", entryAt(base, `{}`))

		_, ok := cache.Get("https://a", base, 0)
		require.False(t, ok)
	})

	t.Run("PruneExpiredThenLRU", func(t *testing.T) {
		cache := NewMemoryCache()
		cache.Put("old", entryAt(base.Add(-time.Minute), `{}`))
		cache.Put("a", entryAt(base, `{}`))
		cache.Put("b", entryAt(base.Add(time.Second), `{}`))
		cache.Put("c", entryAt(base.Add(2*time.Second), `{}`))

		// touching a makes b the least recently used
		_, ok := cache.Get("a", base.Add(3*time.Second), ttl)
		require.True(t, ok)

		removed := cache.Prune(base.Add(4*time.Second), ttl, 2)
		require.Equal(t, 2, removed)
		require.Equal(t, 2, cache.Len())

		_, ok = cache.Get("b", base.Add(5*time.Second), ttl)
		require.False(t, ok)
		_, ok = cache.Get("a", base.Add(5*time.Second), ttl)
		require.True(t, ok)
		_, ok = cache.Get("c", base.Add(5*time.Second), ttl)
		require.True(t, ok)
	})

	t.Run("PruneWithoutTTLKeepsOnlyCapacity", func(t *testing.T) {
		cache := NewMemoryCache()
		cache.Put("a", entryAt(base.Add(-time.Hour), `{}`))
		cache.Put("b", entryAt(base, `{}`))

		require.Equal(t, 0, cache.Prune(base, 0, 5))
		require.Equal(t, 1, cache.Prune(base, 0, 1))
		require.Equal(t, 1, cache.Len())
	})

	t.Run("Reset", func(t *testing.T) {
		cache := NewMemoryCache()
		cache.Put("a", entryAt(base, `{}`))
		cache.Reset()
		require.Equal(t, 0, cache.Len())
	})

	t.Run("NilCacheIsInert", func(t *testing.T) {
		var cache *MemoryCache
		cache.Put("a", entryAt(base, `{}`))
		_, ok := cache.Get("a", base, ttl)
		require.False(t, ok)
		require.Equal(t, 0, cache.Len())
	})
}

func TestMemoryCacheConcurrentAccess(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	ttl := time.Minute
	const maxEntries = 4

	cache := NewMemoryCache()
	var wg sync.WaitGroup
	for worker := 0; worker < 8; worker++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				now := base.Add(time.Duration(i) * time.Millisecond)
				key := fmt.Sprintf("https://upstream/%d", (worker+i)%10)
				cache.Put(key, entryAt(now, `{"ok":true}`))
				if entry, ok := cache.Get(key, now, ttl); ok {
					assert.JSONEq(t, `{"ok":true}`, string(entry.Payload))
				}
				cache.Prune(now, ttl, maxEntries)
			}
		}(worker)
	}
	wg.Wait()

	cache.Prune(base.Add(time.Second), ttl, maxEntries)
	require.LessOrEqual(t, cache.Len(), maxEntries)
	require.Positive(t, cache.Len())
}
