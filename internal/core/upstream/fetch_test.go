package upstream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fulmenhq/gofulmen/telemetry"
	telemetrytesting "github.com/fulmenhq/gofulmen/telemetry/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/routelens/routelens/internal/core/store"
	"github.com/routelens/routelens/internal/observability"
)

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }

func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestClock() *testClock {
	return &testClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func setupTelemetry(t *testing.T) *telemetrytesting.FakeCollector {
	t.Helper()

	collector := telemetrytesting.NewFakeCollector()
	sys, err := telemetry.NewSystem(&telemetry.Config{Enabled: true, Emitter: collector})
	require.NoError(t, err)

	original := observability.TelemetrySystem
	observability.TelemetrySystem = sys
	t.Cleanup(func() {
		observability.TelemetrySystem = original
	})
	return collector
}

func TestFetchSuccess(t *testing.T) {
	collector := setupTelemetry(t)

	var gotCacheControl, gotCookie, gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotCacheControl = r.Header.Get("Cache-Control")
		gotCookie = r.Header.Get("Cookie")
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{ "time": "2025-01-01T00:00:00", "data": {"prefix": "8.8.8.0/24"} }`))
	}))
	defer server.Close()

	clock := newTestClock()
	client := &Client{Clock: clock.Now}

	result := client.Fetch(context.Background(), server.URL+"/data", Options{Provider: "ripestat", Timeout: time.Second})

	require.True(t, result.OK)
	require.Empty(t, result.Error)
	require.Equal(t, http.StatusOK, result.Status)
	require.Equal(t, server.URL+"/data", result.URL)
	require.Equal(t, clock.now, result.FetchedAt)
	require.False(t, result.Cached)
	require.True(t, strings.HasPrefix(result.Digest, "sha256:"))
	require.Equal(t, "8.8.8.0/24", ParseNetworkInfo(result.Payload).Prefix)

	assert.Equal(t, "no-store", gotCacheControl)
	assert.Empty(t, gotCookie)
	assert.Empty(t, gotAuth)
	assert.Greater(t, collector.CountMetricsByName("upstream_calls_total"), 0)
}

func TestFetchStampsRequestStart(t *testing.T) {
	clock := newTestClock()
	start := clock.now
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clock.Advance(3 * time.Second)
		_, _ = w.Write([]byte(`{"data":{}}`))
	}))
	defer server.Close()

	client := &Client{Clock: clock.Now}
	result := client.Fetch(context.Background(), server.URL, Options{Provider: "ripestat", Timeout: time.Second})

	require.True(t, result.OK)
	require.Equal(t, start, result.FetchedAt)
	require.Equal(t, start.Add(3*time.Second), clock.now)
}

func TestFetchDigestIsCanonical(t *testing.T) {
	a := payloadDigest([]byte(`{"a":1,"b":2}`))
	b := payloadDigest([]byte(`{ "b": 2, "a": 1 }`))
	require.NotEmpty(t, a)
	require.Equal(t, a, b)
	require.Empty(t, payloadDigest([]byte(`{`)))
}

func TestFetchHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := &Client{}
	result := client.Fetch(context.Background(), server.URL, Options{Provider: "routeviews"})

	require.False(t, result.OK)
	require.Equal(t, http.StatusServiceUnavailable, result.Status)
	require.Equal(t, "HTTP 503", result.Error)
	require.Equal(t, server.URL, result.URL)
	require.False(t, result.FetchedAt.IsZero())
}

func TestFetchInvalidJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>not json</html>`))
	}))
	defer server.Close()

	client := &Client{}
	result := client.Fetch(context.Background(), server.URL, Options{Provider: "ripestat"})

	require.False(t, result.OK)
	require.Equal(t, http.StatusOK, result.Status)
	require.NotEmpty(t, result.Error)
	require.Nil(t, result.Payload)
}

func TestFetchTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	client := &Client{}
	started := time.Now()
	result := client.Fetch(context.Background(), server.URL, Options{Provider: "ripestat", Timeout: 50 * time.Millisecond})

	require.False(t, result.OK)
	require.Equal(t, 0, result.Status)
	require.Equal(t, "timeout after 50ms", result.Error)
	require.Less(t, time.Since(started), time.Second)
}

func TestFetchTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client := &Client{}
	result := client.Fetch(context.Background(), url, Options{Provider: "ripestat", Timeout: time.Second})

	require.False(t, result.OK)
	require.Equal(t, 0, result.Status)
	require.NotEmpty(t, result.Error)
}

func TestFetchCache(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	t.Run("HitWithinTTL", func(t *testing.T) {
		hits.Store(0)
		clock := newTestClock()
		client := &Client{Cache: store.NewMemoryCache(), Clock: clock.Now}
		opts := Options{Provider: "ripestat", CacheTTL: 30 * time.Second, CacheMaxEntries: 10}

		first := client.Fetch(context.Background(), server.URL+"/x", opts)
		clock.Advance(5 * time.Second)
		second := client.Fetch(context.Background(), server.URL+"/x", opts)

		require.True(t, first.OK)
		require.True(t, second.OK)
		require.True(t, second.Cached)
		require.Equal(t, 5*time.Second, second.CacheAge)
		require.Equal(t, first.FetchedAt, second.FetchedAt)
		require.Equal(t, first.Digest, second.Digest)
		require.JSONEq(t, string(first.Payload), string(second.Payload))
		require.Equal(t, int32(1), hits.Load())
	})

	t.Run("ExpiredEntryRefetches", func(t *testing.T) {
		hits.Store(0)
		clock := newTestClock()
		client := &Client{Cache: store.NewMemoryCache(), Clock: clock.Now}
		opts := Options{Provider: "ripestat", CacheTTL: time.Second, CacheMaxEntries: 10}

		client.Fetch(context.Background(), server.URL+"/x", opts)
		clock.Advance(time.Second)
		result := client.Fetch(context.Background(), server.URL+"/x", opts)

		require.False(t, result.Cached)
		require.Equal(t, int32(2), hits.Load())
	})

	t.Run("DisabledTTL", func(t *testing.T) {
		hits.Store(0)
		cache := store.NewMemoryCache()
		client := &Client{Cache: cache}
		opts := Options{Provider: "ripestat", CacheTTL: 0, CacheMaxEntries: 10}

		client.Fetch(context.Background(), server.URL+"/x", opts)
		client.Fetch(context.Background(), server.URL+"/x", opts)

		require.Equal(t, int32(2), hits.Load())
		require.Equal(t, 0, cache.Len())
	})

	t.Run("LeastRecentlyUsedEvicted", func(t *testing.T) {
		hits.Store(0)
		clock := newTestClock()
		cache := store.NewMemoryCache()
		client := &Client{Cache: cache, Clock: clock.Now}
		opts := Options{Provider: "ripestat", CacheTTL: time.Minute, CacheMaxEntries: 2}

		for _, key := range []string{"a", "b", "c", "a"} {
			client.Fetch(context.Background(), server.URL+"/"+key, opts)
			clock.Advance(time.Millisecond)
		}

		require.Equal(t, int32(4), hits.Load())
		require.LessOrEqual(t, cache.Len(), 2)
	})

	t.Run("FailuresAreNotCached", func(t *testing.T) {
		failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer failing.Close()

		cache := store.NewMemoryCache()
		client := &Client{Cache: cache}
		result := client.Fetch(context.Background(), failing.URL, Options{Provider: "routeviews", CacheTTL: time.Minute, CacheMaxEntries: 2})

		require.False(t, result.OK)
		require.Equal(t, 0, cache.Len())
	})
}
