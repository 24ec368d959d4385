package upstream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/routelens/routelens/internal/core/store"
)

func newRDAPServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rdap+json")
		switch r.URL.Path {
		case "/autnum/15169":
			_, _ = w.Write([]byte(`{"objectClassName":"autnum","handle":"AS15169","startAutnum":15169,"endAutnum":15169,"name":"GOOGLE","type":"DIRECT ALLOCATION","country":"US"}`))
		case "/ip/8.8.8.8":
			_, _ = w.Write([]byte(`{"objectClassName":"ip network","handle":"NET-8-8-8-0-2","startAddress":"8.8.8.0","endAddress":"8.8.8.255","ipVersion":"v4","name":"GOGL","type":"DIRECT ALLOCATION","parentHandle":"NET-8-0-0-0-1"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"errorCode":404,"title":"not found"}`))
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func TestRDAPAutnum(t *testing.T) {
	server := newRDAPServer(t)
	resolver := &RDAP{Fetcher: &Client{}, Server: server.URL}

	result := resolver.Autnum(context.Background(), "15169", Options{Provider: "rdap", Timeout: 5 * time.Second})
	require.True(t, result.OK, result.Error)
	require.Equal(t, server.URL+"/autnum/15169", result.URL)

	entry := ParseRegistration(result.Payload)
	require.NotNil(t, entry)
	require.Equal(t, "AS15169", entry.Handle)
	require.Equal(t, "GOOGLE", entry.Name)
	require.Equal(t, "15169", entry.Start)
	require.Equal(t, "US", entry.Country)
}

func TestRDAPIPNetwork(t *testing.T) {
	server := newRDAPServer(t)
	cache := store.NewMemoryCache()
	resolver := &RDAP{Fetcher: &Client{Cache: cache}, Server: server.URL}
	opts := Options{Provider: "rdap", Timeout: 5 * time.Second, CacheTTL: time.Minute, CacheMaxEntries: 8}

	result := resolver.IPNetwork(context.Background(), "8.8.8.8", opts)
	require.True(t, result.OK, result.Error)

	entry := ParseRegistration(result.Payload)
	require.NotNil(t, entry)
	require.Equal(t, "NET-8-8-8-0-2", entry.Handle)
	require.Equal(t, "8.8.8.0", entry.Start)
	require.Equal(t, "NET-8-0-0-0-1", entry.Parent)

	again := resolver.IPNetwork(context.Background(), "8.8.8.8", opts)
	require.True(t, again.Cached)
}

func TestRDAPNotFound(t *testing.T) {
	server := newRDAPServer(t)
	resolver := &RDAP{Fetcher: &Client{}, Server: server.URL}

	result := resolver.Autnum(context.Background(), "64512", Options{Provider: "rdap", Timeout: 5 * time.Second})
	require.False(t, result.OK)
	require.Equal(t, http.StatusNotFound, result.Status)
	require.Equal(t, "HTTP 404", result.Error)
}

func TestRDAPInvalidInput(t *testing.T) {
	resolver := &RDAP{Server: "http://127.0.0.1:1"}

	result := resolver.Autnum(context.Background(), "not-a-number", Options{Provider: "rdap"})
	require.False(t, result.OK)
	require.Contains(t, result.Error, "invalid asn")

	result = resolver.IPNetwork(context.Background(), "999.1.1.1", Options{Provider: "rdap"})
	require.False(t, result.OK)
	require.Contains(t, result.Error, "invalid ip")
}
