package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/routelens/routelens/internal/core"
	"github.com/routelens/routelens/internal/core/engine"
	"github.com/routelens/routelens/internal/core/store"
	"github.com/routelens/routelens/internal/core/upstream"
	apperrors "github.com/routelens/routelens/internal/errors"
	"github.com/routelens/routelens/internal/server/handlers"
	servermw "github.com/routelens/routelens/internal/server/middleware"
)

func TestServerUsesStandardErrorHandlers(t *testing.T) {
	srv := New(Options{Host: "127.0.0.1"})

	req := httptest.NewRequest(http.MethodGet, "/does-not-exist", nil)
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)

	var body apperrors.HTTPErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "NOT_FOUND", body.Error.Code)
	assert.NotEmpty(t, body.Error.RequestID)
}

func TestLookupRoutesNotRegisteredWithoutEngine(t *testing.T) {
	srv := New(Options{})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/bgp/lookup?q=8.8.8.8", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func newLookupServer(t *testing.T, maxRequests int) (*Server, *int) {
	t.Helper()

	calls := 0
	fake := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasPrefix(r.URL.Path, "/data/network-info/"):
			_, _ = fmt.Fprint(w, `{"time":"2026-10-16T00:00:00","data":{"prefix":"8.8.8.0/24","asns":["15169"]}}`)
		case r.URL.EscapedPath() == "/prefix/8.8.8.0%2F24":
			_, _ = fmt.Fprint(w, `[{"origin_asn":15169,"rpki_state":"valid","reporting_peers":[{"last_updated":"2026-10-15"}]}]`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(fake.Close)

	orch := &engine.Orchestrator{
		Fetcher:   &upstream.Client{HTTP: fake.Client(), Cache: store.NewMemoryCache()},
		Endpoints: upstream.Endpoints{RIPEstatBaseURL: fake.URL, RouteViewsBaseURL: fake.URL},
		Limiter:   engine.NewCallerLimiter(),
		RateLimit: engine.Policy{Window: time.Minute, MaxRequests: maxRequests, MaxKeys: 100},
		CacheTTL:  time.Minute,
	}
	return New(Options{Lookup: handlers.NewLookupHandler(orch)}), &calls
}

func TestLookupEndpoint(t *testing.T) {
	srv, calls := newLookupServer(t, 10)

	req := httptest.NewRequest(http.MethodGet, "/api/bgp/lookup?q=8.8.8.8", nil)
	req.Header.Set(servermw.RequestIDHeader, "req-lookup-1")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "req-lookup-1", rec.Header().Get(servermw.RequestIDHeader))
	assert.NotEmpty(t, rec.Header().Get(handlers.HeaderResponseTime))

	var result core.LookupResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, core.ResultKindIP, result.Kind)
	assert.False(t, result.Partial)
	assert.Equal(t, "req-lookup-1", result.Meta.RequestID)
	require.Len(t, result.Sources, 2)
	assert.Equal(t, 2, *calls)

	// Second lookup is served from the shared cache.
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/bgp/lookup?q=8.8.8.8", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, 2, result.Meta.CacheHits)
	assert.Equal(t, 2, *calls)
}

func TestLookupEndpointRateLimit(t *testing.T) {
	srv, _ := newLookupServer(t, 1)

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/bgp/lookup?q=", nil)
		req.Header.Set("X-Forwarded-For", "198.51.100.20")
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)
		return rec
	}

	first := send()
	assert.Equal(t, http.StatusBadRequest, first.Code)

	second := send()
	require.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.NotEmpty(t, second.Header().Get(handlers.HeaderRetryAfter))

	var result core.LookupResult
	require.NoError(t, json.Unmarshal(second.Body.Bytes(), &result))
	assert.Equal(t, engine.ErrRateLimitExceeded, result.Error)
	assert.Equal(t, core.TrustTrusted, result.Trust)
	require.NotNil(t, result.RateLimit)
	assert.False(t, result.RateLimit.Allowed)
}

func TestClassifyEndpoint(t *testing.T) {
	srv, calls := newLookupServer(t, 10)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/bgp/classify?q=8.8.8.0/24", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var classified core.ClassifiedQuery
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &classified))
	assert.Equal(t, core.QueryKindPrefix, classified.Kind)
	assert.Equal(t, 0, *calls)
}

func TestLookupEndpointMethodNotAllowed(t *testing.T) {
	srv, _ := newLookupServer(t, 10)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/bgp/lookup?q=8.8.8.8", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestOptionalRoutes(t *testing.T) {
	serve := func(srv *Server, method, path string) int {
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(method, path, nil))
		return rec.Code
	}

	plain := New(Options{})
	assert.Equal(t, http.StatusNotFound, serve(plain, http.MethodPost, "/admin/signal"))
	assert.Equal(t, http.StatusNotFound, serve(plain, http.MethodGet, "/debug/pprof/"))

	full := New(Options{AdminToken: "s3cret", Pprof: true})
	assert.NotEqual(t, http.StatusNotFound, serve(full, http.MethodPost, "/admin/signal"))
	assert.NotEqual(t, http.StatusOK, serve(full, http.MethodPost, "/admin/signal"), "unauthenticated signal must be refused")
	assert.Equal(t, http.StatusOK, serve(full, http.MethodGet, "/debug/pprof/"))
}
