package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/routelens/routelens/internal/core"
	"github.com/routelens/routelens/internal/core/engine"
	"github.com/routelens/routelens/internal/core/upstream"
	"github.com/routelens/routelens/internal/server/middleware"
)

type stubLooker struct {
	result *core.LookupResult
	raw    string
	caller string
	ctx    context.Context
}

func (s *stubLooker) Lookup(ctx context.Context, raw, caller string) *core.LookupResult {
	s.ctx, s.raw, s.caller = ctx, raw, caller
	return s.result
}

func TestLookupHandlerWritesEnvelope(t *testing.T) {
	stub := &stubLooker{result: &core.LookupResult{
		Kind:    core.ResultKindIP,
		Query:   "8.8.8.8",
		Trust:   core.TrustUntrusted,
		Sources: []core.SourceEvidence{},
		Status:  http.StatusOK,
	}}
	h := NewLookupHandler(stub)

	req := httptest.NewRequest(http.MethodGet, "/api/bgp/lookup?q=8.8.8.8", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	req = req.WithContext(context.WithValue(req.Context(), middleware.RequestIDContextKey, "req-1"))
	rec := httptest.NewRecorder()

	h.Lookup(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Header().Get(HeaderResponseTime))
	assert.Empty(t, rec.Header().Get(HeaderRetryAfter))
	assert.Equal(t, "8.8.8.8", stub.raw)
	assert.Equal(t, "ip:203.0.113.7", stub.caller)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ip", body["kind"])
	assert.Equal(t, "untrusted", body["trust"])
	_, hasStatus := body["Status"]
	assert.False(t, hasStatus)
}

func TestLookupHandlerRateLimited(t *testing.T) {
	retry := 7
	stub := &stubLooker{result: &core.LookupResult{
		Kind:   core.ResultKindError,
		Error:  engine.ErrRateLimitExceeded,
		Trust:  core.TrustTrusted,
		Status: http.StatusTooManyRequests,
		RateLimit: &core.RateLimitDecision{
			Allowed:       false,
			Limit:         1,
			RetryAfterSec: &retry,
		},
	}}
	h := NewLookupHandler(stub)

	rec := httptest.NewRecorder()
	h.Lookup(rec, httptest.NewRequest(http.MethodGet, "/api/bgp/lookup?q=1.1.1.1", nil))

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "7", rec.Header().Get(HeaderRetryAfter))
}

func TestLookupHandlerPassesRequestID(t *testing.T) {
	upstreamSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer upstreamSrv.Close()

	orch := &engine.Orchestrator{
		Fetcher:   &upstream.Client{HTTP: upstreamSrv.Client()},
		Endpoints: upstream.Endpoints{RIPEstatBaseURL: upstreamSrv.URL, RouteViewsBaseURL: upstreamSrv.URL},
		Limiter:   engine.NewCallerLimiter(),
		RateLimit: engine.Policy{Window: time.Minute, MaxRequests: 5, MaxKeys: 10},
	}
	h := NewLookupHandler(orch)

	req := httptest.NewRequest(http.MethodGet, "/api/bgp/lookup?q=8.8.8.8", nil)
	req = req.WithContext(context.WithValue(req.Context(), middleware.RequestIDContextKey, "req-from-header"))
	rec := httptest.NewRecorder()
	h.Lookup(rec, req)

	assert.Equal(t, http.StatusBadGateway, rec.Code)

	var result core.LookupResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, "req-from-header", result.Meta.RequestID)
	assert.Equal(t, 1, result.Meta.UpstreamErrors)
	require.Len(t, result.Sources, 1)
	assert.Equal(t, "HTTP 503", result.Sources[0].Error)
}

func TestLookupHandlerWithoutEngine(t *testing.T) {
	rec := httptest.NewRecorder()
	NewLookupHandler(nil).Lookup(rec, httptest.NewRequest(http.MethodGet, "/api/bgp/lookup?q=x", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestClassifyHandler(t *testing.T) {
	h := NewLookupHandler(nil)

	rec := httptest.NewRecorder()
	h.Classify(rec, httptest.NewRequest(http.MethodGet, "/api/bgp/classify?q=AS15169", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var classified core.ClassifiedQuery
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &classified))
	assert.Equal(t, core.QueryKindASN, classified.Kind)
	assert.Equal(t, "15169", classified.Value)

	rec = httptest.NewRecorder()
	h.Classify(rec, httptest.NewRequest(http.MethodGet, "/api/bgp/classify?q=%20", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCallerKey(t *testing.T) {
	tests := []struct {
		name       string
		forwarded  string
		realIP     string
		remoteAddr string
		want       string
	}{
		{name: "forwarded chain", forwarded: "198.51.100.4, 10.0.0.1", remoteAddr: "10.0.0.2:1234", want: "ip:198.51.100.4"},
		{name: "forwarded with port", forwarded: "198.51.100.4:443", want: "ip:198.51.100.4"},
		{name: "invalid forwarded falls to real ip", forwarded: "unknown", realIP: "2001:db8::1", want: "ip:2001:db8::1"},
		{name: "remote addr", remoteAddr: "192.0.2.9:5555", want: "ip:192.0.2.9"},
		{name: "bracketed remote v6", remoteAddr: "[2001:db8::2]:5555", want: "ip:2001:db8::2"},
		{name: "nothing usable", remoteAddr: "pipe", want: "ip:anon"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/bgp/lookup", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.forwarded != "" {
				req.Header.Set("X-Forwarded-For", tt.forwarded)
			}
			if tt.realIP != "" {
				req.Header.Set("X-Real-IP", tt.realIP)
			}
			assert.Equal(t, tt.want, CallerKey(req))
		})
	}
}
