package metrics

import (
	"strconv"
	"time"

	"github.com/routelens/routelens/internal/observability"
)

// Lookup metrics
var (
	LookupRequestsTotal    = "lookup_requests_total"
	UpstreamCallsTotal     = "upstream_calls_total"
	UpstreamCacheHitsTotal = "upstream_cache_hits_total"
	UpstreamCallDuration   = "upstream_call_duration_ms"
	UpstreamCacheEntries   = "upstream_cache_entries"
	RateLimitDeniedTotal   = "rate_limit_denied_total"
)

// RecordLookup counts a finished lookup by result kind and status.
func RecordLookup(kind string, status int) {
	count(LookupRequestsTotal, map[string]string{
		"kind":   kind,
		"status": strconv.Itoa(status),
	})
}

// RecordUpstreamCall records one live upstream call and how long it took.
func RecordUpstreamCall(provider, outcome string, duration time.Duration) {
	if observability.TelemetrySystem == nil {
		return
	}
	_ = observability.TelemetrySystem.Counter(
		UpstreamCallsTotal,
		1,
		map[string]string{
			"provider": provider,
			"outcome":  outcome,
		},
	)
	_ = observability.TelemetrySystem.Histogram(
		UpstreamCallDuration,
		duration,
		map[string]string{
			"provider": provider,
		},
	)
}

// RecordUpstreamCacheHit counts an upstream call answered from the cache.
func RecordUpstreamCacheHit(provider string) {
	count(UpstreamCacheHitsTotal, map[string]string{"provider": provider})
}

// SetUpstreamCacheEntries reports the current cache size.
func SetUpstreamCacheEntries(entries int) {
	gauge(UpstreamCacheEntries, float64(entries))
}

// RecordRateLimitDenied counts a lookup refused by the caller rate limiter.
func RecordRateLimitDenied() {
	count(RateLimitDeniedTotal, nil)
}
