package metrics

import (
	"testing"
	"time"

	"github.com/fulmenhq/gofulmen/telemetry"
	telemetrytesting "github.com/fulmenhq/gofulmen/telemetry/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/routelens/routelens/internal/observability"
)

func useCollector(t *testing.T) *telemetrytesting.FakeCollector {
	t.Helper()
	collector := telemetrytesting.NewFakeCollector()
	sys, err := telemetry.NewSystem(&telemetry.Config{Enabled: true, Emitter: collector})
	require.NoError(t, err)

	original := observability.TelemetrySystem
	observability.TelemetrySystem = sys
	t.Cleanup(func() { observability.TelemetrySystem = original })
	return collector
}

func TestLookupMetrics(t *testing.T) {
	collector := useCollector(t)

	RecordLookup("ip", 200)
	RecordUpstreamCall("ripestat", "ok", 12*time.Millisecond)
	RecordUpstreamCacheHit("routeviews")
	SetUpstreamCacheEntries(4)
	RecordRateLimitDenied()

	assert.Positive(t, collector.CountMetricsByName(LookupRequestsTotal))
	assert.Positive(t, collector.CountMetricsByName(UpstreamCallsTotal))
	assert.Positive(t, collector.CountMetricsByName(UpstreamCallDuration))
	assert.Positive(t, collector.CountMetricsByName(UpstreamCacheHitsTotal))
	assert.Positive(t, collector.CountMetricsByName(UpstreamCacheEntries))
	assert.Positive(t, collector.CountMetricsByName(RateLimitDeniedTotal))
}

func TestServerUptimeNeedsStartTime(t *testing.T) {
	collector := useCollector(t)
	serverStart.Store(0)
	t.Cleanup(func() { serverStart.Store(0) })

	RecordServerUptime(time.Now())
	assert.Zero(t, collector.CountMetricsByName(ServerUptime))

	SetServerStartTime(time.Now().Add(-time.Minute).Unix())
	RecordServerUptime(time.Now())
	assert.Positive(t, collector.CountMetricsByName(ServerStartTime))
	assert.Positive(t, collector.CountMetricsByName(ServerUptime))
}

func TestMetricsWithoutTelemetry(t *testing.T) {
	original := observability.TelemetrySystem
	observability.TelemetrySystem = nil
	t.Cleanup(func() { observability.TelemetrySystem = original })

	assert.NotPanics(t, func() {
		RecordError("RATE_LIMITED", 429)
		RecordPanic()
		RecordOperation("lookup", false)
		SetActiveConnections(2)
	})
}
