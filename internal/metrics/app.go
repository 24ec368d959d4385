package metrics

import (
	"sync/atomic"
	"time"

	"github.com/routelens/routelens/internal/observability"
)

// Process and server metrics
var (
	OperationsTotal       = "app_operations_total"
	OperationsErrorsTotal = "app_operations_errors_total"
	ActiveConnections     = "app_active_connections"
	HealthCheckTotal      = "app_health_check_total"
	HealthCheckDuration   = "app_health_check_duration_ms"
	ServerStartTime       = "app_server_start_time_seconds"
	ServerUptime          = "app_server_uptime_seconds"
)

var serverStart atomic.Int64

// RecordOperation counts a CLI operation such as one lookup.
func RecordOperation(operation string, success bool) {
	count(OperationsTotal, map[string]string{
		"operation": operation,
		"status":    outcome(success, "success", "failure"),
	})
}

// RecordOperationError counts a failed operation by error kind.
func RecordOperationError(operation string, errorType string) {
	count(OperationsErrorsTotal, map[string]string{
		"operation":  operation,
		"error_type": errorType,
	})
}

func SetActiveConnections(n int64) {
	gauge(ActiveConnections, float64(n))
}

// RecordHealthCheck counts a health checker run and its latency.
func RecordHealthCheck(checkName string, healthy bool, duration time.Duration) {
	count(HealthCheckTotal, map[string]string{
		"check":  checkName,
		"status": outcome(healthy, "healthy", "unhealthy"),
	})
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Histogram(HealthCheckDuration, duration,
			map[string]string{"check": checkName})
	}
}

// SetServerStartTime records the server start as a Unix timestamp.
func SetServerStartTime(timestamp int64) {
	serverStart.Store(timestamp)
	gauge(ServerStartTime, float64(timestamp))
}

// RecordServerUptime refreshes the uptime gauge. It is a no-op before
// SetServerStartTime.
func RecordServerUptime(now time.Time) {
	started := serverStart.Load()
	if started == 0 {
		return
	}
	gauge(ServerUptime, float64(max(now.Unix()-started, 0)))
}

func gauge(name string, value float64) {
	if observability.TelemetrySystem == nil {
		return
	}
	_ = observability.TelemetrySystem.Gauge(name, value, nil)
}

func outcome(ok bool, yes, no string) string {
	if ok {
		return yes
	}
	return no
}
