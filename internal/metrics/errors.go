package metrics

import (
	"strconv"

	"github.com/routelens/routelens/internal/observability"
)

// Error metrics
var (
	ErrorsTotal      = "errors_total"
	PanicsTotal      = "panics_total"
	ErrorsByEndpoint = "errors_by_endpoint"
)

// RecordError counts an error envelope written to a caller.
func RecordError(errorCode string, httpStatus int) {
	count(ErrorsTotal, map[string]string{
		"error_code":  errorCode,
		"http_status": strconv.Itoa(httpStatus),
	})
}

// RecordPanic counts a recovered handler panic.
func RecordPanic() {
	count(PanicsTotal, nil)
}

// RecordErrorByEndpoint counts an error against the request path.
func RecordErrorByEndpoint(endpoint string, errorCode string) {
	count(ErrorsByEndpoint, map[string]string{
		"endpoint":   endpoint,
		"error_code": errorCode,
	})
}

func count(name string, labels map[string]string) {
	if observability.TelemetrySystem == nil {
		return
	}
	_ = observability.TelemetrySystem.Counter(name, 1, labels)
}
