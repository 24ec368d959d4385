package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/routelens/routelens/internal/observability"
)

// statusRecorder captures the status code and body size of a response.
type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int64
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *statusRecorder) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytes += int64(n)
	return n, err
}

// knownEndpoints bounds the endpoint label when chi has no route pattern.
var knownEndpoints = map[string]string{
	"/health":           "/health/*",
	"/health/live":      "/health/*",
	"/health/ready":     "/health/*",
	"/health/startup":   "/health/*",
	"/api/bgp/lookup":   "/api/bgp/lookup",
	"/api/bgp/classify": "/api/bgp/classify",
	"/version":          "/version",
	"/metrics":          "/metrics",
	"/":                 "/",
}

// getEndpointPattern returns a low-cardinality endpoint label.
func getEndpointPattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	if endpoint, ok := knownEndpoints[r.URL.Path]; ok {
		return endpoint
	}
	return "/unknown"
}

// RequestMetrics records request count, latency, sizes and errors, then logs
// one line per request. Queries and request ids go to the log only.
func RequestMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if observability.TelemetrySystem == nil {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		endpoint := getEndpointPattern(r)
		duration := time.Since(start)
		requestSize := r.ContentLength
		if requestSize < 0 {
			requestSize = 0
		}

		emitRequestMetrics(r.Method, endpoint, rec.status, duration, requestSize, rec.bytes)

		if logger := observability.ServerLogger; logger != nil {
			logger.Info("HTTP request completed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("query", r.URL.Query().Get("q")),
				zap.String("endpoint", endpoint),
				zap.Int("status", rec.status),
				zap.Duration("duration", duration),
				zap.Int64("request_size", requestSize),
				zap.Int64("response_size", rec.bytes),
				zap.String("requestID", GetRequestID(r.Context())),
			)
		}
	})
}

func emitRequestMetrics(method, endpoint string, status int, duration time.Duration, requestSize, responseSize int64) {
	sys := observability.TelemetrySystem
	statusLabel := strconv.Itoa(status)
	labels := map[string]string{"method": method, "endpoint": endpoint, "status": statusLabel}
	sizeLabels := map[string]string{"method": method, "endpoint": endpoint}

	_ = sys.Counter("http_requests_total", 1, labels)
	_ = sys.Histogram("http_request_duration_ms", duration, labels)
	_ = sys.Gauge("http_request_size_bytes", float64(requestSize), sizeLabels)
	_ = sys.Gauge("http_response_size_bytes", float64(responseSize), sizeLabels)

	if status < http.StatusBadRequest {
		return
	}
	errorType := "client_error"
	if status >= http.StatusInternalServerError {
		errorType = "server_error"
	}
	_ = sys.Counter("http_errors_total", 1, map[string]string{
		"method":     method,
		"endpoint":   endpoint,
		"status":     statusLabel,
		"error_type": errorType,
	})
}
