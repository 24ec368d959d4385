package observability

import (
	"fmt"
	"net"
	"strconv"

	"github.com/fulmenhq/gofulmen/telemetry"
	"github.com/fulmenhq/gofulmen/telemetry/exporters"
)

const fallbackMetricsPort = 9090

var (
	// TelemetrySystem receives every routelens metric. Nil or disabled means
	// emission is a no-op.
	TelemetrySystem *telemetry.System

	// PrometheusExporter serves the scrape endpoint proxied at /metrics.
	PrometheusExporter *exporters.PrometheusExporter

	metricsPort int
)

// MetricsOptions configures the Prometheus exporter.
type MetricsOptions struct {
	// Namespace prefixes every metric name.
	Namespace string
	// Port 0 picks a free port; the bound port is reported by GetMetricsPort.
	Port int
}

// InitMetrics starts the Prometheus exporter and installs a telemetry system
// that emits to it.
func InitMetrics(opts MetricsOptions) error {
	port := opts.Port
	if port < 0 {
		port = 0
	}
	metricsPort = port

	exporter := exporters.NewPrometheusExporter(opts.Namespace, fmt.Sprintf(":%d", port))
	if err := exporter.Start(); err != nil {
		return err
	}
	PrometheusExporter = exporter

	switch bound, err := resolvePort(exporter.GetAddr()); {
	case err == nil:
		metricsPort = bound
	case port == 0:
		metricsPort = fallbackMetricsPort
	}

	sys, err := telemetry.NewSystem(&telemetry.Config{Enabled: true, Emitter: exporter})
	if err != nil {
		return err
	}
	TelemetrySystem = sys
	telemetry.SetGlobalSystem(sys)
	return nil
}

// DisableTelemetry installs a disabled global telemetry system so one-shot CLI
// commands never emit metrics to stdout. `serve` replaces it via InitMetrics.
func DisableTelemetry() error {
	sys, err := telemetry.NewSystem(&telemetry.Config{Enabled: false})
	if err != nil {
		return err
	}
	telemetry.SetGlobalSystem(sys)
	return nil
}

// GetMetricsPort returns the port the exporter listens on.
func GetMetricsPort() int {
	return metricsPort
}

func resolvePort(addr string) (int, error) {
	_, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(portStr)
}
