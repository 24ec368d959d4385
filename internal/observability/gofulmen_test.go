package observability_test

import (
	"testing"

	"github.com/fulmenhq/gofulmen/crucible"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/routelens/routelens/internal/observability"
)

func TestLoggers(t *testing.T) {
	t.Run("CLI logger creation", func(t *testing.T) {
		observability.ServerLogger = nil
		observability.InitCLILogger("routelens-test", true)
		require.NotNil(t, observability.CLILogger)

		assert.Same(t, observability.CLILogger, observability.Logger())
		observability.CLILogger.Debug("lookup finished", zap.String("kind", "ip"))
	})

	t.Run("Structured server logger", func(t *testing.T) {
		observability.InitServerLogger(observability.ServerLoggerOptions{
			Service:     "routelens-test",
			Level:       "debug",
			Namespace:   "routelens",
			Environment: "test",
		})
		require.NotNil(t, observability.ServerLogger)

		assert.Same(t, observability.ServerLogger, observability.Logger())
		observability.ServerLogger.Info("upstream call failed",
			zap.String("provider", "ripestat"),
			zap.Int("status", 503))
	})

	t.Run("Simple server logger", func(t *testing.T) {
		observability.InitServerLogger(observability.ServerLoggerOptions{
			Service: "routelens-test",
			Level:   "WARN",
			Profile: "SIMPLE",
		})
		require.NotNil(t, observability.ServerLogger)
		observability.ServerLogger.Warn("rate limit exceeded", zap.String("caller", "ip:192.0.2.1"))
	})
}

func TestDisableTelemetry(t *testing.T) {
	require.NoError(t, observability.DisableTelemetry())
}

func TestEmbeddedCrucible(t *testing.T) {
	version := crucible.GetVersion()
	assert.NotEmpty(t, version.Gofulmen)
	assert.NotEmpty(t, version.Crucible)
	assert.NotEmpty(t, crucible.GetVersionString())
}
