package cmd

import (
	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	errwrap "github.com/routelens/routelens/internal/errors"
	"github.com/routelens/routelens/internal/observability"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Run self-health check",
	Long:  "Run a self-health check to verify the application can start successfully. No upstream calls are made.",
	Run: func(cmd *cobra.Command, args []string) {
		// Can't log if logger is nil, so use stderr
		if observability.CLILogger == nil {
			ExitWithCodeStderr(foundry.ExitConfigInvalid, "Logger not initialized", errwrap.NewConfigInvalidError("Logger not initialized"))
			return
		}
		logger := observability.CLILogger
		logger.Info("Running health check...")

		if versionInfo.Version == "" {
			ExitWithCode(logger, foundry.ExitConfigInvalid, "Version information missing", errwrap.NewConfigInvalidError("Version information missing"))
			return
		}
		logger.Debug("Version check passed", zap.String("version", versionInfo.Version))
		logger.Info("✅ Version information available")

		cfg := GetConfig()
		if cfg == nil {
			ExitWithCode(logger, foundry.ExitConfigInvalid, "Configuration not loaded", errwrap.NewConfigInvalidError("Configuration not loaded"))
			return
		}
		logger.Info("✅ Configuration loaded",
			zap.Int64("cache_ttl_ms", cfg.Lookup.CacheTTLMs),
			zap.Int64("rate_limit_window_ms", cfg.Lookup.RateLimitWindowMs),
			zap.Int("rate_limit_max_requests", cfg.Lookup.RateLimitMaxRequests))

		lookups, err := newLookupEngine(cfg.Lookup, logger)
		if err != nil {
			ExitWithCode(logger, foundry.ExitConfigInvalid, "Lookup engine failed to initialize", err)
			return
		}
		defer func() { _ = lookups.Close() }()
		logger.Info("✅ Lookup engine ready", zap.Strings("providers", lookups.Providers()))

		logger.Info("")
		logger.Info("✅ All health checks passed")
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
}
