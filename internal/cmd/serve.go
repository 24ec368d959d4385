package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/fulmenhq/gofulmen/signals"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/routelens/routelens/internal/config"
	errwrap "github.com/routelens/routelens/internal/errors"
	"github.com/routelens/routelens/internal/observability"
	"github.com/routelens/routelens/internal/server"
	"github.com/routelens/routelens/internal/server/handlers"
)

var (
	serverPort int
	serverHost string
)

// telemetryHealthChecker degrades health when metrics were requested but the
// exporter is missing. Lookups are unaffected.
type telemetryHealthChecker struct{}

func (telemetryHealthChecker) CheckHealth(ctx context.Context) error {
	if observability.TelemetrySystem == nil || observability.PrometheusExporter == nil {
		return fmt.Errorf("telemetry exporter not initialized: %w", handlers.ErrDegraded)
	}
	return nil
}

// identityHealthChecker validates app identity metadata
type identityHealthChecker struct {
	binaryName string
	envPrefix  string
	configName string
}

func (i identityHealthChecker) CheckHealth(ctx context.Context) error {
	switch {
	case i.binaryName == "":
		return errwrap.NewConfigInvalidError("app identity missing binary name")
	case i.envPrefix == "":
		return errwrap.NewConfigInvalidError("app identity missing env prefix")
	case i.configName == "":
		return errwrap.NewConfigInvalidError("app identity missing config name")
	}
	return nil
}

// lookupHealthChecker reports the engine unhealthy when its caller table has
// grown past the configured key bound, and degraded from 90% of it.
type lookupHealthChecker struct {
	engine  *lookupEngine
	maxKeys int
}

func (l lookupHealthChecker) CheckHealth(ctx context.Context) error {
	if l.engine == nil || l.engine.Orchestrator == nil {
		return errwrap.NewInternalError("lookup engine not initialized")
	}
	if l.maxKeys <= 0 {
		return nil
	}
	switch keys := l.engine.Limiter.Len(); {
	case keys > l.maxKeys:
		return errwrap.NewInternalError("rate limiter exceeded its key bound")
	case keys*10 >= l.maxKeys*9:
		return fmt.Errorf("rate limiter tracks %d of %d callers: %w", keys, l.maxKeys, handlers.ErrDegraded)
	}
	return nil
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP lookup server",
	Long: `Start the HTTP server exposing /api/bgp/lookup and /api/bgp/classify.

Signal Handling:
  • Ctrl+C (SIGINT) or SIGTERM: Graceful shutdown
  • Ctrl+C twice within 2s: Force quit
  • SIGHUP: Config reload (log level only; restart for lookup settings)

The server will cleanly shut down the HTTP server and flush logs on shutdown.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		identity := GetAppIdentity()
		namespace := identity.TelemetryNamespace()

		host := cfg.Server.Host
		if cmd.Flags().Changed("host") {
			host = serverHost
		}
		port := cfg.Server.Port
		if cmd.Flags().Changed("port") {
			port = serverPort
		}

		observability.InitServerLogger(observability.ServerLoggerOptions{
			Service:   identity.BinaryName,
			Level:     cfg.Logging.Level,
			Profile:   cfg.Logging.Profile,
			Namespace: namespace,
		})
		logger := observability.ServerLogger

		metricsPort := cfg.Metrics.Port
		if cfg.Metrics.Enabled {
			if err := observability.InitMetrics(observability.MetricsOptions{
				Namespace: namespace,
				Port:      metricsPort,
			}); err != nil {
				logger.Error("Failed to initialize metrics", zap.Error(err))
				return errwrap.WrapInternal(cmd.Context(), err, "metrics initialization failed")
			}
		}

		lookups, err := newLookupEngine(cfg.Lookup, logger)
		if err != nil {
			logger.Error("Failed to initialize lookup engine", zap.Error(err))
			return errwrap.WrapConfigInvalid(cmd.Context(), err, "lookup engine initialization failed")
		}

		logger.Info("Initializing server",
			zap.String("service", identity.BinaryName),
			zap.String("namespace", namespace),
			zap.String("version", versionInfo.Version),
			zap.String("host", host),
			zap.Int("port", port),
			zap.Bool("metrics_enabled", cfg.Metrics.Enabled),
			zap.Int("metrics_port", metricsPort),
			zap.Duration("cache_ttl", cfg.Lookup.CacheTTL()),
			zap.Int("rate_limit_max_requests", cfg.Lookup.RateLimitMaxRequests),
			zap.Strings("providers", lookups.Providers()))

		// Initialize health manager
		handlers.InitHealthManager(versionInfo.Version)
		hm := handlers.GetHealthManager()
		hm.RegisterChecker("lookup_engine", lookupHealthChecker{engine: lookups, maxKeys: cfg.Lookup.RateLimitMaxKeys})
		hm.RegisterChecker("app_identity", identityHealthChecker{
			binaryName: identity.BinaryName,
			envPrefix:  identity.EnvPrefix,
			configName: identity.ConfigName,
		})
		if cfg.Metrics.Enabled {
			hm.RegisterChecker("telemetry", telemetryHealthChecker{})
		}

		handlers.SetAppIdentity(identity)
		handlers.SetProviders(lookups.Providers()...)

		srv := server.New(server.Options{
			Host:         host,
			Port:         port,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
			IdleTimeout:  cfg.Server.IdleTimeout,
			Lookup:       handlers.NewLookupHandler(lookups.Orchestrator),
			AdminToken:   os.Getenv(identity.EnvPrefix + "ADMIN_TOKEN"),
			Pprof:        cfg.Debug.Enabled && cfg.Debug.PprofEnabled,
		})

		shutdownTimeout := cfg.Server.ShutdownTimeout
		if shutdownTimeout == 0 {
			shutdownTimeout = 10 * time.Second
		}

		// Register graceful shutdown handlers (LIFO order - last registered, first executed)
		// Handler 1: Flush logger and release the ASN database (executed last)
		signals.OnShutdown(func(ctx context.Context) error {
			if err := lookups.Close(); err != nil {
				logger.Warn("Failed to close local ASN database", zap.Error(err))
			}
			logger.Info("Flushing logger...")
			if err := logger.Sync(); err != nil {
				// Sync errors are often benign (stdout/stderr already closed)
				logger.Warn("Logger sync returned error (may be benign)", zap.Error(err))
			}
			return nil
		})

		// Handler 2: Shutdown HTTP server (executed first)
		signals.OnShutdown(func(ctx context.Context) error {
			logger.Info("Shutting down HTTP server...")
			shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				return errwrap.WrapInternal(ctx, err, "server shutdown failed")
			}

			logger.Info("HTTP server stopped gracefully")
			return nil
		})

		signals.OnReload(func(ctx context.Context) error {
			logger.Info("Received SIGHUP: attempting config reload")

			reloaded, err := config.LoadFrom(ctx, cfgFile)
			if err != nil {
				logger.Error("Failed to reload configuration", zap.Error(err))
				return errwrap.WrapConfigInvalid(ctx, err, "config reload failed")
			}

			if reloaded.Logging.Level != cfg.Logging.Level {
				observability.InitServerLogger(observability.ServerLoggerOptions{
					Service:   identity.BinaryName,
					Level:     reloaded.Logging.Level,
					Profile:   reloaded.Logging.Profile,
					Namespace: namespace,
				})
				logger = observability.ServerLogger
				lookups.Orchestrator.Logger = logger
			}
			if reloaded.Lookup != cfg.Lookup {
				logger.Warn("Lookup settings changed; restart to apply them")
			}
			appConfig = reloaded
			cfg = reloaded

			logger.Info("Configuration reloaded successfully", zap.String("level", reloaded.Logging.Level))
			return nil
		})

		// Enable double-tap force quit (Ctrl+C within 2 seconds)
		if err := signals.EnableDoubleTap(signals.DoubleTapConfig{
			Window:  2 * time.Second,
			Message: "Press Ctrl+C again within 2 seconds to force quit",
		}); err != nil {
			logger.Warn("Failed to enable double-tap force quit", zap.Error(err))
		}

		// Start server in background goroutine
		errChan := make(chan error, 1)
		go func() {
			if err := srv.Start(); err != nil && err != http.ErrServerClosed {
				errChan <- err
			}
		}()

		// Start signal listener in background
		go func() {
			if err := signals.Listen(cmd.Context()); err != nil {
				logger.Error("Signal handler error", zap.Error(err))
				errChan <- err
			}
		}()

		// Wait for error or shutdown completion
		if err := <-errChan; err != nil {
			return errwrap.WrapInternal(cmd.Context(), err, "server error")
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serverHost, "host", "localhost", "server host (overrides server.host)")
	serveCmd.Flags().IntVarP(&serverPort, "port", "p", 8080, "server port (overrides server.port)")
}
