package cmd

import (
	"fmt"
	"runtime"

	"github.com/fulmenhq/gofulmen/crucible"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/routelens/routelens/internal/config"
	"github.com/routelens/routelens/internal/observability"
)

var envInfoCmd = &cobra.Command{
	Use:   "envinfo",
	Short: "Display environment information",
	Long:  "Display environment, effective configuration and version information.",
	Run: func(cmd *cobra.Command, args []string) {
		logger := observability.CLILogger
		version := crucible.GetVersion()
		identity := GetAppIdentity()

		logger.Info("=== " + identity.BinaryName + " environment ===")
		logger.Info("")

		logger.Info("Application:")
		logger.Info("  Name:       " + identity.BinaryName)
		logger.Info("  Version:    " + versionInfo.Version)
		logger.Info("  Commit:     " + versionInfo.Commit)
		logger.Info("  Built:      " + versionInfo.BuildDate)
		logger.Info("  Gofulmen:   "+version.Gofulmen, zap.String("gofulmen_version", version.Gofulmen))
		logger.Info("  Crucible:   "+version.Crucible, zap.String("crucible_version", version.Crucible))
		logger.Info("")

		logger.Info("Runtime:")
		logger.Info("  Go Version: "+runtime.Version(), zap.String("go_version", runtime.Version()))
		logger.Info("  Platform:   " + runtime.GOOS + "/" + runtime.GOARCH)
		logger.Info(fmt.Sprintf("  NumCPU:     %d", runtime.NumCPU()), zap.Int("num_cpu", runtime.NumCPU()))
		logger.Info("")

		cfg := GetConfig()
		logger.Info("Server:")
		logger.Info(fmt.Sprintf("  Listen:         %s:%d", cfg.Server.Host, cfg.Server.Port))
		logger.Info("  Log Level:      " + cfg.Logging.Level)
		logger.Info("  Log Profile:    " + cfg.Logging.Profile)
		logger.Info(fmt.Sprintf("  Metrics:        %t (port %d)", cfg.Metrics.Enabled, cfg.Metrics.Port))
		logger.Info("  Config File:    " + config.DefaultConfigPath())
		logger.Info("  Admin Token:    " + envStatus(identity.EnvPrefix+"ADMIN_TOKEN"))
		logger.Info("")

		lookup := cfg.Lookup
		logger.Info("Lookup:")
		logger.Info(fmt.Sprintf("  Cache TTL:      %dms (max %d entries)", lookup.CacheTTLMs, lookup.CacheMaxEntries))
		logger.Info(fmt.Sprintf("  Rate Limit:     %d per %dms (max %d callers)", lookup.RateLimitMaxRequests, lookup.RateLimitWindowMs, lookup.RateLimitMaxKeys))
		logger.Info("  RIPEstat:       " + lookup.RIPEstatBaseURL)
		logger.Info("  RouteViews:     " + lookup.RouteViewsBaseURL)
		logger.Info(fmt.Sprintf("  RDAP:           %t %s", lookup.RDAP.Enabled, lookup.RDAP.Server))
		logger.Info("  ASN Database:   " + lookup.ASNDBPath)
		logger.Info("")

		logger.Info("=== End Environment Information ===")
	},
}

func init() {
	rootCmd.AddCommand(envInfoCmd)
}
