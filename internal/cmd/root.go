package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fulmenhq/gofulmen/appidentity"
	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/routelens/routelens/internal/appid"
	"github.com/routelens/routelens/internal/config"
	"github.com/routelens/routelens/internal/observability"
	"github.com/routelens/routelens/internal/server/handlers"
)

var (
	cfgFile string
	verbose bool

	// App identity loaded from .fulmen/app.yaml
	appIdentity *appidentity.Identity

	// Layered configuration, loaded once per invocation by initConfig.
	appConfig *config.Config

	// Version info set by main package
	versionInfo struct {
		Version   string
		Commit    string
		BuildDate string
	}
)

// SetVersionInfo records build info for the CLI and the /version endpoint.
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.BuildDate = buildDate
	handlers.SetVersionInfo(version, commit, buildDate)
}

// GetAppIdentity returns the loaded app identity (only valid after initConfig)
func GetAppIdentity() *appidentity.Identity {
	return appIdentity
}

// GetConfig returns the configuration loaded by initConfig.
func GetConfig() *config.Config {
	return appConfig
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	// NOTE: initConfig() overwrites these from app identity.
	Use:   filepath.Base(os.Args[0]),
	Short: "BGP routing lookups for IPs, prefixes, ASNs and holder names",
	Long: `Look up routing data for an IP, prefix, ASN or holder name.

Run "serve" for the HTTP API or "lookup" for one-off queries.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Disable global telemetry early to prevent config loading from emitting
	// metrics to stdout. Server mode will initialize proper telemetry later.
	_ = observability.DisableTelemetry()

	// Load app identity early for help text (before cobra processes --help)
	ctx := context.Background()
	if identity, err := appid.Get(ctx); err == nil && identity != nil {
		appIdentity = identity
		applyIdentity(identity)
	}

	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (optional; defaults to app identity config path)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (sets log level to debug)")
}

func applyIdentity(identity *appidentity.Identity) {
	if identity.BinaryName != "" {
		rootCmd.Use = identity.BinaryName
	}
	if identity.Description != "" {
		rootCmd.Short = identity.Description
		rootCmd.Long = fmt.Sprintf("%s - %s\n\nRun \"serve\" for the HTTP API or \"lookup\" for one-off queries.", identity.BinaryName, identity.Description)
	}
}

// initConfig loads .env files, the app identity and the layered config.
func initConfig() {
	// .env is a convenience for local runs; absence is normal.
	_ = godotenv.Load(".env")

	ctx := context.Background()
	identity, err := appid.Get(ctx)
	if err != nil {
		ExitWithCodeStderr(foundry.ExitFileNotFound, "Failed to load app identity from .fulmen/app.yaml", err)
	}
	appIdentity = identity
	applyIdentity(identity)

	if f := rootCmd.PersistentFlags().Lookup("config"); f != nil && identity.ConfigName != "" {
		f.Usage = fmt.Sprintf("config file (default is $XDG_CONFIG_HOME/%s/config.yaml)", identity.ConfigName)
	}

	// Initialize CLI logger early so we can use it in config loading
	observability.InitCLILogger(appIdentity.BinaryName, verbose)

	var overrides map[string]any
	if verbose {
		overrides = map[string]any{"logging": map[string]any{"level": "debug"}}
	}

	cfg, err := config.LoadFrom(ctx, cfgFile, overrides)
	if err != nil {
		ExitWithCode(observability.CLILogger, foundry.ExitConfigInvalid, "Failed to load configuration", err)
	}
	appConfig = cfg

	if verbose {
		observability.CLILogger.Debug("Configuration loaded",
			zap.String("config_file", cfgFile),
			zap.Int64("cache_ttl_ms", cfg.Lookup.CacheTTLMs),
			zap.Int("rate_limit_max_requests", cfg.Lookup.RateLimitMaxRequests))
	}
}
