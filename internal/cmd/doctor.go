package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/fulmenhq/gofulmen/crucible"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/routelens/routelens/internal/config"
	"github.com/routelens/routelens/internal/core/localasn"
	"github.com/routelens/routelens/internal/observability"
)

// doctorQuery is resolved against the live providers by "doctor".
const doctorQuery = "193.0.6.139"

var doctorOffline bool

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run diagnostic checks",
	Long:  "Run diagnostic checks on the local setup and the upstream data providers.",
	Run: func(cmd *cobra.Command, args []string) {
		logger := observability.CLILogger
		identity := GetAppIdentity()
		logger.Info("=== " + identity.BinaryName + " doctor ===")
		logger.Info("")

		allChecks := true
		totalChecks := 5

		goVersion := runtime.Version()
		version := crucible.GetVersion()
		logger.Info(fmt.Sprintf("[1/%d] Runtime... ✅ %s, gofulmen %s, crucible %s", totalChecks, goVersion, version.Gofulmen, version.Crucible),
			zap.String("go_version", goVersion))

		configPath := config.DefaultConfigPath()
		if cfgFile != "" {
			configPath = cfgFile
		}
		if fileExists(configPath) {
			logger.Info(fmt.Sprintf("[2/%d] Config file... ✅ %s", totalChecks, configPath))
		} else {
			logger.Info(fmt.Sprintf("[2/%d] Config file... ✅ none at %s (using defaults)", totalChecks, configPath))
		}

		cfg := GetConfig()
		logger.Info(fmt.Sprintf("[3/%d] Lookup settings... ✅ ttl=%dms window=%dms max=%d keys=%d", totalChecks,
			cfg.Lookup.CacheTTLMs, cfg.Lookup.RateLimitWindowMs, cfg.Lookup.RateLimitMaxRequests, cfg.Lookup.RateLimitMaxKeys))

		if ok := checkASNDatabase(cfg.Lookup.ASNDBPath, totalChecks); !ok {
			allChecks = false
		}

		if doctorOffline {
			logger.Info(fmt.Sprintf("[5/%d] Upstream providers... skipped (--offline)", totalChecks))
		} else if ok := checkProviders(cmd, cfg.Lookup, totalChecks); !ok {
			allChecks = false
		}

		logger.Info("")
		if allChecks {
			logger.Info(fmt.Sprintf("✅ All checks passed! Your %s installation is healthy.", identity.BinaryName))
		} else {
			logger.Warn("⚠️  Some checks failed. Review the output above for details.")
		}
		logger.Info("")
		logger.Info("=== End Diagnostics ===")
	},
}

func checkASNDatabase(path string, total int) bool {
	logger := observability.CLILogger
	path = strings.TrimSpace(path)
	if path == "" {
		logger.Info(fmt.Sprintf("[4/%d] Local ASN database... ✅ not configured", total))
		return true
	}

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		logger.Warn(fmt.Sprintf("[4/%d] Local ASN database... ⚠️  %s (missing; lookups run without it)", total, path))
		return true
	}
	if err != nil {
		logger.Warn(fmt.Sprintf("[4/%d] Local ASN database... ❌ %s", total, path), zap.Error(err))
		return false
	}

	reader, err := localasn.Open(path)
	if err != nil {
		logger.Warn(fmt.Sprintf("[4/%d] Local ASN database... ❌ %s", total, path), zap.Error(err))
		return false
	}
	defer func() { _ = reader.Close() }()

	logger.Info(fmt.Sprintf("[4/%d] Local ASN database... ✅ %s (%s, %s)", total, path, reader.DatabaseType(), formatFileSize(info.Size())))
	return true
}

// checkProviders runs one real lookup and reports every evidence record.
func checkProviders(cmd *cobra.Command, cfg config.LookupConfig, total int) bool {
	logger := observability.CLILogger

	results, err := runLookups(cmd.Context(), cfg, []string{doctorQuery})
	if err != nil {
		logger.Error(fmt.Sprintf("[5/%d] Upstream providers... ❌ engine unavailable", total), zap.Error(err))
		return false
	}

	result := results[0]
	if result.Failed() || result.Partial {
		logger.Warn(fmt.Sprintf("[5/%d] Upstream providers... ⚠️  %d upstream errors", total, result.Meta.UpstreamErrors))
	} else {
		logger.Info(fmt.Sprintf("[5/%d] Upstream providers... ✅ %dms", total, result.Meta.DurationMs))
	}
	for _, src := range result.Sources {
		status := "ok"
		if !src.OK {
			status = src.Error
		}
		logger.Info(fmt.Sprintf("  %-10s %s (%s)", src.Name, status, src.URL))
	}
	return !result.Failed() && !result.Partial
}

var doctorInitForce bool

var doctorInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config file populated with the defaults",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath := config.DefaultConfigPath()
		if configPath == "" {
			return fmt.Errorf("config path not resolved")
		}

		if _, err := os.Stat(configPath); err == nil && !doctorInitForce {
			return fmt.Errorf("config file already exists: %s (use --force to overwrite)", configPath)
		}

		body, err := buildInitConfig(GetAppIdentity().BinaryName)
		if err != nil {
			return err
		}

		if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
		if err := os.WriteFile(configPath, body, 0o644); err != nil {
			return fmt.Errorf("write config file: %w", err)
		}

		observability.CLILogger.Info("Config initialized", zap.String("path", configPath))
		return nil
	},
}

var doctorValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the current config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath := cfgFile
		if configPath == "" {
			configPath = config.DefaultConfigPath()
		}
		if !fileExists(configPath) {
			return fmt.Errorf("config file not found: %s", configPath)
		}

		if _, err := config.LoadFrom(cmd.Context(), configPath); err != nil {
			return err
		}

		observability.CLILogger.Info("Config is valid", zap.String("path", configPath))
		return nil
	},
}

var doctorResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Remove the user config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath := config.DefaultConfigPath()
		if configPath == "" {
			return fmt.Errorf("config path not resolved")
		}
		err := os.Remove(configPath)
		switch {
		case err == nil:
			observability.CLILogger.Info("Config removed", zap.String("path", configPath))
		case os.IsNotExist(err):
			observability.CLILogger.Info("Config already removed", zap.String("path", configPath))
		default:
			return fmt.Errorf("remove config file: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(doctorCmd)
	doctorCmd.AddCommand(doctorInitCmd)
	doctorCmd.AddCommand(doctorValidateCmd)
	doctorCmd.AddCommand(doctorResetCmd)

	doctorCmd.Flags().BoolVar(&doctorOffline, "offline", false, "skip the live provider check")
	doctorInitCmd.Flags().BoolVar(&doctorInitForce, "force", false, "overwrite existing config file")
}

// buildInitConfig renders the built-in defaults as a nested YAML document.
func buildInitConfig(appName string) ([]byte, error) {
	defaults := config.Defaults()
	keys := make([]string, 0, len(defaults))
	for key := range defaults {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	nested := map[string]any{}
	for _, key := range keys {
		setNested(nested, strings.Split(key, "."), defaults[key])
	}

	body, err := yaml.Marshal(nested)
	if err != nil {
		return nil, fmt.Errorf("render config: %w", err)
	}
	header := fmt.Sprintf("# %s config - created by '%s doctor init'\n", appName, appName)
	return append([]byte(header), body...), nil
}

func setNested(target map[string]any, path []string, value any) {
	if len(path) == 1 {
		target[path[0]] = value
		return
	}
	child, ok := target[path[0]].(map[string]any)
	if !ok {
		child = map[string]any{}
		target[path[0]] = child
	}
	setNested(child, path[1:], value)
}

// formatFileSize returns a human-readable file size
func formatFileSize(bytes int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)
	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/float64(GB))
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d bytes", bytes)
	}
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}

func envStatus(name string) string {
	if strings.TrimSpace(os.Getenv(name)) != "" {
		return "(set)"
	}
	return "(not set)"
}
