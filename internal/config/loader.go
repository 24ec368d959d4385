// Package config provides centralized configuration management for RouteLens.
// Configuration is layered:
// Layer 1: built-in defaults (Defaults)
// Layer 2: user config file (discovered via app identity, or explicit path)
// Layer 3: environment variables and runtime overrides
package config

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fulmenhq/gofulmen/appidentity"
	gfconfig "github.com/fulmenhq/gofulmen/config"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/routelens/routelens/internal/appid"
)

// Lookup defaults. The upstream timeout is fixed and not configurable.
const (
	DefaultCacheTTLMs           = 30_000
	DefaultCacheMaxEntries      = 256
	DefaultRateLimitWindowMs    = 10_000
	DefaultRateLimitMaxRequests = 40
	DefaultRateLimitMaxKeys     = 2_000

	DefaultRIPEstatBaseURL   = "https://stat.ripe.net"
	DefaultRouteViewsBaseURL = "https://api.routeviews.org"
)

var (
	// appConfig holds the current application configuration
	appConfig   *Config
	configMu    sync.RWMutex
	appIdentity *appidentity.Identity
)

// EnvVarSpec defines environment variable mappings for config fields
// following the pattern: {PREFIX}{NAME} maps to config path
type EnvVarSpec = gfconfig.EnvVarSpec

// Environment variable types
const (
	EnvString = gfconfig.EnvString
	EnvInt    = gfconfig.EnvInt
	EnvBool   = gfconfig.EnvBool
)

// Defaults returns the built-in configuration layer as flattened viper keys.
func Defaults() map[string]any {
	return map[string]any{
		"server.host":             "localhost",
		"server.port":             8080,
		"server.read_timeout":     "30s",
		"server.write_timeout":    "30s",
		"server.idle_timeout":     "120s",
		"server.shutdown_timeout": "10s",

		"lookup.cache_ttl_ms":            DefaultCacheTTLMs,
		"lookup.cache_max_entries":       DefaultCacheMaxEntries,
		"lookup.rate_limit_window_ms":    DefaultRateLimitWindowMs,
		"lookup.rate_limit_max_requests": DefaultRateLimitMaxRequests,
		"lookup.rate_limit_max_keys":     DefaultRateLimitMaxKeys,
		"lookup.ripestat_base_url":       DefaultRIPEstatBaseURL,
		"lookup.routeviews_base_url":     DefaultRouteViewsBaseURL,
		"lookup.user_agent":              "",
		"lookup.rdap.enabled":            false,
		"lookup.rdap.server":             "",
		"lookup.asn_db_path":             "",

		"logging.level":   "info",
		"logging.profile": "SIMPLE",

		"metrics.enabled": true,
		"metrics.port":    9090,

		"health.enabled": true,

		"debug.enabled":       false,
		"debug.pprof_enabled": false,
	}
}

// Load loads configuration from the discovered user config file.
// This function is safe to call multiple times (e.g., for config reload)
func Load(ctx context.Context, runtimeOverrides ...map[string]any) (*Config, error) {
	return LoadFrom(ctx, "", runtimeOverrides...)
}

// LoadFrom loads configuration using configFile as the user layer. An empty
// path searches the XDG config directories; a missing file is not an error.
func LoadFrom(ctx context.Context, configFile string, runtimeOverrides ...map[string]any) (*Config, error) {
	if appIdentity == nil {
		identity, err := appid.Get(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load app identity: %w", err)
		}
		appIdentity = identity
	}

	v := viper.New()
	for key, value := range Defaults() {
		v.SetDefault(key, value)
	}

	if err := readUserConfig(v, configFile); err != nil {
		return nil, err
	}

	envOverrides, err := gfconfig.LoadEnvOverrides(getEnvSpecs())
	if err != nil {
		return nil, fmt.Errorf("failed to load environment overrides: %w", err)
	}
	if err := v.MergeConfigMap(envOverrides); err != nil {
		return nil, fmt.Errorf("failed to merge environment overrides: %w", err)
	}
	for _, overrides := range runtimeOverrides {
		if len(overrides) == 0 {
			continue
		}
		if err := v.MergeConfigMap(overrides); err != nil {
			return nil, fmt.Errorf("failed to merge runtime overrides: %w", err)
		}
	}

	merged := v.AllSettings()
	sanitizeLookup(merged)

	// Unmarshal into typed config struct
	cfg := &Config{}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}

	if err := decoder.Decode(merged); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Store the loaded config
	setConfig(cfg)

	return cfg, nil
}

func readUserConfig(v *viper.Viper, configFile string) error {
	if strings.TrimSpace(configFile) != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
		return nil
	}

	for _, dir := range getUserConfigDirs() {
		v.AddConfigPath(dir)
	}
	v.AddConfigPath("./config")
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// sanitizeLookup replaces missing, unparseable or out-of-range lookup numerics
// with their defaults so a bad value never disables a limit by accident.
// Cache TTL is the exception: an explicit value <= 0 turns caching off.
func sanitizeLookup(settings map[string]any) {
	lookup, ok := settings["lookup"].(map[string]any)
	if !ok {
		lookup = map[string]any{}
		settings["lookup"] = lookup
	}

	if ttl, ok := parseNumber(lookup["cache_ttl_ms"]); ok {
		if ttl <= 0 {
			lookup["cache_ttl_ms"] = int64(0)
		} else {
			lookup["cache_ttl_ms"] = int64(ttl)
		}
	} else {
		lookup["cache_ttl_ms"] = int64(DefaultCacheTTLMs)
	}

	lookup["cache_max_entries"] = positiveOr(lookup["cache_max_entries"], DefaultCacheMaxEntries)
	lookup["rate_limit_window_ms"] = positiveOr(lookup["rate_limit_window_ms"], DefaultRateLimitWindowMs)
	lookup["rate_limit_max_requests"] = positiveOr(lookup["rate_limit_max_requests"], DefaultRateLimitMaxRequests)
	lookup["rate_limit_max_keys"] = positiveOr(lookup["rate_limit_max_keys"], DefaultRateLimitMaxKeys)
}

func positiveOr(raw any, fallback int64) int64 {
	n, ok := parseNumber(raw)
	if !ok || n <= 0 {
		return fallback
	}
	return int64(n)
}

const maxLookupNumber = float64(math.MaxInt64 / int64(time.Millisecond))

// parseNumber accepts the shapes yaml, env and flag layers produce.
func parseNumber(raw any) (float64, bool) {
	var n float64
	switch v := raw.(type) {
	case nil:
		return 0, false
	case int:
		n = float64(v)
	case int32:
		n = float64(v)
	case int64:
		n = float64(v)
	case uint:
		n = float64(v)
	case uint64:
		n = float64(v)
	case float32:
		n = float64(v)
	case float64:
		n = v
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return 0, false
		}
		parsed, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return 0, false
		}
		n = parsed
	default:
		return 0, false
	}
	// Millisecond values above this overflow time.Duration and int64.
	if math.IsNaN(n) || math.IsInf(n, 0) || n > maxLookupNumber {
		return 0, false
	}
	return math.Floor(n), true
}

// GetConfig returns the current application configuration (thread-safe)
func GetConfig() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return appConfig
}

// setConfig updates the current configuration (thread-safe)
func setConfig(cfg *Config) {
	configMu.Lock()
	defer configMu.Unlock()
	appConfig = cfg
}

// getUserConfigDirs returns the directories searched for config.yaml
// Uses gofulmen/config for XDG-compliant path discovery
func getUserConfigDirs() []string {
	configName, binaryName := appNamesForPaths()

	dirs := []string{}
	for _, name := range []string{configName, binaryName} {
		dir := gfconfig.GetAppConfigDir(name)
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if len(dirs) > 0 && dirs[len(dirs)-1] == dir {
			continue
		}
		dirs = append(dirs, dir)
	}
	return dirs
}

// getEnvSpecs returns environment variable specifications for config mapping
// Maps {PREFIX}{NAME} environment variables to config paths
func getEnvSpecs() []EnvVarSpec {
	if appIdentity == nil {
		return []EnvVarSpec{}
	}

	prefix := appIdentity.EnvPrefix
	if !strings.HasSuffix(prefix, "_") {
		prefix += "_"
	}

	return []EnvVarSpec{
		// Server config
		{Name: prefix + "HOST", Path: []string{"server", "host"}, Type: EnvString},
		{Name: prefix + "PORT", Path: []string{"server", "port"}, Type: EnvInt},
		// Duration fields are parsed as strings and converted by mapstructure decode hook
		{Name: prefix + "READ_TIMEOUT", Path: []string{"server", "read_timeout"}, Type: EnvString},
		{Name: prefix + "WRITE_TIMEOUT", Path: []string{"server", "write_timeout"}, Type: EnvString},
		{Name: prefix + "IDLE_TIMEOUT", Path: []string{"server", "idle_timeout"}, Type: EnvString},
		{Name: prefix + "SHUTDOWN_TIMEOUT", Path: []string{"server", "shutdown_timeout"}, Type: EnvString},

		// Logging config
		{Name: prefix + "LOG_LEVEL", Path: []string{"logging", "level"}, Type: EnvString},
		{Name: prefix + "LOG_PROFILE", Path: []string{"logging", "profile"}, Type: EnvString},

		// Lookup numerics stay strings here; sanitizeLookup applies the fallbacks.
		{Name: prefix + "CACHE_TTL_MS", Path: []string{"lookup", "cache_ttl_ms"}, Type: EnvString},
		{Name: prefix + "CACHE_MAX_ENTRIES", Path: []string{"lookup", "cache_max_entries"}, Type: EnvString},
		{Name: prefix + "RATE_LIMIT_WINDOW_MS", Path: []string{"lookup", "rate_limit_window_ms"}, Type: EnvString},
		{Name: prefix + "RATE_LIMIT_MAX_REQUESTS", Path: []string{"lookup", "rate_limit_max_requests"}, Type: EnvString},
		{Name: prefix + "RATE_LIMIT_MAX_KEYS", Path: []string{"lookup", "rate_limit_max_keys"}, Type: EnvString},
		{Name: prefix + "RIPESTAT_BASE_URL", Path: []string{"lookup", "ripestat_base_url"}, Type: EnvString},
		{Name: prefix + "ROUTEVIEWS_BASE_URL", Path: []string{"lookup", "routeviews_base_url"}, Type: EnvString},
		{Name: prefix + "USER_AGENT", Path: []string{"lookup", "user_agent"}, Type: EnvString},
		{Name: prefix + "RDAP_ENABLED", Path: []string{"lookup", "rdap", "enabled"}, Type: EnvBool},
		{Name: prefix + "RDAP_SERVER", Path: []string{"lookup", "rdap", "server"}, Type: EnvString},
		{Name: prefix + "ASN_DB_PATH", Path: []string{"lookup", "asn_db_path"}, Type: EnvString},

		// Metrics config
		{Name: prefix + "METRICS_ENABLED", Path: []string{"metrics", "enabled"}, Type: EnvBool},
		{Name: prefix + "METRICS_PORT", Path: []string{"metrics", "port"}, Type: EnvInt},

		// Health config
		{Name: prefix + "HEALTH_ENABLED", Path: []string{"health", "enabled"}, Type: EnvBool},

		// Debug config
		{Name: prefix + "DEBUG_ENABLED", Path: []string{"debug", "enabled"}, Type: EnvBool},
		{Name: prefix + "DEBUG_PPROF_ENABLED", Path: []string{"debug", "pprof_enabled"}, Type: EnvBool},
	}
}

// appNamesForPaths returns the config name and binary name from app identity,
// falling back to "routelens" if not set.
func appNamesForPaths() (configName string, binaryName string) {
	configName = "routelens"
	binaryName = "routelens"
	if appIdentity == nil {
		return configName, binaryName
	}

	if strings.TrimSpace(appIdentity.ConfigName) != "" {
		configName = appIdentity.ConfigName
	}
	if strings.TrimSpace(appIdentity.BinaryName) != "" {
		binaryName = appIdentity.BinaryName
	}
	return configName, binaryName
}

// DefaultConfigPath returns the XDG-compliant path to the user config file.
func DefaultConfigPath() string {
	configName, _ := appNamesForPaths()
	configDir := gfconfig.GetAppConfigDir(configName)
	if strings.TrimSpace(configDir) == "" {
		return ""
	}
	return filepath.Join(configDir, "config.yaml")
}

// DefaultDataDir returns the XDG-compliant data directory for the app.
func DefaultDataDir() string {
	configName, _ := appNamesForPaths()
	return gfconfig.GetAppDataDir(configName)
}

// DefaultASNDBPath returns where `lookup.asn_db_path` points when a database
// is dropped into the data directory.
func DefaultASNDBPath() string {
	dataDir := DefaultDataDir()
	if strings.TrimSpace(dataDir) == "" {
		return ""
	}
	return filepath.Join(dataDir, "GeoLite2-ASN.mmdb")
}
