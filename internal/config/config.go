package config

import (
	"time"
)

// Config represents the complete application configuration. Values are
// layered: built-in defaults, then the user config file, then environment
// variables, then runtime overrides (CLI flags).
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Lookup  LookupConfig  `mapstructure:"lookup"`
	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Health  HealthConfig  `mapstructure:"health"`
	Debug   DebugConfig   `mapstructure:"debug"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// LookupConfig controls the lookup pipeline: cache, caller rate limit,
// provider endpoints and optional enrichment.
type LookupConfig struct {
	// CacheTTLMs <= 0 disables the upstream response cache.
	CacheTTLMs           int64 `mapstructure:"cache_ttl_ms"`
	CacheMaxEntries      int   `mapstructure:"cache_max_entries"`
	RateLimitWindowMs    int64 `mapstructure:"rate_limit_window_ms"`
	RateLimitMaxRequests int   `mapstructure:"rate_limit_max_requests"`
	RateLimitMaxKeys     int   `mapstructure:"rate_limit_max_keys"`

	RIPEstatBaseURL   string `mapstructure:"ripestat_base_url"`
	RouteViewsBaseURL string `mapstructure:"routeviews_base_url"`
	UserAgent         string `mapstructure:"user_agent"`

	RDAP RDAPConfig `mapstructure:"rdap"`

	// ASNDBPath points at an optional GeoLite2-ASN database.
	ASNDBPath string `mapstructure:"asn_db_path"`
}

// RDAPConfig enables registration enrichment. Server pins a single RDAP base
// URL; empty means IANA bootstrap.
type RDAPConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Server  string `mapstructure:"server"`
}

// CacheTTL returns the cache TTL; zero means caching is disabled.
func (l LookupConfig) CacheTTL() time.Duration {
	if l.CacheTTLMs <= 0 {
		return 0
	}
	return time.Duration(l.CacheTTLMs) * time.Millisecond
}

// RateLimitWindow returns the caller rate limit window.
func (l LookupConfig) RateLimitWindow() time.Duration {
	return time.Duration(l.RateLimitWindowMs) * time.Millisecond
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	// Level controls the minimum log level
	// Valid values: trace, debug, info, warn, error
	Level string `mapstructure:"level"`

	// Profile selects SIMPLE or STRUCTURED output
	Profile string `mapstructure:"profile"`
}

// MetricsConfig contains Prometheus metrics configuration
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`

	// Port is the dedicated Prometheus exporter port
	Port int `mapstructure:"port"`
}

// HealthConfig contains health check configuration
type HealthConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// DebugConfig contains debug and profiling configuration
type DebugConfig struct {
	Enabled bool `mapstructure:"enabled"`

	// PprofEnabled exposes /debug/pprof. Development only.
	PprofEnabled bool `mapstructure:"pprof_enabled"`
}
