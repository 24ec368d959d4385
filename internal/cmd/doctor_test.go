package cmd

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/routelens/routelens/internal/config"
)

func TestBuildInitConfigRoundTrips(t *testing.T) {
	body, err := buildInitConfig("routelens")
	require.NoError(t, err)
	assert.Contains(t, string(body), "# routelens config - created by 'routelens doctor init'")
	assert.Contains(t, string(body), "cache_ttl_ms: 30000")

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, body, 0o644))

	cfg, err := config.LoadFrom(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, int64(config.DefaultCacheTTLMs), cfg.Lookup.CacheTTLMs)
	assert.Equal(t, config.DefaultRIPEstatBaseURL, cfg.Lookup.RIPEstatBaseURL)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestSetNested(t *testing.T) {
	target := map[string]any{}
	setNested(target, []string{"lookup", "rdap", "enabled"}, true)
	setNested(target, []string{"lookup", "cache_ttl_ms"}, 10)

	lookup := target["lookup"].(map[string]any)
	assert.Equal(t, 10, lookup["cache_ttl_ms"])
	assert.Equal(t, true, lookup["rdap"].(map[string]any)["enabled"])
}

func TestFormatFileSize(t *testing.T) {
	assert.Equal(t, "512 bytes", formatFileSize(512))
	assert.Equal(t, "1.5 KB", formatFileSize(1536))
	assert.Equal(t, "2.0 MB", formatFileSize(2*1024*1024))
}
