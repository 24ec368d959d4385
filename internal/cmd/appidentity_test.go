package cmd

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/routelens/routelens/internal/appid"
)

func TestAppIdentityLoading(t *testing.T) {
	identity, err := appid.Get(context.Background())
	require.NoError(t, err)
	require.NotNil(t, identity)

	assert.Equal(t, "routelens", identity.BinaryName)
	assert.Equal(t, "routelens", identity.ConfigName)
	assert.NotEmpty(t, identity.Vendor)
	assert.True(t, strings.HasSuffix(identity.EnvPrefix, "_"), "env prefix %q should end with underscore", identity.EnvPrefix)
	assert.Equal(t, "routelens", identity.TelemetryNamespace())
}

func TestRootCommandRegistersLookupCommands(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"serve", "lookup", "classify", "health", "version", "doctor", "envinfo"} {
		assert.True(t, names[want], "missing command %s", want)
	}
}
