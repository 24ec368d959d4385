// Package appid resolves the routelens app identity. An explicit path
// (FULMEN_APP_IDENTITY_PATH) or a .fulmen/app.yaml found from the working
// directory wins; the embedded copy keeps standalone binaries working.
package appid

import (
	"context"
	_ "embed"
	"os"
	"path/filepath"

	"github.com/fulmenhq/gofulmen/appidentity"
)

// Keep in sync with .fulmen/app.yaml.
//
//go:embed identity.yaml
var embeddedIdentity []byte

// Identity names used when no identity can be resolved at all.
const (
	DefaultBinaryName = "routelens"
	DefaultEnvPrefix  = "ROUTELENS_"
)

func init() {
	_ = register()
}

func register() error {
	return appidentity.RegisterEmbeddedIdentityYAML(embeddedIdentity)
}

// Get returns the resolved identity.
func Get(ctx context.Context) (*appidentity.Identity, error) {
	return appidentity.Get(ctx)
}

// Fallback returns a minimal identity named after the running executable.
func Fallback() *appidentity.Identity {
	name := DefaultBinaryName
	if len(os.Args) > 0 && os.Args[0] != "" {
		name = filepath.Base(os.Args[0])
	}
	return &appidentity.Identity{
		BinaryName: name,
		EnvPrefix:  DefaultEnvPrefix,
		ConfigName: DefaultBinaryName,
	}
}
