package main

import (
	"github.com/routelens/routelens/internal/cmd"
)

// Set via ldflags, e.g.
// go build -ldflags="-X main.version=0.4.0 -X main.commit=$(git rev-parse --short HEAD)"
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	cmd.SetVersionInfo(version, commit, buildDate)

	if err := cmd.Execute(); err != nil {
		// Lookup output is already printed; only the exit status remains.
		cmd.ExitWithCodeStderr(cmd.ExitCodeFor(err), "routelens failed", err)
	}
}
