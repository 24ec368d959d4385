package handlers

import (
	"net/http"
	"runtime"

	"github.com/fulmenhq/gofulmen/appidentity"
	"github.com/fulmenhq/gofulmen/crucible"

	"github.com/routelens/routelens/internal/appid"
)

// Build info, set through cmd.SetVersionInfo.
var (
	AppVersion   = "dev"
	AppCommit    = "unknown"
	AppBuildDate = "unknown"

	appIdentity *appidentity.Identity
	providers   []string
)

// SetVersionInfo stores the build metadata reported by /version
func SetVersionInfo(version, commit, buildDate string) {
	AppVersion = version
	AppCommit = commit
	AppBuildDate = buildDate
}

// SetAppIdentity stores the identity used for the app name
func SetAppIdentity(identity *appidentity.Identity) {
	appIdentity = identity
}

// SetProviders records the upstream providers reported by /version.
func SetProviders(names ...string) {
	providers = append([]string(nil), names...)
}

// VersionResponse is the body of GET /version.
type VersionResponse struct {
	App          AppInfo     `json:"app"`
	Dependencies DepInfo     `json:"dependencies"`
	Runtime      RuntimeInfo `json:"runtime"`
	Providers    []string    `json:"providers,omitempty"`
}

// AppInfo holds the binary's build details
type AppInfo struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	Commit    string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version,omitempty"`
}

// DepInfo holds versions of the fulmen libraries
type DepInfo struct {
	Gofulmen string `json:"gofulmen"`
	Crucible string `json:"crucible"`
}

// RuntimeInfo describes the process environment
type RuntimeInfo struct {
	Platform      string `json:"platform"`
	NumCPU        int    `json:"num_cpu"`
	NumGoroutines int    `json:"num_goroutines"`
}

// VersionHandler reports build, dependency and provider information.
func VersionHandler(w http.ResponseWriter, r *http.Request) {
	// Prefer the loaded identity, fall back to the binary name
	identity := appIdentity
	if identity == nil {
		identity = appid.Fallback()
	}
	deps := crucible.GetVersion()

	// Providers are omitted until the server registers them

	writeJSON(w, http.StatusOK, VersionResponse{
		App: AppInfo{
			Name:      identity.BinaryName,
			Version:   AppVersion,
			Commit:    AppCommit,
			BuildDate: AppBuildDate,
			GoVersion: runtime.Version(),
		},
		Dependencies: DepInfo{Gofulmen: deps.Gofulmen, Crucible: deps.Crucible},
		Runtime: RuntimeInfo{
			Platform:      runtime.GOOS + "/" + runtime.GOARCH,
			NumCPU:        runtime.NumCPU(),
			NumGoroutines: runtime.NumGoroutine(),
		},
		Providers: providers,
	})
}
