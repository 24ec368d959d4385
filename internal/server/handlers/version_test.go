package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fulmenhq/gofulmen/appidentity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func getVersion(t *testing.T) VersionResponse {
	t.Helper()
	rec := httptest.NewRecorder()
	VersionHandler(rec, httptest.NewRequest(http.MethodGet, "/version", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp VersionResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func TestVersionHandlerReportsBuildAndProviders(t *testing.T) {
	SetVersionInfo("1.2.3", "abcd123", "2026-01-07T12:00:00Z")
	SetAppIdentity(&appidentity.Identity{BinaryName: "routelens"})
	SetProviders("ripestat", "routeviews", "rdap")
	t.Cleanup(func() {
		SetAppIdentity(nil)
		SetProviders()
	})

	resp := getVersion(t)
	assert.Equal(t, "routelens", resp.App.Name)
	assert.Equal(t, "1.2.3", resp.App.Version)
	assert.Equal(t, "abcd123", resp.App.Commit)
	assert.Equal(t, []string{"ripestat", "routeviews", "rdap"}, resp.Providers)
	assert.NotEmpty(t, resp.Dependencies.Gofulmen)
	assert.NotEmpty(t, resp.Dependencies.Crucible)
}

func TestVersionHandlerWithoutIdentity(t *testing.T) {
	SetAppIdentity(nil)

	resp := getVersion(t)
	assert.NotEmpty(t, resp.App.Name)
	assert.Empty(t, resp.Providers)
}
