package upstream

import (
	"net/url"
	"strings"
)

// Default provider base URLs.
const (
	DefaultRIPEstatBaseURL   = "https://stat.ripe.net"
	DefaultRouteViewsBaseURL = "https://api.routeviews.org"
)

// Endpoints builds provider URLs. Zero values fall back to the public services.
type Endpoints struct {
	RIPEstatBaseURL   string
	RouteViewsBaseURL string
}

// NetworkInfoURL is the RIPEstat network-info call for an address.
func (e Endpoints) NetworkInfoURL(resource string) string {
	return e.ripestat() + "/data/network-info/data.json?resource=" + escapeComponent(resource)
}

// SearchCompleteURL is the RIPEstat search completion call for free text.
func (e Endpoints) SearchCompleteURL(resource string) string {
	return e.ripestat() + "/data/searchcomplete/data.json?resource=" + escapeComponent(resource)
}

// PrefixURL is the RouteViews prefix call.
func (e Endpoints) PrefixURL(prefix string) string {
	return e.routeviews() + "/prefix/" + escapeComponent(prefix)
}

// ASNURL is the RouteViews ASN call.
func (e Endpoints) ASNURL(asn string) string {
	return e.routeviews() + "/asn/" + escapeComponent(asn)
}

func (e Endpoints) ripestat() string {
	return trimBase(e.RIPEstatBaseURL, DefaultRIPEstatBaseURL)
}

func (e Endpoints) routeviews() string {
	return trimBase(e.RouteViewsBaseURL, DefaultRouteViewsBaseURL)
}

func trimBase(value, fallback string) string {
	value = strings.TrimRight(strings.TrimSpace(value), "/")
	if value == "" {
		return fallback
	}
	return value
}

// escapeComponent escapes a URI component for both path segments and query
// values: '/' and ':' are always encoded and spaces become %20, not '+'.
func escapeComponent(value string) string {
	return strings.ReplaceAll(url.QueryEscape(value), "+", "%20")
}
