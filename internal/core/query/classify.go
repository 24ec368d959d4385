// Package query classifies free-form lookup input into an IP address, a CIDR
// prefix, an autonomous system number, or nothing recognizable.
package query

import (
	"net/netip"
	"strconv"
	"strings"

	"github.com/routelens/routelens/internal/core"
)

const maxASN = 4_294_967_295

// Classify inspects raw input and returns the first matching interpretation:
// IP, then prefix, then ASN. Anything else is QueryKindUnknown.
func Classify(raw string) core.ClassifiedQuery {
	q := strings.TrimSpace(raw)
	if q == "" {
		return core.ClassifiedQuery{Kind: core.QueryKindUnknown}
	}

	if ip, ok := NormalizeIP(q); ok {
		return core.ClassifiedQuery{Kind: core.QueryKindIP, Value: ip}
	}
	if prefix, ok := NormalizePrefix(q); ok {
		return core.ClassifiedQuery{Kind: core.QueryKindPrefix, Value: prefix}
	}
	if asn, ok := NormalizeASN(q); ok {
		return core.ClassifiedQuery{Kind: core.QueryKindASN, Value: asn}
	}

	return core.ClassifiedQuery{Kind: core.QueryKindUnknown}
}

// NormalizeIP parses a literal address as it may appear in user input or in
// forwarding headers: optional port, optional IPv6 brackets, and only the
// first element of a comma-separated chain is considered.
func NormalizeIP(raw string) (string, bool) {
	value := strings.TrimSpace(raw)
	if first, _, found := strings.Cut(value, ","); found {
		value = strings.TrimSpace(first)
	}
	if value == "" {
		return "", false
	}

	if addr, ok := parseAddr(value); ok {
		return addr.String(), true
	}

	// [v6]:port, [v6] or v4:port
	if strings.HasPrefix(value, "[") {
		end := strings.Index(value, "]")
		if end < 0 {
			return "", false
		}
		if rest := value[end+1:]; rest != "" {
			port, hasPort := strings.CutPrefix(rest, ":")
			if !hasPort || !validPort(port) {
				return "", false
			}
		}
		addr, ok := parseAddr(value[1:end])
		if !ok || !addr.Is6() {
			return "", false
		}
		return addr.String(), true
	}

	if strings.Count(value, ":") == 1 {
		host, port, _ := strings.Cut(value, ":")
		if !validPort(port) {
			return "", false
		}
		addr, ok := parseAddr(host)
		if !ok || !addr.Is4() {
			return "", false
		}
		return addr.String(), true
	}

	return "", false
}

// NormalizePrefix parses "<address>/<mask>" with the mask bounded by the
// address family. The address keeps its host bits; only its text form is
// canonicalized.
func NormalizePrefix(raw string) (string, bool) {
	value := strings.TrimSpace(raw)
	addrRaw, maskRaw, found := strings.Cut(value, "/")
	if !found || addrRaw == "" || maskRaw == "" {
		return "", false
	}

	addrText, ok := NormalizeIP(addrRaw)
	if !ok {
		return "", false
	}
	addr, err := netip.ParseAddr(addrText)
	if err != nil {
		return "", false
	}

	mask, err := strconv.Atoi(strings.TrimSpace(maskRaw))
	if err != nil || mask < 0 {
		return "", false
	}
	if addr.Is4() && mask > 32 {
		return "", false
	}
	if addr.Is6() && mask > 128 {
		return "", false
	}

	return addrText + "/" + strconv.Itoa(mask), true
}

// NormalizeASN accepts "15169", "AS15169" or "as 15169" and returns the
// decimal form without leading zeros. Values above 2^32-1 are rejected.
func NormalizeASN(raw string) (string, bool) {
	value := strings.TrimSpace(raw)
	if len(value) >= 2 && strings.EqualFold(value[:2], "as") {
		value = strings.TrimSpace(value[2:])
	}
	if len(value) < 1 || len(value) > 10 {
		return "", false
	}
	for _, r := range value {
		if r < '0' || r > '9' {
			return "", false
		}
	}

	n, err := strconv.ParseUint(value, 10, 64)
	if err != nil || n > maxASN {
		return "", false
	}
	return strconv.FormatUint(n, 10), true
}

func parseAddr(value string) (netip.Addr, bool) {
	addr, err := netip.ParseAddr(value)
	if err != nil || addr.Zone() != "" {
		return netip.Addr{}, false
	}
	return addr, true
}

func validPort(port string) bool {
	if port == "" {
		return false
	}
	n, err := strconv.Atoi(port)
	return err == nil && n >= 0 && n <= 65535
}
