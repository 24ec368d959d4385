// Package localasn resolves origin ASNs from an on-disk GeoLite2-ASN (MMDB)
// database. It is an optional enrichment and never replaces upstream data.
package localasn

import (
	"fmt"
	"net/netip"
	"strings"

	"github.com/oschwald/maxminddb-golang"

	"github.com/routelens/routelens/internal/core"
)

var supportedTypes = map[string]bool{
	"GeoLite2-ASN":  true,
	"GeoIP2-ASN":    true,
	"DBIP-ASN-Lite": true,
}

type asnRecord struct {
	AutonomousSystemNumber       uint   `maxminddb:"autonomous_system_number"`
	AutonomousSystemOrganization string `maxminddb:"autonomous_system_organization"`
}

// Reader wraps an opened ASN database.
type Reader struct {
	db *maxminddb.Reader
}

// Open opens path and checks that it is an ASN database.
func Open(path string) (*Reader, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("asn database path is required")
	}

	db, err := maxminddb.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open asn database: %w", err)
	}
	if dbType := db.Metadata.DatabaseType; !supportedTypes[dbType] {
		_ = db.Close()
		return nil, fmt.Errorf("unsupported asn database type %q", dbType)
	}
	return &Reader{db: db}, nil
}

// Lookup returns the origin recorded for ip. The second value is false when
// the address is invalid or absent from the database.
func (r *Reader) Lookup(ip string) (*core.LocalASN, bool) {
	if r == nil || r.db == nil {
		return nil, false
	}
	addr, err := netip.ParseAddr(strings.TrimSpace(ip))
	if err != nil {
		return nil, false
	}

	var record asnRecord
	if err := r.db.Lookup(addr.AsSlice(), &record); err != nil || record.AutonomousSystemNumber == 0 {
		return nil, false
	}
	return &core.LocalASN{
		Number:       record.AutonomousSystemNumber,
		Organization: record.AutonomousSystemOrganization,
	}, true
}

// DatabaseType reports the MMDB database type.
func (r *Reader) DatabaseType() string {
	if r == nil || r.db == nil {
		return ""
	}
	return r.db.Metadata.DatabaseType
}

// Close releases the database.
func (r *Reader) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}
