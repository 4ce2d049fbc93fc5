// Package geo provides best-effort geolocation for identity enrichment.
// Lookups map the signer's client IP to city/state/country via a MaxMind
// database; any failure degrades to the signer's submitted raw fields.
package geo

import (
	"fmt"
	"net"

	"github.com/oschwald/maxminddb-golang"
)

// Location is the resolved place for an IP.
type Location struct {
	City    string
	State   string
	Country string
}

// Resolver locates an IP address. Implementations must be safe for
// concurrent use.
type Resolver interface {
	Locate(ip string) (*Location, error)
	Close() error
}

// MaxMindResolver resolves against a GeoIP2/GeoLite2 City database file.
type MaxMindResolver struct {
	reader *maxminddb.Reader
}

// NewMaxMindResolver opens the database at path.
func NewMaxMindResolver(path string) (*MaxMindResolver, error) {
	reader, err := maxminddb.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open GeoIP database %s: %w", path, err)
	}
	return &MaxMindResolver{reader: reader}, nil
}

// geoRecord matches the subset of the GeoLite2 City schema we read.
type geoRecord struct {
	City struct {
		Names map[string]string `maxminddb:"names"`
	} `maxminddb:"city"`
	Subdivisions []struct {
		IsoCode string `maxminddb:"iso_code"`
	} `maxminddb:"subdivisions"`
	Country struct {
		IsoCode string `maxminddb:"iso_code"`
	} `maxminddb:"country"`
}

// Locate maps an IP to a Location. Unknown or unparsable IPs return an error.
func (r *MaxMindResolver) Locate(ip string) (*Location, error) {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return nil, fmt.Errorf("invalid IP address %q", ip)
	}

	var rec geoRecord
	if err := r.reader.Lookup(parsed, &rec); err != nil {
		return nil, fmt.Errorf("geo lookup for %s failed: %w", ip, err)
	}

	loc := &Location{
		City:    rec.City.Names["en"],
		Country: rec.Country.IsoCode,
	}
	if len(rec.Subdivisions) > 0 {
		loc.State = rec.Subdivisions[0].IsoCode
	}
	if loc.City == "" && loc.State == "" && loc.Country == "" {
		return nil, fmt.Errorf("no geo data for %s", ip)
	}
	return loc, nil
}

// Close releases the underlying database.
func (r *MaxMindResolver) Close() error {
	return r.reader.Close()
}
