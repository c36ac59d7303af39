package enrichment

import (
	"context"
	"fmt"
	"net"

	"github.com/oschwald/geoip2-golang"

	"github.com/sentineltrace/threat-intel/internal/model"
)

// GeoIPProvider resolves country/ASN data for IP indicators from local
// MaxMind City and ASN databases.
//
// Grounded on original_source/src/enrichment/geoip.rs's GeoIpProvider.
type GeoIPProvider struct {
	city *geoip2.Reader
	asn  *geoip2.Reader
}

// NewGeoIPProvider opens the City and ASN databases at the given
// paths. Either path may be empty, in which case that lookup is
// skipped; if both are empty the provider never returns data.
func NewGeoIPProvider(cityPath, asnPath string) (*GeoIPProvider, error) {
	p := &GeoIPProvider{}
	if cityPath != "" {
		r, err := geoip2.Open(cityPath)
		if err != nil {
			return nil, fmt.Errorf("open geoip city db: %w", err)
		}
		p.city = r
	}
	if asnPath != "" {
		r, err := geoip2.Open(asnPath)
		if err != nil {
			return nil, fmt.Errorf("open geoip asn db: %w", err)
		}
		p.asn = r
	}
	return p, nil
}

// Close releases the underlying mmap'd database files.
func (p *GeoIPProvider) Close() {
	if p.city != nil {
		p.city.Close()
	}
	if p.asn != nil {
		p.asn.Close()
	}
}

func (p *GeoIPProvider) Name() string           { return "geoip" }
func (p *GeoIPProvider) EnrichmentType() string { return "geolocation" }
func (p *GeoIPProvider) TTLHours() int64        { return 168 }

func (p *GeoIPProvider) Supports(t model.IocType) bool {
	return t == model.IocTypeIP
}

func (p *GeoIPProvider) Enrich(ctx context.Context, indicator model.Indicator) (*Document, error) {
	if p.city == nil && p.asn == nil {
		return nil, nil
	}
	ip := net.ParseIP(indicator.Value)
	if ip == nil {
		return nil, fmt.Errorf("geoip: %q is not an IP", indicator.Value)
	}

	var data model.GeoIPData
	found := false

	if p.city != nil {
		rec, err := p.city.City(ip)
		if err != nil {
			return nil, fmt.Errorf("geoip city lookup: %w", err)
		}
		if rec.Country.IsoCode != "" {
			code := rec.Country.IsoCode
			name := rec.Country.Names["en"]
			data.CountryCode = &code
			data.CountryName = &name
			found = true
		}
		if name, ok := rec.City.Names["en"]; ok && name != "" {
			data.City = &name
		}
		if len(rec.Subdivisions) > 0 {
			if name, ok := rec.Subdivisions[0].Names["en"]; ok {
				data.Region = &name
			}
		}
		if rec.Location.Latitude != 0 || rec.Location.Longitude != 0 {
			lat, lon := rec.Location.Latitude, rec.Location.Longitude
			data.Latitude = &lat
			data.Longitude = &lon
		}
	}

	if p.asn != nil {
		rec, err := p.asn.ASN(ip)
		if err != nil {
			return nil, fmt.Errorf("geoip asn lookup: %w", err)
		}
		if rec.AutonomousSystemNumber != 0 {
			asn := rec.AutonomousSystemNumber
			org := rec.AutonomousSystemOrganization
			data.ASN = &asn
			data.ASOrg = &org
			found = true
		}
	}

	if !found {
		return nil, nil
	}
	return NewDocument(data)
}
