package enrichment

import (
	"context"
	"strings"
	"time"

	"github.com/likexian/whois"

	"github.com/sentineltrace/threat-intel/internal/model"
)

// WhoisProvider fetches and parses WHOIS records for domains.
//
// Grounded on original_source/src/enrichment/whois.rs, which queries a
// WHOIS server and parses the plain-text response key:value lines
// rather than relying on a structured RDAP response (not every
// registry supports RDAP).
type WhoisProvider struct{}

// NewWhoisProvider builds a WHOIS provider.
func NewWhoisProvider() *WhoisProvider { return &WhoisProvider{} }

func (p *WhoisProvider) Name() string           { return "whois" }
func (p *WhoisProvider) EnrichmentType() string { return "whois" }
func (p *WhoisProvider) TTLHours() int64        { return 168 }

func (p *WhoisProvider) Supports(t model.IocType) bool {
	return t == model.IocTypeDomain
}

func (p *WhoisProvider) Enrich(ctx context.Context, indicator model.Indicator) (*Document, error) {
	raw, err := whois.Whois(indicator.Value)
	if err != nil {
		return nil, err
	}
	data := parseWhois(raw)
	if data.Registrar == nil && data.RegistrantOrg == nil && len(data.NameServers) == 0 {
		return nil, nil
	}
	return NewDocument(data)
}

// parseWhois extracts the fields the rest of the system cares about
// from a raw WHOIS text blob. Registries are inconsistent about key
// casing and spacing, so keys are matched case-insensitively against
// a fixed set of known aliases.
func parseWhois(raw string) model.WhoisData {
	data := model.WhoisData{Raw: raw}

	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "%") || strings.HasPrefix(line, "#") {
			continue
		}
		idx := strings.Index(line, ":")
		if idx < 0 {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(line[:idx]))
		value := strings.TrimSpace(line[idx+1:])
		if value == "" {
			continue
		}

		switch key {
		case "registrar", "sponsoring registrar":
			v := value
			data.Registrar = &v
		case "registrant organization", "org", "organisation":
			v := value
			data.RegistrantOrg = &v
		case "registrant country", "country":
			v := value
			data.RegistrantCountry = &v
		case "creation date", "created", "created on", "domain registration date":
			if t, ok := parseWhoisTime(value); ok {
				data.CreationDate = &t
			}
		case "name server", "nserver", "nameservers":
			data.NameServers = append(data.NameServers, strings.ToLower(value))
		case "domain status", "status":
			data.Status = append(data.Status, value)
		}
	}

	return data
}

var whoisTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05Z",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02-Jan-2006",
}

func parseWhoisTime(value string) (time.Time, bool) {
	for _, layout := range whoisTimeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
