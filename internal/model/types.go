// Package model defines the core data types shared across the service.
package model

import (
	"time"

	"github.com/google/uuid"
)

// IocType identifies the kind of indicator of compromise.
type IocType string

const (
	IocTypeIP     IocType = "ip"
	IocTypeDomain IocType = "domain"
	IocTypeURL    IocType = "url"
	IocTypeHash   IocType = "hash"
	IocTypeEmail  IocType = "email"
	IocTypeCVE    IocType = "cve"
)

// Severity is a threat severity bucket.
type Severity string

const (
	SeverityUnknown  Severity = "unknown"
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// rank assigns a strict ordering used when merging severities on upsert.
// Mirrors the bucket boundaries used by SeverityFromScore.
var severityRank = map[Severity]int{
	SeverityUnknown:  0,
	SeverityLow:      1,
	SeverityMedium:   2,
	SeverityHigh:     3,
	SeverityCritical: 4,
}

// Rank returns the ordinal position of s, used by callers that need to
// take the greater of two severities.
func (s Severity) Rank() int {
	if r, ok := severityRank[s]; ok {
		return r
	}
	return 0
}

// Max returns whichever of s and other ranks higher.
func (s Severity) Max(other Severity) Severity {
	if other.Rank() > s.Rank() {
		return other
	}
	return s
}

// SeverityFromScore buckets a 0-100 threat score into a severity.
func SeverityFromScore(score int) Severity {
	switch {
	case score >= 0 && score <= 20:
		return SeverityLow
	case score <= 50:
		return SeverityMedium
	case score <= 80:
		return SeverityHigh
	case score <= 100:
		return SeverityCritical
	default:
		return SeverityUnknown
	}
}

// Tlp is the Traffic Light Protocol sharing marker.
type Tlp string

const (
	TlpWhite Tlp = "white"
	TlpGreen Tlp = "green"
	TlpAmber Tlp = "amber"
	TlpRed   Tlp = "red"
)

// IocSource describes a feed or manual source of indicators.
type IocSource struct {
	ID                uuid.UUID  `json:"id"`
	Name              string     `json:"name"`
	SourceType        string     `json:"source_type"`
	URL               *string    `json:"url,omitempty"`
	APIKeyRequired    bool       `json:"api_key_required"`
	ReliabilityScore  int        `json:"reliability_score"`
	Enabled           bool       `json:"enabled"`
	LastFetch         *time.Time `json:"last_fetch,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// Indicator is the canonical IOC record.
type Indicator struct {
	ID          uuid.UUID   `json:"id"`
	IocType     IocType     `json:"ioc_type"`
	Value       string      `json:"value"`
	Severity    Severity    `json:"severity"`
	Confidence  int         `json:"confidence"`
	ThreatScore int         `json:"threat_score"`
	Tlp         Tlp         `json:"tlp"`
	FirstSeen   time.Time   `json:"first_seen"`
	LastSeen    time.Time   `json:"last_seen"`
	Expiration  *time.Time  `json:"expiration,omitempty"`
	Tags        []string    `json:"tags"`
	SourceIDs   []uuid.UUID `json:"source_ids"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// Enrichment holds a single provider's enrichment payload for an indicator.
type Enrichment struct {
	ID             uuid.UUID  `json:"id"`
	IndicatorID    uuid.UUID  `json:"indicator_id"`
	EnrichmentType string     `json:"enrichment_type"`
	Data           []byte     `json:"data"`
	Provider       string     `json:"provider"`
	FetchedAt      time.Time  `json:"fetched_at"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
}

// Sighting records a single observation of an indicator.
type Sighting struct {
	ID          uuid.UUID `json:"id"`
	IndicatorID uuid.UUID `json:"indicator_id"`
	Source      string    `json:"source"`
	Context     []byte    `json:"context,omitempty"`
	ObservedAt  time.Time `json:"observed_at"`
	CreatedAt   time.Time `json:"created_at"`
}

// GeoIPData is the structured payload produced by the GeoIP provider.
type GeoIPData struct {
	CountryCode *string  `json:"country_code,omitempty"`
	CountryName *string  `json:"country_name,omitempty"`
	City        *string  `json:"city,omitempty"`
	Region      *string  `json:"region,omitempty"`
	Latitude    *float64 `json:"latitude,omitempty"`
	Longitude   *float64 `json:"longitude,omitempty"`
	ASN         *uint32  `json:"asn,omitempty"`
	ASOrg       *string  `json:"as_org,omitempty"`
}

// WhoisData is the structured payload produced by the WHOIS provider.
type WhoisData struct {
	Registrar         *string    `json:"registrar,omitempty"`
	RegistrantOrg     *string    `json:"registrant_org,omitempty"`
	RegistrantCountry *string    `json:"registrant_country,omitempty"`
	CreationDate      *time.Time `json:"creation_date,omitempty"`
	NameServers       []string   `json:"name_servers,omitempty"`
	Status            []string   `json:"status,omitempty"`
	Raw               string     `json:"raw,omitempty"`
}

// DNSData is the structured payload produced by the DNS provider.
type DNSData struct {
	ARecords    []string `json:"a_records,omitempty"`
	AAAARecords []string `json:"aaaa_records,omitempty"`
	MXRecords   []string `json:"mx_records,omitempty"`
	TXTRecords  []string `json:"txt_records,omitempty"`
	NSRecords   []string `json:"ns_records,omitempty"`
	PTRRecords  []string `json:"ptr_records,omitempty"`
}

// CreateIndicatorRequest is the inbound payload for creating/upserting an IOC.
type CreateIndicatorRequest struct {
	Value          string    `json:"value" binding:"required,min=1,max=2048"`
	IocType        *IocType  `json:"ioc_type,omitempty"`
	Severity       *Severity `json:"severity,omitempty"`
	Confidence     *int      `json:"confidence,omitempty"`
	Tlp            *Tlp      `json:"tlp,omitempty"`
	Tags           []string  `json:"tags,omitempty"`
	Source         *string   `json:"source,omitempty"`
	ExpirationDays *int      `json:"expiration_days,omitempty"`
}

// IndicatorResponse wraps an indicator with its enrichments and sighting count.
type IndicatorResponse struct {
	Indicator          Indicator    `json:"indicator"`
	Enrichments        []Enrichment `json:"enrichments"`
	SightingsCount     int64        `json:"sightings_count"`
	RelatedIndicators  []Indicator  `json:"related_indicators"`
}

// BulkImportRequest imports a batch of indicators under a shared source/tlp/tags.
type BulkImportRequest struct {
	Indicators []CreateIndicatorRequest `json:"indicators" binding:"required"`
	Source     string                   `json:"source" binding:"required"`
	Tlp        *Tlp                     `json:"tlp,omitempty"`
	Tags       []string                 `json:"tags,omitempty"`
}

// BulkImportResponse reports the outcome of a bulk import.
type BulkImportResponse struct {
	Total   int      `json:"total"`
	Created int      `json:"created"`
	Updated int      `json:"updated"`
	Failed  int      `json:"failed"`
	Errors  []string `json:"errors"`
}

// IndicatorFilter narrows a search query.
type IndicatorFilter struct {
	IocType        *IocType
	Severity       *Severity
	MinConfidence  *int
	MinThreatScore *int
	Tags           []string
	SourceID       *uuid.UUID
	FirstSeenAfter *time.Time
	Search         *string
	Page           int64
	PerPage        int64
}

// PaginatedResponse wraps a page of results with pagination metadata.
type PaginatedResponse[T any] struct {
	Data       []T   `json:"data"`
	Total      int64 `json:"total"`
	Page       int64 `json:"page"`
	PerPage    int64 `json:"per_page"`
	TotalPages int64 `json:"total_pages"`
}

// FeedStatus reports the health of one feed collector.
type FeedStatus struct {
	Source           IocSource  `json:"source"`
	LastRun          *time.Time `json:"last_run,omitempty"`
	NextRun          *time.Time `json:"next_run,omitempty"`
	IndicatorsCount  int64      `json:"indicators_count"`
	Status           string     `json:"status"`
	LastError        *string    `json:"last_error,omitempty"`
}

// DashboardStats summarizes store-wide counts for the stats endpoint.
type DashboardStats struct {
	TotalIndicators       int64            `json:"total_indicators"`
	IndicatorsByType      map[string]int64 `json:"indicators_by_type"`
	IndicatorsBySeverity  map[string]int64 `json:"indicators_by_severity"`
	NewToday              int64            `json:"new_today"`
	NewThisWeek           int64            `json:"new_this_week"`
	ActiveSources         int64            `json:"active_sources"`
	TopTags               []TagCount       `json:"top_tags"`
	RecentSightings       int64            `json:"recent_sightings"`
}

// TagCount is one entry of DashboardStats.TopTags.
type TagCount struct {
	Tag   string `json:"tag"`
	Count int64  `json:"count"`
}
