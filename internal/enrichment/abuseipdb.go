package enrichment

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/sentineltrace/threat-intel/internal/model"
)

// AbuseIPDBProvider queries the AbuseIPDB /check endpoint for IP
// reputation data.
//
// Grounded on original_source/src/enrichment/abuseipdb.rs.
type AbuseIPDBProvider struct {
	apiKey string
	client *http.Client
}

// NewAbuseIPDBProvider builds a provider bound to an API key. If
// apiKey is empty, Enrich always returns nil (not configured).
func NewAbuseIPDBProvider(apiKey string) *AbuseIPDBProvider {
	return &AbuseIPDBProvider{
		apiKey: apiKey,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (p *AbuseIPDBProvider) Name() string           { return "abuseipdb" }
func (p *AbuseIPDBProvider) EnrichmentType() string { return "reputation" }
func (p *AbuseIPDBProvider) TTLHours() int64        { return 12 }

func (p *AbuseIPDBProvider) Supports(t model.IocType) bool {
	return t == model.IocTypeIP
}

type abuseIPDBResponse struct {
	Data struct {
		IPAddress            string  `json:"ipAddress"`
		AbuseConfidenceScore int     `json:"abuseConfidenceScore"`
		CountryCode          string  `json:"countryCode"`
		Isp                  string  `json:"isp"`
		Domain               string  `json:"domain"`
		TotalReports         int     `json:"totalReports"`
		LastReportedAt       *string `json:"lastReportedAt"`
		UsageType            string  `json:"usageType"`
		IsTor                bool    `json:"isTor"`
		Reports              []struct {
			Categories []int `json:"categories"`
		} `json:"reports"`
	} `json:"data"`
}

// AbuseIPDBResult is the enrichment payload persisted for this provider.
type AbuseIPDBResult struct {
	AbuseConfidenceScore int      `json:"abuse_confidence_score"`
	CountryCode          string   `json:"country_code,omitempty"`
	Isp                  string   `json:"isp,omitempty"`
	Domain               string   `json:"domain,omitempty"`
	TotalReports         int      `json:"total_reports"`
	LastReportedAt       *string  `json:"last_reported_at,omitempty"`
	UsageType            string   `json:"usage_type,omitempty"`
	IsTor                bool     `json:"is_tor"`
	Categories           []int    `json:"categories,omitempty"`
}

func (p *AbuseIPDBProvider) Enrich(ctx context.Context, indicator model.Indicator) (*Document, error) {
	if p.apiKey == "" {
		return nil, nil
	}

	q := url.Values{}
	q.Set("ipAddress", indicator.Value)
	q.Set("maxAgeInDays", "90")
	q.Set("verbose", "true")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "https://api.abuseipdb.com/api/v2/check?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("abuseipdb request: %w", err)
	}
	req.Header.Set("Key", p.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("abuseipdb call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("abuseipdb: unexpected status %d", resp.StatusCode)
	}

	var parsed abuseIPDBResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("abuseipdb decode: %w", err)
	}

	result := AbuseIPDBResult{
		AbuseConfidenceScore: parsed.Data.AbuseConfidenceScore,
		CountryCode:          parsed.Data.CountryCode,
		Isp:                  parsed.Data.Isp,
		Domain:               parsed.Data.Domain,
		TotalReports:         parsed.Data.TotalReports,
		LastReportedAt:       parsed.Data.LastReportedAt,
		UsageType:            parsed.Data.UsageType,
		IsTor:                parsed.Data.IsTor,
	}
	for _, r := range parsed.Data.Reports {
		result.Categories = append(result.Categories, r.Categories...)
	}

	return NewDocument(result)
}

// AbuseIPDB report category codes, per the AbuseIPDB category
// reference (1-23).
const (
	CategoryDNSCompromise   = 1
	CategoryDNSPoisoning    = 2
	CategoryFraudOrders     = 3
	CategoryDDoSAttack      = 4
	CategoryFTPBruteForce   = 5
	CategoryPingOfDeath     = 6
	CategoryPhishing        = 7
	CategoryFraudVoIP       = 8
	CategoryOpenProxy       = 9
	CategoryWebSpam         = 10
	CategoryEmailSpam       = 11
	CategoryBlogSpam        = 12
	CategoryVPNIP           = 13
	CategoryPortScan        = 14
	CategoryHacking         = 15
	CategorySQLInjection    = 16
	CategorySpoofing        = 17
	CategoryBruteForce      = 18
	CategoryBadWebBot       = 19
	CategoryExploitedHost   = 20
	CategoryWebAppAttack    = 21
	CategorySSH             = 22
	CategoryIoTTargeted     = 23
)
