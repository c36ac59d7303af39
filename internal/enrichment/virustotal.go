package enrichment

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sentineltrace/threat-intel/internal/model"
)

// VirusTotalProvider queries the VirusTotal v3 API for file, URL,
// domain, and IP reports.
//
// Grounded on original_source/src/enrichment/virustotal.rs, including
// its per-type endpoint selection and base64url-no-pad URL identifier
// encoding.
type VirusTotalProvider struct {
	apiKey string
	client *http.Client
	base   string
}

// NewVirusTotalProvider builds a provider bound to an API key. If
// apiKey is empty, Enrich always returns nil (not configured).
func NewVirusTotalProvider(apiKey string) *VirusTotalProvider {
	return &VirusTotalProvider{
		apiKey: apiKey,
		client: &http.Client{Timeout: 10 * time.Second},
		base:   "https://www.virustotal.com/api/v3",
	}
}

func (p *VirusTotalProvider) Name() string           { return "virustotal" }
func (p *VirusTotalProvider) EnrichmentType() string { return "reputation" }
func (p *VirusTotalProvider) TTLHours() int64        { return 12 }

func (p *VirusTotalProvider) Supports(t model.IocType) bool {
	switch t {
	case model.IocTypeIP, model.IocTypeDomain, model.IocTypeHash, model.IocTypeURL:
		return true
	default:
		return false
	}
}

type vtResponse struct {
	Data struct {
		Attributes struct {
			LastAnalysisStats struct {
				Malicious  int `json:"malicious"`
				Suspicious int `json:"suspicious"`
				Harmless   int `json:"harmless"`
				Undetected int `json:"undetected"`
			} `json:"last_analysis_stats"`
			Reputation int      `json:"reputation"`
			TotalVotes struct {
				Harmless  int `json:"harmless"`
				Malicious int `json:"malicious"`
			} `json:"total_votes"`
			Categories map[string]string `json:"categories"`
		} `json:"attributes"`
	} `json:"data"`
}

// VirusTotalResult is the enrichment payload persisted for this provider.
type VirusTotalResult struct {
	Malicious  int               `json:"malicious"`
	Suspicious int               `json:"suspicious"`
	Harmless   int               `json:"harmless"`
	Undetected int               `json:"undetected"`
	Reputation int               `json:"reputation"`
	VotesHarmless  int           `json:"votes_harmless"`
	VotesMalicious int           `json:"votes_malicious"`
	Categories map[string]string `json:"categories,omitempty"`
}

func (p *VirusTotalProvider) Enrich(ctx context.Context, indicator model.Indicator) (*Document, error) {
	if p.apiKey == "" {
		return nil, nil
	}

	path, err := p.endpoint(indicator)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.base+path, nil)
	if err != nil {
		return nil, fmt.Errorf("virustotal request: %w", err)
	}
	req.Header.Set("x-apikey", p.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("virustotal call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("virustotal: unexpected status %d", resp.StatusCode)
	}

	var parsed vtResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("virustotal decode: %w", err)
	}

	attrs := parsed.Data.Attributes
	result := VirusTotalResult{
		Malicious:      attrs.LastAnalysisStats.Malicious,
		Suspicious:     attrs.LastAnalysisStats.Suspicious,
		Harmless:       attrs.LastAnalysisStats.Harmless,
		Undetected:     attrs.LastAnalysisStats.Undetected,
		Reputation:     attrs.Reputation,
		VotesHarmless:  attrs.TotalVotes.Harmless,
		VotesMalicious: attrs.TotalVotes.Malicious,
		Categories:     attrs.Categories,
	}

	return NewDocument(result)
}

// endpoint picks the VirusTotal v3 resource path for an indicator's
// type. URL identifiers are the base64url-no-padding encoding of the
// URL itself, per the VirusTotal API contract.
func (p *VirusTotalProvider) endpoint(indicator model.Indicator) (string, error) {
	switch indicator.IocType {
	case model.IocTypeIP:
		return "/ip_addresses/" + indicator.Value, nil
	case model.IocTypeDomain:
		return "/domains/" + indicator.Value, nil
	case model.IocTypeHash:
		return "/files/" + indicator.Value, nil
	case model.IocTypeURL:
		id := base64.RawURLEncoding.EncodeToString([]byte(indicator.Value))
		return "/urls/" + id, nil
	default:
		return "", fmt.Errorf("virustotal: unsupported ioc type %q", indicator.IocType)
	}
}
