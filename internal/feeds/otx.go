package feeds

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/sentineltrace/threat-intel/internal/model"
)

const otxAPIURL = "https://otx.alienvault.com/api/v1"

type otxPulseResponse struct {
	Results []otxPulse `json:"results"`
	Next    *string    `json:"next"`
}

type otxPulse struct {
	ID              string       `json:"id"`
	Name            string       `json:"name"`
	Description     *string      `json:"description"`
	Tags            []string     `json:"tags"`
	Indicators      []otxIndicator `json:"indicators"`
	Tlp             *string      `json:"tlp"`
	Adversary       *string      `json:"adversary"`
	MalwareFamilies []string     `json:"malware_families"`
}

type otxIndicator struct {
	Indicator     string  `json:"indicator"`
	IndicatorType string  `json:"type"`
	Description   *string `json:"description"`
}

// OTXCollector pulls subscribed pulses from AlienVault OTX and
// flattens each pulse's indicators into requests tagged with the
// pulse's metadata (adversary, malware families, pulse id).
//
// Grounded on original_source/src/collectors/alienvault.rs.
type OTXCollector struct {
	client *http.Client
	apiKey string
}

// NewOTXCollector builds a collector bound to an OTX API key.
func NewOTXCollector(apiKey string) *OTXCollector {
	return &OTXCollector{client: &http.Client{Timeout: 60 * time.Second}, apiKey: apiKey}
}

func (c *OTXCollector) Name() string      { return "alienvault_otx" }
func (c *OTXCollector) IsConfigured() bool { return c.apiKey != "" }

func (c *OTXCollector) Fetch(ctx context.Context) ([]model.CreateIndicatorRequest, error) {
	pulses, err := c.fetchSubscribedPulses(ctx)
	if err != nil {
		return nil, err
	}

	var indicators []model.CreateIndicatorRequest
	for _, pulse := range pulses {
		tlp := convertOTXTlp(pulse.Tlp)

		baseTags := append([]string(nil), pulse.Tags...)
		baseTags = append(baseTags, fmt.Sprintf("pulse:%s", pulse.ID))
		if pulse.Adversary != nil {
			baseTags = append(baseTags, fmt.Sprintf("adversary:%s", *pulse.Adversary))
		}
		for _, malware := range pulse.MalwareFamilies {
			baseTags = append(baseTags, fmt.Sprintf("malware:%s", malware))
		}

		for _, ind := range pulse.Indicators {
			iocType, ok := convertOTXType(ind.IndicatorType)
			if !ok {
				continue
			}
			tags := append([]string(nil), baseTags...)
			tags = append(tags, fmt.Sprintf("otx_type:%s", ind.IndicatorType))

			indicators = append(indicators, model.CreateIndicatorRequest{
				Value:          ind.Indicator,
				IocType:        iocTypePtr(iocType),
				Severity:       severityPtr(model.SeverityMedium),
				Confidence:     intPtr(70),
				Tlp:            tlpPtr(tlp),
				Tags:           tags,
				Source:         strPtr("alienvault_otx"),
				ExpirationDays: intPtr(90),
			})
		}
	}

	return indicators, nil
}

func (c *OTXCollector) fetchSubscribedPulses(ctx context.Context) ([]otxPulse, error) {
	q := url.Values{}
	q.Set("limit", "50")
	q.Set("modified_since", "7d")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, otxAPIURL+"/pulses/subscribed?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build otx request: %w", err)
	}
	req.Header.Set("X-OTX-API-KEY", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch otx pulses: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("otx api error: status %d", resp.StatusCode)
	}

	var parsed otxPulseResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("parse otx response: %w", err)
	}
	return parsed.Results, nil
}

func convertOTXType(otxType string) (model.IocType, bool) {
	switch otxType {
	case "IPv4", "IPv6":
		return model.IocTypeIP, true
	case "domain", "hostname":
		return model.IocTypeDomain, true
	case "URL", "URI":
		return model.IocTypeURL, true
	case "FileHash-MD5", "FileHash-SHA1", "FileHash-SHA256":
		return model.IocTypeHash, true
	case "email":
		return model.IocTypeEmail, true
	case "CVE":
		return model.IocTypeCVE, true
	default:
		return "", false
	}
}

func convertOTXTlp(otxTlp *string) model.Tlp {
	if otxTlp == nil {
		return model.TlpAmber
	}
	switch *otxTlp {
	case "white":
		return model.TlpWhite
	case "green":
		return model.TlpGreen
	case "amber":
		return model.TlpAmber
	case "red":
		return model.TlpRed
	default:
		return model.TlpAmber
	}
}
