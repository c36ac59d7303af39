package feeds

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/sentineltrace/threat-intel/internal/model"
	"github.com/sentineltrace/threat-intel/internal/resilience"
)

const (
	etCompromisedIPsURL = "https://rules.emergingthreats.net/blockrules/compromised-ips.txt"
	feodoTrackerIPsURL  = "https://feodotracker.abuse.ch/downloads/ipblocklist.txt"
)

// EmergingThreatsCollector pulls the free Emerging Threats compromised
// IP list and the Feodo Tracker banking-trojan IP blocklist.
//
// Grounded on original_source/src/collectors/emerging_threats.rs.
type EmergingThreatsCollector struct {
	client *http.Client
}

// NewEmergingThreatsCollector builds a collector with a 60s HTTP timeout.
func NewEmergingThreatsCollector() *EmergingThreatsCollector {
	return &EmergingThreatsCollector{client: &http.Client{Timeout: 60 * time.Second}}
}

func (c *EmergingThreatsCollector) Name() string      { return "emerging_threats" }
func (c *EmergingThreatsCollector) IsConfigured() bool { return true }

func (c *EmergingThreatsCollector) Fetch(ctx context.Context) ([]model.CreateIndicatorRequest, error) {
	var all []model.CreateIndicatorRequest
	var errs []string

	if ips, err := c.fetchIPList(ctx, etCompromisedIPsURL, "emerging_threats", []string{"compromised", "et_rules"}); err != nil {
		errs = append(errs, err.Error())
	} else {
		all = append(all, ips...)
	}
	if ips, err := c.fetchIPList(ctx, feodoTrackerIPsURL, "feodo_tracker", []string{"botnet", "banking_trojan"}); err != nil {
		errs = append(errs, err.Error())
	} else {
		all = append(all, ips...)
	}

	if len(all) == 0 && len(errs) > 0 {
		return nil, fmt.Errorf("emerging threats fetch failed: %s", strings.Join(errs, "; "))
	}
	return all, nil
}

// fetchIPList tries the list download up to 3 times, with backoff
// between attempts, since these plaintext feeds are served from
// best-effort mirrors.
func (c *EmergingThreatsCollector) fetchIPList(ctx context.Context, url, source string, tags []string) ([]model.CreateIndicatorRequest, error) {
	body, err := resilience.Retry(ctx, 3, time.Second, func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("build request for %s: %w", url, err)
		}
		resp, err := c.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("fetch %s: %w", url, err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("fetch %s: unexpected status %d", url, resp.StatusCode)
		}
		return io.ReadAll(resp.Body)
	})
	if err != nil {
		return nil, err
	}

	var indicators []model.CreateIndicatorRequest
	scanner := bufio.NewScanner(bytes.NewReader(body))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		ip := strings.Fields(line)[0]
		if net.ParseIP(ip) == nil {
			continue
		}
		indicators = append(indicators, model.CreateIndicatorRequest{
			Value:          ip,
			IocType:        iocTypePtr(model.IocTypeIP),
			Severity:       severityPtr(model.SeverityHigh),
			Confidence:     intPtr(80),
			Tlp:            tlpPtr(model.TlpWhite),
			Tags:           append([]string(nil), tags...),
			Source:         strPtr(source),
			ExpirationDays: intPtr(30),
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan %s: %w", url, err)
	}

	return indicators, nil
}
