package feeds

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/sentineltrace/threat-intel/internal/model"
)

type honeytrapEvent struct {
	SessionID   string                `json:"session_id"`
	Protocol    string                `json:"protocol"`
	Category    string                `json:"category"`
	Severity    string                `json:"severity"`
	Source      honeytrapSource       `json:"source"`
	Credentials *honeytrapCredentials `json:"credentials"`
	Command     *honeytrapCommand     `json:"command"`
}

type honeytrapSource struct {
	IP   string `json:"ip"`
	Port int    `json:"port"`
}

type honeytrapCredentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type honeytrapCommand struct {
	Command string `json:"command"`
}

// HoneytrapCollector turns events captured by the honeypot network
// into attacker-IP indicators, either from a remote API or a local
// JSONL events file.
//
// Grounded on original_source/src/collectors/honeytrap.rs.
type HoneytrapCollector struct {
	client     *http.Client
	apiURL     string
	apiKey     string
	eventsPath string
}

// NewHoneytrapCollector builds a collector. apiURL/apiKey may be
// empty, in which case Fetch falls back to reading eventsPath.
func NewHoneytrapCollector(apiURL, apiKey, eventsPath string) *HoneytrapCollector {
	if eventsPath == "" {
		eventsPath = "./events.jsonl"
	}
	return &HoneytrapCollector{
		client:     &http.Client{Timeout: 30 * time.Second},
		apiURL:     apiURL,
		apiKey:     apiKey,
		eventsPath: eventsPath,
	}
}

func (c *HoneytrapCollector) Name() string      { return "honeytrap" }
func (c *HoneytrapCollector) IsConfigured() bool { return true }

func (c *HoneytrapCollector) Fetch(ctx context.Context) ([]model.CreateIndicatorRequest, error) {
	if c.apiURL != "" {
		return c.fetchFromAPI(ctx)
	}
	return c.parseEventsFile(c.eventsPath)
}

// fetchFromAPI reads events from the Honeytrap API, deduplicating by
// source IP. Indicators from the API carry only the protocol and
// category tags; the credential and command tags are derived for the
// events file only (see parseEventsFile).
func (c *HoneytrapCollector) fetchFromAPI(ctx context.Context) ([]model.CreateIndicatorRequest, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL+"/api/events", nil)
	if err != nil {
		return nil, fmt.Errorf("build honeytrap request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch honeytrap events: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("honeytrap api error: status %d", resp.StatusCode)
	}

	var events []honeytrapEvent
	if err := json.NewDecoder(resp.Body).Decode(&events); err != nil {
		return nil, fmt.Errorf("parse honeytrap response: %w", err)
	}

	var indicators []model.CreateIndicatorRequest
	seenIPs := make(map[string]bool)
	for _, ev := range events {
		if seenIPs[ev.Source.IP] {
			continue
		}
		seenIPs[ev.Source.IP] = true
		indicators = append(indicators, model.CreateIndicatorRequest{
			Value:      ev.Source.IP,
			IocType:    iocTypePtr(model.IocTypeIP),
			Severity:   severityPtr(severityFromString(ev.Severity)),
			Confidence: intPtr(90),
			Tlp:        tlpPtr(model.TlpGreen),
			Tags: []string{
				fmt.Sprintf("honeypot:%s", ev.Protocol),
				fmt.Sprintf("category:%s", ev.Category),
			},
			Source:         strPtr("honeytrap"),
			ExpirationDays: intPtr(30),
		})
	}
	return indicators, nil
}

// parseEventsFile reads a local JSONL events dump, deduplicating by
// source IP and deriving extra tags from observed credentials and
// executed commands.
func (c *HoneytrapCollector) parseEventsFile(path string) ([]model.CreateIndicatorRequest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("read events file: %w", err)
	}
	defer f.Close()

	var indicators []model.CreateIndicatorRequest
	seenIPs := make(map[string]bool)

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var ev honeytrapEvent
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			continue
		}
		if seenIPs[ev.Source.IP] {
			continue
		}
		seenIPs[ev.Source.IP] = true

		tags := []string{
			fmt.Sprintf("honeypot:%s", ev.Protocol),
			fmt.Sprintf("category:%s", ev.Category),
		}

		if ev.Credentials != nil {
			tags = append(tags, "has_credentials")
			if ev.Credentials.Username == "root" || ev.Credentials.Username == "admin" {
				tags = append(tags, "targets_admin")
			}
		}

		if ev.Command != nil {
			tags = append(tags, "executed_commands")
			cmd := strings.ToLower(ev.Command.Command)
			if strings.Contains(cmd, "wget") || strings.Contains(cmd, "curl") {
				tags = append(tags, "download_attempt")
			}
			if strings.Contains(cmd, "chmod") && strings.Contains(cmd, "+x") {
				tags = append(tags, "made_executable")
			}
			if strings.Contains(cmd, "/etc/passwd") || strings.Contains(cmd, "/etc/shadow") {
				tags = append(tags, "credential_access")
			}
		}

		indicators = append(indicators, model.CreateIndicatorRequest{
			Value:          ev.Source.IP,
			IocType:        iocTypePtr(model.IocTypeIP),
			Severity:       severityPtr(severityFromString(ev.Severity)),
			Confidence:     intPtr(90),
			Tlp:            tlpPtr(model.TlpGreen),
			Tags:           tags,
			Source:         strPtr("honeytrap"),
			ExpirationDays: intPtr(30),
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan events file: %w", err)
	}

	return indicators, nil
}

func severityFromString(s string) model.Severity {
	switch s {
	case "critical":
		return model.SeverityCritical
	case "high":
		return model.SeverityHigh
	case "medium":
		return model.SeverityMedium
	case "low":
		return model.SeverityLow
	default:
		return model.SeverityMedium
	}
}
