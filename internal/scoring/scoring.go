// Package scoring combines an indicator's base confidence/severity with
// its enrichment results into a single 0-100 threat score.
//
// Grounded on services/threat-intel/internal/advanced_scoring.go's
// ThreatScorer (per-source weighting) and scoring.go's ComputeRisk
// (sigmoid-bounded combination), reworked around the Postgres-backed
// Indicator/Result types instead of the teacher's in-memory model.
package scoring

import (
	"encoding/json"
	"math"

	"github.com/sentineltrace/threat-intel/internal/enrichment"
	"github.com/sentineltrace/threat-intel/internal/model"
)

// Scorer weighs each enrichment provider's contribution to the final
// threat score differently, mirroring how analysts trust some feeds
// more than others.
type Scorer struct {
	sourceWeights map[string]float64
}

// NewScorer builds a scorer with default provider trust weights.
func NewScorer() *Scorer {
	return &Scorer{
		sourceWeights: map[string]float64{
			"virustotal": 1.0,
			"abuseipdb":  0.9,
			"geoip":      0.3,
			"dns":        0.2,
			"whois":      0.2,
		},
	}
}

// Score computes a 0-100 threat score from the indicator's own
// severity/confidence plus any enrichment results that carry a
// reputation signal. Results with errors or no document are ignored.
func (s *Scorer) Score(ind model.Indicator, results []enrichment.Result) int {
	base := float64(ind.Severity.Rank()) * 15
	base += float64(ind.Confidence) * 0.2

	var signal float64
	for _, r := range results {
		if r.Err != nil || r.Document == nil {
			continue
		}
		weight := s.sourceWeights[r.Provider]
		if weight == 0 {
			continue
		}
		switch r.Provider {
		case "abuseipdb":
			var res enrichment.AbuseIPDBResult
			if json.Unmarshal(r.Document.Bytes(), &res) == nil {
				signal += float64(res.AbuseConfidenceScore) * weight
			}
		case "virustotal":
			var res enrichment.VirusTotalResult
			if json.Unmarshal(r.Document.Bytes(), &res) == nil {
				total := res.Malicious + res.Suspicious + res.Harmless + res.Undetected
				if total > 0 {
					ratio := float64(res.Malicious+res.Suspicious) / float64(total)
					signal += ratio * 100 * weight
				}
			}
		}
	}

	raw := base + signal
	return clamp(int(math.Round(sigmoidScale(raw))), 0, 100)
}

// sigmoidScale squashes an unbounded weighted sum into the 0-100
// range without a hard clip at the input extremes.
func sigmoidScale(raw float64) float64 {
	return 100.0 / (1.0 + math.Exp(-(raw-50)/20))
}

func clamp(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
