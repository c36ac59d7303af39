package scoring

import (
	"testing"

	"github.com/sentineltrace/threat-intel/internal/enrichment"
	"github.com/sentineltrace/threat-intel/internal/model"
)

func resultFor(t *testing.T, provider, etype string, v any) enrichment.Result {
	t.Helper()
	doc, err := enrichment.NewDocument(v)
	if err != nil {
		t.Fatalf("NewDocument: %v", err)
	}
	return enrichment.Result{Provider: provider, EnrichmentType: etype, Document: doc}
}

func TestScore_HigherAbuseConfidenceRaisesScore(t *testing.T) {
	s := NewScorer()
	ind := model.Indicator{Severity: model.SeverityMedium, Confidence: 50}

	low := s.Score(ind, []enrichment.Result{
		resultFor(t, "abuseipdb", "reputation", enrichment.AbuseIPDBResult{AbuseConfidenceScore: 5}),
	})
	high := s.Score(ind, []enrichment.Result{
		resultFor(t, "abuseipdb", "reputation", enrichment.AbuseIPDBResult{AbuseConfidenceScore: 95}),
	})

	if high <= low {
		t.Fatalf("expected higher abuse confidence to raise score: low=%d high=%d", low, high)
	}
	if low < 0 || low > 100 || high < 0 || high > 100 {
		t.Fatalf("score out of range: low=%d high=%d", low, high)
	}
}

func TestScore_IgnoresFailedResults(t *testing.T) {
	s := NewScorer()
	ind := model.Indicator{Severity: model.SeverityLow, Confidence: 10}

	withErr := s.Score(ind, []enrichment.Result{
		{Provider: "abuseipdb", Err: errBoom},
	})
	empty := s.Score(ind, nil)

	if withErr != empty {
		t.Fatalf("expected errored result to contribute nothing: withErr=%d empty=%d", withErr, empty)
	}
}

func TestScore_VirusTotalMaliciousRatioContributes(t *testing.T) {
	s := NewScorer()
	ind := model.Indicator{Severity: model.SeverityUnknown, Confidence: 0}

	clean := s.Score(ind, []enrichment.Result{
		resultFor(t, "virustotal", "reputation", enrichment.VirusTotalResult{Harmless: 70, Undetected: 10}),
	})
	malicious := s.Score(ind, []enrichment.Result{
		resultFor(t, "virustotal", "reputation", enrichment.VirusTotalResult{Malicious: 60, Harmless: 5}),
	})

	if malicious <= clean {
		t.Fatalf("expected malicious VT verdicts to raise score: clean=%d malicious=%d", clean, malicious)
	}
}

type boomErr struct{}

func (boomErr) Error() string { return "boom" }

var errBoom = boomErr{}
