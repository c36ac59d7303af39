package enrichment

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/sentineltrace/threat-intel/internal/feeds/cache"
	"github.com/sentineltrace/threat-intel/internal/model"
)

type stubProvider struct {
	name    string
	etype   string
	ttl     int64
	support func(model.IocType) bool
	enrich  func(context.Context, model.Indicator) (*Document, error)
	calls   int
}

func (s *stubProvider) Name() string           { return s.name }
func (s *stubProvider) EnrichmentType() string { return s.etype }
func (s *stubProvider) TTLHours() int64        { return s.ttl }
func (s *stubProvider) Supports(t model.IocType) bool {
	return s.support(t)
}
func (s *stubProvider) Enrich(ctx context.Context, ind model.Indicator) (*Document, error) {
	s.calls++
	return s.enrich(ctx, ind)
}

func TestCoordinatorRun_IsolatesFailures(t *testing.T) {
	ok := &stubProvider{
		name: "ok", etype: "geolocation", ttl: 1,
		support: func(model.IocType) bool { return true },
		enrich: func(context.Context, model.Indicator) (*Document, error) {
			return NewDocument(map[string]string{"k": "v"})
		},
	}
	bad := &stubProvider{
		name: "bad", etype: "reputation", ttl: 1,
		support: func(model.IocType) bool { return true },
		enrich: func(context.Context, model.Indicator) (*Document, error) {
			return nil, errBoom
		},
	}

	co := NewCoordinator([]Provider{ok, bad}, nil)
	indicator := model.Indicator{ID: uuid.New(), IocType: model.IocTypeIP, Value: "1.2.3.4"}

	results := co.Run(context.Background(), indicator)
	if len(results) != 2 {
		t.Fatalf("want 2 results, got %d", len(results))
	}

	var sawOK, sawFail bool
	for _, r := range results {
		switch r.Provider {
		case "ok":
			sawOK = r.Err == nil && r.Document != nil
		case "bad":
			sawFail = r.Err != nil
		}
	}
	if !sawOK || !sawFail {
		t.Fatalf("expected one success and one isolated failure, got %+v", results)
	}
}

func TestCoordinatorRun_SkipsUnsupported(t *testing.T) {
	onlyIP := &stubProvider{
		name: "only-ip", etype: "geolocation", ttl: 1,
		support: func(t model.IocType) bool { return t == model.IocTypeIP },
		enrich: func(context.Context, model.Indicator) (*Document, error) {
			return NewDocument("x")
		},
	}
	co := NewCoordinator([]Provider{onlyIP}, nil)
	indicator := model.Indicator{ID: uuid.New(), IocType: model.IocTypeDomain, Value: "example.com"}

	results := co.Run(context.Background(), indicator)
	if len(results) != 0 {
		t.Fatalf("expected no applicable providers, got %d", len(results))
	}
}

func TestCoordinatorRun_UsesCache(t *testing.T) {
	dir := t.TempDir()
	c, err := cache.Open(dir + "/enrich.db")
	if err != nil {
		t.Fatalf("open cache: %v", err)
	}
	defer c.Close()

	p := &stubProvider{
		name: "geoip", etype: "geolocation", ttl: 1,
		support: func(model.IocType) bool { return true },
		enrich: func(context.Context, model.Indicator) (*Document, error) {
			return NewDocument(map[string]string{"country": "US"})
		},
	}
	co := NewCoordinator([]Provider{p}, c)
	indicator := model.Indicator{ID: uuid.New(), IocType: model.IocTypeIP, Value: "1.2.3.4"}

	first := co.Run(context.Background(), indicator)
	second := co.Run(context.Background(), indicator)

	if first[0].Cached {
		t.Fatalf("first call should not be cached")
	}
	if !second[0].Cached {
		t.Fatalf("second call should be served from cache")
	}
	if p.calls != 1 {
		t.Fatalf("provider should be called once, got %d", p.calls)
	}
}

var errBoom = errBoomT{}

type errBoomT struct{}

func (errBoomT) Error() string { return "boom" }
