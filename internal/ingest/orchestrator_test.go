package ingest

import (
	"context"
	"errors"
	"log/slog"
	"io"
	"testing"

	"github.com/google/uuid"

	"github.com/sentineltrace/threat-intel/internal/feeds"
	"github.com/sentineltrace/threat-intel/internal/model"
)

type fakeStore struct {
	upserted []model.Indicator
	failOn   string
	sources  []model.IocSource
	fetched  []uuid.UUID
}

func (f *fakeStore) UpsertIndicator(ctx context.Context, ind model.Indicator) (model.Indicator, bool, error) {
	if ind.Value == f.failOn {
		return model.Indicator{}, false, errors.New("boom")
	}
	ind.ID = uuid.New()
	f.upserted = append(f.upserted, ind)
	return ind, true, nil
}

func (f *fakeStore) GetEnabledSources(ctx context.Context) ([]model.IocSource, error) {
	return f.sources, nil
}

func (f *fakeStore) UpsertSource(ctx context.Context, src model.IocSource) (model.IocSource, error) {
	return src, nil
}

func (f *fakeStore) UpdateSourceFetchTime(ctx context.Context, sourceID uuid.UUID) error {
	f.fetched = append(f.fetched, sourceID)
	return nil
}

type fakeDispatcher struct{ calls int }

func (f *fakeDispatcher) EnrichAsync(model.Indicator) { f.calls++ }

type fakeCollector struct {
	name      string
	configured bool
	items     []model.CreateIndicatorRequest
	err       error
}

func (c *fakeCollector) Name() string       { return c.name }
func (c *fakeCollector) IsConfigured() bool { return c.configured }
func (c *fakeCollector) Fetch(ctx context.Context) ([]model.CreateIndicatorRequest, error) {
	return c.items, c.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCreateIndicator_ClassifiesAndDispatchesEnrichment(t *testing.T) {
	store := &fakeStore{}
	dispatcher := &fakeDispatcher{}
	o := New(store, dispatcher, nil, testLogger())

	_, inserted, err := o.CreateIndicator(context.Background(), model.CreateIndicatorRequest{Value: "8.8.8.8"})
	if err != nil {
		t.Fatalf("CreateIndicator: %v", err)
	}
	if !inserted {
		t.Fatalf("expected inserted=true")
	}
	if len(store.upserted) != 1 || store.upserted[0].IocType != model.IocTypeIP {
		t.Fatalf("expected classified ip indicator, got %+v", store.upserted)
	}
	if dispatcher.calls != 1 {
		t.Fatalf("expected one enrichment dispatch, got %d", dispatcher.calls)
	}
}

func TestCreateIndicator_UnclassifiableValue(t *testing.T) {
	store := &fakeStore{}
	o := New(store, &fakeDispatcher{}, nil, testLogger())

	_, _, err := o.CreateIndicator(context.Background(), model.CreateIndicatorRequest{Value: "!!!not-a-thing!!!"})
	if err == nil {
		t.Fatalf("expected classification error")
	}
}

func TestBulkImport_IsolatesFailuresAndAppliesDefaults(t *testing.T) {
	store := &fakeStore{failOn: "bad-value"}
	o := New(store, &fakeDispatcher{}, nil, testLogger())

	req := model.BulkImportRequest{
		Source: "manual",
		Tags:   []string{"batch1"},
		Indicators: []model.CreateIndicatorRequest{
			{Value: "8.8.8.8"},
			{Value: "bad-value", IocType: func() *model.IocType { t := model.IocTypeIP; return &t }()},
		},
	}

	resp, err := o.BulkImport(context.Background(), req)
	if err != nil {
		t.Fatalf("BulkImport: %v", err)
	}
	if resp.Total != 2 || resp.Created != 1 || resp.Failed != 1 {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if len(resp.Errors) != 1 {
		t.Fatalf("expected one collected error, got %+v", resp.Errors)
	}
	if store.upserted[0].Tags[0] != "batch1" {
		t.Fatalf("expected batch tag applied, got %+v", store.upserted[0].Tags)
	}
}

func TestRefreshFeeds_SkipsUnconfiguredAndIsolatesErrors(t *testing.T) {
	store := &fakeStore{}
	good := &fakeCollector{name: "good", configured: true, items: []model.CreateIndicatorRequest{{Value: "1.1.1.1"}}}
	unconfigured := &fakeCollector{name: "off", configured: false}
	broken := &fakeCollector{name: "broken", configured: true, err: errors.New("upstream down")}

	o := New(store, &fakeDispatcher{}, []feeds.Collector{good, unconfigured, broken}, testLogger())

	if err := o.RefreshFeeds(context.Background()); err != nil {
		t.Fatalf("RefreshFeeds: %v", err)
	}
	if len(store.upserted) != 1 {
		t.Fatalf("expected one indicator from the configured collector, got %d", len(store.upserted))
	}
}
