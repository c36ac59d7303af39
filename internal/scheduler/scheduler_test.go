package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/sentineltrace/threat-intel/internal/enrichment"
	"github.com/sentineltrace/threat-intel/internal/model"
	"github.com/sentineltrace/threat-intel/internal/telemetry"
)

type fakeExpirationStore struct{ deleted atomic.Int64 }

func (f *fakeExpirationStore) DeleteExpired(ctx context.Context) (int64, error) {
	f.deleted.Add(1)
	return 2, nil
}

type fakeRefresher struct{ calls atomic.Int32 }

func (f *fakeRefresher) RefreshFeeds(ctx context.Context) error {
	f.calls.Add(1)
	return nil
}

type fakeEnrichStore struct {
	saved atomic.Int32
	score atomic.Int32
}

func (f *fakeEnrichStore) AddEnrichment(ctx context.Context, indicatorID uuid.UUID, enrichmentType, provider string, data []byte, ttlHours *int64) (model.Enrichment, error) {
	f.saved.Add(1)
	return model.Enrichment{}, nil
}

func (f *fakeEnrichStore) UpdateThreatScore(ctx context.Context, id uuid.UUID, score int) error {
	f.score.Store(int32(score))
	return nil
}

type stubProvider struct{ err error }

func (s *stubProvider) Name() string           { return "stub" }
func (s *stubProvider) EnrichmentType() string { return "geolocation" }
func (s *stubProvider) TTLHours() int64        { return 1 }
func (s *stubProvider) Supports(model.IocType) bool { return true }
func (s *stubProvider) Enrich(ctx context.Context, ind model.Indicator) (*enrichment.Document, error) {
	if s.err != nil {
		return nil, s.err
	}
	return enrichment.NewDocument(map[string]string{"k": "v"})
}

func testLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func newTestMetrics() telemetry.Metrics {
	_, m := telemetry.InitMetrics(context.Background(), "test")
	return m
}

func TestEnrichAsync_PersistsSuccessfulResults(t *testing.T) {
	expStore := &fakeExpirationStore{}
	refresher := &fakeRefresher{}
	enrichStore := &fakeEnrichStore{}
	coord := enrichment.NewCoordinator([]enrichment.Provider{&stubProvider{}}, nil)

	s := New(expStore, refresher, coord, enrichStore, newTestMetrics(), testLogger(), Config{
		PurgeInterval: time.Hour, FeedRefreshCron: "@every 1h", EnrichWorkerCount: 2,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := s.Start(ctx, 2); err != nil {
		t.Fatalf("Start: %v", err)
	}

	s.EnrichAsync(model.Indicator{ID: uuid.New(), IocType: model.IocTypeIP, Value: "1.2.3.4"})

	deadline := time.After(2 * time.Second)
	for enrichStore.saved.Load() == 0 {
		select {
		case <-deadline:
			t.Fatalf("enrichment was not persisted in time")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestEnrichAsync_SkipsProviderFailure(t *testing.T) {
	expStore := &fakeExpirationStore{}
	refresher := &fakeRefresher{}
	enrichStore := &fakeEnrichStore{}
	coord := enrichment.NewCoordinator([]enrichment.Provider{&stubProvider{err: errors.New("boom")}}, nil)

	s := New(expStore, refresher, coord, enrichStore, newTestMetrics(), testLogger(), Config{
		PurgeInterval: time.Hour, FeedRefreshCron: "@every 1h", EnrichWorkerCount: 1,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := s.Start(ctx, 1); err != nil {
		t.Fatalf("Start: %v", err)
	}

	s.EnrichAsync(model.Indicator{ID: uuid.New(), IocType: model.IocTypeIP, Value: "1.2.3.4"})
	time.Sleep(50 * time.Millisecond)

	if enrichStore.saved.Load() != 0 {
		t.Fatalf("expected no enrichment persisted on provider failure")
	}
}

func TestEnrichAsync_DropsWhenQueueFull(t *testing.T) {
	expStore := &fakeExpirationStore{}
	refresher := &fakeRefresher{}
	enrichStore := &fakeEnrichStore{}
	coord := enrichment.NewCoordinator(nil, nil)

	s := New(expStore, refresher, coord, enrichStore, newTestMetrics(), testLogger(), Config{
		PurgeInterval: time.Hour, FeedRefreshCron: "@every 1h", EnrichWorkerCount: 1,
	})
	// Fill the queue without starting workers so it never drains.
	for i := 0; i < cap(s.work); i++ {
		s.EnrichAsync(model.Indicator{ID: uuid.New()})
	}
	s.EnrichAsync(model.Indicator{ID: uuid.New()})
	if len(s.work) != cap(s.work) {
		t.Fatalf("expected queue to stay at capacity, got %d/%d", len(s.work), cap(s.work))
	}
}
