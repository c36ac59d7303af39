// Package scheduler runs the background loops that keep the store
// current without blocking request handling: expiration sweeps, feed
// refreshes, and asynchronous enrichment dispatch.
//
// Grounded on services/threat-intel/main.go's purge-loop goroutine,
// generalized to a bounded worker pool for per-indicator enrichment
// dispatch and a robfig/cron schedule for feed refresh.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/sentineltrace/threat-intel/internal/enrichment"
	"github.com/sentineltrace/threat-intel/internal/model"
	"github.com/sentineltrace/threat-intel/internal/scoring"
	"github.com/sentineltrace/threat-intel/internal/telemetry"
)

// ExpirationStore is the subset of internal/store.Store the purge loop needs.
type ExpirationStore interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// FeedRefresher is implemented by internal/ingest.Orchestrator.
type FeedRefresher interface {
	RefreshFeeds(ctx context.Context) error
}

// EnrichmentStore persists the coordinator's results for an indicator
// and records the threat score derived from them.
type EnrichmentStore interface {
	AddEnrichment(ctx context.Context, indicatorID uuid.UUID, enrichmentType, provider string, data []byte, ttlHours *int64) (model.Enrichment, error)
	UpdateThreatScore(ctx context.Context, id uuid.UUID, score int) error
}

// Scheduler owns the expiration sweep ticker, the cron-driven feed
// refresh, and a bounded pool of workers that run enrichment for
// indicators handed to it via EnrichAsync.
type Scheduler struct {
	store       ExpirationStore
	refresher   FeedRefresher
	coordinator *enrichment.Coordinator
	enrichStore EnrichmentStore
	metrics     telemetry.Metrics
	log         *slog.Logger

	purgeInterval time.Duration
	feedCron      string

	scorer *scoring.Scorer
	work   chan model.Indicator
	cron   *cron.Cron
}

// Config configures the scheduler's loop intervals and worker count.
type Config struct {
	PurgeInterval     time.Duration
	FeedRefreshCron   string
	EnrichWorkerCount int
}

// New builds a scheduler. Call Start to launch its background loops
// and Stop to drain them during shutdown.
func New(store ExpirationStore, refresher FeedRefresher, coordinator *enrichment.Coordinator, enrichStore EnrichmentStore, metrics telemetry.Metrics, log *slog.Logger, cfg Config) *Scheduler {
	if cfg.EnrichWorkerCount <= 0 {
		cfg.EnrichWorkerCount = 8
	}
	return &Scheduler{
		store:         store,
		refresher:     refresher,
		coordinator:   coordinator,
		enrichStore:   enrichStore,
		metrics:       metrics,
		log:           log,
		purgeInterval: cfg.PurgeInterval,
		feedCron:      cfg.FeedRefreshCron,
		scorer:        scoring.NewScorer(),
		work:          make(chan model.Indicator, cfg.EnrichWorkerCount*4),
		cron:          cron.New(),
	}
}

// Start launches the purge ticker, the feed-refresh cron schedule, and
// the enrichment worker pool. It returns once everything is running;
// the loops themselves stop when ctx is canceled.
func (s *Scheduler) Start(ctx context.Context, workerCount int) error {
	if workerCount <= 0 {
		workerCount = cap(s.work) / 4
	}
	for i := 0; i < workerCount; i++ {
		go s.enrichWorker(ctx)
	}

	go s.purgeLoop(ctx)

	if _, err := s.cron.AddFunc(s.feedCron, func() {
		t0 := time.Now()
		if err := s.refresher.RefreshFeeds(ctx); err != nil {
			s.log.Error("feed refresh failed", "error", err)
		}
		s.metrics.FeedRefreshLag.Record(ctx, time.Since(t0).Seconds())
	}); err != nil {
		return err
	}
	s.cron.Start()

	return nil
}

// SetRefresher binds the feed refresher after construction, breaking
// the construction-order cycle between the scheduler and the
// orchestrator that implements FeedRefresher. Must be called before
// Start.
func (s *Scheduler) SetRefresher(refresher FeedRefresher) {
	s.refresher = refresher
}

// Stop halts the cron schedule. Worker goroutines and the purge loop
// exit on their own once ctx is canceled.
func (s *Scheduler) Stop() {
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
}

func (s *Scheduler) purgeLoop(ctx context.Context) {
	interval := s.purgeInterval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t0 := time.Now()
			n, err := s.store.DeleteExpired(ctx)
			if err != nil {
				s.log.Error("expiration sweep failed", "error", err)
				continue
			}
			s.metrics.PurgeDuration.Record(ctx, time.Since(t0).Seconds())
			if n > 0 {
				s.log.Info("purged expired indicators", "count", n)
			}
		}
	}
}

// EnrichAsync queues an indicator for enrichment without blocking the
// caller. If the work queue is full the indicator is dropped and
// logged, rather than blocking the HTTP request path.
func (s *Scheduler) EnrichAsync(indicator model.Indicator) {
	select {
	case s.work <- indicator:
	default:
		s.log.Warn("enrichment queue full, dropping indicator", "indicator_id", indicator.ID)
	}
}

func (s *Scheduler) enrichWorker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case indicator := <-s.work:
			s.runEnrichment(ctx, indicator)
		}
	}
}

func (s *Scheduler) runEnrichment(ctx context.Context, indicator model.Indicator) {
	results := s.coordinator.Run(ctx, indicator)
	for _, r := range results {
		s.metrics.EnrichmentCalls.Add(ctx, 1)
		if r.Err != nil {
			s.metrics.EnrichmentFailures.Add(ctx, 1)
			s.log.Warn("enrichment provider failed", "provider", r.Provider, "indicator_id", indicator.ID, "error", r.Err)
			continue
		}
		if r.Document == nil || r.Cached {
			continue
		}
		var ttl *int64
		if r.TTLHours > 0 {
			ttl = &r.TTLHours
		}
		if _, err := s.enrichStore.AddEnrichment(ctx, indicator.ID, r.EnrichmentType, r.Provider, r.Document.Bytes(), ttl); err != nil {
			s.log.Error("persist enrichment failed", "provider", r.Provider, "indicator_id", indicator.ID, "error", err)
		}
	}

	if len(results) == 0 {
		return
	}
	score := s.scorer.Score(indicator, results)
	if err := s.enrichStore.UpdateThreatScore(ctx, indicator.ID, score); err != nil {
		s.log.Error("update threat score failed", "indicator_id", indicator.ID, "error", err)
	}
}
