// Package ingest turns inbound indicator requests and feed fetches
// into store writes, and dispatches asynchronous enrichment for newly
// seen or refreshed indicators.
//
// Grounded on original_source/src/api/mod.rs's create_indicator/
// bulk_import/refresh_feeds handlers, reworked around the Go store and
// scheduler rather than axum handler bodies directly.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/sentineltrace/threat-intel/internal/classify"
	"github.com/sentineltrace/threat-intel/internal/feeds"
	"github.com/sentineltrace/threat-intel/internal/model"
)

// Store is the subset of internal/store.Store the orchestrator needs.
type Store interface {
	UpsertIndicator(ctx context.Context, ind model.Indicator) (model.Indicator, bool, error)
	GetEnabledSources(ctx context.Context) ([]model.IocSource, error)
	UpsertSource(ctx context.Context, src model.IocSource) (model.IocSource, error)
	UpdateSourceFetchTime(ctx context.Context, sourceID uuid.UUID) error
}

// EnrichDispatcher decouples enrichment from the request/ingest
// lifetime. Implemented by internal/scheduler.Scheduler.
type EnrichDispatcher interface {
	EnrichAsync(indicator model.Indicator)
}

// Orchestrator is the single entry point for turning indicator
// requests (API or feed-sourced) into store writes.
type Orchestrator struct {
	store      Store
	enrich     EnrichDispatcher
	collectors []feeds.Collector
	log        *slog.Logger
}

// New builds an orchestrator over the given store, enrichment
// dispatcher, and feed collectors.
func New(store Store, enrich EnrichDispatcher, collectors []feeds.Collector, log *slog.Logger) *Orchestrator {
	return &Orchestrator{store: store, enrich: enrich, collectors: collectors, log: log}
}

// CreateIndicator classifies/normalizes req, upserts it, and fires
// asynchronous enrichment for the result.
func (o *Orchestrator) CreateIndicator(ctx context.Context, req model.CreateIndicatorRequest) (model.Indicator, bool, error) {
	ind, err := requestToIndicator(req)
	if err != nil {
		return model.Indicator{}, false, err
	}

	result, inserted, err := o.store.UpsertIndicator(ctx, ind)
	if err != nil {
		return model.Indicator{}, false, fmt.Errorf("upsert indicator: %w", err)
	}

	if o.enrich != nil {
		o.enrich.EnrichAsync(result)
	}

	return result, inserted, nil
}

// BulkImport applies req's shared source/tlp/tags defaults to every
// item, then upserts each independently. A single item's failure
// never aborts the batch; it is recorded as "<value>: <error>" and
// counted against Failed.
func (o *Orchestrator) BulkImport(ctx context.Context, req model.BulkImportRequest) (model.BulkImportResponse, error) {
	resp := model.BulkImportResponse{Total: len(req.Indicators)}

	for _, item := range req.Indicators {
		if item.Source == nil {
			item.Source = &req.Source
		}
		if item.Tlp == nil {
			item.Tlp = req.Tlp
		}
		if len(req.Tags) > 0 {
			item.Tags = append(append([]string(nil), req.Tags...), item.Tags...)
		}

		ind, err := requestToIndicator(item)
		if err != nil {
			resp.Failed++
			resp.Errors = append(resp.Errors, fmt.Sprintf("%s: %v", item.Value, err))
			continue
		}

		result, inserted, err := o.store.UpsertIndicator(ctx, ind)
		if err != nil {
			resp.Failed++
			resp.Errors = append(resp.Errors, fmt.Sprintf("%s: %v", item.Value, err))
			continue
		}

		if inserted {
			resp.Created++
		} else {
			resp.Updated++
		}
		if o.enrich != nil {
			o.enrich.EnrichAsync(result)
		}
	}

	return resp, nil
}

// RefreshFeeds fetches every configured collector and upserts whatever
// it returns. A collector whose name matches an enabled source has that
// source's id added to its indicators and the source's last_fetch
// updated; a collector without a matching enabled source is still
// fetched, and its indicators carry no source id. A collector failure is logged and
// isolated from the others, matching how the enrichment coordinator
// isolates provider failures.
func (o *Orchestrator) RefreshFeeds(ctx context.Context) error {
	sources, err := o.store.GetEnabledSources(ctx)
	if err != nil {
		return fmt.Errorf("list enabled sources: %w", err)
	}
	sourceByName := make(map[string]model.IocSource, len(sources))
	for _, src := range sources {
		sourceByName[src.Name] = src
	}

	for _, collector := range o.collectors {
		if !collector.IsConfigured() {
			continue
		}

		items, err := collector.Fetch(ctx)
		if err != nil {
			o.log.Error("feed collector failed", "collector", collector.Name(), "error", err)
			continue
		}

		src, known := sourceByName[collector.Name()]
		for _, item := range items {
			ind, err := requestToIndicator(item)
			if err != nil {
				o.log.Warn("skipping unclassifiable feed item", "collector", collector.Name(), "value", item.Value, "error", err)
				continue
			}
			if known {
				ind.SourceIDs = append(ind.SourceIDs, src.ID)
			}

			result, _, err := o.store.UpsertIndicator(ctx, ind)
			if err != nil {
				o.log.Error("upsert from feed failed", "collector", collector.Name(), "value", item.Value, "error", err)
				continue
			}
			if o.enrich != nil {
				o.enrich.EnrichAsync(result)
			}
		}

		if known {
			if err := o.store.UpdateSourceFetchTime(ctx, src.ID); err != nil {
				o.log.Error("update source fetch time failed", "collector", collector.Name(), "error", err)
			}
		}
	}

	return nil
}

// requestToIndicator classifies/normalizes a request into a storable
// Indicator, applying the same defaults the original service applies
// at creation time.
func requestToIndicator(req model.CreateIndicatorRequest) (model.Indicator, error) {
	iocType := req.IocType
	if iocType == nil {
		detected, ok := classify.Detect(req.Value)
		if !ok {
			return model.Indicator{}, fmt.Errorf("could not classify value %q", req.Value)
		}
		iocType = &detected
	}

	severity := model.SeverityUnknown
	if req.Severity != nil {
		severity = *req.Severity
	}
	confidence := 50
	if req.Confidence != nil {
		confidence = *req.Confidence
	}
	tlp := model.TlpAmber
	if req.Tlp != nil {
		tlp = *req.Tlp
	}

	now := time.Now()
	var expiration *time.Time
	if req.ExpirationDays != nil {
		exp := now.AddDate(0, 0, *req.ExpirationDays)
		expiration = &exp
	}

	return model.Indicator{
		IocType:    *iocType,
		Value:      classify.Normalize(req.Value, *iocType),
		Severity:   severity,
		Confidence: confidence,
		Tlp:        tlp,
		FirstSeen:  now,
		LastSeen:   now,
		Expiration: expiration,
		Tags:       req.Tags,
	}, nil
}
