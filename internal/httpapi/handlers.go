package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/sentineltrace/threat-intel/internal/enrichment"
	"github.com/sentineltrace/threat-intel/internal/model"
)

const serviceVersion = "1.0.0"

// Store is the subset of internal/store.Store the HTTP layer needs.
type Store interface {
	GetIndicator(ctx context.Context, id uuid.UUID) (model.Indicator, error)
	GetIndicatorByValue(ctx context.Context, iocType *model.IocType, value string) (model.Indicator, error)
	SearchIndicators(ctx context.Context, filter model.IndicatorFilter) (model.PaginatedResponse[model.Indicator], error)
	DeleteIndicator(ctx context.Context, id uuid.UUID) error
	GetEnrichments(ctx context.Context, indicatorID uuid.UUID) ([]model.Enrichment, error)
	AddEnrichment(ctx context.Context, indicatorID uuid.UUID, enrichmentType, provider string, data []byte, ttlHours *int64) (model.Enrichment, error)
	AddSighting(ctx context.Context, indicatorID uuid.UUID, source string, sightingContext []byte) (model.Sighting, error)
	CountSightings(ctx context.Context, indicatorID uuid.UUID) (int64, error)
	GetStats(ctx context.Context) (model.DashboardStats, error)
	GetEnabledSources(ctx context.Context) ([]model.IocSource, error)
}

// Orchestrator is the subset of internal/ingest.Orchestrator the HTTP layer needs.
type Orchestrator interface {
	CreateIndicator(ctx context.Context, req model.CreateIndicatorRequest) (model.Indicator, bool, error)
	BulkImport(ctx context.Context, req model.BulkImportRequest) (model.BulkImportResponse, error)
	RefreshFeeds(ctx context.Context) error
}

type Deps struct {
	store        Store
	orchestrator Orchestrator
	coordinator  *enrichment.Coordinator
}

// NewDeps bundles the dependencies handlers need into an opaque value
// for NewServer. The store and orchestrator are taken through the Store
// and Orchestrator interfaces declared in this package.
func NewDeps(store Store, orchestrator Orchestrator, coordinator *enrichment.Coordinator) *Deps {
	return &Deps{store: store, orchestrator: orchestrator, coordinator: coordinator}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "threat-intel", "version": serviceVersion})
}

func (s *Server) handleListIndicators(c *gin.Context) {
	filter, err := parseIndicatorFilter(c)
	if err != nil {
		respondError(c, err)
		return
	}

	result, err := s.deps.store.SearchIndicators(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleCreateIndicator(c *gin.Context) {
	var req model.CreateIndicatorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	indicator, _, err := s.deps.orchestrator.CreateIndicator(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, indicator)
}

func (s *Server) handleBulkImport(c *gin.Context) {
	var req model.BulkImportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := s.deps.orchestrator.BulkImport(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleGetIndicator(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}

	indicator, err := s.deps.store.GetIndicator(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	enrichments, err := s.deps.store.GetEnrichments(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	count, err := s.deps.store.CountSightings(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.IndicatorResponse{
		Indicator:         indicator,
		Enrichments:       enrichments,
		SightingsCount:    count,
		RelatedIndicators: []model.Indicator{},
	})
}

func (s *Server) handleDeleteIndicator(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}
	if err := s.deps.store.DeleteIndicator(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleEnrichIndicator(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}

	indicator, err := s.deps.store.GetIndicator(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	results := s.deps.coordinator.Run(c.Request.Context(), indicator)
	added := 0
	for _, r := range results {
		if r.Err != nil || r.Document == nil || r.Cached {
			continue
		}
		var ttl *int64
		if r.TTLHours > 0 {
			ttl = &r.TTLHours
		}
		if _, err := s.deps.store.AddEnrichment(c.Request.Context(), id, r.EnrichmentType, r.Provider, r.Document.Bytes(), ttl); err == nil {
			added++
		}
	}

	c.JSON(http.StatusOK, gin.H{"message": "enrichment complete", "enrichments_added": added})
}

type addSightingRequest struct {
	Source  *string         `json:"source,omitempty"`
	Context map[string]any  `json:"context,omitempty"`
}

func (s *Server) handleAddSighting(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}

	var req addSightingRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	source := "unknown"
	if req.Source != nil {
		source = *req.Source
	}
	var ctxBytes []byte
	if req.Context != nil {
		if b, err := jsonMarshal(req.Context); err == nil {
			ctxBytes = b
		}
	}

	sighting, err := s.deps.store.AddSighting(c.Request.Context(), id, source, ctxBytes)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": sighting.ID, "observed_at": sighting.ObservedAt.Format(time.RFC3339)})
}

func (s *Server) handleLookupByQuery(c *gin.Context) {
	value := c.Query("value")
	if value == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "value query parameter is required"})
		return
	}
	s.lookup(c, value)
}

func (s *Server) handleLookupByPath(c *gin.Context) {
	s.lookup(c, c.Param("value"))
}

func (s *Server) lookup(c *gin.Context, value string) {
	indicator, err := s.deps.store.GetIndicatorByValue(c.Request.Context(), nil, value)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			c.JSON(http.StatusOK, gin.H{"found": false})
			return
		}
		respondError(c, err)
		return
	}
	enrichments, err := s.deps.store.GetEnrichments(c.Request.Context(), indicator.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"found": true, "indicator": indicator, "enrichments": enrichments})
}

func (s *Server) handleStats(c *gin.Context) {
	stats, err := s.deps.store.GetStats(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (s *Server) handleListSources(c *gin.Context) {
	sources, err := s.deps.store.GetEnabledSources(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sources": sources})
}

func (s *Server) handleRefreshFeeds(c *gin.Context) {
	if err := s.deps.orchestrator.RefreshFeeds(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "feed refresh triggered"})
}

func parseIDParam(c *gin.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.UUID{}, fmtValidationError("invalid id %q", c.Param(name))
	}
	return id, nil
}

func parseIndicatorFilter(c *gin.Context) (model.IndicatorFilter, error) {
	var filter model.IndicatorFilter

	if v := c.Query("ioc_type"); v != "" {
		t := model.IocType(v)
		filter.IocType = &t
	}
	if v := c.Query("severity"); v != "" {
		sv := model.Severity(v)
		filter.Severity = &sv
	}
	if v := c.Query("min_confidence"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return filter, fmtValidationError("invalid min_confidence %q", v)
		}
		filter.MinConfidence = &n
	}
	if v := c.Query("min_threat_score"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return filter, fmtValidationError("invalid min_threat_score %q", v)
		}
		filter.MinThreatScore = &n
	}
	if v := c.Query("search"); v != "" {
		filter.Search = &v
	}
	if v := c.Query("source_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return filter, fmtValidationError("invalid source_id %q", v)
		}
		filter.SourceID = &id
	}
	if v := c.Query("first_seen_after"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filter, fmtValidationError("invalid first_seen_after %q", v)
		}
		filter.FirstSeenAfter = &t
	}
	if vs := c.QueryArray("tags"); len(vs) > 0 {
		filter.Tags = vs
	}

	filter.Page = 1
	if v := c.Query("page"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 1 {
			return filter, fmtValidationError("invalid page %q", v)
		}
		filter.Page = n
	}
	filter.PerPage = 50
	if v := c.Query("per_page"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 1 {
			return filter, fmtValidationError("invalid per_page %q", v)
		}
		filter.PerPage = n
	}

	return filter, nil
}

func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, model.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, model.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, model.ErrUpstream):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
