package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/sentineltrace/threat-intel/internal/enrichment"
	"github.com/sentineltrace/threat-intel/internal/model"
)

type fakeStore struct {
	indicators map[uuid.UUID]model.Indicator
	deleted    []uuid.UUID
}

func newFakeStore() *fakeStore {
	return &fakeStore{indicators: map[uuid.UUID]model.Indicator{}}
}

func (f *fakeStore) GetIndicator(ctx context.Context, id uuid.UUID) (model.Indicator, error) {
	ind, ok := f.indicators[id]
	if !ok {
		return model.Indicator{}, model.ErrNotFound
	}
	return ind, nil
}

func (f *fakeStore) GetIndicatorByValue(ctx context.Context, iocType *model.IocType, value string) (model.Indicator, error) {
	for _, ind := range f.indicators {
		if ind.Value == value {
			return ind, nil
		}
	}
	return model.Indicator{}, model.ErrNotFound
}

func (f *fakeStore) SearchIndicators(ctx context.Context, filter model.IndicatorFilter) (model.PaginatedResponse[model.Indicator], error) {
	var out []model.Indicator
	for _, ind := range f.indicators {
		out = append(out, ind)
	}
	return model.PaginatedResponse[model.Indicator]{Data: out, Page: filter.Page, PerPage: filter.PerPage, Total: int64(len(out))}, nil
}

func (f *fakeStore) DeleteIndicator(ctx context.Context, id uuid.UUID) error {
	if _, ok := f.indicators[id]; !ok {
		return model.ErrNotFound
	}
	delete(f.indicators, id)
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeStore) GetEnrichments(ctx context.Context, indicatorID uuid.UUID) ([]model.Enrichment, error) {
	return nil, nil
}

func (f *fakeStore) AddEnrichment(ctx context.Context, indicatorID uuid.UUID, enrichmentType, provider string, data []byte, ttlHours *int64) (model.Enrichment, error) {
	return model.Enrichment{}, nil
}

func (f *fakeStore) AddSighting(ctx context.Context, indicatorID uuid.UUID, source string, sightingContext []byte) (model.Sighting, error) {
	return model.Sighting{ID: uuid.New(), IndicatorID: indicatorID, Source: source, ObservedAt: time.Now()}, nil
}

func (f *fakeStore) CountSightings(ctx context.Context, indicatorID uuid.UUID) (int64, error) {
	return 0, nil
}

func (f *fakeStore) GetStats(ctx context.Context) (model.DashboardStats, error) {
	return model.DashboardStats{TotalIndicators: int64(len(f.indicators))}, nil
}

func (f *fakeStore) GetEnabledSources(ctx context.Context) ([]model.IocSource, error) {
	return []model.IocSource{{ID: uuid.New(), Name: "manual", Enabled: true}}, nil
}

type fakeOrchestrator struct {
	refreshCalled bool
}

func (f *fakeOrchestrator) CreateIndicator(ctx context.Context, req model.CreateIndicatorRequest) (model.Indicator, bool, error) {
	return model.Indicator{ID: uuid.New(), Value: req.Value, IocType: model.IocTypeIP}, true, nil
}

func (f *fakeOrchestrator) BulkImport(ctx context.Context, req model.BulkImportRequest) (model.BulkImportResponse, error) {
	return model.BulkImportResponse{Total: len(req.Indicators), Created: len(req.Indicators)}, nil
}

func (f *fakeOrchestrator) RefreshFeeds(ctx context.Context) error {
	f.refreshCalled = true
	return nil
}

func newTestServer(store *fakeStore, orch *fakeOrchestrator) *Server {
	gin.SetMode(gin.TestMode)
	deps := NewDeps(store, orch, enrichment.NewCoordinator(nil, nil))
	return NewServer(deps, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestHandleHealth(t *testing.T) {
	srv := newTestServer(newFakeStore(), &fakeOrchestrator{})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	srv.Router().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("want 200, got %d", w.Code)
	}
}

func TestHandleCreateIndicator(t *testing.T) {
	srv := newTestServer(newFakeStore(), &fakeOrchestrator{})
	body, _ := json.Marshal(map[string]string{"value": "8.8.8.8"})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/indicators", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	srv.Router().ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("want 201, got %d: %s", w.Code, w.Body.String())
	}
}

func TestHandleCreateIndicator_ValidationError(t *testing.T) {
	srv := newTestServer(newFakeStore(), &fakeOrchestrator{})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/indicators", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("Content-Type", "application/json")
	srv.Router().ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("want 400, got %d", w.Code)
	}
}

func TestHandleGetIndicator_NotFound(t *testing.T) {
	srv := newTestServer(newFakeStore(), &fakeOrchestrator{})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/indicators/"+uuid.New().String(), nil)
	srv.Router().ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("want 404, got %d", w.Code)
	}
}

func TestHandleDeleteIndicator(t *testing.T) {
	store := newFakeStore()
	id := uuid.New()
	store.indicators[id] = model.Indicator{ID: id, Value: "8.8.8.8"}
	srv := newTestServer(store, &fakeOrchestrator{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/api/v1/indicators/"+id.String(), nil)
	srv.Router().ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("want 204, got %d", w.Code)
	}
	if len(store.deleted) != 1 {
		t.Fatalf("expected cascade delete to be invoked")
	}
}

func TestHandleLookupByQuery_NotFound(t *testing.T) {
	srv := newTestServer(newFakeStore(), &fakeOrchestrator{})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/lookup?value=nope.example", nil)
	srv.Router().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("want 200, got %d", w.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["found"] != false {
		t.Fatalf("expected found=false, got %+v", body)
	}
}

func TestHandleRefreshFeeds(t *testing.T) {
	orch := &fakeOrchestrator{}
	srv := newTestServer(newFakeStore(), orch)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/feeds/refresh", nil)
	srv.Router().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("want 200, got %d", w.Code)
	}
	if !orch.refreshCalled {
		t.Fatalf("expected RefreshFeeds to be called")
	}
}
