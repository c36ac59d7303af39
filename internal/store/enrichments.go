package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sentineltrace/threat-intel/internal/model"
)

// AddEnrichment upserts a provider's enrichment payload for an indicator,
// keyed on (indicator_id, enrichment_type, provider).
func (s *Store) AddEnrichment(ctx context.Context, indicatorID uuid.UUID, enrichmentType, provider string, data []byte, ttlHours *int64) (model.Enrichment, error) {
	var expiresAt *time.Time
	if ttlHours != nil {
		t := time.Now().Add(time.Duration(*ttlHours) * time.Hour)
		expiresAt = &t
	}

	const q = `
		INSERT INTO enrichments (id, indicator_id, enrichment_type, provider, data, fetched_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), $6)
		ON CONFLICT (indicator_id, enrichment_type, provider) DO UPDATE SET
			data = EXCLUDED.data,
			fetched_at = EXCLUDED.fetched_at,
			expires_at = EXCLUDED.expires_at
		RETURNING id, indicator_id, enrichment_type, provider, data, fetched_at, expires_at
	`
	row := s.db.QueryRowContext(ctx, q, uuid.New(), indicatorID, enrichmentType, provider, data, expiresAt)
	var e model.Enrichment
	if err := row.Scan(&e.ID, &e.IndicatorID, &e.EnrichmentType, &e.Provider, &e.Data, &e.FetchedAt, &e.ExpiresAt); err != nil {
		return model.Enrichment{}, fmt.Errorf("add enrichment: %w", err)
	}
	return e, nil
}

// GetEnrichments returns all enrichments for an indicator, most recent first.
func (s *Store) GetEnrichments(ctx context.Context, indicatorID uuid.UUID) ([]model.Enrichment, error) {
	const q = `SELECT id, indicator_id, enrichment_type, provider, data, fetched_at, expires_at
		FROM enrichments WHERE indicator_id = $1 ORDER BY fetched_at DESC`
	rows, err := s.db.QueryContext(ctx, q, indicatorID)
	if err != nil {
		return nil, fmt.Errorf("get enrichments: %w", err)
	}
	defer rows.Close()

	var out []model.Enrichment
	for rows.Next() {
		var e model.Enrichment
		if err := rows.Scan(&e.ID, &e.IndicatorID, &e.EnrichmentType, &e.Provider, &e.Data, &e.FetchedAt, &e.ExpiresAt); err != nil {
			return nil, fmt.Errorf("scan enrichment: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return out, nil
}
