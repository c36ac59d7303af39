package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/sentineltrace/threat-intel/internal/model"
)

// UpsertSource creates or updates a named source.
func (s *Store) UpsertSource(ctx context.Context, src model.IocSource) (model.IocSource, error) {
	const q = `
		INSERT INTO ioc_sources (id, name, source_type, url, api_key_required, reliability_score, enabled, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		ON CONFLICT (name) DO UPDATE SET
			url = EXCLUDED.url,
			reliability_score = EXCLUDED.reliability_score,
			enabled = EXCLUDED.enabled,
			updated_at = NOW()
		RETURNING id, name, source_type, url, api_key_required, reliability_score, enabled, last_fetch, created_at, updated_at
	`
	row := s.db.QueryRowContext(ctx, q, src.ID, src.Name, src.SourceType, src.URL, src.APIKeyRequired, src.ReliabilityScore, src.Enabled)
	var out model.IocSource
	if err := row.Scan(&out.ID, &out.Name, &out.SourceType, &out.URL, &out.APIKeyRequired, &out.ReliabilityScore, &out.Enabled, &out.LastFetch, &out.CreatedAt, &out.UpdatedAt); err != nil {
		return model.IocSource{}, fmt.Errorf("upsert source: %w", err)
	}
	return out, nil
}

// GetEnabledSources returns all sources with enabled = true, by name.
func (s *Store) GetEnabledSources(ctx context.Context) ([]model.IocSource, error) {
	const q = `SELECT id, name, source_type, url, api_key_required, reliability_score, enabled, last_fetch, created_at, updated_at
		FROM ioc_sources WHERE enabled = true ORDER BY name`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("get enabled sources: %w", err)
	}
	defer rows.Close()

	var out []model.IocSource
	for rows.Next() {
		var src model.IocSource
		if err := rows.Scan(&src.ID, &src.Name, &src.SourceType, &src.URL, &src.APIKeyRequired, &src.ReliabilityScore, &src.Enabled, &src.LastFetch, &src.CreatedAt, &src.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan source: %w", err)
		}
		out = append(out, src)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return out, nil
}

// ListSources returns every source regardless of enabled state, by name.
func (s *Store) ListSources(ctx context.Context) ([]model.IocSource, error) {
	const q = `SELECT id, name, source_type, url, api_key_required, reliability_score, enabled, last_fetch, created_at, updated_at
		FROM ioc_sources ORDER BY name`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	defer rows.Close()

	var out []model.IocSource
	for rows.Next() {
		var src model.IocSource
		if err := rows.Scan(&src.ID, &src.Name, &src.SourceType, &src.URL, &src.APIKeyRequired, &src.ReliabilityScore, &src.Enabled, &src.LastFetch, &src.CreatedAt, &src.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan source: %w", err)
		}
		out = append(out, src)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return out, nil
}

// UpdateSourceFetchTime stamps last_fetch = NOW() for a source.
func (s *Store) UpdateSourceFetchTime(ctx context.Context, sourceID uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, `UPDATE ioc_sources SET last_fetch = NOW(), updated_at = NOW() WHERE id = $1`, sourceID)
	if err != nil {
		return fmt.Errorf("update source fetch time: %w", err)
	}
	return nil
}
