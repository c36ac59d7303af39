package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/sentineltrace/threat-intel/internal/model"
)

// AddSighting records an observation of an indicator and bumps its
// last_seen in the same transaction, satisfying the atomicity invariant
// the original non-atomic insert-then-update pattern did not provide.
func (s *Store) AddSighting(ctx context.Context, indicatorID uuid.UUID, source string, sightingContext []byte) (model.Sighting, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Sighting{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	const insert = `
		INSERT INTO sightings (id, indicator_id, source, context, observed_at, created_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		RETURNING id, indicator_id, source, context, observed_at, created_at
	`
	var sighting model.Sighting
	row := tx.QueryRowContext(ctx, insert, uuid.New(), indicatorID, source, sightingContext)
	if err := row.Scan(&sighting.ID, &sighting.IndicatorID, &sighting.Source, &sighting.Context, &sighting.ObservedAt, &sighting.CreatedAt); err != nil {
		return model.Sighting{}, fmt.Errorf("add sighting: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE indicators SET last_seen = NOW() WHERE id = $1`, indicatorID); err != nil {
		return model.Sighting{}, fmt.Errorf("bump last_seen: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return model.Sighting{}, fmt.Errorf("commit: %w", err)
	}
	return sighting, nil
}

// CountSightings returns the total number of sightings for an indicator.
func (s *Store) CountSightings(ctx context.Context, indicatorID uuid.UUID) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sightings WHERE indicator_id = $1`, indicatorID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count sightings: %w", err)
	}
	return count, nil
}
