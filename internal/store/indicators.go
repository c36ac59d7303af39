package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/sentineltrace/threat-intel/internal/classify"
	"github.com/sentineltrace/threat-intel/internal/model"
)

// UpsertIndicator inserts a new indicator or merges onto an existing one
// for the same (ioc_type, value) pair. The merge is monotone: severity
// only moves up the unknown < low < medium < high < critical ordinal
// order (via severity_rank, not TEXT comparison), confidence only
// increases, tags and source_ids accumulate as sets (duplicates are
// dropped), and last_seen advances to the new observation.
//
// inserted reports whether this call created the row (true) or merged
// onto an existing one (false), resolving bulk_import's created/updated
// distinction.
func (s *Store) UpsertIndicator(ctx context.Context, ind model.Indicator) (result model.Indicator, inserted bool, err error) {
	tags := dedupeStrings(ind.Tags)
	sourceIDs := dedupeUUIDs(ind.SourceIDs)

	const q = `
		INSERT INTO indicators (
			id, ioc_type, value, severity, confidence, threat_score, tlp,
			first_seen, last_seen, expiration, tags, source_ids, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8, $9, $10, $11, $8, $8)
		ON CONFLICT (ioc_type, value) DO UPDATE SET
			severity = CASE GREATEST(severity_rank(indicators.severity), severity_rank(EXCLUDED.severity))
				WHEN 4 THEN 'critical'
				WHEN 3 THEN 'high'
				WHEN 2 THEN 'medium'
				WHEN 1 THEN 'low'
				ELSE 'unknown'
			END,
			confidence = GREATEST(indicators.confidence, EXCLUDED.confidence),
			last_seen = EXCLUDED.last_seen,
			tags = ARRAY(SELECT DISTINCT unnest(array_cat(indicators.tags, EXCLUDED.tags))),
			source_ids = ARRAY(SELECT DISTINCT unnest(array_cat(indicators.source_ids, EXCLUDED.source_ids))),
			updated_at = EXCLUDED.updated_at
		RETURNING id, ioc_type, value, severity, confidence, threat_score, tlp,
			first_seen, last_seen, expiration, tags, source_ids, created_at, updated_at,
			(xmax = 0) AS inserted
	`
	row := s.db.QueryRowContext(ctx, q,
		uuid.New(), string(ind.IocType), ind.Value, string(ind.Severity), ind.Confidence,
		ind.Confidence, string(ind.Tlp), ind.FirstSeen, ind.Expiration,
		pq.Array(tags), pq.Array(sourceIDsToText(sourceIDs)),
	)
	result, inserted, err = scanIndicatorInserted(row)
	if err != nil {
		return model.Indicator{}, false, fmt.Errorf("upsert indicator: %w", err)
	}
	return result, inserted, nil
}

// GetIndicator fetches an indicator by ID.
func (s *Store) GetIndicator(ctx context.Context, id uuid.UUID) (model.Indicator, error) {
	const q = indicatorSelectCols + ` FROM indicators WHERE id = $1`
	row := s.db.QueryRowContext(ctx, q, id)
	ind, err := scanIndicator(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Indicator{}, model.ErrNotFound
	}
	if err != nil {
		return model.Indicator{}, fmt.Errorf("get indicator: %w", err)
	}
	return ind, nil
}

// GetIndicatorByValue looks value up under iocType, or under its
// detected type when iocType is nil, after normalizing it; falls back to
// a raw value match if the type cannot be detected.
func (s *Store) GetIndicatorByValue(ctx context.Context, iocType *model.IocType, value string) (model.Indicator, error) {
	if iocType == nil {
		if detected, ok := classify.Detect(value); ok {
			iocType = &detected
		}
	}
	var row *sql.Row
	if iocType != nil {
		row = s.db.QueryRowContext(ctx, indicatorSelectCols+` FROM indicators WHERE ioc_type = $1 AND value = $2`, string(*iocType), classify.Normalize(value, *iocType))
	} else {
		row = s.db.QueryRowContext(ctx, indicatorSelectCols+` FROM indicators WHERE value = $1`, value)
	}
	ind, err := scanIndicator(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Indicator{}, model.ErrNotFound
	}
	if err != nil {
		return model.Indicator{}, fmt.Errorf("get indicator by value: %w", err)
	}
	return ind, nil
}

// SearchIndicators runs a filtered, paginated search. Filters are applied
// as parameterized conditions (never string-interpolated) to avoid the
// injection-prone dynamic-WHERE pattern.
func (s *Store) SearchIndicators(ctx context.Context, filter model.IndicatorFilter) (model.PaginatedResponse[model.Indicator], error) {
	page := filter.Page
	if page < 1 {
		page = 1
	}
	perPage := filter.PerPage
	if perPage < 1 {
		perPage = 50
	}
	if perPage > 1000 {
		perPage = 1000
	}
	offset := (page - 1) * perPage

	where, args := buildFilterClause(filter)

	dataArgs := append(append([]any{}, args...), perPage, offset)
	dataQuery := fmt.Sprintf(
		indicatorSelectCols+` FROM indicators WHERE %s ORDER BY last_seen DESC LIMIT $%d OFFSET $%d`,
		where, len(args)+1, len(args)+2,
	)
	rows, err := s.db.QueryContext(ctx, dataQuery, dataArgs...)
	if err != nil {
		return model.PaginatedResponse[model.Indicator]{}, fmt.Errorf("search indicators: %w", err)
	}
	defer rows.Close()

	var data []model.Indicator
	for rows.Next() {
		ind, err := scanIndicatorRows(rows)
		if err != nil {
			return model.PaginatedResponse[model.Indicator]{}, fmt.Errorf("scan indicator: %w", err)
		}
		data = append(data, ind)
	}
	if err := rows.Err(); err != nil {
		return model.PaginatedResponse[model.Indicator]{}, fmt.Errorf("rows error: %w", err)
	}

	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM indicators WHERE %s`, where)
	var total int64
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return model.PaginatedResponse[model.Indicator]{}, fmt.Errorf("count indicators: %w", err)
	}

	totalPages := total / perPage
	if total%perPage != 0 {
		totalPages++
	}

	return model.PaginatedResponse[model.Indicator]{
		Data:       data,
		Total:      total,
		Page:       page,
		PerPage:    perPage,
		TotalPages: totalPages,
	}, nil
}

func buildFilterClause(filter model.IndicatorFilter) (string, []any) {
	where := "1=1"
	var args []any
	next := func() int { return len(args) + 1 }

	if filter.IocType != nil {
		where += fmt.Sprintf(" AND ioc_type = $%d", next())
		args = append(args, string(*filter.IocType))
	}
	if filter.Severity != nil {
		where += fmt.Sprintf(" AND severity = $%d", next())
		args = append(args, string(*filter.Severity))
	}
	if filter.MinConfidence != nil {
		where += fmt.Sprintf(" AND confidence >= $%d", next())
		args = append(args, *filter.MinConfidence)
	}
	if filter.MinThreatScore != nil {
		where += fmt.Sprintf(" AND threat_score >= $%d", next())
		args = append(args, *filter.MinThreatScore)
	}
	if filter.Search != nil {
		where += fmt.Sprintf(" AND value ILIKE $%d", next())
		args = append(args, "%"+*filter.Search+"%")
	}
	if filter.SourceID != nil {
		where += fmt.Sprintf(" AND $%d = ANY(source_ids)", next())
		args = append(args, *filter.SourceID)
	}
	if filter.FirstSeenAfter != nil {
		where += fmt.Sprintf(" AND first_seen >= $%d", next())
		args = append(args, *filter.FirstSeenAfter)
	}
	if len(filter.Tags) > 0 {
		where += fmt.Sprintf(" AND tags && $%d", next())
		args = append(args, pq.Array(filter.Tags))
	}
	return where, args
}

// UpdateThreatScore sets threat_score and the derived severity bucket.
func (s *Store) UpdateThreatScore(ctx context.Context, id uuid.UUID, score int) error {
	const q = `UPDATE indicators SET threat_score = $1, severity = $2, updated_at = NOW() WHERE id = $3`
	res, err := s.db.ExecContext(ctx, q, score, string(model.SeverityFromScore(score)), id)
	if err != nil {
		return fmt.Errorf("update threat score: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.ErrNotFound
	}
	return nil
}

// DeleteExpired removes indicators past their expiration and returns the
// number of rows removed.
func (s *Store) DeleteExpired(ctx context.Context) (int64, error) {
	const q = `DELETE FROM indicators WHERE expiration IS NOT NULL AND expiration < NOW()`
	res, err := s.db.ExecContext(ctx, q)
	if err != nil {
		return 0, fmt.Errorf("delete expired indicators: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

// DeleteIndicator removes an indicator and its enrichments/sightings in a
// single transaction (FK cascades handle the children, but the
// transaction also lets the caller know whether the row ever existed).
func (s *Store) DeleteIndicator(ctx context.Context, id uuid.UUID) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM indicators WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete indicator: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return model.ErrNotFound
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

const indicatorSelectCols = `SELECT id, ioc_type, value, severity, confidence, threat_score, tlp,
	first_seen, last_seen, expiration, tags, source_ids, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIndicator(row rowScanner) (model.Indicator, error) {
	var ind model.Indicator
	var iocType, severity, tlp string
	var tags pq.StringArray
	var sourceIDs pq.StringArray
	err := row.Scan(&ind.ID, &iocType, &ind.Value, &severity, &ind.Confidence, &ind.ThreatScore, &tlp,
		&ind.FirstSeen, &ind.LastSeen, &ind.Expiration, &tags, &sourceIDs, &ind.CreatedAt, &ind.UpdatedAt)
	if err != nil {
		return model.Indicator{}, err
	}
	ind.IocType = model.IocType(iocType)
	ind.Severity = model.Severity(severity)
	ind.Tlp = model.Tlp(tlp)
	ind.Tags = []string(tags)
	ind.SourceIDs = parseUUIDs(sourceIDs)
	return ind, nil
}

func scanIndicatorRows(rows *sql.Rows) (model.Indicator, error) {
	return scanIndicator(rows)
}

func scanIndicatorInserted(row *sql.Row) (model.Indicator, bool, error) {
	var ind model.Indicator
	var iocType, severity, tlp string
	var tags pq.StringArray
	var sourceIDs pq.StringArray
	var inserted bool
	err := row.Scan(&ind.ID, &iocType, &ind.Value, &severity, &ind.Confidence, &ind.ThreatScore, &tlp,
		&ind.FirstSeen, &ind.LastSeen, &ind.Expiration, &tags, &sourceIDs, &ind.CreatedAt, &ind.UpdatedAt, &inserted)
	if err != nil {
		return model.Indicator{}, false, err
	}
	ind.IocType = model.IocType(iocType)
	ind.Severity = model.Severity(severity)
	ind.Tlp = model.Tlp(tlp)
	ind.Tags = []string(tags)
	ind.SourceIDs = parseUUIDs(sourceIDs)
	return ind, inserted, nil
}

func dedupeStrings(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func dedupeUUIDs(in []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(in))
	out := make([]uuid.UUID, 0, len(in))
	for _, id := range in {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func sourceIDsToText(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

func parseUUIDs(in []string) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(in))
	for _, s := range in {
		if id, err := uuid.Parse(s); err == nil {
			out = append(out, id)
		}
	}
	return out
}
