package store

import (
	"context"
	"fmt"

	"github.com/sentineltrace/threat-intel/internal/model"
)

// GetStats computes dashboard statistics. Unlike the reference
// implementation, indicators_by_type, indicators_by_severity, and
// top_tags are filled from real GROUP BY queries rather than left as
// empty stubs.
func (s *Store) GetStats(ctx context.Context) (model.DashboardStats, error) {
	var stats model.DashboardStats
	stats.IndicatorsByType = map[string]int64{}
	stats.IndicatorsBySeverity = map[string]int64{}

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM indicators`).Scan(&stats.TotalIndicators); err != nil {
		return model.DashboardStats{}, fmt.Errorf("count total: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM indicators WHERE created_at >= CURRENT_DATE`).Scan(&stats.NewToday); err != nil {
		return model.DashboardStats{}, fmt.Errorf("count new today: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM indicators WHERE created_at >= CURRENT_DATE - INTERVAL '7 days'`).Scan(&stats.NewThisWeek); err != nil {
		return model.DashboardStats{}, fmt.Errorf("count new this week: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM ioc_sources WHERE enabled = true`).Scan(&stats.ActiveSources); err != nil {
		return model.DashboardStats{}, fmt.Errorf("count active sources: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sightings WHERE observed_at >= CURRENT_DATE - INTERVAL '24 hours'`).Scan(&stats.RecentSightings); err != nil {
		return model.DashboardStats{}, fmt.Errorf("count recent sightings: %w", err)
	}

	typeRows, err := s.db.QueryContext(ctx, `SELECT ioc_type, COUNT(*) FROM indicators GROUP BY ioc_type`)
	if err != nil {
		return model.DashboardStats{}, fmt.Errorf("group by type: %w", err)
	}
	defer typeRows.Close()
	for typeRows.Next() {
		var t string
		var n int64
		if err := typeRows.Scan(&t, &n); err != nil {
			return model.DashboardStats{}, fmt.Errorf("scan type group: %w", err)
		}
		stats.IndicatorsByType[t] = n
	}
	if err := typeRows.Err(); err != nil {
		return model.DashboardStats{}, fmt.Errorf("rows error: %w", err)
	}

	sevRows, err := s.db.QueryContext(ctx, `SELECT severity, COUNT(*) FROM indicators GROUP BY severity`)
	if err != nil {
		return model.DashboardStats{}, fmt.Errorf("group by severity: %w", err)
	}
	defer sevRows.Close()
	for sevRows.Next() {
		var sev string
		var n int64
		if err := sevRows.Scan(&sev, &n); err != nil {
			return model.DashboardStats{}, fmt.Errorf("scan severity group: %w", err)
		}
		stats.IndicatorsBySeverity[sev] = n
	}
	if err := sevRows.Err(); err != nil {
		return model.DashboardStats{}, fmt.Errorf("rows error: %w", err)
	}

	tagRows, err := s.db.QueryContext(ctx, `
		SELECT tag, COUNT(*) AS cnt FROM indicators, unnest(tags) AS tag
		GROUP BY tag ORDER BY cnt DESC LIMIT 10
	`)
	if err != nil {
		return model.DashboardStats{}, fmt.Errorf("top tags: %w", err)
	}
	defer tagRows.Close()
	for tagRows.Next() {
		var tc model.TagCount
		if err := tagRows.Scan(&tc.Tag, &tc.Count); err != nil {
			return model.DashboardStats{}, fmt.Errorf("scan tag count: %w", err)
		}
		stats.TopTags = append(stats.TopTags, tc)
	}
	if err := tagRows.Err(); err != nil {
		return model.DashboardStats{}, fmt.Errorf("rows error: %w", err)
	}

	return stats, nil
}
