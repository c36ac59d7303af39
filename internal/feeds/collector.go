// Package feeds implements the outbound threat feed collectors:
// pulling indicators from third-party and internal sources so they can
// be merged into the indicator store through the normal upsert path.
//
// Grounded on original_source/src/collectors/mod.rs for the collector
// contract, and the concrete original_source/src/collectors/*.rs files
// for each collector below.
package feeds

import (
	"context"

	"github.com/sentineltrace/threat-intel/internal/model"
)

// Collector is implemented by each concrete feed source.
type Collector interface {
	Name() string
	IsConfigured() bool
	Fetch(ctx context.Context) ([]model.CreateIndicatorRequest, error)
}

// Result bundles a single collector's outcome, mirroring the
// source/indicators/errors shape of the original FeedResult.
type Result struct {
	Source     string
	Indicators []model.CreateIndicatorRequest
	Err        error
}

func intPtr(v int) *int               { return &v }
func strPtr(v string) *string         { return &v }
func severityPtr(v model.Severity) *model.Severity { return &v }
func tlpPtr(v model.Tlp) *model.Tlp   { return &v }
func iocTypePtr(v model.IocType) *model.IocType { return &v }
