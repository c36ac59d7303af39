// Package enrichment implements the enrichment provider contract and the
// coordinator that fans out across providers.
//
// Grounded on original_source/src/enrichment/mod.rs for the trait shape,
// and on the individual original_source/src/enrichment/*.rs files for
// each concrete provider.
package enrichment

import (
	"context"
	"encoding/json"

	"github.com/sentineltrace/threat-intel/internal/model"
)

// Provider is implemented by each concrete enrichment source.
type Provider interface {
	Name() string
	EnrichmentType() string
	Supports(t model.IocType) bool
	Enrich(ctx context.Context, indicator model.Indicator) (*Document, error)
	TTLHours() int64
}

// Document wraps a provider's enrichment payload. It stays
// self-describing as raw JSON so the store can persist it without the
// coordinator needing to know each provider's schema.
type Document struct {
	raw json.RawMessage
}

// NewDocument marshals v into a Document.
func NewDocument(v any) (*Document, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return &Document{raw: raw}, nil
}

// Bytes returns the raw JSON payload.
func (d *Document) Bytes() []byte {
	if d == nil {
		return nil
	}
	return d.raw
}

// Result is one provider's outcome for a coordinator run.
type Result struct {
	Provider       string
	EnrichmentType string
	Document       *Document
	TTLHours       int64
	Err            error
	Cached         bool
}
