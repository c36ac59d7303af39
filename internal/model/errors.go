package model

import "errors"

// Sentinel errors returned by the store and enrichment layers. Handlers
// in internal/httpapi map these onto HTTP status codes.
var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation failed")
	ErrUpstream   = errors.New("upstream provider error")
	ErrStorage    = errors.New("storage error")
)
