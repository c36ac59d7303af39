// Package classify detects and normalizes raw indicator values.
//
// Grounded on original_source/src/models/ioc_utils.rs: detection order
// and normalization rules are carried over unchanged in meaning.
package classify

import (
	"net"
	"strings"

	"github.com/sentineltrace/threat-intel/internal/model"
)

// Detect infers the IocType of a raw value. ok is false when no rule
// matches.
func Detect(value string) (model.IocType, bool) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "", false
	}

	if strings.HasPrefix(strings.ToUpper(trimmed), "CVE-") {
		return model.IocTypeCVE, true
	}

	if isHexHash(trimmed) {
		return model.IocTypeHash, true
	}

	if strings.HasPrefix(trimmed, "http://") || strings.HasPrefix(trimmed, "https://") {
		return model.IocTypeURL, true
	}

	if strings.Contains(trimmed, "@") && strings.Contains(trimmed, ".") {
		return model.IocTypeEmail, true
	}

	if ip := net.ParseIP(trimmed); ip != nil {
		return model.IocTypeIP, true
	}

	if strings.Contains(trimmed, "/") {
		parts := strings.SplitN(trimmed, "/", 2)
		if len(parts) == 2 && net.ParseIP(parts[0]) != nil {
			return model.IocTypeIP, true
		}
	}

	if isDomainLike(trimmed) {
		return model.IocTypeDomain, true
	}

	return "", false
}

func isHexHash(s string) bool {
	switch len(s) {
	case 32, 40, 64:
	default:
		return false
	}
	for _, r := range s {
		if !isHexDigit(r) {
			return false
		}
	}
	return true
}

func isHexDigit(r rune) bool {
	return (r >= '0' && r <= '9') || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')
}

func isDomainLike(s string) bool {
	if !strings.Contains(s, ".") {
		return false
	}
	if strings.ContainsAny(s, " /@") {
		return false
	}
	for _, r := range s {
		if !(isAlnum(r) || r == '.' || r == '-') {
			return false
		}
	}
	return true
}

func isAlnum(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

// Normalize canonicalizes value according to its detected type, matching
// the original's per-type rules: lowercase for domain/email/ip/hash,
// uppercase for CVE, and scheme+authority-only lowercasing for URLs.
func Normalize(value string, t model.IocType) string {
	trimmed := strings.TrimSpace(value)

	switch t {
	case model.IocTypeDomain, model.IocTypeEmail, model.IocTypeIP, model.IocTypeHash:
		return strings.ToLower(trimmed)
	case model.IocTypeCVE:
		return strings.ToUpper(trimmed)
	case model.IocTypeURL:
		return normalizeURL(trimmed)
	default:
		return trimmed
	}
}

func normalizeURL(trimmed string) string {
	idx := strings.Index(trimmed, "://")
	if idx < 0 {
		return strings.ToLower(trimmed)
	}
	scheme := trimmed[:idx+3]
	rest := trimmed[idx+3:]
	pathIdx := strings.Index(rest, "/")
	if pathIdx < 0 {
		return strings.ToLower(trimmed)
	}
	host := rest[:pathIdx]
	path := rest[pathIdx:]
	return strings.ToLower(scheme) + strings.ToLower(host) + path
}
