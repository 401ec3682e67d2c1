// Package identity assigns deterministic internal ids to scraped entities.
// An id is derived either from a usable upstream source id or from a digest
// of the entity's normalized content, so two scrapes of the same content
// resolve to the same id on any run, process or machine.
package identity

import (
	"encoding/hex"
	"strings"

	"github.com/zeebo/blake3"
)

// Entity type names used in ids.
const (
	TypeVenue       = "venue"
	TypeEvent       = "event"
	TypePerformance = "performance"
	TypeLevel       = "level"
	TypeZone        = "zone"
	TypeSection     = "section"
	TypeSeat        = "seat"
	TypePack        = "pack"
)

// hashLen is the number of hex characters of the digest kept in an id.
const hashLen = 8

// fieldSep separates fields before hashing so ("ab","c") and ("a","bc")
// never collide.
const fieldSep = "\x1f"

// ValidSourceID reports whether an upstream id can be used as identity.
// Empty, blank and the literal "0" are placeholders some sites emit.
func ValidSourceID(sourceID string) bool {
	t := strings.TrimSpace(sourceID)
	return t != "" && t != "0"
}

// Resolve returns "{prefix}_{entityType}_{part}" where part is the trimmed
// source id when valid, otherwise the first 8 hex characters of the content
// digest of fields.  Field order matters; whitespace and case do not.
func Resolve(prefix, entityType, sourceID string, fields ...string) string {
	part := strings.TrimSpace(sourceID)
	if !ValidSourceID(sourceID) {
		part = ContentHash(fields...)
	}
	return prefix + "_" + entityType + "_" + part
}

// ContentHash returns the truncated content digest of fields.
func ContentHash(fields ...string) string {
	return digest(fields)[:hashLen]
}

// Fingerprint is the untruncated identity of an entity.  The persistence
// boundary compares fingerprints to tell "same entity seen again" apart
// from a collision of two different entities on the same truncated id.
func Fingerprint(sourceID string, fields ...string) string {
	if ValidSourceID(sourceID) {
		return "src:" + strings.TrimSpace(sourceID)
	}
	return "sha:" + digest(fields)
}

func digest(fields []string) string {
	normalized := make([]string, len(fields))
	for i, f := range fields {
		normalized[i] = strings.ToLower(strings.TrimSpace(f))
	}
	sum := blake3.Sum256([]byte(strings.Join(normalized, fieldSep)))
	return hex.EncodeToString(sum[:])
}

// PrefixFor derives an id prefix from a source website such as
// "https://www.example-tickets.co.uk/" -> "exampletickets".
func PrefixFor(sourceWebsite string) string {
	s := strings.ToLower(strings.TrimSpace(sourceWebsite))
	if i := strings.Index(s, "://"); i >= 0 {
		s = s[i+3:]
	}
	s = strings.TrimPrefix(s, "www.")
	if i := strings.IndexAny(s, "./:"); i >= 0 {
		s = s[:i]
	}
	var b strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "src"
	}
	return b.String()
}
