package identity

import (
	"context"
	"errors"
	"fmt"
	"strconv"
)

// ErrCollisionBudget is returned when every suffixed candidate id is held by
// a different entity.  It is a configuration error and must halt the write.
var ErrCollisionBudget = errors.New("identity: collision retry budget exhausted")

// DefaultMaxAttempts bounds the suffix loop when no budget is configured.
const DefaultMaxAttempts = 5

// ClaimFunc tries to take candidate for the entity being written.  It
// returns true when the id was free (and is now taken) or already belongs to
// the same entity, false when a different entity holds it.
type ClaimFunc func(ctx context.Context, candidate string) (bool, error)

// Suffixed returns baseID for attempt 0 and baseID_N after that.
func Suffixed(baseID string, attempt int) string {
	if attempt <= 0 {
		return baseID
	}
	return baseID + "_" + strconv.Itoa(attempt)
}

// Allocate runs the find-or-create loop: baseID, baseID_1, baseID_2, ...
// until claim accepts a candidate or maxAttempts candidates were refused.
func Allocate(ctx context.Context, baseID string, maxAttempts int, claim ClaimFunc) (string, error) {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		candidate := Suffixed(baseID, attempt)
		ok, err := claim(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("claim %s: %w", candidate, err)
		}
		if ok {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w: %s after %d attempts", ErrCollisionBudget, baseID, maxAttempts)
}
