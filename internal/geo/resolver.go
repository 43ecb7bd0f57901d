package geo

import (
	"context"
	"errors"
	"fmt"

	"atlas-backend/internal/store"
)

// Resolve implements idempotent resolve-or-create against a storage layer that
// enforces uniqueness with constraints.
//
// It probes for an existing row by the entity's uniqueness key, inserts when
// the probe misses, and recovers the one expected race: a unique-constraint
// violation raised because a concurrent creator won. Recovery is a single
// targeted re-probe, not a loop: if the re-probe still finds nothing the
// violation was not about this key and surfaces as a Conflict.
//
// The returned bool reports whether the row already existed.
func Resolve[T any](
	ctx context.Context,
	probe func(context.Context) (*T, error),
	insert func(context.Context) (*T, error),
) (*T, bool, error) {
	existing, err := probe(ctx)
	if err == nil {
		return existing, true, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, false, fmt.Errorf("resolve probe: %w", err)
	}

	created, err := insert(ctx)
	if err == nil {
		return created, false, nil
	}
	if !errors.Is(err, store.ErrUniqueViolation) {
		return nil, false, err
	}

	// A concurrent creator won the race; the row must exist now.
	winner, probeErr := probe(ctx)
	if probeErr == nil {
		return winner, true, nil
	}
	if errors.Is(probeErr, store.ErrNotFound) {
		// The violation was about some other key, not the expected race.
		return nil, false, ConflictError("A record with this value already exists")
	}
	return nil, false, fmt.Errorf("resolve re-probe: %w", probeErr)
}
