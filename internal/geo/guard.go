package geo

import (
	"context"
	"errors"
	"fmt"

	"atlas-backend/internal/store"
)

// AssertDeletable blocks deletion of a node whose direct children still exist.
// One level is enough: grandchildren cannot exist without an intervening child.
func AssertDeletable(ctx context.Context, kind, children string, count func(context.Context) (int64, error)) error {
	n, err := count(ctx)
	if err != nil {
		return fmt.Errorf("count %s: %w", children, err)
	}
	if n > 0 {
		return ConflictError(fmt.Sprintf("%s has associated %s", kind, children))
	}
	return nil
}

// AssertKeyAvailable re-runs a uniqueness probe before an update and fails with
// a Conflict when a row other than selfID already claims the key. A NotFound
// probe means the key is free.
func AssertKeyAvailable[T any](
	ctx context.Context,
	selfID int64,
	probe func(context.Context) (*T, error),
	idOf func(*T) int64,
	msg string,
) error {
	owner, err := probe(ctx)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("uniqueness probe: %w", err)
	}
	if idOf(owner) != selfID {
		return ConflictError(msg)
	}
	return nil
}
