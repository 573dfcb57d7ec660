package repository

import (
	"context"
	"errors"
	"fmt"

	"dispatch/internal/domain"
)

var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = domain.ErrNotFound

	// ErrConflict is returned when a save carries a stale version.
	ErrConflict = domain.ErrConflict
)

// ContextError converts a context failure into the store's error taxonomy.
// A passed deadline becomes domain.ErrTimeout unless err already carries a
// domain error; other errors pass through.
func ContextError(ctx context.Context, err error) error {
	if err == nil || errors.Is(err, domain.ErrTimeout) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) ||
		(errors.Is(ctx.Err(), context.DeadlineExceeded) && domain.Code(err) == "INTERNAL") {
		return fmt.Errorf("%w: store access: %v", domain.ErrTimeout, err)
	}
	return err
}
