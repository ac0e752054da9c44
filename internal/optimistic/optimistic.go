// Package optimistic applies a local change before the remote write confirms it.
package optimistic

import (
	"context"
	"fmt"
)

// Do runs apply, then persist. If persist fails, invert undoes apply and the error is returned wrapped.
// apply and invert may be nil.
func Do[T any](ctx context.Context, apply func(), persist func(context.Context) (T, error), invert func()) (T, error) {
	if apply != nil {
		apply()
	}

	result, err := persist(ctx)
	if err != nil {
		if invert != nil {
			invert()
		}
		var zero T
		return zero, fmt.Errorf("optimistic update rolled back: %w", err)
	}
	return result, nil
}
