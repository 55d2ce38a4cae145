package concurrent

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/zeusync/arena/pkg/sequence"
)

// ForEach runs action for each element of the iterator in its own goroutine,
// at most limit at a time (limit <= 0 means no limit). The first error
// cancels the context handed to the other actions and is returned once all
// of them have finished.
func ForEach[T any](ctx context.Context, i *sequence.Iterator[T], limit int, action func(context.Context, T) error) error {
	errGroup, ctx := errgroup.WithContext(ctx)
	if limit > 0 {
		errGroup.SetLimit(limit)
	}

	next, stop := i.Pull()
	defer stop()

	for {
		value, valid := next()
		if !valid {
			break
		}
		if ctx.Err() != nil {
			break
		}

		errGroup.Go(func() error {
			return action(ctx, value)
		})
	}

	return errGroup.Wait()
}
