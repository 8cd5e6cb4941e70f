package stages

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// fanOut runs task for 0..n-1 with at most limit in flight and returns the
// results in index order. After the first failure no further tasks start;
// tasks already running are not canceled and fanOut waits for them before
// returning that first error.
func fanOut[T any](ctx context.Context, limit, n int, task func(ctx context.Context, i int) (T, error)) ([]T, error) {
	results := make([]T, n)
	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}
	var failed atomic.Bool
	for i := 0; i < n; i++ {
		if failed.Load() || ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if failed.Load() {
				return nil
			}
			out, err := task(ctx, i)
			if err != nil {
				failed.Store(true)
				return err
			}
			results[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}
