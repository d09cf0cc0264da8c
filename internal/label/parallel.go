// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package label

import (
	"context"

	"golang.org/x/sync/errgroup"
)

const chunkSize = 256

// forEach runs fn for every index in [0,n) across at most workers
// goroutines. Each index is visited exactly once; fn must only write to
// its own index.
func forEach(ctx context.Context, n, workers int, fn func(i int)) error {
	if workers <= 1 || n <= chunkSize {
		for i := 0; i < n; i++ {
			if i%chunkSize == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
			}
			fn(i)
		}
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for start := 0; start < n; start += chunkSize {
		start, end := start, min(start+chunkSize, n)
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			for i := start; i < end; i++ {
				fn(i)
			}
			return nil
		})
	}
	return g.Wait()
}
