package fn

import (
	"context"
	"sync"
)

// ParMapResult applies f to each item with at most workers goroutines in
// flight, returning Results in input order regardless of completion order.
// Once ctx is cancelled, items not yet started are failed with ctx.Err()
// instead of being dispatched; items already in flight run to completion
// (f is expected to honor ctx itself).
func ParMapResult[T, U any](ctx context.Context, items []T, workers int, f func(context.Context, T) Result[U]) []Result[U] {
	out := make([]Result[U], len(items))
	if len(items) == 0 {
		return out
	}
	if workers <= 0 || workers > len(items) {
		workers = len(items)
	}

	var wg sync.WaitGroup
	sem := make(chan struct{}, workers)
	for i, v := range items {
		select {
		case <-ctx.Done():
			out[i] = Err[U](ctx.Err())
			continue
		case sem <- struct{}{}:
		}
		wg.Add(1)
		go func(i int, v T) {
			defer func() { <-sem; wg.Done() }()
			out[i] = f(ctx, v)
		}(i, v)
	}
	wg.Wait()
	return out
}
