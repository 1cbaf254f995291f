// Package parallel runs batches of independent lookups under a concurrency
// cap, collecting one result per input regardless of individual failures.
package parallel

import (
	"context"
	"sync"

	"github.com/sourcegraph/conc/pool"
)

// Map runs fn once per key with at most limit calls outstanding at a time
// and returns when all have completed. Every key gets exactly one entry in
// the result map; a key whose fn fails (or whose context was already
// cancelled) maps to the zero value, and a single failure never aborts the
// batch. Completion order is unspecified, which is why results are keyed.
func Map[K comparable, V any](ctx context.Context, keys []K, limit int, fn func(context.Context, K) (V, error)) map[K]V {
	if limit <= 0 {
		limit = 1
	}

	var mu sync.Mutex
	out := make(map[K]V, len(keys))

	p := pool.New().WithMaxGoroutines(limit)
	for _, k := range keys {
		k := k
		p.Go(func() {
			var v V
			if ctx.Err() == nil {
				if got, err := fn(ctx, k); err == nil {
					v = got
				}
			}
			mu.Lock()
			out[k] = v
			mu.Unlock()
		})
	}
	p.Wait()

	return out
}
