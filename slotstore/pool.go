package slotstore

import (
	"context"
	"sync"
)

// DefaultMaxWorkers bounds batch fan-out when parallel operation is
// requested.
const DefaultMaxWorkers = 8

// BatchErrors maps a batch item key (usually a full title) to the
// error it produced. Batch operations return partial results together
// with this map unless the caller asked for first-failure abort.
type BatchErrors map[string]error

// Err returns nil when the batch had no failures, otherwise the map
// itself.
func (b BatchErrors) Err() error {
	if len(b) == 0 {
		return nil
	}
	return b
}

// Error implements error.
func (b BatchErrors) Error() string {
	for key, err := range b {
		if len(b) == 1 {
			return "1 item failed: " + key + ": " + err.Error()
		}
		return "batch failed, first error: " + key + ": " + err.Error()
	}
	return "no errors"
}

// FanOut runs fn over every key with at most workers goroutines and
// joins the results. Ordering between items is not guaranteed; each
// item's completion is independent. When abortOnError is set the first
// failure cancels the pending items.
func FanOut[T any](ctx context.Context, keys []string, workers int, abortOnError bool,
	fn func(ctx context.Context, key string) (T, error)) (map[string]T, BatchErrors) {
	return fanOut(ctx, keys, workers, abortOnError, fn)
}

// fanOut is the batch engine behind the store's parallel operations.
func fanOut[T any](ctx context.Context, keys []string, workers int, abortOnError bool,
	fn func(ctx context.Context, key string) (T, error)) (map[string]T, BatchErrors) {

	if workers <= 0 {
		workers = DefaultMaxWorkers
	}
	if workers > len(keys) {
		workers = len(keys)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type job struct {
		key string
	}
	type outcome struct {
		key    string
		result T
		err    error
	}

	jobs := make(chan job)
	outcomes := make(chan outcome)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				if ctx.Err() != nil {
					outcomes <- outcome{key: j.key, err: ctx.Err()}
					continue
				}
				result, err := fn(ctx, j.key)
				outcomes <- outcome{key: j.key, result: result, err: err}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, key := range keys {
			select {
			case jobs <- job{key: key}:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(outcomes)
	}()

	results := make(map[string]T, len(keys))
	errs := BatchErrors{}
	for o := range outcomes {
		if o.err != nil {
			errs[o.key] = o.err
			if abortOnError {
				cancel()
			}
			continue
		}
		results[o.key] = o.result
	}
	return results, errs
}
