package worker

import (
	"context"
	"sync"
)

// RunAll starts fn for every item at once and returns the results in input
// order, independent of completion order
func RunAll[T, R any](ctx context.Context, items []T, fn func(ctx context.Context, i int, item T) R) []R {
	results := make([]R, len(items))
	run(ctx, items, results, 0, len(items), fn)
	return results
}

// RunBatches processes items in sequential batches of size. Each batch runs
// fully concurrently and must finish before the next one starts. Results
// are written by index, so output order matches input order. A size of 0
// or less runs everything in one batch.
func RunBatches[T, R any](ctx context.Context, items []T, size int, fn func(ctx context.Context, i int, item T) R) []R {
	if size <= 0 || size >= len(items) {
		return RunAll(ctx, items, fn)
	}

	results := make([]R, len(items))
	for start := 0; start < len(items); start += size {
		run(ctx, items, results, start, min(start+size, len(items)), fn)
	}
	return results
}

// Batches returns the number of batches RunBatches will use
func Batches(n, size int) int {
	if n == 0 {
		return 0
	}
	if size <= 0 || size >= n {
		return 1
	}
	return (n + size - 1) / size
}

func run[T, R any](ctx context.Context, items []T, results []R, start, end int, fn func(ctx context.Context, i int, item T) R) {
	var wg sync.WaitGroup
	for i := start; i < end; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = fn(ctx, i, items[i])
		}()
	}
	wg.Wait()
}
