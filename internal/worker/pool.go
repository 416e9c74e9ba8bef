package worker

import (
	"context"
	"sync"
)

// Run applies fn to every item using at most width concurrent goroutines and
// returns results in input order. Completion order is irrelevant: results are
// resequenced by index. The first error encountered is returned after all
// in-flight work finishes; remaining unstarted items are skipped.
func Run[T, R any](ctx context.Context, width int, items []T, fn func(context.Context, T) (R, error)) ([]R, error) {
	if len(items) == 0 {
		return nil, nil
	}
	if width <= 0 || width > len(items) {
		width = len(items)
	}

	results := make([]R, len(items))
	sem := make(chan struct{}, width)

	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	for i, item := range items {
		mu.Lock()
		failed := firstErr != nil
		mu.Unlock()
		if failed {
			break
		}

		sem <- struct{}{}
		wg.Add(1)
		go func(i int, item T) {
			defer wg.Done()
			defer func() { <-sem }()

			result, err := fn(ctx, item)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				return
			}
			results[i] = result
		}(i, item)
	}

	wg.Wait()
	return results, firstErr
}
