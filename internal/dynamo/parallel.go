package dynamo

import (
	"context"
	"errors"
	"runtime"
	"sync"
)

// Ensemble runs independent simulations concurrently with a bounded number
// of workers.
type Ensemble struct {
	workers int
}

func NewEnsemble(workers int) *Ensemble {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Ensemble{workers: workers}
}

// Run calls run for each index in [0, n) and returns the results in index
// order. The first error cancels the remaining runs.
func (e *Ensemble) Run(ctx context.Context, n int, run func(ctx context.Context, idx int) (*Result, error)) ([]*Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make([]*Result, n)
	errs := make([]error, n)
	sem := make(chan struct{}, e.workers)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				errs[idx] = ctx.Err()
				return
			}
			defer func() { <-sem }()

			results[idx], errs[idx] = run(ctx, idx)
			if errs[idx] != nil {
				cancel()
			}
		}(i)
	}

	wg.Wait()

	var first error
	for _, err := range errs {
		if err == nil {
			continue
		}
		if first == nil || errors.Is(first, context.Canceled) {
			first = err
		}
	}
	if first != nil {
		return nil, first
	}

	return results, nil
}
