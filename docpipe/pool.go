package docpipe

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// pool bounds concurrent extractions. Callers beyond capacity wait in
// Acquire; that wait is the pipeline's only backpressure.
type pool struct {
	sem  *semaphore.Weighted
	size int
}

func newPool(size int) *pool {
	return &pool{sem: semaphore.NewWeighted(int64(size)), size: size}
}

// run executes fn on its own goroutine once a slot is free. If ctx ends
// first, run returns ctx.Err(); an fn that already started keeps running
// and releases its slot when it returns.
func (p *pool) run(ctx context.Context, fn func()) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	done := make(chan struct{})
	go func() {
		defer p.sem.Release(1)
		defer close(done)
		fn()
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		select {
		case <-done:
			return nil
		default:
			return ctx.Err()
		}
	}
}
