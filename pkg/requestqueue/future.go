package requestqueue

import (
	"context"
	"sync"
)

// Future is the completion handle for an enqueued request.
//
// It resolves exactly once: with the operation's result, with the final
// error after retries are exhausted, or with a rejection (queue cleared,
// queue full, non-retryable failure).
type Future struct {
	done   chan struct{}
	once   sync.Once
	result interface{}
	err    error
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

// Wait blocks until the future resolves or ctx is done, returning the
// request's result or error.
func (f *Future) Wait(ctx context.Context) (interface{}, error) {
	select {
	case <-f.done:
		return f.result, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Done returns a channel closed when the future has resolved.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// resolve completes the future. Later calls are no-ops.
func (f *Future) resolve(result interface{}, err error) {
	f.once.Do(func() {
		f.result = result
		f.err = err
		close(f.done)
	})
}
