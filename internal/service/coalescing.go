package service

import (
	"context"
	"sync"
	"time"
)

// call is one upstream fetch that several callers may wait on.
type call[V any] struct {
	done   chan struct{}
	result V
	err    error
}

// requestCoalescer joins concurrent fetches for the same key into one upstream call.
type requestCoalescer[V any] struct {
	mu       sync.Mutex
	inFlight map[string]*call[V]
	timeout  time.Duration
}

func newRequestCoalescer[V any](timeout time.Duration) *requestCoalescer[V] {
	return &requestCoalescer[V]{
		inFlight: make(map[string]*call[V]),
		timeout:  timeout,
	}
}

// Do runs fn for key unless a call for key is already running, in which case it waits
// for that call's result. shared reports whether the result came from another caller's
// call. Waiting is bounded by ctx and the coalescer timeout; fn keeps running after a
// waiter gives up so other waiters still get its result.
//
// fn receives a context that keeps ctx's values but not its cancellation, bounded by
// the coalescer timeout. Cancelling the caller that started the call does not fail
// the callers that joined it.
func (rc *requestCoalescer[V]) Do(ctx context.Context, key string, fn func(context.Context) (V, error)) (result V, shared bool, err error) {
	rc.mu.Lock()
	c, exists := rc.inFlight[key]
	if !exists {
		c = &call[V]{done: make(chan struct{})}
		rc.inFlight[key] = c
		go rc.run(context.WithoutCancel(ctx), key, c, fn)
	}
	rc.mu.Unlock()

	waitCtx, cancel := context.WithTimeout(ctx, rc.timeout)
	defer cancel()
	select {
	case <-c.done:
		return c.result, exists, c.err
	case <-waitCtx.Done():
		var zero V
		return zero, exists, waitCtx.Err()
	}
}

func (rc *requestCoalescer[V]) run(ctx context.Context, key string, c *call[V], fn func(context.Context) (V, error)) {
	ctx, cancel := context.WithTimeout(ctx, rc.timeout)
	defer cancel()
	c.result, c.err = fn(ctx)

	rc.mu.Lock()
	delete(rc.inFlight, key)
	rc.mu.Unlock()
	close(c.done)
}
