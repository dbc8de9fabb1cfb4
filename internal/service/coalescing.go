package service

import (
	"context"
	"sync"
	"time"
)

// call is one upstream fetch that several callers may wait for.
type call[T any] struct {
	done chan struct{}
	val  T
	err  error
}

// coalescer collapses concurrent fetches for the same key into one.
type coalescer[T any] struct {
	mu       sync.Mutex
	inFlight map[string]*call[T]
	timeout  time.Duration
}

func newCoalescer[T any](timeout time.Duration) *coalescer[T] {
	return &coalescer[T]{
		inFlight: make(map[string]*call[T]),
		timeout:  timeout,
	}
}

// Do runs fn for key unless a run is already in flight, in which case it waits for
// that run. shared is true when the result came from another caller's run. fn gets a
// context detached from the caller's cancellation but bounded by the coalescer
// timeout, so one caller going away does not fail the others.
func (c *coalescer[T]) Do(ctx context.Context, key string, fn func(context.Context) (T, error)) (val T, shared bool, err error) {
	c.mu.Lock()
	if cl, ok := c.inFlight[key]; ok {
		c.mu.Unlock()
		val, err = c.wait(ctx, cl)
		return val, true, err
	}
	cl := &call[T]{done: make(chan struct{})}
	c.inFlight[key] = cl
	c.mu.Unlock()

	go func() {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()
		cl.val, cl.err = fn(fetchCtx)

		c.mu.Lock()
		delete(c.inFlight, key)
		c.mu.Unlock()
		close(cl.done)
	}()

	val, err = c.wait(ctx, cl)
	return val, false, err
}

func (c *coalescer[T]) wait(ctx context.Context, cl *call[T]) (T, error) {
	waitCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	select {
	case <-cl.done:
		return cl.val, cl.err
	case <-waitCtx.Done():
		var zero T
		return zero, waitCtx.Err()
	}
}
