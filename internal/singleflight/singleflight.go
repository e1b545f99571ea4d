// Package singleflight coalesces concurrent requests for the same frame.
package singleflight

import (
	"context"
	"sync"
)

// Group makes sure that, while a value is being produced for one caller,
// other callers asking for the same key wait for that result instead of
// producing it again.
//
// Concurrency notes:
//   - The production runs in its own goroutine on a context detached from
//     every caller: values are kept but cancellation is not, so one caller
//     giving up never fails the others.
//   - Each call counts its waiters. A waiter whose ctx ends returns
//     ctx.Err() and leaves; when the last waiter leaves, the production ctx
//     is cancelled and the call is dropped, so a later caller starts afresh.
//   - Publishing (val, err) happens-before close(done), so reads after
//     <-done observe the final values.
type Group[K comparable, V any] struct {
	mu    sync.Mutex
	calls map[K]*call[V]
}

type call[V any] struct {
	done   chan struct{} // closed when val/err are published
	val    V
	err    error
	cancel context.CancelFunc

	waiters int // guarded by Group.mu
}

// Do runs fn once for key unless a call for key is already in flight, in
// which case it waits for that call. fn receives the production context,
// which ends only when every waiter has left. shared reports whether the
// call was started by another caller.
func (g *Group[K, V]) Do(ctx context.Context, key K, fn func(ctx context.Context) (V, error)) (val V, shared bool, err error) {
	g.mu.Lock()
	if g.calls == nil {
		g.calls = make(map[K]*call[V])
	}
	c, shared := g.calls[key]
	if !shared {
		pctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		c = &call[V]{done: make(chan struct{}), cancel: cancel}
		g.calls[key] = c
		go g.run(pctx, key, c, fn)
	}
	c.waiters++
	g.mu.Unlock()

	select {
	case <-c.done:
		return c.val, shared, c.err
	case <-ctx.Done():
	}

	g.mu.Lock()
	c.waiters--
	if c.waiters == 0 {
		c.cancel()
		g.forget(key, c)
	}
	g.mu.Unlock()

	var zero V
	return zero, shared, ctx.Err()
}

func (g *Group[K, V]) run(ctx context.Context, key K, c *call[V], fn func(context.Context) (V, error)) {
	defer c.cancel()
	c.val, c.err = fn(ctx)
	close(c.done)

	g.mu.Lock()
	g.forget(key, c)
	g.mu.Unlock()
}

// forget drops c if it is still the call registered for key.
// Caller holds g.mu.
func (g *Group[K, V]) forget(key K, c *call[V]) {
	if g.calls[key] == c {
		delete(g.calls, key)
	}
}

// InFlight returns the number of keys currently being produced.
func (g *Group[K, V]) InFlight() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

// Waiting returns the number of callers waiting on key, 0 when no call for
// key is in flight.
func (g *Group[K, V]) Waiting(key K) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	if c, ok := g.calls[key]; ok {
		return c.waiters
	}
	return 0
}
