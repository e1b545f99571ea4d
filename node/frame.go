package node

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Frame returns frame n, producing it through p on a miss. It is the
// synchronous form of Initial followed by AllReady, for callers that drive
// the node directly rather than through an engine:
//
//   - concurrent calls for the same n are coalesced; each caller stops
//     waiting when its own ctx ends, and production is cancelled only once
//     every caller for n has given up;
//   - the frames Initial requests (one, or a prefetch batch) are produced
//     concurrently, at most Threads at a time;
//   - a producer error is returned wrapped in *FrameError and nothing from
//     the failed batch is cached. There are no retries.
func (in *Instance[F]) Frame(ctx context.Context, n int, p Producer[F]) (F, error) {
	var zero F
	if p == nil {
		return zero, ErrNoProducer
	}
	if n < 0 {
		return zero, fmt.Errorf("%w: %d", ErrInvalidFrame, n)
	}
	f, _, err := in.sf.Do(ctx, n, func(ctx context.Context) (F, error) {
		return in.produce(ctx, n, p)
	})
	return f, err
}

func (in *Instance[F]) produce(ctx context.Context, n int, p Producer[F]) (F, error) {
	rs := &readySet[F]{frames: make(map[int]F)}
	f, t, ok := in.Initial(n, rs)
	if ok {
		return f, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(in.threads)
	for _, i := range rs.requested {
		g.Go(func() error {
			f, err := p.Produce(gctx, i)
			if err != nil {
				return &FrameError{N: i, Err: err}
			}
			rs.ready(i, f)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		var zero F
		return zero, err
	}
	return in.AllReady(n, t, rs), nil
}

// readySet is an in-process FrameContext: it records requests and holds
// produced frames until AllReady fetches them.
type readySet[F any] struct {
	requested []int

	mu     sync.Mutex
	frames map[int]F
}

func (rs *readySet[F]) RequestFrame(n int) { rs.requested = append(rs.requested, n) }

func (rs *readySet[F]) ready(n int, f F) {
	rs.mu.Lock()
	rs.frames[n] = f
	rs.mu.Unlock()
}

func (rs *readySet[F]) FetchFrame(n int) F {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	f, ok := rs.frames[n]
	if !ok {
		panic(fmt.Sprintf("node: frame %d fetched before it was ready", n))
	}
	return f
}
