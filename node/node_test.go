package node

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/IvanBrykalov/framecache/policy"
)

// fakeContext records requests and serves n*10 for any fetched frame.
type fakeContext struct {
	requested []int
	fetched   []int
}

func (fc *fakeContext) RequestFrame(n int) { fc.requested = append(fc.requested, n) }

func (fc *fakeContext) FetchFrame(n int) int {
	fc.fetched = append(fc.fetched, n)
	return n * 10
}

type fakeEngine struct {
	threads int
	err     error
	specs   []FilterSpec[int]
}

func (e *fakeEngine) Threads() int { return e.threads }

func (e *fakeEngine) CreateFilter(spec FilterSpec[int]) error {
	if e.err != nil {
		return e.err
	}
	e.specs = append(e.specs, spec)
	return nil
}

func newLinear(t *testing.T) *Instance[int] {
	t.Helper()
	in := New[int]("test", Video, Params{MakeLinear: true}, Config[int]{Threads: 4})
	require.Equal(t, 11, in.Window())
	return in
}

// serve runs both activations for n, as an engine would.
func serve(in *Instance[int], n int) (*fakeContext, Ticket) {
	fc := &fakeContext{}
	_, t, ok := in.Initial(n, fc)
	if !ok {
		in.AllReady(n, t, fc)
	}
	return fc, t
}

func TestInitialSize(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name    string
		p       Params
		threads int
		want    int
	}{
		{"explicit", Params{Size: 5, MakeLinear: true}, 4, 5},
		{"default", Params{}, 4, DefaultSize},
		{"linear window", Params{MakeLinear: true}, 8, 30},
		{"linear floor", Params{MakeLinear: true}, 4, 24},
		{"single thread", Params{MakeLinear: true}, 1, 21},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := InitialSize(tc.p, tc.threads, DefaultExtraFrames, DefaultSize)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestInstance_Defaults(t *testing.T) {
	t.Parallel()
	in := New[int]("n", Audio, Params{}, Config[int]{Threads: 2})
	require.Equal(t, NoFrame, in.LastRequested())
	require.Equal(t, Unordered, in.Mode())
	require.Equal(t, Audio, in.Kind())
	require.Equal(t, DefaultSize, in.Cache().MaxLive())
	require.Equal(t, 2+DefaultExtraFrames, in.Window())
	require.Equal(t, 2, in.Threads())
}

func TestInitial_Scheduling(t *testing.T) {
	t.Parallel()

	t.Run("first request is single", func(t *testing.T) {
		in := newLinear(t)
		fc, tk := serve(in, 10)
		require.Equal(t, []int{10}, fc.requested)
		require.False(t, tk.Batch)
		require.Equal(t, NoOrigin, tk.Origin)
		require.Equal(t, 10, in.LastRequested())
	})

	t.Run("gap inside window is batched", func(t *testing.T) {
		in := newLinear(t)
		serve(in, 10)
		fc, tk := serve(in, 15)
		require.Equal(t, []int{11, 12, 13, 14, 15}, fc.requested)
		require.Equal(t, Ticket{Origin: 10, Batch: true}, tk)
		require.Equal(t, 15, in.LastRequested())
	})

	t.Run("jump past window is single", func(t *testing.T) {
		in := newLinear(t)
		serve(in, 10)
		fc, tk := serve(in, 25)
		require.Equal(t, []int{25}, fc.requested)
		require.False(t, tk.Batch)
	})

	t.Run("window bound is exclusive", func(t *testing.T) {
		in := newLinear(t)
		serve(in, 10)
		fc, _ := serve(in, 21)
		require.Equal(t, []int{21}, fc.requested)

		fc, tk := serve(in, 31)
		require.Equal(t, []int{22, 23, 24, 25, 26, 27, 28, 29, 30, 31}, fc.requested)
		require.Equal(t, 21, tk.Origin)
	})

	t.Run("next frame is single", func(t *testing.T) {
		in := newLinear(t)
		serve(in, 10)
		fc, tk := serve(in, 11)
		require.Equal(t, []int{11}, fc.requested)
		require.False(t, tk.Batch)
	})

	t.Run("backward request is single", func(t *testing.T) {
		in := newLinear(t)
		serve(in, 10)
		fc, _ := serve(in, 5)
		require.Equal(t, []int{5}, fc.requested)
		require.Equal(t, 5, in.LastRequested())
	})

	t.Run("non-linear never batches", func(t *testing.T) {
		in := New[int]("n", Video, Params{}, Config[int]{Threads: 4})
		serve(in, 10)
		fc, tk := serve(in, 15)
		require.Equal(t, []int{15}, fc.requested)
		require.False(t, tk.Batch)
	})

	t.Run("hit requests nothing", func(t *testing.T) {
		in := newLinear(t)
		serve(in, 10)
		fc := &fakeContext{}
		f, _, ok := in.Initial(10, fc)
		require.True(t, ok)
		require.Equal(t, 100, f)
		require.Empty(t, fc.requested)
		require.Equal(t, 10, in.LastRequested())
	})
}

func TestAllReady_CachesBatch(t *testing.T) {
	t.Parallel()
	in := newLinear(t)
	serve(in, 10)
	fc, tk := serve(in, 15)
	require.True(t, tk.Batch)
	require.Equal(t, []int{11, 12, 13, 14, 15}, fc.fetched)

	keys := slices.Collect(in.Cache().Keys())
	require.Equal(t, []int{15, 14, 13, 12, 11, 10}, keys)

	// Sequential reads inside the prefetched gap now hit.
	for n := 11; n <= 15; n++ {
		fc := &fakeContext{}
		f, _, ok := in.Initial(n, fc)
		require.True(t, ok, "frame %d", n)
		require.Equal(t, n*10, f)
	}
	require.Equal(t, 15, in.LastRequested())
}

func TestAdjustSize(t *testing.T) {
	t.Parallel()

	t.Run("idle node is cleared", func(t *testing.T) {
		in := New[int]("n", Video, Params{Size: 10}, Config[int]{Threads: 1})
		d := in.AdjustSize(false)
		require.Equal(t, policy.Clear, d.Action)
		require.Equal(t, "normal", d.Policy)
		require.Equal(t, 8, d.To)
		require.True(t, d.Cleared)
	})

	t.Run("pressure shrinks steady node", func(t *testing.T) {
		in := New[int]("n", Video, Params{Size: 10}, Config[int]{Threads: 1})
		in.Cache().Insert(1, 10)
		for range policy.MinSamples {
			_, ok := in.Cache().Get(1)
			require.True(t, ok)
		}
		d := in.AdjustSize(true)
		require.Equal(t, policy.NoChange, d.Action)
		require.Equal(t, "pressure", d.Policy)
		require.Equal(t, 9, d.To)
		require.False(t, d.Cleared)
		require.Equal(t, 1, in.Cache().Len())
	})

	t.Run("fixed node keeps its size", func(t *testing.T) {
		in := New[int]("n", Video, Params{Size: 10, Fixed: true}, Config[int]{Threads: 1})
		d := in.AdjustSize(true)
		require.Equal(t, 10, d.From)
		require.Equal(t, 10, d.To)
		require.Equal(t, 10, in.Cache().MaxLive())
	})
}

func TestCreate(t *testing.T) {
	t.Parallel()

	t.Run("registers with engine", func(t *testing.T) {
		var buf bytes.Buffer
		eng := &fakeEngine{threads: 4}
		reg := NewRegistry[int]()
		in, err := Create[int](eng, Video, Params{MakeLinear: true}, Config[int]{
			Registry: reg,
			Logger:   slog.New(slog.NewTextHandler(&buf, nil)),
		})
		require.NoError(t, err)
		require.Regexp(t, `^VideoCache\d+$`, in.Name())
		require.Equal(t, 4, in.Threads())
		require.Equal(t, 24, in.Cache().MaxLive())

		require.Len(t, eng.specs, 1)
		spec := eng.specs[0]
		require.Equal(t, in.Name(), spec.Name)
		require.Equal(t, UnorderedLinear, spec.Mode)
		require.Same(t, in, spec.Filter.(*Instance[int]))

		got, ok := reg.Get(in.ID())
		require.True(t, ok)
		require.Same(t, in, got)
		require.Contains(t, buf.String(), "cache node created")
	})

	t.Run("names are unique", func(t *testing.T) {
		eng := &fakeEngine{threads: 1}
		a, err := Create[int](eng, Audio, Params{}, Config[int]{})
		require.NoError(t, err)
		b, err := Create[int](eng, Audio, Params{}, Config[int]{})
		require.NoError(t, err)
		require.Regexp(t, `^AudioCache\d+$`, a.Name())
		require.NotEqual(t, a.Name(), b.Name())
		require.NotEqual(t, a.ID(), b.ID())
		require.Equal(t, Unordered, eng.specs[0].Mode)
	})

	t.Run("engine error", func(t *testing.T) {
		errRejected := errors.New("rejected")
		reg := NewRegistry[int]()
		in, err := Create[int](&fakeEngine{threads: 1, err: errRejected}, Video, Params{}, Config[int]{Registry: reg})
		require.Nil(t, in)
		require.ErrorIs(t, err, ErrEngine)
		require.ErrorIs(t, err, errRejected)
		require.Zero(t, reg.Len())
	})
}

func TestRegistry(t *testing.T) {
	t.Parallel()
	reg := NewRegistry[int]()
	eng := &fakeEngine{threads: 1}
	cfg := Config[int]{Registry: reg}

	a, err := Create[int](eng, Video, Params{Size: 10}, cfg)
	require.NoError(t, err)
	b, err := Create[int](eng, Video, Params{Size: 10, Fixed: true}, cfg)
	require.NoError(t, err)
	require.Equal(t, 2, reg.Len())

	a.Cache().Insert(1, 10)
	b.Cache().Insert(1, 10)
	for range policy.MinSamples {
		a.Cache().Get(1)
	}

	ds := reg.AdjustAll(true)
	require.Len(t, ds, 2)
	require.Equal(t, 9, ds[a.Name()].To)
	require.Equal(t, 10, ds[b.Name()].To)

	a.Free()
	require.Equal(t, 1, reg.Len())
	require.Zero(t, a.Cache().Len())
	_, ok := reg.Get(a.ID())
	require.False(t, ok)

	// Free is idempotent.
	a.Free()
	require.Equal(t, 1, reg.Len())
}

func TestFrame(t *testing.T) {
	t.Parallel()

	t.Run("produces and prefetches", func(t *testing.T) {
		var calls atomic.Int64
		p := ProducerFunc[int](func(_ context.Context, n int) (int, error) {
			calls.Add(1)
			return n * 10, nil
		})
		in := newLinear(t)
		ctx := context.Background()

		f, err := in.Frame(ctx, 10, p)
		require.NoError(t, err)
		require.Equal(t, 100, f)

		f, err = in.Frame(ctx, 15, p)
		require.NoError(t, err)
		require.Equal(t, 150, f)
		require.EqualValues(t, 6, calls.Load())

		for n := 11; n <= 15; n++ {
			f, err := in.Frame(ctx, n, p)
			require.NoError(t, err)
			require.Equal(t, n*10, f)
		}
		require.EqualValues(t, 6, calls.Load())
	})

	t.Run("bad arguments", func(t *testing.T) {
		in := newLinear(t)
		_, err := in.Frame(context.Background(), 1, nil)
		require.ErrorIs(t, err, ErrNoProducer)

		p := ProducerFunc[int](func(context.Context, int) (int, error) { return 1, nil })
		_, err = in.Frame(context.Background(), -1, p)
		require.ErrorIs(t, err, ErrInvalidFrame)
	})

	t.Run("producer error", func(t *testing.T) {
		errBoom := errors.New("boom")
		p := ProducerFunc[int](func(_ context.Context, n int) (int, error) {
			if n == 13 {
				return 0, errBoom
			}
			return n * 10, nil
		})
		in := newLinear(t)
		_, err := in.Frame(context.Background(), 10, p)
		require.NoError(t, err)

		_, err = in.Frame(context.Background(), 15, p)
		require.ErrorIs(t, err, errBoom)
		var fe *FrameError
		require.ErrorAs(t, err, &fe)
		require.Equal(t, 13, fe.N)

		// Nothing from the failed batch is cached.
		require.Equal(t, []int{10}, slices.Collect(in.Cache().Keys()))
	})

	t.Run("coalesces concurrent callers", func(t *testing.T) {
		var calls atomic.Int64
		gate := make(chan struct{})
		p := ProducerFunc[int](func(_ context.Context, n int) (int, error) {
			calls.Add(1)
			<-gate
			return n * 10, nil
		})
		in := New[int]("n", Video, Params{}, Config[int]{Threads: 4})

		var g errgroup.Group
		var mu sync.Mutex
		var got []int
		for range 8 {
			g.Go(func() error {
				f, err := in.Frame(context.Background(), 3, p)
				mu.Lock()
				got = append(got, f)
				mu.Unlock()
				return err
			})
		}
		require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, time.Millisecond)
		close(gate)
		require.NoError(t, g.Wait())

		require.EqualValues(t, 1, calls.Load())
		require.Len(t, got, 8)
		for _, f := range got {
			require.Equal(t, 30, f)
		}
	})

	t.Run("caller cancel does not fail others", func(t *testing.T) {
		started := make(chan struct{})
		release := make(chan struct{})
		p := ProducerFunc[int](func(ctx context.Context, n int) (int, error) {
			close(started)
			select {
			case <-release:
				return n * 10, nil
			case <-ctx.Done():
				return 0, ctx.Err()
			}
		})
		in := New[int]("n", Video, Params{}, Config[int]{Threads: 4})

		lctx, cancel := context.WithCancel(context.Background())
		leaderErr := make(chan error, 1)
		go func() {
			_, err := in.Frame(lctx, 3, p)
			leaderErr <- err
		}()
		<-started

		type result struct {
			f   int
			err error
		}
		follower := make(chan result, 1)
		go func() {
			f, err := in.Frame(context.Background(), 3, p)
			follower <- result{f, err}
		}()
		require.Eventually(t, func() bool { return in.sf.Waiting(3) == 2 }, time.Second, time.Millisecond)

		cancel()
		require.ErrorIs(t, <-leaderErr, context.Canceled)
		close(release)

		r := <-follower
		require.NoError(t, r.err)
		require.Equal(t, 30, r.f)
		require.Equal(t, []int{3}, slices.Collect(in.Cache().Keys()))
	})

	t.Run("abandoned frame is produced again", func(t *testing.T) {
		var calls atomic.Int64
		started := make(chan struct{})
		p := ProducerFunc[int](func(ctx context.Context, n int) (int, error) {
			if calls.Add(1) == 1 {
				close(started)
				<-ctx.Done()
				return 0, ctx.Err()
			}
			return n * 10, nil
		})
		in := New[int]("n", Video, Params{}, Config[int]{Threads: 4})

		ctx, cancel := context.WithCancel(context.Background())
		errc := make(chan error, 1)
		go func() {
			_, err := in.Frame(ctx, 4, p)
			errc <- err
		}()
		<-started
		cancel()
		require.ErrorIs(t, <-errc, context.Canceled)

		f, err := in.Frame(context.Background(), 4, p)
		require.NoError(t, err)
		require.Equal(t, 40, f)
		require.EqualValues(t, 2, calls.Load())
	})
}

func TestInstance_ConcurrentServe(t *testing.T) {
	t.Parallel()
	in := New[int]("n", Video, Params{MakeLinear: true, Size: 16}, Config[int]{Threads: 4})
	p := ProducerFunc[int](func(_ context.Context, n int) (int, error) { return n*10 + 1, nil })

	var g errgroup.Group
	for w := range 8 {
		g.Go(func() error {
			for i := range 200 {
				n := (i + w*3) % 64
				f, err := in.Frame(context.Background(), n, p)
				if err != nil {
					return err
				}
				if f != n*10+1 {
					return errors.New("wrong frame")
				}
				if i%50 == 0 {
					in.AdjustSize(w%2 == 0)
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	require.LessOrEqual(t, in.Cache().Len(), in.Cache().MaxLive())
}
