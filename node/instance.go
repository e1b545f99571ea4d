package node

import (
	"log/slog"
	"runtime"
	"sync"

	"github.com/google/uuid"

	"github.com/IvanBrykalov/framecache/cache"
	"github.com/IvanBrykalov/framecache/internal/singleflight"
	"github.com/IvanBrykalov/framecache/policy"
	"github.com/IvanBrykalov/framecache/policy/normal"
	"github.com/IvanBrykalov/framecache/policy/pressure"
)

const (
	// NoFrame is LastRequested before the first miss.
	NoFrame = -1
	// NoOrigin is Ticket.Origin for a single-frame request.
	NoOrigin = -2
)

// Instance is a caching node: it sits in front of one upstream clip, serves
// frames from its cache and, on a miss, decides whether to request just the
// frame or to prefetch the gap since the last request in one batch.
//
// Instance is safe for concurrent use. Requests for different frames may be
// in flight at the same time and complete in any order.
type Instance[F any] struct {
	id      uuid.UUID
	name    string
	kind    MediaKind
	cache   *cache.Cache[F]
	linear  bool
	threads int
	window  int // threads + extra frames
	log     *slog.Logger

	normal   policy.Policy
	pressure policy.Policy

	sf singleflight.Group[int, F]

	mu       sync.Mutex
	last     int // guarded by mu
	registry *Registry[F]
}

var _ Filter[struct{}] = (*Instance[struct{}])(nil)

// New builds a caching node. Most callers want Create, which also registers
// the node with an engine.
func New[F any](name string, kind MediaKind, p Params, cfg Config[F]) *Instance[F] {
	threads := cfg.Threads
	if threads <= 0 {
		threads = runtime.GOMAXPROCS(0)
	}
	extra := cfg.ExtraFrames
	if extra <= 0 {
		extra = DefaultExtraFrames
	}
	def := cfg.DefaultSize
	if def <= 0 {
		def = DefaultSize
	}
	m := cfg.Metrics
	if cfg.MetricsFor != nil {
		m = cfg.MetricsFor(name)
	}
	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	return &Instance[F]{
		id:   uuid.New(),
		name: name,
		kind: kind,
		cache: cache.New[F](cache.Options[F]{
			MaxLive:    InitialSize(p, threads, extra, def),
			MaxHistory: cfg.MaxHistory,
			Fixed:      p.Fixed,
			OnRelease:  cfg.OnRelease,
			Metrics:    m,
		}),
		linear:   p.MakeLinear,
		threads:  threads,
		window:   threads + extra,
		log:      log.With("node", name),
		normal:   normal.New(),
		pressure: pressure.New(),
		last:     NoFrame,
	}
}

// Initial is the first activation for frame n. A cached frame is returned
// right away. Otherwise upstream frames are requested through fc and the
// returned Ticket must be passed to AllReady once they are ready.
//
// When the node is linear and n lies a small forward gap past the last
// requested frame, the whole gap is requested as one batch.
func (in *Instance[F]) Initial(n int, fc FrameContext[F]) (F, Ticket, bool) {
	if f, ok := in.cache.Get(n); ok {
		return f, Ticket{Origin: NoOrigin}, true
	}

	in.mu.Lock()
	last := in.last
	t := Ticket{Origin: NoOrigin}
	if in.linear && n > last && n < last+in.window && n != last+1 {
		t = Ticket{Origin: last, Batch: true}
	}
	in.last = n
	in.mu.Unlock()

	if t.Batch {
		in.log.Debug("prefetch", "from", last+1, "to", n)
		for i := last + 1; i <= n; i++ {
			fc.RequestFrame(i)
		}
	} else {
		fc.RequestFrame(n)
	}

	var zero F
	return zero, t, false
}

// AllReady is the second activation for frame n: every frame the ticket's
// batch covered is cached, then frame n itself, which is returned.
func (in *Instance[F]) AllReady(n int, t Ticket, fc FrameContext[F]) F {
	if t.Batch {
		for i := t.Origin + 1; i < n; i++ {
			in.cache.Insert(i, fc.FetchFrame(i))
		}
	}
	f := fc.FetchFrame(n)
	in.cache.Insert(n, f)
	return f
}

// AdjustSize resizes the cache from the accesses seen since the previous
// call. needMemory selects the memory-pressure policy, which never grows.
// The engine decides when to call it; the node has no timer of its own.
func (in *Instance[F]) AdjustSize(needMemory bool) cache.Decision {
	p := in.normal
	if needMemory {
		p = in.pressure
	}
	d := in.cache.Adjust(p)
	in.log.Debug("resize",
		"policy", d.Policy,
		"action", d.Action.String(),
		"total", d.Stats.Total(),
		"hits", d.Stats.Hits,
		"near_misses", d.Stats.NearMisses,
		"far_misses", d.Stats.FarMisses,
		"from", d.From,
		"to", d.To,
	)
	return d
}

// Free drops every cached frame and unregisters the node.
func (in *Instance[F]) Free() {
	in.cache.Clear()

	in.mu.Lock()
	r := in.registry
	in.registry = nil
	in.mu.Unlock()

	if r != nil {
		r.Remove(in)
	}
	in.log.Debug("freed")
}

// ID returns the node's unique identifier.
func (in *Instance[F]) ID() uuid.UUID { return in.id }

// Name returns the node's diagnostic name.
func (in *Instance[F]) Name() string { return in.name }

// Kind returns the media kind.
func (in *Instance[F]) Kind() MediaKind { return in.kind }

// Mode returns the scheduling mode to report to the engine.
func (in *Instance[F]) Mode() FilterMode {
	if in.linear {
		return UnorderedLinear
	}
	return Unordered
}

// Cache exposes the underlying cache.
func (in *Instance[F]) Cache() *cache.Cache[F] { return in.cache }

// Threads returns the engine concurrency the node was sized for.
func (in *Instance[F]) Threads() int { return in.threads }

// Window returns the prefetch window: threads plus extra frames.
func (in *Instance[F]) Window() int { return in.window }

// LastRequested returns the last frame requested upstream, or NoFrame.
func (in *Instance[F]) LastRequested() int {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.last
}
