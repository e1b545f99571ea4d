package node

import (
	"log/slog"

	"github.com/IvanBrykalov/framecache/cache"
)

const (
	// DefaultExtraFrames is how many frames beyond the thread count the
	// prefetch window allows, to absorb out-of-order completion of upstream
	// filters with a temporal radius.
	DefaultExtraFrames = 7

	// DefaultSize is the initial live capacity of a non-linear node.
	DefaultSize = 20
)

// Params are the per-node construction parameters.
type Params struct {
	// Size is the initial live capacity; <= 0 means unset.
	Size int
	// Fixed disables adaptive resizing.
	Fixed bool
	// MakeLinear declares mostly sequential access and enables batch prefetch.
	MakeLinear bool
}

// Config carries engine-wide settings shared by cache nodes. Zero values are
// safe; defaults are applied in New():
//   - Threads <= 0     => runtime.GOMAXPROCS(0) (Create asks the engine)
//   - ExtraFrames <= 0 => DefaultExtraFrames
//   - DefaultSize <= 0 => DefaultSize
//   - MaxHistory == 0  => cache.DefaultMaxHistory
//   - nil Metrics      => cache.NoopMetrics
//   - nil Logger       => discard
type Config[F any] struct {
	Threads     int
	ExtraFrames int
	DefaultSize int
	MaxHistory  int

	// Metrics receives the cache signals of every node built from this
	// Config. MetricsFor, if set, takes precedence and is called with the
	// node name, so nodes can be told apart.
	Metrics    cache.Metrics
	MetricsFor func(name string) cache.Metrics

	// OnRelease is called for every frame a node's cache lets go of.
	OnRelease func(n int, f F, reason cache.ReleaseReason)

	// Registry, if set, tracks nodes made by Create for AdjustAll.
	Registry *Registry[F]

	Logger *slog.Logger
}

// InitialSize returns the initial live capacity for a node: the explicit
// size when given, otherwise enough to cover the prefetch window twice for
// linear nodes, otherwise def.
func InitialSize(p Params, threads, extra, def int) int {
	switch {
	case p.Size > 0:
		return p.Size
	case p.MakeLinear:
		return max((threads+extra)*2, def+threads)
	default:
		return def
	}
}
