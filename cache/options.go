package cache

import "github.com/IvanBrykalov/framecache/policy"

// DefaultMaxHistory is the history bound used when Options.MaxHistory is 0.
const DefaultMaxHistory = 20

// ReleaseReason explains why a live frame was dropped from the cache.
type ReleaseReason int

const (
	// ReleaseDemote: the entry was demoted to history by capacity trimming.
	ReleaseDemote ReleaseReason = iota
	// ReleaseReplace: the same frame number was inserted again.
	ReleaseReplace
	// ReleaseRemove: removed explicitly by frame number.
	ReleaseRemove
	// ReleasePurge: a live tail entry was dropped while enforcing the history bound.
	ReleasePurge
	// ReleaseClear: the whole cache was cleared.
	ReleaseClear
)

func (r ReleaseReason) String() string {
	switch r {
	case ReleaseDemote:
		return "demote"
	case ReleaseReplace:
		return "replace"
	case ReleaseRemove:
		return "remove"
	case ReleasePurge:
		return "purge"
	case ReleaseClear:
		return "clear"
	default:
		return "unknown"
	}
}

// Metrics exposes cache-level observability hooks.
// Hooks are called with the cache lock held; keep them cheap.
// A NoopMetrics implementation is provided and used by default.
type Metrics interface {
	Hit()
	NearMiss()
	FarMiss()
	Release(reason ReleaseReason)
	Size(live, history int)
	Resize(a policy.Action, maxLive int)
}

// Options configures a Cache. Zero values are safe; defaults are applied in New():
//   - MaxHistory == 0 => DefaultMaxHistory (negative => no history at all)
//   - nil Metrics     => NoopMetrics
type Options[F any] struct {
	// MaxLive is the initial number of frames kept resident. Must be >= 0.
	MaxLive int

	// MaxHistory bounds the number of weak (frame-less) entries kept to tell
	// near-misses from far-misses.
	MaxHistory int

	// Fixed disables Adjust; the capacity only changes via SetMaxLive.
	Fixed bool

	// OnRelease is called whenever a live frame leaves the cache, so the
	// owner can drop its reference. Called under the cache lock.
	OnRelease func(n int, f F, reason ReleaseReason)

	Metrics Metrics
}
