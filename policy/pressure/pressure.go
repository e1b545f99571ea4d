// Package pressure implements the resize policy used while the engine
// reports memory pressure. It never grows a cache and shrinks more
// aggressively than policy/normal.
package pressure

import "github.com/IvanBrykalov/framecache/policy"

type pressure struct{}

// New returns the memory-pressure resize policy.
func New() policy.Policy { return pressure{} }

func (pressure) Name() string { return "pressure" }

// Apply ignores Grow. NoChange still shrinks by one, floored at 1 so the
// cache does not bounce through zero capacity; a cache already at 1 or
// below is cleared first.
func (pressure) Apply(a policy.Action, maxLive int) policy.Resize {
	switch a {
	case policy.Clear:
		return policy.Resize{MaxLive: max(maxLive-2, 0), Clear: true}
	case policy.Shrink:
		return policy.Resize{MaxLive: max(maxLive-2, 0)}
	case policy.NoChange:
		return policy.Resize{MaxLive: max(maxLive-1, 1), Clear: maxLive <= 1}
	default:
		return policy.Resize{MaxLive: maxLive}
	}
}
