// Package normal implements the resize policy used under regular operation.
package normal

import "github.com/IvanBrykalov/framecache/policy"

type normal struct{}

// New returns the normal resize policy.
func New() policy.Policy { return normal{} }

func (normal) Name() string { return "normal" }

// Apply grows by two on Grow, shrinks by one on Shrink and clears with a
// shrink of two when the cache was idle.
func (normal) Apply(a policy.Action, maxLive int) policy.Resize {
	switch a {
	case policy.Clear:
		return policy.Resize{MaxLive: max(maxLive-2, 0), Clear: true}
	case policy.Grow:
		return policy.Resize{MaxLive: maxLive + 2}
	case policy.Shrink:
		return policy.Resize{MaxLive: max(maxLive-1, 0)}
	default:
		return policy.Resize{MaxLive: maxLive}
	}
}
