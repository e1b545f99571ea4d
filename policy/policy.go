// Package policy decides how a frame cache should be resized.
//
// A decision is made in two steps. Recommend turns the access statistics a
// cache accumulated since the previous decision into an Action. A Policy then
// translates that Action into a new live capacity. Two policies are provided:
// policy/normal for regular operation and policy/pressure for when the
// engine reports memory pressure.
package policy

const (
	// MinSamples is the number of accesses needed before Recommend acts.
	MinSamples = 30

	// NearMissRatio: grow when NearMisses*NearMissRatio >= total,
	// i.e. when at least 5% of accesses were near-misses.
	NearMissRatio = 20
)

// Action is a resize recommendation.
type Action int

const (
	// NoChange keeps the current capacity.
	NoChange Action = iota
	// Clear drops everything; the cache saw no traffic at all.
	Clear
	// Grow enlarges the cache; recently evicted frames are being asked for.
	Grow
	// Shrink reduces the cache; accesses look like a scan it cannot help.
	Shrink
)

func (a Action) String() string {
	switch a {
	case Clear:
		return "clear"
	case Grow:
		return "grow"
	case Shrink:
		return "shrink"
	default:
		return "nochange"
	}
}

// Stats are the access counters a cache accumulates between decisions.
type Stats struct {
	Hits       int
	NearMisses int
	FarMisses  int
}

// Total returns the number of classified accesses.
func (s Stats) Total() int { return s.Hits + s.NearMisses + s.FarMisses }

// Resize is what a Policy wants done to a cache.
type Resize struct {
	// MaxLive is the new live capacity.
	MaxLive int
	// Clear requests that every entry be dropped before MaxLive is applied.
	Clear bool
}

// Policy maps an Action to a new capacity.
// Implementations are stateless and safe for concurrent use.
type Policy interface {
	Name() string
	Apply(a Action, maxLive int) Resize
}

// Recommend classifies the statistics into an Action.
// Resetting the counters afterwards is the caller's job.
func Recommend(s Stats) Action {
	total := s.Total()
	if total == 0 {
		return Clear
	}
	if total < MinSamples {
		return NoChange
	}

	grow := s.NearMisses*NearMissRatio >= total
	shrink := s.NearMisses == 0 && s.Hits == 0

	switch {
	case grow:
		return Grow
	case shrink:
		return Shrink
	default:
		return NoChange
	}
}
