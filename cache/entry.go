package cache

import "github.com/IvanBrykalov/framecache/policy"

// nilIdx marks an absent arena index (no neighbour, unset cursor).
const nilIdx int32 = -1

// entry is one slot of the arena owned by a Cache.
// It is either live (frame present) or weak (history: key only).
type entry[F any] struct {
	key   int
	frame F
	live  bool

	// Recency links by arena index: prev points toward the head
	// (more recent), next toward the tail (older).
	prev int32
	next int32
}

// Outcome classifies a lookup.
type Outcome int

const (
	// FarMiss: the frame number is unknown, never cached or aged out of history.
	FarMiss Outcome = iota
	// NearMiss: the frame was evicted recently and only its key remains.
	NearMiss
	// Hit: the frame is resident.
	Hit
)

func (o Outcome) String() string {
	switch o {
	case Hit:
		return "hit"
	case NearMiss:
		return "near-miss"
	default:
		return "far-miss"
	}
}

// Decision reports what Adjust did.
type Decision struct {
	Action  policy.Action
	Stats   policy.Stats
	Policy  string
	From    int // MaxLive before
	To      int // MaxLive after
	Cleared bool
}
