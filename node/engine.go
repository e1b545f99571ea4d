package node

import "context"

// MediaKind is the kind of frames a node produces.
type MediaKind int

const (
	Video MediaKind = iota
	Audio
)

func (k MediaKind) String() string {
	if k == Audio {
		return "audio"
	}
	return "video"
}

// namePrefix is the diagnostic name prefix of cache nodes of this kind.
func (k MediaKind) namePrefix() string {
	if k == Audio {
		return "AudioCache"
	}
	return "VideoCache"
}

// FilterMode tells the engine how a node wants to be scheduled.
type FilterMode int

const (
	// Unordered: requests may be served in any order.
	Unordered FilterMode = iota
	// UnorderedLinear: as Unordered, but the consumer mostly walks forward,
	// so the engine may order or batch work accordingly.
	UnorderedLinear
)

func (m FilterMode) String() string {
	if m == UnorderedLinear {
		return "unordered-linear"
	}
	return "unordered"
}

// FrameContext is the engine's handle for one activation of a node.
type FrameContext[F any] interface {
	// RequestFrame asks for frame n of the upstream clip. It does not block;
	// the engine activates the node again once every requested frame is ready.
	RequestFrame(n int)
	// FetchFrame returns a requested frame after it became ready.
	// Fetching a frame that is not ready is a programming error.
	FetchFrame(n int) F
}

// Ticket carries what the first activation decided to the second one.
type Ticket struct {
	// Origin is the last requested frame before a batch; the batch covers
	// (Origin, n]. NoOrigin when a single frame was requested.
	Origin int
	// Batch reports whether a gap was prefetched.
	Batch bool
}

// Filter is what the engine drives for a node: an initial activation that
// either answers immediately or requests upstream frames, and a second
// activation once all requested frames are ready.
type Filter[F any] interface {
	Initial(n int, fc FrameContext[F]) (F, Ticket, bool)
	AllReady(n int, t Ticket, fc FrameContext[F]) F
	// Free releases the node's resources when the engine drops it.
	Free()
}

// FilterSpec describes a node to register with the engine.
type FilterSpec[F any] struct {
	Name   string
	Kind   MediaKind
	Mode   FilterMode
	Filter Filter[F]
}

// Engine is the graph-execution engine a cache node plugs into.
type Engine[F any] interface {
	// Threads returns the engine's degree of concurrency.
	Threads() int
	// CreateFilter registers a node.
	CreateFilter(spec FilterSpec[F]) error
}

// Producer produces upstream frames for the synchronous Instance.Frame path.
// It must be safe for concurrent use.
type Producer[F any] interface {
	Produce(ctx context.Context, n int) (F, error)
}

// ProducerFunc adapts a function to Producer.
type ProducerFunc[F any] func(ctx context.Context, n int) (F, error)

func (f ProducerFunc[F]) Produce(ctx context.Context, n int) (F, error) { return f(ctx, n) }
