package node

import (
	"fmt"
	"sync/atomic"
)

// nodeSeq numbers cache nodes process-wide for their diagnostic names.
var nodeSeq atomic.Uint64

// Create builds a cache node and registers it with eng under the name
// VideoCache<N> or AudioCache<N>. cfg.Threads defaults to eng.Threads().
// On success the node is also added to cfg.Registry, if any.
func Create[F any](eng Engine[F], kind MediaKind, p Params, cfg Config[F]) (*Instance[F], error) {
	if eng == nil {
		panic("node: nil engine")
	}
	if cfg.Threads <= 0 {
		cfg.Threads = eng.Threads()
	}
	name := fmt.Sprintf("%s%d", kind.namePrefix(), nodeSeq.Add(1))

	in := New(name, kind, p, cfg)
	err := eng.CreateFilter(FilterSpec[F]{
		Name:   name,
		Kind:   kind,
		Mode:   in.Mode(),
		Filter: in,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrEngine, name, err)
	}
	if cfg.Registry != nil {
		cfg.Registry.Add(in)
	}

	in.log.Info("cache node created",
		"id", in.id.String(),
		"kind", kind.String(),
		"mode", in.Mode().String(),
		"max_live", in.cache.MaxLive(),
		"fixed", p.Fixed,
		"window", in.window,
	)
	return in, nil
}
