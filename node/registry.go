package node

import (
	"sync"

	"github.com/google/uuid"

	"github.com/IvanBrykalov/framecache/cache"
)

// Registry tracks live cache nodes so an engine can resize all of them in
// one pass, for instance when it is asked to release memory.
type Registry[F any] struct {
	mu    sync.RWMutex
	nodes map[uuid.UUID]*Instance[F]
}

// NewRegistry returns an empty Registry.
func NewRegistry[F any]() *Registry[F] {
	return &Registry[F]{nodes: make(map[uuid.UUID]*Instance[F])}
}

// Add registers in. Instance.Free unregisters it again.
func (r *Registry[F]) Add(in *Instance[F]) {
	r.mu.Lock()
	r.nodes[in.id] = in
	r.mu.Unlock()

	in.mu.Lock()
	in.registry = r
	in.mu.Unlock()
}

// Remove unregisters in. Removing an unknown node is a no-op.
func (r *Registry[F]) Remove(in *Instance[F]) {
	r.mu.Lock()
	delete(r.nodes, in.id)
	r.mu.Unlock()
}

// Get returns the node with the given id.
func (r *Registry[F]) Get(id uuid.UUID) (*Instance[F], bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	in, ok := r.nodes[id]
	return in, ok
}

// Len returns the number of registered nodes.
func (r *Registry[F]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.nodes)
}

// AdjustAll calls AdjustSize on every registered node and returns the
// decisions keyed by node name. Nodes are resized outside the registry lock.
func (r *Registry[F]) AdjustAll(needMemory bool) map[string]cache.Decision {
	r.mu.RLock()
	nodes := make([]*Instance[F], 0, len(r.nodes))
	for _, in := range r.nodes {
		nodes = append(nodes, in)
	}
	r.mu.RUnlock()

	out := make(map[string]cache.Decision, len(nodes))
	for _, in := range nodes {
		out[in.name] = in.AdjustSize(needMemory)
	}
	return out
}
