// Package node plugs a frame cache into a graph-execution engine.
//
// A node sits between an upstream clip and its consumers. The engine
// activates it twice per missing frame: Initial either answers from the
// cache or requests upstream frames, and AllReady caches what arrived.
//
// Linear nodes (Params.MakeLinear) prefetch: when the requested frame is a
// small forward jump past the last one requested, the whole gap is fetched
// in one batch so later sequential requests hit.
//
// Basic usage:
//
//	reg := node.NewRegistry[*Frame]()
//	n, err := node.Create[*Frame](eng, node.Video,
//		node.Params{MakeLinear: true},
//		node.Config[*Frame]{Registry: reg, Logger: slog.Default()})
//	if err != nil { ... }
//
//	// periodically, or when the engine is short of memory:
//	reg.AdjustAll(needMemory)
//
// Callers that do not run an engine can use Instance.Frame with a Producer.
package node
