package cache

import "github.com/IvanBrykalov/framecache/policy"

// NoopMetrics is a drop-in Metrics implementation that does nothing.
// It is used when no observability backend is configured.
type NoopMetrics struct{}

func (NoopMetrics) Hit()                      {}
func (NoopMetrics) NearMiss()                 {}
func (NoopMetrics) FarMiss()                  {}
func (NoopMetrics) Release(ReleaseReason)     {}
func (NoopMetrics) Size(live, history int)    {}
func (NoopMetrics) Resize(policy.Action, int) {}

// Ensure NoopMetrics implements the Metrics interface at compile time.
var _ Metrics = NoopMetrics{}
