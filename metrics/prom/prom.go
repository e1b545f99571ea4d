package prom

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/IvanBrykalov/framecache/cache"
	"github.com/IvanBrykalov/framecache/policy"
)

// Adapter exports cache signals as Prometheus counters/gauges, labelled by
// cache node. Safe for concurrent use; all Prometheus metric types are
// goroutine-safe.
//
// Adapter itself implements cache.Metrics for a single unnamed cache; use
// Node to get per-node metrics (it fits node.Config.MetricsFor).
type Adapter struct {
	lookups  *prometheus.CounterVec
	releases *prometheus.CounterVec
	resizes  *prometheus.CounterVec
	live     *prometheus.GaugeVec
	history  *prometheus.GaugeVec
	maxLive  *prometheus.GaugeVec

	def *Node
}

// New constructs a Prometheus metrics adapter.
//   - reg:          registry to register metrics with (nil => prometheus.DefaultRegisterer)
//   - ns, sub:      Prometheus namespace and subsystem
//   - constLabels:  static labels applied to all metrics (may be nil)
func New(reg prometheus.Registerer, ns, sub string, constLabels prometheus.Labels) *Adapter {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	a := &Adapter{
		lookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   sub,
				Name:        "lookups_total",
				Help:        "Cache lookups by outcome (hit, near-miss, far-miss)",
				ConstLabels: constLabels,
			},
			[]string{"node", "outcome"},
		),
		releases: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   sub,
				Name:        "releases_total",
				Help:        "Frames released by reason",
				ConstLabels: constLabels,
			},
			[]string{"node", "reason"},
		),
		resizes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   sub,
				Name:        "resizes_total",
				Help:        "Resize decisions by action",
				ConstLabels: constLabels,
			},
			[]string{"node", "action"},
		),
		live: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace:   ns,
				Subsystem:   sub,
				Name:        "live_entries",
				Help:        "Number of resident frames",
				ConstLabels: constLabels,
			},
			[]string{"node"},
		),
		history: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace:   ns,
				Subsystem:   sub,
				Name:        "history_entries",
				Help:        "Number of weak (frame-less) entries",
				ConstLabels: constLabels,
			},
			[]string{"node"},
		),
		maxLive: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace:   ns,
				Subsystem:   sub,
				Name:        "max_live",
				Help:        "Current live capacity",
				ConstLabels: constLabels,
			},
			[]string{"node"},
		),
	}
	reg.MustRegister(a.lookups, a.releases, a.resizes, a.live, a.history, a.maxLive)
	a.def = a.Node("")
	return a
}

// Node returns the metrics of the named cache node. Children are bound
// once, so the hot path does no label lookups.
func (a *Adapter) Node(name string) *Node {
	return &Node{
		name:     name,
		hits:     a.lookups.WithLabelValues(name, "hit"),
		near:     a.lookups.WithLabelValues(name, "near-miss"),
		far:      a.lookups.WithLabelValues(name, "far-miss"),
		live:     a.live.WithLabelValues(name),
		history:  a.history.WithLabelValues(name),
		maxLive:  a.maxLive.WithLabelValues(name),
		releases: a.releases.MustCurryWith(prometheus.Labels{"node": name}),
		resizes:  a.resizes.MustCurryWith(prometheus.Labels{"node": name}),
	}
}

// Forget drops every series of the named node, e.g. after the node is freed.
func (a *Adapter) Forget(name string) {
	l := prometheus.Labels{"node": name}
	a.lookups.DeletePartialMatch(l)
	a.releases.DeletePartialMatch(l)
	a.resizes.DeletePartialMatch(l)
	a.live.DeletePartialMatch(l)
	a.history.DeletePartialMatch(l)
	a.maxLive.DeletePartialMatch(l)
}

// The cache.Metrics methods of Adapter report as the unnamed node.
func (a *Adapter) Hit()                                  { a.def.Hit() }
func (a *Adapter) NearMiss()                             { a.def.NearMiss() }
func (a *Adapter) FarMiss()                              { a.def.FarMiss() }
func (a *Adapter) Release(r cache.ReleaseReason)         { a.def.Release(r) }
func (a *Adapter) Size(live, history int)                { a.def.Size(live, history) }
func (a *Adapter) Resize(act policy.Action, maxLive int) { a.def.Resize(act, maxLive) }

// Node is the per-node view of an Adapter.
type Node struct {
	name string

	hits, near, far prometheus.Counter
	live, history   prometheus.Gauge
	maxLive         prometheus.Gauge

	releases *prometheus.CounterVec
	resizes  *prometheus.CounterVec
}

// Name returns the node label value.
func (n *Node) Name() string { return n.name }

// Hit increments the hit counter.
func (n *Node) Hit() { n.hits.Inc() }

// NearMiss increments the near-miss counter.
func (n *Node) NearMiss() { n.near.Inc() }

// FarMiss increments the far-miss counter.
func (n *Node) FarMiss() { n.far.Inc() }

// Release increments the release counter with a reason label.
func (n *Node) Release(r cache.ReleaseReason) {
	n.releases.WithLabelValues(r.String()).Inc()
}

// Size updates the live and history gauges.
func (n *Node) Size(live, history int) {
	n.live.Set(float64(live))
	n.history.Set(float64(history))
}

// Resize counts a resize decision and records the new capacity.
func (n *Node) Resize(act policy.Action, maxLive int) {
	n.resizes.WithLabelValues(act.String()).Inc()
	n.maxLive.Set(float64(maxLive))
}

// Compile-time checks: ensure Adapter and Node implement cache.Metrics.
var (
	_ cache.Metrics = (*Adapter)(nil)
	_ cache.Metrics = (*Node)(nil)
)
