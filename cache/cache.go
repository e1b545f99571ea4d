package cache

import (
	"fmt"
	"iter"
	"reflect"
	"sync"

	"github.com/IvanBrykalov/framecache/policy"
)

// Cache is a bounded recency cache of numbered frames.
//
// Entries live in a recency list (head = most recently touched). Live entries
// hold a frame; weak entries keep only the frame number so that a later
// lookup can be told apart as a near-miss (evicted recently) rather than a
// far-miss. Access counters feed Adjust, which resizes the cache.
//
// All methods are safe for concurrent use; a single mutex guards the cache
// since even a lookup relinks the list.
type Cache[F any] struct {
	mu sync.Mutex

	// ---- guarded by mu ----
	entries []entry[F] // arena; list links are indices into it
	free    []int32    // recycled arena slots
	index   map[int]int32
	head    int32 // most recently touched
	tail    int32 // least recently touched

	// cursor is the most recently demoted entry. Everything from the cursor
	// to the tail is weak, so demotion resumes from here instead of
	// rescanning from the tail.
	cursor int32

	live       int
	history    int
	maxLive    int
	maxHistory int
	fixed      bool

	stats policy.Stats

	metrics   Metrics
	onRelease func(n int, f F, reason ReleaseReason)
	isNil     func(F) bool // nil when F cannot hold nil
}

// New constructs a Cache from opt. It panics if opt.MaxLive is negative.
func New[F any](opt Options[F]) *Cache[F] {
	if opt.MaxLive < 0 {
		panic(fmt.Sprintf("cache: MaxLive must be >= 0, got %d", opt.MaxLive))
	}
	if opt.Metrics == nil {
		opt.Metrics = NoopMetrics{}
	}
	maxHistory := opt.MaxHistory
	switch {
	case maxHistory == 0:
		maxHistory = DefaultMaxHistory
	case maxHistory < 0:
		maxHistory = 0
	}

	return &Cache[F]{
		index:      make(map[int]int32, opt.MaxLive+maxHistory),
		head:       nilIdx,
		tail:       nilIdx,
		cursor:     nilIdx,
		maxLive:    opt.MaxLive,
		maxHistory: maxHistory,
		fixed:      opt.Fixed,
		metrics:    opt.Metrics,
		onRelease:  opt.OnRelease,
		isNil:      nilCheck[F](),
	}
}

// Lookup returns the frame for n and classifies the access.
// Any indexed entry, live or weak, becomes the most recently touched one.
func (c *Cache[F]) Lookup(n int) (F, Outcome) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero F
	i, ok := c.index[n]
	if !ok {
		c.stats.FarMisses++
		c.metrics.FarMiss()
		return zero, FarMiss
	}

	c.moveToFront(i)
	e := &c.entries[i]
	if !e.live {
		c.stats.NearMisses++
		c.metrics.NearMiss()
		return zero, NearMiss
	}
	c.stats.Hits++
	c.metrics.Hit()
	return e.frame, Hit
}

// Get is Lookup reduced to a presence flag.
func (c *Cache[F]) Get(n int) (F, bool) {
	f, o := c.Lookup(n)
	return f, o == Hit
}

// Insert stores f as frame n at the head of the recency list, replacing any
// existing entry for n, and trims the cache to its bounds.
// A negative n or a nil frame is a programming error and panics.
func (c *Cache[F]) Insert(n int, f F) bool {
	if n < 0 {
		panic(fmt.Sprintf("cache: negative frame number %d", n))
	}
	if c.isNil != nil && c.isNil(f) {
		panic(fmt.Sprintf("cache: nil frame for %d", n))
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if i, ok := c.index[n]; ok {
		c.unlink(i, ReleaseReplace)
	}
	i := c.alloc()
	c.entries[i] = entry[F]{key: n, frame: f, live: true, prev: nilIdx, next: nilIdx}
	c.index[n] = i
	c.pushFront(i)
	c.live++

	c.trimLocked(c.maxLive, c.maxHistory)
	return true
}

// Remove drops the entry for n, live or weak. Returns true if it existed.
func (c *Cache[F]) Remove(n int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	i, ok := c.index[n]
	if !ok {
		return false
	}
	c.unlink(i, ReleaseRemove)
	c.metrics.Size(c.live, c.history)
	return true
}

// Trim demotes live entries until at most maxLive remain, then drops entries
// from the tail until at most maxHistory weak entries remain.
// Negative bounds are treated as 0.
func (c *Cache[F]) Trim(maxLive, maxHistory int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.trimLocked(max(maxLive, 0), max(maxHistory, 0))
}

// Clear drops every entry and resets the access counters.
func (c *Cache[F]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clearLocked()
}

// Adjust resizes the cache from the counters accumulated since the previous
// call, using p to turn the recommendation into a capacity, and resets the
// counters. Fixed caches are left untouched.
func (c *Cache[F]) Adjust(p policy.Policy) Decision {
	c.mu.Lock()
	defer c.mu.Unlock()

	d := Decision{Action: policy.NoChange, Policy: p.Name(), From: c.maxLive, To: c.maxLive}
	if c.fixed {
		return d
	}

	d.Stats = c.stats
	c.stats = policy.Stats{}
	d.Action = policy.Recommend(d.Stats)

	r := p.Apply(d.Action, c.maxLive)
	if r.Clear {
		c.clearLocked()
		d.Cleared = true
	}
	c.maxLive = max(r.MaxLive, 0)
	d.To = c.maxLive
	c.trimLocked(c.maxLive, c.maxHistory)
	c.metrics.Resize(d.Action, c.maxLive)
	return d
}

// Len returns the number of live entries.
func (c *Cache[F]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.live
}

// HistoryLen returns the number of weak entries.
func (c *Cache[F]) HistoryLen() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.history
}

// MaxLive returns the current live capacity.
func (c *Cache[F]) MaxLive() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.maxLive
}

// SetMaxLive changes the live capacity (clamped at 0) and trims to it.
// It works on fixed caches too.
func (c *Cache[F]) SetMaxLive(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.maxLive = max(n, 0)
	c.trimLocked(c.maxLive, c.maxHistory)
}

// MaxHistory returns the current history bound.
func (c *Cache[F]) MaxHistory() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.maxHistory
}

// SetMaxHistory changes the history bound (clamped at 0) and trims to it.
func (c *Cache[F]) SetMaxHistory(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.maxHistory = max(n, 0)
	c.trimLocked(c.maxLive, c.maxHistory)
}

// Fixed reports whether automatic resizing is disabled.
func (c *Cache[F]) Fixed() bool { return c.fixed }

// Stats returns the counters accumulated since the last Adjust or Clear.
func (c *Cache[F]) Stats() policy.Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// Keys returns an iterator over live frame numbers, most recent first.
// The keys are snapshotted when iteration starts.
func (c *Cache[F]) Keys() iter.Seq[int] {
	return func(yield func(int) bool) {
		c.mu.Lock()
		keys := make([]int, 0, c.live)
		for i := c.head; i != nilIdx; i = c.entries[i].next {
			if c.entries[i].live {
				keys = append(keys, c.entries[i].key)
			}
		}
		c.mu.Unlock()

		for _, k := range keys {
			if !yield(k) {
				return
			}
		}
	}
}

// nilCheck returns a nil test for values of F, or nil when no F value can
// be nil. The kind is resolved once per cache so non-nilable frames skip
// reflection on Insert.
func nilCheck[F any]() func(F) bool {
	switch reflect.TypeFor[F]().Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func, reflect.UnsafePointer:
		return func(f F) bool { return reflect.ValueOf(&f).Elem().IsNil() }
	case reflect.Interface:
		return isNil[F]
	default:
		return nil
	}
}

// isNil reports whether f is a nil interface or holds a nil pointer, map,
// slice, channel or func.
func isNil[F any](f F) bool {
	v := reflect.ValueOf(any(f))
	if !v.IsValid() {
		return true
	}
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func, reflect.Interface, reflect.UnsafePointer:
		return v.IsNil()
	}
	return false
}
