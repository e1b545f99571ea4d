// Package cache provides the bounded recency cache that backs a frame-caching
// node in a pull-based media pipeline. Keys are frame numbers (dense,
// non-negative, mostly advancing); values are produced frames.
//
// Design
//
//   - Storage: entries live in an arena addressed by int32 indices, with a
//     map[int]int32 for lookups and an index-linked MRU↔LRU list for recency.
//     Insert, lookup, remove and relink are O(1) expected.
//
//   - Live and history: a live entry holds a frame. When the live count
//     exceeds MaxLive, the oldest live entries are demoted: the frame is
//     released but the key stays in the list as a weak entry. Weak entries are
//     bounded by MaxHistory; beyond it, entries are dropped from the tail.
//
//   - Classification: a lookup is a hit (live), a near-miss (weak: evicted
//     recently, the cache is too small) or a far-miss (unknown). The counters
//     drive Adjust, which asks package policy for a new capacity.
//
//   - Demotion cursor: the position of the last demotion is remembered so
//     repeated trimming resumes there instead of rescanning from the tail.
//
//   - Release: Options.OnRelease(n, f, reason) is called for every frame that
//     leaves the cache, so reference-counted frames can be freed.
//
// Basic usage
//
//	c := cache.New[*Frame](cache.Options[*Frame]{MaxLive: 20})
//	c.Insert(10, f)
//	if f, ok := c.Get(10); ok {
//	    _ = f // use frame
//	}
//
// Resizing (driven by the caller, never by a timer)
//
//	d := c.Adjust(normal.New())   // regular operation
//	d = c.Adjust(pressure.New())  // when memory is short
//
// Thread-safety
//
// All methods are safe for concurrent use; one mutex guards the cache because
// lookups relink the list. Different caches share nothing.
package cache
