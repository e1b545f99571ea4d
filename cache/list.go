package cache

import "github.com/IvanBrykalov/framecache/policy"

// -------------------- internals (mu held) --------------------

// alloc returns a free arena slot. The slot content is unspecified;
// callers overwrite it. May grow c.entries, so do not hold entry pointers
// across a call.
func (c *Cache[F]) alloc() int32 {
	if n := len(c.free); n > 0 {
		i := c.free[n-1]
		c.free = c.free[:n-1]
		return i
	}
	c.entries = append(c.entries, entry[F]{})
	return int32(len(c.entries) - 1)
}

// pushFront links i at the head in O(1).
func (c *Cache[F]) pushFront(i int32) {
	e := &c.entries[i]
	e.prev = nilIdx
	e.next = c.head
	if c.head != nilIdx {
		c.entries[c.head].prev = i
	}
	c.head = i
	if c.tail == nilIdx {
		c.tail = i
	}
}

// detach removes i from the list in O(1) without touching counters.
func (c *Cache[F]) detach(i int32) {
	e := &c.entries[i]
	if e.prev != nilIdx {
		c.entries[e.prev].next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nilIdx {
		c.entries[e.next].prev = e.prev
	} else {
		c.tail = e.prev
	}
	e.prev, e.next = nilIdx, nilIdx
}

// moveToFront makes i the most recently touched entry.
// If i is the cursor, the cursor steps tailward first so that it keeps
// marking the boundary of the demoted region.
func (c *Cache[F]) moveToFront(i int32) {
	if i == c.head {
		return
	}
	if i == c.cursor {
		c.cursor = c.entries[i].next
	}
	c.detach(i)
	c.pushFront(i)
}

// unlink removes i from the list, the index and the counters, and recycles
// its slot. A live frame is released with reason.
func (c *Cache[F]) unlink(i int32, reason ReleaseReason) {
	if i == c.cursor {
		c.cursor = c.entries[i].next
	}
	c.detach(i)

	e := &c.entries[i]
	if e.live {
		c.live--
		c.release(e.key, e.frame, reason)
	} else {
		c.history--
	}
	delete(c.index, e.key)
	*e = entry[F]{prev: nilIdx, next: nilIdx}
	c.free = append(c.free, i)
}

// nextDemotion finds the live entry closest to the tail that has not been
// demoted yet: one step headward of the cursor, skipping entries that are
// already weak (a weak entry relinked to the head sits among live ones).
func (c *Cache[F]) nextDemotion() int32 {
	i := c.tail
	if c.cursor != nilIdx {
		i = c.entries[c.cursor].prev
	}
	for i != nilIdx && !c.entries[i].live {
		i = c.entries[i].prev
	}
	return i
}

// demote turns live entry i into a weak one and makes it the cursor.
func (c *Cache[F]) demote(i int32) {
	e := &c.entries[i]
	c.release(e.key, e.frame, ReleaseDemote)
	var zero F
	e.frame = zero
	e.live = false
	c.live--
	c.history++
	c.cursor = i
}

// trimLocked enforces live <= maxLive by demotion, then
// history <= maxHistory by dropping tail entries.
func (c *Cache[F]) trimLocked(maxLive, maxHistory int) {
	for c.live > maxLive {
		i := c.nextDemotion()
		if i == nilIdx {
			break
		}
		c.demote(i)
	}
	for c.history > maxHistory && c.tail != nilIdx {
		c.unlink(c.tail, ReleasePurge)
	}
	c.metrics.Size(c.live, c.history)
}

// clearLocked drops every entry, releasing live frames, and resets the counters.
func (c *Cache[F]) clearLocked() {
	for i := c.head; i != nilIdx; i = c.entries[i].next {
		if e := &c.entries[i]; e.live {
			c.release(e.key, e.frame, ReleaseClear)
		}
	}
	clear(c.entries)
	c.entries = c.entries[:0]
	c.free = c.free[:0]
	clear(c.index)
	c.head, c.tail, c.cursor = nilIdx, nilIdx, nilIdx
	c.live, c.history = 0, 0
	c.stats = policy.Stats{}
	c.metrics.Size(0, 0)
}

func (c *Cache[F]) release(n int, f F, reason ReleaseReason) {
	c.metrics.Release(reason)
	if cb := c.onRelease; cb != nil {
		cb(n, f, reason)
	}
}
