package metacache

import "time"

// handle addresses a slot in the entry arena. The generation is bumped every
// time a slot is released, so a handle kept past the release of its slot is
// detected instead of silently aliasing the next occupant.
type handle struct {
	idx int32
	gen uint32
}

const nilIdx int32 = -1

var nilHandle = handle{idx: nilIdx}

// slot is one cache entry plus its list links.
type slot struct {
	key        string
	meta       MetadataSnapshot
	lastAccess time.Time
	probedAt   time.Time

	prev, next int32
	gen        uint32
	live       bool
}

// recencyList is a doubly linked list threaded through a fixed arena of
// slots. head is the most recently used entry, tail the least.
//
// The arena never grows: it is allocated once with the cache capacity and
// released slots are recycled through a free list linked by next.
type recencyList struct {
	slots []slot
	head  int32
	tail  int32
	free  int32
	n     int
}

func newRecencyList(capacity int) *recencyList {
	l := &recencyList{
		slots: make([]slot, capacity),
		head:  nilIdx,
		tail:  nilIdx,
	}
	l.resetFree()
	return l
}

func (l *recencyList) resetFree() {
	l.free = nilIdx
	for i := len(l.slots) - 1; i >= 0; i-- {
		l.slots[i].next = l.free
		l.slots[i].prev = nilIdx
		l.free = int32(i)
	}
}

// alloc takes a slot from the free list and fills it. The slot is not linked.
func (l *recencyList) alloc(key string, meta MetadataSnapshot, at time.Time) (handle, error) {
	if l.free == nilIdx {
		return nilHandle, ErrAllocation
	}
	idx := l.free
	s := &l.slots[idx]
	l.free = s.next

	s.key = key
	s.meta = meta
	s.lastAccess = at
	s.probedAt = at
	s.prev, s.next = nilIdx, nilIdx
	s.live = true
	return handle{idx: idx, gen: s.gen}, nil
}

// release unlinks h and returns its slot to the free list.
func (l *recencyList) release(h handle) {
	s := l.get(h)
	if s == nil {
		return
	}
	l.remove(h)
	*s = slot{gen: s.gen + 1, prev: nilIdx, next: l.free}
	l.free = h.idx
}

// get returns the slot for h, or nil if h is stale.
func (l *recencyList) get(h handle) *slot {
	if h.idx < 0 || int(h.idx) >= len(l.slots) {
		return nil
	}
	s := &l.slots[h.idx]
	if !s.live || s.gen != h.gen {
		return nil
	}
	return s
}

func (l *recencyList) pushFront(h handle) {
	s := &l.slots[h.idx]
	s.prev = nilIdx
	s.next = l.head
	if l.head != nilIdx {
		l.slots[l.head].prev = h.idx
	}
	l.head = h.idx
	if l.tail == nilIdx {
		l.tail = h.idx
	}
	l.n++
}

func (l *recencyList) moveToFront(h handle) {
	if l.head == h.idx {
		return
	}
	l.remove(h)
	l.pushFront(h)
}

// remove unlinks h, fixing neighbours and the head/tail ends.
func (l *recencyList) remove(h handle) {
	s := &l.slots[h.idx]
	if s.prev == nilIdx && s.next == nilIdx && l.head != h.idx {
		return // not linked
	}
	if s.prev != nilIdx {
		l.slots[s.prev].next = s.next
	} else {
		l.head = s.next
	}
	if s.next != nilIdx {
		l.slots[s.next].prev = s.prev
	} else {
		l.tail = s.prev
	}
	s.prev, s.next = nilIdx, nilIdx
	l.n--
}

func (l *recencyList) handleAt(idx int32) handle {
	if idx == nilIdx {
		return nilHandle
	}
	return handle{idx: idx, gen: l.slots[idx].gen}
}

// back returns the least recently used entry, or nilHandle when empty.
func (l *recencyList) back() handle {
	return l.handleAt(l.tail)
}

// front returns the most recently used entry, or nilHandle when empty.
func (l *recencyList) front() handle {
	return l.handleAt(l.head)
}

// prev returns the entry closer to the head than h.
func (l *recencyList) prev(h handle) handle {
	return l.handleAt(l.slots[h.idx].prev)
}

// next returns the entry closer to the tail than h.
func (l *recencyList) next(h handle) handle {
	return l.handleAt(l.slots[h.idx].next)
}

func (l *recencyList) len() int {
	return l.n
}

// reset drops every entry. Outstanding handles become stale.
func (l *recencyList) reset() {
	for i := range l.slots {
		l.slots[i] = slot{gen: l.slots[i].gen + 1}
	}
	l.head, l.tail = nilIdx, nilIdx
	l.n = 0
	l.resetFree()
}

func (h handle) isNil() bool {
	return h.idx == nilIdx
}
