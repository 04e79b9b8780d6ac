package metacache

import (
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Cache maps paths to metadata snapshots, bounded by a fixed capacity and an
// optional time-to-live.
//
// The cache evicts entries in two scenarios:
// 1. When a new path is put into a full cache (LRU eviction of the tail)
// 2. When Expire finds entries idle for longer than the TTL
//
// Entries live in a fixed arena threaded into a recency list (head is the
// most recently used). A map from path to arena handle gives O(1) lookups.
// Every operation that stamps an entry's last access also moves it to the
// head, so the list is ordered by last access and Expire can stop at the
// first entry that is still fresh.
//
// One mutex guards the whole cache, including the probe issued by Put, so a
// probe result and its insertion are atomic with respect to other callers.
type Cache struct {
	mu       sync.RWMutex
	capacity int
	ttl      time.Duration
	prober   Prober
	clock    func() time.Time
	logger   *zap.Logger

	index map[string]handle
	list  *recencyList

	hits          uint64
	misses        uint64
	inserts       uint64
	updates       uint64
	evictions     uint64
	expirations   uint64
	removals      uint64
	probeFailures uint64

	closed bool

	// janitor
	stop chan struct{}
	done chan struct{}
}

// New creates a cache. It fails with ErrInvalidConfiguration when the
// capacity is not positive or a duration is negative.
func New(opts Options) (*Cache, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	c := &Cache{
		capacity: opts.Capacity,
		ttl:      opts.TTL,
		prober:   opts.Prober,
		clock:    opts.Clock,
		logger:   opts.Logger,
		index:    make(map[string]handle, opts.Capacity),
		list:     newRecencyList(opts.Capacity),
	}

	if opts.TTL > 0 && opts.ExpireInterval > 0 {
		c.startJanitor(opts.ExpireInterval)
	}

	return c, nil
}

// Put probes path and stores the result. An existing entry is refreshed and
// promoted; a new entry evicts the least recently used one when the cache is
// full. If the probe fails the cache is left untouched and the error, a
// *ProbeError, is returned.
func (c *Cache) Put(path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}

	_, err := c.putLocked(path, c.nowLocked())
	return err
}

// Get returns a copy of the cached snapshot for path and promotes the entry.
// It never probes: a caller that needs fresh metadata must Put again.
func (c *Cache) Get(path string) (MetadataSnapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return MetadataSnapshot{}, false
	}

	h, ok := c.index[path]
	if !ok {
		c.misses++
		return MetadataSnapshot{}, false
	}

	s := c.list.get(h)
	s.lastAccess = c.nowLocked()
	c.list.moveToFront(h)
	c.hits++
	return s.meta, true
}

// Fetch returns metadata for path, probing only when the path is not cached
// or its snapshot was probed more than the TTL ago. Hits do not extend a
// snapshot's lifetime, so staleness stays bounded by the TTL. A fresh entry
// is promoted like Get; a missing or stale one is probed and stored like Put.
func (c *Cache) Fetch(path string) (MetadataSnapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return MetadataSnapshot{}, ErrClosed
	}

	now := c.nowLocked()
	if h, ok := c.index[path]; ok {
		s := c.list.get(h)
		if c.ttl <= 0 || now.Sub(s.probedAt) <= c.ttl {
			s.lastAccess = now
			c.list.moveToFront(h)
			c.hits++
			return s.meta, nil
		}
	}

	c.misses++
	return c.putLocked(path, now)
}

// Remove drops the entry for path. It fails with ErrNotFound when the path is
// not cached.
func (c *Cache) Remove(path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}

	h, ok := c.index[path]
	if !ok {
		return notFound("remove", path)
	}

	c.dropLocked(path, h)
	c.removals++
	return nil
}

// Expire removes every entry whose last access is more than the TTL before
// now and returns how many were removed. It is a no-op when the TTL is zero.
//
// Removal walks from the least recently used end and stops at the first
// entry still within the TTL; all entries nearer the head were accessed no
// earlier than that one.
func (c *Cache) Expire(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || c.ttl <= 0 {
		return 0
	}

	removed := 0
	for h := c.list.back(); !h.isNil(); h = c.list.back() {
		s := c.list.get(h)
		if now.Sub(s.lastAccess) <= c.ttl {
			break
		}
		c.dropLocked(s.key, h)
		removed++
	}

	if removed > 0 {
		c.expirations += uint64(removed)
		c.logger.Debug("expired cache entries",
			zap.Int("count", removed),
			zap.Int("remaining", c.list.len()))
	}
	return removed
}

// Close releases every entry and stops the janitor. The cache is unusable
// afterwards. Close is safe to call more than once.
func (c *Cache) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.index = make(map[string]handle)
	c.list.reset()
	c.mu.Unlock()

	// Stop outside the lock; the janitor may be waiting for it.
	c.stopJanitor()
	return nil
}

// Contains reports whether path is cached without promoting it.
func (c *Cache) Contains(path string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.index[path]
	return ok
}

// Len returns the current number of entries in the cache.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.list.len()
}

// Capacity returns the configured maximum number of entries.
func (c *Cache) Capacity() int { return c.capacity }

// TTL returns the configured time-to-live.
func (c *Cache) TTL() time.Duration { return c.ttl }

// Keys returns cached paths from most to least recently used.
func (c *Cache) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]string, 0, c.list.len())
	for h := c.list.front(); !h.isNil(); h = c.list.next(h) {
		out = append(out, c.list.get(h).key)
	}
	return out
}

// Stats returns cache statistics.
func (c *Cache) Stats() CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	total := c.hits + c.misses
	hitRate := float64(0)
	if total > 0 {
		hitRate = float64(c.hits) / float64(total)
	}

	return CacheStats{
		Size:          c.list.len(),
		MaxSize:       c.capacity,
		Hits:          c.hits,
		Misses:        c.misses,
		Inserts:       c.inserts,
		Updates:       c.updates,
		Evictions:     c.evictions,
		Expirations:   c.expirations,
		Removals:      c.removals,
		ProbeFailures: c.probeFailures,
		HitRate:       hitRate,
	}
}

// putLocked probes path and inserts or refreshes its entry (assumes lock is held)
func (c *Cache) putLocked(path string, now time.Time) (MetadataSnapshot, error) {
	meta, err := c.prober.Probe(path)
	if err != nil {
		var perr *ProbeError
		if !errors.As(err, &perr) {
			err = newProbeError(path, err)
		}
		c.probeFailures++
		c.logger.Warn("metadata probe failed", zap.String("path", path), zap.Error(err))
		return MetadataSnapshot{}, err
	}

	if h, ok := c.index[path]; ok {
		s := c.list.get(h)
		s.meta = meta
		s.lastAccess = now
		s.probedAt = now
		c.list.moveToFront(h)
		c.updates++
		return meta, nil
	}

	if c.list.len() >= c.capacity {
		c.evictOldest()
	}

	h, err := c.list.alloc(path, meta, now)
	if err != nil {
		c.logger.Error("entry arena exhausted",
			zap.String("path", path),
			zap.Int("len", c.list.len()),
			zap.Int("capacity", c.capacity))
		return MetadataSnapshot{}, err
	}
	c.list.pushFront(h)
	c.index[path] = h
	c.inserts++
	return meta, nil
}

// evictOldest removes the least recently used entry (assumes lock is held)
func (c *Cache) evictOldest() {
	h := c.list.back()
	if h.isNil() {
		return
	}

	key := c.list.get(h).key
	c.dropLocked(key, h)
	c.evictions++
	c.logger.Debug("evicted cache entry", zap.String("path", key))
}

// dropLocked detaches an entry from the index and the list (assumes lock is held)
func (c *Cache) dropLocked(key string, h handle) {
	delete(c.index, key)
	c.list.release(h)
}

// nowLocked reads the clock, never returning a time earlier than the head's
// last access so that the list stays ordered even if the clock steps back.
func (c *Cache) nowLocked() time.Time {
	now := c.clock()
	if head := c.list.front(); !head.isNil() {
		if last := c.list.get(head).lastAccess; now.Before(last) {
			return last
		}
	}
	return now
}
