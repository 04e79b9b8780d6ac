package metacache

import (
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeProber serves snapshots from memory and counts probes per path.
type fakeProber struct {
	mu     sync.Mutex
	files  map[string]MetadataSnapshot
	denied map[string]bool
	calls  map[string]int
	next   uint64
}

func newFakeProber() *fakeProber {
	return &fakeProber{
		files:  make(map[string]MetadataSnapshot),
		denied: make(map[string]bool),
		calls:  make(map[string]int),
		next:   100,
	}
}

// set creates or replaces path with the given size.
func (p *fakeProber) set(path string, size uint64) MetadataSnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()

	ino := p.next
	if old, ok := p.files[path]; ok {
		ino = old.Inode
	} else {
		p.next++
	}
	s := MetadataSnapshot{
		Size:    size,
		ModTime: time.Unix(1700000000+int64(size), 0),
		Inode:   ino,
		Mode:    0644,
	}
	p.files[path] = s
	return s
}

func (p *fakeProber) del(path string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.files, path)
}

func (p *fakeProber) deny(path string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.denied[path] = true
}

func (p *fakeProber) probes(path string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[path]
}

func (p *fakeProber) Probe(path string) (MetadataSnapshot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.calls[path]++
	if p.denied[path] {
		return MetadataSnapshot{}, newProbeError(path, &os.PathError{Op: "stat", Path: path, Err: os.ErrPermission})
	}
	s, ok := p.files[path]
	if !ok {
		return MetadataSnapshot{}, newProbeError(path, &os.PathError{Op: "stat", Path: path, Err: os.ErrNotExist})
	}
	return s, nil
}

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1700000000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func newTestCache(t *testing.T, capacity int, ttl time.Duration) (*Cache, *fakeProber, *fakeClock) {
	t.Helper()

	prober := newFakeProber()
	clock := newFakeClock()
	c, err := New(Options{
		Capacity: capacity,
		TTL:      ttl,
		Prober:   prober,
		Clock:    clock.Now,
		Logger:   zap.NewNop(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c, prober, clock
}

// checkInvariants verifies that the index and the recency list describe the
// same set of entries, that the list is ordered by last access, and that the
// cache is within capacity.
func checkInvariants(t *testing.T, c *Cache) {
	t.Helper()

	c.mu.RLock()
	defer c.mu.RUnlock()

	l := c.list
	seen := make(map[string]bool, len(c.index))
	prevIdx := nilIdx
	var prevAccess time.Time
	count := 0

	for idx := l.head; idx != nilIdx; idx = l.slots[idx].next {
		s := &l.slots[idx]
		require.True(t, s.live, "slot %d linked but not live", idx)
		require.Equal(t, prevIdx, s.prev, "broken back link at slot %d", idx)
		require.False(t, seen[s.key], "duplicate key %q in list", s.key)
		seen[s.key] = true

		h, ok := c.index[s.key]
		require.True(t, ok, "list key %q missing from index", s.key)
		require.Equal(t, handle{idx: idx, gen: s.gen}, h, "index handle for %q", s.key)

		if count > 0 {
			require.False(t, s.lastAccess.After(prevAccess),
				"list not ordered by last access at %q", s.key)
		}
		prevAccess = s.lastAccess
		prevIdx = idx
		count++
		require.LessOrEqual(t, count, len(l.slots), "cycle in recency list")
	}

	require.Equal(t, prevIdx, l.tail, "tail does not end the list")
	require.Equal(t, count, l.len())
	require.Equal(t, count, len(c.index))
	require.LessOrEqual(t, count, c.capacity)
	for key := range c.index {
		require.True(t, seen[key], "index key %q missing from list", key)
	}
}

func paths(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("/f%d", i)
	}
	return out
}
