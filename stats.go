package metacache

import (
	"sync/atomic"
)

// CacheStats contains cache performance statistics
type CacheStats struct {
	Size          int     // Current number of entries
	MaxSize       int     // Maximum number of entries
	Hits          uint64  // Lookups answered from the cache
	Misses        uint64  // Lookups that found no usable entry
	Inserts       uint64  // Entries created by a probe
	Updates       uint64  // Entries refreshed by a probe
	Evictions     uint64  // Entries dropped to make room
	Expirations   uint64  // Entries dropped for exceeding the TTL
	Removals      uint64  // Entries dropped by Remove
	ProbeFailures uint64  // Probes that returned an error
	HitRate       float64 // Hit rate (hits / (hits + misses))
}

// Stats contains statistics for a mounted filesystem
type Stats struct {
	Mountpoint  string
	Operations  uint64
	BytesRead   uint64
	Errors      uint64
	OpenFiles   int
	KnownInodes int // synthetic inode numbers handed out; native inodes are not counted
	Cache       CacheStats
}

// statsCollector tracks filesystem statistics
type statsCollector struct {
	operations atomic.Uint64
	bytesRead  atomic.Uint64
	errors     atomic.Uint64
}

// newStatsCollector creates a new statistics collector
func newStatsCollector() *statsCollector {
	return &statsCollector{}
}

// recordOperation increments the operation counter
func (s *statsCollector) recordOperation() {
	s.operations.Add(1)
}

// recordRead increments bytes read
func (s *statsCollector) recordRead(n int) {
	s.bytesRead.Add(uint64(n))
}

// recordError increments error counter
func (s *statsCollector) recordError() {
	s.errors.Add(1)
}

// snapshot returns current statistics
func (s *statsCollector) snapshot() Stats {
	return Stats{
		Operations: s.operations.Load(),
		BytesRead:  s.bytesRead.Load(),
		Errors:     s.errors.Load(),
	}
}
