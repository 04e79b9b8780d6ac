package metacache

import (
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/absfs/absfs"
)

// HandleTracker maps FUSE file handle IDs to open absfs files.
//
// All methods are thread-safe and can be called concurrently.
type HandleTracker struct {
	mu         sync.RWMutex
	handles    map[uint64]*handleEntry
	nextHandle atomic.Uint64
}

type handleEntry struct {
	file absfs.File
	path string
}

// NewHandleTracker creates a new file handle tracker
func NewHandleTracker() *HandleTracker {
	return &HandleTracker{
		handles: make(map[uint64]*handleEntry),
	}
}

// Add registers file and returns its handle ID. IDs start at 1.
func (ht *HandleTracker) Add(file absfs.File, path string) uint64 {
	ht.mu.Lock()
	defer ht.mu.Unlock()

	fh := ht.nextHandle.Add(1)
	ht.handles[fh] = &handleEntry{file: file, path: path}
	return fh
}

// Get returns the file associated with a handle, or nil
func (ht *HandleTracker) Get(fh uint64) absfs.File {
	ht.mu.RLock()
	defer ht.mu.RUnlock()

	entry := ht.handles[fh]
	if entry == nil {
		return nil
	}
	return entry.file
}

// Path returns the path the handle was opened for
func (ht *HandleTracker) Path(fh uint64) (string, bool) {
	ht.mu.RLock()
	defer ht.mu.RUnlock()

	entry := ht.handles[fh]
	if entry == nil {
		return "", false
	}
	return entry.path, true
}

// Release closes the file and forgets the handle
func (ht *HandleTracker) Release(fh uint64) syscall.Errno {
	ht.mu.Lock()
	entry := ht.handles[fh]
	delete(ht.handles, fh)
	ht.mu.Unlock()

	if entry == nil {
		return syscall.EBADF
	}
	return mapError(entry.file.Close())
}

// CloseAll closes all open file handles
func (ht *HandleTracker) CloseAll() {
	ht.mu.Lock()
	defer ht.mu.Unlock()

	for fh, entry := range ht.handles {
		entry.file.Close()
		delete(ht.handles, fh)
	}
}

// Count returns the number of open file handles
func (ht *HandleTracker) Count() int {
	ht.mu.RLock()
	defer ht.mu.RUnlock()

	return len(ht.handles)
}
