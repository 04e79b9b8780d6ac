package metacache

import (
	"os"
	"sync"
	"time"
)

// inodeAllocator hands out stable synthetic inode numbers for filesystems
// whose FileInfo does not expose one.
//
// A path keeps its number for as long as its size and modification time are
// unchanged. When a probe sees different values the file is treated as
// replaced and gets a fresh number.
type inodeAllocator struct {
	mu          sync.Mutex
	pathToInode map[string]uint64
	inodeToInfo map[uint64]inodeFingerprint
	nextInode   uint64
}

type inodeFingerprint struct {
	modTime time.Time
	size    int64
}

func newInodeAllocator() *inodeAllocator {
	return &inodeAllocator{
		pathToInode: make(map[string]uint64),
		inodeToInfo: make(map[uint64]inodeFingerprint),
		nextInode:   1, // Start at 1, reserve 0; the root gets 2
	}
}

// inodeFor returns the inode number for path as described by info.
func (a *inodeAllocator) inodeFor(path string, info os.FileInfo) uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	if ino, exists := a.pathToInode[path]; exists {
		fp := a.inodeToInfo[ino]
		if fp.modTime.Equal(info.ModTime()) && fp.size == info.Size() {
			return ino
		}
		delete(a.inodeToInfo, ino)
	}

	a.nextInode++
	ino := a.nextInode

	a.pathToInode[path] = ino
	a.inodeToInfo[ino] = inodeFingerprint{
		modTime: info.ModTime(),
		size:    info.Size(),
	}

	return ino
}

// forget drops the number assigned to path.
func (a *inodeAllocator) forget(path string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if ino, exists := a.pathToInode[path]; exists {
		delete(a.inodeToInfo, ino)
		delete(a.pathToInode, path)
	}
}

// len returns the number of paths with an assigned inode.
func (a *inodeAllocator) len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.pathToInode)
}
