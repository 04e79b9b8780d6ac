package metacache

import (
	"os"

	"github.com/absfs/absfs"
)

// Prober returns the current metadata of a path. Failures are reported as
// *ProbeError by the probers in this package; custom probers may return any
// error and the cache wraps it.
type Prober interface {
	Probe(path string) (MetadataSnapshot, error)
}

// ProberFunc adapts an ordinary function to the Prober interface.
type ProberFunc func(path string) (MetadataSnapshot, error)

// Probe calls f(path).
func (f ProberFunc) Probe(path string) (MetadataSnapshot, error) {
	return f(path)
}

// FSProbe probes paths on an absfs.FileSystem.
//
// Filesystems backed by the host OS report native inode numbers through
// FileInfo.Sys. Virtual filesystems usually don't, so FSProbe assigns stable
// synthetic numbers per path instead.
type FSProbe struct {
	fs     absfs.FileSystem
	inodes *inodeAllocator
}

// NewFSProbe creates a probe over fsys.
func NewFSProbe(fsys absfs.FileSystem) *FSProbe {
	return &FSProbe{
		fs:     fsys,
		inodes: newInodeAllocator(),
	}
}

// Probe stats path on the underlying filesystem.
func (p *FSProbe) Probe(path string) (MetadataSnapshot, error) {
	info, err := p.fs.Stat(path)
	if err != nil {
		p.inodes.forget(path)
		return MetadataSnapshot{}, newProbeError(path, err)
	}
	return p.Snapshot(path, info), nil
}

// Snapshot converts info, already obtained for path, into a snapshot using
// the same inode numbering as Probe.
func (p *FSProbe) Snapshot(path string, info os.FileInfo) MetadataSnapshot {
	if ino, ok := nativeInode(info); ok {
		return snapshotOf(info, ino)
	}
	return snapshotOf(info, p.inodes.inodeFor(path, info))
}

// FileSystem returns the filesystem being probed.
func (p *FSProbe) FileSystem() absfs.FileSystem {
	return p.fs
}

// OSProbe probes the host filesystem with os.Stat.
type OSProbe struct{}

// Probe stats path on the host filesystem.
func (OSProbe) Probe(path string) (MetadataSnapshot, error) {
	info, err := os.Stat(path)
	if err != nil {
		return MetadataSnapshot{}, newProbeError(path, err)
	}
	return snapshotOf(info, 0), nil
}
