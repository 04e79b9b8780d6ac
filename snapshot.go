package metacache

import (
	"os"
	"syscall"
	"time"

	"github.com/hanwen/go-fuse/v2/fuse"
)

// MetadataSnapshot is the cached state of one path at the time it was probed.
// Snapshots are plain values; the cache hands out copies only.
type MetadataSnapshot struct {
	Size    uint64
	ModTime time.Time
	Inode   uint64
	Mode    os.FileMode
}

// IsDir reports whether the snapshot describes a directory.
func (s MetadataSnapshot) IsDir() bool {
	return s.Mode.IsDir()
}

// Equal compares snapshots field by field, using time.Time.Equal for ModTime.
func (s MetadataSnapshot) Equal(o MetadataSnapshot) bool {
	return s.Size == o.Size &&
		s.ModTime.Equal(o.ModTime) &&
		s.Inode == o.Inode &&
		s.Mode == o.Mode
}

// snapshotOf builds a snapshot from info. ino is used when info carries no
// native inode number.
func snapshotOf(info os.FileInfo, ino uint64) MetadataSnapshot {
	if native, ok := nativeInode(info); ok {
		ino = native
	}
	size := info.Size()
	if size < 0 {
		size = 0
	}
	return MetadataSnapshot{
		Size:    uint64(size),
		ModTime: info.ModTime(),
		Inode:   ino,
		Mode:    info.Mode(),
	}
}

func nativeInode(info os.FileInfo) (uint64, bool) {
	if sys := info.Sys(); sys != nil {
		if stat, ok := sys.(*syscall.Stat_t); ok && stat.Ino != 0 {
			return uint64(stat.Ino), true
		}
	}
	return 0, false
}

// fileType returns the S_IF* bits for mode.
func fileType(mode os.FileMode) uint32 {
	switch {
	case mode.IsDir():
		return syscall.S_IFDIR
	case mode&os.ModeSymlink != 0:
		return syscall.S_IFLNK
	default:
		return syscall.S_IFREG
	}
}

// fillAttr fills a FUSE Attr structure from a snapshot
func fillAttr(attr *fuse.Attr, s MetadataSnapshot, uid, gid uint32) {
	attr.Ino = s.Inode
	attr.Size = s.Size
	attr.Mode = fileType(s.Mode) | uint32(s.Mode.Perm())
	attr.Mtime = uint64(s.ModTime.Unix())
	attr.Mtimensec = uint32(s.ModTime.Nanosecond())
	attr.Uid = uid
	attr.Gid = gid

	// Set block information
	attr.Blocks = (attr.Size + 511) / 512
	attr.Blksize = 4096
}
