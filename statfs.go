package metacache

import (
	"context"
	"syscall"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
)

// StatFSer is an optional interface an absfs.FileSystem can implement to
// report filesystem-level statistics. Without it Statfs returns defaults.
type StatFSer interface {
	StatFS() (total, free, avail, totalInodes, freeInodes uint64, blockSize uint32, nameMax uint32, err error)
}

// Statfs returns filesystem statistics
func (n *fuseNode) Statfs(ctx context.Context, out *fuse.StatfsOut) syscall.Errno {
	n.fusefs.stats.recordOperation()

	if n.fusefs.checkUnmounting() {
		return syscall.ENOTCONN
	}

	if statfser, ok := n.fusefs.absFS.(StatFSer); ok {
		total, free, avail, totalInodes, freeInodes, blockSize, nameMax, err := statfser.StatFS()
		if err != nil {
			n.fusefs.stats.recordError()
			return mapError(err)
		}

		out.Blocks = total
		out.Bfree = free
		out.Bavail = avail
		out.Files = totalInodes
		out.Ffree = freeInodes
		out.Bsize = blockSize
		out.NameLen = nameMax
		out.Frsize = blockSize
		return 0
	}

	// Read-only: nothing is free. Files counts the paths whose metadata is
	// currently cached.
	out.Blocks = 1024 * 1024 * 1024
	out.Bfree = 0
	out.Bavail = 0
	out.Files = uint64(n.fusefs.cache.Len())
	out.Ffree = 0
	out.Bsize = 4096
	out.NameLen = 255
	out.Frsize = 4096

	return 0
}

var _ fs.NodeStatfser = (*fuseNode)(nil)
