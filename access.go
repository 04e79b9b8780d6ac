package metacache

import (
	"context"
	"os"
	"syscall"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
)

// Access mask bits
const (
	F_OK = 0 // Test for existence
	X_OK = 1 // Test for execute permission
	W_OK = 2 // Test for write permission
	R_OK = 4 // Test for read permission
)

// Access checks the caller's permission against the cached mode bits.
//
// Every node is reported as owned by the mount's UID and GID, so the owner
// and group classes are chosen against those rather than the source files.
// Write access is always refused on this read-only mount. With the
// DefaultPermissions option the kernel does the checks and this allows
// everything.
func (n *fuseNode) Access(ctx context.Context, mask uint32) syscall.Errno {
	n.fusefs.stats.recordOperation()

	if n.fusefs.checkUnmounting() {
		return syscall.ENOTCONN
	}

	if n.fusefs.opts.DefaultPermissions {
		return 0
	}

	meta, err := n.fusefs.cache.Fetch(n.path)
	if err != nil {
		n.fusefs.stats.recordError()
		return mapError(err)
	}

	if mask == F_OK {
		return 0
	}

	if mask&W_OK != 0 {
		return syscall.EROFS
	}

	caller, ok := fuse.FromContext(ctx)
	if !ok {
		return syscall.EACCES
	}

	return checkAccess(meta.Mode.Perm(), mask, caller.Uid == n.fusefs.uid, caller.Gid == n.fusefs.gid)
}

// checkAccess tests mask against the permission class picked by owner/group.
func checkAccess(perm os.FileMode, mask uint32, owner, group bool) syscall.Errno {
	var bits os.FileMode
	switch {
	case owner:
		bits = (perm >> 6) & 0x7
	case group:
		bits = (perm >> 3) & 0x7
	default:
		bits = perm & 0x7
	}

	if mask&R_OK != 0 && bits&0x4 == 0 {
		return syscall.EACCES
	}
	if mask&W_OK != 0 && bits&0x2 == 0 {
		return syscall.EACCES
	}
	if mask&X_OK != 0 && bits&0x1 == 0 {
		return syscall.EACCES
	}
	return 0
}

var _ fs.NodeAccesser = (*fuseNode)(nil)
