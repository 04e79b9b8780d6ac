package metacache

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"syscall"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
)

// Lookup looks up a child node by name
func (n *fuseNode) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	n.fusefs.stats.recordOperation()

	if n.fusefs.checkUnmounting() {
		return nil, syscall.ENOTCONN
	}

	fullPath := filepath.Join(n.path, name)

	meta, err := n.fusefs.cache.Fetch(fullPath)
	if err != nil {
		n.fusefs.stats.recordError()
		return nil, mapError(err)
	}

	fillAttr(&out.Attr, meta, n.fusefs.uid, n.fusefs.gid)
	out.SetEntryTimeout(n.fusefs.opts.EntryTimeout)
	out.SetAttrTimeout(n.fusefs.opts.AttrTimeout)

	child := &fuseNode{
		fusefs: n.fusefs,
		path:   fullPath,
	}

	childInode := n.NewInode(ctx, child, fs.StableAttr{
		Mode: fileType(meta.Mode),
		Ino:  meta.Inode,
	})

	return childInode, 0
}

// Getattr gets file attributes, probing the filesystem only when the cached
// snapshot is missing or older than the cache TTL
func (n *fuseNode) Getattr(ctx context.Context, f fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	n.fusefs.stats.recordOperation()

	if n.fusefs.checkUnmounting() {
		return syscall.ENOTCONN
	}

	meta, err := n.fusefs.cache.Fetch(n.path)
	if err != nil {
		n.fusefs.stats.recordError()
		return mapError(err)
	}

	fillAttr(&out.Attr, meta, n.fusefs.uid, n.fusefs.gid)
	out.SetTimeout(n.fusefs.opts.AttrTimeout)
	return 0
}

// Readdir reads directory entries
func (n *fuseNode) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	n.fusefs.stats.recordOperation()

	if n.fusefs.checkUnmounting() {
		return nil, syscall.ENOTCONN
	}

	dir, err := n.fusefs.absFS.Open(n.path)
	if err != nil {
		n.fusefs.stats.recordError()
		return nil, mapError(err)
	}
	defer dir.Close()

	infos, err := dir.Readdir(-1)
	if err != nil {
		n.fusefs.stats.recordError()
		return nil, mapError(err)
	}

	// Listing does not populate the cache; a large directory would flush the
	// working set. Entries use the same inode numbering as the cache.
	entries := make([]fuse.DirEntry, 0, len(infos))
	for _, info := range infos {
		fullPath := filepath.Join(n.path, info.Name())
		meta := n.fusefs.probe.Snapshot(fullPath, info)

		entries = append(entries, fuse.DirEntry{
			Name: info.Name(),
			Ino:  meta.Inode,
			Mode: fileType(meta.Mode),
		})
	}

	return fs.NewListDirStream(entries), 0
}

// Open opens a file for reading; the mount is read-only
func (n *fuseNode) Open(ctx context.Context, flags uint32) (fh fs.FileHandle, fuseFlags uint32, errno syscall.Errno) {
	n.fusefs.stats.recordOperation()

	if n.fusefs.checkUnmounting() {
		return nil, 0, syscall.ENOTCONN
	}

	if flags&(syscall.O_WRONLY|syscall.O_RDWR|syscall.O_APPEND|syscall.O_TRUNC|syscall.O_CREAT) != 0 {
		return nil, 0, syscall.EROFS
	}

	file, err := n.fusefs.absFS.OpenFile(n.path, os.O_RDONLY, 0)
	if err != nil {
		n.fusefs.stats.recordError()
		return nil, 0, mapError(err)
	}

	handle := n.fusefs.handleTracker.Add(file, n.path)

	return &fuseFileHandle{node: n, handle: handle}, 0, 0
}

// fuseFileHandle represents an open file handle
type fuseFileHandle struct {
	node   *fuseNode
	handle uint64
}

// Read reads data from the file
func (fh *fuseFileHandle) Read(ctx context.Context, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	fusefs := fh.node.fusefs
	fusefs.stats.recordOperation()

	file := fusefs.handleTracker.Get(fh.handle)
	if file == nil {
		fusefs.stats.recordError()
		return nil, syscall.EBADF
	}

	var n int
	var err error
	if ra, ok := file.(io.ReaderAt); ok {
		n, err = ra.ReadAt(dest, off)
	} else {
		if seeker, ok := file.(io.Seeker); ok {
			_, err = seeker.Seek(off, io.SeekStart)
		}
		if err == nil {
			n, err = file.Read(dest)
		}
	}
	if err != nil && err != io.EOF {
		fusefs.stats.recordError()
		return nil, mapError(err)
	}

	fusefs.stats.recordRead(n)
	return fuse.ReadResultData(dest[:n]), 0
}

// Flush is a no-op; nothing is ever written
func (fh *fuseFileHandle) Flush(ctx context.Context) syscall.Errno {
	fh.node.fusefs.stats.recordOperation()
	return 0
}

// Release closes the file handle
func (fh *fuseFileHandle) Release(ctx context.Context) syscall.Errno {
	fh.node.fusefs.stats.recordOperation()
	return fh.node.fusefs.handleTracker.Release(fh.handle)
}

// Ensure fuseFileHandle implements required interfaces
var _ fs.FileReader = (*fuseFileHandle)(nil)
var _ fs.FileFlusher = (*fuseFileHandle)(nil)
var _ fs.FileReleaser = (*fuseFileHandle)(nil)
