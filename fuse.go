// Package metacache is a bounded, time-aware cache of filesystem metadata.
//
// A Cache maps paths to MetadataSnapshot values (size, modification time,
// inode, mode). It holds at most a fixed number of entries, evicting the least
// recently used one when full, and drops entries that have not been touched
// for longer than a TTL when Expire runs.
//
// The package also serves an absfs.FileSystem over FUSE, read-only, answering
// attribute requests from the cache so repeated lookups do not reach the
// underlying filesystem.
package metacache

import (
	"os"
	"sync/atomic"

	"github.com/absfs/absfs"
	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
	"go.uber.org/zap"
)

// FuseFS represents a mounted, read-only FUSE filesystem whose attributes
// are served from a metadata cache
type FuseFS struct {
	// absFS is the underlying abstract filesystem
	absFS absfs.FileSystem

	// opts contains mount options
	opts *MountOptions

	// server is the FUSE server instance
	server *fuse.Server

	// probe stats absFS and numbers its inodes
	probe *FSProbe

	// cache holds attribute snapshots keyed by absfs path
	cache *Cache

	// handleTracker manages open file handles
	handleTracker *HandleTracker

	// stats collects filesystem statistics
	stats *statsCollector

	logger *zap.Logger

	uid, gid uint32

	// unmounting indicates if the filesystem is being unmounted
	unmounting atomic.Bool

	// Root node for go-fuse
	root *fuseNode
}

// fuseNode implements the fs.InodeEmbedder interface for go-fuse v2
type fuseNode struct {
	fs.Inode
	fusefs *FuseFS
	path   string
}

// Ensure fuseNode implements required interfaces
var _ fs.NodeLookuper = (*fuseNode)(nil)
var _ fs.NodeOpener = (*fuseNode)(nil)
var _ fs.NodeReaddirer = (*fuseNode)(nil)
var _ fs.NodeGetattrer = (*fuseNode)(nil)

// newFuseFS creates a new FUSE filesystem adapter
func newFuseFS(absFS absfs.FileSystem, opts *MountOptions) (*FuseFS, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	probe := NewFSProbe(absFS)
	cache, err := New(Options{
		Capacity:       opts.CacheCapacity,
		TTL:            opts.CacheTTL,
		ExpireInterval: opts.CacheExpireInterval,
		Prober:         probe,
		Logger:         logger.Named("cache"),
	})
	if err != nil {
		return nil, err
	}

	fuseFS := &FuseFS{
		absFS:         absFS,
		opts:          opts,
		probe:         probe,
		cache:         cache,
		handleTracker: NewHandleTracker(),
		stats:         newStatsCollector(),
		logger:        logger,
		uid:           opts.UID,
		gid:           opts.GID,
	}

	// Set UID/GID from the current process unless overridden
	if fuseFS.uid == 0 {
		fuseFS.uid = uint32(os.Getuid())
	}
	if fuseFS.gid == 0 {
		fuseFS.gid = uint32(os.Getgid())
	}

	fuseFS.root = &fuseNode{
		fusefs: fuseFS,
		path:   "/",
	}

	return fuseFS, nil
}

// Cache returns the metadata cache behind the mount.
func (f *FuseFS) Cache() *Cache {
	return f.cache
}

// Stats returns filesystem statistics
func (f *FuseFS) Stats() Stats {
	stats := f.stats.snapshot()
	stats.Mountpoint = f.opts.Mountpoint
	stats.OpenFiles = f.handleTracker.Count()
	stats.KnownInodes = f.probe.inodes.len()
	stats.Cache = f.cache.Stats()
	return stats
}

// checkUnmounting returns true if the filesystem is unmounting
func (f *FuseFS) checkUnmounting() bool {
	return f.unmounting.Load()
}
