package metacache

import (
	"fmt"
	"os"
	"path/filepath"
	"syscall"

	"github.com/absfs/absfs"
	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
	"go.uber.org/zap"
)

// Mount mounts an absfs.FileSystem read-only at the specified mountpoint
func Mount(absFS absfs.FileSystem, opts *MountOptions) (*FuseFS, error) {
	if opts == nil {
		return nil, fmt.Errorf("mount options cannot be nil")
	}

	if opts.Mountpoint == "" {
		return nil, fmt.Errorf("mountpoint cannot be empty")
	}

	// Create mountpoint if it doesn't exist
	if err := os.MkdirAll(opts.Mountpoint, 0755); err != nil {
		return nil, fmt.Errorf("failed to create mountpoint: %w", err)
	}

	// Check if mountpoint is empty
	entries, err := os.ReadDir(opts.Mountpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to read mountpoint: %w", err)
	}
	if len(entries) > 0 {
		return nil, fmt.Errorf("mountpoint is not empty")
	}

	fuseFS, err := newFuseFS(absFS, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create metadata cache: %w", err)
	}

	fuseOpts := &fs.Options{
		MountOptions: fuse.MountOptions{
			Name:          opts.FSName,
			FsName:        opts.FSName,
			DirectMount:   false,
			Debug:         opts.Debug,
			AllowOther:    opts.AllowOther,
			Options:       append([]string{"ro"}, opts.Options...),
			MaxBackground: 12,
		},
		AttrTimeout:  &opts.AttrTimeout,
		EntryTimeout: &opts.EntryTimeout,
	}

	if opts.DefaultPermissions {
		fuseOpts.MountOptions.Options = append(fuseOpts.MountOptions.Options, "default_permissions")
	}

	if opts.AllowRoot {
		fuseOpts.MountOptions.Options = append(fuseOpts.MountOptions.Options, "allow_root")
	}

	server, err := fs.Mount(opts.Mountpoint, fuseFS.root, fuseOpts)
	if err != nil {
		_ = fuseFS.cache.Close()
		return nil, fmt.Errorf("failed to mount filesystem: %w", err)
	}

	fuseFS.server = server
	fuseFS.logger.Info("mounted",
		zap.String("mountpoint", opts.Mountpoint),
		zap.Int("cache_capacity", opts.CacheCapacity),
		zap.Duration("cache_ttl", opts.CacheTTL))

	return fuseFS, nil
}

// Unmount unmounts the filesystem and releases the cache
func (f *FuseFS) Unmount() error {
	// Signal all operations to complete
	f.unmounting.Store(true)

	f.handleTracker.CloseAll()

	stats := f.Stats()
	_ = f.cache.Close()

	f.logger.Info("unmounting",
		zap.String("mountpoint", f.opts.Mountpoint),
		zap.Uint64("operations", stats.Operations),
		zap.Uint64("cache_hits", stats.Cache.Hits),
		zap.Uint64("cache_misses", stats.Cache.Misses))

	if f.server != nil {
		return f.server.Unmount()
	}

	return nil
}

// Wait blocks until the filesystem is unmounted
func (f *FuseFS) Wait() error {
	if f.server == nil {
		return fmt.Errorf("filesystem not mounted")
	}

	f.server.Wait()
	return nil
}

// MountAndWait mounts a filesystem and waits for it to be unmounted
func MountAndWait(absFS absfs.FileSystem, opts *MountOptions) error {
	fuseFS, err := Mount(absFS, opts)
	if err != nil {
		return err
	}

	return fuseFS.Wait()
}

// IsMounted checks if a directory is a FUSE mountpoint
func IsMounted(path string) (bool, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false, err
	}

	var stat syscall.Stat_t
	if err := syscall.Stat(absPath, &stat); err != nil {
		return false, err
	}

	parent := filepath.Dir(absPath)
	var parentStat syscall.Stat_t
	if err := syscall.Stat(parent, &parentStat); err != nil {
		return false, err
	}

	// If device IDs differ, it's a mount point
	return stat.Dev != parentStat.Dev, nil
}
