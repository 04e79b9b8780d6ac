package metacache

import (
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/absfs/absfs"
)

// dirFS exposes a host directory as an absfs.FileSystem. Names are absfs
// paths ("/" separated, rooted at the directory) and cannot escape it.
type dirFS struct {
	root string
}

// NewDirFS returns an absfs.FileSystem rooted at the host directory root.
func NewDirFS(root string) absfs.FileSystem {
	return &dirFS{root: filepath.Clean(root)}
}

// HostPath maps an absfs path under fsys to its host path. ok is false when
// fsys was not created by NewDirFS.
func HostPath(fsys absfs.FileSystem, name string) (string, bool) {
	d, ok := fsys.(*dirFS)
	if !ok {
		return "", false
	}
	return d.path(name), true
}

func (d *dirFS) OpenFile(name string, flag int, perm os.FileMode) (absfs.File, error) {
	return os.OpenFile(d.path(name), flag, perm)
}

func (d *dirFS) Mkdir(name string, perm os.FileMode) error {
	return os.Mkdir(d.path(name), perm)
}

func (d *dirFS) Remove(name string) error {
	return os.Remove(d.path(name))
}

func (d *dirFS) Rename(oldpath, newpath string) error {
	return os.Rename(d.path(oldpath), d.path(newpath))
}

func (d *dirFS) Stat(name string) (os.FileInfo, error) {
	return os.Stat(d.path(name))
}

func (d *dirFS) Chmod(name string, mode os.FileMode) error {
	return os.Chmod(d.path(name), mode)
}

func (d *dirFS) Chtimes(name string, atime time.Time, mtime time.Time) error {
	return os.Chtimes(d.path(name), atime, mtime)
}

func (d *dirFS) Chown(name string, uid, gid int) error {
	return os.Chown(d.path(name), uid, gid)
}

func (d *dirFS) Separator() uint8 {
	return '/'
}

func (d *dirFS) ListSeparator() uint8 {
	return os.PathListSeparator
}

// Chdir is not supported; names are always resolved from the root.
func (d *dirFS) Chdir(dir string) error {
	return &os.PathError{Op: "chdir", Path: dir, Err: os.ErrInvalid}
}

func (d *dirFS) Getwd() (string, error) {
	return "/", nil
}

func (d *dirFS) TempDir() string {
	return os.TempDir()
}

func (d *dirFS) Open(name string) (absfs.File, error) {
	return os.Open(d.path(name))
}

func (d *dirFS) Create(name string) (absfs.File, error) {
	return os.Create(d.path(name))
}

func (d *dirFS) MkdirAll(name string, perm os.FileMode) error {
	return os.MkdirAll(d.path(name), perm)
}

func (d *dirFS) RemoveAll(name string) error {
	return os.RemoveAll(d.path(name))
}

func (d *dirFS) Truncate(name string, size int64) error {
	return os.Truncate(d.path(name), size)
}

func (d *dirFS) path(name string) string {
	return filepath.Join(d.root, filepath.FromSlash(path.Clean("/"+name)))
}
