package metacache

import (
	"errors"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher invalidates cache entries when the files they describe change on
// the host filesystem. It only ever removes entries; the next Fetch or Put
// probes the path again.
type Watcher struct {
	cache     *Cache
	logger    *zap.Logger
	fsWatcher *fsnotify.Watcher
	keyFor    func(hostPath string) (string, bool)

	invalidations atomic.Uint64

	done      chan struct{}
	closeOnce sync.Once
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithKeyMapper translates host paths reported by the OS into cache keys.
// Returning false ignores the event. The default uses the cleaned host path.
func WithKeyMapper(fn func(hostPath string) (string, bool)) WatcherOption {
	return func(w *Watcher) {
		w.keyFor = fn
	}
}

// NewWatcher creates a watcher for c. Directories are added with Add.
func NewWatcher(c *Cache, logger *zap.Logger, opts ...WatcherOption) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	w := &Watcher{
		cache:     c,
		logger:    logger,
		fsWatcher: fsw,
		keyFor: func(p string) (string, bool) {
			return filepath.Clean(p), true
		},
		done: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	go w.run()
	return w, nil
}

// Add watches dir and every non-hidden directory below it.
func (w *Watcher) Add(dir string) error {
	if err := w.addRecursive(dir); err != nil {
		return err
	}
	w.logger.Info("watching for metadata changes", zap.String("dir", dir))
	return nil
}

func (w *Watcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			return nil // Skip unreadable subdirectories
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return w.fsWatcher.Add(path)
	})
}

// Invalidations returns how many cache entries the watcher has removed.
func (w *Watcher) Invalidations() uint64 {
	return w.invalidations.Load()
}

// Close stops watching and waits for the event loop to exit.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		err = w.fsWatcher.Close()
		<-w.done
	})
	return err
}

func (w *Watcher) run() {
	defer close(w.done)

	for {
		select {
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			w.handle(event)

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	// Watch newly created directories so their files are covered too
	if event.Has(fsnotify.Create) {
		if err := w.addRecursive(event.Name); err != nil && !errors.Is(err, fs.ErrNotExist) {
			w.logger.Debug("cannot watch new path", zap.String("path", event.Name), zap.Error(err))
		}
	}

	w.invalidate(event.Name, event.Op)

	// Adding, removing or renaming a child changes the parent's mtime and size
	if event.Has(fsnotify.Create) || event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
		w.invalidate(filepath.Dir(event.Name), event.Op)
	}
}

func (w *Watcher) invalidate(hostPath string, op fsnotify.Op) {
	key, ok := w.keyFor(hostPath)
	if !ok {
		return
	}
	if err := w.cache.Remove(key); err != nil {
		return // not cached, or the cache is closed
	}
	w.invalidations.Add(1)
	w.logger.Debug("invalidated cache entry",
		zap.String("path", key),
		zap.Stringer("op", op))
}
