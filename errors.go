package metacache

import (
	"errors"
	"fmt"
	"io"
	"os"
	"syscall"
)

var (
	// ErrNotFound is returned when a path has no live entry in the cache.
	ErrNotFound = errors.New("metacache: entry not found")

	// ErrInvalidConfiguration is returned by New for a zero capacity or a negative duration.
	ErrInvalidConfiguration = errors.New("metacache: invalid configuration")

	// ErrProbeFailed matches every *ProbeError via errors.Is.
	ErrProbeFailed = errors.New("metacache: metadata probe failed")

	// ErrAllocation reports that the entry arena had no free slot. The arena is
	// sized to the capacity, so seeing this means the engine is corrupt.
	ErrAllocation = errors.New("metacache: entry allocation failed")

	// ErrClosed is returned by mutating operations after Close.
	ErrClosed = errors.New("metacache: cache is closed")
)

// ProbeErrorKind classifies why a probe failed.
type ProbeErrorKind int

const (
	ProbeOther ProbeErrorKind = iota
	ProbeNotFound
	ProbePermissionDenied
)

func (k ProbeErrorKind) String() string {
	switch k {
	case ProbeNotFound:
		return "not found"
	case ProbePermissionDenied:
		return "permission denied"
	default:
		return "other"
	}
}

// ProbeError records a failed metadata probe and the path it was made for.
type ProbeError struct {
	Path string
	Kind ProbeErrorKind
	Err  error
}

// newProbeError wraps err, classifying it by the os sentinels it matches.
func newProbeError(path string, err error) *ProbeError {
	kind := ProbeOther
	switch {
	case errors.Is(err, os.ErrNotExist):
		kind = ProbeNotFound
	case errors.Is(err, os.ErrPermission):
		kind = ProbePermissionDenied
	}
	return &ProbeError{Path: path, Kind: kind, Err: err}
}

func (e *ProbeError) Error() string {
	return fmt.Sprintf("probe %s: %s: %v", e.Path, e.Kind, e.Err)
}

func (e *ProbeError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrProbeFailed) match any probe failure.
func (e *ProbeError) Is(target error) bool {
	return target == ErrProbeFailed
}

func notFound(op, path string) error {
	return &os.PathError{Op: op, Path: path, Err: ErrNotFound}
}

// mapError translates cache and absfs errors to FUSE error codes
func mapError(err error) syscall.Errno {
	if err == nil {
		return 0
	}

	var perr *ProbeError
	if errors.As(err, &perr) {
		switch perr.Kind {
		case ProbeNotFound:
			return syscall.ENOENT
		case ProbePermissionDenied:
			return syscall.EACCES
		}
	}

	switch {
	case errors.Is(err, os.ErrNotExist), errors.Is(err, ErrNotFound):
		return syscall.ENOENT
	case errors.Is(err, os.ErrExist):
		return syscall.EEXIST
	case errors.Is(err, os.ErrPermission):
		return syscall.EACCES
	case errors.Is(err, os.ErrClosed):
		return syscall.EBADF
	case errors.Is(err, ErrClosed):
		return syscall.ENOTCONN
	case errors.Is(err, os.ErrInvalid):
		return syscall.EINVAL
	case errors.Is(err, io.EOF):
		return 0 // EOF is not an error for FUSE
	}

	// Check for syscall.Errno in error chain
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno
	}

	return syscall.EIO
}
