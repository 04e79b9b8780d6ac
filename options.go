package metacache

import (
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"
)

// Options configures a Cache.
//
// Use DefaultOptions() to get a set of sensible defaults, then customize
// as needed for your use case.
type Options struct {
	// Capacity is the maximum number of live entries. It must be positive
	// and is fixed for the lifetime of the cache.
	Capacity int

	// TTL is the maximum age, measured from the last access, an entry may
	// reach before Expire removes it. Zero disables expiration.
	TTL time.Duration

	// ExpireInterval runs Expire in the background at this interval.
	// Zero disables the janitor; it is also ignored when TTL is zero.
	ExpireInterval time.Duration

	// Prober supplies metadata for Put and Fetch. Defaults to OSProbe.
	Prober Prober

	// Clock returns the current time. Defaults to time.Now.
	Clock func() time.Time

	// Logger receives eviction, expiry and probe failure events.
	// Defaults to a no-op logger.
	Logger *zap.Logger
}

// DefaultOptions returns options with sensible defaults for general use.
//
// Default values:
//   - Capacity: 1024 entries
//   - TTL: 5 seconds
//   - ExpireInterval: disabled (call Expire yourself)
//   - Prober: OSProbe
func DefaultOptions() Options {
	return Options{
		Capacity: 1024,
		TTL:      5 * time.Second,
		Prober:   OSProbe{},
		Clock:    time.Now,
		Logger:   zap.NewNop(),
	}
}

// validate checks o and fills in defaults for unset collaborators.
func (o *Options) validate() error {
	if o.Capacity <= 0 || o.Capacity > math.MaxInt32 {
		return fmt.Errorf("%w: capacity %d out of range", ErrInvalidConfiguration, o.Capacity)
	}
	if o.TTL < 0 {
		return fmt.Errorf("%w: negative ttl %s", ErrInvalidConfiguration, o.TTL)
	}
	if o.ExpireInterval < 0 {
		return fmt.Errorf("%w: negative expire interval %s", ErrInvalidConfiguration, o.ExpireInterval)
	}
	if o.Prober == nil {
		o.Prober = OSProbe{}
	}
	if o.Clock == nil {
		o.Clock = time.Now
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return nil
}

// MountOptions configures the FUSE mount behavior and the attribute cache
// behind it.
//
// Use DefaultMountOptions() to get a set of sensible defaults, then customize
// as needed for your use case.
type MountOptions struct {
	// Mountpoint is the directory where the filesystem will be mounted
	Mountpoint string

	// AllowOther allows other users to access the mounted filesystem
	// Requires 'user_allow_other' in /etc/fuse.conf on Linux
	AllowOther bool

	// AllowRoot allows root to access the mounted filesystem
	AllowRoot bool

	// DefaultPermissions enables kernel permission checking
	DefaultPermissions bool

	// UID/GID override file ownership
	UID uint32
	GID uint32

	// AttrTimeout sets the kernel attribute cache timeout
	AttrTimeout time.Duration

	// EntryTimeout sets the kernel directory entry cache timeout
	EntryTimeout time.Duration

	// CacheCapacity is the number of paths whose metadata is kept in memory
	CacheCapacity int

	// CacheTTL is the age after which cached metadata is probed again
	CacheTTL time.Duration

	// CacheExpireInterval is how often stale entries are swept
	CacheExpireInterval time.Duration

	// FSName is the name shown in mount table
	FSName string

	// Options contains additional FUSE options
	Options []string

	// Logger receives mount lifecycle and cache events
	Logger *zap.Logger

	// Debug enables go-fuse debug logging
	Debug bool
}

// DefaultMountOptions returns mount options with sensible defaults for general use.
//
// Default values:
//   - AttrTimeout: 1 second
//   - EntryTimeout: 1 second
//   - CacheCapacity: 4096 paths
//   - CacheTTL: 5 seconds, swept every second
//   - DefaultPermissions: true (kernel enforces permissions)
//
// The kernel timeouts bound how long the kernel trusts an answer; CacheTTL
// bounds how long this process does. Keep CacheTTL >= AttrTimeout, otherwise
// the cache is probed more often than the kernel asks.
func DefaultMountOptions(mountpoint string) *MountOptions {
	return &MountOptions{
		Mountpoint:          mountpoint,
		DefaultPermissions:  true,
		AttrTimeout:         1 * time.Second,
		EntryTimeout:        1 * time.Second,
		CacheCapacity:       4096,
		CacheTTL:            5 * time.Second,
		CacheExpireInterval: 1 * time.Second,
		FSName:              "metacache",
	}
}
