package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/BurntSushi/toml"
	"go.uber.org/zap"

	"github.com/absfs/metacache"
)

// Config is the metacachefs configuration. It is loaded from a TOML file and
// then overridden by command-line flags.
type Config struct {
	FSName      string `toml:"fs-name"`
	MetricsAddr string `toml:"metrics-addr"`
	Watch       bool   `toml:"watch"`

	Cache CacheConfig `toml:"cache"`
	Mount MountConfig `toml:"mount"`
	Log   LogConfig   `toml:"log"`
}

// CacheConfig sizes the metadata cache.
type CacheConfig struct {
	Capacity       int           `toml:"capacity"`
	TTL            time.Duration `toml:"ttl"`
	ExpireInterval time.Duration `toml:"expire-interval"`
}

// MountConfig holds FUSE mount settings.
type MountConfig struct {
	AttrTimeout        time.Duration `toml:"attr-timeout"`
	EntryTimeout       time.Duration `toml:"entry-timeout"`
	AllowOther         bool          `toml:"allow-other"`
	DefaultPermissions bool          `toml:"default-permissions"`
	Debug              bool          `toml:"debug"`
}

// DefaultConfig mirrors metacache.DefaultMountOptions.
func DefaultConfig() Config {
	opts := metacache.DefaultMountOptions("")
	return Config{
		FSName: opts.FSName,
		Cache: CacheConfig{
			Capacity:       opts.CacheCapacity,
			TTL:            opts.CacheTTL,
			ExpireInterval: opts.CacheExpireInterval,
		},
		Mount: MountConfig{
			AttrTimeout:        opts.AttrTimeout,
			EntryTimeout:       opts.EntryTimeout,
			DefaultPermissions: opts.DefaultPermissions,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// LoadConfig reads path over the defaults. An empty path returns the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("load config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("load config %s: unknown key %q", path, undecoded[0].String())
	}
	return cfg, nil
}

// Validate checks the values a mount cannot start with.
func (c *Config) Validate() error {
	var errs []error
	if c.Cache.Capacity <= 0 {
		errs = append(errs, fmt.Errorf("cache.capacity must be positive, got %d", c.Cache.Capacity))
	}
	if c.Cache.TTL < 0 {
		errs = append(errs, fmt.Errorf("cache.ttl must not be negative, got %s", c.Cache.TTL))
	}
	if c.Cache.ExpireInterval < 0 {
		errs = append(errs, fmt.Errorf("cache.expire-interval must not be negative, got %s", c.Cache.ExpireInterval))
	}
	if c.Mount.AttrTimeout < 0 || c.Mount.EntryTimeout < 0 {
		errs = append(errs, errors.New("mount timeouts must not be negative"))
	}
	if c.Cache.TTL > 0 && c.Cache.TTL < c.Mount.AttrTimeout {
		errs = append(errs, fmt.Errorf("cache.ttl %s is shorter than mount.attr-timeout %s", c.Cache.TTL, c.Mount.AttrTimeout))
	}
	if c.FSName == "" {
		errs = append(errs, errors.New("fs-name must not be empty"))
	}
	return errors.Join(errs...)
}

// mountOptions converts the config into options for metacache.Mount.
func (c *Config) mountOptions(mountpoint string, logger *zap.Logger) *metacache.MountOptions {
	opts := metacache.DefaultMountOptions(mountpoint)
	opts.FSName = c.FSName
	opts.AttrTimeout = c.Mount.AttrTimeout
	opts.EntryTimeout = c.Mount.EntryTimeout
	opts.AllowOther = c.Mount.AllowOther
	opts.DefaultPermissions = c.Mount.DefaultPermissions
	opts.Debug = c.Mount.Debug
	opts.CacheCapacity = c.Cache.Capacity
	opts.CacheTTL = c.Cache.TTL
	opts.CacheExpireInterval = c.Cache.ExpireInterval
	opts.Logger = logger
	return opts
}
