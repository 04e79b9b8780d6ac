package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 4096, cfg.Cache.Capacity)
	assert.Equal(t, 5*time.Second, cfg.Cache.TTL)
	assert.Equal(t, "metacache", cfg.FSName)
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metacachefs.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
fs-name = "photos"
watch = true

[cache]
capacity = 100
ttl = "30s"

[mount]
attr-timeout = "2s"

[log]
level = "debug"
format = "json"
`), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "photos", cfg.FSName)
	assert.True(t, cfg.Watch)
	assert.Equal(t, 100, cfg.Cache.Capacity)
	assert.Equal(t, 30*time.Second, cfg.Cache.TTL)
	assert.Equal(t, time.Second, cfg.Cache.ExpireInterval, "unset keys keep defaults")
	assert.Equal(t, 2*time.Second, cfg.Mount.AttrTimeout)
	assert.Equal(t, "debug", cfg.Log.Level)
	require.NoError(t, cfg.Validate())
}

func TestLoadConfig_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadConfig(filepath.Join(dir, "missing.toml"))
	assert.Error(t, err)

	unknown := filepath.Join(dir, "unknown.toml")
	require.NoError(t, os.WriteFile(unknown, []byte("[cache]\nsize = 3\n"), 0644))
	_, err = LoadConfig(unknown)
	assert.ErrorContains(t, err, "cache.size")

	empty, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), empty)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"zero capacity", func(c *Config) { c.Cache.Capacity = 0 }, "cache.capacity"},
		{"negative ttl", func(c *Config) { c.Cache.TTL = -time.Second }, "cache.ttl"},
		{"negative interval", func(c *Config) { c.Cache.ExpireInterval = -time.Second }, "cache.expire-interval"},
		{"negative timeout", func(c *Config) { c.Mount.EntryTimeout = -time.Second }, "timeouts"},
		{"ttl below attr timeout", func(c *Config) { c.Cache.TTL = time.Millisecond }, "shorter than"},
		{"empty name", func(c *Config) { c.FSName = "" }, "fs-name"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.want)
		})
	}

	cfg := DefaultConfig()
	cfg.Cache.TTL = 0
	assert.NoError(t, cfg.Validate(), "ttl 0 disables expiry")
}

func TestConfigMountOptions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Cache.Capacity = 7
	cfg.Mount.AllowOther = true
	logger := zap.NewNop()

	opts := cfg.mountOptions("/mnt/x", logger)
	assert.Equal(t, "/mnt/x", opts.Mountpoint)
	assert.Equal(t, 7, opts.CacheCapacity)
	assert.True(t, opts.AllowOther)
	assert.Same(t, logger, opts.Logger)
}

func TestNewLogger(t *testing.T) {
	logger, err := newLogger(LogConfig{Level: "warn", Format: "json"})
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zap.InfoLevel))
	assert.True(t, logger.Core().Enabled(zap.WarnLevel))

	_, err = newLogger(LogConfig{Level: "loud"})
	assert.Error(t, err)

	_, err = newLogger(LogConfig{Level: "info", Format: "xml"})
	assert.ErrorContains(t, err, "unsupported log format")
}
