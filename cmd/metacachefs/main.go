// Command metacachefs mounts a host directory read-only over FUSE, serving
// file attributes from an in-memory metadata cache.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/absfs/metacache"
)

func main() {
	if err := rootCommand().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func rootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "metacachefs",
		Short:        "Read-only FUSE mount with a metadata cache",
		SilenceUsage: true,
	}
	cmd.AddCommand(mountCommand())
	return cmd
}

type mountFlags struct {
	config         string
	capacity       int
	ttl            time.Duration
	expireInterval time.Duration
	attrTimeout    time.Duration
	metricsAddr    string
	watch          bool
	logLevel       string
	logFormat      string
	logFile        string
}

func mountCommand() *cobra.Command {
	var flags mountFlags

	cmd := &cobra.Command{
		Use:   "mount <source> <mountpoint>",
		Short: "Mount a directory",
		Long:  "Mount <source> read-only at <mountpoint> until interrupted",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadConfig(flags.config)
			if err != nil {
				return err
			}
			flags.apply(cmd, &cfg)
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runMount(cmd.Context(), cfg, args[0], args[1])
		},
	}

	f := cmd.Flags()
	f.StringVarP(&flags.config, "config", "c", "", "TOML config file")
	f.IntVar(&flags.capacity, "capacity", 0, "maximum number of cached paths")
	f.DurationVar(&flags.ttl, "ttl", 0, "age after which cached metadata is probed again (0 disables)")
	f.DurationVar(&flags.expireInterval, "expire-interval", 0, "how often stale entries are swept")
	f.DurationVar(&flags.attrTimeout, "attr-timeout", 0, "kernel attribute cache timeout")
	f.StringVar(&flags.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	f.BoolVar(&flags.watch, "watch", false, "invalidate cached metadata on filesystem events")
	f.StringVar(&flags.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	f.StringVar(&flags.logFormat, "log-format", "", "log format (console, json)")
	f.StringVar(&flags.logFile, "log-file", "", "log to this file with rotation instead of stderr")
	return cmd
}

// apply overrides cfg with the flags set on the command line.
func (m *mountFlags) apply(cmd *cobra.Command, cfg *Config) {
	changed := cmd.Flags().Changed
	if changed("capacity") {
		cfg.Cache.Capacity = m.capacity
	}
	if changed("ttl") {
		cfg.Cache.TTL = m.ttl
	}
	if changed("expire-interval") {
		cfg.Cache.ExpireInterval = m.expireInterval
	}
	if changed("attr-timeout") {
		cfg.Mount.AttrTimeout = m.attrTimeout
	}
	if changed("metrics-addr") {
		cfg.MetricsAddr = m.metricsAddr
	}
	if changed("watch") {
		cfg.Watch = m.watch
	}
	if changed("log-level") {
		cfg.Log.Level = m.logLevel
	}
	if changed("log-format") {
		cfg.Log.Format = m.logFormat
	}
	if changed("log-file") {
		cfg.Log.Filename = m.logFile
	}
}

func runMount(ctx context.Context, cfg Config, source, mountpoint string) error {
	logger, err := newLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	source, err = filepath.Abs(source)
	if err != nil {
		return err
	}
	if info, err := os.Stat(source); err != nil {
		return err
	} else if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", source)
	}

	fuseFS, err := metacache.Mount(metacache.NewDirFS(source), cfg.mountOptions(mountpoint, logger))
	if err != nil {
		return err
	}

	if cfg.Watch {
		w, err := metacache.NewWatcher(fuseFS.Cache(), logger.Named("watch"), metacache.WithKeyMapper(mountKey(source)))
		if err != nil {
			_ = fuseFS.Unmount()
			return err
		}
		defer w.Close()
		if err := w.Add(source); err != nil {
			_ = fuseFS.Unmount()
			return err
		}
	}

	if cfg.MetricsAddr != "" {
		srv := metricsServer(cfg.MetricsAddr, fuseFS.Cache(), cfg.FSName)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server stopped", zap.Error(err))
			}
		}()
		defer srv.Close()
		logger.Info("serving metrics", zap.String("addr", cfg.MetricsAddr))
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		if err := fuseFS.Unmount(); err != nil {
			logger.Error("unmount failed", zap.Error(err))
		}
	}()

	return fuseFS.Wait()
}

func metricsServer(addr string, c *metacache.Cache, name string) *http.Server {
	reg := prometheus.NewRegistry()
	reg.MustRegister(metacache.NewStatsCollector(c, name))

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	return &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
}

// mountKey maps host paths under source to the cache keys the mount uses.
func mountKey(source string) func(string) (string, bool) {
	return func(hostPath string) (string, bool) {
		rel, err := filepath.Rel(source, hostPath)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return "", false
		}
		if rel == "." {
			return "/", true
		}
		return "/" + filepath.ToSlash(rel), true
	}
}
