package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"audio-dedupe/internal/config"
	"audio-dedupe/internal/database"
	"audio-dedupe/internal/logging"
	"audio-dedupe/internal/metrics"
	"audio-dedupe/internal/scheduler"
)

type rootOptions struct {
	configPath  string
	dryRun      bool
	dbPath      string
	interval    int
	metricsPort int
	logDir      string
	lockPath    string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "audio-dedupe [root...]",
		Short: "Delete lossy audio files that have a lossless copy next to them",
		Long: "audio-dedupe walks each root and removes MP3/MP4/AAC/MPC files whose\n" +
			"directory and base name match a FLAC/APE/WAV file. Lossless files are never touched.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.resolveConfig(cmd, args)
			if err != nil {
				return usageError{err}
			}
			return run(cmd.Context(), cfg)
		},
	}

	flags := rootCmd.Flags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "Configuration file path")
	flags.BoolVar(&opts.dryRun, "dry-run", false, "Log what would be deleted without deleting")
	flags.StringVar(&opts.dbPath, "db", "", "History database path (empty string disables history)")
	flags.IntVar(&opts.interval, "interval", 0, "Minutes between sweeps; 0 runs once and exits")
	flags.IntVar(&opts.metricsPort, "metrics-port", 0, "Port for /metrics, /health and /trigger; 0 disables")
	flags.StringVar(&opts.logDir, "log-dir", "", "Directory for the rotated log file")
	flags.StringVar(&opts.lockPath, "lock", "", "Instance lock file path")

	return rootCmd
}

// resolveConfig loads the config file if any, then applies flags and
// positional roots on top of it. Only flags set explicitly override the file.
// Positional roots are relative to the working directory.
func (o *rootOptions) resolveConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.Default()
	if o.configPath != "" {
		loaded, err := config.Read(o.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if len(args) > 0 {
		roots := make([]string, 0, len(args))
		for _, arg := range args {
			abs, err := filepath.Abs(arg)
			if err != nil {
				return nil, fmt.Errorf("root %q: %w", arg, err)
			}
			roots = append(roots, abs)
		}
		cfg.Roots = roots
	}

	flags := cmd.Flags()
	if flags.Changed("dry-run") {
		cfg.DryRun = o.dryRun
	}
	if flags.Changed("db") {
		cfg.DatabasePath = o.dbPath
	}
	if flags.Changed("interval") {
		cfg.IntervalMinutes = o.interval
	}
	if flags.Changed("metrics-port") {
		cfg.Prometheus.Port = o.metricsPort
	}
	if flags.Changed("log-dir") {
		cfg.Logging.Dir = o.logDir
	}
	if flags.Changed("lock") {
		cfg.LockPath = o.lockPath
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func run(parent context.Context, cfg *config.Config) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger, closer := logging.NewWithConfig(cfg)
	defer closer.Close()

	logger.Println("audio-dedupe starting...")
	logger.Printf("roots: %v", cfg.Roots)
	if cfg.DryRun {
		logger.Println("DRY RUN MODE: No files will be deleted")
	}

	metrics.Init()
	trigger := make(chan struct{}, 1)
	if cfg.Prometheus.Port > 0 {
		metrics.SetTriggerChannel(trigger)
		metrics.StartServer(cfg.PrometheusAddress(), logger)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			metrics.Shutdown(shutdownCtx, logger)
		}()
	}

	var db *database.DeletionDB
	if cfg.DatabasePath != "" {
		logger.Printf("Opening history database: %s", cfg.DatabasePath)
		var err error
		db, err = database.NewDeletionDB(cfg.DatabasePath)
		if err != nil {
			return err
		}
		defer func() {
			if err := db.Close(); err != nil {
				logger.Printf("ERROR: Failed to close database: %v", err)
			}
		}()
	}

	opts := scheduler.Options{DB: db, Logger: logger, Trigger: trigger}

	if cfg.Interval() == 0 {
		err := scheduler.RunOnce(ctx, cfg, opts)
		if err == nil {
			logger.Println("Sweep completed successfully")
		}
		return err
	}

	logger.Printf("Sweeping every %s", cfg.Interval())
	err := scheduler.Run(ctx, cfg, opts)
	if errors.Is(err, context.Canceled) {
		logger.Println("audio-dedupe stopped")
		return nil
	}
	return err
}
