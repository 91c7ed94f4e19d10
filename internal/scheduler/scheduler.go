package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gofrs/flock"

	"audio-dedupe/internal/cleanup"
	"audio-dedupe/internal/config"
	"audio-dedupe/internal/database"
	"audio-dedupe/internal/disk"
	"audio-dedupe/internal/fsops"
	"audio-dedupe/internal/metrics"
)

// ErrLocked means another instance holds the lock file
var ErrLocked = errors.New("another instance is already running")

// Options carries the collaborators of a sweep
type Options struct {
	// FS defaults to the local disk. Disk usage and stale mount checks only
	// run against the local disk.
	FS      fsops.FileSystem
	DB      *database.DeletionDB
	Logger  *log.Logger
	Trigger <-chan struct{}
}

func (o *Options) withDefaults() (fsops.FileSystem, bool, *log.Logger) {
	logger := o.Logger
	if logger == nil {
		logger = log.Default()
	}
	if o.FS == nil {
		return fsops.NewOSFileSystem(), true, logger
	}
	return o.FS, false, logger
}

// RunOnce sweeps every configured root in order under the instance lock.
// A root that fails does not stop the others; all root errors are joined.
func RunOnce(ctx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return errors.New("nil config")
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	fsys, local, logger := opts.withDefaults()

	unlock, err := acquireLock(cfg.LockPath)
	if err != nil {
		metrics.ErrorsTotal.Inc()
		return err
	}
	defer unlock(logger)

	cleaner := cleanup.NewCleaner(fsys, logger)
	cleaner.SetDryRun(cfg.DryRun)
	cleaner.SetProtectedPaths(cfg.ProtectedPaths)
	if local {
		cleaner.SetNFSTimeout(cfg.NFSTimeoutDuration())
	}
	if opts.DB != nil {
		cleaner.SetRecorder(opts.DB)
	}

	start := time.Now()
	var (
		errs    []error
		deleted int
		freed   int64
	)
	for _, root := range cfg.Roots {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		if local {
			updateDiskMetrics(root, logger)
		}

		report, err := cleaner.CleanupDirectory(ctx, root)
		if report != nil {
			deleted += len(report.Deleted)
			freed += report.BytesFreed
		}
		if err != nil {
			logger.Printf("root %s: %v", root, err)
			errs = append(errs, fmt.Errorf("root %s: %w", root, err))
		}

		if local {
			updateDiskMetrics(root, logger)
		}
	}

	result := errors.Join(errs...)
	metrics.SetHealthy(result == nil)

	logger.Printf("cycle complete: roots=%d deleted=%d freed=%s dry_run=%t duration=%.3fs",
		len(cfg.Roots), deleted, humanize.IBytes(uint64(freed)), cfg.DryRun, time.Since(start).Seconds())
	return result
}

// Run sweeps once, then again on every interval tick and trigger request
// until ctx is cancelled. A zero interval only listens for triggers.
func Run(ctx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return errors.New("nil config")
	}
	_, _, logger := opts.withDefaults()

	if err := RunOnce(ctx, cfg, opts); err != nil {
		logger.Printf("error running cycle: %v", err)
	}

	var tick <-chan time.Time
	if cfg.Interval() > 0 {
		ticker := time.NewTicker(cfg.Interval())
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			logger.Println("scheduler shutting down")
			return ctx.Err()
		case <-tick:
		case <-opts.Trigger:
			logger.Println("sweep triggered")
		}
		if err := RunOnce(ctx, cfg, opts); err != nil {
			logger.Printf("error running cycle: %v", err)
		}
	}
}

// acquireLock takes the instance lock; an empty path disables locking
func acquireLock(path string) (func(*log.Logger), error) {
	if path == "" {
		return func(*log.Logger) {}, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create lock dir: %w", err)
	}
	lock := flock.New(path)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w (lock %s)", ErrLocked, path)
	}
	return func(logger *log.Logger) {
		if err := lock.Unlock(); err != nil {
			logger.Printf("failed to release lock: %v", err)
		}
	}, nil
}

func updateDiskMetrics(root string, logger *log.Logger) {
	usage, err := disk.GetUsage(root)
	if err != nil {
		logger.Printf("failed to get disk usage for %s: %v", root, err)
		return
	}
	metrics.UpdateDiskMetrics(root, usage)
}
