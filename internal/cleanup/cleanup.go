package cleanup

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"audio-dedupe/internal/database"
	"audio-dedupe/internal/fsops"
	"audio-dedupe/internal/metrics"
	"audio-dedupe/internal/safety"
	"audio-dedupe/internal/scan"
)

const reasonAlreadyRemoved = "already_removed"

// CleanupLogger interface for structured logging in cleanup
type CleanupLogger interface {
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
}

// cleanupStdLogger wraps standard log.Logger to implement CleanupLogger interface
type cleanupStdLogger struct {
	*log.Logger
}

func (l *cleanupStdLogger) Info(msg string, args ...interface{}) {
	l.logWithLevel("INFO", msg, args...)
}

func (l *cleanupStdLogger) Warn(msg string, args ...interface{}) {
	l.logWithLevel("WARN", msg, args...)
}

func (l *cleanupStdLogger) Error(msg string, args ...interface{}) {
	l.logWithLevel("ERROR", msg, args...)
}

func (l *cleanupStdLogger) logWithLevel(level, msg string, args ...interface{}) {
	var parts []interface{}
	parts = append(parts, fmt.Sprintf("[%s]", level), msg)
	parts = append(parts, args...)
	l.Logger.Println(parts...)
}

// Recorder persists run and per-file history. *database.DeletionDB implements it.
type Recorder interface {
	StartRun(run database.RunRecord) error
	FinishRun(run database.RunRecord) error
	RecordDeletion(runID, action string, candidate scan.Candidate, errorMsg string) error
}

// Report is the outcome of one CleanupDirectory call
type Report struct {
	RunID        string
	Root         string
	DryRun       bool
	FilesScanned int
	LossyFiles   int
	LosslessKeys int
	Candidates   int
	Deleted      []string // Removed, or would have been removed in a dry run
	Vanished     int      // Already gone at delete time
	Skipped      int      // Left in place because of dry run
	BytesFreed   int64
	Failures     []*FileError
	StartedAt    time.Time
	Duration     time.Duration
}

// Status maps the report onto a history run status
func (r *Report) Status() string {
	if len(r.Failures) > 0 {
		return database.StatusPartial
	}
	return database.StatusOK
}

// Cleaner deletes lossy audio files that have a lossless counterpart
type Cleaner struct {
	fs        fsops.FileSystem
	scanner   *scan.Scanner
	logger    CleanupLogger
	recorder  Recorder
	dryRun    bool
	protected []string
	now       func() time.Time
}

// NewCleaner creates a new Cleaner instance
func NewCleaner(fsys fsops.FileSystem, logger *log.Logger) *Cleaner {
	if logger == nil {
		logger = log.Default()
	}
	metrics.Init()
	return &Cleaner{
		fs:      fsys,
		scanner: scan.NewScanner(fsys, logger),
		logger:  &cleanupStdLogger{Logger: logger},
		now:     time.Now,
	}
}

// SetDryRun makes the cleaner log and record candidates without removing them
func (c *Cleaner) SetDryRun(dryRun bool) {
	c.dryRun = dryRun
}

// SetRecorder enables history recording; nil disables it
func (c *Cleaner) SetRecorder(r Recorder) {
	c.recorder = r
}

// SetProtectedPaths adds paths that must never be deleted, on top of the system defaults
func (c *Cleaner) SetProtectedPaths(paths []string) {
	c.protected = append([]string(nil), paths...)
}

// SetNFSTimeout enables the stale network mount check on the root
func (c *Cleaner) SetNFSTimeout(d time.Duration) {
	c.scanner.SetNFSTimeout(d)
}

// CleanupDirectory removes every lossy file under rootPath whose base-name key
// matches a lossless file. Per-file failures do not stop the sweep; they are
// returned together as a *CleanupError alongside the report.
func (c *Cleaner) CleanupDirectory(ctx context.Context, rootPath string) (*Report, error) {
	report := &Report{
		RunID:     uuid.NewString(),
		Root:      rootPath,
		DryRun:    c.dryRun,
		StartedAt: c.now(),
	}
	c.startRun(report)

	validator := c.validatorFor(rootPath)
	if err := validator.ValidateRoot(rootPath); err != nil {
		c.logger.Error("Refusing to sweep protected root", "path", rootPath, "error", err)
		metrics.ErrorsTotal.Inc()
		c.finishRun(report, database.StatusFailed, err)
		return report, err
	}

	plan, err := c.scanner.Scan(ctx, rootPath)
	if err != nil {
		c.logger.Error("Scan failed", "path", rootPath, "error", err)
		metrics.ErrorsTotal.Inc()
		c.finishRun(report, statusFor(err), err)
		return report, err
	}

	report.FilesScanned = plan.FilesScanned
	report.LossyFiles = len(plan.Lossy)
	report.LosslessKeys = len(plan.LosslessKeys)
	report.Candidates = len(plan.Candidates)
	metrics.RecordScan(rootPath, plan.FilesScanned, len(plan.Lossy), len(plan.LosslessKeys), len(plan.Candidates))

	c.logger.Info("Starting cleanup",
		"path", rootPath,
		"total_candidates", len(plan.Candidates),
		"unmatched_lossy", len(plan.Unmatched()),
		"dry_run", c.dryRun,
	)

	var ctxErr error
	for _, cand := range plan.Candidates {
		if err := ctx.Err(); err != nil {
			ctxErr = err
			break
		}
		c.process(report, validator, cand)
	}

	var result error
	if len(report.Failures) > 0 {
		result = &CleanupError{Root: rootPath, Failures: report.Failures}
	}

	status := report.Status()
	if ctxErr != nil {
		status = database.StatusInterrupted
		result = errors.Join(fmt.Errorf("cleanup %s interrupted: %w", rootPath, ctxErr), result)
	}
	c.finishRun(report, status, result)

	c.logger.Info("Cleanup complete",
		"path", rootPath,
		"deleted", len(report.Deleted),
		"vanished", report.Vanished,
		"failed", len(report.Failures),
		"space_freed_bytes", report.BytesFreed,
		"space_freed", humanize.IBytes(uint64(report.BytesFreed)),
		"duration", report.Duration.Round(time.Millisecond),
	)

	return report, result
}

func (c *Cleaner) process(report *Report, validator *safety.Validator, cand scan.Candidate) {
	match := cand.Reason.ToLogString()

	if err := validator.ValidateDeleteTarget(cand.Path); err != nil {
		c.logger.Warn("Refusing unsafe delete", "path", cand.Path, "error", err)
		c.logStructured(database.ActionSkip, cand, match)
		c.record(report.RunID, database.ActionSkip, cand, err.Error())
		report.Failures = append(report.Failures, &FileError{Path: cand.Path, Op: "validate", Err: err})
		metrics.RecordFailure("safety")
		return
	}

	if c.dryRun {
		c.logger.Info("[DRY RUN] Would delete file", "path", cand.Path, "size", cand.Size)
		c.logStructured(database.ActionDryRun, cand, match)
		c.record(report.RunID, database.ActionDryRun, cand, "")
		report.Deleted = append(report.Deleted, cand.Path)
		report.Skipped++
		return
	}

	if err := c.fs.Remove(cand.Path); err != nil {
		// Gone between scan and delete; the file is absent either way
		if os.IsNotExist(err) {
			c.logger.Info("File already deleted", "path", cand.Path)
			c.logStructured(database.ActionSkip, cand, reasonAlreadyRemoved)
			c.record(report.RunID, database.ActionSkip, cand, reasonAlreadyRemoved)
			report.Vanished++
			return
		}

		c.logger.Error("Failed to delete", "path", cand.Path, "error", err)
		c.logStructured(database.ActionError, cand, match)
		c.record(report.RunID, database.ActionError, cand, err.Error())
		report.Failures = append(report.Failures, &FileError{Path: cand.Path, Op: "remove", Err: err})
		metrics.RecordFailure("delete")
		return
	}

	c.logStructured(database.ActionDelete, cand, match)
	c.record(report.RunID, database.ActionDelete, cand, "")
	report.Deleted = append(report.Deleted, cand.Path)
	report.BytesFreed += cand.Size
	metrics.RecordDeletion(strings.ToUpper(cand.Ext), cand.Size)
}

// validatorFor scopes the safety checks to a single root
func (c *Cleaner) validatorFor(root string) *safety.Validator {
	v := safety.NewValidator([]string{root}, c.protected)
	if r, ok := c.fs.(fsops.SymlinkResolver); ok {
		v.SetResolver(r.EvalSymlinks)
	}
	return v
}

func (c *Cleaner) record(runID, action string, cand scan.Candidate, msg string) {
	if c.recorder == nil {
		return
	}
	if err := c.recorder.RecordDeletion(runID, action, cand, msg); err != nil {
		// Don't fail cleanup if DB write fails
		c.logger.Error("Failed to record to database", "path", cand.Path, "error", err)
		metrics.ErrorsTotal.Inc()
	}
}

func (c *Cleaner) startRun(report *Report) {
	if c.recorder == nil {
		return
	}
	run := database.RunRecord{
		ID:        report.RunID,
		Root:      report.Root,
		DryRun:    report.DryRun,
		StartedAt: report.StartedAt,
	}
	if err := c.recorder.StartRun(run); err != nil {
		c.logger.Error("Failed to record run start", "run_id", report.RunID, "error", err)
		metrics.ErrorsTotal.Inc()
	}
}

func (c *Cleaner) finishRun(report *Report, status string, runErr error) {
	report.Duration = c.now().Sub(report.StartedAt)
	metrics.RecordCleanupRun(report.Duration)

	if c.recorder == nil {
		return
	}
	run := database.RunRecord{
		ID:           report.RunID,
		Root:         report.Root,
		DryRun:       report.DryRun,
		StartedAt:    report.StartedAt,
		FinishedAt:   report.StartedAt.Add(report.Duration),
		FilesScanned: report.FilesScanned,
		LossyFiles:   report.LossyFiles,
		LosslessKeys: report.LosslessKeys,
		Candidates:   report.Candidates,
		Deleted:      len(report.Deleted) - report.Skipped,
		Vanished:     report.Vanished,
		Failed:       len(report.Failures),
		BytesFreed:   report.BytesFreed,
		Status:       status,
	}
	if runErr != nil {
		run.ErrorMessage = runErr.Error()
	}
	if err := c.recorder.FinishRun(run); err != nil {
		c.logger.Error("Failed to record run result", "run_id", report.RunID, "error", err)
		metrics.ErrorsTotal.Inc()
	}
}

func statusFor(err error) string {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return database.StatusInterrupted
	}
	return database.StatusFailed
}

// logStructured logs with structured format: timestamp, action, path, size, match reason
func (c *Cleaner) logStructured(action string, cand scan.Candidate, match string) {
	logEntry := fmt.Sprintf("[%s] %s path=%s object=lossy size=%d",
		c.now().UTC().Format(time.RFC3339),
		action,
		cand.Path,
		cand.Size,
	)
	if exts := cand.Reason.CounterpartExtensions(); exts != "" {
		logEntry += " counterparts=" + exts
	}
	if match != "" {
		escaped := strings.ReplaceAll(match, `"`, `\"`)
		logEntry += fmt.Sprintf(` match="%s"`, escaped)
	}
	c.logger.Info(logEntry)
}
