package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"audio-dedupe/internal/scan"
)

// Actions recorded per lossy candidate
const (
	ActionDelete = "DELETE"
	ActionDryRun = "DRY_RUN"
	ActionSkip   = "SKIP"
	ActionError  = "ERROR"
)

// Run statuses
const (
	StatusRunning     = "running"
	StatusOK          = "ok"
	StatusPartial     = "partial"
	StatusFailed      = "failed"
	StatusInterrupted = "interrupted"
)

const schemaVersion = 1

// DeletionDB manages the SQLite database for cleanup history
type DeletionDB struct {
	db *sql.DB
}

// DeletionRecord represents a single action taken on a lossy file
type DeletionRecord struct {
	ID           int64
	RunID        string
	Timestamp    time.Time
	Action       string
	Path         string
	FileName     string
	Extension    string
	BaseKey      string
	Counterpart  string // First lossless file sharing BaseKey
	Counterparts int    // Number of lossless files sharing BaseKey
	Size         int64
	MatchReason  string
	ErrorMessage string
	CreatedAt    time.Time
}

// RunRecord represents one sweep of one root
type RunRecord struct {
	ID           string
	Root         string
	DryRun       bool
	StartedAt    time.Time
	FinishedAt   time.Time
	FilesScanned int
	LossyFiles   int
	LosslessKeys int
	Candidates   int
	Deleted      int
	Vanished     int
	Failed       int
	BytesFreed   int64
	Status       string
	ErrorMessage string
}

// NewDeletionDB creates a new database connection and initializes schema
func NewDeletionDB(dbPath string) (*DeletionDB, error) {
	dir := filepath.Dir(dbPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory %s: %w", dir, err)
		}
	}

	// _loc=auto enables automatic DATETIME parsing
	db, err := sql.Open("sqlite3", "file:"+dbPath+"?_loc=auto&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One writer at a time; SQLite serializes writes anyway
	db.SetMaxOpenConns(1)
	defer func() {
		if err != nil {
			db.Close()
		}
	}()

	// Exec instead of Ping so the file is created right away
	if _, err = db.Exec("SELECT 1"); err != nil {
		return nil, fmt.Errorf("failed to initialize database (check permissions on %s): %w", dbPath, err)
	}

	if _, err = db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if _, err = db.Exec("PRAGMA synchronous=NORMAL"); err != nil {
		return nil, fmt.Errorf("failed to set synchronous mode: %w", err)
	}

	ddb := &DeletionDB{db: db}
	if err = ddb.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return ddb, nil
}

// initSchema creates tables and indexes if they don't exist
func (d *DeletionDB) initSchema() error {
	schema := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		root TEXT NOT NULL,
		dry_run INTEGER NOT NULL DEFAULT 0,
		started_at DATETIME NOT NULL,
		finished_at DATETIME,
		files_scanned INTEGER NOT NULL DEFAULT 0,
		lossy_files INTEGER NOT NULL DEFAULT 0,
		lossless_keys INTEGER NOT NULL DEFAULT 0,
		candidates INTEGER NOT NULL DEFAULT 0,
		deleted INTEGER NOT NULL DEFAULT 0,
		vanished INTEGER NOT NULL DEFAULT 0,
		failed INTEGER NOT NULL DEFAULT 0,
		bytes_freed INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL,
		error_message TEXT
	);

	CREATE TABLE IF NOT EXISTS deletions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		timestamp DATETIME NOT NULL,
		action TEXT NOT NULL,
		path TEXT NOT NULL,
		file_name TEXT,
		extension TEXT,
		base_key TEXT NOT NULL,
		counterpart TEXT,
		counterparts INTEGER NOT NULL DEFAULT 0,
		size INTEGER NOT NULL,
		match_reason TEXT,
		error_message TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
	CREATE INDEX IF NOT EXISTS idx_runs_root ON runs(root);
	CREATE INDEX IF NOT EXISTS idx_deletions_run_id ON deletions(run_id);
	CREATE INDEX IF NOT EXISTS idx_deletions_timestamp ON deletions(timestamp);
	CREATE INDEX IF NOT EXISTS idx_deletions_action ON deletions(action);
	CREATE INDEX IF NOT EXISTS idx_deletions_path ON deletions(path);
	CREATE INDEX IF NOT EXISTS idx_deletions_extension ON deletions(extension);

	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	INSERT OR IGNORE INTO schema_version (version) VALUES (%d);
	`, schemaVersion)

	_, err := d.db.Exec(schema)
	return err
}

// StartRun inserts a run row in the running state
func (d *DeletionDB) StartRun(run RunRecord) error {
	status := run.Status
	if status == "" {
		status = StatusRunning
	}
	_, err := d.db.Exec(`
	INSERT INTO runs (id, root, dry_run, started_at, status)
	VALUES (?, ?, ?, ?, ?)
	`, run.ID, run.Root, run.DryRun, run.StartedAt, status)
	return err
}

// FinishRun stores the final counters and status of a run
func (d *DeletionDB) FinishRun(run RunRecord) error {
	res, err := d.db.Exec(`
	UPDATE runs SET
		finished_at = ?, files_scanned = ?, lossy_files = ?, lossless_keys = ?,
		candidates = ?, deleted = ?, vanished = ?, failed = ?, bytes_freed = ?,
		status = ?, error_message = ?
	WHERE id = ?
	`,
		run.FinishedAt, run.FilesScanned, run.LossyFiles, run.LosslessKeys,
		run.Candidates, run.Deleted, run.Vanished, run.Failed, run.BytesFreed,
		run.Status, nullIfEmpty(run.ErrorMessage),
		run.ID,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("run %s not found", run.ID)
	}
	return nil
}

// RecordDeletion inserts one action on a lossy candidate
func (d *DeletionDB) RecordDeletion(
	runID string,
	action string,
	candidate scan.Candidate,
	errorMsg string,
) error {
	reason := candidate.Reason
	ts := reason.EvaluatedAt
	if ts.IsZero() {
		ts = time.Now()
	}

	_, err := d.db.Exec(`
	INSERT INTO deletions (
		run_id, timestamp, action, path, file_name, extension,
		base_key, counterpart, counterparts, size, match_reason, error_message
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		runID,
		ts,
		action,
		candidate.Path,
		filepath.Base(candidate.Path),
		strings.ToUpper(strings.TrimPrefix(candidate.Ext, ".")),
		reason.Key,
		nullIfEmpty(reason.PrimaryCounterpart()),
		len(reason.Counterparts),
		candidate.Size,
		reason.ToLogString(),
		nullIfEmpty(errorMsg),
	)
	return err
}

func nullIfEmpty(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// Close closes the database connection
func (d *DeletionDB) Close() error {
	return d.db.Close()
}

// Vacuum optimizes the database (run periodically)
func (d *DeletionDB) Vacuum() error {
	_, err := d.db.Exec("VACUUM")
	return err
}
