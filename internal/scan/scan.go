package scan

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"audio-dedupe/internal/audio"
	"audio-dedupe/internal/disk"
	"audio-dedupe/internal/fsops"
)

var (
	// ErrPathNotFound means the root does not exist; nothing was scanned
	ErrPathNotFound = errors.New("path not found")
	// ErrPathInaccessible means the root (or something below it) could not be read
	ErrPathInaccessible = errors.New("path inaccessible")
)

// Logger interface for structured logging
type Logger interface {
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Debug(msg string, args ...interface{})
}

// stdLogger wraps standard log.Logger to implement Logger interface
type stdLogger struct {
	*log.Logger
}

func (l *stdLogger) Info(msg string, args ...interface{}) {
	l.logWithLevel("INFO", msg, args...)
}

func (l *stdLogger) Warn(msg string, args ...interface{}) {
	l.logWithLevel("WARN", msg, args...)
}

func (l *stdLogger) Debug(msg string, args ...interface{}) {
	l.logWithLevel("DEBUG", msg, args...)
}

func (l *stdLogger) logWithLevel(level, msg string, args ...interface{}) {
	var parts []interface{}
	parts = append(parts, fmt.Sprintf("[%s]", level), msg)
	parts = append(parts, args...)
	l.Logger.Println(parts...)
}

// Candidate is a lossy file whose base-name key matches at least one lossless file
type Candidate struct {
	Path   string
	Size   int64
	Ext    string // As found on disk, e.g. ".MP3"
	Reason MatchReason
}

// Plan is the side-effect free outcome of scanning one root
type Plan struct {
	Root         string
	FilesScanned int
	Ignored      int // Files that are neither lossy nor lossless
	Lossy        []string
	LosslessKeys map[string][]string
	Candidates   []Candidate
	ScannedAt    time.Time
}

// Unmatched returns the lossy files that have no lossless counterpart
func (p *Plan) Unmatched() []string {
	matched := make(map[string]bool, len(p.Candidates))
	for _, c := range p.Candidates {
		matched[c.Path] = true
	}
	var out []string
	for _, l := range p.Lossy {
		if !matched[l] {
			out = append(out, l)
		}
	}
	return out
}

// Scanner enumerates and classifies audio files through a FileSystem
type Scanner struct {
	fs         fsops.FileSystem
	logger     Logger
	nfsTimeout time.Duration
	now        func() time.Time
}

// NewScanner creates a new Scanner with the given filesystem and logger
func NewScanner(fsys fsops.FileSystem, logger *log.Logger) *Scanner {
	if logger == nil {
		logger = log.Default()
	}
	return &Scanner{
		fs:     fsys,
		logger: &stdLogger{Logger: logger},
		now:    time.Now,
	}
}

// SetNFSTimeout enables the stale-mount check on the root before walking.
// Only meaningful for on-disk filesystems; zero disables it.
func (s *Scanner) SetNFSTimeout(d time.Duration) {
	s.nfsTimeout = d
}

// Scan lists every file under root, classifies it, and matches lossy files
// against the set of lossless base-name keys. Any enumeration failure aborts
// the scan and is returned wrapping ErrPathNotFound or ErrPathInaccessible.
func (s *Scanner) Scan(ctx context.Context, root string) (*Plan, error) {
	if err := s.checkRoot(root); err != nil {
		return nil, err
	}

	s.logger.Info("Starting path scan", "path", root)

	files, err := s.fs.ListFiles(root)
	if err != nil {
		return nil, classifyPathError(root, err)
	}

	plan := &Plan{
		Root:         root,
		FilesScanned: len(files),
		LosslessKeys: make(map[string][]string),
		ScannedAt:    s.now(),
	}

	// Build list of lossy files and set of lossless keys
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		switch audio.Classify(s.fs.Ext(file)) {
		case audio.KindLossy:
			plan.Lossy = append(plan.Lossy, file)
		case audio.KindLossless:
			key := fsops.BaseKey(s.fs, file)
			plan.LosslessKeys[key] = append(plan.LosslessKeys[key], file)
		default:
			plan.Ignored++
		}
	}

	for _, lossy := range plan.Lossy {
		key := fsops.BaseKey(s.fs, lossy)
		counterparts, ok := plan.LosslessKeys[key]
		if !ok {
			continue
		}

		var size int64
		if info, err := s.fs.Stat(lossy); err == nil {
			size = info.Size()
		}

		cand := Candidate{
			Path: lossy,
			Size: size,
			Ext:  s.fs.Ext(lossy),
			Reason: MatchReason{
				Key:          key,
				Counterparts: counterparts,
				EvaluatedAt:  plan.ScannedAt,
			},
		}
		plan.Candidates = append(plan.Candidates, cand)

		s.logger.Debug("File selected for deletion",
			"path", lossy,
			"size", size,
			"reason", cand.Reason.ToLogString(),
		)
	}

	s.logger.Info("Path scan complete",
		"path", root,
		"files", plan.FilesScanned,
		"lossy", len(plan.Lossy),
		"lossless_keys", len(plan.LosslessKeys),
		"candidates_found", len(plan.Candidates),
	)

	return plan, nil
}

// checkRoot makes sure root is an existing, reachable directory
func (s *Scanner) checkRoot(root string) error {
	if s.nfsTimeout > 0 && disk.IsNFSStale(root, s.nfsTimeout) {
		return fmt.Errorf("scan %s: stale network mount: %w", root, ErrPathInaccessible)
	}
	info, err := s.fs.Stat(root)
	if err != nil {
		return classifyPathError(root, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("scan %s: not a directory: %w", root, ErrPathInaccessible)
	}
	return nil
}

func classifyPathError(root string, err error) error {
	if os.IsNotExist(err) {
		return fmt.Errorf("scan %s: %w: %w", root, ErrPathNotFound, err)
	}
	// Permission errors and anything else the walk hits
	return fmt.Errorf("scan %s: %w: %w", root, ErrPathInaccessible, err)
}
