package cleanup

import (
	"errors"
	"fmt"
	"strings"
)

// ErrFileDeletion matches every per-file failure of a sweep
var ErrFileDeletion = errors.New("file deletion failed")

// FileError is one lossy file that could not be removed.
// Err is either the safety sentinel that blocked it or the filesystem error.
type FileError struct {
	Path string
	Op   string // "validate" or "remove"
	Err  error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *FileError) Unwrap() error { return e.Err }

func (e *FileError) Is(target error) bool { return target == ErrFileDeletion }

// CleanupError aggregates the per-file failures of one sweep.
// The sweep itself ran to completion; every other candidate was handled.
type CleanupError struct {
	Root     string
	Failures []*FileError
}

func (e *CleanupError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "cleanup %s: %d file(s) could not be deleted", e.Root, len(e.Failures))
	for i, f := range e.Failures {
		if i == 3 {
			fmt.Fprintf(&b, "; and %d more", len(e.Failures)-i)
			break
		}
		b.WriteString("; ")
		b.WriteString(f.Error())
	}
	return b.String()
}

func (e *CleanupError) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f
	}
	return errs
}

// FailedPaths lists the paths that could not be deleted, in sweep order
func (e *CleanupError) FailedPaths() []string {
	out := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		out[i] = f.Path
	}
	return out
}
