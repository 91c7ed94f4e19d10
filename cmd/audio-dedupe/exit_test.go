package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"

	"audio-dedupe/internal/cleanup"
	"audio-dedupe/internal/exitcodes"
	"audio-dedupe/internal/safety"
	"audio-dedupe/internal/scan"
	"audio-dedupe/internal/scheduler"
)

func TestExitCode(t *testing.T) {
	partial := &cleanup.CleanupError{
		Root:     "/m",
		Failures: []*cleanup.FileError{{Path: "/m/a.mp3", Op: "remove", Err: os.ErrPermission}},
	}
	blocked := &cleanup.CleanupError{
		Root:     "/m",
		Failures: []*cleanup.FileError{{Path: "/m/a.mp3", Op: "validate", Err: safety.ErrProtectedPath}},
	}

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, exitcodes.Success},
		{"cancelled", fmt.Errorf("wrap: %w", context.Canceled), exitcodes.Success},
		{"usage", usageError{errors.New("bad flag")}, exitcodes.InvalidConfig},
		{"locked", fmt.Errorf("%w (lock /x)", scheduler.ErrLocked), exitcodes.Locked},
		{"missing root", fmt.Errorf("root /m: %w", scan.ErrPathNotFound), exitcodes.RuntimeError},
		{"safety", blocked, exitcodes.SafetyViolation},
		{"partial", partial, exitcodes.PartialFailure},
		{"runtime beats partial", errors.Join(partial, fmt.Errorf("x: %w", scan.ErrPathInaccessible)), exitcodes.RuntimeError},
		{"interrupted after failures", errors.Join(fmt.Errorf("interrupted: %w", context.Canceled), partial), exitcodes.PartialFailure},
		{"interrupted after blocked delete", errors.Join(blocked, fmt.Errorf("interrupted: %w", context.Canceled)), exitcodes.SafetyViolation},
		{"interrupted with other error", errors.Join(context.Canceled, errors.New("disk I/O error")), exitcodes.RuntimeError},
		{"other", errors.New("database is locked"), exitcodes.RuntimeError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := exitCode(tt.err); got != tt.want {
				t.Errorf("exitCode(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}
