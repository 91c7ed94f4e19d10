package main

import (
	"context"
	"errors"

	"audio-dedupe/internal/cleanup"
	"audio-dedupe/internal/exitcodes"
	"audio-dedupe/internal/safety"
	"audio-dedupe/internal/scan"
	"audio-dedupe/internal/scheduler"
)

// usageError marks a bad flag, argument or configuration file
type usageError struct{ err error }

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

var safetyErrors = []error{
	safety.ErrProtectedPath,
	safety.ErrOutsideAllowed,
	safety.ErrTraversal,
	safety.ErrSymlinkEscape,
	safety.ErrInvalidPath,
}

// exitCode maps a sweep error onto the process exit contract.
// When several roots fail the most severe class wins. An interrupt only
// counts as success when nothing else went wrong before it.
func exitCode(err error) int {
	if err == nil {
		return exitcodes.Success
	}

	var ue usageError
	switch {
	case errors.As(err, &ue):
		return exitcodes.InvalidConfig
	case errors.Is(err, scheduler.ErrLocked):
		return exitcodes.Locked
	case errors.Is(err, scan.ErrPathNotFound), errors.Is(err, scan.ErrPathInaccessible):
		return exitcodes.RuntimeError
	}

	for _, s := range safetyErrors {
		if errors.Is(err, s) {
			return exitcodes.SafetyViolation
		}
	}

	var ce *cleanup.CleanupError
	if errors.As(err, &ce) {
		return exitcodes.PartialFailure
	}
	if interruptedOnly(err) {
		return exitcodes.Success
	}
	return exitcodes.RuntimeError
}

// interruptedOnly reports whether every error in the tree is a cancellation
func interruptedOnly(err error) bool {
	if err == context.Canceled {
		return true
	}
	switch x := err.(type) {
	case interface{ Unwrap() []error }:
		for _, e := range x.Unwrap() {
			if !interruptedOnly(e) {
				return false
			}
		}
		return true
	case interface{ Unwrap() error }:
		if inner := x.Unwrap(); inner != nil {
			return interruptedOnly(inner)
		}
	}
	return false
}
