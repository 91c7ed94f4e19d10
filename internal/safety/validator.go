package safety

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var (
	ErrInvalidPath    = errors.New("invalid path")
	ErrProtectedPath  = errors.New("protected path")
	ErrOutsideAllowed = errors.New("outside allowed roots")
	ErrTraversal      = errors.New("path traversal detected")
	ErrSymlinkEscape  = errors.New("symlink escape detected")
)

// Validator enforces the safety contract for all delete operations
type Validator struct {
	AllowedRoots   []string
	ProtectedPaths []string

	// Resolve follows symlinks for the escape check; defaults to filepath.EvalSymlinks
	Resolve func(path string) (string, error)

	resolvedRoots []string
}

// NewValidator creates a validator with allowed roots and optional additional protected paths
func NewValidator(allowed []string, extraProtected []string) *Validator {
	v := &Validator{
		AllowedRoots:   normalizeRoots(allowed),
		ProtectedPaths: defaultProtected(extraProtected),
		Resolve:        filepath.EvalSymlinks,
	}
	v.resolvedRoots = resolveRoots(v.AllowedRoots, v.Resolve)
	return v
}

// SetResolver swaps the symlink resolver, e.g. for a filesystem that is not the local disk
func (v *Validator) SetResolver(resolve func(string) (string, error)) {
	v.Resolve = resolve
	v.resolvedRoots = resolveRoots(v.AllowedRoots, resolve)
}

// ValidateDeleteTarget is the single-source-of-truth for delete authorization
// Returns typed error on safety violation
func (v *Validator) ValidateDeleteTarget(path string) error {
	p, err := NormalizePath(path)
	if err != nil {
		return err
	}

	if IsProtectedPath(p, v.ProtectedPaths) {
		return ErrProtectedPath
	}

	if !IsWithinAllowedRoots(p, v.AllowedRoots) {
		return ErrOutsideAllowed
	}

	if DetectTraversal(path) {
		return ErrTraversal
	}

	// The target itself is unlinked, never followed, so only its parent
	// directory has to stay inside the roots once symlinks are resolved
	resolve := v.Resolve
	if resolve == nil {
		resolve = filepath.EvalSymlinks
	}
	roots := append(append([]string{}, v.AllowedRoots...), v.resolvedRoots...)
	escaped, err := detectSymlinkEscape(filepath.Dir(p), roots, resolve)
	if err != nil {
		// Parent vanished or never existed on this filesystem; the delete itself will report it
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if escaped {
		return ErrSymlinkEscape
	}

	return nil
}

// ValidateRoot rejects a sweep root that lies inside a protected path
func (v *Validator) ValidateRoot(root string) error {
	p, err := NormalizePath(root)
	if err != nil {
		return err
	}
	if IsProtectedPath(p, v.ProtectedPaths) {
		return fmt.Errorf("root %s: %w", p, ErrProtectedPath)
	}
	return nil
}

// NormalizePath converts path to absolute, cleaned form
func NormalizePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", ErrInvalidPath
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", ErrInvalidPath
	}
	return filepath.Clean(abs), nil
}

// DetectTraversal blocks any ".." segment in raw input
func DetectTraversal(raw string) bool {
	for _, p := range strings.Split(filepath.ToSlash(raw), "/") {
		if p == ".." {
			return true
		}
	}
	return false
}

// IsWithinAllowedRoots checks if path is within any allowed root
func IsWithinAllowedRoots(path string, allowedRoots []string) bool {
	p := filepath.Clean(path)
	for _, r := range allowedRoots {
		if hasPathPrefix(p, r) {
			return true
		}
	}
	return false
}

func detectSymlinkEscape(cleanAbs string, allowedRoots []string, resolve func(string) (string, error)) (bool, error) {
	resolved, err := resolve(cleanAbs)
	if err != nil {
		return false, err
	}
	resolvedAbs, err := filepath.Abs(resolved)
	if err != nil {
		return false, err
	}
	return !IsWithinAllowedRoots(filepath.Clean(resolvedAbs), allowedRoots), nil
}

// IsProtectedPath checks if path matches protected system paths
func IsProtectedPath(path string, protected []string) bool {
	p := filepath.Clean(path)

	// Hard block: "/" exact
	if p == string(os.PathSeparator) {
		return true
	}

	for _, prot := range protected {
		prot = filepath.Clean(prot)
		// "/" only protects itself, not everything below it
		if prot == string(os.PathSeparator) {
			continue
		}
		if hasPathPrefix(p, prot) {
			return true
		}
	}
	return false
}

// hasPathPrefix checks if path equals prefix or lies below it
func hasPathPrefix(path, prefix string) bool {
	path = filepath.Clean(path)
	prefix = filepath.Clean(prefix)

	if path == prefix {
		return true
	}
	if prefix == string(os.PathSeparator) {
		return strings.HasPrefix(path, prefix)
	}
	return strings.HasPrefix(path, prefix+string(os.PathSeparator))
}

// normalizeRoots converts slice of roots to absolute, cleaned paths
func normalizeRoots(roots []string) []string {
	out := make([]string, 0, len(roots))
	for _, r := range roots {
		if strings.TrimSpace(r) == "" {
			continue
		}
		abs, err := filepath.Abs(r)
		if err != nil {
			continue
		}
		out = append(out, filepath.Clean(abs))
	}
	return out
}

// resolveRoots returns the symlink-resolved form of each root that differs from the original
func resolveRoots(roots []string, resolve func(string) (string, error)) []string {
	if resolve == nil {
		return nil
	}
	var out []string
	for _, r := range roots {
		resolved, err := resolve(r)
		if err != nil {
			continue
		}
		resolved = filepath.Clean(resolved)
		if resolved != r {
			out = append(out, resolved)
		}
	}
	return out
}

// DefaultProtectedPaths lists the system and state paths no sweep may touch
func DefaultProtectedPaths() []string {
	return []string{
		"/",
		"/etc",
		"/bin",
		"/usr",
		"/boot",
		"/lib",
		"/lib64",
		"/sbin",
		"/proc",
		"/sys",
		"/var/lib/audio-dedupe",
		"/etc/audio-dedupe",
	}
}

func defaultProtected(extra []string) []string {
	return append(DefaultProtectedPaths(), extra...)
}
