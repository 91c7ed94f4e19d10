package fsops

import (
	"os"
)

// FileSystem abstracts the filesystem capabilities the cleaner needs:
// recursive listing, path decomposition and deletion.
// Enables running the cleaner against an in-memory tree in tests.
type FileSystem interface {
	// ListFiles returns every non-directory entry below root, in lexical walk order
	ListFiles(root string) ([]string, error)
	Stat(path string) (os.FileInfo, error)
	Remove(path string) error

	Ext(path string) string
	Dir(path string) string
	Stem(path string) string
	Join(elem ...string) string
}

// BaseKey returns the matching identity of path: its directory joined with
// the file name stripped of its extension
func BaseKey(fsys FileSystem, path string) string {
	return fsys.Join(fsys.Dir(path), fsys.Stem(path))
}

// SymlinkResolver is implemented by filesystems that can follow symlinks
type SymlinkResolver interface {
	EvalSymlinks(path string) (string, error)
}
