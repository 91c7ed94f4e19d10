package fsops

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// AferoFS implements FileSystem on top of any afero.Fs
type AferoFS struct {
	Fs afero.Fs
}

// NewOSFileSystem returns a FileSystem bound to the real disk
func NewOSFileSystem() *AferoFS {
	return &AferoFS{Fs: afero.NewOsFs()}
}

// NewMemFileSystem returns an empty in-memory FileSystem
func NewMemFileSystem() *AferoFS {
	return &AferoFS{Fs: afero.NewMemMapFs()}
}

// ListFiles walks root at unbounded depth and returns every non-directory entry.
// A root that is itself a symlink is followed; links below it are not.
func (a *AferoFS) ListFiles(root string) ([]string, error) {
	walkRoot := root
	if a.isSymlink(root) {
		// Lstat on "link/" follows the link, and children are still joined under root
		walkRoot = root + string(os.PathSeparator)
	}

	var files []string
	err := afero.Walk(a.Fs, walkRoot, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

func (a *AferoFS) isSymlink(path string) bool {
	l, ok := a.Fs.(afero.Lstater)
	if !ok {
		return false
	}
	info, lstatCalled, err := l.LstatIfPossible(path)
	return err == nil && lstatCalled && info.Mode()&os.ModeSymlink != 0
}

func (a *AferoFS) Stat(path string) (os.FileInfo, error) {
	return a.Fs.Stat(path)
}

func (a *AferoFS) Remove(path string) error {
	return a.Fs.Remove(path)
}

func (a *AferoFS) Ext(path string) string {
	return filepath.Ext(path)
}

func (a *AferoFS) Dir(path string) string {
	return filepath.Dir(path)
}

func (a *AferoFS) Stem(path string) string {
	name := filepath.Base(path)
	return strings.TrimSuffix(name, filepath.Ext(name))
}

func (a *AferoFS) Join(elem ...string) string {
	return filepath.Join(elem...)
}

// EvalSymlinks follows links on the local disk; other backends have none
func (a *AferoFS) EvalSymlinks(path string) (string, error) {
	if _, ok := a.Fs.(*afero.OsFs); ok {
		return filepath.EvalSymlinks(path)
	}
	return path, nil
}

// WriteFile creates path and any missing parent directories, used to seed trees
func (a *AferoFS) WriteFile(path string, data []byte) error {
	if err := a.Fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return afero.WriteFile(a.Fs, path, data, 0o644)
}

// Exists reports whether path is present
func (a *AferoFS) Exists(path string) bool {
	ok, err := afero.Exists(a.Fs, path)
	return err == nil && ok
}
