package fsops

// RecordingFS wraps a FileSystem for testing.
// Records every Remove call and fails the ones listed in Failures
// without forwarding them.
type RecordingFS struct {
	FileSystem
	Calls    []string
	Failures map[string]error
}

// NewRecordingFS wraps inner, which must not be nil
func NewRecordingFS(inner FileSystem) *RecordingFS {
	return &RecordingFS{FileSystem: inner, Failures: make(map[string]error)}
}

func (r *RecordingFS) Remove(path string) error {
	r.Calls = append(r.Calls, "rm:"+path)
	if err, ok := r.Failures[path]; ok {
		return err
	}
	return r.FileSystem.Remove(path)
}

// FailOn makes subsequent Remove calls for path return err
func (r *RecordingFS) FailOn(path string, err error) {
	r.Failures[path] = err
}

// EvalSymlinks forwards to the wrapped filesystem when it can resolve links
func (r *RecordingFS) EvalSymlinks(path string) (string, error) {
	if sr, ok := r.FileSystem.(SymlinkResolver); ok {
		return sr.EvalSymlinks(path)
	}
	return path, nil
}
