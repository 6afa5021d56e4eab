// Package storage resolves the writable data root for the service and
// provides access to its well-known subdirectories. It also hosts the
// optional S3 archiver for original upload bytes.
package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrUnwritable is returned when a required directory cannot be created
// or written to.
var ErrUnwritable = errors.New("storage: directory is not writable")

// Subdirs are the subdirectories owned by the data root, created at startup.
var Subdirs = []string{"raw", "processed", "thumbs"}

// Root is the resolved storage root. It is chosen once at startup and never
// changes for the lifetime of the process, so it is safe to share across
// goroutines.
type Root struct {
	dir string
}

// NewRoot wraps an already-resolved directory. Most callers should use
// Resolve instead.
func NewRoot(dir string) Root {
	return Root{dir: dir}
}

// Dir returns the path of the data root.
func (r Root) Dir() string {
	return r.dir
}

// Raw returns the directory holding session upload directories.
func (r Root) Raw() string {
	return filepath.Join(r.dir, "raw")
}

// SessionDir returns the directory for one session slug under raw/,
// creating it if absent.
func (r Root) SessionDir(session string) (string, error) {
	dir := filepath.Join(r.Raw(), session)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("create session directory: %w", err)
	}
	return dir, nil
}

// EnsureSubdirs creates the root's fixed subdirectories. It runs once at
// startup so that a read-only filesystem fails the process immediately
// rather than at first upload.
func (r Root) EnsureSubdirs() error {
	for _, sub := range Subdirs {
		if err := os.MkdirAll(filepath.Join(r.dir, sub), 0o750); err != nil {
			return fmt.Errorf("%w: create %s: %v", ErrUnwritable, sub, err)
		}
	}
	return nil
}

// SubdirPaths returns the paths of the fixed subdirectories.
func (r Root) SubdirPaths() []string {
	paths := make([]string, len(Subdirs))
	for i, sub := range Subdirs {
		paths[i] = filepath.Join(r.dir, sub)
	}
	return paths
}
