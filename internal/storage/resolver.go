package storage

import (
	"os"
	"path/filepath"
)

// probeFilename is the marker file written and removed to test that a
// candidate directory accepts writes.
const probeFilename = ".write_test"

// DefaultCandidates returns the ordered fallback list of data root
// candidates. envDir is the operator override (empty when unset); it is
// always tried first when present. The final entry is the system temp
// directory, which Resolve may return untested as a last resort.
func DefaultCandidates(envDir string) []string {
	var candidates []string
	if envDir != "" {
		candidates = append(candidates, envDir)
	}
	candidates = append(candidates,
		"/var/data",
		filepath.Join(os.TempDir(), "data"),
	)
	if exe, err := os.Executable(); err == nil {
		candidates = append(candidates, filepath.Join(filepath.Dir(exe), "data"))
	}
	return append(candidates, os.TempDir())
}

// Resolve walks candidates in order and returns the first directory that
// can be created and passes a write probe. Probe failures select the next
// candidate rather than propagating, so Resolve never returns an error for
// a non-empty candidate list; if every candidate fails the probe, the last
// one is returned untested.
func Resolve(candidates []string) Root {
	for _, dir := range candidates {
		if probeWritable(dir) {
			return Root{dir: dir}
		}
	}
	return Root{dir: candidates[len(candidates)-1]}
}

// probeWritable creates dir (and parents) if needed, then writes and
// removes a small marker file.
func probeWritable(dir string) bool {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return false
	}
	marker := filepath.Join(dir, probeFilename)
	if err := os.WriteFile(marker, []byte("ok"), 0o600); err != nil {
		return false
	}
	_ = os.Remove(marker)
	return true
}
