package runner

import (
	"errors"
	"fmt"
	"os"
	"sync"
)

const tempPattern = "snigdhaos-blackbox-*"

// Scope owns the temporary files created for one terminal command. Release removes
// them in reverse order of creation.
type Scope struct {
	dir string

	mu    sync.Mutex
	paths []string
}

// NewScope creates files under dir, or the system temp dir when dir is empty.
func NewScope(dir string) *Scope {
	return &Scope{dir: dir}
}

// TempFile creates a uniquely named file holding content and returns its path.
func (s *Scope) TempFile(content string) (string, error) {
	f, err := os.CreateTemp(s.dir, tempPattern)
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	path := f.Name()
	s.track(path)

	if _, err := f.WriteString(content); err != nil {
		f.Close()
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	// Mode stays 0600: the helper runs the command as root.
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", path, err)
	}
	return path, nil
}

func (s *Scope) track(path string) {
	s.mu.Lock()
	s.paths = append(s.paths, path)
	s.mu.Unlock()
}

func (s *Scope) Paths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.paths...)
}

// Release removes every tracked file. Files already deleted by the command are
// not an error.
func (s *Scope) Release() error {
	s.mu.Lock()
	paths := s.paths
	s.paths = nil
	s.mu.Unlock()

	var errs []error
	for i := len(paths) - 1; i >= 0; i-- {
		if err := os.Remove(paths[i]); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
