package relaunch

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Guard remembers the executable's modification time at startup so a package
// upgrade that replaced the binary can be detected later.
type Guard struct {
	path        string
	fingerprint time.Time
	stat        func(string) (os.FileInfo, error)
}

// Capture fingerprints the executable at path, or the running executable when
// path is empty.
func Capture(path string) (*Guard, error) {
	if path == "" {
		exe, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("locate executable: %w", err)
		}
		path = exe
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve executable path: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("stat executable: %w", err)
	}
	return &Guard{path: abs, fingerprint: info.ModTime(), stat: os.Stat}, nil
}

func (g *Guard) Path() string { return g.path }

func (g *Guard) Fingerprint() time.Time { return g.fingerprint }

// Replaced reports whether the on-disk executable changed since Capture. An
// unreadable path counts as unchanged.
func (g *Guard) Replaced() bool {
	if g == nil {
		return false
	}
	info, err := g.stat(g.path)
	if err != nil {
		return false
	}
	return !info.ModTime().Equal(g.fingerprint)
}

// Argv is the argument vector for the relaunched process: program name and
// resume token.
func (g *Guard) Argv(token string) []string {
	return []string{filepath.Base(g.path), token}
}
