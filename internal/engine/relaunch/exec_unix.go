//go:build unix

package relaunch

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Exec replaces the current process image with path. It only returns on
// failure.
func Exec(path string, argv []string) error {
	if err := unix.Exec(path, argv, os.Environ()); err != nil {
		return fmt.Errorf("exec %s: %w", path, err)
	}
	return nil
}
