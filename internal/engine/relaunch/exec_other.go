//go:build !unix

package relaunch

import (
	"fmt"
	"os"
	"os/exec"
)

// Exec starts path as a new process and exits the current one; platforms
// without execve cannot replace the process image in place.
func Exec(path string, argv []string) error {
	cmd := exec.Command(path, argv[1:]...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", path, err)
	}
	os.Exit(0)
	return nil
}
