package runner

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"
)

const DefaultTerminalHelper = "/usr/lib/snigdhaos/launch-terminal"

type Result struct {
	ExitCode int
	// Err is set when the helper could not be started or waited on.
	Err error
}

type Runner interface {
	Run(ctx context.Context, commandLine string) Result
}

// Terminal runs a shell command line inside the distribution's terminal helper,
// which opens a terminal window so the user can follow output and type the
// sudo password.
type Terminal struct {
	Helper string
}

func (t Terminal) Run(ctx context.Context, commandLine string) Result {
	helper := strings.TrimSpace(t.Helper)
	if helper == "" {
		helper = DefaultTerminalHelper
	}

	cmd := exec.CommandContext(ctx, helper, commandLine)
	cmd.Env = os.Environ()
	err := cmd.Run()
	if err == nil {
		return Result{ExitCode: 0}
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return Result{ExitCode: exitErr.ExitCode()}
	}
	return Result{ExitCode: -1, Err: err}
}

// Succeeded reports whether a sentinel run completed: the command exited 0
// and removed the sentinel file. A surviving sentinel means the inner command
// never ran, even if the terminal exited cleanly.
func Succeeded(res Result, sentinel string) bool {
	if res.Err != nil || res.ExitCode != 0 {
		return false
	}
	_, err := os.Stat(sentinel)
	return errors.Is(err, os.ErrNotExist)
}
