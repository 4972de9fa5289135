// Package command provides command execution adapters.
package command

import (
	"context"
	"errors"
	"os/exec"
	"strings"

	"github.com/felixgeelhaar/stratum/internal/ports"
)

// ShellRunner executes instructions through the system shell.
// The invocation's Dir and Env are applied verbatim; nothing from the
// host environment leaks into the child process.
type ShellRunner struct {
	shell string
}

// NewShellRunner creates a new ShellRunner using /bin/sh.
func NewShellRunner() *ShellRunner {
	return &ShellRunner{shell: "/bin/sh"}
}

// Run executes an instruction and returns the result.
func (r *ShellRunner) Run(ctx context.Context, inv ports.Invocation) (ports.CommandResult, error) {
	cmd := exec.CommandContext(ctx, r.shell, "-c", inv.Script)
	cmd.Dir = inv.Dir
	cmd.Env = inv.Env

	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	result := ports.CommandResult{
		ExitCode: 0,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			return result, nil
		}
		return result, err
	}

	return result, nil
}

// Ensure ShellRunner implements ports.CommandRunner.
var _ ports.CommandRunner = (*ShellRunner)(nil)
