// Package exec provides abstractions for invoking the external tools the
// installer leans on (curl, uname, sysctl, ldd).
package exec

import (
	"bytes"
	"context"
	"os/exec"

	"github.com/cockroachdb/errors"
)

// CommandResult contains the captured output and status of a command run.
type CommandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Err      error
}

// Success reports whether the command exited cleanly.
func (r *CommandResult) Success() bool {
	return r.Err == nil && r.ExitCode == 0
}

// Failed reports whether the command failed to start or exited non-zero.
func (r *CommandResult) Failed() bool {
	return !r.Success()
}

// CommandRunner executes external commands with output capture.
type CommandRunner interface {
	// Run executes a command and returns the result. The command is killed
	// when ctx is cancelled.
	Run(ctx context.Context, name string, args ...string) *CommandResult
}

// commandRunner implements CommandRunner on os/exec.
type commandRunner struct{}

// NewCommandRunner creates a new CommandRunner.
func NewCommandRunner() CommandRunner {
	return &commandRunner{}
}

// Run executes a command and returns the result.
func (*commandRunner) Run(ctx context.Context, name string, args ...string) *CommandResult {
	cmd := exec.CommandContext(ctx, name, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	result := &CommandResult{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		result.ExitCode = exitErr.ExitCode()
		result.Err = err
	} else if err != nil {
		result.Err = errors.Wrapf(err, "executing %s", name)
	}

	return result
}
