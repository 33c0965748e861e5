// Package runner executes external commands and replays their memoized
// results.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
)

// Commander interface for testing
type Commander interface {
	Run() error
}

// Runner spawns the external command and captures its whole stdout and
// stderr. Output is buffered rather than streamed: the full bytes are
// needed for both the cache entry and the echo to the real sinks.
type Runner struct {
	execCommand func(ctx context.Context, name string, args ...string) Commander
}

// NewRunner creates a runner backed by os/exec.
func NewRunner() *Runner {
	return &Runner{
		execCommand: func(ctx context.Context, name string, args ...string) Commander {
			return exec.CommandContext(ctx, name, args...)
		},
	}
}

// Result is the captured outcome of one execution.
type Result struct {
	Stdout []byte
	Stderr []byte
	RC     int
}

// Run executes the command to completion and returns its captured
// output and exit status. A command that cannot be started at all is a
// SpawnError; a command that runs and exits nonzero is not an error.
// Canceling the context kills the child process.
func (r *Runner) Run(ctx context.Context, command string, args []string) (*Result, error) {
	var stdout, stderr bytes.Buffer

	c := r.execCommand(ctx, command, args...)
	if cmd, ok := c.(*exec.Cmd); ok {
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr
	}

	err := c.Run()

	res := &Result{
		Stdout: stdout.Bytes(),
		Stderr: stderr.Bytes(),
	}

	if err != nil {
		var exitErr *exec.ExitError

		switch {
		case errors.As(err, &exitErr):
			res.RC = exitErr.ExitCode()
		case ctx.Err() != nil:
			// The child was killed by cancellation, not a spawn problem
			return nil, ctx.Err()
		default:
			return nil, &SpawnError{Command: command, Err: err}
		}
	}

	return res, nil
}

// SpawnError reports a command that could not be started at all:
// missing binary, permission denied. Never retried; the underlying OS
// message is surfaced with its wrapper prefixes stripped.
type SpawnError struct {
	Command string
	Err     error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("cannot run %s: %s", e.Command, rootCause(e.Err))
}

func (e *SpawnError) Unwrap() error {
	return e.Err
}

// rootCause walks to the innermost error so the message reads
// "permission denied" rather than "fork/exec /x: permission denied".
func rootCause(err error) string {
	for {
		inner := errors.Unwrap(err)
		if inner == nil {
			return err.Error()
		}

		err = inner
	}
}
