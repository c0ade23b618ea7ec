// Package execute runs external processes (git, lessc, protractor) as blocking
// steps. Every call waits for the process to exit; a non-zero exit status is
// reported as *ExitError so callers can stop their sequence on the spot.
package execute

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"
)

// Command represents a process to run.
type Command struct {
	// Binary is the executable to run (e.g., "git", "lessc").
	Binary string

	// Arguments are the command-line arguments.
	Arguments []string

	// WorkingDirectory is the directory to execute in.
	// If empty, uses the executor's default working directory.
	WorkingDirectory string

	// Environment variables to add (in KEY=VALUE format).
	Environment []string

	// Stdout and Stderr, when set, receive the live output in addition
	// to the captured buffers.
	Stdout io.Writer
	Stderr io.Writer
}

// String returns the full command as a string (for display/logging).
func (c Command) String() string {
	if len(c.Arguments) == 0 {
		return c.Binary
	}
	parts := make([]string, 0, len(c.Arguments)+1)
	parts = append(parts, c.Binary)
	for _, arg := range c.Arguments {
		if strings.ContainsAny(arg, " \t\"'") {
			arg = fmt.Sprintf("%q", arg)
		}
		parts = append(parts, arg)
	}
	return strings.Join(parts, " ")
}

// Result holds the outcome of a finished process.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
}

// ExitError is returned when a process ran but exited non-zero.
type ExitError struct {
	Command  string
	ExitCode int
	Stderr   string
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("%s process exited with code %d", e.Command, e.ExitCode)
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += ": " + s
	}
	return msg
}

// Executor is the interface for command execution.
type Executor interface {
	// Execute runs a command to completion. A non-zero exit yields the
	// result together with an *ExitError.
	Execute(ctx context.Context, cmd Command) (*Result, error)
}
