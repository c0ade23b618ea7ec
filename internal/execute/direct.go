package execute

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"

	"nginspector/internal/logging"
)

// DirectExecutor executes commands on the host using os/exec.
type DirectExecutor struct {
	// Dir is the default working directory.
	Dir string
}

// NewDirectExecutor creates an executor rooted at dir.
func NewDirectExecutor(dir string) *DirectExecutor {
	logging.ExecDebug("Creating DirectExecutor in %s", dir)
	return &DirectExecutor{Dir: dir}
}

// Execute runs a command directly on the host and blocks until it exits.
func (e *DirectExecutor) Execute(ctx context.Context, cmd Command) (*Result, error) {
	if cmd.Binary == "" {
		return nil, fmt.Errorf("binary is required")
	}

	timer := logging.StartTimer(logging.CategoryExec, cmd.String())
	defer timer.Stop()

	execCmd := exec.CommandContext(ctx, cmd.Binary, cmd.Arguments...)
	execCmd.Dir = cmd.WorkingDirectory
	if execCmd.Dir == "" {
		execCmd.Dir = e.Dir
	}
	execCmd.Env = append(os.Environ(), cmd.Environment...)

	var stdoutBuf, stderrBuf bytes.Buffer
	execCmd.Stdout = tee(&stdoutBuf, cmd.Stdout)
	execCmd.Stderr = tee(&stderrBuf, cmd.Stderr)

	logging.Exec("Executing: %s (dir=%s)", cmd.String(), execCmd.Dir)

	start := time.Now()
	err := execCmd.Run()
	result := &Result{
		Stdout:   stdoutBuf.String(),
		Stderr:   stderrBuf.String(),
		Duration: time.Since(start),
	}

	if err != nil {
		if ctx.Err() != nil {
			result.ExitCode = -1
			logging.ExecWarn("Command canceled: %s (%v)", cmd.String(), ctx.Err())
			return result, fmt.Errorf("%s: %w", cmd.String(), ctx.Err())
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			logging.ExecWarn("Command exited non-zero: %s -> %d", cmd.String(), result.ExitCode)
			return result, &ExitError{Command: cmd.Binary, ExitCode: result.ExitCode, Stderr: result.Stderr}
		}
		result.ExitCode = -1
		logging.Get(logging.CategoryExec).Error("Command failed to start: %s - %v", cmd.String(), err)
		return result, fmt.Errorf("run %s: %w", cmd.Binary, err)
	}

	logging.Exec("Command completed: %s -> exit=0, duration=%s, stdout=%d bytes",
		cmd.Binary, result.Duration, len(result.Stdout))
	return result, nil
}

func tee(buf *bytes.Buffer, extra io.Writer) io.Writer {
	if extra == nil {
		return buf
	}
	return io.MultiWriter(buf, extra)
}
