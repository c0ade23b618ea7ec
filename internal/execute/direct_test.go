package execute

import (
	"bytes"
	"context"
	"errors"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func skipOnWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("uses POSIX shell utilities")
	}
}

func TestDirectExecutor_Execute(t *testing.T) {
	skipOnWindows(t)
	executor := NewDirectExecutor(t.TempDir())

	result, err := executor.Execute(context.Background(), Command{
		Binary:    "echo",
		Arguments: []string{"hello"},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, result.ExitCode)
	assert.Equal(t, "hello\n", result.Stdout)
}

func TestDirectExecutor_NonZeroExit(t *testing.T) {
	skipOnWindows(t)
	executor := NewDirectExecutor(t.TempDir())

	result, err := executor.Execute(context.Background(), Command{
		Binary:    "sh",
		Arguments: []string{"-c", "echo boom >&2; exit 3"},
	})
	require.Error(t, err)

	var exitErr *ExitError
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, 3, exitErr.ExitCode)
	assert.Equal(t, "sh", exitErr.Command)
	assert.Contains(t, exitErr.Error(), "exited with code 3")
	assert.Contains(t, exitErr.Error(), "boom")
	assert.Equal(t, 3, result.ExitCode)
}

func TestDirectExecutor_MissingBinary(t *testing.T) {
	executor := NewDirectExecutor(t.TempDir())

	_, err := executor.Execute(context.Background(), Command{Binary: "definitely-not-a-real-binary-ngtask"})
	require.Error(t, err)

	var exitErr *ExitError
	assert.False(t, errors.As(err, &exitErr), "start failures are not exit errors")
}

func TestDirectExecutor_EmptyBinary(t *testing.T) {
	_, err := NewDirectExecutor("").Execute(context.Background(), Command{})
	assert.Error(t, err)
}

func TestDirectExecutor_Cancel(t *testing.T) {
	skipOnWindows(t)
	executor := NewDirectExecutor(t.TempDir())

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := executor.Execute(ctx, Command{Binary: "sleep", Arguments: []string{"10"}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestDirectExecutor_StreamsOutput(t *testing.T) {
	skipOnWindows(t)
	var live bytes.Buffer

	result, err := NewDirectExecutor(t.TempDir()).Execute(context.Background(), Command{
		Binary:    "sh",
		Arguments: []string{"-c", "echo out; echo err >&2"},
		Stdout:    &live,
		Stderr:    &live,
	})
	require.NoError(t, err)
	assert.Contains(t, live.String(), "out")
	assert.Contains(t, live.String(), "err")
	assert.Equal(t, "out\n", result.Stdout)
}

func TestDirectExecutor_WorkingDirectory(t *testing.T) {
	skipOnWindows(t)
	dir := t.TempDir()

	result, err := NewDirectExecutor(dir).Execute(context.Background(), Command{Binary: "pwd"})
	require.NoError(t, err)
	// macOS temp dirs resolve through /private
	assert.True(t, strings.HasSuffix(strings.TrimSpace(result.Stdout), strings.TrimPrefix(dir, "/private")))
}

func TestCommandString(t *testing.T) {
	cmd := Command{Binary: "git", Arguments: []string{"commit", "-m", "Prepare for v1.2.4"}}
	assert.Equal(t, `git commit -m "Prepare for v1.2.4"`, cmd.String())
	assert.Equal(t, "git", Command{Binary: "git"}.String())
}
