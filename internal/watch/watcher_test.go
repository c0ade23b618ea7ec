package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"nginspector/internal/config"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type taskLog struct {
	mu    sync.Mutex
	tasks []string
}

func (l *taskLog) run(_ context.Context, task string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.tasks = append(l.tasks, task)
	return nil
}

func (l *taskLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.tasks...)
}

func workspace(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	for _, dir := range []string{"src/js", "src/less", "src/icons"} {
		require.NoError(t, os.MkdirAll(filepath.Join(root, dir), 0755))
	}
	return root
}

func TestWatcher_BurstRunsTaskOnce(t *testing.T) {
	root := workspace(t)
	log := &taskLog{}
	w, err := New(root, config.DefaultConfig().Watch.Rules, 50*time.Millisecond, log.run)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer w.Stop()
	assert.True(t, w.IsWatching())

	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(filepath.Join(root, "src/js/App.js"), []byte{byte('a' + i)}, 0644))
	}

	require.Eventually(t, func() bool { return len(log.snapshot()) > 0 }, 3*time.Second, 10*time.Millisecond)
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, []string{"build:js"}, log.snapshot())
	assert.Equal(t, "src/js/App.js", w.GetStats().LastEventPath)
}

func TestWatcher_IgnoresUnmatchedFiles(t *testing.T) {
	root := workspace(t)
	log := &taskLog{}
	w, err := New(root, config.DefaultConfig().Watch.Rules, 20*time.Millisecond, log.run)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	require.NoError(t, os.WriteFile(filepath.Join(root, "src/js/notes.md"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "src/less/stylesheet.less"), []byte("a{}"), 0644))

	require.Eventually(t, func() bool { return len(log.snapshot()) > 0 }, 3*time.Second, 10*time.Millisecond)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, []string{"build:css"}, log.snapshot())
}

func TestWatcher_TaskErrorKeepsWatching(t *testing.T) {
	root := workspace(t)
	var mu sync.Mutex
	calls := 0
	run := func(context.Context, string) error {
		mu.Lock()
		defer mu.Unlock()
		calls++
		return errors.New("lessc exploded")
	}
	count := func() int {
		mu.Lock()
		defer mu.Unlock()
		return calls
	}

	w, err := New(root, config.DefaultConfig().Watch.Rules, 20*time.Millisecond, run)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	path := filepath.Join(root, "src/less/stylesheet.less")
	require.NoError(t, os.WriteFile(path, []byte("a{}"), 0644))
	require.Eventually(t, func() bool { return count() == 1 }, 3*time.Second, 10*time.Millisecond)

	require.NoError(t, os.WriteFile(path, []byte("b{}"), 0644))
	require.Eventually(t, func() bool { return count() == 2 }, 3*time.Second, 10*time.Millisecond)
	assert.Equal(t, 2, w.GetStats().TaskFailures)
}

func TestWatcher_RunStopsOnCancel(t *testing.T) {
	root := workspace(t)
	w, err := New(root, config.DefaultConfig().Watch.Rules, 0, (&taskLog{}).run)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.Eventually(t, w.IsWatching, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("watcher did not stop")
	}
	assert.False(t, w.IsWatching())
}

func TestNew_Validation(t *testing.T) {
	_, err := New(t.TempDir(), nil, 0, (&taskLog{}).run)
	assert.Error(t, err)

	_, err = New(t.TempDir(), []config.WatchRule{{Pattern: "src/[", Task: "build:js"}}, 0, (&taskLog{}).run)
	assert.Error(t, err)
}

func TestStart_MissingDirectory(t *testing.T) {
	w, err := New(t.TempDir(), config.DefaultConfig().Watch.Rules, 0, (&taskLog{}).run)
	require.NoError(t, err)
	defer w.Stop()

	assert.Error(t, w.Start(context.Background()))
	assert.False(t, w.IsWatching())
}
