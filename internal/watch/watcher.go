// Package watch rebuilds outputs when their sources change.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"nginspector/internal/config"
	"nginspector/internal/logging"
)

// TaskFunc runs a named build task.
type TaskFunc func(ctx context.Context, task string) error

// Stats tracks watcher activity.
type Stats struct {
	Events        int
	TasksRun      int
	TaskFailures  int
	Errors        int
	LastEventPath string
	LastTask      string
}

type rule struct {
	pattern string
	task    string
	base    string
}

// Watcher maps file patterns under a workspace root to build tasks. Bursts
// of events for the same task collapse into one run once they settle.
type Watcher struct {
	mu       sync.RWMutex
	watcher  *fsnotify.Watcher
	root     string
	rules    []rule
	runTask  TaskFunc
	pending  map[string]time.Time
	debounce time.Duration
	stopCh   chan struct{}
	doneCh   chan struct{}
	running  bool
	stats    Stats
}

// New creates a watcher for the given rules. Patterns are slash separated
// and relative to root.
func New(root string, rules []config.WatchRule, debounce time.Duration, runTask TaskFunc) (*Watcher, error) {
	if len(rules) == 0 {
		return nil, fmt.Errorf("no watch rules configured")
	}
	compiled := make([]rule, 0, len(rules))
	for _, r := range rules {
		if !doublestar.ValidatePattern(r.Pattern) {
			return nil, fmt.Errorf("invalid watch pattern %q", r.Pattern)
		}
		base, _ := doublestar.SplitPattern(r.Pattern)
		compiled = append(compiled, rule{pattern: r.Pattern, task: r.Task, base: base})
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = 300 * time.Millisecond
	}

	return &Watcher{
		watcher:  fw,
		root:     root,
		rules:    compiled,
		runTask:  runTask,
		pending:  make(map[string]time.Time),
		debounce: debounce,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Start registers the base directory of every pattern and begins the
// event loop in a goroutine.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	added := make(map[string]bool)
	for _, r := range w.rules {
		dir := filepath.Join(w.root, filepath.FromSlash(r.base))
		if added[dir] {
			continue
		}
		if err := w.watcher.Add(dir); err != nil {
			w.mu.Lock()
			w.running = false
			w.mu.Unlock()
			return fmt.Errorf("watch %s: %w", r.base, err)
		}
		added[dir] = true
		logging.Watch("Watching %s for %s", r.base, r.task)
	}

	go w.run(ctx)
	return nil
}

// Run starts the watcher and blocks until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	if err := w.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	w.Stop()
	return nil
}

// Stop ends the event loop and releases the fsnotify handle.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		w.watcher.Close()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	if err := w.watcher.Close(); err != nil {
		logging.Get(logging.CategoryWatch).Error("closing watcher: %v", err)
	}
	logging.Watch("Watcher stopped")
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	tick := w.debounce / 2
	if tick > 100*time.Millisecond {
		tick = 100 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.Get(logging.CategoryWatch).Error("watcher error: %v", err)
			w.mu.Lock()
			w.stats.Errors++
			w.mu.Unlock()
		case <-ticker.C:
			w.runSettled(ctx)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op == fsnotify.Chmod {
		return
	}
	rel, err := filepath.Rel(w.root, event.Name)
	if err != nil {
		return
	}
	rel = filepath.ToSlash(rel)

	w.mu.Lock()
	defer w.mu.Unlock()
	for _, r := range w.rules {
		if ok, _ := doublestar.Match(r.pattern, rel); ok {
			logging.WatchDebug("%s %s -> %s", event.Op, rel, r.task)
			w.pending[r.task] = time.Now()
			w.stats.Events++
			w.stats.LastEventPath = rel
		}
	}
}

// runSettled runs, in rule order, each task whose last event is older
// than the debounce window.
func (w *Watcher) runSettled(ctx context.Context) {
	now := time.Now()
	var due []string
	w.mu.Lock()
	for _, r := range w.rules {
		at, ok := w.pending[r.task]
		if ok && now.Sub(at) >= w.debounce {
			due = append(due, r.task)
			delete(w.pending, r.task)
		}
	}
	w.mu.Unlock()

	for _, task := range due {
		logging.Watch("Running %s", task)
		err := w.runTask(ctx, task)

		w.mu.Lock()
		w.stats.TasksRun++
		w.stats.LastTask = task
		if err != nil {
			w.stats.TaskFailures++
		}
		w.mu.Unlock()

		if err != nil {
			logging.Get(logging.CategoryWatch).Error("%s failed: %v", task, err)
		}
	}
}

// GetStats returns a snapshot of watcher activity.
func (w *Watcher) GetStats() Stats {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.stats
}

// IsWatching reports whether the event loop is running.
func (w *Watcher) IsWatching() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.running
}
