package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"go.uber.org/zap"

	"nginspector/internal/build"
	"nginspector/internal/config"
	"nginspector/internal/execute"
	"nginspector/internal/logging"
	"nginspector/internal/manifest"
	"nginspector/internal/release"
	"nginspector/internal/scenarios"
	"nginspector/internal/store"
	"nginspector/internal/vcs"
)

// app holds the per-invocation wiring shared by the commands.
type app struct {
	root string
	cfg  *config.Config
	exec execute.Executor
}

func resolveWorkspace() (string, error) {
	ws := workspace
	if ws == "" {
		var err error
		if ws, err = os.Getwd(); err != nil {
			return "", err
		}
	}
	return filepath.Abs(ws)
}

func loadApp() (*app, error) {
	root, err := resolveWorkspace()
	if err != nil {
		return nil, fmt.Errorf("resolve workspace: %w", err)
	}
	path := configPath
	if path == "" {
		path = filepath.Join(root, ".ngtask.yaml")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	err = logging.Initialize(root, logging.Options{
		DebugMode:  cfg.Logging.DebugMode || verbose,
		Level:      cfg.Logging.Level,
		JSONFormat: cfg.Logging.JSONFormat,
		Categories: cfg.Logging.Categories,
	})
	if err != nil {
		logger.Warn("file logging disabled", zap.Error(err))
	}
	logging.Boot("Workspace %s, config %s", root, path)

	return &app{root: root, cfg: cfg, exec: execute.NewDirectExecutor(root)}, nil
}

// path resolves a workspace-relative config path.
func (a *app) path(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(a.root, filepath.FromSlash(p))
}

func (a *app) pipeline() (*build.Pipeline, error) {
	return build.NewPipeline(a.root, a.cfg.Build, build.NewStyleCompiler(a.exec, a.cfg.Build.Style))
}

func (a *app) releaser(opts ...release.Option) (*release.Releaser, error) {
	specs := make([]manifest.Spec, 0, len(a.cfg.Release.Manifests))
	for _, m := range a.cfg.Release.Manifests {
		specs = append(specs, manifest.Spec{Path: m.Path, Format: manifest.Format(m.Format), Prefix: m.Prefix})
	}
	repo := vcs.NewGit(a.exec, a.root, a.cfg.Release.GitBinary)
	return release.New(repo, release.Options{
		Root:          a.root,
		Project:       a.cfg.Project,
		Primary:       a.cfg.Release.Primary,
		Manifests:     specs,
		TagPrefix:     a.cfg.Release.TagPrefix,
		CommitMessage: a.cfg.Release.CommitMessage,
	}, opts...)
}

func (a *app) scenarioServer() *scenarios.Server {
	return scenarios.New(a.path(a.cfg.Scenarios.Root), a.path(a.cfg.Scenarios.Template), a.cfg.Scenarios.Port)
}

// history opens the history database. A failure is logged and yields nil;
// history is never required for a task to succeed.
func (a *app) history() *store.Store {
	if a.cfg.Tests.HistoryDB == "" {
		return nil
	}
	s, err := store.Open(a.path(a.cfg.Tests.HistoryDB))
	if err != nil {
		logger.Warn("history unavailable", zap.Error(err))
		return nil
	}
	return s
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			logger.Info("Received shutdown signal")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}
