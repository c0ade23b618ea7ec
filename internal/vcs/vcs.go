// Package vcs is the repository handle used by the release workflow.
// It exposes only the four operations a release needs.
package vcs

import (
	"context"
	"fmt"
	"strings"

	"nginspector/internal/execute"
	"nginspector/internal/logging"
)

// Repository is a version-control working copy.
type Repository interface {
	// StagedDiff returns the diff of the staging area; empty means clean.
	StagedDiff(ctx context.Context) (string, error)
	// Add stages exactly the given paths.
	Add(ctx context.Context, paths ...string) error
	// Commit records the staged changes with message.
	Commit(ctx context.Context, message string) error
	// Tag creates a lightweight tag at HEAD.
	Tag(ctx context.Context, name string) error
}

// Git drives the git binary through an executor.
type Git struct {
	exec   execute.Executor
	dir    string
	binary string
}

// NewGit returns a Git repository handle rooted at dir.
func NewGit(exec execute.Executor, dir, binary string) *Git {
	if binary == "" {
		binary = "git"
	}
	return &Git{exec: exec, dir: dir, binary: binary}
}

func (g *Git) run(ctx context.Context, args ...string) (string, error) {
	res, err := g.exec.Execute(ctx, execute.Command{
		Binary:           g.binary,
		Arguments:        args,
		WorkingDirectory: g.dir,
	})
	if err != nil {
		return "", err
	}
	if s := strings.TrimSpace(res.Stderr); s != "" {
		logging.Get(logging.CategoryVCS).Warn("%s %s: %s", g.binary, args[0], s)
	}
	return res.Stdout, nil
}

// StagedDiff runs `git diff --staged`.
func (g *Git) StagedDiff(ctx context.Context) (string, error) {
	out, err := g.run(ctx, "diff", "--staged")
	if err != nil {
		return "", fmt.Errorf("check staging area: %w", err)
	}
	return out, nil
}

// Add runs `git add -- <paths>`.
func (g *Git) Add(ctx context.Context, paths ...string) error {
	if len(paths) == 0 {
		return fmt.Errorf("git add: no paths")
	}
	logging.VCS("Staging %d files: %v", len(paths), paths)
	args := append([]string{"add", "--"}, paths...)
	if _, err := g.run(ctx, args...); err != nil {
		return fmt.Errorf("stage files: %w", err)
	}
	return nil
}

// Commit runs `git commit -m <message>`.
func (g *Git) Commit(ctx context.Context, message string) error {
	logging.VCS("Committing: %s", message)
	if _, err := g.run(ctx, "commit", "-m", message); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Tag runs `git tag <name>`.
func (g *Git) Tag(ctx context.Context, name string) error {
	logging.VCS("Tagging: %s", name)
	if _, err := g.run(ctx, "tag", name); err != nil {
		return fmt.Errorf("tag %s: %w", name, err)
	}
	return nil
}
