// Package build assembles the extension outputs: icons, the concatenated
// script and the compiled stylesheet, replicated into every target tree.
package build

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/sync/errgroup"

	"nginspector/internal/config"
	"nginspector/internal/logging"
)

// Task names accepted by Run.
const (
	TaskIcons   = "build:icons"
	TaskScript  = "build:js"
	TaskStyle   = "build:css"
	TaskDefault = "default"
)

// Output kinds a target can opt into.
const (
	OutputIcons  = "icons"
	OutputScript = "js"
	OutputStyle  = "css"
)

// Pipeline runs build tasks relative to a workspace root.
type Pipeline struct {
	root     string
	cfg      config.BuildConfig
	compiler StyleCompiler
	wrapper  *template.Template
}

// NewPipeline validates the script wrapper template and returns a pipeline.
func NewPipeline(root string, cfg config.BuildConfig, compiler StyleCompiler) (*Pipeline, error) {
	wrapperSrc := cfg.Script.Wrapper
	if wrapperSrc == "" {
		wrapperSrc = "{{.Contents}}"
	}
	tmpl, err := template.New("wrapper").Parse(wrapperSrc)
	if err != nil {
		return nil, fmt.Errorf("parse script wrapper: %w", err)
	}
	return &Pipeline{root: root, cfg: cfg, compiler: compiler, wrapper: tmpl}, nil
}

// Run executes a named task.
func (p *Pipeline) Run(ctx context.Context, task string) error {
	switch task {
	case TaskIcons:
		return p.Icons(ctx)
	case TaskScript:
		return p.Script(ctx)
	case TaskStyle:
		return p.Style(ctx)
	case TaskDefault:
		return p.All(ctx)
	}
	return fmt.Errorf("unknown build task %q", task)
}

// All runs icons, script and style in order.
func (p *Pipeline) All(ctx context.Context) error {
	timer := logging.StartTimer(logging.CategoryBuild, "default build")
	defer timer.StopWithInfo()

	for _, step := range []func(context.Context) error{p.Icons, p.Script, p.Style} {
		if err := step(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Icons copies every file matched by the icon globs into each icon target.
func (p *Pipeline) Icons(ctx context.Context) error {
	var files []string
	for _, pattern := range p.cfg.Icons.Sources {
		matches, err := doublestar.FilepathGlob(filepath.Join(p.root, filepath.FromSlash(pattern)))
		if err != nil {
			return fmt.Errorf("expand icon pattern %s: %w", pattern, err)
		}
		files = append(files, matches...)
	}
	logging.Build("Copying %d icons", len(files))

	targets := p.targets(OutputIcons)
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("read icon: %w", err)
		}
		name := filepath.Base(file)
		err = p.fanOut(ctx, targets, data, func(t config.TargetConfig) string {
			return filepath.Join(t.Dir, t.IconsDir, name)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// Script concatenates the ordered sources, wraps the result and writes it to each script target.
func (p *Pipeline) Script(ctx context.Context) error {
	data, err := p.bundle()
	if err != nil {
		return err
	}
	output := p.cfg.Script.Output
	logging.Build("Writing %s (%d bytes)", output, len(data))
	return p.fanOut(ctx, p.targets(OutputScript), data, func(t config.TargetConfig) string {
		return filepath.Join(t.Dir, output)
	})
}

func (p *Pipeline) bundle() ([]byte, error) {
	parts := make([]string, 0, len(p.cfg.Script.Sources))
	for _, src := range p.cfg.Script.Sources {
		data, err := os.ReadFile(filepath.Join(p.root, filepath.FromSlash(src)))
		if err != nil {
			return nil, fmt.Errorf("read script source: %w", err)
		}
		parts = append(parts, string(data))
	}

	var buf bytes.Buffer
	err := p.wrapper.Execute(&buf, struct{ Contents string }{
		Contents: strings.Join(parts, p.cfg.Script.Separator),
	})
	if err != nil {
		return nil, fmt.Errorf("wrap script: %w", err)
	}
	return buf.Bytes(), nil
}

// Style compiles the stylesheet once and writes a rewritten copy per target.
func (p *Pipeline) Style(ctx context.Context) error {
	entry := filepath.Join(p.root, filepath.FromSlash(p.cfg.Style.Entry))
	css, err := p.compiler.Compile(ctx, entry)
	if err != nil {
		return fmt.Errorf("compile %s: %w", p.cfg.Style.Entry, err)
	}
	output := strings.TrimSuffix(filepath.Base(entry), filepath.Ext(entry)) + ".css"

	g, ctx := errgroup.WithContext(ctx)
	for _, target := range p.targets(OutputStyle) {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return p.writeFile(filepath.Join(target.Dir, output), RewriteStyle(css, target))
		})
	}
	return g.Wait()
}

func (p *Pipeline) targets(kind string) []config.TargetConfig {
	var out []config.TargetConfig
	for _, t := range p.cfg.Targets {
		if t.Produces(kind) {
			out = append(out, t)
		}
	}
	return out
}

// fanOut writes the same bytes into every target. Destinations never
// overlap, so the writes run concurrently.
func (p *Pipeline) fanOut(ctx context.Context, targets []config.TargetConfig, data []byte, dest func(config.TargetConfig) string) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, target := range targets {
		rel := dest(target)
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return p.writeFile(rel, data)
		})
	}
	return g.Wait()
}

func (p *Pipeline) writeFile(rel string, data []byte) error {
	path := filepath.Join(p.root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(rel), err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", rel, err)
	}
	logging.BuildDebug("Wrote %s", rel)
	return nil
}
