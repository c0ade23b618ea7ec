// Package release implements the version bump workflow:
// check the staging area, bump every manifest, then stage, commit and tag.
package release

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/google/uuid"

	"nginspector/internal/logging"
	"nginspector/internal/manifest"
	"nginspector/internal/vcs"
	"nginspector/internal/version"
)

// ErrDirtyStage is returned when the staging area holds pending changes.
var ErrDirtyStage = errors.New("cannot update manifests with a dirty Git stage")

// Record describes a completed release: one commit and one tag.
type Record struct {
	ID        string
	Project   string
	Old       string
	New       string
	Tag       string
	Files     []string
	CreatedAt time.Time
}

// Recorder persists release records. Implemented by store.Store.
type Recorder interface {
	SaveRelease(ctx context.Context, rec Record) error
}

// Options configures a Releaser.
type Options struct {
	Root          string
	Project       string // fallback when the primary manifest has no name
	Primary       string
	Manifests     []manifest.Spec
	TagPrefix     string
	CommitMessage string // fmt pattern, %s = tag
}

// Releaser runs the bump workflow against a repository handle.
type Releaser struct {
	opts     Options
	repo     vcs.Repository
	recorder Recorder
	now      func() time.Time
	// writeFile is swapped in tests to inject write failures.
	writeFile func(path string, data []byte, perm os.FileMode) error
}

// Option customizes a Releaser.
type Option func(*Releaser)

// WithRecorder appends each completed release to r.
func WithRecorder(r Recorder) Option {
	return func(rel *Releaser) {
		rel.recorder = r
	}
}

// WithClock overrides the record timestamp source (tests).
func WithClock(clock func() time.Time) Option {
	return func(rel *Releaser) {
		if clock != nil {
			rel.now = clock
		}
	}
}

// New constructs a Releaser.
func New(repo vcs.Repository, opts Options, options ...Option) (*Releaser, error) {
	if repo == nil {
		return nil, errors.New("release: repository handle is required")
	}
	if len(opts.Manifests) == 0 {
		return nil, errors.New("release: no manifests configured")
	}
	if opts.Primary == "" {
		opts.Primary = opts.Manifests[0].Path
	}
	if opts.CommitMessage == "" {
		opts.CommitMessage = "Prepare for %s"
	}
	r := &Releaser{
		opts:      opts,
		repo:      repo,
		now:       time.Now,
		writeFile: os.WriteFile,
	}
	for _, o := range options {
		if o != nil {
			o(r)
		}
	}
	return r, nil
}

// Bump runs the full workflow for kind. Nothing is written if the stage
// is dirty or any manifest fails to parse; nothing reaches version control
// unless every manifest was written.
func (r *Releaser) Bump(ctx context.Context, kind version.Kind) (*Record, error) {
	log := logging.Get(logging.CategoryRelease)

	kind, err := version.ParseKind(string(kind))
	if err != nil {
		return nil, err
	}

	if err := r.checkStage(ctx); err != nil {
		return nil, err
	}

	docs, primary, err := r.load()
	if err != nil {
		return nil, err
	}

	primarySpec := r.spec(primary.Path())
	current, err := version.Parse(primary.Version(), primarySpec.Prefix)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", manifest.ErrMalformed, primary.Path(), err)
	}
	next, err := version.Next(current, kind)
	if err != nil {
		return nil, err
	}
	log.Info("Bumping %s: %s -> %s", kind, current, next.String())

	rendered, err := r.render(docs, next)
	if err != nil {
		return nil, err
	}

	files, err := r.write(docs, rendered)
	if err != nil {
		return nil, err
	}

	tag := version.Encode(next, r.opts.TagPrefix)
	if err := r.commit(ctx, files, tag); err != nil {
		return nil, err
	}

	rec := &Record{
		ID:        uuid.NewString(),
		Project:   r.projectName(primary),
		Old:       primary.Version(),
		New:       version.Encode(next, primarySpec.Prefix),
		Tag:       tag,
		Files:     files,
		CreatedAt: r.now(),
	}
	if r.recorder != nil {
		if err := r.recorder.SaveRelease(ctx, *rec); err != nil {
			log.Warn("Could not record release %s: %v", rec.Tag, err)
		}
	}
	log.Info("Released %s %s", rec.Project, rec.Tag)
	return rec, nil
}

// checkStage is the precondition: an empty staging area.
func (r *Releaser) checkStage(ctx context.Context) error {
	diff, err := r.repo.StagedDiff(ctx)
	if err != nil {
		return err
	}
	if len(diff) > 0 {
		logging.Get(logging.CategoryRelease).Warn("Refusing to bump: staging area is not empty")
		return ErrDirtyStage
	}
	return nil
}

func (r *Releaser) spec(path string) manifest.Spec {
	for _, s := range r.opts.Manifests {
		if s.Path == path {
			return s
		}
	}
	return manifest.Spec{Path: path}
}

// load parses every manifest up front so a malformed one aborts before any write.
func (r *Releaser) load() ([]manifest.Document, manifest.Document, error) {
	docs := make([]manifest.Document, 0, len(r.opts.Manifests))
	var primary manifest.Document
	for _, spec := range r.opts.Manifests {
		doc, err := manifest.Load(r.opts.Root, spec)
		if err != nil {
			return nil, nil, err
		}
		docs = append(docs, doc)
		if spec.Path == r.opts.Primary {
			primary = doc
		}
	}
	if primary == nil {
		return nil, nil, fmt.Errorf("primary manifest %s is not configured", r.opts.Primary)
	}
	return docs, primary, nil
}

func (r *Releaser) render(docs []manifest.Document, next semver.Version) ([][]byte, error) {
	out := make([][]byte, len(docs))
	for i, doc := range docs {
		data, err := doc.Render(version.Encode(next, r.spec(doc.Path()).Prefix))
		if err != nil {
			return nil, err
		}
		out[i] = data
	}
	return out, nil
}

// write replaces every manifest. On the first failure the manifests
// already written, and the one that failed, are restored to their loaded bytes.
func (r *Releaser) write(docs []manifest.Document, rendered [][]byte) ([]string, error) {
	log := logging.Get(logging.CategoryRelease)
	files := make([]string, 0, len(docs))
	for i, doc := range docs {
		path := filepath.Join(r.opts.Root, doc.Path())
		if err := r.writeFile(path, rendered[i], filePerm(path)); err != nil {
			log.Error("Write %s failed, restoring %d manifests: %v", doc.Path(), i+1, err)
			r.restore(docs[:i+1])
			return nil, fmt.Errorf("write manifest %s: %w", doc.Path(), err)
		}
		log.Info("Updated %s", doc.Path())
		files = append(files, doc.Path())
	}
	return files, nil
}

func (r *Releaser) restore(docs []manifest.Document) {
	for _, doc := range docs {
		path := filepath.Join(r.opts.Root, doc.Path())
		if err := r.writeFile(path, doc.Original(), filePerm(path)); err != nil {
			logging.Get(logging.CategoryRelease).Error("Restore %s failed: %v", doc.Path(), err)
		}
	}
}

func filePerm(path string) os.FileMode {
	if info, err := os.Stat(path); err == nil {
		return info.Mode().Perm()
	}
	return 0644
}

// commit stages exactly files, commits and tags. Each step halts the sequence on failure.
func (r *Releaser) commit(ctx context.Context, files []string, tag string) error {
	if err := r.repo.Add(ctx, files...); err != nil {
		return err
	}
	if err := r.repo.Commit(ctx, fmt.Sprintf(r.opts.CommitMessage, tag)); err != nil {
		return err
	}
	return r.repo.Tag(ctx, tag)
}

func (r *Releaser) projectName(primary manifest.Document) string {
	if name := primary.Name(); name != "" {
		return name
	}
	return r.opts.Project
}
