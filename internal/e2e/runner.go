// Package e2e runs the end-to-end suite once per framework version
// against the scenario server.
package e2e

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"nginspector/internal/fixtures"
	"nginspector/internal/logging"
)

// ErrUnknownVersion is returned when a requested version has no fixture.
var ErrUnknownVersion = errors.New("framework version not found")

// Server is the scenario host the drivers point at.
type Server interface {
	Start(ctx context.Context) error
	Close() error
	BaseURL() string
	Scenarios() ([]string, error)
}

// Target describes one version run.
type Target struct {
	BaseURL     string
	Version     string
	Scenarios   []string
	ResultsPath string
}

// Report is what a driver learned about a version run.
type Report struct {
	Passed      bool
	TotalSpecs  int
	FailedSpecs int
}

// Driver executes the suite for one version. A returned error aborts the
// whole run; a failing suite is reported through Report.
type Driver interface {
	Name() string
	Run(ctx context.Context, t Target) (Report, error)
}

// Outcome is the record of one version run.
type Outcome struct {
	ID          string
	RunID       string
	Version     string
	Driver      string
	Passed      bool
	TotalSpecs  int
	FailedSpecs int
	Duration    time.Duration
	StartedAt   time.Time
}

// Recorder persists outcomes. Implemented by store.Store.
type Recorder interface {
	SaveRun(ctx context.Context, o Outcome) error
}

// Runner sequences versions through a driver.
type Runner struct {
	fixtures   fixtures.Repository
	server     Server
	driver     Driver
	resultsDir string
	recorder   Recorder
	progress   func(version string, index, total int)
	clock      func() time.Time
}

// Option customizes a Runner.
type Option func(*Runner)

// WithRecorder stores every outcome in r.
func WithRecorder(r Recorder) Option {
	return func(rn *Runner) { rn.recorder = r }
}

// WithProgress is called before each version starts.
func WithProgress(fn func(version string, index, total int)) Option {
	return func(rn *Runner) { rn.progress = fn }
}

// NewRunner creates a runner writing results into resultsDir.
func NewRunner(repo fixtures.Repository, server Server, driver Driver, resultsDir string, opts ...Option) *Runner {
	r := &Runner{
		fixtures:   repo,
		server:     server,
		driver:     driver,
		resultsDir: resultsDir,
		clock:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the versions to test: only, when set and available,
// otherwise every fixture version.
func (r *Runner) Resolve(ctx context.Context, only string) ([]string, error) {
	available, err := r.fixtures.Versions(ctx)
	if err != nil {
		return nil, err
	}
	if only == "" {
		return available, nil
	}
	if !fixtures.Contains(available, only) {
		return nil, fmt.Errorf("%w: %s (available: %s)", ErrUnknownVersion, only, strings.Join(available, ", "))
	}
	return []string{only}, nil
}

// Run tests each resolved version in order. The server is started after
// the versions resolve and is always closed before returning.
func (r *Runner) Run(ctx context.Context, only string) (outcomes []Outcome, err error) {
	versions, err := r.Resolve(ctx, only)
	if err != nil {
		return nil, err
	}
	if len(versions) == 0 {
		return nil, fmt.Errorf("no framework versions available")
	}

	if err := r.server.Start(ctx); err != nil {
		return nil, fmt.Errorf("start scenario server: %w", err)
	}
	defer func() {
		if cerr := r.server.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close scenario server: %w", cerr)
		}
	}()

	scenarios, err := r.server.Scenarios()
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	logging.E2E("Run %s: %d versions, %d scenarios, driver %s", runID, len(versions), len(scenarios), r.driver.Name())

	for i, version := range versions {
		if err := ctx.Err(); err != nil {
			return outcomes, err
		}
		if r.progress != nil {
			r.progress(version, i+1, len(versions))
		}

		start := r.clock()
		report, err := r.driver.Run(ctx, Target{
			BaseURL:     r.server.BaseURL(),
			Version:     version,
			Scenarios:   scenarios,
			ResultsPath: filepath.Join(r.resultsDir, version+".json"),
		})
		if err != nil {
			return outcomes, fmt.Errorf("run %s: %w", version, err)
		}

		o := Outcome{
			ID:          uuid.NewString(),
			RunID:       runID,
			Version:     version,
			Driver:      r.driver.Name(),
			Passed:      report.Passed,
			TotalSpecs:  report.TotalSpecs,
			FailedSpecs: report.FailedSpecs,
			Duration:    r.clock().Sub(start),
			StartedAt:   start,
		}
		outcomes = append(outcomes, o)
		logging.E2E("%s: passed=%t specs=%d failed=%d", version, o.Passed, o.TotalSpecs, o.FailedSpecs)

		if r.recorder != nil {
			if err := r.recorder.SaveRun(ctx, o); err != nil {
				logging.Get(logging.CategoryE2E).Warn("record run %s: %v", version, err)
			}
		}
	}
	return outcomes, nil
}
