package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"nginspector/cmd/ngtask/ui"
	"nginspector/internal/e2e"
	"nginspector/internal/fixtures"
	"nginspector/internal/release"
	"nginspector/internal/results"
	"nginspector/internal/version"
	"nginspector/internal/watch"
)

var (
	ngVersion        string
	protractorOutput bool
	historyLimit     int
	historyVersion   string
	historyPurgeDays int
)

func newBumpCmd(kind string) *cobra.Command {
	return &cobra.Command{
		Use:   "bump:" + kind,
		Short: fmt.Sprintf("Bump the %s version in every manifest, then commit and tag", kind),
		Long: `Requires an empty Git stage. Rewrites the version in each configured
manifest, stages them, commits with "Prepare for <tag>" and creates the tag.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBump(cmd, version.Kind(kind))
		},
	}
}

func runBump(cmd *cobra.Command, kind version.Kind) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	var opts []release.Option
	if h := a.history(); h != nil {
		defer h.Close()
		opts = append(opts, release.WithRecorder(h))
	}
	r, err := a.releaser(opts...)
	if err != nil {
		return err
	}

	rec, err := r.Bump(ctx, kind)
	if err != nil {
		return err
	}
	logger.Info("release tagged", zap.String("tag", rec.Tag), zap.Strings("files", rec.Files))
	ui.NewPrinter(cmd.OutOrStdout()).Bumped(rec.Project, rec.Old, rec.New)
	return nil
}

func newBuildCmd(task string) *cobra.Command {
	short := map[string]string{
		"build:icons": "Copy icons into every browser target",
		"build:js":    "Concatenate and wrap the script sources",
		"build:css":   "Compile the stylesheet for every target",
		"default":     "Run build:icons, build:js and build:css",
	}
	return &cobra.Command{
		Use:   task,
		Short: short[task],
		Args:  cobra.NoArgs,
		RunE:  runBuildTask,
	}
}

// runBuildTask runs the task named by the command, or the default build
// for the root command.
func runBuildTask(cmd *cobra.Command, args []string) error {
	task := cmd.Name()
	if !cmd.HasParent() {
		task = "default"
	}
	a, err := loadApp()
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	p, err := a.pipeline()
	if err != nil {
		return err
	}
	printer := ui.NewPrinter(cmd.OutOrStdout())
	printer.Task(task)
	if err := p.Run(ctx, task); err != nil {
		return err
	}
	printer.Done(task)
	return nil
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Rebuild on source changes until interrupted",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		ctx, cancel := signalContext()
		defer cancel()

		p, err := a.pipeline()
		if err != nil {
			return err
		}
		printer := ui.NewPrinter(cmd.OutOrStdout())
		run := func(ctx context.Context, task string) error {
			printer.Task(task)
			if err := p.Run(ctx, task); err != nil {
				printer.Failuref("%s: %v", task, err)
				return err
			}
			printer.Done(task)
			return nil
		}

		w, err := watch.New(a.root, a.cfg.Watch.Rules, a.cfg.GetWatchDebounce(), run)
		if err != nil {
			return err
		}
		printer.Infof("Watching %d patterns, Ctrl+C to stop", len(a.cfg.Watch.Rules))
		return w.Run(ctx)
	},
}

var scenariosCmd = &cobra.Command{
	Use:   "scenarios",
	Short: "Serve the e2e scenario pages until interrupted",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		ctx, cancel := signalContext()
		defer cancel()

		srv := a.scenarioServer()
		if err := srv.Start(ctx); err != nil {
			return err
		}
		ui.NewPrinter(cmd.OutOrStdout()).Infof("Serving scenarios on %s", srv.BaseURL())
		<-ctx.Done()
		return srv.Close()
	},
}

var runTestsCmd = &cobra.Command{
	Use:   "run-tests",
	Short: "Build, then run the e2e suite against each framework version",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		ctx, cancel := signalContext()
		defer cancel()

		p, err := a.pipeline()
		if err != nil {
			return err
		}
		if err := p.All(ctx); err != nil {
			return err
		}
		resultsDir := a.path(a.cfg.Tests.ResultsDir)
		if err := results.Clean(resultsDir); err != nil {
			return err
		}

		driver, err := a.driver(protractorOutput)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		spin := ui.NewSpinner(out)
		opts := []e2e.Option{e2e.WithProgress(func(v string, i, n int) {
			spin.Update(fmt.Sprintf("Testing %s (%d/%d)", v, i, n))
		})}
		if h := a.history(); h != nil {
			defer h.Close()
			opts = append(opts, e2e.WithRecorder(h))
		}
		runner := e2e.NewRunner(fixtures.Dir{Path: a.path(a.cfg.Tests.FixturesDir)}, a.scenarioServer(), driver, resultsDir, opts...)

		if !protractorOutput {
			spin.Start("Resolving versions")
		}
		outcomes, err := runner.Run(ctx, ngVersion)
		spin.Stop()
		if len(outcomes) > 0 {
			ui.RunTable(out, outcomes)
		}
		return err
	},
}

func (a *app) driver(showOutput bool) (e2e.Driver, error) {
	if a.cfg.Tests.Driver == "command" {
		return e2e.NewCommandDriver(a.exec, a.cfg.Tests.Command, showOutput)
	}
	b := a.cfg.Tests.Browser
	return &e2e.RodDriver{
		Bin:               b.Bin,
		Headless:          b.Headless,
		NavigationTimeout: a.cfg.GetNavigationTimeout(),
		ReadyExpression:   b.ReadyExpression,
	}, nil
}

var testCmd = &cobra.Command{
	Use:   "test",
	Short: "Summarize the failing suites of the last run-tests",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		summary, err := results.SummarizeDir(a.path(a.cfg.Tests.ResultsDir))
		if err != nil {
			return err
		}
		if err := results.Write(a.path(a.cfg.Tests.SummaryPath), summary); err != nil {
			return err
		}

		versions := make([]string, 0, len(summary))
		for v := range summary {
			versions = append(versions, v)
		}
		fixtures.Sort(versions)
		ui.SummaryTable(cmd.OutOrStdout(), versions, summary)
		ui.NewPrinter(cmd.OutOrStdout()).Infof("Summary written to %s", a.cfg.Tests.SummaryPath)
		return nil
	},
}

var cleanResultsCmd = &cobra.Command{
	Use:   "clean:test-results",
	Short: "Remove everything under the test results directory",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		return results.Clean(a.path(a.cfg.Tests.ResultsDir))
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent releases and test runs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		h := a.history()
		if h == nil {
			return fmt.Errorf("history database is not available (tests.history_db)")
		}
		defer h.Close()
		ctx := cmd.Context()
		out := cmd.OutOrStdout()

		if historyPurgeDays > 0 {
			n, err := h.PurgeOlderThan(ctx, historyPurgeDays)
			if err != nil {
				return fmt.Errorf("purge history: %w", err)
			}
			ui.NewPrinter(out).Successf("Purged %d entries older than %d days", n, historyPurgeDays)
		}

		releases, err := h.RecentReleases(ctx, historyLimit)
		if err != nil {
			return err
		}
		runs, err := h.RecentRuns(ctx, historyVersion, historyLimit)
		if err != nil {
			return err
		}
		ui.ReleaseTable(out, releases)
		if historyVersion == "" {
			summaries, err := h.RunSummaries(ctx, historyLimit)
			if err != nil {
				return err
			}
			if len(summaries) > 0 {
				ui.RunSummaryTable(out, summaries)
			}
		}
		ui.RunTable(out, runs)
		return nil
	},
}
