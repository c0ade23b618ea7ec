package e2e

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"text/template"

	"nginspector/internal/execute"
	"nginspector/internal/logging"
	"nginspector/internal/results"
)

// CommandDriver runs an external test runner (protractor by default) per
// version. Arguments are text/template strings over Target.
type CommandDriver struct {
	exec   execute.Executor
	argv   []*template.Template
	stdout io.Writer
	stderr io.Writer
}

// NewCommandDriver parses argv. With showOutput the runner's output is
// passed through to the terminal.
func NewCommandDriver(exec execute.Executor, argv []string, showOutput bool) (*CommandDriver, error) {
	if len(argv) == 0 {
		return nil, errors.New("test command is empty")
	}
	d := &CommandDriver{exec: exec}
	for i, arg := range argv {
		tmpl, err := template.New(fmt.Sprintf("arg%d", i)).Option("missingkey=error").Parse(arg)
		if err != nil {
			return nil, fmt.Errorf("parse test command argument %q: %w", arg, err)
		}
		d.argv = append(d.argv, tmpl)
	}
	if showOutput {
		d.stdout, d.stderr = os.Stdout, os.Stderr
	}
	return d, nil
}

// Name implements Driver.
func (d *CommandDriver) Name() string { return "command" }

// Run implements Driver. A non-zero exit fails the version; any other
// error aborts the run.
func (d *CommandDriver) Run(ctx context.Context, t Target) (Report, error) {
	args := make([]string, len(d.argv))
	for i, tmpl := range d.argv {
		var buf bytes.Buffer
		if err := tmpl.Execute(&buf, t); err != nil {
			return Report{}, fmt.Errorf("render test command: %w", err)
		}
		args[i] = buf.String()
	}

	_, err := d.exec.Execute(ctx, execute.Command{
		Binary:    args[0],
		Arguments: args[1:],
		Stdout:    d.stdout,
		Stderr:    d.stderr,
	})

	var exitErr *execute.ExitError
	switch {
	case errors.As(err, &exitErr):
		logging.Get(logging.CategoryE2E).Warn("%s: %v", t.Version, exitErr)
	case err != nil:
		return Report{}, err
	}

	report := Report{Passed: err == nil}
	if suites, rerr := results.ReadReport(t.ResultsPath); rerr == nil {
		report.TotalSpecs, report.FailedSpecs = results.Counts(suites)
		if report.FailedSpecs > 0 {
			report.Passed = false
		}
	}
	return report, nil
}
