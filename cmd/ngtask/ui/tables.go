package ui

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"nginspector/internal/e2e"
	"nginspector/internal/release"
	"nginspector/internal/results"
	"nginspector/internal/store"
)

const timeFormat = "2006-01-02 15:04"

func newTable(out io.Writer, title string) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetTitle(title)
	t.SetStyle(table.StyleRounded)
	return t
}

// ReleaseTable renders release history.
func ReleaseTable(out io.Writer, records []release.Record) {
	t := newTable(out, "Releases")
	t.AppendHeader(table.Row{"When", "Project", "From", "To", "Files"})
	for _, r := range records {
		t.AppendRow(table.Row{r.CreatedAt.Local().Format(timeFormat), r.Project, r.Old, r.New, len(r.Files)})
	}
	if len(records) == 0 {
		t.AppendRow(table.Row{"-", "no releases recorded", "", "", ""})
	}
	t.Render()
}

// RunTable renders per-version test outcomes.
func RunTable(out io.Writer, outcomes []e2e.Outcome) {
	t := newTable(out, "Test runs")
	t.AppendHeader(table.Row{"When", "Version", "Driver", "Result", "Specs", "Failed", "Duration"})
	for _, o := range outcomes {
		t.AppendRow(table.Row{
			o.StartedAt.Local().Format(timeFormat),
			o.Version,
			o.Driver,
			passFail(o.Passed),
			o.TotalSpecs,
			o.FailedSpecs,
			o.Duration.Round(time.Millisecond),
		})
	}
	if len(outcomes) == 0 {
		t.AppendRow(table.Row{"-", "no runs recorded", "", "", "", "", ""})
	}
	t.Render()
}

// RunSummaryTable renders one row per run-tests invocation.
func RunSummaryTable(out io.Writer, runs []store.RunSummary) {
	t := newTable(out, "Runs")
	t.AppendHeader(table.Row{"When", "Run", "Versions", "Failed"})
	for _, r := range runs {
		failed := fmt.Sprint(r.Failed)
		if r.Failed > 0 {
			failed = text.FgRed.Sprint(failed)
		}
		t.AppendRow(table.Row{r.StartedAt.Local().Format(timeFormat), shortID(r.RunID), r.Versions, failed})
	}
	t.Render()
}

// SummaryTable renders the failing suites of a results summary.
func SummaryTable(out io.Writer, versions []string, summary results.Summary) {
	t := newTable(out, "Failing suites")
	t.AppendHeader(table.Row{"Version", "Suite", "After-all failures", "Failed specs"})
	for _, v := range versions {
		suites := summary[v]
		if len(suites) == 0 {
			t.AppendRow(table.Row{v, text.FgGreen.Sprint("all passed"), "", ""})
			continue
		}
		for _, s := range suites {
			names := make([]string, 0, len(s.FailedSpecs))
			for _, spec := range s.FailedSpecs {
				names = append(names, spec.Description)
			}
			t.AppendRow(table.Row{v, s.Name, len(s.FailedAfterAlls), strings.Join(names, "\n")})
		}
	}
	t.Render()
}

func passFail(ok bool) string {
	if ok {
		return text.FgGreen.Sprint("pass")
	}
	return text.FgRed.Sprint("FAIL")
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
