// Package ui provides the terminal styling for ngtask output.
package ui

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
)

// Palette
var (
	Primary     = lipgloss.Color("#E23237") // framework red
	Accent      = lipgloss.Color("#2196F3")
	Muted       = lipgloss.Color("#8a8f98")
	Success     = lipgloss.Color("#8BC34A")
	Warning     = lipgloss.Color("#FFC107")
	Destructive = lipgloss.Color("#e53935")
)

// Styles holds the rendered styles used across commands.
type Styles struct {
	Title   lipgloss.Style
	Task    lipgloss.Style
	Success lipgloss.Style
	Failure lipgloss.Style
	Warning lipgloss.Style
	Muted   lipgloss.Style
	Version lipgloss.Style
}

// DefaultStyles returns the standard styles. With NO_COLOR set the
// styles render plain text.
func DefaultStyles() Styles {
	s := Styles{
		Title:   lipgloss.NewStyle().Bold(true).Foreground(Primary),
		Task:    lipgloss.NewStyle().Bold(true).Foreground(Accent),
		Success: lipgloss.NewStyle().Foreground(Success),
		Failure: lipgloss.NewStyle().Bold(true).Foreground(Destructive),
		Warning: lipgloss.NewStyle().Foreground(Warning),
		Muted:   lipgloss.NewStyle().Foreground(Muted),
		Version: lipgloss.NewStyle().Bold(true),
	}
	if os.Getenv("NO_COLOR") != "" {
		plain := lipgloss.NewStyle()
		s = Styles{Title: plain, Task: plain, Success: plain, Failure: plain, Warning: plain, Muted: plain, Version: plain}
	}
	return s
}

// Printer writes styled lines to an output stream.
type Printer struct {
	out    io.Writer
	styles Styles
}

// NewPrinter creates a printer writing to out.
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out, styles: DefaultStyles()}
}

// Task announces the start of a named task.
func (p *Printer) Task(name string) {
	fmt.Fprintf(p.out, "%s %s\n", p.styles.Muted.Render("Starting"), p.styles.Task.Render("'"+name+"'"))
}

// Done reports a finished task.
func (p *Printer) Done(name string) {
	fmt.Fprintf(p.out, "%s %s\n", p.styles.Muted.Render("Finished"), p.styles.Task.Render("'"+name+"'"))
}

// Bumped prints the release confirmation.
func (p *Printer) Bumped(project, oldVersion, newVersion string) {
	fmt.Fprintf(p.out, "%s bumped from %s to %s\n",
		p.styles.Title.Render(`"`+project+`"`),
		p.styles.Version.Render(oldVersion),
		p.styles.Success.Render(newVersion))
}

// Successf prints a success line.
func (p *Printer) Successf(format string, args ...interface{}) {
	fmt.Fprintln(p.out, p.styles.Success.Render(fmt.Sprintf(format, args...)))
}

// Failuref prints a failure line.
func (p *Printer) Failuref(format string, args ...interface{}) {
	fmt.Fprintln(p.out, p.styles.Failure.Render(fmt.Sprintf(format, args...)))
}

// Infof prints a muted line.
func (p *Printer) Infof(format string, args ...interface{}) {
	fmt.Fprintln(p.out, p.styles.Muted.Render(fmt.Sprintf(format, args...)))
}
