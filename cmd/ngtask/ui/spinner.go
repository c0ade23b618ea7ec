package ui

import (
	"io"
	"time"

	"github.com/briandowns/spinner"
)

// Spinner is a progress indicator for long running tasks.
type Spinner struct {
	s *spinner.Spinner
}

// NewSpinner creates a spinner writing to out.
func NewSpinner(out io.Writer) *Spinner {
	s := spinner.New(spinner.CharSets[11], 100*time.Millisecond, spinner.WithWriter(out))
	s.Color("yellow") //nolint:errcheck
	return &Spinner{s: s}
}

// Start shows the spinner with a message.
func (s *Spinner) Start(msg string) {
	s.s.Suffix = " " + msg
	s.s.Start()
}

// Update changes the message of a running spinner.
func (s *Spinner) Update(msg string) {
	s.s.Lock()
	s.s.Suffix = " " + msg
	s.s.Unlock()
}

// Stop hides the spinner.
func (s *Spinner) Stop() {
	s.s.Stop()
}
