package ui

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"nginspector/internal/e2e"
	"nginspector/internal/release"
	"nginspector/internal/results"
)

func TestBumped(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	var buf bytes.Buffer
	NewPrinter(&buf).Bumped("ng-inspector", "v1.2.3", "v1.2.4")
	assert.Equal(t, "\"ng-inspector\" bumped from v1.2.3 to v1.2.4\n", buf.String())
}

func TestTaskLines(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	var buf bytes.Buffer
	p := NewPrinter(&buf)
	p.Task("build:js")
	p.Done("build:js")
	assert.Equal(t, "Starting 'build:js'\nFinished 'build:js'\n", buf.String())
}

func TestTables(t *testing.T) {
	var buf bytes.Buffer
	ReleaseTable(&buf, []release.Record{{Project: "ng-inspector", Old: "v1.2.3", New: "v1.3.0", Files: []string{"a", "b"}, CreatedAt: time.Now()}})
	assert.Contains(t, buf.String(), "v1.3.0")

	buf.Reset()
	RunTable(&buf, []e2e.Outcome{{Version: "1.4.2", Driver: "rod", TotalSpecs: 3, FailedSpecs: 1}})
	assert.Contains(t, buf.String(), "1.4.2")
	assert.Contains(t, buf.String(), "FAIL")

	buf.Reset()
	RunTable(&buf, nil)
	assert.Contains(t, buf.String(), "no runs recorded")

	buf.Reset()
	SummaryTable(&buf, []string{"1.3.0", "1.4.2"}, results.Summary{
		"1.3.0": {},
		"1.4.2": {{Name: "Todo", FailedSpecs: []results.Spec{{Description: "lists items"}}}},
	})
	assert.Contains(t, buf.String(), "all passed")
	assert.Contains(t, buf.String(), "lists items")
}
