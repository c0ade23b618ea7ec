// Package results reads jasmine-json-test-reporter files and condenses
// them into a per-version summary of failing suites.
package results

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"nginspector/internal/logging"
)

// ErrMalformedReport is returned for result files that are not a JSON object of suites.
var ErrMalformedReport = errors.New("malformed test report")

// Expectation is a single assertion outcome.
type Expectation struct {
	MatcherName string `json:"matcherName,omitempty"`
	Message     string `json:"message"`
	Stack       string `json:"stack,omitempty"`
	Passed      bool   `json:"passed"`
}

// Spec is one test case.
type Spec struct {
	ID                 string        `json:"id"`
	Description        string        `json:"description"`
	FullName           string        `json:"fullName"`
	FailedExpectations []Expectation `json:"failedExpectations"`
	PassedExpectations []Expectation `json:"passedExpectations"`
	Status             string        `json:"status"`
}

// Suite groups specs. FailedExpectations holds afterAll failures.
type Suite struct {
	ID                 string        `json:"id"`
	Description        string        `json:"description"`
	FullName           string        `json:"fullName"`
	FailedExpectations []Expectation `json:"failedExpectations"`
	Status             string        `json:"status"`
	Specs              []Spec        `json:"specs"`
}

// SuiteSummary is the condensed view of a suite.
type SuiteSummary struct {
	Name            string        `json:"name"`
	FailedAfterAlls []Expectation `json:"failedAfterAlls"`
	Passed          bool          `json:"passed"`
	FailedSpecs     []Spec        `json:"failedSpecs"`
}

// Summary maps a framework version to its failing suites.
type Summary map[string][]SuiteSummary

// ReadReport parses a result file, keeping suites in file order.
func ReadReport(path string) ([]Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: %s: invalid JSON", ErrMalformedReport, filepath.Base(path))
	}
	doc := gjson.ParseBytes(data)
	if !doc.IsObject() {
		return nil, fmt.Errorf("%w: %s: not an object", ErrMalformedReport, filepath.Base(path))
	}

	var suites []Suite
	var decodeErr error
	doc.ForEach(func(key, value gjson.Result) bool {
		var s Suite
		if err := json.Unmarshal([]byte(value.Raw), &s); err != nil {
			decodeErr = fmt.Errorf("%w: %s: suite %s: %v", ErrMalformedReport, filepath.Base(path), key.String(), err)
			return false
		}
		if s.ID == "" {
			s.ID = key.String()
		}
		suites = append(suites, s)
		return true
	})
	if decodeErr != nil {
		return nil, decodeErr
	}
	return suites, nil
}

// WriteReport writes suites as a jasmine-json-test-reporter object keyed
// by suite id, in the given order.
func WriteReport(path string, suites []Suite) error {
	doc := []byte("{}")
	for i, s := range suites {
		if s.ID == "" {
			s.ID = fmt.Sprintf("suite%d", i+1)
		}
		raw, err := json.Marshal(s)
		if err != nil {
			return err
		}
		doc, err = sjson.SetRawBytes(doc, escapeKey(s.ID), raw)
		if err != nil {
			return fmt.Errorf("encode suite %s: %w", s.ID, err)
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, doc, 0644)
}

func escapeKey(key string) string {
	r := strings.NewReplacer(".", `\.`, "*", `\*`, "?", `\?`, "|", `\|`, "#", `\#`, "@", `\@`)
	return r.Replace(key)
}

// Summarize keeps the suites that failed. A suite fails when it has
// afterAll failures or any spec whose status is not "passed", whatever
// the suite's own status says.
func Summarize(suites []Suite) []SuiteSummary {
	failing := make([]SuiteSummary, 0)
	for _, s := range suites {
		failedSpecs := make([]Spec, 0)
		for _, spec := range s.Specs {
			if spec.Status != "passed" {
				failedSpecs = append(failedSpecs, spec)
			}
		}
		afterAlls := s.FailedExpectations
		if afterAlls == nil {
			afterAlls = make([]Expectation, 0)
		}
		summary := SuiteSummary{
			Name:            s.FullName,
			FailedAfterAlls: afterAlls,
			Passed:          len(afterAlls) == 0 && len(failedSpecs) == 0,
			FailedSpecs:     failedSpecs,
		}
		if !summary.Passed {
			failing = append(failing, summary)
		}
	}
	return failing
}

// SummarizeDir builds a Summary from every <version>.json in dir.
func SummarizeDir(dir string) (Summary, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read results dir: %w", err)
	}

	summary := make(Summary)
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		version := strings.TrimSuffix(e.Name(), ".json")
		suites, err := ReadReport(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		summary[version] = Summarize(suites)
		logging.Results("%s: %d suites, %d failing", version, len(suites), len(summary[version]))
	}
	return summary, nil
}

// Write stores the summary as 4-space indented JSON.
func Write(path string, s Summary) error {
	data, err := json.MarshalIndent(s, "", "    ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	logging.Results("Wrote summary for %d versions to %s", len(s), path)
	return nil
}

// Counts returns the number of specs and failed specs in a report.
func Counts(suites []Suite) (total, failed int) {
	for _, s := range suites {
		for _, spec := range s.Specs {
			total++
			if spec.Status != "passed" {
				failed++
			}
		}
	}
	return total, failed
}

// Clean removes everything inside dir. The directory itself is kept, and
// created when missing.
func Clean(dir string) error {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return os.MkdirAll(dir, 0755)
	}
	if err != nil {
		return err
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(dir, e.Name())); err != nil {
			return fmt.Errorf("clean %s: %w", e.Name(), err)
		}
	}
	logging.Results("Removed %d entries from %s", len(entries), dir)
	return nil
}
