package e2e

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"nginspector/internal/logging"
	"nginspector/internal/results"
)

// RodDriver opens every scenario in Chrome and checks that the app shell
// became ready. Results are written in jasmine-json-test-reporter form.
type RodDriver struct {
	Bin               string
	Headless          bool
	NavigationTimeout time.Duration
	ReadyExpression   string
}

// Name implements Driver.
func (d *RodDriver) Name() string { return "rod" }

// Run implements Driver.
func (d *RodDriver) Run(ctx context.Context, t Target) (Report, error) {
	browser, err := d.connect(ctx)
	if err != nil {
		return Report{}, err
	}
	defer browser.Close()

	suites := make([]results.Suite, 0, len(t.Scenarios))
	for i, scenario := range t.Scenarios {
		url := fmt.Sprintf("%s/app/%s/%s", t.BaseURL, scenario, t.Version)
		spec := d.check(ctx, browser, url)
		spec.ID = fmt.Sprintf("spec%d", i)
		spec.Description = "should inspect " + scenario
		spec.FullName = scenario + " " + spec.Description

		suite := results.Suite{
			ID:                 fmt.Sprintf("suite%d", i+1),
			Description:        scenario,
			FullName:           scenario,
			FailedExpectations: []results.Expectation{},
			Status:             "finished",
			Specs:              []results.Spec{spec},
		}
		suites = append(suites, suite)
		logging.E2EDebug("%s on %s: %s", scenario, t.Version, spec.Status)
	}

	if err := results.WriteReport(t.ResultsPath, suites); err != nil {
		return Report{}, fmt.Errorf("write results: %w", err)
	}
	total, failed := results.Counts(suites)
	return Report{Passed: failed == 0, TotalSpecs: total, FailedSpecs: failed}, nil
}

func (d *RodDriver) connect(ctx context.Context) (*rod.Browser, error) {
	l := launcher.New().Headless(d.Headless)
	if d.Bin != "" {
		l = l.Bin(d.Bin)
	}
	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch chrome: %w", err)
	}
	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect to chrome: %w", err)
	}
	return browser, nil
}

func (d *RodDriver) check(ctx context.Context, browser *rod.Browser, url string) results.Spec {
	spec := results.Spec{
		FailedExpectations: []results.Expectation{},
		PassedExpectations: []results.Expectation{},
	}
	fail := func(msg string) results.Spec {
		spec.Status = "failed"
		spec.FailedExpectations = append(spec.FailedExpectations, results.Expectation{Message: msg})
		return spec
	}

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return fail(fmt.Sprintf("create page: %v", err))
	}
	defer page.Close()

	timeout := d.NavigationTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	p := page.Context(ctx).Timeout(timeout)
	if err := p.Navigate(url); err != nil {
		return fail(fmt.Sprintf("navigate %s: %v", url, err))
	}
	if err := p.WaitLoad(); err != nil {
		return fail(fmt.Sprintf("load %s: %v", url, err))
	}

	res, err := p.Eval(d.ReadyExpression)
	if err != nil {
		return fail(fmt.Sprintf("evaluate readiness: %v", err))
	}
	if !res.Value.Bool() {
		return fail(fmt.Sprintf("Expected %s to be ready.", url))
	}

	spec.Status = "passed"
	spec.PassedExpectations = append(spec.PassedExpectations, results.Expectation{MatcherName: "toBe", Message: "Passed.", Passed: true})
	return spec
}
