package e2e

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nginspector/internal/fixtures"
)

type fakeServer struct {
	started, closed int
	startErr        error
	scenarios       []string
}

func (s *fakeServer) Start(context.Context) error {
	if s.startErr != nil {
		return s.startErr
	}
	s.started++
	return nil
}
func (s *fakeServer) Close() error                 { s.closed++; return nil }
func (s *fakeServer) BaseURL() string              { return "http://127.0.0.1:3000" }
func (s *fakeServer) Scenarios() ([]string, error) { return s.scenarios, nil }

type fakeDriver struct {
	targets []Target
	fail    map[string]bool
	abortOn string
}

func (d *fakeDriver) Name() string { return "fake" }

func (d *fakeDriver) Run(_ context.Context, t Target) (Report, error) {
	d.targets = append(d.targets, t)
	if t.Version == d.abortOn {
		return Report{}, errors.New("runner binary missing")
	}
	if d.fail[t.Version] {
		return Report{Passed: false, TotalSpecs: 2, FailedSpecs: 1}, nil
	}
	return Report{Passed: true, TotalSpecs: 2}, nil
}

type memRecorder struct{ outcomes []Outcome }

func (m *memRecorder) SaveRun(_ context.Context, o Outcome) error {
	m.outcomes = append(m.outcomes, o)
	return nil
}

var versions = fixtures.Static{"1.2.28", "1.3.0", "1.4.2"}

func TestRun_AllVersionsInOrder(t *testing.T) {
	server := &fakeServer{scenarios: []string{"anonymous-app", "todo"}}
	driver := &fakeDriver{fail: map[string]bool{"1.3.0": true}}
	rec := &memRecorder{}
	var progress []string

	r := NewRunner(versions, server, driver, "test/e2e/test-results",
		WithRecorder(rec),
		WithProgress(func(v string, i, n int) { progress = append(progress, v) }))

	outcomes, err := r.Run(context.Background(), "")
	require.NoError(t, err)

	require.Len(t, outcomes, 3)
	assert.True(t, outcomes[0].Passed)
	assert.False(t, outcomes[1].Passed)
	assert.True(t, outcomes[2].Passed)
	assert.Equal(t, outcomes[0].RunID, outcomes[2].RunID)
	assert.NotEqual(t, outcomes[0].ID, outcomes[1].ID)
	assert.Equal(t, "fake", outcomes[0].Driver)

	assert.Equal(t, []string{"1.2.28", "1.3.0", "1.4.2"}, progress)
	assert.Equal(t, filepath.Join("test/e2e/test-results", "1.4.2.json"), driver.targets[2].ResultsPath)
	assert.Equal(t, []string{"anonymous-app", "todo"}, driver.targets[0].Scenarios)
	assert.Len(t, rec.outcomes, 3)
	assert.Equal(t, 1, server.started)
	assert.Equal(t, 1, server.closed)
}

func TestRun_SingleVersion(t *testing.T) {
	driver := &fakeDriver{}
	r := NewRunner(versions, &fakeServer{}, driver, t.TempDir())

	outcomes, err := r.Run(context.Background(), "1.3.0")
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.Equal(t, "1.3.0", driver.targets[0].Version)
}

func TestRun_UnknownVersionNeverStartsServer(t *testing.T) {
	server := &fakeServer{}
	driver := &fakeDriver{}
	r := NewRunner(versions, server, driver, t.TempDir())

	_, err := r.Run(context.Background(), "9.9.9")
	require.ErrorIs(t, err, ErrUnknownVersion)
	assert.Contains(t, err.Error(), "1.2.28, 1.3.0, 1.4.2")
	assert.Zero(t, server.started)
	assert.Zero(t, server.closed)
	assert.Empty(t, driver.targets)
}

func TestRun_DriverAbortClosesServer(t *testing.T) {
	server := &fakeServer{}
	driver := &fakeDriver{abortOn: "1.3.0"}
	r := NewRunner(versions, server, driver, t.TempDir())

	outcomes, err := r.Run(context.Background(), "")
	require.Error(t, err)
	assert.Len(t, outcomes, 1)
	assert.Len(t, driver.targets, 2)
	assert.Equal(t, 1, server.closed)
}

func TestRun_ServerStartFailure(t *testing.T) {
	server := &fakeServer{startErr: errors.New("address already in use")}
	driver := &fakeDriver{}
	_, err := NewRunner(versions, server, driver, t.TempDir()).Run(context.Background(), "")
	require.Error(t, err)
	assert.Empty(t, driver.targets)
}

func TestRun_NoFixtures(t *testing.T) {
	server := &fakeServer{}
	_, err := NewRunner(fixtures.Static{}, server, &fakeDriver{}, t.TempDir()).Run(context.Background(), "")
	require.Error(t, err)
	assert.Zero(t, server.started)
}

func TestRun_CancelledBetweenVersions(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	server := &fakeServer{}
	r := NewRunner(versions, server, &fakeDriver{}, t.TempDir(),
		WithProgress(func(v string, i, n int) {
			if i == 2 {
				cancel()
			}
		}))

	outcomes, err := r.Run(ctx, "")
	require.ErrorIs(t, err, context.Canceled)
	assert.Len(t, outcomes, 2)
	assert.Equal(t, 1, server.closed)
}
