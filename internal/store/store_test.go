package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nginspector/internal/e2e"
	"nginspector/internal/release"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "nested", "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestReleases_NewestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i, tag := range []string{"v1.2.4", "v1.3.0"} {
		require.NoError(t, s.SaveRelease(ctx, release.Record{
			ID:        tag + "-id",
			Project:   "ng-inspector",
			Old:       "v1.2.3",
			New:       tag,
			Tag:       tag,
			Files:     []string{"package.json", "ng-inspector.chrome/manifest.json"},
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
		}))
	}

	got, err := s.RecentReleases(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "v1.3.0", got[0].Tag)
	assert.Equal(t, []string{"package.json", "ng-inspector.chrome/manifest.json"}, got[0].Files)
	assert.True(t, got[1].CreatedAt.Equal(base))

	limited, err := s.RecentReleases(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestSaveRelease_DuplicateID(t *testing.T) {
	s := newTestStore(t)
	rec := release.Record{ID: "same", Project: "p", Old: "1", New: "2", Tag: "v2", CreatedAt: base}
	require.NoError(t, s.SaveRelease(context.Background(), rec))
	assert.Error(t, s.SaveRelease(context.Background(), rec))
	assert.Error(t, s.SaveRelease(context.Background(), release.Record{}))
}

func TestRuns_FilterAndSummaries(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	outcomes := []e2e.Outcome{
		{ID: "a", RunID: "run-1", Version: "1.3.0", Driver: "rod", Passed: true, TotalSpecs: 4, Duration: 1500 * time.Millisecond, StartedAt: base},
		{ID: "b", RunID: "run-1", Version: "1.4.2", Driver: "rod", Passed: false, TotalSpecs: 4, FailedSpecs: 2, StartedAt: base.Add(time.Minute)},
		{ID: "c", RunID: "run-2", Version: "1.4.2", Driver: "command", Passed: true, StartedAt: base.Add(time.Hour)},
	}
	for _, o := range outcomes {
		require.NoError(t, s.SaveRun(ctx, o))
	}

	all, err := s.RecentRuns(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "c", all[0].ID)
	assert.Equal(t, 1500*time.Millisecond, all[2].Duration)
	assert.True(t, all[2].Passed)

	only, err := s.RecentRuns(ctx, "1.4.2", 10)
	require.NoError(t, err)
	require.Len(t, only, 2)
	assert.False(t, only[1].Passed)
	assert.Equal(t, 2, only[1].FailedSpecs)

	runs, err := s.RunSummaries(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, RunSummary{RunID: "run-2", Versions: 1, Failed: 0, StartedAt: base.Add(time.Hour)}, runs[0])
	assert.Equal(t, 2, runs[1].Versions)
	assert.Equal(t, 1, runs[1].Failed)
}

func TestPurgeOlderThan(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.SaveRun(ctx, e2e.Outcome{ID: "old", RunID: "r", Version: "1.0.0", Driver: "rod", StartedAt: time.Now().AddDate(0, 0, -40)}))
	require.NoError(t, s.SaveRun(ctx, e2e.Outcome{ID: "new", RunID: "r", Version: "1.0.0", Driver: "rod", StartedAt: time.Now()}))

	n, err := s.PurgeOlderThan(ctx, 30)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	_, err = s.PurgeOlderThan(ctx, 0)
	assert.Error(t, err)
}

func TestOpen_MigratesV1Database(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = db.Exec(schemaV1)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO releases (release_id, project, old_version, new_version, tag, created_at)
		VALUES ('r1', 'ng-inspector', '1.0.0', '1.0.1', 'v1.0.1', ?)`, formatTime(base))
	require.NoError(t, err)
	assert.Equal(t, 1, GetSchemaVersion(db))
	require.NoError(t, db.Close())

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, CurrentSchemaVersion, GetSchemaVersion(s.db))
	got, err := s.RecentReleases(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Empty(t, got[0].Files)

	require.NoError(t, RunMigrations(s.db))
}

func TestOpen_RequiresPath(t *testing.T) {
	_, err := Open("  ")
	assert.Error(t, err)
}
