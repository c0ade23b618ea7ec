// Package store keeps a local sqlite history of releases and test runs.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"nginspector/internal/e2e"
	"nginspector/internal/logging"
	"nginspector/internal/release"
)

// timeLayout sorts lexically in UTC.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Store is the sqlite-backed history.
type Store struct {
	db *sql.DB
}

// RunSummary aggregates the outcomes of one run-tests invocation.
type RunSummary struct {
	RunID     string
	Versions  int
	Failed    int
	StartedAt time.Time
}

// Open creates or migrates the database at path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("history database path is required")
	}
	path = filepath.Clean(path)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schemaV1); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	if err := RunMigrations(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	logging.Store("Opened history at %s", path)
	return &Store{db: db}, nil
}

// SaveRelease implements release.Recorder.
func (s *Store) SaveRelease(ctx context.Context, rec release.Record) error {
	if rec.ID == "" {
		return errors.New("release id is required")
	}
	files, err := json.Marshal(rec.Files)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO releases (release_id, project, old_version, new_version, tag, files, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.Project, rec.Old, rec.New, rec.Tag, string(files), formatTime(rec.CreatedAt))
	if err != nil {
		return fmt.Errorf("save release %s: %w", rec.Tag, err)
	}
	logging.Store("Recorded release %s", rec.Tag)
	return nil
}

// SaveRun implements e2e.Recorder.
func (s *Store) SaveRun(ctx context.Context, o e2e.Outcome) error {
	if o.ID == "" || o.RunID == "" {
		return errors.New("outcome and run ids are required")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO test_runs (outcome_id, run_id, version, driver, passed, total_specs, failed_specs, duration_ms, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, o.ID, o.RunID, o.Version, o.Driver, boolToInt(o.Passed), o.TotalSpecs, o.FailedSpecs,
		o.Duration.Milliseconds(), formatTime(o.StartedAt))
	if err != nil {
		return fmt.Errorf("save run %s: %w", o.Version, err)
	}
	return nil
}

// RecentReleases returns up to limit releases, newest first.
func (s *Store) RecentReleases(ctx context.Context, limit int) ([]release.Record, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT release_id, project, old_version, new_version, tag, files, created_at
		FROM releases ORDER BY created_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []release.Record{}
	for rows.Next() {
		var rec release.Record
		var files, created string
		if err := rows.Scan(&rec.ID, &rec.Project, &rec.Old, &rec.New, &rec.Tag, &files, &created); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(files), &rec.Files); err != nil {
			return nil, fmt.Errorf("decode files for %s: %w", rec.Tag, err)
		}
		rec.CreatedAt = parseTime(created)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// RecentRuns returns up to limit version outcomes, newest first. An empty
// version matches all versions.
func (s *Store) RecentRuns(ctx context.Context, version string, limit int) ([]e2e.Outcome, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `
		SELECT outcome_id, run_id, version, driver, passed, total_specs, failed_specs, duration_ms, started_at
		FROM test_runs
	`
	args := []any{}
	if version != "" {
		query += " WHERE version=?"
		args = append(args, version)
	}
	query += " ORDER BY started_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []e2e.Outcome{}
	for rows.Next() {
		var o e2e.Outcome
		var passed int
		var durationMS int64
		var started string
		if err := rows.Scan(&o.ID, &o.RunID, &o.Version, &o.Driver, &passed, &o.TotalSpecs, &o.FailedSpecs, &durationMS, &started); err != nil {
			return nil, err
		}
		o.Passed = passed != 0
		o.Duration = time.Duration(durationMS) * time.Millisecond
		o.StartedAt = parseTime(started)
		out = append(out, o)
	}
	return out, rows.Err()
}

// RunSummaries groups outcomes by run, newest run first.
func (s *Store) RunSummaries(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, COUNT(*), SUM(CASE WHEN passed = 0 THEN 1 ELSE 0 END), MIN(started_at)
		FROM test_runs GROUP BY run_id ORDER BY MIN(started_at) DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []RunSummary{}
	for rows.Next() {
		var rs RunSummary
		var started string
		if err := rows.Scan(&rs.RunID, &rs.Versions, &rs.Failed, &started); err != nil {
			return nil, err
		}
		rs.StartedAt = parseTime(started)
		out = append(out, rs)
	}
	return out, rows.Err()
}

// PurgeOlderThan deletes history entries older than the given number of days.
func (s *Store) PurgeOlderThan(ctx context.Context, days int) (int64, error) {
	if days <= 0 {
		return 0, errors.New("days must be > 0")
	}
	cutoff := formatTime(time.Now().AddDate(0, 0, -days))
	var total int64
	for _, q := range []string{
		`DELETE FROM releases WHERE created_at < ?`,
		`DELETE FROM test_runs WHERE started_at < ?`,
	} {
		res, err := s.db.ExecContext(ctx, q, cutoff)
		if err != nil {
			return total, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
