package store

const schemaV1 = `
CREATE TABLE IF NOT EXISTS releases (
    release_id   TEXT PRIMARY KEY,
    project      TEXT NOT NULL,
    old_version  TEXT NOT NULL,
    new_version  TEXT NOT NULL,
    tag          TEXT NOT NULL,
    created_at   TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_releases_created
    ON releases(created_at DESC);

CREATE TABLE IF NOT EXISTS test_runs (
    outcome_id    TEXT PRIMARY KEY,
    run_id        TEXT NOT NULL,
    version       TEXT NOT NULL,
    driver        TEXT NOT NULL,
    passed        INTEGER NOT NULL,
    total_specs   INTEGER DEFAULT 0,
    failed_specs  INTEGER DEFAULT 0,
    started_at    TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_test_runs_started
    ON test_runs(started_at DESC);
CREATE INDEX IF NOT EXISTS idx_test_runs_version
    ON test_runs(version, started_at);
`
