package snapshot

import "database/sql"

// Schema is the complete glamwatch schema. Snapshots are append-only:
// there is deliberately no UPDATE path for snapshot rows.
const Schema = `
-- One captured result set per category/month/run
CREATE TABLE IF NOT EXISTS snapshots (
    id           TEXT PRIMARY KEY,
    category     TEXT NOT NULL,
    data_month   TEXT NOT NULL,
    retrieved_at INTEGER NOT NULL,
    url          TEXT NOT NULL DEFAULT '',
    page_title   TEXT NOT NULL DEFAULT '',
    files_viewed INTEGER,
    files_used   INTEGER,
    pages_used   INTEGER,
    wikis        INTEGER,
    views        INTEGER,
    report_dir   TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_snapshots_category ON snapshots(category, retrieved_at DESC);
CREATE INDEX IF NOT EXISTS idx_snapshots_month ON snapshots(category, data_month, retrieved_at);

-- Per-file rows within a snapshot; file_name is the natural key
CREATE TABLE IF NOT EXISTS snapshot_files (
    snapshot_id TEXT NOT NULL REFERENCES snapshots(id) ON DELETE CASCADE,
    file_name   TEXT NOT NULL,
    url         TEXT NOT NULL DEFAULT '',
    view_count  INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (snapshot_id, file_name)
);

-- Wiki pages using a file at snapshot time
CREATE TABLE IF NOT EXISTS snapshot_file_pages (
    snapshot_id TEXT NOT NULL REFERENCES snapshots(id) ON DELETE CASCADE,
    file_name   TEXT NOT NULL,
    page_title  TEXT NOT NULL,
    PRIMARY KEY (snapshot_id, file_name, page_title)
);

-- Aggregate record of one execution over all categories
CREATE TABLE IF NOT EXISTS run_log (
    id                TEXT PRIMARY KEY,
    started_at        INTEGER NOT NULL,
    finished_at       INTEGER NOT NULL,
    total_changes     INTEGER NOT NULL DEFAULT 0,
    categories_ok     INTEGER NOT NULL DEFAULT 0,
    categories_failed INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_run_log_time ON run_log(started_at DESC);

-- Per-category outcome within a run
CREATE TABLE IF NOT EXISTS run_categories (
    run_id       TEXT NOT NULL REFERENCES run_log(id) ON DELETE CASCADE,
    category     TEXT NOT NULL,
    status       TEXT NOT NULL,
    error        TEXT NOT NULL DEFAULT '',
    snapshot_id  TEXT NOT NULL DEFAULT '',
    change_count INTEGER NOT NULL DEFAULT 0,
    diff_label   TEXT NOT NULL DEFAULT '[0]',
    baseline     INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (run_id, category)
);
`

// ApplySchema creates all tables and indexes on the given database.
func ApplySchema(db *sql.DB) error {
	_, err := db.Exec(Schema)
	return err
}
