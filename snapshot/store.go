package snapshot

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/hazyhaar/glamwatch/dbopen"
	"github.com/hazyhaar/glamwatch/idgen"
)

var (
	newSnapshotID = idgen.Prefixed("snap_", idgen.UUIDv7())
	newRunID      = idgen.Prefixed("run_", idgen.UUIDv7())
)

// Store wraps the glamwatch database. All snapshot reads and writes go
// through it; writes are append-only.
type Store struct {
	DB *sql.DB
}

// NewStore creates a Store from an already-opened database connection.
func NewStore(db *sql.DB) *Store {
	return &Store{DB: db}
}

// InsertSnapshot writes a snapshot with its files and page usages in one
// transaction. Assigns s.ID when empty. The snapshot is immutable after
// this call; there is no update counterpart.
func (s *Store) InsertSnapshot(ctx context.Context, snap *Snapshot) error {
	if snap.ID == "" {
		snap.ID = newSnapshotID()
	}

	return dbopen.RunTx(ctx, s.DB, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO snapshots (id, category, data_month, retrieved_at, url, page_title,
			files_viewed, files_used, pages_used, wikis, views, report_dir)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			snap.ID, snap.Category, snap.DataMonth, snap.RetrievedAt, snap.URL, snap.PageTitle,
			snap.Summary.FilesViewed, snap.Summary.FilesUsed, snap.Summary.PagesUsed,
			snap.Summary.Wikis, snap.Summary.Views, snap.ReportDir,
		)
		if err != nil {
			return fmt.Errorf("snapshot: insert: %w", err)
		}

		for _, name := range sortedFileNames(snap.Files) {
			f := snap.Files[name]
			_, err = tx.ExecContext(ctx,
				`INSERT INTO snapshot_files (snapshot_id, file_name, url, view_count) VALUES (?, ?, ?, ?)`,
				snap.ID, f.Name, f.URL, f.ViewCount)
			if err != nil {
				return fmt.Errorf("snapshot: insert file %q: %w", f.Name, err)
			}
			for _, page := range f.UsingPages {
				_, err = tx.ExecContext(ctx,
					`INSERT OR IGNORE INTO snapshot_file_pages (snapshot_id, file_name, page_title) VALUES (?, ?, ?)`,
					snap.ID, f.Name, page)
				if err != nil {
					return fmt.Errorf("snapshot: insert page usage: %w", err)
				}
			}
		}
		return nil
	})
}

// GetSnapshot loads a snapshot with its files and page usages.
// Returns nil, nil when the ID is unknown.
func (s *Store) GetSnapshot(ctx context.Context, id string) (*Snapshot, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT id, category, data_month, retrieved_at, url, page_title,
		files_viewed, files_used, pages_used, wikis, views, report_dir
		FROM snapshots WHERE id = ?`, id)
	snap, err := scanSnapshot(row)
	if err != nil || snap == nil {
		return snap, err
	}
	if err := s.loadFiles(ctx, snap); err != nil {
		return nil, err
	}
	return snap, nil
}

// LatestSnapshot returns the most recent snapshot for a category, fully
// loaded, or nil, nil when the category has no history yet.
func (s *Store) LatestSnapshot(ctx context.Context, category string) (*Snapshot, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT id, category, data_month, retrieved_at, url, page_title,
		files_viewed, files_used, pages_used, wikis, views, report_dir
		FROM snapshots WHERE category = ? ORDER BY retrieved_at DESC LIMIT 1`, category)
	snap, err := scanSnapshot(row)
	if err != nil || snap == nil {
		return snap, err
	}
	if err := s.loadFiles(ctx, snap); err != nil {
		return nil, err
	}
	return snap, nil
}

// EarliestSnapshotForMonth returns the oldest snapshot whose data month
// matches, fully loaded. Used for month-over-month comparisons: the
// earliest capture of a data month is its most complete baseline.
func (s *Store) EarliestSnapshotForMonth(ctx context.Context, category, dataMonth string) (*Snapshot, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT id, category, data_month, retrieved_at, url, page_title,
		files_viewed, files_used, pages_used, wikis, views, report_dir
		FROM snapshots WHERE category = ? AND data_month = ?
		ORDER BY retrieved_at ASC LIMIT 1`, category, dataMonth)
	snap, err := scanSnapshot(row)
	if err != nil || snap == nil {
		return snap, err
	}
	if err := s.loadFiles(ctx, snap); err != nil {
		return nil, err
	}
	return snap, nil
}

// ListSnapshots returns snapshot headers for a category, newest first.
// Files are not loaded.
func (s *Store) ListSnapshots(ctx context.Context, category string, limit int) ([]*Snapshot, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, category, data_month, retrieved_at, url, page_title,
		files_viewed, files_used, pages_used, wikis, views, report_dir
		FROM snapshots WHERE category = ?
		ORDER BY retrieved_at DESC LIMIT ?`, category, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*Snapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, snap)
	}
	return result, rows.Err()
}

// ListCategories returns the distinct categories with snapshot history.
func (s *Store) ListCategories(ctx context.Context) ([]string, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT DISTINCT category FROM snapshots ORDER BY category`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var categories []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("snapshot: scan category: %w", err)
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// InsertRun records an execution with its per-category outcomes.
func (s *Store) InsertRun(ctx context.Context, run *Run) error {
	if run.ID == "" {
		run.ID = newRunID()
	}

	return dbopen.RunTx(ctx, s.DB, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO run_log (id, started_at, finished_at, total_changes, categories_ok, categories_failed)
			VALUES (?, ?, ?, ?, ?, ?)`,
			run.ID, run.StartedAt, run.FinishedAt, run.TotalChanges, run.CategoriesOK, run.CategoriesFailed)
		if err != nil {
			return fmt.Errorf("snapshot: insert run: %w", err)
		}

		for _, rc := range run.Categories {
			rc.RunID = run.ID
			baseline := 0
			if rc.Baseline {
				baseline = 1
			}
			_, err = tx.ExecContext(ctx,
				`INSERT INTO run_categories (run_id, category, status, error, snapshot_id, change_count, diff_label, baseline)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				run.ID, rc.Category, rc.Status, rc.Error, rc.SnapshotID, rc.ChangeCount, rc.DiffLabel, baseline)
			if err != nil {
				return fmt.Errorf("snapshot: insert run category %q: %w", rc.Category, err)
			}
		}
		return nil
	})
}

// LatestRun returns the most recent run with its per-category breakdown,
// or nil, nil when no run has completed yet.
func (s *Store) LatestRun(ctx context.Context) (*Run, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT id, started_at, finished_at, total_changes, categories_ok, categories_failed
		FROM run_log ORDER BY started_at DESC LIMIT 1`)

	var run Run
	err := row.Scan(&run.ID, &run.StartedAt, &run.FinishedAt,
		&run.TotalChanges, &run.CategoriesOK, &run.CategoriesFailed)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("snapshot: scan run: %w", err)
	}

	rows, err := s.DB.QueryContext(ctx,
		`SELECT run_id, category, status, error, snapshot_id, change_count, diff_label, baseline
		FROM run_categories WHERE run_id = ? ORDER BY category`, run.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var rc RunCategory
		var baseline int
		if err := rows.Scan(&rc.RunID, &rc.Category, &rc.Status, &rc.Error,
			&rc.SnapshotID, &rc.ChangeCount, &rc.DiffLabel, &baseline); err != nil {
			return nil, fmt.Errorf("snapshot: scan run category: %w", err)
		}
		rc.Baseline = baseline != 0
		run.Categories = append(run.Categories, &rc)
	}
	return &run, rows.Err()
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(row scanner) (*Snapshot, error) {
	var snap Snapshot
	var filesViewed, filesUsed, pagesUsed, wikis, views sql.NullInt64
	err := row.Scan(&snap.ID, &snap.Category, &snap.DataMonth, &snap.RetrievedAt,
		&snap.URL, &snap.PageTitle,
		&filesViewed, &filesUsed, &pagesUsed, &wikis, &views, &snap.ReportDir)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("snapshot: scan: %w", err)
	}
	snap.Summary = Summary{
		FilesViewed: nullable(filesViewed),
		FilesUsed:   nullable(filesUsed),
		PagesUsed:   nullable(pagesUsed),
		Wikis:       nullable(wikis),
		Views:       nullable(views),
	}
	return &snap, nil
}

func (s *Store) loadFiles(ctx context.Context, snap *Snapshot) error {
	snap.Files = make(map[string]*FileRecord)

	rows, err := s.DB.QueryContext(ctx,
		`SELECT file_name, url, view_count FROM snapshot_files
		WHERE snapshot_id = ? ORDER BY file_name`, snap.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var f FileRecord
		if err := rows.Scan(&f.Name, &f.URL, &f.ViewCount); err != nil {
			return fmt.Errorf("snapshot: scan file: %w", err)
		}
		snap.Files[f.Name] = &f
	}
	if err := rows.Err(); err != nil {
		return err
	}

	pageRows, err := s.DB.QueryContext(ctx,
		`SELECT file_name, page_title FROM snapshot_file_pages
		WHERE snapshot_id = ? ORDER BY file_name, page_title`, snap.ID)
	if err != nil {
		return err
	}
	defer pageRows.Close()
	for pageRows.Next() {
		var name, page string
		if err := pageRows.Scan(&name, &page); err != nil {
			return fmt.Errorf("snapshot: scan page usage: %w", err)
		}
		if f, ok := snap.Files[name]; ok {
			f.UsingPages = append(f.UsingPages, page)
		}
	}
	return pageRows.Err()
}

func nullable(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	return &v.Int64
}

func sortedFileNames(files map[string]*FileRecord) []string {
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
