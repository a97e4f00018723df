// Package snapshot persists GLAM Tools run results as immutable,
// append-only snapshots in SQLite.
//
// A snapshot is one captured result set for a category, tagged with the
// data month it describes (YYYY-MM) and the retrieval timestamp. Within
// a snapshot the file name is the natural key: Files maps file name to
// its record. Once written a snapshot is never updated.
package snapshot

// FileRecord is one media file row from the GLAM Tools result table.
type FileRecord struct {
	Name       string   `json:"name"`
	URL        string   `json:"url"`
	ViewCount  int64    `json:"view_count"`
	UsingPages []string `json:"using_pages,omitempty"` // sorted wiki page titles
}

// Summary holds the aggregate statistics printed above the result table.
// Nil means the value was not present in the page (GLAM Tools omits
// some lines for small categories).
type Summary struct {
	FilesViewed *int64 `json:"files_viewed,omitempty"`
	FilesUsed   *int64 `json:"files_used,omitempty"`
	PagesUsed   *int64 `json:"pages_used,omitempty"`
	Wikis       *int64 `json:"wikis,omitempty"`
	Views       *int64 `json:"views,omitempty"`
}

// Snapshot is one captured result set for a category/month/run.
type Snapshot struct {
	ID          string                 `json:"id"`
	Category    string                 `json:"category"`
	DataMonth   string                 `json:"data_month"` // YYYY-MM
	RetrievedAt int64                  `json:"retrieved_at"` // unix millis
	URL         string                 `json:"url"`
	PageTitle   string                 `json:"page_title"`
	Summary     Summary                `json:"summary"`
	ReportDir   string                 `json:"report_dir,omitempty"`
	Files       map[string]*FileRecord `json:"files,omitempty"` // keyed by file name
}

// Run is the aggregate record of one execution over all categories.
type Run struct {
	ID               string         `json:"id"`
	StartedAt        int64          `json:"started_at"`
	FinishedAt       int64          `json:"finished_at"`
	TotalChanges     int64          `json:"total_changes"`
	CategoriesOK     int            `json:"categories_ok"`
	CategoriesFailed int            `json:"categories_failed"`
	Categories       []*RunCategory `json:"categories,omitempty"`
}

// RunCategory is the per-category outcome within a run.
type RunCategory struct {
	RunID       string `json:"run_id"`
	Category    string `json:"category"`
	Status      string `json:"status"` // ok | failed
	Error       string `json:"error,omitempty"`
	SnapshotID  string `json:"snapshot_id,omitempty"`
	ChangeCount int64  `json:"change_count"`
	DiffLabel   string `json:"diff_label"`
	Baseline    bool   `json:"baseline"`
}

// Int64 returns a pointer to v. Convenience for building Summary values.
func Int64(v int64) *int64 { return &v }
