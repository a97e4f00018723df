package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"github.com/hazyhaar/glamwatch/report"
	"github.com/hazyhaar/glamwatch/snapshot"
)

// ReportDir writes one directory of artifacts per snapshot under a
// base path: the raw result HTML, a sanitized archival copy, a
// screenshot, structured JSON data and metadata, a Markdown rendition,
// and the comparison summaries.
type ReportDir struct {
	baseDir  string
	renderer *report.Renderer
	policy   *bluemonday.Policy
	logger   *slog.Logger
}

// NewReportDir creates a ReportDir sink rooted at baseDir. The base
// directory is created on first write.
func NewReportDir(baseDir string, logger *slog.Logger) *ReportDir {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReportDir{
		baseDir:  baseDir,
		renderer: report.NewRenderer(),
		policy:   bluemonday.UGCPolicy(),
		logger:   logger,
	}
}

// DirName builds the report directory name for a snapshot:
// "{data month}_{capture timestamp}_{diff label}".
func DirName(snap *snapshot.Snapshot, diffLabel string) string {
	ts := time.UnixMilli(snap.RetrievedAt).UTC().Format("20060102_150405")
	return fmt.Sprintf("%s_%s_%s", snap.DataMonth, ts, diffLabel)
}

func (r *ReportDir) SendSnapshot(ctx context.Context, ev SnapshotEvent) error {
	snap := ev.Snapshot
	if snap.ReportDir == "" {
		return fmt.Errorf("reportdir: snapshot has no report directory name")
	}

	dir := filepath.Join(r.baseDir, categorySlug(snap.Category), snap.ReportDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("reportdir: mkdir: %w", err)
	}

	if err := r.writeFile(dir, "result.html", []byte(ev.PageHTML)); err != nil {
		return err
	}

	// Sanitized copy for long-term archival: scripts and event handlers
	// from the live page do not belong in stored reports.
	archived := r.policy.Sanitize(ev.PageHTML)
	if err := r.writeFile(dir, "archive.html", []byte(archived)); err != nil {
		return err
	}

	if len(ev.Screenshot) > 0 {
		if err := r.writeFile(dir, "screenshot.png", ev.Screenshot); err != nil {
			return err
		}
	}

	md, err := r.renderer.Markdown(ev.PageHTML, snap.URL)
	if err != nil {
		r.logger.Warn("reportdir: markdown render failed", "error", err)
	} else if err := r.writeFile(dir, "summary.md", []byte(md)); err != nil {
		return err
	}

	if err := r.writeJSON(dir, "data.json", dataPayload(snap)); err != nil {
		return err
	}
	if err := r.writeJSON(dir, "metadata.json", metadataPayload(ev)); err != nil {
		return err
	}

	if ev.Previous != nil {
		heading := report.ChangeHeading(ev.Previous.ReportDir)
		if text, ok := report.Comparison(heading, ev.Previous, snap, true); ok {
			if err := r.writeFile(dir, "changes_summary.txt", []byte(text)); err != nil {
				return err
			}
		}
	}

	if ev.MonthlyRef != nil {
		heading := report.MonthlyHeading(ev.MonthlyRefLabel, ev.MonthlyRef.ReportDir)
		if text, ok := report.Comparison(heading, ev.MonthlyRef, snap, false); ok {
			if err := r.writeFile(dir, "previous_month_summary.txt", []byte(text)); err != nil {
				return err
			}
		}
	}

	r.logger.Info("reportdir: report written", "dir", dir, "category", snap.Category)
	return nil
}

// SendRunSummary appends the run record to runs.jsonl at the base
// directory root.
func (r *ReportDir) SendRunSummary(_ context.Context, run *snapshot.Run) error {
	if err := os.MkdirAll(r.baseDir, 0o755); err != nil {
		return fmt.Errorf("reportdir: mkdir: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(r.baseDir, "runs.jsonl"),
		os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("reportdir: open run log: %w", err)
	}
	defer f.Close()
	if err := json.NewEncoder(f).Encode(run); err != nil {
		return fmt.Errorf("reportdir: write run log: %w", err)
	}
	return nil
}

func (r *ReportDir) Close() error { return nil }

func (r *ReportDir) writeFile(dir, name string, data []byte) error {
	if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
		return fmt.Errorf("reportdir: write %s: %w", name, err)
	}
	return nil
}

func (r *ReportDir) writeJSON(dir, name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("reportdir: marshal %s: %w", name, err)
	}
	return r.writeFile(dir, name, append(data, '\n'))
}

func dataPayload(snap *snapshot.Snapshot) map[string]any {
	files := make([]*snapshot.FileRecord, 0, len(snap.Files))
	for _, name := range sortedNames(snap.Files) {
		files = append(files, snap.Files[name])
	}
	return map[string]any{
		"category":   snap.Category,
		"data_month": snap.DataMonth,
		"timestamp":  time.UnixMilli(snap.RetrievedAt).UTC().Format(time.RFC3339),
		"summary":    snap.Summary,
		"files":      files,
	}
}

func metadataPayload(ev SnapshotEvent) map[string]any {
	snap := ev.Snapshot
	meta := map[string]any{
		"category":         snap.Category,
		"data_month":       snap.DataMonth,
		"timestamp":        time.UnixMilli(snap.RetrievedAt).UTC().Format(time.RFC3339),
		"url":              snap.URL,
		"page_title":       snap.PageTitle,
		"summary":          snap.Summary,
		"file_count":       len(snap.Files),
		"report_directory": snap.ReportDir,
		"diff_label":       ev.DiffLabel,
	}
	if ev.Previous != nil {
		meta["previous_report_directory"] = ev.Previous.ReportDir
	}
	if ev.Diff != nil {
		meta["summary_differences"] = ev.Diff.SummaryDeltas
		meta["baseline"] = ev.Diff.Baseline
	}
	return meta
}

// categorySlug makes a category name filesystem-safe.
func categorySlug(category string) string {
	out := make([]rune, 0, len(category))
	for _, c := range category {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '.':
			out = append(out, c)
		case c == ' ', c == '_', c == '/':
			out = append(out, '_')
		}
	}
	return string(out)
}

func sortedNames(files map[string]*snapshot.FileRecord) []string {
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	// Deterministic artifact content across runs.
	sort.Strings(names)
	return names
}
