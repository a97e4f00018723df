// Package watcher orchestrates glamwatch runs. One shared browser
// session drives the GLAM Tools page for every configured category in
// sequence; each settled result page is extracted, persisted as an
// immutable snapshot, diffed against the category's previous capture,
// and emitted to the configured sinks. A failing category never aborts
// the run: its error is recorded and the loop moves on.
package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hazyhaar/glamwatch/diff"
	"github.com/hazyhaar/glamwatch/extract"
	"github.com/hazyhaar/glamwatch/snapshot"
	"github.com/hazyhaar/glamwatch/watcher/internal/browser"
	"github.com/hazyhaar/glamwatch/watcher/internal/config"
	"github.com/hazyhaar/glamwatch/watcher/internal/glamorgan"
	"github.com/hazyhaar/glamwatch/watcher/internal/sink"
)

// Watcher is the top-level orchestrator. Create one per glamwatch
// instance.
type Watcher struct {
	cfg    *config.Config
	mgr    *browser.Manager
	store  *snapshot.Store
	sinkR  *sink.Router
	logger *slog.Logger

	// now is the clock, injectable in tests. Monthly comparison logic
	// depends on the calendar day.
	now func() time.Time

	// fetchPage drives the browser for one category. Swapped out in
	// tests so the run loop is exercised without Chrome.
	fetchPage func(ctx context.Context, cat config.CategoryConfig, year, month int) (pageHTML, title string, shot []byte, err error)
}

// New creates a Watcher from configuration.
func New(cfg *config.Config, store *snapshot.Store, logger *slog.Logger, sinks ...sink.Sink) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}

	mgr := browser.NewManager(browser.Config{
		RemoteURL:        cfg.Browser.Remote,
		Headful:          cfg.Browser.Headful,
		XvfbDisplay:      cfg.Browser.XvfbDisplay,
		MemoryLimit:      cfg.Browser.MemoryLimit,
		RecycleInterval:  cfg.Browser.RecycleInterval,
		ResourceBlocking: cfg.Browser.ResourceBlocking,
		Logger:           logger,
	})

	w := &Watcher{
		cfg:    cfg,
		mgr:    mgr,
		store:  store,
		sinkR:  sink.NewRouter(logger, sinks...),
		logger: logger,
		now:    time.Now,
	}
	w.fetchPage = w.fetchResultPage
	return w
}

// Start launches the browser. Call before RunOnce or Run.
func (w *Watcher) Start(ctx context.Context) error {
	if _, err := w.mgr.Start(ctx); err != nil {
		return fmt.Errorf("watcher: start browser: %w", err)
	}
	return nil
}

// Stop shuts down the browser and sinks.
func (w *Watcher) Stop() {
	w.sinkR.Close()
	w.mgr.Close()
}

// Run executes runs on the configured schedule. A zero interval means
// one shot. Blocks until the context is cancelled or, in one-shot
// mode, the run finishes.
func (w *Watcher) Run(ctx context.Context) error {
	if _, err := w.RunOnce(ctx); err != nil {
		return err
	}
	if w.cfg.Schedule.Interval <= 0 {
		return nil
	}

	ticker := time.NewTicker(w.cfg.Schedule.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := w.RunOnce(ctx); err != nil {
				w.logger.Error("watcher: scheduled run failed", "error", err)
			}
		}
	}
}

// RunOnce walks all configured categories once and records the run.
// Per-category failures are tolerated; RunOnce errors only when the
// run itself cannot be recorded.
func (w *Watcher) RunOnce(ctx context.Context) (*snapshot.Run, error) {
	if len(w.cfg.Categories) == 0 {
		return nil, fmt.Errorf("watcher: no categories configured")
	}

	run := &snapshot.Run{StartedAt: w.now().UTC().UnixMilli()}

	for _, cat := range w.cfg.Categories {
		rc := w.watchCategory(ctx, cat)
		run.Categories = append(run.Categories, rc)
		if rc.Status == "ok" {
			run.CategoriesOK++
			run.TotalChanges += rc.ChangeCount
		} else {
			run.CategoriesFailed++
		}
		if ctx.Err() != nil {
			break
		}
	}

	run.FinishedAt = w.now().UTC().UnixMilli()

	if err := w.store.InsertRun(ctx, run); err != nil {
		return nil, fmt.Errorf("watcher: record run: %w", err)
	}
	if err := w.sinkR.SendRunSummary(ctx, run); err != nil {
		w.logger.Warn("watcher: run summary delivery failed", "error", err)
	}

	w.logger.Info("watcher: run finished",
		"ok", run.CategoriesOK, "failed", run.CategoriesFailed,
		"total_changes", run.TotalChanges)
	return run, nil
}

// watchCategory captures one category. Never panics the run: all
// failures collapse into a failed RunCategory.
func (w *Watcher) watchCategory(ctx context.Context, cat config.CategoryConfig) *snapshot.RunCategory {
	rc := &snapshot.RunCategory{Category: cat.Name, Status: "failed"}

	ev, err := w.captureCategory(ctx, cat)
	if err != nil {
		rc.Error = err.Error()
		w.logger.Error("watcher: category failed", "category", cat.Name, "error", err)
		return rc
	}

	rc.Status = "ok"
	rc.SnapshotID = ev.Snapshot.ID
	rc.ChangeCount = ev.Diff.TotalChanges()
	rc.Baseline = ev.Diff.Baseline
	rc.DiffLabel = ev.DiffLabel
	return rc
}

func (w *Watcher) captureCategory(ctx context.Context, cat config.CategoryConfig) (*sink.SnapshotEvent, error) {
	now := w.now().UTC()
	year, month := snapshot.DataMonthFor(now)
	dataMonth := snapshot.FormatMonth(year, month)

	w.logger.Info("watcher: capturing category",
		"category", cat.Name, "data_month", dataMonth, "depth", cat.Depth)

	pageHTML, title, shot, err := w.fetchPage(ctx, cat, year, month)
	if err != nil {
		return nil, err
	}

	result, err := extract.Page(pageHTML)
	if err != nil {
		return nil, fmt.Errorf("watcher: extract: %w", err)
	}
	if len(result.Files) == 0 && result.Summary.Views == nil {
		return nil, fmt.Errorf("watcher: result page has no usable data")
	}

	previous, err := w.store.LatestSnapshot(ctx, cat.Name)
	if err != nil {
		return nil, fmt.Errorf("watcher: load previous snapshot: %w", err)
	}

	snap := &snapshot.Snapshot{
		Category:    cat.Name,
		DataMonth:   dataMonth,
		RetrievedAt: now.UnixMilli(),
		URL:         w.cfg.GLAMTools.URL,
		PageTitle:   title,
		Summary:     result.Summary,
		Files:       extract.FileMap(result.Files),
	}

	d := diff.Compute(previous, snap)
	label := diff.Label(previous, snap)
	snap.ReportDir = sink.DirName(snap, label)

	if err := w.store.InsertSnapshot(ctx, snap); err != nil {
		return nil, fmt.Errorf("watcher: persist snapshot: %w", err)
	}

	ev := sink.SnapshotEvent{
		Snapshot:   snap,
		Diff:       d,
		DiffLabel:  label,
		PageHTML:   pageHTML,
		Screenshot: shot,
		Previous:   previous,
	}

	// On the first day of a month, compare against the earliest capture
	// of the previous data month.
	if now.Day() == 1 {
		refYear, refMonth := snapshot.PreviousMonth(year, month)
		refLabel := snapshot.FormatMonth(refYear, refMonth)
		ref, err := w.store.EarliestSnapshotForMonth(ctx, cat.Name, refLabel)
		if err != nil {
			w.logger.Warn("watcher: monthly reference lookup failed",
				"category", cat.Name, "error", err)
		} else if ref != nil {
			ev.MonthlyRef = ref
			ev.MonthlyRefLabel = refLabel
		} else {
			w.logger.Info("watcher: no stored report for previous data month",
				"category", cat.Name, "month", refLabel)
		}
	}

	if err := w.sinkR.SendSnapshot(ctx, ev); err != nil {
		// Snapshot is already persisted; delivery problems are logged
		// by the router per sink.
		w.logger.Warn("watcher: snapshot delivery incomplete",
			"category", cat.Name, "error", err)
	}

	w.logger.Info("watcher: category captured",
		"category", cat.Name, "snapshot", snap.ID,
		"files", len(snap.Files), "changes", d.TotalChanges(),
		"baseline", d.Baseline, "label", label)
	return &ev, nil
}

// fetchResultPage drives the browser end of a capture: fresh tab,
// submit the form, wait for the settled result, screenshot.
func (w *Watcher) fetchResultPage(ctx context.Context, cat config.CategoryConfig, year, month int) (pageHTML, title string, shot []byte, err error) {
	tab, err := browser.OpenTab(ctx, w.mgr, w.cfg.GLAMTools.URL)
	if err != nil {
		return "", "", nil, fmt.Errorf("watcher: open tab: %w", err)
	}
	defer tab.Close()

	driver := glamorgan.NewDriver(tab, w.logger)
	if err := driver.Submit(ctx, glamorgan.Query{
		Category: cat.Name,
		Depth:    cat.Depth,
		Year:     year,
		Month:    month,
	}); err != nil {
		return "", "", nil, err
	}

	pageHTML, err = driver.Await(ctx, glamorgan.PollConfig{
		Timeout:      w.cfg.GLAMTools.Timeout,
		Interval:     w.cfg.GLAMTools.PollInterval,
		InitialDelay: w.cfg.GLAMTools.InitialDelay,
		StableChecks: w.cfg.GLAMTools.StableChecks,
		SettleDelay:  w.cfg.GLAMTools.SettleDelay,
	})
	if err != nil {
		return "", "", nil, err
	}

	title, err = tab.Title(ctx)
	if err != nil {
		w.logger.Debug("watcher: page title unavailable", "error", err)
		title = ""
	}

	shot, err = tab.Screenshot(ctx)
	if err != nil {
		// A missing screenshot does not fail the capture.
		w.logger.Warn("watcher: screenshot failed", "category", cat.Name, "error", err)
		shot = nil
	}

	return pageHTML, title, shot, nil
}

