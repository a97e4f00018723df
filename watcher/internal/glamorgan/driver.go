package glamorgan

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/hazyhaar/glamwatch/watcher/internal/browser"
)

// Query is one form submission: a category tree and the month to pull
// view statistics for.
type Query struct {
	Category string
	Depth    int
	Year     int
	Month    int
}

// Driver binds the form and poll logic to a live tab.
type Driver struct {
	tab *browser.Tab
	log *slog.Logger
}

func NewDriver(tab *browser.Tab, log *slog.Logger) *Driver {
	if log == nil {
		log = slog.Default()
	}
	return &Driver{tab: tab, log: log}
}

// Submit fills the query form and clicks submit. The tab must already
// be on the GLAM Tools page.
func (d *Driver) Submit(ctx context.Context, q Query) error {
	page := d.tab.Page.Context(ctx)

	fields := []struct {
		selector string
		value    string
	}{
		{"#category", q.Category},
		{"#depth", strconv.Itoa(q.Depth)},
		{"#year", strconv.Itoa(q.Year)},
		{"#month", strconv.Itoa(q.Month)},
	}
	for _, f := range fields {
		el, err := page.Element(f.selector)
		if err != nil {
			return fmt.Errorf("glamorgan: find %s: %w", f.selector, err)
		}
		if err := el.SelectAllText(); err != nil {
			return fmt.Errorf("glamorgan: select %s: %w", f.selector, err)
		}
		if err := el.Input(f.value); err != nil {
			return fmt.Errorf("glamorgan: fill %s: %w", f.selector, err)
		}
	}

	submit, err := page.Element(`input[type="submit"]`)
	if err != nil {
		return fmt.Errorf("glamorgan: find submit: %w", err)
	}
	if err := submit.Click("left", 1); err != nil {
		return fmt.Errorf("glamorgan: submit: %w", err)
	}

	d.log.Info("glamorgan: form submitted",
		"category", q.Category, "year", q.Year, "month", q.Month, "depth", q.Depth)
	return nil
}

// Await waits for the result page to settle, then expands the file
// list if it is truncated. Returns the final page HTML.
func (d *Driver) Await(ctx context.Context, cfg PollConfig) (string, error) {
	cfg.Logger = d.log

	source, err := WaitForResults(ctx, d.tab.HTML, cfg)
	if err != nil {
		return "", err
	}

	if Truncated(source) {
		expanded, err := d.expandAll(ctx)
		if err != nil {
			// A truncated list is still a usable result.
			d.log.Warn("glamorgan: could not expand full file list", "error", err)
			return source, nil
		}
		return expanded, nil
	}

	return source, nil
}

// expandAll clicks the "show all" link and waits for the truncation
// marker to disappear.
func (d *Driver) expandAll(ctx context.Context) (string, error) {
	clickCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	link, err := d.tab.Page.Context(clickCtx).ElementR("a", "show all")
	if err != nil {
		return "", fmt.Errorf("glamorgan: find show-all link: %w", err)
	}
	if err := link.Click("left", 1); err != nil {
		return "", fmt.Errorf("glamorgan: click show-all: %w", err)
	}
	d.log.Info("glamorgan: expanding to full file list")

	deadline := time.Now().Add(30 * time.Second)
	for time.Now().Before(deadline) {
		source, err := d.tab.HTML(ctx)
		if err == nil && !Truncated(source) {
			if err := sleepCtx(ctx, 2*time.Second); err != nil {
				return "", err
			}
			return d.tab.HTML(ctx)
		}
		if err := sleepCtx(ctx, time.Second); err != nil {
			return "", err
		}
	}
	return "", fmt.Errorf("glamorgan: file list still truncated after expand")
}
