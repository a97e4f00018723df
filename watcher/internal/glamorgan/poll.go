// Package glamorgan drives the GLAM Tools view-statistics page: fill
// the query form, wait for the JavaScript-rendered result to settle,
// expand the truncated file list.
//
// The result page has no completion signal. Readiness is inferred from
// content markers plus a content-length stabilization window, the only
// reliable contract the page offers.
package glamorgan

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
)

// DefaultURL is the GLAM Tools view-statistics page.
const DefaultURL = "https://glamtools.toolforge.org/glamorgan.html"

// ErrResultTimeout is returned when the result page never stabilized
// within the poll timeout.
var ErrResultTimeout = errors.New("glamorgan: results did not stabilize before timeout")

// PageSourceFunc returns the current page HTML. Decoupling the poll
// loop from the browser keeps it testable.
type PageSourceFunc func(ctx context.Context) (string, error)

// PollConfig tunes the result wait loop.
type PollConfig struct {
	// Timeout bounds the whole wait. Default: 120s. Result generation
	// regularly takes over a minute for large categories.
	Timeout time.Duration

	// Interval between page-source checks. Default: 1s.
	Interval time.Duration

	// InitialDelay before the first check, giving the page time to fire
	// its API calls. Default: 10s.
	InitialDelay time.Duration

	// StableChecks is how many consecutive identical content lengths
	// count as settled. Default: 5.
	StableChecks int

	// SettleDelay is the final buffer after stabilization. Default: 3s.
	SettleDelay time.Duration

	Logger *slog.Logger
}

func (c *PollConfig) defaults() {
	if c.Timeout <= 0 {
		c.Timeout = 120 * time.Second
	}
	if c.Interval <= 0 {
		c.Interval = time.Second
	}
	if c.InitialDelay <= 0 {
		c.InitialDelay = 10 * time.Second
	}
	if c.StableChecks <= 0 {
		c.StableChecks = 5
	}
	if c.SettleDelay <= 0 {
		c.SettleDelay = 3 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// WaitForResults polls the page source until the result table is
// present and the content length has been stable for StableChecks
// consecutive checks. Returns the settled page HTML.
func WaitForResults(ctx context.Context, getSource PageSourceFunc, cfg PollConfig) (string, error) {
	cfg.defaults()
	log := cfg.Logger

	if err := sleepCtx(ctx, cfg.InitialDelay); err != nil {
		return "", err
	}

	deadline := time.Now().Add(cfg.Timeout)
	lastLength := 0
	stable := 0
	foundTree := false

	for time.Now().Before(deadline) {
		source, err := getSource(ctx)
		if err != nil {
			log.Debug("glamorgan: page source check failed", "error", err)
			if err := sleepCtx(ctx, cfg.Interval); err != nil {
				return "", err
			}
			continue
		}

		if !foundTree && hasCategoryTree(source) {
			foundTree = true
			log.Info("glamorgan: category tree resolved")
		}

		if hasResultTable(source) && hasViewData(source) {
			if len(source) == lastLength {
				stable++
				if stable >= cfg.StableChecks {
					log.Info("glamorgan: content stabilized", "bytes", len(source))
					if err := sleepCtx(ctx, cfg.SettleDelay); err != nil {
						return "", err
					}
					return getSource(ctx)
				}
			} else {
				stable = 0
				lastLength = len(source)
				log.Debug("glamorgan: still loading", "bytes", len(source))
			}
		}

		if err := sleepCtx(ctx, cfg.Interval); err != nil {
			return "", err
		}
	}

	return "", ErrResultTimeout
}

func hasCategoryTree(source string) bool {
	return strings.Contains(strings.ToLower(source), "files in category tree")
}

func hasResultTable(source string) bool {
	return strings.Contains(source, `<table class='table table-striped'>`) ||
		strings.Contains(source, `<table class="table table-striped">`)
}

func hasViewData(source string) bool {
	return strings.Contains(strings.ToLower(source), "file views in")
}

// truncationMarker is present while the page shows only the top rows.
const truncationMarker = "Showing only the top"

// Truncated reports whether the result list is cut off behind a
// "show all" link.
func Truncated(source string) bool {
	return strings.Contains(source, truncationMarker)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
