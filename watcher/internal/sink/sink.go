// Package sink defines output backends for glamwatch results.
package sink

import (
	"context"

	"github.com/hazyhaar/glamwatch/diff"
	"github.com/hazyhaar/glamwatch/snapshot"
)

// SnapshotEvent is one captured category result with its diff against
// the previous capture. Fields tagged json:"-" carry page artifacts
// for the report-directory sink and stay out of serialized payloads.
type SnapshotEvent struct {
	Snapshot  *snapshot.Snapshot `json:"snapshot"`
	Diff      *diff.Diff         `json:"diff"`
	DiffLabel string             `json:"diff_label"`

	// PageHTML is the raw settled result page.
	PageHTML string `json:"-"`
	// Screenshot is a PNG of the result page, nil when capture failed.
	Screenshot []byte `json:"-"`
	// Previous is the snapshot the diff was computed against, nil on
	// baseline runs.
	Previous *snapshot.Snapshot `json:"-"`
	// MonthlyRef is the earliest snapshot of the prior data month, set
	// only on first-of-month runs when such history exists.
	MonthlyRef *snapshot.Snapshot `json:"-"`
	// MonthlyRefLabel is the data month MonthlyRef covers ("2026-06").
	MonthlyRefLabel string `json:"-"`
}

// Sink is the output interface. Implementations deliver results to
// different backends (stdout, webhook, report directory, in-process
// callback).
type Sink interface {
	SendSnapshot(ctx context.Context, ev SnapshotEvent) error
	SendRunSummary(ctx context.Context, run *snapshot.Run) error
	Close() error
}
