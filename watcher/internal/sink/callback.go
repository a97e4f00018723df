package sink

import (
	"context"

	"github.com/hazyhaar/glamwatch/snapshot"
)

// SnapshotFunc is called for each snapshot event.
type SnapshotFunc func(ctx context.Context, ev SnapshotEvent) error

// RunFunc is called for each run summary.
type RunFunc func(ctx context.Context, run *snapshot.Run) error

// Callback delivers results via in-process function calls with zero
// serialisation, for embedding the watcher in a larger binary.
type Callback struct {
	onSnapshot SnapshotFunc
	onRun      RunFunc
}

// NewCallback creates a Callback sink. Either handler may be nil.
func NewCallback(onSnapshot SnapshotFunc, onRun RunFunc) *Callback {
	return &Callback{onSnapshot: onSnapshot, onRun: onRun}
}

func (c *Callback) SendSnapshot(ctx context.Context, ev SnapshotEvent) error {
	if c.onSnapshot != nil {
		return c.onSnapshot(ctx, ev)
	}
	return nil
}

func (c *Callback) SendRunSummary(ctx context.Context, run *snapshot.Run) error {
	if c.onRun != nil {
		return c.onRun(ctx, run)
	}
	return nil
}

func (c *Callback) Close() error { return nil }
