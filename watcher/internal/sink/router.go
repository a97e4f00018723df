package sink

import (
	"context"
	"log/slog"

	"github.com/hazyhaar/glamwatch/snapshot"
)

// Router fans out results to all configured sinks. One sink error does
// not block the others: errors are logged and the first encountered
// is returned.
type Router struct {
	sinks  []Sink
	logger *slog.Logger
}

// NewRouter creates a fan-out router delivering to all sinks.
func NewRouter(logger *slog.Logger, sinks ...Sink) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{sinks: sinks, logger: logger}
}

func (r *Router) SendSnapshot(ctx context.Context, ev SnapshotEvent) error {
	var firstErr error
	for _, s := range r.sinks {
		if err := s.SendSnapshot(ctx, ev); err != nil {
			r.logger.Warn("sink: send snapshot failed", "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (r *Router) SendRunSummary(ctx context.Context, run *snapshot.Run) error {
	var firstErr error
	for _, s := range r.sinks {
		if err := s.SendRunSummary(ctx, run); err != nil {
			r.logger.Warn("sink: send run summary failed", "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (r *Router) Close() error {
	var firstErr error
	for _, s := range r.sinks {
		if err := s.Close(); err != nil {
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
