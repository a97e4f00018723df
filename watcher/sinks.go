package watcher

import (
	"context"
	"io"
	"log/slog"

	"github.com/hazyhaar/glamwatch/snapshot"
	"github.com/hazyhaar/glamwatch/watcher/internal/sink"
)

// Sink is the output interface for glamwatch results.
type Sink = sink.Sink

// SnapshotEvent is one captured category result with its diff.
type SnapshotEvent = sink.SnapshotEvent

// NewStdoutSink creates a stdout JSON-lines sink.
func NewStdoutSink(w io.Writer) Sink {
	return sink.NewStdout(w)
}

// NewWebhookSink creates a webhook POST sink with retry.
func NewWebhookSink(url string, logger *slog.Logger) Sink {
	return sink.NewWebhook(url, sink.WithWebhookLogger(logger))
}

// NewReportDirSink creates a sink writing per-snapshot report
// directories under baseDir.
func NewReportDirSink(baseDir string, logger *slog.Logger) Sink {
	return sink.NewReportDir(baseDir, logger)
}

// NewCallbackSink creates an in-process callback sink for embedding
// the watcher in a larger binary without serialisation.
func NewCallbackSink(
	onSnapshot func(ctx context.Context, ev SnapshotEvent) error,
	onRun func(ctx context.Context, run *snapshot.Run) error,
) Sink {
	return sink.NewCallback(onSnapshot, onRun)
}

// SinksFromConfig builds the sink set a configuration describes.
func SinksFromConfig(cfg *Config, logger *slog.Logger) []Sink {
	var sinks []Sink
	for _, sc := range cfg.Sinks {
		switch sc.Type {
		case "stdout":
			sinks = append(sinks, NewStdoutSink(nil))
		case "webhook":
			sinks = append(sinks, NewWebhookSink(sc.URL, logger))
		case "reportdir":
			sinks = append(sinks, NewReportDirSink(cfg.Output.Dir, logger))
		}
	}
	return sinks
}
