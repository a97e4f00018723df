// Command glamwatch watches GLAM Tools view statistics for Wikimedia
// Commons categories.
//
// Usage:
//
//	glamwatch -config glamwatch.yaml            # watch categories from YAML config
//	glamwatch -config glamwatch.yaml -once      # single run, then exit
//	glamwatch -config glamwatch.yaml -category "Paintings in the Louvre"
//	glamwatch -config glamwatch.yaml -serve     # HTTP API over stored snapshots, no crawl
//	glamwatch -config glamwatch.yaml -mcp       # MCP tools on stdio, no crawl
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	_ "modernc.org/sqlite"

	"github.com/hazyhaar/glamwatch/dbopen"
	"github.com/hazyhaar/glamwatch/server"
	"github.com/hazyhaar/glamwatch/snapshot"
	"github.com/hazyhaar/glamwatch/watcher"
)

func main() {
	configPath := flag.String("config", "glamwatch.yaml", "path to glamwatch.yaml config file")
	category := flag.String("category", "", "watch a single category (overrides config list)")
	once := flag.Bool("once", false, "run one capture pass and exit")
	serve := flag.Bool("serve", false, "serve the HTTP API instead of crawling")
	mcpStdio := flag.Bool("mcp", false, "serve MCP tools on stdio instead of crawling")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, *configPath, *category, *once, *serve, *mcpStdio); err != nil {
		logger.Error("glamwatch: fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, configPath, category string, once, serve, mcpStdio bool) error {
	cfg, err := watcher.LoadConfigFile(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if category != "" {
		depth := 12
		for _, c := range cfg.Categories {
			if c.Name == category {
				depth = c.Depth
			}
		}
		cfg.Categories = []watcher.CategoryConfig{{Name: category, Depth: depth}}
	}
	if once {
		cfg.Schedule.Interval = 0
	}

	db, err := dbopen.Open(cfg.Database,
		dbopen.WithMkdirAll(),
		dbopen.WithSchema(snapshot.Schema),
	)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	store := snapshot.NewStore(db)

	// Read-only modes never touch the browser: they serve whatever the
	// crawl runs have stored and block until the process is signalled.
	if serve || mcpStdio {
		return runServe(ctx, logger, cfg, store, serve, mcpStdio)
	}

	sinks := watcher.SinksFromConfig(cfg, logger)
	w := watcher.New(cfg, store, logger, sinks...)

	if err := w.Start(ctx); err != nil {
		return fmt.Errorf("start browser: %w", err)
	}
	defer w.Stop()

	return w.Run(ctx)
}

func runServe(ctx context.Context, logger *slog.Logger, cfg *watcher.Config, store *snapshot.Store, serve, mcpStdio bool) error {
	svc := server.New(store, cfg.Output.Dir, logger)

	if serve {
		addr := env("GLAMWATCH_LISTEN", cfg.Server.Listen)
		httpSrv := &http.Server{Addr: addr, Handler: svc.Handler()}
		go func() {
			logger.Info("http listening", "addr", addr)
			if sErr := httpSrv.ListenAndServe(); sErr != nil && sErr != http.ErrServerClosed {
				logger.Error("http server", "error", sErr)
			}
		}()
		defer httpSrv.Shutdown(context.Background())
	}

	if mcpStdio {
		mcpSrv := mcp.NewServer(&mcp.Implementation{
			Name:    "glamwatch",
			Version: "1.0.0",
		}, nil)
		svc.RegisterMCP(mcpSrv)
		if err := mcpSrv.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
			return fmt.Errorf("mcp server: %w", err)
		}
		return nil
	}

	<-ctx.Done()
	return nil
}

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
