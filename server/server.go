// Package server exposes the snapshot store over HTTP and MCP: category
// listings, snapshot history, on-demand diffs, run summaries, and the
// report directory as static files.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hazyhaar/glamwatch/diff"
	"github.com/hazyhaar/glamwatch/shield"
	"github.com/hazyhaar/glamwatch/snapshot"
)

// ErrNotFound marks a lookup for a category or snapshot that does not
// exist. The HTTP layer maps it to 404.
var ErrNotFound = errors.New("server: not found")

// Service answers read queries against the snapshot store. The same
// methods back the HTTP routes and the MCP tools.
type Service struct {
	store      *snapshot.Store
	reportsDir string
	log        *slog.Logger
}

func New(store *snapshot.Store, reportsDir string, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, reportsDir: reportsDir, log: logger}
}

// Categories lists every category that has at least one snapshot.
func (svc *Service) Categories(ctx context.Context) ([]string, error) {
	cats, err := svc.store.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	if cats == nil {
		cats = []string{}
	}
	return cats, nil
}

// Snapshots lists snapshot headers for a category, newest first.
func (svc *Service) Snapshots(ctx context.Context, category string, limit int) ([]*snapshot.Snapshot, error) {
	snaps, err := svc.store.ListSnapshots(ctx, category, limit)
	if err != nil {
		return nil, err
	}
	if snaps == nil {
		snaps = []*snapshot.Snapshot{}
	}
	return snaps, nil
}

// Snapshot fetches one snapshot with its full file records.
func (svc *Service) Snapshot(ctx context.Context, id string) (*snapshot.Snapshot, error) {
	snap, err := svc.store.GetSnapshot(ctx, id)
	if err != nil {
		return nil, err
	}
	if snap == nil {
		return nil, fmt.Errorf("%w: snapshot %s", ErrNotFound, id)
	}
	return snap, nil
}

// DiffResult pairs a computed diff with the snapshots it compares.
type DiffResult struct {
	Category   string     `json:"category"`
	CurrentID  string     `json:"current_id"`
	PreviousID string     `json:"previous_id,omitempty"`
	Label      string     `json:"label"`
	Diff       *diff.Diff `json:"diff"`
}

// DiffLatest diffs the two most recent snapshots of a category. With a
// single snapshot on record the result is a baseline diff.
func (svc *Service) DiffLatest(ctx context.Context, category string) (*DiffResult, error) {
	snaps, err := svc.store.ListSnapshots(ctx, category, 2)
	if err != nil {
		return nil, err
	}
	if len(snaps) == 0 {
		return nil, fmt.Errorf("%w: no snapshots for category %q", ErrNotFound, category)
	}

	cur, err := svc.store.GetSnapshot(ctx, snaps[0].ID)
	if err != nil {
		return nil, err
	}
	res := &DiffResult{Category: category, CurrentID: cur.ID}

	var prev *snapshot.Snapshot
	if len(snaps) > 1 {
		prev, err = svc.store.GetSnapshot(ctx, snaps[1].ID)
		if err != nil {
			return nil, err
		}
		res.PreviousID = prev.ID
	}
	res.Diff = diff.Compute(prev, cur)
	res.Label = diff.Label(prev, cur)
	return res, nil
}

// LatestRun returns the most recent run summary with its per-category
// outcomes.
func (svc *Service) LatestRun(ctx context.Context) (*snapshot.Run, error) {
	run, err := svc.store.LatestRun(ctx)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, fmt.Errorf("%w: no runs recorded", ErrNotFound)
	}
	return run, nil
}

// Handler builds the HTTP API.
func (svc *Service) Handler() http.Handler {
	r := chi.NewRouter()
	for _, mw := range shield.DefaultStack() {
		r.Use(mw)
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, 200, map[string]string{"status": "ok"})
	})

	r.Get("/api/categories", func(w http.ResponseWriter, r *http.Request) {
		cats, err := svc.Categories(r.Context())
		if err != nil {
			writeError(w, 500, err)
			return
		}
		writeJSON(w, 200, cats)
	})

	r.Get("/api/categories/{category}/snapshots", func(w http.ResponseWriter, r *http.Request) {
		limit := queryInt(r, "limit", 50)
		snaps, err := svc.Snapshots(r.Context(), urlParam(r, "category"), limit)
		if err != nil {
			writeError(w, 500, err)
			return
		}
		writeJSON(w, 200, snaps)
	})

	r.Get("/api/categories/{category}/snapshots/{id}", func(w http.ResponseWriter, r *http.Request) {
		snap, err := svc.Snapshot(r.Context(), urlParam(r, "id"))
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, 200, snap)
	})

	r.Get("/api/categories/{category}/diff", func(w http.ResponseWriter, r *http.Request) {
		res, err := svc.DiffLatest(r.Context(), urlParam(r, "category"))
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, 200, res)
	})

	r.Get("/api/runs/latest", func(w http.ResponseWriter, r *http.Request) {
		run, err := svc.LatestRun(r.Context())
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, 200, run)
	})

	if svc.reportsDir != "" {
		fs := http.StripPrefix("/reports/", http.FileServer(http.Dir(svc.reportsDir)))
		r.Get("/reports/*", fs.ServeHTTP)
	}

	return r
}

func statusFor(err error) int {
	if errors.Is(err, ErrNotFound) {
		return 404
	}
	return 500
}

// urlParam decodes a chi route parameter. Category names carry spaces
// and punctuation, so they arrive percent-encoded.
func urlParam(r *http.Request, key string) string {
	v := chi.URLParam(r, key)
	if dec, err := url.PathUnescape(v); err == nil {
		return dec
	}
	return v
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func queryInt(r *http.Request, key string, def int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
