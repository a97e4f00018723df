package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/glamwatch/dbopen"
	"github.com/hazyhaar/glamwatch/snapshot"
)

func testService(t *testing.T) (*Service, *snapshot.Store) {
	t.Helper()
	db := dbopen.OpenMemory(t, dbopen.WithSchema(snapshot.Schema))
	store := snapshot.NewStore(db)
	return New(store, "", nil), store
}

func seedSnapshot(t *testing.T, store *snapshot.Store, category string, retrievedAt int64, files ...string) *snapshot.Snapshot {
	t.Helper()
	snap := &snapshot.Snapshot{
		Category:    category,
		DataMonth:   "2026-07",
		RetrievedAt: retrievedAt,
		ReportDir:   "2026-07_20260801_060000_[0]",
		Summary:     snapshot.Summary{Views: snapshot.Int64(100)},
		Files:       map[string]*snapshot.FileRecord{},
	}
	for _, f := range files {
		snap.Files[f] = &snapshot.FileRecord{Name: f, ViewCount: 10}
	}
	if err := store.InsertSnapshot(context.Background(), snap); err != nil {
		t.Fatal(err)
	}
	return snap
}

func get(t *testing.T, h http.Handler, path string) (*httptest.ResponseRecorder, []byte) {
	t.Helper()
	req := httptest.NewRequest("GET", path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec, rec.Body.Bytes()
}

func TestHealth(t *testing.T) {
	svc, _ := testService(t)
	rec, _ := get(t, svc.Handler(), "/health")
	if rec.Code != 200 {
		t.Fatalf("health: got %d", rec.Code)
	}
}

func TestListCategories(t *testing.T) {
	svc, store := testService(t)
	h := svc.Handler()

	rec, body := get(t, h, "/api/categories")
	if rec.Code != 200 {
		t.Fatalf("empty list: got %d", rec.Code)
	}
	var cats []string
	if err := json.Unmarshal(body, &cats); err != nil {
		t.Fatal(err)
	}
	if len(cats) != 0 {
		t.Errorf("empty store: got %v", cats)
	}

	seedSnapshot(t, store, "Alpha", 1, "A.jpg")
	seedSnapshot(t, store, "Beta", 2, "B.jpg")

	_, body = get(t, h, "/api/categories")
	if err := json.Unmarshal(body, &cats); err != nil {
		t.Fatal(err)
	}
	if len(cats) != 2 {
		t.Errorf("categories: got %v", cats)
	}
}

func TestListSnapshots(t *testing.T) {
	svc, store := testService(t)
	h := svc.Handler()

	seedSnapshot(t, store, "Cat", 1000, "A.jpg")
	seedSnapshot(t, store, "Cat", 2000, "A.jpg")
	seedSnapshot(t, store, "Cat", 3000, "A.jpg")

	rec, body := get(t, h, "/api/categories/Cat/snapshots?limit=2")
	if rec.Code != 200 {
		t.Fatalf("list: got %d, body %s", rec.Code, body)
	}
	var snaps []*snapshot.Snapshot
	if err := json.Unmarshal(body, &snaps); err != nil {
		t.Fatal(err)
	}
	if len(snaps) != 2 {
		t.Fatalf("limit: got %d snapshots", len(snaps))
	}
	if snaps[0].RetrievedAt != 3000 {
		t.Errorf("ordering: newest first expected, got %d", snaps[0].RetrievedAt)
	}
}

func TestGetSnapshot(t *testing.T) {
	svc, store := testService(t)
	h := svc.Handler()

	snap := seedSnapshot(t, store, "Cat", 1000, "A.jpg")

	rec, body := get(t, h, "/api/categories/Cat/snapshots/"+snap.ID)
	if rec.Code != 200 {
		t.Fatalf("get: got %d", rec.Code)
	}
	var got snapshot.Snapshot
	if err := json.Unmarshal(body, &got); err != nil {
		t.Fatal(err)
	}
	if got.Files["A.jpg"] == nil {
		t.Error("file records missing from detail view")
	}

	rec, _ = get(t, h, "/api/categories/Cat/snapshots/snap_missing")
	if rec.Code != 404 {
		t.Errorf("missing snapshot: got %d, want 404", rec.Code)
	}
}

func TestDiffLatest(t *testing.T) {
	svc, store := testService(t)
	h := svc.Handler()

	rec, _ := get(t, h, "/api/categories/Cat/diff")
	if rec.Code != 404 {
		t.Fatalf("no snapshots: got %d, want 404", rec.Code)
	}

	seedSnapshot(t, store, "Cat", 1000, "A.jpg")
	rec, body := get(t, h, "/api/categories/Cat/diff")
	if rec.Code != 200 {
		t.Fatalf("single snapshot: got %d", rec.Code)
	}
	var res DiffResult
	if err := json.Unmarshal(body, &res); err != nil {
		t.Fatal(err)
	}
	if !res.Diff.Baseline || res.PreviousID != "" {
		t.Errorf("single snapshot should yield a baseline diff: %+v", res)
	}

	seedSnapshot(t, store, "Cat", 2000, "A.jpg", "B.jpg")
	_, body = get(t, h, "/api/categories/Cat/diff")
	res = DiffResult{} // omitempty fields would otherwise keep stale values
	if err := json.Unmarshal(body, &res); err != nil {
		t.Fatal(err)
	}
	if res.Diff.Baseline {
		t.Error("two snapshots should yield a real diff")
	}
	if len(res.Diff.AddedFiles) != 1 || res.Diff.AddedFiles[0] != "B.jpg" {
		t.Errorf("added files: got %v", res.Diff.AddedFiles)
	}
	if res.PreviousID == "" || res.CurrentID == res.PreviousID {
		t.Errorf("snapshot ids: %+v", res)
	}
}

func TestDiffLatestEscapedCategory(t *testing.T) {
	// Category names carry spaces; they arrive percent-encoded.
	svc, store := testService(t)
	seedSnapshot(t, store, "Paintings in museum", 1000, "A.jpg")

	path := "/api/categories/" + url.PathEscape("Paintings in museum") + "/diff"
	rec, _ := get(t, svc.Handler(), path)
	if rec.Code != 200 {
		t.Fatalf("escaped category: got %d", rec.Code)
	}
}

func TestLatestRun(t *testing.T) {
	svc, store := testService(t)
	h := svc.Handler()

	rec, _ := get(t, h, "/api/runs/latest")
	if rec.Code != 404 {
		t.Fatalf("no runs: got %d, want 404", rec.Code)
	}

	run := &snapshot.Run{
		StartedAt: 1000, FinishedAt: 2000,
		CategoriesOK: 1, TotalChanges: 3,
		Categories: []*snapshot.RunCategory{
			{Category: "Cat", Status: "ok", SnapshotID: "snap_x", ChangeCount: 3, DiffLabel: "[+3]"},
		},
	}
	if err := store.InsertRun(context.Background(), run); err != nil {
		t.Fatal(err)
	}

	rec, body := get(t, h, "/api/runs/latest")
	if rec.Code != 200 {
		t.Fatalf("latest run: got %d", rec.Code)
	}
	var got snapshot.Run
	if err := json.Unmarshal(body, &got); err != nil {
		t.Fatal(err)
	}
	if got.TotalChanges != 3 || len(got.Categories) != 1 {
		t.Errorf("run summary: %+v", got)
	}
}

func TestReportsStatic(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "runs.jsonl"), []byte("{}\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	db := dbopen.OpenMemory(t, dbopen.WithSchema(snapshot.Schema))
	svc := New(snapshot.NewStore(db), dir, nil)

	rec, body := get(t, svc.Handler(), "/reports/runs.jsonl")
	if rec.Code != 200 {
		t.Fatalf("static file: got %d", rec.Code)
	}
	if string(body) != "{}\n" {
		t.Errorf("static body: got %q", body)
	}
}
