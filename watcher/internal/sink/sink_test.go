package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hazyhaar/glamwatch/diff"
	"github.com/hazyhaar/glamwatch/snapshot"
)

func testEvent() SnapshotEvent {
	snap := &snapshot.Snapshot{
		ID:          "snap_1",
		Category:    "Media supplied by Universitätsarchiv St. Gallen",
		DataMonth:   "2026-07",
		RetrievedAt: 1756400400000,
		URL:         "https://glamtools.toolforge.org/glamorgan.html",
		PageTitle:   "GLAMorgan",
		Summary: snapshot.Summary{
			FilesUsed: snapshot.Int64(2),
			PagesUsed: snapshot.Int64(3),
			Views:     snapshot.Int64(100),
		},
		Files: map[string]*snapshot.FileRecord{
			"File:A.jpg": {Name: "File:A.jpg", URL: "https://commons.wikimedia.org/wiki/File:A.jpg", ViewCount: 100},
		},
	}
	snap.ReportDir = DirName(snap, "[+1]")
	return SnapshotEvent{
		Snapshot:  snap,
		Diff:      diff.Baseline(),
		DiffLabel: "[+1]",
		PageHTML:  `<html><body><script>evil()</script><h1>GLAMorgan</h1><table><tr><td>File:A.jpg</td></tr></table></body></html>`,
	}
}

func TestDirName(t *testing.T) {
	// WHAT: Directory names are month + capture time + diff label.
	// WHY: Lexicographic order of directory names must match capture order
	// within a month.
	ev := testEvent()
	got := ev.Snapshot.ReportDir
	if !strings.HasPrefix(got, "2026-07_") || !strings.HasSuffix(got, "_[+1]") {
		t.Errorf("dir name: got %q", got)
	}
}

func TestStdoutEnvelope(t *testing.T) {
	var buf bytes.Buffer
	s := NewStdout(&buf)

	if err := s.SendSnapshot(context.Background(), testEvent()); err != nil {
		t.Fatalf("send: %v", err)
	}
	if err := s.SendRunSummary(context.Background(), &snapshot.Run{ID: "run_1"}); err != nil {
		t.Fatalf("send run: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines: got %d", len(lines))
	}

	var env struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal([]byte(lines[0]), &env); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if env.Type != "snapshot" {
		t.Errorf("type: got %q", env.Type)
	}
	// Artifact fields must not leak into the serialized event.
	if strings.Contains(string(env.Data), "evil()") {
		t.Error("page HTML leaked into serialized snapshot event")
	}

	if err := json.Unmarshal([]byte(lines[1]), &env); err != nil {
		t.Fatalf("unmarshal run: %v", err)
	}
	if env.Type != "run_summary" {
		t.Errorf("run type: got %q", env.Type)
	}
}

func TestRouterFanOutAndFirstError(t *testing.T) {
	// WHAT: All sinks receive the event even when an earlier one fails;
	// the first error is returned.
	sent := 0
	failing := NewCallback(func(ctx context.Context, ev SnapshotEvent) error {
		return errors.New("boom")
	}, nil)
	counting := NewCallback(func(ctx context.Context, ev SnapshotEvent) error {
		sent++
		return nil
	}, nil)

	r := NewRouter(nil, failing, counting)
	err := r.SendSnapshot(context.Background(), testEvent())
	if err == nil || err.Error() != "boom" {
		t.Errorf("err: got %v", err)
	}
	if sent != 1 {
		t.Errorf("second sink not reached: sent=%d", sent)
	}
}

func TestWebhookRetries(t *testing.T) {
	// WHAT: Transient 5xx responses are retried until success.
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		attempts++
		if attempts < 2 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	wh := NewWebhook(srv.URL, WithWebhookRetries(2))
	if err := wh.SendSnapshot(context.Background(), testEvent()); err != nil {
		t.Fatalf("send: %v", err)
	}
	if attempts != 2 {
		t.Errorf("attempts: got %d", attempts)
	}
}

func TestWebhookExhaustsRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	wh := NewWebhook(srv.URL, WithWebhookRetries(0))
	err := wh.SendRunSummary(context.Background(), &snapshot.Run{})
	if err == nil || !strings.Contains(err.Error(), "retries exhausted") {
		t.Errorf("err: got %v", err)
	}
}

func TestReportDirArtifacts(t *testing.T) {
	// WHAT: One snapshot produces the full artifact set, with the
	// archival copy stripped of scripts.
	base := t.TempDir()
	r := NewReportDir(base, nil)

	ev := testEvent()
	ev.Screenshot = []byte("png-bytes")
	if err := r.SendSnapshot(context.Background(), ev); err != nil {
		t.Fatalf("send: %v", err)
	}

	dir := filepath.Join(base, categorySlug(ev.Snapshot.Category), ev.Snapshot.ReportDir)
	for _, name := range []string{"result.html", "archive.html", "screenshot.png", "summary.md", "data.json", "metadata.json"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("artifact %s missing: %v", name, err)
		}
	}

	raw, _ := os.ReadFile(filepath.Join(dir, "result.html"))
	if !strings.Contains(string(raw), "evil()") {
		t.Error("raw HTML must be stored verbatim")
	}
	archived, _ := os.ReadFile(filepath.Join(dir, "archive.html"))
	if strings.Contains(string(archived), "evil()") {
		t.Error("archival copy still contains script content")
	}

	var meta map[string]any
	data, _ := os.ReadFile(filepath.Join(dir, "metadata.json"))
	if err := json.Unmarshal(data, &meta); err != nil {
		t.Fatalf("metadata: %v", err)
	}
	if meta["diff_label"] != "[+1]" {
		t.Errorf("diff_label: got %v", meta["diff_label"])
	}
	if meta["baseline"] != true {
		t.Errorf("baseline flag: got %v", meta["baseline"])
	}
}

func TestReportDirComparisonFiles(t *testing.T) {
	// WHAT: changes_summary.txt appears only when views moved;
	// previous_month_summary.txt appears whenever a monthly reference
	// is attached.
	base := t.TempDir()
	r := NewReportDir(base, nil)

	prev := &snapshot.Snapshot{
		Category:  "Cat",
		DataMonth: "2026-07",
		ReportDir: "2026-07_20260801_000000_[0]",
		Summary:   snapshot.Summary{Views: snapshot.Int64(40), FilesUsed: snapshot.Int64(1), PagesUsed: snapshot.Int64(2)},
	}
	ref := &snapshot.Snapshot{
		Category:  "Cat",
		DataMonth: "2026-06",
		ReportDir: "2026-06_20260701_000000_[0]",
		Summary:   snapshot.Summary{Views: snapshot.Int64(50), FilesUsed: snapshot.Int64(1), PagesUsed: snapshot.Int64(2)},
	}

	ev := testEvent()
	ev.Snapshot.Category = "Cat"
	ev.Previous = prev
	ev.MonthlyRef = ref
	ev.MonthlyRefLabel = "2026-06"
	if err := r.SendSnapshot(context.Background(), ev); err != nil {
		t.Fatalf("send: %v", err)
	}

	dir := filepath.Join(base, "Cat", ev.Snapshot.ReportDir)
	changes, err := os.ReadFile(filepath.Join(dir, "changes_summary.txt"))
	if err != nil {
		t.Fatalf("changes summary missing: %v", err)
	}
	if !strings.Contains(string(changes), prev.ReportDir) {
		t.Errorf("changes summary heading lacks previous dir:\n%s", changes)
	}

	monthly, err := os.ReadFile(filepath.Join(dir, "previous_month_summary.txt"))
	if err != nil {
		t.Fatalf("monthly summary missing: %v", err)
	}
	if !strings.Contains(string(monthly), "2026-06") {
		t.Errorf("monthly summary lacks reference month:\n%s", monthly)
	}

	// Unchanged views suppress the changes summary.
	ev2 := testEvent()
	ev2.Snapshot.Category = "Cat"
	ev2.Snapshot.RetrievedAt += 60_000
	ev2.Snapshot.ReportDir = DirName(ev2.Snapshot, "[0]")
	ev2.Previous = ev.Snapshot
	if err := r.SendSnapshot(context.Background(), ev2); err != nil {
		t.Fatalf("send second: %v", err)
	}
	dir2 := filepath.Join(base, "Cat", ev2.Snapshot.ReportDir)
	if _, err := os.Stat(filepath.Join(dir2, "changes_summary.txt")); !os.IsNotExist(err) {
		t.Error("changes summary written despite unchanged views")
	}
}

func TestReportDirRunLog(t *testing.T) {
	base := t.TempDir()
	r := NewReportDir(base, nil)

	for i := 0; i < 2; i++ {
		if err := r.SendRunSummary(context.Background(), &snapshot.Run{ID: "run_x", TotalChanges: int64(i)}); err != nil {
			t.Fatalf("send run: %v", err)
		}
	}
	data, err := os.ReadFile(filepath.Join(base, "runs.jsonl"))
	if err != nil {
		t.Fatalf("runs.jsonl: %v", err)
	}
	if got := strings.Count(string(data), "\n"); got != 2 {
		t.Errorf("run log lines: got %d", got)
	}
}

func TestCategorySlug(t *testing.T) {
	cases := []struct{ in, want string }{
		{"Media supplied by Universitätsarchiv St. Gallen", "Media_supplied_by_Universittsarchiv_St._Gallen"},
		{"a/b c", "a_b_c"},
		{"plain", "plain"},
	}
	for _, tc := range cases {
		if got := categorySlug(tc.in); got != tc.want {
			t.Errorf("categorySlug(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
