// Package diff compares two snapshots of the same category and reports
// what changed: files added or removed, view-count deltas, and per-file
// page-usage changes.
//
// All set iteration is over sorted keys so identical inputs always
// produce identical output.
package diff

import (
	"fmt"
	"sort"

	"github.com/hazyhaar/glamwatch/snapshot"
)

// Diff is the computed difference between two snapshots.
type Diff struct {
	// Baseline is set when there was no prior snapshot. A baseline diff
	// has empty change sets and is never an error condition.
	Baseline bool `json:"baseline,omitempty"`

	AddedFiles   []string `json:"added_files,omitempty"`
	RemovedFiles []string `json:"removed_files,omitempty"`

	// ViewDeltas maps file name to view-count change for files present
	// in both snapshots. Zero deltas are omitted.
	ViewDeltas map[string]int64 `json:"view_deltas,omitempty"`

	AddedPageUsages   map[string][]string `json:"added_page_usages,omitempty"`
	RemovedPageUsages map[string][]string `json:"removed_page_usages,omitempty"`

	// SummaryDeltas holds changes of the aggregate counters
	// (files_used, pages_used, views). A key is absent when either side
	// did not report the value.
	SummaryDeltas map[string]int64 `json:"summary_deltas,omitempty"`
}

// Baseline builds the diff reported on the first run for a category:
// no prior data, nothing added or removed.
func Baseline() *Diff {
	return &Diff{Baseline: true}
}

// Compute diffs old against new. Files are keyed by file name, the
// natural key within a snapshot. A nil old yields a baseline diff.
func Compute(old, new *snapshot.Snapshot) *Diff {
	if old == nil {
		return Baseline()
	}

	d := &Diff{
		ViewDeltas:        make(map[string]int64),
		AddedPageUsages:   make(map[string][]string),
		RemovedPageUsages: make(map[string][]string),
	}

	for _, name := range sortedKeys(new.Files) {
		if _, ok := old.Files[name]; !ok {
			d.AddedFiles = append(d.AddedFiles, name)
		}
	}
	for _, name := range sortedKeys(old.Files) {
		if _, ok := new.Files[name]; !ok {
			d.RemovedFiles = append(d.RemovedFiles, name)
		}
	}

	for _, name := range sortedKeys(new.Files) {
		oldFile, ok := old.Files[name]
		if !ok {
			continue
		}
		newFile := new.Files[name]

		if delta := newFile.ViewCount - oldFile.ViewCount; delta != 0 {
			d.ViewDeltas[name] = delta
		}
		if added := setDifference(newFile.UsingPages, oldFile.UsingPages); len(added) > 0 {
			d.AddedPageUsages[name] = added
		}
		if removed := setDifference(oldFile.UsingPages, newFile.UsingPages); len(removed) > 0 {
			d.RemovedPageUsages[name] = removed
		}
	}

	d.SummaryDeltas = summaryDeltas(old.Summary, new.Summary)
	return d
}

// PageUsageChanges is the signed change count: the number of added plus
// removed page usages summed across all files. It is a human-readable
// magnitude label; ties are not broken.
func (d *Diff) PageUsageChanges() int64 {
	var n int64
	for _, pages := range d.AddedPageUsages {
		n += int64(len(pages))
	}
	for _, pages := range d.RemovedPageUsages {
		n += int64(len(pages))
	}
	return n
}

// TotalChanges counts everything that moved: added and removed files
// plus page-usage changes. Used for the cross-category run summary.
func (d *Diff) TotalChanges() int64 {
	return int64(len(d.AddedFiles)) + int64(len(d.RemovedFiles)) + d.PageUsageChanges()
}

// Empty reports whether the diff carries no changes at all.
func (d *Diff) Empty() bool {
	return len(d.AddedFiles) == 0 && len(d.RemovedFiles) == 0 &&
		len(d.ViewDeltas) == 0 &&
		len(d.AddedPageUsages) == 0 && len(d.RemovedPageUsages) == 0
}

// Label renders the pages-used delta as a bracketed tag ("[+3]", "[-1]",
// "[0]") appended to report directory names. Unknown on either side
// collapses to "[0]".
func Label(old, new *snapshot.Snapshot) string {
	if old == nil || old.Summary.PagesUsed == nil || new.Summary.PagesUsed == nil {
		return "[0]"
	}
	delta := *new.Summary.PagesUsed - *old.Summary.PagesUsed
	switch {
	case delta > 0:
		return fmt.Sprintf("[+%d]", delta)
	case delta < 0:
		return fmt.Sprintf("[%d]", delta)
	default:
		return "[0]"
	}
}

// FormatSigned renders an integer with an explicit sign for positives.
func FormatSigned(v int64) string {
	if v > 0 {
		return fmt.Sprintf("+%d", v)
	}
	return fmt.Sprintf("%d", v)
}

func summaryDeltas(old, new snapshot.Summary) map[string]int64 {
	deltas := make(map[string]int64)
	pairs := []struct {
		key      string
		old, new *int64
	}{
		{"files_used", old.FilesUsed, new.FilesUsed},
		{"pages_used", old.PagesUsed, new.PagesUsed},
		{"views", old.Views, new.Views},
	}
	for _, p := range pairs {
		if p.old == nil || p.new == nil {
			continue
		}
		deltas[p.key] = *p.new - *p.old
	}
	return deltas
}

// setDifference returns the sorted elements of a not present in b.
func setDifference(a, b []string) []string {
	inB := make(map[string]bool, len(b))
	for _, s := range b {
		inB[s] = true
	}
	var out []string
	for _, s := range a {
		if !inB[s] {
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}

func sortedKeys(m map[string]*snapshot.FileRecord) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
