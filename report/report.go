// Package report renders human-readable artifacts out of snapshots and
// diffs: plain-text comparison summaries and a Markdown rendition of
// the result page.
package report

import (
	"fmt"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"

	"github.com/hazyhaar/glamwatch/diff"
	"github.com/hazyhaar/glamwatch/snapshot"
)

// Renderer converts result-page HTML to Markdown. Safe for concurrent
// use.
type Renderer struct {
	conv *converter.Converter
}

func NewRenderer() *Renderer {
	return &Renderer{
		conv: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		),
	}
}

// Markdown renders the page HTML to Markdown. sourceURL resolves
// relative links.
func (r *Renderer) Markdown(pageHTML, sourceURL string) (string, error) {
	md, err := r.conv.ConvertString(pageHTML, converter.WithDomain(sourceURL))
	if err != nil {
		return "", fmt.Errorf("report: convert to markdown: %w", err)
	}
	return md, nil
}

// Comparison renders the text block written to changes_summary.txt and
// previous_month_summary.txt. The second return value is false when
// requireViewsChange is set and the view count did not move, in which
// case no file should be written.
func Comparison(heading string, prev, cur *snapshot.Snapshot, requireViewsChange bool) (string, bool) {
	var viewsDiff *int64
	if prev.Summary.Views != nil && cur.Summary.Views != nil {
		v := *cur.Summary.Views - *prev.Summary.Views
		viewsDiff = &v
	}
	if requireViewsChange && (viewsDiff == nil || *viewsDiff == 0) {
		return "", false
	}

	curFilesUsed := orFileCount(cur.Summary.FilesUsed, cur)
	prevFilesUsed := orFileCount(prev.Summary.FilesUsed, prev)
	filesDiff := curFilesUsed - prevFilesUsed

	pagesDiff := orZero(cur.Summary.PagesUsed) - orZero(prev.Summary.PagesUsed)

	var viewsDiffValue int64
	if viewsDiff != nil {
		viewsDiffValue = *viewsDiff
	}

	lines := []string{
		heading,
		fmt.Sprintf("- Media files used: %s (current total: %d)", diff.FormatSigned(filesDiff), curFilesUsed),
		fmt.Sprintf("- Pages using media: %s (current total: %s)", diff.FormatSigned(pagesDiff), orUnknown(cur.Summary.PagesUsed)),
		fmt.Sprintf("- File views: %s (current total: %s)", diff.FormatSigned(viewsDiffValue), orUnknown(cur.Summary.Views)),
	}

	if filesDiff != 0 {
		d := diff.Compute(prev, cur)
		if len(d.AddedFiles) > 0 {
			lines = append(lines, "  Added media files:")
			lines = append(lines, fileLines(cur, d.AddedFiles)...)
		}
		if len(d.RemovedFiles) > 0 {
			lines = append(lines, "  Removed media files:")
			lines = append(lines, fileLines(prev, d.RemovedFiles)...)
		}
	}

	return strings.Join(lines, "\n") + "\n", true
}

// ChangeHeading names the prior report a changes summary compares to.
func ChangeHeading(prevReportDir string) string {
	return fmt.Sprintf("Changes compared to previous report (%s):", prevReportDir)
}

// MonthlyHeading names the reference report of a month-over-month
// summary. label is the data month being compared against ("2026-07").
func MonthlyHeading(label, refReportDir string) string {
	return fmt.Sprintf("Month-over-month changes compared to earliest report from %s (%s):", label, refReportDir)
}

func fileLines(s *snapshot.Snapshot, names []string) []string {
	out := make([]string, 0, len(names))
	for _, name := range names {
		line := "    - " + name
		if f := s.Files[name]; f != nil && f.URL != "" {
			line += " (" + f.URL + ")"
		}
		out = append(out, line)
	}
	return out
}

func orFileCount(v *int64, s *snapshot.Snapshot) int64 {
	if v != nil {
		return *v
	}
	return int64(len(s.Files))
}

func orZero(v *int64) int64 {
	if v == nil {
		return 0
	}
	return *v
}

func orUnknown(v *int64) string {
	if v == nil {
		return "unknown"
	}
	return fmt.Sprintf("%d", *v)
}
