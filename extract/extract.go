// Package extract parses the semi-structured GLAM Tools result page
// into typed records: aggregate summary statistics and per-file rows
// with view counts and using-page lists.
//
// The page is an external, uncontrolled UI. Extraction is tolerant:
// rows that do not match the expected shape are skipped, and summary
// values that cannot be found stay nil.
package extract

import (
	"bytes"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/hazyhaar/glamwatch/snapshot"
)

var (
	filesPattern = regexp.MustCompile(`(?i)([\d,.']+)\s+files were viewed,\s*out of\s*([\d,.']+)\s+used`)
	pagesPattern = regexp.MustCompile(`(?i)([\d,.']+)\s+pages on\s+([\d,.']+)\s+wikis`)
	viewsPattern = regexp.MustCompile(`(?i)([\d,.']+)\s+file views`)

	nonDigits       = regexp.MustCompile(`[^0-9-]`)
	innerWhitespace = regexp.MustCompile(`\s\s+`)
)

// Result is the typed content of one GLAM Tools result page.
type Result struct {
	Summary snapshot.Summary
	Files   []*snapshot.FileRecord
}

// Page extracts summary statistics and file entries from result HTML.
func Page(pageHTML string) (*Result, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(pageHTML))
	if err != nil {
		return nil, err
	}
	return &Result{
		Summary: summaryFromDoc(doc),
		Files:   filesFromDoc(doc),
	}, nil
}

// SummaryStats extracts only the aggregate statistics.
func SummaryStats(pageHTML string) (snapshot.Summary, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(pageHTML))
	if err != nil {
		return snapshot.Summary{}, err
	}
	return summaryFromDoc(doc), nil
}

// FileEntries extracts only the per-file rows.
func FileEntries(pageHTML string) ([]*snapshot.FileRecord, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(pageHTML))
	if err != nil {
		return nil, err
	}
	return filesFromDoc(doc), nil
}

// FileMap keys entries by file name. Duplicate rows are merged: page
// usages are unioned, the first view count wins.
func FileMap(entries []*snapshot.FileRecord) map[string]*snapshot.FileRecord {
	files := make(map[string]*snapshot.FileRecord, len(entries))
	for _, e := range entries {
		existing, ok := files[e.Name]
		if !ok {
			files[e.Name] = e
			continue
		}
		existing.UsingPages = mergeSorted(existing.UsingPages, e.UsingPages)
	}
	return files
}

func summaryFromDoc(doc *goquery.Document) snapshot.Summary {
	var s snapshot.Summary

	doc.Find("div").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		text := strings.TrimSpace(sel.Text())
		if text == "" {
			return true
		}

		if s.FilesViewed == nil {
			if m := filesPattern.FindStringSubmatch(text); m != nil {
				s.FilesViewed = parseCount(m[1])
				s.FilesUsed = parseCount(m[2])
			}
		}
		if s.PagesUsed == nil {
			if m := pagesPattern.FindStringSubmatch(text); m != nil {
				s.PagesUsed = parseCount(m[1])
				s.Wikis = parseCount(m[2])
			}
		}
		if s.Views == nil {
			if m := viewsPattern.FindStringSubmatch(text); m != nil {
				s.Views = parseCount(m[1])
			}
		}

		done := s.FilesViewed != nil && s.PagesUsed != nil && s.Views != nil
		return !done
	})

	return s
}

func filesFromDoc(doc *goquery.Document) []*snapshot.FileRecord {
	var files []*snapshot.FileRecord

	doc.Find("#output table.table-striped tr").Each(func(_ int, row *goquery.Selection) {
		fileLink := row.Find(`a[href*="commons.wikimedia.org/wiki/File"]`).First()
		if fileLink.Length() == 0 {
			return // header or decoration row
		}

		href, _ := fileLink.Attr("href")
		name := selectionText(fileLink)
		if name == "" {
			return
		}

		rec := &snapshot.FileRecord{Name: name, URL: href}

		cells := row.Find("td, th")
		if cells.Length() >= 3 {
			if v, ok := parseInt(cells.Eq(2).Text()); ok {
				rec.ViewCount = v
			}
		}

		// Using pages: every non-file wiki link in the row.
		seen := make(map[string]bool)
		row.Find(`a[href*="/wiki/"]`).Each(func(_ int, a *goquery.Selection) {
			h, _ := a.Attr("href")
			if strings.Contains(h, "/wiki/File") {
				return
			}
			title := selectionText(a)
			if title == "" || seen[title] {
				return
			}
			seen[title] = true
			rec.UsingPages = append(rec.UsingPages, title)
		})
		rec.UsingPages = mergeSorted(rec.UsingPages, nil)

		files = append(files, rec)
	})

	return files
}

// parseInt converts a numeric string with thousands separators to int64.
func parseInt(s string) (int64, bool) {
	digits := nonDigits.ReplaceAllString(s, "")
	if digits == "" || digits == "-" {
		return 0, false
	}
	v, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func parseCount(s string) *int64 {
	v, ok := parseInt(s)
	if !ok {
		return nil
	}
	return &v
}

// selectionText renders a selection's text content, cleaned: node text
// collected recursively, non-printables stripped, whitespace collapsed.
func selectionText(sel *goquery.Selection) string {
	var buf bytes.Buffer
	for _, n := range sel.Nodes {
		nodeText(n, &buf)
	}
	text := removeNonPrintable(buf.String())
	text = strings.TrimSpace(text)
	return innerWhitespace.ReplaceAllString(text, " ")
}

func nodeText(n *html.Node, buf *bytes.Buffer) {
	if n == nil {
		return
	}
	if n.Type == html.TextNode {
		buf.WriteString(n.Data)
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		nodeText(c, buf)
	}
}

func removeNonPrintable(s string) string {
	var b strings.Builder
	for _, c := range s {
		if unicode.IsPrint(c) {
			b.WriteRune(c)
		}
	}
	return b.String()
}

// mergeSorted unions two string sets into a sorted slice.
func mergeSorted(a, b []string) []string {
	set := make(map[string]bool, len(a)+len(b))
	for _, s := range a {
		set[s] = true
	}
	for _, s := range b {
		set[s] = true
	}
	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
