package search

import (
	"sort"

	"github.com/corey/shapegrep/internal/ports"
)

// aggregate merges chunk partials into report. Matches are ordered by path,
// start offset, end offset and query index; a (path, span, query) triple is
// reported once. Errors are ordered by path.
func aggregate(report *ports.SearchReport, parts []partial) {
	matched := make(map[string]bool)
	for _, p := range parts {
		report.Matches = append(report.Matches, p.matches...)
		report.Errors = append(report.Errors, p.errors...)
		report.FilesScanned += p.scanned
		report.FilesSkipped += p.skipped
	}

	sort.SliceStable(report.Matches, func(i, j int) bool {
		a, b := report.Matches[i], report.Matches[j]
		if a.Path != b.Path {
			return a.Path < b.Path
		}
		if a.Span.StartByte != b.Span.StartByte {
			return a.Span.StartByte < b.Span.StartByte
		}
		if a.Span.EndByte != b.Span.EndByte {
			return a.Span.EndByte > b.Span.EndByte
		}
		return a.QueryIndex < b.QueryIndex
	})
	out := report.Matches[:0]
	for i, m := range report.Matches {
		if i > 0 {
			prev := out[len(out)-1]
			if prev.Path == m.Path && prev.Span == m.Span && prev.QueryIndex == m.QueryIndex {
				continue
			}
		}
		out = append(out, m)
		matched[m.Path] = true
	}
	report.Matches = out
	report.FilesMatched = len(matched)

	sort.SliceStable(report.Errors, func(i, j int) bool {
		return report.Errors[i].Path < report.Errors[j].Path
	})
}
