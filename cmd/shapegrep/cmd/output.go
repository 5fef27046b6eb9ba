package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"

	"github.com/corey/shapegrep/internal/ports"
)

var (
	fileStyle    = color.New(color.FgCyan, color.Bold)
	lineStyle    = color.New(color.FgGreen)
	queryStyle   = color.New(color.FgMagenta)
	matchStyle   = color.New(color.FgRed, color.Bold)
	dimStyle     = color.New(color.FgHiBlack)
	warningStyle = color.New(color.FgHiYellow, color.Bold)
)

// reportPrinter renders a SearchReport for the terminal or as JSON.
//
//	src/ThemeToggle.js:4:3: const { colors } = useTheme(
//	src/Settings.js:5:5: if (isRTL) {  (+3 lines)
type reportPrinter struct {
	out       io.Writer
	errOut    io.Writer
	width     int // 0 = no truncation
	jsonOut   bool
	countOnly bool
	filesOnly bool
	quiet     bool
	stats     bool
}

func (p *reportPrinter) print(report *ports.SearchReport, queries []string) error {
	if p.quiet {
		return nil
	}
	if p.jsonOut {
		enc := json.NewEncoder(p.out)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	p.printErrors(report)
	switch {
	case p.filesOnly:
		for _, path := range matchedFiles(report) {
			fmt.Fprintln(p.out, fileStyle.Sprint(path))
		}
	case p.countOnly:
		counts := make(map[string]int)
		for _, m := range report.Matches {
			counts[m.Path]++
		}
		for _, path := range matchedFiles(report) {
			fmt.Fprintf(p.out, "%s:%d\n", fileStyle.Sprint(path), counts[path])
		}
	default:
		multi := len(queries) > 1
		for _, m := range report.Matches {
			fmt.Fprintln(p.out, p.matchLine(m, multi))
		}
	}
	if p.stats {
		fmt.Fprintln(p.errOut, dimStyle.Sprint(summary(report)))
	}
	return nil
}

func (p *reportPrinter) printErrors(report *ports.SearchReport) {
	for _, qe := range report.QueryErrors {
		fmt.Fprintf(p.errOut, "%s query %d: %s\n", warningStyle.Sprint("shapegrep:"), qe.QueryIndex+1, qe.Message)
	}
	for _, e := range report.Errors {
		fmt.Fprintf(p.errOut, "%s %s: %s: %s\n", warningStyle.Sprint("shapegrep:"), e.Path, e.Kind, e.Message)
	}
}

// matchLine renders one match on one line: location, then the first line of
// the matched text, truncated to the terminal width.
func (p *reportPrinter) matchLine(m ports.MatchResult, multi bool) string {
	var prefix strings.Builder
	if multi {
		prefix.WriteString(fmt.Sprintf("[%d] ", m.QueryIndex+1))
	}
	prefix.WriteString(fmt.Sprintf("%s:%d:%d: ", m.Path, m.Span.StartLine, m.Span.StartCol))

	text, more := firstLine(m.Text)
	var suffix string
	if more > 0 {
		suffix = fmt.Sprintf("  (+%d lines)", more)
	}
	if m.Fallback {
		suffix += "  (text)"
	}

	if p.width > 0 {
		avail := p.width - runewidth.StringWidth(prefix.String()) - runewidth.StringWidth(suffix)
		if avail < 8 {
			avail = 8
		}
		if runewidth.StringWidth(text) > avail {
			text = runewidth.Truncate(text, avail, "…")
		}
	}

	var b strings.Builder
	if multi {
		b.WriteString(queryStyle.Sprintf("[%d] ", m.QueryIndex+1))
	}
	b.WriteString(fileStyle.Sprint(m.Path))
	b.WriteString(":")
	b.WriteString(lineStyle.Sprintf("%d:%d", m.Span.StartLine, m.Span.StartCol))
	b.WriteString(": ")
	b.WriteString(matchStyle.Sprint(text))
	b.WriteString(dimStyle.Sprint(suffix))
	return b.String()
}

// firstLine returns the first line of s with tabs expanded, and the number
// of further lines.
func firstLine(s string) (string, int) {
	line, rest, found := strings.Cut(s, "\n")
	line = strings.ReplaceAll(strings.TrimRight(line, "\r"), "\t", "    ")
	if !found {
		return line, 0
	}
	return line, strings.Count(rest, "\n") + 1
}

func matchedFiles(report *ports.SearchReport) []string {
	var files []string
	for i, m := range report.Matches {
		if i == 0 || report.Matches[i-1].Path != m.Path {
			files = append(files, m.Path)
		}
	}
	return files
}

func summary(report *ports.SearchReport) string {
	s := fmt.Sprintf("%d matches in %d files (%d scanned, %d skipped, %d errors) in %s",
		len(report.Matches), report.FilesMatched, report.FilesScanned,
		report.FilesSkipped, len(report.Errors), report.Elapsed.Round(time.Microsecond))
	if report.Cached {
		s += " [cached]"
	}
	return s
}
