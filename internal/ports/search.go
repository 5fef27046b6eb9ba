package ports

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Mode selects how queries are compared against code.
type Mode string

const (
	ModeExact   Mode = "exact"
	ModeInclude Mode = "include"
	ModeText    Mode = "text"
)

// ErrUnknownMode is returned for mode names outside the closed set.
var ErrUnknownMode = errors.New("unknown search mode")

// ErrBudgetExceeded is returned by matchers that visited more nodes (or
// tokens) than their budget allows. The engine reports it as a Timeout.
var ErrBudgetExceeded = errors.New("match budget exceeded")

// ParseMode validates a mode name (case-insensitive). It is the only way
// callers outside the engine should turn strings into a Mode.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeExact, ModeInclude, ModeText:
		return m, nil
	default:
		return "", fmt.Errorf("%w: %q (want exact, include or text)", ErrUnknownMode, s)
	}
}

// Structural reports whether the mode compares syntax trees.
func (m Mode) Structural() bool { return m == ModeExact || m == ModeInclude }

// Source is an in-memory file. Path is used for reporting and for language
// detection by extension.
type Source struct {
	Path    string
	Content []byte
}

// SearchRequest describes one search. Exactly one of Files or Sources is
// normally set; when both are, Sources win for paths they name.
type SearchRequest struct {
	Queries         []string
	Files           []string
	Sources         []Source
	Mode            Mode
	CaseInsensitive bool
	Debug           bool
	// Language overrides extension-based detection for every file when set.
	Language Language
	// TextFallback runs the text matcher on files whose parse failed.
	TextFallback bool
}

// MatchResult is one match of one query.
type MatchResult struct {
	QueryIndex int    `json:"query_index" msgpack:"q"`
	Path       string `json:"path" msgpack:"p"`
	Span       Span   `json:"span" msgpack:"s"`
	Text       string `json:"text" msgpack:"t"`
	// Fallback is set when the match came from the text matcher after a
	// structural parse failure.
	Fallback bool `json:"fallback,omitempty" msgpack:"f,omitempty"`
}

// ErrorKind classifies per-file failures.
type ErrorKind string

const (
	ErrorKindParse    ErrorKind = "ParseError"
	ErrorKindIO       ErrorKind = "IOError"
	ErrorKindTimeout  ErrorKind = "Timeout"
	ErrorKindInternal ErrorKind = "Internal"
)

// SearchError is a per-file failure. It never aborts the search.
type SearchError struct {
	Path    string    `json:"path" msgpack:"p"`
	Kind    ErrorKind `json:"kind" msgpack:"k"`
	Message string    `json:"message" msgpack:"m"`
}

func (e SearchError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Path, e.Kind, e.Message)
}

// QueryError records a query that could not be compiled. The other queries of
// the request still run.
type QueryError struct {
	QueryIndex int    `json:"query_index" msgpack:"q"`
	Query      string `json:"query" msgpack:"x"`
	Message    string `json:"message" msgpack:"m"`
}

func (e QueryError) Error() string {
	return fmt.Sprintf("query %d: %s", e.QueryIndex, e.Message)
}

// SearchReport is the merged outcome of a search.
type SearchReport struct {
	// ID names one invocation. It differs between otherwise identical runs
	// and, like Elapsed, is not part of the result.
	ID           string        `json:"id" msgpack:"id"`
	Mode         Mode          `json:"mode" msgpack:"mode"`
	Matches      []MatchResult `json:"matches" msgpack:"matches"`
	Errors       []SearchError `json:"errors" msgpack:"errors"`
	QueryErrors  []QueryError  `json:"query_errors,omitempty" msgpack:"query_errors"`
	FilesScanned int           `json:"files_scanned" msgpack:"scanned"`
	FilesMatched int           `json:"files_matched" msgpack:"matched"`
	FilesSkipped int           `json:"files_skipped" msgpack:"skipped"`
	Elapsed      time.Duration `json:"elapsed" msgpack:"elapsed"`
	Cached       bool          `json:"cached,omitempty" msgpack:"-"`
}
