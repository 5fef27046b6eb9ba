// Package search runs compiled queries over many files.
//
// A search validates the request, compiles every query for the languages
// present in the file set, partitions the files into chunks, and hands the
// chunks to a fixed pool of workers. Each worker owns its own parser; the
// compiled patterns are shared read-only. Per-file failures become
// SearchErrors and never abort the batch.
package search

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/corey/shapegrep/internal/domain/pattern"
	"github.com/corey/shapegrep/internal/ports"
	"github.com/corey/shapegrep/internal/slogger"
)

var (
	// ErrEmptyQuery rejects requests without queries or with a blank query.
	ErrEmptyQuery = errors.New("empty query")
	// ErrStructuralUnavailable is returned for exact/include searches when the
	// engine has no parser (binaries built without cgo).
	ErrStructuralUnavailable = errors.New("structural search needs a parser; this build only supports text mode")
)

// Defaults used when an option is left at zero.
const (
	DefaultMaxFileSize   = 2 << 20
	DefaultAttemptBudget = 200_000
	DefaultFileBudget    = 5_000_000
	maxChunkSize         = 64
)

// FileSystemQuery is the collaborator-facing request shape: query strings,
// explicit file paths and a mode name.
type FileSystemQuery struct {
	QueryCodes      []string
	FilePaths       []string
	Mode            ports.Mode
	CaseInsensitive bool
	Debug           bool
}

// Engine executes searches. It is safe for concurrent use; every Search call
// builds its own workers.
type Engine struct {
	parsers       ports.ParserFactory
	filters       ports.LiteralFilterFactory
	workers       int
	maxWorkers    int
	chunkSize     int
	maxFileSize   int64
	attemptBudget int
	fileBudget    int
	defaultLang   ports.Language
	textFallback  bool
	log           slogger.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithParserFactory sets the parser source. Without one only text mode works.
func WithParserFactory(f ports.ParserFactory) Option {
	return func(e *Engine) { e.parsers = f }
}

// WithLiteralFilter enables the literal prefilter.
func WithLiteralFilter(f ports.LiteralFilterFactory) Option {
	return func(e *Engine) { e.filters = f }
}

// WithWorkers sets the pool size. Zero means GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(e *Engine) { e.workers = n }
}

// WithMaxWorkers caps the pool size. Zero means no cap.
func WithMaxWorkers(n int) Option {
	return func(e *Engine) { e.maxWorkers = n }
}

// WithChunkSize fixes the number of files per chunk. Zero derives it from the
// file count and pool size.
func WithChunkSize(n int) Option {
	return func(e *Engine) { e.chunkSize = n }
}

// WithMaxFileSize skips files larger than n bytes.
func WithMaxFileSize(n int64) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxFileSize = n
		}
	}
}

// WithBudgets sets the per-attempt and per-file visit budgets.
func WithBudgets(attempt, file int) Option {
	return func(e *Engine) {
		if attempt > 0 {
			e.attemptBudget = attempt
		}
		if file > 0 {
			e.fileBudget = file
		}
	}
}

// WithDefaultLanguage sets the language for files with unknown extensions.
func WithDefaultLanguage(lang ports.Language) Option {
	return func(e *Engine) {
		if lang != "" {
			e.defaultLang = lang
		}
	}
}

// WithTextFallback enables text matching for unparsable files on every
// request.
func WithTextFallback(on bool) Option {
	return func(e *Engine) { e.textFallback = on }
}

// WithLogger sets the logger.
func WithLogger(l slogger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// NewEngine creates an engine.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		maxFileSize:   DefaultMaxFileSize,
		attemptBudget: DefaultAttemptBudget,
		fileBudget:    DefaultFileBudget,
		defaultLang:   ports.LangJavaScript,
	}
	for _, o := range opts {
		o(e)
	}
	if e.log == nil {
		e.log = slogger.WithComponent("search")
	}
	return e
}

// StructuralAvailable reports whether exact and include modes can run.
func (e *Engine) StructuralAvailable() bool { return e.parsers != nil }

// SearchInFileSystem searches files on disk and returns the matches and
// per-file errors. Query compilation failures are reported as SearchErrors
// with an empty path.
func (e *Engine) SearchInFileSystem(ctx context.Context, q FileSystemQuery) ([]ports.MatchResult, []ports.SearchError, error) {
	report, err := e.Search(ctx, ports.SearchRequest{
		Queries:         q.QueryCodes,
		Files:           q.FilePaths,
		Mode:            q.Mode,
		CaseInsensitive: q.CaseInsensitive,
		Debug:           q.Debug,
	})
	if err != nil {
		return nil, nil, err
	}
	errs := report.Errors
	for _, qe := range report.QueryErrors {
		errs = append(errs, ports.SearchError{Kind: ports.ErrorKindParse, Message: qe.Error()})
	}
	return report.Matches, errs, nil
}

// Search runs one request to completion. Malformed requests are rejected
// before any file is read. A cancelled context yields ctx.Err() and no
// report.
func (e *Engine) Search(ctx context.Context, req ports.SearchRequest) (*ports.SearchReport, error) {
	start := time.Now()
	mode, err := e.validate(req)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tasks := e.plan(req, mode)
	compiled, queryErrs := e.compile(ctx, req, mode, tasks)

	report := &ports.SearchReport{
		ID:          uuid.NewString(),
		Mode:        mode,
		Matches:     []ports.MatchResult{},
		Errors:      []ports.SearchError{},
		QueryErrors: queryErrs,
	}

	if len(compiled) > 0 && len(tasks) > 0 {
		opts := scanOptions{
			mode:            mode,
			caseInsensitive: req.CaseInsensitive,
			debug:           req.Debug,
			textFallback:    req.TextFallback || e.textFallback,
		}
		partials, err := e.run(ctx, tasks, compiled, opts)
		if err != nil {
			return nil, err
		}
		aggregate(report, partials)
	}
	report.Elapsed = time.Since(start)

	e.log.Info(ctx, "search finished", slogger.Fields{
		"search_id":     report.ID,
		"mode":          string(mode),
		"queries":       len(req.Queries),
		"files":         len(tasks),
		"files_scanned": report.FilesScanned,
		"matches":       len(report.Matches),
		"errors":        len(report.Errors),
		"elapsed_ms":    report.Elapsed.Milliseconds(),
	})
	return report, nil
}

func (e *Engine) validate(req ports.SearchRequest) (ports.Mode, error) {
	if len(req.Queries) == 0 {
		return "", ErrEmptyQuery
	}
	for i, q := range req.Queries {
		if strings.TrimSpace(q) == "" {
			return "", fmt.Errorf("%w: query %d is blank", ErrEmptyQuery, i)
		}
	}
	mode := ports.ModeExact
	if req.Mode != "" {
		m, err := ports.ParseMode(string(req.Mode))
		if err != nil {
			return "", err
		}
		mode = m
	}
	if mode.Structural() && e.parsers == nil {
		return "", ErrStructuralUnavailable
	}
	if req.Language != "" {
		if _, err := ports.ParseLanguage(string(req.Language)); err != nil {
			return "", err
		}
	}
	return mode, nil
}

// plan turns the request into scan tasks. In-memory sources come first and
// shadow files with the same path.
func (e *Engine) plan(req ports.SearchRequest, mode ports.Mode) []task {
	override := ports.Language("")
	if req.Language != "" {
		override, _ = ports.ParseLanguage(string(req.Language))
	}
	langOf := func(path string) ports.Language {
		if !mode.Structural() {
			return ""
		}
		if override != "" {
			return override
		}
		if lang, ok := ports.LanguageForPath(path); ok {
			return lang
		}
		return e.defaultLang
	}

	tasks := make([]task, 0, len(req.Sources)+len(req.Files))
	seen := make(map[string]bool, len(req.Sources))
	for _, s := range req.Sources {
		seen[s.Path] = true
		tasks = append(tasks, task{path: s.Path, content: s.Content, inMemory: true, lang: langOf(s.Path)})
	}
	for _, f := range req.Files {
		if seen[f] {
			continue
		}
		seen[f] = true
		tasks = append(tasks, task{path: f, lang: langOf(f)})
	}
	return tasks
}

// compile compiles every query for the languages present in tasks.
func (e *Engine) compile(ctx context.Context, req ports.SearchRequest, mode ports.Mode, tasks []task) ([]*pattern.Compiled, []ports.QueryError) {
	opts := pattern.Options{
		Mode:            mode,
		CaseInsensitive: req.CaseInsensitive,
		Languages:       languagesOf(tasks),
		TextFallback:    req.TextFallback || e.textFallback,
	}
	var parser ports.Parser
	if mode.Structural() {
		parser = e.parsers()
		defer parser.Close()
	}
	compiled, errs := pattern.NewCompiler(parser).CompileAll(req.Queries, opts)
	for _, qe := range errs {
		e.log.Warn(ctx, "query rejected", slogger.Fields2("query_index", qe.QueryIndex, "reason", qe.Message))
	}
	if req.Debug {
		for _, c := range compiled {
			for lang, p := range c.Patterns {
				e.log.Debug(ctx, "compiled pattern", slogger.Fields{
					"query_index": c.Index,
					"language":    string(lang),
					"pattern":     p.Sexp(),
					"literals":    p.Literals,
				})
			}
		}
	}
	return compiled, errs
}

// languagesOf returns the distinct languages of tasks in ports.Languages
// order.
func languagesOf(tasks []task) []ports.Language {
	present := make(map[ports.Language]bool)
	for _, t := range tasks {
		if t.lang != "" {
			present[t.lang] = true
		}
	}
	out := make([]ports.Language, 0, len(present))
	for _, lang := range ports.Languages {
		if present[lang] {
			out = append(out, lang)
		}
	}
	return out
}

// poolSize returns the number of workers for n chunks.
func (e *Engine) poolSize(chunks int) int {
	n := e.workers
	if n <= 0 {
		n = runtime.GOMAXPROCS(0)
	}
	if e.maxWorkers > 0 && n > e.maxWorkers {
		n = e.maxWorkers
	}
	return max(1, min(n, chunks))
}

// chunkSizeFor balances per-chunk overhead against fairness: about four
// chunks per worker, never more than maxChunkSize files.
func chunkSizeFor(files, workers int) int {
	if files <= 0 {
		return 1
	}
	workers = max(1, workers)
	size := (files + workers*4 - 1) / (workers * 4)
	return max(1, min(size, maxChunkSize))
}
