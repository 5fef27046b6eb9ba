package search

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime/debug"

	"golang.org/x/sync/errgroup"

	"github.com/corey/shapegrep/internal/domain/match"
	"github.com/corey/shapegrep/internal/domain/pattern"
	"github.com/corey/shapegrep/internal/domain/textmatch"
	"github.com/corey/shapegrep/internal/ports"
	"github.com/corey/shapegrep/internal/slogger"
)

// task is one file to scan.
type task struct {
	path     string
	content  []byte
	inMemory bool
	lang     ports.Language
}

// partial is what one chunk produced. Each chunk has its own slot, so
// workers never write to shared state.
type partial struct {
	matches []ports.MatchResult
	errors  []ports.SearchError
	scanned int
	skipped int
}

type scanOptions struct {
	mode            ports.Mode
	caseInsensitive bool
	debug           bool
	textFallback    bool
}

// run scans tasks with a fixed worker pool and returns one partial per
// chunk. Cancellation discards everything.
func (e *Engine) run(ctx context.Context, tasks []task, queries []*pattern.Compiled, opts scanOptions) ([]partial, error) {
	workers := e.poolSize(len(tasks))
	size := e.chunkSize
	if size <= 0 {
		size = chunkSizeFor(len(tasks), workers)
	}
	var chunks [][]task
	for i := 0; i < len(tasks); i += size {
		chunks = append(chunks, tasks[i:min(i+size, len(tasks))])
	}
	workers = min(workers, len(chunks))
	parts := make([]partial, len(chunks))

	if opts.debug {
		e.log.Debug(ctx, "scan plan", slogger.Fields3("files", len(tasks), "chunks", len(chunks), "workers", workers))
	}

	jobs := make(chan int)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(jobs)
		for i := range chunks {
			select {
			case jobs <- i:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})
	for range workers {
		g.Go(func() error {
			w := e.newWorker(queries, opts)
			defer w.close()
			for i := range jobs {
				if err := w.scanChunk(gctx, chunks[i], &parts[i]); err != nil {
					return err
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return parts, nil
}

type filterKey struct {
	query int
	lang  ports.Language
}

// worker scans files sequentially with its own parser and filter cache.
type worker struct {
	e       *Engine
	queries []*pattern.Compiled
	opts    scanOptions
	parser  ports.Parser
	filters map[filterKey]ports.LiteralFilter
}

func (e *Engine) newWorker(queries []*pattern.Compiled, opts scanOptions) *worker {
	return &worker{
		e:       e,
		queries: queries,
		opts:    opts,
		filters: make(map[filterKey]ports.LiteralFilter),
	}
}

func (w *worker) close() {
	if w.parser != nil {
		w.parser.Close()
		w.parser = nil
	}
}

func (w *worker) parserFor() ports.Parser {
	if w.parser == nil {
		w.parser = w.e.parsers()
	}
	return w.parser
}

func (w *worker) scanChunk(ctx context.Context, chunk []task, out *partial) error {
	for _, t := range chunk {
		if err := ctx.Err(); err != nil {
			return err
		}
		w.scanFile(ctx, t, out)
	}
	return nil
}

// scanFile processes one file. Whatever happens, the file contributes at
// most one SearchError and its matches are kept only on success.
func (w *worker) scanFile(ctx context.Context, t task, out *partial) {
	content, skip, err := w.load(t)
	if skip {
		out.skipped++
		if w.opts.debug {
			w.e.log.Debug(ctx, "file skipped", slogger.Field("path", t.path))
		}
		return
	}
	out.scanned++
	if err != nil {
		out.errors = append(out.errors, ports.SearchError{Path: t.path, Kind: ports.ErrorKindIO, Message: err.Error()})
		return
	}

	defer func() {
		if r := recover(); r != nil {
			// The parser may be left in a bad state; start over with a new one.
			w.close()
			out.errors = append(out.errors, ports.SearchError{
				Path:    t.path,
				Kind:    ports.ErrorKindInternal,
				Message: fmt.Sprintf("panic: %v", r),
			})
			w.e.log.Error(ctx, "recovered panic while scanning", slogger.Fields2("path", t.path, "stack", string(debug.Stack())))
		}
	}()

	var (
		matches []ports.MatchResult
		serr    *ports.SearchError
	)
	if w.opts.mode.Structural() {
		matches, serr = w.matchStructural(ctx, t, content)
	} else {
		matches, serr = w.matchText(ctx, t, content, w.queries, false)
	}
	if serr != nil {
		out.errors = append(out.errors, *serr)
		if w.opts.debug || serr.Kind != ports.ErrorKindParse {
			w.e.log.Warn(ctx, "file failed", slogger.Fields3("path", t.path, "kind", string(serr.Kind), "message", serr.Message))
		}
	}
	out.matches = append(out.matches, matches...)
}

// load returns the file content. skip is true for files over the size limit.
func (w *worker) load(t task) ([]byte, bool, error) {
	if t.inMemory {
		if int64(len(t.content)) > w.e.maxFileSize {
			return nil, true, nil
		}
		return t.content, false, nil
	}
	info, err := os.Stat(t.path)
	if err != nil {
		return nil, false, err
	}
	if info.IsDir() {
		return nil, false, fmt.Errorf("%s is a directory", t.path)
	}
	if info.Size() > w.e.maxFileSize {
		return nil, true, nil
	}
	content, err := os.ReadFile(t.path)
	return content, false, err
}

// admit runs the literal prefilter for query q in lang.
func (w *worker) admit(ctx context.Context, q *pattern.Compiled, lang ports.Language, path string, content []byte) bool {
	if w.e.filters == nil {
		return true
	}
	key := filterKey{query: q.Index, lang: lang}
	f, ok := w.filters[key]
	if !ok {
		lits := q.Literals(lang)
		if len(lits) > 0 {
			f = w.e.filters(lits, q.CaseInsensitive)
		}
		w.filters[key] = f
	}
	if f == nil || f.ContainsAll(content) {
		return true
	}
	if w.opts.debug {
		w.e.log.Debug(ctx, "prefilter rejected file", slogger.Fields2("path", path, "query_index", q.Index))
	}
	return false
}

func (w *worker) matchStructural(ctx context.Context, t task, content []byte) ([]ports.MatchResult, *ports.SearchError) {
	var todo []*pattern.Compiled
	for _, q := range w.queries {
		if q.For(t.lang) != nil && w.admit(ctx, q, t.lang, t.path, content) {
			todo = append(todo, q)
		}
	}
	if len(todo) == 0 {
		return nil, nil
	}

	tree, err := w.parserFor().Parse(content, t.lang)
	if err != nil {
		serr := &ports.SearchError{Path: t.path, Kind: ports.ErrorKindParse, Message: err.Error()}
		if !w.opts.textFallback {
			return nil, serr
		}
		var fallback []*pattern.Compiled
		for _, q := range todo {
			if q.Text != nil {
				fallback = append(fallback, q)
			}
		}
		matches, terr := w.matchText(ctx, t, content, fallback, true)
		if terr != nil {
			return nil, terr
		}
		return matches, serr
	}

	var matches []ports.MatchResult
	opts := match.Options{
		Mode:            w.opts.mode,
		CaseInsensitive: w.opts.caseInsensitive,
		AttemptBudget:   w.e.attemptBudget,
		FileBudget:      w.e.fileBudget,
	}
	visits := 0
	for _, q := range todo {
		spans, stats, err := match.Find(q.For(t.lang), tree, opts)
		visits += stats.Visits
		if err != nil {
			return nil, budgetError(t.path, err)
		}
		matches = appendSpans(matches, q.Index, t.path, content, spans, false)
		if opts.FileBudget > 0 {
			opts.FileBudget = max(1, w.e.fileBudget-visits)
		}
	}
	if w.opts.debug {
		w.e.log.Debug(ctx, "file matched", slogger.Fields3("path", t.path, "matches", len(matches), "visits", visits))
	}
	return matches, nil
}

func (w *worker) matchText(ctx context.Context, t task, content []byte, queries []*pattern.Compiled, fallback bool) ([]ports.MatchResult, *ports.SearchError) {
	opts := textmatch.Options{
		CaseInsensitive: w.opts.caseInsensitive,
		AttemptBudget:   w.e.attemptBudget,
		FileBudget:      w.e.fileBudget,
	}
	var matches []ports.MatchResult
	for _, q := range queries {
		if q.Text == nil || !w.admit(ctx, q, "", t.path, content) {
			continue
		}
		spans, err := q.Text.Find(content, opts)
		if err != nil {
			return nil, budgetError(t.path, err)
		}
		matches = appendSpans(matches, q.Index, t.path, content, spans, fallback)
	}
	return matches, nil
}

func budgetError(path string, err error) *ports.SearchError {
	kind := ports.ErrorKindInternal
	if errors.Is(err, ports.ErrBudgetExceeded) {
		kind = ports.ErrorKindTimeout
	}
	return &ports.SearchError{Path: path, Kind: kind, Message: err.Error()}
}

func appendSpans(out []ports.MatchResult, query int, path string, content []byte, spans []ports.Span, fallback bool) []ports.MatchResult {
	for _, s := range spans {
		out = append(out, ports.MatchResult{
			QueryIndex: query,
			Path:       path,
			Span:       s,
			Text:       string(content[s.StartByte:s.EndByte]),
			Fallback:   fallback,
		})
	}
	return out
}
