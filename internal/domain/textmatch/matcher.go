// Package textmatch matches queries against raw source as token sequences.
// It serves text mode and the fallback for files that fail to parse.
package textmatch

import (
	"errors"
	"fmt"

	"github.com/corey/shapegrep/internal/domain/wildcard"
	"github.com/corey/shapegrep/internal/ports"
)

// ErrNoLiteral rejects queries made only of wildcards.
var ErrNoLiteral = errors.New("query has no literal token")

type elemKind uint8

const (
	elemLiteral elemKind = iota
	elemAnyNode          // $$: one or more tokens, bracket-balanced
	elemAnySeq           // $$$: zero or more tokens
	elemCapture          // $$name: one word token, bound
	elemGlob             // use$$: one word token matching the glob
)

type elem struct {
	kind elemKind
	text string
	glob wildcard.GlobPattern
}

// Query is a compiled text query. It is read-only and safe for concurrent use.
type Query struct {
	raw      string
	elems    []elem
	literals []string
}

// Compile tokenizes a query and classifies its wildcards.
func Compile(query string) (*Query, error) {
	q := &Query{raw: query}
	hasLiteral := false
	for _, tok := range Tokenize([]byte(query)) {
		kind, name, err := wildcard.Classify(tok.Text)
		if err != nil {
			return nil, err
		}
		switch kind {
		case wildcard.AnyNode:
			q.elems = append(q.elems, elem{kind: elemAnyNode})
		case wildcard.AnySequence:
			q.elems = append(q.elems, elem{kind: elemAnySeq})
		case wildcard.Capture:
			q.elems = append(q.elems, elem{kind: elemCapture, text: name})
		case wildcard.Glob:
			g := wildcard.CompileGlob(tok.Text)
			q.elems = append(q.elems, elem{kind: elemGlob, text: tok.Text, glob: g})
			q.literals = append(q.literals, g.Literals()...)
			hasLiteral = true
		default:
			q.elems = append(q.elems, elem{kind: elemLiteral, text: tok.Text})
			if tok.IsWord() {
				q.literals = append(q.literals, tok.Text)
			}
			hasLiteral = true
		}
	}
	if !hasLiteral {
		return nil, fmt.Errorf("%w: %q", ErrNoLiteral, query)
	}
	return q, nil
}

// String returns the query as written.
func (q *Query) String() string { return q.raw }

// Literals returns the word literals every match must contain.
func (q *Query) Literals() []string { return q.literals }

// Options tunes a Find call. Zero budgets mean unlimited.
type Options struct {
	CaseInsensitive bool
	AttemptBudget   int
	FileBudget      int
}

// Find returns leftmost, non-overlapping matches in src. Wildcards are lazy:
// the shortest extension that lets the rest of the query match wins.
// When a budget runs out the matches found so far are returned together with
// ports.ErrBudgetExceeded.
func (q *Query) Find(src []byte, opts Options) ([]ports.Span, error) {
	tokens := Tokenize(src)
	m := &matcher{q: q, tokens: tokens, opts: opts, bound: make(map[string]string)}
	var spans []ports.Span
	for start := 0; start < len(tokens); {
		m.attempt = 0
		end, ok := m.match(0, start)
		if m.err != nil {
			return spans, m.err
		}
		if !ok || end == start {
			start++
			continue
		}
		first, last := tokens[start], tokens[end-1]
		spans = append(spans, ports.Span{
			StartByte: first.Start,
			EndByte:   last.End,
			StartLine: first.Line,
			StartCol:  first.Col,
			EndLine:   last.Line,
			EndCol:    last.Col + (last.End - last.Start),
		})
		start = end
	}
	return spans, nil
}

type matcher struct {
	q       *Query
	tokens  []Token
	opts    Options
	bound   map[string]string
	attempt int
	total   int
	err     error
}

func (m *matcher) tick() bool {
	m.attempt++
	m.total++
	if (m.opts.AttemptBudget > 0 && m.attempt > m.opts.AttemptBudget) ||
		(m.opts.FileBudget > 0 && m.total > m.opts.FileBudget) {
		m.err = ports.ErrBudgetExceeded
		return false
	}
	return true
}

// match tries elems[pi:] at token ti and returns the end token index.
func (m *matcher) match(pi, ti int) (int, bool) {
	if m.err != nil || !m.tick() {
		return 0, false
	}
	if pi == len(m.q.elems) {
		return ti, true
	}
	e := m.q.elems[pi]
	n := len(m.tokens)
	fold := m.opts.CaseInsensitive

	switch e.kind {
	case elemLiteral:
		if ti < n && wildcard.Equal(m.tokens[ti].Text, e.text, fold) {
			return m.match(pi+1, ti+1)
		}
		return 0, false

	case elemGlob:
		if ti < n && m.tokens[ti].IsWord() && e.glob.Match(m.tokens[ti].Text, fold) {
			return m.match(pi+1, ti+1)
		}
		return 0, false

	case elemCapture:
		if ti >= n || !m.tokens[ti].IsWord() {
			return 0, false
		}
		text := m.tokens[ti].Text
		if prev, ok := m.bound[e.text]; ok {
			if !wildcard.Equal(prev, text, fold) {
				return 0, false
			}
			return m.match(pi+1, ti+1)
		}
		m.bound[e.text] = text
		end, ok := m.match(pi+1, ti+1)
		delete(m.bound, e.text)
		return end, ok

	case elemAnySeq:
		for k := ti; k <= n; k++ {
			if end, ok := m.match(pi+1, k); ok {
				return end, true
			}
			if m.err != nil {
				return 0, false
			}
		}
		return 0, false

	case elemAnyNode:
		// Bounded by bracket balance, a top-level ';' and the literal that
		// follows it in the query, never by line breaks.
		stop := m.nextLiteral(pi)
		depth := 0
		for k := ti; k < n; k++ {
			tok := m.tokens[k].Text
			if k > ti && depth == 0 && stop != "" && wildcard.Equal(tok, stop, fold) {
				return 0, false
			}
			switch {
			case isOpen(tok):
				depth++
			case isClose(tok):
				if depth == 0 {
					return 0, false
				}
				depth--
			case tok == ";" && depth == 0:
				return 0, false
			}
			if depth > 0 {
				continue
			}
			if end, ok := m.match(pi+1, k+1); ok {
				return end, true
			}
			if m.err != nil {
				return 0, false
			}
		}
		return 0, false
	}
	return 0, false
}

// nextLiteral returns the literal right after elems[pi], or "".
func (m *matcher) nextLiteral(pi int) string {
	if pi+1 < len(m.q.elems) && m.q.elems[pi+1].kind == elemLiteral {
		return m.q.elems[pi+1].text
	}
	return ""
}

func isOpen(tok string) bool  { return tok == "(" || tok == "[" || tok == "{" }
func isClose(tok string) bool { return tok == ")" || tok == "]" || tok == "}" }
