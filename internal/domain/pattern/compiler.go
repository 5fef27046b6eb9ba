// Package pattern compiles query snippets into pattern trees.
//
// A query is parsed with the same grammar as the code it will be matched
// against. Wildcards are not valid syntax in every language ($ is not a Python
// identifier character), so they are first replaced by placeholder
// identifiers, the result is parsed, and placeholder leaves are rewritten
// into ports.Marker nodes.
package pattern

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/corey/shapegrep/internal/domain/textmatch"
	"github.com/corey/shapegrep/internal/domain/wildcard"
	"github.com/corey/shapegrep/internal/ports"
)

// ErrNoParser is returned when a structural query is compiled without a parser.
var ErrNoParser = errors.New("structural queries need a parser")

// blockKinds are statement-list containers. In include mode a block query
// matches any run of statements, wherever the list lives.
var blockKinds = map[string]bool{
	"statement_block": true,
	"block":           true,
}

// Pattern is a query compiled for one language. Exactly one of Root and
// Sequence is set. A Pattern is read-only once built.
type Pattern struct {
	Lang     ports.Language
	Root     *ports.Node
	Sequence []*ports.Node
	Literals []string
}

// IsSequence reports whether the pattern matches sibling runs rather than a
// single node.
func (p *Pattern) IsSequence() bool { return p.Root == nil }

// Sexp renders the pattern for debug traces.
func (p *Pattern) Sexp() string {
	if p.Root != nil {
		return p.Root.Sexp()
	}
	parts := make([]string, len(p.Sequence))
	for i, n := range p.Sequence {
		parts[i] = n.Sexp()
	}
	return "[" + strings.Join(parts, " ") + "]"
}

// Compiled is one query compiled for every target language.
type Compiled struct {
	Index           int
	Query           string
	Mode            ports.Mode
	CaseInsensitive bool
	Patterns        map[ports.Language]*Pattern
	// Text is set in text mode, and in structural modes when a text fallback
	// was requested and the query is a valid text query.
	Text *textmatch.Query
}

// For returns the pattern for lang, or nil.
func (c *Compiled) For(lang ports.Language) *Pattern {
	return c.Patterns[lang]
}

// Literals returns the words any file must contain for the query to match
// in lang. An empty result disables prefiltering.
func (c *Compiled) Literals(lang ports.Language) []string {
	if c.Mode == ports.ModeText {
		if c.Text == nil {
			return nil
		}
		return usableLiterals(c.Text.Literals(), c.CaseInsensitive)
	}
	if p := c.Patterns[lang]; p != nil {
		return p.Literals
	}
	return nil
}

// Options controls compilation.
type Options struct {
	Mode            ports.Mode
	CaseInsensitive bool
	// Languages to compile structural queries for. Empty means all.
	Languages    []ports.Language
	TextFallback bool
}

// Compiler turns query strings into Compiled patterns.
type Compiler struct {
	parser ports.Parser
}

// NewCompiler creates a compiler. parser may be nil when only text mode is
// used.
func NewCompiler(parser ports.Parser) *Compiler {
	return &Compiler{parser: parser}
}

// CompileAll compiles every query. Queries that fail are reported as
// ports.QueryError and left out of the result; the others are unaffected.
func (c *Compiler) CompileAll(queries []string, opts Options) ([]*Compiled, []ports.QueryError) {
	var (
		out  []*Compiled
		errs []ports.QueryError
	)
	for i, q := range queries {
		compiled, err := c.Compile(i, q, opts)
		if err != nil {
			errs = append(errs, ports.QueryError{QueryIndex: i, Query: q, Message: err.Error()})
			continue
		}
		out = append(out, compiled)
	}
	return out, errs
}

// Compile compiles a single query.
func (c *Compiler) Compile(index int, query string, opts Options) (*Compiled, error) {
	compiled := &Compiled{
		Index:           index,
		Query:           query,
		Mode:            opts.Mode,
		CaseInsensitive: opts.CaseInsensitive,
		Patterns:        make(map[ports.Language]*Pattern),
	}

	if opts.Mode == ports.ModeText {
		tq, err := textmatch.Compile(query)
		if err != nil {
			return nil, &InvalidPatternError{Query: query, Reason: err.Error()}
		}
		compiled.Text = tq
		return compiled, nil
	}

	if c.parser == nil {
		return nil, ErrNoParser
	}
	sub, err := substitute(query)
	if err != nil {
		return nil, &InvalidPatternError{Query: query, Reason: err.Error()}
	}

	langs := opts.Languages
	if len(langs) == 0 {
		langs = ports.Languages
	}
	parseErrs := make(map[ports.Language]error)
	for _, lang := range langs {
		p, err := c.compileFor(sub, lang, opts)
		if err != nil {
			var invalid *InvalidPatternError
			if errors.As(err, &invalid) {
				return nil, err
			}
			parseErrs[lang] = err
			continue
		}
		compiled.Patterns[lang] = p
	}
	if len(compiled.Patterns) == 0 {
		return nil, &QueryParseError{Query: query, Errors: parseErrs}
	}

	if opts.TextFallback {
		if tq, err := textmatch.Compile(query); err == nil {
			compiled.Text = tq
		}
	}
	return compiled, nil
}

// DetectLanguage returns the first language (in ports.Languages order) the
// query parses in.
func (c *Compiler) DetectLanguage(query string) (ports.Language, error) {
	if c.parser == nil {
		return "", ErrNoParser
	}
	sub, err := substitute(query)
	if err != nil {
		return "", &InvalidPatternError{Query: query, Reason: err.Error()}
	}
	errs := make(map[ports.Language]error)
	for _, lang := range ports.Languages {
		if _, err := c.parser.Parse([]byte(sub.src), lang); err != nil {
			errs[lang] = err
			continue
		}
		return lang, nil
	}
	return "", &QueryParseError{Query: query, Errors: errs}
}

func (c *Compiler) compileFor(sub *substitution, lang ports.Language, opts Options) (*Pattern, error) {
	root, err := c.parser.Parse([]byte(sub.src), lang)
	if err != nil {
		return nil, err
	}
	rw := &rewriter{sub: sub}
	root = rw.rewrite(root)
	p := &Pattern{Lang: lang}
	if root.IsMarker() {
		if !isGlob(root) {
			return nil, &InvalidPatternError{Query: sub.query, Wildcard: root.Value, Reason: "cannot be the whole pattern"}
		}
		p.Root = root
		p.Literals = literals(root, opts.CaseInsensitive)
		return p, nil
	}
	if err := validate(sub.query, root); err != nil {
		return nil, err
	}

	stmts := statements(root)
	switch len(stmts) {
	case 0:
		return nil, &InvalidPatternError{Query: sub.query, Reason: "query is empty"}
	case 1:
		p.Root = unwrapExpression(stmts[0])
		if p.Root.IsMarker() && !isGlob(p.Root) {
			return nil, &InvalidPatternError{Query: sub.query, Wildcard: p.Root.Value, Reason: "cannot be the whole pattern"}
		}
		if opts.Mode == ports.ModeInclude && blockKinds[p.Root.Kind] {
			if body := statements(p.Root); len(body) > 0 {
				p.Root = nil
				p.Sequence = body
			}
		}
	default:
		p.Sequence = stmts
	}
	if p.Sequence != nil && allMarkers(p.Sequence) {
		return nil, &InvalidPatternError{Query: sub.query, Reason: "pattern has no concrete statement"}
	}
	p.Literals = literals(root, opts.CaseInsensitive)
	return p, nil
}

func statements(n *ports.Node) []*ports.Node {
	if f := n.Field(ports.ChildrenField); f != nil {
		return f.Nodes
	}
	return nil
}

// unwrapExpression turns `expr;` into `expr` so that a single-expression
// query matches wherever the expression occurs.
func unwrapExpression(n *ports.Node) *ports.Node {
	if n.Kind != "expression_statement" || len(n.Fields) != 1 {
		return n
	}
	f := n.Fields[0]
	if f.Shape == ports.FieldScalar || len(f.Nodes) != 1 {
		return n
	}
	return f.Nodes[0]
}

// isGlob reports whether n is an identifier or string glob. Those may stand
// alone as a query; the other markers match too much to.
func isGlob(n *ports.Node) bool {
	return n.IsMarker() && (n.Marker.Kind == ports.MarkerIdentGlob || n.Marker.Kind == ports.MarkerStringGlob)
}

func allMarkers(nodes []*ports.Node) bool {
	for _, n := range nodes {
		if !n.IsMarker() {
			return false
		}
	}
	return true
}

// validate rejects $$$ outside sequence slots.
func validate(query string, root *ports.Node) error {
	var err error
	root.Walk(func(n *ports.Node) bool {
		if err != nil {
			return false
		}
		for _, f := range n.Fields {
			if f.Shape != ports.FieldSingle {
				continue
			}
			if c := f.Nodes[0]; c.IsMarker() && c.Marker.Kind == ports.MarkerAnySequence {
				err = &InvalidPatternError{
					Query:    query,
					Wildcard: "$$$",
					Reason:   fmt.Sprintf("is only allowed in a list, not in %s.%s", n.Kind, f.Name),
				}
				return false
			}
		}
		return true
	})
	return err
}

// literals collects identifier text every match must contain.
func literals(root *ports.Node, caseInsensitive bool) []string {
	seen := make(map[string]bool)
	root.Walk(func(n *ports.Node) bool {
		switch {
		case n.IsMarker():
			if n.Marker.Kind == ports.MarkerIdentGlob {
				for _, lit := range wildcard.CompileGlob(n.Marker.Name).Literals() {
					seen[lit] = true
				}
			}
		case n.Leaf && ports.IsIdentifierKind(n.Kind):
			seen[n.Value] = true
		}
		return true
	})
	out := make([]string, 0, len(seen))
	for lit := range seen {
		out = append(out, lit)
	}
	sort.Strings(out)
	return usableLiterals(out, caseInsensitive)
}

// usableLiterals drops literals too short to be selective, and non-ASCII
// literals when the prefilter folds case (it folds ASCII only).
func usableLiterals(lits []string, caseInsensitive bool) []string {
	var out []string
	for _, lit := range lits {
		if len(lit) < 2 {
			continue
		}
		if caseInsensitive && !isASCII(lit) {
			continue
		}
		out = append(out, lit)
	}
	return out
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}
