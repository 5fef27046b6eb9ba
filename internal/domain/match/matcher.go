// Package match unifies compiled patterns with normalized syntax trees.
//
// Matching is recursive backtracking. Capture bindings live on a trail that
// is unwound whenever a branch fails, so sibling alternatives never see each
// other's bindings. A visit budget bounds the work done per attempt and per
// file; running out surfaces as ports.ErrBudgetExceeded.
package match

import (
	"strings"

	"github.com/corey/shapegrep/internal/domain/pattern"
	"github.com/corey/shapegrep/internal/domain/wildcard"
	"github.com/corey/shapegrep/internal/ports"
)

// Options tunes a Find call. Zero budgets mean unlimited.
type Options struct {
	Mode            ports.Mode
	CaseInsensitive bool
	AttemptBudget   int
	FileBudget      int
}

// Stats reports the work done by a Find call.
type Stats struct {
	Attempts int
	Visits   int
}

// Find returns the span of every match of p in tree, in pre-order of the
// matched node (or of the first node of a matched run). Nested matches are
// all reported. On budget exhaustion the matches found so far are returned
// with ports.ErrBudgetExceeded.
func Find(p *pattern.Pattern, tree *ports.Node, opts Options) ([]ports.Span, Stats, error) {
	m := newMatcher(opts)
	var spans []ports.Span

	if !p.IsSequence() {
		root := p.Root
		tree.Walk(func(c *ports.Node) bool {
			if m.err != nil {
				return false
			}
			// Glob roots match leaves of several kinds; marker() filters them.
			if root.Marker == nil && c.Kind != root.Kind {
				return true
			}
			m.reset()
			if m.node(root, c) {
				spans = append(spans, c.Span)
			}
			return true
		})
		return spans, m.stats, m.err
	}

	tree.Walk(func(c *ports.Node) bool {
		if m.err != nil {
			return false
		}
		for i := range c.Fields {
			f := &c.Fields[i]
			if f.Shape != ports.FieldSequence || len(f.Nodes) == 0 {
				continue
			}
			if m.include {
				spans = append(spans, m.findInclude(p.Sequence, f.Nodes)...)
			} else {
				spans = append(spans, m.findExact(p.Sequence, f.Nodes)...)
			}
		}
		return true
	})
	return spans, m.stats, m.err
}

type matcher struct {
	opts     Options
	include  bool
	fold     bool
	bindings map[string]string
	trail    []string
	globs    map[string]wildcard.GlobPattern
	attempt  int
	stats    Stats
	err      error
}

func newMatcher(opts Options) *matcher {
	return &matcher{
		opts:     opts,
		include:  opts.Mode == ports.ModeInclude,
		fold:     opts.CaseInsensitive,
		bindings: make(map[string]string),
		globs:    make(map[string]wildcard.GlobPattern),
	}
}

// reset starts a new match attempt.
func (m *matcher) reset() {
	m.attempt = 0
	m.stats.Attempts++
	m.undo(0)
}

func (m *matcher) tick() bool {
	if m.err != nil {
		return false
	}
	m.attempt++
	m.stats.Visits++
	if (m.opts.AttemptBudget > 0 && m.attempt > m.opts.AttemptBudget) ||
		(m.opts.FileBudget > 0 && m.stats.Visits > m.opts.FileBudget) {
		m.err = ports.ErrBudgetExceeded
		return false
	}
	return true
}

func (m *matcher) mark() int { return len(m.trail) }

func (m *matcher) undo(mark int) {
	for i := len(m.trail) - 1; i >= mark; i-- {
		delete(m.bindings, m.trail[i])
	}
	m.trail = m.trail[:mark]
}

// node unifies pattern node p with candidate c.
func (m *matcher) node(p, c *ports.Node) bool {
	if !m.tick() {
		return false
	}
	if p.Marker != nil {
		return m.marker(p, c)
	}
	if p.Kind != c.Kind || p.Leaf != c.Leaf {
		return false
	}
	if p.Leaf {
		return wildcard.Equal(p.Value, c.Value, m.fold && foldable(p.Kind))
	}
	return m.fields(p, c)
}

func (m *matcher) marker(p, c *ports.Node) bool {
	switch p.Marker.Kind {
	case ports.MarkerAnyNode, ports.MarkerAnySequence:
		return true
	case ports.MarkerCapture:
		if !c.Leaf || !ports.IsIdentifierKind(c.Kind) {
			return false
		}
		if prev, ok := m.bindings[p.Marker.Name]; ok {
			return wildcard.Equal(prev, c.Value, m.fold)
		}
		m.bindings[p.Marker.Name] = c.Value
		m.trail = append(m.trail, p.Marker.Name)
		return true
	case ports.MarkerIdentGlob:
		return c.Leaf && ports.IsIdentifierKind(c.Kind) && m.glob(p.Marker.Name).Match(c.Value, m.fold)
	case ports.MarkerStringGlob:
		return c.Leaf && c.Kind == p.Kind && m.glob(p.Marker.Name).Match(c.Value, m.fold)
	}
	return false
}

func (m *matcher) glob(s string) wildcard.GlobPattern {
	g, ok := m.globs[s]
	if !ok {
		g = wildcard.CompileGlob(s)
		m.globs[s] = g
	}
	return g
}

func (m *matcher) fields(p, c *ports.Node) bool {
	for i := range p.Fields {
		pf := &p.Fields[i]
		cf := c.Field(pf.Name)
		if cf == nil {
			if pf.Shape == ports.FieldSequence && onlySequenceMarkers(pf.Nodes) {
				continue
			}
			return false
		}
		if pf.Shape == ports.FieldScalar || cf.Shape == ports.FieldScalar {
			if pf.Shape != cf.Shape || pf.Scalar != cf.Scalar {
				return false
			}
			continue
		}
		if pf.Shape == ports.FieldSingle && cf.Shape == ports.FieldSingle {
			if !m.node(pf.Nodes[0], cf.Nodes[0]) {
				return false
			}
			continue
		}
		if m.include {
			if _, ok := m.seqInclude(pf.Nodes, cf.Nodes); !ok {
				return false
			}
		} else if !m.seqExact(pf.Nodes, cf.Nodes) {
			return false
		}
	}
	if m.include {
		return true
	}
	for i := range c.Fields {
		cf := &c.Fields[i]
		if p.Field(cf.Name) == nil {
			return false
		}
	}
	return true
}

// seqExact matches ps against all of cs. $$$ tries the longest run first.
func (m *matcher) seqExact(ps, cs []*ports.Node) bool {
	if len(ps) == 0 {
		return len(cs) == 0
	}
	p := ps[0]
	if isSequenceMarker(p) {
		rest := concreteCount(ps[1:])
		for k := len(cs) - rest; k >= 0; k-- {
			mark := m.mark()
			if m.seqExact(ps[1:], cs[k:]) {
				return true
			}
			m.undo(mark)
			if m.err != nil {
				return false
			}
		}
		return false
	}
	if len(cs) < concreteCount(ps) {
		return false
	}
	mark := m.mark()
	if m.node(p, cs[0]) && m.seqExact(ps[1:], cs[1:]) {
		return true
	}
	m.undo(mark)
	return false
}

// seqInclude matches ps as an ordered subsequence of cs. It returns the
// index of the last candidate consumed, or -1 when none was.
func (m *matcher) seqInclude(ps, cs []*ports.Node) (int, bool) {
	if len(ps) == 0 {
		return -1, true
	}
	p := ps[0]
	if isSequenceMarker(p) {
		return m.seqInclude(ps[1:], cs)
	}
	for j := range cs {
		if len(cs)-j < concreteCount(ps) {
			return -1, false
		}
		mark := m.mark()
		if m.node(p, cs[j]) {
			if last, ok := m.seqInclude(ps[1:], cs[j+1:]); ok {
				if last < 0 {
					return j, true
				}
				return j + 1 + last, true
			}
		}
		m.undo(mark)
		if m.err != nil {
			return -1, false
		}
	}
	return -1, false
}

// seqPrefix matches ps against a prefix of cs and returns its length. Each
// $$$ tries the longest run first, so the first success is the greedy one.
func (m *matcher) seqPrefix(ps, cs []*ports.Node) (int, bool) {
	if len(ps) == 0 {
		return 0, true
	}
	p := ps[0]
	rest := concreteCount(ps[1:])
	if isSequenceMarker(p) {
		if len(ps) == 1 {
			return len(cs), true
		}
		for k := len(cs) - rest; k >= 0; k-- {
			mark := m.mark()
			if n, ok := m.seqPrefix(ps[1:], cs[k:]); ok {
				return k + n, true
			}
			m.undo(mark)
			if m.err != nil {
				return 0, false
			}
		}
		return 0, false
	}
	if len(cs) < 1+rest {
		return 0, false
	}
	mark := m.mark()
	if m.node(p, cs[0]) {
		if n, ok := m.seqPrefix(ps[1:], cs[1:]); ok {
			return 1 + n, true
		}
	}
	m.undo(mark)
	return 0, false
}

// findExact finds contiguous sibling runs equal to ps. Each start position
// takes its longest matching run; runs do not overlap.
func (m *matcher) findExact(ps, cs []*ports.Node) []ports.Span {
	var spans []ports.Span
	leading := isSequenceMarker(ps[0])
	for s := 0; s < len(cs) && m.err == nil; {
		if !leading && !m.startsLike(ps[0], cs[s]) {
			s++
			continue
		}
		m.reset()
		n, ok := m.seqPrefix(ps, cs[s:])
		if m.err != nil {
			return spans
		}
		if !ok || n == 0 {
			// A leading $$$ can absorb cs[s], so no later start matches
			// when this one does not.
			if leading {
				break
			}
			s++
			continue
		}
		spans = append(spans, cover(cs[s], cs[s+n-1]))
		s += n
	}
	return spans
}

// findInclude finds ordered subsequences matching ps. The span runs from the
// first to the last matched concrete sibling; leading and trailing $$$ add
// nothing to it.
func (m *matcher) findInclude(ps, cs []*ports.Node) []ports.Span {
	lead := 0
	for lead < len(ps) && isSequenceMarker(ps[lead]) {
		lead++
	}
	first, rest := ps[lead], ps[lead+1:]

	var spans []ports.Span
	for s := 0; s < len(cs) && m.err == nil; s++ {
		if !m.startsLike(first, cs[s]) {
			continue
		}
		m.reset()
		if !m.node(first, cs[s]) {
			continue
		}
		last, ok := m.seqInclude(rest, cs[s+1:])
		if !ok {
			continue
		}
		end := s
		if last >= 0 {
			end = s + 1 + last
		}
		spans = append(spans, cover(cs[s], cs[end]))
		s = end
	}
	return spans
}

// startsLike is a cheap pre-check before a full attempt.
func (m *matcher) startsLike(p, c *ports.Node) bool {
	return p.Marker != nil || p.Kind == c.Kind
}

func isSequenceMarker(n *ports.Node) bool {
	return n.Marker != nil && n.Marker.Kind == ports.MarkerAnySequence
}

func onlySequenceMarkers(ns []*ports.Node) bool {
	for _, n := range ns {
		if !isSequenceMarker(n) {
			return false
		}
	}
	return true
}

func concreteCount(ns []*ports.Node) int {
	n := 0
	for _, x := range ns {
		if !isSequenceMarker(x) {
			n++
		}
	}
	return n
}

// foldable reports whether case-insensitive mode applies to leaves of kind.
func foldable(kind string) bool {
	return ports.IsIdentifierKind(kind) || strings.Contains(kind, "string") || kind == "jsx_text"
}

func cover(first, last *ports.Node) ports.Span {
	return ports.Span{
		StartByte: first.Span.StartByte,
		EndByte:   last.Span.EndByte,
		StartLine: first.Span.StartLine,
		StartCol:  first.Span.StartCol,
		EndLine:   last.Span.EndLine,
		EndCol:    last.Span.EndCol,
	}
}
