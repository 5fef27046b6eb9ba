package pattern

import (
	"fmt"
	"strings"

	"github.com/corey/shapegrep/internal/domain/wildcard"
	"github.com/corey/shapegrep/internal/ports"
)

const placeholderPrefix = "__sg"

// substitution is a query with its wildcards replaced by placeholder
// identifiers (__sg0__, __sg1__, ...).
type substitution struct {
	query string
	src   string
	holes map[string]wildcard.Occurrence
}

func substitute(query string) (*substitution, error) {
	occ, err := wildcard.Scan(query)
	if err != nil {
		return nil, err
	}
	sub := &substitution{query: query, holes: make(map[string]wildcard.Occurrence, len(occ))}
	var b strings.Builder
	last := 0
	for i, o := range occ {
		ph := fmt.Sprintf("%s%d__", placeholderPrefix, i)
		b.WriteString(query[last:o.Start])
		b.WriteString(ph)
		sub.holes[ph] = o
		last = o.End
	}
	b.WriteString(query[last:])
	sub.src = b.String()
	return sub, nil
}

// restore puts the original wildcard text back into s.
func (s *substitution) restore(text string) string {
	if !strings.Contains(text, placeholderPrefix) {
		return text
	}
	for ph, o := range s.holes {
		text = strings.ReplaceAll(text, ph, o.Text)
	}
	return text
}

func (s *substitution) hasHole(text string) bool {
	if !strings.Contains(text, placeholderPrefix) {
		return false
	}
	for ph := range s.holes {
		if strings.Contains(text, ph) {
			return true
		}
	}
	return false
}

// rewriter turns placeholder leaves into marker nodes and collapses wrappers
// that only hold a marker (`$$$;` is a statement wrapping an identifier).
type rewriter struct {
	sub *substitution
}

func (rw *rewriter) rewrite(n *ports.Node) *ports.Node {
	if n.Leaf {
		return rw.rewriteLeaf(n)
	}
	for i := range n.Fields {
		for j, c := range n.Fields[i].Nodes {
			n.Fields[i].Nodes[j] = rw.rewrite(c)
		}
	}
	if only := soleChild(n); only != nil && only.IsMarker() && rw.sameText(n, only) {
		collapsed := *only
		collapsed.Span = n.Span
		return &collapsed
	}
	return n
}

func (rw *rewriter) rewriteLeaf(n *ports.Node) *ports.Node {
	if !rw.sub.hasHole(n.Value) {
		return n
	}
	if o, ok := rw.sub.holes[n.Value]; ok && !strings.Contains(n.Kind, "string") {
		m := &ports.Marker{}
		switch o.Kind {
		case wildcard.AnyNode:
			m.Kind = ports.MarkerAnyNode
		case wildcard.AnySequence:
			m.Kind = ports.MarkerAnySequence
		case wildcard.Capture:
			m.Kind = ports.MarkerCapture
			m.Name = o.Name
		default:
			m.Kind = ports.MarkerIdentGlob
			m.Name = o.Text
		}
		return &ports.Node{Kind: n.Kind, Leaf: true, Value: o.Text, Span: n.Span, Marker: m}
	}
	restored := rw.sub.restore(n.Value)
	return &ports.Node{
		Kind:   n.Kind,
		Leaf:   true,
		Value:  restored,
		Span:   n.Span,
		Marker: &ports.Marker{Kind: ports.MarkerStringGlob, Name: restored},
	}
}

// sameText reports whether outer's source is inner's source plus only
// whitespace and semicolons.
func (rw *rewriter) sameText(outer, inner *ports.Node) bool {
	src := rw.sub.src
	if outer.Span.EndByte > len(src) || inner.Span.EndByte > len(src) {
		return false
	}
	o := strings.Trim(src[outer.Span.StartByte:outer.Span.EndByte], " \t\r\n;")
	i := strings.Trim(src[inner.Span.StartByte:inner.Span.EndByte], " \t\r\n;")
	return o == i
}

// soleChild returns n's only child when n has exactly one child node and no
// scalar fields.
func soleChild(n *ports.Node) *ports.Node {
	var only *ports.Node
	for _, f := range n.Fields {
		if f.Shape == ports.FieldScalar {
			return nil
		}
		for _, c := range f.Nodes {
			if only != nil {
				return nil
			}
			only = c
		}
	}
	return only
}
