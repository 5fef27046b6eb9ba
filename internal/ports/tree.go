// Package ports defines the interfaces (contracts) and shared data types that
// adapters implement and domain packages consume. Domain logic depends only on
// these, never on concrete implementations.
package ports

import (
	"fmt"
	"strings"
)

// Span locates a node in its source. Offsets are byte offsets (end exclusive);
// lines and columns are 1-based.
type Span struct {
	StartByte int `json:"start_byte" msgpack:"sb"`
	EndByte   int `json:"end_byte" msgpack:"eb"`
	StartLine int `json:"start_line" msgpack:"sl"`
	StartCol  int `json:"start_col" msgpack:"sc"`
	EndLine   int `json:"end_line" msgpack:"el"`
	EndCol    int `json:"end_col" msgpack:"ec"`
}

// Contains reports whether o lies within s.
func (s Span) Contains(o Span) bool {
	return o.StartByte >= s.StartByte && o.EndByte <= s.EndByte
}

// FieldShape tells how a field's content is stored.
type FieldShape uint8

const (
	FieldSingle   FieldShape = iota // exactly one node in Nodes
	FieldSequence                   // zero or more ordered nodes in Nodes
	FieldScalar                     // literal token text in Scalar
)

// ChildrenField names the sequence slot holding named children that the
// grammar does not attach to a field.
const ChildrenField = "children"

// KeywordsField names the scalar slot holding unnamed keyword tokens
// (async, static, ...) joined by a single space.
const KeywordsField = "keywords"

// Field is one named slot of a Node.
type Field struct {
	Name   string
	Shape  FieldShape
	Nodes  []*Node
	Scalar string
}

// MarkerKind enumerates pattern wildcards.
type MarkerKind uint8

const (
	MarkerNone MarkerKind = iota
	MarkerAnyNode
	MarkerAnySequence
	MarkerCapture
	MarkerIdentGlob
	MarkerStringGlob
)

func (k MarkerKind) String() string {
	switch k {
	case MarkerAnyNode:
		return "any-node"
	case MarkerAnySequence:
		return "any-sequence"
	case MarkerCapture:
		return "capture"
	case MarkerIdentGlob:
		return "ident-glob"
	case MarkerStringGlob:
		return "string-glob"
	default:
		return "none"
	}
}

// Marker replaces a pattern node. Name is the capture id for MarkerCapture and
// the glob text (with its $$ runs) for the glob kinds.
type Marker struct {
	Kind MarkerKind
	Name string
}

// Node is a language-neutral syntax tree node. Leaves carry Value; interior
// nodes carry Fields in source order. Marker is set only on compiled pattern
// nodes. A Node is never mutated after the parse or compile that produced it.
type Node struct {
	Kind   string
	Value  string
	Leaf   bool
	Fields []Field
	Span   Span
	Marker *Marker
}

// IsMarker reports whether n is a pattern wildcard.
func (n *Node) IsMarker() bool { return n != nil && n.Marker != nil }

// Field returns the field with the given name, or nil.
func (n *Node) Field(name string) *Field {
	for i := range n.Fields {
		if n.Fields[i].Name == name {
			return &n.Fields[i]
		}
	}
	return nil
}

// Children returns every child node across all node-bearing fields, in order.
func (n *Node) Children() []*Node {
	var out []*Node
	for i := range n.Fields {
		out = append(out, n.Fields[i].Nodes...)
	}
	return out
}

// Walk visits n and its descendants in pre-order. Returning false from fn
// skips the node's subtree.
func (n *Node) Walk(fn func(*Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	for i := range n.Fields {
		for _, c := range n.Fields[i].Nodes {
			c.Walk(fn)
		}
	}
}

// IsIdentifierKind reports whether kind names an identifier-like leaf in any
// supported grammar (identifier, property_identifier, type_identifier, ...).
func IsIdentifierKind(kind string) bool {
	return kind == "identifier" || strings.HasSuffix(kind, "_identifier") ||
		strings.HasPrefix(kind, "shorthand_property_identifier")
}

// Sexp renders n as an S-expression for debug traces and tests.
func (n *Node) Sexp() string {
	var b strings.Builder
	n.sexp(&b)
	return b.String()
}

func (n *Node) sexp(b *strings.Builder) {
	if n == nil {
		b.WriteString("nil")
		return
	}
	if n.Marker != nil {
		fmt.Fprintf(b, "($%s", n.Marker.Kind)
		if n.Marker.Name != "" {
			fmt.Fprintf(b, " %q", n.Marker.Name)
		}
		b.WriteByte(')')
		return
	}
	b.WriteByte('(')
	b.WriteString(n.Kind)
	if n.Leaf {
		fmt.Fprintf(b, " %q)", n.Value)
		return
	}
	for _, f := range n.Fields {
		b.WriteByte(' ')
		b.WriteString(f.Name)
		b.WriteByte(':')
		switch f.Shape {
		case FieldScalar:
			fmt.Fprintf(b, "%q", f.Scalar)
		case FieldSingle:
			f.Nodes[0].sexp(b)
		default:
			b.WriteByte('[')
			for i, c := range f.Nodes {
				if i > 0 {
					b.WriteByte(' ')
				}
				c.sexp(b)
			}
			b.WriteByte(']')
		}
	}
	b.WriteByte(')')
}
