//go:build cgo

package treesitter

import (
	"strings"
	"unicode"

	"fortio.org/safecast"
	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/corey/shapegrep/internal/ports"
)

// normalize converts a tree-sitter CST into a ports.Node tree.
//
// Named children become node fields (their grammar field name, or the
// "children" sequence when they have none). Anonymous children with a field
// name (operators, declaration kinds) become scalars; unnamed keyword tokens
// are joined into the "keywords" scalar; punctuation and extras are dropped.
// Parentheses around a single expression are dropped as well, so `(a + b)`
// and `a + b` normalize to the same tree.
func normalize(root *tree_sitter.Node, source []byte, lang ports.Language) *ports.Node {
	ctx := &walkContext{source: source, rules: rulesFor(lang)}
	return ctx.walk(root)
}

type walkContext struct {
	source []byte
	rules  grammarRules
}

func (ctx *walkContext) walk(n *tree_sitter.Node) *ports.Node {
	kind := n.Kind()
	if ctx.rules.groupKinds[kind] {
		if inner := ctx.soleChild(n); inner != nil {
			return ctx.walk(inner)
		}
	}
	out := &ports.Node{Kind: kind, Span: span(n)}

	if ctx.rules.stringKinds[kind] {
		out.Leaf = true
		out.Value = ctx.stringContent(n)
		return out
	}
	if n.ChildCount() == 0 {
		out.Leaf = true
		out.Value = n.Utf8Text(ctx.source)
		return out
	}

	var keywords []string
	for i := uint(0); i < n.ChildCount(); i++ {
		child := n.Child(i)
		if child == nil || child.IsExtra() {
			continue
		}
		field := n.FieldNameForChild(safecast.MustConv[uint32](i))
		if !child.IsNamed() {
			switch {
			case field != "":
				addScalar(out, field, child.Kind())
			case isKeyword(child.Kind()):
				keywords = append(keywords, child.Kind())
			}
			continue
		}
		if ctx.rules.dropKinds[child.Kind()] {
			continue
		}
		if field == "" {
			field = ports.ChildrenField
		}
		addNode(out, field, ctx.walk(child))
	}
	if len(keywords) > 0 {
		addScalar(out, ports.KeywordsField, strings.Join(keywords, " "))
	}
	return out
}

// soleChild returns n's only meaningful named child, or nil.
func (ctx *walkContext) soleChild(n *tree_sitter.Node) *tree_sitter.Node {
	var inner *tree_sitter.Node
	for i := uint(0); i < n.NamedChildCount(); i++ {
		c := n.NamedChild(i)
		if c == nil || c.IsExtra() || ctx.rules.dropKinds[c.Kind()] {
			continue
		}
		if inner != nil {
			return nil
		}
		inner = c
	}
	return inner
}

// stringContent returns the text between a string literal's delimiters.
func (ctx *walkContext) stringContent(n *tree_sitter.Node) string {
	start, end := n.StartByte(), n.EndByte()
	first, last := uint(0), n.ChildCount()
	if last > 0 {
		// Python: string_start / string_end carry prefix and quotes.
		if c := n.Child(first); c != nil && (c.Kind() == "string_start" || !c.IsNamed()) {
			start = c.EndByte()
		}
		if c := n.Child(last - 1); c != nil && (c.Kind() == "string_end" || !c.IsNamed()) && c.StartByte() >= start {
			end = c.StartByte()
		}
	} else if end-start >= 2 {
		start++
		end--
	}
	if start > end {
		return ""
	}
	return string(ctx.source[start:end])
}

func addNode(n *ports.Node, name string, child *ports.Node) {
	if f := n.Field(name); f != nil {
		f.Nodes = append(f.Nodes, child)
		f.Shape = ports.FieldSequence
		return
	}
	shape := ports.FieldSingle
	if name == ports.ChildrenField {
		shape = ports.FieldSequence
	}
	n.Fields = append(n.Fields, ports.Field{Name: name, Shape: shape, Nodes: []*ports.Node{child}})
}

func addScalar(n *ports.Node, name, value string) {
	if f := n.Field(name); f != nil {
		f.Scalar += " " + value
		return
	}
	n.Fields = append(n.Fields, ports.Field{Name: name, Shape: ports.FieldScalar, Scalar: value})
}

// isKeyword reports whether an anonymous token is a word (async, new, def)
// rather than punctuation.
func isKeyword(tok string) bool {
	if tok == "" {
		return false
	}
	for _, r := range tok {
		if !unicode.IsLetter(r) && r != '_' {
			return false
		}
	}
	return true
}

func span(n *tree_sitter.Node) ports.Span {
	sp, ep := n.StartPosition(), n.EndPosition()
	return ports.Span{
		StartByte: toInt(n.StartByte()),
		EndByte:   toInt(n.EndByte()),
		StartLine: toInt(sp.Row) + 1,
		StartCol:  toInt(sp.Column) + 1,
		EndLine:   toInt(ep.Row) + 1,
		EndCol:    toInt(ep.Column) + 1,
	}
}

func toInt(v uint) int {
	return safecast.MustConv[int](v)
}
