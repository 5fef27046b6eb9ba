//go:build cgo

// Package treesitter implements source parsing using tree-sitter grammars.
// It converts concrete syntax trees into the language-neutral ports.Node form
// consumed by the query compiler and the structural matcher.
//
// JavaScript (with JSX), TypeScript, TSX and Python are compiled in via CGo
// from the official tree-sitter repos.
package treesitter

import (
	"fmt"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/corey/shapegrep/internal/ports"
)

// Parser parses source files into normalized trees. It keeps one
// tree-sitter parser per language and is not safe for concurrent use;
// search workers each own a Parser (see Factory).
type Parser struct {
	defaultLang ports.Language
	grammars    map[ports.Language]*tree_sitter.Language
	parsers     map[ports.Language]*tree_sitter.Parser
}

// Option configures a Parser.
type Option func(*Parser)

// WithDefaultLanguage sets the language used when Parse is called without
// one. Defaults to JavaScript.
func WithDefaultLanguage(lang ports.Language) Option {
	return func(p *Parser) {
		if lang != "" {
			p.defaultLang = lang
		}
	}
}

// NewParser creates a parser. Grammars are loaded lazily on first use.
func NewParser(opts ...Option) *Parser {
	p := &Parser{
		defaultLang: ports.LangJavaScript,
		grammars:    make(map[ports.Language]*tree_sitter.Language),
		parsers:     make(map[ports.Language]*tree_sitter.Parser),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Factory returns a ports.ParserFactory producing independent parsers.
func Factory(opts ...Option) ports.ParserFactory {
	return func() ports.Parser {
		return NewParser(opts...)
	}
}

// DefaultLanguage returns the fallback language.
func (p *Parser) DefaultLanguage() ports.Language { return p.defaultLang }

// Parse parses source as lang (the default language when empty). Sources
// containing syntax errors yield a *ports.ParseError pointing at the first
// ERROR or MISSING node.
func (p *Parser) Parse(source []byte, lang ports.Language) (*ports.Node, error) {
	if lang == "" {
		lang = p.defaultLang
	}
	tsp, err := p.parserFor(lang)
	if err != nil {
		return nil, err
	}

	tree := tsp.Parse(source, nil)
	if tree == nil {
		return nil, &ports.ParseError{Language: lang, Message: "parser produced no tree"}
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		return nil, syntaxError(root, source, lang)
	}
	return normalize(root, source, lang), nil
}

// DetectLanguage maps a path to a language by extension.
func (p *Parser) DetectLanguage(path string) (ports.Language, bool) {
	return ports.LanguageForPath(path)
}

// SupportsExtension returns true if the parser recognizes this file extension.
func (p *Parser) SupportsExtension(ext string) bool {
	return ports.IsSupportedExtension(ext)
}

// Close releases the cached tree-sitter parsers.
func (p *Parser) Close() {
	for lang, tsp := range p.parsers {
		tsp.Close()
		delete(p.parsers, lang)
	}
}

func (p *Parser) parserFor(lang ports.Language) (*tree_sitter.Parser, error) {
	if tsp, ok := p.parsers[lang]; ok {
		return tsp, nil
	}
	grammar, ok := p.grammars[lang]
	if !ok {
		g, err := grammarFor(lang)
		if err != nil {
			return nil, err
		}
		grammar = g
		p.grammars[lang] = g
	}
	tsp := tree_sitter.NewParser()
	if err := tsp.SetLanguage(grammar); err != nil {
		tsp.Close()
		return nil, fmt.Errorf("set language %s: %w", lang, err)
	}
	p.parsers[lang] = tsp
	return tsp, nil
}

// syntaxError locates the first error node in document order.
func syntaxError(root *tree_sitter.Node, source []byte, lang ports.Language) *ports.ParseError {
	bad := firstErrorNode(root)
	if bad == nil {
		return &ports.ParseError{Language: lang, Message: "syntax error"}
	}
	pos := bad.StartPosition()
	pe := &ports.ParseError{
		Language: lang,
		Line:     toInt(pos.Row) + 1,
		Column:   toInt(pos.Column) + 1,
	}
	if bad.IsMissing() {
		pe.Message = fmt.Sprintf("missing %q", bad.Kind())
		return pe
	}
	text := bad.Utf8Text(source)
	if len(text) > 40 {
		text = text[:40] + "..."
	}
	pe.Message = fmt.Sprintf("unexpected %q", text)
	return pe
}

func firstErrorNode(n *tree_sitter.Node) *tree_sitter.Node {
	if n.IsError() || n.IsMissing() {
		return n
	}
	if !n.HasError() {
		return nil
	}
	for i := uint(0); i < n.ChildCount(); i++ {
		c := n.Child(i)
		if c == nil {
			continue
		}
		if bad := firstErrorNode(c); bad != nil {
			return bad
		}
	}
	return nil
}
