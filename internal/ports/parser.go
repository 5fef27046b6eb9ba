package ports

import "fmt"

// Parser turns source text into a normalized syntax tree.
// The concrete implementation (tree-sitter) lives in internal/adapters/treesitter.
// A Parser is not safe for concurrent use: each search worker owns one,
// obtained from a ParserFactory. When the factory is nil (non-cgo builds),
// only text mode is available.
type Parser interface {
	// Parse parses source as lang. Syntax errors are returned as *ParseError;
	// the input is never modified.
	Parse(source []byte, lang Language) (*Node, error)

	// DetectLanguage maps a file path to a language by extension. The second
	// result is false when the extension is unknown.
	DetectLanguage(path string) (Language, bool)

	// SupportsExtension returns true if the parser can handle files with this
	// extension (e.g., ".js", ".py"). Extension includes the leading dot.
	SupportsExtension(ext string) bool

	// Close releases grammar resources held by the parser.
	Close()
}

// ParserFactory creates a fresh Parser.
type ParserFactory func() Parser

// ParseError reports source that does not parse cleanly.
type ParseError struct {
	Language Language
	Line     int
	Column   int
	Message  string
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s parse error at %d:%d: %s", e.Language, e.Line, e.Column, e.Message)
	}
	return fmt.Sprintf("%s parse error: %s", e.Language, e.Message)
}
