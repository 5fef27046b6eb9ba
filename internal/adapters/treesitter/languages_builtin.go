//go:build cgo

package treesitter

import (
	"fmt"
	"unsafe"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	ts_javascript "github.com/tree-sitter/tree-sitter-javascript/bindings/go"
	ts_python "github.com/tree-sitter/tree-sitter-python/bindings/go"
	ts_typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"

	"github.com/corey/shapegrep/internal/ports"
)

// langPtr wraps a grammar's C language pointer.
func langPtr(ptr unsafe.Pointer) *tree_sitter.Language {
	return tree_sitter.NewLanguage(ptr)
}

// grammarFor returns the compiled-in grammar for lang.
func grammarFor(lang ports.Language) (*tree_sitter.Language, error) {
	switch lang {
	case ports.LangJavaScript:
		return langPtr(ts_javascript.Language()), nil
	case ports.LangTypeScript:
		return langPtr(ts_typescript.LanguageTypescript()), nil
	case ports.LangTSX:
		return langPtr(ts_typescript.LanguageTSX()), nil
	case ports.LangPython:
		return langPtr(ts_python.Language()), nil
	default:
		return nil, fmt.Errorf("no grammar for language %q", lang)
	}
}

// grammarRules holds the per-language normalization tweaks.
type grammarRules struct {
	// stringKinds are collapsed into leaves whose Value is the text between
	// the delimiters.
	stringKinds map[string]bool
	// dropKinds are named nodes that carry no meaning after normalization.
	dropKinds map[string]bool
	// groupKinds wrap a single expression in parentheses and are replaced
	// by that expression.
	groupKinds map[string]bool
}

var (
	jsRules = grammarRules{
		stringKinds: map[string]bool{"string": true},
		dropKinds:   map[string]bool{"comment": true, "hash_bang_line": true},
		groupKinds:  map[string]bool{"parenthesized_expression": true},
	}
	pyRules = grammarRules{
		stringKinds: map[string]bool{"string": true},
		dropKinds:   map[string]bool{"comment": true, "line_continuation": true},
		groupKinds:  map[string]bool{"parenthesized_expression": true},
	}
)

func rulesFor(lang ports.Language) grammarRules {
	if lang == ports.LangPython {
		return pyRules
	}
	return jsRules
}
