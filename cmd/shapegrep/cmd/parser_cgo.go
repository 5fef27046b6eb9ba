//go:build cgo

package cmd

import (
	"github.com/corey/shapegrep/internal/adapters/treesitter"
	"github.com/corey/shapegrep/internal/ports"
)

// parserFactory returns tree-sitter parsers when CGo is available.
func parserFactory(defaultLang ports.Language) ports.ParserFactory {
	return treesitter.Factory(treesitter.WithDefaultLanguage(defaultLang))
}
