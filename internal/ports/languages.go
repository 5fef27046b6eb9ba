package ports

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// Language is a grammar variant known to the parser adapter.
// The set is closed: adding a language means adding a constant here, its
// extensions below and a case in the adapter's language switch.
type Language string

const (
	LangJavaScript Language = "javascript"
	LangTypeScript Language = "typescript"
	LangTSX        Language = "tsx"
	LangPython     Language = "python"
)

// Languages lists every supported language in query detection order.
// TSX comes before TypeScript so that JSX-bearing queries find a grammar.
var Languages = []Language{LangJavaScript, LangTSX, LangTypeScript, LangPython}

var extToLang = map[string]Language{
	".js":  LangJavaScript,
	".jsx": LangJavaScript,
	".mjs": LangJavaScript,
	".cjs": LangJavaScript,
	".ts":  LangTypeScript,
	".mts": LangTypeScript,
	".cts": LangTypeScript,
	".tsx": LangTSX,
	".py":  LangPython,
	".pyw": LangPython,
	".pyi": LangPython,
}

// ParseLanguage validates a language name. The empty string is accepted and
// returns "" (meaning: detect).
func ParseLanguage(s string) (Language, error) {
	switch l := Language(strings.ToLower(strings.TrimSpace(s))); l {
	case "":
		return "", nil
	case LangJavaScript, LangTypeScript, LangTSX, LangPython:
		return l, nil
	case "js", "jsx":
		return LangJavaScript, nil
	case "ts":
		return LangTypeScript, nil
	case "py":
		return LangPython, nil
	default:
		return "", fmt.Errorf("unknown language %q", s)
	}
}

// LanguageForPath maps a file path to a language by extension.
func LanguageForPath(path string) (Language, bool) {
	l, ok := extToLang[strings.ToLower(filepath.Ext(path))]
	return l, ok
}

// IsSupportedExtension reports whether ext (with leading dot) maps to a language.
func IsSupportedExtension(ext string) bool {
	_, ok := extToLang[strings.ToLower(ext)]
	return ok
}

// SupportedExtensions returns all registered extensions, sorted.
func SupportedExtensions() []string {
	exts := make([]string, 0, len(extToLang))
	for ext := range extToLang {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// ExtensionsFor returns the extensions registered for lang, sorted.
func ExtensionsFor(lang Language) []string {
	var exts []string
	for ext, l := range extToLang {
		if l == lang {
			exts = append(exts, ext)
		}
	}
	sort.Strings(exts)
	return exts
}
