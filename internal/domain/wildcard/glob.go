package wildcard

import "strings"

// GlobPattern matches text where each run of two or more $ stands for any
// (possibly empty) run of characters.
type GlobPattern struct {
	raw   string
	parts []string
}

// CompileGlob splits s on its $$ runs.
func CompileGlob(s string) GlobPattern {
	g := GlobPattern{raw: s}
	var cur strings.Builder
	for i := 0; i < len(s); {
		if s[i] == '$' && i+1 < len(s) && s[i+1] == '$' {
			g.parts = append(g.parts, cur.String())
			cur.Reset()
			for i < len(s) && s[i] == '$' {
				i++
			}
			continue
		}
		cur.WriteByte(s[i])
		i++
	}
	g.parts = append(g.parts, cur.String())
	return g
}

// String returns the glob as written.
func (g GlobPattern) String() string { return g.raw }

// Literals returns the non-empty literal pieces of the glob.
func (g GlobPattern) Literals() []string {
	var out []string
	for _, p := range g.parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Match reports whether s matches the glob. fold enables Unicode case folding.
func (g GlobPattern) Match(s string, fold bool) bool {
	parts := g.parts
	if fold {
		s = Fold(s)
		folded := make([]string, len(parts))
		for i, p := range parts {
			folded[i] = Fold(p)
		}
		parts = folded
	}
	if len(parts) == 1 {
		return s == parts[0]
	}
	first, last := parts[0], parts[len(parts)-1]
	if !strings.HasPrefix(s, first) {
		return false
	}
	s = s[len(first):]
	if len(s) < len(last) || !strings.HasSuffix(s, last) {
		return false
	}
	s = s[:len(s)-len(last)]
	for _, mid := range parts[1 : len(parts)-1] {
		idx := strings.Index(s, mid)
		if idx < 0 {
			return false
		}
		s = s[idx+len(mid):]
	}
	return true
}
