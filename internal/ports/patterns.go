package ports

// LiteralFilter answers whether content contains every required literal.
// The search engine uses it to skip parsing files that cannot match.
// Implementations (Aho-Corasick) scan content once regardless of how many
// literals are required.
type LiteralFilter interface {
	// ContainsAll reports whether every literal occurs in content.
	ContainsAll(content []byte) bool
}

// LiteralFilterFactory builds a filter for a literal set. caseInsensitive
// requests ASCII case-insensitive comparison. A nil factory disables
// prefiltering.
type LiteralFilterFactory func(literals []string, caseInsensitive bool) LiteralFilter
