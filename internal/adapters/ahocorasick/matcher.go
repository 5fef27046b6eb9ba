// Package ahocorasick provides the literal prefilter used before parsing.
// It wraps the petar-dambovaliev/aho-corasick library so that a file is
// scanned once no matter how many literals a pattern requires.
package ahocorasick

import (
	aho "github.com/petar-dambovaliev/aho-corasick"

	"github.com/corey/shapegrep/internal/ports"
)

// Filter reports whether content contains every literal of a fixed set.
// A Filter is read-only after construction.
type Filter struct {
	automaton aho.AhoCorasick
	literals  []string
}

// NewFilter compiles the automaton. Duplicate and empty literals are
// ignored; a Filter with no literals accepts everything.
func NewFilter(literals []string, caseInsensitive bool) *Filter {
	seen := make(map[string]bool, len(literals))
	f := &Filter{}
	for _, lit := range literals {
		if lit == "" || seen[lit] {
			continue
		}
		seen[lit] = true
		f.literals = append(f.literals, lit)
	}
	if len(f.literals) == 0 {
		return f
	}
	builder := aho.NewAhoCorasickBuilder(aho.Opts{
		AsciiCaseInsensitive: caseInsensitive,
		DFA:                  true,
	})
	f.automaton = builder.Build(f.literals)
	return f
}

// Factory adapts NewFilter to ports.LiteralFilterFactory.
func Factory() ports.LiteralFilterFactory {
	return func(literals []string, caseInsensitive bool) ports.LiteralFilter {
		return NewFilter(literals, caseInsensitive)
	}
}

// Literals returns the deduplicated literal set.
func (f *Filter) Literals() []string { return f.literals }

// ContainsAll reports whether every literal occurs in content.
func (f *Filter) ContainsAll(content []byte) bool {
	return len(f.Missing(content)) == 0
}

// Missing returns the literals absent from content, in literal order.
func (f *Filter) Missing(content []byte) []string {
	if len(f.literals) == 0 {
		return nil
	}
	found := make([]bool, len(f.literals))
	remaining := len(f.literals)
	iter := f.automaton.IterOverlappingByte(content)
	for next := iter.Next(); next != nil; next = iter.Next() {
		i := next.Pattern()
		if found[i] {
			continue
		}
		found[i] = true
		remaining--
		if remaining == 0 {
			return nil
		}
	}
	var missing []string
	for i, ok := range found {
		if !ok {
			missing = append(missing, f.literals[i])
		}
	}
	return missing
}
