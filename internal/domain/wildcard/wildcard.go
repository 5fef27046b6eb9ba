// Package wildcard defines the query wildcard vocabulary shared by the
// structural and text matchers:
//
//	$$       any single node (text mode: one or more bracket-balanced tokens)
//	$$$      any sequence of nodes (text mode: zero or more tokens)
//	$$name   any identifier, bound to name; repeated names must agree
//	ab$$cd   an identifier or string glob; each $$ stands for any run of characters
//
// A single $ is an ordinary identifier character.
package wildcard

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a word of a query.
type Kind uint8

const (
	None Kind = iota
	AnyNode
	AnySequence
	Capture
	Glob
)

func (k Kind) String() string {
	switch k {
	case AnyNode:
		return "$$"
	case AnySequence:
		return "$$$"
	case Capture:
		return "$$name"
	case Glob:
		return "glob"
	default:
		return "literal"
	}
}

// ErrMalformed is wrapped by errors about unusable $ runs.
var ErrMalformed = errors.New("malformed wildcard")

// Occurrence is a wildcard-bearing word found in a query.
type Occurrence struct {
	Start, End int // byte offsets in the query, end exclusive
	Kind       Kind
	Text       string
	Name       string // capture name for Capture
}

// IsWordByte reports whether b can be part of a word. Bytes of multi-byte
// UTF-8 sequences count as word bytes so that wildcards stay attached to
// non-ASCII identifiers.
func IsWordByte(b byte) bool {
	return b == '_' || b == '$' || b >= 0x80 ||
		(b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

// Classify inspects one word.
func Classify(word string) (Kind, string, error) {
	if !strings.Contains(word, "$$") {
		return None, "", nil
	}
	if longestRun(word) > 3 {
		return None, "", fmt.Errorf("%w: %q has more than three $", ErrMalformed, word)
	}
	switch {
	case word == "$$":
		return AnyNode, "", nil
	case word == "$$$":
		return AnySequence, "", nil
	case strings.HasPrefix(word, "$$$"):
		if !strings.Contains(word[3:], "$$") {
			return None, "", fmt.Errorf("%w: sequence wildcard %q cannot be named", ErrMalformed, word)
		}
		return Glob, "", nil
	case strings.HasPrefix(word, "$$") && !strings.Contains(word[2:], "$"):
		return Capture, word[2:], nil
	default:
		return Glob, "", nil
	}
}

// Scan returns every wildcard-bearing word of s in order.
func Scan(s string) ([]Occurrence, error) {
	var out []Occurrence
	for i := 0; i < len(s); {
		if !IsWordByte(s[i]) {
			i++
			continue
		}
		j := i
		for j < len(s) && IsWordByte(s[j]) {
			j++
		}
		word := s[i:j]
		kind, name, err := Classify(word)
		if err != nil {
			return nil, err
		}
		if kind != None {
			out = append(out, Occurrence{Start: i, End: j, Kind: kind, Text: word, Name: name})
		}
		i = j
	}
	return out, nil
}

// HasWildcard reports whether s contains any $$ run.
func HasWildcard(s string) bool {
	return strings.Contains(s, "$$")
}

func longestRun(s string) int {
	best, cur := 0, 0
	for i := 0; i < len(s); i++ {
		if s[i] == '$' {
			cur++
			if cur > best {
				best = cur
			}
			continue
		}
		cur = 0
	}
	return best
}
