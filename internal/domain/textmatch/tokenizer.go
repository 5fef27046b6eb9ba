package textmatch

import "github.com/corey/shapegrep/internal/domain/wildcard"

// Token is a word or a single punctuation character with its position in the
// source. Whitespace never produces tokens.
type Token struct {
	Text  string
	Start int // byte offset, inclusive
	End   int // byte offset, exclusive
	Line  int // 1-based
	Col   int // 1-based byte column
}

// IsWord reports whether the token is an identifier-like run.
func (t Token) IsWord() bool {
	return t.Text != "" && wildcard.IsWordByte(t.Text[0])
}

// Tokenize splits src into tokens. Words are maximal runs of
// [A-Za-z0-9_$] (plus non-ASCII bytes); every other non-space byte is a
// token of its own.
func Tokenize(src []byte) []Token {
	var tokens []Token
	line, lineStart := 1, 0
	for i := 0; i < len(src); {
		b := src[i]
		switch {
		case b == '\n':
			line++
			i++
			lineStart = i
		case isSpace(b):
			i++
		case wildcard.IsWordByte(b):
			j := i
			for j < len(src) && wildcard.IsWordByte(src[j]) {
				j++
			}
			tokens = append(tokens, Token{Text: string(src[i:j]), Start: i, End: j, Line: line, Col: i - lineStart + 1})
			i = j
		default:
			tokens = append(tokens, Token{Text: string(src[i : i+1]), Start: i, End: i + 1, Line: line, Col: i - lineStart + 1})
			i++
		}
	}
	return tokens
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\r' || b == '\v' || b == '\f'
}
