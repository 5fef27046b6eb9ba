package wildcard

import (
	"strings"

	"golang.org/x/text/cases"
)

// folder is stateless and shared by all workers.
var folder = cases.Fold()

// Fold returns the case-folded form of s. Pure ASCII input takes a fast
// path; anything else goes through Unicode case folding.
func Fold(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return folder.String(s)
		}
	}
	return strings.ToLower(s)
}

// Equal compares literals, case-folded when fold is set.
func Equal(a, b string, fold bool) bool {
	if !fold {
		return a == b
	}
	return a == b || Fold(a) == Fold(b)
}
