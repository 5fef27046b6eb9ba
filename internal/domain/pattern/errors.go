package pattern

import (
	"fmt"
	"strings"

	"github.com/corey/shapegrep/internal/ports"
)

// QueryParseError reports a query that parses in none of the target languages.
type QueryParseError struct {
	Query  string
	Errors map[ports.Language]error
}

func (e *QueryParseError) Error() string {
	var parts []string
	for _, lang := range ports.Languages {
		if err, ok := e.Errors[lang]; ok {
			parts = append(parts, err.Error())
		}
	}
	if len(parts) == 0 {
		return fmt.Sprintf("query %q does not parse", e.Query)
	}
	return fmt.Sprintf("query %q does not parse: %s", e.Query, strings.Join(parts, "; "))
}

// InvalidPatternError reports a wildcard used where it cannot match.
type InvalidPatternError struct {
	Query    string
	Wildcard string
	Reason   string
}

func (e *InvalidPatternError) Error() string {
	if e.Wildcard == "" {
		return fmt.Sprintf("invalid pattern %q: %s", e.Query, e.Reason)
	}
	return fmt.Sprintf("invalid pattern %q: %s %s", e.Query, e.Wildcard, e.Reason)
}
