//go:build !cgo

package cmd

import "github.com/corey/shapegrep/internal/ports"

// parserFactory returns nil when CGo is unavailable (pure Go build).
// Only text mode works; structural modes fail with
// search.ErrStructuralUnavailable.
func parserFactory(_ ports.Language) ports.ParserFactory {
	return nil
}
