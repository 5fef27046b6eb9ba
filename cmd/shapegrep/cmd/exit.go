package cmd

import (
	"errors"
	"fmt"
)

// grepExit is returned by search commands to signal a specific exit code.
// Like grep: 0=found, 1=not found, 2=error.
type grepExit struct{ code int }

func (e grepExit) Error() string {
	switch e.code {
	case 0:
		return ""
	case 1:
		return "no match"
	default:
		return fmt.Sprintf("search error (exit %d)", e.code)
	}
}

// GrepExitCode extracts the exit code from a grepExit error.
// Returns -1 if the error is not a grepExit.
func GrepExitCode(err error) int {
	var ge grepExit
	if errors.As(err, &ge) {
		return ge.code
	}
	return -1
}
