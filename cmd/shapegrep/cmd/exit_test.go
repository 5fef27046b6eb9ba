package cmd

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/corey/shapegrep/internal/ports"
)

func TestGrepExitCode(t *testing.T) {
	assert.Equal(t, 1, GrepExitCode(grepExit{1}))
	assert.Equal(t, 2, GrepExitCode(fmt.Errorf("wrapped: %w", grepExit{2})))
	assert.Equal(t, -1, GrepExitCode(errors.New("other")))
	assert.Equal(t, "no match", grepExit{1}.Error())
}

func TestExitFor(t *testing.T) {
	assert.NoError(t, exitFor(&ports.SearchReport{Matches: make([]ports.MatchResult, 1)}))
	assert.Equal(t, 1, GrepExitCode(exitFor(&ports.SearchReport{})))
	assert.Equal(t, 2, GrepExitCode(exitFor(&ports.SearchReport{Errors: []ports.SearchError{{}}})))
	assert.Equal(t, 2, GrepExitCode(exitFor(&ports.SearchReport{QueryErrors: []ports.QueryError{{}}})))
}

func TestSearchFlags_Params(t *testing.T) {
	f := searchFlags{}
	p, err := f.params([]string{"useTheme()", "src", "lib"})
	assert.NoError(t, err)
	assert.Equal(t, []string{"useTheme()"}, p.Queries)
	assert.Equal(t, []string{"src", "lib"}, p.Roots)

	f = searchFlags{queries: []string{"a()", "b()"}, lang: "py"}
	p, err = f.params([]string{"src"})
	assert.NoError(t, err)
	assert.Equal(t, []string{"a()", "b()"}, p.Queries)
	assert.Equal(t, []string{"src"}, p.Roots)
	assert.Equal(t, ports.LangPython, p.Language)

	_, err = (&searchFlags{}).params(nil)
	assert.Error(t, err)
	_, err = (&searchFlags{lang: "cobol"}).params([]string{"x"})
	assert.Error(t, err)
}
