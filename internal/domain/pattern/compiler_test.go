package pattern

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corey/shapegrep/internal/adapters/treesitter"
	"github.com/corey/shapegrep/internal/ports"
)

func newTestCompiler(t *testing.T) *Compiler {
	t.Helper()
	p := treesitter.NewParser()
	t.Cleanup(p.Close)
	return NewCompiler(p)
}

var jsOnly = Options{Mode: ports.ModeExact, Languages: []ports.Language{ports.LangJavaScript}}

func TestCompile_UnwrapsExpressionStatement(t *testing.T) {
	c, err := newTestCompiler(t).Compile(0, "foo($$)", jsOnly)
	require.NoError(t, err)
	p := c.For(ports.LangJavaScript)
	require.NotNil(t, p)
	assert.False(t, p.IsSequence())
	assert.Equal(t, "call_expression", p.Root.Kind)

	args := p.Root.Field("arguments")
	require.NotNil(t, args)
	inner := args.Nodes[0].Field(ports.ChildrenField)
	require.NotNil(t, inner)
	require.Len(t, inner.Nodes, 1)
	assert.Equal(t, ports.MarkerAnyNode, inner.Nodes[0].Marker.Kind)
}

func TestCompile_MarkerVariants(t *testing.T) {
	c, err := newTestCompiler(t).Compile(0, `use$$($$id, "a$$", $$$)`, jsOnly)
	require.NoError(t, err)
	p := c.For(ports.LangJavaScript)

	fn := p.Root.Field("function").Nodes[0]
	assert.Equal(t, ports.MarkerIdentGlob, fn.Marker.Kind)
	assert.Equal(t, "use$$", fn.Marker.Name)

	args := p.Root.Field("arguments").Nodes[0].Field(ports.ChildrenField).Nodes
	require.Len(t, args, 3)
	assert.Equal(t, ports.MarkerCapture, args[0].Marker.Kind)
	assert.Equal(t, "id", args[0].Marker.Name)
	assert.Equal(t, ports.MarkerStringGlob, args[1].Marker.Kind)
	assert.Equal(t, "a$$", args[1].Marker.Name)
	assert.Equal(t, ports.MarkerAnySequence, args[2].Marker.Kind)

	assert.Equal(t, []string{"use"}, p.Literals)
}

func TestCompile_CollapsesSequenceStatement(t *testing.T) {
	c, err := newTestCompiler(t).Compile(0, "a(); $$$; b();", jsOnly)
	require.NoError(t, err)
	p := c.For(ports.LangJavaScript)
	require.True(t, p.IsSequence())
	require.Len(t, p.Sequence, 3)
	assert.Equal(t, "expression_statement", p.Sequence[0].Kind)
	assert.Equal(t, ports.MarkerAnySequence, p.Sequence[1].Marker.Kind)
}

func TestCompile_IncludeBlockBecomesSequence(t *testing.T) {
	opts := jsOnly
	opts.Mode = ports.ModeInclude
	c, err := newTestCompiler(t).Compile(0, "{ a(); b(); }", opts)
	require.NoError(t, err)
	p := c.For(ports.LangJavaScript)
	assert.True(t, p.IsSequence())
	assert.Len(t, p.Sequence, 2)

	exact, err := newTestCompiler(t).Compile(0, "{ a(); b(); }", jsOnly)
	require.NoError(t, err)
	assert.Equal(t, "statement_block", exact.For(ports.LangJavaScript).Root.Kind)
}

func TestCompile_PythonPlaceholders(t *testing.T) {
	opts := Options{Mode: ports.ModeExact, Languages: []ports.Language{ports.LangPython}}
	c, err := newTestCompiler(t).Compile(0, "def $$name($$$):\n    return $$\n", opts)
	require.NoError(t, err)
	p := c.For(ports.LangPython)
	require.NotNil(t, p)
	assert.Equal(t, "function_definition", p.Root.Kind)
	name := p.Root.Field("name").Nodes[0]
	assert.Equal(t, ports.MarkerCapture, name.Marker.Kind)
}

func TestCompile_SequenceOutsideList(t *testing.T) {
	_, err := newTestCompiler(t).Compile(0, "a + $$$", jsOnly)
	var invalid *InvalidPatternError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "$$$", invalid.Wildcard)
}

func TestCompile_BareWildcard(t *testing.T) {
	for _, q := range []string{"$$", "$$$", "$$x;"} {
		_, err := newTestCompiler(t).Compile(0, q, jsOnly)
		var invalid *InvalidPatternError
		assert.ErrorAs(t, err, &invalid, q)
	}
}

func TestCompile_GlobAsWholePattern(t *testing.T) {
	c, err := newTestCompiler(t).Compile(0, "use$$", jsOnly)
	require.NoError(t, err)
	p := c.For(ports.LangJavaScript)
	require.NotNil(t, p.Root)
	assert.Equal(t, ports.MarkerIdentGlob, p.Root.Marker.Kind)
	assert.Equal(t, []string{"use"}, p.Literals)

	c, err = newTestCompiler(t).Compile(0, `"/api/$$"`, jsOnly)
	require.NoError(t, err)
	assert.Equal(t, ports.MarkerStringGlob, c.For(ports.LangJavaScript).Root.Marker.Kind)
}

func TestCompile_QueryParseError(t *testing.T) {
	_, err := newTestCompiler(t).Compile(0, "const $$ = use$$(", jsOnly)
	var qpe *QueryParseError
	require.ErrorAs(t, err, &qpe)
	assert.Contains(t, qpe.Errors, ports.LangJavaScript)
}

func TestCompile_PartialLanguages(t *testing.T) {
	opts := Options{Mode: ports.ModeExact, Languages: []ports.Language{ports.LangJavaScript, ports.LangPython}}
	c, err := newTestCompiler(t).Compile(0, "let x = 1;", opts)
	require.NoError(t, err)
	assert.NotNil(t, c.For(ports.LangJavaScript))
	assert.Nil(t, c.For(ports.LangPython))
}

func TestCompile_TextMode(t *testing.T) {
	c, err := NewCompiler(nil).Compile(2, "const $$ = use$$(", Options{Mode: ports.ModeText})
	require.NoError(t, err)
	assert.Equal(t, 2, c.Index)
	require.NotNil(t, c.Text)
	assert.Equal(t, []string{"const", "use"}, c.Literals(""))

	_, err = NewCompiler(nil).Compile(0, "$$", Options{Mode: ports.ModeText})
	var invalid *InvalidPatternError
	assert.ErrorAs(t, err, &invalid)
}

func TestCompile_NoParser(t *testing.T) {
	_, err := NewCompiler(nil).Compile(0, "foo()", jsOnly)
	assert.ErrorIs(t, err, ErrNoParser)
}

func TestCompileAll_IsolatesFailures(t *testing.T) {
	compiled, errs := newTestCompiler(t).CompileAll([]string{"foo()", "a + $$$", "bar()"}, jsOnly)
	require.Len(t, compiled, 2)
	assert.Equal(t, 0, compiled[0].Index)
	assert.Equal(t, 2, compiled[1].Index)
	require.Len(t, errs, 1)
	assert.Equal(t, 1, errs[0].QueryIndex)
}

func TestDetectLanguage(t *testing.T) {
	c := newTestCompiler(t)
	lang, err := c.DetectLanguage("const x = <div />;")
	require.NoError(t, err)
	assert.Equal(t, ports.LangJavaScript, lang)

	lang, err = c.DetectLanguage("def f():\n    pass\n")
	require.NoError(t, err)
	assert.Equal(t, ports.LangPython, lang)
}
