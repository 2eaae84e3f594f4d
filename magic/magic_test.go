package magic

import (
	"testing"

	"github.com/cozodb/cozo-go/parse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParseProgram(t *testing.T, src string) *parse.InputProgram {
	t.Helper()
	script, err := parse.Parse(src)
	require.NoError(t, err)
	return script.(parse.QueryScript).Program
}

func TestRewritePassesThroughAllFreeCalls(t *testing.T) {
	prog := mustParseProgram(t, `
		edge[a, b] := *e[a, b]
		?[a, b] := edge[a, b]
	`)
	out, err := Rewrite(prog)
	require.NoError(t, err)
	assert.Contains(t, out.Rules, "?")
	assert.Contains(t, out.Rules, "edge")
	assert.NotContains(t, out.Rules, "edge@bb")
}

func TestRewriteAdornsCallWithBoundArgument(t *testing.T) {
	prog := mustParseProgram(t, `
		lookup[id, name] := *person[id, name]
		?[name] := lookup[1, name]
	`)
	out, err := Rewrite(prog)
	require.NoError(t, err)
	require.NotContains(t, out.Rules, "lookup", "a call with a bound argument should never fall back to the plain rule")
	require.Contains(t, out.Rules, "lookup@bf")
	require.Contains(t, out.Rules, "magic_lookup@bf")

	adornedRule := out.Rules["lookup@bf"][0]
	conj, ok := adornedRule.Body.(parse.Conjunction)
	require.True(t, ok)
	magicCall, ok := conj.Atoms[0].(parse.RuleApply)
	require.True(t, ok)
	assert.Equal(t, "magic_lookup@bf", magicCall.Name)
}

func TestRewriteUsesEarlierBindingsForSeedBody(t *testing.T) {
	prog := mustParseProgram(t, `
		dist[a, b, d] := *edge[a, b, d]
		closest[src, dst] := src = 1, dist[src, dst, 5]
		?[dst] := closest[1, dst]
	`)
	out, err := Rewrite(prog)
	require.NoError(t, err)

	found := false
	for name, rules := range out.Rules {
		if name == "magic_dist@bfb" {
			found = true
			assert.Len(t, rules[0].Head, 2)
		}
	}
	assert.True(t, found)
}
