package stratify

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

func indexOf(strata []Stratum, name string) int {
	for i, s := range strata {
		for _, r := range s.Rules {
			if r == name {
				return i
			}
		}
	}
	return -1
}

func TestStratifyLinearAndRecursiveDependencies(t *testing.T) {
	prog := mustParseProgram(t, `
		edge[a, b] := *e[a, b]
		path[a, b] := edge[a, b]
		path[a, b] := edge[a, c], path[c, b]
		?[a, b] := path[a, b], not edge[b, a]
	`)
	nodes, edges := BuildCallGraph(prog)
	strata, err := Stratify(Program{Nodes: nodes, Edges: edges})
	require.NoError(t, err)

	edgeS, pathS, entryS := indexOf(strata, "edge"), indexOf(strata, "path"), indexOf(strata, "?")
	assert.True(t, edgeS < pathS)
	assert.True(t, pathS < entryS)
	assert.Equal(t, []string{"path"}, strata[pathS].Rules)
}

func TestStratifyRejectsMutualNegativeCycle(t *testing.T) {
	prog := mustParseProgram(t, `
		p[x] := *base[x], not q[x]
		q[x] := *base[x], not p[x]
		?[x] := p[x]
	`)
	nodes, edges := BuildCallGraph(prog)
	_, err := Stratify(Program{Nodes: nodes, Edges: edges})
	require.Error(t, err)
	_, ok := err.(*UnstratifiableError)
	assert.True(t, ok)
}

func TestStratifyRejectsSelfNegation(t *testing.T) {
	prog := mustParseProgram(t, `
		p[x] := *base[x], not p[x]
		?[x] := p[x]
	`)
	nodes, edges := BuildCallGraph(prog)
	_, err := Stratify(Program{Nodes: nodes, Edges: edges})
	require.Error(t, err)
}

func TestStratifyAllowsPositiveRecursionWithLaterNegation(t *testing.T) {
	prog := mustParseProgram(t, `
		reachable[a, b] := *edge[a, b]
		reachable[a, b] := *edge[a, c], reachable[c, b]
		?[a, b] := reachable[a, b], not reachable[b, a]
	`)
	nodes, edges := BuildCallGraph(prog)
	strata, err := Stratify(Program{Nodes: nodes, Edges: edges})
	require.NoError(t, err)
	reachS, entryS := indexOf(strata, "reachable"), indexOf(strata, "?")
	assert.True(t, reachS < entryS)
}
