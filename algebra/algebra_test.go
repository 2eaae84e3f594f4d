package algebra

import (
	"testing"

	"github.com/cozodb/cozo-go/logic"
	"github.com/cozodb/cozo-go/parse"
	"github.com/cozodb/cozo-go/util"
	"github.com/cozodb/cozo-go/value"
	"github.com/stretchr/testify/require"
)

type fakeRel struct{ rows map[string][]Row }

func (f fakeRel) ScanRelation(name string) ([]Row, error) { return f.rows[name], nil }

type fakeRule struct{ rows map[string][]Row }

func (f fakeRule) RuleRows(name string) ([]Row, error) { return f.rows[name], nil }

func compileRule(t *testing.T, src string) *Plan {
	t.Helper()
	script, err := parse.Parse(src)
	require.NoError(t, err)
	qs := script.(parse.QueryScript)
	rule := qs.Program.Rules["?"][0]
	clauses, err := logic.NormalizeRule(rule)
	require.NoError(t, err)
	require.Len(t, clauses, 1)
	plan, err := Compile(clauses[0])
	require.NoError(t, err)
	return plan
}

func TestScanJoinFilterOverRelations(t *testing.T) {
	plan := compileRule(t, `?[a, b] := *edge[a, b], *edge[b, c], a != c`)
	rel := fakeRel{rows: map[string][]Row{
		"edge": {{value.Int(1), value.Int(2)}, {value.Int(2), value.Int(3)}, {value.Int(3), value.Int(1)}},
	}}
	ctx := &Context{Poison: util.NewPoison(), Rel: rel}
	rows, err := plan.Eval(ctx)
	require.NoError(t, err)
	// Every row must bind a,b from the first edge and then find a second
	// edge starting at b; none of the three two-hop paths (1->2->3,
	// 2->3->1, 3->1->2) returns to its start, so a != c keeps them all,
	// each projected onto the head [a, b].
	require.NotEmpty(t, rows)
	for _, r := range rows {
		require.Len(t, r, 2)
	}
}

func TestNegationDropsMatchingRows(t *testing.T) {
	plan := compileRule(t, `?[x] := *src[x], not *excl[x]`)
	rel := fakeRel{rows: map[string][]Row{
		"src":  {{value.Int(1)}, {value.Int(2)}, {value.Int(3)}},
		"excl": {{value.Int(2)}},
	}}
	ctx := &Context{Poison: util.NewPoison(), Rel: rel}
	rows, err := plan.Eval(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 2)
}

func TestUnificationBindsComputedValue(t *testing.T) {
	plan := compileRule(t, `?[x, y] := *src[x], y = x + 1`)
	rel := fakeRel{rows: map[string][]Row{"src": {{value.Int(1)}, {value.Int(2)}}}}
	ctx := &Context{Poison: util.NewPoison(), Rel: rel}
	rows, err := plan.Eval(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	for _, r := range rows {
		xi, _ := r[0].AsInt()
		yi, _ := r[1].AsInt()
		require.Equal(t, xi+1, yi)
	}
}

func TestRuleApplyReadsFromRuleSource(t *testing.T) {
	plan := compileRule(t, `?[a, b] := reach[a, b]`)
	rule := fakeRule{rows: map[string][]Row{"reach": {{value.Int(1), value.Int(2)}}}}
	ctx := &Context{Poison: util.NewPoison(), Rule: rule}
	rows, err := plan.Eval(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
}

func TestFixedRowsLiteral(t *testing.T) {
	plan := compileRule(t, `?[a, b] <- [[1, 2], [3, 4]]`)
	ctx := &Context{Poison: util.NewPoison()}
	rows, err := plan.Eval(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 2)
}
