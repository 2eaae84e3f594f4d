package logic

import (
	"testing"

	"github.com/cozodb/cozo-go/expr"
	"github.com/cozodb/cozo-go/parse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParseRule(t *testing.T, src string) *parse.InputRule {
	t.Helper()
	script, err := parse.Parse(src)
	require.NoError(t, err)
	qs := script.(parse.QueryScript)
	return qs.Program.Rules["?"][0]
}

func TestToNNFPushesNegationThroughDisjunction(t *testing.T) {
	rule := mustParseRule(t, `?[a, b] := not (*edge[a, b] or *edge[b, a])`)
	negAtom := rule.Body.(parse.Negation)
	_, isDisj := negAtom.Atom.(parse.Disjunction)
	require.True(t, isDisj)

	nnf := ToNNF(rule.Body)
	conj, ok := nnf.(parse.Conjunction)
	require.True(t, ok)
	assert.Len(t, conj.Atoms, 2)
	for _, at := range conj.Atoms {
		_, isNeg := at.(parse.Negation)
		assert.True(t, isNeg)
	}
}

func TestToNNFFoldsNegatedPredicateIntoComplement(t *testing.T) {
	rule := mustParseRule(t, `?[x] := x = 1, not x == 1`)
	conj := rule.Body.(parse.Conjunction)
	nnf := ToNNF(conj)
	nconj := nnf.(parse.Conjunction)
	pred, ok := nconj.Atoms[1].(parse.Predicate)
	require.True(t, ok)
	app := pred.Expr.(expr.Apply)
	assert.Equal(t, "!=", app.Op)
}

func TestToDNFDistributesOrOverAnd(t *testing.T) {
	ruleA := mustParseRule(t, `?[a, b] := *edge[a, b]`)
	ruleB := mustParseRule(t, `?[a, b] := *edge[b, a]`)
	filter := mustParseRule(t, `?[a, b] := a != b`)
	body := parse.Conjunction{Atoms: []parse.InputAtom{
		parse.Disjunction{Alts: []parse.InputAtom{ruleA.Body, ruleB.Body}},
		filter.Body,
	}}
	clauses := ToDNF(ToNNF(body))
	assert.Len(t, clauses, 2)
	for _, c := range clauses {
		assert.Len(t, c, 2)
	}
}

func TestSafeOrderPlacesBindingAtomsBeforeFilters(t *testing.T) {
	rule := mustParseRule(t, `?[a, b] := a != b, *edge[a, b]`)
	ordered, varOrder, err := SafeOrder([]parse.InputAtom{rule.Body.(parse.Conjunction).Atoms[0], rule.Body.(parse.Conjunction).Atoms[1]})
	require.NoError(t, err)
	_, firstIsRelApply := ordered[0].(parse.RelationApply)
	assert.True(t, firstIsRelApply)
	assert.Equal(t, []string{"a", "b"}, []string{varOrder[0].Name, varOrder[1].Name})
}

func TestSafeOrderRejectsTrulyUnboundNegation(t *testing.T) {
	rule := mustParseRule(t, `?[a] := not *edge[a, b]`)
	_, _, err := SafeOrder([]parse.InputAtom{rule.Body.(parse.Negation)})
	require.Error(t, err)
	_, ok := err.(*parse.UnboundVariable)
	assert.True(t, ok)
}

func TestNormalizeRuleResolvesHeadPositionsAndBindingPos(t *testing.T) {
	rule := mustParseRule(t, `?[b, a] := *edge[a, b]`)
	clauses, err := NormalizeRule(rule)
	require.NoError(t, err)
	require.Len(t, clauses, 1)
	c := clauses[0]
	assert.Equal(t, []string{"a", "b"}, []string{c.VarOrder[0].Name, c.VarOrder[1].Name})
	// Head is [b, a]; b is bound second (pos 1), a first (pos 0).
	assert.Equal(t, []int{1, 0}, c.HeadPositions)

	relApply := c.Atoms[0].(parse.RelationApply)
	aArg := relApply.Args[0].(expr.Binding)
	bArg := relApply.Args[1].(expr.Binding)
	assert.Equal(t, 0, aArg.Pos)
	assert.Equal(t, 1, bArg.Pos)
}

func TestNormalizeRuleWithFixedRows(t *testing.T) {
	rule := mustParseRule(t, `?[a, b] <- [[1, 2], [3, 4]]`)
	clauses, err := NormalizeRule(rule)
	require.NoError(t, err)
	require.Len(t, clauses, 1)
	assert.Equal(t, []int{0, 1}, clauses[0].HeadPositions)
	_, ok := clauses[0].Atoms[0].(parse.FixedRows)
	assert.True(t, ok)
}

func TestNormalizeRuleMultipleDNFClauses(t *testing.T) {
	rule := mustParseRule(t, `?[a, b] := *edge[a, b] or *edge[b, a]`)
	clauses, err := NormalizeRule(rule)
	require.NoError(t, err)
	assert.Len(t, clauses, 2)
}
