package parse

import (
	"testing"

	"github.com/cozodb/cozo-go/expr"
	"github.com/stretchr/testify/assert"
)

func TestParseSimpleRuleAndEntry(t *testing.T) {
	script, err := Parse(`
		edge[a, b] := *edge_rel[a, b]
		?[a, b] := edge[a, b]
	`)
	assert.NoError(t, err)
	qs, ok := script.(QueryScript)
	assert.True(t, ok)
	assert.Len(t, qs.Program.Rules["edge"], 1)
	assert.Len(t, qs.Program.Rules["?"], 1)

	edgeRule := qs.Program.Rules["edge"][0]
	relApply, ok := edgeRule.Body.(RelationApply)
	assert.True(t, ok)
	assert.Equal(t, "edge_rel", relApply.Name)
	assert.Len(t, relApply.Args, 2)
}

func TestParseTransitiveClosureWithNegationAndDisjunction(t *testing.T) {
	script, err := Parse(`
		reachable[a, b] := *edge[a, b]
		reachable[a, b] := *edge[a, c], reachable[c, b]
		?[a, b] := reachable[a, b], not *edge[a, b]
	`)
	assert.NoError(t, err)
	qs := script.(QueryScript)
	assert.Len(t, qs.Program.Rules["reachable"], 2)

	second := qs.Program.Rules["reachable"][1]
	conj, ok := second.Body.(Conjunction)
	assert.True(t, ok)
	assert.Len(t, conj.Atoms, 2)

	entry := qs.Program.Rules["?"][0]
	entryConj := entry.Body.(Conjunction)
	_, isNeg := entryConj.Atoms[1].(Negation)
	assert.True(t, isNeg)
}

func TestParseAggregationHead(t *testing.T) {
	script, err := Parse(`?[n, min(d)] := *dist[n, d]`)
	assert.NoError(t, err)
	qs := script.(QueryScript)
	rule := qs.Program.Rules["?"][0]
	assert.Len(t, rule.Head, 2)
	assert.Nil(t, rule.Aggrs[0])
	assert.NotNil(t, rule.Aggrs[1])
	assert.Equal(t, "min", rule.Aggrs[1].Name)
}

func TestParseFixedRowsAndEnsureTx(t *testing.T) {
	script, err := Parse(`?[id, email] <- [[1, "b@x.com"]] :ensure users {id => email}`)
	assert.NoError(t, err)
	tx, ok := script.(TxScript)
	assert.True(t, ok)
	assert.Equal(t, TxEnsure, tx.Op)
	assert.Equal(t, "users", tx.Relation)
	assert.Equal(t, []string{"id"}, tx.KeyCols)
	assert.Equal(t, []string{"email"}, tx.NonCols)

	rule := tx.Program.Rules["?"][0]
	rows, ok := rule.Body.(FixedRows)
	assert.True(t, ok)
	assert.Len(t, rows.Rows, 1)
	assert.Len(t, rows.Rows[0], 2)
}

func TestParsePutTxWithoutEntryName(t *testing.T) {
	script, err := Parse(`:put edge {a, b} <- [[1, 2], [2, 3], [3, 4]]`)
	assert.NoError(t, err)
	_, isSysOp := script.(SysOpScript)
	assert.False(t, isSysOp)
	tx := script.(TxScript)
	assert.Equal(t, TxPut, tx.Op)
	assert.Equal(t, "edge", tx.Relation)
	assert.Equal(t, []string{"a", "b"}, tx.KeyCols)
	rule := tx.Program.Rules["?"][0]
	rows := rule.Body.(FixedRows)
	assert.Len(t, rows.Rows, 3)
}

func TestParseCreateRelation(t *testing.T) {
	script, err := Parse(`:create users {id: Int => email: String}`)
	assert.NoError(t, err)
	sysOp := script.(SysOpScript)
	create, ok := sysOp.Op.(CreateRelation)
	assert.True(t, ok)
	assert.Equal(t, "users", create.Name)
	assert.Equal(t, "id", create.Keys[0].Name)
	assert.Equal(t, "email", create.NonKeys[0].Name)
}

func TestParseExpressionPrecedence(t *testing.T) {
	script, err := Parse(`?[x] := x = 2 + 3 * 4`)
	assert.NoError(t, err)
	qs := script.(QueryScript)
	rule := qs.Program.Rules["?"][0]
	unif := rule.Body.(Unification)
	app, ok := unif.Expr.(expr.Apply)
	assert.True(t, ok)
	assert.Equal(t, "+", app.Op)
	rhs := app.Args[1].(expr.Apply)
	assert.Equal(t, "*", rhs.Op)
}

func TestParsePredicateVsUnification(t *testing.T) {
	script, err := Parse(`?[x] := x = 1, x == 1`)
	assert.NoError(t, err)
	qs := script.(QueryScript)
	conj := qs.Program.Rules["?"][0].Body.(Conjunction)
	_, isUnif := conj.Atoms[0].(Unification)
	assert.True(t, isUnif)
	pred, isPred := conj.Atoms[1].(Predicate)
	assert.True(t, isPred)
	app := pred.Expr.(expr.Apply)
	assert.Equal(t, "==", app.Op)
}

func TestParseNamedFieldRelationApply(t *testing.T) {
	script, err := Parse(`?[n] := users{id: uid, name: n}`)
	assert.NoError(t, err)
	qs := script.(QueryScript)
	atom := qs.Program.Rules["?"][0].Body
	named, ok := atom.(NamedFieldRelationApply)
	assert.True(t, ok)
	assert.Equal(t, "users", named.Name)
	assert.Len(t, named.Fields, 2)
	assert.Equal(t, "id", named.Fields[0].Field)
}

func TestParseDropAndRenameSysOps(t *testing.T) {
	script, err := Parse(`:drop users`)
	assert.NoError(t, err)
	drop := script.(SysOpScript).Op.(DropRelation)
	assert.Equal(t, "users", drop.Name)

	script2, err := Parse(`:rename users -> people`)
	assert.NoError(t, err)
	ren := script2.(SysOpScript).Op.(RenameRelation)
	assert.Equal(t, "users", ren.Old)
	assert.Equal(t, "people", ren.New)
}

func TestParseImperativeIfLoopSwap(t *testing.T) {
	script, err := Parse(`
		@if ?[x] := x = 1 @then
			@return ?[x] := x = 2
		@else
			@return ?[x] := x = 3
		@end
		@loop
			@break
		@end
		@swap old new
	`)
	assert.NoError(t, err)
	imp, ok := script.(ImperativeScript)
	assert.True(t, ok)
	assert.Len(t, imp.Stmts, 3)

	ifStmt, ok := imp.Stmts[0].(IfStmt)
	assert.True(t, ok)
	assert.Len(t, ifStmt.Then, 1)
	assert.Len(t, ifStmt.Else, 1)

	loopStmt, ok := imp.Stmts[1].(LoopStmt)
	assert.True(t, ok)
	assert.Len(t, loopStmt.Body, 1)
	_, isBreak := loopStmt.Body[0].(BreakStmt)
	assert.True(t, isBreak)

	swap, ok := imp.Stmts[2].(SwapStmt)
	assert.True(t, ok)
	assert.Equal(t, "old", swap.A)
	assert.Equal(t, "new", swap.B)
}

func TestParseListAndSetLiterals(t *testing.T) {
	script, err := Parse(`?[x] := x = [1, 2, 3]`)
	assert.NoError(t, err)
	qs := script.(QueryScript)
	unif := qs.Program.Rules["?"][0].Body.(Unification)
	app := unif.Expr.(expr.Apply)
	assert.Equal(t, "list", app.Op)
	assert.Len(t, app.Args, 3)

	script2, err := Parse(`?[x] := x = #{1, 2}`)
	assert.NoError(t, err)
	qs2 := script2.(QueryScript)
	unif2 := qs2.Program.Rules["?"][0].Body.(Unification)
	app2 := unif2.Expr.(expr.Apply)
	assert.Equal(t, "set", app2.Op)
}

func TestParseModuloDoesNotCollideWithDirectiveMarker(t *testing.T) {
	script, err := Parse(`?[x] := x = 7 % 3`)
	assert.NoError(t, err)
	qs := script.(QueryScript)
	unif := qs.Program.Rules["?"][0].Body.(Unification)
	app := unif.Expr.(expr.Apply)
	assert.Equal(t, "%", app.Op)
}
