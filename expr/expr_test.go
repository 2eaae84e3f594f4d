package expr

import (
	"testing"

	"github.com/cozodb/cozo-go/value"
	"github.com/stretchr/testify/assert"
)

func sym(name string) value.Symbol { return value.NewSymbol(name, value.Span{}) }

func TestEvalArithmeticAndComparison(t *testing.T) {
	e := Apply{Op: ">", Args: []Expr{
		Apply{Op: "+", Args: []Expr{Const{Val: value.Int(2)}, Const{Val: value.Int(3)}}},
		Const{Val: value.Int(4)},
	}}
	v, err := Eval(e, Env{})
	assert.NoError(t, err)
	b, _ := v.AsBool()
	assert.True(t, b)
}

func TestEvalBindingFromEnv(t *testing.T) {
	e := Apply{Op: "+", Args: []Expr{Binding{Sym: sym("x")}, Const{Val: value.Int(1)}}}
	v, err := Eval(e, Env{"x": value.Int(41)})
	assert.NoError(t, err)
	i, _ := v.AsInt()
	assert.Equal(t, int64(42), i)
}

func TestEvalToConstFailsOnFreeVar(t *testing.T) {
	e := Binding{Sym: sym("x")}
	_, err := EvalToConst(e)
	assert.Error(t, err)
}

func TestPartialEvalFoldsConstantsAndLeavesFreeVars(t *testing.T) {
	e := Apply{Op: "+", Args: []Expr{
		Apply{Op: "*", Args: []Expr{Const{Val: value.Int(2)}, Const{Val: value.Int(3)}}},
		Binding{Sym: sym("y")},
	}}
	out := PartialEval(e, Env{})
	app, ok := out.(Apply)
	assert.True(t, ok)
	assert.Equal(t, "+", app.Op)
	c, ok := app.Args[0].(Const)
	assert.True(t, ok)
	i, _ := c.Val.AsInt()
	assert.Equal(t, int64(6), i)

	out2 := PartialEval(out, Env{"y": value.Int(1)})
	c2, ok := out2.(Const)
	assert.True(t, ok)
	i2, _ := c2.Val.AsInt()
	assert.Equal(t, int64(7), i2)
}

func TestNegateComparisonFlips(t *testing.T) {
	e := Apply{Op: "<", Args: []Expr{Const{Val: value.Int(1)}, Const{Val: value.Int(2)}}}
	neg := Negate(e, value.Span{})
	app := neg.(Apply)
	assert.Equal(t, ">=", app.Op)
}

func TestNegateDoubleNegationCancels(t *testing.T) {
	e := Apply{Op: "not", Args: []Expr{Binding{Sym: sym("p")}}}
	neg := Negate(e, value.Span{})
	_, ok := neg.(Binding)
	assert.True(t, ok)
}

func TestFreeVars(t *testing.T) {
	e := Apply{Op: "+", Args: []Expr{Binding{Sym: sym("x")}, Binding{Sym: sym("y")}}}
	fv := FreeVars(e, map[string]bool{"y": true})
	_, hasX := fv["x"]
	_, hasY := fv["y"]
	assert.True(t, hasX)
	assert.False(t, hasY)
}

func TestCompileAndExec(t *testing.T) {
	e := Apply{Op: "+", Args: []Expr{Binding{Sym: sym("x"), Pos: 1}, Const{Val: value.Int(10)}}}
	prog, err := Compile(e)
	assert.NoError(t, err)
	row := []value.Value{value.Int(0), value.Int(5)}
	v, err := Exec(prog, row)
	assert.NoError(t, err)
	i, _ := v.AsInt()
	assert.Equal(t, int64(15), i)
}

func TestCompileRejectsUnresolvedBinding(t *testing.T) {
	_, err := Compile(Binding{Sym: sym("x"), Pos: -1})
	assert.Error(t, err)
}
