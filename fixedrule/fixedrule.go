// Package fixedrule hosts externally-provided graph/table algorithms
// invoked as typed, named-option rule applications (SPEC_FULL.md §4.10):
// a registry mapping a fixed rule's name to a uniform
// (payload, out, poison) contract, so the evaluator's Datalog core never
// needs to know Dijkstra from Louvain.
//
// Grounded on the teacher's per-`GeneratorMode` dispatch table
// (`adapter/*`'s `NewDatabase` switch) generalized from "mode name ->
// constructor" to "rule name -> algorithm struct". Every rule runs
// sequentially in the caller's goroutine; independent Dijkstra/Yen
// sources are not fanned out.
package fixedrule

import (
	"fmt"

	"github.com/cozodb/cozo-go/util"
	"github.com/cozodb/cozo-go/value"
)

// NodeNotFound reports a node referenced by a query that never appeared
// in the edge relation the graph was built from.
type NodeNotFound struct{ Node value.Value }

func (e *NodeNotFound) Error() string { return fmt.Sprintf("fixedrule: NodeNotFound: %v", e.Node) }

// BadExprValue reports an input row whose shape or type a fixed rule
// cannot use (e.g. a non-numeric edge weight column).
type BadExprValue struct{ Msg string }

func (e *BadExprValue) Error() string { return "fixedrule: BadExprValue: " + e.Msg }

// OptionNotFound reports a required named option missing from Options.
type OptionNotFound struct{ Name string }

func (e *OptionNotFound) Error() string { return "fixedrule: OptionNotFound: " + e.Name }

// WrongOptionType reports a named option present but of the wrong kind.
type WrongOptionType struct{ Name, Want string }

func (e *WrongOptionType) Error() string {
	return fmt.Sprintf("fixedrule: WrongOptionType: %s wants %s", e.Name, e.Want)
}

// Options is the named-option bag a fixed rule reads typed accessors
// from (spec.md §4.10: "option accessors for typed options
// (bool/int/unit-interval/string/list)").
type Options map[string]value.Value

func (o Options) Bool(name string, dflt bool) (bool, error) {
	v, ok := o[name]
	if !ok {
		return dflt, nil
	}
	b, ok := v.AsBool()
	if !ok {
		return false, &WrongOptionType{Name: name, Want: "bool"}
	}
	return b, nil
}

func (o Options) Int(name string, dflt int64) (int64, error) {
	v, ok := o[name]
	if !ok {
		return dflt, nil
	}
	n, ok := v.AsInt()
	if !ok {
		return 0, &WrongOptionType{Name: name, Want: "int"}
	}
	return n, nil
}

// UnitInterval reads a float option constrained to [0, 1], e.g.
// Louvain's resolution parameter.
func (o Options) UnitInterval(name string, dflt float64) (float64, error) {
	v, ok := o[name]
	if !ok {
		return dflt, nil
	}
	f, ok := v.AsNumber()
	if !ok {
		return 0, &WrongOptionType{Name: name, Want: "unit-interval float"}
	}
	if f < 0 || f > 1 {
		return 0, &BadExprValue{Msg: fmt.Sprintf("option %q = %v out of [0,1]", name, f)}
	}
	return f, nil
}

func (o Options) String(name, dflt string) (string, error) {
	v, ok := o[name]
	if !ok {
		return dflt, nil
	}
	s, ok := v.AsString()
	if !ok {
		return "", &WrongOptionType{Name: name, Want: "string"}
	}
	return s, nil
}

func (o Options) List(name string) ([]value.Value, error) {
	v, ok := o[name]
	if !ok {
		return nil, &OptionNotFound{Name: name}
	}
	l, ok := v.AsList()
	if !ok {
		return nil, &WrongOptionType{Name: name, Want: "list"}
	}
	return l, nil
}

func (o Options) Require(name string) (value.Value, error) {
	v, ok := o[name]
	if !ok {
		return value.Value{}, &OptionNotFound{Name: name}
	}
	return v, nil
}

// Payload is the input side of a fixed rule's contract: its named input
// relations (already scanned to plain rows, "restartable iterators"
// realized here as plain slices since every input is a finite, already-
// materialized relation by the time a fixed rule runs) and its Options.
type Payload struct {
	Inputs  [][]Row
	Options Options
}

// Row is one input/output tuple. Defined here (rather than imported
// from algebra) to keep fixedrule free of a dependency on the query
// compiler -- a fixed rule only ever sees already-materialized rows.
type Row = []value.Value

// Out is the destination a fixed rule streams result rows to.
type Out interface {
	Put(row Row) error
}

// sliceOut collects rows in memory; used directly by callers that just
// want a []Row back (tests, and any caller not streaming into storage).
type sliceOut struct{ rows []Row }

func (s *sliceOut) Put(row Row) error {
	s.rows = append(s.rows, append(Row(nil), row...))
	return nil
}

// Rule is one fixed rule's implementation, held as plain function
// values rather than an interface so the registry never needs a trait-
// object-like escape hatch (SPEC_FULL.md §9's "no trait objects escape
// the registry boundary").
type Rule struct {
	// Arity reports the output row width for a given options set and
	// head-arity hint (the number of variables the caller's rule head
	// names), or an error if the combination is invalid.
	Arity func(opts Options, head int) (int, error)
	Run   func(p *Payload, out Out, poison util.Poison) error
}

// Registry maps a fixed rule's name (as written in a rule application)
// to its implementation.
var Registry = map[string]Rule{
	"ShortestPathDijkstra":     dijkstraRule,
	"KShortestPathYen":         yenRule,
	"CommunityDetectionLouvain": louvainRule,
	"RandomWalk":                randomWalkRule,
	"CsvReader":                 csvReaderRule,
}

// Run looks up name in Registry and invokes it, collecting rows into a
// plain slice -- the entrypoint algebra's fixed-rule stage and the tests
// use, since they don't need to stream directly into a storage.TupleSink.
func Run(name string, p *Payload, poison util.Poison) ([]Row, error) {
	rule, ok := Registry[name]
	if !ok {
		return nil, fmt.Errorf("fixedrule: ResolveError: unknown fixed rule %q", name)
	}
	out := &sliceOut{}
	if err := rule.Run(p, out, poison); err != nil {
		return nil, err
	}
	return out.rows, nil
}
