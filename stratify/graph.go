// Package stratify computes a safe evaluation order for a Datalog
// program's rules: a sequence of strata such that every rule's positive
// dependencies land in the same or an earlier stratum and every negative
// dependency lands strictly earlier, so negation is always evaluated
// against a fully materialized relation (SPEC_FULL.md §4.5).
//
// Grounded on the teacher's dependency-before-dependent ordering intent
// (schema/ddl_ordering.go's topologicalSort/SortTablesByDependencies),
// generalized from a single DFS pass that fails outright on a cycle to a
// Tarjan SCC pass that collapses a cycle into one stratum instead --
// mutually recursive rules (e.g. transitive closure) are not an error in
// Datalog the way a circular table dependency is in DDL ordering; only a
// cycle carrying a negative edge is.
package stratify

import "github.com/cozodb/cozo-go/parse"

// Edge is one rule-to-rule call: From's body invokes To, directly
// (Negative false) or beneath a Negation (Negative true).
type Edge struct {
	From, To string
	Negative bool
}

// BuildCallGraph walks every rule clause in prog and collects the
// RuleApply edges it contains. RelationApply/NamedFieldRelationApply
// reads are not edges: a stored relation is always fully materialized,
// so it imposes no ordering constraint.
func BuildCallGraph(prog *parse.InputProgram) (nodes []string, edges map[string][]Edge) {
	edges = map[string][]Edge{}
	for _, name := range prog.Order {
		if _, ok := edges[name]; !ok {
			nodes = append(nodes, name)
			edges[name] = nil
		}
		for _, rule := range prog.Rules[name] {
			walkAtom(rule.Body, false, func(callee string, negative bool) {
				edges[name] = append(edges[name], Edge{From: name, To: callee, Negative: negative})
			})
		}
	}
	return nodes, edges
}

// walkAtom recursively finds every RuleApply reachable from a, reporting
// each with whether it sits beneath an odd number of enclosing
// Negations.
func walkAtom(a parse.InputAtom, negated bool, report func(callee string, negative bool)) {
	switch n := a.(type) {
	case parse.RuleApply:
		report(n.Name, negated)
	case parse.Conjunction:
		for _, at := range n.Atoms {
			walkAtom(at, negated, report)
		}
	case parse.Disjunction:
		for _, at := range n.Alts {
			walkAtom(at, negated, report)
		}
	case parse.Negation:
		walkAtom(n.Atom, !negated, report)
	case parse.FixedRuleApply:
		// A fixed-rule call's rule inputs are a dependency like any
		// RuleApply, but always reported as poisoned: spec.md §4.5 treats
		// "a call into a fixed-rule" as poisoning regardless of negation,
		// since a fixed rule re-reads its input in full rather than
		// participating in the host's delta/prev semi-naive rotation.
		for _, in := range n.Inputs {
			if !in.Relation {
				report(in.Name, true)
			}
		}
	default:
		// RelationApply, NamedFieldRelationApply, Predicate, Unification,
		// Search, FixedRows: no rule calls inside.
	}
}
