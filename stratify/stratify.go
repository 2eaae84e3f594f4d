package stratify

import "fmt"

// Stratum is one group of rules that must be fully evaluated to a fixed
// point before the next stratum starts: either a single rule, or a set
// of mutually (positively) recursive rules.
type Stratum struct {
	Rules []string
}

// UnstratifiableError reports a negative dependency that falls inside a
// recursive cycle -- the program has no consistent stratification.
type UnstratifiableError struct {
	Cycle []string
}

func (e *UnstratifiableError) Error() string {
	return fmt.Sprintf("program cannot be stratified: negation through recursive cycle %v", e.Cycle)
}

// Program is the minimal view Stratify needs of a parsed program: a
// rule-name dependency graph. Callers build it with BuildCallGraph.
type Program struct {
	Nodes []string
	Edges map[string][]Edge
}

// Stratify groups a program's rules into strata in safe evaluation
// order: base rules (no rule dependencies) first, through rules that
// depend only on earlier/same-stratum rules last. It fails if any
// negative edge lands inside a strongly connected component, since that
// rule's negation could never see a fully-materialized relation.
func Stratify(p Program) ([]Stratum, error) {
	comps := stronglyConnectedComponents(p.Nodes, p.Edges)

	compOf := map[string]int{}
	for i, comp := range comps {
		for _, n := range comp {
			compOf[n] = i
		}
	}

	for i, comp := range comps {
		if len(comp) == 1 {
			// A single-node component can still self-negate, e.g.
			// "p[x] := *base[x], not p[x]" -- check self-edges too.
			n := comp[0]
			for _, e := range p.Edges[n] {
				if e.Negative && compOf[e.To] == i {
					return nil, &UnstratifiableError{Cycle: comp}
				}
			}
			continue
		}
		for _, n := range comp {
			for _, e := range p.Edges[n] {
				if e.Negative && compOf[e.To] == i {
					return nil, &UnstratifiableError{Cycle: comp}
				}
			}
		}
	}

	strata := make([]Stratum, len(comps))
	for i, comp := range comps {
		strata[i] = Stratum{Rules: comp}
	}
	return strata, nil
}
