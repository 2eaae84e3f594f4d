package eval

import (
	"fmt"

	"github.com/cozodb/cozo-go/parse"
	"github.com/cozodb/cozo-go/stratify"
)

// checkAggregationPoisoning rejects a stratum that both recurses (a
// nontrivial SCC, or a single rule with a self-edge) and carries a normal
// (non-meet) aggregation: package stratify only tracks negation parity
// when building strata (its BuildCallGraph has no notion of
// aggregation), so this extra pass re-walks the same edges with the
// aggregation info InputRule.Aggrs carries, closing the gap spec.md §4.5
// calls out -- a normal aggregation needs its input fully settled first,
// the same way negation does, and a cycle through it can never settle.
// Meet aggregations (min/max) combine monotonically inside the fixed
// point and are allowed in a recursive stratum.
func checkAggregationPoisoning(prog *parse.InputProgram, strata []stratify.Stratum, edges map[string][]stratify.Edge) error {
	for _, stratum := range strata {
		recursive := len(stratum.Rules) > 1
		if !recursive && len(stratum.Rules) == 1 {
			name := stratum.Rules[0]
			for _, e := range edges[name] {
				if e.To == name {
					recursive = true
					break
				}
			}
		}
		if !recursive {
			continue
		}
		for _, name := range stratum.Rules {
			if ruleAggregates(prog, name) {
				return fmt.Errorf("eval: EvalError: rule %q aggregates across a recursive cycle %v, which can never reach a fixed point", name, stratum.Rules)
			}
		}
	}
	return nil
}

func ruleAggregates(prog *parse.InputProgram, name string) bool {
	for _, rule := range prog.Rules[name] {
		for _, a := range rule.Aggrs {
			if a == nil {
				continue
			}
			if _, ok := meetAggrs[a.Name]; !ok {
				return true
			}
		}
	}
	return false
}
