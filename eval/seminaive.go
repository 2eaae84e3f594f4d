package eval

import (
	"github.com/cozodb/cozo-go/algebra"
	"github.com/cozodb/cozo-go/logic"
	"github.com/cozodb/cozo-go/parse"
	"github.com/cozodb/cozo-go/storage"
	"github.com/cozodb/cozo-go/util"
)

// maxEpochs bounds the fixed-point loop so a mis-stratified or buggy
// program cannot spin forever; any real program reaches a fixed point
// in far fewer epochs than this, since every epoch must either add a
// row to some store or the loop stops.
const maxEpochs = 100000

// buildArena creates one store per rule name in prog, seeded from that
// rule's first alternative's head/aggregation shape (every alternative
// of one rule name is required to share head arity, standard Datalog
// practice).
func buildArena(prog *parse.InputProgram) (map[string]*store, error) {
	arena := map[string]*store{}
	for _, name := range prog.Order {
		alts := prog.Rules[name]
		if len(alts) == 0 {
			continue
		}
		s, err := newStore(name, alts[0].Head, alts[0].Aggrs)
		if err != nil {
			return nil, err
		}
		arena[name] = s
	}
	return arena, nil
}

// compilePlans compiles every alternative of every rule named in names
// into its safe-ordered Plan(s), grouped by owning rule name.
func compilePlans(prog *parse.InputProgram, names []string) (map[string][]*algebra.Plan, error) {
	plans := map[string][]*algebra.Plan{}
	for _, name := range names {
		for _, rule := range prog.Rules[name] {
			clauses, err := logic.NormalizeRule(rule)
			if err != nil {
				return nil, err
			}
			for _, clause := range clauses {
				plan, err := algebra.Compile(clause)
				if err != nil {
					return nil, err
				}
				plans[name] = append(plans[name], plan)
			}
		}
	}
	return plans, nil
}

// evalStratum runs one stratum's rules to a fixed point, per spec.md
// §4.8: epoch 0 seeds delta from a naive pass, each following epoch
// re-evaluates every rule of the stratum, whether or not its body reads
// a rule whose delta changed (every call reads prev union delta, so a
// rule naturally stalls once nothing new is reachable), and the loop
// ends when no store's delta grew during the last epoch.
//
// Simplification from the literal per-atom hook rotation spec.md
// describes: each call always reads prev union delta rather than
// pinning exactly one "recursive hook" atom to delta-only per epoch.
// This still only ever inserts a row into delta when it is absent from
// prev (store.insert's guard), so soundness and eventual termination
// both hold; the tradeoff is strictly bounded, not adversarial, extra
// re-derivation work per epoch rather than the touched-literature's
// minimal one.
func evalStratum(names []string, prog *parse.InputProgram, arena map[string]*store, tx *storage.SessionTx, poison util.Poison) error {
	plans, err := compilePlans(prog, names)
	if err != nil {
		return err
	}
	ctx := &algebra.Context{
		Poison: poison,
		Rel:    relationSource{tx: tx},
		Rule:   arenaRuleSource{arena: arena},
		Search: storageSearchSource{tx: tx},
	}

	for epoch := 0; epoch < maxEpochs; epoch++ {
		if err := poison.Check(); err != nil {
			return err
		}
		anyNew := false
		for _, name := range names {
			s := arena[name]
			for _, plan := range plans[name] {
				rows, err := plan.Eval(ctx)
				if err != nil {
					return err
				}
				for _, row := range rows {
					deltaBefore, scratchBefore := len(s.delta), len(s.scratch)
					s.insert(row)
					if len(s.delta) != deltaBefore || len(s.scratch) != scratchBefore {
						anyNew = true
					}
				}
			}
		}
		if !anyNew {
			break
		}
		for _, name := range names {
			arena[name].swap()
		}
	}

	for _, name := range names {
		if err := arena[name].finalize(); err != nil {
			return err
		}
	}
	return nil
}
