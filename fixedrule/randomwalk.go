package fixedrule

import (
	"math/rand"

	"github.com/cozodb/cozo-go/util"
	"github.com/cozodb/cozo-go/value"
)

// randomWalkRule performs a fixed number of weighted random walks from
// each given start node: steps are weighted by the edge-weight column
// when the edge relation carries one, uniform otherwise
// (SPEC_FULL.md §4.10). Inputs[0] is the edge relation, Inputs[1] the
// start nodes; options "steps" (per-walk length, default 10) and
// "walks_per_node" (default 1).
var randomWalkRule = Rule{
	Arity: func(opts Options, head int) (int, error) { return 3, nil }, // walk_id, step, node
	Run: func(p *Payload, out Out, poison util.Poison) error {
		if len(p.Inputs) < 2 {
			return &BadExprValue{Msg: "RandomWalk needs an edge input and a start-node input"}
		}
		g, err := buildEdgeList(p.Inputs[0])
		if err != nil {
			return err
		}
		steps, err := p.Options.Int("steps", 10)
		if err != nil {
			return err
		}
		walksPerNode, err := p.Options.Int("walks_per_node", 1)
		if err != nil {
			return err
		}
		seed, err := p.Options.Int("seed", 0)
		if err != nil {
			return err
		}
		rng := rand.New(rand.NewSource(seed))

		walkID := int64(0)
		for _, row := range p.Inputs[1] {
			if len(row) < 1 {
				continue
			}
			startIdx, err := g.mustNodeIndex(row[0])
			if err != nil {
				return err
			}
			for w := int64(0); w < walksPerNode; w++ {
				if err := poison.Check(); err != nil {
					return err
				}
				cur := startIdx
				if err := out.Put(Row{value.Int(walkID), value.Int(0), g.nodes[cur]}); err != nil {
					return err
				}
				for step := int64(1); step <= steps; step++ {
					next, ok := weightedNext(g, cur, rng)
					if !ok {
						break
					}
					cur = next
					if err := out.Put(Row{value.Int(walkID), value.Int(step), g.nodes[cur]}); err != nil {
						return err
					}
				}
				walkID++
			}
		}
		return nil
	},
}

func weightedNext(g *edgeList, node int, rng *rand.Rand) (int, bool) {
	edges := g.adjOut[node]
	if len(edges) == 0 {
		return 0, false
	}
	var total float64
	for _, e := range edges {
		total += e.weight
	}
	r := rng.Float64() * total
	var acc float64
	for _, e := range edges {
		acc += e.weight
		if r <= acc {
			return e.to, true
		}
	}
	return edges[len(edges)-1].to, true
}
