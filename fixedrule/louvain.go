package fixedrule

import (
	"github.com/cozodb/cozo-go/util"
	"github.com/cozodb/cozo-go/value"
)

// louvainRule implements one Louvain community-detection pass per level:
// iterate modularity-gain node moves until no further move improves
// modularity, then collapse each community into a single super-node and
// repeat on the collapsed graph, stopping when a level produces no
// merge (SPEC_FULL.md §4.10). Only one variant, over per-node adjacency
// maps, is implemented (see the recorded Open Question decision) -- community
// *labels* are an arbitrary integer assigned in node-discovery order,
// not meaningful across runs; only the partition itself is.
var louvainRule = Rule{
	Arity: func(opts Options, head int) (int, error) { return 2, nil }, // node, community
	Run: func(p *Payload, out Out, poison util.Poison) error {
		if len(p.Inputs) < 1 {
			return &BadExprValue{Msg: "CommunityDetectionLouvain needs an edge input"}
		}
		g, err := buildEdgeList(p.Inputs[0])
		if err != nil {
			return err
		}
		n := len(g.nodes)
		if n == 0 {
			return nil
		}
		resolution, err := p.Options.UnitInterval("resolution", 1.0)
		if err != nil {
			return err
		}
		if resolution == 0 {
			resolution = 1.0
		}

		// undirected weighted adjacency as plain maps, rebuilt each level
		adj := make([]map[int]float64, n)
		for i := range adj {
			adj[i] = map[int]float64{}
		}
		for u, edges := range g.adjOut {
			for _, e := range edges {
				adj[u][e.to] += e.weight
				adj[e.to][u] += e.weight
			}
		}

		// community assignment of each original node, updated as levels collapse
		assignment := make([]int, n)
		for i := range assignment {
			assignment[i] = i
		}

		curAdj := adj
		curOf := make([]int, n) // curAdj-node index for original node i
		for i := range curOf {
			curOf[i] = i
		}

		for {
			if err := poison.Check(); err != nil {
				return err
			}
			comm, moved, err := louvainLevel(curAdj, resolution, poison)
			if err != nil {
				return err
			}
			for i := range assignment {
				assignment[i] = comm[curOf[i]]
			}
			if !moved {
				break
			}
			curAdj = collapse(curAdj, comm)
			newCurOf := make([]int, n)
			for i, c := range curOf {
				newCurOf[i] = comm[c]
			}
			curOf = newCurOf
			if len(curAdj) <= 1 {
				break
			}
		}

		for i, c := range assignment {
			if err := out.Put(Row{g.nodes[i], value.Int(int64(c))}); err != nil {
				return err
			}
		}
		return nil
	},
}

// louvainLevel runs local modularity-gain moves on one level's graph,
// returning each level-node's community id (relabeled to a dense
// 0..k-1 range) and whether any node changed community.
func louvainLevel(adj []map[int]float64, resolution float64, poison util.Poison) ([]int, bool, error) {
	n := len(adj)
	comm := make([]int, n)
	degree := make([]float64, n)
	var totalWeight float64
	for i := range comm {
		comm[i] = i
		for _, w := range adj[i] {
			degree[i] += w
		}
		totalWeight += degree[i]
	}
	if totalWeight == 0 {
		return relabel(comm), false, nil
	}
	m2 := totalWeight // sum of degrees = 2*edge weight for an undirected graph built symmetrically
	commDegree := append([]float64{}, degree...)

	moved := false
	improved := true
	for improved {
		improved = false
		for i := 0; i < n; i++ {
			if err := poison.Check(); err != nil {
				return nil, false, err
			}
			cur := comm[i]
			commDegree[cur] -= degree[i]
			gain := map[int]float64{}
			for j, w := range adj[i] {
				gain[comm[j]] += w
			}
			best, bestGain := cur, gain[cur]-resolution*degree[i]*commDegree[cur]/m2
			for c, g := range gain {
				val := g - resolution*degree[i]*commDegree[c]/m2
				if val > bestGain {
					best, bestGain = c, val
				}
			}
			commDegree[best] += degree[i]
			if best != cur {
				comm[i] = best
				moved, improved = true, true
			}
		}
	}
	return relabel(comm), moved, nil
}

func relabel(comm []int) []int {
	next := map[int]int{}
	out := make([]int, len(comm))
	for i, c := range comm {
		id, ok := next[c]
		if !ok {
			id = len(next)
			next[c] = id
		}
		out[i] = id
	}
	return out
}

// collapse builds the next level's graph: one node per community, edge
// weights summed across every pair of original edges between the two
// communities (self-loops included, for modularity's internal-edge term).
func collapse(adj []map[int]float64, comm []int) []map[int]float64 {
	k := 0
	for _, c := range comm {
		if c+1 > k {
			k = c + 1
		}
	}
	next := make([]map[int]float64, k)
	for i := range next {
		next[i] = map[int]float64{}
	}
	for u, edges := range adj {
		cu := comm[u]
		for v, w := range edges {
			cv := comm[v]
			next[cu][cv] += w / 2 // each undirected edge counted from both endpoints above
		}
	}
	return next
}
