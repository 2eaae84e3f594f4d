package fixedrule

import (
	"container/heap"

	"github.com/cozodb/cozo-go/util"
	"github.com/cozodb/cozo-go/value"
)

// dijkstraRule implements single-source (and, absent a target input, all-pairs)
// shortest path with optional tie-keeping (SPEC_FULL.md §4.10: "Dijkstra
// keeps parallel equal-length paths when keep_ties is set"). Inputs[0]
// is the edge relation (from, to[, weight]); Inputs[1] is the set of
// start nodes; Inputs[2], if present, is the set of target nodes (all
// pairs from every start node otherwise).
var dijkstraRule = Rule{
	Arity: func(opts Options, head int) (int, error) { return 4, nil }, // start, end, dist, path
	Run: func(p *Payload, out Out, poison util.Poison) error {
		if len(p.Inputs) < 2 {
			return &BadExprValue{Msg: "Dijkstra needs an edge input and a start-node input"}
		}
		g, err := buildEdgeList(p.Inputs[0])
		if err != nil {
			return err
		}
		keepTies, err := p.Options.Bool("keep_ties", false)
		if err != nil {
			return err
		}

		var targets map[int]bool
		if len(p.Inputs) >= 3 {
			targets = map[int]bool{}
			for _, row := range p.Inputs[2] {
				if len(row) < 1 {
					continue
				}
				idx, err := g.mustNodeIndex(row[0])
				if err != nil {
					return err
				}
				targets[idx] = true
			}
		}

		for _, row := range p.Inputs[1] {
			if err := poison.Check(); err != nil {
				return err
			}
			if len(row) < 1 {
				continue
			}
			startIdx, err := g.mustNodeIndex(row[0])
			if err != nil {
				return err
			}
			results, err := dijkstraFrom(g, startIdx, targets, keepTies, poison)
			if err != nil {
				return err
			}
			for _, r := range results {
				if err := out.Put(Row{g.nodes[startIdx], g.nodes[r.to], value.Float(r.dist), pathToList(g.nodes, r.path)}); err != nil {
					return err
				}
			}
		}
		return nil
	},
}

type dijkstraResult struct {
	to   int
	dist float64
	path []int
}

type pqItem struct {
	node int
	dist float64
	path []int
}

type priorityQueue []pqItem

func (pq priorityQueue) Len() int            { return len(pq) }
func (pq priorityQueue) Less(i, j int) bool  { return pq[i].dist < pq[j].dist }
func (pq priorityQueue) Swap(i, j int)       { pq[i], pq[j] = pq[j], pq[i] }
func (pq *priorityQueue) Push(x interface{}) { *pq = append(*pq, x.(pqItem)) }
func (pq *priorityQueue) Pop() interface{} {
	old := *pq
	n := len(old)
	it := old[n-1]
	*pq = old[:n-1]
	return it
}

// dijkstraFrom runs single-source Dijkstra from startIdx. When keepTies
// is set, every shortest path tied for minimum distance to a settled
// node is emitted, not just the first one found.
func dijkstraFrom(g *edgeList, startIdx int, targets map[int]bool, keepTies bool, poison util.Poison) ([]dijkstraResult, error) {
	const inf = 1e308
	dist := make([]float64, len(g.nodes))
	for i := range dist {
		dist[i] = inf
	}
	dist[startIdx] = 0
	paths := map[int][][]int{startIdx: {{startIdx}}}
	settled := make([]bool, len(g.nodes))

	pq := &priorityQueue{{node: startIdx, dist: 0, path: []int{startIdx}}}
	heap.Init(pq)
	for pq.Len() > 0 {
		if err := poison.Check(); err != nil {
			return nil, err
		}
		item := heap.Pop(pq).(pqItem)
		if settled[item.node] {
			if keepTies && item.dist == dist[item.node] {
				paths[item.node] = append(paths[item.node], item.path)
			}
			continue
		}
		settled[item.node] = true
		for _, e := range g.adjOut[item.node] {
			nd := item.dist + e.weight
			if nd < dist[e.to] {
				dist[e.to] = nd
				newPath := append(append([]int{}, item.path...), e.to)
				paths[e.to] = [][]int{newPath}
				heap.Push(pq, pqItem{node: e.to, dist: nd, path: newPath})
			} else if keepTies && nd == dist[e.to] {
				newPath := append(append([]int{}, item.path...), e.to)
				heap.Push(pq, pqItem{node: e.to, dist: nd, path: newPath})
			}
		}
	}

	var out []dijkstraResult
	for idx, d := range dist {
		if d >= inf || idx == startIdx {
			continue
		}
		if targets != nil && !targets[idx] {
			continue
		}
		for _, path := range paths[idx] {
			out = append(out, dijkstraResult{to: idx, dist: d, path: path})
		}
	}
	return out, nil
}
