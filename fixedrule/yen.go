package fixedrule

import (
	"sort"

	"github.com/cozodb/cozo-go/util"
	"github.com/cozodb/cozo-go/value"
)

// yenRule implements Yen's k-shortest-loopless-paths algorithm
// (SPEC_FULL.md §4.10: "forbids revisiting a spur node already on the
// root path"). Inputs[0] is the edge relation, Inputs[1] is a single
// (source, target) row, option "k" the path count (default 1).
var yenRule = Rule{
	Arity: func(opts Options, head int) (int, error) { return 3, nil }, // rank, dist, path
	Run: func(p *Payload, out Out, poison util.Poison) error {
		if len(p.Inputs) < 2 || len(p.Inputs[1]) == 0 {
			return &BadExprValue{Msg: "KShortestPathYen needs an edge input and a (source, target) row"}
		}
		g, err := buildEdgeList(p.Inputs[0])
		if err != nil {
			return err
		}
		k, err := p.Options.Int("k", 1)
		if err != nil {
			return err
		}
		req := p.Inputs[1][0]
		if len(req) < 2 {
			return &BadExprValue{Msg: "KShortestPathYen source/target row needs 2 columns"}
		}
		src, err := g.mustNodeIndex(req[0])
		if err != nil {
			return err
		}
		dst, err := g.mustNodeIndex(req[1])
		if err != nil {
			return err
		}

		first := shortestAvoiding(g, src, dst, nil, nil)
		if first == nil {
			return nil
		}
		found := []dijkstraResult{*first}
		candidates := []dijkstraResult{}

		for len(found) < int(k) {
			if err := poison.Check(); err != nil {
				return err
			}
			prev := found[len(found)-1]
			for i := 0; i < len(prev.path)-1; i++ {
				spur := prev.path[i]
				root := append([]int{}, prev.path[:i+1]...)

				removedEdges := map[[2]int]bool{}
				for _, f := range found {
					if len(f.path) > i && samePrefix(f.path[:i+1], root) {
						removedEdges[[2]int{f.path[i], f.path[i+1]}] = true
					}
				}
				removedNodes := map[int]bool{}
				for _, n := range root[:len(root)-1] {
					removedNodes[n] = true
				}

				spurResult := shortestAvoiding(g, spur, dst, removedNodes, removedEdges)
				if spurResult == nil {
					continue
				}
				totalPath := append(append([]int{}, root[:len(root)-1]...), spurResult.path...)
				totalDist := pathDistRoot(g, root, spurResult.dist, root[len(root)-1] == spurResult.path[0])
				if !containsPath(found, totalPath) && !containsPath(candidates, totalPath) {
					candidates = append(candidates, dijkstraResult{to: dst, dist: totalDist, path: totalPath})
				}
			}
			if len(candidates) == 0 {
				break
			}
			sort.Slice(candidates, func(i, j int) bool { return candidates[i].dist < candidates[j].dist })
			found = append(found, candidates[0])
			candidates = candidates[1:]
		}

		for rank, f := range found {
			if err := out.Put(Row{value.Int(int64(rank)), value.Float(f.dist), pathToList(g.nodes, f.path)}); err != nil {
				return err
			}
		}
		return nil
	},
}

func samePrefix(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func containsPath(results []dijkstraResult, path []int) bool {
	for _, r := range results {
		if samePrefix(r.path, path) {
			return true
		}
	}
	return false
}

// pathDistRoot recomputes the root-prefix distance directly from the
// graph rather than trusting an earlier partial sum, since root comes
// from a previously found path whose own distance already includes it;
// rootLinked is unused here and kept only for call-site symmetry.
func pathDistRoot(g *edgeList, root []int, spurDist float64, rootLinked bool) float64 {
	var rootDist float64
	for i := 0; i < len(root)-1; i++ {
		for _, e := range g.adjOut[root[i]] {
			if e.to == root[i+1] {
				rootDist += e.weight
				break
			}
		}
	}
	return rootDist + spurDist
}

// shortestAvoiding runs Dijkstra from src to dst, treating every node in
// removedNodes and every edge in removedEdges as absent from the graph.
func shortestAvoiding(g *edgeList, src, dst int, removedNodes map[int]bool, removedEdges map[[2]int]bool) *dijkstraResult {
	const inf = 1e308
	dist := make([]float64, len(g.nodes))
	prevNode := make([]int, len(g.nodes))
	for i := range dist {
		dist[i] = inf
		prevNode[i] = -1
	}
	dist[src] = 0
	visited := make([]bool, len(g.nodes))

	for {
		u := -1
		best := inf
		for i, d := range dist {
			if !visited[i] && d < best && !removedNodes[i] {
				best = d
				u = i
			}
		}
		if u == -1 {
			break
		}
		visited[u] = true
		if u == dst {
			break
		}
		for _, e := range g.adjOut[u] {
			if removedNodes[e.to] || removedEdges[[2]int{u, e.to}] {
				continue
			}
			nd := dist[u] + e.weight
			if nd < dist[e.to] {
				dist[e.to] = nd
				prevNode[e.to] = u
			}
		}
	}
	if dist[dst] >= inf {
		return nil
	}
	var path []int
	for n := dst; n != -1; n = prevNode[n] {
		path = append([]int{n}, path...)
	}
	return &dijkstraResult{to: dst, dist: dist[dst], path: path}
}
