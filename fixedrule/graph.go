package fixedrule

import (
	"github.com/cozodb/cozo-go/value"
)

// edgeList is a weighted adjacency graph built from a `from, to[, weight]`
// input relation, with bijective integer node indices (spec.md §4.10,
// "helpers to convert an edge-like input into a weighted adjacency
// graph with bijective node indices").
type edgeList struct {
	nodes   []value.Value    // index -> original node value
	index   map[string]int   // encoded node value -> index
	adjOut  [][]weightedEdge // index -> outgoing edges
}

type weightedEdge struct {
	to     int
	weight float64
}

func encodeNode(v value.Value) string { return string(value.EncodeValue(nil, v)) }

// buildEdgeList reads rows shaped [from, to] or [from, to, weight]
// (weight defaults to 1.0 when the row has only two columns).
func buildEdgeList(rows []Row) (*edgeList, error) {
	g := &edgeList{index: map[string]int{}}
	nodeOf := func(v value.Value) int {
		key := encodeNode(v)
		if i, ok := g.index[key]; ok {
			return i
		}
		i := len(g.nodes)
		g.index[key] = i
		g.nodes = append(g.nodes, v)
		g.adjOut = append(g.adjOut, nil)
		return i
	}
	for _, row := range rows {
		if len(row) < 2 {
			return nil, &BadExprValue{Msg: "edge row needs at least (from, to)"}
		}
		from, to := nodeOf(row[0]), nodeOf(row[1])
		weight := 1.0
		if len(row) >= 3 {
			w, ok := row[2].AsNumber()
			if !ok {
				return nil, &BadExprValue{Msg: "edge weight must be numeric"}
			}
			weight = w
		}
		g.adjOut[from] = append(g.adjOut[from], weightedEdge{to: to, weight: weight})
	}
	return g, nil
}

func (g *edgeList) nodeIndex(v value.Value) (int, bool) {
	i, ok := g.index[encodeNode(v)]
	return i, ok
}

func (g *edgeList) mustNodeIndex(v value.Value) (int, error) {
	i, ok := g.nodeIndex(v)
	if !ok {
		return 0, &NodeNotFound{Node: v}
	}
	return i, nil
}

func pathToList(nodes []value.Value, path []int) value.Value {
	vs := make([]value.Value, len(path))
	for i, idx := range path {
		vs[i] = nodes[idx]
	}
	return value.List(vs)
}
