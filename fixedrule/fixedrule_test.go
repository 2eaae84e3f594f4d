package fixedrule

import (
	"testing"

	"github.com/cozodb/cozo-go/util"
	"github.com/cozodb/cozo-go/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func edgeRow(from, to int64, weight float64) Row {
	return Row{value.Int(from), value.Int(to), value.Float(weight)}
}

func TestDijkstraSingleSourceWithPath(t *testing.T) {
	edges := []Row{edgeRow(1, 2, 1.0), edgeRow(2, 3, 1.0), edgeRow(1, 3, 3.0)}
	starts := []Row{{value.Int(1)}}
	targets := []Row{{value.Int(3)}}
	p := &Payload{Inputs: [][]Row{edges, starts, targets}, Options: Options{}}

	rows, err := Run("ShortestPathDijkstra", p, util.NewPoison())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, value.Int(1), rows[0][0])
	assert.Equal(t, value.Int(3), rows[0][1])
	assert.Equal(t, value.Float(2.0), rows[0][2])
	path, ok := rows[0][3].AsList()
	require.True(t, ok)
	assert.Equal(t, []value.Value{value.Int(1), value.Int(2), value.Int(3)}, path)
}

func TestDijkstraUnknownTargetNodeFails(t *testing.T) {
	edges := []Row{edgeRow(1, 2, 1.0)}
	starts := []Row{{value.Int(1)}}
	targets := []Row{{value.Int(99)}}
	p := &Payload{Inputs: [][]Row{edges, starts, targets}, Options: Options{}}

	_, err := Run("ShortestPathDijkstra", p, util.NewPoison())
	require.Error(t, err)
	var nf *NodeNotFound
	assert.ErrorAs(t, err, &nf)
}

func TestYenKShortestPathsOrdersByDistance(t *testing.T) {
	edges := []Row{
		edgeRow(1, 2, 1.0), edgeRow(2, 4, 1.0),
		edgeRow(1, 3, 1.0), edgeRow(3, 4, 1.5),
	}
	req := []Row{{value.Int(1), value.Int(4)}}
	p := &Payload{Inputs: [][]Row{edges, req}, Options: Options{"k": value.Int(2)}}

	rows, err := Run("KShortestPathYen", p, util.NewPoison())
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, value.Int(0), rows[0][0])
	assert.Equal(t, value.Float(2.0), rows[0][1])
	assert.Equal(t, value.Int(1), rows[1][0])
	assert.Equal(t, value.Float(2.5), rows[1][1])
}

func TestLouvainSplitsTwoDisjointCliques(t *testing.T) {
	edges := []Row{
		edgeRow(1, 2, 1.0), edgeRow(2, 3, 1.0), edgeRow(1, 3, 1.0),
		edgeRow(4, 5, 1.0), edgeRow(5, 6, 1.0), edgeRow(4, 6, 1.0),
	}
	p := &Payload{Inputs: [][]Row{edges}, Options: Options{}}

	rows, err := Run("CommunityDetectionLouvain", p, util.NewPoison())
	require.NoError(t, err)
	require.Len(t, rows, 6)

	communityOf := map[int64]int64{}
	for _, r := range rows {
		node, _ := r[0].AsInt()
		comm, _ := r[1].AsInt()
		communityOf[node] = comm
	}
	assert.Equal(t, communityOf[1], communityOf[2])
	assert.Equal(t, communityOf[2], communityOf[3])
	assert.Equal(t, communityOf[4], communityOf[5])
	assert.Equal(t, communityOf[5], communityOf[6])
	assert.NotEqual(t, communityOf[1], communityOf[4])
}

func TestRandomWalkStaysOnGraphAndRespectsStepCount(t *testing.T) {
	edges := []Row{edgeRow(1, 2, 1.0), edgeRow(2, 1, 1.0)}
	starts := []Row{{value.Int(1)}}
	p := &Payload{Inputs: [][]Row{edges, starts}, Options: Options{"steps": value.Int(4), "seed": value.Int(7)}}

	rows, err := Run("RandomWalk", p, util.NewPoison())
	require.NoError(t, err)
	assert.Len(t, rows, 5) // step 0..4 inclusive
	for _, r := range rows {
		node, _ := r[2].AsInt()
		assert.Contains(t, []int64{1, 2}, node)
	}
}

func TestCsvReaderCoercesTypedColumns(t *testing.T) {
	data := "name,age\nalice,30\nbob,25\n"
	p := &Payload{Options: Options{
		"data":    value.Str(data),
		"typing":  value.List([]value.Value{value.Str("string"), value.Str("int")}),
	}}

	rows, err := Run("CsvReader", p, util.NewPoison())
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, value.Str("alice"), rows[0][0])
	assert.Equal(t, value.Int(30), rows[0][1])
}

func TestUnknownFixedRuleReturnsResolveError(t *testing.T) {
	_, err := Run("NoSuchAlgorithm", &Payload{}, util.NewPoison())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ResolveError")
}
