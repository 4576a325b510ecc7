package datastructure

import (
	"bytes"
	"errors"
	"math"
	"testing"

	"github.com/lintang-b-s/trafficshed/pkg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func squareGraph() (*MapGraph, map[int64]float64) {
	g := NewMapGraph()
	g.AddNode(1, -7.7600, 110.3700)
	g.AddNode(2, -7.7600, 110.3710)
	g.AddNode(3, -7.7610, 110.3710)
	g.AddNode(4, -7.7610, 110.3700)

	g.AddEdge(MapEdge{From: 1, To: 2, Length: 110, RoadClass: "residential"})
	g.AddEdge(MapEdge{From: 1, To: 2, Length: 180, RoadClass: "residential"}) // detour, longer copy wins
	g.AddEdge(MapEdge{From: 1, To: 2, Length: 95, RoadClass: "residential"})
	g.AddEdge(MapEdge{From: 2, To: 3, Length: 110, RoadClass: "service"})
	g.AddEdge(MapEdge{From: 3, To: 4, Length: 110, RoadClass: "footway"})
	g.AddEdge(MapEdge{From: 4, To: 1, Length: 110, RoadClass: "['residential', 'driveway']"})
	g.AddEdge(MapEdge{From: 4, To: 4, Length: 30, RoadClass: "residential"})
	g.AddEdge(MapEdge{From: 2, To: 1, Length: 110, RoadClass: "primary", OneWay: true})

	transit := map[int64]float64{1: 0, 2: 20, 3: 40}
	return g, transit
}

func TestBuildEdgeTable(t *testing.T) {
	g, transit := squareGraph()
	et, err := BuildEdgeTable(g, transit, 1, zap.NewNop())
	require.NoError(t, err)

	assert.Equal(t, 4, et.NumberOfNodes())
	assert.Equal(t, 5, et.NumberOfEdges())
	assert.Equal(t, int64(1), et.GetDestination())

	t.Run("parallel edges keep the longest", func(t *testing.T) {
		e, ok := et.GetEdge(1, 2)
		require.True(t, ok)
		assert.Equal(t, 180.0, e.GetLength())
	})

	t.Run("self loops are dropped", func(t *testing.T) {
		assert.False(t, et.HasEdge(4, 4))
	})

	t.Run("times and delta", func(t *testing.T) {
		e, _ := et.GetEdge(2, 1)
		assert.Equal(t, 20.0, e.GetStartTime())
		assert.Equal(t, 0.0, e.GetEndTime())
		assert.Equal(t, -20.0, e.GetDelta())
		assert.True(t, e.MakesProgress())
		assert.True(t, e.IsOneWay())
		assert.Equal(t, pkg.UNRESOLVED, e.GetNextHop())
		assert.Equal(t, int64(1), e.GetSkipTarget())
	})

	t.Run("unreachable node has NaN transit time", func(t *testing.T) {
		n, ok := et.GetNode(4)
		require.True(t, ok)
		assert.False(t, n.IsReachable())
		e, _ := et.GetEdge(3, 4)
		assert.True(t, math.IsNaN(e.GetDelta()))
		assert.False(t, e.MakesProgress())
	})

	t.Run("ignored road classes", func(t *testing.T) {
		ignored := map[EdgeKey]bool{
			NewEdgeKey(1, 2): false,
			NewEdgeKey(2, 3): true,
			NewEdgeKey(3, 4): true,
			NewEdgeKey(4, 1): true,
			NewEdgeKey(2, 1): false,
		}
		for key, want := range ignored {
			e, ok := et.GetEdgeByKey(key)
			require.True(t, ok)
			assert.Equal(t, want, e.IsIgnored(), "edge %v", key)
		}
		assert.Equal(t, 3, et.CountIgnored())
		assert.Equal(t, 2, et.CountUnresolved())
	})

	t.Run("edges are sorted by key", func(t *testing.T) {
		edges := et.Edges()
		for i := 1; i < len(edges); i++ {
			assert.True(t, edges[i-1].GetKey().Less(edges[i].GetKey()))
		}
	})

	t.Run("adjacency", func(t *testing.T) {
		out := []int64{}
		et.ForOutEdgesOf(2, func(e *Edge) { out = append(out, e.GetV()) })
		assert.ElementsMatch(t, []int64{1, 3}, out)

		in := []int64{}
		et.ForInEdgesOf(1, func(e *Edge) { in = append(in, e.GetU()) })
		assert.ElementsMatch(t, []int64{2, 4}, in)
	})
}

func TestBuildEdgeTableMalformed(t *testing.T) {
	testCases := []struct {
		name string
		edge MapEdge
	}{
		{name: "unknown tail", edge: MapEdge{From: 9, To: 1, Length: 10}},
		{name: "unknown head", edge: MapEdge{From: 1, To: 9, Length: 10}},
		{name: "zero length", edge: MapEdge{From: 1, To: 2, Length: 0}},
	}

	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			g := NewMapGraph()
			g.AddNode(1, 0, 0)
			g.AddNode(2, 0, 0.001)
			g.AddEdge(tt.edge)

			_, err := BuildEdgeTable(g, map[int64]float64{1: 0, 2: 5}, 1, nil)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformedGraph))
		})
	}
}

func TestEdgeTableEncodeDecode(t *testing.T) {
	g, transit := squareGraph()
	et, err := BuildEdgeTable(g, transit, 1, zap.NewNop())
	require.NoError(t, err)

	e, _ := et.GetEdge(1, 2)
	e.SetNextHop(3)
	e.SetSkipTarget(2)
	e.SetThroughTraffic(12.5)
	sink, _ := et.GetEdge(2, 1)
	sink.SetNextHop(pkg.SINK)

	var buf bytes.Buffer
	require.NoError(t, et.Encode(&buf))

	decoded, err := DecodeEdgeTable(&buf)
	require.NoError(t, err)

	require.Equal(t, et.NumberOfEdges(), decoded.NumberOfEdges())
	require.Equal(t, et.NumberOfNodes(), decoded.NumberOfNodes())
	assert.Equal(t, et.GetDestination(), decoded.GetDestination())

	for _, want := range et.Edges() {
		got, ok := decoded.GetEdgeByKey(want.GetKey())
		require.True(t, ok)
		assert.Equal(t, want.GetLength(), got.GetLength())
		assert.Equal(t, want.GetRoadClass(), got.GetRoadClass())
		assert.Equal(t, want.IsIgnored(), got.IsIgnored())
		assert.Equal(t, want.GetNextHop(), got.GetNextHop())
		assert.Equal(t, want.GetSkipTarget(), got.GetSkipTarget())
		assert.Equal(t, want.GetThroughTraffic(), got.GetThroughTraffic())
		require.Len(t, got.GetGeometry(), len(want.GetGeometry()))
		for i := range want.GetGeometry() {
			assert.InDelta(t, want.GetGeometry()[i].Lat, got.GetGeometry()[i].Lat, 1e-5)
			assert.InDelta(t, want.GetGeometry()[i].Lon, got.GetGeometry()[i].Lon, 1e-5)
		}
	}

	n4, _ := decoded.GetNode(4)
	assert.False(t, n4.IsReachable())
}

func TestFindNextHopCycles(t *testing.T) {
	g := NewMapGraph()
	for i := int64(1); i <= 5; i++ {
		g.AddNode(i, 0, float64(i)*0.001)
	}
	// 1->2->3 feeds the cycle (3,4)->(4,3); (4,5) is a sink.
	g.AddEdge(MapEdge{From: 1, To: 2, Length: 100})
	g.AddEdge(MapEdge{From: 2, To: 3, Length: 100})
	g.AddEdge(MapEdge{From: 3, To: 4, Length: 100})
	g.AddEdge(MapEdge{From: 4, To: 3, Length: 100})
	g.AddEdge(MapEdge{From: 4, To: 5, Length: 100})

	et, err := BuildEdgeTable(g, map[int64]float64{1: 40, 2: 30, 3: 20, 4: 10, 5: 0}, 5, nil)
	require.NoError(t, err)

	setNext := func(u, v, w int64) {
		e, ok := et.GetEdge(u, v)
		require.True(t, ok)
		e.SetNextHop(w)
	}
	setNext(1, 2, 3)
	setNext(2, 3, 4)
	setNext(3, 4, 3)
	setNext(4, 3, 4)
	setNext(4, 5, pkg.SINK)

	cycles := et.FindNextHopCycles()
	require.Len(t, cycles, 1)
	assert.Equal(t, []EdgeKey{NewEdgeKey(3, 4), NewEdgeKey(4, 3)}, cycles[0])

	setNext(3, 4, 5)
	assert.Empty(t, et.FindNextHopCycles())
}

func TestMarkResolvedNodes(t *testing.T) {
	g, transit := squareGraph()
	et, err := BuildEdgeTable(g, transit, 1, nil)
	require.NoError(t, err)

	e, _ := et.GetEdge(2, 1)
	e.SetNextHop(pkg.SINK)
	et.MarkResolvedNodes()

	n1, _ := et.GetNode(1)
	n2, _ := et.GetNode(2)
	assert.True(t, n1.IsResolved())  // (4,1) is ignored, (2,1) resolved
	assert.False(t, n2.IsResolved()) // (1,2) unresolved
}
