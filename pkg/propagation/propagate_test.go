package propagation

import (
	"errors"
	"testing"

	"github.com/lintang-b-s/trafficshed/pkg"
	"github.com/lintang-b-s/trafficshed/pkg/datastructure"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type hop struct {
	u, v, next int64
	length     float64
	roadClass  string
}

// buildResolved creates a table whose next hops are set by hand. the transit time of every node is its id
// so tables are never built with unreachable nodes.
func buildResolved(t *testing.T, destination int64, hops []hop) *datastructure.EdgeTable {
	t.Helper()
	g := datastructure.NewMapGraph()
	transit := make(map[int64]float64)
	for _, h := range hops {
		for _, id := range []int64{h.u, h.v} {
			if _, ok := transit[id]; ok {
				continue
			}
			transit[id] = float64(id)
			g.AddNode(id, 0, float64(id)*0.001)
		}
		class := h.roadClass
		if class == "" {
			class = "residential"
		}
		g.AddEdge(datastructure.MapEdge{From: h.u, To: h.v, Length: h.length, RoadClass: class})
	}
	transit[destination] = 0

	et, err := datastructure.BuildEdgeTable(g, transit, destination, nil)
	require.NoError(t, err)
	for _, h := range hops {
		e, ok := et.GetEdge(h.u, h.v)
		require.True(t, ok)
		e.SetNextHop(h.next)
	}
	return et
}

func edge(t *testing.T, et *datastructure.EdgeTable, u, v int64) *datastructure.Edge {
	t.Helper()
	e, ok := et.GetEdge(u, v)
	require.True(t, ok)
	return e
}

func assertPostcondition(t *testing.T, et *datastructure.EdgeTable) {
	t.Helper()
	for _, e := range et.Edges() {
		assert.Equal(t, 0.0, e.GetCurrentWave(), "wave left on (%d,%d)", e.GetU(), e.GetV())
		assert.GreaterOrEqual(t, e.GetThroughTraffic(), 0.0)
	}
}

func TestPropagateChain(t *testing.T) {
	et := buildResolved(t, 3, []hop{
		{u: 1, v: 2, next: 3, length: 50},
		{u: 2, v: 3, next: pkg.SINK, length: 50},
	})

	stats, err := Propagate(et, DefaultConfig(), zap.NewNop())
	require.NoError(t, err)

	assert.Equal(t, 2.0, edge(t, et, 1, 2).GetThroughTraffic())
	assert.Equal(t, 4.0, edge(t, et, 2, 3).GetThroughTraffic())
	assert.Equal(t, 2, stats.Iterations)
	assert.Equal(t, 4.0, stats.Injected)
	assert.Equal(t, 4.0, stats.Absorbed)
	assertPostcondition(t, et)
}

// comb: 1 -> 2 -> 3 -> 4 -> 5 with feeders 12 -> 10 -> 2, 11 -> 3 and 13 -> 4. destination 5.
func combHops() []hop {
	return []hop{
		{u: 1, v: 2, next: 3, length: 100},
		{u: 2, v: 3, next: 4, length: 120},
		{u: 3, v: 4, next: 5, length: 80},
		{u: 4, v: 5, next: pkg.SINK, length: 60},
		{u: 12, v: 10, next: 2, length: 30},
		{u: 10, v: 2, next: 3, length: 75},
		{u: 11, v: 3, next: 4, length: 10},
		{u: 13, v: 4, next: 5, length: 200},
	}
}

func TestPropagateConservation(t *testing.T) {
	et := buildResolved(t, 5, combHops())

	stats, err := Propagate(et, DefaultConfig(), nil)
	require.NoError(t, err)

	assert.InDelta(t, stats.Injected, stats.Absorbed, 1e-9)
	assert.InDelta(t, stats.Injected, edge(t, et, 4, 5).GetThroughTraffic(), 1e-9)
	assertPostcondition(t, et)

	// every upstream wave passes (3,4)
	upstream := 0.0
	for _, h := range combHops() {
		if h.u != 4 && h.u != 13 {
			upstream += 1 + h.length/50
		}
	}
	assert.InDelta(t, upstream, edge(t, et, 3, 4).GetThroughTraffic(), 1e-9)
}

func TestPropagateTerminatesWithinDiameter(t *testing.T) {
	et := buildResolved(t, 5, combHops())
	stats, err := Propagate(et, DefaultConfig(), nil)
	require.NoError(t, err)

	// longest chain 12 -> 10 -> 2 -> 3 -> 4 -> 5 has 5 edges
	diameter := 5
	assert.LessOrEqual(t, stats.Iterations, diameter+1)
	assert.Equal(t, diameter, stats.Iterations)
}

func TestPropagateThroughTrafficMonotone(t *testing.T) {
	et := buildResolved(t, 5, combHops())
	_, err := Propagate(et, DefaultConfig(), nil)
	require.NoError(t, err)

	// downstream of a merge carries at least what each tributary carried
	assert.Greater(t, edge(t, et, 2, 3).GetThroughTraffic(), edge(t, et, 1, 2).GetThroughTraffic())
	assert.Greater(t, edge(t, et, 2, 3).GetThroughTraffic(), edge(t, et, 10, 2).GetThroughTraffic())
	assert.Greater(t, edge(t, et, 10, 2).GetThroughTraffic(), edge(t, et, 12, 10).GetThroughTraffic())
}

func TestPropagateSkipTarget(t *testing.T) {
	// (1,2) is bridged onto (3,4) because (2,3) is missing from the map.
	et := buildResolved(t, 4, []hop{
		{u: 1, v: 2, next: 4, length: 50},
		{u: 3, v: 4, next: pkg.SINK, length: 50},
	})
	edge(t, et, 1, 2).SetSkipTarget(3)

	stats, err := Propagate(et, DefaultConfig(), nil)
	require.NoError(t, err)
	assert.Equal(t, 4.0, edge(t, et, 3, 4).GetThroughTraffic())
	assert.Equal(t, 4.0, stats.Absorbed)
}

func TestPropagateStagnation(t *testing.T) {
	// 3 -> 1 feeds the two edge cycle (1,2) -> (2,1) -> (1,2).
	et := buildResolved(t, 9, []hop{
		{u: 3, v: 1, next: 2, length: 50},
		{u: 1, v: 2, next: 1, length: 50},
		{u: 2, v: 1, next: 2, length: 50},
		{u: 4, v: 9, next: pkg.SINK, length: 50},
	})

	_, err := Propagate(et, DefaultConfig(), zap.NewNop())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPropagationStagnation))
}

func TestPropagateUnresolved(t *testing.T) {
	et := buildResolved(t, 3, []hop{
		{u: 1, v: 2, next: pkg.UNRESOLVED, length: 50},
		{u: 2, v: 3, next: pkg.SINK, length: 50},
	})

	_, err := Propagate(et, DefaultConfig(), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnresolvedAtPropagation))
	// nothing was injected
	for _, e := range et.Edges() {
		assert.Equal(t, 0.0, e.GetCurrentWave())
	}
}

func TestPropagateIgnoredEdgesStayOut(t *testing.T) {
	et := buildResolved(t, 3, []hop{
		{u: 1, v: 2, next: pkg.UNRESOLVED, length: 50, roadClass: "footway"},
		{u: 2, v: 3, next: pkg.SINK, length: 50},
	})

	stats, err := Propagate(et, DefaultConfig(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0.0, edge(t, et, 1, 2).GetThroughTraffic())
	assert.Equal(t, 2.0, stats.Injected)
}

func TestPropagateMissingDownstreamEdge(t *testing.T) {
	et := buildResolved(t, 3, []hop{
		{u: 1, v: 2, next: 7, length: 50},
		{u: 2, v: 3, next: pkg.SINK, length: 50},
	})

	_, err := Propagate(et, DefaultConfig(), nil)
	assert.True(t, errors.Is(err, ErrMissingDownstreamEdge))
}
