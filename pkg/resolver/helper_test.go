package resolver

import (
	"context"
	"math"
	"sync"
	"testing"

	"github.com/lintang-b-s/trafficshed/pkg/datastructure"
	"github.com/lintang-b-s/trafficshed/pkg/geo"
	"github.com/lintang-b-s/trafficshed/pkg/oracle"
	"github.com/stretchr/testify/require"
)

type testEdge struct {
	u, v      int64
	length    float64
	roadClass string
}

func nodeLon(id int64) float64 {
	return float64(id) * 0.001
}

func nodeOf(c geo.Coordinate) int64 {
	return int64(math.Round(c.Lon * 1000))
}

// buildTable places node i at (0, i/1000). nodes without a transit time are unreachable.
func buildTable(t *testing.T, transit map[int64]float64, destination int64, edges []testEdge) *datastructure.EdgeTable {
	t.Helper()
	g := datastructure.NewMapGraph()
	ids := make(map[int64]struct{})
	for _, e := range edges {
		ids[e.u] = struct{}{}
		ids[e.v] = struct{}{}
	}
	for id := range transit {
		ids[id] = struct{}{}
	}
	for id := range ids {
		g.AddNode(id, 0, nodeLon(id))
	}
	for _, e := range edges {
		class := e.roadClass
		if class == "" {
			class = "residential"
		}
		g.AddEdge(datastructure.MapEdge{From: e.u, To: e.v, Length: e.length, RoadClass: class})
	}

	et, err := datastructure.BuildEdgeTable(g, transit, destination, nil)
	require.NoError(t, err)
	return et
}

func mustEdge(t *testing.T, et *datastructure.EdgeTable, u, v int64) *datastructure.Edge {
	t.Helper()
	e, ok := et.GetEdge(u, v)
	require.True(t, ok, "edge (%d,%d)", u, v)
	return e
}

// fakeRouter answers with a fixed node sequence per origin node, ErrNoRoute otherwise.
type fakeRouter struct {
	mu      sync.Mutex
	routes  map[int64][]int64
	failed  map[int64]bool
	calls   map[int64]int
	targets map[int64]int
}

func newFakeRouter(routes map[int64][]int64) *fakeRouter {
	return &fakeRouter{routes: routes, failed: map[int64]bool{}, calls: map[int64]int{}, targets: map[int64]int{}}
}

func (r *fakeRouter) Route(ctx context.Context, from, to geo.Coordinate) (oracle.Route, error) {
	id := nodeOf(from)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls[id]++
	r.targets[nodeOf(to)]++
	nodes, ok := r.routes[id]
	if !ok || r.failed[id] {
		return oracle.Route{}, oracle.ErrNoRoute
	}
	return oracle.Route{Nodes: nodes, Duration: float64(len(nodes))}, nil
}
