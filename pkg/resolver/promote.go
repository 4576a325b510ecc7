package resolver

import (
	"github.com/lintang-b-s/trafficshed/pkg/datastructure"
	"github.com/lintang-b-s/trafficshed/pkg/metrics"
)

// PromoteRoutedThrough un-ignores every ignored edge that traffic is routed onto, following the next hop
// chains transitively. a promoted edge carries traffic, so it gets its own initial wave and must be
// resolved before propagation. returns the number of promoted edges.
func PromoteRoutedThrough(et *datastructure.EdgeTable) int {
	queue := make([]*datastructure.Edge, 0)
	for _, e := range et.Edges() {
		if !e.IsIgnored() && e.GetNextHop() > 0 {
			queue = append(queue, e)
		}
	}

	promoted := 0
	for len(queue) > 0 {
		e := queue[0]
		queue = queue[1:]

		next, ok := et.GetEdgeByKey(e.GetDownstreamKey())
		if !ok || !next.IsIgnored() {
			continue
		}
		next.SetIgnore(false)
		promoted++
		if next.GetNextHop() > 0 {
			queue = append(queue, next)
		}
	}

	metrics.AddResolved("promote", promoted)
	return promoted
}
