package resolver

import (
	"github.com/lintang-b-s/trafficshed/pkg"
	"github.com/lintang-b-s/trafficshed/pkg/datastructure"
	"github.com/lintang-b-s/trafficshed/pkg/metrics"
	"go.uber.org/zap"
)

type LocalStats struct {
	UnambiguousNodes int
	Resolved         int
	Sinks            int
}

// ResolveLocal. a node with exactly one progress-making (delta < 0) outgoing edge is an unambiguous exit:
// every edge arriving at it is routed through that exit, no matter where it came from. ignored exits
// count too, a footway that makes progress keeps its junction ambiguous.
// edges ending at a node with zero transit time are sinks. nodes with zero or several progress-making
// exits are left for the search resolver.
func ResolveLocal(et *datastructure.EdgeTable, log *zap.Logger) LocalStats {
	stats := LocalStats{}

	exit := make(map[int64]int64)
	for _, u := range et.NodeIDs() {
		count := 0
		var v int64
		et.ForOutEdgesOf(u, func(e *datastructure.Edge) {
			if !e.MakesProgress() {
				return
			}
			count++
			v = e.GetV()
		})
		if count == 1 {
			exit[u] = v
		}
	}
	stats.UnambiguousNodes = len(exit)

	for _, e := range et.Edges() {
		if e.IsResolved() {
			continue
		}
		if e.GetEndTime() == 0 {
			e.SetNextHop(pkg.SINK)
			stats.Sinks++
			stats.Resolved++
			continue
		}
		if w, ok := exit[e.GetV()]; ok {
			e.SetSkipTarget(e.GetV())
			e.SetNextHop(w)
			stats.Resolved++
		}
	}

	metrics.AddResolved("local", stats.Resolved)
	if log != nil {
		log.Info("local next hop inference done",
			zap.Int("unambiguousNodes", stats.UnambiguousNodes),
			zap.Int("resolved", stats.Resolved),
			zap.Int("sinks", stats.Sinks),
			zap.Int("unresolved", et.CountUnresolved()),
		)
	}
	return stats
}
