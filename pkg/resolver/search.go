package resolver

import (
	"cmp"
	"math"
	"slices"

	"github.com/lintang-b-s/trafficshed/pkg"
	"github.com/lintang-b-s/trafficshed/pkg/datastructure"
	"github.com/lintang-b-s/trafficshed/pkg/metrics"
	"go.uber.org/zap"
)

type SearchStats struct {
	Attempted int
	// edges that got a next hop, including the ones committed along a chosen path
	Resolved  int
	Exhausted int
	Conflicts int
}

type candidate struct {
	path   []*datastructure.Edge
	delta  float64
	length float64
}

func (c candidate) efficiency() float64 {
	return c.delta / c.length
}

type SearchResolver struct {
	et       *datastructure.EdgeTable
	maxDepth int
	log      *zap.Logger
}

func NewSearchResolver(et *datastructure.EdgeTable, maxDepth int, log *zap.Logger) *SearchResolver {
	if maxDepth <= 0 {
		maxDepth = pkg.DEFAULT_SEARCH_MAX_DEPTH
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &SearchResolver{et: et, maxDepth: maxDepth, log: log}
}

// Resolve. unresolved edges are processed furthest from the destination first. for depth 1..maxDepth
// the continuations of each edge are enumerated, those without net progress are dropped and the one with
// the most negative delta per meter is committed along its whole path.
func (sr *SearchResolver) Resolve() SearchStats {
	stats := SearchStats{}

	pending := sr.et.Unresolved()
	slices.SortStableFunc(pending, func(a, b *datastructure.Edge) int {
		ta, tb := a.GetEndTime(), b.GetEndTime()
		// unreachable edges last
		switch {
		case math.IsNaN(ta) && math.IsNaN(tb):
			return 0
		case math.IsNaN(ta):
			return 1
		case math.IsNaN(tb):
			return -1
		}
		return cmp.Compare(tb, ta)
	})

	for _, e := range pending {
		if e.IsResolved() {
			continue
		}
		stats.Attempted++

		found := false
		for depth := 1; depth <= sr.maxDepth; depth++ {
			best, ok := sr.bestCandidate(e, depth)
			if !ok {
				continue
			}
			resolved, conflicts := sr.commit(best.path)
			stats.Resolved += resolved
			stats.Conflicts += conflicts
			found = true
			break
		}
		if !found {
			stats.Exhausted++
		}
	}

	metrics.AddResolved("search", stats.Resolved)
	sr.log.Info("bounded depth search done",
		zap.Int("attempted", stats.Attempted),
		zap.Int("resolved", stats.Resolved),
		zap.Int("exhausted", stats.Exhausted),
		zap.Int("conflicts", stats.Conflicts),
		zap.Int("unresolved", sr.et.CountUnresolved()),
	)
	return stats
}

func (sr *SearchResolver) bestCandidate(s *datastructure.Edge, depth int) (candidate, bool) {
	candidates := make([]candidate, 0)
	for _, path := range sr.enumerate(s, depth) {
		last := path[len(path)-1]
		delta := last.GetEndTime() - s.GetEndTime()
		if !(delta < 0) {
			continue
		}
		length := 0.0
		for _, step := range path {
			length += step.GetLength()
		}
		candidates = append(candidates, candidate{path: path, delta: delta, length: length})
	}
	if len(candidates) == 0 {
		return candidate{}, false
	}

	slices.SortStableFunc(candidates, func(a, b candidate) int {
		return cmp.Compare(a.efficiency(), b.efficiency())
	})
	return candidates[0], true
}

// enumerate returns every continuation of s with at most depth more edges. a step that already has a
// next hop is followed, otherwise every outgoing edge is tried, ignored ones included. a step without
// any continuation ends its path early.
func (sr *SearchResolver) enumerate(s *datastructure.Edge, depth int) [][]*datastructure.Edge {
	paths := make([][]*datastructure.Edge, 0)

	var extend func(path []*datastructure.Edge, remaining int)
	extend = func(path []*datastructure.Edge, remaining int) {
		last := path[len(path)-1]
		if remaining == 0 || last.IsSink() {
			paths = append(paths, slices.Clone(path))
			return
		}

		if last.GetNextHop() > 0 {
			next, ok := sr.et.GetEdgeByKey(last.GetDownstreamKey())
			if !ok || slices.Contains(path, next) {
				paths = append(paths, slices.Clone(path))
				return
			}
			extend(append(path, next), remaining-1)
			return
		}

		branched := false
		sr.et.ForOutEdgesOf(last.GetV(), func(next *datastructure.Edge) {
			if slices.Contains(path, next) {
				return
			}
			branched = true
			extend(append(slices.Clip(path), next), remaining-1)
		})
		if !branched {
			paths = append(paths, slices.Clone(path))
		}
	}

	extend([]*datastructure.Edge{s}, depth)
	return paths
}

// commit writes the next hop of every step of path except the last. a step already holding a different
// next hop is left alone.
func (sr *SearchResolver) commit(path []*datastructure.Edge) (resolved int, conflicts int) {
	for i := 0; i+1 < len(path); i++ {
		step, next := path[i], path[i+1]

		if !step.IsResolved() {
			step.SetSkipTarget(next.GetU())
			step.SetNextHop(next.GetV())
			resolved++
			continue
		}
		if step.GetNextHop() == next.GetV() && step.GetSkipTarget() == next.GetU() {
			continue
		}

		conflicts++
		sr.log.Debug("search path conflicts with an existing next hop",
			zap.Int64("u", step.GetU()), zap.Int64("v", step.GetV()),
			zap.Int64("nextHop", step.GetNextHop()), zap.Int64("proposed", next.GetV()))
	}
	return resolved, conflicts
}
