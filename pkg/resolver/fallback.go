package resolver

import (
	"context"
	"errors"
	"slices"

	"github.com/lintang-b-s/trafficshed/pkg"
	"github.com/lintang-b-s/trafficshed/pkg/concurrent"
	"github.com/lintang-b-s/trafficshed/pkg/datastructure"
	"github.com/lintang-b-s/trafficshed/pkg/metrics"
	"github.com/lintang-b-s/trafficshed/pkg/oracle"
	"github.com/lintang-b-s/trafficshed/pkg/util"
	"go.uber.org/zap"
	"golang.org/x/exp/rand"
)

var (
	ErrUnbridgeableGap = errors.New("oracle route never reaches a known edge")
)

type FallbackConfig struct {
	BatchSize      int
	Workers        int
	MinIter        int
	MaxIter        int
	MaxBridgeSteps int
	Seed           uint64
}

func DefaultFallbackConfig() FallbackConfig {
	return FallbackConfig{
		BatchSize:      pkg.DEFAULT_FALLBACK_BATCH_SIZE,
		Workers:        pkg.DEFAULT_FALLBACK_WORKERS,
		MinIter:        pkg.DEFAULT_FALLBACK_MIN_ITER,
		MaxIter:        pkg.DEFAULT_FALLBACK_MAX_ITER,
		MaxBridgeSteps: pkg.DEFAULT_FALLBACK_BRIDGE_STEPS,
		Seed:           42,
	}
}

type FallbackStats struct {
	Rounds       int
	Queries      int
	Failures     int
	Committed    int // edges that went from unresolved to resolved by a vote
	Overwritten  int // resolved edges whose next hop changed by a vote
	Inherited    int
	Promoted     int
	Unbridgeable int
	Remaining    int
}

type routeResult struct {
	from  int64
	route oracle.Route
	err   error
}

type proposal struct {
	skipTarget int64
	nextHop    int64
}

type OracleFallback struct {
	et     *datastructure.EdgeTable
	router oracle.Router
	cfg    FallbackConfig
	rng    *rand.Rand
	log    *zap.Logger
}

func NewOracleFallback(et *datastructure.EdgeTable, router oracle.Router, cfg FallbackConfig,
	log *zap.Logger) *OracleFallback {
	def := DefaultFallbackConfig()
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.MaxIter <= 0 {
		cfg.MaxIter = def.MaxIter
	}
	if cfg.MinIter > cfg.MaxIter {
		cfg.MinIter = cfg.MaxIter
	}
	if cfg.MaxBridgeSteps <= 0 {
		cfg.MaxBridgeSteps = def.MaxBridgeSteps
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &OracleFallback{
		et:     et,
		router: router,
		cfg:    cfg,
		rng:    rand.New(rand.NewSource(cfg.Seed)),
		log:    log,
	}
}

// Resolve. query the routing oracle for edges the local stages could not resolve, in rounds of one batch.
// the loop ends once nothing is unresolved and MinIter rounds ran, or after MaxIter rounds.
func (of *OracleFallback) Resolve(ctx context.Context) (FallbackStats, error) {
	stats := FallbackStats{}

	for round := 1; round <= of.cfg.MaxIter; round++ {
		if err := ctx.Err(); err != nil {
			stats.Remaining = of.et.CountUnresolved()
			return stats, err
		}

		batch := of.sampleBatch()
		if len(batch) == 0 {
			break
		}
		stats.Rounds++

		results := of.queryBatch(ctx, batch)
		stats.Queries += len(results)

		routes := make(map[int64][]int64, len(results))
		for _, res := range results {
			if res.err != nil {
				stats.Failures++
				of.log.Warn("oracle query failed", zap.Int64("from", res.from), zap.Error(res.err))
				continue
			}
			routes[res.from] = res.route.Nodes
		}

		winners := of.tally(batch, routes)
		proposals := of.bridge(winners, &stats)
		of.commit(proposals, &stats)
		stats.Promoted += PromoteRoutedThrough(of.et)

		remaining := of.et.CountUnresolved()
		of.log.Sugar().Infof("oracle fallback round %d: batch %d, queries %d, proposals %d, unresolved %d",
			round, len(batch), len(results), len(proposals), remaining)

		if remaining == 0 && round >= of.cfg.MinIter {
			break
		}
	}

	stats.Remaining = of.et.CountUnresolved()
	metrics.AddResolved("fallback", stats.Committed+stats.Inherited)
	of.log.Info("oracle fallback done",
		zap.Int("rounds", stats.Rounds),
		zap.Int("queries", stats.Queries),
		zap.Int("failures", stats.Failures),
		zap.Int("committed", stats.Committed),
		zap.Int("overwritten", stats.Overwritten),
		zap.Int("inherited", stats.Inherited),
		zap.Int("unbridgeable", stats.Unbridgeable),
		zap.Int("remaining", stats.Remaining),
	)
	return stats, nil
}

// sampleBatch. up to BatchSize unresolved edges, padded with random resolved (non sink) edges so
// majority voting keeps refining earlier answers.
func (of *OracleFallback) sampleBatch() []*datastructure.Edge {
	unresolved := of.et.Unresolved()
	batch := of.sample(unresolved, of.cfg.BatchSize)

	if len(batch) < of.cfg.BatchSize {
		resolved := make([]*datastructure.Edge, 0)
		for _, e := range of.et.Edges() {
			if !e.IsIgnored() && e.GetNextHop() > 0 {
				resolved = append(resolved, e)
			}
		}
		batch = append(batch, of.sample(resolved, of.cfg.BatchSize-len(batch))...)
	}
	return batch
}

func (of *OracleFallback) sample(edges []*datastructure.Edge, k int) []*datastructure.Edge {
	if len(edges) <= k {
		return slices.Clone(edges)
	}
	picked := slices.Clone(edges)
	// partial fisher-yates
	for i := 0; i < k; i++ {
		j := i + of.rng.Intn(len(picked)-i)
		picked[i], picked[j] = picked[j], picked[i]
	}
	return picked[:k]
}

// queryBatch. one route query per distinct distal endpoint, all of them finished before it returns.
// queries always run towards the destination: next hops follow an edge's own direction, so the
// oracle.FROM direction only changes how the transit time matrix is asked.
func (of *OracleFallback) queryBatch(ctx context.Context, batch []*datastructure.Edge) []routeResult {
	destination, ok := of.et.GetNode(of.et.GetDestination())
	if !ok {
		return nil
	}

	endpoints := make([]int64, 0, len(batch))
	seen := make(map[int64]struct{}, len(batch))
	for _, e := range batch {
		v := e.GetV()
		if _, ok := seen[v]; ok || v == destination.GetID() {
			continue
		}
		seen[v] = struct{}{}
		endpoints = append(endpoints, v)
	}
	slices.Sort(endpoints)

	results := concurrent.RunAll(of.cfg.Workers, endpoints, func(v int64) routeResult {
		from, _ := of.et.GetNode(v)
		rt, err := of.router.Route(ctx, from.GetCoordinate(), destination.GetCoordinate())
		return routeResult{from: v, route: rt, err: err}
	})

	slices.SortFunc(results, func(a, b routeResult) int {
		switch {
		case a.from < b.from:
			return -1
		case a.from > b.from:
			return 1
		}
		return 0
	})
	return results
}

// tally slides a (u, v, w) window over every route of the batch and returns the majority w per (u, v).
// ties go to the lowest node id.
func (of *OracleFallback) tally(batch []*datastructure.Edge, routes map[int64][]int64) map[datastructure.EdgeKey]int64 {
	votes := make(map[datastructure.EdgeKey]map[int64]int)

	for _, e := range batch {
		nodes, ok := routes[e.GetV()]
		if !ok {
			continue
		}
		seq := of.alignRoute(e, nodes)
		for i := 0; i+2 < len(seq); i++ {
			key := datastructure.NewEdgeKey(seq[i], seq[i+1])
			if votes[key] == nil {
				votes[key] = make(map[int64]int)
			}
			votes[key][seq[i+2]]++
		}
	}

	winners := make(map[datastructure.EdgeKey]int64, len(votes))
	for key, counts := range votes {
		best, bestCount := int64(0), 0
		for w, c := range counts {
			if c > bestCount || (c == bestCount && w < best) {
				best, bestCount = w, c
			}
		}
		winners[key] = best
	}
	return winners
}

// alignRoute keeps the route nodes present in the local graph, drops repeats and prefixes the edge's
// own (u, v) so the first window votes for the edge itself.
func (of *OracleFallback) alignRoute(e *datastructure.Edge, nodes []int64) []int64 {
	seq := make([]int64, 0, len(nodes)+2)
	seq = append(seq, e.GetU(), e.GetV())
	for _, n := range nodes {
		if !of.et.HasNode(n) || n == seq[len(seq)-1] {
			continue
		}
		seq = append(seq, n)
	}
	return seq
}

// bridge turns the winning votes of pairs that are edges into (skipTarget, nextHop) proposals. when the
// voted (v, w) is not an edge the vote chain is walked until it lands on one.
func (of *OracleFallback) bridge(winners map[datastructure.EdgeKey]int64,
	stats *FallbackStats) map[datastructure.EdgeKey]proposal {
	proposals := make(map[datastructure.EdgeKey]proposal)

	for key := range winners {
		if !of.et.HasEdge(key.U, key.V) {
			continue
		}

		uu, vv := key.U, key.V
		found := false
		for step := 0; step < of.cfg.MaxBridgeSteps; step++ {
			ww, ok := winners[datastructure.NewEdgeKey(uu, vv)]
			if !ok {
				break
			}
			if of.et.HasEdge(vv, ww) {
				proposals[key] = proposal{skipTarget: vv, nextHop: ww}
				found = true
				break
			}
			uu, vv = vv, ww
		}

		if !found {
			stats.Unbridgeable++
			metrics.IncUnbridgeableGap()
			err := util.WrapErrorf(nil, ErrUnbridgeableGap, "edge (%d,%d) dropped after %d steps",
				key.U, key.V, of.cfg.MaxBridgeSteps)
			of.log.Warn("oracle proposal dropped", zap.Error(err))
		}
	}
	return proposals
}

// commit runs after the batch barrier, single threaded. sinks are never overwritten, an ignored edge
// that receives a vote is routed through. unresolved edges converging on the same node inherit the exit.
// committed and overwritten are counted against the state before the batch, so an edge that inherits
// an exit and later receives its own proposal is still a commit.
func (of *OracleFallback) commit(proposals map[datastructure.EdgeKey]proposal, stats *FallbackStats) {
	keys := make([]datastructure.EdgeKey, 0, len(proposals))
	pending := make(map[datastructure.EdgeKey]bool, len(proposals))
	for key := range proposals {
		keys = append(keys, key)
		if e, ok := of.et.GetEdgeByKey(key); ok && !e.IsResolved() {
			pending[key] = true
		}
	}
	slices.SortFunc(keys, compareKeys)

	inherited := make(map[datastructure.EdgeKey]bool)
	for _, key := range keys {
		p := proposals[key]
		e, _ := of.et.GetEdgeByKey(key)
		if e.IsSink() || datastructure.NewEdgeKey(p.skipTarget, p.nextHop) == key {
			continue
		}

		if e.IsIgnored() {
			e.SetIgnore(false)
			stats.Promoted++
		}
		switch {
		case pending[key]:
			if inherited[key] {
				stats.Inherited--
			}
			stats.Committed++
		case e.GetNextHop() != p.nextHop || e.GetSkipTarget() != p.skipTarget:
			stats.Overwritten++
		}
		e.SetSkipTarget(p.skipTarget)
		e.SetNextHop(p.nextHop)

		of.et.ForInEdgesOf(key.V, func(f *datastructure.Edge) {
			if f.IsResolved() || datastructure.NewEdgeKey(p.skipTarget, p.nextHop) == f.GetKey() {
				return
			}
			f.SetSkipTarget(p.skipTarget)
			f.SetNextHop(p.nextHop)
			inherited[f.GetKey()] = true
			stats.Inherited++
		})
	}
}

func compareKeys(a, b datastructure.EdgeKey) int {
	if a.Less(b) {
		return -1
	}
	if b.Less(a) {
		return 1
	}
	return 0
}
