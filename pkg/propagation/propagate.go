package propagation

import (
	"errors"
	"math"

	"github.com/lintang-b-s/trafficshed/pkg"
	"github.com/lintang-b-s/trafficshed/pkg/datastructure"
	"github.com/lintang-b-s/trafficshed/pkg/metrics"
	"github.com/lintang-b-s/trafficshed/pkg/util"
	"go.uber.org/zap"
)

var (
	ErrUnresolvedAtPropagation = errors.New("unresolved edge reached propagation")
	ErrPropagationStagnation   = errors.New("propagation is cycling without converging")
	ErrMissingDownstreamEdge   = errors.New("next hop points to an edge that does not exist")
)

type Config struct {
	// meters of street that add one unit of initial traffic on top of the flat unit
	LengthUnit float64
}

func DefaultConfig() Config {
	return Config{LengthUnit: pkg.DEFAULT_PROPAGATION_LENGTH_UNIT}
}

type Stats struct {
	Iterations int
	Injected   float64
	Absorbed   float64 // wave absorbed by sink edges
}

// signature summarises the active wave set of one iteration. floored like the values it is compared on,
// so tiny float drift does not hide a cycle.
type signature struct {
	count int
	mean  int64
	total int64
}

func newSignature(count int, total float64) signature {
	return signature{
		count: count,
		mean:  int64(math.Floor(total / float64(count))),
		total: int64(math.Floor(total)),
	}
}

// Propagate. inject 1 + length/LengthUnit on every resolved non-ignored edge, then move every wave
// onto its (skipTarget, nextHop) edge until all of it drains into sink edges. every edge absorbs the
// waves passing over it into its through traffic.
func Propagate(et *datastructure.EdgeTable, cfg Config, log *zap.Logger) (Stats, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.LengthUnit <= 0 {
		cfg.LengthUnit = pkg.DEFAULT_PROPAGATION_LENGTH_UNIT
	}
	stats := Stats{}

	if unresolved := et.CountUnresolved(); unresolved > 0 {
		return stats, util.WrapErrorf(nil, ErrUnresolvedAtPropagation,
			"%d non-ignored edges have no next hop", unresolved)
	}

	edges := et.Edges()
	for _, e := range edges {
		e.SetThroughTraffic(0)
		e.SetCurrentWave(0)
		if e.IsIgnored() {
			continue
		}
		wave := 1 + e.GetLength()/cfg.LengthUnit
		e.SetCurrentWave(wave)
		stats.Injected += wave
	}

	maxIterations := len(edges) + 2
	var prev *signature
	groups := make(map[datastructure.EdgeKey]float64)

	for {
		count, total := 0, 0.0
		for _, e := range edges {
			if e.GetCurrentWave() > 0 {
				count++
				total += e.GetCurrentWave()
			}
		}
		if count == 0 {
			break
		}

		sig := newSignature(count, total)
		if (prev != nil && sig == *prev) || stats.Iterations >= maxIterations {
			cycles := et.FindNextHopCycles()
			log.Error("propagation stagnated",
				zap.Int("iteration", stats.Iterations),
				zap.Int("activeEdges", count),
				zap.Float64("activeWave", total),
				zap.Int("cycles", len(cycles)),
				zap.Any("firstCycle", firstCycle(cycles)),
			)
			return stats, util.WrapErrorf(nil, ErrPropagationStagnation,
				"signature (%d, %d, %d) repeated at iteration %d", sig.count, sig.mean, sig.total, stats.Iterations)
		}
		prev = &sig
		stats.Iterations++

		clear(groups)
		for _, e := range edges {
			wave := e.GetCurrentWave()
			if wave <= 0 {
				continue
			}
			e.AddThroughTraffic(wave)

			switch {
			case e.IsSink():
				stats.Absorbed += wave
			case e.GetNextHop() > 0:
				key := e.GetDownstreamKey()
				if !et.HasEdge(key.U, key.V) {
					return stats, util.WrapErrorf(nil, ErrMissingDownstreamEdge,
						"edge (%d,%d) routes onto (%d,%d)", e.GetU(), e.GetV(), key.U, key.V)
				}
				groups[key] += wave
			default:
				return stats, util.WrapErrorf(nil, ErrUnresolvedAtPropagation,
					"edge (%d,%d) received traffic without a next hop", e.GetU(), e.GetV())
			}
		}

		for _, e := range edges {
			e.SetCurrentWave(0)
		}
		for key, wave := range groups {
			e, _ := et.GetEdgeByKey(key)
			e.SetCurrentWave(wave)
		}
	}

	metrics.ObservePropagation(stats.Iterations)
	log.Info("propagation done",
		zap.Int("iterations", stats.Iterations),
		zap.Float64("injected", stats.Injected),
		zap.Float64("absorbed", stats.Absorbed),
	)
	return stats, nil
}

func firstCycle(cycles [][]datastructure.EdgeKey) []datastructure.EdgeKey {
	if len(cycles) == 0 {
		return nil
	}
	return cycles[0]
}
