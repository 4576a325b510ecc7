package engine

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/lintang-b-s/trafficshed/pkg"
	"github.com/lintang-b-s/trafficshed/pkg/datastructure"
	"github.com/lintang-b-s/trafficshed/pkg/geo"
	"github.com/lintang-b-s/trafficshed/pkg/metrics"
	"github.com/lintang-b-s/trafficshed/pkg/oracle"
	"github.com/lintang-b-s/trafficshed/pkg/propagation"
	"github.com/lintang-b-s/trafficshed/pkg/resolver"
	"github.com/lintang-b-s/trafficshed/pkg/spatialindex"
	"github.com/lintang-b-s/trafficshed/pkg/util"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	ErrUnknownDestination  = errors.New("destination is not a node of the map graph")
	ErrTransitTimeMismatch = errors.New("travel time matrix returned a wrong number of durations")
)

type Config struct {
	SearchMaxDepth int
	Fallback       resolver.FallbackConfig
	Propagation    propagation.Config
}

func DefaultConfig() Config {
	return Config{
		SearchMaxDepth: pkg.DEFAULT_SEARCH_MAX_DEPTH,
		Fallback:       resolver.DefaultFallbackConfig(),
		Propagation:    propagation.DefaultConfig(),
	}
}

// ConfigFromViper reads the search.*, fallback.* and propagation.* keys.
func ConfigFromViper() Config {
	return Config{
		SearchMaxDepth: viper.GetInt("search.max_depth"),
		Fallback: resolver.FallbackConfig{
			BatchSize:      viper.GetInt("fallback.batch_size"),
			Workers:        viper.GetInt("fallback.workers"),
			MinIter:        viper.GetInt("fallback.min_iter"),
			MaxIter:        viper.GetInt("fallback.max_iter"),
			MaxBridgeSteps: viper.GetInt("fallback.max_bridge_steps"),
			Seed:           viper.GetUint64("fallback.seed"),
		},
		Propagation: propagation.Config{
			LengthUnit: viper.GetFloat64("propagation.length_unit"),
		},
	}
}

// Engine runs the whole pipeline for one destination at a time over a fixed map graph.
type Engine struct {
	graph  *datastructure.MapGraph
	coords map[int64]geo.Coordinate
	rtree  *spatialindex.Rtree

	matrix oracle.TravelTimeMatrix
	router oracle.Router // nil disables the oracle fallback

	cfg Config
	log *zap.Logger
}

func NewEngine(graph *datastructure.MapGraph, matrix oracle.TravelTimeMatrix, router oracle.Router, cfg Config,
	log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	coords := make(map[int64]geo.Coordinate, len(graph.Nodes))
	for _, n := range graph.Nodes {
		coords[n.ID] = geo.NewCoordinate(n.Lat, n.Lon)
	}
	rt := spatialindex.NewRtree()
	rt.Build(graph, log)

	return &Engine{
		graph:  graph,
		coords: coords,
		rtree:  rt,
		matrix: matrix,
		router: router,
		cfg:    cfg,
		log:    log,
	}
}

type Result struct {
	RunID       string
	Destination int64
	Table       *datastructure.EdgeTable

	Local       resolver.LocalStats
	Search      resolver.SearchStats
	Fallback    resolver.FallbackStats
	Promoted    int
	Propagation propagation.Stats

	Duration time.Duration
}

// RunAt snaps (lat, lon) to the nearest graph node and runs the pipeline towards it.
func (e *Engine) RunAt(ctx context.Context, lat, lon float64) (*Result, error) {
	nearest, err := e.rtree.Nearest(lat, lon)
	if err != nil {
		return nil, err
	}
	e.log.Debug("destination snapped", zap.Float64("lat", lat), zap.Float64("lon", lon),
		zap.Int64("node", nearest.GetID()))
	return e.Run(ctx, nearest.GetID())
}

// Run annotates transit times, resolves the next hop of every edge and propagates traffic towards destination.
func (e *Engine) Run(ctx context.Context, destination int64) (res *Result, err error) {
	start := time.Now()
	defer func() {
		metrics.ObserveRun(start, err)
	}()

	res = &Result{
		RunID:       uuid.NewString(),
		Destination: destination,
	}
	log := e.log.With(zap.String("runID", res.RunID), zap.Int64("destination", destination))

	if _, ok := e.coords[destination]; !ok {
		return nil, util.WrapErrorf(nil, ErrUnknownDestination, "node %d", destination)
	}

	stage := time.Now()
	transit, err := e.transitTimes(ctx, destination)
	if err != nil {
		return nil, err
	}
	log.Info("transit times annotated", zap.Int("nodes", len(transit)), zap.Duration("took", time.Since(stage)))

	stage = time.Now()
	et, err := datastructure.BuildEdgeTable(e.graph, transit, destination, log)
	if err != nil {
		return nil, err
	}
	res.Table = et
	log.Info("edge table ready", zap.Duration("took", time.Since(stage)))

	if err = e.resolve(ctx, res, log); err != nil {
		return nil, err
	}

	stage = time.Now()
	res.Propagation, err = propagation.Propagate(et, e.cfg.Propagation, log)
	if err != nil {
		return nil, err
	}
	log.Info("propagation finished", zap.Duration("took", time.Since(stage)))

	res.Duration = time.Since(start)
	log.Sugar().Infof("run finished in %v: %d edges, %d local, %d search, %d fallback, %d promoted",
		res.Duration, et.NumberOfEdges(), res.Local.Resolved, res.Search.Resolved,
		res.Fallback.Committed+res.Fallback.Inherited, res.Promoted)
	return res, nil
}

// resolve runs the next hop stages in order. every edge left unresolved afterwards fails propagation.
func (e *Engine) resolve(ctx context.Context, res *Result, log *zap.Logger) error {
	et := res.Table

	stage := time.Now()
	res.Local = resolver.ResolveLocal(et, log)
	log.Info("local inference finished", zap.Duration("took", time.Since(stage)))

	stage = time.Now()
	res.Search = resolver.NewSearchResolver(et, e.cfg.SearchMaxDepth, log).Resolve()
	log.Info("search resolver finished", zap.Duration("took", time.Since(stage)))

	// runs even on a fully resolved table, the padded rounds re-vote earlier answers
	if e.router != nil {
		stage = time.Now()
		var err error
		res.Fallback, err = resolver.NewOracleFallback(et, e.router, e.cfg.Fallback, log).Resolve(ctx)
		if err != nil {
			return err
		}
		log.Info("oracle fallback finished", zap.Duration("took", time.Since(stage)))
	}

	res.Promoted = resolver.PromoteRoutedThrough(et)
	et.MarkResolvedNodes()
	return nil
}

// transitTimes asks the matrix for every node's travel time to (or from) destination. unreachable nodes are
// left out and end up with a NaN transit time.
func (e *Engine) transitTimes(ctx context.Context, destination int64) (map[int64]float64, error) {
	ids := e.graph.NodeIDs()
	origins := make([]geo.Coordinate, len(ids))
	for i, id := range ids {
		origins[i] = e.coords[id]
	}

	durations, err := e.matrix.TransitTimes(ctx, e.coords[destination], origins)
	if err != nil {
		return nil, err
	}
	if len(durations) != len(origins) {
		return nil, util.WrapErrorf(nil, ErrTransitTimeMismatch, "asked for %d, got %d", len(origins), len(durations))
	}

	transit := make(map[int64]float64, len(ids))
	for i, id := range ids {
		if math.IsNaN(durations[i]) {
			continue
		}
		transit[id] = durations[i]
	}
	transit[destination] = 0
	return transit, nil
}
