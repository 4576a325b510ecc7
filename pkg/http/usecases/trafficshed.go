package usecases

import (
	"context"
	"errors"

	"github.com/lintang-b-s/trafficshed/pkg/engine"
	"github.com/lintang-b-s/trafficshed/pkg/render"
	"github.com/lintang-b-s/trafficshed/pkg/spatialindex"
	"github.com/lintang-b-s/trafficshed/pkg/util"
	"github.com/paulmach/orb/geojson"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

type TrafficService struct {
	log    *zap.Logger
	engine TrafficEngine
	runs   *semaphore.Weighted
}

// NewTrafficService. at most maxRuns pipeline runs execute at once, the rest wait for a slot.
func NewTrafficService(log *zap.Logger, engine TrafficEngine, maxRuns int64) *TrafficService {
	if maxRuns <= 0 {
		maxRuns = 1
	}
	return &TrafficService{
		log:    log,
		engine: engine,
		runs:   semaphore.NewWeighted(maxRuns),
	}
}

func (ts *TrafficService) Trafficshed(ctx context.Context, lat, lon float64) (*engine.Result, *geojson.FeatureCollection, error) {
	if err := ts.runs.Acquire(ctx, 1); err != nil {
		return nil, nil, err
	}
	defer ts.runs.Release(1)

	res, err := ts.engine.RunAt(ctx, lat, lon)
	switch {
	case errors.Is(err, spatialindex.ErrNoNearbyNode):
		return nil, nil, util.WrapErrorf(err, util.ErrNotFound, "no street near %f,%f", lat, lon)
	case err != nil:
		return nil, nil, err
	}

	ts.log.Sugar().Infof("trafficshed run %s towards node %d: %d edges, %d propagation iterations",
		res.RunID, res.Destination, res.Table.NumberOfEdges(), res.Propagation.Iterations)
	return res, render.GeoJSON(res.Table), nil
}
