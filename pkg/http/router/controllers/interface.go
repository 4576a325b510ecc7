package controllers

import (
	"context"

	"github.com/lintang-b-s/trafficshed/pkg/engine"
	"github.com/paulmach/orb/geojson"
)

type TrafficService interface {
	Trafficshed(ctx context.Context, lat, lon float64) (*engine.Result, *geojson.FeatureCollection, error)
}
