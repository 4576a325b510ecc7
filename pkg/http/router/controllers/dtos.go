package controllers

import (
	"github.com/lintang-b-s/trafficshed/pkg/engine"
	"github.com/paulmach/orb/geojson"
)

type trafficshedRequest struct {
	Lat float64 `json:"lat" validate:"min=-90,max=90"`
	Lon float64 `json:"lon" validate:"min=-180,max=180"`
}

type stageStats struct {
	LocalResolved    int `json:"local_resolved"`
	SearchResolved   int `json:"search_resolved"`
	SearchExhausted  int `json:"search_exhausted"`
	FallbackRounds   int `json:"fallback_rounds"`
	FallbackQueries  int `json:"fallback_queries"`
	FallbackResolved int `json:"fallback_resolved"`
	Promoted         int `json:"promoted"`
}

type trafficshedResponse struct {
	RunID       string                     `json:"run_id"`
	Destination int64                      `json:"destination"`
	Edges       int                        `json:"edges"`
	Iterations  int                        `json:"iterations"`
	Injected    float64                    `json:"injected"`
	DurationMs  int64                      `json:"duration_ms"`
	Stages      stageStats                 `json:"stages"`
	Trafficshed *geojson.FeatureCollection `json:"trafficshed"`
}

func NewTrafficshedResponse(res *engine.Result, fc *geojson.FeatureCollection) trafficshedResponse {
	return trafficshedResponse{
		RunID:       res.RunID,
		Destination: res.Destination,
		Edges:       res.Table.NumberOfEdges(),
		Iterations:  res.Propagation.Iterations,
		Injected:    res.Propagation.Injected,
		DurationMs:  res.Duration.Milliseconds(),
		Stages: stageStats{
			LocalResolved:    res.Local.Resolved,
			SearchResolved:   res.Search.Resolved,
			SearchExhausted:  res.Search.Exhausted,
			FallbackRounds:   res.Fallback.Rounds,
			FallbackQueries:  res.Fallback.Queries,
			FallbackResolved: res.Fallback.Committed + res.Fallback.Inherited,
			Promoted:         res.Promoted,
		},
		Trafficshed: fc,
	}
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}
