package usecases

import (
	"context"

	"github.com/lintang-b-s/trafficshed/pkg/engine"
)

type TrafficEngine interface {
	RunAt(ctx context.Context, lat, lon float64) (*engine.Result, error)
}
