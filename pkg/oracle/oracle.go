package oracle

import (
	"context"
	"errors"

	"github.com/lintang-b-s/trafficshed/pkg/geo"
)

var (
	ErrNoRoute          = errors.New("routing oracle found no route")
	ErrMalformedReply   = errors.New("malformed routing oracle response")
	ErrUnexpectedStatus = errors.New("unexpected routing oracle status")
)

// Route is the oracle's answer for one origin/destination query: the node ids the route passes
// through, in order, and its travel time in seconds.
type Route struct {
	Nodes    []int64 `json:"nodes"`
	Duration float64 `json:"duration"`
}

// Router answers single route queries. Implementations must be safe for concurrent use.
type Router interface {
	Route(ctx context.Context, from, to geo.Coordinate) (Route, error)
}

// TravelTimeMatrix returns travel times between dest and every origin, aligned to the origin order.
// unreachable origins get NaN.
type TravelTimeMatrix interface {
	TransitTimes(ctx context.Context, dest geo.Coordinate, origins []geo.Coordinate) ([]float64, error)
}

type Direction string

const (
	// travel times from each origin to the destination
	TOWARDS Direction = "to"
	// travel times from the destination to each origin
	FROM Direction = "from"
)

func ParseDirection(s string) (Direction, error) {
	switch Direction(s) {
	case TOWARDS, "":
		return TOWARDS, nil
	case FROM:
		return FROM, nil
	}
	return "", errors.New("direction must be \"to\" or \"from\"")
}
