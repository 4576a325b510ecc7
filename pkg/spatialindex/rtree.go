package spatialindex

import (
	"errors"
	"slices"

	"github.com/lintang-b-s/trafficshed/pkg/datastructure"
	"github.com/lintang-b-s/trafficshed/pkg/geo"
	"github.com/tidwall/rtree"
	"go.uber.org/zap"
)

var (
	ErrNoNearbyNode = errors.New("no graph node near the query point")
)

const (
	initialRadius = 0.05 // km
	maxRadius     = 5.0  // km
	maxCandidates = 20
)

type Rtree struct {
	tr *rtree.RTreeG[NodeEntry]
}

type NodeEntry struct {
	id  int64
	lat float64
	lon float64
}

func (ne NodeEntry) GetID() int64 {
	return ne.id
}

func (ne NodeEntry) GetCoordinate() geo.Coordinate {
	return geo.NewCoordinate(ne.lat, ne.lon)
}

func NewRtree() *Rtree {
	var tr rtree.RTreeG[NodeEntry]
	return &Rtree{
		tr: &tr,
	}
}

// Build. index every node that has at least one edge; isolated nodes can't be a destination.
func (rt *Rtree) Build(graph *datastructure.MapGraph, log *zap.Logger) {
	log.Info("Building R-tree spatial index...")

	connected := make(map[int64]struct{}, len(graph.Nodes))
	for _, e := range graph.Edges {
		connected[e.From] = struct{}{}
		connected[e.To] = struct{}{}
	}

	count := 0
	for _, n := range graph.Nodes {
		if _, ok := connected[n.ID]; !ok {
			continue
		}
		rt.tr.Insert([2]float64{n.Lon, n.Lat}, [2]float64{n.Lon, n.Lat},
			NodeEntry{id: n.ID, lat: n.Lat, lon: n.Lon})
		count++
	}

	log.Info("R-tree spatial index built.", zap.Int("nodes", count))
}

func (rt *Rtree) Len() int {
	return rt.tr.Len()
}

// SearchWithinRadius search for at most maxCandidates nodes within radius (in km) from the query point (qLat, qLon)
func (rt *Rtree) SearchWithinRadius(qLat, qLon, radius float64) []NodeEntry {
	lowerLat, lowerLon := geo.GetDestinationPoint(qLat, qLon, 225, radius)
	upperLat, upperLon := geo.GetDestinationPoint(qLat, qLon, 45, radius)

	results := make([]NodeEntry, 0, 10)
	rt.tr.Search([2]float64{lowerLon, lowerLat}, [2]float64{upperLon, upperLat},
		func(min, max [2]float64, data NodeEntry) bool {
			results = append(results, data)
			return len(results) < maxCandidates
		})
	return results
}

// Nearest. snap (qLat, qLon) to the closest indexed node, doubling the search radius until something is found.
// the bounding box is only a filter, candidates are ranked by great-circle distance.
func (rt *Rtree) Nearest(qLat, qLon float64) (NodeEntry, error) {
	query := geo.NewCoordinate(qLat, qLon)
	for radius := initialRadius; radius <= maxRadius; radius *= 2 {
		candidates := rt.SearchWithinRadius(qLat, qLon, radius)
		if len(candidates) == 0 {
			continue
		}
		return slices.MinFunc(candidates, func(a, b NodeEntry) int {
			da := geo.GreatCircleDistance(query, a.GetCoordinate())
			db := geo.GreatCircleDistance(query, b.GetCoordinate())
			switch {
			case da < db:
				return -1
			case da > db:
				return 1
			}
			if a.id < b.id {
				return -1
			}
			if a.id > b.id {
				return 1
			}
			return 0
		}), nil
	}
	return NodeEntry{}, ErrNoNearbyNode
}
