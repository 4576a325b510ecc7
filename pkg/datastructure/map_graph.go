package datastructure

import "github.com/lintang-b-s/trafficshed/pkg/geo"

// MapNode is a street network vertex as delivered by the map source.
type MapNode struct {
	ID  int64
	Lat float64
	Lon float64
}

// MapEdge is a directed street segment as delivered by the map source. Parallel
// segments between the same pair of nodes are allowed here.
type MapEdge struct {
	From      int64
	To        int64
	Length    float64 // meter
	RoadClass string
	OneWay    bool
	Geometry  []geo.Coordinate
}

// MapGraph is the raw directed street graph.
type MapGraph struct {
	Nodes []MapNode
	Edges []MapEdge
}

func NewMapGraph() *MapGraph {
	return &MapGraph{
		Nodes: make([]MapNode, 0),
		Edges: make([]MapEdge, 0),
	}
}

func (g *MapGraph) AddNode(id int64, lat, lon float64) {
	g.Nodes = append(g.Nodes, MapNode{ID: id, Lat: lat, Lon: lon})
}

func (g *MapGraph) AddEdge(e MapEdge) {
	g.Edges = append(g.Edges, e)
}

func (g *MapGraph) NodeIDs() []int64 {
	ids := make([]int64, len(g.Nodes))
	for i, n := range g.Nodes {
		ids[i] = n.ID
	}
	return ids
}
