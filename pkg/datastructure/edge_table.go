package datastructure

import (
	"errors"
	"math"
	"slices"
	"strings"

	"github.com/lintang-b-s/trafficshed/pkg"
	"github.com/lintang-b-s/trafficshed/pkg/geo"
	"github.com/lintang-b-s/trafficshed/pkg/util"
	"go.uber.org/zap"
)

var (
	ErrMalformedGraph = errors.New("malformed map graph")
)

// EdgeTable holds every node and deduplicated directed edge of one run. Edges are kept sorted
// by key so that every pass over the table is deterministic.
type EdgeTable struct {
	nodes   map[int64]*Node
	nodeIDs []int64

	edges    []*Edge
	index    map[EdgeKey]Index
	outgoing map[int64][]Index // edges grouped by u
	incoming map[int64][]Index // edges grouped by v

	destination int64
}

// BuildEdgeTable. build the node & edge collections from the raw map graph. transitTimes maps node id
// to travel time (second) from/to the destination; nodes missing from it are treated as unreachable.
func BuildEdgeTable(raw *MapGraph, transitTimes map[int64]float64, destination int64,
	log *zap.Logger) (*EdgeTable, error) {
	et := &EdgeTable{
		nodes:       make(map[int64]*Node, len(raw.Nodes)),
		nodeIDs:     make([]int64, 0, len(raw.Nodes)),
		index:       make(map[EdgeKey]Index, len(raw.Edges)),
		outgoing:    make(map[int64][]Index),
		incoming:    make(map[int64][]Index),
		destination: destination,
	}

	for _, n := range raw.Nodes {
		if _, ok := et.nodes[n.ID]; ok {
			continue
		}
		transitTime, ok := transitTimes[n.ID]
		if !ok {
			transitTime = math.NaN()
		}
		et.nodes[n.ID] = NewNode(n.ID, n.Lat, n.Lon, transitTime)
		et.nodeIDs = append(et.nodeIDs, n.ID)
	}
	slices.Sort(et.nodeIDs)

	// keep the longest of parallel edges; the shorter ones are mostly u-shaped detours.
	longest := make(map[EdgeKey]MapEdge, len(raw.Edges))
	selfLoops := 0
	for _, e := range raw.Edges {
		if _, ok := et.nodes[e.From]; !ok {
			return nil, util.WrapErrorf(nil, ErrMalformedGraph, "edge (%d,%d) starts at unknown node %d", e.From, e.To, e.From)
		}
		if _, ok := et.nodes[e.To]; !ok {
			return nil, util.WrapErrorf(nil, ErrMalformedGraph, "edge (%d,%d) ends at unknown node %d", e.From, e.To, e.To)
		}
		if e.Length <= 0 || math.IsNaN(e.Length) {
			return nil, util.WrapErrorf(nil, ErrMalformedGraph, "edge (%d,%d) has non-positive length %f", e.From, e.To, e.Length)
		}
		if e.From == e.To {
			selfLoops++
			continue
		}
		key := NewEdgeKey(e.From, e.To)
		if prev, ok := longest[key]; !ok || e.Length > prev.Length {
			longest[key] = e
		}
	}

	keys := make([]EdgeKey, 0, len(longest))
	for key := range longest {
		keys = append(keys, key)
	}
	slices.SortFunc(keys, func(a, b EdgeKey) int {
		if a.Less(b) {
			return -1
		}
		if b.Less(a) {
			return 1
		}
		return 0
	})

	et.edges = make([]*Edge, 0, len(keys))
	for _, key := range keys {
		me := longest[key]
		u, v := et.nodes[key.U], et.nodes[key.V]
		e := NewEdge(key.U, key.V, me.Length, me.RoadClass, me.OneWay, u.GetTransitTime(), v.GetTransitTime())
		e.SetIgnore(IsIgnoredRoadClass(me.RoadClass))
		if len(me.Geometry) >= 2 {
			e.SetGeometry(me.Geometry)
		} else {
			e.SetGeometry([]geo.Coordinate{u.GetCoordinate(), v.GetCoordinate()})
		}
		et.appendEdge(e)
	}

	if log != nil {
		log.Info("edge table built",
			zap.Int("nodes", len(et.nodeIDs)),
			zap.Int("rawEdges", len(raw.Edges)),
			zap.Int("edges", len(et.edges)),
			zap.Int("selfLoops", selfLoops),
			zap.Int("ignored", et.CountIgnored()),
		)
	}
	return et, nil
}

func (et *EdgeTable) appendEdge(e *Edge) {
	idx := Index(len(et.edges))
	et.edges = append(et.edges, e)
	et.index[e.GetKey()] = idx
	et.outgoing[e.GetU()] = append(et.outgoing[e.GetU()], idx)
	et.incoming[e.GetV()] = append(et.incoming[e.GetV()], idx)
}

// IsIgnoredRoadClass. footways, service roads, paths & driveways are not routed through by default.
func IsIgnoredRoadClass(roadClass string) bool {
	for _, pattern := range pkg.IgnoredRoadClassPatterns {
		if strings.Contains(roadClass, pattern) {
			return true
		}
	}
	return false
}

func (et *EdgeTable) GetDestination() int64 {
	return et.destination
}

func (et *EdgeTable) NumberOfEdges() int {
	return len(et.edges)
}

func (et *EdgeTable) NumberOfNodes() int {
	return len(et.nodeIDs)
}

func (et *EdgeTable) GetNode(id int64) (*Node, bool) {
	n, ok := et.nodes[id]
	return n, ok
}

func (et *EdgeTable) HasNode(id int64) bool {
	_, ok := et.nodes[id]
	return ok
}

// NodeIDs returns node ids in ascending order.
func (et *EdgeTable) NodeIDs() []int64 {
	return et.nodeIDs
}

func (et *EdgeTable) GetEdge(u, v int64) (*Edge, bool) {
	idx, ok := et.index[NewEdgeKey(u, v)]
	if !ok {
		return nil, false
	}
	return et.edges[idx], true
}

func (et *EdgeTable) GetEdgeByKey(key EdgeKey) (*Edge, bool) {
	return et.GetEdge(key.U, key.V)
}

func (et *EdgeTable) HasEdge(u, v int64) bool {
	_, ok := et.index[NewEdgeKey(u, v)]
	return ok
}

// Edges returns all edges sorted by key. The slice must not be modified.
func (et *EdgeTable) Edges() []*Edge {
	return et.edges
}

func (et *EdgeTable) ForEdges(handle func(e *Edge)) {
	for _, e := range et.edges {
		handle(e)
	}
}

func (et *EdgeTable) ForOutEdgesOf(u int64, handle func(e *Edge)) {
	for _, idx := range et.outgoing[u] {
		handle(et.edges[idx])
	}
}

func (et *EdgeTable) ForInEdgesOf(v int64, handle func(e *Edge)) {
	for _, idx := range et.incoming[v] {
		handle(et.edges[idx])
	}
}

// Unresolved returns non-ignored edges without a next hop, in key order.
func (et *EdgeTable) Unresolved() []*Edge {
	unresolved := make([]*Edge, 0)
	for _, e := range et.edges {
		if !e.IsIgnored() && !e.IsResolved() {
			unresolved = append(unresolved, e)
		}
	}
	return unresolved
}

func (et *EdgeTable) CountUnresolved() int {
	count := 0
	for _, e := range et.edges {
		if !e.IsIgnored() && !e.IsResolved() {
			count++
		}
	}
	return count
}

func (et *EdgeTable) CountIgnored() int {
	count := 0
	for _, e := range et.edges {
		if e.IsIgnored() {
			count++
		}
	}
	return count
}

// MarkResolvedNodes sets the informational resolved flag of every node whose incoming edges all have a next hop.
func (et *EdgeTable) MarkResolvedNodes() {
	for _, id := range et.nodeIDs {
		resolved := true
		et.ForInEdgesOf(id, func(e *Edge) {
			if !e.IsIgnored() && !e.IsResolved() {
				resolved = false
			}
		})
		et.nodes[id].SetResolved(resolved)
	}
}
