package datastructure

import (
	"math"

	"github.com/lintang-b-s/trafficshed/pkg"
	"github.com/lintang-b-s/trafficshed/pkg/geo"
)

type Index uint32

type Node struct {
	id          int64
	lat         float64
	lon         float64
	transitTime float64 // seconds to (or from) the destination, NaN if the destination is unreachable
	resolved    bool
}

func NewNode(id int64, lat, lon, transitTime float64) *Node {
	return &Node{
		id:          id,
		lat:         lat,
		lon:         lon,
		transitTime: transitTime,
	}
}

func (n *Node) GetID() int64 {
	return n.id
}

func (n *Node) GetLat() float64 {
	return n.lat
}

func (n *Node) GetLon() float64 {
	return n.lon
}

func (n *Node) GetCoordinate() geo.Coordinate {
	return geo.NewCoordinate(n.lat, n.lon)
}

func (n *Node) GetTransitTime() float64 {
	return n.transitTime
}

func (n *Node) IsReachable() bool {
	return !math.IsNaN(n.transitTime)
}

func (n *Node) IsResolved() bool {
	return n.resolved
}

func (n *Node) SetResolved(resolved bool) {
	n.resolved = resolved
}

// EdgeKey identifies a directed street segment by its ordered node pair.
type EdgeKey struct {
	U int64
	V int64
}

func NewEdgeKey(u, v int64) EdgeKey {
	return EdgeKey{U: u, V: v}
}

func (k EdgeKey) Less(o EdgeKey) bool {
	if k.U != o.U {
		return k.U < o.U
	}
	return k.V < o.V
}

type Edge struct {
	u, v      int64
	length    float64 // meter
	roadClass string
	oneWay    bool
	ignore    bool

	startTime float64
	endTime   float64

	// traffic on (u,v) continues onto edge (skipTarget, nextHop).
	nextHop    int64
	skipTarget int64

	throughTraffic float64
	currentWave    float64

	geometry []geo.Coordinate
}

func NewEdge(u, v int64, length float64, roadClass string, oneWay bool, startTime, endTime float64) *Edge {
	return &Edge{
		u:          u,
		v:          v,
		length:     length,
		roadClass:  roadClass,
		oneWay:     oneWay,
		startTime:  startTime,
		endTime:    endTime,
		nextHop:    pkg.UNRESOLVED,
		skipTarget: v,
	}
}

func (e *Edge) GetKey() EdgeKey {
	return EdgeKey{U: e.u, V: e.v}
}

func (e *Edge) GetU() int64 {
	return e.u
}

func (e *Edge) GetV() int64 {
	return e.v
}

func (e *Edge) GetLength() float64 {
	return e.length
}

func (e *Edge) GetRoadClass() string {
	return e.roadClass
}

func (e *Edge) IsOneWay() bool {
	return e.oneWay
}

func (e *Edge) IsIgnored() bool {
	return e.ignore
}

func (e *Edge) SetIgnore(ignore bool) {
	e.ignore = ignore
}

func (e *Edge) GetStartTime() float64 {
	return e.startTime
}

func (e *Edge) GetEndTime() float64 {
	return e.endTime
}

// GetDelta. change of transit time when the edge is traversed, negative means progress toward the destination.
func (e *Edge) GetDelta() float64 {
	return e.endTime - e.startTime
}

func (e *Edge) MakesProgress() bool {
	return e.GetDelta() < 0
}

func (e *Edge) GetNextHop() int64 {
	return e.nextHop
}

func (e *Edge) SetNextHop(w int64) {
	e.nextHop = w
}

func (e *Edge) IsResolved() bool {
	return e.nextHop != pkg.UNRESOLVED
}

func (e *Edge) IsSink() bool {
	return e.nextHop == pkg.SINK
}

func (e *Edge) GetSkipTarget() int64 {
	return e.skipTarget
}

func (e *Edge) SetSkipTarget(v2 int64) {
	e.skipTarget = v2
}

// GetDownstreamKey. the edge this edge's traffic moves onto. only meaningful when NextHop > 0.
func (e *Edge) GetDownstreamKey() EdgeKey {
	return EdgeKey{U: e.skipTarget, V: e.nextHop}
}

func (e *Edge) GetThroughTraffic() float64 {
	return e.throughTraffic
}

func (e *Edge) SetThroughTraffic(t float64) {
	e.throughTraffic = t
}

func (e *Edge) AddThroughTraffic(t float64) {
	e.throughTraffic += t
}

func (e *Edge) GetCurrentWave() float64 {
	return e.currentWave
}

func (e *Edge) SetCurrentWave(w float64) {
	e.currentWave = w
}

func (e *Edge) GetGeometry() []geo.Coordinate {
	return e.geometry
}

func (e *Edge) SetGeometry(geometry []geo.Coordinate) {
	e.geometry = geometry
}
