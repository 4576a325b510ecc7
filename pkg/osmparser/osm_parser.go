package osmparser

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dsnet/compress/bzip2"
	"github.com/lintang-b-s/trafficshed/pkg/datastructure"
	"github.com/lintang-b-s/trafficshed/pkg/geo"
	"github.com/paulmach/osm"
	"github.com/paulmach/osm/osmpbf"
	"github.com/paulmach/osm/osmxml"
	"go.uber.org/zap"
)

type OsmParser struct {
	wayNodeMap      map[int64]NodeType
	acceptedNodeMap map[int64]nodeCoord
	ways            []osmWay
	logger          *zap.Logger
}

func NewOSMParser(logger *zap.Logger) *OsmParser {
	return &OsmParser{
		wayNodeMap:      make(map[int64]NodeType),
		acceptedNodeMap: make(map[int64]nodeCoord),
		ways:            make([]osmWay, 0),
		logger:          logger,
	}
}

type scanCloser struct {
	osm.Scanner
	closers []io.Closer
}

func (s *scanCloser) Close() error {
	err := s.Scanner.Close()
	for i := len(s.closers) - 1; i >= 0; i-- {
		if cerr := s.closers[i].Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// openScanner. .osm.pbf is read with the pbf decoder, .osm and .osm.bz2 with the xml decoder.
func openScanner(ctx context.Context, mapFile string) (osm.Scanner, error) {
	f, err := os.Open(mapFile)
	if err != nil {
		return nil, err
	}

	switch {
	case strings.HasSuffix(mapFile, ".pbf"):
		return &scanCloser{Scanner: osmpbf.New(ctx, f, 1), closers: []io.Closer{f}}, nil
	case strings.HasSuffix(mapFile, ".bz2"):
		bz, err := bzip2.NewReader(f, nil)
		if err != nil {
			f.Close()
			return nil, err
		}
		return &scanCloser{Scanner: osmxml.New(ctx, bz), closers: []io.Closer{f, bz}}, nil
	default:
		return &scanCloser{Scanner: osmxml.New(ctx, f), closers: []io.Closer{f}}, nil
	}
}

// Parse. read the map file twice: first the ways (to know which nodes are junctions), then the node coordinates.
// each way is split into street segments between junction nodes.
func (p *OsmParser) Parse(ctx context.Context, mapFile string) (*datastructure.MapGraph, error) {
	scanner, err := openScanner(ctx, mapFile)
	if err != nil {
		return nil, err
	}

	countWays := 0
	for scanner.Scan() {
		way, ok := scanner.Object().(*osm.Way)
		if !ok || len(way.Nodes) < 2 || !acceptOsmWay(way) {
			continue
		}
		if (countWays+1)%50000 == 0 {
			p.logger.Sugar().Infof("scanning openstreetmap ways: %d...", countWays+1)
		}
		countWays++
		p.processWay(way)
	}
	if err := scanner.Err(); err != nil {
		scanner.Close()
		return nil, fmt.Errorf("scan ways of %s: %w", mapFile, err)
	}
	scanner.Close()

	scanner, err = openScanner(ctx, mapFile)
	if err != nil {
		return nil, err
	}
	defer scanner.Close()

	for scanner.Scan() {
		node, ok := scanner.Object().(*osm.Node)
		if !ok {
			continue
		}
		if _, ok := p.wayNodeMap[int64(node.ID)]; ok {
			p.acceptedNodeMap[int64(node.ID)] = nodeCoord{lat: node.Lat, lon: node.Lon}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan nodes of %s: %w", mapFile, err)
	}

	graph := p.BuildGraph()

	p.logger.Sugar().Infof("number of ways: %d", countWays)
	p.logger.Sugar().Infof("number of vertices: %d", len(graph.Nodes))
	p.logger.Sugar().Infof("number of edges: %d", len(graph.Edges))
	return graph, nil
}

func (p *OsmParser) processWay(way *osm.Way) {
	for i, node := range way.Nodes {
		if _, ok := p.wayNodeMap[int64(node.ID)]; !ok {
			if i == 0 || i == len(way.Nodes)-1 {
				p.wayNodeMap[int64(node.ID)] = END_NODE
			} else {
				p.wayNodeMap[int64(node.ID)] = BETWEEN_NODE
			}
		} else {
			p.wayNodeMap[int64(node.ID)] = JUNCTION_NODE
		}
	}

	nodes := make([]int64, len(way.Nodes))
	for i, node := range way.Nodes {
		nodes[i] = int64(node.ID)
	}

	oneWay, forward := getOneWay(way)
	roadClass := way.Tags.Find("highway")
	if service := way.Tags.Find("service"); service != "" {
		roadClass = roadClass + ":" + service
	}

	p.ways = append(p.ways, osmWay{
		id:        int64(way.ID),
		nodes:     nodes,
		roadClass: roadClass,
		oneWay:    oneWay,
		forward:   forward,
	})
}

// BuildGraph. split every accepted way at junction nodes & way endpoints, one (or two for two-way streets) edge per segment.
func (p *OsmParser) BuildGraph() *datastructure.MapGraph {
	graph := datastructure.NewMapGraph()
	graphNodes := make(map[int64]struct{})

	addNode := func(id int64) {
		if _, ok := graphNodes[id]; ok {
			return
		}
		graphNodes[id] = struct{}{}
		c := p.acceptedNodeMap[id]
		graph.AddNode(id, c.lat, c.lon)
	}

	for _, way := range p.ways {
		segment := make([]int64, 0, len(way.nodes))
		for i, id := range way.nodes {
			if _, ok := p.acceptedNodeMap[id]; !ok {
				// node outside the extract, drop the partial segment
				segment = segment[:0]
				continue
			}
			segment = append(segment, id)
			if len(segment) > 1 && (i == len(way.nodes)-1 || p.isJunctionNode(id)) {
				for _, part := range splitLoop(segment) {
					addNode(part[0])
					addNode(part[len(part)-1])
					p.addEdges(graph, way, part)
				}
				segment = []int64{id}
			}
		}
	}
	return graph
}

// splitLoop. a closed segment would become a self loop, split it in the middle node.
func splitLoop(segment []int64) [][]int64 {
	if len(segment) == 2 && segment[0] == segment[1] {
		return nil
	}
	if len(segment) > 2 && segment[0] == segment[len(segment)-1] {
		mid := len(segment) / 2
		return [][]int64{segment[:mid+1], segment[mid:]}
	}
	return [][]int64{segment}
}

func (p *OsmParser) addEdges(graph *datastructure.MapGraph, way osmWay, segment []int64) {
	geometry := make([]geo.Coordinate, len(segment))
	for i, id := range segment {
		c := p.acceptedNodeMap[id]
		geometry[i] = geo.NewCoordinate(c.lat, c.lon)
	}
	length := geo.PathLengthMeters(geometry)
	if length <= 0 {
		return
	}

	from, to := segment[0], segment[len(segment)-1]

	if !way.oneWay || way.forward {
		graph.AddEdge(datastructure.MapEdge{
			From:      from,
			To:        to,
			Length:    length,
			RoadClass: way.roadClass,
			OneWay:    way.oneWay,
			Geometry:  geometry,
		})
	}
	if !way.oneWay || !way.forward {
		reversed := make([]geo.Coordinate, len(geometry))
		for i := range geometry {
			reversed[i] = geometry[len(geometry)-1-i]
		}
		graph.AddEdge(datastructure.MapEdge{
			From:      to,
			To:        from,
			Length:    length,
			RoadClass: way.roadClass,
			OneWay:    way.oneWay,
			Geometry:  reversed,
		})
	}
}

func (p *OsmParser) isJunctionNode(nodeID int64) bool {
	t, ok := p.wayNodeMap[nodeID]
	return ok && (t == JUNCTION_NODE || t == END_NODE)
}

func acceptOsmWay(way *osm.Way) bool {
	if way.Tags.Find("area") == "yes" {
		return false
	}
	highway := way.Tags.Find("highway")
	if highway == "" {
		return false
	}
	_, ok := acceptedHighway[highway]
	return ok
}

func isRestricted(value string) bool {
	return value == "no" || value == "restricted"
}

// getOneWay returns (oneWay, forward). forward=false means traffic only flows against the way's node order.
func getOneWay(way *osm.Way) (bool, bool) {
	vehicleForward := isRestricted(way.Tags.Find("vehicle:forward")) || isRestricted(way.Tags.Find("motor_vehicle:forward"))
	vehicleBackward := isRestricted(way.Tags.Find("vehicle:backward")) || isRestricted(way.Tags.Find("motor_vehicle:backward"))

	switch way.Tags.Find("oneway") {
	case "yes", "true", "1":
		return true, true
	case "-1", "reverse":
		return true, false
	case "no", "false", "0":
		return false, true
	}

	if vehicleForward {
		return true, false
	}
	if vehicleBackward {
		return true, true
	}

	junction := way.Tags.Find("junction")
	if junction == "roundabout" || junction == "circular" || way.Tags.Find("highway") == "motorway" {
		return true, true
	}
	return false, true
}
