package datastructure

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/dsnet/compress/bzip2"
	"github.com/lintang-b-s/trafficshed/pkg/geo"
	"github.com/lintang-b-s/trafficshed/pkg/util"
	"github.com/twpayne/go-polyline"
)

const emptyField = "-"

// WriteEdgeTable. write the resolved edge table (with through traffic) as bzip2 compressed text.
func (et *EdgeTable) WriteEdgeTable(filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer f.Close()

	return et.Encode(f)
}

func (et *EdgeTable) Encode(out io.Writer) error {
	bz, err := bzip2.NewWriter(out, &bzip2.WriterConfig{})
	if err != nil {
		return err
	}

	w := bufio.NewWriter(bz)

	fmt.Fprintf(w, "%d %d %d\n", et.destination, len(et.nodeIDs), len(et.edges))

	for _, id := range et.nodeIDs {
		n := et.nodes[id]
		fmt.Fprintf(w, "%d %s %s %s\n", n.id,
			strconv.FormatFloat(n.lat, 'f', -1, 64),
			strconv.FormatFloat(n.lon, 'f', -1, 64),
			strconv.FormatFloat(n.transitTime, 'f', -1, 64))
	}

	for _, e := range et.edges {
		line := emptyField
		if len(e.geometry) > 0 {
			coords := make([][]float64, len(e.geometry))
			for i, c := range e.geometry {
				coords[i] = []float64{c.Lat, c.Lon}
			}
			line = string(polyline.EncodeCoords(coords))
		}

		fmt.Fprintf(w, "%d %d %s %t %t %d %d %s %s %s\n",
			e.u, e.v,
			strconv.FormatFloat(e.length, 'f', -1, 64),
			e.oneWay, e.ignore, e.nextHop, e.skipTarget,
			strconv.FormatFloat(e.throughTraffic, 'f', -1, 64),
			line, strconv.Quote(e.roadClass))
	}

	if err := w.Flush(); err != nil {
		return err
	}
	return bz.Close()
}

func ReadEdgeTable(filename string) (*EdgeTable, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return DecodeEdgeTable(f)
}

func DecodeEdgeTable(in io.Reader) (*EdgeTable, error) {
	bz, err := bzip2.NewReader(in, nil)
	if err != nil {
		return nil, err
	}
	defer bz.Close()

	br := bufio.NewReader(bz)

	line, err := util.ReadLine(br)
	if err != nil {
		return nil, err
	}
	tokens := strings.Fields(line)
	if len(tokens) != 3 {
		return nil, util.WrapErrorf(nil, ErrMalformedGraph, "invalid edge table header: %q", line)
	}
	destination, err := strconv.ParseInt(tokens[0], 10, 64)
	if err != nil {
		return nil, err
	}
	numNodes, err := strconv.Atoi(tokens[1])
	if err != nil {
		return nil, err
	}
	numEdges, err := strconv.Atoi(tokens[2])
	if err != nil {
		return nil, err
	}

	et := &EdgeTable{
		nodes:       make(map[int64]*Node, numNodes),
		nodeIDs:     make([]int64, 0, numNodes),
		edges:       make([]*Edge, 0, numEdges),
		index:       make(map[EdgeKey]Index, numEdges),
		outgoing:    make(map[int64][]Index),
		incoming:    make(map[int64][]Index),
		destination: destination,
	}

	for i := 0; i < numNodes; i++ {
		line, err = util.ReadLine(br)
		if err != nil {
			return nil, err
		}
		n, err := parseNodeLine(line)
		if err != nil {
			return nil, err
		}
		et.nodes[n.id] = n
		et.nodeIDs = append(et.nodeIDs, n.id)
	}

	for i := 0; i < numEdges; i++ {
		line, err = util.ReadLine(br)
		if err != nil {
			return nil, err
		}
		e, err := et.parseEdgeLine(line)
		if err != nil {
			return nil, err
		}
		et.appendEdge(e)
	}

	return et, nil
}

func parseNodeLine(line string) (*Node, error) {
	tokens := strings.Fields(line)
	if len(tokens) != 4 {
		return nil, util.WrapErrorf(nil, ErrMalformedGraph, "invalid node line: %q", line)
	}
	id, err := strconv.ParseInt(tokens[0], 10, 64)
	if err != nil {
		return nil, err
	}
	vals := make([]float64, 3)
	for i := range vals {
		vals[i], err = strconv.ParseFloat(tokens[i+1], 64)
		if err != nil {
			return nil, err
		}
	}
	return NewNode(id, vals[0], vals[1], vals[2]), nil
}

func (et *EdgeTable) parseEdgeLine(line string) (*Edge, error) {
	tokens := strings.SplitN(line, " ", 10)
	if len(tokens) != 10 {
		return nil, util.WrapErrorf(nil, ErrMalformedGraph, "invalid edge line: %q", line)
	}

	u, err := strconv.ParseInt(tokens[0], 10, 64)
	if err != nil {
		return nil, err
	}
	v, err := strconv.ParseInt(tokens[1], 10, 64)
	if err != nil {
		return nil, err
	}
	length, err := strconv.ParseFloat(tokens[2], 64)
	if err != nil {
		return nil, err
	}
	oneWay, err := strconv.ParseBool(tokens[3])
	if err != nil {
		return nil, err
	}
	ignore, err := strconv.ParseBool(tokens[4])
	if err != nil {
		return nil, err
	}
	nextHop, err := strconv.ParseInt(tokens[5], 10, 64)
	if err != nil {
		return nil, err
	}
	skipTarget, err := strconv.ParseInt(tokens[6], 10, 64)
	if err != nil {
		return nil, err
	}
	throughTraffic, err := strconv.ParseFloat(tokens[7], 64)
	if err != nil {
		return nil, err
	}
	roadClass, err := strconv.Unquote(tokens[9])
	if err != nil {
		return nil, err
	}

	un, ok := et.nodes[u]
	if !ok {
		return nil, util.WrapErrorf(nil, ErrMalformedGraph, "edge (%d,%d) starts at unknown node", u, v)
	}
	vn, ok := et.nodes[v]
	if !ok {
		return nil, util.WrapErrorf(nil, ErrMalformedGraph, "edge (%d,%d) ends at unknown node", u, v)
	}

	e := NewEdge(u, v, length, roadClass, oneWay, un.GetTransitTime(), vn.GetTransitTime())
	e.SetIgnore(ignore)
	e.SetNextHop(nextHop)
	e.SetSkipTarget(skipTarget)
	e.SetThroughTraffic(throughTraffic)

	if tokens[8] != emptyField {
		coords, _, err := polyline.DecodeCoords([]byte(tokens[8]))
		if err != nil {
			return nil, err
		}
		geometry := make([]geo.Coordinate, len(coords))
		for i, c := range coords {
			geometry[i] = geo.NewCoordinate(c[0], c[1])
		}
		e.SetGeometry(geometry)
	}
	return e, nil
}
