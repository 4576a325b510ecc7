package render

import (
	"io"
	"math"

	"github.com/lintang-b-s/trafficshed/pkg/datastructure"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/twpayne/go-polyline"
)

// GeoJSON builds one LineString feature per edge that carries traffic. intensity is the log1p of the
// edge's through traffic scaled to [0, 1] by the busiest edge.
func GeoJSON(et *datastructure.EdgeTable) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()

	maxTraffic := 0.0
	for _, e := range et.Edges() {
		maxTraffic = math.Max(maxTraffic, e.GetThroughTraffic())
	}
	scale := math.Log1p(maxTraffic)

	for _, e := range et.Edges() {
		if e.IsIgnored() && e.GetThroughTraffic() == 0 {
			continue
		}

		geometry := e.GetGeometry()
		line := make(orb.LineString, 0, len(geometry))
		coords := make([][]float64, 0, len(geometry))
		for _, c := range geometry {
			line = append(line, orb.Point{c.Lon, c.Lat})
			coords = append(coords, []float64{c.Lat, c.Lon})
		}

		intensity := 0.0
		if scale > 0 {
			intensity = math.Log1p(e.GetThroughTraffic()) / scale
		}

		f := geojson.NewFeature(line)
		f.Properties["u"] = e.GetU()
		f.Properties["v"] = e.GetV()
		f.Properties["highway"] = e.GetRoadClass()
		f.Properties["length"] = e.GetLength()
		f.Properties["next_hop"] = e.GetNextHop()
		f.Properties["skip_target"] = e.GetSkipTarget()
		f.Properties["through_traffic"] = e.GetThroughTraffic()
		f.Properties["intensity"] = intensity
		f.Properties["polyline"] = string(polyline.EncodeCoords(coords))
		fc.Append(f)
	}
	return fc
}

func WriteGeoJSON(w io.Writer, et *datastructure.EdgeTable) error {
	data, err := GeoJSON(et).MarshalJSON()
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}
