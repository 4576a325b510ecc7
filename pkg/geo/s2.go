package geo

import (
	"github.com/golang/geo/s2"
)

// GreatCircleDistance returns the s2 great-circle distance between a and b in meter.
func GreatCircleDistance(a, b Coordinate) float64 {
	pa := s2.LatLngFromDegrees(a.Lat, a.Lon)
	pb := s2.LatLngFromDegrees(b.Lat, b.Lon)
	return pa.Distance(pb).Radians() * earthRadiusKM * 1000
}
