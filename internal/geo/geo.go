// Package geo provides distance metrics over geographic coordinates.
package geo

import (
	"fmt"
	"math"
	"strings"
)

// EarthRadiusKm is the mean Earth radius used by the haversine formula.
const EarthRadiusKm = 6371.0

// Metric names accepted by ParseMetric.
const (
	MetricPlanar    = "planar"
	MetricHaversine = "haversine"
)

// Coord is a WGS 84 position in decimal degrees.
type Coord struct {
	Lat float64
	Lon float64
}

// Metric measures the distance between two coordinates. The unit depends on
// the implementation and must match the unit of any radius compared against it.
type Metric interface {
	Name() string
	Distance(a, b Coord) float64
	// Planar reports whether the metric is Euclidean over raw degrees, which
	// allows grid-based neighbour search with a cell size equal to the radius.
	Planar() bool
}

// Distance returns the great-circle distance in kilometres between two
// points given in decimal degrees.
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	// Rounding can push a fractionally above 1 for antipodal points.
	if a > 1 {
		a = 1
	}
	return EarthRadiusKm * 2 * math.Asin(math.Sqrt(a))
}

// Planar treats latitude and longitude as a flat Euclidean plane measured in
// degrees. At the equator 0.01° is roughly 1.1 km; longitude degrees shrink
// towards the poles, so a fixed radius covers less ground east-west at high
// latitudes.
type Planar struct{}

func (Planar) Name() string { return MetricPlanar }

func (Planar) Distance(a, b Coord) float64 {
	return math.Hypot(a.Lat-b.Lat, a.Lon-b.Lon)
}

func (Planar) Planar() bool { return true }

// Haversine measures great-circle distance in kilometres.
type Haversine struct{}

func (Haversine) Name() string { return MetricHaversine }

func (Haversine) Distance(a, b Coord) float64 {
	return Distance(a.Lat, a.Lon, b.Lat, b.Lon)
}

func (Haversine) Planar() bool { return false }

// ParseMetric resolves a metric by name. The empty string selects Planar.
func ParseMetric(name string) (Metric, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", MetricPlanar, "degrees":
		return Planar{}, nil
	case MetricHaversine, "km":
		return Haversine{}, nil
	default:
		return nil, fmt.Errorf("unknown distance metric %q (want %s or %s)", name, MetricPlanar, MetricHaversine)
	}
}
