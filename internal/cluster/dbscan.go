package cluster

import (
	"errors"
	"fmt"
	"math"

	"github.com/banshee-data/buscluster/internal/geo"
)

const (
	// DefaultEps is the default neighbourhood radius, in raw degrees for the
	// planar metric.
	DefaultEps = 0.01
	// DefaultMinSamples is the default number of points (self included)
	// required within Eps for a point to be a core point.
	DefaultMinSamples = 2
	// EstimatedPointsPerCell is used for initial spatial index capacity estimation
	EstimatedPointsPerCell = 4

	// Noise labels a point that belongs to no cluster.
	Noise = -1
)

// Point is one observation to be clustered. ID only breaks ties between
// equidistant core points; it does not take part in the distance.
type Point struct {
	ID    string
	Coord geo.Coord
}

// Params contains parameters for the DBSCAN clustering algorithm.
type Params struct {
	Eps        float64    // Neighbourhood radius in the unit of Metric
	MinSamples int        // Minimum points within Eps, self included, for a core point
	Metric     geo.Metric // Distance function; nil means planar degrees
}

// DefaultParams returns the production DBSCAN parameters: eps 0.01 degrees,
// min_samples 2, planar metric.
func DefaultParams() Params {
	return Params{
		Eps:        DefaultEps,
		MinSamples: DefaultMinSamples,
		Metric:     geo.Planar{},
	}
}

// Validate checks that the parameters can drive a clustering run.
func (p Params) Validate() error {
	if math.IsNaN(p.Eps) || math.IsInf(p.Eps, 0) || p.Eps <= 0 {
		return fmt.Errorf("eps must be a positive finite number, got %v", p.Eps)
	}
	if p.MinSamples < 1 {
		return fmt.Errorf("min_samples must be at least 1, got %d", p.MinSamples)
	}
	return nil
}

func (p Params) metric() geo.Metric {
	if p.Metric == nil {
		return geo.Planar{}
	}
	return p.Metric
}

// ErrInvalidParams is returned by Partition when the parameters fail validation.
var ErrInvalidParams = errors.New("invalid clustering parameters")

// DBSCAN performs density-based clustering and returns one label per point.
// Labels run from 0 in the order each cluster's first core point appears in
// the input; Noise marks points reachable from no core point.
//
// Core points that are mutual neighbours are joined transitively. A border
// point joins the cluster of its nearest core neighbour, with ties broken by
// coordinate and then ID, so the partition does not depend on input order.
func DBSCAN(points []Point, params Params) []int {
	n := len(points)
	if n == 0 {
		return nil
	}

	metric := params.metric()
	index := newNeighbourIndex(points, params.Eps, metric)

	neighbours := make([][]int, n)
	core := make([]bool, n)
	for i := range points {
		neighbours[i] = index.RegionQuery(i)
		core[i] = len(neighbours[i]) >= params.MinSamples
	}

	labels := make([]int, n)
	for i := range labels {
		labels[i] = Noise
	}

	clusterID := 0
	for i := 0; i < n; i++ {
		if !core[i] || labels[i] != Noise {
			continue
		}
		expandCluster(neighbours, core, labels, i, clusterID)
		clusterID++
	}

	attachBorderPoints(points, metric, neighbours, core, labels)

	return labels
}

// expandCluster labels every core point density-connected to seed.
func expandCluster(neighbours [][]int, core []bool, labels []int, seed, clusterID int) {
	labels[seed] = clusterID

	// Use a queue-based approach for expansion
	queue := append([]int(nil), neighbours[seed]...)
	for j := 0; j < len(queue); j++ {
		idx := queue[j]
		if !core[idx] || labels[idx] != Noise {
			continue
		}
		labels[idx] = clusterID
		queue = append(queue, neighbours[idx]...)
	}
}

// attachBorderPoints assigns each non-core point within reach of a core point
// to the nearest core point's cluster.
func attachBorderPoints(points []Point, metric geo.Metric, neighbours [][]int, core []bool, labels []int) {
	for i := range points {
		if core[i] {
			continue
		}
		best := -1
		bestDist := math.Inf(1)
		for _, nb := range neighbours[i] {
			if !core[nb] {
				continue
			}
			d := metric.Distance(points[i].Coord, points[nb].Coord)
			if best == -1 || d < bestDist || (d == bestDist && pointLess(points[nb], points[best])) {
				best = nb
				bestDist = d
			}
		}
		if best >= 0 {
			labels[i] = labels[best]
		}
	}
}

func pointLess(a, b Point) bool {
	if a.Coord.Lat != b.Coord.Lat {
		return a.Coord.Lat < b.Coord.Lat
	}
	if a.Coord.Lon != b.Coord.Lon {
		return a.Coord.Lon < b.Coord.Lon
	}
	return a.ID < b.ID
}

// Groups converts per-point labels into member index lists, one per cluster,
// ordered by label. Noise points are omitted.
func Groups(labels []int) [][]int {
	maxLabel := Noise
	for _, l := range labels {
		if l > maxLabel {
			maxLabel = l
		}
	}
	if maxLabel == Noise {
		return nil
	}

	groups := make([][]int, maxLabel+1)
	for i, l := range labels {
		if l < 0 {
			continue
		}
		groups[l] = append(groups[l], i)
	}

	// Labels are dense for DBSCAN output; compact anyway for other partitioners.
	out := groups[:0]
	for _, g := range groups {
		if len(g) > 0 {
			out = append(out, g)
		}
	}
	return out
}
