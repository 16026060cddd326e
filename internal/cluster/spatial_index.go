package cluster

import (
	"math"

	"github.com/banshee-data/buscluster/internal/geo"
)

// neighbourIndex answers eps-neighbourhood queries. Results include the
// queried point itself.
type neighbourIndex interface {
	RegionQuery(idx int) []int
}

func newNeighbourIndex(points []Point, eps float64, metric geo.Metric) neighbourIndex {
	if metric.Planar() {
		si := NewSpatialIndex(eps)
		si.Build(points)
		return &gridQuery{si: si, points: points, eps: eps}
	}
	return &linearScan{points: points, eps: eps, metric: metric}
}

// SpatialIndex provides efficient nearest neighbor queries using a regular grid
// over (latitude, longitude). Cell size should match the DBSCAN eps parameter.
type SpatialIndex struct {
	CellSize float64
	Grid     map[int64][]int // Cell ID → point indices
}

// NewSpatialIndex creates a spatial index with the specified cell size.
func NewSpatialIndex(cellSize float64) *SpatialIndex {
	return &SpatialIndex{
		CellSize: cellSize,
		Grid:     make(map[int64][]int),
	}
}

// Build populates the spatial index from a set of points.
func (si *SpatialIndex) Build(points []Point) {
	si.Grid = make(map[int64][]int, len(points)/EstimatedPointsPerCell+1)

	for i, p := range points {
		cx, cy := si.cellCoords(p.Coord)
		cellID := cellKey(cx, cy)
		si.Grid[cellID] = append(si.Grid[cellID], i)
	}
}

func (si *SpatialIndex) cellCoords(c geo.Coord) (int64, int64) {
	return int64(math.Floor(c.Lat / si.CellSize)), int64(math.Floor(c.Lon / si.CellSize))
}

// cellKey computes a unique cell identifier using Szudzik's pairing function.
// Handles negative coordinates correctly.
func cellKey(cellX, cellY int64) int64 {
	// Map signed integers to non-negative using zigzag encoding
	var a, b int64
	if cellX >= 0 {
		a = 2 * cellX
	} else {
		a = -2*cellX - 1
	}
	if cellY >= 0 {
		b = 2 * cellY
	} else {
		b = -2*cellY - 1
	}

	if a >= b {
		return a*a + a + b
	}
	return a + b*b
}

// RegionQuery returns indices of all points within eps planar distance of
// points[idx], scanning the 3x3 block of cells around it.
func (si *SpatialIndex) RegionQuery(points []Point, idx int, eps float64) []int {
	p := points[idx].Coord
	neighbors := []int{}
	eps2 := eps * eps // Use squared distance to avoid sqrt

	cellX, cellY := si.cellCoords(p)
	for dx := int64(-1); dx <= 1; dx++ {
		for dy := int64(-1); dy <= 1; dy++ {
			for _, candidateIdx := range si.Grid[cellKey(cellX+dx, cellY+dy)] {
				candidate := points[candidateIdx].Coord
				dLat := candidate.Lat - p.Lat
				dLon := candidate.Lon - p.Lon
				if dLat*dLat+dLon*dLon <= eps2 {
					neighbors = append(neighbors, candidateIdx)
				}
			}
		}
	}

	return neighbors
}

type gridQuery struct {
	si     *SpatialIndex
	points []Point
	eps    float64
}

func (g *gridQuery) RegionQuery(idx int) []int {
	return g.si.RegionQuery(g.points, idx, g.eps)
}

// linearScan compares every pair; used for metrics whose unit does not map
// onto a degree grid.
type linearScan struct {
	points []Point
	eps    float64
	metric geo.Metric
}

func (l *linearScan) RegionQuery(idx int) []int {
	p := l.points[idx].Coord
	neighbors := []int{}
	for i := range l.points {
		if l.metric.Distance(p, l.points[i].Coord) <= l.eps {
			neighbors = append(neighbors, i)
		}
	}
	return neighbors
}
