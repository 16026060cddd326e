// Package detect runs one snapshot through clustering and risk scoring and
// aggregates the per-cluster analyses into an overall verdict.
package detect

import (
	"errors"
	"fmt"

	"github.com/banshee-data/buscluster/internal/cluster"
	"github.com/banshee-data/buscluster/internal/geo"
	"github.com/banshee-data/buscluster/internal/monitoring"
	"github.com/banshee-data/buscluster/internal/risk"
	"github.com/banshee-data/buscluster/internal/telemetry"
)

var (
	// ErrInvalidInput marks client errors: empty snapshot, missing or out of
	// range fields, duplicate bus IDs.
	ErrInvalidInput = errors.New("invalid input")

	// ErrComputation marks failures while clustering or scoring a valid
	// snapshot. No partial result accompanies it.
	ErrComputation = errors.New("computation failed")
)

// Result is the response for one snapshot. Clusters and ClusterAnalyses are
// parallel. Recommendations is the set union of every cluster's
// recommendations and has no defined order.
type Result struct {
	Clusters         [][]string      `json:"clusters"`
	ClusterAnalyses  []risk.Analysis `json:"cluster_analyses"`
	OverallRiskLevel risk.Level      `json:"overall_risk_level"`
	Recommendations  []string        `json:"recommendations"`

	// Labels holds the cluster index of each input point, or cluster.Noise.
	Labels []int `json:"-"`
}

// Detector wires a Partitioner to a risk Analyzer. It holds no per-request
// state and is safe for concurrent use when its Partitioner is.
type Detector struct {
	partitioner cluster.Partitioner
	analyzer    *risk.Analyzer
}

// New creates a Detector.
func New(p cluster.Partitioner, a *risk.Analyzer) *Detector {
	return &Detector{partitioner: p, analyzer: a}
}

// NewDefault creates a Detector with default DBSCAN parameters and thresholds.
func NewDefault() *Detector {
	return New(cluster.NewDefaultDBSCANClusterer(), risk.NewAnalyzer(risk.DefaultThresholds()))
}

// Detect validates points, clusters them and scores every cluster. Noise
// points are never analysed. When no cluster forms the result has empty
// lists and an overall level of LOW.
func (d *Detector) Detect(points []telemetry.BusPoint) (res *Result, err error) {
	if err := telemetry.Validate(points); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	defer func() {
		if r := recover(); r != nil {
			monitoring.Logf("detect: recovered from panic: %v", r)
			res, err = nil, fmt.Errorf("%w: %v", ErrComputation, r)
		}
	}()

	coords := make([]cluster.Point, len(points))
	for i, p := range points {
		coords[i] = cluster.Point{ID: p.BusID, Coord: geo.Coord{Lat: p.Latitude, Lon: p.Longitude}}
	}
	labels, err := d.partitioner.Partition(coords)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrComputation, err)
	}
	if len(labels) != len(points) {
		return nil, fmt.Errorf("%w: partitioner returned %d labels for %d points",
			ErrComputation, len(labels), len(points))
	}

	groups := cluster.Groups(labels)
	res = &Result{
		Clusters:        make([][]string, 0, len(groups)),
		ClusterAnalyses: make([]risk.Analysis, 0, len(groups)),
		Labels:          compactLabels(labels, groups),
	}

	levels := make([]risk.Level, 0, len(groups))
	union := make(map[string]struct{})
	for _, g := range groups {
		ids := make([]string, len(g))
		members := make([]telemetry.BusPoint, len(g))
		for j, idx := range g {
			ids[j] = points[idx].BusID
			members[j] = points[idx]
		}
		a, err := d.analyzer.Analyze(members)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrComputation, err)
		}
		res.Clusters = append(res.Clusters, ids)
		res.ClusterAnalyses = append(res.ClusterAnalyses, a)
		levels = append(levels, a.RiskLevel)
		for _, rec := range a.Recommendations {
			union[rec] = struct{}{}
		}
	}

	res.OverallRiskLevel = risk.Max(levels...)
	res.Recommendations = make([]string, 0, len(union))
	for rec := range union {
		res.Recommendations = append(res.Recommendations, rec)
	}
	return res, nil
}

// compactLabels renumbers labels to match the order of groups.
func compactLabels(labels []int, groups [][]int) []int {
	out := make([]int, len(labels))
	for i := range out {
		out[i] = cluster.Noise
	}
	for gi, g := range groups {
		for _, idx := range g {
			out[idx] = gi
		}
	}
	return out
}
