package risk

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/buscluster/internal/telemetry"
)

// NormalConditions is the analysis text when no rule fires.
const NormalConditions = "Normal conditions"

const findingSeparator = " | "

// ErrEmptyCluster is returned when asked to analyse a cluster with no members.
var ErrEmptyCluster = errors.New("cluster has no members")

// ErrNonFinite is returned when a statistic overflows to Inf or NaN.
var ErrNonFinite = errors.New("non-finite cluster statistic")

var catalog = map[Level][]string{
	High: {
		"Consider alternative routes",
		"Wait for next bus",
		"Check real-time updates",
	},
	Medium: {
		"Monitor bus status",
		"Consider alternative timing",
		"Check for delays",
	},
	Low: {
		"Normal service",
		"Regular monitoring recommended",
	},
}

// Recommendations returns a copy of the catalog entry for level.
func Recommendations(level Level) []string {
	return append([]string(nil), catalog[level]...)
}

// Statistics is the rounded summary reported for a cluster.
type Statistics struct {
	AverageSpeed      float64 `json:"average_speed"`
	AveragePassengers float64 `json:"average_passengers"`
	ClusterSize       int     `json:"cluster_size"`
}

// Analysis is the read-only assessment of one cluster.
type Analysis struct {
	RiskLevel       Level      `json:"risk_level"`
	Analysis        string     `json:"analysis"`
	Recommendations []string   `json:"recommendations"`
	Statistics      Statistics `json:"statistics"`
}

// Analyzer scores clusters with a fixed rule table.
type Analyzer struct {
	rules []Rule
}

// NewAnalyzer builds an analyzer over the default rules for th.
func NewAnalyzer(th Thresholds) *Analyzer {
	return NewAnalyzerWithRules(DefaultRules(th))
}

// NewAnalyzerWithRules builds an analyzer over a custom rule table.
func NewAnalyzerWithRules(rules []Rule) *Analyzer {
	return &Analyzer{rules: rules}
}

// Summarize computes the unrounded statistics of members.
func Summarize(members []telemetry.BusPoint) (Stats, error) {
	if len(members) == 0 {
		return Stats{}, ErrEmptyCluster
	}
	speeds := make([]float64, len(members))
	people := make([]float64, len(members))
	for i, m := range members {
		speeds[i] = m.Speed
		people[i] = float64(m.PeopleCount)
	}
	s := Stats{
		AverageSpeed:      stat.Mean(speeds, nil),
		AveragePassengers: stat.Mean(people, nil),
		Size:              len(members),
	}
	if !isFinite(s.AverageSpeed) || !isFinite(s.AveragePassengers) {
		return Stats{}, fmt.Errorf("%w: average_speed=%v average_passengers=%v",
			ErrNonFinite, s.AverageSpeed, s.AveragePassengers)
	}
	return s, nil
}

// Analyze scores one cluster. Statistics only consider the given members.
func (a *Analyzer) Analyze(members []telemetry.BusPoint) (Analysis, error) {
	stats, err := Summarize(members)
	if err != nil {
		return Analysis{}, err
	}

	level, findings := Evaluate(a.rules, stats)
	text := NormalConditions
	if len(findings) > 0 {
		text = strings.Join(findings, findingSeparator)
	}

	return Analysis{
		RiskLevel:       level,
		Analysis:        text,
		Recommendations: Recommendations(level),
		Statistics: Statistics{
			AverageSpeed:      round2(stats.AverageSpeed),
			AveragePassengers: round2(stats.AveragePassengers),
			ClusterSize:       stats.Size,
		},
	}, nil
}

// round2 rounds to two decimals based on the exact binary value of v, with
// exact ties going to even.
func round2(v float64) float64 {
	r, err := strconv.ParseFloat(strconv.FormatFloat(v, 'f', 2, 64), 64)
	if err != nil {
		return v
	}
	return r
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
