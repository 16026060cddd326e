package config

import (
	"fmt"
	"math"

	"github.com/banshee-data/buscluster/internal/cluster"
	"github.com/banshee-data/buscluster/internal/geo"
	"github.com/banshee-data/buscluster/internal/risk"
	"github.com/banshee-data/buscluster/internal/units"
)

// TuningConfig holds the clustering and scoring parameters. Every field is
// optional; the Get* methods fall back to the production defaults, so partial
// configs are safe.
type TuningConfig struct {
	// Clustering params
	DBSCANEps        *float64 `mapstructure:"dbscan_eps" json:"dbscan_eps,omitempty"`
	DBSCANMinSamples *int     `mapstructure:"dbscan_min_samples" json:"dbscan_min_samples,omitempty"`
	DistanceMetric   *string  `mapstructure:"distance_metric" json:"distance_metric,omitempty"` // planar or haversine

	// Input params
	SpeedUnits *string `mapstructure:"speed_units" json:"speed_units,omitempty"`

	// Risk thresholds, speeds in km/h
	LowSpeedKmh        *float64 `mapstructure:"low_speed_kmh" json:"low_speed_kmh,omitempty"`
	HighSpeedKmh       *float64 `mapstructure:"high_speed_kmh" json:"high_speed_kmh,omitempty"`
	HighPassengerCount *float64 `mapstructure:"high_passenger_count" json:"high_passenger_count,omitempty"`
	LargeClusterSize   *int     `mapstructure:"large_cluster_size" json:"large_cluster_size,omitempty"`
}

// tuningKeys lists the keys under "tuning" that may be overridden from the
// environment.
var tuningKeys = []string{
	"dbscan_eps", "dbscan_min_samples", "distance_metric", "speed_units",
	"low_speed_kmh", "high_speed_kmh", "high_passenger_count", "large_cluster_size",
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	if c.DBSCANEps != nil {
		if e := *c.DBSCANEps; math.IsNaN(e) || math.IsInf(e, 0) || e <= 0 {
			return fmt.Errorf("dbscan_eps must be a positive finite number, got %v", e)
		}
	}
	if c.DBSCANMinSamples != nil && *c.DBSCANMinSamples < 1 {
		return fmt.Errorf("dbscan_min_samples must be at least 1, got %d", *c.DBSCANMinSamples)
	}
	if c.DistanceMetric != nil {
		if _, err := geo.ParseMetric(*c.DistanceMetric); err != nil {
			return err
		}
	}
	if c.SpeedUnits != nil && !units.IsValid(*c.SpeedUnits) {
		return fmt.Errorf("speed_units must be one of %s, got %q", units.GetValidUnitsString(), *c.SpeedUnits)
	}
	if c.GetLowSpeedKmh() < 0 || c.GetHighSpeedKmh() < 0 {
		return fmt.Errorf("speed thresholds must be non-negative")
	}
	if c.GetLowSpeedKmh() > c.GetHighSpeedKmh() {
		return fmt.Errorf("low_speed_kmh (%v) must not exceed high_speed_kmh (%v)",
			c.GetLowSpeedKmh(), c.GetHighSpeedKmh())
	}
	if c.GetHighPassengerCount() < 0 {
		return fmt.Errorf("high_passenger_count must be non-negative, got %v", c.GetHighPassengerCount())
	}
	if c.LargeClusterSize != nil && *c.LargeClusterSize < 1 {
		return fmt.Errorf("large_cluster_size must be at least 1, got %d", *c.LargeClusterSize)
	}
	return nil
}

// GetDBSCANEps returns the dbscan_eps value or the default.
func (c *TuningConfig) GetDBSCANEps() float64 {
	if c.DBSCANEps == nil {
		return cluster.DefaultEps
	}
	return *c.DBSCANEps
}

// GetDBSCANMinSamples returns the dbscan_min_samples value or the default.
func (c *TuningConfig) GetDBSCANMinSamples() int {
	if c.DBSCANMinSamples == nil {
		return cluster.DefaultMinSamples
	}
	return *c.DBSCANMinSamples
}

// GetDistanceMetric returns the distance_metric value or "planar".
func (c *TuningConfig) GetDistanceMetric() string {
	if c.DistanceMetric == nil || *c.DistanceMetric == "" {
		return geo.MetricPlanar
	}
	return *c.DistanceMetric
}

// GetSpeedUnits returns the speed_units value or km/h.
func (c *TuningConfig) GetSpeedUnits() string {
	if c.SpeedUnits == nil || *c.SpeedUnits == "" {
		return units.KMPH
	}
	return *c.SpeedUnits
}

// GetLowSpeedKmh returns the low_speed_kmh value or the default.
func (c *TuningConfig) GetLowSpeedKmh() float64 {
	if c.LowSpeedKmh == nil {
		return risk.DefaultLowSpeedKmh
	}
	return *c.LowSpeedKmh
}

// GetHighSpeedKmh returns the high_speed_kmh value or the default.
func (c *TuningConfig) GetHighSpeedKmh() float64 {
	if c.HighSpeedKmh == nil {
		return risk.DefaultHighSpeedKmh
	}
	return *c.HighSpeedKmh
}

// GetHighPassengerCount returns the high_passenger_count value or the default.
func (c *TuningConfig) GetHighPassengerCount() float64 {
	if c.HighPassengerCount == nil {
		return risk.DefaultHighPassengerCount
	}
	return *c.HighPassengerCount
}

// GetLargeClusterSize returns the large_cluster_size value or the default.
func (c *TuningConfig) GetLargeClusterSize() int {
	if c.LargeClusterSize == nil {
		return risk.DefaultLargeClusterSize
	}
	return *c.LargeClusterSize
}

// ClusterParams builds DBSCAN parameters from the tuning values.
func (c *TuningConfig) ClusterParams() (cluster.Params, error) {
	m, err := geo.ParseMetric(c.GetDistanceMetric())
	if err != nil {
		return cluster.Params{}, err
	}
	p := cluster.Params{Eps: c.GetDBSCANEps(), MinSamples: c.GetDBSCANMinSamples(), Metric: m}
	return p, p.Validate()
}

// Thresholds builds the risk thresholds from the tuning values.
func (c *TuningConfig) Thresholds() risk.Thresholds {
	return risk.Thresholds{
		LowSpeedKmh:        c.GetLowSpeedKmh(),
		HighSpeedKmh:       c.GetHighSpeedKmh(),
		HighPassengerCount: c.GetHighPassengerCount(),
		LargeClusterSize:   c.GetLargeClusterSize(),
	}
}
