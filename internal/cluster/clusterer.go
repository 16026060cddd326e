package cluster

import "fmt"

// Partitioner abstracts the clustering implementation. Partition returns one
// label per input point: labels >= 0 identify clusters, Noise marks points in
// no cluster. Only the partition is contractual; label values may differ
// between implementations or runs.
type Partitioner interface {
	Partition(points []Point) ([]int, error)
}

// DBSCANClusterer implements Partitioner using the DBSCAN algorithm. Its
// parameters are fixed at construction.
type DBSCANClusterer struct {
	params Params
}

// NewDBSCANClusterer creates a new DBSCAN clusterer with the specified parameters.
func NewDBSCANClusterer(params Params) *DBSCANClusterer {
	return &DBSCANClusterer{params: params}
}

// NewDefaultDBSCANClusterer creates a DBSCAN clusterer with default parameters.
func NewDefaultDBSCANClusterer() *DBSCANClusterer {
	return NewDBSCANClusterer(DefaultParams())
}

// Partition runs DBSCAN over points.
func (c *DBSCANClusterer) Partition(points []Point) ([]int, error) {
	if err := c.params.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}
	return DBSCAN(points, c.params), nil
}

// GetParams returns the current clustering parameters.
func (c *DBSCANClusterer) GetParams() Params {
	return c.params
}

// Verify at compile time that *DBSCANClusterer implements Partitioner.
var _ Partitioner = (*DBSCANClusterer)(nil)
