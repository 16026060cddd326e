package cli

import (
	"github.com/banshee-data/buscluster/internal/archive"
	"github.com/banshee-data/buscluster/internal/cluster"
	"github.com/banshee-data/buscluster/internal/config"
	"github.com/banshee-data/buscluster/internal/detect"
	"github.com/banshee-data/buscluster/internal/geo"
	"github.com/banshee-data/buscluster/internal/monitoring"
	"github.com/banshee-data/buscluster/internal/pipeline"
	"github.com/banshee-data/buscluster/internal/risk"
)

// newPipeline wires the tuning section into a pipeline. store may be nil.
func newPipeline(cfg *config.Config, metrics *monitoring.Metrics, store *archive.Store) (*pipeline.Pipeline, error) {
	params, err := cfg.Tuning.ClusterParams()
	if err != nil {
		return nil, err
	}
	clusterer := cluster.NewDBSCANClusterer(params)
	logParams(clusterer.GetParams())
	p := &pipeline.Pipeline{
		Detector:   detect.New(clusterer, risk.NewAnalyzer(cfg.Tuning.Thresholds())),
		Metrics:    metrics,
		SpeedUnits: cfg.Tuning.GetSpeedUnits(),
	}
	if store != nil {
		p.Recorder = store
	}
	return p, nil
}

func logParams(params cluster.Params) {
	metric := geo.MetricPlanar
	if params.Metric != nil {
		metric = params.Metric.Name()
	}
	monitoring.Logf("dbscan eps=%g min_samples=%d metric=%s", params.Eps, params.MinSamples, metric)
}

// openArchive opens the configured archive, or returns nil when disabled.
func openArchive(cfg *config.Config) (*archive.Store, error) {
	if !cfg.Archive.Enabled {
		return nil, nil
	}
	return archive.Open(cfg.Archive.Path)
}
