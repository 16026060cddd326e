package cli

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/banshee-data/buscluster/internal/config"
	"github.com/banshee-data/buscluster/internal/monitoring"
	"github.com/banshee-data/buscluster/internal/pipeline"
)

func init() {
	monitoring.SetLogger(nil)
}

func newTestPipeline(t *testing.T) *pipeline.Pipeline {
	t.Helper()
	cfg, err := config.Default()
	require.NoError(t, err)
	p, err := newPipeline(cfg, nil, nil)
	require.NoError(t, err)
	return p
}
