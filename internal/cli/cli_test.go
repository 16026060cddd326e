package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/buscluster/internal/api"
	"github.com/banshee-data/buscluster/internal/config"
	"github.com/banshee-data/buscluster/internal/detect"
	"github.com/banshee-data/buscluster/internal/risk"
	"github.com/banshee-data/buscluster/internal/telemetry"
	"github.com/banshee-data/buscluster/internal/testutil"
)

func snapshot(t *testing.T) string {
	t.Helper()
	return testutil.RequestBody(t, []telemetry.BusPoint{
		testutil.Bus("bus-1", 40.7128, -74.0060, 65, 10),
		testutil.Bus("bus-2", 40.7138, -74.0050, 65, 10),
		testutil.Bus("bus-3", 41.5000, -73.0000, 30, 5),
	}).String()
}

// writeConfig writes a quiet config, optionally with the archive enabled.
func writeConfig(t *testing.T, archivePath string) string {
	t.Helper()
	body := "log:\n  level: error\n"
	if archivePath != "" {
		body += "archive:\n  enabled: true\n  path: " + archivePath + "\n"
	}
	path := filepath.Join(t.TempDir(), "buscluster.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestDetect_Stdin(t *testing.T) {
	cfg := writeConfig(t, "")
	out, err := execute(t, snapshot(t), "detect", "--config", cfg)
	require.NoError(t, err)

	var res detect.Result
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, [][]string{{"bus-1", "bus-2"}}, res.Clusters)
	assert.Equal(t, risk.High, res.OverallRiskLevel)
}

func TestDetect_File(t *testing.T) {
	cfg := writeConfig(t, "")
	path := filepath.Join(t.TempDir(), "snapshot.json")
	require.NoError(t, os.WriteFile(path, []byte(snapshot(t)), 0o644))

	out, err := execute(t, "", "detect", "--config", cfg, path)
	require.NoError(t, err)
	assert.Contains(t, out, `"overall_risk_level": "HIGH"`)
}

func TestDetect_InvalidInput(t *testing.T) {
	cfg := writeConfig(t, "")
	_, err := execute(t, `{"bus_points": []}`, "detect", "--config", cfg)
	require.Error(t, err)
	assert.True(t, errors.Is(err, detect.ErrInvalidInput))
	assert.Contains(t, err.Error(), "No bus points provided")
}

func TestDetect_Server(t *testing.T) {
	srv := httptest.NewServer(api.NewServer(newTestPipeline(t), nil, nil).Handler(api.AllowAllCORS()))
	defer srv.Close()

	cfg := writeConfig(t, "")
	out, err := execute(t, snapshot(t), "detect", "--config", cfg, "--server", srv.URL)
	require.NoError(t, err)
	assert.Contains(t, out, `"bus-1"`)
}

func TestDetect_ServerNormalisesSpeedOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mps.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: error\ntuning:\n  speed_units: mps\n"), 0o644))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	p, err := newPipeline(cfg, nil, nil)
	require.NoError(t, err)
	srv := httptest.NewServer(api.NewServer(p, nil, nil).Handler(api.AllowAllCORS()))
	defer srv.Close()

	body := testutil.RequestBody(t, []telemetry.BusPoint{
		testutil.Bus("bus-1", 40.7128, -74.0060, 10, 5),
		testutil.Bus("bus-2", 40.7130, -74.0058, 10, 5),
	}).String()

	for _, args := range [][]string{
		{"detect", "--config", path},
		{"detect", "--config", path, "--server", srv.URL},
	} {
		out, err := execute(t, body, args...)
		require.NoError(t, err, args)

		var res detect.Result
		require.NoError(t, json.Unmarshal([]byte(out), &res))
		require.Len(t, res.ClusterAnalyses, 1, args)
		assert.Equal(t, 36.0, res.ClusterAnalyses[0].Statistics.AverageSpeed, args)
		assert.Equal(t, risk.Low, res.OverallRiskLevel, args)
	}
}

func TestPlot(t *testing.T) {
	cfg := writeConfig(t, "")
	png := filepath.Join(t.TempDir(), "clusters.png")

	out, err := execute(t, snapshot(t), "plot", "--config", cfg, "-o", png)
	require.NoError(t, err)
	assert.Contains(t, out, "1 clusters, overall HIGH")

	data, err := os.ReadFile(png)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("\x89PNG")))
}

func TestPlot_RejectsOutputOutsideWorkdir(t *testing.T) {
	cfg := writeConfig(t, "")
	_, err := execute(t, snapshot(t), "plot", "--config", cfg, "-o", "/etc/clusters.png")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "path must be within")
}

func TestArchiveCommands(t *testing.T) {
	db := filepath.Join(t.TempDir(), "runs.db")
	cfg := writeConfig(t, db)

	out, err := execute(t, "", "migrate", "up", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "schema version 2 (dirty=false)")

	_, err = execute(t, snapshot(t), "detect", "--config", cfg)
	require.NoError(t, err)

	out, err = execute(t, "", "runs", "--config", cfg, "--json")
	require.NoError(t, err)
	var runs []struct {
		Transport    string `json:"transport"`
		BusCount     int    `json:"bus_count"`
		ClusterCount int    `json:"cluster_count"`
		OverallRisk  string `json:"overall_risk"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, Transport, runs[0].Transport)
	assert.Equal(t, 3, runs[0].BusCount)
	assert.Equal(t, 1, runs[0].ClusterCount)
	assert.Equal(t, "HIGH", runs[0].OverallRisk)

	out, err = execute(t, "", "runs", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "RUN ID")

	out, err = execute(t, "", "migrate", "down", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "archive schema removed")
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "", "version", "--config", "ignored.toml")
	require.NoError(t, err)
	assert.Contains(t, out, "dev")
}

func TestBadConfigExtension(t *testing.T) {
	_, err := execute(t, snapshot(t), "detect", "--config", "settings.toml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), ".yaml")
}

func TestServe_ShutsDownOnCancel(t *testing.T) {
	cfg, err := config.Default()
	require.NoError(t, err)
	cfg.Server.Listen = "127.0.0.1:0"
	cfg.Server.GRPCListen = "127.0.0.1:0"

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serve(ctx, cfg) }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("serve did not return after cancellation")
	}
}

func TestCORSConfigFromServerSection(t *testing.T) {
	cfg, err := config.Default()
	require.NoError(t, err)
	cfg.Server.CORSOrigins = []string{"https://ops.example"}
	assert.Equal(t, []string{"https://ops.example"}, corsConfig(cfg).AllowedOrigins)
}
