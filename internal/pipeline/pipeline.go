// Package pipeline runs one detection request end to end: decode, detect,
// record metrics and, when configured, archive the run. Every transport
// (HTTP, gRPC, CLI) goes through it.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/banshee-data/buscluster/internal/archive"
	"github.com/banshee-data/buscluster/internal/cluster"
	"github.com/banshee-data/buscluster/internal/detect"
	"github.com/banshee-data/buscluster/internal/monitoring"
	"github.com/banshee-data/buscluster/internal/telemetry"
	"github.com/banshee-data/buscluster/internal/timeutil"
)

// EmptySnapshotDetail is the client-facing message for an empty request.
const EmptySnapshotDetail = "No bus points provided"

// Recorder archives completed runs.
type Recorder interface {
	RecordRun(ctx context.Context, run archive.Run) (string, error)
}

// Pipeline is safe for concurrent use.
type Pipeline struct {
	Detector   *detect.Detector
	Metrics    *monitoring.Metrics // optional
	Recorder   Recorder            // optional
	SpeedUnits string
	Clock      timeutil.Clock // optional, defaults to the real clock
}

// Outcome is a successful run.
type Outcome struct {
	Points []telemetry.BusPoint
	Result *detect.Result
	RunID  string // empty unless archived
}

// Run decodes a JSON request from body and detects clusters. Errors wrap
// detect.ErrInvalidInput or detect.ErrComputation.
func (p *Pipeline) Run(ctx context.Context, transport string, body io.Reader) (*Outcome, error) {
	clock := timeutil.OrReal(p.Clock)
	start := clock.Now()
	points, err := telemetry.DecodeRequest(body, p.SpeedUnits)
	if err != nil {
		err = fmt.Errorf("%w: %w", detect.ErrInvalidInput, err)
		p.Metrics.ObserveRequest(transport, monitoring.OutcomeInvalid, clock.Since(start))
		return nil, err
	}
	return p.detect(ctx, transport, points, start)
}

func (p *Pipeline) detect(ctx context.Context, transport string, points []telemetry.BusPoint, start time.Time) (*Outcome, error) {
	res, err := p.Detector.Detect(points)
	elapsed := timeutil.OrReal(p.Clock).Since(start)
	if err != nil {
		outcome := monitoring.OutcomeFailed
		if errors.Is(err, detect.ErrInvalidInput) {
			outcome = monitoring.OutcomeInvalid
		} else {
			monitoring.Logf("detection failed for %d points: %v", len(points), err)
		}
		p.Metrics.ObserveRequest(transport, outcome, elapsed)
		return nil, err
	}

	p.Metrics.ObserveRequest(transport, monitoring.OutcomeOK, elapsed)
	levels := make([]string, len(res.ClusterAnalyses))
	for i, a := range res.ClusterAnalyses {
		levels[i] = a.RiskLevel.String()
	}
	p.Metrics.ObserveResult(len(res.Clusters), countNoise(res.Labels), levels)

	out := &Outcome{Points: points, Result: res}
	if p.Recorder != nil {
		// Archive failures never fail the request.
		id, err := p.Recorder.RecordRun(ctx, archive.Run{Transport: transport, Result: res, Duration: elapsed})
		if err != nil {
			monitoring.Logf("archive: failed to record run: %v", err)
		} else {
			out.RunID = id
		}
	}
	return out, nil
}

func countNoise(labels []int) int {
	n := 0
	for _, l := range labels {
		if l == cluster.Noise {
			n++
		}
	}
	return n
}

// Detail returns the client-facing message for a pipeline error.
func Detail(err error) string {
	if errors.Is(err, telemetry.ErrEmptySnapshot) {
		return EmptySnapshotDetail
	}
	var verr *telemetry.ValidationError
	if errors.As(err, &verr) {
		return strings.Join(verr.Problems, "; ")
	}
	return err.Error()
}
