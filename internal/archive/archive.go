// Package archive keeps an optional, append-only log of detection runs in
// SQLite. Detection never reads it back; it exists for operators, who query
// it through the CLI or the tailsql debug page.
package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/buscluster/internal/cluster"
	"github.com/banshee-data/buscluster/internal/detect"
	"github.com/banshee-data/buscluster/internal/timeutil"
)

// Store wraps the archive database.
type Store struct {
	*sql.DB
	path  string
	clock timeutil.Clock
}

// Open opens (creating if needed) the archive at path and applies pending
// migrations.
func Open(path string) (*Store, error) {
	dsn := "file:" + path +
		"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open archive %s: %w", path, err)
	}
	s := &Store{DB: db, path: path, clock: timeutil.RealClock{}}
	if err := s.MigrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Path returns the file the store was opened from.
func (s *Store) Path() string { return s.path }

// SetClock replaces the clock used to stamp runs.
func (s *Store) SetClock(c timeutil.Clock) { s.clock = timeutil.OrReal(c) }

// Run is one detection run to archive.
type Run struct {
	Transport string
	Result    *detect.Result
	Duration  time.Duration
}

// RunSummary is one row of the runs table.
type RunSummary struct {
	RunID        string    `json:"run_id"`
	CreatedAt    time.Time `json:"created_at"`
	Transport    string    `json:"transport"`
	BusCount     int       `json:"bus_count"`
	ClusterCount int       `json:"cluster_count"`
	NoiseCount   int       `json:"noise_count"`
	OverallRisk  string    `json:"overall_risk"`
	DurationMs   float64   `json:"duration_ms"`
}

// RecordRun stores a run and its clusters in one transaction and returns the
// generated run ID.
func (s *Store) RecordRun(ctx context.Context, run Run) (string, error) {
	if run.Result == nil {
		return "", fmt.Errorf("record run: nil result")
	}
	res := run.Result
	noise := 0
	for _, l := range res.Labels {
		if l == cluster.Noise {
			noise++
		}
	}

	runID := uuid.NewString()
	tx, err := s.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (run_id, created_at, transport, bus_count, cluster_count, noise_count, overall_risk, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, s.clock.Now().UTC(), run.Transport, len(res.Labels), len(res.Clusters), noise,
		res.OverallRiskLevel.String(), float64(run.Duration.Microseconds())/1000,
	)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO run_clusters (run_id, cluster_index, risk_level, analysis, average_speed, average_passengers, cluster_size, bus_ids)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("prepare cluster insert: %w", err)
	}
	defer stmt.Close()

	for i, a := range res.ClusterAnalyses {
		ids, err := json.Marshal(res.Clusters[i])
		if err != nil {
			return "", fmt.Errorf("encode bus ids: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, runID, i, a.RiskLevel.String(), a.Analysis,
			a.Statistics.AverageSpeed, a.Statistics.AveragePassengers, a.Statistics.ClusterSize, string(ids)); err != nil {
			return "", fmt.Errorf("insert cluster %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return runID, nil
}

// RecentRuns returns up to limit runs, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.QueryContext(ctx, `
		SELECT run_id, created_at, transport, bus_count, cluster_count, noise_count, overall_risk, duration_ms
		FROM runs ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var r RunSummary
		if err := rows.Scan(&r.RunID, &r.CreatedAt, &r.Transport, &r.BusCount, &r.ClusterCount,
			&r.NoiseCount, &r.OverallRisk, &r.DurationMs); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ClusterRecord is one archived cluster.
type ClusterRecord struct {
	Index             int      `json:"cluster_index"`
	RiskLevel         string   `json:"risk_level"`
	Analysis          string   `json:"analysis"`
	AverageSpeed      float64  `json:"average_speed"`
	AveragePassengers float64  `json:"average_passengers"`
	ClusterSize       int      `json:"cluster_size"`
	BusIDs            []string `json:"bus_ids"`
}

// RunClusters returns the clusters archived for runID in index order.
func (s *Store) RunClusters(ctx context.Context, runID string) ([]ClusterRecord, error) {
	rows, err := s.QueryContext(ctx, `
		SELECT cluster_index, risk_level, analysis, average_speed, average_passengers, cluster_size, bus_ids
		FROM run_clusters WHERE run_id = ? ORDER BY cluster_index`, runID)
	if err != nil {
		return nil, fmt.Errorf("query clusters: %w", err)
	}
	defer rows.Close()

	var out []ClusterRecord
	for rows.Next() {
		var (
			c   ClusterRecord
			ids string
		)
		if err := rows.Scan(&c.Index, &c.RiskLevel, &c.Analysis, &c.AverageSpeed,
			&c.AveragePassengers, &c.ClusterSize, &ids); err != nil {
			return nil, fmt.Errorf("scan cluster: %w", err)
		}
		if err := json.Unmarshal([]byte(ids), &c.BusIDs); err != nil {
			return nil, fmt.Errorf("decode bus ids: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
