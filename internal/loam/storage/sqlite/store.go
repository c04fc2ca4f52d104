// Package sqlite persists sweep records and per-scan feature statistics so
// extraction quality can be inspected after a run.
package sqlite

import (
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/yoshua-msc-thesis/loam-velodyne/internal/loam"
	"github.com/yoshua-msc-thesis/loam-velodyne/internal/monitoring"
)

//go:embed schema.sql
var schemaSQL string

// FeatureStore records sweeps and scan feature statistics in SQLite.
type FeatureStore struct {
	*sql.DB
}

// NewFeatureStore opens (creating if necessary) the database at path and
// applies the embedded schema.
func NewFeatureStore(path string) (*FeatureStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening feature store: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying feature store schema: %w", err)
	}
	monitoring.Logf("initialized feature store schema at %s", path)
	return &FeatureStore{db}, nil
}

// SweepRecord is one persisted sweep.
type SweepRecord struct {
	SweepID   string
	StartedAt time.Time
	ScanCount int
}

// RecordSweepStart inserts a sweep row the first time a sweep ID is seen.
func (s *FeatureStore) RecordSweepStart(sweepID string, startedAt time.Time) error {
	query := `
		INSERT OR IGNORE INTO sweeps (sweep_id, started_at)
		VALUES (?, ?)
	`
	if _, err := s.Exec(query, sweepID, startedAt.UTC().Format(time.RFC3339Nano)); err != nil {
		return fmt.Errorf("inserting sweep %s: %w", sweepID, err)
	}
	return nil
}

// RecordScan appends one scan's statistics under its sweep.
func (s *FeatureStore) RecordScan(stats loam.ScanStats) error {
	if err := s.RecordSweepStart(stats.SweepID, stats.Stamp); err != nil {
		return err
	}
	query := `
		INSERT INTO scans (
			sweep_id, stamp, raw_points, valid_points,
			corner_sharp, corner_less_sharp, surface_flat,
			less_flat_scan, less_flat_sweep,
			curvature_mean, curvature_stddev, curvature_p50, curvature_p95,
			feature_yield
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.Exec(query,
		stats.SweepID,
		stats.Stamp.UTC().Format(time.RFC3339Nano),
		stats.RawPoints,
		stats.ValidPoints,
		stats.CornerSharpCount,
		stats.CornerLessSharpCount,
		stats.SurfaceFlatCount,
		stats.LessFlatScanCount,
		stats.LessFlatSweepCount,
		stats.CurvatureMean,
		stats.CurvatureStdDev,
		stats.CurvatureP50,
		stats.CurvatureP95,
		stats.FeatureYield,
	)
	if err != nil {
		return fmt.Errorf("inserting scan for sweep %s: %w", stats.SweepID, err)
	}
	return nil
}

// ListSweeps returns all recorded sweeps, newest first, with their scan
// counts.
func (s *FeatureStore) ListSweeps() ([]SweepRecord, error) {
	query := `
		SELECT s.sweep_id, s.started_at, COUNT(c.id)
		FROM sweeps s
		LEFT JOIN scans c ON c.sweep_id = s.sweep_id
		GROUP BY s.sweep_id
		ORDER BY s.started_at DESC
	`
	rows, err := s.Query(query)
	if err != nil {
		return nil, fmt.Errorf("listing sweeps: %w", err)
	}
	defer rows.Close()

	var records []SweepRecord
	for rows.Next() {
		var rec SweepRecord
		var startedAt string
		if err := rows.Scan(&rec.SweepID, &startedAt, &rec.ScanCount); err != nil {
			return nil, fmt.Errorf("scanning sweep row: %w", err)
		}
		if rec.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt); err != nil {
			return nil, fmt.Errorf("parsing sweep start time %q: %w", startedAt, err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// RecentScans returns up to limit scans, newest first.
func (s *FeatureStore) RecentScans(limit int) ([]loam.ScanStats, error) {
	query := `
		SELECT sweep_id, stamp, raw_points, valid_points,
		       corner_sharp, corner_less_sharp, surface_flat,
		       less_flat_scan, less_flat_sweep,
		       curvature_mean, curvature_stddev, curvature_p50, curvature_p95,
		       feature_yield
		FROM scans
		ORDER BY id DESC
		LIMIT ?
	`
	rows, err := s.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("listing recent scans: %w", err)
	}
	defer rows.Close()

	var out []loam.ScanStats
	for rows.Next() {
		var st loam.ScanStats
		var stamp string
		if err := rows.Scan(
			&st.SweepID, &stamp, &st.RawPoints, &st.ValidPoints,
			&st.CornerSharpCount, &st.CornerLessSharpCount, &st.SurfaceFlatCount,
			&st.LessFlatScanCount, &st.LessFlatSweepCount,
			&st.CurvatureMean, &st.CurvatureStdDev, &st.CurvatureP50, &st.CurvatureP95,
			&st.FeatureYield,
		); err != nil {
			return nil, fmt.Errorf("scanning scan row: %w", err)
		}
		if st.Stamp, err = time.Parse(time.RFC3339Nano, stamp); err != nil {
			return nil, fmt.Errorf("parsing scan stamp %q: %w", stamp, err)
		}
		out = append(out, st)
	}
	return out, rows.Err()
}
