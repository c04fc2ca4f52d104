package loam

import (
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"
)

// ScanStats summarises one processed scan for monitoring and persistence.
// Curvature statistics describe the distribution over every classified
// region slot of the scan.
type ScanStats struct {
	SweepID     string
	Stamp       time.Time
	NewSweep    bool
	RawPoints   int
	ValidPoints int

	CornerSharpCount     int
	CornerLessSharpCount int
	SurfaceFlatCount     int
	LessFlatScanCount    int // less-flat candidates this scan, before downsampling
	LessFlatSweepCount   int // accumulated less-flat size after this scan

	CurvatureMean   float64
	CurvatureStdDev float64
	CurvatureP50    float64
	CurvatureP95    float64

	// FeatureYield is the fraction of classified slots that became corner
	// or flat features.
	FeatureYield float64
}

// StatsSink receives per-scan statistics. Hooks run synchronously on the
// processing path and should be cheap.
type StatsSink func(ScanStats)

// summarizeCurvature fills the curvature distribution fields from the
// collected per-slot curvature values. values is consumed (sorted in place).
func (s *ScanStats) summarizeCurvature(values []float64) {
	if len(values) == 0 {
		return
	}
	if len(values) == 1 {
		s.CurvatureMean = values[0]
	} else {
		s.CurvatureMean, s.CurvatureStdDev = stat.MeanStdDev(values, nil)
	}
	sort.Float64s(values)
	s.CurvatureP50 = stat.Quantile(0.5, stat.Empirical, values, nil)
	s.CurvatureP95 = stat.Quantile(0.95, stat.Empirical, values, nil)

	classified := float64(len(values))
	features := float64(s.CornerSharpCount + s.CornerLessSharpCount + s.SurfaceFlatCount)
	s.FeatureYield = features / classified
}
