package loam

import (
	"math"
	"testing"
)

func TestSummarizeCurvature_Distribution(t *testing.T) {
	s := ScanStats{
		CornerSharpCount: 1,
		SurfaceFlatCount: 1,
	}
	s.summarizeCurvature([]float64{4, 1, 3, 2})

	if math.Abs(s.CurvatureMean-2.5) > 1e-12 {
		t.Errorf("mean = %v, want 2.5", s.CurvatureMean)
	}
	if s.CurvatureStdDev <= 0 {
		t.Errorf("stddev = %v, want > 0", s.CurvatureStdDev)
	}
	if s.CurvatureP50 < 1 || s.CurvatureP50 > 4 {
		t.Errorf("p50 = %v outside the sample range", s.CurvatureP50)
	}
	if s.CurvatureP95 < s.CurvatureP50 {
		t.Errorf("p95 %v below p50 %v", s.CurvatureP95, s.CurvatureP50)
	}
	if want := 2.0 / 4.0; s.FeatureYield != want {
		t.Errorf("yield = %v, want %v", s.FeatureYield, want)
	}
}

func TestSummarizeCurvature_SingleValue(t *testing.T) {
	var s ScanStats
	s.summarizeCurvature([]float64{0.7})

	if s.CurvatureMean != 0.7 {
		t.Errorf("mean = %v, want 0.7", s.CurvatureMean)
	}
	if s.CurvatureStdDev != 0 {
		t.Errorf("stddev = %v, want 0 for a single sample", s.CurvatureStdDev)
	}
	if math.IsNaN(s.CurvatureP50) || math.IsNaN(s.CurvatureP95) {
		t.Error("quantiles are NaN for a single sample")
	}
}

func TestSummarizeCurvature_Empty(t *testing.T) {
	var s ScanStats
	s.summarizeCurvature(nil)
	if s.CurvatureMean != 0 || s.FeatureYield != 0 {
		t.Errorf("empty input populated stats: %+v", s)
	}
}
