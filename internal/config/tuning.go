// Package config loads scan registration tuning parameters from JSON files.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/yoshua-msc-thesis/loam-velodyne/internal/loam"
)

// TuningConfig mirrors loam.RegistrationConfig with optional fields so a
// partial JSON file overrides only the parameters it names. Durations are
// strings like "100ms".
type TuningConfig struct {
	ScanPeriod                *string  `json:"scan_period,omitempty"`
	NFeatureRegions           *int     `json:"n_feature_regions,omitempty"`
	CurvatureRegion           *int     `json:"curvature_region,omitempty"`
	MaxCornerSharp            *int     `json:"max_corner_sharp,omitempty"`
	MaxCornerLessSharp        *int     `json:"max_corner_less_sharp,omitempty"`
	MaxSurfaceFlat            *int     `json:"max_surface_flat,omitempty"`
	SurfaceCurvatureThreshold *float64 `json:"surface_curvature_threshold,omitempty"`
	LessFlatFilterSize        *float64 `json:"less_flat_filter_size,omitempty"`
	SuppressionRadius         *int     `json:"suppression_radius,omitempty"`
	SuppressionGapSq          *float64 `json:"suppression_gap_sq,omitempty"`
	FrameID                   *string  `json:"frame_id,omitempty"`
}

// LoadTuningConfig reads a TuningConfig from a JSON file. The path must end
// in .json and stay under 1MB; omitted fields keep their defaults, so
// partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg TuningConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return &cfg, nil
}

// Apply overlays the tuning values that are present onto reg, leaving every
// omitted parameter untouched. The merged config is not validated here;
// callers validate when constructing the controller.
func (c *TuningConfig) Apply(reg *loam.RegistrationConfig) error {
	if c.ScanPeriod != nil {
		d, err := time.ParseDuration(*c.ScanPeriod)
		if err != nil {
			return fmt.Errorf("invalid scan_period %q: %w", *c.ScanPeriod, err)
		}
		reg.ScanPeriod = d
	}
	if c.NFeatureRegions != nil {
		reg.NFeatureRegions = *c.NFeatureRegions
	}
	if c.CurvatureRegion != nil {
		reg.CurvatureRegion = *c.CurvatureRegion
	}
	if c.MaxCornerSharp != nil {
		reg.MaxCornerSharp = *c.MaxCornerSharp
	}
	if c.MaxCornerLessSharp != nil {
		reg.MaxCornerLessSharp = *c.MaxCornerLessSharp
	}
	if c.MaxSurfaceFlat != nil {
		reg.MaxSurfaceFlat = *c.MaxSurfaceFlat
	}
	if c.SurfaceCurvatureThreshold != nil {
		reg.SurfaceCurvatureThreshold = *c.SurfaceCurvatureThreshold
	}
	if c.LessFlatFilterSize != nil {
		reg.LessFlatFilterSize = *c.LessFlatFilterSize
	}
	if c.SuppressionRadius != nil {
		reg.SuppressionRadius = *c.SuppressionRadius
	}
	if c.SuppressionGapSq != nil {
		reg.SuppressionGapSq = *c.SuppressionGapSq
	}
	if c.FrameID != nil {
		reg.FrameID = *c.FrameID
	}
	return nil
}
