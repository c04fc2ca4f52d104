package loam

import (
	"fmt"
	"time"
)

// RegistrationConfig carries the tunable parameters of scan registration.
// Zero values are replaced by defaults in NewRegistrationConfig; use the
// With* setters to adjust individual knobs before handing the config to
// NewScanRegistration.
type RegistrationConfig struct {
	// ScanPeriod is the nominal duration of one scan. It gates sweep
	// boundary detection: a rotation-direction sign flip only starts a new
	// sweep once this much time has elapsed since the last sweep start.
	ScanPeriod time.Duration

	// NFeatureRegions is the number of equally sized regions each scan is
	// split into for spatially fair feature selection.
	NFeatureRegions int

	// CurvatureRegion is the number of neighbours on each side of a point
	// used by the curvature window. It also fixes the margin of points at
	// each end of the scan that are never classified.
	CurvatureRegion int

	// MaxCornerSharp is the per-region quota of sharp corner points.
	MaxCornerSharp int

	// MaxCornerLessSharp is the per-region quota of corner points in total
	// (sharp plus less sharp).
	MaxCornerLessSharp int

	// MaxSurfaceFlat is the per-region quota of flat surface points.
	MaxSurfaceFlat int

	// SurfaceCurvatureThreshold separates corner candidates (above) from
	// surface candidates (below). Comparisons are strict, no epsilon.
	SurfaceCurvatureThreshold float64

	// LessFlatFilterSize is the voxel leaf size (metres) applied to the
	// less-flat cloud before it is accumulated across the sweep.
	LessFlatFilterSize float64

	// SuppressionRadius is how many scan-order neighbours on each side of a
	// picked feature are marked ineligible for further selection.
	SuppressionRadius int

	// SuppressionGapSq stops neighbour suppression at depth discontinuities:
	// the walk ends where consecutive points are further apart than this
	// squared distance.
	SuppressionGapSq float64

	// FrameID is attached to published feature clouds.
	FrameID string
}

// NewRegistrationConfig returns a RegistrationConfig populated with the
// standard continuous-rotation 2D scanner defaults.
func NewRegistrationConfig() *RegistrationConfig {
	return &RegistrationConfig{
		ScanPeriod:                100 * time.Millisecond,
		NFeatureRegions:           4,
		CurvatureRegion:           5,
		MaxCornerSharp:            2,
		MaxCornerLessSharp:        20,
		MaxSurfaceFlat:            4,
		SurfaceCurvatureThreshold: 0.1,
		LessFlatFilterSize:        0.2,
		SuppressionRadius:         5,
		SuppressionGapSq:          0.05,
		FrameID:                   "laser",
	}
}

// Validate checks that every parameter is in an acceptable range.
func (c *RegistrationConfig) Validate() error {
	if c.ScanPeriod <= 0 {
		return fmt.Errorf("ScanPeriod must be positive, got %v", c.ScanPeriod)
	}
	if c.NFeatureRegions < 1 {
		return fmt.Errorf("NFeatureRegions must be at least 1, got %d", c.NFeatureRegions)
	}
	if c.CurvatureRegion < 1 {
		return fmt.Errorf("CurvatureRegion must be at least 1, got %d", c.CurvatureRegion)
	}
	if c.MaxCornerSharp < 0 {
		return fmt.Errorf("MaxCornerSharp must be non-negative, got %d", c.MaxCornerSharp)
	}
	if c.MaxCornerLessSharp < c.MaxCornerSharp {
		return fmt.Errorf("MaxCornerLessSharp (%d) must be at least MaxCornerSharp (%d)",
			c.MaxCornerLessSharp, c.MaxCornerSharp)
	}
	if c.MaxSurfaceFlat < 0 {
		return fmt.Errorf("MaxSurfaceFlat must be non-negative, got %d", c.MaxSurfaceFlat)
	}
	if c.SurfaceCurvatureThreshold <= 0 {
		return fmt.Errorf("SurfaceCurvatureThreshold must be positive, got %f", c.SurfaceCurvatureThreshold)
	}
	if c.LessFlatFilterSize < 0 {
		return fmt.Errorf("LessFlatFilterSize must be non-negative, got %f", c.LessFlatFilterSize)
	}
	if c.SuppressionRadius < 0 {
		return fmt.Errorf("SuppressionRadius must be non-negative, got %d", c.SuppressionRadius)
	}
	if c.SuppressionGapSq <= 0 {
		return fmt.Errorf("SuppressionGapSq must be positive, got %f", c.SuppressionGapSq)
	}
	if c.FrameID == "" {
		return fmt.Errorf("FrameID must not be empty")
	}
	return nil
}

// minClassifiableSize is the smallest valid-point count that still leaves
// every region at least one classifiable point after the edge margins.
func (c *RegistrationConfig) minClassifiableSize() int {
	return 2*c.CurvatureRegion + c.NFeatureRegions
}

// WithScanPeriod sets the nominal scan duration.
func (c *RegistrationConfig) WithScanPeriod(d time.Duration) *RegistrationConfig {
	c.ScanPeriod = d
	return c
}

// WithFeatureRegions sets the number of feature regions per scan.
func (c *RegistrationConfig) WithFeatureRegions(n int) *RegistrationConfig {
	c.NFeatureRegions = n
	return c
}

// WithCurvatureRegion sets the one-sided curvature window width.
func (c *RegistrationConfig) WithCurvatureRegion(n int) *RegistrationConfig {
	c.CurvatureRegion = n
	return c
}

// WithCornerQuotas sets the per-region sharp and total corner quotas.
func (c *RegistrationConfig) WithCornerQuotas(sharp, lessSharp int) *RegistrationConfig {
	c.MaxCornerSharp = sharp
	c.MaxCornerLessSharp = lessSharp
	return c
}

// WithSurfaceQuota sets the per-region flat surface quota.
func (c *RegistrationConfig) WithSurfaceQuota(n int) *RegistrationConfig {
	c.MaxSurfaceFlat = n
	return c
}

// WithCurvatureThreshold sets the corner/surface curvature threshold.
func (c *RegistrationConfig) WithCurvatureThreshold(t float64) *RegistrationConfig {
	c.SurfaceCurvatureThreshold = t
	return c
}

// WithLessFlatFilterSize sets the less-flat voxel leaf size in metres.
func (c *RegistrationConfig) WithLessFlatFilterSize(s float64) *RegistrationConfig {
	c.LessFlatFilterSize = s
	return c
}

// WithSuppression sets the neighbour suppression radius and gap threshold.
func (c *RegistrationConfig) WithSuppression(radius int, gapSq float64) *RegistrationConfig {
	c.SuppressionRadius = radius
	c.SuppressionGapSq = gapSq
	return c
}

// WithFrameID sets the frame identifier attached to published clouds.
func (c *RegistrationConfig) WithFrameID(id string) *RegistrationConfig {
	c.FrameID = id
	return c
}
