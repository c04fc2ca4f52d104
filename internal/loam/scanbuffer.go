package loam

import (
	"fmt"
	"math"
	"sort"
)

// FeatureLabel classifies a point by sharpness. The ordinals are ordered so
// that "flat or less-flat" is expressible as label <= SurfaceLessFlat.
type FeatureLabel int8

const (
	// SurfaceFlat marks the flattest surface points of a region.
	SurfaceFlat FeatureLabel = -1
	// SurfaceLessFlat is the default class for points not picked by either
	// classification pass.
	SurfaceLessFlat FeatureLabel = 0
	// CornerLessSharp marks corner points beyond the sharp quota.
	CornerLessSharp FeatureLabel = 1
	// CornerSharp marks the sharpest corner points of a region.
	CornerSharp FeatureLabel = 2
)

// RegionBufferProvider supplies the per-point derived attributes the
// classifier consumes: curvature values, a curvature-ascending index
// permutation per region, mutable neighbour-picked suppression flags and
// per-region feature labels. Flags and labels live for exactly one scan.
type RegionBufferProvider interface {
	// PrepareScan sizes the buffers for cloud and resets the suppression
	// flags. It may pre-suppress unreliable points (occluded surfaces,
	// near-parallel returns).
	PrepareScan(cloud Cloud) error

	// PrepareRegion computes curvature and the sorted index permutation for
	// the region and resets its labels to SurfaceLessFlat.
	PrepareRegion(r Region) error

	// Curvature returns the curvature of the region-relative index.
	Curvature(regionIdx int) float64

	// SortedIndices returns the current region's absolute scan indices in
	// curvature-ascending order. Ties keep scan order (stable sort).
	SortedIndices() []int

	// Picked reports whether the absolute scan index is suppressed.
	Picked(scanIdx int) bool

	// MarkAsPicked suppresses the absolute scan index and a bounded local
	// neighbourhood around it for the remainder of the scan.
	MarkAsPicked(scanIdx int)

	// Label returns the label of the region-relative index.
	Label(regionIdx int) FeatureLabel

	// SetLabel assigns the label of the region-relative index.
	SetLabel(regionIdx int, label FeatureLabel)
}

// ScanBuffers is the default RegionBufferProvider. Buffers are flat arrays
// sized to the current scan and reused across calls, so the hot path does
// no per-point allocation once warmed up.
type ScanBuffers struct {
	curvatureRegion   int
	suppressionRadius int
	suppressionGapSq  float64

	cloud       Cloud
	picked      []bool
	curvature   []float64
	sortIndices []int
	labels      []FeatureLabel
	region      Region
}

// NewScanBuffers creates scan buffers using the window and suppression
// parameters of cfg.
func NewScanBuffers(cfg *RegistrationConfig) *ScanBuffers {
	return &ScanBuffers{
		curvatureRegion:   cfg.CurvatureRegion,
		suppressionRadius: cfg.SuppressionRadius,
		suppressionGapSq:  cfg.SuppressionGapSq,
	}
}

// PrepareScan resets the suppression flags for cloud and pre-suppresses
// points whose neighbourhood makes their curvature untrustworthy: points on
// the near side of an occlusion boundary and isolated returns from surfaces
// nearly parallel to the beam.
func (b *ScanBuffers) PrepareScan(cloud Cloud) error {
	if len(cloud) == 0 {
		return fmt.Errorf("prepare scan: empty cloud")
	}
	b.cloud = cloud
	if cap(b.picked) < len(cloud) {
		b.picked = make([]bool, len(cloud))
	} else {
		b.picked = b.picked[:len(cloud)]
		for i := range b.picked {
			b.picked[i] = false
		}
	}

	cr := b.curvatureRegion
	for i := cr + 1; i < len(cloud)-cr; i++ {
		prev := cloud[i-1]
		point := cloud[i]
		next := cloud[i+1]

		diffNext := DistSq(next, point)
		if diffNext > 0.1 {
			depth1 := point.Norm()
			depth2 := next.Norm()
			if depth1 > depth2 {
				// Next point is closer: the current surface is occluded by
				// the next one. Suppress the window trailing the boundary.
				if weightedBoundaryGap(next, point, depth2/depth1)/depth2 < 0.1 {
					for k := 0; k <= cr && i-k >= 0; k++ {
						b.picked[i-k] = true
					}
				}
			} else {
				if weightedBoundaryGap(point, next, depth1/depth2)/depth1 < 0.1 {
					for k := 1; k <= cr+1 && i+k < len(cloud); k++ {
						b.picked[i+k] = true
					}
				}
			}
		}

		diffPrev := DistSq(point, prev)
		dist := point.SquaredNorm()
		if diffNext > 0.0002*dist && diffPrev > 0.0002*dist {
			// Jumps on both sides: beam nearly parallel to the surface.
			b.picked[i] = true
		}
	}
	return nil
}

// weightedBoundaryGap measures how far a is from b after scaling b towards
// the sensor by w, which collapses pure range differences and leaves the
// angular gap across an occlusion boundary.
func weightedBoundaryGap(a, b Point, w float64) float64 {
	dx := a.X - b.X*w
	dy := a.Y - b.Y*w
	dz := a.Z - b.Z*w
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// PrepareRegion computes curvature for every point of the region and the
// curvature-ascending permutation of its absolute indices, and resets the
// region labels to SurfaceLessFlat.
func (b *ScanBuffers) PrepareRegion(r Region) error {
	if r.Start < b.curvatureRegion || r.End > len(b.cloud)-b.curvatureRegion {
		return fmt.Errorf("prepare region: [%d,%d) leaves no full curvature window in cloud of %d",
			r.Start, r.End, len(b.cloud))
	}
	n := r.Len()
	if cap(b.curvature) < n {
		b.curvature = make([]float64, n)
		b.sortIndices = make([]int, n)
		b.labels = make([]FeatureLabel, n)
	} else {
		b.curvature = b.curvature[:n]
		b.sortIndices = b.sortIndices[:n]
		b.labels = b.labels[:n]
	}
	b.region = r

	weight := float64(-2 * b.curvatureRegion)
	for i := r.Start; i < r.End; i++ {
		dx := weight * b.cloud[i].X
		dy := weight * b.cloud[i].Y
		dz := weight * b.cloud[i].Z
		for j := 1; j <= b.curvatureRegion; j++ {
			dx += b.cloud[i+j].X + b.cloud[i-j].X
			dy += b.cloud[i+j].Y + b.cloud[i-j].Y
			dz += b.cloud[i+j].Z + b.cloud[i-j].Z
		}
		b.curvature[i-r.Start] = dx*dx + dy*dy + dz*dz
		b.sortIndices[i-r.Start] = i
		b.labels[i-r.Start] = SurfaceLessFlat
	}

	// Stable so curvature ties keep first-seen scan order.
	sort.SliceStable(b.sortIndices, func(x, y int) bool {
		return b.curvature[b.sortIndices[x]-r.Start] < b.curvature[b.sortIndices[y]-r.Start]
	})
	return nil
}

// Curvature returns the curvature of the region-relative index.
func (b *ScanBuffers) Curvature(regionIdx int) float64 {
	return b.curvature[regionIdx]
}

// SortedIndices returns the region's absolute indices in curvature-ascending
// order. The slice is owned by the provider and valid until the next
// PrepareRegion call.
func (b *ScanBuffers) SortedIndices() []int {
	return b.sortIndices
}

// Picked reports whether the absolute scan index is suppressed.
func (b *ScanBuffers) Picked(scanIdx int) bool {
	return b.picked[scanIdx]
}

// MarkAsPicked suppresses scanIdx and up to suppressionRadius neighbours on
// each side. The walk stops early at depth discontinuities so suppression
// never leaks across an occlusion boundary.
func (b *ScanBuffers) MarkAsPicked(scanIdx int) {
	b.picked[scanIdx] = true
	for k := 1; k <= b.suppressionRadius; k++ {
		i := scanIdx + k
		if i >= len(b.cloud) || DistSq(b.cloud[i], b.cloud[i-1]) > b.suppressionGapSq {
			break
		}
		b.picked[i] = true
	}
	for k := 1; k <= b.suppressionRadius; k++ {
		i := scanIdx - k
		if i < 0 || DistSq(b.cloud[i], b.cloud[i+1]) > b.suppressionGapSq {
			break
		}
		b.picked[i] = true
	}
}

// Label returns the label of the region-relative index.
func (b *ScanBuffers) Label(regionIdx int) FeatureLabel {
	return b.labels[regionIdx]
}

// SetLabel assigns the label of the region-relative index.
func (b *ScanBuffers) SetLabel(regionIdx int, label FeatureLabel) {
	b.labels[regionIdx] = label
}
