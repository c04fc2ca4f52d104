package loam

import "time"

// ScanFeatures is the output of one processed scan: the filtered scan
// buffer plus the four feature classes. CornerSharp, CornerLessSharp and
// SurfaceFlat are rebuilt every scan; SurfaceLessFlat is the downsampled
// accumulation over the whole sweep so far.
type ScanFeatures struct {
	SweepID string
	FrameID string
	Stamp   time.Time

	FullCloud       Cloud
	CornerSharp     Cloud
	CornerLessSharp Cloud
	SurfaceFlat     Cloud
	SurfaceLessFlat Cloud
}

// FeaturePublisher receives the feature clouds of one scan. Delivery is
// fire-and-forget from the controller's perspective; a returned error fails
// the scan's processing.
type FeaturePublisher interface {
	Publish(features *ScanFeatures) error
}

// classifyRegion runs the corner and surface passes over one region and
// collects its less-flat candidates. The provider must have been prepared
// for the region. Corner and flat picks are appended to out; everything
// whose label stays at or below SurfaceLessFlat is appended, in scan order,
// to lessFlat.
func classifyRegion(buf RegionBufferProvider, cloud Cloud, region Region, cfg *RegistrationConfig, out *ScanFeatures, lessFlat *Cloud) {
	sorted := buf.SortedIndices()
	regionSize := region.Len()

	// Corner pass: walk the sorted order from the highest-curvature end.
	cornerPicked := 0
	for j := regionSize - 1; j >= 0 && cornerPicked < cfg.MaxCornerLessSharp; j-- {
		scanIdx := sorted[j]
		regionIdx := scanIdx - region.Start

		if buf.Picked(scanIdx) || buf.Curvature(regionIdx) <= cfg.SurfaceCurvatureThreshold {
			continue
		}

		cornerPicked++
		if cornerPicked <= cfg.MaxCornerSharp {
			buf.SetLabel(regionIdx, CornerSharp)
			out.CornerSharp = append(out.CornerSharp, cloud[scanIdx])
		} else if cornerPicked <= cfg.MaxCornerSharp*10 {
			buf.SetLabel(regionIdx, CornerLessSharp)
			out.CornerLessSharp = append(out.CornerLessSharp, cloud[scanIdx])
		} else {
			break
		}

		buf.MarkAsPicked(scanIdx)
	}

	// Surface pass: walk from the lowest-curvature end.
	surfacePicked := 0
	for j := 0; j < regionSize && surfacePicked < cfg.MaxSurfaceFlat; j++ {
		scanIdx := sorted[j]
		regionIdx := scanIdx - region.Start

		if buf.Picked(scanIdx) || buf.Curvature(regionIdx) >= cfg.SurfaceCurvatureThreshold {
			continue
		}

		surfacePicked++
		buf.SetLabel(regionIdx, SurfaceFlat)
		out.SurfaceFlat = append(out.SurfaceFlat, cloud[scanIdx])

		buf.MarkAsPicked(scanIdx)
	}

	// Everything still flat-or-flatter joins the less-flat candidates.
	// SurfaceFlat points are included: their ordinal sits below the
	// less-flat sentinel.
	for j := 0; j < regionSize; j++ {
		if buf.Label(j) <= SurfaceLessFlat {
			*lessFlat = append(*lessFlat, cloud[region.Start+j])
		}
	}
}
