package loam

// Region is a half-open index interval [Start, End) over the scan buffer.
type Region struct {
	Start int
	End   int
}

// Len returns the number of points in the region.
func (r Region) Len() int {
	return r.End - r.Start
}

// regionMargin is the number of points excluded at each end of the valid
// range so every classified point has a full curvature window. It matches
// the default CurvatureRegion; the partition itself is fixed to this margin
// so region boundaries stay comparable across configurations.
const regionMargin = 5

// PartitionRegions splits the classifiable part of a scan of validCount
// points into regionCount contiguous, non-overlapping regions. The regions
// exactly cover [regionMargin, validCount-regionMargin) with shared
// boundaries at the integer k/regionCount fractions of the interior span.
// Pure function of its arguments; the same inputs always yield the same
// intervals. Zero-length regions are possible for tiny scans and are the
// caller's responsibility to skip.
func PartitionRegions(validCount, regionCount int) []Region {
	if regionCount < 1 {
		return nil
	}
	interior := validCount - 2*regionMargin
	if interior < 0 {
		interior = 0
	}
	regions := make([]Region, regionCount)
	start := regionMargin
	for k := 0; k < regionCount; k++ {
		end := regionMargin + interior*(k+1)/regionCount
		regions[k] = Region{Start: start, End: end}
		start = end
	}
	return regions
}
