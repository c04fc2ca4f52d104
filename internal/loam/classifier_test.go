package loam

import (
	"math"
	"testing"
)

// zigzagPoints builds a wall whose height zigzags, producing a sharp kink
// at every index in corners. Spacing and range are chosen so consecutive
// points stay well inside the pre-suppression thresholds.
func zigzagPoints(n int, corners ...int) Cloud {
	isCorner := make(map[int]bool, len(corners))
	for _, m := range corners {
		isCorner[m] = true
	}
	const h = 0.05
	cloud := make(Cloud, n)
	slope, z := 0.5, 0.0
	for i := 0; i < n; i++ {
		cloud[i] = Point{X: float64(i) * h, Y: 5, Z: z}
		if isCorner[i] {
			slope = -slope
		}
		z += slope * h
	}
	return cloud
}

func classify(t *testing.T, cfg *RegistrationConfig, cloud Cloud, r Region) (*ScanFeatures, Cloud) {
	t.Helper()
	buf := NewScanBuffers(cfg)
	if err := buf.PrepareScan(cloud); err != nil {
		t.Fatalf("PrepareScan: %v", err)
	}
	if err := buf.PrepareRegion(r); err != nil {
		t.Fatalf("PrepareRegion: %v", err)
	}
	out := &ScanFeatures{}
	var lessFlat Cloud
	classifyRegion(buf, cloud, r, cfg, out, &lessFlat)
	return out, lessFlat
}

func isCornerPoint(p Point, cloud Cloud, corners []int) bool {
	for _, m := range corners {
		if math.Abs(p.X-cloud[m].X) < 1e-9 {
			return true
		}
	}
	return false
}

func TestClassifyRegion_CornerQuotasAndSuppression(t *testing.T) {
	cfg := NewRegistrationConfig()
	corners := []int{15, 30, 45, 60}
	cloud := zigzagPoints(80, corners...)
	r := Region{Start: 5, End: 75}

	out, lessFlat := classify(t, cfg, cloud, r)

	// Four isolated kinks, sharp quota two: two sharp, two less sharp.
	if len(out.CornerSharp) != cfg.MaxCornerSharp {
		t.Errorf("CornerSharp = %d points, want %d", len(out.CornerSharp), cfg.MaxCornerSharp)
	}
	if len(out.CornerLessSharp) != 2 {
		t.Errorf("CornerLessSharp = %d points, want 2", len(out.CornerLessSharp))
	}
	for _, p := range append(append(Cloud{}, out.CornerSharp...), out.CornerLessSharp...) {
		if !isCornerPoint(p, cloud, corners) {
			t.Errorf("corner point %+v is not at a kink", p)
		}
	}

	if len(out.SurfaceFlat) != cfg.MaxSurfaceFlat {
		t.Errorf("SurfaceFlat = %d points, want %d", len(out.SurfaceFlat), cfg.MaxSurfaceFlat)
	}

	// Everything except the four corner-labelled points stays less-flat,
	// flat picks included.
	if want := r.Len() - 4; len(lessFlat) != want {
		t.Errorf("lessFlat = %d points, want %d", len(lessFlat), want)
	}
	for i := 1; i < len(lessFlat); i++ {
		if lessFlat[i].X <= lessFlat[i-1].X {
			t.Fatal("lessFlat candidates not in scan order")
		}
	}
}

func TestClassifyRegion_TotalCornerQuotaStopsPass(t *testing.T) {
	cfg := NewRegistrationConfig().WithCornerQuotas(1, 2)
	corners := []int{15, 30, 45, 60}
	cloud := zigzagPoints(80, corners...)

	out, lessFlat := classify(t, cfg, cloud, Region{Start: 5, End: 75})

	if len(out.CornerSharp) != 1 || len(out.CornerLessSharp) != 1 {
		t.Errorf("got %d sharp / %d less sharp, want 1 / 1",
			len(out.CornerSharp), len(out.CornerLessSharp))
	}
	// The two unpicked kinks keep their less-flat label.
	if want := 70 - 2; len(lessFlat) != want {
		t.Errorf("lessFlat = %d points, want %d", len(lessFlat), want)
	}
}

func TestClassifyRegion_AllFlatScanYieldsNoCorners(t *testing.T) {
	cfg := NewRegistrationConfig()
	cloud := linePoints(20, 5, 0.01)
	regions := PartitionRegions(len(cloud), 1)

	out, lessFlat := classify(t, cfg, cloud, regions[0])

	if len(out.CornerSharp) != 0 || len(out.CornerLessSharp) != 0 {
		t.Errorf("flat scan produced corners: %d sharp, %d less sharp",
			len(out.CornerSharp), len(out.CornerLessSharp))
	}
	// Suppression around each flat pick may exhaust a small region before
	// the quota fills, but never exceeds it.
	if n := len(out.SurfaceFlat); n < 1 || n > cfg.MaxSurfaceFlat {
		t.Errorf("SurfaceFlat = %d points, want between 1 and %d", n, cfg.MaxSurfaceFlat)
	}
	if len(lessFlat) != regions[0].Len() {
		t.Errorf("lessFlat = %d points, want the whole region (%d)", len(lessFlat), regions[0].Len())
	}
}

func TestClassifyRegion_ClassesAreDisjoint(t *testing.T) {
	cfg := NewRegistrationConfig()
	cloud := zigzagPoints(80, 15, 30, 45, 60)

	out, _ := classify(t, cfg, cloud, Region{Start: 5, End: 75})

	seen := make(map[Point]string)
	record := func(class string, pts Cloud) {
		for _, p := range pts {
			if prev, ok := seen[p]; ok {
				t.Errorf("point %+v in both %s and %s", p, prev, class)
			}
			seen[p] = class
		}
	}
	record("corner_sharp", out.CornerSharp)
	record("corner_less_sharp", out.CornerLessSharp)
	record("surface_flat", out.SurfaceFlat)
}

func TestClassifyRegion_Deterministic(t *testing.T) {
	cfg := NewRegistrationConfig()
	cloud := zigzagPoints(80, 15, 30, 45, 60)
	r := Region{Start: 5, End: 75}

	first, firstLess := classify(t, cfg, cloud, r)
	second, secondLess := classify(t, cfg, cloud, r)

	same := func(a, b Cloud) bool {
		if len(a) != len(b) {
			return false
		}
		for i := range a {
			if a[i] != b[i] {
				return false
			}
		}
		return true
	}
	if !same(first.CornerSharp, second.CornerSharp) ||
		!same(first.CornerLessSharp, second.CornerLessSharp) ||
		!same(first.SurfaceFlat, second.SurfaceFlat) ||
		!same(firstLess, secondLess) {
		t.Error("classification differs between identical runs")
	}
}
