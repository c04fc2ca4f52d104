package loam

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/yoshua-msc-thesis/loam-velodyne/internal/monitoring"
)

// degenerateNormSq is the squared-range floor below which a return is
// treated as a zero/degenerate measurement and dropped.
const degenerateNormSq = 1e-4

// sweepState is the cross-scan state of the rotation-direction state
// machine. It is the only state ScanRegistration carries between calls,
// and it only changes on a declared sweep boundary.
type sweepState struct {
	rotDir     float64 // +1 or -1, sign of the expected bearing delta
	sweepStart time.Time
	sweepID    string
	lessFlat   Cloud // downsampled less-flat accumulation for this sweep
}

// boundary decides whether the scan at stamp with the observed bearing
// angle starts a new sweep: the bearing sign must disagree with the current
// rotation direction and at least scanPeriod must have elapsed since the
// sweep started. Both guards together keep noisy sign flips near the
// reversal point from fragmenting sweeps.
func (s *sweepState) boundary(laserAngle float64, stamp time.Time, scanPeriod time.Duration) bool {
	return laserAngle*s.rotDir < 0 && stamp.Sub(s.sweepStart) > scanPeriod
}

// reset flips the rotation direction and clears all per-sweep state.
func (s *sweepState) reset(stamp time.Time) {
	s.rotDir = -s.rotDir
	s.sweepStart = stamp
	s.sweepID = uuid.NewString()
	s.lessFlat = nil
}

// ScanRegistration is the sweep and ingest controller: it consumes one raw
// point batch per scan, detects sweep boundaries, filters and undistorts
// points, drives region partitioning and classification, accumulates the
// less-flat cloud and publishes the results.
//
// A ScanRegistration is single-threaded: each batch is processed to
// completion before the next is accepted, and batches must be delivered in
// arrival order.
type ScanRegistration struct {
	cfg        *RegistrationConfig
	provider   RegionBufferProvider
	publisher  FeaturePublisher
	downsample DownsampleFilter
	motion     MotionCompensator // nil when no undistortion source exists
	statsSink  StatsSink         // nil when nobody listens

	state   sweepState
	scanBuf Cloud // rebuilt from scratch every call, never aliased across calls

	curvatureScratch []float64
}

// RegistrationOption customises a ScanRegistration at construction.
type RegistrationOption func(*ScanRegistration)

// WithMotionCompensator installs the undistortion capability.
func WithMotionCompensator(m MotionCompensator) RegistrationOption {
	return func(r *ScanRegistration) { r.motion = m }
}

// WithStatsSink installs a per-scan statistics hook.
func WithStatsSink(sink StatsSink) RegistrationOption {
	return func(r *ScanRegistration) { r.statsSink = sink }
}

// WithProvider replaces the default region buffer provider.
func WithProvider(p RegionBufferProvider) RegistrationOption {
	return func(r *ScanRegistration) { r.provider = p }
}

// WithDownsampleFilter replaces the default voxel-grid downsampling filter.
func WithDownsampleFilter(f DownsampleFilter) RegistrationOption {
	return func(r *ScanRegistration) { r.downsample = f }
}

// NewScanRegistration validates cfg and builds a controller publishing to
// publisher. The default provider and downsampler can be swapped through
// options, which is how tests substitute scripted collaborators.
func NewScanRegistration(cfg *RegistrationConfig, publisher FeaturePublisher, opts ...RegistrationOption) (*ScanRegistration, error) {
	if cfg == nil {
		cfg = NewRegistrationConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid registration config: %w", err)
	}
	if cfg.CurvatureRegion > regionMargin {
		return nil, fmt.Errorf("CurvatureRegion %d exceeds the region edge margin %d",
			cfg.CurvatureRegion, regionMargin)
	}
	if publisher == nil {
		return nil, fmt.Errorf("publisher must not be nil")
	}
	r := &ScanRegistration{
		cfg:        cfg,
		publisher:  publisher,
		downsample: VoxelGrid,
		state: sweepState{
			rotDir:  1,
			sweepID: uuid.NewString(),
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.provider == nil {
		r.provider = NewScanBuffers(cfg)
	}
	if r.downsample == nil {
		return nil, fmt.Errorf("downsample filter must not be nil")
	}
	return r, nil
}

// SweepID returns the identifier of the sweep currently being accumulated.
func (r *ScanRegistration) SweepID() string {
	return r.state.sweepID
}

// ProcessScan ingests one raw scan batch. It evaluates the sweep boundary,
// rebuilds the filtered scan buffer, extracts features and publishes the
// five output clouds. On error no output is produced and the sweep state
// remains consistent for the next batch.
func (r *ScanRegistration) ProcessScan(raw Cloud, stamp time.Time) error {
	if len(raw) == 0 {
		return fmt.Errorf("process scan: empty batch")
	}

	stats := ScanStats{Stamp: stamp, RawPoints: len(raw)}

	// Sweep boundary from the horizontal bearing between the first and
	// last valid returns of the raw batch.
	if angle, ok := batchBearing(raw); ok {
		if r.state.boundary(angle, stamp, r.cfg.ScanPeriod) {
			r.state.reset(stamp)
			stats.NewSweep = true
			monitoring.Logf("scanreg: new sweep %s (rot dir %+.0f) at %s",
				r.state.sweepID, r.state.rotDir, stamp.Format(time.RFC3339Nano))
		}
	}
	if r.state.sweepStart.IsZero() {
		r.state.sweepStart = stamp
	}
	stats.SweepID = r.state.sweepID

	r.buildScanBuffer(raw)
	stats.ValidPoints = len(r.scanBuf)

	features := &ScanFeatures{
		SweepID:   r.state.sweepID,
		FrameID:   r.cfg.FrameID,
		Stamp:     stamp,
		FullCloud: r.scanBuf,
	}

	// Degenerate scan: too few valid points to give every region a full
	// curvature window. Publish the filtered buffer only and leave every
	// piece of sweep state untouched.
	if len(r.scanBuf) < r.cfg.minClassifiableSize() {
		if err := r.publisher.Publish(features); err != nil {
			return fmt.Errorf("publishing degenerate scan: %w", err)
		}
		r.emitStats(stats)
		return nil
	}

	if err := r.provider.PrepareScan(r.scanBuf); err != nil {
		return fmt.Errorf("preparing scan buffers: %w", err)
	}

	var lessFlatScan Cloud
	r.curvatureScratch = r.curvatureScratch[:0]
	regions := PartitionRegions(len(r.scanBuf), r.cfg.NFeatureRegions)
	for _, region := range regions {
		if region.Len() == 0 {
			continue
		}
		if err := r.provider.PrepareRegion(region); err != nil {
			return fmt.Errorf("preparing region [%d,%d): %w", region.Start, region.End, err)
		}
		classifyRegion(r.provider, r.scanBuf, region, r.cfg, features, &lessFlatScan)
		for j := 0; j < region.Len(); j++ {
			r.curvatureScratch = append(r.curvatureScratch, r.provider.Curvature(j))
		}
	}

	// Downsample this scan's less-flat candidates and merge them into the
	// sweep accumulator. The merge is committed only after a successful
	// publish so a failed scan leaves the accumulator as it was.
	scanDS := r.downsample(lessFlatScan, r.cfg.LessFlatFilterSize)
	merged := make(Cloud, 0, len(r.state.lessFlat)+len(scanDS))
	merged = append(merged, r.state.lessFlat...)
	merged = append(merged, scanDS...)
	features.SurfaceLessFlat = merged

	if err := r.publisher.Publish(features); err != nil {
		return fmt.Errorf("publishing features: %w", err)
	}
	r.state.lessFlat = merged

	stats.CornerSharpCount = len(features.CornerSharp)
	stats.CornerLessSharpCount = len(features.CornerLessSharp)
	stats.SurfaceFlatCount = len(features.SurfaceFlat)
	stats.LessFlatScanCount = len(lessFlatScan)
	stats.LessFlatSweepCount = len(merged)
	stats.summarizeCurvature(r.curvatureScratch)
	r.emitStats(stats)
	return nil
}

// buildScanBuffer rebuilds the filtered, remapped, undistorted scan buffer
// from the raw batch. The buffer is owned by the controller for the
// duration of the call chain and reallocated fresh each scan.
func (r *ScanRegistration) buildScanBuffer(raw Cloud) {
	r.scanBuf = make(Cloud, 0, len(raw))

	undistort := r.motion != nil && r.motion.Ready()
	if r.motion != nil && !undistort {
		monitoring.Logf("scanreg: no motion data for scan; skipping undistortion")
	}

	for i, in := range raw {
		p := RemapAxes(in)
		if !p.IsFinite() || p.SquaredNorm() < degenerateNormSq {
			continue
		}
		if len(raw) > 1 {
			p.Reltime = float64(i) / float64(len(raw)-1)
		}
		if undistort {
			p = r.motion.ProjectToSweepStart(p, p.Reltime)
		}
		r.scanBuf = append(r.scanBuf, p)
	}
}

// batchBearing computes the horizontal bearing between the unit range
// directions of the first and last valid points of the raw batch. The
// bearing lives in the sensor's forward/left plane, so it is taken from the
// raw coordinates before the axis remap. ok is false when fewer than two
// valid points exist.
func batchBearing(raw Cloud) (float64, bool) {
	first, ok := firstValid(raw, +1)
	if !ok {
		return 0, false
	}
	last, ok := firstValid(raw, -1)
	if !ok || first == last {
		return 0, false
	}

	a := unitDirection(raw[first])
	b := unitDirection(raw[last])
	return math.Atan2(b.X-a.X, b.Y-a.Y), true
}

// firstValid scans raw from the front (dir=+1) or back (dir=-1) for the
// first finite, non-degenerate point, returning its index. Finiteness and
// range are invariant under the axis remap, so raw coordinates suffice.
func firstValid(raw Cloud, dir int) (int, bool) {
	i := 0
	if dir < 0 {
		i = len(raw) - 1
	}
	for i >= 0 && i < len(raw) {
		if p := raw[i]; p.IsFinite() && p.SquaredNorm() >= degenerateNormSq {
			return i, true
		}
		i += dir
	}
	return 0, false
}

func unitDirection(p Point) Point {
	n := p.Norm()
	return Point{X: p.X / n, Y: p.Y / n, Z: p.Z / n}
}

func (r *ScanRegistration) emitStats(stats ScanStats) {
	if r.statsSink != nil {
		r.statsSink(stats)
	}
}
