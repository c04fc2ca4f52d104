package loam

import "sync"

// MotionCompensator re-expresses points as of sweep start to undo the
// distortion introduced by sensor motion during a scan. Ready is consulted
// once per scan; when it reports false the controller skips undistortion
// for the whole scan and logs the degraded mode.
type MotionCompensator interface {
	// Ready reports whether motion data is available for the current scan.
	Ready() bool

	// ProjectToSweepStart returns the point's position as of sweep start.
	// relTime is the point's normalized in-scan time in [0, 1].
	ProjectToSweepStart(p Point, relTime float64) Point
}

// ConstantVelocityCompensator undistorts points under a constant
// ego-velocity assumption: a point observed at relTime is shifted back by
// the motion accrued since sweep start. Velocity is in the pipeline frame,
// metres per scan period. Safe for concurrent SetVelocity against a
// processing loop.
type ConstantVelocityCompensator struct {
	mu    sync.RWMutex
	vx    float64
	vy    float64
	vz    float64
	ready bool
}

// NewConstantVelocityCompensator returns a compensator with no motion data;
// Ready reports false until SetVelocity is called.
func NewConstantVelocityCompensator() *ConstantVelocityCompensator {
	return &ConstantVelocityCompensator{}
}

// SetVelocity installs the current ego-velocity estimate (metres per scan
// period, pipeline frame) and marks the compensator ready.
func (c *ConstantVelocityCompensator) SetVelocity(vx, vy, vz float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vx, c.vy, c.vz = vx, vy, vz
	c.ready = true
}

// ClearVelocity drops the velocity estimate; Ready reports false until a
// new estimate arrives.
func (c *ConstantVelocityCompensator) ClearVelocity() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ready = false
}

// Ready reports whether a velocity estimate is installed.
func (c *ConstantVelocityCompensator) Ready() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ready
}

// ProjectToSweepStart shifts the point back by relTime times the velocity.
func (c *ConstantVelocityCompensator) ProjectToSweepStart(p Point, relTime float64) Point {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Point{
		X:       p.X - c.vx*relTime,
		Y:       p.Y - c.vy*relTime,
		Z:       p.Z - c.vz*relTime,
		Reltime: p.Reltime,
	}
}
