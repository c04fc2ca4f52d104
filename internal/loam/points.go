// Package loam implements the feature-extraction front end of a LiDAR
// odometry pipeline for a continuously rotating 2D scanner. It converts
// time-ordered range points into corner and surface feature clouds that a
// downstream scan-matching stage consumes.
package loam

import "math"

// Point is a single LiDAR return in the pipeline's canonical frame.
// Reltime carries the point's normalized in-scan time (0 at sweep start);
// it is used only for motion compensation, never for classification.
type Point struct {
	X       float64
	Y       float64
	Z       float64
	Reltime float64
}

// Cloud is an ordered sequence of points. Order is scan order: adjacency in
// the slice approximates spatial adjacency, which the curvature window and
// region partitioning rely on.
type Cloud []Point

// SquaredNorm returns the squared distance of the point from the sensor origin.
func (p Point) SquaredNorm() float64 {
	return p.X*p.X + p.Y*p.Y + p.Z*p.Z
}

// Norm returns the range of the point from the sensor origin.
func (p Point) Norm() float64 {
	return math.Sqrt(p.SquaredNorm())
}

// IsFinite reports whether all three coordinates are finite numbers.
func (p Point) IsFinite() bool {
	return !math.IsNaN(p.X) && !math.IsInf(p.X, 0) &&
		!math.IsNaN(p.Y) && !math.IsInf(p.Y, 0) &&
		!math.IsNaN(p.Z) && !math.IsInf(p.Z, 0)
}

// DistSq returns the squared distance between two points.
func DistSq(a, b Point) float64 {
	dx := a.X - b.X
	dy := a.Y - b.Y
	dz := a.Z - b.Z
	return dx*dx + dy*dy + dz*dz
}

// RemapAxes converts a point from the sensor's forward/left/up convention to
// the pipeline's canonical frame: x takes the sensor's left axis, y its up
// axis and z its forward axis. Pure per-point relabeling, order preserving.
func RemapAxes(p Point) Point {
	return Point{X: p.Y, Y: p.Z, Z: p.X, Reltime: p.Reltime}
}
