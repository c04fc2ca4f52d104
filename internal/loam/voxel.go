package loam

import "math"

// DownsampleFilter reduces a cloud to at most one representative point per
// spatial cell of the given leaf size.
type DownsampleFilter func(cloud Cloud, leafSize float64) Cloud

// VoxelGrid downsamples a cloud on a cubic grid: each occupied leafSize
// cell is reduced to the input point closest to the cell's centroid, so
// every output point is a real input point and metadata survives. A nil or
// empty input returns nil; a non-positive leaf size passes the cloud
// through unchanged. Output order follows first occupancy of each cell, so
// the result is deterministic for a given input order.
func VoxelGrid(cloud Cloud, leafSize float64) Cloud {
	if len(cloud) == 0 {
		return nil
	}
	if leafSize <= 0 {
		return cloud
	}

	type cell struct {
		sumX, sumY, sumZ float64
		points           []int
	}
	type key struct{ x, y, z int }

	cells := make(map[key]*cell)
	order := make([]key, 0, len(cloud))
	for i, p := range cloud {
		k := key{
			x: int(math.Floor(p.X / leafSize)),
			y: int(math.Floor(p.Y / leafSize)),
			z: int(math.Floor(p.Z / leafSize)),
		}
		c, ok := cells[k]
		if !ok {
			c = &cell{}
			cells[k] = c
			order = append(order, k)
		}
		c.sumX += p.X
		c.sumY += p.Y
		c.sumZ += p.Z
		c.points = append(c.points, i)
	}

	out := make(Cloud, 0, len(order))
	for _, k := range order {
		c := cells[k]
		n := float64(len(c.points))
		centroid := Point{X: c.sumX / n, Y: c.sumY / n, Z: c.sumZ / n}

		best := c.points[0]
		bestDist := DistSq(cloud[best], centroid)
		for _, i := range c.points[1:] {
			if d := DistSq(cloud[i], centroid); d < bestDist {
				best = i
				bestDist = d
			}
		}
		out = append(out, cloud[best])
	}
	return out
}
