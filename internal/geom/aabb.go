package geom

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/spatial/r3"
)

// AABB is an axis-aligned bounding box in float64 object coordinates. The
// learned field keeps one to bound its support; loss sampling draws points
// from expanded copies of it.
type AABB struct {
	Min [3]float64
	Max [3]float64
}

// UnitAABB returns the [-1,1]^3 box used before any proxy geometry is known.
func UnitAABB() AABB {
	return AABB{Min: [3]float64{-1, -1, -1}, Max: [3]float64{1, 1, 1}}
}

// AABBFromPoints returns the tight bounds of a point set.
func AABBFromPoints(pts []r3.Vec) AABB {
	box := AABB{
		Min: [3]float64{math.Inf(1), math.Inf(1), math.Inf(1)},
		Max: [3]float64{math.Inf(-1), math.Inf(-1), math.Inf(-1)},
	}
	for _, p := range pts {
		box.Min[0] = math.Min(box.Min[0], p.X)
		box.Min[1] = math.Min(box.Min[1], p.Y)
		box.Min[2] = math.Min(box.Min[2], p.Z)
		box.Max[0] = math.Max(box.Max[0], p.X)
		box.Max[1] = math.Max(box.Max[1], p.Y)
		box.Max[2] = math.Max(box.Max[2], p.Z)
	}
	return box
}

// Extend grows the box by factor times its half-extent on every side.
// Extend(0) is the box itself; Extend(1) doubles each extent.
func (b AABB) Extend(factor float64) AABB {
	out := b
	for i := 0; i < 3; i++ {
		half := (b.Max[i] - b.Min[i]) / 2
		out.Min[i] -= factor * half
		out.Max[i] += factor * half
	}
	return out
}

// Center returns the box center.
func (b AABB) Center() [3]float64 {
	return [3]float64{
		(b.Min[0] + b.Max[0]) / 2,
		(b.Min[1] + b.Max[1]) / 2,
		(b.Min[2] + b.Max[2]) / 2,
	}
}

// Contains reports whether p lies inside the closed box.
func (b AABB) Contains(p [3]float64) bool {
	for i := 0; i < 3; i++ {
		if p[i] < b.Min[i] || p[i] > b.Max[i] {
			return false
		}
	}
	return true
}

// SampleUniform draws n points uniformly from the box.
func (b AABB) SampleUniform(rng *rand.Rand, n int) [][3]float64 {
	pts := make([][3]float64, n)
	for i := range pts {
		for k := 0; k < 3; k++ {
			pts[i][k] = b.Min[k] + rng.Float64()*(b.Max[k]-b.Min[k])
		}
	}
	return pts
}
