// Package geom provides the differentiable 3D algebra used by the warp and
// field code: vectors, quaternions, dual quaternions and SE(3) transforms
// whose components live on the autodiff tape, plus the float64 axis-aligned
// box utilities used by the non-differentiable sampling and seeding paths.
package geom

import (
	ad "github.com/morph4d/morph4d/internal/autodiff"
)

// Vec3 is a 3-component vector of tape values.
type Vec3 [3]*ad.Value

// V3 lifts three float64 components into a constant vector.
func V3(x, y, z float64) Vec3 {
	return Vec3{ad.Const(x), ad.Const(y), ad.Const(z)}
}

// V3From lifts a float64 triple.
func V3From(p [3]float64) Vec3 {
	return V3(p[0], p[1], p[2])
}

// Data returns the forward components.
func (a Vec3) Data() [3]float64 {
	return [3]float64{a[0].Data, a[1].Data, a[2].Data}
}

// Detach returns a gradient-isolated copy.
func (a Vec3) Detach() Vec3 {
	return Vec3{a[0].Detach(), a[1].Detach(), a[2].Detach()}
}

func (a Vec3) Add(b Vec3) Vec3 {
	return Vec3{a[0].Add(b[0]), a[1].Add(b[1]), a[2].Add(b[2])}
}

func (a Vec3) Sub(b Vec3) Vec3 {
	return Vec3{a[0].Sub(b[0]), a[1].Sub(b[1]), a[2].Sub(b[2])}
}

// Scale multiplies by a tape scalar.
func (a Vec3) Scale(s *ad.Value) Vec3 {
	return Vec3{a[0].Mul(s), a[1].Mul(s), a[2].Mul(s)}
}

// ScaleF multiplies by a plain constant.
func (a Vec3) ScaleF(s float64) Vec3 {
	return Vec3{a[0].MulConst(s), a[1].MulConst(s), a[2].MulConst(s)}
}

func (a Vec3) Dot(b Vec3) *ad.Value {
	return ad.Dot(a[:], b[:])
}

func (a Vec3) Cross(b Vec3) Vec3 {
	return Vec3{
		a[1].Mul(b[2]).Sub(a[2].Mul(b[1])),
		a[2].Mul(b[0]).Sub(a[0].Mul(b[2])),
		a[0].Mul(b[1]).Sub(a[1].Mul(b[0])),
	}
}

// SquaredNorm returns |a|^2.
func (a Vec3) SquaredNorm() *ad.Value {
	return a.Dot(a)
}

// Norm returns |a|. A small epsilon inside the square root keeps the
// gradient finite for zero vectors.
func (a Vec3) Norm() *ad.Value {
	return a.SquaredNorm().AddConst(1e-12).Sqrt()
}

// Normalize returns a / |a|.
func (a Vec3) Normalize() Vec3 {
	n := a.Norm()
	return Vec3{a[0].Div(n), a[1].Div(n), a[2].Div(n)}
}

// Dist returns the Euclidean distance between a and b.
func Dist(a, b Vec3) *ad.Value {
	return a.Sub(b).Norm()
}

// Dist2 returns the squared Euclidean distance between a and b.
func Dist2(a, b Vec3) *ad.Value {
	return a.Sub(b).SquaredNorm()
}

// LiftPoints converts float64 points into constant tape vectors.
func LiftPoints(pts [][3]float64) []Vec3 {
	out := make([]Vec3, len(pts))
	for i, p := range pts {
		out[i] = V3From(p)
	}
	return out
}

// PointData converts tape vectors back to their forward float64 values.
func PointData(pts []Vec3) [][3]float64 {
	out := make([][3]float64, len(pts))
	for i, p := range pts {
		out[i] = p.Data()
	}
	return out
}
