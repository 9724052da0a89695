package geom

import (
	"gonum.org/v1/gonum/num/quat"

	ad "github.com/morph4d/morph4d/internal/autodiff"
)

// Quat is a quaternion (x, y, z, w) of tape values. Rotation quaternions are
// kept unit-length; every blend path normalizes before applying.
type Quat [4]*ad.Value

// QuatIdentity returns the identity rotation.
func QuatIdentity() Quat {
	return Quat{ad.Const(0), ad.Const(0), ad.Const(0), ad.Const(1)}
}

// QuatFrom lifts float64 components (x, y, z, w).
func QuatFrom(q [4]float64) Quat {
	return Quat{ad.Const(q[0]), ad.Const(q[1]), ad.Const(q[2]), ad.Const(q[3])}
}

// Data returns the forward components (x, y, z, w).
func (q Quat) Data() [4]float64 {
	return [4]float64{q[0].Data, q[1].Data, q[2].Data, q[3].Data}
}

// Number converts the forward components to a gonum quaternion for float64
// validation and interop (real part w, imaginary parts x, y, z).
func (q Quat) Number() quat.Number {
	return quat.Number{Real: q[3].Data, Imag: q[0].Data, Jmag: q[1].Data, Kmag: q[2].Data}
}

// Mul returns the Hamilton product q ⊗ r.
func (q Quat) Mul(r Quat) Quat {
	qx, qy, qz, qw := q[0], q[1], q[2], q[3]
	rx, ry, rz, rw := r[0], r[1], r[2], r[3]
	return Quat{
		qw.Mul(rx).Add(qx.Mul(rw)).Add(qy.Mul(rz)).Sub(qz.Mul(ry)),
		qw.Mul(ry).Sub(qx.Mul(rz)).Add(qy.Mul(rw)).Add(qz.Mul(rx)),
		qw.Mul(rz).Add(qx.Mul(ry)).Sub(qy.Mul(rx)).Add(qz.Mul(rw)),
		qw.Mul(rw).Sub(qx.Mul(rx)).Sub(qy.Mul(ry)).Sub(qz.Mul(rz)),
	}
}

// Conj returns the conjugate, which inverts a unit quaternion.
func (q Quat) Conj() Quat {
	return Quat{q[0].Neg(), q[1].Neg(), q[2].Neg(), q[3]}
}

// Norm returns |q|.
func (q Quat) Norm() *ad.Value {
	return ad.Dot(q[:], q[:]).AddConst(1e-12).Sqrt()
}

// Normalize returns q / |q|.
func (q Quat) Normalize() Quat {
	n := q.Norm()
	return Quat{q[0].Div(n), q[1].Div(n), q[2].Div(n), q[3].Div(n)}
}

// Scale multiplies every component by a tape scalar.
func (q Quat) Scale(s *ad.Value) Quat {
	return Quat{q[0].Mul(s), q[1].Mul(s), q[2].Mul(s), q[3].Mul(s)}
}

// ScaleF multiplies every component by a constant.
func (q Quat) ScaleF(s float64) Quat {
	return Quat{q[0].MulConst(s), q[1].MulConst(s), q[2].MulConst(s), q[3].MulConst(s)}
}

// Add returns the componentwise sum, used by blending before renormalizing.
func (q Quat) Add(r Quat) Quat {
	return Quat{q[0].Add(r[0]), q[1].Add(r[1]), q[2].Add(r[2]), q[3].Add(r[3])}
}

// DotQ returns the 4D inner product of two quaternions.
func DotQ(q, r Quat) *ad.Value {
	return ad.Dot(q[:], r[:])
}

// Rotate applies the rotation to v via t = 2·xyz×v, v' = v + w·t + xyz×t.
// This is the standard expansion of q v q* and costs two cross products.
func (q Quat) Rotate(v Vec3) Vec3 {
	xyz := Vec3{q[0], q[1], q[2]}
	t := xyz.Cross(v).ScaleF(2)
	return v.Add(t.Scale(q[3])).Add(xyz.Cross(t))
}

// Detach returns a gradient-isolated copy.
func (q Quat) Detach() Quat {
	return Quat{q[0].Detach(), q[1].Detach(), q[2].Detach(), q[3].Detach()}
}

// QuatFromSO3 is the exponential map: it converts an so(3) rotation vector
// (axis times angle, radians) into a unit quaternion. The angle is computed
// with an epsilon so the zero rotation maps smoothly to identity.
func QuatFromSO3(w Vec3) Quat {
	theta := w.SquaredNorm().AddConst(1e-16).Sqrt()
	half := theta.MulConst(0.5)
	sinc := half.Sin().Div(theta) // sin(θ/2)/θ, finite near zero
	return Quat{
		w[0].Mul(sinc),
		w[1].Mul(sinc),
		w[2].Mul(sinc),
		half.Cos(),
	}
}

// QuatFromEuler converts XYZ Euler angles (radians, constants) to a unit
// quaternion. Used for configuration-supplied reorientations.
func QuatFromEuler(rx, ry, rz float64) Quat {
	qx := QuatFromSO3(V3(rx, 0, 0))
	qy := QuatFromSO3(V3(0, ry, 0))
	qz := QuatFromSO3(V3(0, 0, rz))
	return qx.Mul(qy).Mul(qz)
}

// IsUnit reports whether the forward value is a unit quaternion within tol,
// checked with gonum's quaternion norm.
func (q Quat) IsUnit(tol float64) bool {
	n := quat.Abs(q.Number())
	return n > 1-tol && n < 1+tol
}
