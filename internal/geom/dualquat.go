package geom

import (
	"gonum.org/v1/gonum/num/dualquat"
	"gonum.org/v1/gonum/num/quat"

	ad "github.com/morph4d/morph4d/internal/autodiff"
)

// DualQuat represents a rigid transform as a unit dual quaternion: Real
// carries the rotation, Dual carries half the translation composed with the
// rotation. This is the per-bone pose representation used throughout the
// articulation code, and the quantity that skinning blends.
type DualQuat struct {
	Real Quat
	Dual Quat
}

// DQIdentity returns the identity transform.
func DQIdentity() DualQuat {
	return DualQuat{
		Real: QuatIdentity(),
		Dual: Quat{ad.Const(0), ad.Const(0), ad.Const(0), ad.Const(0)},
	}
}

// DQFromQuatTrans builds a dual quaternion from a unit rotation and a
// translation: dual = ½·t ⊗ real, with t as a pure quaternion.
func DQFromQuatTrans(r Quat, t Vec3) DualQuat {
	tq := Quat{t[0], t[1], t[2], ad.Const(0)}
	return DualQuat{Real: r, Dual: tq.Mul(r).ScaleF(0.5)}
}

// Rotation returns the rotation component.
func (d DualQuat) Rotation() Quat {
	return d.Real
}

// Translation recovers the translation: t = 2·dual ⊗ real*.
func (d DualQuat) Translation() Vec3 {
	t := d.Dual.Mul(d.Real.Conj()).ScaleF(2)
	return Vec3{t[0], t[1], t[2]}
}

// Mul composes two transforms: d then... in the usual convention, (d ⊗ o)
// applies o first and d second, matching matrix composition.
func (d DualQuat) Mul(o DualQuat) DualQuat {
	return DualQuat{
		Real: d.Real.Mul(o.Real),
		Dual: d.Real.Mul(o.Dual).Add(d.Dual.Mul(o.Real)),
	}
}

// Inverse returns the inverse rigid transform (conjugate of both parts for a
// unit dual quaternion).
func (d DualQuat) Inverse() DualQuat {
	return DualQuat{Real: d.Real.Conj(), Dual: d.Dual.Conj()}
}

// Apply transforms a point: rotate by Real, then translate.
func (d DualQuat) Apply(p Vec3) Vec3 {
	return d.Real.Rotate(p).Add(d.Translation())
}

// Normalize renormalizes to a unit dual quaternion: divides both parts by
// |Real| and removes the component of Dual along Real so that ⟨Real,Dual⟩=0.
func (d DualQuat) Normalize() DualQuat {
	n := d.Real.Norm()
	r := d.Real.Scale(ad.Const(1).Div(n))
	du := d.Dual.Scale(ad.Const(1).Div(n))
	proj := DotQ(r, du)
	du = du.Add(r.Scale(proj.Neg()))
	return DualQuat{Real: r, Dual: du}
}

// Detach returns a gradient-isolated copy.
func (d DualQuat) Detach() DualQuat {
	return DualQuat{Real: d.Real.Detach(), Dual: d.Dual.Detach()}
}

// Number converts the forward values to a gonum dual quaternion.
func (d DualQuat) Number() dualquat.Number {
	return dualquat.Number{Real: d.Real.Number(), Dual: d.Dual.Number()}
}

// DQFromNumber lifts a gonum dual quaternion into constant tape values.
func DQFromNumber(n dualquat.Number) DualQuat {
	fromQ := func(q quat.Number) Quat {
		return QuatFrom([4]float64{q.Imag, q.Jmag, q.Kmag, q.Real})
	}
	return DualQuat{Real: fromQ(n.Real), Dual: fromQ(n.Dual)}
}

// BlendDualQuats computes the weighted blend Σ wᵢ·dqᵢ and renormalizes
// (dual quaternion blending). Quaternion double cover is handled by flipping
// any pose whose rotation points away from the first: the flip is decided on
// forward values and applied as a constant sign, so gradients stay intact.
// Weights need not be normalized; the final normalization absorbs the total.
func BlendDualQuats(dqs []DualQuat, w []*ad.Value) DualQuat {
	if len(dqs) == 0 {
		return DQIdentity()
	}
	if len(dqs) != len(w) {
		panic("geom: BlendDualQuats weight count mismatch")
	}
	ref := dqs[0].Real
	accReal := dqs[0].Real.Scale(w[0])
	accDual := dqs[0].Dual.Scale(w[0])
	for i := 1; i < len(dqs); i++ {
		d := dqs[i]
		sign := 1.0
		if dotData(ref, d.Real) < 0 {
			sign = -1
		}
		wi := w[i].MulConst(sign)
		accReal = accReal.Add(d.Real.Scale(wi))
		accDual = accDual.Add(d.Dual.Scale(wi))
	}
	return DualQuat{Real: accReal, Dual: accDual}.Normalize()
}

func dotData(a, b Quat) float64 {
	return a[0].Data*b[0].Data + a[1].Data*b[1].Data +
		a[2].Data*b[2].Data + a[3].Data*b[3].Data
}
