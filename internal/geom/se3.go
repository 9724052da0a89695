package geom

import (
	"math"

	ad "github.com/morph4d/morph4d/internal/autodiff"
)

// SE3 is a rigid transform: rotate by Rot, then translate by Trans. It maps
// the object (field) frame into the camera frame when used as a
// field-to-camera pose.
type SE3 struct {
	Rot   Quat
	Trans Vec3
}

// SE3Identity returns the identity transform.
func SE3Identity() SE3 {
	return SE3{Rot: QuatIdentity(), Trans: V3(0, 0, 0)}
}

// SE3From lifts float64 pose components (unit quaternion xyzw, translation).
func SE3From(q [4]float64, t [3]float64) SE3 {
	return SE3{Rot: QuatFrom(q), Trans: V3From(t)}
}

// Apply maps a point from the source frame to the target frame.
func (s SE3) Apply(p Vec3) Vec3 {
	return s.Rot.Rotate(p).Add(s.Trans)
}

// ApplyInverse maps a point from the target frame back to the source frame.
func (s SE3) ApplyInverse(p Vec3) Vec3 {
	return s.Rot.Conj().Rotate(p.Sub(s.Trans))
}

// RotateOnly applies just the rotational component, for direction vectors.
func (s SE3) RotateOnly(v Vec3) Vec3 {
	return s.Rot.Rotate(v)
}

// RotateInverseOnly applies the inverse rotation, for direction vectors.
func (s SE3) RotateInverseOnly(v Vec3) Vec3 {
	return s.Rot.Conj().Rotate(v)
}

// Inverse returns the inverse transform.
func (s SE3) Inverse() SE3 {
	rc := s.Rot.Conj()
	return SE3{Rot: rc, Trans: rc.Rotate(s.Trans).ScaleF(-1)}
}

// Compose returns s ∘ o: apply o first, then s.
func (s SE3) Compose(o SE3) SE3 {
	return SE3{
		Rot:   s.Rot.Mul(o.Rot),
		Trans: s.Rot.Rotate(o.Trans).Add(s.Trans),
	}
}

// ToDualQuat converts the transform to its dual quaternion form.
func (s SE3) ToDualQuat() DualQuat {
	return DQFromQuatTrans(s.Rot, s.Trans)
}

// Detach returns a gradient-isolated copy.
func (s SE3) Detach() SE3 {
	return SE3{Rot: s.Rot.Detach(), Trans: s.Trans.Detach()}
}

// IsRigid reports whether the forward rotation is a proper unit quaternion.
// Mirrors the determinant check performed on matrix poses: a reflection or a
// badly scaled quaternion fails here before it corrupts a warp.
func (s SE3) IsRigid(tol float64) bool {
	return s.Rot.IsUnit(tol)
}

// NewSE3Param returns an SE3 whose seven components are fresh trainable
// leaves, initialized at identity with small rotation noise sigma.
func NewSE3Param(noise float64, rnd func() float64) SE3 {
	r := QuatFromSO3(Vec3{
		ad.Param(noise * rnd()),
		ad.Param(noise * rnd()),
		ad.Param(noise * rnd()),
	})
	return SE3{
		Rot:   r,
		Trans: Vec3{ad.Param(0), ad.Param(0), ad.Param(0)},
	}
}

// AngleBetween returns the forward-value rotation angle (radians) separating
// two unit quaternions. Diagnostic only; not differentiable.
func AngleBetween(a, b Quat) float64 {
	d := dotData(a, b)
	if d < 0 {
		d = -d
	}
	if d > 1 {
		d = 1
	}
	return 2 * math.Acos(d)
}
