package geom

import (
	"math"
	"math/rand"
	"testing"

	ad "github.com/morph4d/morph4d/internal/autodiff"
)

const tol = 1e-9

func approxVec(t *testing.T, got Vec3, want [3]float64, tol float64, msg string) {
	t.Helper()
	g := got.Data()
	for i := 0; i < 3; i++ {
		if math.Abs(g[i]-want[i]) > tol {
			t.Errorf("%s: component %d = %v, want %v", msg, i, g[i], want[i])
			return
		}
	}
}

func TestVecBasics(t *testing.T) {
	a := V3(1, 2, 3)
	b := V3(4, -5, 6)

	approxVec(t, a.Add(b), [3]float64{5, -3, 9}, tol, "add")
	approxVec(t, a.Sub(b), [3]float64{-3, 7, -3}, tol, "sub")
	approxVec(t, a.ScaleF(2), [3]float64{2, 4, 6}, tol, "scale")

	if d := a.Dot(b); math.Abs(d.Data-(4-10+18)) > tol {
		t.Errorf("dot = %v, want 12", d.Data)
	}
	approxVec(t, V3(1, 0, 0).Cross(V3(0, 1, 0)), [3]float64{0, 0, 1}, tol, "cross")

	n := V3(3, 4, 0).Norm()
	if math.Abs(n.Data-5) > 1e-6 {
		t.Errorf("norm = %v, want 5", n.Data)
	}
}

func TestNormGradientFiniteAtZero(t *testing.T) {
	z := Vec3{ad.Param(0), ad.Param(0), ad.Param(0)}
	n := z.Norm()
	ad.Backward(n)
	for i := 0; i < 3; i++ {
		if math.IsNaN(z[i].Grad) || math.IsInf(z[i].Grad, 0) {
			t.Fatalf("zero-vector norm gradient not finite: %v", z[i].Grad)
		}
	}
}

func TestQuatRotateMatchesAxisAngle(t *testing.T) {
	// 90° about Z maps +X to +Y.
	q := QuatFromSO3(V3(0, 0, math.Pi/2))
	approxVec(t, q.Rotate(V3(1, 0, 0)), [3]float64{0, 1, 0}, 1e-9, "rot z 90")

	// Conjugate rotation undoes it.
	v := V3(0.3, -0.2, 0.9)
	back := q.Conj().Rotate(q.Rotate(v))
	approxVec(t, back, v.Data(), 1e-9, "conj round trip")
}

func TestQuatFromSO3ZeroIsIdentity(t *testing.T) {
	q := QuatFromSO3(V3(0, 0, 0))
	d := q.Data()
	if math.Abs(d[3]-1) > 1e-6 || math.Abs(d[0]) > 1e-6 {
		t.Errorf("zero so3 gave %v, want identity", d)
	}
	if !q.IsUnit(1e-6) {
		t.Error("zero so3 quaternion not unit")
	}
}

func TestQuatMulComposesRotations(t *testing.T) {
	qa := QuatFromSO3(V3(0, 0, math.Pi/2))
	qb := QuatFromSO3(V3(math.Pi/2, 0, 0))
	v := V3(0, 0, 1)

	// qa⊗qb applies qb first.
	composed := qa.Mul(qb).Rotate(v)
	sequential := qa.Rotate(qb.Rotate(v))
	approxVec(t, composed, sequential.Data(), 1e-9, "composition order")
}

func TestSE3RoundTrip(t *testing.T) {
	s := SE3{
		Rot:   QuatFromSO3(V3(0.3, -0.5, 0.7)),
		Trans: V3(1, -2, 0.5),
	}
	p := V3(0.2, 0.4, -0.6)
	approxVec(t, s.ApplyInverse(s.Apply(p)), p.Data(), 1e-9, "apply/applyinverse")
	approxVec(t, s.Inverse().Apply(s.Apply(p)), p.Data(), 1e-9, "inverse apply")

	// Compose associates with application order.
	o := SE3{Rot: QuatFromSO3(V3(0, 0.2, 0)), Trans: V3(0, 1, 0)}
	approxVec(t, s.Compose(o).Apply(p), s.Apply(o.Apply(p)).Data(), 1e-9, "compose")
}

func TestIdentitySE3IsExact(t *testing.T) {
	// The identity pose must not perturb points at all; warps rely on this
	// for the exact rigid round-trip law.
	s := SE3Identity()
	p := V3(0.1, 0.2, 0.3)
	got := s.ApplyInverse(s.Apply(p)).Data()
	want := p.Data()
	for i := 0; i < 3; i++ {
		if got[i] != want[i] {
			t.Fatalf("identity SE3 moved component %d: %v -> %v", i, want[i], got[i])
		}
	}
}

func TestDualQuatMatchesSE3(t *testing.T) {
	s := SE3{
		Rot:   QuatFromSO3(V3(-0.4, 0.1, 0.9)),
		Trans: V3(0.5, 0.25, -1),
	}
	dq := s.ToDualQuat()
	p := V3(-0.3, 0.8, 0.2)
	approxVec(t, dq.Apply(p), s.Apply(p).Data(), 1e-9, "dq apply")
	approxVec(t, dq.Inverse().Apply(dq.Apply(p)), p.Data(), 1e-9, "dq inverse")

	// Composition agrees with SE3 composition.
	o := SE3{Rot: QuatFromSO3(V3(0.2, 0, 0)), Trans: V3(0, 0, 1)}
	approxVec(t, dq.Mul(o.ToDualQuat()).Apply(p), s.Compose(o).Apply(p).Data(), 1e-9, "dq compose")
}

func TestDualQuatTranslationRecovery(t *testing.T) {
	dq := DQFromQuatTrans(QuatFromSO3(V3(0.1, 0.7, -0.2)), V3(2, -3, 4))
	approxVec(t, dq.Translation(), [3]float64{2, -3, 4}, 1e-9, "translation")
}

func TestBlendSingleBoneIsExact(t *testing.T) {
	dq := DQFromQuatTrans(QuatFromSO3(V3(0, 1.2, 0)), V3(1, 0, -1))
	blended := BlendDualQuats([]DualQuat{dq}, []*ad.Value{ad.Const(1)})
	p := V3(0.5, 0.5, 0.5)
	approxVec(t, blended.Apply(p), dq.Apply(p).Data(), 1e-9, "single-bone blend")
}

func TestBlendHandlesDoubleCover(t *testing.T) {
	dq := DQFromQuatTrans(QuatFromSO3(V3(0, 0, 1)), V3(0.5, 0, 0))
	// The negated quaternion encodes the same rotation.
	flipped := DualQuat{Real: dq.Real.ScaleF(-1), Dual: dq.Dual.ScaleF(-1)}
	blended := BlendDualQuats(
		[]DualQuat{dq, flipped},
		[]*ad.Value{ad.Const(0.5), ad.Const(0.5)},
	)
	p := V3(1, 2, 3)
	approxVec(t, blended.Apply(p), dq.Apply(p).Data(), 1e-6, "double cover blend")
}

func TestBlendEqualWeightsInterpolates(t *testing.T) {
	a := DQFromQuatTrans(QuatIdentity(), V3(0, 0, 0))
	b := DQFromQuatTrans(QuatIdentity(), V3(2, 0, 0))
	blended := BlendDualQuats(
		[]DualQuat{a, b},
		[]*ad.Value{ad.Const(0.5), ad.Const(0.5)},
	)
	approxVec(t, blended.Apply(V3(0, 0, 0)), [3]float64{1, 0, 0}, 1e-9, "midpoint translation")
}

func TestGradFlowsThroughRotation(t *testing.T) {
	// d/dθ of (rot_z(θ) applied to +X).y at θ=0 is 1.
	theta := ad.Param(0)
	q := QuatFromSO3(Vec3{ad.Const(0), ad.Const(0), theta})
	rotated := q.Rotate(V3(1, 0, 0))
	ad.Backward(rotated[1])
	if math.Abs(theta.Grad-1) > 1e-5 {
		t.Errorf("d(y)/dθ = %v, want 1", theta.Grad)
	}
}

func TestAABBExtendAndSample(t *testing.T) {
	b := AABB{Min: [3]float64{-1, -2, -3}, Max: [3]float64{1, 2, 3}}

	e := b.Extend(0.25)
	if e.Min[0] != -1.25 || e.Max[2] != 3.75 {
		t.Errorf("extend 0.25 gave %+v", e)
	}
	if got := b.Extend(0); got != b {
		t.Errorf("extend 0 changed box: %+v", got)
	}

	rng := rand.New(rand.NewSource(7))
	pts := e.SampleUniform(rng, 256)
	if len(pts) != 256 {
		t.Fatalf("sample count = %d", len(pts))
	}
	for _, p := range pts {
		if !e.Contains(p) {
			t.Fatalf("sample %v outside extended box", p)
		}
	}
}
