package warp

import (
	"math"
	"math/rand"
	"testing"

	"github.com/morph4d/morph4d/internal/dataset"
	"github.com/morph4d/morph4d/internal/geom"
)

func chainSkeleton(lengths ...float64) *dataset.SkeletonRef {
	parents := make([]int, len(lengths))
	for i := range parents {
		parents[i] = i - 1
	}
	return &dataset.SkeletonRef{
		Parents:    parents,
		RestAngles: make([][3]float64, len(lengths)),
		Lengths:    lengths,
		Scale:      1,
	}
}

func wantVec(t *testing.T, got geom.Vec3, want [3]float64, tol float64, label string) {
	t.Helper()
	d := got.Data()
	for k := 0; k < 3; k++ {
		if math.Abs(d[k]-want[k]) > tol {
			t.Errorf("%s = %v, want %v", label, d, want)
			return
		}
	}
}

func TestForwardKinematicsChain(t *testing.T) {
	// Three bones in a chain, joints bent 90 degrees about z one after the
	// other. Each world pose must be the parent pose composed with the local
	// one, which gives closed-form positions to check against.
	rng := rand.New(rand.NewSource(1))
	a, err := NewArticulation(chainSkeleton(0.5, 0.3, 0.2), 1, DefaultOptions(), rng)
	if err != nil {
		t.Fatalf("NewArticulation: %v", err)
	}
	override := map[int][][3]float64{
		0: {{0, 0, 0}, {0, 0, halfPi}, {0, 0, halfPi}},
	}
	poses := a.Vals([]int{0}, override)[0]
	if len(poses) != 3 {
		t.Fatalf("got %d poses, want 3", len(poses))
	}

	wantVec(t, poses[0].Translation(), [3]float64{0.5, 0, 0}, 1e-9, "joint 0")
	wantVec(t, poses[1].Translation(), [3]float64{0.5, 0.3, 0}, 1e-9, "joint 1")
	wantVec(t, poses[2].Translation(), [3]float64{0.3, 0.3, 0}, 1e-9, "joint 2")

	// Two stacked 90 degree bends leave the tip frame rotated 180 about z.
	tip := poses[2].Rotation().Rotate(geom.V3(1, 0, 0))
	wantVec(t, tip, [3]float64{-1, 0, 0}, 1e-9, "tip x axis")

	for i, dq := range poses {
		if !dq.Rotation().IsUnit(1e-9) {
			t.Errorf("pose %d rotation is not unit", i)
		}
	}
}

func TestOverrideReplacesLearnedRotation(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	a, err := NewArticulation(chainSkeleton(0.4, 0.2), 2, DefaultOptions(), rng)
	if err != nil {
		t.Fatalf("NewArticulation: %v", err)
	}
	override := map[int][][3]float64{0: {{0, 0, 0}, {0, 0, 0}}}
	poses := a.Vals([]int{0, 1}, override)

	// Zero joint angles put every joint on the x axis regardless of the
	// learned deltas.
	wantVec(t, poses[0][0].Translation(), [3]float64{0.4, 0, 0}, 1e-12, "overridden joint 0")
	wantVec(t, poses[0][1].Translation(), [3]float64{0.6, 0, 0}, 1e-12, "overridden joint 1")

	// Frame 1 keeps the learned articulation instead.
	free := poses[1][1].Translation().Data()
	ov := poses[0][1].Translation().Data()
	same := true
	for k := 0; k < 3; k++ {
		if free[k] != ov[k] {
			same = false
		}
	}
	if same {
		t.Error("frame without override matched the overridden pose exactly")
	}
}

func TestValsDeduplicatesFrames(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	a, err := NewArticulation(chainSkeleton(0.5, 0.3), 4, DefaultOptions(), rng)
	if err != nil {
		t.Fatalf("NewArticulation: %v", err)
	}
	poses := a.Vals([]int{2, 0, 2, 2, 0}, nil)
	if len(poses) != 2 {
		t.Fatalf("got %d entries, want 2", len(poses))
	}
	for _, f := range []int{0, 2} {
		if _, ok := poses[f]; !ok {
			t.Errorf("missing poses for frame %d", f)
		}
	}
}

func TestMeanValsSingleFrame(t *testing.T) {
	// With one frame the mean embedding equals the only row, so the mean
	// articulation must coincide with frame zero.
	rng := rand.New(rand.NewSource(4))
	a, err := NewArticulation(chainSkeleton(0.5, 0.3, 0.2), 1, DefaultOptions(), rng)
	if err != nil {
		t.Fatalf("NewArticulation: %v", err)
	}
	perFrame, mean := a.ValsAndMean([]int{0})
	frame := perFrame[0]
	if len(mean) != len(frame) {
		t.Fatalf("mean has %d bones, frame has %d", len(mean), len(frame))
	}
	for i := range mean {
		m, f := mean[i].Translation().Data(), frame[i].Translation().Data()
		for k := 0; k < 3; k++ {
			if math.Abs(m[k]-f[k]) > 1e-12 {
				t.Fatalf("bone %d: mean %v, frame %v", i, m, f)
			}
		}
	}
}

func TestInitVals(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	a, err := NewArticulation(chainSkeleton(0.5, 0.3), 1, DefaultOptions(), rng)
	if err != nil {
		t.Fatalf("NewArticulation: %v", err)
	}

	seed := chainSkeleton(0.8, 0.1)
	seed.Scale = 2
	if err := a.InitVals(seed); err != nil {
		t.Fatalf("InitVals: %v", err)
	}
	override := map[int][][3]float64{0: {{0, 0, 0}, {0, 0, 0}}}
	poses := a.Vals([]int{0}, override)[0]
	wantVec(t, poses[0].Translation(), [3]float64{1.6, 0, 0}, 1e-12, "seeded joint 0")
	wantVec(t, poses[1].Translation(), [3]float64{1.8, 0, 0}, 1e-12, "seeded joint 1")

	if err := a.InitVals(chainSkeleton(0.5, 0.3, 0.2)); err == nil {
		t.Error("InitVals accepted a skeleton with the wrong bone count")
	}
}

func TestBagOfBonesFreeTranslation(t *testing.T) {
	rng := rand.New(rand.NewSource(6))
	bones := 5

	bag, err := NewArticulation(bagOfBonesSkeleton(bones, rng), 2, DefaultOptions(), rng)
	if err != nil {
		t.Fatalf("NewArticulation(bag): %v", err)
	}
	if !bag.freeTrans {
		t.Error("bag of bones should use free translations")
	}
	if got := len(bag.deltaFor(0)); got != 6*bones {
		t.Errorf("bag delta width = %d, want %d", got, 6*bones)
	}

	tree, err := NewArticulation(chainSkeleton(0.5, 0.3), 2, DefaultOptions(), rng)
	if err != nil {
		t.Fatalf("NewArticulation(chain): %v", err)
	}
	if tree.freeTrans {
		t.Error("a kinematic tree should not use free translations")
	}
	if got := len(tree.deltaFor(0)); got != 6 {
		t.Errorf("tree delta width = %d, want 6", got)
	}
}

func TestNewArticulationRejectsBadSkeleton(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	bad := &dataset.SkeletonRef{
		Parents:    []int{0}, // self-parent
		RestAngles: make([][3]float64, 1),
		Lengths:    []float64{0.5},
		Scale:      1,
	}
	if _, err := NewArticulation(bad, 1, DefaultOptions(), rng); err == nil {
		t.Fatal("want error for self-parenting skeleton")
	}
}

func TestTemplates(t *testing.T) {
	rng := rand.New(rand.NewSource(8))
	cases := []struct {
		name string
		skel *dataset.SkeletonRef
	}{
		{"human", HumanTemplate()},
		{"quad", QuadTemplate()},
		{"bag", bagOfBonesSkeleton(12, rng)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.skel.Validate(); err != nil {
				t.Fatalf("Validate: %v", err)
			}
			if _, err := NewArticulation(tc.skel, 3, DefaultOptions(), rng); err != nil {
				t.Fatalf("NewArticulation: %v", err)
			}
		})
	}
	if HumanTemplate().NumBones() < 15 {
		t.Errorf("human template has %d bones, want a full body", HumanTemplate().NumBones())
	}
	if QuadTemplate().NumBones() < 15 {
		t.Errorf("quad template has %d bones, want a full body", QuadTemplate().NumBones())
	}
}
