package warp

import (
	"fmt"
	"math/rand"

	ad "github.com/morph4d/morph4d/internal/autodiff"
	"github.com/morph4d/morph4d/internal/dataset"
	"github.com/morph4d/morph4d/internal/geom"
	"github.com/morph4d/morph4d/internal/nn"
)

// Articulation produces per-bone object-space poses for any frame. The rest
// configuration is learned (per-bone so(3) joint rotation plus a bone-length
// offset along the parent's x axis, chained through the kinematic tree), and
// a per-frame embedding feeds an MLP that predicts so(3) deltas on top of
// it. Bones without a tree (all parents -1) additionally receive free
// per-frame translation deltas, turning the model into a bag of bones.
type Articulation struct {
	parents   []int
	restSO3   [][3]*ad.Value
	lengths   []*ad.Value
	timeCode  *nn.Embedding
	mlp       *nn.MLP
	freeTrans bool
}

// NewArticulation builds the articulation for a validated skeleton. The MLP
// output carries 3 values per bone, or 6 when free translations are enabled.
func NewArticulation(skel *dataset.SkeletonRef, numFrames int, opts Options, rng *rand.Rand) (*Articulation, error) {
	if err := skel.Validate(); err != nil {
		return nil, fmt.Errorf("warp: articulation: %w", err)
	}
	b := skel.NumBones()
	a := &Articulation{
		parents:   append([]int(nil), skel.Parents...),
		restSO3:   make([][3]*ad.Value, b),
		lengths:   make([]*ad.Value, b),
		freeTrans: true,
	}
	for _, p := range skel.Parents {
		if p >= 0 {
			// A tree constrains motion to joint angles.
			a.freeTrans = false
			break
		}
	}
	scale := skel.Scale
	if scale == 0 {
		scale = 1
	}
	for i := 0; i < b; i++ {
		for k := 0; k < 3; k++ {
			a.restSO3[i][k] = ad.Param(skel.RestAngles[i][k])
		}
		a.lengths[i] = ad.Param(skel.Lengths[i] * scale)
	}
	outDim := 3 * b
	if a.freeTrans {
		outDim = 6 * b
	}
	a.timeCode = nn.NewEmbedding(rng, numFrames, opts.TimeEmbedDim)
	a.mlp = nn.NewMLP(rng, opts.TimeEmbedDim, opts.MLPWidth, opts.MLPDepth, outDim, nil, nn.ActReLU)
	// Small initial deltas keep the first poses near rest.
	for _, p := range a.mlp.Params() {
		p.Data *= 0.1
	}
	return a, nil
}

// NumBones returns the bone count.
func (a *Articulation) NumBones() int { return len(a.parents) }

// fk chains local bone transforms through the tree. delta supplies per-bone
// so(3) (and translation, when free) offsets; override, when non-nil,
// replaces the total local rotation with the given joint angles.
func (a *Articulation) fk(delta []*ad.Value, override [][3]float64) []geom.DualQuat {
	b := a.NumBones()
	world := make([]geom.SE3, b)
	out := make([]geom.DualQuat, b)
	for i := 0; i < b; i++ {
		var rot geom.Quat
		if override != nil {
			rot = geom.QuatFromSO3(geom.V3From(override[i]))
		} else {
			d := geom.Vec3{delta[3*i], delta[3*i+1], delta[3*i+2]}
			rot = liftRest(a.restSO3[i]).Mul(geom.QuatFromSO3(d)).Normalize()
		}
		// The joint rotation aims the bone's own segment: the local offset is
		// the bone length carried along the rotated x axis.
		trans := rot.Rotate(geom.Vec3{a.lengths[i], ad.Const(0), ad.Const(0)})
		if a.freeTrans {
			off := 3*b + 3*i
			trans = trans.Add(geom.Vec3{delta[off], delta[off+1], delta[off+2]})
		}
		local := geom.SE3{Rot: rot, Trans: trans}
		if p := a.parents[i]; p >= 0 {
			world[i] = world[p].Compose(local)
		} else {
			world[i] = local
		}
		out[i] = world[i].ToDualQuat()
	}
	return out
}

func liftRest(so3 [3]*ad.Value) geom.Quat {
	return geom.QuatFromSO3(geom.Vec3{so3[0], so3[1], so3[2]})
}

// Vals computes bone poses for each distinct frame id. override maps frame
// ids to per-bone joint angles that replace the learned rotations for that
// frame (externally tracked poses).
func (a *Articulation) Vals(frames []int, override map[int][][3]float64) map[int][]geom.DualQuat {
	out := make(map[int][]geom.DualQuat, len(frames))
	for _, f := range frames {
		if _, done := out[f]; done {
			continue
		}
		if ov, ok := override[f]; ok {
			out[f] = a.fk(a.deltaFor(f), ov)
			continue
		}
		out[f] = a.fk(a.deltaFor(f), nil)
	}
	return out
}

func (a *Articulation) deltaFor(frame int) []*ad.Value {
	return a.mlp.Forward(a.timeCode.Lookup(frame))
}

// MeanVals computes the rest articulation: the MLP evaluated at the mean
// time embedding.
func (a *Articulation) MeanVals() []geom.DualQuat {
	return a.fk(a.mlp.Forward(a.timeCode.Lookup(-1)), nil)
}

// ValsAndMean returns per-frame poses and the rest pose in one pass.
func (a *Articulation) ValsAndMean(frames []int) (map[int][]geom.DualQuat, []geom.DualQuat) {
	return a.Vals(frames, nil), a.MeanVals()
}

// InitVals seeds the rest joint angles and bone lengths from an external
// skeleton reference. The reference must match the bone count.
func (a *Articulation) InitVals(skel *dataset.SkeletonRef) error {
	if err := skel.Validate(); err != nil {
		return fmt.Errorf("warp: init vals: %w", err)
	}
	if skel.NumBones() != a.NumBones() {
		return fmt.Errorf("warp: init vals: skeleton has %d bones, articulation has %d",
			skel.NumBones(), a.NumBones())
	}
	scale := skel.Scale
	if scale == 0 {
		scale = 1
	}
	for i := 0; i < a.NumBones(); i++ {
		for k := 0; k < 3; k++ {
			a.restSO3[i][k].Data = skel.RestAngles[i][k]
			a.restSO3[i][k].Grad = 0
		}
		a.lengths[i].Data = skel.Lengths[i] * scale
		a.lengths[i].Grad = 0
	}
	return nil
}

// Params returns every learnable articulation parameter.
func (a *Articulation) Params() []*ad.Value {
	var out []*ad.Value
	for i := range a.restSO3 {
		out = append(out, a.restSO3[i][0], a.restSO3[i][1], a.restSO3[i][2])
	}
	out = append(out, a.lengths...)
	out = append(out, a.timeCode.Params()...)
	out = append(out, a.mlp.Params()...)
	return out
}
