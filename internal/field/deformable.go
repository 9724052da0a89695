package field

import (
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/spatial/r3"

	ad "github.com/morph4d/morph4d/internal/autodiff"
	"github.com/morph4d/morph4d/internal/dataset"
	"github.com/morph4d/morph4d/internal/geom"
	"github.com/morph4d/morph4d/internal/losses"
	"github.com/morph4d/morph4d/internal/warp"
)

// Default sample counts for the volumetric regularizers.
const (
	GaussConsistencySamples = 2048
	SoftDeformSamples       = 1024
)

// Deformable couples the canonical field with one motion model for its
// lifetime. Queries run backward through the warp into canonical space; the
// cycle, density-matching and soft-deformation losses keep the warp and the
// field mutually consistent. The warp binding is immutable; its parameters
// train like any other.
type Deformable struct {
	*Field
	warp warp.Warp
	tag  warp.Tag
}

// NewDeformable builds the field plus the warp selected by the motion tag.
func NewDeformable(motion string, meta *dataset.Metadata, opts Options, wopts warp.Options, rng *rand.Rand) (*Deformable, error) {
	tag, err := warp.ParseTag(motion)
	if err != nil {
		return nil, err
	}
	w, err := warp.New(tag, meta, wopts, rng)
	if err != nil {
		return nil, err
	}
	return &Deformable{Field: NewField(meta, opts, rng), warp: w, tag: tag}, nil
}

// Warp exposes the bound motion model.
func (d *Deformable) Warp() warp.Warp { return d.warp }

// Tag returns the parsed motion selector.
func (d *Deformable) Tag() warp.Tag { return d.tag }

func (d *Deformable) boneField() (warp.BoneField, bool) {
	b, ok := d.warp.(warp.BoneField)
	return b, ok
}

// Params returns the field and warp parameters together.
func (d *Deformable) Params() []*ad.Value {
	return append(d.Field.Params(), d.warp.Params()...)
}

// BackwardWarp maps camera-space samples into the canonical frame: the
// inverse camera pose takes them to the time-t field frame, then the warp
// runs backward. Returns canonical points, field-frame directions and the
// time-t points, plus the warp auxiliaries.
func (d *Deformable) BackwardWarp(xyzCam, dirCam []geom.Vec3, field2cam []geom.SE3, frames, insts []int, bctx *warp.BatchContext) *WarpOut {
	xyzT, dir := d.CamToField(xyzCam, dirCam, field2cam)
	xyz, aux := d.warp.Backward(xyzT, frames, insts, bctx)
	// TODO: rotate dir by the per-point warp rotation; view directions
	// currently stay in the time-t frame.
	return &WarpOut{XYZ: xyz, Dir: dir, XYZT: xyzT, Aux: aux}
}

// ForwardWarp articulates canonical points to time t and moves them into
// the camera frame.
func (d *Deformable) ForwardWarp(xyz []geom.Vec3, field2cam []geom.SE3, frames, insts []int, bctx *warp.BatchContext) []geom.Vec3 {
	return d.FieldToCam(d.warp.Forward(xyz, frames, insts, bctx), field2cam)
}

// CycleLoss adds the warp round-trip error to the base static term: each
// recovered canonical point is articulated forward again and compared to
// the time-t point it came from. Training only; nil otherwise.
func (d *Deformable) CycleLoss(xyz, xyzT []geom.Vec3, frames, insts []int, bctx *warp.BatchContext, aux *warp.Aux) Terms {
	terms := d.Field.CycleLoss(xyz, xyzT, frames, insts, bctx, aux)
	if terms == nil {
		return nil
	}
	cycled := d.warp.Forward(xyz, frames, insts, bctx)
	dist := make([]*ad.Value, len(xyz))
	for i := range xyz {
		dist[i] = geom.Dist(cycled[i], xyzT[i])
	}
	terms[KeyCycDist] = append(terms[KeyCycDist], dist...)
	return terms
}

// GaussSkinConsistencyLoss matches the analytic Gaussian-bone density to
// the learned occupancy over points sampled around the support box (grown
// by 0.25). The field side is detached; class-balanced BCE weights equalize
// the inside and outside contributions. Zero for non-skeletal warps.
func (d *Deformable) GaussSkinConsistencyLoss(rng *rand.Rand, nsample int) *ad.Value {
	bone, ok := d.boneField()
	if !ok {
		return ad.Const(0)
	}
	pts := d.SamplePointsAABB(rng, nsample, 0.25)
	pred := bone.GaussDensity(pts, nil)
	target := make([]*ad.Value, len(pts))
	for i, p := range pts {
		target[i] = d.Occupancy(p, -1).Detach()
	}
	weight := losses.BalancedBCEWeights(target)
	return losses.BinaryCrossEntropy(pred, target, weight)
}

// SoftDeformLoss penalizes the soft (non-skeletal) displacement over a wide
// sample of space (support box grown by 1.0) at random frame and instance
// ids. Zero when the warp has no soft component.
func (d *Deformable) SoftDeformLoss(rng *rand.Rand, nsample int) *ad.Value {
	pts := d.SamplePointsAABB(rng, nsample, 1)
	frames := make([]int, nsample)
	insts := make([]int, nsample)
	meta := d.Metadata()
	for i := range frames {
		frames[i] = rng.Intn(meta.NumFrames)
		insts[i] = rng.Intn(meta.NumInst)
	}
	return ad.Mean(d.warp.PostWarpDist2(pts, frames, insts))
}

// GetSamples prepares the batch and, for skeletal warps, caches the rest
// and per-frame articulation once for the whole batch. A joint-angle
// override in the batch replaces the learned time-t articulation for the
// listed frames.
func (d *Deformable) GetSamples(batch *Batch) (*SampleContext, error) {
	sctx, err := d.Field.GetSamples(batch)
	if err != nil {
		return nil, err
	}
	bone, ok := d.boneField()
	if !ok {
		return sctx, nil
	}
	artic := bone.Articulation()
	frames := uniqueIDs(sctx.FrameID)
	var rest []geom.DualQuat
	var timePose map[int][]geom.DualQuat
	if len(batch.JointSO3) > 0 {
		rest = artic.MeanVals()
		timePose = artic.Vals(frames, batch.JointSO3)
	} else {
		timePose, rest = artic.ValsAndMean(frames)
	}
	sctx.Bones = &warp.BatchContext{Rest: rest, Time: timePose}
	return sctx, nil
}

func uniqueIDs(ids []int) []int {
	seen := make(map[int]bool, len(ids))
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// QueryField renders the batch through the warp. Single-branch skeletal
// fields also report the analytic bone density at every canonical sample
// under the gauss_density output, scaled by the warp's density sharpness.
func (d *Deformable) QueryField(sctx *SampleContext) (*FieldOut, error) {
	out, err := d.Field.render(sctx, d.BackwardWarp, d.CycleLoss)
	if err != nil {
		return nil, err
	}
	if d.opts.TwoBranch {
		return out, nil
	}
	bone, ok := d.boneField()
	if !ok {
		return out, nil
	}
	rest, ok := sctx.Bones.RestPose()
	if !ok {
		rest = bone.Articulation().MeanVals()
	}
	scale := bone.LogIbeta().Exp()
	out.GaussDensity = make([][]*ad.Value, len(out.XYZ))
	for i, row := range out.XYZ {
		g := bone.GaussDensity(row, rest)
		for j := range g {
			g[j] = g[j].Mul(scale)
		}
		out.GaussDensity[i] = g
	}
	return out, nil
}

// InitSDFFunc extends the base seed functions with skeleton mode, reading
// the signed distance implied by the warp's rest-pose bones.
func (d *Deformable) InitSDFFunc(mode SeedMode) (func([]r3.Vec) []float64, error) {
	if mode == SeedSkeleton {
		bone, ok := d.boneField()
		if !ok {
			return nil, fmt.Errorf("field: skeleton seeding needs a skeletal warp, have %q", d.tag)
		}
		return bone.GaussSDF, nil
	}
	return d.Field.InitSDFFunc(mode)
}

// MLPInit seeds the geometry MLP from the chosen seed function; skeletal
// warps fitted against an external skeleton reference then seed their
// articulation rest pose from it.
func (d *Deformable) MLPInit(mode SeedMode, rng *rand.Rand, steps int) (float64, error) {
	fn, err := d.InitSDFFunc(mode)
	if err != nil {
		return 0, err
	}
	mse, err := d.Field.MLPInit(fn, rng, steps)
	if err != nil {
		return mse, err
	}
	if d.tag.Kind == warp.KindSkelHuman || d.tag.Kind == warp.KindSkelQuad {
		if bone, ok := d.boneField(); ok {
			if skel := d.Metadata().Skeleton; skel != nil {
				if err := bone.Articulation().InitVals(skel); err != nil {
					return mse, fmt.Errorf("field: seed articulation: %w", err)
				}
			}
		}
	}
	return mse, nil
}
