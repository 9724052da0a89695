package warp

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	ad "github.com/morph4d/morph4d/internal/autodiff"
	"github.com/morph4d/morph4d/internal/dataset"
	"github.com/morph4d/morph4d/internal/geom"
	"github.com/morph4d/morph4d/internal/losses"
	"github.com/morph4d/morph4d/internal/nn"
)

// SkinningWarp articulates space with Gaussian bones. Each bone carries an
// anisotropic Gaussian kernel in its local frame; skinning weights are a
// softmax over negative half squared Mahalanobis distances, refined by a
// small MLP, and points move by blending per-bone dual quaternions with
// those weights. Backward blends t-pose-to-rest transforms, forward blends
// rest-to-t-pose transforms.
type SkinningWarp struct {
	artic    *Articulation
	logGauss [][3]*ad.Value
	logIbeta *ad.Value

	enc      nn.PosEncoding
	timeCode *nn.Embedding
	instCode *nn.Embedding
	deltaMLP *nn.MLP
}

// minGaussScale floors the seeded Gaussian extents so zero-length bones
// still occupy volume.
const minGaussScale = 0.05

// NewSkinningWarp builds a skinning warp over the given skeleton. Gaussian
// extents seed from bone lengths (elongated along the segment axis) and the
// delta-skinning MLP starts near zero.
func NewSkinningWarp(skel *dataset.SkeletonRef, meta *dataset.Metadata, opts Options, rng *rand.Rand) (*SkinningWarp, error) {
	artic, err := NewArticulation(skel, meta.NumFrames, opts, rng)
	if err != nil {
		return nil, fmt.Errorf("warp: skinning: %w", err)
	}
	w := &SkinningWarp{
		artic:    artic,
		logGauss: make([][3]*ad.Value, skel.NumBones()),
		logIbeta: ad.Param(math.Log(10)),
		enc:      nn.NewPosEncoding(opts.NumFreqXYZ),
		timeCode: nn.NewEmbedding(rng, meta.NumFrames, opts.TimeEmbedDim),
		instCode: nn.NewEmbedding(rng, meta.NumInst, opts.InstEmbedDim),
	}
	for i := 0; i < skel.NumBones(); i++ {
		along := math.Max(skel.Lengths[i]*skel.Scale/2, minGaussScale)
		w.logGauss[i] = [3]*ad.Value{
			ad.Param(math.Log(along)),
			ad.Param(math.Log(minGaussScale)),
			ad.Param(math.Log(minGaussScale)),
		}
	}
	inDim := w.enc.Dim(3) + opts.TimeEmbedDim + opts.InstEmbedDim
	w.deltaMLP = nn.NewMLP(rng, inDim, opts.MLPWidth, opts.MLPDepth, skel.NumBones(), nil, nn.ActReLU)
	for _, p := range w.deltaMLP.Out.Params(nil) {
		p.Data *= 0.01
	}
	return w, nil
}

// Articulation exposes the kinematic sub-component.
func (w *SkinningWarp) Articulation() *Articulation { return w.artic }

// LogIbeta is the learned scale that maps Gaussian density into the field's
// normalized density range.
func (w *SkinningWarp) LogIbeta() *ad.Value { return w.logIbeta }

// NumBones returns the bone count.
func (w *SkinningWarp) NumBones() int { return w.artic.NumBones() }

// GaussExtents returns each bone's Gaussian half-axis lengths in canonical
// space, off the tape.
func (w *SkinningWarp) GaussExtents() [][3]float64 {
	out := make([][3]float64, len(w.logGauss))
	for i, lg := range w.logGauss {
		for k := 0; k < 3; k++ {
			out[i][k] = math.Exp(lg[k].Data)
		}
	}
	return out
}

// restFor reads the cached rest pose or recomputes it.
func (w *SkinningWarp) restFor(bctx *BatchContext) []geom.DualQuat {
	if rest, ok := bctx.RestPose(); ok {
		return rest
	}
	return w.artic.MeanVals()
}

// articulationFor resolves per-frame bone poses, preferring the batch cache
// and running forward kinematics only for frames it misses.
func (w *SkinningWarp) articulationFor(frames []int, bctx *BatchContext) map[int][]geom.DualQuat {
	out := make(map[int][]geom.DualQuat, len(frames))
	var missing []int
	for _, f := range frames {
		if _, done := out[f]; done {
			continue
		}
		if dq, ok := bctx.TimePose(f); ok {
			out[f] = dq
		} else {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		for f, dq := range w.artic.Vals(missing, nil) {
			out[f] = dq
		}
	}
	return out
}

// mahalanobis2 returns the squared Mahalanobis distance of p to one bone's
// Gaussian, measured in the bone's local frame.
func (w *SkinningWarp) mahalanobis2(p geom.Vec3, bone geom.DualQuat, b int) *ad.Value {
	local := bone.Inverse().Apply(p)
	d2 := ad.Const(0)
	for k := 0; k < 3; k++ {
		scaled := local[k].Mul(w.logGauss[b][k].Neg().Exp())
		d2 = d2.Add(scaled.Square())
	}
	return d2
}

// skinWeights computes the bone assignment distribution for one point
// against the given bone poses, returning the weights and the raw MLP
// refinements.
func (w *SkinningWarp) skinWeights(p geom.Vec3, bones []geom.DualQuat, frame, inst int) (weights, delta []*ad.Value) {
	b := len(bones)
	logits := make([]*ad.Value, b)
	for i := 0; i < b; i++ {
		logits[i] = w.mahalanobis2(p, bones[i], i).MulConst(-0.5)
	}
	in := w.enc.Encode(p[:])
	in = append(in, w.timeCode.Lookup(frame)...)
	in = append(in, w.instCode.Lookup(inst)...)
	delta = w.deltaMLP.Forward(in)
	for i := 0; i < b; i++ {
		logits[i] = logits[i].Add(delta[i])
	}
	return ad.Softmax(logits), delta
}

func (w *SkinningWarp) checkBatch(pts []geom.Vec3, frames, insts []int) {
	if len(frames) != len(pts) || len(insts) != len(pts) {
		panic("warp: skinning warp batch length mismatch")
	}
}

// Backward un-articulates time-t points into canonical space. Weights are
// measured against the time-t bones, then each bone contributes its
// t-to-rest transform to the blend.
func (w *SkinningWarp) Backward(pts []geom.Vec3, frames, insts []int, bctx *BatchContext) ([]geom.Vec3, *Aux) {
	w.checkBatch(pts, frames, insts)
	rest := w.restFor(bctx)
	tArt := w.articulationFor(frames, bctx)
	out := make([]geom.Vec3, len(pts))
	aux := &Aux{
		SkinEntropy: make([]*ad.Value, len(pts)),
		DeltaSkin:   make([][]*ad.Value, len(pts)),
	}
	nb := w.NumBones()
	for i, p := range pts {
		bones := tArt[frames[i]]
		weights, delta := w.skinWeights(p, bones, frames[i], insts[i])
		back := make([]geom.DualQuat, nb)
		for b := 0; b < nb; b++ {
			back[b] = rest[b].Mul(bones[b].Inverse())
		}
		out[i] = geom.BlendDualQuats(back, weights).Apply(p)
		aux.SkinEntropy[i] = losses.Entropy(weights)
		aux.DeltaSkin[i] = delta
	}
	return out, aux
}

// Forward articulates canonical points into time-t space. Weights are
// measured against the rest bones.
func (w *SkinningWarp) Forward(pts []geom.Vec3, frames, insts []int, bctx *BatchContext) []geom.Vec3 {
	w.checkBatch(pts, frames, insts)
	rest := w.restFor(bctx)
	tArt := w.articulationFor(frames, bctx)
	out := make([]geom.Vec3, len(pts))
	nb := w.NumBones()
	for i, p := range pts {
		bones := tArt[frames[i]]
		weights, _ := w.skinWeights(p, rest, frames[i], insts[i])
		fwd := make([]geom.DualQuat, nb)
		for b := 0; b < nb; b++ {
			fwd[b] = bones[b].Mul(rest[b].Inverse())
		}
		out[i] = geom.BlendDualQuats(fwd, weights).Apply(p)
	}
	return out
}

// PostWarpDist2 is identically zero: skinning has no soft component.
func (w *SkinningWarp) PostWarpDist2(pts []geom.Vec3, frames, insts []int) []*ad.Value {
	out := make([]*ad.Value, len(pts))
	for i := range out {
		out[i] = ad.Const(0)
	}
	return out
}

// GaussDensity evaluates the analytic bone density at each point: the
// maximum over bones of exp(-d2/2), in (0,1]. bones nil means the rest
// pose. Differentiable through bone poses and Gaussian extents.
func (w *SkinningWarp) GaussDensity(pts []geom.Vec3, bones []geom.DualQuat) []*ad.Value {
	if bones == nil {
		bones = w.artic.MeanVals()
	}
	out := make([]*ad.Value, len(pts))
	perBone := make([]*ad.Value, len(bones))
	for i, p := range pts {
		for b := range bones {
			perBone[b] = w.mahalanobis2(p, bones[b], b).MulConst(-0.5).Exp()
		}
		out[i] = ad.MaxOf(perBone)
	}
	return out
}

// GaussSDF returns a signed distance implied by the rest-pose bones,
// negative inside. The zero level set sits at one Mahalanobis unit (the
// density exp(-1/2) shell) and distances are scaled back to object units by
// the mean Gaussian extent. Runs off the tape.
func (w *SkinningWarp) GaussSDF(pts []r3.Vec) []float64 {
	type bonePose struct {
		rotConj quat.Number
		trans   r3.Vec
		scale   [3]float64
	}
	rest := w.artic.MeanVals()
	bones := make([]bonePose, len(rest))
	var meanScale float64
	for b, dq := range rest {
		n := dq.Rotation().Number()
		t := dq.Translation().Data()
		bones[b].rotConj = quat.Conj(n)
		bones[b].trans = r3.Vec{X: t[0], Y: t[1], Z: t[2]}
		for k := 0; k < 3; k++ {
			bones[b].scale[k] = math.Exp(w.logGauss[b][k].Data)
			meanScale += bones[b].scale[k]
		}
	}
	meanScale /= float64(3 * len(bones))

	out := make([]float64, len(pts))
	for i, p := range pts {
		nearest := math.Inf(1)
		for _, bone := range bones {
			local := r3.Rotation(bone.rotConj).Rotate(r3.Sub(p, bone.trans))
			d2 := sq(local.X/bone.scale[0]) + sq(local.Y/bone.scale[1]) + sq(local.Z/bone.scale[2])
			if d := math.Sqrt(d2); d < nearest {
				nearest = d
			}
		}
		out[i] = (nearest - 1) * meanScale
	}
	return out
}

func sq(x float64) float64 { return x * x }

// Params returns every learnable parameter: articulation, Gaussian extents,
// the density scale and the delta-skinning network.
func (w *SkinningWarp) Params() []*ad.Value {
	out := w.artic.Params()
	for i := range w.logGauss {
		out = append(out, w.logGauss[i][0], w.logGauss[i][1], w.logGauss[i][2])
	}
	out = append(out, w.logIbeta)
	out = append(out, w.timeCode.Params()...)
	out = append(out, w.instCode.Params()...)
	out = append(out, w.deltaMLP.Params()...)
	return out
}
