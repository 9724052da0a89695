package warp

import (
	"math/rand"

	ad "github.com/morph4d/morph4d/internal/autodiff"
	"github.com/morph4d/morph4d/internal/dataset"
	"github.com/morph4d/morph4d/internal/geom"
	"github.com/morph4d/morph4d/internal/nn"
)

// DenseWarp models motion as a pair of learned displacement fields over
// encoded position, time and instance: one canonical-to-t, one
// t-to-canonical. The two directions are independent networks, so round
// trips carry a residual that the cycle loss drives down.
type DenseWarp struct {
	enc      nn.PosEncoding
	timeCode *nn.Embedding
	instCode *nn.Embedding
	fwd      *nn.MLP
	bwd      *nn.MLP
}

// NewDenseWarp builds the flow-field warp. Displacement outputs start near
// zero so the warp begins at identity.
func NewDenseWarp(meta *dataset.Metadata, opts Options, rng *rand.Rand) *DenseWarp {
	w := &DenseWarp{
		enc:      nn.NewPosEncoding(opts.NumFreqXYZ),
		timeCode: nn.NewEmbedding(rng, meta.NumFrames, opts.TimeEmbedDim),
		instCode: nn.NewEmbedding(rng, meta.NumInst, opts.InstEmbedDim),
	}
	inDim := w.enc.Dim(3) + opts.TimeEmbedDim + opts.InstEmbedDim
	w.fwd = nn.NewMLP(rng, inDim, opts.MLPWidth, opts.MLPDepth, 3, nil, nn.ActReLU)
	w.bwd = nn.NewMLP(rng, inDim, opts.MLPWidth, opts.MLPDepth, 3, nil, nn.ActReLU)
	for _, m := range []*nn.MLP{w.fwd, w.bwd} {
		for _, p := range m.Out.Params(nil) {
			p.Data *= 0.01
		}
	}
	return w
}

func (w *DenseWarp) input(p geom.Vec3, frame, inst int) []*ad.Value {
	in := w.enc.Encode(p[:])
	in = append(in, w.timeCode.Lookup(frame)...)
	in = append(in, w.instCode.Lookup(inst)...)
	return in
}

func (w *DenseWarp) displace(m *nn.MLP, pts []geom.Vec3, frames, insts []int) []geom.Vec3 {
	if len(frames) != len(pts) || len(insts) != len(pts) {
		panic("warp: dense warp batch length mismatch")
	}
	out := make([]geom.Vec3, len(pts))
	for i, p := range pts {
		d := m.Forward(w.input(p, frames[i], insts[i]))
		out[i] = p.Add(geom.Vec3{d[0], d[1], d[2]})
	}
	return out
}

// Forward displaces canonical points into time-t space.
func (w *DenseWarp) Forward(pts []geom.Vec3, frames, insts []int, bctx *BatchContext) []geom.Vec3 {
	return w.displace(w.fwd, pts, frames, insts)
}

// Backward displaces time-t points into canonical space.
func (w *DenseWarp) Backward(pts []geom.Vec3, frames, insts []int, bctx *BatchContext) ([]geom.Vec3, *Aux) {
	return w.displace(w.bwd, pts, frames, insts), &Aux{}
}

// PostWarpDist2 returns the squared forward displacement per point; the
// whole model is soft.
func (w *DenseWarp) PostWarpDist2(pts []geom.Vec3, frames, insts []int) []*ad.Value {
	warped := w.Forward(pts, frames, insts, nil)
	out := make([]*ad.Value, len(pts))
	for i := range pts {
		out[i] = geom.Dist2(warped[i], pts[i])
	}
	return out
}

// Params returns every learnable parameter of both flow directions.
func (w *DenseWarp) Params() []*ad.Value {
	var out []*ad.Value
	out = append(out, w.timeCode.Params()...)
	out = append(out, w.instCode.Params()...)
	out = append(out, w.fwd.Params()...)
	out = append(out, w.bwd.Params()...)
	return out
}
