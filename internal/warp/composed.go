package warp

import (
	"math/rand"

	ad "github.com/morph4d/morph4d/internal/autodiff"
	"github.com/morph4d/morph4d/internal/dataset"
	"github.com/morph4d/morph4d/internal/geom"
)

// ComposedWarp layers a dense residual on top of a skeletal warp: forward
// articulates first and then applies the soft correction in time-t space;
// backward undoes the soft correction before un-articulating. The Gaussian
// bone queries come from the embedded skeleton untouched.
type ComposedWarp struct {
	*SkinningWarp
	postWarp *DenseWarp
}

// NewComposedWarp wraps an existing skinning warp with a dense residual.
func NewComposedWarp(skel *SkinningWarp, meta *dataset.Metadata, opts Options, rng *rand.Rand) *ComposedWarp {
	return &ComposedWarp{
		SkinningWarp: skel,
		postWarp:     NewDenseWarp(meta, opts, rng),
	}
}

// Forward articulates canonical points, then soft-corrects in time-t space.
func (w *ComposedWarp) Forward(pts []geom.Vec3, frames, insts []int, bctx *BatchContext) []geom.Vec3 {
	out := w.SkinningWarp.Forward(pts, frames, insts, bctx)
	return w.postWarp.Forward(out, frames, insts, bctx)
}

// Backward removes the soft correction, then un-articulates.
func (w *ComposedWarp) Backward(pts []geom.Vec3, frames, insts []int, bctx *BatchContext) ([]geom.Vec3, *Aux) {
	unsoft, softAux := w.postWarp.Backward(pts, frames, insts, bctx)
	out, aux := w.SkinningWarp.Backward(unsoft, frames, insts, bctx)
	return out, aux.merge(softAux)
}

// PostWarpDist2 measures only the soft component's squared displacement.
func (w *ComposedWarp) PostWarpDist2(pts []geom.Vec3, frames, insts []int) []*ad.Value {
	return w.postWarp.PostWarpDist2(pts, frames, insts)
}

// Params returns the skeleton's and the residual's parameters.
func (w *ComposedWarp) Params() []*ad.Value {
	return append(w.SkinningWarp.Params(), w.postWarp.Params()...)
}
