package warp

import (
	ad "github.com/morph4d/morph4d/internal/autodiff"
	"github.com/morph4d/morph4d/internal/geom"
)

// RigidWarp leaves object space untouched in both directions: the object
// moves only through its per-frame root transform, handled outside the
// warp. Round trips are exact.
type RigidWarp struct{}

// NewRigidWarp returns the identity warp.
func NewRigidWarp() *RigidWarp { return &RigidWarp{} }

// Forward returns the points unchanged.
func (w *RigidWarp) Forward(pts []geom.Vec3, frames, insts []int, bctx *BatchContext) []geom.Vec3 {
	return pts
}

// Backward returns the points unchanged with empty auxiliaries.
func (w *RigidWarp) Backward(pts []geom.Vec3, frames, insts []int, bctx *BatchContext) ([]geom.Vec3, *Aux) {
	return pts, &Aux{}
}

// PostWarpDist2 is identically zero: there is no soft component.
func (w *RigidWarp) PostWarpDist2(pts []geom.Vec3, frames, insts []int) []*ad.Value {
	out := make([]*ad.Value, len(pts))
	for i := range out {
		out[i] = ad.Const(0)
	}
	return out
}

// Params returns no parameters.
func (w *RigidWarp) Params() []*ad.Value { return nil }
