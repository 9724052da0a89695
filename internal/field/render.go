package field

import (
	"fmt"

	ad "github.com/morph4d/morph4d/internal/autodiff"
	"github.com/morph4d/morph4d/internal/geom"
	"github.com/morph4d/morph4d/internal/warp"
)

// WarpOut carries a backward warp's results: canonical points, field-frame
// view directions, the time-t points they were recovered from, and any warp
// auxiliaries.
type WarpOut struct {
	XYZ  []geom.Vec3
	Dir  []geom.Vec3
	XYZT []geom.Vec3
	Aux  *warp.Aux
}

// backwardWarpFunc maps flattened camera-space samples into the canonical
// frame; cycleFunc builds the matching training-time diagnostics.
type (
	backwardWarpFunc func(xyzCam, dirCam []geom.Vec3, field2cam []geom.SE3, frames, insts []int, bctx *warp.BatchContext) *WarpOut
	cycleFunc        func(xyz, xyzT []geom.Vec3, frames, insts []int, bctx *warp.BatchContext, aux *warp.Aux) Terms
)

// FieldOut is a rendered batch: per-ray composites plus the per-sample
// quantities behind them, indexed [ray][depth sample].
type FieldOut struct {
	RGB   []geom.Vec3
	Depth []*ad.Value
	Alpha []*ad.Value

	XYZ     [][]geom.Vec3
	XYZT    [][]geom.Vec3
	SDF     [][]*ad.Value
	Density [][]*ad.Value

	// GaussDensity holds the per-sample analytic bone density, filled only
	// by single-branch skeletal fields.
	GaussDensity [][]*ad.Value

	// Terms carries the training-time loss series; nil outside training.
	Terms Terms
}

// QueryField renders every ray in the context against the static field:
// canonical and time-t spaces coincide, so the backward pass is just the
// inverse camera pose.
func (f *Field) QueryField(sctx *SampleContext) (*FieldOut, error) {
	return f.render(sctx, f.staticBackwardWarp, f.CycleLoss)
}

func (f *Field) staticBackwardWarp(xyzCam, dirCam []geom.Vec3, field2cam []geom.SE3, frames, insts []int, bctx *warp.BatchContext) *WarpOut {
	xyz, dir := f.CamToField(xyzCam, dirCam, field2cam)
	return &WarpOut{XYZ: xyz, Dir: dir, XYZT: xyz}
}

// render samples depths per ray, pulls the samples backward into canonical
// space, queries the field and composites colors front to back.
func (f *Field) render(sctx *SampleContext, bw backwardWarpFunc, cl cycleFunc) (*FieldOut, error) {
	nray := sctx.NumRays()
	nd := f.opts.DepthSamples
	if nd < 2 {
		return nil, fmt.Errorf("field: need at least 2 depth samples, have %d", nd)
	}
	out := &FieldOut{
		RGB:     make([]geom.Vec3, nray),
		Depth:   make([]*ad.Value, nray),
		Alpha:   make([]*ad.Value, nray),
		XYZ:     make([][]geom.Vec3, nray),
		XYZT:    make([][]geom.Vec3, nray),
		SDF:     make([][]*ad.Value, nray),
		Density: make([][]*ad.Value, nray),
	}
	var terms Terms
	for i := 0; i < nray; i++ {
		near, far := sctx.NearFar[i][0], sctx.NearFar[i][1]
		step := (far - near) / float64(nd-1)
		depths := make([]float64, nd)
		xyzCam := make([]geom.Vec3, nd)
		dirCam := make([]geom.Vec3, nd)
		poses := make([]geom.SE3, nd)
		frames := make([]int, nd)
		insts := make([]int, nd)
		for j := 0; j < nd; j++ {
			z := near + float64(j)*step
			depths[j] = z
			xyzCam[j] = sctx.Dirs[i].ScaleF(z)
			dirCam[j] = sctx.Dirs[i]
			poses[j] = sctx.Field2Cam[i]
			frames[j] = sctx.FrameID[i]
			insts[j] = sctx.InstID[i]
		}
		wo := bw(xyzCam, dirCam, poses, frames, insts, sctx.Bones)

		sdf := make([]*ad.Value, nd)
		density := make([]*ad.Value, nd)
		trans := ad.Const(1)
		rgb := geom.V3(0, 0, 0)
		depth := ad.Const(0)
		alpha := ad.Const(0)
		for j := 0; j < nd; j++ {
			s := f.Query(wo.XYZ[j], wo.Dir[j], frames[j], insts[j])
			sdf[j] = s.SDF
			density[j] = s.Density
			free := s.Density.MulConst(-step).Exp() // exp(-sigma*delta)
			w := trans.Mul(free.Neg().AddConst(1))
			rgb = rgb.Add(s.RGB.Scale(w))
			depth = depth.Add(w.MulConst(depths[j]))
			alpha = alpha.Add(w)
			trans = trans.Mul(free)
		}
		out.RGB[i] = rgb
		out.Depth[i] = depth
		out.Alpha[i] = alpha
		out.XYZ[i] = wo.XYZ
		out.XYZT[i] = wo.XYZT
		out.SDF[i] = sdf
		out.Density[i] = density

		rayTerms := cl(wo.XYZ, wo.XYZT, frames, insts, sctx.Bones, wo.Aux)
		if terms == nil {
			terms = rayTerms
		} else {
			terms = terms.Merge(rayTerms)
		}
	}
	out.Terms = terms
	return out, nil
}
