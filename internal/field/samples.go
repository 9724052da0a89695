package field

import (
	"fmt"
	"math"

	"github.com/morph4d/morph4d/internal/geom"
	"github.com/morph4d/morph4d/internal/warp"
)

// Batch is one training or rendering request: parallel per-ray slices of
// pixel coordinates, ids, poses and depth bounds, sharing one inverse
// intrinsics matrix. Nil FrameID or InstID selects the mean embeddings; nil
// NearFar derives depth bounds from the field support box.
type Batch struct {
	Pixels    [][2]float64
	Kinv      [3][3]float64
	FrameID   []int
	InstID    []int
	Field2Cam []geom.SE3
	NearFar   [][2]float64

	// JointSO3 overrides the learned time-t articulation for the listed
	// frames with externally tracked per-bone joint angles.
	JointSO3 map[int][][3]float64
}

// SampleContext is a prepared batch: pixel rays lifted through the
// intrinsics and, for skeletal warps, the articulation cached once for the
// whole batch. Contexts are per-batch; reusing one across optimizer steps
// serves stale kinematics.
type SampleContext struct {
	Kinv      [3][3]float64
	Dirs      []geom.Vec3 // camera-space ray directions on the z=1 plane
	FrameID   []int
	InstID    []int
	Field2Cam []geom.SE3
	NearFar   [][2]float64
	Bones     *warp.BatchContext
}

// NumRays returns the ray count.
func (s *SampleContext) NumRays() int { return len(s.Dirs) }

// GetSamples validates a batch and prepares its sampling context: pixel
// rays through the inverse intrinsics, id defaults filled in and near/far
// bounds derived from the support box where missing.
func (f *Field) GetSamples(batch *Batch) (*SampleContext, error) {
	n := len(batch.Pixels)
	if n == 0 {
		return nil, fmt.Errorf("field: empty batch")
	}
	if len(batch.Field2Cam) != n {
		return nil, fmt.Errorf("field: %d poses for %d rays", len(batch.Field2Cam), n)
	}
	frames := batch.FrameID
	if frames == nil {
		frames = fillIDs(n, -1)
	}
	insts := batch.InstID
	if insts == nil {
		insts = fillIDs(n, -1)
	}
	if len(frames) != n || len(insts) != n {
		return nil, fmt.Errorf("field: id slices (%d frames, %d insts) disagree with %d rays",
			len(frames), len(insts), n)
	}
	for _, fr := range frames {
		if fr < 0 {
			continue
		}
		if err := f.meta.CheckFrame(fr); err != nil {
			return nil, err
		}
	}
	for _, id := range insts {
		if err := f.meta.CheckInst(id); err != nil {
			return nil, err
		}
	}
	nearFar := batch.NearFar
	if nearFar == nil {
		nearFar = make([][2]float64, n)
		for i := range nearFar {
			nearFar[i] = f.nearFarFor(batch.Field2Cam[i])
		}
	} else if len(nearFar) != n {
		return nil, fmt.Errorf("field: %d depth bounds for %d rays", len(nearFar), n)
	}
	dirs := make([]geom.Vec3, n)
	for i, px := range batch.Pixels {
		dirs[i] = pixelRay(batch.Kinv, px)
	}
	return &SampleContext{
		Kinv:      batch.Kinv,
		Dirs:      dirs,
		FrameID:   frames,
		InstID:    insts,
		Field2Cam: batch.Field2Cam,
		NearFar:   nearFar,
	}, nil
}

// pixelRay lifts a pixel through the inverse intrinsics onto the z=1 plane.
func pixelRay(kinv [3][3]float64, px [2]float64) geom.Vec3 {
	h := [3]float64{px[0], px[1], 1}
	var d [3]float64
	for r := 0; r < 3; r++ {
		d[r] = kinv[r][0]*h[0] + kinv[r][1]*h[1] + kinv[r][2]*h[2]
	}
	return geom.V3From(d)
}

// nearFarFor bounds ray depths by the support box as seen from a camera
// pose: the camera-to-box-center distance minus and plus the bounding
// radius, floored at a small positive near plane.
func (f *Field) nearFarFor(field2cam geom.SE3) [2]float64 {
	cam := field2cam.ApplyInverse(geom.V3(0, 0, 0)).Data()
	center := f.aabb.Center()
	var radius, dist float64
	for i := 0; i < 3; i++ {
		half := (f.aabb.Max[i] - f.aabb.Min[i]) / 2
		radius += half * half
		d := cam[i] - center[i]
		dist += d * d
	}
	radius = math.Sqrt(radius)
	dist = math.Sqrt(dist)
	near := math.Max(dist-radius, 1e-3)
	far := dist + radius
	if far <= near {
		far = near + 1e-3
	}
	return [2]float64{near, far}
}

func fillIDs(n, v int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = v
	}
	return out
}
