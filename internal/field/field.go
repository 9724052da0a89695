// Package field implements the canonical shape and appearance model and its
// deformable extension. A Field holds an SDF-backed radiance representation
// queried in a canonical rest space; a Deformable couples it with one motion
// model that carries query points between canonical and per-frame observed
// space, plus the cycle-consistency, density-matching and soft-deformation
// losses that keep the two spaces mutually coherent.
//
// Signed distances are negative inside throughout. All learned quantities
// live on the autodiff tape.
package field

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/spatial/r3"

	ad "github.com/morph4d/morph4d/internal/autodiff"
	"github.com/morph4d/morph4d/internal/dataset"
	"github.com/morph4d/morph4d/internal/geom"
	"github.com/morph4d/morph4d/internal/losses"
	"github.com/morph4d/morph4d/internal/mesh"
	"github.com/morph4d/morph4d/internal/nn"
	"github.com/morph4d/morph4d/internal/optim"
	"github.com/morph4d/morph4d/internal/warp"
)

// Named keys for loss and query outputs, used for metric logging.
const (
	KeyCycDist       = "cyc_dist"
	KeyCycDistStatic = "cyc_dist_static"
	KeySkinEntropy   = "skin_entropy"
	KeyDeltaSkin     = "delta_skin"
	KeyGaussDensity  = "gauss_density"
)

// Options are the field hyperparameters.
type Options struct {
	Depth        int // hidden layers in the geometry trunk
	Width        int
	NumFreqXYZ   int
	NumFreqDir   int
	ApprChannels int // appearance code width
	ApprNumFreqT int // frequency bands for the appearance time input
	InstChannels int // instance code width
	Skips        []int
	DepthSamples int // samples per ray between near and far

	InitBeta     float64 // initial SDF-to-density beta
	InitScale    float64 // initial geometry scale
	SphereRadius float64 // analytic seed-sphere radius
	ColorAct     bool    // sigmoid on the color head
	TwoBranch    bool    // suppress the merged gauss density output
}

// DefaultOptions returns the standard field hyperparameters.
func DefaultOptions() Options {
	return Options{
		Depth:        5,
		Width:        64,
		NumFreqXYZ:   6,
		NumFreqDir:   2,
		ApprChannels: 8,
		ApprNumFreqT: 4,
		InstChannels: 8,
		Skips:        []int{3},
		DepthSamples: 16,
		InitBeta:     0.1,
		InitScale:    0.1,
		SphereRadius: 0.1,
		ColorAct:     true,
	}
}

// Field is the canonical-space model: a geometry trunk with an SDF head, a
// view- and time-conditioned color head, per-instance codes, and the
// learned VolSDF sharpness converting signed distance to volume density.
// The support box tracks the installed proxy geometry.
type Field struct {
	opts Options
	meta *dataset.Metadata

	xyzEnc  nn.PosEncoding
	dirEnc  nn.PosEncoding
	timeEnc nn.PosEncoding

	trunk    *nn.MLP
	sdfHead  *nn.Linear
	colorMLP *nn.MLP
	apprProj *nn.Linear
	instCode *nn.Embedding

	logIbeta *ad.Value // log(1/beta)
	logScale *ad.Value // log geometry scale on the SDF head

	aabb  geom.AABB
	proxy *mesh.Mesh

	training bool
}

// NewField builds a field over the given sequence metadata. The support box
// starts at the unit cube until a proxy is installed.
func NewField(meta *dataset.Metadata, opts Options, rng *rand.Rand) *Field {
	f := &Field{
		opts:    opts,
		meta:    meta,
		xyzEnc:  nn.NewPosEncoding(opts.NumFreqXYZ),
		dirEnc:  nn.NewPosEncoding(opts.NumFreqDir),
		timeEnc: nn.NewPosEncoding(opts.ApprNumFreqT),
		aabb:    geom.UnitAABB(),
	}
	trunkIn := f.xyzEnc.Dim(3) + opts.InstChannels
	f.trunk = nn.NewMLP(rng, trunkIn, opts.Width, opts.Depth, opts.Width, opts.Skips, nn.ActReLU)
	f.sdfHead = nn.NewLinear(rng, opts.Width, 1)
	colorIn := opts.Width + f.dirEnc.Dim(3) + opts.ApprChannels
	f.colorMLP = nn.NewMLP(rng, colorIn, opts.Width/2, 2, 3, nil, nn.ActReLU)
	f.apprProj = nn.NewLinear(rng, f.timeEnc.Dim(1), opts.ApprChannels)
	f.instCode = nn.NewEmbedding(rng, meta.NumInst, opts.InstChannels)
	f.logIbeta = ad.Param(math.Log(1 / opts.InitBeta))
	f.logScale = ad.Param(math.Log(opts.InitScale))
	return f
}

// Metadata returns the fitted sequence description.
func (f *Field) Metadata() *dataset.Metadata { return f.meta }

// Opts returns the field hyperparameters.
func (f *Field) Opts() Options { return f.opts }

// Bounds returns the current support box.
func (f *Field) Bounds() geom.AABB { return f.aabb }

// Proxy returns the installed proxy geometry, nil before InitProxy.
func (f *Field) Proxy() *mesh.Mesh { return f.proxy }

// LogIbeta exposes the learned density sharpness (log 1/beta).
func (f *Field) LogIbeta() *ad.Value { return f.logIbeta }

// SetTraining toggles the training-only loss paths.
func (f *Field) SetTraining(on bool) { f.training = on }

// Training reports whether training-only losses are active.
func (f *Field) Training() bool { return f.training }

// Params returns every trainable leaf of the base field.
func (f *Field) Params() []*ad.Value {
	ps := f.trunk.Params()
	ps = f.sdfHead.Params(ps)
	ps = append(ps, f.colorMLP.Params()...)
	ps = f.apprProj.Params(ps)
	ps = append(ps, f.instCode.Params()...)
	return append(ps, f.logIbeta, f.logScale)
}

// timeValue maps a frame id to normalized time in [0,1]. Negative ids, the
// mean-frame sentinel, map to the midpoint.
func (f *Field) timeValue(frame int) float64 {
	if frame < 0 {
		return 0.5
	}
	if f.meta.NumFrames <= 1 {
		return 0
	}
	return float64(frame) / float64(f.meta.NumFrames-1)
}

func (f *Field) features(p geom.Vec3, inst int) []*ad.Value {
	in := f.xyzEnc.Encode(p[:])
	in = append(in, f.instCode.Lookup(inst)...)
	return f.trunk.Forward(in)
}

func (f *Field) sdfFromFeatures(feat []*ad.Value) *ad.Value {
	return f.sdfHead.Forward(feat)[0].Mul(f.logScale.Exp())
}

func (f *Field) apprCode(frame int) []*ad.Value {
	t := ad.Const(f.timeValue(frame))
	return f.apprProj.Forward(f.timeEnc.Encode([]*ad.Value{t}))
}

func (f *Field) color(feat []*ad.Value, dir geom.Vec3, frame int) geom.Vec3 {
	d := dir.Normalize()
	in := append(append(make([]*ad.Value, 0, len(feat)), feat...), f.dirEnc.Encode(d[:])...)
	in = append(in, f.apprCode(frame)...)
	out := f.colorMLP.Forward(in)
	if f.opts.ColorAct {
		return geom.Vec3{out[0].Sigmoid(), out[1].Sigmoid(), out[2].Sigmoid()}
	}
	return geom.Vec3{out[0], out[1], out[2]}
}

// Sample is one field evaluation at a canonical point.
type Sample struct {
	SDF     *ad.Value
	Density *ad.Value
	RGB     geom.Vec3
}

// Query evaluates signed distance, density and color at a canonical point.
// dir is the field-frame view direction; a negative frame or instance id
// selects the mean embedding.
func (f *Field) Query(p geom.Vec3, dir geom.Vec3, frame, inst int) Sample {
	feat := f.features(p, inst)
	sdf := f.sdfFromFeatures(feat)
	return Sample{
		SDF:     sdf,
		Density: VolSDFDensity(sdf, f.logIbeta),
		RGB:     f.color(feat, dir, frame),
	}
}

// SDF evaluates just the signed distance at a canonical point.
func (f *Field) SDF(p geom.Vec3, inst int) *ad.Value {
	return f.sdfFromFeatures(f.features(p, inst))
}

// Density evaluates just the volume density at a canonical point.
func (f *Field) Density(p geom.Vec3, inst int) *ad.Value {
	return VolSDFDensity(f.SDF(p, inst), f.logIbeta)
}

// Occupancy evaluates the density normalized into (0,1): the Laplace CDF of
// the negated signed distance.
func (f *Field) Occupancy(p geom.Vec3, inst int) *ad.Value {
	return VolSDFOccupancy(f.SDF(p, inst), f.logIbeta)
}

// VolSDFOccupancy is the Laplace CDF of -sdf with scale beta = exp(-logIbeta):
// 0.5*exp(-sdf/beta) outside, 1 - 0.5*exp(sdf/beta) inside. It crosses 0.5
// at the surface and decreases monotonically in sdf.
func VolSDFOccupancy(sdf, logIbeta *ad.Value) *ad.Value {
	scaled := sdf.Mul(logIbeta.Exp())
	if sdf.Data >= 0 {
		return scaled.Neg().Exp().MulConst(0.5)
	}
	return scaled.Exp().MulConst(-0.5).AddConst(1)
}

// VolSDFDensity converts a signed distance to volume density: the occupancy
// scaled by 1/beta. At the surface the density is half of 1/beta.
func VolSDFDensity(sdf, logIbeta *ad.Value) *ad.Value {
	return logIbeta.Exp().Mul(VolSDFOccupancy(sdf, logIbeta))
}

// SamplePointsAABB draws n points uniformly from the support box grown by
// extendFactor times its half-extent on every side.
func (f *Field) SamplePointsAABB(rng *rand.Rand, n int, extendFactor float64) []geom.Vec3 {
	return geom.LiftPoints(f.aabb.Extend(extendFactor).SampleUniform(rng, n))
}

// CamToField maps camera-space points and view directions into the field
// frame through the inverse of each per-point field-to-camera pose. Slices
// are parallel per point; mismatches panic like out-of-range indexing.
func (f *Field) CamToField(xyzCam, dirCam []geom.Vec3, field2cam []geom.SE3) (xyz, dir []geom.Vec3) {
	if len(dirCam) != len(xyzCam) || len(field2cam) != len(xyzCam) {
		panic("field: CamToField length mismatch")
	}
	xyz = make([]geom.Vec3, len(xyzCam))
	dir = make([]geom.Vec3, len(xyzCam))
	for i := range xyzCam {
		xyz[i] = field2cam[i].ApplyInverse(xyzCam[i])
		dir[i] = field2cam[i].RotateInverseOnly(dirCam[i])
	}
	return xyz, dir
}

// FieldToCam maps field-frame points into the camera frame.
func (f *Field) FieldToCam(xyz []geom.Vec3, field2cam []geom.SE3) []geom.Vec3 {
	if len(field2cam) != len(xyz) {
		panic("field: FieldToCam length mismatch")
	}
	out := make([]geom.Vec3, len(xyz))
	for i := range xyz {
		out[i] = field2cam[i].Apply(xyz[i])
	}
	return out
}

// CycleLoss measures how far each time-t point sits from its canonical
// counterpart, the static-deviation term. Returns nil outside training.
func (f *Field) CycleLoss(xyz, xyzT []geom.Vec3, frames, insts []int, bctx *warp.BatchContext, aux *warp.Aux) Terms {
	if !f.training {
		return nil
	}
	dist := make([]*ad.Value, len(xyz))
	for i := range xyz {
		dist[i] = geom.Dist(xyz[i], xyzT[i])
	}
	terms := Terms{KeyCycDistStatic: dist}
	terms.absorbAux(aux)
	return terms
}

// MLPInit fits the SDF head to a seed signed-distance function: Adam over
// points sampled inside the support box, then the least-squares scale
// aligning prediction to target folded into the geometry scale. Returns the
// final mean squared fitting error.
func (f *Field) MLPInit(sdfFn func([]r3.Vec) []float64, rng *rand.Rand, steps int) (float64, error) {
	const nfit = 256
	raw := f.aabb.SampleUniform(rng, nfit)
	r3pts := make([]r3.Vec, nfit)
	for i, p := range raw {
		r3pts[i] = r3.Vec{X: p[0], Y: p[1], Z: p[2]}
	}
	target := sdfFn(r3pts)
	pts := geom.LiftPoints(raw)

	params := f.trunk.Params()
	params = f.sdfHead.Params(params)
	params = append(params, f.logScale)
	opt := optim.NewAdam(params, 1e-2)

	var mse float64
	for s := 0; s < steps; s++ {
		opt.ZeroGrad()
		terms := make([]*ad.Value, nfit)
		for i := range pts {
			terms[i] = f.SDF(pts[i], -1).AddConst(-target[i]).Square()
		}
		loss := ad.Mean(terms)
		ad.Backward(loss)
		opt.Step()
		mse = loss.Data
	}

	pred := make([]*ad.Value, nfit)
	tgt := make([]*ad.Value, nfit)
	for i := range pts {
		pred[i] = f.SDF(pts[i], -1)
		tgt[i] = ad.Const(target[i])
	}
	s, err := losses.AlignScale(pred, tgt)
	if err != nil {
		return mse, fmt.Errorf("field: align seeded sdf: %w", err)
	}
	if s.Data > 0 {
		f.logScale.Data += math.Log(s.Data)
	}
	return mse, nil
}

// ProxySpec selects the initial proxy geometry. An empty Path means a UV
// sphere of the configured seed radius; otherwise an OBJ file, rotated by
// the Euler angles and scaled.
type ProxySpec struct {
	Path     string
	Scale    float64
	EulerXYZ [3]float64 // radians
}

// InitProxy installs the proxy geometry and rebuilds the support box from
// its bounds. The proxy also backs mesh-mode SDF seeding.
func (f *Field) InitProxy(spec ProxySpec) error {
	var m *mesh.Mesh
	if spec.Path == "" {
		m = mesh.UVSphere(f.opts.SphereRadius, 8, 16)
	} else {
		var err error
		m, err = mesh.LoadOBJ(spec.Path)
		if err != nil {
			return fmt.Errorf("field: load proxy: %w", err)
		}
	}
	if e := spec.EulerXYZ; e != [3]float64{} {
		m.ApplyEuler(e[0], e[1], e[2])
	}
	if spec.Scale != 0 && spec.Scale != 1 {
		m.Scale(spec.Scale)
	}
	if err := m.Validate(); err != nil {
		return fmt.Errorf("field: proxy: %w", err)
	}
	f.proxy = m
	f.aabb = m.Bounds()
	return nil
}

// SeedMode selects the signed-distance function used to seed the geometry
// MLP before training.
type SeedMode int

const (
	// SeedSphere fits an analytic sphere of the configured radius.
	SeedSphere SeedMode = iota
	// SeedMesh fits the exact signed distance of the proxy mesh.
	SeedMesh
	// SeedSkeleton fits the distance implied by a skeletal warp's bones.
	SeedSkeleton
)

// ParseSeedMode reads a seed-mode string: "sphere", "mesh" or "skeleton".
func ParseSeedMode(s string) (SeedMode, error) {
	switch s {
	case "sphere":
		return SeedSphere, nil
	case "mesh":
		return SeedMesh, nil
	case "skeleton":
		return SeedSkeleton, nil
	}
	return 0, fmt.Errorf("field: unknown seed mode %q", s)
}

func (m SeedMode) String() string {
	switch m {
	case SeedSphere:
		return "sphere"
	case SeedMesh:
		return "mesh"
	case SeedSkeleton:
		return "skeleton"
	}
	return "unknown"
}

// InitSDFFunc returns the seed function for a mode. The base field knows
// sphere and mesh; skeleton seeding needs a skeletal warp.
func (f *Field) InitSDFFunc(mode SeedMode) (func([]r3.Vec) []float64, error) {
	switch mode {
	case SeedSphere:
		r := f.opts.SphereRadius
		return func(pts []r3.Vec) []float64 {
			out := make([]float64, len(pts))
			for i, p := range pts {
				out[i] = math.Sqrt(p.X*p.X+p.Y*p.Y+p.Z*p.Z) - r
			}
			return out
		}, nil
	case SeedMesh:
		if f.proxy == nil {
			return nil, fmt.Errorf("field: mesh seeding needs a proxy, call InitProxy first")
		}
		s, err := mesh.NewSDF(f.proxy)
		if err != nil {
			return nil, fmt.Errorf("field: proxy sdf: %w", err)
		}
		return s.Eval, nil
	case SeedSkeleton:
		return nil, fmt.Errorf("field: skeleton seeding needs a skeletal warp")
	}
	return nil, fmt.Errorf("field: unknown seed mode %d", mode)
}
