// Package warp implements the motion models that map points between the
// canonical rest space and per-frame observed space: a rigid identity, a
// dense MLP flow field, Gaussian-bone skinning driven by forward kinematics,
// and a composition of skinning with a dense residual.
//
// All warps run on the differentiation tape. Frame ids select per-frame
// articulation; a negative instance id selects the mean instance code.
package warp

import (
	"fmt"
	"math/rand"
	"strings"

	ad "github.com/morph4d/morph4d/internal/autodiff"
	"github.com/morph4d/morph4d/internal/dataset"
	"github.com/morph4d/morph4d/internal/geom"
	"gonum.org/v1/gonum/spatial/r3"
)

// Kind is the closed set of motion models.
type Kind int

const (
	// KindRigid leaves object space untouched; all motion lives in the
	// per-frame root transform.
	KindRigid Kind = iota
	// KindDense warps points through a pair of flow MLPs.
	KindDense
	// KindBones is a bag of independent Gaussian bones without a tree.
	KindBones
	// KindSkelHuman articulates a humanoid kinematic tree.
	KindSkelHuman
	// KindSkelQuad articulates a quadruped kinematic tree.
	KindSkelQuad
)

// Tag is a parsed motion-type selector. Soft marks a composite model that
// layers a dense residual on top of a skeletal warp.
type Tag struct {
	Kind Kind
	Soft bool
}

// ParseTag reads a motion-type string. Accepted forms: "rigid", "dense",
// "bob", "skel-human", "skel-quad" and composites "comp_<skeleton>_dense".
func ParseTag(s string) (Tag, error) {
	switch s {
	case "rigid":
		return Tag{Kind: KindRigid}, nil
	case "dense":
		return Tag{Kind: KindDense}, nil
	case "bob":
		return Tag{Kind: KindBones}, nil
	case "skel-human":
		return Tag{Kind: KindSkelHuman}, nil
	case "skel-quad":
		return Tag{Kind: KindSkelQuad}, nil
	}
	if rest, ok := strings.CutPrefix(s, "comp_"); ok {
		base, soft, ok := strings.Cut(rest, "_")
		if !ok {
			return Tag{}, fmt.Errorf("warp: composite tag %q needs a soft component", s)
		}
		if soft != "dense" {
			return Tag{}, fmt.Errorf("warp: unsupported soft component %q in %q", soft, s)
		}
		inner, err := ParseTag(base)
		if err != nil {
			return Tag{}, fmt.Errorf("warp: composite tag %q: %w", s, err)
		}
		switch inner.Kind {
		case KindBones, KindSkelHuman, KindSkelQuad:
			inner.Soft = true
			return inner, nil
		default:
			return Tag{}, fmt.Errorf("warp: composite tag %q needs a skeletal base", s)
		}
	}
	return Tag{}, fmt.Errorf("warp: unknown motion tag %q", s)
}

// String renders the tag back into its canonical form.
func (t Tag) String() string {
	var base string
	switch t.Kind {
	case KindRigid:
		base = "rigid"
	case KindDense:
		base = "dense"
	case KindBones:
		base = "bob"
	case KindSkelHuman:
		base = "skel-human"
	case KindSkelQuad:
		base = "skel-quad"
	default:
		base = "unknown"
	}
	if t.Soft {
		return "comp_" + base + "_dense"
	}
	return base
}

// Skeletal reports whether the tag carries Gaussian bones.
func (t Tag) Skeletal() bool {
	switch t.Kind {
	case KindBones, KindSkelHuman, KindSkelQuad:
		return true
	}
	return false
}

// Aux carries per-point auxiliary outputs of a backward warp, consumed by
// the regularization terms: the entropy of the skinning weight distribution
// and the raw delta-skinning corrections.
type Aux struct {
	SkinEntropy []*ad.Value
	DeltaSkin   [][]*ad.Value
}

// merge folds other into a, concatenating per-point slices.
func (a *Aux) merge(other *Aux) *Aux {
	if a == nil {
		return other
	}
	if other == nil {
		return a
	}
	a.SkinEntropy = append(a.SkinEntropy, other.SkinEntropy...)
	a.DeltaSkin = append(a.DeltaSkin, other.DeltaSkin...)
	return a
}

// BatchContext caches articulation for one training step. Rest holds the
// per-bone rest pose, Time the per-frame bone poses keyed by frame id. The
// context must be rebuilt for every batch; reusing one across steps serves
// stale kinematics.
type BatchContext struct {
	Rest []geom.DualQuat
	Time map[int][]geom.DualQuat
}

// TimePose returns the cached articulation for a frame, if present.
func (b *BatchContext) TimePose(frame int) ([]geom.DualQuat, bool) {
	if b == nil || b.Time == nil {
		return nil, false
	}
	dq, ok := b.Time[frame]
	return dq, ok
}

// RestPose returns the cached rest articulation, if present.
func (b *BatchContext) RestPose() ([]geom.DualQuat, bool) {
	if b == nil || b.Rest == nil {
		return nil, false
	}
	return b.Rest, true
}

// Warp maps points between canonical and time-t object space.
//
// Forward articulates canonical points into time-t space; Backward
// un-articulates time-t points into canonical space and reports auxiliary
// outputs. PostWarpDist2 isolates the squared displacement of the model's
// soft (non-skeletal) component. Implementations panic on length mismatches
// between pts, frames and insts, as out-of-range indexing would.
type Warp interface {
	Forward(pts []geom.Vec3, frames, insts []int, bctx *BatchContext) []geom.Vec3
	Backward(pts []geom.Vec3, frames, insts []int, bctx *BatchContext) ([]geom.Vec3, *Aux)
	PostWarpDist2(pts []geom.Vec3, frames, insts []int) []*ad.Value
	Params() []*ad.Value
}

// BoneField is implemented by skeletal warps. Bone poses are object-space
// dual quaternions; GaussSDF runs off the tape and carries no gradient.
type BoneField interface {
	Warp
	GaussDensity(pts []geom.Vec3, bones []geom.DualQuat) []*ad.Value
	GaussSDF(pts []r3.Vec) []float64
	GaussExtents() [][3]float64
	Articulation() *Articulation
	LogIbeta() *ad.Value
}

// Options are warp hyperparameters shared by the factory.
type Options struct {
	NumBones     int // bag-of-bones count when no skeleton dictates one
	TimeEmbedDim int
	InstEmbedDim int
	NumFreqXYZ   int
	MLPWidth     int
	MLPDepth     int
}

// DefaultOptions returns the standard warp hyperparameters.
func DefaultOptions() Options {
	return Options{
		NumBones:     25,
		TimeEmbedDim: 8,
		InstEmbedDim: 8,
		NumFreqXYZ:   6,
		MLPWidth:     64,
		MLPDepth:     2,
	}
}

// New constructs the warp selected by tag. Skeleton tags use the metadata's
// external skeleton reference when present, otherwise a built-in template
// tree; the bag-of-bones variant scatters opts.NumBones free bones.
func New(tag Tag, meta *dataset.Metadata, opts Options, rng *rand.Rand) (Warp, error) {
	build := func() (Warp, error) {
		switch tag.Kind {
		case KindRigid:
			return NewRigidWarp(), nil
		case KindDense:
			return NewDenseWarp(meta, opts, rng), nil
		case KindBones:
			return NewSkinningWarp(bagOfBonesSkeleton(opts.NumBones, rng), meta, opts, rng)
		case KindSkelHuman:
			return NewSkinningWarp(skeletonOrDefault(meta, HumanTemplate()), meta, opts, rng)
		case KindSkelQuad:
			return NewSkinningWarp(skeletonOrDefault(meta, QuadTemplate()), meta, opts, rng)
		default:
			return nil, fmt.Errorf("warp: unhandled kind %d", tag.Kind)
		}
	}
	w, err := build()
	if err != nil {
		return nil, err
	}
	if !tag.Soft {
		return w, nil
	}
	sw, ok := w.(*SkinningWarp)
	if !ok {
		return nil, fmt.Errorf("warp: composite tag %q needs a skeletal base", tag)
	}
	return NewComposedWarp(sw, meta, opts, rng), nil
}

func skeletonOrDefault(meta *dataset.Metadata, def *dataset.SkeletonRef) *dataset.SkeletonRef {
	if meta != nil && meta.Skeleton != nil {
		return meta.Skeleton
	}
	return def
}

var (
	_ Warp      = (*RigidWarp)(nil)
	_ Warp      = (*DenseWarp)(nil)
	_ BoneField = (*SkinningWarp)(nil)
	_ BoneField = (*ComposedWarp)(nil)
)
