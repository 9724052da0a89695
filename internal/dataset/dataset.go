// Package dataset carries the bookkeeping a fitted sequence needs: how many
// frames and instances exist, where each video starts in the global frame
// numbering, and an optional skeleton reference used to seed articulated
// motion.
package dataset

import (
	"encoding/json"
	"fmt"
	"os"
)

// Metadata describes the sequence collection a field is fitted to. Frame ids
// are global across videos; instance ids index videos. A negative instance
// id selects the mean instance embedding downstream.
type Metadata struct {
	NumFrames    int
	NumInst      int
	FrameOffsets []int // video i spans [FrameOffsets[i], FrameOffsets[i+1])
	Skeleton     *SkeletonRef
}

// NewMetadata builds metadata from per-video frame counts.
func NewMetadata(framesPerVideo []int) (*Metadata, error) {
	if len(framesPerVideo) == 0 {
		return nil, fmt.Errorf("dataset: no videos")
	}
	m := &Metadata{
		NumInst:      len(framesPerVideo),
		FrameOffsets: make([]int, len(framesPerVideo)+1),
	}
	for i, n := range framesPerVideo {
		if n <= 0 {
			return nil, fmt.Errorf("dataset: video %d has %d frames", i, n)
		}
		m.FrameOffsets[i+1] = m.FrameOffsets[i] + n
	}
	m.NumFrames = m.FrameOffsets[len(framesPerVideo)]
	return m, nil
}

// VideoOfFrame returns the video owning a global frame id.
func (m *Metadata) VideoOfFrame(frame int) (int, error) {
	if frame < 0 || frame >= m.NumFrames {
		return 0, fmt.Errorf("dataset: frame %d out of range [0,%d)", frame, m.NumFrames)
	}
	for i := 0; i < m.NumInst; i++ {
		if frame < m.FrameOffsets[i+1] {
			return i, nil
		}
	}
	return 0, fmt.Errorf("dataset: frame offsets are inconsistent at frame %d", frame)
}

// CheckFrame validates a global frame id.
func (m *Metadata) CheckFrame(frame int) error {
	if frame < 0 || frame >= m.NumFrames {
		return fmt.Errorf("dataset: frame %d out of range [0,%d)", frame, m.NumFrames)
	}
	return nil
}

// CheckInst validates an instance id. Negative ids are allowed and stand for
// the mean instance.
func (m *Metadata) CheckInst(inst int) error {
	if inst >= m.NumInst {
		return fmt.Errorf("dataset: instance %d out of range [0,%d)", inst, m.NumInst)
	}
	return nil
}

// SkeletonRef is an externally supplied kinematic tree. Bones are stored
// parent-before-child: Parents[i] < i for every bone, with -1 marking roots.
// RestAngles are so(3) joint rotations and Lengths the parent-to-joint
// offsets along the rest directions.
type SkeletonRef struct {
	Names      []string     `json:"names"`
	Parents    []int        `json:"parents"`
	RestAngles [][3]float64 `json:"rest_angles"`
	Lengths    []float64    `json:"lengths"`
	Scale      float64      `json:"scale,omitempty"`
}

// NumBones returns the bone count.
func (s *SkeletonRef) NumBones() int { return len(s.Parents) }

// Validate checks tree ordering and per-bone array lengths.
func (s *SkeletonRef) Validate() error {
	n := len(s.Parents)
	if n == 0 {
		return fmt.Errorf("dataset: skeleton has no bones")
	}
	if len(s.RestAngles) != n || len(s.Lengths) != n {
		return fmt.Errorf("dataset: skeleton arrays disagree: %d parents, %d angles, %d lengths",
			n, len(s.RestAngles), len(s.Lengths))
	}
	if len(s.Names) != 0 && len(s.Names) != n {
		return fmt.Errorf("dataset: skeleton has %d names for %d bones", len(s.Names), n)
	}
	for i, p := range s.Parents {
		if p >= i {
			return fmt.Errorf("dataset: bone %d has parent %d, want parent before child", i, p)
		}
		if p < -1 {
			return fmt.Errorf("dataset: bone %d has parent %d", i, p)
		}
	}
	for i, l := range s.Lengths {
		if l < 0 {
			return fmt.Errorf("dataset: bone %d has negative length %g", i, l)
		}
	}
	return nil
}

// LoadSkeleton reads and validates a skeleton reference from a JSON file.
func LoadSkeleton(path string) (*SkeletonRef, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("dataset: %w", err)
	}
	var s SkeletonRef
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("dataset: parse skeleton %s: %w", path, err)
	}
	if s.Scale == 0 {
		s.Scale = 1
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("%w (from %s)", err, path)
	}
	return &s, nil
}
