package warp

import (
	"math"
	"math/rand"

	"github.com/morph4d/morph4d/internal/dataset"
)

const halfPi = math.Pi / 2

// HumanTemplate returns the built-in humanoid tree used when no external
// skeleton reference is supplied: a spine chain with head, T-pose arms and
// two legs, 21 bones, unit-scale proportions. Rest angles aim each bone's
// segment; +z is up and +y is the figure's left.
func HumanTemplate() *dataset.SkeletonRef {
	return &dataset.SkeletonRef{
		Names: []string{
			"root", "spine", "chest", "neck", "head",
			"shoulder_l", "upperarm_l", "forearm_l", "hand_l",
			"shoulder_r", "upperarm_r", "forearm_r", "hand_r",
			"hip_l", "thigh_l", "shin_l", "foot_l",
			"hip_r", "thigh_r", "shin_r", "foot_r",
		},
		Parents: []int{
			-1, 0, 1, 2, 3,
			2, 5, 6, 7,
			2, 9, 10, 11,
			0, 13, 14, 15,
			0, 17, 18, 19,
		},
		RestAngles: [][3]float64{
			{}, {0, -halfPi, 0}, {}, {}, {},
			{0, 0, halfPi}, {}, {}, {},
			{0, 0, -halfPi}, {}, {}, {},
			{0, 0, halfPi}, {0, halfPi, 0}, {}, {0, -halfPi, 0},
			{0, 0, -halfPi}, {0, halfPi, 0}, {}, {0, -halfPi, 0},
		},
		Lengths: []float64{
			0, 0.25, 0.25, 0.10, 0.15,
			0.18, 0.25, 0.22, 0.08,
			0.18, 0.25, 0.22, 0.08,
			0.10, 0.40, 0.40, 0.12,
			0.10, 0.40, 0.40, 0.12,
		},
		Scale: 1,
	}
}

// QuadTemplate returns the built-in quadruped tree: a horizontal spine with
// neck, head and tail plus four three-segment legs, 24 bones. +x is
// forward.
func QuadTemplate() *dataset.SkeletonRef {
	return &dataset.SkeletonRef{
		Names: []string{
			"root", "spine1", "spine2", "spine3", "neck", "head",
			"tail1", "tail2",
			"hip_fl", "upper_fl", "lower_fl", "foot_fl",
			"hip_fr", "upper_fr", "lower_fr", "foot_fr",
			"hip_bl", "upper_bl", "lower_bl", "foot_bl",
			"hip_br", "upper_br", "lower_br", "foot_br",
		},
		Parents: []int{
			-1, 0, 1, 2, 3, 4,
			0, 6,
			3, 8, 9, 10,
			3, 12, 13, 14,
			0, 16, 17, 18,
			0, 20, 21, 22,
		},
		RestAngles: [][3]float64{
			{}, {}, {}, {}, {0, -0.7, 0}, {0, 0.5, 0},
			{0, 0, math.Pi}, {},
			{0, 0, 1.2}, {0, halfPi, 0}, {}, {0, -halfPi, 0},
			{0, 0, -1.2}, {0, halfPi, 0}, {}, {0, -halfPi, 0},
			{0, 0, 1.2}, {0, halfPi, 0}, {}, {0, -halfPi, 0},
			{0, 0, -1.2}, {0, halfPi, 0}, {}, {0, -halfPi, 0},
		},
		Lengths: []float64{
			0, 0.15, 0.15, 0.15, 0.12, 0.12,
			0.12, 0.12,
			0.05, 0.20, 0.20, 0.05,
			0.05, 0.20, 0.20, 0.05,
			0.05, 0.20, 0.20, 0.05,
			0.05, 0.20, 0.20, 0.05,
		},
		Scale: 1,
	}
}

// bagOfBonesSkeleton scatters n free bones: no tree, random segment
// directions and lengths. Per-frame translation deltas give each bone full
// rigid freedom.
func bagOfBonesSkeleton(n int, rng *rand.Rand) *dataset.SkeletonRef {
	s := &dataset.SkeletonRef{
		Parents:    make([]int, n),
		RestAngles: make([][3]float64, n),
		Lengths:    make([]float64, n),
		Scale:      1,
	}
	for i := 0; i < n; i++ {
		s.Parents[i] = -1
		for k := 0; k < 3; k++ {
			s.RestAngles[i][k] = (rng.Float64()*2 - 1) * math.Pi
		}
		s.Lengths[i] = 0.05 + 0.25*rng.Float64()
	}
	return s
}
