package dataset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestNewMetadata(t *testing.T) {
	m, err := NewMetadata([]int{3, 5, 2})
	if err != nil {
		t.Fatalf("NewMetadata: %v", err)
	}
	if m.NumFrames != 10 || m.NumInst != 3 {
		t.Errorf("got %d frames / %d instances, want 10 / 3", m.NumFrames, m.NumInst)
	}
	if diff := cmp.Diff([]int{0, 3, 8, 10}, m.FrameOffsets); diff != "" {
		t.Errorf("offsets mismatch (-want +got):\n%s", diff)
	}

	cases := []struct {
		frame int
		video int
	}{
		{0, 0}, {2, 0}, {3, 1}, {7, 1}, {8, 2}, {9, 2},
	}
	for _, tc := range cases {
		v, err := m.VideoOfFrame(tc.frame)
		if err != nil {
			t.Fatalf("VideoOfFrame(%d): %v", tc.frame, err)
		}
		if v != tc.video {
			t.Errorf("VideoOfFrame(%d) = %d, want %d", tc.frame, v, tc.video)
		}
	}
	if _, err := m.VideoOfFrame(10); err == nil {
		t.Error("VideoOfFrame(10): want error, got nil")
	}
	if err := m.CheckInst(-1); err != nil {
		t.Errorf("CheckInst(-1) should allow the mean instance: %v", err)
	}
	if err := m.CheckInst(3); err == nil {
		t.Error("CheckInst(3): want error, got nil")
	}
}

func TestNewMetadataRejectsEmptyVideo(t *testing.T) {
	if _, err := NewMetadata([]int{3, 0}); err == nil {
		t.Error("want error for zero-length video")
	}
	if _, err := NewMetadata(nil); err == nil {
		t.Error("want error for no videos")
	}
}

func TestSkeletonValidate(t *testing.T) {
	valid := &SkeletonRef{
		Parents:    []int{-1, 0, 1, 0},
		RestAngles: [][3]float64{{}, {0.1, 0, 0}, {0, 0.2, 0}, {}},
		Lengths:    []float64{0, 0.3, 0.25, 0.4},
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	cases := []struct {
		name string
		s    SkeletonRef
	}{
		{"empty", SkeletonRef{}},
		{"child before parent", SkeletonRef{
			Parents:    []int{-1, 2, 1},
			RestAngles: make([][3]float64, 3),
			Lengths:    make([]float64, 3),
		}},
		{"length mismatch", SkeletonRef{
			Parents:    []int{-1, 0},
			RestAngles: make([][3]float64, 2),
			Lengths:    make([]float64, 1),
		}},
		{"negative bone length", SkeletonRef{
			Parents:    []int{-1},
			RestAngles: make([][3]float64, 1),
			Lengths:    []float64{-0.1},
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.s.Validate(); err == nil {
				t.Error("want error, got nil")
			}
		})
	}
}

func TestLoadSkeleton(t *testing.T) {
	const src = `{
  "names": ["root", "spine"],
  "parents": [-1, 0],
  "rest_angles": [[0, 0, 0], [0.5, 0, 0]],
  "lengths": [0, 0.4]
}`
	path := filepath.Join(t.TempDir(), "skel.json")
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}
	s, err := LoadSkeleton(path)
	if err != nil {
		t.Fatalf("LoadSkeleton: %v", err)
	}
	if s.NumBones() != 2 || s.Scale != 1 {
		t.Errorf("got %d bones scale %g, want 2 bones scale 1", s.NumBones(), s.Scale)
	}
	if s.RestAngles[1][0] != 0.5 {
		t.Errorf("rest angle = %g, want 0.5", s.RestAngles[1][0])
	}

	if _, err := LoadSkeleton(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("want error for missing file")
	}
}
