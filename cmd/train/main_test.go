package main

import (
	"math"
	"math/rand"
	"testing"

	"github.com/morph4d/morph4d/internal/config"
	"github.com/morph4d/morph4d/internal/dataset"
	"github.com/morph4d/morph4d/internal/field"
	"github.com/morph4d/morph4d/internal/optim"
)

func TestSceneTarget(t *testing.T) {
	sc := newScene(0.1, 8)

	// Frame 0 puts the ball at (0, ampl, 0); its projection sits below the
	// image center (pixel v grows with field y here).
	ctr := sc.center(0)
	if ctr[0] != 0 || ctr[1] != sc.ampl {
		t.Fatalf("center(0) = %v, want (0, %g, 0)", ctr, sc.ampl)
	}
	z := ctr[2] + sc.camDist
	u := float64(imageSize)/2 + focal*ctr[0]/z
	v := float64(imageSize)/2 + focal*ctr[1]/z

	rgb, sil := sc.target([2]float64{u, v}, 0)
	if sil != 1 {
		t.Errorf("projected center should hit the ball, sil = %g", sil)
	}
	if rgb != ballColor {
		t.Errorf("hit color = %v, want %v", rgb, ballColor)
	}

	rgb, sil = sc.target([2]float64{0, 0}, 0)
	if sil != 0 || rgb != [3]float64{0, 0, 0} {
		t.Errorf("image corner should miss the ball, got rgb=%v sil=%g", rgb, sil)
	}
}

func TestSceneCenterOrbits(t *testing.T) {
	sc := newScene(0.1, 4)
	seen := make(map[[3]float64]bool)
	for fr := 0; fr < 4; fr++ {
		c := sc.center(fr)
		seen[c] = true
		r := math.Hypot(c[0], c[1])
		if math.Abs(r-sc.ampl) > 1e-12 {
			t.Errorf("frame %d: orbit radius %g, want %g", fr, r, sc.ampl)
		}
	}
	if len(seen) != 4 {
		t.Errorf("expected 4 distinct positions, got %d", len(seen))
	}
}

func TestSceneBatch(t *testing.T) {
	meta, err := dataset.NewMetadata([]int{3, 5})
	if err != nil {
		t.Fatal(err)
	}
	sc := newScene(0.1, meta.NumFrames)
	rng := rand.New(rand.NewSource(3))

	batch, rgb, sil, err := sc.batch(rng, 32, meta)
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	if len(batch.Pixels) != 32 || len(rgb) != 32 || len(sil) != 32 {
		t.Fatalf("batch sizes %d/%d/%d, want 32", len(batch.Pixels), len(rgb), len(sil))
	}
	for i, px := range batch.Pixels {
		if px[0] < 0 || px[0] >= imageSize || px[1] < 0 || px[1] >= imageSize {
			t.Errorf("pixel %d out of bounds: %v", i, px)
		}
		fr := batch.FrameID[i]
		if fr < 0 || fr >= meta.NumFrames {
			t.Errorf("frame %d out of range", fr)
		}
		inst, err := meta.VideoOfFrame(fr)
		if err != nil {
			t.Fatal(err)
		}
		if batch.InstID[i] != inst {
			t.Errorf("ray %d: inst %d for frame %d, want %d", i, batch.InstID[i], fr, inst)
		}
		if sil[i] != 0 && sil[i] != 1 {
			t.Errorf("silhouette %g not binary", sil[i])
		}
	}
}

func TestClampPixel(t *testing.T) {
	if got := clampPixel(-3); got != 0 {
		t.Errorf("clampPixel(-3) = %g, want 0", got)
	}
	if got := clampPixel(400); got >= imageSize {
		t.Errorf("clampPixel(400) = %g, want < %d", got, imageSize)
	}
	if got := clampPixel(12.5); got != 12.5 {
		t.Errorf("clampPixel(12.5) = %g, want 12.5", got)
	}
}

func TestTrainStep(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Merge(&config.Config{
		FramesPerVideo: []int{2},
		RaysPerBatch:   intPtr(4),
	})

	meta, err := dataset.NewMetadata(cfg.GetFramesPerVideo())
	if err != nil {
		t.Fatal(err)
	}
	rng := rand.New(rand.NewSource(5))

	fopts := cfg.FieldOptions()
	fopts.DepthSamples = 4
	model, err := field.NewDeformable("rigid", meta, fopts, cfg.WarpOptions(), rng)
	if err != nil {
		t.Fatalf("NewDeformable: %v", err)
	}
	if err := model.InitProxy(cfg.ProxySpec()); err != nil {
		t.Fatalf("InitProxy: %v", err)
	}
	model.SetTraining(true)

	sc := newScene(cfg.GetSphereRadius(), meta.NumFrames)
	opt := optim.NewAdam(model.Params(), cfg.GetLearningRate())

	metrics, err := trainStep(model, sc, cfg, rng, opt)
	if err != nil {
		t.Fatalf("trainStep: %v", err)
	}
	for _, name := range []string{"total", "rgb", "silhouette", "gauss_skin", "soft_deform"} {
		v, ok := metrics[name]
		if !ok {
			t.Errorf("missing metric %s", name)
			continue
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Errorf("metric %s = %g", name, v)
		}
	}
	if metrics["total"] < metrics["rgb"] {
		t.Errorf("total %g below rgb %g", metrics["total"], metrics["rgb"])
	}
}

func intPtr(v int) *int { return &v }
