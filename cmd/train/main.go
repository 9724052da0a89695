package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand"
	"path/filepath"

	ad "github.com/morph4d/morph4d/internal/autodiff"
	"github.com/morph4d/morph4d/internal/config"
	"github.com/morph4d/morph4d/internal/dataset"
	"github.com/morph4d/morph4d/internal/field"
	"github.com/morph4d/morph4d/internal/geom"
	"github.com/morph4d/morph4d/internal/monitoring"
	"github.com/morph4d/morph4d/internal/optim"
	"github.com/morph4d/morph4d/internal/report"
	"github.com/morph4d/morph4d/internal/runlog"
	"github.com/morph4d/morph4d/internal/timeutil"
	"github.com/morph4d/morph4d/internal/version"
	"github.com/morph4d/morph4d/internal/warp"
)

var (
	configPath  = flag.String("config", "", "Path to a JSON tuning config (defaults apply when empty)")
	dbFile      = flag.String("db", "", "Path to the run log database (overrides config)")
	steps       = flag.Int("steps", 0, "Number of training steps (overrides config)")
	seed        = flag.Int64("seed", 0, "Random seed (overrides config)")
	reportDir   = flag.String("report", "", "Report output directory (overrides config)")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

// The trainer fits a synthetic capture: a lambertian ball of the configured
// seed radius orbits the canonical origin while a fixed camera watches from
// five radii away. Every pixel has an exact color and silhouette, so the
// loop needs no input data.
const (
	imageSize = 64
	focal     = float64(imageSize)
)

var ballColor = [3]float64{0.85, 0.6, 0.3}

type scene struct {
	kinv    [3][3]float64
	pose    geom.SE3
	camDist float64
	radius  float64
	ampl    float64
	frames  int
}

func newScene(radius float64, frames int) *scene {
	c := float64(imageSize) / 2
	return &scene{
		kinv: [3][3]float64{
			{1 / focal, 0, -c / focal},
			{0, 1 / focal, -c / focal},
			{0, 0, 1},
		},
		pose:    geom.SE3From([4]float64{0, 0, 0, 1}, [3]float64{0, 0, 5 * radius}),
		camDist: 5 * radius,
		radius:  radius,
		ampl:    0.5 * radius,
		frames:  frames,
	}
}

// center returns the ball position at a frame, one orbit per sequence.
func (s *scene) center(frame int) [3]float64 {
	t := 2 * math.Pi * float64(frame) / float64(s.frames)
	return [3]float64{s.ampl * math.Sin(t), s.ampl * math.Cos(t), 0}
}

// target returns the ground-truth color and silhouette for a pixel ray.
func (s *scene) target(px [2]float64, frame int) ([3]float64, float64) {
	c := float64(imageSize) / 2
	d := [3]float64{(px[0] - c) / focal, (px[1] - c) / focal, 1}
	n := math.Sqrt(d[0]*d[0] + d[1]*d[1] + d[2]*d[2])
	for i := range d {
		d[i] /= n
	}

	// Camera sits at field (0, 0, -camDist) with identity rotation.
	ctr := s.center(frame)
	b := [3]float64{ctr[0], ctr[1], ctr[2] + s.camDist}
	proj := b[0]*d[0] + b[1]*d[1] + b[2]*d[2]
	miss2 := b[0]*b[0] + b[1]*b[1] + b[2]*b[2] - proj*proj
	if proj > 0 && miss2 <= s.radius*s.radius {
		return ballColor, 1
	}
	return [3]float64{0, 0, 0}, 0
}

// batch samples a random ray batch with its ground truth. Half the pixels
// concentrate around the ball's projection so the silhouette boundary gets
// enough gradient; the rest cover the whole image.
func (s *scene) batch(rng *rand.Rand, nray int, meta *dataset.Metadata) (*field.Batch, [][3]float64, []float64, error) {
	pixels := make([][2]float64, nray)
	frames := make([]int, nray)
	insts := make([]int, nray)
	poses := make([]geom.SE3, nray)
	rgb := make([][3]float64, nray)
	sil := make([]float64, nray)

	for i := 0; i < nray; i++ {
		fr := rng.Intn(meta.NumFrames)
		inst, err := meta.VideoOfFrame(fr)
		if err != nil {
			return nil, nil, nil, err
		}
		frames[i] = fr
		insts[i] = inst
		poses[i] = s.pose

		if i%2 == 0 {
			pixels[i] = [2]float64{rng.Float64() * imageSize, rng.Float64() * imageSize}
		} else {
			ctr := s.center(fr)
			z := ctr[2] + s.camDist
			u := float64(imageSize)/2 + focal*ctr[0]/z
			v := float64(imageSize)/2 + focal*ctr[1]/z
			sigma := 2 * focal * s.radius / s.camDist
			pixels[i] = [2]float64{
				clampPixel(u + rng.NormFloat64()*sigma),
				clampPixel(v + rng.NormFloat64()*sigma),
			}
		}
		rgb[i], sil[i] = s.target(pixels[i], fr)
	}

	batch := &field.Batch{
		Pixels:    pixels,
		Kinv:      s.kinv,
		FrameID:   frames,
		InstID:    insts,
		Field2Cam: poses,
	}
	return batch, rgb, sil, nil
}

func clampPixel(v float64) float64 {
	return math.Max(0, math.Min(float64(imageSize)-1e-6, v))
}

// trainStep renders one ray batch against the synthetic targets, assembles
// the weighted loss and applies one optimizer update. The returned metrics
// are forward values.
func trainStep(model *field.Deformable, sc *scene, cfg *config.Config, rng *rand.Rand, opt *optim.Adam) (map[string]float64, error) {
	opt.ZeroGrad()

	batch, wantRGB, wantSil, err := sc.batch(rng, cfg.GetRaysPerBatch(), model.Metadata())
	if err != nil {
		return nil, err
	}
	sctx, err := model.GetSamples(batch)
	if err != nil {
		return nil, err
	}
	out, err := model.QueryField(sctx)
	if err != nil {
		return nil, err
	}

	nray := len(out.RGB)
	rgbTerms := make([]*ad.Value, nray)
	silTerms := make([]*ad.Value, nray)
	for i := 0; i < nray; i++ {
		rgbTerms[i] = out.RGB[i].Sub(geom.V3From(wantRGB[i])).SquaredNorm()
		silTerms[i] = out.Alpha[i].AddConst(-wantSil[i]).Square()
	}

	total := ad.Mean(rgbTerms)
	metrics := map[string]float64{"rgb": total.Data}
	addTerm := func(name string, v *ad.Value, weight float64) {
		if v == nil {
			return
		}
		metrics[name] = v.Data
		if weight > 0 {
			total = total.Add(v.MulConst(weight))
		}
	}

	addTerm("silhouette", ad.Mean(silTerms), cfg.GetWeightSilhouette())
	addTerm(field.KeyCycDist, out.Terms.Mean(field.KeyCycDist), cfg.GetWeightCycle())
	addTerm(field.KeyCycDistStatic, out.Terms.Mean(field.KeyCycDistStatic), cfg.GetWeightCycle())
	addTerm(field.KeySkinEntropy, out.Terms.Mean(field.KeySkinEntropy), cfg.GetWeightSkinEntropy())
	addTerm(field.KeyDeltaSkin, out.Terms.Mean(field.KeyDeltaSkin), cfg.GetWeightDeltaSkin())
	addTerm("gauss_skin", model.GaussSkinConsistencyLoss(rng, cfg.GetGaussSamples()), cfg.GetWeightGaussSkin())
	addTerm("soft_deform", model.SoftDeformLoss(rng, cfg.GetSoftDeformSamples()), cfg.GetWeightSoftDeform())

	ad.Backward(total)
	opt.Step()
	metrics["total"] = total.Data
	return metrics, nil
}

// loadConfig folds the optional config file and any set flags over the
// defaults.
func loadConfig() (*config.Config, error) {
	cfg := config.DefaultConfig()
	if *configPath != "" {
		loaded, err := config.LoadConfig(*configPath)
		if err != nil {
			return nil, err
		}
		cfg.Merge(loaded)
	}

	overrides := &config.Config{}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "db":
			overrides.DBPath = dbFile
		case "steps":
			overrides.Steps = steps
		case "seed":
			overrides.Seed = seed
		case "report":
			overrides.ReportDir = reportDir
		}
	})
	cfg.Merge(overrides)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("morph4d-train %s\n", version.String())
		return
	}

	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	rng := rand.New(rand.NewSource(cfg.GetSeed()))

	meta, err := dataset.NewMetadata(cfg.GetFramesPerVideo())
	if err != nil {
		log.Fatalf("dataset: %v", err)
	}
	model, err := field.NewDeformable(cfg.GetMotion(), meta, cfg.FieldOptions(), cfg.WarpOptions(), rng)
	if err != nil {
		log.Fatalf("build model: %v", err)
	}
	if err := model.InitProxy(cfg.ProxySpec()); err != nil {
		log.Fatalf("init proxy: %v", err)
	}

	mode, err := field.ParseSeedMode(cfg.GetSeedMode())
	if err != nil {
		log.Fatalf("seed mode: %v", err)
	}
	fit, err := model.MLPInit(mode, rng, cfg.GetSeedSteps())
	if err != nil {
		log.Fatalf("seed sdf: %v", err)
	}
	log.Printf("seeded sdf (%s, %d steps): fit mse %.6f", cfg.GetSeedMode(), cfg.GetSeedSteps(), fit)

	db, err := runlog.NewDB(cfg.GetDBPath())
	if err != nil {
		log.Fatalf("open run log: %v", err)
	}
	defer db.Close()

	cfgJSON, err := json.Marshal(cfg)
	if err != nil {
		log.Fatalf("encode config: %v", err)
	}
	run, err := db.CreateRun(cfg.GetMotion(), string(cfgJSON))
	if err != nil {
		log.Fatalf("create run: %v", err)
	}
	log.Printf("training run %s: motion=%s steps=%d rays=%d", run.ID, cfg.GetMotion(), cfg.GetSteps(), cfg.GetRaysPerBatch())

	sc := newScene(cfg.GetSphereRadius(), meta.NumFrames)
	opt := optim.NewAdam(model.Params(), cfg.GetLearningRate())
	plotter := report.NewLossPlotter()

	clock := timeutil.RealClock{}
	progress := monitoring.Throttle{Interval: cfg.GetProgressInterval()}

	model.SetTraining(true)
	total := cfg.GetSteps()
	for step := 0; step < total; step++ {
		metrics, err := trainStep(model, sc, cfg, rng, opt)
		if err != nil {
			log.Fatalf("step %d: %v", step, err)
		}
		if err := db.RecordMetrics(run.ID, step, metrics); err != nil {
			log.Fatalf("record metrics: %v", err)
		}
		plotter.RecordAll(step, metrics)

		if progress.Ready(clock.Now()) || step == total-1 {
			monitoring.Logf("step %d/%d: total=%.5f rgb=%.5f silhouette=%.5f",
				step+1, total, metrics["total"], metrics["rgb"], metrics["silhouette"])
		}
	}
	model.SetTraining(false)

	if err := db.FinishRun(run.ID); err != nil {
		log.Fatalf("finish run: %v", err)
	}

	dir := cfg.GetReportDir()
	n, err := plotter.WritePlots(dir)
	if err != nil {
		log.Fatalf("write plots: %v", err)
	}
	log.Printf("wrote %d loss plots to %s", n, dir)

	finished, err := db.GetRun(run.ID)
	if err != nil {
		log.Fatalf("reload run: %v", err)
	}
	dashboard := filepath.Join(dir, "dashboard.html")
	if err := report.WriteDashboard(dashboard, finished, plotter.Series()); err != nil {
		log.Fatalf("write dashboard: %v", err)
	}
	log.Printf("wrote dashboard to %s", dashboard)

	if bones, ok := model.Warp().(warp.BoneField); ok {
		snapshot := filepath.Join(dir, "bones.webp")
		if err := report.BoneSnapshot(snapshot, bones, model.Proxy()); err != nil {
			log.Fatalf("write bone snapshot: %v", err)
		}
		log.Printf("wrote bone snapshot to %s", snapshot)
	}

	log.Printf("run %s complete", run.ID)
}
