// Package report renders training artifacts to disk: per-loss PNG line
// charts, a standalone HTML dashboard of a run's metric series and a WebP
// snapshot of the skeletal Gaussians against the proxy geometry.
package report

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/morph4d/morph4d/internal/runlog"
	"github.com/morph4d/morph4d/internal/security"
)

// LossPlotter accumulates named per-step loss values during training. It is
// safe for concurrent Record calls.
type LossPlotter struct {
	mu     sync.Mutex
	series map[string][]runlog.SeriesPoint
}

// NewLossPlotter returns an empty plotter.
func NewLossPlotter() *LossPlotter {
	return &LossPlotter{series: make(map[string][]runlog.SeriesPoint)}
}

// Record appends one value for a named loss at the given step. Steps are
// expected in increasing order; they are plotted in insertion order.
func (lp *LossPlotter) Record(step int, name string, value float64) {
	lp.mu.Lock()
	defer lp.mu.Unlock()
	lp.series[name] = append(lp.series[name], runlog.SeriesPoint{Step: step, Value: value})
}

// RecordAll appends a batch of named values sharing one step.
func (lp *LossPlotter) RecordAll(step int, values map[string]float64) {
	for name, v := range values {
		lp.Record(step, name, v)
	}
}

// Series returns a copy of the accumulated series, in the shape
// WriteDashboard consumes.
func (lp *LossPlotter) Series() map[string][]runlog.SeriesPoint {
	lp.mu.Lock()
	defer lp.mu.Unlock()
	out := make(map[string][]runlog.SeriesPoint, len(lp.series))
	for name, pts := range lp.series {
		out[name] = append([]runlog.SeriesPoint(nil), pts...)
	}
	return out
}

// WritePlots renders the accumulated series into dir. See the package-level
// WritePlots for the file layout.
func (lp *LossPlotter) WritePlots(dir string) (int, error) {
	return WritePlots(dir, lp.Series())
}

// WritePlots renders one PNG line chart per series into dir, plus a combined
// chart of every series when there is more than one. dir is created if
// needed. Series names become file names after sanitization, so names from
// an untrusted run database cannot escape dir. Returns the number of files
// written.
func WritePlots(dir string, series map[string][]runlog.SeriesPoint) (int, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return 0, fmt.Errorf("failed to create plot directory: %w", err)
	}

	// Sort names for a stable palette and file order.
	var names []string
	for name := range series {
		if len(series[name]) > 0 {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	if len(names) == 0 {
		return 0, nil
	}

	colors := generateColors(len(names))

	count := 0
	for i, name := range names {
		p := plot.New()
		p.Title.Text = fmt.Sprintf("Training Loss - %s", name)
		p.X.Label.Text = "Step"
		p.Y.Label.Text = "Loss"

		line, err := plotter.NewLine(toXYs(series[name]))
		if err != nil {
			return count, fmt.Errorf("loss %s: %w", name, err)
		}
		line.Color = colors[i]
		line.Width = vg.Points(1)
		p.Add(line)
		p.Legend.Add(name, line)
		p.Legend.Top = true
		p.Legend.Left = false
		p.Legend.XOffs = -10
		p.Legend.YOffs = -10

		file := filepath.Join(dir, fmt.Sprintf("loss_%s.png", security.SanitizeFilename(name)))
		if err := security.ValidatePathWithinDirectory(file, dir); err != nil {
			return count, fmt.Errorf("loss %s: %w", name, err)
		}
		if err := p.Save(14*vg.Inch, 6*vg.Inch, file); err != nil {
			return count, fmt.Errorf("save loss plot: %w", err)
		}
		count++
	}

	if len(names) > 1 {
		p := plot.New()
		p.Title.Text = "Training Losses"
		p.X.Label.Text = "Step"
		p.Y.Label.Text = "Loss"

		for i, name := range names {
			line, err := plotter.NewLine(toXYs(series[name]))
			if err != nil {
				return count, fmt.Errorf("loss %s: %w", name, err)
			}
			line.Color = colors[i]
			line.Width = vg.Points(1)
			p.Add(line)
			p.Legend.Add(name, line)
		}
		p.Legend.Top = true
		p.Legend.Left = false
		p.Legend.XOffs = -10
		p.Legend.YOffs = -10

		file := filepath.Join(dir, "losses_all.png")
		if err := p.Save(14*vg.Inch, 6*vg.Inch, file); err != nil {
			return count, fmt.Errorf("save combined plot: %w", err)
		}
		count++
	}

	return count, nil
}

func toXYs(pts []runlog.SeriesPoint) plotter.XYs {
	xys := make(plotter.XYs, 0, len(pts))
	for _, pt := range pts {
		xys = append(xys, plotter.XY{X: float64(pt.Step), Y: pt.Value})
	}
	return xys
}

// generateColors creates a palette of distinct colors for the loss lines
// using HSL color space for even distribution.
func generateColors(n int) []color.Color {
	if n <= 0 {
		return nil
	}

	colors := make([]color.Color, n)
	for i := 0; i < n; i++ {
		hue := float64(i) / float64(n)
		r, g, b := hslToRGB(hue, 0.7, 0.5)
		colors[i] = color.RGBA{R: r, G: g, B: b, A: 255}
	}
	return colors
}

// hslToRGB converts HSL color values to RGB.
func hslToRGB(h, s, l float64) (r, g, b uint8) {
	var rf, gf, bf float64

	if s == 0 {
		rf, gf, bf = l, l, l
	} else {
		var q float64
		if l < 0.5 {
			q = l * (1 + s)
		} else {
			q = l + s - l*s
		}
		p := 2*l - q
		rf = hueToRGB(p, q, h+1.0/3.0)
		gf = hueToRGB(p, q, h)
		bf = hueToRGB(p, q, h-1.0/3.0)
	}

	return uint8(rf * 255), uint8(gf * 255), uint8(bf * 255)
}

// hueToRGB is a helper for HSL to RGB conversion.
func hueToRGB(p, q, t float64) float64 {
	if t < 0 {
		t += 1
	}
	if t > 1 {
		t -= 1
	}
	if t < 1.0/6.0 {
		return p + (q-p)*6*t
	}
	if t < 1.0/2.0 {
		return q
	}
	if t < 2.0/3.0 {
		return p + (q-p)*(2.0/3.0-t)*6
	}
	return p
}
