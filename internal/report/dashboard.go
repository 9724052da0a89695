package report

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/gonum/stat"

	"github.com/morph4d/morph4d/internal/runlog"
)

// WriteDashboard renders a run's metric series into a standalone HTML file
// at path. The page carries one line chart of every series over training
// steps and one bar chart of final and mean values per metric. Chart assets
// load from the go-echarts CDN, so the file needs no local asset directory.
func WriteDashboard(path string, run *runlog.Run, series map[string][]runlog.SeriesPoint) error {
	if run == nil {
		return fmt.Errorf("failed to render dashboard: nil run")
	}

	var names []string
	for name := range series {
		if len(series[name]) > 0 {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	// Union of steps across series keeps metrics with different logging
	// cadence on one axis; gaps render as nulls.
	stepSet := make(map[int]struct{})
	for _, name := range names {
		for _, pt := range series[name] {
			stepSet[pt.Step] = struct{}{}
		}
	}
	steps := make([]int, 0, len(stepSet))
	for s := range stepSet {
		steps = append(steps, s)
	}
	sort.Ints(steps)

	started := time.Unix(0, run.StartedAt).UTC()
	subtitle := fmt.Sprintf("motion=%s started=%s", run.Motion, started.Format(time.RFC3339))
	if run.FinishedAt != nil {
		subtitle += fmt.Sprintf(" duration=%s", time.Duration(*run.FinishedAt-run.StartedAt).Round(time.Millisecond))
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: fmt.Sprintf("Run %s", run.ID), Theme: "dark", Width: "1200px", Height: "500px"}),
		charts.WithTitleOpts(opts.Title{Title: fmt.Sprintf("Training Run %s", run.ID), Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Step"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Value"}),
	)
	line.SetXAxis(steps)
	for _, name := range names {
		byStep := make(map[int]float64, len(series[name]))
		for _, pt := range series[name] {
			byStep[pt.Step] = pt.Value
		}
		data := make([]opts.LineData, len(steps))
		for i, s := range steps {
			if v, ok := byStep[s]; ok {
				data[i] = opts.LineData{Value: v}
			} else {
				data[i] = opts.LineData{Value: nil}
			}
		}
		line.AddSeries(name, data)
	}

	page := components.NewPage()
	page.AddCharts(line)

	if len(names) > 0 {
		finals := make([]opts.BarData, len(names))
		means := make([]opts.BarData, len(names))
		for i, name := range names {
			pts := series[name]
			vals := make([]float64, len(pts))
			for j, pt := range pts {
				vals[j] = pt.Value
			}
			finals[i] = opts.BarData{Value: pts[len(pts)-1].Value}
			means[i] = opts.BarData{Value: stat.Mean(vals, nil)}
		}
		bar := charts.NewBar()
		bar.SetGlobalOptions(
			charts.WithInitializationOpts(opts.Initialization{Theme: "dark", Width: "1200px", Height: "400px"}),
			charts.WithTitleOpts(opts.Title{Title: "Run Summary", Subtitle: fmt.Sprintf("after %d logged steps", len(steps))}),
			charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
			charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		)
		bar.SetXAxis(names).
			AddSeries("final", finals,
				charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
			).
			AddSeries("mean", means)
		page.AddCharts(bar)
	}

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		return fmt.Errorf("failed to render dashboard: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create dashboard directory: %w", err)
		}
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write dashboard: %w", err)
	}
	return nil
}
