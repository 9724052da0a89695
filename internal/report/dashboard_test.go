package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/morph4d/morph4d/internal/runlog"
)

func testRun() *runlog.Run {
	return &runlog.Run{
		ID:         "4f5c9b1e-0000-4000-8000-c0ffee000001",
		Motion:     "comp_skel-human_dense",
		ConfigJSON: "{}",
		StartedAt:  time.Date(2026, 2, 3, 12, 0, 0, 0, time.UTC).UnixNano(),
	}
}

func TestWriteDashboard(t *testing.T) {
	series := map[string][]runlog.SeriesPoint{
		"total": {{Step: 0, Value: 2.0}, {Step: 10, Value: 1.1}, {Step: 20, Value: 0.7}},
		"rgb":   {{Step: 0, Value: 1.0}, {Step: 10, Value: 0.6}, {Step: 20, Value: 0.4}},
	}

	path := filepath.Join(t.TempDir(), "reports", "dashboard.html")
	if err := WriteDashboard(path, testRun(), series); err != nil {
		t.Fatalf("WriteDashboard failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read dashboard: %v", err)
	}
	html := string(data)

	for _, want := range []string{"echarts", "Training Run", "total", "rgb", "comp_skel-human_dense", "Run Summary", "mean"} {
		if !strings.Contains(html, want) {
			t.Errorf("dashboard missing %q", want)
		}
	}
}

func TestWriteDashboardNilRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dashboard.html")
	if err := WriteDashboard(path, nil, nil); err == nil {
		t.Error("expected error for nil run")
	}
}

func TestWriteDashboardEmptySeries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dashboard.html")
	if err := WriteDashboard(path, testRun(), nil); err != nil {
		t.Fatalf("WriteDashboard failed: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("dashboard not written: %v", err)
	}
}

func TestWriteDashboardFinishedRun(t *testing.T) {
	run := testRun()
	finished := run.StartedAt + (90 * time.Second).Nanoseconds()
	run.FinishedAt = &finished

	series := map[string][]runlog.SeriesPoint{
		"total": {{Step: 0, Value: 1}},
	}

	path := filepath.Join(t.TempDir(), "dashboard.html")
	if err := WriteDashboard(path, run, series); err != nil {
		t.Fatalf("WriteDashboard failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "duration=1m30s") {
		t.Error("dashboard subtitle missing run duration")
	}
}
