package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	// Test that defaults are set via pointers
	if cfg.Motion == nil || *cfg.Motion != "rigid" {
		t.Errorf("Expected Motion 'rigid', got %v", cfg.Motion)
	}
	if cfg.NumBones == nil || *cfg.NumBones != 25 {
		t.Errorf("Expected NumBones 25, got %v", cfg.NumBones)
	}
	if cfg.InitBeta == nil || *cfg.InitBeta != 0.1 {
		t.Errorf("Expected InitBeta 0.1, got %v", cfg.InitBeta)
	}
	if cfg.LearningRate == nil || *cfg.LearningRate != 5e-4 {
		t.Errorf("Expected LearningRate 5e-4, got %v", cfg.LearningRate)
	}
	if cfg.ProgressInterval == nil || *cfg.ProgressInterval != "5s" {
		t.Errorf("Expected ProgressInterval '5s', got %v", cfg.ProgressInterval)
	}
	if cfg.TwoBranch == nil || *cfg.TwoBranch != false {
		t.Errorf("Expected TwoBranch false, got %v", cfg.TwoBranch)
	}

	// Defaults must pass their own validation
	if err := cfg.Validate(); err != nil {
		t.Errorf("DefaultConfig() failed validation: %v", err)
	}

	// Test getter methods
	if cfg.GetMotion() != "rigid" {
		t.Errorf("GetMotion() = %s, want rigid", cfg.GetMotion())
	}
	if cfg.GetSteps() != 500 {
		t.Errorf("GetSteps() = %d, want 500", cfg.GetSteps())
	}
	if cfg.GetSeed() != 0 {
		t.Errorf("GetSeed() = %d, want 0", cfg.GetSeed())
	}
	if cfg.GetGaussSamples() != 2048 {
		t.Errorf("GetGaussSamples() = %d, want 2048", cfg.GetGaussSamples())
	}
	if cfg.GetWeightSilhouette() != 0.1 {
		t.Errorf("GetWeightSilhouette() = %g, want 0.1", cfg.GetWeightSilhouette())
	}
	if cfg.GetDBPath() != "morph4d.db" {
		t.Errorf("GetDBPath() = %s, want morph4d.db", cfg.GetDBPath())
	}
}

func TestLoadConfig(t *testing.T) {
	// Create temporary directory
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test_config.json")

	// Write test config with flat schema
	testJSON := `{
  "motion": "bob",
  "num_bones": 12,
  "init_beta": 0.05,
  "steps": 100,
  "rays_per_batch": 8,
  "progress_interval": "2s",
  "report_dir": "out"
}`
	if err := os.WriteFile(configPath, []byte(testJSON), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	// Load the config
	cfg, err := LoadConfig(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	// Verify values
	if cfg.Motion == nil || *cfg.Motion != "bob" {
		t.Errorf("Expected Motion 'bob', got %v", cfg.Motion)
	}
	if cfg.NumBones == nil || *cfg.NumBones != 12 {
		t.Errorf("Expected NumBones 12, got %v", cfg.NumBones)
	}
	if cfg.InitBeta == nil || *cfg.InitBeta != 0.05 {
		t.Errorf("Expected InitBeta 0.05, got %v", cfg.InitBeta)
	}
	if cfg.Steps == nil || *cfg.Steps != 100 {
		t.Errorf("Expected Steps 100, got %v", cfg.Steps)
	}
	if cfg.RaysPerBatch == nil || *cfg.RaysPerBatch != 8 {
		t.Errorf("Expected RaysPerBatch 8, got %v", cfg.RaysPerBatch)
	}
	if cfg.ProgressInterval == nil || *cfg.ProgressInterval != "2s" {
		t.Errorf("Expected ProgressInterval '2s', got %v", cfg.ProgressInterval)
	}
	if cfg.ReportDir == nil || *cfg.ReportDir != "out" {
		t.Errorf("Expected ReportDir 'out', got %v", cfg.ReportDir)
	}
}

func TestLoadConfigMissing(t *testing.T) {
	_, err := LoadConfig("/nonexistent/path/to/config.json")
	if err == nil {
		t.Error("Expected error when loading missing file, got nil")
	}
}

func TestLoadConfigInvalid(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid_config.json")

	// Write invalid JSON
	invalidJSON := `{
  "init_beta": "invalid"
`
	if err := os.WriteFile(configPath, []byte(invalidJSON), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	_, err := LoadConfig(configPath)
	if err == nil {
		t.Error("Expected error when loading invalid JSON, got nil")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *Config
		wantErr bool
	}{
		{
			name:    "valid config",
			cfg:     DefaultConfig(),
			wantErr: false,
		},
		{
			name:    "empty config is valid",
			cfg:     &Config{},
			wantErr: false,
		},
		{
			name: "unknown motion tag",
			cfg: &Config{
				Motion: ptrString("orbit"),
			},
			wantErr: true,
		},
		{
			name: "composite motion tag",
			cfg: &Config{
				Motion: ptrString("comp_skel-quad_dense"),
			},
			wantErr: false,
		},
		{
			name: "zero bones",
			cfg: &Config{
				NumBones: ptrInt(0),
			},
			wantErr: true,
		},
		{
			name: "negative init beta",
			cfg: &Config{
				InitBeta: ptrFloat64(-0.1),
			},
			wantErr: true,
		},
		{
			name: "single depth sample",
			cfg: &Config{
				DepthSamples: ptrInt(1),
			},
			wantErr: true,
		},
		{
			name: "skip out of range",
			cfg: &Config{
				FieldDepth: ptrInt(4),
				FieldSkips: []int{4},
			},
			wantErr: true,
		},
		{
			name: "skip in range",
			cfg: &Config{
				FieldDepth: ptrInt(4),
				FieldSkips: []int{2},
			},
			wantErr: false,
		},
		{
			name: "bad proxy euler length",
			cfg: &Config{
				ProxyEuler: []float64{0.1, 0.2},
			},
			wantErr: true,
		},
		{
			name: "unknown seed mode",
			cfg: &Config{
				SeedMode: ptrString("volume"),
			},
			wantErr: true,
		},
		{
			name: "zero frames in a video",
			cfg: &Config{
				FramesPerVideo: []int{4, 0},
			},
			wantErr: true,
		},
		{
			name: "invalid progress interval",
			cfg: &Config{
				ProgressInterval: ptrString("invalid"),
			},
			wantErr: true,
		},
		{
			name: "negative loss weight",
			cfg: &Config{
				WeightGaussSkin: ptrFloat64(-1),
			},
			wantErr: true,
		},
		{
			name: "zero learning rate",
			cfg: &Config{
				LearningRate: ptrFloat64(0),
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestGetProgressInterval(t *testing.T) {
	tests := []struct {
		name string
		cfg  *Config
		want time.Duration
	}{
		{
			name: "2 seconds",
			cfg: &Config{
				ProgressInterval: ptrString("2s"),
			},
			want: 2 * time.Second,
		},
		{
			name: "1 minute",
			cfg: &Config{
				ProgressInterval: ptrString("1m"),
			},
			want: 1 * time.Minute,
		},
		{
			name: "nil pointer returns default",
			cfg:  &Config{},
			want: 5 * time.Second,
		},
		{
			name: "empty string returns default",
			cfg: &Config{
				ProgressInterval: ptrString(""),
			},
			want: 5 * time.Second,
		},
		{
			name: "invalid duration returns default",
			cfg: &Config{
				ProgressInterval: ptrString("invalid"),
			},
			want: 5 * time.Second,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.cfg.GetProgressInterval()
			if got != tt.want {
				t.Errorf("GetProgressInterval() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLoadDefaultConfigFile(t *testing.T) {
	cfg, err := LoadConfig("../../config/train.defaults.json")
	if err != nil {
		t.Fatalf("Failed to load defaults: %v", err)
	}
	if cfg.GetMotion() != "rigid" {
		t.Errorf("Expected rigid, got %s", cfg.GetMotion())
	}
	if cfg.GetInitBeta() != 0.1 {
		t.Errorf("Expected 0.1, got %f", cfg.GetInitBeta())
	}
	if cfg.GetSteps() != 500 {
		t.Errorf("Expected 500, got %d", cfg.GetSteps())
	}
}

func TestLoadExampleConfigFile(t *testing.T) {
	cfg, err := LoadConfig("../../config/train.example.json")
	if err != nil {
		t.Fatalf("Failed to load example: %v", err)
	}
	if cfg.GetMotion() != "comp_skel-human_dense" {
		t.Errorf("Expected comp_skel-human_dense, got %s", cfg.GetMotion())
	}
	if cfg.GetSteps() != 2000 {
		t.Errorf("Expected 2000, got %d", cfg.GetSteps())
	}
	if got := cfg.GetFramesPerVideo(); len(got) != 2 || got[0] != 8 || got[1] != 8 {
		t.Errorf("Expected [8 8], got %v", got)
	}
}

func TestLoadConfigPartial(t *testing.T) {
	// Partial config: only override steps; everything else should keep defaults.
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "partial.json")

	partialJSON := `{
  "steps": 50
}`
	if err := os.WriteFile(configPath, []byte(partialJSON), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := LoadConfig(configPath)
	if err != nil {
		t.Fatalf("Failed to load partial config: %v", err)
	}

	// Overridden value
	if cfg.GetSteps() != 50 {
		t.Errorf("Expected overridden Steps 50, got %d", cfg.GetSteps())
	}
	// Default values should be preserved
	if cfg.GetMotion() != "rigid" {
		t.Errorf("Expected default Motion rigid, got %s", cfg.GetMotion())
	}
	if cfg.GetFieldWidth() != 64 {
		t.Errorf("Expected default FieldWidth 64, got %d", cfg.GetFieldWidth())
	}
	if cfg.GetProgressInterval() != 5*time.Second {
		t.Errorf("Expected default ProgressInterval 5s, got %v", cfg.GetProgressInterval())
	}
	if cfg.GetSeedMode() != "sphere" {
		t.Errorf("Expected default SeedMode sphere, got %s", cfg.GetSeedMode())
	}
}

func TestLoadConfigRejectsNonJSON(t *testing.T) {
	_, err := LoadConfig("/some/path/config.yaml")
	if err == nil {
		t.Error("Expected error for non-.json extension, got nil")
	}
}

func TestLoadConfigRejectsLargeFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "large.json")

	// Create a file larger than 1MB
	largeData := make([]byte, 2*1024*1024) // 2MB
	if err := os.WriteFile(configPath, largeData, 0644); err != nil {
		t.Fatalf("Failed to write large file: %v", err)
	}

	_, err := LoadConfig(configPath)
	if err == nil {
		t.Error("Expected error for file size > 1MB, got nil")
	}
}

func TestMerge(t *testing.T) {
	base := DefaultConfig()
	override := &Config{
		Motion:       ptrString("dense"),
		Steps:        ptrInt(42),
		FieldSkips:   []int{},
		ProxyEuler:   []float64{0.1, 0.2, 0.3},
		WeightCycle:  ptrFloat64(0.5),
		LearningRate: nil, // untouched
	}

	base.Merge(override)

	if base.GetMotion() != "dense" {
		t.Errorf("Merge Motion = %s, want dense", base.GetMotion())
	}
	if base.GetSteps() != 42 {
		t.Errorf("Merge Steps = %d, want 42", base.GetSteps())
	}
	// Non-nil empty slice clears the skips
	if got := base.GetFieldSkips(); len(got) != 0 {
		t.Errorf("Merge FieldSkips = %v, want empty", got)
	}
	if got := base.GetProxyEuler(); got != [3]float64{0.1, 0.2, 0.3} {
		t.Errorf("Merge ProxyEuler = %v", got)
	}
	if base.GetWeightCycle() != 0.5 {
		t.Errorf("Merge WeightCycle = %g, want 0.5", base.GetWeightCycle())
	}
	// nil fields leave base defaults alone
	if base.GetLearningRate() != 5e-4 {
		t.Errorf("Merge LearningRate = %g, want default 5e-4", base.GetLearningRate())
	}
	if base.GetNumBones() != 25 {
		t.Errorf("Merge NumBones = %d, want default 25", base.GetNumBones())
	}

	// Merging nil is a no-op
	before := base.GetSteps()
	base.Merge(nil)
	if base.GetSteps() != before {
		t.Errorf("Merge(nil) changed Steps")
	}
}

func TestOptionBuilders(t *testing.T) {
	cfg := DefaultConfig()

	fo := cfg.FieldOptions()
	if fo.Depth != 5 || fo.Width != 64 {
		t.Errorf("FieldOptions depth/width = %d/%d, want 5/64", fo.Depth, fo.Width)
	}
	if len(fo.Skips) != 1 || fo.Skips[0] != 3 {
		t.Errorf("FieldOptions skips = %v, want [3]", fo.Skips)
	}
	if fo.InitBeta != 0.1 || !fo.ColorAct || fo.TwoBranch {
		t.Errorf("FieldOptions scalars wrong: %+v", fo)
	}

	wo := cfg.WarpOptions()
	if wo.NumBones != 25 || wo.TimeEmbedDim != 8 || wo.MLPWidth != 64 {
		t.Errorf("WarpOptions = %+v", wo)
	}

	ps := cfg.ProxySpec()
	if ps.Path != "" || ps.Scale != 1 {
		t.Errorf("ProxySpec = %+v", ps)
	}
}

func TestMustLoadDefaultConfig(t *testing.T) {
	cfg := MustLoadDefaultConfig()
	if cfg.GetMotion() != "rigid" {
		t.Errorf("Expected rigid, got %s", cfg.GetMotion())
	}
}
