package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/morph4d/morph4d/internal/field"
	"github.com/morph4d/morph4d/internal/warp"
)

// DefaultConfigPath is the path to the canonical training defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/train.defaults.json"

// Config holds every tunable knob of a reconstruction run. All scalar
// fields are pointers so a JSON file can override any subset and leave
// the rest at their defaults; the Get* methods resolve nil to the
// defaults baked into DefaultConfig.
type Config struct {
	// Sequence layout
	FramesPerVideo []int   `json:"frames_per_video,omitempty"`
	SkeletonPath   *string `json:"skeleton_path,omitempty"`

	// Motion model
	Motion         *string `json:"motion,omitempty"` // warp tag like "comp_skel-human_dense"
	NumBones       *int    `json:"num_bones,omitempty"`
	TimeEmbedDim   *int    `json:"time_embed_dim,omitempty"`
	InstEmbedDim   *int    `json:"inst_embed_dim,omitempty"`
	WarpNumFreqXYZ *int    `json:"warp_num_freq_xyz,omitempty"`
	WarpMLPWidth   *int    `json:"warp_mlp_width,omitempty"`
	WarpMLPDepth   *int    `json:"warp_mlp_depth,omitempty"`

	// Canonical field
	FieldDepth   *int     `json:"field_depth,omitempty"`
	FieldWidth   *int     `json:"field_width,omitempty"`
	NumFreqXYZ   *int     `json:"num_freq_xyz,omitempty"`
	NumFreqDir   *int     `json:"num_freq_dir,omitempty"`
	ApprChannels *int     `json:"appr_channels,omitempty"`
	ApprNumFreqT *int     `json:"appr_num_freq_t,omitempty"`
	InstChannels *int     `json:"inst_channels,omitempty"`
	FieldSkips   []int    `json:"field_skips,omitempty"`
	DepthSamples *int     `json:"depth_samples,omitempty"`
	InitBeta     *float64 `json:"init_beta,omitempty"`
	InitScale    *float64 `json:"init_scale,omitempty"`
	SphereRadius *float64 `json:"sphere_radius,omitempty"`
	ColorAct     *bool    `json:"color_act,omitempty"`
	TwoBranch    *bool    `json:"two_branch,omitempty"`

	// Proxy geometry and SDF seeding
	ProxyPath  *string   `json:"proxy_path,omitempty"`
	ProxyScale *float64  `json:"proxy_scale,omitempty"`
	ProxyEuler []float64 `json:"proxy_euler,omitempty"` // xyz rotation in radians, length 3
	SeedMode   *string   `json:"seed_mode,omitempty"`   // sphere | mesh | skeleton
	SeedSteps  *int      `json:"seed_steps,omitempty"`

	// Training loop
	Steps             *int     `json:"steps,omitempty"`
	LearningRate      *float64 `json:"learning_rate,omitempty"`
	RaysPerBatch      *int     `json:"rays_per_batch,omitempty"`
	Seed              *int64   `json:"seed,omitempty"`
	GaussSamples      *int     `json:"gauss_samples,omitempty"`
	SoftDeformSamples *int     `json:"soft_deform_samples,omitempty"`
	ProgressInterval  *string  `json:"progress_interval,omitempty"` // duration string like "5s"

	// Loss weights
	WeightSilhouette  *float64 `json:"weight_silhouette,omitempty"`
	WeightCycle       *float64 `json:"weight_cycle,omitempty"`
	WeightSkinEntropy *float64 `json:"weight_skin_entropy,omitempty"`
	WeightDeltaSkin   *float64 `json:"weight_delta_skin,omitempty"`
	WeightGaussSkin   *float64 `json:"weight_gauss_skin,omitempty"`
	WeightSoftDeform  *float64 `json:"weight_soft_deform,omitempty"`

	// Outputs
	DBPath    *string `json:"db_path,omitempty"`
	ReportDir *string `json:"report_dir,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }
func ptrInt64(v int64) *int64       { return &v }

// EmptyConfig returns a Config with all fields set to nil.
// Use LoadConfig to load actual values from a file.
func EmptyConfig() *Config {
	return &Config{}
}

// DefaultConfig returns a Config with every field populated with its
// default value. The values mirror config/train.defaults.json.
func DefaultConfig() *Config {
	return &Config{
		FramesPerVideo: []int{16},

		Motion:         ptrString("rigid"),
		NumBones:       ptrInt(25),
		TimeEmbedDim:   ptrInt(8),
		InstEmbedDim:   ptrInt(8),
		WarpNumFreqXYZ: ptrInt(6),
		WarpMLPWidth:   ptrInt(64),
		WarpMLPDepth:   ptrInt(2),

		FieldDepth:   ptrInt(5),
		FieldWidth:   ptrInt(64),
		NumFreqXYZ:   ptrInt(6),
		NumFreqDir:   ptrInt(2),
		ApprChannels: ptrInt(8),
		ApprNumFreqT: ptrInt(4),
		InstChannels: ptrInt(8),
		FieldSkips:   []int{3},
		DepthSamples: ptrInt(16),
		InitBeta:     ptrFloat64(0.1),
		InitScale:    ptrFloat64(0.1),
		SphereRadius: ptrFloat64(0.1),
		ColorAct:     ptrBool(true),
		TwoBranch:    ptrBool(false),

		ProxyScale: ptrFloat64(1),
		SeedMode:   ptrString("sphere"),
		SeedSteps:  ptrInt(200),

		Steps:             ptrInt(500),
		LearningRate:      ptrFloat64(5e-4),
		RaysPerBatch:      ptrInt(16),
		Seed:              ptrInt64(0),
		GaussSamples:      ptrInt(field.GaussConsistencySamples),
		SoftDeformSamples: ptrInt(field.SoftDeformSamples),
		ProgressInterval:  ptrString("5s"),

		WeightSilhouette:  ptrFloat64(0.1),
		WeightCycle:       ptrFloat64(0.01),
		WeightSkinEntropy: ptrFloat64(5e-4),
		WeightDeltaSkin:   ptrFloat64(5e-3),
		WeightGaussSkin:   ptrFloat64(0.01),
		WeightSoftDeform:  ptrFloat64(1e-3),

		DBPath:    ptrString("morph4d.db"),
		ReportDir: ptrString("report"),
	}
}

// LoadConfig loads a Config from a JSON file.
// The file is validated to ensure it has a .json extension and is under the max file size.
// Fields omitted from the JSON file retain their default values, so
// partial configs are safe.
func LoadConfig(path string) (*Config, error) {
	// Validate the config file path.
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse JSON into empty config. The Get* methods provide fallback
	// defaults for any fields not specified in the JSON.
	cfg := EmptyConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical training defaults from DefaultConfigPath.
// It searches for the file in the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *Config {
	// Try paths from current dir up to repo root
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // deeper packages
		"../../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Merge overlays every non-nil field of o onto c. Slice fields override
// when non-nil, so an explicit empty list in o clears the value in c.
// A nil o is a no-op. Returns c for chaining.
func (c *Config) Merge(o *Config) *Config {
	if o == nil {
		return c
	}
	if o.FramesPerVideo != nil {
		c.FramesPerVideo = o.FramesPerVideo
	}
	if o.SkeletonPath != nil {
		c.SkeletonPath = o.SkeletonPath
	}
	if o.Motion != nil {
		c.Motion = o.Motion
	}
	if o.NumBones != nil {
		c.NumBones = o.NumBones
	}
	if o.TimeEmbedDim != nil {
		c.TimeEmbedDim = o.TimeEmbedDim
	}
	if o.InstEmbedDim != nil {
		c.InstEmbedDim = o.InstEmbedDim
	}
	if o.WarpNumFreqXYZ != nil {
		c.WarpNumFreqXYZ = o.WarpNumFreqXYZ
	}
	if o.WarpMLPWidth != nil {
		c.WarpMLPWidth = o.WarpMLPWidth
	}
	if o.WarpMLPDepth != nil {
		c.WarpMLPDepth = o.WarpMLPDepth
	}
	if o.FieldDepth != nil {
		c.FieldDepth = o.FieldDepth
	}
	if o.FieldWidth != nil {
		c.FieldWidth = o.FieldWidth
	}
	if o.NumFreqXYZ != nil {
		c.NumFreqXYZ = o.NumFreqXYZ
	}
	if o.NumFreqDir != nil {
		c.NumFreqDir = o.NumFreqDir
	}
	if o.ApprChannels != nil {
		c.ApprChannels = o.ApprChannels
	}
	if o.ApprNumFreqT != nil {
		c.ApprNumFreqT = o.ApprNumFreqT
	}
	if o.InstChannels != nil {
		c.InstChannels = o.InstChannels
	}
	if o.FieldSkips != nil {
		c.FieldSkips = o.FieldSkips
	}
	if o.DepthSamples != nil {
		c.DepthSamples = o.DepthSamples
	}
	if o.InitBeta != nil {
		c.InitBeta = o.InitBeta
	}
	if o.InitScale != nil {
		c.InitScale = o.InitScale
	}
	if o.SphereRadius != nil {
		c.SphereRadius = o.SphereRadius
	}
	if o.ColorAct != nil {
		c.ColorAct = o.ColorAct
	}
	if o.TwoBranch != nil {
		c.TwoBranch = o.TwoBranch
	}
	if o.ProxyPath != nil {
		c.ProxyPath = o.ProxyPath
	}
	if o.ProxyScale != nil {
		c.ProxyScale = o.ProxyScale
	}
	if o.ProxyEuler != nil {
		c.ProxyEuler = o.ProxyEuler
	}
	if o.SeedMode != nil {
		c.SeedMode = o.SeedMode
	}
	if o.SeedSteps != nil {
		c.SeedSteps = o.SeedSteps
	}
	if o.Steps != nil {
		c.Steps = o.Steps
	}
	if o.LearningRate != nil {
		c.LearningRate = o.LearningRate
	}
	if o.RaysPerBatch != nil {
		c.RaysPerBatch = o.RaysPerBatch
	}
	if o.Seed != nil {
		c.Seed = o.Seed
	}
	if o.GaussSamples != nil {
		c.GaussSamples = o.GaussSamples
	}
	if o.SoftDeformSamples != nil {
		c.SoftDeformSamples = o.SoftDeformSamples
	}
	if o.ProgressInterval != nil {
		c.ProgressInterval = o.ProgressInterval
	}
	if o.WeightSilhouette != nil {
		c.WeightSilhouette = o.WeightSilhouette
	}
	if o.WeightCycle != nil {
		c.WeightCycle = o.WeightCycle
	}
	if o.WeightSkinEntropy != nil {
		c.WeightSkinEntropy = o.WeightSkinEntropy
	}
	if o.WeightDeltaSkin != nil {
		c.WeightDeltaSkin = o.WeightDeltaSkin
	}
	if o.WeightGaussSkin != nil {
		c.WeightGaussSkin = o.WeightGaussSkin
	}
	if o.WeightSoftDeform != nil {
		c.WeightSoftDeform = o.WeightSoftDeform
	}
	if o.DBPath != nil {
		c.DBPath = o.DBPath
	}
	if o.ReportDir != nil {
		c.ReportDir = o.ReportDir
	}
	return c
}

// Validate checks that the configuration values are valid.
func (c *Config) Validate() error {
	for i, n := range c.FramesPerVideo {
		if n < 1 {
			return fmt.Errorf("frames_per_video[%d] must be at least 1, got %d", i, n)
		}
	}

	if c.Motion != nil {
		if _, err := warp.ParseTag(*c.Motion); err != nil {
			return fmt.Errorf("invalid motion: %w", err)
		}
	}
	if c.NumBones != nil && *c.NumBones < 1 {
		return fmt.Errorf("num_bones must be at least 1, got %d", *c.NumBones)
	}
	if c.TimeEmbedDim != nil && *c.TimeEmbedDim < 1 {
		return fmt.Errorf("time_embed_dim must be at least 1, got %d", *c.TimeEmbedDim)
	}
	if c.InstEmbedDim != nil && *c.InstEmbedDim < 1 {
		return fmt.Errorf("inst_embed_dim must be at least 1, got %d", *c.InstEmbedDim)
	}
	if c.WarpNumFreqXYZ != nil && *c.WarpNumFreqXYZ < 0 {
		return fmt.Errorf("warp_num_freq_xyz must be non-negative, got %d", *c.WarpNumFreqXYZ)
	}
	if c.WarpMLPWidth != nil && *c.WarpMLPWidth < 1 {
		return fmt.Errorf("warp_mlp_width must be at least 1, got %d", *c.WarpMLPWidth)
	}
	if c.WarpMLPDepth != nil && *c.WarpMLPDepth < 1 {
		return fmt.Errorf("warp_mlp_depth must be at least 1, got %d", *c.WarpMLPDepth)
	}

	if c.FieldDepth != nil && *c.FieldDepth < 1 {
		return fmt.Errorf("field_depth must be at least 1, got %d", *c.FieldDepth)
	}
	if c.FieldWidth != nil && *c.FieldWidth < 1 {
		return fmt.Errorf("field_width must be at least 1, got %d", *c.FieldWidth)
	}
	if c.NumFreqXYZ != nil && *c.NumFreqXYZ < 0 {
		return fmt.Errorf("num_freq_xyz must be non-negative, got %d", *c.NumFreqXYZ)
	}
	if c.NumFreqDir != nil && *c.NumFreqDir < 0 {
		return fmt.Errorf("num_freq_dir must be non-negative, got %d", *c.NumFreqDir)
	}
	if c.ApprChannels != nil && *c.ApprChannels < 1 {
		return fmt.Errorf("appr_channels must be at least 1, got %d", *c.ApprChannels)
	}
	if c.ApprNumFreqT != nil && *c.ApprNumFreqT < 0 {
		return fmt.Errorf("appr_num_freq_t must be non-negative, got %d", *c.ApprNumFreqT)
	}
	if c.InstChannels != nil && *c.InstChannels < 1 {
		return fmt.Errorf("inst_channels must be at least 1, got %d", *c.InstChannels)
	}
	for i, s := range c.FieldSkips {
		if s < 1 || s >= c.GetFieldDepth() {
			return fmt.Errorf("field_skips[%d] must be in [1, field_depth), got %d", i, s)
		}
	}
	if c.DepthSamples != nil && *c.DepthSamples < 2 {
		return fmt.Errorf("depth_samples must be at least 2, got %d", *c.DepthSamples)
	}
	if c.InitBeta != nil && *c.InitBeta <= 0 {
		return fmt.Errorf("init_beta must be positive, got %g", *c.InitBeta)
	}
	if c.InitScale != nil && *c.InitScale <= 0 {
		return fmt.Errorf("init_scale must be positive, got %g", *c.InitScale)
	}
	if c.SphereRadius != nil && *c.SphereRadius <= 0 {
		return fmt.Errorf("sphere_radius must be positive, got %g", *c.SphereRadius)
	}

	if c.ProxyScale != nil && *c.ProxyScale <= 0 {
		return fmt.Errorf("proxy_scale must be positive, got %g", *c.ProxyScale)
	}
	if len(c.ProxyEuler) != 0 && len(c.ProxyEuler) != 3 {
		return fmt.Errorf("proxy_euler must have exactly 3 elements, got %d", len(c.ProxyEuler))
	}
	if c.SeedMode != nil {
		if _, err := field.ParseSeedMode(*c.SeedMode); err != nil {
			return fmt.Errorf("invalid seed_mode: %w", err)
		}
	}
	if c.SeedSteps != nil && *c.SeedSteps < 0 {
		return fmt.Errorf("seed_steps must be non-negative, got %d", *c.SeedSteps)
	}

	if c.Steps != nil && *c.Steps < 1 {
		return fmt.Errorf("steps must be at least 1, got %d", *c.Steps)
	}
	if c.LearningRate != nil && *c.LearningRate <= 0 {
		return fmt.Errorf("learning_rate must be positive, got %g", *c.LearningRate)
	}
	if c.RaysPerBatch != nil && *c.RaysPerBatch < 1 {
		return fmt.Errorf("rays_per_batch must be at least 1, got %d", *c.RaysPerBatch)
	}
	if c.GaussSamples != nil && *c.GaussSamples < 1 {
		return fmt.Errorf("gauss_samples must be at least 1, got %d", *c.GaussSamples)
	}
	if c.SoftDeformSamples != nil && *c.SoftDeformSamples < 1 {
		return fmt.Errorf("soft_deform_samples must be at least 1, got %d", *c.SoftDeformSamples)
	}
	if c.ProgressInterval != nil && *c.ProgressInterval != "" {
		if _, err := time.ParseDuration(*c.ProgressInterval); err != nil {
			return fmt.Errorf("invalid progress_interval '%s': %w", *c.ProgressInterval, err)
		}
	}

	for _, w := range []struct {
		name string
		v    *float64
	}{
		{"weight_silhouette", c.WeightSilhouette},
		{"weight_cycle", c.WeightCycle},
		{"weight_skin_entropy", c.WeightSkinEntropy},
		{"weight_delta_skin", c.WeightDeltaSkin},
		{"weight_gauss_skin", c.WeightGaussSkin},
		{"weight_soft_deform", c.WeightSoftDeform},
	} {
		if w.v != nil && *w.v < 0 {
			return fmt.Errorf("%s must be non-negative, got %g", w.name, *w.v)
		}
	}

	return nil
}

// GetFramesPerVideo returns the frames_per_video value or the default.
func (c *Config) GetFramesPerVideo() []int {
	if c.FramesPerVideo == nil {
		return []int{16} // default: one 16-frame video
	}
	return c.FramesPerVideo
}

// GetSkeletonPath returns the skeleton_path value or the default.
func (c *Config) GetSkeletonPath() string {
	if c.SkeletonPath == nil {
		return "" // default: built-in template skeleton
	}
	return *c.SkeletonPath
}

// GetMotion returns the motion value or the default.
func (c *Config) GetMotion() string {
	if c.Motion == nil {
		return "rigid" // default
	}
	return *c.Motion
}

// GetNumBones returns the num_bones value or the default.
func (c *Config) GetNumBones() int {
	if c.NumBones == nil {
		return 25
	}
	return *c.NumBones
}

// GetTimeEmbedDim returns the time_embed_dim value or the default.
func (c *Config) GetTimeEmbedDim() int {
	if c.TimeEmbedDim == nil {
		return 8
	}
	return *c.TimeEmbedDim
}

// GetInstEmbedDim returns the inst_embed_dim value or the default.
func (c *Config) GetInstEmbedDim() int {
	if c.InstEmbedDim == nil {
		return 8
	}
	return *c.InstEmbedDim
}

// GetWarpNumFreqXYZ returns the warp_num_freq_xyz value or the default.
func (c *Config) GetWarpNumFreqXYZ() int {
	if c.WarpNumFreqXYZ == nil {
		return 6
	}
	return *c.WarpNumFreqXYZ
}

// GetWarpMLPWidth returns the warp_mlp_width value or the default.
func (c *Config) GetWarpMLPWidth() int {
	if c.WarpMLPWidth == nil {
		return 64
	}
	return *c.WarpMLPWidth
}

// GetWarpMLPDepth returns the warp_mlp_depth value or the default.
func (c *Config) GetWarpMLPDepth() int {
	if c.WarpMLPDepth == nil {
		return 2
	}
	return *c.WarpMLPDepth
}

// GetFieldDepth returns the field_depth value or the default.
func (c *Config) GetFieldDepth() int {
	if c.FieldDepth == nil {
		return 5
	}
	return *c.FieldDepth
}

// GetFieldWidth returns the field_width value or the default.
func (c *Config) GetFieldWidth() int {
	if c.FieldWidth == nil {
		return 64
	}
	return *c.FieldWidth
}

// GetNumFreqXYZ returns the num_freq_xyz value or the default.
func (c *Config) GetNumFreqXYZ() int {
	if c.NumFreqXYZ == nil {
		return 6
	}
	return *c.NumFreqXYZ
}

// GetNumFreqDir returns the num_freq_dir value or the default.
func (c *Config) GetNumFreqDir() int {
	if c.NumFreqDir == nil {
		return 2
	}
	return *c.NumFreqDir
}

// GetApprChannels returns the appr_channels value or the default.
func (c *Config) GetApprChannels() int {
	if c.ApprChannels == nil {
		return 8
	}
	return *c.ApprChannels
}

// GetApprNumFreqT returns the appr_num_freq_t value or the default.
func (c *Config) GetApprNumFreqT() int {
	if c.ApprNumFreqT == nil {
		return 4
	}
	return *c.ApprNumFreqT
}

// GetInstChannels returns the inst_channels value or the default.
func (c *Config) GetInstChannels() int {
	if c.InstChannels == nil {
		return 8
	}
	return *c.InstChannels
}

// GetFieldSkips returns the field_skips value or the default.
func (c *Config) GetFieldSkips() []int {
	if c.FieldSkips == nil {
		return []int{3}
	}
	return c.FieldSkips
}

// GetDepthSamples returns the depth_samples value or the default.
func (c *Config) GetDepthSamples() int {
	if c.DepthSamples == nil {
		return 16
	}
	return *c.DepthSamples
}

// GetInitBeta returns the init_beta value or the default.
func (c *Config) GetInitBeta() float64 {
	if c.InitBeta == nil {
		return 0.1
	}
	return *c.InitBeta
}

// GetInitScale returns the init_scale value or the default.
func (c *Config) GetInitScale() float64 {
	if c.InitScale == nil {
		return 0.1
	}
	return *c.InitScale
}

// GetSphereRadius returns the sphere_radius value or the default.
func (c *Config) GetSphereRadius() float64 {
	if c.SphereRadius == nil {
		return 0.1
	}
	return *c.SphereRadius
}

// GetColorAct returns the color_act value or the default.
func (c *Config) GetColorAct() bool {
	if c.ColorAct == nil {
		return true
	}
	return *c.ColorAct
}

// GetTwoBranch returns the two_branch value or the default.
func (c *Config) GetTwoBranch() bool {
	if c.TwoBranch == nil {
		return false
	}
	return *c.TwoBranch
}

// GetProxyPath returns the proxy_path value or the default.
func (c *Config) GetProxyPath() string {
	if c.ProxyPath == nil {
		return "" // default: unit sphere proxy
	}
	return *c.ProxyPath
}

// GetProxyScale returns the proxy_scale value or the default.
func (c *Config) GetProxyScale() float64 {
	if c.ProxyScale == nil {
		return 1
	}
	return *c.ProxyScale
}

// GetProxyEuler returns the proxy_euler value or the default.
func (c *Config) GetProxyEuler() [3]float64 {
	if len(c.ProxyEuler) != 3 {
		return [3]float64{}
	}
	return [3]float64{c.ProxyEuler[0], c.ProxyEuler[1], c.ProxyEuler[2]}
}

// GetSeedMode returns the seed_mode value or the default.
func (c *Config) GetSeedMode() string {
	if c.SeedMode == nil {
		return "sphere"
	}
	return *c.SeedMode
}

// GetSeedSteps returns the seed_steps value or the default.
func (c *Config) GetSeedSteps() int {
	if c.SeedSteps == nil {
		return 200
	}
	return *c.SeedSteps
}

// GetSteps returns the steps value or the default.
func (c *Config) GetSteps() int {
	if c.Steps == nil {
		return 500
	}
	return *c.Steps
}

// GetLearningRate returns the learning_rate value or the default.
func (c *Config) GetLearningRate() float64 {
	if c.LearningRate == nil {
		return 5e-4
	}
	return *c.LearningRate
}

// GetRaysPerBatch returns the rays_per_batch value or the default.
func (c *Config) GetRaysPerBatch() int {
	if c.RaysPerBatch == nil {
		return 16
	}
	return *c.RaysPerBatch
}

// GetSeed returns the seed value or the default.
func (c *Config) GetSeed() int64 {
	if c.Seed == nil {
		return 0
	}
	return *c.Seed
}

// GetGaussSamples returns the gauss_samples value or the default.
func (c *Config) GetGaussSamples() int {
	if c.GaussSamples == nil {
		return field.GaussConsistencySamples
	}
	return *c.GaussSamples
}

// GetSoftDeformSamples returns the soft_deform_samples value or the default.
func (c *Config) GetSoftDeformSamples() int {
	if c.SoftDeformSamples == nil {
		return field.SoftDeformSamples
	}
	return *c.SoftDeformSamples
}

// GetProgressInterval parses and returns the ProgressInterval as a time.Duration.
func (c *Config) GetProgressInterval() time.Duration {
	if c.ProgressInterval == nil || *c.ProgressInterval == "" {
		return 5 * time.Second // default
	}
	d, err := time.ParseDuration(*c.ProgressInterval)
	if err != nil {
		return 5 * time.Second // default on parse error
	}
	return d
}

// GetWeightSilhouette returns the weight_silhouette value or the default.
func (c *Config) GetWeightSilhouette() float64 {
	if c.WeightSilhouette == nil {
		return 0.1
	}
	return *c.WeightSilhouette
}

// GetWeightCycle returns the weight_cycle value or the default.
func (c *Config) GetWeightCycle() float64 {
	if c.WeightCycle == nil {
		return 0.01
	}
	return *c.WeightCycle
}

// GetWeightSkinEntropy returns the weight_skin_entropy value or the default.
func (c *Config) GetWeightSkinEntropy() float64 {
	if c.WeightSkinEntropy == nil {
		return 5e-4
	}
	return *c.WeightSkinEntropy
}

// GetWeightDeltaSkin returns the weight_delta_skin value or the default.
func (c *Config) GetWeightDeltaSkin() float64 {
	if c.WeightDeltaSkin == nil {
		return 5e-3
	}
	return *c.WeightDeltaSkin
}

// GetWeightGaussSkin returns the weight_gauss_skin value or the default.
func (c *Config) GetWeightGaussSkin() float64 {
	if c.WeightGaussSkin == nil {
		return 0.01
	}
	return *c.WeightGaussSkin
}

// GetWeightSoftDeform returns the weight_soft_deform value or the default.
func (c *Config) GetWeightSoftDeform() float64 {
	if c.WeightSoftDeform == nil {
		return 1e-3
	}
	return *c.WeightSoftDeform
}

// GetDBPath returns the db_path value or the default.
func (c *Config) GetDBPath() string {
	if c.DBPath == nil {
		return "morph4d.db"
	}
	return *c.DBPath
}

// GetReportDir returns the report_dir value or the default.
func (c *Config) GetReportDir() string {
	if c.ReportDir == nil {
		return "report"
	}
	return *c.ReportDir
}

// FieldOptions assembles the canonical field options from the config.
func (c *Config) FieldOptions() field.Options {
	return field.Options{
		Depth:        c.GetFieldDepth(),
		Width:        c.GetFieldWidth(),
		NumFreqXYZ:   c.GetNumFreqXYZ(),
		NumFreqDir:   c.GetNumFreqDir(),
		ApprChannels: c.GetApprChannels(),
		ApprNumFreqT: c.GetApprNumFreqT(),
		InstChannels: c.GetInstChannels(),
		Skips:        c.GetFieldSkips(),
		DepthSamples: c.GetDepthSamples(),
		InitBeta:     c.GetInitBeta(),
		InitScale:    c.GetInitScale(),
		SphereRadius: c.GetSphereRadius(),
		ColorAct:     c.GetColorAct(),
		TwoBranch:    c.GetTwoBranch(),
	}
}

// WarpOptions assembles the warp options from the config.
func (c *Config) WarpOptions() warp.Options {
	return warp.Options{
		NumBones:     c.GetNumBones(),
		TimeEmbedDim: c.GetTimeEmbedDim(),
		InstEmbedDim: c.GetInstEmbedDim(),
		NumFreqXYZ:   c.GetWarpNumFreqXYZ(),
		MLPWidth:     c.GetWarpMLPWidth(),
		MLPDepth:     c.GetWarpMLPDepth(),
	}
}

// ProxySpec assembles the proxy geometry spec from the config.
func (c *Config) ProxySpec() field.ProxySpec {
	return field.ProxySpec{
		Path:     c.GetProxyPath(),
		Scale:    c.GetProxyScale(),
		EulerXYZ: c.GetProxyEuler(),
	}
}
