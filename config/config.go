// Package config holds the tunables of the deferred renderer and loads them from TOML or YAML files.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// FitMode selects how each cascade's orthographic volume is fitted to its camera-frustum slice.
type FitMode string

const (
	// FitSphere fits a bounding sphere around the slice. The volume does not change size as the
	// camera rotates, which together with texel snapping keeps shadow edges stable.
	FitSphere FitMode = "sphere"
	// FitAABB fits the tightest axis-aligned box in light space. Better texel density, but the
	// volume changes size with camera rotation.
	FitAABB FitMode = "aabb"
)

// Format identifies a configuration file encoding.
type Format string

const (
	FormatTOML Format = "toml"
	FormatYAML Format = "yaml"
)

// MaxCascades is the largest supported cascade count. Cascade split depths travel to the GPU in a vec4.
const MaxCascades = 4

// MaxPCFRadius bounds the PCF kernel to 17x17 texels.
const MaxPCFRadius = 8

// CascadeConfig configures cascade splitting and fitting.
type CascadeConfig struct {
	Count          int     `toml:"count" yaml:"count"`
	Lambda         float32 `toml:"lambda" yaml:"lambda"`
	ShadowDistance float32 `toml:"shadow_distance" yaml:"shadow_distance"`
	Resolutions    []int   `toml:"resolutions" yaml:"resolutions"`
	FitMode        FitMode `toml:"fit_mode" yaml:"fit_mode"`
	CasterMargin   float32 `toml:"caster_margin" yaml:"caster_margin"`
}

// ShadowConfig configures biasing and filtering.
type ShadowConfig struct {
	// DepthBias is a world-space depth bias, converted per cascade by the depth scale |lightProj[2][2]|.
	DepthBias        float32 `toml:"depth_bias" yaml:"depth_bias"`
	NormalBiasScale  float32 `toml:"normal_bias_scale" yaml:"normal_bias_scale"`
	RasterDepthBias  int32   `toml:"raster_depth_bias" yaml:"raster_depth_bias"`
	RasterSlopeScale float32 `toml:"raster_slope_scale" yaml:"raster_slope_scale"`
	PCFRadius        []int   `toml:"pcf_radius" yaml:"pcf_radius"`
	GrazingFadeStart float32 `toml:"grazing_fade_start" yaml:"grazing_fade_start"`
	GrazingFadeEnd   float32 `toml:"grazing_fade_end" yaml:"grazing_fade_end"`
}

// RendererConfig configures frame pacing and buffer capacities.
type RendererConfig struct {
	FramesInFlight int        `toml:"frames_in_flight" yaml:"frames_in_flight"`
	MaxInstances   int        `toml:"max_instances" yaml:"max_instances"`
	MaxDraws       int        `toml:"max_draws" yaml:"max_draws"`
	PresentMode    string     `toml:"present_mode" yaml:"present_mode"`
	ClearColor     [4]float64 `toml:"clear_color" yaml:"clear_color"`
	// HDRAlbedo stores albedo as RGBA16Float instead of RGBA8Unorm.
	HDRAlbedo bool `toml:"hdr_albedo" yaml:"hdr_albedo"`
}

// LogConfig configures the zap logger built by NewLogger.
type LogConfig struct {
	Level       string `toml:"level" yaml:"level"`
	Development bool   `toml:"development" yaml:"development"`
}

// Config is the root configuration.
type Config struct {
	Cascades CascadeConfig  `toml:"cascades" yaml:"cascades"`
	Shadow   ShadowConfig   `toml:"shadow" yaml:"shadow"`
	Renderer RendererConfig `toml:"renderer" yaml:"renderer"`
	Log      LogConfig      `toml:"log" yaml:"log"`
}

// Default returns the built-in configuration: four cascades at 2048/2048/1024/1024 texels over the
// first 100 world units, sphere fitting, two frames in flight.
func Default() Config {
	return Config{
		Cascades: CascadeConfig{
			Count:          4,
			Lambda:         0.9,
			ShadowDistance: 100,
			Resolutions:    []int{2048, 2048, 1024, 1024},
			FitMode:        FitSphere,
			CasterMargin:   20,
		},
		Shadow: ShadowConfig{
			DepthBias:        0.05,
			NormalBiasScale:  3.0,
			RasterDepthBias:  2,
			RasterSlopeScale: 1.5,
			PCFRadius:        []int{2, 2, 1, 1},
			GrazingFadeStart: 0.0,
			GrazingFadeEnd:   0.15,
		},
		Renderer: RendererConfig{
			FramesInFlight: 2,
			MaxInstances:   4096,
			MaxDraws:       4096,
			PresentMode:    "vsync",
			ClearColor:     [4]float64{0.1, 0.1, 0.1, 1},
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads a configuration file, choosing the decoder from the file extension. Fields absent
// from the file keep their Default values. The result is validated.
//
// Parameters:
//   - path: path to a .toml, .yaml or .yml file
//
// Returns:
//   - Config: the decoded configuration
//   - error: a read, decode or validation error
func Load(path string) (Config, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return Config{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Decode(bytes.NewReader(data), format)
}

// FormatFromPath maps a file extension to a Format.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return FormatTOML, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("config: unsupported file extension %q", filepath.Ext(path))
	}
}

// Decode reads a configuration in the given format on top of Default and validates it.
//
// Parameters:
//   - r: the encoded configuration
//   - format: FormatTOML or FormatYAML
//
// Returns:
//   - Config: the decoded configuration
//   - error: a decode or validation error
func Decode(r io.Reader, format Format) (Config, error) {
	cfg := Default()
	switch format {
	case FormatTOML:
		if err := toml.NewDecoder(r).DisallowUnknownFields().Decode(&cfg); err != nil {
			return Config{}, fmt.Errorf("config: decode toml: %w", err)
		}
	case FormatYAML:
		dec := yaml.NewDecoder(r)
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return Config{}, fmt.Errorf("config: decode yaml: %w", err)
		}
	default:
		return Config{}, fmt.Errorf("config: unknown format %q", format)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Encode writes the configuration in the given format.
func (c Config) Encode(w io.Writer, format Format) error {
	switch format {
	case FormatTOML:
		return toml.NewEncoder(w).Encode(c)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		if err := enc.Encode(c); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("config: unknown format %q", format)
	}
}

// Validate checks every field and reports all violations joined together.
func (c Config) Validate() error {
	var errs []error
	cc := c.Cascades
	if cc.Count < 3 || cc.Count > MaxCascades {
		errs = append(errs, fmt.Errorf("cascades.count must be 3 or 4, got %d", cc.Count))
	}
	if cc.Lambda < 0 || cc.Lambda > 1 {
		errs = append(errs, fmt.Errorf("cascades.lambda must be within [0, 1], got %g", cc.Lambda))
	}
	if cc.ShadowDistance < 0 {
		errs = append(errs, fmt.Errorf("cascades.shadow_distance must not be negative, got %g", cc.ShadowDistance))
	}
	if len(cc.Resolutions) < cc.Count {
		errs = append(errs, fmt.Errorf("cascades.resolutions needs %d entries, got %d", cc.Count, len(cc.Resolutions)))
	}
	for i, r := range cc.Resolutions {
		if r < 16 || r > 8192 || r&(r-1) != 0 {
			errs = append(errs, fmt.Errorf("cascades.resolutions[%d] must be a power of two in [16, 8192], got %d", i, r))
		}
	}
	if cc.FitMode != FitSphere && cc.FitMode != FitAABB {
		errs = append(errs, fmt.Errorf("cascades.fit_mode must be %q or %q, got %q", FitSphere, FitAABB, cc.FitMode))
	}
	if cc.CasterMargin < 0 {
		errs = append(errs, fmt.Errorf("cascades.caster_margin must not be negative, got %g", cc.CasterMargin))
	}

	sc := c.Shadow
	if sc.DepthBias < 0 || sc.NormalBiasScale < 0 {
		errs = append(errs, errors.New("shadow biases must not be negative"))
	}
	if len(sc.PCFRadius) < cc.Count {
		errs = append(errs, fmt.Errorf("shadow.pcf_radius needs %d entries, got %d", cc.Count, len(sc.PCFRadius)))
	}
	for i, r := range sc.PCFRadius {
		if r < 0 || r > MaxPCFRadius {
			errs = append(errs, fmt.Errorf("shadow.pcf_radius[%d] must be within [0, %d], got %d", i, MaxPCFRadius, r))
		}
	}
	if sc.GrazingFadeEnd < sc.GrazingFadeStart {
		errs = append(errs, fmt.Errorf("shadow.grazing_fade_end (%g) must not be below grazing_fade_start (%g)", sc.GrazingFadeEnd, sc.GrazingFadeStart))
	}

	rc := c.Renderer
	if rc.FramesInFlight < 1 || rc.FramesInFlight > 3 {
		errs = append(errs, fmt.Errorf("renderer.frames_in_flight must be within [1, 3], got %d", rc.FramesInFlight))
	}
	if rc.MaxInstances < 1 {
		errs = append(errs, fmt.Errorf("renderer.max_instances must be positive, got %d", rc.MaxInstances))
	}
	if rc.MaxDraws < 1 {
		errs = append(errs, fmt.Errorf("renderer.max_draws must be positive, got %d", rc.MaxDraws))
	}
	switch rc.PresentMode {
	case "vsync", "uncapped":
	default:
		errs = append(errs, fmt.Errorf("renderer.present_mode must be \"vsync\" or \"uncapped\", got %q", rc.PresentMode))
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: invalid configuration: %w", err)
	}
	return nil
}

// MaxResolution returns the largest resolution among the active cascades.
func (c CascadeConfig) MaxResolution() int {
	m := 0
	for _, r := range c.Resolutions[:c.Count] {
		m = max(m, r)
	}
	return m
}
