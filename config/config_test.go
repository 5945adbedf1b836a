package config

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 4, cfg.Cascades.Count)
	assert.Equal(t, 2048, cfg.Cascades.MaxResolution())
}

func TestDecodeTOMLOverridesDefaults(t *testing.T) {
	src := `
[cascades]
count = 3
lambda = 0.5
resolutions = [1024, 512, 512]
fit_mode = "aabb"

[shadow]
pcf_radius = [1, 1, 0]
`
	cfg, err := Decode(strings.NewReader(src), FormatTOML)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Cascades.Count)
	assert.InDelta(t, 0.5, cfg.Cascades.Lambda, 1e-6)
	assert.Equal(t, FitAABB, cfg.Cascades.FitMode)
	assert.Equal(t, 1024, cfg.Cascades.MaxResolution())
	// untouched fields keep their defaults
	assert.InDelta(t, 100, cfg.Cascades.ShadowDistance, 1e-6)
	assert.Equal(t, 2, cfg.Renderer.FramesInFlight)
}

func TestDecodeYAML(t *testing.T) {
	src := `
renderer:
  frames_in_flight: 3
  present_mode: uncapped
log:
  level: debug
`
	cfg, err := Decode(strings.NewReader(src), FormatYAML)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Renderer.FramesInFlight)
	assert.Equal(t, "uncapped", cfg.Renderer.PresentMode)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestDecodeEmptyYAMLKeepsDefaults(t *testing.T) {
	cfg, err := Decode(strings.NewReader(""), FormatYAML)
	require.NoError(t, err)
	assert.Equal(t, Default().Cascades.Count, cfg.Cascades.Count)
}

func TestDecodeRejectsUnknownFields(t *testing.T) {
	_, err := Decode(strings.NewReader("[cascades]\nbogus = 1\n"), FormatTOML)
	assert.Error(t, err)
}

func TestValidateJoinsAllViolations(t *testing.T) {
	cfg := Default()
	cfg.Cascades.Count = 5
	cfg.Cascades.Lambda = 2
	cfg.Shadow.PCFRadius = []int{9, 0, 0, 0}
	cfg.Renderer.FramesInFlight = 0

	err := cfg.Validate()
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "cascades.count")
	assert.Contains(t, msg, "cascades.lambda")
	assert.Contains(t, msg, "shadow.pcf_radius[0]")
	assert.Contains(t, msg, "renderer.frames_in_flight")
}

func TestValidateRejectsNonPowerOfTwoResolution(t *testing.T) {
	cfg := Default()
	cfg.Cascades.Resolutions = []int{2048, 1500, 1024, 1024}
	assert.ErrorContains(t, cfg.Validate(), "resolutions[1]")
}

func TestEncodeRoundTrip(t *testing.T) {
	for _, format := range []Format{FormatTOML, FormatYAML} {
		t.Run(string(format), func(t *testing.T) {
			cfg := Default()
			cfg.Cascades.FitMode = FitAABB
			var buf bytes.Buffer
			require.NoError(t, cfg.Encode(&buf, format))
			got, err := Decode(&buf, format)
			require.NoError(t, err)
			assert.Equal(t, cfg, got)
		})
	}
}

func TestLoadByExtension(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "render.yml")
	require.NoError(t, os.WriteFile(path, []byte("cascades:\n  count: 3\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Cascades.Count)

	_, err = Load(filepath.Join(dir, "render.json"))
	assert.ErrorContains(t, err, "unsupported file extension")
}

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger(LogConfig{Level: "debug", Development: true})
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(-1))

	_, err = NewLogger(LogConfig{Level: "loud"})
	assert.Error(t, err)
}

func TestWatcherDeliversValidReloads(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "render.toml")
	require.NoError(t, os.WriteFile(path, []byte("[cascades]\ncount = 4\n"), 0o644))

	w, err := NewWatcher(path, nil)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	require.NoError(t, os.WriteFile(path, []byte("[cascades]\ncount = 9\n"), 0o644))
	select {
	case err := <-w.Errors():
		assert.ErrorContains(t, err, "cascades.count")
	case <-time.After(5 * time.Second):
		t.Fatal("expected a reload error")
	}

	require.NoError(t, os.WriteFile(path, []byte("[cascades]\ncount = 3\nresolutions = [512, 512, 512]\n"), 0o644))
	deadline := time.After(5 * time.Second)
	for {
		select {
		case cfg := <-w.Configs():
			if cfg.Cascades.Count == 3 {
				assert.Equal(t, 512, cfg.Cascades.MaxResolution())
				return
			}
		case <-w.Errors():
			// partial writes may decode as invalid; wait for the complete file
		case <-deadline:
			t.Fatal("expected a reloaded config")
		}
	}
}
