// Command oxy-shaderc builds every pipeline variant the deferred renderer uses for a configuration
// and compiles each one to SPIR-V with naga, reporting every variant that fails. With -out it also
// writes the processed WGSL and the SPIR-V modules, one pair per pipeline key.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/Carmen-Shannon/oxy-deferred/config"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/shader"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	configPath := flag.String("config", "", "TOML or YAML configuration file; defaults are used when empty")
	outDir := flag.String("out", "", "directory for the generated .wgsl and .spv files")
	verbose := flag.Bool("v", false, "log every compiled variant")
	flag.Parse()

	if err := run(*configPath, *outDir, *verbose); err != nil {
		fmt.Fprintln(os.Stderr, "oxy-shaderc:", err)
		os.Exit(1)
	}
}

func run(configPath, outDir string, verbose bool) error {
	cfg := config.Default()
	if configPath != "" {
		var err error
		if cfg, err = config.Load(configPath); err != nil {
			return err
		}
	}
	if verbose {
		cfg.Log.Level = "debug"
	}
	logger, err := config.NewLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	pipelines, err := pipeline.NewPassPipelines(cfg, gpu.TextureFormatBGRA8UnormSrgb)
	if err != nil {
		return err
	}
	if outDir != "" {
		if err := os.MkdirAll(outDir, 0o755); err != nil {
			return err
		}
	}

	var (
		mu   sync.Mutex
		errs []error
	)
	var g errgroup.Group
	g.SetLimit(runtime.NumCPU())
	for _, p := range pipelines {
		g.Go(func() error {
			if err := compile(p, outDir, logger); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	if err := errors.Join(errs...); err != nil {
		return err
	}
	logger.Info("compiled pipelines", zap.Int("count", len(pipelines)), zap.Int("cascades", cfg.Cascades.Count))
	return nil
}

// compile translates one pipeline's shader and writes the outputs when outDir is set.
func compile(p pipeline.Pipeline, outDir string, logger *zap.Logger) error {
	s := p.Shader()
	spirv, err := shader.CompileSPIRV(s)
	if err != nil {
		logger.Error("compile failed", zap.String("key", p.PipelineKey()), zap.Error(err))
		return err
	}
	logger.Debug("compiled", zap.String("key", p.PipelineKey()), zap.Int("spirv_bytes", len(spirv)))
	if outDir == "" {
		return nil
	}

	base := filepath.Join(outDir, p.PipelineKey())
	if err := os.WriteFile(base+".wgsl", []byte(s.Source()), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", p.PipelineKey(), err)
	}
	if err := os.WriteFile(base+".spv", spirv, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", p.PipelineKey(), err)
	}
	return nil
}
