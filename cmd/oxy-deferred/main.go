// Command oxy-deferred opens a window and renders a sunlit test scene with the deferred renderer:
// a ground plane and a grid of spinning cubes casting cascaded shadows. Drag to orbit, scroll to
// zoom, space to pause the sun. A glTF or GLB file given with -model is placed beside the grid.
// When started with -config the file is watched and every valid
// change is applied without restarting.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/Carmen-Shannon/oxy-deferred/config"
	"github.com/Carmen-Shannon/oxy-deferred/engine"
	"github.com/Carmen-Shannon/oxy-deferred/engine/loader"
	"github.com/Carmen-Shannon/oxy-deferred/engine/model"
	"github.com/Carmen-Shannon/oxy-deferred/engine/orchestrator"
	"github.com/Carmen-Shannon/oxy-deferred/engine/profiler"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer"
	"github.com/Carmen-Shannon/oxy-deferred/engine/window"
	"go.uber.org/zap"
)

type options struct {
	configPath string
	modelPath  string
	software   bool
	grid       int
	width      int
	height     int
}

func main() {
	var opts options
	flag.StringVar(&opts.configPath, "config", "", "TOML or YAML configuration file, watched for changes")
	flag.StringVar(&opts.modelPath, "model", "", "glTF or GLB model to place beside the cube grid")
	flag.BoolVar(&opts.software, "software", false, "force the software fallback adapter")
	flag.IntVar(&opts.grid, "grid", 6, "cubes per side of the cube grid")
	flag.IntVar(&opts.width, "width", 1280, "initial window width")
	flag.IntVar(&opts.height, "height", 720, "initial window height")
	flag.Parse()

	if err := run(opts); err != nil {
		fmt.Fprintln(os.Stderr, "oxy-deferred:", err)
		os.Exit(1)
	}
}

func run(opts options) error {
	cfg := config.Default()
	if opts.configPath != "" {
		var err error
		if cfg, err = config.Load(opts.configPath); err != nil {
			return err
		}
	}
	logger, err := config.NewLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	var models []model.Model
	if opts.modelPath != "" {
		l := loader.NewLoader(loader.BackendTypeGLTF,
			loader.WithLogger(logger.Named("loader")),
			loader.WithMaxTextureSize(2048),
		)
		if models, err = l.Load(opts.modelPath); err != nil {
			return err
		}
	}
	if draws := opts.grid*opts.grid + len(models) + 1; draws > cfg.Renderer.MaxDraws {
		return fmt.Errorf("scene needs %d draws, renderer.max_draws is %d", draws, cfg.Renderer.MaxDraws)
	}

	win, err := window.NewWindow(window.WithTitle("oxy-deferred"), window.WithSize(opts.width, opts.height))
	if err != nil {
		return err
	}
	defer win.Close()

	mode, err := renderer.ParsePresentMode(cfg.Renderer.PresentMode)
	if err != nil {
		return err
	}
	r, err := renderer.NewRenderer(renderer.BackendTypeWGPU, win,
		renderer.WithPresentMode(mode),
		renderer.WithForceSoftwareRenderer(opts.software),
		renderer.WithLogger(logger),
	)
	if err != nil {
		return err
	}
	defer r.Close()

	orch, err := orchestrator.New(r, cfg, win.Width(), win.Height(),
		orchestrator.WithLogger(logger),
		orchestrator.WithProfiler(profiler.NewProfiler(profiler.WithLogger(logger.Named("profiler")))),
	)
	if err != nil {
		return err
	}
	defer func() {
		if err := orch.Close(context.Background()); err != nil {
			logger.Warn("close", zap.Error(err))
		}
	}()

	scene, err := newDemoScene(orch, opts.grid, win.Width(), win.Height(), models)
	if err != nil {
		return err
	}
	win.SetScrollCallback(scene.zoom)
	win.SetDragCallback(scene.orbit)
	win.SetKeyDownCallback(scene.key)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var updates <-chan config.Config
	if opts.configPath != "" {
		watcher, err := config.NewWatcher(opts.configPath, logger.Named("config"))
		if err != nil {
			return err
		}
		go watcher.Run(ctx)
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case err := <-watcher.Errors():
					logger.Warn("config reload failed", zap.Error(err))
				}
			}
		}()
		updates = watcher.Configs()
	}

	eng, err := engine.NewEngine(
		engine.WithWindow(win),
		engine.WithOrchestrator(orch),
		engine.WithConfigUpdates(updates),
		engine.WithTickRate(60),
		engine.WithLogger(logger),
	)
	if err != nil {
		return err
	}
	eng.SetTickCallback(scene.tick)
	eng.SetFrameSource(scene.frame)
	eng.SetResizeCallback(scene.resize)

	logger.Info("running", zap.Int("cubes", opts.grid*opts.grid), zap.String("present_mode", mode.String()))
	return eng.Run(ctx)
}
