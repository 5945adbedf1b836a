package config

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher reloads a configuration file whenever it changes on disk. Only configurations that
// decode and validate are delivered on Configs; failures are delivered on Errors.
type Watcher struct {
	path    string
	watcher *fsnotify.Watcher
	configs chan Config
	errors  chan error
	logger  *zap.Logger
}

// NewWatcher starts watching the directory that contains path. The directory is watched rather
// than the file so that editors which replace the file on save still trigger a reload.
//
// Parameters:
//   - path: the configuration file to watch
//   - logger: receives reload diagnostics; nil disables logging
//
// Returns:
//   - *Watcher: the running watcher, stopped by Run returning
//   - error: if the file extension is unsupported or the watch cannot be established
func NewWatcher(path string, logger *zap.Logger) (*Watcher, error) {
	if _, err := FormatFromPath(path); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("config: resolve %s: %w", path, err)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config: create watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("config: watch %s: %w", filepath.Dir(abs), err)
	}
	return &Watcher{
		path:    abs,
		watcher: fw,
		configs: make(chan Config, 1),
		errors:  make(chan error, 1),
		logger:  logger,
	}, nil
}

// Configs delivers each successfully reloaded configuration.
func (w *Watcher) Configs() <-chan Config {
	return w.configs
}

// Errors delivers reload failures. A failed reload leaves the previous configuration in effect.
func (w *Watcher) Errors() <-chan error {
	return w.errors
}

// Run processes file events until ctx is cancelled, then closes the watcher and both channels.
func (w *Watcher) Run(ctx context.Context) {
	defer close(w.errors)
	defer close(w.configs)
	defer w.watcher.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			cfg, err := Load(w.path)
			if err != nil {
				w.logger.Warn("config reload rejected", zap.String("path", w.path), zap.Error(err))
				w.send(ctx, nil, err)
				continue
			}
			w.logger.Info("config reloaded", zap.String("path", w.path))
			w.send(ctx, &cfg, nil)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.send(ctx, nil, fmt.Errorf("config: watch: %w", err))
		}
	}
}

func (w *Watcher) send(ctx context.Context, cfg *Config, err error) {
	if cfg != nil {
		// drop a stale undelivered config in favor of the newest one
		select {
		case <-w.configs:
		default:
		}
		select {
		case w.configs <- *cfg:
		case <-ctx.Done():
		}
		return
	}
	select {
	case w.errors <- err:
	case <-ctx.Done():
	default:
		w.logger.Debug("config error dropped, receiver not keeping up", zap.Error(err))
	}
}
