package config

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

const reloadDebounce = 500 * time.Millisecond

// ReloadFunc applies a freshly loaded configuration. Returning an error
// keeps the previous configuration in place.
type ReloadFunc func(*Config) error

// Watcher reloads the configuration file on change or SIGHUP, so an API
// key can be rotated without restarting the process
type Watcher struct {
	configPath string
	logger     zerolog.Logger
	watcher    *fsnotify.Watcher
	apply      ReloadFunc
	ctx        context.Context
	cancel     context.CancelFunc
	done       chan struct{}
	started    bool
}

// NewWatcher creates a new config file watcher
func NewWatcher(configPath string, apply ReloadFunc, logger zerolog.Logger) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if err := fsWatcher.Add(configPath); err != nil {
		fsWatcher.Close()
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Watcher{
		configPath: configPath,
		logger:     logger.With().Str("component", "config-watcher").Logger(),
		watcher:    fsWatcher,
		apply:      apply,
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}, nil
}

// Start starts watching for config changes
func (w *Watcher) Start() {
	w.started = true
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGHUP)

	go func() {
		defer close(w.done)
		defer signal.Stop(sigChan)
		defer w.watcher.Close()

		var debounceTimer *time.Timer
		defer func() {
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
		}()

		for {
			select {
			case <-w.ctx.Done():
				w.logger.Info().Msg("Config watcher stopped")
				return

			case sig := <-sigChan:
				w.logger.Info().
					Str("signal", sig.String()).
					Msg("Received signal, reloading configuration")
				w.Reload()

			case event, ok := <-w.watcher.Events:
				if !ok {
					return
				}

				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}

				w.logger.Debug().
					Str("file", event.Name).
					Str("op", event.Op.String()).
					Msg("Config file changed")

				if debounceTimer != nil {
					debounceTimer.Stop()
				}
				debounceTimer = time.AfterFunc(reloadDebounce, w.Reload)

			case err, ok := <-w.watcher.Errors:
				if !ok {
					return
				}
				w.logger.Error().Err(err).Msg("Config watcher error")
			}
		}
	}()

	w.logger.Info().
		Str("path", w.configPath).
		Msg("Config watcher started")
}

// Stop stops the watcher and waits for its goroutine to exit
func (w *Watcher) Stop() {
	w.cancel()
	if !w.started {
		w.watcher.Close()
		return
	}
	<-w.done
}

// Reload loads the file and hands it to the apply func. Failures are
// logged and the running configuration is kept.
func (w *Watcher) Reload() {
	w.logger.Info().Msg("Reloading configuration...")

	newCfg, err := Load(w.configPath)
	if err != nil {
		w.logger.Error().
			Err(err).
			Msg("Failed to load new configuration - keeping current config")
		return
	}

	if err := w.apply(newCfg); err != nil {
		w.logger.Error().
			Err(err).
			Msg("Failed to apply new configuration - keeping current config")
		return
	}

	w.logger.Info().Msg("Configuration reloaded successfully")
}
