package app

import (
	"context"
	"errors"
	"time"

	"github.com/Jasonic/vlc/internal/watcher"
)

// Run drives the bank until ctx is done: it calls ManageBank every
// bank.manage_interval and, with plugins.watch set, resets the bank after
// each debounced burst of plugin file changes. Run does not end the bank.
func (app *Application) Run(ctx context.Context) error {
	if !app.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer app.running.Store(false)

	var (
		batches <-chan watcher.Batch
		errs    <-chan error
	)
	if app.cfg.Plugins.Watch {
		d, err := app.startWatcher()
		if err != nil {
			return NewComponentError("watcher", "start", err)
		}
		defer d.Close()
		batches, errs = d.Batches(), d.Errors()
	}

	interval := app.cfg.Bank.ManageInterval.Std()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	app.logger.Info().
		Dur("manage_interval", interval).
		Bool("watch", batches != nil).
		Msg("host running")

	for {
		select {
		case <-ctx.Done():
			app.logger.Info().Msg("host stopping")
			return nil

		case <-ticker.C:
			app.ManageBank()

		case batch, ok := <-batches:
			if !ok {
				batches = nil
				continue
			}
			app.logger.Info().Strs("paths", batch.Paths()).Msg("plugin files changed")
			if err := app.ResetBank(ctx); err != nil {
				app.logger.Error().Err(err).Msg("bank reset failed")
			}

		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			app.logger.Warn().Err(err).Msg("watcher error")
		}
	}
}

// Running reports whether Run is active.
func (app *Application) Running() bool {
	return app.running.Load()
}

func (app *Application) startWatcher() (*watcher.Debouncer, error) {
	logger := WithComponent(app.logger, "watcher")

	w, err := watcher.NewFSNotifyWatcher(
		watcher.WithFilter(watcher.PluginFiles),
		watcher.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}

	watched := 0
	for _, path := range app.scanner.Paths() {
		if err := w.WatchRecursive(path); err != nil {
			if errors.Is(err, watcher.ErrPathNotExist) {
				logger.Debug().Str("path", path).Msg("plugin path missing, not watched")
				continue
			}
			w.Close()
			return nil, err
		}
		watched++
	}
	logger.Debug().Int("paths", watched).Msg("watching plugin paths")

	return watcher.NewDebouncer(w, app.cfg.Plugins.Debounce.Std()), nil
}
