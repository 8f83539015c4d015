// Package app hosts the module bank.
//
// An Application loads the configuration, builds the logger, the builtin
// module list and the plugin scanner, and owns the resulting module.Bank.
// Run drives the periodic idle sweep and, when enabled, resets the bank
// after plugin directories change.
package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/Jasonic/vlc/internal/builtins"
	"github.com/Jasonic/vlc/internal/config"
	"github.com/Jasonic/vlc/internal/module"
	"github.com/Jasonic/vlc/internal/plugin"
)

// Options configures the application. Non-zero fields override the
// configuration file.
type Options struct {
	// ConfigPath is the path to the configuration file.
	ConfigPath string

	// Config is used instead of loading ConfigPath when set.
	Config *config.Config

	// PluginPaths replaces the configured plugin search paths.
	PluginPaths []string

	// LogLevel and LogFormat override the logging section.
	LogLevel  string
	LogFormat string

	// LogOutput defaults to os.Stderr.
	LogOutput io.Writer

	// Builtins replaces the compiled-in module list. Nil means
	// builtins.Definitions().
	Builtins []*module.Definition
}

// Application owns a module bank and the services around it.
type Application struct {
	mu sync.Mutex

	cfg     *config.Config
	logger  zerolog.Logger
	bank    *module.Bank
	scanner *plugin.Scanner
	metrics *Metrics

	unsubscribe func()
	running     atomic.Bool
}

// New creates an application. The bank is built but not initialized; call
// InitBank before Need.
func New(opts Options) (*Application, error) {
	cfg, err := resolveConfig(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInitialization, NewComponentError("config", "load", err))
	}

	logger := NewLogger(LoggerConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: opts.LogOutput,
	})

	paths := cfg.Plugins.Paths
	if len(paths) == 0 {
		paths = plugin.DefaultPluginPaths()
	}
	paths = expandPaths(paths)

	scanner := plugin.NewScanner(paths,
		plugin.WithScanWorkers(cfg.Plugins.ScanWorkers),
		plugin.WithScanTimeout(cfg.Plugins.Timeout.Std()),
		plugin.WithScanLogger(logger),
	)

	defs := opts.Builtins
	if defs == nil {
		defs = builtins.Definitions()
	}

	app := &Application{
		cfg:     cfg,
		logger:  logger,
		scanner: scanner,
		metrics: NewMetrics(),
	}
	app.bank = module.New(
		module.WithBuiltins(defs...),
		module.WithScanner(scanner),
		module.WithHideDelay(cfg.Bank.HideDelay),
		module.WithRetention(cfg.Retention()),
		module.WithScorer(module.PreferenceScorer{Defaults: cfg.PreferenceMap()}),
		module.WithStrict(cfg.Bank.Strict),
		module.WithLogger(WithComponent(logger, "bank")),
	)
	app.unsubscribe = app.bank.Subscribe(app.metrics.Observe)

	return app, nil
}

func resolveConfig(opts Options) (*config.Config, error) {
	cfg := opts.Config
	if cfg == nil {
		var err error
		if cfg, err = config.Load(opts.ConfigPath); err != nil {
			return nil, err
		}
	} else {
		c := *cfg
		cfg = &c
	}

	if len(opts.PluginPaths) > 0 {
		cfg.Plugins.Paths = append([]string(nil), opts.PluginPaths...)
	}
	if opts.LogLevel != "" {
		cfg.Logging.Level = opts.LogLevel
	}
	if opts.LogFormat != "" {
		cfg.Logging.Format = opts.LogFormat
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// expandPaths resolves a leading "~/" against the home directory.
func expandPaths(paths []string) []string {
	home, err := os.UserHomeDir()
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if err == nil && (p == "~" || strings.HasPrefix(p, "~/")) {
			p = filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
		out = append(out, p)
	}
	return out
}

// Config returns the effective configuration.
func (app *Application) Config() *config.Config {
	return app.cfg
}

// Logger returns the application logger.
func (app *Application) Logger() zerolog.Logger {
	return app.logger
}

// Bank returns the module bank.
func (app *Application) Bank() *module.Bank {
	return app.bank
}

// Metrics returns the bank activity counters.
func (app *Application) Metrics() *Metrics {
	return app.metrics
}

// PluginPaths returns the directories scanned for plugins.
func (app *Application) PluginPaths() []string {
	return app.scanner.Paths()
}

// InitBank registers the builtins and scans the plugin paths. Rejected
// plugins are skipped; the bank logs each one and keeps them in
// Bank().LoadErrors.
func (app *Application) InitBank(ctx context.Context) error {
	start := time.Now()
	if err := app.bank.Init(ctx); err != nil {
		return NewComponentError("bank", "init", err)
	}
	app.logScan("module bank initialized", start)
	return nil
}

// EndBank tears every module down.
func (app *Application) EndBank() {
	app.bank.End()
	app.logger.Debug().Msg("module bank ended")
}

// ResetBank unloads the plugins and scans the plugin paths again.
func (app *Application) ResetBank(ctx context.Context) error {
	app.mu.Lock()
	defer app.mu.Unlock()

	start := time.Now()
	if err := app.bank.Reset(ctx); err != nil {
		return NewComponentError("bank", "reset", err)
	}
	app.metrics.RecordReset()
	app.logScan("module bank reset", start)
	return nil
}

func (app *Application) logScan(msg string, start time.Time) {
	errs := app.bank.LoadErrors()
	app.logger.Info().
		Int("modules", len(app.bank.Modules())).
		Int("rejected", len(errs)).
		Dur("took", time.Since(start)).
		Msg(msg)
}

// ManageBank runs one idle sweep.
func (app *Application) ManageBank() {
	app.bank.Manage()
	app.metrics.RecordSweep()
}

// Need selects and pins the best module for c.
func (app *Application) Need(ctx context.Context, c module.Capability, data module.ProbeData) (*module.Handle, error) {
	start := time.Now()
	h, err := app.bank.Need(ctx, c, data)
	app.metrics.RecordNeed(time.Since(start), err)
	return h, err
}

// Unneed releases a handle returned by Need.
func (app *Application) Unneed(h *module.Handle) {
	app.bank.Unneed(h)
}

// NeedModule is Need reporting failure through exc instead of an error.
// It returns nil when no module was selected.
func (app *Application) NeedModule(ctx context.Context, c module.Capability, data module.ProbeData, exc *Exception) *module.Handle {
	h, err := app.Need(ctx, c, data)
	if err != nil {
		exc.raiseErr(fmt.Sprintf("cannot find %s module", c), err)
		return nil
	}
	return h
}

// Instantiate creates an application and initializes its bank, reporting
// failure through exc. It returns nil on failure.
func Instantiate(ctx context.Context, opts Options, exc *Exception) *Application {
	app, err := New(opts)
	if err != nil {
		exc.raiseErr("initialization failed", err)
		return nil
	}
	if err := app.InitBank(ctx); err != nil {
		app.Destroy()
		exc.raiseErr("initialization failed", err)
		return nil
	}
	return app
}

// Destroy ends the bank and detaches the metrics. The application cannot be
// used afterwards.
func (app *Application) Destroy() {
	app.EndBank()
	if app.unsubscribe != nil {
		app.unsubscribe()
		app.unsubscribe = nil
	}
}
