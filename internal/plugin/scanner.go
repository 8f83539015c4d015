package plugin

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/Jasonic/vlc/internal/module"
	plua "github.com/Jasonic/vlc/internal/plugin/lua"
)

// DefaultScanWorkers is the number of plugins loaded concurrently.
const DefaultScanWorkers = 4

// Scanner discovers and loads Lua plugins for a module bank.
type Scanner struct {
	loader           *Loader
	workers          int
	executionTimeout time.Duration
	logger           zerolog.Logger
}

var _ module.Scanner = (*Scanner)(nil)

// ScannerOption configures a Scanner.
type ScannerOption func(*Scanner)

// WithScanWorkers limits how many plugins load at once.
func WithScanWorkers(n int) ScannerOption {
	return func(s *Scanner) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithScanTimeout sets the execution timeout of every plugin call.
func WithScanTimeout(d time.Duration) ScannerOption {
	return func(s *Scanner) {
		if d > 0 {
			s.executionTimeout = d
		}
	}
}

// WithScanLogger sets the logger handed to the loader and every host.
func WithScanLogger(logger zerolog.Logger) ScannerOption {
	return func(s *Scanner) {
		s.logger = logger
	}
}

// NewScanner creates a scanner over paths. With no paths the default
// plugin paths are searched.
func NewScanner(paths []string, opts ...ScannerOption) *Scanner {
	s := &Scanner{
		workers:          DefaultScanWorkers,
		executionTimeout: plua.DefaultExecutionTimeout,
		logger:           zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With().Str("component", "plugin_scanner").Logger()

	loaderOpts := []LoaderOption{WithLoaderLogger(s.logger)}
	if len(paths) > 0 {
		loaderOpts = append(loaderOpts, WithPaths(paths...))
	}
	s.loader = NewLoader(loaderOpts...)
	return s
}

// Paths returns the directories the scanner searches.
func (s *Scanner) Paths() []string {
	return s.loader.Paths()
}

// Scan discovers every plugin and loads the candidates concurrently.
// Libraries come back in discovery order; candidates that fail to load are
// reported as LoadErrors and never returned as libraries.
func (s *Scanner) Scan(ctx context.Context) ([]module.Library, []*module.LoadError) {
	infos, err := s.loader.Discover()
	if err != nil {
		s.logger.Warn().Err(err).Msg("plugin discovery incomplete")
	}

	hosts := make([]*Host, len(infos))
	failures := make([]error, len(infos))

	var g errgroup.Group
	g.SetLimit(s.workers)
	for i, info := range infos {
		if info.Error != nil {
			failures[i] = info.Error
			continue
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				failures[i] = err
				return nil
			}
			host, err := s.load(ctx, info)
			if err != nil {
				failures[i] = err
				return nil
			}
			hosts[i] = host
			return nil
		})
	}
	// Candidate failures are collected per slot; the group never fails.
	_ = g.Wait()

	var (
		libs   []module.Library
		errors []*module.LoadError
	)
	for i, info := range infos {
		if failures[i] != nil {
			s.logger.Debug().Err(failures[i]).Str("plugin", info.Name).Str("path", info.Path).Msg("plugin rejected")
			errors = append(errors, &module.LoadError{Path: info.Path, Name: info.Name, Err: failures[i]})
			continue
		}
		libs = append(libs, hosts[i])
	}
	s.logger.Debug().Int("loaded", len(libs)).Int("rejected", len(errors)).Msg("plugin scan complete")
	return libs, errors
}

// load creates and loads the host for one plugin.
func (s *Scanner) load(ctx context.Context, info *PluginInfo) (*Host, error) {
	host, err := NewHost(info.Manifest,
		WithHostExecutionTimeout(s.executionTimeout),
		WithHostLogger(s.logger),
	)
	if err != nil {
		return nil, err
	}
	if err := host.Load(ctx); err != nil {
		return nil, fmt.Errorf("load plugin %q: %w", info.Name, err)
	}
	return host, nil
}
