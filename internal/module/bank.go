package module

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// DefaultHideDelay is the number of idle sweeps after which an unused
// dynamic module is unloaded.
const DefaultHideDelay = 10000

// Bank is the registry of every module known to the process.
//
// A single mutex guards the registry and every descriptor's usage and idle
// counters. Need, Unneed and Manage are atomic with respect to each other.
// Init, Reset and End run one at a time, scan included; they must not be
// called from an event handler.
type Bank struct {
	mu sync.Mutex

	// Serializes Init, Reset and End
	opMu sync.Mutex

	// Registered modules in registration order
	modules []*descriptor

	// Registered modules by name
	byName map[string]*descriptor

	// Candidates rejected by the last Init or Reset
	loadErrors []*LoadError

	nextSeq     uint64
	initialized bool

	// Event handlers (protected by eventsMu)
	eventsMu      sync.RWMutex
	eventHandlers []EventHandler

	// Configuration, immutable after New
	builtins  []*Definition
	scanner   Scanner
	hideDelay int
	retention Retention
	scorer    Scorer
	strict    bool
	logger    zerolog.Logger
}

// Option configures a Bank.
type Option func(*Bank)

// WithBuiltins adds compiled-in modules. They are registered by Init, in
// order, before any dynamic module.
func WithBuiltins(defs ...*Definition) Option {
	return func(b *Bank) {
		b.builtins = append(b.builtins, defs...)
	}
}

// WithScanner sets the dynamic module scanner.
func WithScanner(s Scanner) Option {
	return func(b *Bank) {
		b.scanner = s
	}
}

// WithHideDelay sets the number of idle sweeps before eviction.
// Values below 1 are ignored.
func WithHideDelay(n int) Option {
	return func(b *Bank) {
		if n > 0 {
			b.hideDelay = n
		}
	}
}

// WithRetention sets what happens to evicted dynamic modules.
func WithRetention(r Retention) Option {
	return func(b *Bank) {
		b.retention = r
	}
}

// WithScorer sets the scoring policy used by Need.
func WithScorer(s Scorer) Option {
	return func(b *Bank) {
		if s != nil {
			b.scorer = s
		}
	}
}

// WithStrict makes invariant violations panic instead of being logged.
func WithStrict(strict bool) Option {
	return func(b *Bank) {
		b.strict = strict
	}
}

// WithLogger sets the bank's logger.
func WithLogger(l zerolog.Logger) Option {
	return func(b *Bank) {
		b.logger = l
	}
}

// New creates an uninitialized bank.
func New(opts ...Option) *Bank {
	b := &Bank{
		byName:    make(map[string]*descriptor),
		hideDelay: DefaultHideDelay,
		retention: RetainRemove,
		scorer:    RawScorer{},
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = b.logger.With().Str("component", "module_bank").Logger()
	return b
}

// HideDelay returns the configured hide delay.
func (b *Bank) HideDelay() int {
	return b.hideDelay
}

// Init registers the builtin modules, then the dynamic modules found by the
// scanner. Rejected candidates are recorded in LoadErrors and do not fail
// Init. The bank is usable once Init returns, even on error.
func (b *Bank) Init(ctx context.Context) error {
	b.opMu.Lock()
	defer b.opMu.Unlock()

	b.mu.Lock()
	if b.initialized {
		b.mu.Unlock()
		return ErrAlreadyInitialized
	}
	b.initialized = true
	b.loadErrors = nil
	events := b.registerBuiltinsLocked()
	b.mu.Unlock()

	b.emit(events...)
	return b.scan(ctx)
}

// End tears the bank down: builtin deactivate callbacks run, dynamic
// libraries are unloaded and the registry is cleared. Handles still held
// become stale; releasing them later is logged and ignored.
func (b *Bank) End() {
	b.opMu.Lock()
	defer b.opMu.Unlock()

	b.mu.Lock()
	events := b.teardownLocked("end")
	b.initialized = false
	b.loadErrors = nil
	b.mu.Unlock()

	b.emit(events...)
	b.logger.Debug().Msg("module bank ended")
}

// Reset tears every module down regardless of usage, re-registers the
// builtins and rescans for dynamic modules. Evicted and faulty modules come
// back this way.
func (b *Bank) Reset(ctx context.Context) error {
	b.opMu.Lock()
	defer b.opMu.Unlock()

	b.mu.Lock()
	if !b.initialized {
		b.mu.Unlock()
		return ErrNotInitialized
	}
	events := b.teardownLocked("reset")
	b.loadErrors = nil
	events = append(events, b.registerBuiltinsLocked()...)
	b.mu.Unlock()

	b.emit(events...)
	return b.scan(ctx)
}

// Modules returns a snapshot of every registered module in registration
// order.
func (b *Bank) Modules() []Info {
	b.mu.Lock()
	defer b.mu.Unlock()

	infos := make([]Info, 0, len(b.modules))
	for _, d := range b.modules {
		infos = append(infos, d.info())
	}
	return infos
}

// Lookup returns a snapshot of the named module.
func (b *Bank) Lookup(name string) (Info, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	d, ok := b.byName[name]
	if !ok {
		return Info{}, false
	}
	return d.info(), true
}

// LoadErrors returns the candidates rejected by the last Init or Reset.
func (b *Bank) LoadErrors() []*LoadError {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*LoadError(nil), b.loadErrors...)
}

// Initialized reports whether Init has run without a matching End.
func (b *Bank) Initialized() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.initialized
}

// scan runs the scanner without mu, then registers what it found.
// Must be called with opMu held.
func (b *Bank) scan(ctx context.Context) error {
	if b.scanner == nil {
		return ctx.Err()
	}

	libs, loadErrs := b.scanner.Scan(ctx)

	var (
		events   []Event
		rejected []Library
		failures = append([]*LoadError(nil), loadErrs...)
	)

	b.mu.Lock()
	if !b.initialized {
		// Ended while scanning.
		b.mu.Unlock()
		for _, lib := range libs {
			_ = lib.Unload()
		}
		return ErrNotInitialized
	}
	for _, le := range loadErrs {
		b.loadErrors = append(b.loadErrors, le)
		events = append(events, Event{Type: EventLoadFailed, Module: le.Name, Error: le})
	}
	for _, lib := range libs {
		ev, err := b.registerLocked(lib.Definition(), OriginDynamic, lib)
		if err != nil {
			le := &LoadError{Path: lib.Path(), Name: definitionName(lib.Definition()), Err: err}
			b.loadErrors = append(b.loadErrors, le)
			events = append(events, Event{Type: EventLoadFailed, Module: le.Name, Error: le})
			rejected = append(rejected, lib)
			failures = append(failures, le)
			continue
		}
		events = append(events, ev)
	}
	b.mu.Unlock()

	for _, lib := range rejected {
		if err := lib.Unload(); err != nil {
			b.logger.Warn().Err(err).Str("path", lib.Path()).Msg("unload of rejected library failed")
		}
	}
	for _, le := range failures {
		b.logger.Warn().Err(le.Err).Str("path", le.Path).Str("module", le.Name).Msg("module rejected")
	}
	b.emit(events...)

	b.logger.Debug().Int("loaded", len(libs)-len(rejected)).Int("rejected", len(failures)).Msg("dynamic modules scanned")
	return ctx.Err()
}

// registerBuiltinsLocked registers the builtin definitions.
// Must be called with mu held.
func (b *Bank) registerBuiltinsLocked() []Event {
	events := make([]Event, 0, len(b.builtins))
	for _, def := range b.builtins {
		ev, err := b.registerLocked(def, OriginBuiltin, nil)
		if err != nil {
			le := &LoadError{Name: definitionName(def), Err: err}
			b.loadErrors = append(b.loadErrors, le)
			events = append(events, Event{Type: EventLoadFailed, Module: le.Name, Error: le})
			b.logger.Error().Err(err).Str("module", le.Name).Msg("builtin module rejected")
			continue
		}
		events = append(events, ev)
	}
	return events
}

// registerLocked validates def and appends a descriptor for it.
// Must be called with mu held.
func (b *Bank) registerLocked(def *Definition, origin Origin, lib Library) (Event, error) {
	if err := def.Validate(); err != nil {
		return Event{}, err
	}
	if _, exists := b.byName[def.Name]; exists {
		return Event{}, fmt.Errorf("%q: %w", def.Name, ErrDuplicateName)
	}

	b.nextSeq++
	d := &descriptor{
		def:     def,
		origin:  origin,
		library: lib,
		seq:     b.nextSeq,
		state:   StateLoaded,
	}
	b.modules = append(b.modules, d)
	b.byName[def.Name] = d

	b.logger.Debug().
		Str("module", def.Name).
		Str("origin", origin.String()).
		Stringer("capabilities", def.Capabilities()).
		Msg("module registered")
	return Event{Type: EventRegistered, Module: def.Name}, nil
}

// teardownLocked releases every module in reverse registration order and
// clears the registry. Must be called with mu held.
func (b *Bank) teardownLocked(op string) []Event {
	events := make([]Event, 0, len(b.modules))
	for i := len(b.modules) - 1; i >= 0; i-- {
		d := b.modules[i]
		if d.usage > 0 {
			b.logger.Warn().Str("module", d.name()).Int("usage", d.usage).Msgf("%s with module still in use", op)
		}
		err := d.release()
		if err != nil {
			b.logger.Warn().Err(err).Str("module", d.name()).Msg("module teardown failed")
		}
		d.state = StateUnloaded
		d.detached = true
		events = append(events, Event{Type: EventUnloaded, Module: d.name(), Error: err})
	}
	b.modules = nil
	b.byName = make(map[string]*descriptor)
	return events
}

// violation reports an invariant error. In strict mode it panics; otherwise
// the error is logged and the offending call becomes a no-op.
// Must be called without mu held.
func (b *Bank) violation(err *InvariantError) {
	b.logger.Error().Err(err).Str("op", err.Op).Str("module", err.Module).Msg("module bank misuse")
	b.emit(Event{Type: EventInvariant, Module: err.Module, Error: err})
	if b.strict {
		panic(err)
	}
}

func definitionName(def *Definition) string {
	if def == nil {
		return ""
	}
	return def.Name
}

// IsNotFound reports whether err means no module could handle a request.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNoCapableModule)
}
