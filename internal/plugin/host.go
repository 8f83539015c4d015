package plugin

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	lua "github.com/yuin/gopher-lua"

	"github.com/Jasonic/vlc/internal/module"
	plua "github.com/Jasonic/vlc/internal/plugin/lua"
)

// Host manages a single plugin's Lua state and exposes it as a
// module.Library.
type Host struct {
	mu sync.RWMutex

	// Identity
	name     string
	manifest *Manifest

	// Lua runtime
	state *plua.State

	// State
	hostState State
	err       error
	def       *module.Definition

	// Per-session Lua objects, keyed by the caller's thread
	objects sync.Map // *module.Thread -> *lua.LTable

	// Options
	executionTimeout time.Duration
	logger           zerolog.Logger
}

var _ module.Library = (*Host)(nil)

// HostOption configures a Host.
type HostOption func(*Host)

// WithHostExecutionTimeout sets the execution timeout for plugin calls.
func WithHostExecutionTimeout(d time.Duration) HostOption {
	return func(h *Host) {
		h.executionTimeout = d
	}
}

// WithHostLogger sets the logger for the plugin and its Lua log calls.
func WithHostLogger(l zerolog.Logger) HostOption {
	return func(h *Host) {
		h.logger = l
	}
}

// NewHost creates a new plugin host for the given manifest.
func NewHost(manifest *Manifest, opts ...HostOption) (*Host, error) {
	if manifest == nil {
		return nil, ErrNilManifest
	}

	h := &Host{
		name:             manifest.Name,
		manifest:         manifest,
		hostState:        StateUnloaded,
		executionTimeout: plua.DefaultExecutionTimeout,
		logger:           zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = h.logger.With().Str("plugin", h.name).Logger()
	return h, nil
}

// Name returns the plugin name.
func (h *Host) Name() string {
	return h.name
}

// Manifest returns the plugin manifest.
func (h *Host) Manifest() *Manifest {
	return h.manifest
}

// State returns the current plugin state.
func (h *Host) State() State {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.hostState
}

// Error returns any error that occurred.
func (h *Host) Error() error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.err
}

// Load opens the Lua state, runs the entry file and validates the symbols
// for every declared capability. On failure the state is closed again.
func (h *Host) Load(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.hostState == StateLoaded {
		return ErrAlreadyLoaded
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	def, err := h.load()
	if err != nil {
		if h.state != nil {
			h.state.Close()
			h.state = nil
		}
		h.hostState = StateError
		h.err = err
		return err
	}

	h.def = def
	h.hostState = StateLoaded
	h.err = nil
	h.logger.Debug().Str("main", h.manifest.MainPath()).Stringer("capabilities", def.Capabilities()).Msg("plugin loaded")
	return nil
}

// load does the work of Load. Must be called with mu held.
func (h *Host) load() (*module.Definition, error) {
	state, err := plua.NewState(
		plua.WithExecutionTimeout(h.executionTimeout),
		plua.WithLogger(h.logger),
	)
	if err != nil {
		return nil, err
	}
	h.state = state

	for _, p := range h.manifest.Permissions {
		if err := state.Grant(p); err != nil {
			return nil, err
		}
	}

	if err := state.DoFile(h.manifest.MainPath()); err != nil {
		return nil, fmt.Errorf("failed to load plugin: %w", err)
	}

	caps, err := h.capabilities()
	if err != nil {
		return nil, err
	}
	if err := validateSymbols(state, caps); err != nil {
		return nil, err
	}

	entries := make([]module.Entry, 0, caps.Len())
	for _, c := range caps.List() {
		entries = append(entries, h.adapter(c))
	}
	table, err := module.NewFunctionTable(entries...)
	if err != nil {
		return nil, err
	}

	return &module.Definition{
		Name:      h.manifest.Name,
		LongName:  h.manifest.DisplayName,
		Version:   h.manifest.Version,
		Functions: table,
		Probe:     h.probe,
		Config:    h.manifest.Config,
	}, nil
}

// capabilities returns the declared set, or the set inferred from the
// script for manifest-less plugins.
func (h *Host) capabilities() (module.CapabilitySet, error) {
	if len(h.manifest.Capabilities) > 0 {
		return h.manifest.CapabilitySet()
	}
	caps := inferCapabilities(h.state)
	if caps.Empty() {
		return 0, ErrNoCapabilities
	}
	for _, c := range caps.List() {
		h.manifest.Capabilities = append(h.manifest.Capabilities, c.String())
	}
	return caps, nil
}

// probe calls the plugin's probe(data) function.
func (h *Host) probe(data module.ProbeData) (int, error) {
	state, err := h.luaState()
	if err != nil {
		return 0, err
	}

	results, err := state.Call(probeFunc, map[string]any{
		"capability": data.Capability.String(),
		"target":     data.Target,
		"params":     data.Params,
		"preferred":  data.Preferred,
	})
	if err != nil {
		return 0, err
	}
	if len(results) == 0 || results[0] == nil {
		return 0, nil
	}
	score, ok := plua.Int(results[0])
	if !ok {
		return 0, fmt.Errorf("%w, got %T", ErrBadProbe, results[0])
	}
	return score, nil
}

// Definition returns the module definition built by Load.
func (h *Host) Definition() *module.Definition {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.def
}

// Path returns the plugin directory.
func (h *Host) Path() string {
	return h.manifest.Path()
}

// Unload calls the plugin's deactivate() function, if any, and closes the
// Lua state. Adapters fail with ErrNotLoaded afterwards.
func (h *Host) Unload() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.state == nil {
		h.hostState = StateUnloaded
		return nil
	}

	var err error
	if h.state.HasFunction(deactivateFunc) {
		if _, callErr := h.state.Call(deactivateFunc); callErr != nil {
			err = fmt.Errorf("deactivate: %w", callErr)
		}
	}

	h.state.Close()
	h.state = nil
	h.objects.Clear()
	h.hostState = StateUnloaded
	h.logger.Debug().Msg("plugin unloaded")
	return err
}

// Call calls a global Lua function in the plugin.
func (h *Host) Call(fn string, args ...any) ([]any, error) {
	state, err := h.luaState()
	if err != nil {
		return nil, err
	}
	return state.Call(fn, args...)
}

// HasFunction returns true if the plugin has the named global function.
func (h *Host) HasFunction(name string) bool {
	state, err := h.luaState()
	if err != nil {
		return false
	}
	return state.HasFunction(name)
}

// luaState returns the open state or ErrNotLoaded.
func (h *Host) luaState() (*plua.State, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.state == nil {
		return nil, fmt.Errorf("%s: %w", h.name, ErrNotLoaded)
	}
	return h.state, nil
}

// callField calls table.fn. Optional functions that are not defined are
// skipped and report (nil, nil).
func (h *Host) callField(table, fn string, optional bool, args ...any) ([]any, error) {
	state, err := h.luaState()
	if err != nil {
		return nil, err
	}
	if optional && !state.HasField(table, fn) {
		return nil, nil
	}
	return state.CallField(table, fn, args...)
}

// object returns the Lua table standing for t, creating it on first use.
func (h *Host) object(t *module.Thread) (*lua.LTable, error) {
	if obj, ok := h.objects.Load(t); ok {
		return obj.(*lua.LTable), nil
	}
	state, err := h.luaState()
	if err != nil {
		return nil, err
	}

	var name string
	params := map[string]string{}
	if t != nil {
		name = t.Name
		for k, v := range t.Params {
			params[k] = v
		}
	}
	obj := state.NewObject(map[string]any{"name": name, "params": params})
	actual, _ := h.objects.LoadOrStore(t, obj)
	return actual.(*lua.LTable), nil
}

// forget drops the Lua object for t once its session is over.
func (h *Host) forget(t *module.Thread) {
	h.objects.Delete(t)
}

// hasField reports whether the capability table defines fn.
func (h *Host) hasField(c module.Capability, fn string) bool {
	state, err := h.luaState()
	if err != nil {
		return false
	}
	return state.HasField(c.String(), fn)
}
