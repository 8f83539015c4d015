package lua

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	lua "github.com/yuin/gopher-lua"
)

// DefaultExecutionTimeout bounds a single call into Lua.
const DefaultExecutionTimeout = 5 * time.Second

// State wraps gopher-lua for module execution.
//
// gopher-lua's LState is not goroutine-safe. Every entry point takes the
// state's mutex, so a module's functions may be called from any goroutine
// but run one at a time.
type State struct {
	L *lua.LState

	mu sync.Mutex

	executionTimeout time.Duration
	sandbox          *Sandbox
	bridge           *Bridge
	logger           zerolog.Logger
	hostModule       string

	closed bool
}

// StateOption configures a State.
type StateOption func(*State)

// WithExecutionTimeout sets the timeout for a single call into Lua.
// Zero disables the timeout.
func WithExecutionTimeout(d time.Duration) StateOption {
	return func(s *State) {
		s.executionTimeout = d
	}
}

// WithLogger routes the host module's log functions to l.
func WithLogger(l zerolog.Logger) StateOption {
	return func(s *State) {
		s.logger = l
	}
}

// WithHostModule sets the name under which the host API is preloaded.
func WithHostModule(name string) StateOption {
	return func(s *State) {
		s.hostModule = name
	}
}

// NewState creates a new sandboxed Lua state.
func NewState(opts ...StateOption) (*State, error) {
	state := &State{
		executionTimeout: DefaultExecutionTimeout,
		logger:           zerolog.Nop(),
		hostModule:       "vlc",
	}
	for _, opt := range opts {
		opt(state)
	}

	L := lua.NewState(lua.Options{
		SkipOpenLibs: true, // We'll open selectively
	})
	state.L = L
	openSafeLibraries(L)

	state.bridge = NewBridge(L)
	state.sandbox = NewSandbox(L)
	state.sandbox.Install(state.hostModule, state.hostFuncs())

	return state, nil
}

// openSafeLibraries opens only safe Lua standard libraries.
func openSafeLibraries(L *lua.LState) {
	lua.OpenBase(L)
	lua.OpenPackage(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)

	// io, os and debug are only opened by a permission grant.
}

// hostFuncs is the API modules get from require("vlc").
func (s *State) hostFuncs() map[string]lua.LGFunction {
	logAt := func(level zerolog.Level) lua.LGFunction {
		return func(L *lua.LState) int {
			s.logger.WithLevel(level).Msg(L.CheckString(1))
			return 0
		}
	}
	return map[string]lua.LGFunction{
		"debug": logAt(zerolog.DebugLevel),
		"info":  logAt(zerolog.InfoLevel),
		"warn":  logAt(zerolog.WarnLevel),
		"error": logAt(zerolog.ErrorLevel),
	}
}

// DoFile executes a Lua file.
func (s *State) DoFile(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStateClosed
	}
	return s.run(func() error {
		return s.L.DoFile(path)
	})
}

// DoString executes a Lua string.
func (s *State) DoString(code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStateClosed
	}
	return s.run(func() error {
		return s.L.DoString(code)
	})
}

// run executes fn with the execution timeout and panic recovery.
// Must be called with mu held.
func (s *State) run(fn func() error) (err error) {
	if s.executionTimeout > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), s.executionTimeout)
		defer cancel()
		s.L.SetContext(ctx)
		defer s.L.RemoveContext()
		defer func() {
			if err != nil && ctx.Err() != nil {
				err = fmt.Errorf("%w: %v", ErrExecutionTimeout, err)
			}
		}()
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("lua panic: %v", r)
		}
	}()
	return fn()
}

// Call calls a global Lua function. Arguments are converted with the
// bridge and results converted back to Go values. Returns an empty slice
// (not nil) if the function returns no values.
func (s *State) Call(fn string, args ...any) ([]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrStateClosed
	}
	return s.invoke(fn, s.L.GetGlobal(fn), args)
}

// CallField calls table.fn, where table is a global table.
func (s *State) CallField(table, fn string, args ...any) ([]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrStateClosed
	}
	tbl, ok := s.L.GetGlobal(table).(*lua.LTable)
	if !ok {
		return nil, fmt.Errorf("%w: table %q", ErrNotFound, table)
	}
	return s.invoke(table+"."+fn, tbl.RawGetString(fn), args)
}

// invoke calls fnVal. Must be called with mu held.
func (s *State) invoke(name string, fnVal lua.LValue, args []any) ([]any, error) {
	if fnVal == lua.LNil {
		return nil, fmt.Errorf("%w: function %q", ErrNotFound, name)
	}
	if fnVal.Type() != lua.LTFunction {
		return nil, fmt.Errorf("%q is not a function (got %s)", name, fnVal.Type())
	}

	// Record stack top before pushing anything
	stackTop := s.L.GetTop()

	var results []any
	err := s.run(func() error {
		s.L.Push(fnVal)
		for _, arg := range args {
			s.L.Push(s.bridge.ToLuaValue(arg))
		}
		if err := s.L.PCall(len(args), lua.MultRet, nil); err != nil {
			return err
		}

		nRet := s.L.GetTop() - stackTop
		results = make([]any, 0, max(nRet, 0))
		for i := 0; i < nRet; i++ {
			results = append(results, s.bridge.ToGoValue(s.L.Get(stackTop+i+1)))
		}
		return nil
	})
	s.L.SetTop(stackTop)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return results, nil
}

// HasFunction reports whether a global function exists.
func (s *State) HasFunction(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}
	return s.L.GetGlobal(name).Type() == lua.LTFunction
}

// HasTable reports whether a global table exists.
func (s *State) HasTable(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}
	return s.L.GetGlobal(name).Type() == lua.LTTable
}

// HasField reports whether table.fn is a function.
func (s *State) HasField(table, fn string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}
	tbl, ok := s.L.GetGlobal(table).(*lua.LTable)
	if !ok {
		return false
	}
	return tbl.RawGetString(fn).Type() == lua.LTFunction
}

// NewObject creates a Lua table from fields. Objects keep their identity
// across calls, so modules can store per-session data in them.
func (s *State) NewObject(fields map[string]any) *lua.LTable {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bridge.mapToTable(fields)
}

// SetGlobal sets a global variable from a Go value.
func (s *State) SetGlobal(name string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.L.SetGlobal(name, s.bridge.ToLuaValue(value))
}

// Global returns a global variable as a Go value.
func (s *State) Global(name string) any {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	return s.bridge.ToGoValue(s.L.GetGlobal(name))
}

// Sandbox returns the sandbox for permission management.
func (s *State) Sandbox() *Sandbox {
	return s.sandbox
}

// Grant enables a permission.
func (s *State) Grant(p Permission) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStateClosed
	}
	return s.sandbox.Grant(p)
}

// IsClosed returns true if the state has been closed.
func (s *State) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close releases all resources associated with the Lua state.
// After Close is called, all other methods will return ErrStateClosed.
func (s *State) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.L.Close()
	s.closed = true
	return nil
}
