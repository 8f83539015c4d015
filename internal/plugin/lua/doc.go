// Package lua provides the Lua runtime that hosts dynamic modules.
//
// This package wraps the gopher-lua library to provide:
//   - Sandboxed Lua state management with per-call timeouts
//   - Go-Lua value conversion
//   - Permission-gated access to the io and os libraries
//
// # State
//
// A State owns one Lua interpreter. Calls are serialised by a mutex, so a
// module's functions may be invoked from several goroutines:
//
//	state, err := lua.NewState(lua.WithExecutionTimeout(time.Second))
//	if err != nil {
//	    return err
//	}
//	defer state.Close()
//
//	if err := state.DoFile("vout.lua"); err != nil {
//	    return err
//	}
//	score, err := state.Call("probe", map[string]any{"target": "x11"})
//
// # Sandbox
//
// The sandbox removes dofile, loadfile and load, clears package.path and
// only lets require resolve the string, table and math libraries plus the
// host module ("vlc"), which exposes logging. Permissions listed in a
// module's manifest unlock more:
//   - PermissionFileRead: a read-only io module
//   - PermissionUnsafe: the full io, os and debug libraries
package lua
