package lua

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	lua "github.com/yuin/gopher-lua"
)

// Sandbox restricts Lua execution to safe operations.
type Sandbox struct {
	L *lua.LState

	hostModule  string
	permissions map[Permission]bool
}

// Permission is an access right a module's manifest can request.
type Permission string

// Available permissions.
const (
	PermissionFileRead Permission = "filesystem.read"
	PermissionUnsafe   Permission = "unsafe" // Full Lua stdlib access
)

// ParsePermission validates a permission name.
func ParsePermission(name string) (Permission, error) {
	switch p := Permission(name); p {
	case PermissionFileRead, PermissionUnsafe:
		return p, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownPermission, name)
	}
}

// NewSandbox creates a new sandbox for the Lua state.
func NewSandbox(L *lua.LState) *Sandbox {
	return &Sandbox{
		L:           L,
		permissions: make(map[Permission]bool),
	}
}

// Install sets up the sandbox restrictions and preloads the host module.
func (s *Sandbox) Install(hostModule string, hostFuncs map[string]lua.LGFunction) {
	// Remove functions that could be used to bypass the sandbox
	for _, name := range []string{"dofile", "loadfile", "load", "loadstring"} {
		s.L.SetGlobal(name, lua.LNil)
	}

	s.hostModule = hostModule
	s.L.PreloadModule(hostModule, func(L *lua.LState) int {
		L.Push(L.SetFuncs(L.NewTable(), hostFuncs))
		return 1
	})

	s.installSafeRequire()
}

// installSafeRequire replaces require with a version that only allows safe
// modules. package.path and package.cpath are cleared so nothing is loaded
// from disk; only preloaded and whitelisted built-in modules resolve.
func (s *Sandbox) installSafeRequire() {
	if pkgTable, ok := s.L.GetGlobal("package").(*lua.LTable); ok {
		s.L.SetField(pkgTable, "path", lua.LString(""))
		s.L.SetField(pkgTable, "cpath", lua.LString(""))
	}

	safeModules := map[string]bool{
		"string": true,
		"table":  true,
		"math":   true,
	}

	originalRequire := s.L.GetGlobal("require")

	s.L.SetGlobal("require", s.L.NewFunction(func(L *lua.LState) int {
		modName := L.CheckString(1)

		switch {
		case safeModules[modName], modName == s.hostModule:
		case modName == "io":
			if !s.permissions[PermissionFileRead] && !s.permissions[PermissionUnsafe] {
				L.RaiseError("module 'io' requires the %s permission", PermissionFileRead)
			}
		case modName == "os", modName == "debug":
			if !s.permissions[PermissionUnsafe] {
				L.RaiseError("module %q requires the %s permission", modName, PermissionUnsafe)
			}
		default:
			// L.RaiseError does a longjmp, so code after it is unreachable.
			L.RaiseError("module %q is not available", modName)
			return 0
		}

		L.Push(originalRequire)
		L.Push(lua.LString(modName))
		L.Call(1, 1)
		return 1
	}))
}

// Grant enables a permission.
func (s *Sandbox) Grant(p Permission) error {
	switch p {
	case PermissionFileRead:
		if !s.permissions[p] {
			s.injectFileReadAPI()
		}
	case PermissionUnsafe:
		if !s.permissions[p] {
			lua.OpenIo(s.L)
			lua.OpenOs(s.L)
			lua.OpenDebug(s.L)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownPermission, string(p))
	}
	s.permissions[p] = true
	return nil
}

// HasPermission returns true if the permission is granted.
func (s *Sandbox) HasPermission(p Permission) bool {
	return s.permissions[p]
}

// injectFileReadAPI adds a read-only io module.
func (s *Sandbox) injectFileReadAPI() {
	ioMod := s.L.NewTable()
	fileMeta := s.fileMetatable()

	// io.open for reading only
	s.L.SetField(ioMod, "open", s.L.NewFunction(func(L *lua.LState) int {
		filename := L.CheckString(1)
		mode := L.OptString(2, "r")
		if mode != "r" && mode != "rb" {
			L.ArgError(2, "only read modes (r, rb) are allowed")
			return 0
		}

		file, err := os.Open(filename)
		if err != nil {
			L.Push(lua.LNil)
			L.Push(lua.LString(err.Error()))
			return 2
		}

		ud := L.NewUserData()
		ud.Value = &luaFile{f: file, r: bufio.NewReader(file)}
		L.SetMetatable(ud, fileMeta)
		L.Push(ud)
		return 1
	}))

	s.L.SetGlobal("io", ioMod)
	if pkgTable, ok := s.L.GetGlobal("package").(*lua.LTable); ok {
		if loaded, ok := s.L.GetField(pkgTable, "loaded").(*lua.LTable); ok {
			loaded.RawSetString("io", ioMod)
		}
	}
}

type luaFile struct {
	f *os.File
	r *bufio.Reader
}

func checkFile(L *lua.LState) *luaFile {
	ud := L.CheckUserData(1)
	file, ok := ud.Value.(*luaFile)
	if !ok || file.f == nil {
		L.ArgError(1, "expected open file")
		return nil
	}
	return file
}

// fileMetatable returns the metatable for read-only file handles.
func (s *Sandbox) fileMetatable() *lua.LTable {
	mt := s.L.NewTable()
	index := s.L.NewTable()

	// file:read(n) or file:read("*l") / ("*a")
	s.L.SetField(index, "read", s.L.NewFunction(func(L *lua.LState) int {
		file := checkFile(L)

		if n, ok := L.Get(2).(lua.LNumber); ok {
			buf := make([]byte, int(n))
			read, err := io.ReadFull(file.r, buf)
			if read == 0 && err != nil {
				L.Push(lua.LNil)
				return 1
			}
			L.Push(lua.LString(buf[:read]))
			return 1
		}

		switch L.OptString(2, "*l") {
		case "*a", "a":
			data, err := io.ReadAll(file.r)
			if err != nil {
				L.Push(lua.LNil)
				L.Push(lua.LString(err.Error()))
				return 2
			}
			L.Push(lua.LString(data))
		default:
			line, err := file.r.ReadString('\n')
			if line == "" && err != nil {
				L.Push(lua.LNil)
				return 1
			}
			L.Push(lua.LString(strings.TrimSuffix(line, "\n")))
		}
		return 1
	}))

	// file:seek(whence, offset)
	s.L.SetField(index, "seek", s.L.NewFunction(func(L *lua.LState) int {
		file := checkFile(L)
		whence := map[string]int{"set": io.SeekStart, "cur": io.SeekCurrent, "end": io.SeekEnd}[L.OptString(2, "cur")]
		offset := L.OptInt64(3, 0)
		if whence == io.SeekCurrent {
			offset -= int64(file.r.Buffered())
		}
		pos, err := file.f.Seek(offset, whence)
		if err != nil {
			L.Push(lua.LNil)
			L.Push(lua.LString(err.Error()))
			return 2
		}
		file.r.Reset(file.f)
		L.Push(lua.LNumber(pos))
		return 1
	}))

	// file:close()
	s.L.SetField(index, "close", s.L.NewFunction(func(L *lua.LState) int {
		file := checkFile(L)
		err := file.f.Close()
		file.f = nil
		if err != nil {
			L.Push(lua.LFalse)
			L.Push(lua.LString(err.Error()))
			return 2
		}
		L.Push(lua.LTrue)
		return 1
	}))

	s.L.SetField(mt, "__index", index)
	return mt
}
