package lua

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSandboxRemovesDangerousFunctions(t *testing.T) {
	state := newTestState(t)

	for _, name := range []string{"dofile", "loadfile", "load", "loadstring"} {
		if state.HasFunction(name) {
			t.Errorf("%s should be removed", name)
		}
	}
	for _, lib := range []string{"io", "os", "debug"} {
		if state.HasTable(lib) {
			t.Errorf("%s should not be opened by default", lib)
		}
	}
}

func TestSandboxRequire(t *testing.T) {
	tests := []struct {
		module  string
		wantErr string
	}{
		{"string", ""},
		{"math", ""},
		{"vlc", ""},
		{"io", "filesystem.read"},
		{"os", "unsafe"},
		{"debug", "unsafe"},
		{"socket", "not available"},
	}

	for _, tt := range tests {
		t.Run(tt.module, func(t *testing.T) {
			state := newTestState(t)
			err := state.DoString(`require("` + tt.module + `")`)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("require(%q) error = %v", tt.module, err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("require(%q) error = %v, want %q", tt.module, err, tt.wantErr)
			}
		})
	}
}

func TestSandboxFileRead(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "media.bin")
	if err := os.WriteFile(path, []byte("line one\nABCDEFGH"), 0o644); err != nil {
		t.Fatal(err)
	}

	state := newTestState(t)
	if err := state.Grant(PermissionFileRead); err != nil {
		t.Fatalf("Grant() error = %v", err)
	}
	if !state.Sandbox().HasPermission(PermissionFileRead) {
		t.Fatal("permission not recorded")
	}

	state.SetGlobal("path", path)
	err := state.DoString(`
		local io = require("io")
		local f = assert(io.open(path, "rb"))
		first = f:read("*l")
		chunk = f:read(4)
		f:seek("set", 9)
		again = f:read(2)
		f:close()
		local ok = pcall(io.open, path, "w")
		write_ok = ok
	`)
	if err != nil {
		t.Fatalf("DoString() error = %v", err)
	}

	if got := state.Global("first"); got != "line one" {
		t.Errorf("first = %v", got)
	}
	if got := state.Global("chunk"); got != "ABCD" {
		t.Errorf("chunk = %v", got)
	}
	if got := state.Global("again"); got != "AB" {
		t.Errorf("again = %v", got)
	}
	if got := state.Global("write_ok"); got != false {
		t.Error("write mode should be rejected")
	}
}

func TestSandboxGrantUnknown(t *testing.T) {
	state := newTestState(t)
	if err := state.Grant("network"); !errors.Is(err, ErrUnknownPermission) {
		t.Errorf("Grant(network) error = %v", err)
	}
	if _, err := ParsePermission("shell"); !errors.Is(err, ErrUnknownPermission) {
		t.Errorf("ParsePermission(shell) error = %v", err)
	}
	if p, err := ParsePermission("unsafe"); err != nil || p != PermissionUnsafe {
		t.Errorf("ParsePermission(unsafe) = %v, %v", p, err)
	}
}

func TestSandboxUnsafe(t *testing.T) {
	state := newTestState(t)
	if err := state.Grant(PermissionUnsafe); err != nil {
		t.Fatal(err)
	}
	if err := state.DoString(`t = os.time()`); err != nil {
		t.Errorf("os should be available: %v", err)
	}
}
