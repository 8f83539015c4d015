package plugin

import (
	"os"
	"path/filepath"
	"testing"
)

const voutLua = `
local vlc = require("vlc")

calls = {}

function probe(data)
	if data.capability ~= "vout" then
		return 0
	end
	if data.params.score then
		return tonumber(data.params.score)
	end
	return 50
end

vout = {}

function vout.create(t)
	t.created = true
	return true
end

function vout.init(t)
	if t.params.fail == "1" then
		return false, "no display"
	end
	return true
end

function vout.finish(t) end
function vout.destroy(t) end
function vout.manage(t) return true end

function vout.display(t)
	table.insert(calls, "display:" .. t.name .. ":" .. tostring(t.created))
end

function deactivate()
	vlc.info("vout plugin going away")
end
`

const memcpyLua = `
function probe(data)
	return 10
end

memcpy = {
	copy = function(dst, src)
		return src
	end,
}
`

// writePlugin creates dir/name with a plugin.json manifest (when manifest
// is non-empty) and init.lua.
func writePlugin(t *testing.T, dir, name, manifest, code string) string {
	t.Helper()
	pluginDir := filepath.Join(dir, name)
	if err := os.MkdirAll(pluginDir, 0755); err != nil {
		t.Fatal(err)
	}
	if manifest != "" {
		if err := os.WriteFile(filepath.Join(pluginDir, "plugin.json"), []byte(manifest), 0644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(filepath.Join(pluginDir, "init.lua"), []byte(code), 0644); err != nil {
		t.Fatal(err)
	}
	return pluginDir
}

// createTestPlugin writes code to a temp directory and returns a manifest
// pointing at it.
func createTestPlugin(t *testing.T, name string, code string, capabilities ...string) *Manifest {
	t.Helper()
	dir := t.TempDir()

	if err := os.WriteFile(filepath.Join(dir, "init.lua"), []byte(code), 0644); err != nil {
		t.Fatal(err)
	}

	return &Manifest{
		Name:         name,
		Version:      "1.0.0",
		Main:         "init.lua",
		Capabilities: capabilities,
		path:         dir,
	}
}

// loadTestHost creates and loads a host, failing the test on error.
func loadTestHost(t *testing.T, m *Manifest) *Host {
	t.Helper()
	host, err := NewHost(m)
	if err != nil {
		t.Fatalf("NewHost() error = %v", err)
	}
	if err := host.Load(t.Context()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	t.Cleanup(func() { host.Unload() })
	return host
}
