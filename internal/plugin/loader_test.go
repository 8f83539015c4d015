package plugin

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func TestNewLoader(t *testing.T) {
	loader := NewLoader()
	if loader == nil {
		t.Fatal("NewLoader() returned nil")
	}

	paths := loader.Paths()
	if len(paths) == 0 {
		t.Error("NewLoader() should have default paths")
	}
}

func TestNewLoaderWithPaths(t *testing.T) {
	loader := NewLoader(WithPaths("/custom/path1", "/custom/path2"))

	paths := loader.Paths()
	if len(paths) != 2 {
		t.Errorf("Paths() len = %d, want 2", len(paths))
	}
	if paths[0] != "/custom/path1" {
		t.Errorf("Paths()[0] = %q, want %q", paths[0], "/custom/path1")
	}

	loader.AddPath("/added")
	if got := loader.Paths(); len(got) != 3 || got[2] != "/added" {
		t.Errorf("Paths() after AddPath = %v", got)
	}
}

func TestLoaderDiscoverEmpty(t *testing.T) {
	loader := NewLoader(WithPaths(t.TempDir(), filepath.Join(t.TempDir(), "missing")))

	plugins, err := loader.Discover()
	if err != nil {
		t.Errorf("Discover() error = %v", err)
	}
	if len(plugins) != 0 {
		t.Errorf("Discover() found %d plugins in empty dir", len(plugins))
	}
}

func TestLoaderDiscover(t *testing.T) {
	dir := t.TempDir()

	writePlugin(t, dir, "vout-dir", `{"name": "lua-vout", "capabilities": ["vout"]}`, voutLua)
	writePlugin(t, dir, "simple", "", memcpyLua)
	writePlugin(t, dir, "broken", `{"name": "broken"}`, memcpyLua)
	if err := os.MkdirAll(filepath.Join(dir, "empty"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "single.lua"), []byte(memcpyLua), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "README.md"), []byte("docs"), 0644); err != nil {
		t.Fatal(err)
	}
	writePlugin(t, dir, ".hidden", "", memcpyLua)

	loader := NewLoader(WithPaths(dir))
	plugins, err := loader.Discover()
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}

	var names []string
	for _, p := range plugins {
		names = append(names, p.Name)
	}
	want := []string{"broken", "empty", "lua-vout", "simple", "single"}
	if len(names) != len(want) {
		t.Fatalf("Discover() names = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("Discover()[%d] = %q, want %q", i, names[i], want[i])
		}
	}

	info, _ := loader.Get("lua-vout")
	if info.Manifest == nil || info.Path != filepath.Join(dir, "vout-dir") {
		t.Errorf("lua-vout info = %+v", info)
	}

	info, _ = loader.Get("simple")
	if info.Manifest == nil || info.Manifest.Main != "init.lua" || info.Error != nil {
		t.Errorf("simple info = %+v", info)
	}

	info, _ = loader.Get("single")
	if info.Manifest.MainPath() != filepath.Join(dir, "single.lua") {
		t.Errorf("single MainPath() = %q", info.Manifest.MainPath())
	}

	info, _ = loader.Get("empty")
	if !errors.Is(info.Error, ErrNoEntryPoint) || info.State != StateError {
		t.Errorf("empty info = %+v, want ErrNoEntryPoint", info)
	}

	info, _ = loader.Get("broken")
	if !errors.Is(info.Error, ErrSchemaViolation) {
		t.Errorf("broken error = %v, want ErrSchemaViolation", info.Error)
	}

	if errored := loader.Errors(); len(errored) != 2 {
		t.Errorf("Errors() = %d entries, want 2", len(errored))
	}
	if loader.Count() != 5 {
		t.Errorf("Count() = %d, want 5", loader.Count())
	}
}

func TestLoaderPluginLuaEntry(t *testing.T) {
	dir := t.TempDir()
	pluginDir := filepath.Join(dir, "alt")
	if err := os.MkdirAll(pluginDir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(pluginDir, "plugin.lua"), []byte(memcpyLua), 0644); err != nil {
		t.Fatal(err)
	}

	loader := NewLoader(WithPaths(dir))
	if _, err := loader.Discover(); err != nil {
		t.Fatal(err)
	}
	info, ok := loader.Get("alt")
	if !ok || info.Manifest == nil || info.Manifest.Main != "plugin.lua" {
		t.Errorf("alt info = %+v", info)
	}
}

func TestLoaderFirstPathWins(t *testing.T) {
	first := t.TempDir()
	second := t.TempDir()
	writePlugin(t, first, "dup", "", memcpyLua)
	writePlugin(t, second, "dup", "", voutLua)

	loader := NewLoader(WithPaths(first, second))
	plugins, err := loader.Discover()
	if err != nil {
		t.Fatal(err)
	}
	if len(plugins) != 1 {
		t.Fatalf("Discover() found %d plugins, want 1", len(plugins))
	}
	if plugins[0].Path != filepath.Join(first, "dup") {
		t.Errorf("Path = %q, want plugin from first path", plugins[0].Path)
	}
}

func TestLoaderFindPlugin(t *testing.T) {
	dir := t.TempDir()
	writePlugin(t, dir, "finder", "", memcpyLua)
	if err := os.WriteFile(filepath.Join(dir, "solo.lua"), []byte(memcpyLua), 0644); err != nil {
		t.Fatal(err)
	}

	loader := NewLoader(WithPaths(dir))

	info, err := loader.FindPlugin("finder")
	if err != nil {
		t.Fatalf("FindPlugin() error = %v", err)
	}
	if info.Name != "finder" {
		t.Errorf("Name = %q", info.Name)
	}

	info, err = loader.FindPlugin("solo")
	if err != nil {
		t.Fatalf("FindPlugin(solo) error = %v", err)
	}
	if info.Manifest.Main != "solo.lua" {
		t.Errorf("Main = %q, want solo.lua", info.Manifest.Main)
	}

	if _, err := loader.FindPlugin("nope"); !errors.Is(err, ErrPluginNotFound) {
		t.Errorf("FindPlugin(nope) error = %v, want ErrPluginNotFound", err)
	}

	names := loader.ListNames()
	if len(names) != 2 || names[0] != "finder" || names[1] != "solo" {
		t.Errorf("ListNames() = %v", names)
	}
}

func TestLoaderConcurrentDiscover(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a", "b", "c", "d"} {
		writePlugin(t, dir, name, "", memcpyLua)
	}
	loader := NewLoader(WithPaths(dir))

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 10 {
				plugins, err := loader.Discover()
				if err != nil {
					t.Error(err)
					return
				}
				if len(plugins) != 4 {
					t.Errorf("Discover() found %d plugins, want 4", len(plugins))
					return
				}
				_ = loader.Count()
			}
		}()
	}
	wg.Wait()

	if got := loader.ListNames(); len(got) != 4 {
		t.Errorf("ListNames() = %v", got)
	}
}

func TestDefaultPluginPaths(t *testing.T) {
	paths := DefaultPluginPaths()
	if len(paths) == 0 {
		t.Fatal("DefaultPluginPaths() returned no paths")
	}
	for _, p := range paths {
		if !filepath.IsAbs(p) {
			t.Errorf("path %q is not absolute", p)
		}
	}
}
