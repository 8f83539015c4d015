package app

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jasonic/vlc/internal/config"
	"github.com/Jasonic/vlc/internal/module"
)

const luaVout = `
function probe(data)
	return 10
end

vout = {}
function vout.create(t) return true end
function vout.init(t) return true end
function vout.finish(t) end
function vout.destroy(t) end
function vout.manage(t) return true end
function vout.display(t) end
`

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Plugins.Paths = []string{t.TempDir()}
	cfg.Logging.Level = "error"
	return cfg
}

func writeLuaVout(t *testing.T, dir, name string) string {
	t.Helper()
	pluginDir := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(pluginDir, 0755))
	manifest := `{"name": "` + name + `", "capabilities": ["vout"]}`
	require.NoError(t, os.WriteFile(filepath.Join(pluginDir, "plugin.json"), []byte(manifest), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(pluginDir, "init.lua"), []byte(luaVout), 0644))
	return pluginDir
}

func newTestApp(t *testing.T, cfg *config.Config) *Application {
	t.Helper()
	app, err := New(Options{Config: cfg, LogOutput: &bytes.Buffer{}})
	require.NoError(t, err)
	require.NoError(t, app.InitBank(context.Background()))
	t.Cleanup(app.Destroy)
	return app
}

func TestInitBankLogsEachRejectionOnce(t *testing.T) {
	cfg := testConfig(t)
	cfg.Logging.Level = "warn"
	cfg.Logging.Format = "json"
	broken := filepath.Join(cfg.Plugins.Paths[0], "broken")
	require.NoError(t, os.MkdirAll(broken, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(broken, "plugin.json"), []byte(`{"name": "broken", "capabilities": ["vout"]}`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(broken, "init.lua"), []byte("this is not lua"), 0644))

	var out bytes.Buffer
	app, err := New(Options{Config: cfg, LogOutput: &out})
	require.NoError(t, err)
	t.Cleanup(app.Destroy)
	require.NoError(t, app.InitBank(context.Background()))
	require.Len(t, app.Bank().LoadErrors(), 1)

	warnings := 0
	for _, line := range strings.Split(strings.TrimSpace(out.String()), "\n") {
		if strings.Contains(line, `"level":"warn"`) && strings.Contains(line, "broken") {
			warnings++
		}
	}
	assert.Equal(t, 1, warnings, out.String())
}

func TestNewRegistersBuiltins(t *testing.T) {
	app := newTestApp(t, testConfig(t))

	var names []string
	for _, info := range app.Bank().Modules() {
		names = append(names, info.Name)
		assert.Equal(t, module.OriginBuiltin, info.Origin)
	}
	assert.Equal(t, []string{"memcpy", "file", "null"}, names)
	assert.Empty(t, app.Bank().LoadErrors())
}

func TestNewOverrides(t *testing.T) {
	dir := t.TempDir()
	app, err := New(Options{
		Config:      testConfig(t),
		PluginPaths: []string{dir},
		LogLevel:    "debug",
		LogFormat:   "json",
		LogOutput:   &bytes.Buffer{},
	})
	require.NoError(t, err)
	t.Cleanup(app.Destroy)

	assert.Equal(t, []string{dir}, app.PluginPaths())
	assert.Equal(t, "debug", app.Config().Logging.Level)
	assert.Equal(t, "json", app.Config().Logging.Format)
}

func TestNewInvalidOverride(t *testing.T) {
	_, err := New(Options{Config: testConfig(t), LogFormat: "xml"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInitialization)
	assert.ErrorIs(t, err, config.ErrValidationFailed)
}

func TestExpandPaths(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	got := expandPaths([]string{"~/plugins", "/abs", "rel/~"})
	assert.Equal(t, []string{filepath.Join(home, "plugins"), "/abs", "rel/~"}, got)
}

func TestNeedSelectsBest(t *testing.T) {
	cfg := testConfig(t)
	writeLuaVout(t, cfg.Plugins.Paths[0], "lua-vout")
	app := newTestApp(t, cfg)

	h, err := app.Need(context.Background(), module.CapabilityVideoOutput, module.ProbeData{})
	require.NoError(t, err)
	assert.Equal(t, "lua-vout", h.Name())

	info, _ := app.Bank().Lookup("lua-vout")
	assert.Equal(t, 1, info.Usage)

	app.Unneed(h)
	info, _ = app.Bank().Lookup("lua-vout")
	assert.Equal(t, 0, info.Usage)

	h, err = app.Need(context.Background(), module.CapabilityMemcpy, module.ProbeData{})
	require.NoError(t, err)
	assert.Equal(t, "memcpy", h.Name())
	app.Unneed(h)
}

func TestNeedPreferences(t *testing.T) {
	cfg := testConfig(t)
	writeLuaVout(t, cfg.Plugins.Paths[0], "lua-vout")
	cfg.Preferences["vout"] = []string{"null"}
	app := newTestApp(t, cfg)

	h, err := app.Need(context.Background(), module.CapabilityVideoOutput, module.ProbeData{})
	require.NoError(t, err)
	assert.Equal(t, "null", h.Name())
	app.Unneed(h)

	// An explicit request beats the configured default.
	h, err = app.Need(context.Background(), module.CapabilityVideoOutput, module.ProbeData{Preferred: []string{"lua-vout"}})
	require.NoError(t, err)
	assert.Equal(t, "lua-vout", h.Name())
	app.Unneed(h)
}

func TestNeedModuleRaises(t *testing.T) {
	app := newTestApp(t, testConfig(t))

	var exc Exception
	exc.Init()
	h := app.NeedModule(context.Background(), module.CapabilityIMDCT, module.ProbeData{}, &exc)
	assert.Nil(t, h)
	require.True(t, exc.Raised())
	assert.Contains(t, exc.Message(), "imdct")
	assert.True(t, module.IsNotFound(exc.Err()))

	// A nil exception is accepted.
	assert.Nil(t, app.NeedModule(context.Background(), module.CapabilityIMDCT, module.ProbeData{}, nil))

	exc.Clear()
	h = app.NeedModule(context.Background(), module.CapabilityInterface, module.ProbeData{}, &exc)
	require.NotNil(t, h)
	assert.False(t, exc.Raised())
	app.Unneed(h)
}

func TestInstantiate(t *testing.T) {
	var exc Exception
	app := Instantiate(context.Background(), Options{Config: testConfig(t), LogOutput: &bytes.Buffer{}}, &exc)
	require.NotNil(t, app)
	assert.False(t, exc.Raised())
	assert.True(t, app.Bank().Initialized())
	app.Destroy()
	assert.False(t, app.Bank().Initialized())

	app = Instantiate(context.Background(), Options{Config: testConfig(t), LogLevel: "loud", LogFormat: "xml"}, &exc)
	assert.Nil(t, app)
	require.True(t, exc.Raised())
	assert.Contains(t, exc.Message(), "initialization failed")
}

func TestManageBankEvicts(t *testing.T) {
	cfg := testConfig(t)
	cfg.Bank.HideDelay = 2
	writeLuaVout(t, cfg.Plugins.Paths[0], "lua-vout")
	app := newTestApp(t, cfg)

	h, err := app.Need(context.Background(), module.CapabilityVideoOutput, module.ProbeData{})
	require.NoError(t, err)
	app.Unneed(h)

	app.ManageBank()
	_, ok := app.Bank().Lookup("lua-vout")
	assert.True(t, ok)

	app.ManageBank()
	_, ok = app.Bank().Lookup("lua-vout")
	assert.False(t, ok)

	s := app.Metrics().Snapshot()
	assert.Equal(t, uint64(2), s.Sweeps)
	assert.Equal(t, uint64(1), s.Evictions)
	assert.Equal(t, uint64(1), s.Needs)
	assert.Equal(t, uint64(1), s.Releases)

	// Reset brings it back.
	require.NoError(t, app.ResetBank(context.Background()))
	_, ok = app.Bank().Lookup("lua-vout")
	assert.True(t, ok)
	assert.Equal(t, uint64(1), app.Metrics().Snapshot().Resets)
}

func TestRunSweeps(t *testing.T) {
	cfg := testConfig(t)
	cfg.Bank.ManageInterval = config.Duration(5 * time.Millisecond)
	app := newTestApp(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	require.Eventually(t, func() bool {
		return app.Metrics().Snapshot().Sweeps >= 3
	}, 2*time.Second, 5*time.Millisecond)
	assert.True(t, app.Running())
	assert.ErrorIs(t, app.Run(ctx), ErrAlreadyRunning)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.False(t, app.Running())
}

func TestRunWatchResets(t *testing.T) {
	cfg := testConfig(t)
	cfg.Plugins.Watch = true
	cfg.Plugins.Debounce = config.Duration(20 * time.Millisecond)
	app := newTestApp(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	require.Eventually(t, app.Running, time.Second, 5*time.Millisecond)
	// Give the watcher time to register the plugin path.
	time.Sleep(50 * time.Millisecond)

	// Build the plugin elsewhere and move it in with one rename.
	staged := writeLuaVout(t, t.TempDir(), "hot-vout")
	require.NoError(t, os.Rename(staged, filepath.Join(cfg.Plugins.Paths[0], "hot-vout")))

	require.Eventually(t, func() bool {
		_, ok := app.Bank().Lookup("hot-vout")
		return ok
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}
