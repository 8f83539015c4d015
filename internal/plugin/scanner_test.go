package plugin

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jasonic/vlc/internal/module"
	plua "github.com/Jasonic/vlc/internal/plugin/lua"
)

func TestScannerScan(t *testing.T) {
	dir := t.TempDir()
	writePlugin(t, dir, "b-vout", `{"name": "lua-vout", "capabilities": ["vout"]}`, voutLua)
	writePlugin(t, dir, "a-memcpy", "", memcpyLua)
	writePlugin(t, dir, "bad", `{"name": "bad", "capabilities": ["aout"]}`, memcpyLua)

	s := NewScanner([]string{dir}, WithScanWorkers(2))
	require.Equal(t, []string{dir}, s.Paths())

	libs, errs := s.Scan(context.Background())
	t.Cleanup(func() {
		for _, lib := range libs {
			lib.Unload()
		}
	})

	require.Len(t, libs, 2)
	assert.Equal(t, "a-memcpy", libs[0].Definition().Name)
	assert.Equal(t, "lua-vout", libs[1].Definition().Name)

	require.Len(t, errs, 1)
	assert.Equal(t, "bad", errs[0].Name)
	assert.True(t, errors.Is(errs[0], ErrMissingSymbol), "got %v", errs[0])
}

func TestScannerCancelled(t *testing.T) {
	dir := t.TempDir()
	writePlugin(t, dir, "a-memcpy", "", memcpyLua)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	libs, errs := NewScanner([]string{dir}).Scan(ctx)
	assert.Empty(t, libs)
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], context.Canceled)
}

func TestScannerBankLifecycle(t *testing.T) {
	dir := t.TempDir()
	writePlugin(t, dir, "vout", `{"name": "lua-vout", "capabilities": ["vout"]}`, voutLua)

	bank := module.New(
		module.WithScanner(NewScanner([]string{dir})),
		module.WithHideDelay(3),
	)
	require.NoError(t, bank.Init(context.Background()))
	t.Cleanup(bank.End)

	lease, err := module.Need(context.Background(), bank, module.Vout, module.ProbeData{})
	require.NoError(t, err)
	assert.Equal(t, "lua-vout", lease.Name())

	th := module.NewThread("main")
	require.NoError(t, lease.Functions().Create(th))
	lease.Functions().Display(th)

	// In use: never evicted.
	for range 5 {
		bank.Manage()
	}
	info, ok := bank.Lookup("lua-vout")
	require.True(t, ok)
	assert.Equal(t, module.StateLoaded, info.State)

	lease.Release()
	for range 2 {
		bank.Manage()
	}
	info, _ = bank.Lookup("lua-vout")
	assert.Equal(t, module.StateLoaded, info.State)

	bank.Manage()
	_, ok = bank.Lookup("lua-vout")
	assert.False(t, ok, "idle plugin should be gone after the hide delay")

	// Reset rediscovers the plugin from disk.
	require.NoError(t, bank.Reset(context.Background()))
	lease, err = module.Need(context.Background(), bank, module.Vout, module.ProbeData{})
	require.NoError(t, err)
	assert.Equal(t, "lua-vout", lease.Name())
	lease.Release()
}

func TestScannerBankLoadErrors(t *testing.T) {
	dir := t.TempDir()
	writePlugin(t, dir, "broken", `{"name": "broken", "capabilities": ["vout"]}`, "this is not lua")

	bank := module.New(module.WithScanner(NewScanner([]string{dir})))
	require.NoError(t, bank.Init(context.Background()))
	t.Cleanup(bank.End)

	require.Len(t, bank.LoadErrors(), 1)
	assert.Equal(t, "broken", bank.LoadErrors()[0].Name)

	_, err := bank.Need(context.Background(), module.CapabilityVideoOutput, module.ProbeData{})
	assert.True(t, module.IsNotFound(err))
}

func TestScannerBankConcurrentReset(t *testing.T) {
	dir := t.TempDir()
	var names []string
	for i := range 6 {
		name := fmt.Sprintf("m%d", i)
		names = append(names, name)
		writePlugin(t, dir, name, "", memcpyLua)
	}

	bank := module.New(module.WithScanner(NewScanner([]string{dir}, WithScanWorkers(3))))
	require.NoError(t, bank.Init(context.Background()))
	t.Cleanup(bank.End)

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 5 {
				if err := bank.Reset(context.Background()); err != nil {
					t.Error(err)
					return
				}
			}
		}()
	}
	wg.Wait()

	assert.Empty(t, bank.LoadErrors())
	var got []string
	for _, m := range bank.Modules() {
		got = append(got, m.Name)
	}
	assert.Equal(t, names, got)
}

func TestScannerBankSpinningProbe(t *testing.T) {
	dir := t.TempDir()
	writePlugin(t, dir, "spin", "", `
function probe(data)
	while true do end
end

memcpy = {
	copy = function(dst, src)
		return src
	end,
}
`)

	bank := module.New(module.WithScanner(NewScanner([]string{dir}, WithScanTimeout(50*time.Millisecond))))
	require.NoError(t, bank.Init(context.Background()))
	t.Cleanup(bank.End)

	var unloaded []string
	bank.Subscribe(func(e module.Event) {
		if e.Type == module.EventUnloaded {
			unloaded = append(unloaded, e.Module)
		}
	})

	start := time.Now()
	_, err := bank.Need(context.Background(), module.CapabilityMemcpy, module.ProbeData{})
	assert.Less(t, time.Since(start), 2*time.Second)
	require.ErrorIs(t, err, module.ErrProbeFailed)
	assert.ErrorIs(t, err, plua.ErrExecutionTimeout)

	info, ok := bank.Lookup("spin")
	require.True(t, ok)
	assert.Equal(t, module.StateFaulty, info.State)
	assert.Equal(t, []string{"spin"}, unloaded)
}
