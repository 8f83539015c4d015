package watcher

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestWatcher(t *testing.T, opts ...Option) *FSNotifyWatcher {
	t.Helper()
	w, err := NewFSNotifyWatcher(opts...)
	if err != nil {
		t.Fatalf("NewFSNotifyWatcher error = %v", err)
	}
	t.Cleanup(func() { w.Close() })
	return w
}

func waitEvent(t *testing.T, w Watcher, match func(Event) bool) Event {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case e := <-w.Events():
			if match(e) {
				return e
			}
		case <-timeout:
			t.Fatal("timed out waiting for event")
			return Event{}
		}
	}
}

func TestFSNotifyWatcherWatchUnwatch(t *testing.T) {
	w := newTestWatcher(t)
	dir := t.TempDir()

	if err := w.Watch(dir); err != nil {
		t.Fatalf("Watch error = %v", err)
	}
	if !w.IsWatching(dir) {
		t.Error("should be watching dir")
	}
	if err := w.Watch(dir); !errors.Is(err, ErrAlreadyWatching) {
		t.Errorf("Watch again error = %v, want ErrAlreadyWatching", err)
	}

	if err := w.Unwatch(dir); err != nil {
		t.Fatalf("Unwatch error = %v", err)
	}
	if w.IsWatching(dir) {
		t.Error("should not be watching dir after Unwatch")
	}
	if err := w.Unwatch(dir); !errors.Is(err, ErrNotWatching) {
		t.Errorf("Unwatch again error = %v, want ErrNotWatching", err)
	}
}

func TestFSNotifyWatcherMissingPath(t *testing.T) {
	w := newTestWatcher(t)
	missing := filepath.Join(t.TempDir(), "absent")

	if err := w.Watch(missing); !errors.Is(err, ErrPathNotExist) {
		t.Errorf("Watch error = %v, want ErrPathNotExist", err)
	}
	if err := w.WatchRecursive(missing); !errors.Is(err, ErrPathNotExist) {
		t.Errorf("WatchRecursive error = %v, want ErrPathNotExist", err)
	}
}

func TestFSNotifyWatcherRecursive(t *testing.T) {
	w := newTestWatcher(t)
	dir := t.TempDir()
	sub := filepath.Join(dir, "null-vout")
	hidden := filepath.Join(dir, ".git")
	for _, d := range []string{sub, hidden} {
		if err := os.MkdirAll(d, 0755); err != nil {
			t.Fatal(err)
		}
	}

	if err := w.WatchRecursive(dir); err != nil {
		t.Fatalf("WatchRecursive error = %v", err)
	}
	if !w.IsWatching(sub) {
		t.Error("subdirectory should be watched")
	}
	if w.IsWatching(hidden) {
		t.Error("hidden directory should be skipped")
	}
}

func TestFSNotifyWatcherEvents(t *testing.T) {
	w := newTestWatcher(t, WithFilter(PluginFiles))
	dir := t.TempDir()
	if err := w.WatchRecursive(dir); err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	target := filepath.Join(dir, "fast.lua")
	if err := os.WriteFile(target, []byte("-- lua"), 0644); err != nil {
		t.Fatal(err)
	}

	e := waitEvent(t, w, func(e Event) bool { return e.Path == target })
	if !e.Op.Has(OpCreate) && !e.Op.Has(OpWrite) {
		t.Errorf("Op = %v, want CREATE or WRITE", e.Op)
	}
	if w.TotalEvents() == 0 {
		t.Error("TotalEvents() = 0")
	}
}

func TestFSNotifyWatcherNewDirectory(t *testing.T) {
	w := newTestWatcher(t)
	dir := t.TempDir()
	if err := w.Watch(dir); err != nil {
		t.Fatal(err)
	}

	sub := filepath.Join(dir, "new-plugin")
	if err := os.Mkdir(sub, 0755); err != nil {
		t.Fatal(err)
	}
	waitEvent(t, w, func(e Event) bool { return e.Path == sub })

	deadline := time.Now().Add(2 * time.Second)
	for !w.IsWatching(sub) {
		if time.Now().After(deadline) {
			t.Fatal("new directory was not watched")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestFSNotifyWatcherClosed(t *testing.T) {
	w, err := NewFSNotifyWatcher()
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("second Close error = %v", err)
	}
	if err := w.Watch(t.TempDir()); !errors.Is(err, ErrWatcherClosed) {
		t.Errorf("Watch after Close error = %v, want ErrWatcherClosed", err)
	}
}

func TestPluginFiles(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"/p/init.lua", true},
		{"/p/plugin.JSON", true},
		{"/p/plugin.yaml", true},
		{"/p/null-vout", true},
		{"/p/README.md", false},
		{"/p/init.lua.swp", false},
	}
	for _, tt := range tests {
		if got := PluginFiles(Event{Path: tt.path}); got != tt.want {
			t.Errorf("PluginFiles(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestOpString(t *testing.T) {
	if got := OpWrite.String(); got != "WRITE" {
		t.Errorf("OpWrite.String() = %q", got)
	}
	if got := (OpCreate | OpRemove).String(); got != "CREATE|REMOVE" {
		t.Errorf("combined String() = %q", got)
	}
	if got := Op(0).String(); got != "UNKNOWN" {
		t.Errorf("Op(0).String() = %q", got)
	}
}
