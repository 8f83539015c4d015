// Package watcher reports changes in plugin directories.
//
// An FSNotifyWatcher turns fsnotify events into Events, and a Debouncer
// collapses bursts of them into a single Batch, so a plugin copied into place
// file by file triggers one bank reset rather than a dozen.
package watcher

import (
	"errors"
	"path/filepath"
	"strings"
	"time"
)

// Common errors returned by watcher operations.
var (
	ErrWatcherClosed   = errors.New("watcher is closed")
	ErrAlreadyWatching = errors.New("path is already being watched")
	ErrNotWatching     = errors.New("path is not being watched")
	ErrPathNotExist    = errors.New("path does not exist")
)

// Op represents the type of file system operation.
type Op uint32

const (
	// OpCreate indicates a file or directory was created.
	OpCreate Op = 1 << iota
	// OpWrite indicates a file was written to.
	OpWrite
	// OpRemove indicates a file or directory was removed.
	OpRemove
	// OpRename indicates a file or directory was renamed.
	OpRename
	// OpChmod indicates file permissions were changed.
	OpChmod
)

// String returns a human-readable representation of the operation.
func (op Op) String() string {
	switch op {
	case OpCreate:
		return "CREATE"
	case OpWrite:
		return "WRITE"
	case OpRemove:
		return "REMOVE"
	case OpRename:
		return "RENAME"
	case OpChmod:
		return "CHMOD"
	}

	var parts []string
	for _, o := range []Op{OpCreate, OpWrite, OpRemove, OpRename, OpChmod} {
		if op.Has(o) {
			parts = append(parts, o.String())
		}
	}
	if len(parts) == 0 {
		return "UNKNOWN"
	}
	return strings.Join(parts, "|")
}

// Has returns true if the operation includes the given op.
func (op Op) Has(o Op) bool {
	return op&o == o
}

// Event represents a file system change event.
type Event struct {
	// Path is the absolute path of the affected file or directory.
	Path string

	// Op is the operation that occurred.
	Op Op

	// Timestamp is when the event occurred.
	Timestamp time.Time
}

// Watcher monitors file system changes.
type Watcher interface {
	// Watch starts watching a path (file or directory).
	// Returns ErrAlreadyWatching if the path is already being watched.
	Watch(path string) error

	// WatchRecursive starts watching a directory and all subdirectories.
	WatchRecursive(path string) error

	// Unwatch stops watching a path.
	Unwatch(path string) error

	// Events returns the channel of file change events.
	// The channel is closed when the watcher is closed.
	Events() <-chan Event

	// Errors returns the channel of watcher errors.
	// The channel is closed when the watcher is closed.
	Errors() <-chan error

	// Close stops the watcher and releases resources.
	Close() error
}

// Filter decides whether an event is delivered.
type Filter func(Event) bool

// PluginFiles accepts events on files a plugin is made of: Lua sources,
// manifests, and extension-less paths (plugin directories).
func PluginFiles(e Event) bool {
	switch strings.ToLower(filepath.Ext(e.Path)) {
	case ".lua", ".json", ".yaml", ".yml", "":
		return true
	default:
		return false
	}
}
