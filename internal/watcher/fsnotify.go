package watcher

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// DefaultBufferSize is the capacity of the event and error channels.
const DefaultBufferSize = 100

// Option configures an FSNotifyWatcher.
type Option func(*FSNotifyWatcher)

// WithFilter drops events the filter rejects.
func WithFilter(f Filter) Option {
	return func(w *FSNotifyWatcher) {
		w.filter = f
	}
}

// WithIgnoreHidden controls whether dotfiles are ignored. Default true.
func WithIgnoreHidden(ignore bool) Option {
	return func(w *FSNotifyWatcher) {
		w.ignoreHidden = ignore
	}
}

// WithBufferSize sets the channel capacity.
func WithBufferSize(n int) Option {
	return func(w *FSNotifyWatcher) {
		if n > 0 {
			w.bufSize = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(w *FSNotifyWatcher) {
		w.logger = l
	}
}

// FSNotifyWatcher implements Watcher using fsnotify.
type FSNotifyWatcher struct {
	mu sync.RWMutex

	watcher *fsnotify.Watcher
	paths   map[string]bool

	filter       Filter
	ignoreHidden bool
	bufSize      int
	logger       zerolog.Logger

	events chan Event
	errors chan error

	totalEvents int64
	dropped     int64

	closed   bool
	closeCh  chan struct{}
	closedWg sync.WaitGroup
}

// NewFSNotifyWatcher creates a new fsnotify-based watcher.
func NewFSNotifyWatcher(opts ...Option) (*FSNotifyWatcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}

	w := &FSNotifyWatcher{
		watcher:      fsw,
		paths:        make(map[string]bool),
		ignoreHidden: true,
		bufSize:      DefaultBufferSize,
		logger:       zerolog.Nop(),
		closeCh:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.events = make(chan Event, w.bufSize)
	w.errors = make(chan error, w.bufSize)

	w.closedWg.Add(1)
	go w.processLoop()

	return w, nil
}

// Watch starts watching a path.
func (w *FSNotifyWatcher) Watch(path string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrWatcherClosed
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	if _, err := os.Stat(absPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrPathNotExist, absPath)
		}
		return err
	}

	if w.paths[absPath] {
		return ErrAlreadyWatching
	}

	if err := w.watcher.Add(absPath); err != nil {
		return err
	}

	w.paths[absPath] = true
	return nil
}

// WatchRecursive watches a directory and all subdirectories.
func (w *FSNotifyWatcher) WatchRecursive(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	info, err := os.Stat(absPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrPathNotExist, absPath)
		}
		return err
	}
	if !info.IsDir() {
		return w.Watch(absPath)
	}

	return filepath.WalkDir(absPath, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if p != absPath && w.hidden(p) {
			return filepath.SkipDir
		}
		if err := w.Watch(p); err != nil && !errors.Is(err, ErrAlreadyWatching) {
			w.logger.Warn().Err(err).Str("path", p).Msg("cannot watch directory")
		}
		return nil
	})
}

// Unwatch stops watching a path.
func (w *FSNotifyWatcher) Unwatch(path string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrWatcherClosed
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	if !w.paths[absPath] {
		return ErrNotWatching
	}

	if err := w.watcher.Remove(absPath); err != nil {
		return err
	}

	delete(w.paths, absPath)
	return nil
}

// Events returns the event channel.
func (w *FSNotifyWatcher) Events() <-chan Event {
	return w.events
}

// Errors returns the error channel.
func (w *FSNotifyWatcher) Errors() <-chan error {
	return w.errors
}

// Close stops the watcher.
func (w *FSNotifyWatcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	close(w.closeCh)
	w.mu.Unlock()

	w.closedWg.Wait()

	close(w.events)
	close(w.errors)

	return w.watcher.Close()
}

// IsWatching returns true if the path is being watched.
func (w *FSNotifyWatcher) IsWatching(path string) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()

	absPath, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	return w.paths[absPath]
}

// TotalEvents returns the number of delivered events.
func (w *FSNotifyWatcher) TotalEvents() int64 {
	return atomic.LoadInt64(&w.totalEvents)
}

// Dropped returns the number of events dropped on a full channel.
func (w *FSNotifyWatcher) Dropped() int64 {
	return atomic.LoadInt64(&w.dropped)
}

func (w *FSNotifyWatcher) processLoop() {
	defer w.closedWg.Done()

	for {
		select {
		case <-w.closeCh:
			return

		case fsEvent, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleFSEvent(fsEvent)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.sendError(err)
		}
	}
}

func (w *FSNotifyWatcher) handleFSEvent(fsEvent fsnotify.Event) {
	op := convertOp(fsEvent.Op)
	if op == 0 || w.hidden(fsEvent.Name) {
		return
	}

	event := Event{
		Path:      fsEvent.Name,
		Op:        op,
		Timestamp: time.Now(),
	}

	// A new plugin directory is watched before filtering so files added
	// to it later are seen.
	if op.Has(OpCreate) {
		if info, err := os.Stat(fsEvent.Name); err == nil && info.IsDir() {
			_ = w.Watch(fsEvent.Name)
		}
	}

	if w.filter != nil && !w.filter(event) {
		return
	}
	w.sendEvent(event)
}

func convertOp(fsOp fsnotify.Op) Op {
	var op Op
	if fsOp.Has(fsnotify.Create) {
		op |= OpCreate
	}
	if fsOp.Has(fsnotify.Write) {
		op |= OpWrite
	}
	if fsOp.Has(fsnotify.Remove) {
		op |= OpRemove
	}
	if fsOp.Has(fsnotify.Rename) {
		op |= OpRename
	}
	if fsOp.Has(fsnotify.Chmod) {
		op |= OpChmod
	}
	return op
}

func (w *FSNotifyWatcher) hidden(path string) bool {
	if !w.ignoreHidden {
		return false
	}
	base := filepath.Base(path)
	return len(base) > 0 && base[0] == '.'
}

func (w *FSNotifyWatcher) sendEvent(event Event) {
	select {
	case w.events <- event:
		atomic.AddInt64(&w.totalEvents, 1)
	default:
		atomic.AddInt64(&w.dropped, 1)
		w.logger.Warn().Str("path", event.Path).Msg("event channel full, dropping event")
	}
}

func (w *FSNotifyWatcher) sendError(err error) {
	select {
	case w.errors <- err:
	default:
		w.logger.Warn().Err(err).Msg("error channel full, dropping error")
	}
}

var _ Watcher = (*FSNotifyWatcher)(nil)
