package watcher

import (
	"sync"
	"time"
)

// DefaultDebounce is used when NewDebouncer is given a non-positive delay.
const DefaultDebounce = 500 * time.Millisecond

// Batch is a burst of changes, one Event per path in first-seen order.
// Operations on the same path are merged.
type Batch struct {
	Events []Event
}

// Paths returns the changed paths.
func (b Batch) Paths() []string {
	paths := make([]string, len(b.Events))
	for i, e := range b.Events {
		paths[i] = e.Path
	}
	return paths
}

// Debouncer wraps a Watcher and delivers its events as batches once no new
// event has arrived for the delay.
type Debouncer struct {
	inner Watcher
	delay time.Duration

	mu      sync.Mutex
	index   map[string]int
	pending []Event
	closed  bool

	batches chan Batch
	errors  chan error
	flushCh chan struct{}

	closeCh  chan struct{}
	closedWg sync.WaitGroup
}

// NewDebouncer starts debouncing inner's events.
func NewDebouncer(inner Watcher, delay time.Duration) *Debouncer {
	if delay <= 0 {
		delay = DefaultDebounce
	}

	d := &Debouncer{
		inner:   inner,
		delay:   delay,
		index:   make(map[string]int),
		batches: make(chan Batch, 16),
		errors:  make(chan error, DefaultBufferSize),
		flushCh: make(chan struct{}),
		closeCh: make(chan struct{}),
	}

	d.closedWg.Add(1)
	go d.processLoop()

	return d
}

// Watch starts watching a path.
func (d *Debouncer) Watch(path string) error {
	return d.inner.Watch(path)
}

// WatchRecursive starts watching a directory recursively.
func (d *Debouncer) WatchRecursive(path string) error {
	return d.inner.WatchRecursive(path)
}

// Batches returns the batch channel. It is closed by Close.
func (d *Debouncer) Batches() <-chan Batch {
	return d.batches
}

// Errors returns the inner watcher's errors. It is closed by Close.
func (d *Debouncer) Errors() <-chan error {
	return d.errors
}

// Delay returns the quiet period that ends a batch.
func (d *Debouncer) Delay() time.Duration {
	return d.delay
}

// Pending returns the number of paths waiting in the current batch.
func (d *Debouncer) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// Flush delivers the current batch now, if any.
func (d *Debouncer) Flush() {
	select {
	case d.flushCh <- struct{}{}:
	case <-d.closeCh:
	}
}

// Close stops debouncing, drops any pending batch and closes the inner
// watcher.
func (d *Debouncer) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.closeCh)
	d.mu.Unlock()

	d.closedWg.Wait()

	close(d.batches)
	close(d.errors)

	return d.inner.Close()
}

func (d *Debouncer) processLoop() {
	defer d.closedWg.Done()

	timer := time.NewTimer(d.delay)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-d.closeCh:
			return

		case event, ok := <-d.inner.Events():
			if !ok {
				return
			}
			d.add(event)
			timer.Reset(d.delay)

		case err, ok := <-d.inner.Errors():
			if !ok {
				return
			}
			select {
			case d.errors <- err:
			default:
			}

		case <-timer.C:
			d.fire()

		case <-d.flushCh:
			timer.Stop()
			d.fire()
		}
	}
}

func (d *Debouncer) add(event Event) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if i, ok := d.index[event.Path]; ok {
		d.pending[i].Op |= event.Op
		d.pending[i].Timestamp = event.Timestamp
		return
	}
	d.index[event.Path] = len(d.pending)
	d.pending = append(d.pending, event)
}

func (d *Debouncer) fire() {
	d.mu.Lock()
	if len(d.pending) == 0 {
		d.mu.Unlock()
		return
	}
	batch := Batch{Events: d.pending}
	d.pending = nil
	d.index = make(map[string]int)
	d.mu.Unlock()

	select {
	case d.batches <- batch:
	case <-d.closeCh:
	}
}
