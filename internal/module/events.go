package module

// EventHandler handles bank events.
// Handlers must be non-blocking and should not call back into the Bank
// to avoid deadlocks. Panics in handlers are recovered.
type EventHandler func(event Event)

// Event represents a module bank event.
type Event struct {
	Type       EventType
	Module     string
	Capability Capability
	Error      error
}

// EventType is the type of bank event.
type EventType int

const (
	// EventRegistered is emitted when a module joins the bank.
	EventRegistered EventType = iota
	// EventLoadFailed is emitted when a candidate is rejected.
	EventLoadFailed
	// EventNeeded is emitted when Need hands out a handle.
	EventNeeded
	// EventReleased is emitted when a handle is released.
	EventReleased
	// EventEvicted is emitted when the idle sweep unloads a module.
	EventEvicted
	// EventUnloaded is emitted when End or Reset tears a module down, or when
	// a faulty dynamic module's library is unloaded.
	EventUnloaded
	// EventFaulty is emitted when a probe breaks its contract.
	EventFaulty
	// EventInvariant is emitted when a caller misuses the bank.
	EventInvariant
)

// String returns a string representation of the event type.
func (t EventType) String() string {
	switch t {
	case EventRegistered:
		return "registered"
	case EventLoadFailed:
		return "load_failed"
	case EventNeeded:
		return "needed"
	case EventReleased:
		return "released"
	case EventEvicted:
		return "evicted"
	case EventUnloaded:
		return "unloaded"
	case EventFaulty:
		return "faulty"
	case EventInvariant:
		return "invariant"
	default:
		return "unknown"
	}
}

// Subscribe adds an event handler.
// Returns an unsubscribe function to remove the handler.
func (b *Bank) Subscribe(handler EventHandler) func() {
	if handler == nil {
		return func() {}
	}

	b.eventsMu.Lock()
	b.eventHandlers = append(b.eventHandlers, handler)
	index := len(b.eventHandlers) - 1
	b.eventsMu.Unlock()

	return func() {
		b.eventsMu.Lock()
		defer b.eventsMu.Unlock()
		// Set to nil instead of removing to avoid index shifting issues
		if index < len(b.eventHandlers) {
			b.eventHandlers[index] = nil
		}
	}
}

// emit sends events to all handlers.
// Must be called without b.mu held.
func (b *Bank) emit(events ...Event) {
	if len(events) == 0 {
		return
	}

	b.eventsMu.RLock()
	handlers := make([]EventHandler, len(b.eventHandlers))
	copy(handlers, b.eventHandlers)
	b.eventsMu.RUnlock()

	for _, event := range events {
		for _, handler := range handlers {
			if handler == nil {
				continue
			}
			func() {
				defer func() {
					recover() // Ignore panics from handlers
				}()
				handler(event)
			}()
		}
	}
}
