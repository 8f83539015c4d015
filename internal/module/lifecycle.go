package module

// Unneed releases a handle obtained from Need. The module's usage count drops
// by one and its idle counter starts over. Releasing a handle twice, a handle
// from another bank, or one that would underflow the counter is an invariant
// violation: it panics in strict mode and is logged and ignored otherwise.
// Handles made stale by End or Reset are ignored with a warning.
func (b *Bank) Unneed(h *Handle) {
	if h == nil {
		b.violation(&InvariantError{Op: "unneed", Reason: "nil handle"})
		return
	}

	b.mu.Lock()
	ev, verr := b.unneedLocked(h)
	b.mu.Unlock()

	if verr != nil {
		b.violation(verr)
		return
	}
	if ev != nil {
		b.emit(*ev)
	}
}

// unneedLocked applies a release. Must be called with mu held.
func (b *Bank) unneedLocked(h *Handle) (*Event, *InvariantError) {
	name := h.module.name()
	if h.bank != b {
		return nil, &InvariantError{Op: "unneed", Module: name, Reason: "handle belongs to another bank"}
	}
	if !h.released.CompareAndSwap(false, true) {
		return nil, &InvariantError{Op: "unneed", Module: name, Reason: "handle released twice"}
	}

	d := h.module
	if d.detached {
		b.logger.Warn().Str("module", name).Str("handle", h.id.String()).Msg("released handle outlived its bank generation")
		return nil, nil
	}
	if d.usage <= 0 {
		return nil, &InvariantError{Op: "unneed", Module: name, Reason: "usage count underflow"}
	}

	d.usage--
	d.idle = 0
	b.logger.Debug().Str("module", name).Int("usage", d.usage).Str("handle", h.id.String()).Msg("module released")
	return &Event{Type: EventReleased, Module: name, Capability: h.capability}, nil
}

// Manage runs one idle sweep. Every module with no users ages by one; a
// dynamic module whose idle count reaches the hide delay is unloaded. Builtin
// modules and modules in use are never unloaded here. A faulty dynamic module
// whose library is still loaded is unloaded once nobody holds it. Callers run
// Manage periodically; it is safe to call concurrently with Need and Unneed.
func (b *Bank) Manage() {
	b.mu.Lock()
	evicted, faulty, violations := b.manageLocked()
	b.mu.Unlock()

	// Evicted and faulty descriptors are already out of probing, so their
	// libraries can be unloaded without the lock.
	events := make([]Event, 0, len(evicted)+len(faulty))
	for _, d := range evicted {
		err := d.library.Unload()
		if err != nil {
			b.logger.Warn().Err(err).Str("module", d.name()).Msg("module unload failed")
		}
		b.logger.Info().Str("module", d.name()).Str("path", d.path()).Int("idle", b.hideDelay).Msg("idle module unloaded")
		events = append(events, Event{Type: EventEvicted, Module: d.name(), Error: err})
	}
	for _, d := range faulty {
		events = append(events, b.unloadFaulty(d))
	}

	b.emit(events...)
	for _, v := range violations {
		b.violation(v)
	}
}

// manageLocked ages idle modules and detaches expired ones. The returned
// descriptors still need their library unloaded.
// Must be called with mu held.
func (b *Bank) manageLocked() (evicted, faulty []*descriptor, violations []*InvariantError) {
	kept := make([]*descriptor, 0, len(b.modules))
	for _, d := range b.modules {
		if d.state == StateFaulty && b.takeFaultyLocked(d) {
			faulty = append(faulty, d)
		}
		if d.state != StateLoaded || d.usage > 0 {
			kept = append(kept, d)
			continue
		}

		d.idle++
		if d.origin == OriginBuiltin || d.idle < b.hideDelay {
			kept = append(kept, d)
			continue
		}

		if v := b.evictLocked(d); v != nil {
			violations = append(violations, v)
			kept = append(kept, d)
			continue
		}
		evicted = append(evicted, d)
		if b.retention == RetainUnloaded {
			kept = append(kept, d)
			continue
		}
		d.detached = true
		delete(b.byName, d.name())
	}
	b.modules = kept
	return evicted, faulty, violations
}

// takeFaultyLocked claims the library of a faulty dynamic module for
// unloading when nobody holds the module. Faulty modules stay registered
// until the next Reset. Must be called with mu held.
func (b *Bank) takeFaultyLocked(d *descriptor) bool {
	if d.origin != OriginDynamic || d.library == nil || d.released || d.usage > 0 {
		return false
	}
	d.released = true
	return true
}

// unloadFaulty unloads a library claimed by takeFaultyLocked.
// Must be called without mu held.
func (b *Bank) unloadFaulty(d *descriptor) Event {
	err := d.library.Unload()
	if err != nil {
		b.logger.Warn().Err(err).Str("module", d.name()).Msg("module unload failed")
	}
	b.logger.Info().Str("module", d.name()).Str("path", d.path()).Msg("faulty module unloaded")
	return Event{Type: EventUnloaded, Module: d.name(), Error: err}
}

// evictLocked takes an idle dynamic module out of probing.
// Must be called with mu held.
func (b *Bank) evictLocked(d *descriptor) *InvariantError {
	if d.usage != 0 || d.origin != OriginDynamic || d.library == nil {
		return &InvariantError{Op: "manage", Module: d.name(), Reason: "eviction of a pinned or builtin module"}
	}
	d.state = StateUnloaded
	d.released = true
	return nil
}
