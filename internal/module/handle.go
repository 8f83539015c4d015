package module

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
)

// Handle pins a module for one capability. It stays valid until passed to
// Unneed; the bank never evicts a module while a handle pins it.
type Handle struct {
	id         uuid.UUID
	bank       *Bank
	module     *descriptor
	capability Capability
	variant    any
	released   atomic.Bool
}

// ID uniquely identifies the handle, for logs.
func (h *Handle) ID() uuid.UUID {
	return h.id
}

// Name returns the selected module's name.
func (h *Handle) Name() string {
	return h.module.def.Name
}

// LongName returns the selected module's descriptive name.
func (h *Handle) LongName() string {
	return h.module.def.LongName
}

// Capability returns the capability the handle was bound to.
func (h *Handle) Capability() Capability {
	return h.capability
}

// Config returns the selected module's configuration schema.
func (h *Handle) Config() []ConfigItem {
	return append([]ConfigItem(nil), h.module.def.Config...)
}

// Variant returns the untyped operation set. Prefer Functions.
func (h *Handle) Variant() any {
	return h.variant
}

// Released reports whether the handle was passed to Unneed.
func (h *Handle) Released() bool {
	return h.released.Load()
}

// String implements fmt.Stringer.
func (h *Handle) String() string {
	return fmt.Sprintf("%s/%s#%s", h.capability, h.Name(), h.id.String()[:8])
}

// Functions returns the operation set a handle was bound to. Asking for any
// other capability returns ErrCapabilityMismatch.
func Functions[T any](h *Handle, key Cap[T]) (T, error) {
	var zero T
	if h == nil {
		return zero, fmt.Errorf("%w: nil handle", ErrCapabilityMismatch)
	}
	if key.capability != h.capability {
		return zero, fmt.Errorf("%w: handle %s is bound to %s, not %s", ErrCapabilityMismatch, h.Name(), h.capability, key.capability)
	}
	fns, ok := h.variant.(T)
	if !ok {
		return zero, fmt.Errorf("%w: %s does not implement %s", ErrCapabilityMismatch, h.Name(), key.capability)
	}
	return fns, nil
}

// Lease is a handle with its operation set already resolved.
type Lease[T any] struct {
	*Handle
	fns T
}

// Functions returns the typed operation set.
func (l *Lease[T]) Functions() T {
	return l.fns
}

// Release returns the lease to its bank.
func (l *Lease[T]) Release() {
	l.bank.Unneed(l.Handle)
}
