package module

import (
	"errors"
	"fmt"
)

// Module bank errors.
var (
	// ErrNoCapableModule is returned by Need when no module scored above zero.
	ErrNoCapableModule = errors.New("no capable module")

	// ErrUnknownCapability is returned for an unknown capability name or bit.
	ErrUnknownCapability = errors.New("unknown capability")

	// ErrCapabilityMismatch is returned when a handle is asked for a variant
	// other than the one it was bound to.
	ErrCapabilityMismatch = errors.New("capability not bound to handle")

	// ErrInvalidDefinition is returned when a module definition is incomplete.
	ErrInvalidDefinition = errors.New("invalid module definition")

	// ErrInvalidConfig is returned when a configuration schema is malformed.
	ErrInvalidConfig = errors.New("invalid module configuration schema")

	// ErrDuplicateName is returned when a module name is already registered.
	ErrDuplicateName = errors.New("module name already registered")

	// ErrAlreadyInitialized is returned by Init on an initialized bank.
	ErrAlreadyInitialized = errors.New("module bank already initialized")

	// ErrNotInitialized is returned when the bank is used before Init.
	ErrNotInitialized = errors.New("module bank not initialized")

	// ErrProbeFailed marks a probe that violated the plugin contract.
	ErrProbeFailed = errors.New("module probe failed")

	// ErrInvariant marks usage counter and handle misuse.
	ErrInvariant = errors.New("module bank invariant violated")

	// ErrUnsupported is returned by optional operations a module leaves out.
	ErrUnsupported = errors.New("operation not supported by module")
)

// NotFoundError reports that Need found no module for a capability.
type NotFoundError struct {
	Capability Capability
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s: %s", ErrNoCapableModule, e.Capability)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNoCapableModule
}

// LoadError records a module candidate rejected during a scan or registration.
type LoadError struct {
	Path string
	Name string
	Err  error
}

func (e *LoadError) Error() string {
	switch {
	case e.Name != "" && e.Path != "":
		return fmt.Sprintf("load %s (%s): %v", e.Name, e.Path, e.Err)
	case e.Name != "":
		return fmt.Sprintf("load %s: %v", e.Name, e.Err)
	default:
		return fmt.Sprintf("load %s: %v", e.Path, e.Err)
	}
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// ProbeError reports a probe that panicked or raised an error.
type ProbeError struct {
	Module string
	Err    error
}

func (e *ProbeError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrProbeFailed, e.Module, e.Err)
}

func (e *ProbeError) Unwrap() []error {
	return []error{ErrProbeFailed, e.Err}
}

// InvariantError reports a programming error against the bank: counter
// underflow, double release, foreign handle or eviction of a pinned module.
type InvariantError struct {
	Op     string
	Module string
	Reason string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("%s: %s %s: %s", ErrInvariant, e.Op, e.Module, e.Reason)
}

func (e *InvariantError) Unwrap() error {
	return ErrInvariant
}
