package lua

import "errors"

// Errors for Lua state operations.
var (
	// ErrStateClosed is returned when operating on a closed state.
	ErrStateClosed = errors.New("lua state is closed")

	// ErrExecutionTimeout is returned when execution times out.
	ErrExecutionTimeout = errors.New("lua execution timeout")

	// ErrNotFound is returned when a called function or table is missing.
	ErrNotFound = errors.New("lua symbol not found")

	// ErrUnknownPermission is returned when granting an unknown permission.
	ErrUnknownPermission = errors.New("unknown permission")
)
