package app

import (
	"fmt"
	"sync"
)

// Exception carries a failure across the host API boundary for callers that
// prefer checking a flag to handling errors. A nil *Exception means the
// caller does not care: every method is a no-op on nil.
type Exception struct {
	mu      sync.Mutex
	raised  bool
	message string
	err     error
}

// Init resets the exception to the not-raised state.
func (e *Exception) Init() {
	e.Clear()
}

// Clear drops any raised failure.
func (e *Exception) Clear() {
	if e == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.raised = false
	e.message = ""
	e.err = nil
}

// Raised reports whether a failure was raised and not cleared.
func (e *Exception) Raised() bool {
	if e == nil {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.raised
}

// Message returns the raised message, or "" when nothing was raised.
func (e *Exception) Message() string {
	if e == nil {
		return ""
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.raised {
		return ""
	}
	return e.message
}

// Err returns the error behind the raised message, if one was given.
func (e *Exception) Err() error {
	if e == nil {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.err
}

// Raise records a failure. A previous uncleared message is replaced.
func (e *Exception) Raise(format string, args ...any) {
	if e == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.raised = true
	e.message = fmt.Sprintf(format, args...)
	e.err = nil
}

// raiseErr raises err with a context prefix and keeps err for errors.Is.
func (e *Exception) raiseErr(prefix string, err error) {
	if e == nil || err == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.raised = true
	e.message = fmt.Sprintf("%s: %v", prefix, err)
	e.err = err
}
