package plugin

import "errors"

// Plugin system errors.
var (
	// ErrNoEntryPoint is returned when a plugin has no valid entry point.
	ErrNoEntryPoint = errors.New("plugin has no entry point (init.lua or plugin.lua)")

	// ErrNilManifest is returned when a nil manifest is provided.
	ErrNilManifest = errors.New("manifest is nil")

	// ErrAlreadyLoaded is returned when attempting to load an already loaded plugin.
	ErrAlreadyLoaded = errors.New("plugin is already loaded")

	// ErrNotLoaded is returned when attempting to use an unloaded plugin.
	ErrNotLoaded = errors.New("plugin is not loaded")

	// ErrMissingSymbol is returned when a plugin lacks a required function.
	ErrMissingSymbol = errors.New("plugin is missing required symbols")

	// ErrPluginNotFound is returned by FindPlugin when no search path holds the
	// named plugin.
	ErrPluginNotFound = errors.New("plugin not found")

	// ErrBadProbe is returned when probe returns something other than a number.
	ErrBadProbe = errors.New("probe must return a number")
)
