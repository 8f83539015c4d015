package plugin

// State represents the lifecycle state of a plugin host.
type State int

// Plugin states.
const (
	// StateUnloaded - Lua state is not open.
	StateUnloaded State = iota

	// StateLoaded - Script loaded and symbols validated.
	StateLoaded

	// StateError - Loading failed.
	StateError
)

// String returns a string representation of the state.
func (s State) String() string {
	switch s {
	case StateUnloaded:
		return "unloaded"
	case StateLoaded:
		return "loaded"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}
