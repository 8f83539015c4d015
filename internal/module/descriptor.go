package module

import (
	"context"
	"fmt"
	"strings"
)

// ProbeData describes what a caller needs. Probes read it to decide how well
// they fit.
type ProbeData struct {
	// Capability is filled in by Need.
	Capability Capability

	// Target is the medium, device or format being handled (an MRL, a
	// display name, a codec fourcc...).
	Target string

	// Params carries additional hints.
	Params map[string]string

	// Preferred lists module names the caller asked for, best first.
	Preferred []string
}

// Param returns a hint or def when unset.
func (p ProbeData) Param(key, def string) string {
	if v, ok := p.Params[key]; ok {
		return v
	}
	return def
}

// ProbeFunc scores how well a module handles data. A score <= 0 means the
// module cannot handle it. Probes must be pure and cheap: they run under the
// bank lock, so a slow probe stalls every Need, Unneed and Manage on the bank
// until it returns. Lua probes are cut off by the plugin execution timeout,
// which bounds one Need at that timeout per candidate. An error or panic is
// treated as a contract violation.
type ProbeFunc func(data ProbeData) (int, error)

// Definition is what a provider supplies to be registered.
type Definition struct {
	Name     string
	LongName string
	Version  string

	Functions FunctionTable
	Probe     ProbeFunc
	Config    []ConfigItem

	// Deactivate runs when a builtin module is torn down (End or Reset).
	// It must not call back into the bank. Ignored for dynamic modules,
	// whose Library.Unload does the equivalent.
	Deactivate func() error
}

// Capabilities returns the capabilities the definition provides.
func (d *Definition) Capabilities() CapabilitySet {
	return d.Functions.Capabilities()
}

// Validate checks the registration contract.
func (d *Definition) Validate() error {
	if d == nil {
		return fmt.Errorf("%w: nil definition", ErrInvalidDefinition)
	}
	if strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidDefinition)
	}
	if d.Functions.Capabilities().Empty() {
		return fmt.Errorf("%w: %s declares no capability", ErrInvalidDefinition, d.Name)
	}
	if d.Probe == nil {
		return fmt.Errorf("%w: %s has no probe", ErrInvalidDefinition, d.Name)
	}
	if err := ValidateSchema(d.Config); err != nil {
		return fmt.Errorf("%s: %w", d.Name, err)
	}
	return nil
}

// Library is a dynamically loaded provider. Implementations wrap whatever
// runtime hosts the code and validate it before exposing a Definition.
type Library interface {
	// Definition returns the validated module definition.
	Definition() *Definition

	// Path is where the library was loaded from.
	Path() string

	// Unload releases the library. The definition's functions must not be
	// used afterwards.
	Unload() error
}

// Scanner discovers and loads dynamic libraries. Results must come back in a
// deterministic order; rejected candidates are reported, not fatal.
type Scanner interface {
	Scan(ctx context.Context) ([]Library, []*LoadError)
}

// Origin tells builtin and dynamic modules apart.
type Origin int

const (
	// OriginBuiltin modules are compiled in and never unloaded.
	OriginBuiltin Origin = iota
	// OriginDynamic modules come from a Library and may be evicted.
	OriginDynamic
)

// String returns a string representation of the origin.
func (o Origin) String() string {
	switch o {
	case OriginBuiltin:
		return "builtin"
	case OriginDynamic:
		return "dynamic"
	default:
		return "unknown"
	}
}

// State is the lifecycle state of a registered module.
type State int

const (
	// StateLoaded modules take part in probing.
	StateLoaded State = iota
	// StateUnloaded modules were evicted and wait for a Reset.
	StateUnloaded
	// StateFaulty modules broke the probe contract and wait for a Reset.
	StateFaulty
)

// String returns a string representation of the state.
func (s State) String() string {
	switch s {
	case StateLoaded:
		return "loaded"
	case StateUnloaded:
		return "unloaded"
	case StateFaulty:
		return "faulty"
	default:
		return "unknown"
	}
}

// descriptor is the bank's record of one module. All mutable fields are
// guarded by the owning bank's lock.
type descriptor struct {
	def     *Definition
	origin  Origin
	library Library
	seq     uint64

	usage    int
	idle     int
	state    State
	detached bool

	// Library already unloaded (evicted, or faulty and unused)
	released bool
}

func (d *descriptor) name() string {
	return d.def.Name
}

func (d *descriptor) path() string {
	if d.library == nil {
		return ""
	}
	return d.library.Path()
}

// probe runs the module's probe, turning a panic into an error.
func (d *descriptor) probe(data ProbeData) (score int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("probe panic: %v", r)
		}
	}()
	return d.def.Probe(data)
}

// release runs the module's teardown: deactivate for builtins, unload for
// dynamic modules not unloaded yet. Must be called with the bank lock held.
func (d *descriptor) release() error {
	switch d.origin {
	case OriginBuiltin:
		if d.def.Deactivate != nil {
			return d.def.Deactivate()
		}
	case OriginDynamic:
		if d.library != nil && !d.released {
			d.released = true
			return d.library.Unload()
		}
	}
	return nil
}

func (d *descriptor) info() Info {
	return Info{
		Name:         d.def.Name,
		LongName:     d.def.LongName,
		Version:      d.def.Version,
		Capabilities: d.def.Capabilities(),
		Origin:       d.origin,
		Path:         d.path(),
		Usage:        d.usage,
		Idle:         d.idle,
		State:        d.state,
		Config:       append([]ConfigItem(nil), d.def.Config...),
		Sequence:     d.seq,
	}
}

// Info is a point-in-time snapshot of a registered module.
type Info struct {
	Name         string
	LongName     string
	Version      string
	Capabilities CapabilitySet
	Origin       Origin
	Path         string
	Usage        int
	Idle         int
	State        State
	Config       []ConfigItem
	Sequence     uint64
}

// DisplayName returns the long name, falling back to the name.
func (i Info) DisplayName() string {
	if i.LongName != "" {
		return i.LongName
	}
	return i.Name
}
