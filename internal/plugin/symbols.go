package plugin

import (
	"fmt"
	"strings"

	"github.com/Jasonic/vlc/internal/module"
)

// Lua entry points every plugin may define.
const (
	probeFunc      = "probe"
	deactivateFunc = "deactivate"
)

// symbolSet lists the functions of one capability table. Lua cannot use
// "end" as a field name without quoting, so end hooks are spelled "finish".
type symbolSet struct {
	required []string
	optional []string
}

var capabilitySymbols = map[module.Capability]symbolSet{
	module.CapabilityInterface: {
		required: []string{"open", "close", "run"},
	},
	module.CapabilityAccess: {
		required: []string{"open", "read", "close"},
		optional: []string{"seek"},
	},
	module.CapabilityInput: {
		required: []string{"init", "open", "close", "finish", "read", "demux"},
		optional: []string{"set_program", "set_area", "rewind", "seek"},
	},
	module.CapabilityDecaps: {
		required: []string{"open", "demux", "close"},
	},
	module.CapabilityDecoder: {
		required: []string{"run"},
	},
	module.CapabilityMotion: {
		required: []string{"compensate"},
	},
	module.CapabilityIDCT: {
		required: []string{"init", "sparse_add", "add", "sparse_copy", "copy"},
		optional: []string{"norm_scan"},
	},
	module.CapabilityAudioOutput: {
		required: []string{"open", "set_format", "buf_info", "play", "close"},
	},
	module.CapabilityVideoOutput: {
		required: []string{"create", "init", "finish", "destroy", "manage", "display"},
		optional: []string{"set_palette"},
	},
	module.CapabilityYUV: {
		required: []string{"init", "reset", "finish"},
	},
	module.CapabilityIMDCT: {
		required: []string{"init", "imdct_256", "imdct_256_nolap", "imdct_512", "imdct_512_nolap"},
	},
	module.CapabilityDownmix: {
		required: []string{
			"downmix_3f_2r", "downmix_3f_1r", "downmix_2f_2r", "downmix_2f_1r", "downmix_3f_0r",
			"stream_sample_2ch_to_s16", "stream_sample_1ch_to_s16",
		},
	},
	module.CapabilityMemcpy: {
		required: []string{"copy"},
	},
}

// symbolLookup is what validation needs from a loaded script.
type symbolLookup interface {
	HasFunction(name string) bool
	HasTable(name string) bool
	HasField(table, fn string) bool
}

// validateSymbols checks the entry points for the declared capabilities and
// returns every missing symbol at once.
func validateSymbols(L symbolLookup, caps module.CapabilitySet) error {
	var missing []string
	if !L.HasFunction(probeFunc) {
		missing = append(missing, probeFunc)
	}
	for _, c := range caps.List() {
		table := c.String()
		if !L.HasTable(table) {
			missing = append(missing, table)
			continue
		}
		for _, fn := range capabilitySymbols[c].required {
			if !L.HasField(table, fn) {
				missing = append(missing, table+"."+fn)
			}
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrMissingSymbol, strings.Join(missing, ", "))
	}
	return nil
}

// inferCapabilities finds the capability tables a script defines, for
// plugins without a manifest.
func inferCapabilities(L symbolLookup) module.CapabilitySet {
	var set module.CapabilitySet
	for _, c := range module.AllCapabilities {
		if L.HasTable(c.String()) {
			set |= module.NewCapabilitySet(c)
		}
	}
	return set
}
