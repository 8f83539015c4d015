package module

import (
	"fmt"
	"math/bits"
	"strings"
)

// Capability is a functional role a module can fulfil. Each capability is a
// single bit so that a module's declared roles fit in one CapabilitySet.
type Capability uint32

// Module capabilities, in bank bit order.
const (
	CapabilityInterface Capability = 1 << iota
	CapabilityAccess
	CapabilityInput
	CapabilityDecaps
	CapabilityDecoder
	CapabilityMotion
	CapabilityIDCT
	CapabilityAudioOutput
	CapabilityVideoOutput
	CapabilityYUV
	CapabilityIMDCT
	CapabilityDownmix
	CapabilityMemcpy

	capabilityEnd
)

// AllCapabilities lists every capability in bit order.
var AllCapabilities = []Capability{
	CapabilityInterface,
	CapabilityAccess,
	CapabilityInput,
	CapabilityDecaps,
	CapabilityDecoder,
	CapabilityMotion,
	CapabilityIDCT,
	CapabilityAudioOutput,
	CapabilityVideoOutput,
	CapabilityYUV,
	CapabilityIMDCT,
	CapabilityDownmix,
	CapabilityMemcpy,
}

var capabilityNames = map[Capability]string{
	CapabilityInterface:   "intf",
	CapabilityAccess:      "access",
	CapabilityInput:       "input",
	CapabilityDecaps:      "decaps",
	CapabilityDecoder:     "dec",
	CapabilityMotion:      "motion",
	CapabilityIDCT:        "idct",
	CapabilityAudioOutput: "aout",
	CapabilityVideoOutput: "vout",
	CapabilityYUV:         "yuv",
	CapabilityIMDCT:       "imdct",
	CapabilityDownmix:     "downmix",
	CapabilityMemcpy:      "memcpy",
}

// capabilityAliases maps long or historical names onto capabilities.
var capabilityAliases = map[string]Capability{
	"interface":         CapabilityInterface,
	"demux":             CapabilityDecaps,
	"decoder":           CapabilityDecoder,
	"motion_comp":       CapabilityMotion,
	"inverse_transform": CapabilityIDCT,
	"audio_output":      CapabilityAudioOutput,
	"video_output":      CapabilityVideoOutput,
	"color_convert":     CapabilityYUV,
	"fast_copy":         CapabilityMemcpy,
}

// String returns the short name used in manifests and on the command line.
func (c Capability) String() string {
	if name, ok := capabilityNames[c]; ok {
		return name
	}
	return fmt.Sprintf("capability(%#x)", uint32(c))
}

// Valid reports whether c is exactly one known capability bit.
func (c Capability) Valid() bool {
	return c != 0 && c < capabilityEnd && bits.OnesCount32(uint32(c)) == 1
}

// ParseCapability resolves a short name or alias (case-insensitive).
func ParseCapability(name string) (Capability, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	key = strings.ReplaceAll(key, "-", "_")
	for c, n := range capabilityNames {
		if n == key {
			return c, nil
		}
	}
	if c, ok := capabilityAliases[key]; ok {
		return c, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownCapability, name)
}

// CapabilitySet is a set of capabilities.
type CapabilitySet uint32

// NewCapabilitySet builds a set from individual capabilities.
func NewCapabilitySet(caps ...Capability) CapabilitySet {
	var s CapabilitySet
	for _, c := range caps {
		s |= CapabilitySet(c)
	}
	return s
}

// Has reports whether c is in the set.
func (s CapabilitySet) Has(c Capability) bool {
	return c != 0 && s&CapabilitySet(c) == CapabilitySet(c)
}

// Empty reports whether the set contains no capability.
func (s CapabilitySet) Empty() bool {
	return s == 0
}

// Len returns the number of capabilities in the set.
func (s CapabilitySet) Len() int {
	return bits.OnesCount32(uint32(s))
}

// List returns the capabilities in bit order.
func (s CapabilitySet) List() []Capability {
	out := make([]Capability, 0, s.Len())
	for _, c := range AllCapabilities {
		if s.Has(c) {
			out = append(out, c)
		}
	}
	return out
}

// String joins the short names with commas.
func (s CapabilitySet) String() string {
	names := make([]string, 0, s.Len())
	for _, c := range s.List() {
		names = append(names, c.String())
	}
	return strings.Join(names, ",")
}
