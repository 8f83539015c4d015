// Package null provides builtin outputs and an interface that discard
// everything. They score lowest so that any real module wins, and keep a
// host usable when no output plugin is installed.
package null

import (
	"sync/atomic"

	"github.com/Jasonic/vlc/internal/module"
)

// Name is the module name.
const Name = "null"

// Score is reported for every capability the module provides.
const Score = 1

// Stats counts the work the null module swallowed.
type Stats struct {
	Frames  atomic.Int64 // pictures displayed
	Samples atomic.Int64 // audio bytes played
	Packets atomic.Int64 // packets decoded
}

type intf struct{}

func (intf) Open(*module.Thread) error {
	return nil
}

func (intf) Close(*module.Thread) {}

func (intf) Run(*module.Thread) error {
	return nil
}

type decoder struct{ stats *Stats }

// Run drains the input.
func (d decoder) Run(cfg *module.DecoderConfig) error {
	for range cfg.Input {
		d.stats.Packets.Add(1)
	}
	return nil
}

type aout struct{ stats *Stats }

func (aout) Open(*module.Thread) error {
	return nil
}

func (aout) SetFormat(*module.Thread) error {
	return nil
}

func (aout) BufInfo(_ *module.Thread, _ int64) int64 {
	return 0
}

func (a aout) Play(_ *module.Thread, buf []byte) {
	a.stats.Samples.Add(int64(len(buf)))
}

func (aout) Close(*module.Thread) {}

type vout struct{ stats *Stats }

func (vout) Create(*module.Thread) error {
	return nil
}

func (vout) Init(*module.Thread) error {
	return nil
}

func (vout) End(*module.Thread) {}

func (vout) Destroy(*module.Thread) {}

func (vout) Manage(*module.Thread) error {
	return nil
}

func (v vout) Display(*module.Thread) {
	v.stats.Frames.Add(1)
}

func (vout) SetPalette(*module.Thread, module.Palette) {}

// Definition returns the module definition. stats may be nil.
func Definition(stats *Stats) *module.Definition {
	if stats == nil {
		stats = &Stats{}
	}
	return &module.Definition{
		Name:     Name,
		LongName: "Null interface and outputs",
		Version:  "1.0.0",
		Functions: module.MustFunctionTable(
			module.Provide(module.Intf, module.InterfaceFunctions(intf{})),
			module.Provide(module.Dec, module.DecoderFunctions(decoder{stats})),
			module.Provide(module.Aout, module.AudioOutputFunctions(aout{stats})),
			module.Provide(module.Vout, module.VideoOutputFunctions(vout{stats})),
		),
		Probe: func(module.ProbeData) (int, error) {
			return Score, nil
		},
	}
}
