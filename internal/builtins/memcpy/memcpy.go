// Package memcpy provides the builtin fast-copy module.
package memcpy

import "github.com/Jasonic/vlc/internal/module"

// Name is the module name.
const Name = "memcpy"

// Score is what the probe reports for every request. Plugins that beat it
// replace the builtin.
const Score = 50

type copier struct{}

// Copy copies src into dst and returns the number of bytes copied.
func (copier) Copy(dst, src []byte) int {
	return copy(dst, src)
}

// Definition returns the module definition.
func Definition() *module.Definition {
	return &module.Definition{
		Name:      Name,
		LongName:  "libc memcpy",
		Version:   "1.0.0",
		Functions: module.MustFunctionTable(module.Provide(module.Memcpy, module.FastCopyFunctions(copier{}))),
		Probe: func(module.ProbeData) (int, error) {
			return Score, nil
		},
	}
}
