// Package builtins lists the modules compiled into the host.
package builtins

import (
	"github.com/Jasonic/vlc/internal/builtins/file"
	"github.com/Jasonic/vlc/internal/builtins/memcpy"
	"github.com/Jasonic/vlc/internal/builtins/null"
	"github.com/Jasonic/vlc/internal/module"
)

// Definitions returns the builtin modules in registration order.
func Definitions() []*module.Definition {
	return []*module.Definition{
		memcpy.Definition(),
		file.Definition(),
		null.Definition(nil),
	}
}
