// Package plugin loads dynamic modules written in Lua.
//
// A Scanner discovers plugins in its search paths and loads each one into
// its own sandboxed Lua state. Loaded plugins are Hosts, which implement
// module.Library, so a module bank can register and unload them like any
// other dynamic module:
//
//	bank := module.New(
//	    module.WithScanner(plugin.NewScanner(paths, plugin.WithScanWorkers(4))),
//	)
//	if err := bank.Init(ctx); err != nil {
//	    return err
//	}
//
// # Plugin Structure
//
// Plugins can be either single-file or directory-based:
//
//	~/.config/vlc/plugins/fastcopy.lua
//
//	~/.config/vlc/plugins/null-vout/
//	├── plugin.json      # Manifest (optional)
//	└── init.lua         # Entry point
//
// Without a manifest the plugin is named after its file or directory and its
// capabilities are inferred from the capability tables the script defines.
//
// # Manifest
//
// plugin.json (or plugin.yaml) is validated against an embedded JSON schema:
//
//	{
//	  "name": "lua-null-vout",
//	  "displayName": "Lua null video output",
//	  "version": "1.0.0",
//	  "main": "init.lua",
//	  "capabilities": ["vout"],
//	  "permissions": ["filesystem.read"],
//	  "config": [{"kind": "check", "name": "fullscreen", "text": "Fullscreen"}]
//	}
//
// # Entry Points
//
// Every plugin defines a global probe(data) returning its score for a
// request; nil counts as zero. data has the fields capability, target,
// params and preferred.
//
// For each capability the plugin declares a global table named after the
// capability's short name, holding that capability's functions in
// snake_case. End hooks are spelled finish:
//
//	vout = {}
//	function vout.create(t) return true end
//	function vout.init(t) return true end
//	function vout.finish(t) end
//	function vout.destroy(t) end
//	function vout.manage(t) return true end
//	function vout.display(t) end
//
// Lifecycle functions receive a per-session table t carrying name and
// params; fields the plugin stores on it persist until the session closes.
// Returning false, optionally followed by a message, reports failure.
//
// An optional global deactivate() runs before the plugin is unloaded.
//
// # Permissions
//
// Plugins run without io, os and debug. filesystem.read grants a read-only
// io module; unsafe opens the full libraries. Logging is available through
// require("vlc"), which provides debug, info, warn and error.
package plugin
