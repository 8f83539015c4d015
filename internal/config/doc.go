// Package config loads the host configuration.
//
// Settings come from three sources, later ones overriding earlier ones:
//
//  1. Built-in defaults (Default)
//  2. The TOML file (~/.config/vlc/vlc.toml, VLC_CONFIG or --config)
//  3. Environment variables prefixed with VLC_
//
// A complete file looks like:
//
//	[bank]
//	hide_delay = 10000
//	retention = "remove"      # or "unloaded"
//	strict = false
//	manage_interval = "1s"
//
//	[plugins]
//	paths = ["~/.config/vlc/plugins"]
//	scan_workers = 4
//	timeout = "5s"
//	watch = false
//	debounce = "500ms"
//
//	[logging]
//	level = "info"
//	format = "text"           # or "json"
//
//	[preferences]
//	vout = ["lua-null-vout", "null"]
//
// Environment variables map onto keys by section: VLC_BANK_HIDE_DELAY sets
// bank.hide_delay and VLC_PLUGINS_SCAN_WORKERS sets plugins.scan_workers.
// VLC_LOG_LEVEL and VLC_LOG_FORMAT set the logging keys. VLC_PLUGIN_PATH
// replaces plugins.paths with a list separated like PATH.
//
// Validate reports every invalid setting at once as joined ValidationErrors.
package config
