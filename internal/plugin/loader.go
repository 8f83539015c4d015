package plugin

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// Loader discovers plugins on the filesystem. It is safe for concurrent use.
type Loader struct {
	mu sync.RWMutex

	// Search paths for plugins (checked in order)
	paths []string

	// Discovered plugins cache, replaced whole by Discover
	discovered map[string]*PluginInfo

	logger zerolog.Logger
}

// PluginInfo contains discovery information about a plugin.
type PluginInfo struct {
	Name     string
	Path     string
	Manifest *Manifest
	State    State
	Error    error
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithPaths sets the plugin search paths.
func WithPaths(paths ...string) LoaderOption {
	return func(l *Loader) {
		l.paths = paths
	}
}

// WithLoaderLogger sets the logger used for discovery diagnostics.
func WithLoaderLogger(logger zerolog.Logger) LoaderOption {
	return func(l *Loader) {
		l.logger = logger
	}
}

// NewLoader creates a new plugin loader.
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{
		paths:      DefaultPluginPaths(),
		discovered: make(map[string]*PluginInfo),
		logger:     zerolog.Nop(),
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// DefaultPluginPaths returns the default plugin search paths.
func DefaultPluginPaths() []string {
	paths := make([]string, 0, 3)

	// User plugins: ~/.config/vlc/plugins/
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "vlc", "plugins"))
	}

	// User data plugins: ~/.local/share/vlc/plugins/
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".local", "share", "vlc", "plugins"))
	}

	// Working directory plugins: ./plugins/
	if cwd, err := os.Getwd(); err == nil {
		paths = append(paths, filepath.Join(cwd, "plugins"))
	}

	return paths
}

// Paths returns the configured search paths.
func (l *Loader) Paths() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]string(nil), l.paths...)
}

// AddPath adds a search path.
func (l *Loader) AddPath(path string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.paths = append(l.paths, path)
}

// Discover finds all plugins in the search paths. Plugins are returned
// sorted by name; when two paths hold the same name the earlier path wins.
func (l *Loader) Discover() ([]*PluginInfo, error) {
	found := make(map[string]*PluginInfo)

	var errs []error
	for _, basePath := range l.Paths() {
		if err := l.discoverInPath(found, basePath); err != nil {
			l.logger.Warn().Err(err).Str("path", basePath).Msg("plugin path unreadable")
			errs = append(errs, err)
		}
	}

	l.mu.Lock()
	l.discovered = found
	l.mu.Unlock()

	plugins := make([]*PluginInfo, 0, len(found))
	for _, info := range found {
		plugins = append(plugins, info)
	}

	sort.Slice(plugins, func(i, j int) bool {
		return plugins[i].Name < plugins[j].Name
	})

	return plugins, errors.Join(errs...)
}

// discoverInPath adds the plugins of a single directory to found.
func (l *Loader) discoverInPath(found map[string]*PluginInfo, basePath string) error {
	entries, err := os.ReadDir(basePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // Not an error if path doesn't exist
		}
		return err
	}

	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		if !entry.IsDir() {
			// Single-file plugins (name.lua)
			if filepath.Ext(entry.Name()) == ".lua" {
				name := strings.TrimSuffix(entry.Name(), ".lua")
				l.add(found, l.singleFilePlugin(name, basePath))
			}
			continue
		}

		l.add(found, l.inspectPlugin(entry.Name(), filepath.Join(basePath, entry.Name())))
	}

	return nil
}

// add records info unless an earlier path already provided the name.
func (l *Loader) add(found map[string]*PluginInfo, info *PluginInfo) {
	if prev, exists := found[info.Name]; exists {
		l.logger.Debug().Str("plugin", info.Name).Str("path", info.Path).Str("shadowed_by", prev.Path).Msg("plugin shadowed")
		return
	}
	found[info.Name] = info
}

// singleFilePlugin describes a bare name.lua file.
func (l *Loader) singleFilePlugin(name, dir string) *PluginInfo {
	return &PluginInfo{
		Name:     name,
		Path:     dir,
		Manifest: newManifestMinimal(name, dir, name+".lua"),
		State:    StateUnloaded,
	}
}

// inspectPlugin examines a plugin directory and returns its info.
func (l *Loader) inspectPlugin(name, path string) *PluginInfo {
	info := &PluginInfo{
		Name:  name,
		Path:  path,
		State: StateUnloaded,
	}

	manifest, err := LoadManifestFromDir(path)
	switch {
	case err == nil:
		info.Manifest = manifest
		info.Name = manifest.Name // Use name from manifest
		return info
	case !errors.Is(err, os.ErrNotExist):
		info.Error = fmt.Errorf("invalid manifest: %w", err)
		info.State = StateError
		return info
	}

	// No manifest; look for an entry file
	for _, main := range []string{"init.lua", "plugin.lua"} {
		if _, err := os.Stat(filepath.Join(path, main)); err == nil {
			info.Manifest = newManifestMinimal(name, path, main)
			return info
		}
	}

	info.Error = ErrNoEntryPoint
	info.State = StateError
	return info
}

// Get returns info for a specific plugin by name.
func (l *Loader) Get(name string) (*PluginInfo, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	info, ok := l.discovered[name]
	return info, ok
}

// FindPlugin searches for a plugin by name across all paths.
// Returns the first match found.
func (l *Loader) FindPlugin(name string) (*PluginInfo, error) {
	if info, ok := l.Get(name); ok {
		return info, nil
	}

	for _, basePath := range l.Paths() {
		pluginPath := filepath.Join(basePath, name)
		if stat, err := os.Stat(pluginPath); err == nil && stat.IsDir() {
			info := l.inspectPlugin(name, pluginPath)
			if info.Error == nil {
				l.remember(info)
				return info, nil
			}
		}

		if _, err := os.Stat(filepath.Join(basePath, name+".lua")); err == nil {
			info := l.singleFilePlugin(name, basePath)
			l.remember(info)
			return info, nil
		}
	}

	return nil, fmt.Errorf("%w: %s", ErrPluginNotFound, name)
}

func (l *Loader) remember(info *PluginInfo) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.discovered == nil {
		l.discovered = make(map[string]*PluginInfo)
	}
	l.discovered[info.Name] = info
}

// ListNames returns the names of all discovered plugins.
func (l *Loader) ListNames() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	names := make([]string, 0, len(l.discovered))
	for name := range l.discovered {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Count returns the number of discovered plugins.
func (l *Loader) Count() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.discovered)
}

// Errors returns all plugins that failed discovery.
func (l *Loader) Errors() []*PluginInfo {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var errored []*PluginInfo
	for _, info := range l.discovered {
		if info.Error != nil {
			errored = append(errored, info)
		}
	}
	sort.Slice(errored, func(i, j int) bool {
		return errored[i].Name < errored[j].Name
	})
	return errored
}
