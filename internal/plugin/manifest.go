package plugin

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"

	"github.com/Jasonic/vlc/internal/module"
	plua "github.com/Jasonic/vlc/internal/plugin/lua"
)

// Manifest file names, checked in order.
var manifestNames = []string{"plugin.json", "plugin.yaml", "plugin.yml"}

// Manifest describes a plugin's metadata and requirements.
type Manifest struct {
	// Identity
	Name        string `json:"name" yaml:"name"`               // Module name, unique in the bank
	DisplayName string `json:"displayName" yaml:"displayName"` // Human-readable name
	Version     string `json:"version" yaml:"version"`         // Semver (e.g., "1.2.0")
	Description string `json:"description" yaml:"description"`
	Author      string `json:"author" yaml:"author"`
	License     string `json:"license" yaml:"license"` // SPDX license identifier

	// Entry point
	Main string `json:"main" yaml:"main"` // Relative path to main Lua file (default: "init.lua")

	// Capabilities provided, by short name or alias
	Capabilities []string `json:"capabilities" yaml:"capabilities"`

	// Permissions requested from the sandbox
	Permissions []plua.Permission `json:"permissions" yaml:"permissions"`

	// Configuration schema
	Config []module.ConfigItem `json:"config" yaml:"config"`

	// Internal: path to the plugin directory
	path string
}

// Validation errors.
var (
	ErrMissingName         = errors.New("manifest: name is required")
	ErrInvalidName         = errors.New("manifest: name must be lowercase alphanumeric with hyphens or underscores")
	ErrInvalidVersion      = errors.New("manifest: version must be valid semver")
	ErrInvalidMain         = errors.New("manifest: main must be a .lua file")
	ErrNoCapabilities      = errors.New("manifest: at least one capability is required")
	ErrInvalidCapability   = errors.New("manifest: invalid capability")
	ErrDuplicateCapability = errors.New("manifest: capability listed twice")
	ErrInvalidPermission   = errors.New("manifest: invalid permission")
	ErrSchemaViolation     = errors.New("manifest: schema violation")
	ErrUnsupportedFormat   = errors.New("manifest: unsupported file format")
)

// namePattern validates plugin names.
var namePattern = regexp.MustCompile(`^[a-z][a-z0-9_-]*$`)

// semverPattern validates version strings (simplified semver).
var semverPattern = regexp.MustCompile(`^\d+\.\d+\.\d+(-[a-zA-Z0-9.-]+)?(\+[a-zA-Z0-9.-]+)?$`)

//go:embed manifest.schema.json
var manifestSchemaJSON []byte

const manifestSchemaID = "manifest.schema.json"

var (
	manifestSchemaOnce sync.Once
	manifestSchema     *jsonschema.Schema
	manifestSchemaErr  error
)

// compiledManifestSchema compiles the embedded schema once.
func compiledManifestSchema() (*jsonschema.Schema, error) {
	manifestSchemaOnce.Do(func() {
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(manifestSchemaJSON))
		if err != nil {
			manifestSchemaErr = fmt.Errorf("parse manifest schema: %w", err)
			return
		}
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(manifestSchemaID, doc); err != nil {
			manifestSchemaErr = fmt.Errorf("add manifest schema: %w", err)
			return
		}
		manifestSchema, manifestSchemaErr = compiler.Compile(manifestSchemaID)
	})
	return manifestSchema, manifestSchemaErr
}

// LoadManifest loads and validates a plugin manifest from a JSON or YAML
// file.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	m, err := ParseManifest(data, filepath.Ext(path))
	if err != nil {
		return nil, err
	}
	m.path = filepath.Dir(path)
	return m, nil
}

// ParseManifest decodes and validates a manifest. ext selects the format
// (".json", ".yaml" or ".yml").
func ParseManifest(data []byte, ext string) (*Manifest, error) {
	jsonData, err := manifestJSON(data, ext)
	if err != nil {
		return nil, err
	}

	if err := validateManifestSchema(jsonData); err != nil {
		return nil, err
	}

	var m Manifest
	if err := json.Unmarshal(jsonData, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}

	m.applyDefaults()
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// manifestJSON normalises a manifest document to JSON.
func manifestJSON(data []byte, ext string) ([]byte, error) {
	switch strings.ToLower(ext) {
	case ".json":
		return data, nil
	case ".yaml", ".yml":
		var doc any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse manifest: %w", err)
		}
		out, err := json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("failed to parse manifest: %w", err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
}

// validateManifestSchema checks the document against the embedded schema.
func validateManifestSchema(jsonData []byte) error {
	schema, err := compiledManifestSchema()
	if err != nil {
		return err
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("failed to parse manifest: %w", err)
	}
	if err := schema.Validate(inst); err != nil {
		return fmt.Errorf("%w: %v", ErrSchemaViolation, err)
	}
	return nil
}

// LoadManifestFromDir loads a manifest from a plugin directory.
// Returns os.ErrNotExist when the directory has no manifest file.
func LoadManifestFromDir(dir string) (*Manifest, error) {
	for _, name := range manifestNames {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return LoadManifest(path)
		}
	}
	return nil, fmt.Errorf("%s: %w", dir, os.ErrNotExist)
}

// applyDefaults sets default values for optional fields.
func (m *Manifest) applyDefaults() {
	if m.Main == "" {
		m.Main = "init.lua"
	}
	if m.Version == "" {
		m.Version = "0.0.0"
	}
}

// Validate checks that the manifest is valid.
func (m *Manifest) Validate() error {
	if m.Name == "" {
		return ErrMissingName
	}
	if !namePattern.MatchString(m.Name) {
		return fmt.Errorf("%w: %s", ErrInvalidName, m.Name)
	}
	if !semverPattern.MatchString(m.Version) {
		return fmt.Errorf("%w: %s", ErrInvalidVersion, m.Version)
	}
	if filepath.Ext(m.Main) != ".lua" || filepath.IsAbs(m.Main) || strings.Contains(m.Main, "..") {
		return fmt.Errorf("%w: %s", ErrInvalidMain, m.Main)
	}

	if _, err := m.CapabilitySet(); err != nil {
		return err
	}

	for _, p := range m.Permissions {
		if _, err := plua.ParsePermission(string(p)); err != nil {
			return fmt.Errorf("%w: %s", ErrInvalidPermission, p)
		}
	}

	if err := module.ValidateSchema(m.Config); err != nil {
		return fmt.Errorf("manifest %s: %w", m.Name, err)
	}
	return nil
}

// CapabilitySet resolves the declared capability names.
func (m *Manifest) CapabilitySet() (module.CapabilitySet, error) {
	if len(m.Capabilities) == 0 {
		return 0, ErrNoCapabilities
	}
	var set module.CapabilitySet
	for _, name := range m.Capabilities {
		c, err := module.ParseCapability(name)
		if err != nil {
			return 0, fmt.Errorf("%w: %s", ErrInvalidCapability, name)
		}
		if set.Has(c) {
			return 0, fmt.Errorf("%w: %s", ErrDuplicateCapability, c)
		}
		set |= module.NewCapabilitySet(c)
	}
	return set, nil
}

// Path returns the path to the plugin directory.
func (m *Manifest) Path() string {
	return m.path
}

// MainPath returns the full path to the main Lua file.
func (m *Manifest) MainPath() string {
	return filepath.Join(m.path, m.Main)
}

// String returns a string representation of the manifest.
func (m *Manifest) String() string {
	display := m.DisplayName
	if display == "" {
		display = m.Name
	}
	return fmt.Sprintf("%s v%s", display, m.Version)
}

// newManifestMinimal creates a manifest for a directory with only an entry
// file. Its capabilities come from the globals the script defines.
func newManifestMinimal(name, dir, main string) *Manifest {
	return &Manifest{
		Name:    name,
		Version: "0.0.0",
		Main:    main,
		path:    dir,
	}
}
