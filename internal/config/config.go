package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog"

	"github.com/Jasonic/vlc/internal/config/loader"
	"github.com/Jasonic/vlc/internal/module"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "VLC_"

// Environment variables with special handling.
const (
	EnvConfigFile = "VLC_CONFIG"      // config file path
	EnvPluginPath = "VLC_PLUGIN_PATH" // plugin paths, os.PathListSeparator separated
)

// Config is the host configuration.
type Config struct {
	Bank        BankConfig          `toml:"bank"`
	Plugins     PluginsConfig       `toml:"plugins"`
	Logging     LoggingConfig       `toml:"logging"`
	Preferences map[string][]string `toml:"preferences"` // capability -> module names, best first
}

// BankConfig configures the module bank.
type BankConfig struct {
	HideDelay      int      `toml:"hide_delay"`
	Retention      string   `toml:"retention"`
	Strict         bool     `toml:"strict"`
	ManageInterval Duration `toml:"manage_interval"`
}

// PluginsConfig configures plugin discovery.
type PluginsConfig struct {
	Paths       []string `toml:"paths"`
	ScanWorkers int      `toml:"scan_workers"`
	Timeout     Duration `toml:"timeout"`
	Watch       bool     `toml:"watch"`
	Debounce    Duration `toml:"debounce"`
}

// LoggingConfig configures the logger.
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Duration is a time.Duration written as a string ("500ms", "2s").
type Duration time.Duration

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// String implements fmt.Stringer.
func (d Duration) String() string {
	return time.Duration(d).String()
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Bank: BankConfig{
			HideDelay:      module.DefaultHideDelay,
			Retention:      module.RetainRemove.String(),
			ManageInterval: Duration(time.Second),
		},
		Plugins: PluginsConfig{
			ScanWorkers: 4,
			Timeout:     Duration(5 * time.Second),
			Debounce:    Duration(500 * time.Millisecond),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Preferences: make(map[string][]string),
	}
}

// DefaultPath returns the user configuration file path, or "" when the
// user configuration directory is unknown.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "vlc", "vlc.toml")
}

// Load builds the configuration from defaults, the TOML file at path and
// VLC_* environment variables, in increasing precedence, then validates it.
// An empty path uses VLC_CONFIG or DefaultPath. A missing file is not an
// error.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(EnvConfigFile)
	}
	if path == "" {
		path = DefaultPath()
	}

	env := loader.NewEnvLoader(EnvPrefix)
	env.AddMapping("VLC_LOG_LEVEL", "logging.level")
	env.AddMapping("VLC_LOG_FORMAT", "logging.format")
	env.Skip(EnvConfigFile)
	env.Skip(EnvPluginPath)

	cfg, err := LoadFrom(loader.NewTOMLLoader(path), env)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv(EnvPluginPath); v != "" {
		cfg.Plugins.Paths = filepath.SplitList(v)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFrom decodes the merged sources over the defaults. It does not
// validate.
func LoadFrom(sources ...loader.Loader) (*Config, error) {
	merged, err := loader.Chain(sources...)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if len(merged) == 0 {
		return cfg, nil
	}

	// Round-trip through TOML so the struct tags and text unmarshalers
	// drive decoding.
	data, err := toml.Marshal(merged)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return nil, &ValidationError{
				Path:    "config",
				Message: "unknown setting",
				Value:   strings.TrimSpace(strict.String()),
				Code:    ErrCodeUnknownSetting,
			}
		}
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return cfg, nil
}

// Validate checks every setting and reports all failures at once.
func (c *Config) Validate() error {
	var errs []error
	add := func(path, msg string, value any, code ValidationErrorCode) {
		errs = append(errs, &ValidationError{Path: path, Message: msg, Value: value, Code: code})
	}

	if c.Bank.HideDelay <= 0 {
		add("bank.hide_delay", "must be positive", c.Bank.HideDelay, ErrCodeOutOfRange)
	}
	if _, err := module.ParseRetention(c.Bank.Retention); err != nil {
		add("bank.retention", `must be "remove" or "unloaded"`, c.Bank.Retention, ErrCodeInvalidEnum)
	}
	if c.Bank.ManageInterval <= 0 {
		add("bank.manage_interval", "must be positive", c.Bank.ManageInterval, ErrCodeOutOfRange)
	}

	if c.Plugins.ScanWorkers <= 0 {
		add("plugins.scan_workers", "must be positive", c.Plugins.ScanWorkers, ErrCodeOutOfRange)
	}
	if c.Plugins.Timeout <= 0 {
		add("plugins.timeout", "must be positive", c.Plugins.Timeout, ErrCodeOutOfRange)
	}
	if c.Plugins.Debounce < 0 {
		add("plugins.debounce", "must not be negative", c.Plugins.Debounce, ErrCodeOutOfRange)
	}

	if _, err := zerolog.ParseLevel(strings.ToLower(c.Logging.Level)); err != nil || c.Logging.Level == "" {
		add("logging.level", "unknown level", c.Logging.Level, ErrCodeInvalidEnum)
	}
	if f := strings.ToLower(c.Logging.Format); f != "text" && f != "json" {
		add("logging.format", `must be "text" or "json"`, c.Logging.Format, ErrCodeInvalidEnum)
	}

	for name := range c.Preferences {
		if _, err := module.ParseCapability(name); err != nil {
			add("preferences."+name, "unknown capability", name, ErrCodeInvalidEnum)
		}
	}

	return errors.Join(errs...)
}

// Retention returns the parsed bank retention policy.
func (c *Config) Retention() module.Retention {
	r, _ := module.ParseRetention(c.Bank.Retention)
	return r
}

// PreferenceMap resolves the preference table's capability names.
// Unknown capabilities are skipped; Validate reports them.
func (c *Config) PreferenceMap() map[module.Capability][]string {
	prefs := make(map[module.Capability][]string, len(c.Preferences))
	for name, modules := range c.Preferences {
		capability, err := module.ParseCapability(name)
		if err != nil {
			continue
		}
		prefs[capability] = append(prefs[capability], modules...)
	}
	return prefs
}
