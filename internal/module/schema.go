package module

import (
	"fmt"
	"strings"
)

// ConfigKind is the widget type of a configuration item.
type ConfigKind string

// Layout kinds group value items in a configuration dialog.
const (
	ConfigWindow  ConfigKind = "window"
	ConfigPane    ConfigKind = "pane"
	ConfigFrame   ConfigKind = "frame"
	ConfigComment ConfigKind = "comment"
)

// Value kinds hold a setting.
const (
	ConfigString ConfigKind = "string"
	ConfigFile   ConfigKind = "file"
	ConfigCheck  ConfigKind = "check"
	ConfigChoose ConfigKind = "choose"
	ConfigRadio  ConfigKind = "radio"
	ConfigScale  ConfigKind = "scale"
	ConfigSpin   ConfigKind = "spin"
)

var configKinds = map[ConfigKind]bool{
	ConfigWindow: false, ConfigPane: false, ConfigFrame: false, ConfigComment: false,
	ConfigString: true, ConfigFile: true, ConfigCheck: true, ConfigChoose: true,
	ConfigRadio: true, ConfigScale: true, ConfigSpin: true,
}

// HoldsValue reports whether the kind names a setting rather than layout.
func (k ConfigKind) HoldsValue() bool {
	return configKinds[k]
}

// ConfigItem is one entry of a module's configuration schema. The bank does
// not interpret it; configuration front ends do.
type ConfigItem struct {
	Kind    ConfigKind `json:"kind" yaml:"kind"`
	Name    string     `json:"name,omitempty" yaml:"name,omitempty"`
	Text    string     `json:"text,omitempty" yaml:"text,omitempty"`
	Default string     `json:"default,omitempty" yaml:"default,omitempty"`
	Choices []string   `json:"choices,omitempty" yaml:"choices,omitempty"`
	Min     int        `json:"min,omitempty" yaml:"min,omitempty"`
	Max     int        `json:"max,omitempty" yaml:"max,omitempty"`
}

// ValidateSchema checks an ordered configuration schema.
func ValidateSchema(items []ConfigItem) error {
	seen := make(map[string]bool, len(items))
	for i, item := range items {
		holdsValue, known := configKinds[item.Kind]
		if !known {
			return fmt.Errorf("%w: item %d has unknown kind %q", ErrInvalidConfig, i, item.Kind)
		}
		if !holdsValue {
			continue
		}
		name := strings.TrimSpace(item.Name)
		if name == "" {
			return fmt.Errorf("%w: %s item %d has no name", ErrInvalidConfig, item.Kind, i)
		}
		if seen[name] {
			return fmt.Errorf("%w: duplicate item %q", ErrInvalidConfig, name)
		}
		seen[name] = true

		switch item.Kind {
		case ConfigChoose, ConfigRadio:
			if len(item.Choices) == 0 {
				return fmt.Errorf("%w: %s item %q has no choices", ErrInvalidConfig, item.Kind, name)
			}
		case ConfigScale, ConfigSpin:
			if item.Min > item.Max {
				return fmt.Errorf("%w: %s item %q has min %d > max %d", ErrInvalidConfig, item.Kind, name, item.Min, item.Max)
			}
		}
	}
	return nil
}
