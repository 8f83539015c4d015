package module

import (
	"fmt"
	"strings"
)

// Scorer turns a module's raw probe score into the score Need ranks by.
// A final score <= 0 excludes the module.
type Scorer interface {
	Score(m Info, raw int, data ProbeData) int
}

// ScorerFunc adapts a function to Scorer.
type ScorerFunc func(m Info, raw int, data ProbeData) int

// Score calls f.
func (f ScorerFunc) Score(m Info, raw int, data ProbeData) int {
	return f(m, raw, data)
}

// RawScorer ranks by the probe score alone.
type RawScorer struct{}

// Score returns raw.
func (RawScorer) Score(_ Info, raw int, _ ProbeData) int {
	return raw
}

// DefaultPreferenceBonus is added for the most preferred module.
const DefaultPreferenceBonus = 1000

// PreferenceScorer boosts modules named in ProbeData.Preferred or in a
// per-capability preference list. Earlier names get a larger bonus. A module
// whose probe declined (raw <= 0) is never revived by a preference.
type PreferenceScorer struct {
	// Bonus for the first preferred name; each following name gets one less.
	// Zero means DefaultPreferenceBonus.
	Bonus int

	// Defaults are used when the caller gives no preference.
	Defaults map[Capability][]string
}

// Score implements Scorer.
func (s PreferenceScorer) Score(m Info, raw int, data ProbeData) int {
	if raw <= 0 {
		return raw
	}
	prefs := data.Preferred
	if len(prefs) == 0 {
		prefs = s.Defaults[data.Capability]
	}
	bonus := s.Bonus
	if bonus <= 0 {
		bonus = DefaultPreferenceBonus
	}
	for i, name := range prefs {
		if strings.EqualFold(name, m.Name) {
			if b := bonus - i; b > 0 {
				return raw + b
			}
			return raw
		}
	}
	return raw
}

// Retention decides what happens to an evicted dynamic module.
type Retention int

const (
	// RetainRemove drops the descriptor from the bank.
	RetainRemove Retention = iota
	// RetainUnloaded keeps the descriptor listed as unloaded until Reset.
	RetainUnloaded
)

// String returns a string representation of the retention policy.
func (r Retention) String() string {
	switch r {
	case RetainRemove:
		return "remove"
	case RetainUnloaded:
		return "unloaded"
	default:
		return "unknown"
	}
}

// ParseRetention parses "remove" or "unloaded".
func ParseRetention(s string) (Retention, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "remove":
		return RetainRemove, nil
	case "unloaded", "keep":
		return RetainUnloaded, nil
	default:
		return RetainRemove, fmt.Errorf("unknown retention policy %q", s)
	}
}
